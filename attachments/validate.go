////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package attachments validates, categorizes and stages the files attached to
// an outgoing message.
package attachments

import (
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/pkg/errors"

	"gitlab.com/elixxir/carechat/conversation"
)

const (
	// MaxFileSize is the largest file that may be attached, 25 MiB.
	MaxFileSize int64 = 25 << 20

	// MaxFiles is the number of files a single message may carry.
	MaxFiles = 5
)

// Validation errors. They are returned wrapped with the offending file's
// details; use errors.Is to classify.
var (
	// ErrAudio is returned for any audio file, regardless of size. Voice
	// notes go through voice-to-text instead of attachment upload.
	ErrAudio = errors.New("audio files cannot be attached, use voice-to-text instead")

	ErrUnsupportedType = errors.New("file type is not supported")
	ErrTooLarge        = errors.New("file exceeds the size limit")
	ErrMaxFiles        = errors.New("maximum number of files reached")
)

// Error messages.
const (
	audioErr       = "%q (%s)"
	unsupportedErr = "%q has type %q; allowed types are images (JPEG, PNG, " +
		"HEIC, GIF), videos (MP4, MOV) and documents (PDF, DOCX)"
	tooLargeErr = "%q is %s, the limit is %s"
	maxFilesErr = "at most %d files per message, %d not added"
)

// allowed maps every accepted MIME type to its category.
var allowed = map[string]conversation.Category{
	"image/jpeg":      conversation.Image,
	"image/png":       conversation.Image,
	"image/heic":      conversation.Image,
	"image/gif":       conversation.Image,
	"video/mp4":       conversation.Video,
	"video/quicktime": conversation.Video,
	"application/pdf": conversation.Document,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": conversation.Document,
}

// File describes a file chosen for upload.
type File struct {
	Name     string
	MIMEType string
	Size     int64

	// Open returns the file's contents. It may be called more than once.
	Open func() (io.ReadCloser, error)
}

// Validate checks the file against the audio rule, the type allow-list and
// the size limit, in that order, and returns its category.
func Validate(f File) (conversation.Category, error) {
	mimeType := baseMIMEType(f.MIMEType)

	if strings.HasPrefix(mimeType, "audio/") {
		return 0, errors.WithMessagef(ErrAudio, audioErr, f.Name, mimeType)
	}

	category, ok := allowed[mimeType]
	if !ok {
		return 0, errors.WithMessagef(ErrUnsupportedType, unsupportedErr,
			f.Name, f.MIMEType)
	}

	if f.Size > MaxFileSize {
		return 0, errors.WithMessagef(ErrTooLarge, tooLargeErr, f.Name,
			FormatSize(f.Size), FormatSize(MaxFileSize))
	}

	return category, nil
}

// IsValidationError reports whether err is one of this package's validation
// errors.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrAudio) || errors.Is(err, ErrUnsupportedType) ||
		errors.Is(err, ErrTooLarge) || errors.Is(err, ErrMaxFiles)
}

// FormatSize renders a byte count in MB with one decimal place.
func FormatSize(size int64) string {
	return fmt.Sprintf("%.1f MB", float64(size)/float64(1<<20))
}

// baseMIMEType strips parameters and normalizes case.
func baseMIMEType(t string) string {
	if mediaType, _, err := mime.ParseMediaType(t); err == nil {
		return mediaType
	}
	return strings.ToLower(strings.TrimSpace(t))
}

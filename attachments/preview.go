////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package attachments

import (
	"bytes"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"sync"

	"github.com/google/uuid"
	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

const (
	previewPrefix = "preview:"

	// Bounding box of generated thumbnails.
	thumbnailWidth  = 320
	thumbnailHeight = 320
)

// ErrNoPreview is returned when a file cannot be previewed locally, such as
// HEIC images, which the standard decoders do not support.
var ErrNoPreview = errors.New("no local preview available")

// Previewer produces revocable local preview references for staged images.
type Previewer interface {
	// Acquire produces a preview for the file and returns its reference.
	Acquire(f File) (string, error)

	// Release revokes a reference returned by Acquire. Releasing an unknown
	// reference does nothing.
	Release(ref string)
}

// ThumbnailPreviewer keeps JPEG thumbnails of staged images in memory.
type ThumbnailPreviewer struct {
	thumbs map[string][]byte
	mux    sync.RWMutex
}

// NewThumbnailPreviewer returns an empty ThumbnailPreviewer.
func NewThumbnailPreviewer() *ThumbnailPreviewer {
	return &ThumbnailPreviewer{thumbs: make(map[string][]byte)}
}

// Acquire decodes the image, scales it into the thumbnail bounding box and
// stores the result under a fresh reference.
func (tp *ThumbnailPreviewer) Acquire(f File) (string, error) {
	if f.Open == nil {
		return "", ErrNoPreview
	}

	r, err := f.Open()
	if err != nil {
		return "", errors.Wrapf(err, "failed to open %q", f.Name)
	}
	defer func() {
		if err := r.Close(); err != nil {
			jww.WARN.Printf("[Attachments] Failed to close %q: %+v", f.Name, err)
		}
	}()

	img, _, err := image.Decode(r)
	if err != nil {
		return "", errors.WithMessagef(ErrNoPreview, "%q: %v", f.Name, err)
	}

	thumb := resize.Thumbnail(thumbnailWidth, thumbnailHeight, img,
		resize.Lanczos3)

	var buf bytes.Buffer
	if err = jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: 80}); err != nil {
		return "", errors.Wrapf(err, "failed to encode preview of %q", f.Name)
	}

	ref := previewPrefix + uuid.NewString()
	tp.mux.Lock()
	tp.thumbs[ref] = buf.Bytes()
	tp.mux.Unlock()

	return ref, nil
}

// Release drops the thumbnail behind ref.
func (tp *ThumbnailPreviewer) Release(ref string) {
	tp.mux.Lock()
	delete(tp.thumbs, ref)
	tp.mux.Unlock()
}

// Get returns the JPEG thumbnail behind ref.
func (tp *ThumbnailPreviewer) Get(ref string) ([]byte, bool) {
	tp.mux.RLock()
	defer tp.mux.RUnlock()
	thumb, ok := tp.thumbs[ref]
	return thumb, ok
}

// Outstanding returns how many references have not been released.
func (tp *ThumbnailPreviewer) Outstanding() int {
	tp.mux.RLock()
	defer tp.mux.RUnlock()
	return len(tp.thumbs)
}

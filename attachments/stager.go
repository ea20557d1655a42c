////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package attachments

import (
	"sync"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/elixxir/carechat/conversation"
)

// Staged is a validated file waiting to be sent.
type Staged struct {
	File     File
	Category conversation.Category

	// Preview is the local preview reference for images. It is empty when
	// no preview could be produced.
	Preview string
}

// Stager holds the files staged for the current outgoing message. It owns the
// preview references of the files it holds and releases them on every path a
// file leaves the stage.
type Stager struct {
	staged    []Staged
	previewer Previewer
	mux       sync.Mutex
}

// NewStager returns an empty Stager. A nil previewer disables previews.
func NewStager(previewer Previewer) *Stager {
	return &Stager{previewer: previewer}
}

// AddFiles validates and stages files in order. It returns one error per
// rejected file. Once MaxFiles files are staged, a single ErrMaxFiles error
// covers every remaining file; files staged before the limit was hit stay
// staged.
func (s *Stager) AddFiles(files []File) []error {
	s.mux.Lock()
	defer s.mux.Unlock()

	var errs []error
	for i, f := range files {
		if len(s.staged) >= MaxFiles {
			errs = append(errs, errors.WithMessagef(ErrMaxFiles, maxFilesErr,
				MaxFiles, len(files)-i))
			break
		}

		category, err := Validate(f)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		staged := Staged{File: f, Category: category}
		if category == conversation.Image && s.previewer != nil {
			ref, err := s.previewer.Acquire(f)
			if err != nil {
				jww.DEBUG.Printf("[Attachments] No preview for %q: %+v",
					f.Name, err)
			} else {
				staged.Preview = ref
			}
		}
		s.staged = append(s.staged, staged)
	}

	return errs
}

// Remove drops the staged file at index and releases its preview.
func (s *Stager) Remove(index int) error {
	s.mux.Lock()
	defer s.mux.Unlock()

	if index < 0 || index >= len(s.staged) {
		return errors.Errorf("no staged file at index %d of %d", index,
			len(s.staged))
	}

	s.release(s.staged[index])
	s.staged = append(s.staged[:index:index], s.staged[index+1:]...)
	return nil
}

// Clear drops every staged file and releases all previews. It is called after
// a successful send and when the message is abandoned.
func (s *Stager) Clear() {
	s.mux.Lock()
	defer s.mux.Unlock()

	for _, staged := range s.staged {
		s.release(staged)
	}
	s.staged = nil
}

// Files returns a copy of the staged files in the order they were added.
func (s *Stager) Files() []Staged {
	s.mux.Lock()
	defer s.mux.Unlock()
	return append([]Staged(nil), s.staged...)
}

// Len returns the number of staged files.
func (s *Stager) Len() int {
	s.mux.Lock()
	defer s.mux.Unlock()
	return len(s.staged)
}

func (s *Stager) release(staged Staged) {
	if staged.Preview != "" && s.previewer != nil {
		s.previewer.Release(staged.Preview)
	}
}

////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package chatsync

import (
	"sort"
	"sync"

	jww "github.com/spf13/jwalterweatherman"
)

// Visibility tracks whether the chat view is on screen and tells registered
// callbacks when that changes.
type Visibility struct {
	funcs   map[uint64]func(visible bool)
	funcsID uint64

	visible bool
	mux     sync.RWMutex
}

// NewVisibility returns a tracker in the given initial state.
func NewVisibility(visible bool) *Visibility {
	return &Visibility{
		funcs:   map[uint64]func(bool){},
		visible: visible,
	}
}

// AddCallback registers f to be called on every change and returns its ID.
// f is not called with the current state.
func (v *Visibility) AddCallback(f func(visible bool)) uint64 {
	v.mux.Lock()
	defer v.mux.Unlock()

	id := v.funcsID
	v.funcs[id] = f
	v.funcsID++
	return id
}

// RemoveCallback removes the callback with the given ID.
func (v *Visibility) RemoveCallback(id uint64) {
	v.mux.Lock()
	delete(v.funcs, id)
	v.mux.Unlock()
}

// IsVisible returns the current state.
func (v *Visibility) IsVisible() bool {
	v.mux.RLock()
	defer v.mux.RUnlock()
	return v.visible
}

// Set records the state and, if it changed, calls every callback in
// registration order on the calling goroutine.
func (v *Visibility) Set(visible bool) {
	v.mux.Lock()
	if v.visible == visible {
		v.mux.Unlock()
		return
	}
	v.visible = visible

	ids := make([]uint64, 0, len(v.funcs))
	for id := range v.funcs {
		ids = append(ids, id)
	}
	funcs := make([]func(bool), 0, len(ids))
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		funcs = append(funcs, v.funcs[id])
	}
	v.mux.Unlock()

	jww.DEBUG.Printf("[ChatSync] View visibility changed to %t", visible)
	for _, f := range funcs {
		f(visible)
	}
}

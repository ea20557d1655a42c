////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package chatsync

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

// Error message.
const loopTimeoutErr = "poll loop %q did not stop within %s"

// loop controls one polling goroutine. It may be signalled from inside the
// goroutine it controls; only close waits for it to exit.
type loop struct {
	name string
	quit chan struct{}
	done chan struct{}
	once sync.Once
}

func newLoop(name string) *loop {
	return &loop{
		name: name,
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Quit is closed when the loop is asked to stop.
func (l *loop) Quit() <-chan struct{} {
	return l.quit
}

// signal asks the loop to stop without waiting.
func (l *loop) signal() {
	l.once.Do(func() {
		jww.TRACE.Printf("[ChatSync] Signalling poll loop %q to stop", l.name)
		close(l.quit)
	})
}

// toStopped is called by the goroutine as it exits.
func (l *loop) toStopped() {
	close(l.done)
	jww.DEBUG.Printf("[ChatSync] Poll loop %q stopped", l.name)
}

// close signals the loop and waits up to timeout for it to exit.
func (l *loop) close(timeout time.Duration) error {
	l.signal()
	select {
	case <-l.done:
		return nil
	case <-time.After(timeout):
		return errors.Errorf(loopTimeoutErr, l.name, timeout)
	}
}

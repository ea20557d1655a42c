////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package event is the in-app command channel. Out-of-band sources, such as a
// clicked push notification, post commands on it and the chat core subscribes
// to them, so neither side knows how the other is delivered.
package event

import (
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

const queueSize = 1000

// Kind of a Command.
type Kind uint8

const (
	// OpenConversation asks the chat view to open ConversationID.
	OpenConversation Kind = iota
	// Report carries a status report for the host application.
	Report
)

func (k Kind) String() string {
	switch k {
	case OpenConversation:
		return "OpenConversation"
	case Report:
		return "Report"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Command is a single instruction posted on the bus.
type Command struct {
	Kind Kind

	// ConversationID is set for OpenConversation.
	ConversationID string

	// Source names the poster, for example "push".
	Source string

	// Priority, Category and Details describe a Report.
	Priority int
	Category string
	Details  string
}

// String stringer interface implementation
func (c Command) String() string {
	if c.Kind == OpenConversation {
		return fmt.Sprintf("%s(%s from %s)", c.Kind, c.ConversationID,
			c.Source)
	}
	return fmt.Sprintf("%s(%d, %s, %s)", c.Kind, c.Priority, c.Category,
		c.Details)
}

// Errors.
const (
	callbackExistsErr = "key %s already exists as a command callback"
	stopTimeoutErr    = "command bus did not stop within %s"
)

// ErrNotRunning is returned when stopping a bus that was not started.
var ErrNotRunning = errors.New("command bus is not running")

// Bus delivers posted commands to every subscribed callback on a single
// goroutine, in the order they were posted.
type Bus struct {
	ch  chan Command
	cbs sync.Map

	quit chan struct{}
	done chan struct{}
	mux  sync.Mutex
}

// NewBus returns a Bus that is not yet delivering.
func NewBus() *Bus {
	return &Bus{
		ch: make(chan Command, queueSize),
	}
}

// Post queues a command. It never blocks; if the queue is full the command
// is dropped and logged.
func (b *Bus) Post(c Command) {
	select {
	case b.ch <- c:
		jww.TRACE.Printf("[Event] Command posted: %s", c)
	default:
		jww.ERROR.Printf("[Event] Command queue full, unable to post: %s", c)
	}
}

// Subscribe records the callback under name.
func (b *Bus) Subscribe(name string, cb Callback) error {
	_, existsAlready := b.cbs.LoadOrStore(name, cb)
	if existsAlready {
		return errors.Errorf(callbackExistsErr, name)
	}
	return nil
}

// Unsubscribe deletes the callback registered under name.
func (b *Bus) Unsubscribe(name string) {
	b.cbs.Delete(name)
}

// Start begins delivering commands. Starting a running bus is a no-op.
func (b *Bus) Start() {
	b.mux.Lock()
	defer b.mux.Unlock()
	if b.quit != nil {
		return
	}
	b.quit = make(chan struct{})
	b.done = make(chan struct{})
	go b.deliver(b.quit, b.done)
}

// Stop ends delivery and waits up to timeout for the delivering goroutine.
// Commands still queued are delivered by the next Start.
func (b *Bus) Stop(timeout time.Duration) error {
	b.mux.Lock()
	quit, done := b.quit, b.done
	b.quit, b.done = nil, nil
	b.mux.Unlock()

	if quit == nil {
		return ErrNotRunning
	}
	close(quit)

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return errors.Errorf(stopTimeoutErr, timeout)
	}
}

// deliver sends each queued command to every callback.
func (b *Bus) deliver(quit, done chan struct{}) {
	jww.DEBUG.Print("[Event] Command delivery started")
	defer close(done)
	for {
		select {
		case <-quit:
			jww.DEBUG.Print("[Event] Stopping command delivery")
			return
		case c := <-b.ch:
			jww.TRACE.Printf("[Event] Delivering command: %s", c)
			// Callbacks run in turn; a slow callback holds up the queue.
			b.cbs.Range(func(_, cb interface{}) bool {
				cb.(Callback)(c)
				return true
			})
		}
	}
}

////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package chatsync keeps a client's view of its conversations current by
// polling. Two independent timers refresh the conversation list and the open
// thread while the chat view is visible. Every fetch is tagged with a
// per-target sequence number and applied through a single reducer, so a
// response that resolves late can never overwrite newer state.
package chatsync

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/elixxir/carechat/attachments"
	"gitlab.com/elixxir/carechat/conversation"
	"gitlab.com/elixxir/carechat/event"
	"gitlab.com/elixxir/carechat/store"
)

// busCallbackName is the name the engine subscribes to the command bus under.
const busCallbackName = "chatsync"

// Engine runs the poll loops and owns the session's State and Thread.
type Engine struct {
	backend  Backend
	params   Params
	state    *State
	thread   *Thread
	listener Listener
	reporter event.Poster

	visibility   *Visibility
	visibilityID uint64

	// active is set between Start and Stop.
	active bool
	loops  []*loop

	listPolls   uint64
	threadPolls uint64

	mux sync.Mutex
}

// NewEngine builds an Engine. listener may be nil. The visibility tracker
// starts and stops the poll loops while the engine is started.
func NewEngine(backend Backend, viewer Viewer, params Params,
	listener Listener, visibility *Visibility,
	previewer attachments.Previewer) *Engine {
	if listener == nil {
		listener = nopListener{}
	}
	if visibility == nil {
		visibility = NewVisibility(true)
	}

	e := &Engine{
		backend:    backend,
		params:     params,
		state:      NewState(),
		listener:   listener,
		visibility: visibility,
	}
	e.thread = newThread(backend, e.state, viewer,
		attachments.NewStager(previewer))
	e.thread.notify = e.notifyThread
	e.thread.notifyList = e.notifyList
	e.thread.onSent = func() { go e.refreshList(context.Background()) }
	e.thread.onUnauthenticated = e.halt

	return e
}

// Thread returns the controller of the open conversation.
func (e *Engine) Thread() *Thread {
	return e.thread
}

// State returns the session state.
func (e *Engine) State() *State {
	return e.state
}

// SetReporter sets where poll counts are reported.
func (e *Engine) SetReporter(p event.Poster) {
	e.mux.Lock()
	e.reporter = p
	e.mux.Unlock()
}

// Attach subscribes the engine to the bus so OpenConversation commands open
// the conversation. Poll reports are posted to the same bus.
func (e *Engine) Attach(bus *event.Bus) error {
	err := bus.Subscribe(busCallbackName, func(c event.Command) {
		if c.Kind != event.OpenConversation {
			return
		}
		jww.INFO.Printf("[ChatSync] Opening %s on request from %q",
			c.ConversationID, c.Source)
		if err := e.thread.Open(context.Background(),
			c.ConversationID); err != nil {
			jww.ERROR.Printf("[ChatSync] Failed to open %s: %+v",
				c.ConversationID, err)
		}
	})
	if err != nil {
		return err
	}
	e.SetReporter(bus)
	return nil
}

// Start enters the chat view. If the view is visible the poll loops start
// and an immediate refresh is made.
func (e *Engine) Start() error {
	if e.params.ListPeriod <= 0 || e.params.ThreadPeriod <= 0 {
		return errors.Errorf("poll periods must be positive, got %s and %s",
			e.params.ListPeriod, e.params.ThreadPeriod)
	}

	e.mux.Lock()
	if e.active {
		e.mux.Unlock()
		return errors.New("chat engine is already started")
	}
	e.active = true
	e.visibilityID = e.visibility.AddCallback(e.visibilityChanged)
	visible := e.visibility.IsVisible()
	if visible {
		e.resumeUnsafe()
	}
	e.mux.Unlock()

	jww.INFO.Printf("[ChatSync] Started, visible: %t", visible)
	return nil
}

// Stop leaves the chat view and waits for the poll loops to exit. Fetches in
// flight are allowed to finish; their results still go through the reducer.
func (e *Engine) Stop() error {
	e.mux.Lock()
	if !e.active {
		e.mux.Unlock()
		return nil
	}
	e.active = false
	e.visibility.RemoveCallback(e.visibilityID)
	loops := e.suspendUnsafe()
	e.mux.Unlock()

	jww.INFO.Print("[ChatSync] Stopped")
	return closeLoops(loops, e.params.StopTimeout)
}

// Running reports whether the poll loops are running.
func (e *Engine) Running() bool {
	e.mux.Lock()
	defer e.mux.Unlock()
	return len(e.loops) > 0
}

// visibilityChanged suspends the loops when the view is hidden and resumes
// them, with an immediate refresh, when it is shown again.
func (e *Engine) visibilityChanged(visible bool) {
	e.mux.Lock()
	if !e.active {
		e.mux.Unlock()
		return
	}

	if visible {
		e.resumeUnsafe()
		e.mux.Unlock()
		jww.DEBUG.Print("[ChatSync] Resumed polling")
		return
	}

	loops := e.suspendUnsafe()
	e.mux.Unlock()
	jww.DEBUG.Print("[ChatSync] Suspended polling")
	if err := closeLoops(loops, e.params.StopTimeout); err != nil {
		jww.WARN.Printf("[ChatSync] %+v", err)
	}
}

// halt stops polling after the session was rejected. It may be called from
// a poll loop, so it does not wait for the loops to exit.
func (e *Engine) halt() {
	e.mux.Lock()
	if e.active {
		e.active = false
		e.visibility.RemoveCallback(e.visibilityID)
	}
	loops := e.suspendUnsafe()
	e.mux.Unlock()

	if len(loops) > 0 {
		jww.WARN.Print("[ChatSync] Session rejected, polling stopped")
	}
	for _, l := range loops {
		l.signal()
	}
}

// resumeUnsafe starts the loops if they are not running. The caller must
// hold the lock.
func (e *Engine) resumeUnsafe() {
	if len(e.loops) > 0 {
		return
	}

	listLoop := newLoop("ListPoll")
	threadLoop := newLoop("ThreadPoll")
	e.loops = []*loop{listLoop, threadLoop}

	go e.pollList(listLoop)
	go e.pollThread(threadLoop)

	// do not wait for the first tick after a resume
	go e.refreshList(context.Background())
	go e.refreshThread(context.Background())
}

// suspendUnsafe detaches the running loops and returns them for closing. The
// caller must hold the lock.
func (e *Engine) suspendUnsafe() []*loop {
	loops := e.loops
	e.loops = nil
	return loops
}

func closeLoops(loops []*loop, timeout time.Duration) error {
	var errs []string
	for _, l := range loops {
		if err := l.close(timeout); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return errors.Errorf("failed to stop poll loops: %v", errs)
	}
	return nil
}

// pollList refreshes the conversation list on every tick.
func (e *Engine) pollList(l *loop) {
	ticker := time.NewTicker(e.params.ListPeriod)
	defer ticker.Stop()

	var reportC <-chan time.Time
	if e.params.ReportPeriod > 0 {
		reportTicker := time.NewTicker(e.params.ReportPeriod)
		defer reportTicker.Stop()
		reportC = reportTicker.C
	}

	for {
		select {
		case <-l.Quit():
			l.toStopped()
			return
		case <-ticker.C:
			e.refreshList(context.Background())
		case <-reportC:
			e.report()
		}
	}
}

// pollThread refreshes the open thread on every tick.
func (e *Engine) pollThread(l *loop) {
	ticker := time.NewTicker(e.params.ThreadPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-l.Quit():
			l.toStopped()
			return
		case <-ticker.C:
			e.refreshThread(context.Background())
		}
	}
}

// refreshList is one list tick. Failures are logged and otherwise ignored;
// the next tick retries.
func (e *Engine) refreshList(ctx context.Context) {
	atomic.AddUint64(&e.listPolls, 1)
	if err := e.RefreshList(ctx); err != nil {
		jww.WARN.Printf("[ChatSync] Conversation list poll failed: %+v", err)
	}
}

// refreshThread is one thread tick. Failures are logged and otherwise
// ignored, except not-found which the reducer shows in place of the thread.
func (e *Engine) refreshThread(ctx context.Context) {
	atomic.AddUint64(&e.threadPolls, 1)
	if _, err := e.thread.Refresh(ctx); err != nil {
		jww.WARN.Printf("[ChatSync] Thread poll failed: %+v", err)
	}
}

// RefreshList fetches the conversation list and replaces the local copy.
func (e *Engine) RefreshList(ctx context.Context) error {
	seq := e.state.Begin(ListTarget)
	list, err := e.backend.ListConversations(ctx)
	if err != nil {
		if store.Classify(err) == store.Unauthenticated {
			e.halt()
		}
		return err
	}

	if e.state.Apply(Event{Target: ListTarget, Seq: seq,
		Conversations: list}) {
		e.notifyList()
	}
	return nil
}

// Refresh refreshes the list and the open thread immediately and returns the
// first error.
func (e *Engine) Refresh(ctx context.Context) error {
	listErr := e.RefreshList(ctx)
	_, threadErr := e.thread.Refresh(ctx)
	if listErr != nil {
		return listErr
	}
	return threadErr
}

// SetFilter changes the list filter.
func (e *Engine) SetFilter(f Filter) {
	e.state.SetFilter(f)
	e.notifyList()
}

// CreateGroup creates a client group, refreshes the list and opens it.
func (e *Engine) CreateGroup(ctx context.Context, clientID, clientName string,
	memberIDs []string) (conversation.Conversation, error) {
	if clientID == "" || clientName == "" {
		return conversation.Conversation{},
			errors.New("a group needs a client ID and client name")
	}

	c, err := e.backend.CreateGroup(ctx, clientID, clientName, memberIDs)
	if err != nil {
		return c, errors.WithMessage(err, "failed to create group")
	}
	return c, e.openCreated(ctx, c)
}

// MessageOffice finds or creates the worker's direct conversation with the
// office, refreshes the list and opens it.
func (e *Engine) MessageOffice(ctx context.Context, workerID,
	workerName string) (conversation.Conversation, error) {
	if workerID == "" {
		return conversation.Conversation{},
			errors.New("a direct conversation needs a worker ID")
	}

	c, err := e.backend.MessageOffice(ctx, workerID, workerName)
	if err != nil {
		return c, errors.WithMessage(err,
			"failed to start office conversation")
	}
	return c, e.openCreated(ctx, c)
}

func (e *Engine) openCreated(ctx context.Context,
	c conversation.Conversation) error {
	if err := e.RefreshList(ctx); err != nil {
		jww.WARN.Printf("[ChatSync] List refresh after create failed: %+v",
			err)
	}
	return e.thread.Open(ctx, c.ID)
}

func (e *Engine) notifyList() {
	e.listener.ListUpdated(e.state.ListView())
}

func (e *Engine) notifyThread() {
	e.listener.ThreadUpdated(e.state.ThreadView())
}

// report logs and posts how often each loop polled since the last report.
func (e *Engine) report() {
	lists := atomic.SwapUint64(&e.listPolls, 0)
	threads := atomic.SwapUint64(&e.threadPolls, 0)
	msg := fmt.Sprintf("Polled the conversation list %d times and the "+
		"open thread %d times in the last %s", lists, threads,
		e.params.ReportPeriod)
	jww.INFO.Printf("[ChatSync] %s", msg)

	e.mux.Lock()
	reporter := e.reporter
	e.mux.Unlock()
	if reporter != nil {
		reporter.Post(event.Command{Kind: event.Report, Priority: 1,
			Category: "Polling", Details: msg, Source: busCallbackName})
	}
}

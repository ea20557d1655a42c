////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package chatsync

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gitlab.com/elixxir/carechat/conversation"
	"gitlab.com/elixxir/carechat/event"
	"gitlab.com/elixxir/carechat/store"
)

const (
	eventually = 5 * time.Second
	tick       = 5 * time.Millisecond
)

func fastParams() Params {
	p := GetDefaultParams()
	p.ListPeriod = 10 * time.Millisecond
	p.ThreadPeriod = 10 * time.Millisecond
	p.StopTimeout = time.Second
	p.ReportPeriod = 0
	return p
}

// slowParams never tick during a test, so every fetch seen is an immediate
// refresh.
func slowParams() Params {
	p := fastParams()
	p.ListPeriod = time.Hour
	p.ThreadPeriod = time.Hour
	return p
}

func newTestEngine(b *mockBackend, p Params,
	vis *Visibility) (*Engine, *mockListener) {
	l := &mockListener{}
	return NewEngine(b, staffViewer(), p, l, vis, nil), l
}

type recordingPoster struct {
	commands []event.Command
	mux      sync.Mutex
}

func (r *recordingPoster) Post(c event.Command) {
	r.mux.Lock()
	r.commands = append(r.commands, c)
	r.mux.Unlock()
}

// Tests that a started engine polls the list and the open thread until it is
// stopped.
func TestEngine_Polls(t *testing.T) {
	b := newMockBackend()
	b.conversations = []conversation.Conversation{{ID: "c", UnreadCount: 1}}
	b.addMessages("c", 2)
	e, l := newTestEngine(b, fastParams(), nil)
	require.NoError(t, e.Thread().Open(context.Background(), "c"))

	require.NoError(t, e.Start())
	require.True(t, e.Running())
	require.Error(t, e.Start())

	require.Eventually(t, func() bool {
		return l.listCount() > 3 && atomic.LoadInt32(&b.getCalls) > 3
	}, eventually, tick)

	require.NoError(t, e.Stop())
	require.False(t, e.Running())
	require.NoError(t, e.Stop())

	// the open conversation is never counted as unread
	require.Zero(t, e.State().ListView().Unread)
}

// Tests that the engine refuses periods a ticker cannot run on.
func TestEngine_Start_BadPeriod(t *testing.T) {
	p := fastParams()
	p.ThreadPeriod = 0
	e, _ := newTestEngine(newMockBackend(), p, nil)
	require.Error(t, e.Start())
	require.False(t, e.Running())
}

// Tests that hiding the view suspends polling and showing it resumes polling
// with an immediate refresh.
func TestEngine_Visibility(t *testing.T) {
	b := newMockBackend()
	vis := NewVisibility(false)
	e, _ := newTestEngine(b, slowParams(), vis)

	require.NoError(t, e.Start())
	defer func() { require.NoError(t, e.Stop()) }()
	require.False(t, e.Running())
	time.Sleep(20 * time.Millisecond)
	require.Zero(t, atomic.LoadInt32(&b.listCalls))

	vis.Set(true)
	require.True(t, e.Running())
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&b.listCalls) == 1
	}, eventually, tick)

	vis.Set(false)
	require.False(t, e.Running())

	vis.Set(true)
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&b.listCalls) == 2
	}, eventually, tick)
}

// Tests that failed background polls are swallowed and polling continues.
func TestEngine_BackgroundErrors(t *testing.T) {
	b := newMockBackend()
	b.setListErr(&store.StatusError{Status: 503})
	e, l := newTestEngine(b, fastParams(), nil)

	require.NoError(t, e.Start())
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&b.listCalls) > 3
	}, eventually, tick)
	require.True(t, e.Running())
	require.Zero(t, l.listCount())

	b.setListErr(nil)
	require.Eventually(t, func() bool { return l.listCount() > 0 },
		eventually, tick)
	require.NoError(t, e.Stop())
}

// Tests that a rejected session stops polling for good, even if the view is
// hidden and shown again.
func TestEngine_Unauthenticated(t *testing.T) {
	b := newMockBackend()
	b.setListErr(&store.StatusError{Status: 401})
	vis := NewVisibility(true)
	e, _ := newTestEngine(b, slowParams(), vis)

	require.NoError(t, e.Start())
	require.Eventually(t, func() bool { return !e.Running() },
		eventually, tick)

	vis.Set(false)
	vis.Set(true)
	require.False(t, e.Running())
	require.NoError(t, e.Stop())
}

// Tests that an OpenConversation command posted on the bus opens the thread.
func TestEngine_Attach(t *testing.T) {
	b := newMockBackend()
	b.addMessages("c", 3)
	e, _ := newTestEngine(b, slowParams(), nil)

	bus := event.NewBus()
	require.NoError(t, e.Attach(bus))
	bus.Start()
	defer func() { require.NoError(t, bus.Stop(time.Second)) }()

	bus.Post(event.Command{Kind: event.OpenConversation,
		ConversationID: "c", Source: "push"})
	require.Eventually(t, func() bool {
		v := e.State().ThreadView()
		return v.ConversationID == "c" && v.Phase == Ready
	}, eventually, tick)
}

// Tests that creating a group or a direct conversation opens it.
func TestEngine_CreateAndOpen(t *testing.T) {
	b := newMockBackend()
	e, l := newTestEngine(b, slowParams(), nil)
	ctx := context.Background()

	_, err := e.CreateGroup(ctx, "", "Jane", nil)
	require.Error(t, err)
	_, err = e.MessageOffice(ctx, "", "")
	require.Error(t, err)
	require.Empty(t, b.created)

	c, err := e.CreateGroup(ctx, "client-7", "Jane Citizen", []string{"w1"})
	require.NoError(t, err)
	require.Equal(t, "group-client-7", c.ID)
	require.Equal(t, c.ID, e.Thread().Active())
	require.Greater(t, l.listCount(), 0)

	c, err = e.MessageOffice(ctx, "w1", "Sam")
	require.NoError(t, err)
	require.Equal(t, conversation.Direct, c.Kind)
	require.Equal(t, c.ID, e.Thread().Active())
	require.Len(t, e.State().ListView().Conversations, 2)
}

// Tests that a poll report is posted with the counts since the last report.
func TestEngine_Report(t *testing.T) {
	e, _ := newTestEngine(newMockBackend(), slowParams(), nil)
	r := &recordingPoster{}
	e.SetReporter(r)

	e.refreshList(context.Background())
	e.refreshList(context.Background())
	e.report()

	require.Len(t, r.commands, 1)
	c := r.commands[0]
	require.Equal(t, event.Report, c.Kind)
	require.Equal(t, "Polling", c.Category)
	require.Contains(t, c.Details, "list 2 times")
	require.Zero(t, atomic.LoadUint64(&e.listPolls))
}

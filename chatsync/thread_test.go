////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package chatsync

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"gitlab.com/elixxir/carechat/attachments"
	"gitlab.com/elixxir/carechat/conversation"
	"gitlab.com/elixxir/carechat/store"
)

func newTestThread(t *testing.T, b *mockBackend,
	viewer Viewer) (*Engine, *mockListener, *mockPreviewer) {
	l := &mockListener{}
	p := &mockPreviewer{}
	e := NewEngine(b, viewer, GetDefaultParams(), l, nil, p)
	return e, l, p
}

// Tests that when conversation B is opened while A's first fetch is still in
// flight, A's result is discarded and the thread only ever shows B.
func TestThread_Open_Superseded(t *testing.T) {
	b := newMockBackend()
	b.addMessages("A", 3)
	b.addMessages("B", 4)
	e, l, _ := newTestThread(t, b, staffViewer())
	th := e.Thread()
	ctx := context.Background()

	gate := b.gate("A")
	errC := make(chan error)
	go func() { errC <- th.Open(ctx, "A") }()

	select {
	case id := <-b.started:
		require.Equal(t, "A", id)
	case <-time.After(5 * time.Second):
		t.Fatal("fetch of A never started")
	}

	require.NoError(t, th.Open(ctx, "B"))
	close(gate)

	select {
	case err := <-errC:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("open of A never returned")
	}

	v := e.State().ThreadView()
	require.Equal(t, "B", v.ConversationID)
	require.Equal(t, Ready, v.Phase)
	require.Equal(t, messageIDs(b.messages["B"]), messageIDs(v.Messages))

	l.mux.Lock()
	defer l.mux.Unlock()
	for _, tv := range l.threads {
		for _, m := range tv.Messages {
			require.Equal(t, "B", m.ConversationID)
		}
	}
}

// Tests that paging back until there is no more history yields every message
// exactly once, in order.
func TestThread_LoadEarlier_FullHistory(t *testing.T) {
	b := newMockBackend()
	b.addMessages("c", 25)
	e, _, _ := newTestThread(t, b, staffViewer())
	th := e.Thread()
	ctx := context.Background()

	require.NoError(t, th.Open(ctx, "c"))
	v := e.State().ThreadView()
	require.Len(t, v.Messages, 10)
	require.True(t, v.HasMore)

	pages := 0
	for {
		loaded, err := th.LoadEarlier(ctx)
		require.NoError(t, err)
		if !loaded {
			break
		}
		pages++
		require.Less(t, pages, 10)
	}
	require.Equal(t, 2, pages)

	v = e.State().ThreadView()
	require.False(t, v.HasMore)
	require.False(t, v.LoadingEarlier)
	require.Equal(t, messageIDs(b.messages["c"]), messageIDs(v.Messages))

	// a poll afterwards keeps the paged-in history
	_, err := th.Refresh(ctx)
	require.NoError(t, err)
	require.Len(t, e.State().ThreadView().Messages, 25)
}

// Tests that when more than a page of messages arrives between polls, the
// poll replaces the thread with the newest page and paging back then yields
// every message exactly once with nothing skipped.
func TestThread_Refresh_BurstLeavesNoGap(t *testing.T) {
	b := newMockBackend()
	b.addMessages("c", 10)
	e, _, _ := newTestThread(t, b, staffViewer())
	th := e.Thread()
	ctx := context.Background()

	require.NoError(t, th.Open(ctx, "c"))
	require.False(t, e.State().ThreadView().HasMore)

	b.addMessages("c", 15)
	_, err := th.Refresh(ctx)
	require.NoError(t, err)

	v := e.State().ThreadView()
	require.Equal(t, messageIDs(b.messages["c"][15:]), messageIDs(v.Messages))
	require.True(t, v.HasMore)

	for i := 0; ; i++ {
		require.Less(t, i, 10)
		loaded, err := th.LoadEarlier(ctx)
		require.NoError(t, err)
		if !loaded {
			break
		}
	}

	v = e.State().ThreadView()
	require.False(t, v.HasMore)
	require.Equal(t, messageIDs(b.messages["c"]), messageIDs(v.Messages))
}

// Tests that a sent message is shown with the server's ID once Send returns,
// and that it is never shown before the backend accepts it.
func TestThread_Send_ShowsServerCopy(t *testing.T) {
	b := newMockBackend()
	b.addMessages("c", 2)
	e, _, _ := newTestThread(t, b, staffViewer())
	th := e.Thread()
	ctx := context.Background()
	require.NoError(t, th.Open(ctx, "c"))

	msg, err := th.Send(ctx, "  running late  ")
	require.NoError(t, err)
	require.Equal(t, "running late", msg.Content)
	require.Contains(t, msg.ID, "srv-")

	v := e.State().ThreadView()
	require.Len(t, v.Messages, 3)
	require.Equal(t, msg.ID, v.Messages[2].ID)
	require.False(t, v.Sending)

	b.sendErr = &store.StatusError{Status: 502}
	_, err = th.Send(ctx, "another")
	require.Error(t, err)
	require.Len(t, e.State().ThreadView().Messages, 3)
}

// Tests that sending staged files sends them in one message, clears the stage
// and releases their previews, and that a failed send keeps them staged.
func TestThread_Send_Attachments(t *testing.T) {
	b := newMockBackend()
	e, _, p := newTestThread(t, b, staffViewer())
	th := e.Thread()
	ctx := context.Background()
	require.NoError(t, th.Open(ctx, "c"))

	errs := th.Attachments().AddFiles([]attachments.File{
		attachments.FromBytes("photo.png", "image/png", []byte{1, 2, 3}),
		attachments.FromBytes("roster.pdf", "application/pdf", []byte{4}),
	})
	require.Empty(t, errs)
	require.Equal(t, 2, th.Attachments().Len())

	b.sendErr = errors.New("connection reset")
	_, err := th.Send(ctx, "")
	require.Error(t, err)
	require.Equal(t, 2, th.Attachments().Len())
	require.Empty(t, p.released)

	b.sendErr = nil
	msg, err := th.Send(ctx, "")
	require.NoError(t, err)
	require.Len(t, msg.Attachments, 2)
	require.Zero(t, th.Attachments().Len())
	require.Equal(t, []string{"preview-1"}, p.released)

	require.Len(t, b.sent, 1)
	require.Equal(t, []string{"photo.png", "roster.pdf"}, b.sent[0].files)
}

// Tests the send guards that never reach the network.
func TestThread_Send_Guards(t *testing.T) {
	b := newMockBackend()
	e, _, _ := newTestThread(t, b, staffViewer())
	th := e.Thread()
	ctx := context.Background()

	_, err := th.Send(ctx, "hello")
	require.ErrorIs(t, err, ErrNoThread)

	require.NoError(t, th.Open(ctx, "c"))
	_, err = th.Send(ctx, "   ")
	require.ErrorIs(t, err, ErrEmptyMessage)

	require.True(t, e.State().BeginSend())
	_, err = th.Send(ctx, "hello")
	require.ErrorIs(t, err, ErrSendInProgress)
	e.State().EndSend()

	require.Empty(t, b.sent)
}

// Tests that only staff may delete messages and that the thread shows the
// placeholder once a delete succeeds.
func TestThread_DeleteMessage(t *testing.T) {
	b := newMockBackend()
	b.addMessages("c", 2)
	ctx := context.Background()

	worker := Viewer{ID: "w1", Role: conversation.Role("support_worker")}
	e, _, _ := newTestThread(t, b, worker)
	require.NoError(t, e.Thread().Open(ctx, "c"))
	err := e.Thread().DeleteMessage(ctx, b.messages["c"][0].ID)
	require.ErrorIs(t, err, ErrNotStaff)
	require.Equal(t, store.Forbidden, store.Classify(err))
	require.Empty(t, b.deleted)

	e, _, _ = newTestThread(t, b, staffViewer())
	require.NoError(t, e.Thread().Open(ctx, "c"))
	target := b.messages["c"][0].ID
	require.NoError(t, e.Thread().DeleteMessage(ctx, target))
	require.Equal(t, []string{target}, b.deleted)

	v := e.State().ThreadView()
	content, atts := v.Messages[0].Visible()
	require.Equal(t, conversation.DefaultDeletedPlaceholder, content)
	require.Empty(t, atts)
}

// Tests that opening a conversation that does not exist shows not-found and
// that other first-load failures are returned.
func TestThread_Open_Errors(t *testing.T) {
	b := newMockBackend()
	b.getErr["gone"] = &store.StatusError{Status: 404}
	b.getErr["broken"] = &store.StatusError{Status: 500}
	e, _, _ := newTestThread(t, b, staffViewer())
	ctx := context.Background()

	err := e.Thread().Open(ctx, "gone")
	require.Equal(t, store.NotFound, store.Classify(err))
	require.Equal(t, NotFound, e.State().ThreadView().Phase)

	err = e.Thread().Open(ctx, "broken")
	require.Error(t, err)
	require.Equal(t, Failed, e.State().ThreadView().Phase)

	require.Error(t, e.Thread().Open(ctx, ""))
}

// Tests that closing the thread releases staged previews and stops refreshes.
func TestThread_Close(t *testing.T) {
	b := newMockBackend()
	e, _, p := newTestThread(t, b, staffViewer())
	th := e.Thread()
	ctx := context.Background()
	require.NoError(t, th.Open(ctx, "c"))

	require.Empty(t, th.Attachments().AddFiles([]attachments.File{
		attachments.FromBytes("a.jpg", "image/jpeg", []byte{1}),
	}))
	th.Close()
	require.Equal(t, []string{"preview-1"}, p.released)
	require.Empty(t, th.Active())

	refreshed, err := th.Refresh(ctx)
	require.NoError(t, err)
	require.False(t, refreshed)
}

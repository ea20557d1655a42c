////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package chatsync

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/elixxir/carechat/attachments"
	"gitlab.com/elixxir/carechat/conversation"
	"gitlab.com/elixxir/carechat/store"
)

// Thread errors. None of these reach the network.
var (
	ErrNoThread       = errors.New("no conversation is open")
	ErrEmptyMessage   = errors.New("message has no text and no attachments")
	ErrSendInProgress = errors.New("a message is already being sent")
	ErrNotStaff       = errors.WithMessage(store.ErrForbidden,
		"only staff may delete messages")
)

// Thread owns the open conversation's message window: opening, paging in
// history, sending and deleting. All state changes go through the shared
// State so results of superseded fetches are discarded.
type Thread struct {
	backend Backend
	state   *State
	viewer  Viewer
	stager  *attachments.Stager

	notify     func()
	notifyList func()
	// onSent is called after a message is accepted by the backend.
	onSent func()
	// onUnauthenticated is called when the backend rejects the session.
	onUnauthenticated func()
}

func newThread(backend Backend, state *State, viewer Viewer,
	stager *attachments.Stager) *Thread {
	return &Thread{
		backend:           backend,
		state:             state,
		viewer:            viewer,
		stager:            stager,
		notify:            func() {},
		notifyList:        func() {},
		onSent:            func() {},
		onUnauthenticated: func() {},
	}
}

// Attachments returns the files staged for the next message.
func (t *Thread) Attachments() *attachments.Stager {
	return t.stager
}

// Active returns the ID of the open conversation.
func (t *Thread) Active() string {
	return t.state.Active()
}

// Open makes id the open conversation and loads its newest messages. A later
// Open supersedes this one; if that happens before the fetch returns, the
// result is dropped and Open returns nil. Errors of a fetch that is still
// current are returned for display.
func (t *Thread) Open(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("conversation ID is empty")
	}

	seq := t.state.Open(id)
	jww.DEBUG.Printf("[Thread] Opening %s (%d)", id, seq)
	t.notify()

	d, err := t.backend.GetConversation(ctx, id, time.Time{})
	if err != nil {
		t.checkSession(err)
	}

	applied := t.state.Apply(Event{
		Target:         ThreadTarget,
		Seq:            seq,
		ConversationID: id,
		Detail:         d,
		Err:            err,
		Initial:        true,
	})
	if !applied {
		jww.DEBUG.Printf("[Thread] Open of %s was superseded", id)
		return nil
	}

	t.notify()
	// the open conversation's unread count was cleared
	t.notifyList()
	if err != nil {
		return errors.WithMessagef(err, "failed to open conversation %s", id)
	}
	return nil
}

// Close leaves the open conversation. Staged attachments are released.
func (t *Thread) Close() {
	t.state.Close()
	t.stager.Clear()
	t.notify()
}

// Refresh fetches the open conversation's newest window and merges it. It
// returns false, nil when no conversation is open.
func (t *Thread) Refresh(ctx context.Context) (bool, error) {
	id := t.state.Active()
	if id == "" {
		return false, nil
	}

	seq := t.state.Begin(ThreadTarget)
	d, err := t.backend.GetConversation(ctx, id, time.Time{})
	if err != nil {
		t.checkSession(err)
	}

	applied := t.state.Apply(Event{
		Target:         ThreadTarget,
		Seq:            seq,
		ConversationID: id,
		Detail:         d,
		Err:            err,
	})
	if applied {
		t.notify()
	}
	return applied, err
}

// LoadEarlier pages in the messages older than the oldest one loaded. It
// returns false without fetching when there is no more history, a page is
// already being fetched, or nothing is loaded yet to page back from.
func (t *Thread) LoadEarlier(ctx context.Context) (bool, error) {
	id, before, seq, ok := t.state.BeginHistory()
	if !ok {
		return false, nil
	}
	t.notify()

	jww.DEBUG.Printf("[Thread] Loading messages of %s before %s", id,
		before.UTC().Format(time.RFC3339Nano))
	d, err := t.backend.GetConversation(ctx, id, before)
	if err != nil {
		t.checkSession(err)
	}

	applied := t.state.Apply(Event{
		Target:         HistoryTarget,
		Seq:            seq,
		ConversationID: id,
		Detail:         d,
		Err:            err,
	})
	if applied {
		t.notify()
	}
	if err != nil {
		return false, errors.WithMessage(err, "failed to load earlier messages")
	}
	return applied, nil
}

// Send sends content with every staged file as a single message. Nothing is
// rendered until the backend has accepted the message; the thread is then
// refreshed so it shows the server's copy. On failure the staged files are
// kept so the send can be retried.
func (t *Thread) Send(ctx context.Context,
	content string) (conversation.Message, error) {
	content = strings.TrimSpace(content)
	staged := t.stager.Files()
	if content == "" && len(staged) == 0 {
		return conversation.Message{}, ErrEmptyMessage
	}

	id := t.state.Active()
	if id == "" {
		return conversation.Message{}, ErrNoThread
	}
	if !t.state.BeginSend() {
		return conversation.Message{}, ErrSendInProgress
	}
	t.notify()
	defer func() {
		t.state.EndSend()
		t.notify()
	}()

	var (
		msg conversation.Message
		err error
	)
	if len(staged) > 0 {
		files := make([]attachments.File, len(staged))
		for i, s := range staged {
			files[i] = s.File
		}
		msg, err = t.backend.SendAttachments(ctx, id, content, files)
	} else {
		msg, err = t.backend.SendMessage(ctx, id, content)
	}
	if err != nil {
		t.checkSession(err)
		return conversation.Message{}, errors.WithMessage(err,
			"failed to send message")
	}

	jww.INFO.Printf("[Thread] Sent message %s to %s with %d attachments",
		msg.ID, id, len(staged))
	t.stager.Clear()
	t.onSent()

	if _, err = t.Refresh(ctx); err != nil {
		jww.WARN.Printf("[Thread] Refresh after send failed: %+v", err)
	}
	return msg, nil
}

// DeleteMessage soft-deletes a message. Only staff may delete; any staff
// role may delete any message.
func (t *Thread) DeleteMessage(ctx context.Context, messageID string) error {
	if !t.viewer.Role.IsStaff() {
		return ErrNotStaff
	}

	if err := t.backend.DeleteMessage(ctx, messageID); err != nil {
		t.checkSession(err)
		return errors.WithMessagef(err, "failed to delete message %s",
			messageID)
	}

	if _, err := t.Refresh(ctx); err != nil {
		jww.WARN.Printf("[Thread] Refresh after delete failed: %+v", err)
	}
	return nil
}

// SetAtBottom records whether the viewer is at the newest message, which
// decides whether the next poll scrolls the view.
func (t *Thread) SetAtBottom(atBottom bool) {
	t.state.SetAtBottom(atBottom)
}

func (t *Thread) checkSession(err error) {
	if store.Classify(err) == store.Unauthenticated {
		t.onUnauthenticated()
	}
}

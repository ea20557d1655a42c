////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package cmd

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"gitlab.com/elixxir/carechat/attachments"
	"gitlab.com/elixxir/carechat/chatsync"
	"gitlab.com/elixxir/carechat/conversation"
	"gitlab.com/elixxir/carechat/store"
)

// failingBackend serves one empty conversation and rejects every send.
type failingBackend struct{}

func (failingBackend) ListConversations(
	context.Context) ([]conversation.Conversation, error) {
	return nil, nil
}

func (failingBackend) GetConversation(_ context.Context, id string,
	_ time.Time) (store.Detail, error) {
	return store.Detail{Conversation: conversation.Conversation{ID: id}}, nil
}

func (failingBackend) SendMessage(context.Context, string,
	string) (conversation.Message, error) {
	return conversation.Message{}, errors.New("send rejected")
}

func (failingBackend) SendAttachments(context.Context, string, string,
	[]attachments.File) (conversation.Message, error) {
	return conversation.Message{}, errors.New("upload rejected")
}

func (failingBackend) DeleteMessage(context.Context, string) error {
	return nil
}

func (failingBackend) CreateGroup(context.Context, string, string,
	[]string) (conversation.Conversation, error) {
	return conversation.Conversation{}, nil
}

func (failingBackend) MessageOffice(context.Context, string,
	string) (conversation.Conversation, error) {
	return conversation.Conversation{}, nil
}

// countingPreviewer records acquired and released references.
type countingPreviewer struct {
	acquired []string
	released []string
	mux      sync.Mutex
}

func (p *countingPreviewer) Acquire(f attachments.File) (string, error) {
	p.mux.Lock()
	defer p.mux.Unlock()
	ref := "preview-" + f.Name
	p.acquired = append(p.acquired, ref)
	return ref, nil
}

func (p *countingPreviewer) Release(ref string) {
	p.mux.Lock()
	defer p.mux.Unlock()
	p.released = append(p.released, ref)
}

// Tests that a failed send from the command line releases the preview of
// every staged image before the command exits.
func TestSendStaged_FailureReleasesPreviews(t *testing.T) {
	previewer := &countingPreviewer{}
	engine := chatsync.NewEngine(failingBackend{},
		chatsync.Viewer{ID: "me", Role: conversation.OfficeStaff},
		chatsync.GetDefaultParams(), nil, nil, previewer)
	thread := engine.Thread()
	ctx := context.Background()
	require.NoError(t, thread.Open(ctx, "c1"))

	errs := thread.Attachments().AddFiles([]attachments.File{
		attachments.FromBytes("a.png", "image/png", []byte("png")),
		attachments.FromBytes("b.jpg", "image/jpeg", []byte("jpg")),
	})
	require.Empty(t, errs)
	require.Len(t, previewer.acquired, 2)

	_, err := sendStaged(ctx, thread, "see attached")
	require.Error(t, err)
	require.Zero(t, thread.Attachments().Len())
	require.ElementsMatch(t, previewer.acquired, previewer.released)
}

// Tests that positional arguments are trimmed and that missing or blank
// ones are rejected before any request is made.
func TestArgAt(t *testing.T) {
	args := []string{" c1 ", "  ", "u7"}

	arg, err := argAt(args, 0, "conversation ID")
	require.NoError(t, err)
	require.Equal(t, "c1", arg)

	arg, err = argAt(args, 2, "user ID")
	require.NoError(t, err)
	require.Equal(t, "u7", arg)

	_, err = argAt(args, 1, "user ID")
	require.EqualError(t, err, "missing user ID")

	_, err = argAt(args, 3, "message ID")
	require.EqualError(t, err, "missing message ID")
}

////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package chatsync

import (
	"context"
	"time"

	"gitlab.com/elixxir/carechat/attachments"
	"gitlab.com/elixxir/carechat/conversation"
	"gitlab.com/elixxir/carechat/store"
)

// Backend is the part of the chat API the engine uses. *store.Client
// implements it.
type Backend interface {
	ListConversations(ctx context.Context) ([]conversation.Conversation, error)
	GetConversation(ctx context.Context, id string,
		before time.Time) (store.Detail, error)
	SendMessage(ctx context.Context, conversationID,
		content string) (conversation.Message, error)
	SendAttachments(ctx context.Context, conversationID, content string,
		files []attachments.File) (conversation.Message, error)
	DeleteMessage(ctx context.Context, messageID string) error
	CreateGroup(ctx context.Context, clientID, clientName string,
		memberIDs []string) (conversation.Conversation, error)
	MessageOffice(ctx context.Context, workerID,
		workerName string) (conversation.Conversation, error)
}

// Listener is told about every change to the list or the open thread. Calls
// are made on the goroutine that applied the change and must not block.
type Listener interface {
	ListUpdated(ListView)
	ThreadUpdated(ThreadView)
}

// Viewer is the signed-in user.
type Viewer struct {
	ID   string
	Name string
	Role conversation.Role
}

// ViewerFromSession returns the viewer a session authenticates as.
func ViewerFromSession(s store.Session) Viewer {
	return Viewer{ID: s.UserID, Name: s.Name, Role: s.Role}
}

type nopListener struct{}

func (nopListener) ListUpdated(ListView)     {}
func (nopListener) ThreadUpdated(ThreadView) {}

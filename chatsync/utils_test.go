////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package chatsync

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"gitlab.com/elixxir/carechat/attachments"
	"gitlab.com/elixxir/carechat/conversation"
	"gitlab.com/elixxir/carechat/store"
)

var testEpoch = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

type sentCall struct {
	conversationID string
	content        string
	files          []string
}

// mockBackend is an in-memory chat backend. GetConversation for an ID with a
// gate blocks until the gate is closed.
type mockBackend struct {
	conversations []conversation.Conversation
	messages      map[string][]conversation.Message
	pageSize      int

	listErr error
	getErr  map[string]error
	sendErr error
	gates   map[string]chan struct{}
	started chan string

	sent    []sentCall
	deleted []string
	created []string
	nextID  int

	listCalls int32
	getCalls  int32
	mux       sync.Mutex
}

func newMockBackend() *mockBackend {
	return &mockBackend{
		messages: map[string][]conversation.Message{},
		pageSize: 10,
		getErr:   map[string]error{},
		gates:    map[string]chan struct{}{},
		started:  make(chan string, 100),
	}
}

// addMessages appends n messages to the conversation, one minute apart.
func (m *mockBackend) addMessages(id string, n int) {
	m.mux.Lock()
	defer m.mux.Unlock()
	for i := 0; i < n; i++ {
		m.nextID++
		m.messages[id] = append(m.messages[id], conversation.Message{
			ID:             fmt.Sprintf("%s-m%03d", id, m.nextID),
			ConversationID: id,
			SenderID:       "u1",
			Content:        fmt.Sprintf("message %d", m.nextID),
			CreatedAt:      testEpoch.Add(time.Duration(m.nextID) * time.Minute),
		})
	}
}

func (m *mockBackend) setListErr(err error) {
	m.mux.Lock()
	m.listErr = err
	m.mux.Unlock()
}

func (m *mockBackend) gate(id string) chan struct{} {
	m.mux.Lock()
	defer m.mux.Unlock()
	g := make(chan struct{})
	m.gates[id] = g
	return g
}

func (m *mockBackend) ListConversations(
	context.Context) ([]conversation.Conversation, error) {
	atomic.AddInt32(&m.listCalls, 1)
	m.mux.Lock()
	defer m.mux.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]conversation.Conversation, len(m.conversations))
	copy(out, m.conversations)
	return out, nil
}

func (m *mockBackend) GetConversation(ctx context.Context, id string,
	before time.Time) (store.Detail, error) {
	atomic.AddInt32(&m.getCalls, 1)
	select {
	case m.started <- id:
	default:
	}

	m.mux.Lock()
	g := m.gates[id]
	m.mux.Unlock()
	if g != nil {
		select {
		case <-g:
		case <-ctx.Done():
			return store.Detail{}, ctx.Err()
		}
	}

	m.mux.Lock()
	defer m.mux.Unlock()
	if err := m.getErr[id]; err != nil {
		return store.Detail{}, err
	}

	var older []conversation.Message
	for _, msg := range m.messages[id] {
		if before.IsZero() || msg.CreatedAt.Before(before) {
			older = append(older, msg)
		}
	}
	sort.Slice(older, func(i, j int) bool { return older[i].Before(older[j]) })

	start := 0
	if len(older) > m.pageSize {
		start = len(older) - m.pageSize
	}
	page := make([]conversation.Message, len(older)-start)
	copy(page, older[start:])

	return store.Detail{
		Conversation: conversation.Conversation{ID: id, UnreadCount: 4},
		Messages:     page,
		HasMore:      start > 0,
	}, nil
}

func (m *mockBackend) send(id, content string,
	files []attachments.File) (conversation.Message, error) {
	m.mux.Lock()
	defer m.mux.Unlock()
	if m.sendErr != nil {
		return conversation.Message{}, m.sendErr
	}

	call := sentCall{conversationID: id, content: content}
	msg := conversation.Message{ConversationID: id, Content: content,
		SenderID: "me"}
	for _, f := range files {
		call.files = append(call.files, f.Name)
		msg.Attachments = append(msg.Attachments,
			conversation.Attachment{Filename: f.Name})
	}
	m.sent = append(m.sent, call)

	m.nextID++
	msg.ID = fmt.Sprintf("srv-%d", m.nextID)
	msg.CreatedAt = testEpoch.Add(time.Duration(m.nextID) * time.Minute)
	m.messages[id] = append(m.messages[id], msg)
	return msg, nil
}

func (m *mockBackend) SendMessage(_ context.Context, id,
	content string) (conversation.Message, error) {
	return m.send(id, content, nil)
}

func (m *mockBackend) SendAttachments(_ context.Context, id, content string,
	files []attachments.File) (conversation.Message, error) {
	return m.send(id, content, files)
}

func (m *mockBackend) DeleteMessage(_ context.Context, id string) error {
	m.mux.Lock()
	defer m.mux.Unlock()
	m.deleted = append(m.deleted, id)
	for conv, msgs := range m.messages {
		for i := range msgs {
			if msgs[i].ID == id {
				m.messages[conv][i].Deleted = true
			}
		}
	}
	return nil
}

func (m *mockBackend) CreateGroup(_ context.Context, clientID, clientName string,
	_ []string) (conversation.Conversation, error) {
	m.mux.Lock()
	defer m.mux.Unlock()
	c := conversation.Conversation{ID: "group-" + clientID,
		Kind: conversation.Group, Title: clientName, ClientID: clientID}
	m.conversations = append(m.conversations, c)
	m.created = append(m.created, c.ID)
	return c, nil
}

func (m *mockBackend) MessageOffice(_ context.Context, workerID,
	workerName string) (conversation.Conversation, error) {
	m.mux.Lock()
	defer m.mux.Unlock()
	c := conversation.Conversation{ID: "direct-" + workerID,
		Kind: conversation.Direct, Title: workerName}
	m.conversations = append(m.conversations, c)
	m.created = append(m.created, c.ID)
	return c, nil
}

// mockListener records every view it is given.
type mockListener struct {
	lists   []ListView
	threads []ThreadView
	mux     sync.Mutex
}

func (l *mockListener) ListUpdated(v ListView) {
	l.mux.Lock()
	l.lists = append(l.lists, v)
	l.mux.Unlock()
}

func (l *mockListener) ThreadUpdated(v ThreadView) {
	l.mux.Lock()
	l.threads = append(l.threads, v)
	l.mux.Unlock()
}

func (l *mockListener) listCount() int {
	l.mux.Lock()
	defer l.mux.Unlock()
	return len(l.lists)
}

// mockPreviewer hands out numbered references and tracks releases.
type mockPreviewer struct {
	next     int
	released []string
	mux      sync.Mutex
}

func (p *mockPreviewer) Acquire(attachments.File) (string, error) {
	p.mux.Lock()
	defer p.mux.Unlock()
	p.next++
	return fmt.Sprintf("preview-%d", p.next), nil
}

func (p *mockPreviewer) Release(ref string) {
	p.mux.Lock()
	p.released = append(p.released, ref)
	p.mux.Unlock()
}

func messageIDs(msgs []conversation.Message) []string {
	ids := make([]string, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
	}
	return ids
}

func staffViewer() Viewer {
	return Viewer{ID: "me", Name: "Office", Role: conversation.OfficeStaff}
}

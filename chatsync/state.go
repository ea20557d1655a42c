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
	"time"

	"github.com/golang-collections/collections/set"
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/elixxir/carechat/conversation"
	"gitlab.com/elixxir/carechat/store"
)

// Target is the piece of state a fetch result is applied to. Each target has
// its own sequence.
type Target uint8

const (
	ListTarget Target = iota
	ThreadTarget
	HistoryTarget
	numTargets
)

func (t Target) String() string {
	switch t {
	case ListTarget:
		return "list"
	case ThreadTarget:
		return "thread"
	case HistoryTarget:
		return "history"
	default:
		return "unknown"
	}
}

// Phase of the open thread.
type Phase uint8

const (
	// Idle means no conversation is open.
	Idle Phase = iota
	Loading
	Ready
	// NotFound replaces the thread when the conversation no longer exists.
	NotFound
	// Failed means the first load failed; the error is in ThreadView.Err.
	Failed
)

func (p Phase) String() string {
	switch p {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case NotFound:
		return "not found"
	case Failed:
		return "failed"
	default:
		return "idle"
	}
}

// Event is a completed fetch. Every mutation caused by the network goes
// through State.Apply with one of these.
type Event struct {
	Target Target
	Seq    uint64

	// ConversationID is the conversation a thread or history fetch was for.
	ConversationID string

	// Conversations is the result of a list fetch.
	Conversations []conversation.Conversation

	// Detail is the result of a thread or history fetch.
	Detail store.Detail

	Err error

	// Initial marks the first thread fetch after Open. Its errors are shown
	// to the viewer; errors of later ticks are not.
	Initial bool
}

// ListView is a snapshot of the conversation list.
type ListView struct {
	Filter        Filter
	Conversations []conversation.Conversation
	Unread        int
}

// ThreadView is a snapshot of the open thread.
type ThreadView struct {
	ConversationID string
	Conversation   conversation.Conversation
	Phase          Phase
	Err            error

	// Messages are in display order, oldest first.
	Messages []conversation.Message
	HasMore  bool

	LoadingEarlier bool
	Sending        bool

	// ScrollToBottom is set when the view should anchor to the newest
	// message after this update.
	ScrollToBottom bool
}

// State is the per-session chat state. It is only mutated through its
// methods, which serialize on a single lock and enforce the sequencing rule:
// a result is discarded unless its sequence is newer than the last one
// applied for its target and, for thread results, it is for the conversation
// that is open now.
type State struct {
	issued  [numTargets]uint64
	applied [numTargets]uint64

	conversations []conversation.Conversation
	filter        Filter

	active         string
	phase          Phase
	threadErr      error
	conv           conversation.Conversation
	messages       []conversation.Message
	hasMore        bool
	historyPending bool
	sending        bool
	atBottom       bool
	scrollToBottom bool

	mux sync.Mutex
}

// NewState returns an empty State.
func NewState() *State {
	return &State{atBottom: true}
}

// Begin issues the next sequence number for the target. It must be called
// before the fetch it tags is started.
func (s *State) Begin(t Target) uint64 {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.issued[t]++
	return s.issued[t]
}

// Apply applies a completed fetch and reports whether the state changed.
func (s *State) Apply(ev Event) bool {
	s.mux.Lock()
	defer s.mux.Unlock()

	switch ev.Target {
	case ListTarget:
		return s.applyList(ev)
	case ThreadTarget:
		return s.applyThread(ev)
	case HistoryTarget:
		return s.applyHistory(ev)
	default:
		jww.ERROR.Printf("[ChatSync] Event for unknown target %d", ev.Target)
		return false
	}
}

// stale reports whether ev is not newer than what was applied for its target.
func (s *State) stale(ev Event) bool {
	if ev.Seq <= s.applied[ev.Target] {
		jww.DEBUG.Printf("[ChatSync] Discarding %s result %d, %d already "+
			"applied", ev.Target, ev.Seq, s.applied[ev.Target])
		return true
	}
	return false
}

func (s *State) applyList(ev Event) bool {
	if ev.Err != nil || s.stale(ev) {
		return false
	}
	s.applied[ListTarget] = ev.Seq

	list := make([]conversation.Conversation, len(ev.Conversations))
	copy(list, ev.Conversations)
	for i := range list {
		if list[i].ID == s.active && s.phase == Ready {
			list[i].UnreadCount = 0
		}
	}
	sortByRecency(list)
	s.conversations = list

	return true
}

func (s *State) applyThread(ev Event) bool {
	if ev.ConversationID != s.active {
		jww.DEBUG.Printf("[ChatSync] Discarding thread result for %s, %q "+
			"is open", ev.ConversationID, s.active)
		return false
	}
	if s.stale(ev) {
		return false
	}

	if ev.Err != nil {
		notFound := store.Classify(ev.Err) == store.NotFound
		if !ev.Initial && !notFound {
			return false
		}
		s.applied[ThreadTarget] = ev.Seq
		s.threadErr = ev.Err
		s.messages = nil
		s.hasMore = false
		if notFound {
			s.phase = NotFound
		} else {
			s.phase = Failed
		}
		return true
	}

	s.applied[ThreadTarget] = ev.Seq

	window := sortedMessages(ev.Detail.Messages)
	if s.phase != Ready {
		s.messages = window
		s.hasMore = ev.Detail.HasMore
		s.scrollToBottom = true
	} else {
		var keptOlder bool
		s.messages, keptOlder = mergeWindow(s.messages, window)
		if !keptOlder {
			s.hasMore = ev.Detail.HasMore
		}
		s.scrollToBottom = s.atBottom
	}

	s.phase = Ready
	s.threadErr = nil
	s.conv = ev.Detail.Conversation
	if s.conv.ID == "" {
		s.conv.ID = ev.ConversationID
	}
	s.conv.UnreadCount = 0
	s.markRead(ev.ConversationID)

	return true
}

func (s *State) applyHistory(ev Event) bool {
	if ev.ConversationID != s.active || s.stale(ev) {
		return false
	}
	s.applied[HistoryTarget] = ev.Seq
	s.historyPending = false
	s.scrollToBottom = false

	if ev.Err != nil {
		return true
	}

	s.messages = mergeOlder(ev.Detail.Messages, s.messages)
	s.hasMore = ev.Detail.HasMore
	return true
}

// markRead zeroes the unread count of the conversation in the list.
func (s *State) markRead(id string) {
	for i := range s.conversations {
		if s.conversations[i].ID == id {
			s.conversations[i].UnreadCount = 0
		}
	}
}

// Open makes id the open conversation and returns the sequence of its first
// fetch. Every thread and history fetch already in flight becomes stale.
func (s *State) Open(id string) uint64 {
	s.mux.Lock()
	defer s.mux.Unlock()

	s.applied[ThreadTarget] = s.issued[ThreadTarget]
	s.applied[HistoryTarget] = s.issued[HistoryTarget]

	s.active = id
	s.phase = Loading
	s.threadErr = nil
	s.conv = conversation.Conversation{ID: id}
	s.messages = nil
	s.hasMore = false
	s.historyPending = false
	s.atBottom = true
	s.scrollToBottom = false

	s.issued[ThreadTarget]++
	return s.issued[ThreadTarget]
}

// Close leaves the open conversation.
func (s *State) Close() {
	s.mux.Lock()
	defer s.mux.Unlock()

	s.applied[ThreadTarget] = s.issued[ThreadTarget]
	s.applied[HistoryTarget] = s.issued[HistoryTarget]
	s.active = ""
	s.phase = Idle
	s.threadErr = nil
	s.conv = conversation.Conversation{}
	s.messages = nil
	s.hasMore = false
	s.historyPending = false
	s.sending = false
}

// Active returns the open conversation ID, or an empty string.
func (s *State) Active() string {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.active
}

// BeginHistory checks the guards of loading earlier messages and, when they
// pass, marks a history fetch as in flight. It returns the conversation, the
// timestamp to page before and the fetch sequence.
func (s *State) BeginHistory() (id string, before time.Time, seq uint64,
	ok bool) {
	s.mux.Lock()
	defer s.mux.Unlock()

	if s.active == "" || s.phase != Ready || !s.hasMore ||
		s.historyPending || len(s.messages) == 0 {
		return "", time.Time{}, 0, false
	}

	s.historyPending = true
	s.issued[HistoryTarget]++
	return s.active, s.messages[0].CreatedAt, s.issued[HistoryTarget], true
}

// BeginSend marks a send as in progress. It returns false if one already is.
func (s *State) BeginSend() bool {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.sending {
		return false
	}
	s.sending = true
	return true
}

// EndSend clears the sending flag.
func (s *State) EndSend() {
	s.mux.Lock()
	s.sending = false
	s.mux.Unlock()
}

// SetAtBottom records whether the viewer is scrolled to the newest message.
func (s *State) SetAtBottom(atBottom bool) {
	s.mux.Lock()
	s.atBottom = atBottom
	s.mux.Unlock()
}

// SetFilter selects the list filter.
func (s *State) SetFilter(f Filter) {
	s.mux.Lock()
	s.filter = f
	s.mux.Unlock()
}

// ListView returns a snapshot of the filtered list, newest first.
func (s *State) ListView() ListView {
	s.mux.Lock()
	defer s.mux.Unlock()

	v := ListView{
		Filter:        s.filter,
		Conversations: s.filter.Apply(s.conversations),
	}
	for _, c := range s.conversations {
		if c.Status != conversation.Archived {
			v.Unread += c.UnreadCount
		}
	}
	return v
}

// ThreadView returns a snapshot of the open thread and consumes the scroll
// request.
func (s *State) ThreadView() ThreadView {
	s.mux.Lock()
	defer s.mux.Unlock()

	v := ThreadView{
		ConversationID: s.active,
		Conversation:   s.conv,
		Phase:          s.phase,
		Err:            s.threadErr,
		Messages:       make([]conversation.Message, len(s.messages)),
		HasMore:        s.hasMore,
		LoadingEarlier: s.historyPending,
		Sending:        s.sending,
		ScrollToBottom: s.scrollToBottom,
	}
	copy(v.Messages, s.messages)
	s.scrollToBottom = false
	return v
}

// sortedMessages returns a copy of msgs in display order.
func sortedMessages(msgs []conversation.Message) []conversation.Message {
	out := make([]conversation.Message, len(msgs))
	copy(out, msgs)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// mergeWindow replaces the newest part of loaded with window. When the window
// reaches back to the newest loaded message, loaded messages older than the
// window are kept, so history the viewer paged in survives a poll. A window
// that starts after the newest loaded message leaves a gap, so it replaces
// loaded wholesale. It reports whether any were kept.
func mergeWindow(loaded,
	window []conversation.Message) ([]conversation.Message, bool) {
	if len(window) == 0 || len(loaded) == 0 ||
		loaded[len(loaded)-1].Before(window[0]) {
		return window, false
	}

	ids := set.New()
	for _, m := range window {
		ids.Insert(m.ID)
	}

	oldest := window[0]
	var older []conversation.Message
	for _, m := range loaded {
		if m.Before(oldest) && !ids.Has(m.ID) {
			older = append(older, m)
		}
	}

	return append(older, window...), len(older) > 0
}

// mergeOlder prepends a page of earlier messages. Messages already loaded,
// and any not strictly older than the oldest loaded one, are dropped so the
// result never holds duplicates and loaded messages never move.
func mergeOlder(page, loaded []conversation.Message) []conversation.Message {
	if len(loaded) == 0 {
		return sortedMessages(page)
	}

	ids := set.New()
	for _, m := range loaded {
		ids.Insert(m.ID)
	}

	oldest := loaded[0]
	older := make([]conversation.Message, 0, len(page)+len(loaded))
	for _, m := range sortedMessages(page) {
		if m.Before(oldest) && !ids.Has(m.ID) {
			ids.Insert(m.ID)
			older = append(older, m)
		}
	}

	return append(older, loaded...)
}

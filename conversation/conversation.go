////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package conversation contains the data model shared by the chat core:
// conversations, messages, attachments, members and push subscriptions.
//
// Every loosely typed field coming off the wire (conversation kind, sender
// type, classification, role) is normalized exactly once, while decoding, so
// the rest of the client never has to compare raw strings.
package conversation

import (
	"encoding/json"
	"strings"
	"time"

	jww "github.com/spf13/jwalterweatherman"
)

// Kind is the structural kind of conversation.
type Kind uint8

const (
	// Direct is a one to one thread between a staff member and the office.
	Direct Kind = iota
	// Group is a client scoped chat with any number of members.
	Group
)

// String returns the wire representation of the Kind.
func (k Kind) String() string {
	switch k {
	case Group:
		return "group"
	default:
		return "direct"
	}
}

// ParseKind normalizes every spelling of a conversation type the backend
// has been seen to emit. Anything unrecognized is treated as Direct.
func ParseKind(s string) Kind {
	switch normalizeToken(s) {
	case "group", "client_group", "clientgroup", "group_chat":
		return Group
	case "", "direct", "dm", "direct_message", "one_to_one":
		return Direct
	default:
		jww.WARN.Printf("[Conversation] Unknown conversation kind %q, "+
			"treating it as direct", s)
		return Direct
	}
}

// Classification drives the urgency styling of a conversation.
type Classification uint8

const (
	None Classification = iota
	Incident
	ShiftCover
	Callback
)

func (c Classification) String() string {
	switch c {
	case Incident:
		return "incident"
	case ShiftCover:
		return "shift_cover"
	case Callback:
		return "callback"
	default:
		return "none"
	}
}

// ParseClassification returns None for anything it does not recognize.
func ParseClassification(s string) Classification {
	switch normalizeToken(s) {
	case "incident":
		return Incident
	case "shift_cover", "shiftcover":
		return ShiftCover
	case "callback", "call_back":
		return Callback
	default:
		return None
	}
}

// Status of a conversation. Conversations are archived, never deleted.
type Status uint8

const (
	Active Status = iota
	Archived
)

func (s Status) String() string {
	if s == Archived {
		return "archived"
	}
	return "active"
}

// LastMessage is the denormalized summary of the newest message, used to sort
// the conversation list without fetching every thread.
type LastMessage struct {
	SenderName string    `json:"sender"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// Conversation is the summary of a thread as shown in the conversation list.
type Conversation struct {
	ID             string
	Kind           Kind
	Title          string
	ClientID       string
	MemberCount    int
	Classification Classification
	Status         Status
	LastMessage    *LastMessage
	UnreadCount    int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// RecencyTime is the time the conversation list is sorted by.
func (c Conversation) RecencyTime() time.Time {
	if c.LastMessage != nil && !c.LastMessage.CreatedAt.IsZero() {
		return c.LastMessage.CreatedAt
	}
	if !c.UpdatedAt.IsZero() {
		return c.UpdatedAt
	}
	return c.CreatedAt
}

// conversationWire is the tolerant decoding target for a conversation. Older
// rows carry the kind under "type" and the last message as flat columns.
type conversationWire struct {
	ID                 string       `json:"id"`
	Kind               string       `json:"kind"`
	Type               string       `json:"type"`
	Title              string       `json:"title"`
	Name               string       `json:"name"`
	ClientID           *string      `json:"client_id"`
	MemberCount        int          `json:"member_count"`
	Classification     string       `json:"classification"`
	Status             string       `json:"status"`
	LastMessage        *LastMessage `json:"last_message"`
	LastMessageContent string       `json:"last_message_content"`
	LastMessageSender  string       `json:"last_message_sender"`
	LastMessageAt      *time.Time   `json:"last_message_at"`
	UnreadCount        int          `json:"unread_count"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

// UnmarshalJSON decodes and normalizes a conversation.
func (c *Conversation) UnmarshalJSON(data []byte) error {
	var w conversationWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	kind := w.Kind
	if kind == "" {
		kind = w.Type
	}
	title := w.Title
	if title == "" {
		title = w.Name
	}

	*c = Conversation{
		ID:             w.ID,
		Kind:           ParseKind(kind),
		Title:          title,
		MemberCount:    w.MemberCount,
		Classification: ParseClassification(w.Classification),
		UnreadCount:    w.UnreadCount,
		CreatedAt:      w.CreatedAt,
		UpdatedAt:      w.UpdatedAt,
		LastMessage:    w.LastMessage,
	}
	if w.ClientID != nil {
		c.ClientID = *w.ClientID
	}
	if normalizeToken(w.Status) == "archived" {
		c.Status = Archived
	}
	if c.LastMessage == nil && w.LastMessageAt != nil {
		c.LastMessage = &LastMessage{
			SenderName: w.LastMessageSender,
			Content:    w.LastMessageContent,
			CreatedAt:  *w.LastMessageAt,
		}
	}
	if c.UnreadCount < 0 {
		c.UnreadCount = 0
	}

	return nil
}

// MarshalJSON emits the normalized form.
func (c Conversation) MarshalJSON() ([]byte, error) {
	w := conversationWire{
		ID:             c.ID,
		Kind:           c.Kind.String(),
		Title:          c.Title,
		MemberCount:    c.MemberCount,
		Classification: c.Classification.String(),
		Status:         c.Status.String(),
		LastMessage:    c.LastMessage,
		UnreadCount:    c.UnreadCount,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
	if c.ClientID != "" {
		clientID := c.ClientID
		w.ClientID = &clientID
	}
	return json.Marshal(w)
}

// normalizeToken lowercases, trims and folds spaces and dashes to
// underscores so that "Client Group", "client-group" and "client_group"
// compare equal.
func normalizeToken(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}

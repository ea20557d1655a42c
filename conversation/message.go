////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package conversation

import (
	"encoding/json"
	"time"
)

// DefaultDeletedPlaceholder is shown for a deleted message when the backend
// did not supply its own placeholder text.
const DefaultDeletedPlaceholder = "This message was deleted"

// SenderType identifies who authored a message.
type SenderType uint8

const (
	User SenderType = iota
	Worker
	AI
	System
)

func (s SenderType) String() string {
	switch s {
	case Worker:
		return "worker"
	case AI:
		return "ai"
	case System:
		return "system"
	default:
		return "user"
	}
}

// ParseSenderType normalizes the sender_type column.
func ParseSenderType(s string) SenderType {
	switch normalizeToken(s) {
	case "worker", "staff_worker", "support_worker":
		return Worker
	case "ai", "assistant", "bot":
		return AI
	case "system":
		return System
	default:
		return User
	}
}

// Category of an attachment.
type Category uint8

const (
	Image Category = iota
	Video
	Document
)

func (c Category) String() string {
	switch c {
	case Video:
		return "video"
	case Document:
		return "document"
	default:
		return "image"
	}
}

// ParseCategory normalizes the file_category column.
func ParseCategory(s string) Category {
	switch normalizeToken(s) {
	case "video":
		return Video
	case "document", "doc", "file":
		return Document
	default:
		return Image
	}
}

// Attachment is a file stored alongside a message.
type Attachment struct {
	ID           string   `json:"id"`
	MessageID    string   `json:"message_id"`
	Category     Category `json:"-"`
	FileURL      string   `json:"file_url"`
	ThumbnailURL string   `json:"thumbnail_url,omitempty"`
	Filename     string   `json:"filename"`
	FileSize     int64    `json:"file_size"`
}

type attachmentAlias Attachment

type attachmentWire struct {
	attachmentAlias
	FileCategory string `json:"file_category"`
}

func (a *Attachment) UnmarshalJSON(data []byte) error {
	var w attachmentWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*a = Attachment(w.attachmentAlias)
	a.Category = ParseCategory(w.FileCategory)
	// thumbnails only exist for visual media
	if a.Category == Document {
		a.ThumbnailURL = ""
	}
	return nil
}

func (a Attachment) MarshalJSON() ([]byte, error) {
	return json.Marshal(attachmentWire{
		attachmentAlias: attachmentAlias(a),
		FileCategory:    a.Category.String(),
	})
}

// Message is a single entry in a conversation's timeline. CreatedAt is
// assigned by the server and is the authoritative ordering key.
type Message struct {
	ID                 string
	ConversationID     string
	SenderID           string
	SenderName         string
	SenderType         SenderType
	Content            string
	CreatedAt          time.Time
	Attachments        []Attachment
	Deleted            bool
	DeletedPlaceholder string
}

// Visible returns what may be rendered for the message. A deleted message
// exposes only its placeholder and never its content or attachments.
func (m Message) Visible() (content string, attachments []Attachment) {
	if m.Deleted {
		if m.DeletedPlaceholder == "" {
			return DefaultDeletedPlaceholder, nil
		}
		return m.DeletedPlaceholder, nil
	}
	return m.Content, m.Attachments
}

type messageWire struct {
	ID                 string       `json:"id"`
	ConversationID     string       `json:"conversation_id"`
	SenderID           string       `json:"sender_id"`
	SenderName         string       `json:"sender_name,omitempty"`
	SenderType         string       `json:"sender_type"`
	Content            *string      `json:"content"`
	CreatedAt          time.Time    `json:"created_at"`
	Attachments        []Attachment `json:"attachments,omitempty"`
	Deleted            bool         `json:"deleted"`
	IsDeleted          bool         `json:"is_deleted,omitempty"`
	DeletedPlaceholder string       `json:"deleted_placeholder,omitempty"`
}

func (m *Message) UnmarshalJSON(data []byte) error {
	var w messageWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*m = Message{
		ID:                 w.ID,
		ConversationID:     w.ConversationID,
		SenderID:           w.SenderID,
		SenderName:         w.SenderName,
		SenderType:         ParseSenderType(w.SenderType),
		CreatedAt:          w.CreatedAt,
		Attachments:        w.Attachments,
		Deleted:            w.Deleted || w.IsDeleted,
		DeletedPlaceholder: w.DeletedPlaceholder,
	}
	if w.Content != nil {
		m.Content = *w.Content
	}
	return nil
}

func (m Message) MarshalJSON() ([]byte, error) {
	w := messageWire{
		ID:                 m.ID,
		ConversationID:     m.ConversationID,
		SenderID:           m.SenderID,
		SenderName:         m.SenderName,
		SenderType:         m.SenderType.String(),
		CreatedAt:          m.CreatedAt,
		Attachments:        m.Attachments,
		Deleted:            m.Deleted,
		DeletedPlaceholder: m.DeletedPlaceholder,
	}
	if m.Content != "" {
		content := m.Content
		w.Content = &content
	}
	return json.Marshal(w)
}

// Before reports whether m sorts before o. Ties on the server timestamp are
// broken by ID so that the order is total.
func (m Message) Before(o Message) bool {
	if m.CreatedAt.Equal(o.CreatedAt) {
		return m.ID < o.ID
	}
	return m.CreatedAt.Before(o.CreatedAt)
}

////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package display turns the thread and conversation list into render-ready
// rows. It owns no state; everything is derived from the messages passed in
// and the configured timezone.
package display

import (
	"strings"
	"time"

	"gitlab.com/xx_network/primitives/netTime"

	"gitlab.com/elixxir/carechat/conversation"
)

// Labels for the two relative separators.
const (
	Today     = "Today"
	Yesterday = "Yesterday"
)

// Kind selects how a message row is drawn.
type Kind uint8

const (
	// Other is a message from another human.
	Other Kind = iota
	// Own is a message sent by the viewer.
	Own
	// Assistant is a message authored by the AI sender.
	Assistant
	// Notice is a system message, drawn centred and de-emphasized.
	Notice
	// Removed is a soft-deleted message; only its placeholder is shown.
	Removed
)

func (k Kind) String() string {
	switch k {
	case Own:
		return "own"
	case Assistant:
		return "assistant"
	case Notice:
		return "notice"
	case Removed:
		return "removed"
	default:
		return "other"
	}
}

// Line is one rendered message.
type Line struct {
	ID          string
	Kind        Kind
	Sender      string
	Text        string
	Time        string
	Attachments []conversation.Attachment

	// EmojiOnly is set for short messages made only of emoji, which are
	// drawn enlarged.
	EmojiOnly bool
}

// Row is either a date separator or a message.
type Row struct {
	Separator string
	Line      *Line
}

// IsSeparator reports whether the row is a date separator.
func (r Row) IsSeparator() bool {
	return r.Line == nil
}

// Formatter renders timestamps in a fixed location.
type Formatter struct {
	loc    *time.Location
	params Params
	now    func() time.Time
}

// NewFormatter builds a Formatter for the params. An unloadable timezone
// falls back to UTC.
func NewFormatter(p Params) *Formatter {
	def := GetDefaultParams()
	if p.DateLayout == "" {
		p.DateLayout = def.DateLayout
	}
	if p.TimeLayout == "" {
		p.TimeLayout = def.TimeLayout
	}
	return &Formatter{
		loc:    LoadLocation(p.Timezone),
		params: p,
		now:    netTime.Now,
	}
}

// Location returns the location dates are computed in.
func (f *Formatter) Location() *time.Location {
	return f.loc
}

// Timeline groups messages, which must already be in display order, under
// date separators and classifies each row. viewerID identifies the viewer's
// own messages.
func (f *Formatter) Timeline(msgs []conversation.Message,
	viewerID string) []Row {
	rows := make([]Row, 0, len(msgs)+len(msgs)/4+1)
	now := f.now().In(f.loc)

	var lastDay time.Time
	for i := range msgs {
		m := msgs[i]
		day := startOfDay(m.CreatedAt.In(f.loc))
		if i == 0 || !day.Equal(lastDay) {
			rows = append(rows, Row{Separator: f.separator(day, now)})
			lastDay = day
		}
		rows = append(rows, Row{Line: f.line(m, viewerID)})
	}

	return rows
}

// DateLabel returns the separator label for t as of now.
func (f *Formatter) DateLabel(t time.Time) string {
	return f.separator(startOfDay(t.In(f.loc)), f.now().In(f.loc))
}

// ListTime is the short timestamp shown against a conversation in the list:
// the time for today, Yesterday, or the date.
func (f *Formatter) ListTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	local := t.In(f.loc)
	switch f.DateLabel(t) {
	case Today:
		return local.Format(f.params.TimeLayout)
	case Yesterday:
		return Yesterday
	default:
		return local.Format("2 Jan 2006")
	}
}

func (f *Formatter) separator(day, now time.Time) string {
	today := startOfDay(now)
	switch {
	case day.Equal(today):
		return Today
	case day.Equal(today.AddDate(0, 0, -1)):
		return Yesterday
	default:
		return day.Format(f.params.DateLayout)
	}
}

func (f *Formatter) line(m conversation.Message, viewerID string) *Line {
	text, files := m.Visible()
	l := &Line{
		ID:          m.ID,
		Sender:      m.SenderName,
		Text:        text,
		Time:        m.CreatedAt.In(f.loc).Format(f.params.TimeLayout),
		Attachments: files,
	}

	switch {
	case m.Deleted:
		l.Kind = Removed
	case m.SenderType == conversation.System:
		l.Kind = Notice
	case m.SenderType == conversation.AI:
		l.Kind = Assistant
	case viewerID != "" && m.SenderID == viewerID:
		l.Kind = Own
	default:
		l.Kind = Other
	}

	if l.Kind != Removed && len(files) == 0 {
		l.EmojiOnly = EmojiOnly(text)
	}

	return l
}

// startOfDay truncates t to midnight in its own location. Truncate cannot be
// used as it works in absolute time.
func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Preview shortens a message for the conversation list.
func Preview(content string, max int) string {
	content = strings.Join(strings.Fields(content), " ")
	r := []rune(content)
	if max <= 0 || len(r) <= max {
		return content
	}
	return strings.TrimSpace(string(r[:max])) + "…"
}

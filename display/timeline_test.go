////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package display

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gitlab.com/elixxir/carechat/conversation"
)

func newTestFormatter(now time.Time) *Formatter {
	f := NewFormatter(GetDefaultParams())
	f.now = func() time.Time { return now }
	return f
}

// Tests that separators follow the configured timezone and not UTC. Both
// messages fall on the same UTC day but on different Sydney days.
func TestFormatter_Timeline_Timezone(t *testing.T) {
	now := time.Date(2024, 5, 10, 2, 0, 0, 0, time.UTC)
	f := newTestFormatter(now)

	msgs := []conversation.Message{
		{ID: "m0", CreatedAt: time.Date(2024, 5, 1, 1, 0, 0, 0, time.UTC)},
		{ID: "m1", CreatedAt: time.Date(2024, 5, 9, 13, 30, 0, 0, time.UTC)},
		{ID: "m2", CreatedAt: time.Date(2024, 5, 9, 14, 30, 0, 0, time.UTC)},
		{ID: "m3", CreatedAt: time.Date(2024, 5, 9, 15, 0, 0, 0, time.UTC)},
	}

	rows := f.Timeline(msgs, "")
	var got []string
	for _, r := range rows {
		if r.IsSeparator() {
			got = append(got, r.Separator)
		} else {
			got = append(got, r.Line.ID)
		}
	}

	require.Equal(t, []string{"Wednesday, 1 May 2024", "m0", Yesterday, "m1",
		Today, "m2", "m3"}, got)
	require.Equal(t, "12:30 AM", rows[5].Line.Time)
}

// Tests that an unknown timezone falls back to UTC.
func TestNewFormatter_BadTimezone(t *testing.T) {
	f := NewFormatter(Params{Timezone: "Mars/Olympus_Mons"})
	require.Equal(t, time.UTC, f.Location())

	f.now = func() time.Time { return time.Date(2024, 5, 9, 23, 0, 0, 0, time.UTC) }
	require.Equal(t, Today, f.DateLabel(time.Date(2024, 5, 9, 1, 0, 0, 0, time.UTC)))
}

// Tests the classification of message rows.
func TestFormatter_Timeline_Kinds(t *testing.T) {
	now := time.Date(2024, 5, 10, 2, 0, 0, 0, time.UTC)
	f := newTestFormatter(now)
	at := now.Add(-time.Minute)

	msgs := []conversation.Message{
		{ID: "own", SenderID: "me", Content: "on my way", CreatedAt: at},
		{ID: "other", SenderID: "you", Content: "thanks", CreatedAt: at},
		{ID: "ai", SenderID: "bot", SenderType: conversation.AI,
			Content: "summary", CreatedAt: at},
		{ID: "sys", SenderType: conversation.System,
			Content: "Sam joined", CreatedAt: at},
		{ID: "gone", SenderID: "me", Content: "oops", Deleted: true,
			Attachments: []conversation.Attachment{{ID: "a"}}, CreatedAt: at},
		{ID: "wave", SenderID: "you", Content: "👋", CreatedAt: at},
	}

	rows := f.Timeline(msgs, "me")
	require.Len(t, rows, len(msgs)+1)

	expected := []Kind{Own, Other, Assistant, Notice, Removed, Other}
	for i, k := range expected {
		require.Equal(t, k, rows[i+1].Line.Kind, rows[i+1].Line.ID)
	}

	gone := rows[5].Line
	require.Equal(t, conversation.DefaultDeletedPlaceholder, gone.Text)
	require.Empty(t, gone.Attachments)
	require.True(t, rows[6].Line.EmojiOnly)
	require.False(t, rows[1].Line.EmojiOnly)
}

// Tests the emoji-only detection.
func TestEmojiOnly(t *testing.T) {
	require.True(t, EmojiOnly("👍"))
	require.True(t, EmojiOnly(" 🎉 "))
	require.False(t, EmojiOnly("ok 👍"))
	require.False(t, EmojiOnly("ok"))
	require.False(t, EmojiOnly(""))
}

// Tests that list rows use the time today and a label or date otherwise.
func TestFormatter_Summaries(t *testing.T) {
	now := time.Date(2024, 5, 10, 2, 0, 0, 0, time.UTC)
	f := newTestFormatter(now)

	list := []conversation.Conversation{
		{ID: "g", Kind: conversation.Group, Title: "Alex B",
			Classification: conversation.Incident, UnreadCount: 2,
			LastMessage: &conversation.LastMessage{SenderName: "Sam",
				Content: "fell   over\nin the garden",
				CreatedAt: now.Add(-time.Hour)}},
		{ID: "d", Kind: conversation.Direct,
			UpdatedAt: now.Add(-24 * time.Hour)},
	}

	rows := f.Summaries(list)
	require.Equal(t, "Sam: fell over in the garden", rows[0].Preview)
	require.Equal(t, "11:00 AM", rows[0].Time)
	require.True(t, rows[0].Urgent)
	require.Equal(t, 2, rows[0].Unread)
	require.Equal(t, "Untitled direct", rows[1].Title)
	require.Equal(t, Yesterday, rows[1].Time)
}

// Tests that Preview collapses whitespace and truncates by rune.
func TestPreview(t *testing.T) {
	require.Equal(t, "a b", Preview(" a \n b ", 10))
	require.Equal(t, "héllo…", Preview("héllo world", 5))
}

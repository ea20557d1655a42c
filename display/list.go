////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package display

import (
	"gitlab.com/elixxir/carechat/conversation"
)

const previewLength = 60

// Summary is one row of the conversation list.
type Summary struct {
	ID      string
	Title   string
	Kind    conversation.Kind
	Preview string
	Time    string
	Unread  int

	// Urgent is set for classifications that are highlighted in the list.
	Urgent bool
}

// Summaries renders the conversation list in the order given.
func (f *Formatter) Summaries(list []conversation.Conversation) []Summary {
	out := make([]Summary, len(list))
	for i, c := range list {
		s := Summary{
			ID:     c.ID,
			Title:  c.Title,
			Kind:   c.Kind,
			Time:   f.ListTime(c.RecencyTime()),
			Unread: c.UnreadCount,
			Urgent: c.Classification == conversation.Incident,
		}
		if s.Title == "" {
			s.Title = "Untitled " + c.Kind.String()
		}
		if c.LastMessage != nil {
			s.Preview = Preview(c.LastMessage.Content, previewLength)
			if c.LastMessage.SenderName != "" && c.Kind == conversation.Group {
				s.Preview = c.LastMessage.SenderName + ": " + s.Preview
			}
		}
		out[i] = s
	}
	return out
}

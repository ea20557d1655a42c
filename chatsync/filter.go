////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package chatsync

import (
	"sort"
	"strings"

	"github.com/pkg/errors"

	"gitlab.com/elixxir/carechat/conversation"
)

// Filter selects which conversations the list shows.
type Filter uint8

const (
	All Filter = iota
	Direct
	Groups
	Unread
	Incidents
)

const unknownFilterErr = "unknown conversation filter %q"

func (f Filter) String() string {
	switch f {
	case Direct:
		return "direct"
	case Groups:
		return "groups"
	case Unread:
		return "unread"
	case Incidents:
		return "incidents"
	default:
		return "all"
	}
}

// ParseFilter parses the name of a Filter.
func ParseFilter(s string) (Filter, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return All, nil
	case "direct":
		return Direct, nil
	case "group", "groups":
		return Groups, nil
	case "unread":
		return Unread, nil
	case "incident", "incidents":
		return Incidents, nil
	default:
		return All, errors.Errorf(unknownFilterErr, s)
	}
}

// Match reports whether the filter admits c. Archived conversations are never
// listed.
func (f Filter) Match(c conversation.Conversation) bool {
	if c.Status == conversation.Archived {
		return false
	}
	switch f {
	case Direct:
		return c.Kind == conversation.Direct
	case Groups:
		return c.Kind == conversation.Group
	case Unread:
		return c.UnreadCount > 0
	case Incidents:
		return c.Classification == conversation.Incident
	default:
		return true
	}
}

// Apply returns the conversations admitted by the filter, preserving order.
func (f Filter) Apply(list []conversation.Conversation) []conversation.Conversation {
	out := make([]conversation.Conversation, 0, len(list))
	for _, c := range list {
		if f.Match(c) {
			out = append(out, c)
		}
	}
	return out
}

// sortByRecency orders conversations newest first. Ties are broken by ID so
// repeated polls of the same data produce the same order.
func sortByRecency(list []conversation.Conversation) {
	sort.SliceStable(list, func(i, j int) bool {
		ti, tj := list[i].RecencyTime(), list[j].RecencyTime()
		if ti.Equal(tj) {
			return list[i].ID < list[j].ID
		}
		return ti.After(tj)
	})
}

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

// Role is a viewer's or member's organisational role.
type Role string

// The staff roles. Only these may mutate group membership or moderate
// messages.
const (
	SuperAdmin    Role = "superadmin"
	Director      Role = "director"
	Admin         Role = "admin"
	TeamLeader    Role = "team_leader"
	RosterOfficer Role = "roster_officer"
	Manager       Role = "manager"
	CEO           Role = "ceo"
	OfficeStaff   Role = "office_staff"
)

var staffRoles = map[Role]struct{}{
	SuperAdmin:    {},
	Director:      {},
	Admin:         {},
	TeamLeader:    {},
	RosterOfficer: {},
	Manager:       {},
	CEO:           {},
	OfficeStaff:   {},
}

// ParseRole normalizes a role string.
func ParseRole(s string) Role {
	return Role(normalizeToken(s))
}

// IsStaff reports whether the role is one of the staff roles.
func (r Role) IsStaff() bool {
	_, ok := staffRoles[ParseRole(string(r))]
	return ok
}

// StaffRoles returns the staff role set.
func StaffRoles() []Role {
	return []Role{SuperAdmin, Director, Admin, TeamLeader, RosterOfficer,
		Manager, CEO, OfficeStaff}
}

// Member is a (conversation, user) pair. Removed members are kept with
// Active false and a RemovedReason rather than being purged.
type Member struct {
	ConversationID string
	UserID         string
	UserName       string
	UserType       string
	Role           Role
	Active         bool
	RemovedReason  string
	JoinedAt       time.Time
}

type memberWire struct {
	ConversationID string    `json:"conversation_id"`
	UserID         string    `json:"user_id"`
	UserName       string    `json:"user_name"`
	UserType       string    `json:"user_type,omitempty"`
	Role           string    `json:"role,omitempty"`
	Active         *bool     `json:"active"`
	IsActive       *bool     `json:"is_active,omitempty"`
	RemovedReason  string    `json:"removed_reason,omitempty"`
	JoinedAt       time.Time `json:"joined_at"`
}

// UnmarshalJSON decodes a member. A row without an active column is active.
func (m *Member) UnmarshalJSON(data []byte) error {
	var w memberWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*m = Member{
		ConversationID: w.ConversationID,
		UserID:         w.UserID,
		UserName:       w.UserName,
		UserType:       w.UserType,
		Role:           ParseRole(w.Role),
		Active:         true,
		RemovedReason:  w.RemovedReason,
		JoinedAt:       w.JoinedAt,
	}
	if w.Active != nil {
		m.Active = *w.Active
	} else if w.IsActive != nil {
		m.Active = *w.IsActive
	}
	return nil
}

func (m Member) MarshalJSON() ([]byte, error) {
	active := m.Active
	return json.Marshal(memberWire{
		ConversationID: m.ConversationID,
		UserID:         m.UserID,
		UserName:       m.UserName,
		UserType:       m.UserType,
		Role:           string(m.Role),
		Active:         &active,
		RemovedReason:  m.RemovedReason,
		JoinedAt:       m.JoinedAt,
	})
}

// PushSubscription is a browser or device push registration. The pair
// (UserID, Endpoint) is unique; re-subscribing the same endpoint upserts.
type PushSubscription struct {
	UserID     string          `json:"user_id,omitempty"`
	Endpoint   string          `json:"endpoint"`
	Blob       json.RawMessage `json:"subscription"`
	DeviceInfo string          `json:"device_info"`
}

// MediaItem is a read-only projection of an attachment for a client's
// gallery.
type MediaItem struct {
	Attachment
	ConversationID string    `json:"conversation_id"`
	SenderName     string    `json:"sender_name"`
	CreatedAt      time.Time `json:"created_at"`
}

type mediaExtra struct {
	ConversationID string    `json:"conversation_id"`
	SenderName     string    `json:"sender_name"`
	CreatedAt      time.Time `json:"created_at"`
}

// UnmarshalJSON is needed because the embedded Attachment's own decoder would
// otherwise swallow the whole object.
func (mi *MediaItem) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, &mi.Attachment); err != nil {
		return err
	}
	var extra mediaExtra
	if err := json.Unmarshal(data, &extra); err != nil {
		return err
	}
	mi.ConversationID = extra.ConversationID
	mi.SenderName = extra.SenderName
	mi.CreatedAt = extra.CreatedAt
	return nil
}

func (mi MediaItem) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(mi.Attachment)
	if err != nil {
		return nil, err
	}
	fields := make(map[string]json.RawMessage)
	if err = json.Unmarshal(base, &fields); err != nil {
		return nil, err
	}
	extra, err := json.Marshal(mediaExtra{mi.ConversationID, mi.SenderName,
		mi.CreatedAt})
	if err != nil {
		return nil, err
	}
	if err = json.Unmarshal(extra, &fields); err != nil {
		return nil, err
	}
	return json.Marshal(fields)
}

////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package membership adds and removes members of group conversations. Every
// mutation is followed by a full re-fetch of the member list; the local
// roster is only patched optimistically until that fetch returns.
package membership

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/xx_network/primitives/netTime"

	"gitlab.com/elixxir/carechat/conversation"
	"gitlab.com/elixxir/carechat/store"
)

// Error messages.
const (
	missingUserErr   = "a member needs both a name and an ID, got %q and %q"
	notGroupErr      = "conversation %s is a %s conversation"
	addMemberErr     = "failed to add %s to %s"
	removeMemberErr  = "failed to remove %s from %s"
	listMembersErr   = "failed to list members of %s"
	removeConfirmMsg = "Remove %s from %s? They will move to former members."
)

// RemovedByStaff is the reason recorded locally for a member removed through
// this client until the server's reason is fetched.
const RemovedByStaff = "Removed by staff"

// Membership errors. None of these reach the network.
var (
	ErrNotStaff = errors.WithMessage(store.ErrForbidden,
		"only staff may change conversation members")
	ErrMissingUser  = errors.New("member name or ID is blank")
	ErrNotGroup     = errors.New("only group conversations have mutable members")
	ErrNotConfirmed = errors.New("member removal was not confirmed")
)

// Backend is the part of the chat API membership uses. *store.Client
// implements it.
type Backend interface {
	ListMembers(ctx context.Context,
		conversationID string) ([]conversation.Member, error)
	AddMember(ctx context.Context, conversationID, userID, userName,
		userType string) (conversation.Member, error)
	RemoveMember(ctx context.Context, conversationID, userID string) error
}

// Confirmer asks the viewer to confirm a destructive action.
type Confirmer interface {
	Confirm(prompt string) bool
}

// ConfirmFunc adapts a function to a Confirmer.
type ConfirmFunc func(prompt string) bool

func (f ConfirmFunc) Confirm(prompt string) bool { return f(prompt) }

// UserRef identifies the user being added.
type UserRef struct {
	ID   string
	Name string
	Type string
}

// Roster is the member list of one conversation, split into current and
// former members. Former members keep their removal reason.
type Roster struct {
	Active []conversation.Member
	Former []conversation.Member
}

// Len returns the number of active members.
func (r Roster) Len() int {
	return len(r.Active)
}

// Manager mutates membership on behalf of one viewer.
type Manager struct {
	backend Backend
	role    conversation.Role

	rosters map[string]Roster
	mux     sync.Mutex
}

// NewManager returns a Manager for a viewer with the given role.
func NewManager(backend Backend, role conversation.Role) *Manager {
	return &Manager{
		backend: backend,
		role:    role,
		rosters: make(map[string]Roster),
	}
}

// CanManage reports whether membership controls should be shown to the
// viewer.
func (m *Manager) CanManage() bool {
	return m.role.IsStaff()
}

// Roster returns the last known roster of the conversation.
func (m *Manager) Roster(conversationID string) (Roster, bool) {
	m.mux.Lock()
	defer m.mux.Unlock()
	r, ok := m.rosters[conversationID]
	return r, ok
}

// ListMembers fetches the conversation's members and replaces the local
// roster.
func (m *Manager) ListMembers(ctx context.Context,
	conversationID string) (Roster, error) {
	members, err := m.backend.ListMembers(ctx, conversationID)
	if err != nil {
		return Roster{}, errors.WithMessagef(err, listMembersErr,
			conversationID)
	}

	r := split(members)
	m.mux.Lock()
	m.rosters[conversationID] = r
	m.mux.Unlock()
	return r, nil
}

// AddMember adds a user to a group conversation and returns the refreshed
// roster. If the refresh fails the optimistic roster is returned.
func (m *Manager) AddMember(ctx context.Context, c conversation.Conversation,
	user UserRef) (Roster, error) {
	if !m.CanManage() {
		return Roster{}, ErrNotStaff
	}
	user.ID = strings.TrimSpace(user.ID)
	user.Name = strings.TrimSpace(user.Name)
	if user.ID == "" || user.Name == "" {
		return Roster{}, errors.WithMessagef(ErrMissingUser, missingUserErr,
			user.Name, user.ID)
	}
	if c.Kind != conversation.Group {
		return Roster{}, errors.WithMessagef(ErrNotGroup, notGroupErr, c.ID,
			c.Kind)
	}

	added, err := m.backend.AddMember(ctx, c.ID, user.ID, user.Name,
		user.Type)
	if err != nil {
		return Roster{}, errors.WithMessagef(err, addMemberErr, user.Name,
			c.ID)
	}
	if added.UserID == "" {
		added = conversation.Member{ConversationID: c.ID, UserID: user.ID,
			UserName: user.Name, UserType: user.Type, Active: true,
			JoinedAt: netTime.Now()}
	}
	jww.INFO.Printf("[Members] Added %s (%s) to %s", user.Name, user.ID, c.ID)

	optimistic := m.patch(c.ID, func(r Roster) Roster {
		r.Former = without(r.Former, added.UserID)
		r.Active = append(without(r.Active, added.UserID), added)
		return r
	})
	return m.reconcile(ctx, c.ID, optimistic), nil
}

// RemoveMember marks a member of a group conversation inactive after the
// viewer confirms, and returns the refreshed roster. The member is never
// purged; they move to the former members.
func (m *Manager) RemoveMember(ctx context.Context,
	c conversation.Conversation, userID string, confirm Confirmer) (Roster,
	error) {
	if !m.CanManage() {
		return Roster{}, ErrNotStaff
	}
	if c.Kind != conversation.Group {
		return Roster{}, errors.WithMessagef(ErrNotGroup, notGroupErr, c.ID,
			c.Kind)
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Roster{}, ErrMissingUser
	}

	name := userID
	if r, ok := m.Roster(c.ID); ok {
		for _, member := range r.Active {
			if member.UserID == userID && member.UserName != "" {
				name = member.UserName
			}
		}
	}
	title := c.Title
	if title == "" {
		title = c.ID
	}
	if confirm == nil ||
		!confirm.Confirm(fmt.Sprintf(removeConfirmMsg, name, title)) {
		return Roster{}, ErrNotConfirmed
	}

	if err := m.backend.RemoveMember(ctx, c.ID, userID); err != nil {
		return Roster{}, errors.WithMessagef(err, removeMemberErr, name, c.ID)
	}
	jww.INFO.Printf("[Members] Removed %s from %s", userID, c.ID)

	optimistic := m.patch(c.ID, func(r Roster) Roster {
		for _, member := range r.Active {
			if member.UserID == userID {
				member.Active = false
				member.RemovedReason = RemovedByStaff
				r.Former = append(r.Former, member)
			}
		}
		r.Active = without(r.Active, userID)
		return r
	})
	return m.reconcile(ctx, c.ID, optimistic), nil
}

// patch applies f to the conversation's local roster and returns the result.
func (m *Manager) patch(conversationID string, f func(Roster) Roster) Roster {
	m.mux.Lock()
	defer m.mux.Unlock()
	r := m.rosters[conversationID]
	r = Roster{
		Active: append([]conversation.Member(nil), r.Active...),
		Former: append([]conversation.Member(nil), r.Former...),
	}
	r = f(r)
	m.rosters[conversationID] = r
	return r
}

// reconcile re-fetches the roster after a mutation. The mutation already
// succeeded, so a failed fetch only leaves the optimistic roster in place.
func (m *Manager) reconcile(ctx context.Context, conversationID string,
	optimistic Roster) Roster {
	r, err := m.ListMembers(ctx, conversationID)
	if err != nil {
		jww.WARN.Printf("[Members] Keeping local roster of %s: %+v",
			conversationID, err)
		return optimistic
	}
	return r
}

// split sorts members into active and former, each ordered by join time.
func split(members []conversation.Member) Roster {
	var r Roster
	for _, member := range members {
		if member.Active {
			r.Active = append(r.Active, member)
		} else {
			r.Former = append(r.Former, member)
		}
	}
	byJoined := func(list []conversation.Member) {
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].JoinedAt.Before(list[j].JoinedAt)
		})
	}
	byJoined(r.Active)
	byJoined(r.Former)
	return r
}

func without(list []conversation.Member,
	userID string) []conversation.Member {
	out := list[:0:0]
	for _, member := range list {
		if member.UserID != userID {
			out = append(out, member)
		}
	}
	return out
}

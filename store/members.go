////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package store

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/pkg/errors"

	"gitlab.com/elixxir/carechat/conversation"
)

// ListMembers returns the current and former members of a conversation.
func (c *Client) ListMembers(ctx context.Context,
	conversationID string) ([]conversation.Member, error) {
	var raw json.RawMessage
	err := c.getJSON(ctx, membersPath(conversationID), nil, &raw)
	if err != nil {
		return nil, err
	}

	var members []conversation.Member
	if err = decodeList(raw, "members", &members); err != nil {
		return nil, errors.Wrap(err, "failed to decode member list")
	}
	return members, nil
}

type addMemberRequest struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	UserType string `json:"user_type"`
}

// AddMember adds a user to a group conversation.
func (c *Client) AddMember(ctx context.Context, conversationID, userID,
	userName, userType string) (conversation.Member, error) {
	var m conversation.Member
	err := c.sendJSON(ctx, http.MethodPost, membersPath(conversationID),
		addMemberRequest{userID, userName, userType}, &m)
	return m, err
}

// RemoveMember marks a member inactive. The row is kept for the audit trail.
func (c *Client) RemoveMember(ctx context.Context, conversationID,
	userID string) error {
	return c.sendJSON(ctx, http.MethodDelete,
		membersPath(conversationID)+"/"+url.PathEscape(userID), nil, nil)
}

func membersPath(conversationID string) string {
	return "/conversations/" + url.PathEscape(conversationID) + "/members"
}

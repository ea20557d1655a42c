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
	"time"

	"github.com/pkg/errors"

	"gitlab.com/elixxir/carechat/conversation"
)

// Detail is one conversation with a window of its messages.
type Detail struct {
	Conversation conversation.Conversation `json:"conversation"`
	Messages     []conversation.Message    `json:"messages"`
	HasMore      bool                      `json:"has_more"`
}

// ListConversations returns the viewer's conversation summaries.
func (c *Client) ListConversations(
	ctx context.Context) ([]conversation.Conversation, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, "/conversations", nil, &raw); err != nil {
		return nil, err
	}

	var list []conversation.Conversation
	if err := decodeList(raw, "conversations", &list); err != nil {
		return nil, errors.Wrap(err, "failed to decode conversation list")
	}
	return list, nil
}

// GetConversation returns the conversation and its newest window of messages.
// When before is non-zero only messages strictly older than it are returned.
func (c *Client) GetConversation(ctx context.Context, id string,
	before time.Time) (Detail, error) {
	var query url.Values
	if !before.IsZero() {
		query = url.Values{"before": {before.UTC().Format(time.RFC3339Nano)}}
	}

	var d Detail
	err := c.getJSON(ctx, "/conversations/"+url.PathEscape(id), query, &d)
	return d, err
}

type createGroupRequest struct {
	ClientID   string   `json:"client_id"`
	ClientName string   `json:"client_name"`
	MemberIDs  []string `json:"member_ids"`
}

// CreateGroup creates a client group conversation.
func (c *Client) CreateGroup(ctx context.Context, clientID, clientName string,
	memberIDs []string) (conversation.Conversation, error) {
	if memberIDs == nil {
		memberIDs = []string{}
	}
	var conv conversation.Conversation
	err := c.sendJSON(ctx, http.MethodPost, "/conversations/group",
		createGroupRequest{clientID, clientName, memberIDs}, &conv)
	return conv, err
}

type directRequest struct {
	WorkerID   string `json:"worker_id"`
	WorkerName string `json:"worker_name"`
}

// MessageOffice creates, or looks up, the direct conversation between a
// worker and the office.
func (c *Client) MessageOffice(ctx context.Context, workerID,
	workerName string) (conversation.Conversation, error) {
	var conv conversation.Conversation
	err := c.sendJSON(ctx, http.MethodPost, "/conversations/direct",
		directRequest{workerID, workerName}, &conv)
	return conv, err
}

type mediaResponse struct {
	Media []conversation.MediaItem `json:"media"`
	Total int                      `json:"total"`
}

// ClientMedia returns every attachment shared in a client's group chats.
func (c *Client) ClientMedia(ctx context.Context,
	clientID string) ([]conversation.MediaItem, int, error) {
	var resp mediaResponse
	err := c.getJSON(ctx, "/client-media/"+url.PathEscape(clientID), nil, &resp)
	if err != nil {
		return nil, 0, err
	}
	return resp.Media, resp.Total, nil
}

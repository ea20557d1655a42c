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

	"github.com/pkg/errors"
)

type vapidKeyResponse struct {
	VapidPublicKey string `json:"vapidPublicKey"`
}

// VapidKey returns the server's public push key.
func (c *Client) VapidKey(ctx context.Context) (string, error) {
	var resp vapidKeyResponse
	if err := c.getJSON(ctx, "/push/vapid-key", nil, &resp); err != nil {
		return "", err
	}
	if resp.VapidPublicKey == "" {
		return "", errors.New("server returned an empty push key")
	}
	return resp.VapidPublicKey, nil
}

type subscribeRequest struct {
	Subscription json.RawMessage `json:"subscription"`
	DeviceInfo   string          `json:"device_info"`
}

// SubscribePush registers a push subscription. The backend upserts on the
// subscription's endpoint, so sending the same subscription again is safe.
func (c *Client) SubscribePush(ctx context.Context, subscription json.RawMessage,
	deviceInfo string) error {
	return c.sendJSON(ctx, http.MethodPost, "/push/subscribe",
		subscribeRequest{subscription, deviceInfo}, nil)
}

type unsubscribeRequest struct {
	Endpoint string `json:"endpoint"`
}

// UnsubscribePush removes the subscription with the given endpoint.
func (c *Client) UnsubscribePush(ctx context.Context, endpoint string) error {
	return c.sendJSON(ctx, http.MethodPost, "/push/unsubscribe",
		unsubscribeRequest{endpoint}, nil)
}

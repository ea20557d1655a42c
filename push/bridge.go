////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package push manages a device's push subscription and routes notification
// clicks to the conversation they are about. Notifications only ever carry a
// routing hint; message content is always loaded through the normal fetch
// path once the conversation is open.
package push

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/elixxir/ekv"
	"golang.org/x/crypto/blake2b"
)

const (
	subscriptionKeyPrefix = "pushSubscription:%x"

	// Error messages.
	noPermissionErr = "notification permission was not granted"
	noEndpointErr   = "subscription has no endpoint"
	storeSubErr     = "failed to store subscription locally"
	sendSubErr      = "failed to send subscription to server"
)

// State of the device's registration.
type State uint8

const (
	Unregistered State = iota
	PermissionRequested
	Subscribed
	// Resubscribed means an existing local subscription was sent again.
	Resubscribed
	Unsubscribed
)

func (s State) String() string {
	switch s {
	case PermissionRequested:
		return "permission_requested"
	case Subscribed:
		return "subscribed"
	case Resubscribed:
		return "resubscribed"
	case Unsubscribed:
		return "unsubscribed"
	default:
		return "unregistered"
	}
}

// Subscription is the platform-issued registration. Raw is sent to the
// server as is.
type Subscription struct {
	Endpoint string          `json:"endpoint"`
	Raw      json.RawMessage `json:"raw"`
}

// Platform is the device's push capability.
type Platform interface {
	// Supported reports whether the device can receive push at all.
	Supported() bool
	// RequestPermission asks the user to allow notifications.
	RequestPermission(ctx context.Context) (bool, error)
	// Subscribe creates a new subscription with the server's public key.
	Subscribe(ctx context.Context, serverKey string) (Subscription, error)
	// Unsubscribe drops the subscription on the device.
	Unsubscribe(ctx context.Context, s Subscription) error
}

// Server is the push part of the chat API. *store.Client implements it.
type Server interface {
	VapidKey(ctx context.Context) (string, error)
	SubscribePush(ctx context.Context, subscription json.RawMessage,
		deviceInfo string) error
	UnsubscribePush(ctx context.Context, endpoint string) error
}

// Bridge runs the subscription lifecycle of one user on one device. The
// local subscription record lives in kv so it survives restarts.
type Bridge struct {
	server     Server
	platform   Platform
	kv         ekv.KeyValue
	userID     string
	deviceInfo string

	state     State
	serverKey string
	mux       sync.Mutex
}

// NewBridge returns an unregistered Bridge.
func NewBridge(server Server, platform Platform, kv ekv.KeyValue, userID,
	deviceInfo string) *Bridge {
	return &Bridge{
		server:     server,
		platform:   platform,
		kv:         kv,
		userID:     userID,
		deviceInfo: deviceInfo,
	}
}

// State returns the registration state.
func (b *Bridge) State() State {
	b.mux.Lock()
	defer b.mux.Unlock()
	return b.state
}

// Init checks that the device supports push and fetches the server's public
// key. It returns whether push is usable. Failures are logged, never
// returned.
func (b *Bridge) Init(ctx context.Context) bool {
	if b.platform == nil || !b.platform.Supported() {
		jww.INFO.Print("[Push] Push is not supported on this device")
		return false
	}

	key, err := b.server.VapidKey(ctx)
	if err != nil {
		jww.WARN.Printf("[Push] Could not fetch server key: %+v", err)
		return false
	}

	b.mux.Lock()
	b.serverKey = key
	b.mux.Unlock()
	jww.DEBUG.Print("[Push] Push is available")
	return true
}

// Subscribe registers the device with the server. If a subscription is
// already stored it is sent again rather than replaced; the server upserts
// on the endpoint, which recovers a subscription the server dropped.
func (b *Bridge) Subscribe(ctx context.Context) (State, error) {
	b.mux.Lock()
	defer b.mux.Unlock()

	if existing, ok := b.load(); ok {
		if err := b.server.SubscribePush(ctx, existing.Raw,
			b.deviceInfo); err != nil {
			return b.state, errors.WithMessage(err, sendSubErr)
		}
		b.state = Resubscribed
		jww.INFO.Printf("[Push] Re-sent subscription %s", existing.Endpoint)
		return b.state, nil
	}

	if b.serverKey == "" {
		return b.state, errors.New("push is not initialized")
	}

	b.state = PermissionRequested
	granted, err := b.platform.RequestPermission(ctx)
	if err != nil {
		return b.state, errors.Wrap(err, noPermissionErr)
	} else if !granted {
		return b.state, errors.New(noPermissionErr)
	}

	s, err := b.platform.Subscribe(ctx, b.serverKey)
	if err != nil {
		return b.state, errors.Wrap(err, "failed to create subscription")
	} else if s.Endpoint == "" {
		return b.state, errors.New(noEndpointErr)
	}

	if err = b.server.SubscribePush(ctx, s.Raw, b.deviceInfo); err != nil {
		return b.state, errors.WithMessage(err, sendSubErr)
	}
	if err = b.save(s); err != nil {
		return b.state, errors.WithMessage(err, storeSubErr)
	}

	b.state = Subscribed
	jww.INFO.Printf("[Push] Subscribed %s", s.Endpoint)
	return b.state, nil
}

// Unsubscribe removes the subscription from the server and the device.
func (b *Bridge) Unsubscribe(ctx context.Context) error {
	b.mux.Lock()
	defer b.mux.Unlock()

	s, ok := b.load()
	if !ok {
		b.state = Unsubscribed
		return nil
	}

	if err := b.server.UnsubscribePush(ctx, s.Endpoint); err != nil {
		return errors.WithMessage(err, "failed to remove subscription "+
			"from server")
	}
	if b.platform != nil {
		if err := b.platform.Unsubscribe(ctx, s); err != nil {
			jww.WARN.Printf("[Push] Device unsubscribe failed: %+v", err)
		}
	}
	if err := b.kv.Delete(b.key()); err != nil {
		jww.WARN.Printf("[Push] Failed to delete local subscription: %+v",
			err)
	}

	b.state = Unsubscribed
	jww.INFO.Printf("[Push] Unsubscribed %s", s.Endpoint)
	return nil
}

// Subscription returns the locally stored subscription.
func (b *Bridge) Subscription() (Subscription, bool) {
	b.mux.Lock()
	defer b.mux.Unlock()
	return b.load()
}

func (b *Bridge) load() (Subscription, bool) {
	data, err := b.kv.GetBytes(b.key())
	if err != nil {
		if ekv.Exists(err) {
			jww.WARN.Printf("[Push] Failed to load subscription: %+v", err)
		}
		return Subscription{}, false
	}

	var s Subscription
	if err = json.Unmarshal(data, &s); err != nil || s.Endpoint == "" {
		jww.WARN.Printf("[Push] Discarding corrupt subscription record")
		return Subscription{}, false
	}
	return s, true
}

func (b *Bridge) save(s Subscription) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return b.kv.SetBytes(b.key(), data)
}

// key is the storage key of the user's subscription on this device.
func (b *Bridge) key() string {
	h := blake2b.Sum256([]byte(b.userID))
	return fmt.Sprintf(subscriptionKeyPrefix, h[:8])
}

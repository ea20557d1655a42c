////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package push

import (
	"context"
	"encoding/base64"
	"encoding/json"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

// LocalPlatform is a Platform for terminals and tests. It issues
// subscriptions with random endpoints under EndpointBase and grants
// permission when Granted is set.
type LocalPlatform struct {
	EndpointBase string
	Granted      bool
}

type localKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

type localSubscription struct {
	Endpoint string    `json:"endpoint"`
	Keys     localKeys `json:"keys"`
}

func (LocalPlatform) Supported() bool { return true }

func (lp LocalPlatform) RequestPermission(context.Context) (bool, error) {
	return lp.Granted, nil
}

func (lp LocalPlatform) Subscribe(_ context.Context,
	serverKey string) (Subscription, error) {
	endpoint := lp.EndpointBase + "/" + uuid.NewString()
	binding := blake2b.Sum256([]byte(serverKey + endpoint))

	raw, err := json.Marshal(localSubscription{
		Endpoint: endpoint,
		Keys: localKeys{
			P256dh: base64.RawURLEncoding.EncodeToString(binding[:]),
			Auth:   base64.RawURLEncoding.EncodeToString(binding[:16]),
		},
	})
	if err != nil {
		return Subscription{}, err
	}
	return Subscription{Endpoint: endpoint, Raw: raw}, nil
}

func (LocalPlatform) Unsubscribe(context.Context, Subscription) error {
	return nil
}

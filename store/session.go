////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package store

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/pkg/errors"

	"gitlab.com/elixxir/carechat/conversation"
)

// Session is the viewer identity carried by the bearer token. The token is
// verified by the backend; the client only reads it to learn who the viewer is
// and when the token lapses.
type Session struct {
	Token   string
	UserID  string
	Name    string
	Role    conversation.Role
	Expires time.Time
}

type metadata struct {
	Role string `json:"role"`
	Name string `json:"name"`
}

type sessionClaims struct {
	jwt.RegisteredClaims
	Role         string   `json:"role"`
	AppRole      string   `json:"app_role"`
	Name         string   `json:"name"`
	Email        string   `json:"email"`
	AppMetadata  metadata `json:"app_metadata"`
	UserMetadata metadata `json:"user_metadata"`
}

// NewSession reads the viewer identity out of a JWT bearer token without
// verifying its signature.
func NewSession(token string) (Session, error) {
	claims := &sessionClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(token, claims)
	if err != nil {
		return Session{}, errors.Wrap(err, "failed to read session token")
	}

	s := Session{
		Token:  token,
		UserID: claims.Subject,
		Name:   firstNonEmpty(claims.UserMetadata.Name, claims.Name, claims.Email),
		Role: conversation.ParseRole(firstNonEmpty(claims.AppMetadata.Role,
			claims.UserMetadata.Role, claims.AppRole, claims.Role)),
	}
	if claims.ExpiresAt != nil {
		s.Expires = claims.ExpiresAt.Time
	}

	return s, nil
}

// Expired reports whether the token has lapsed at now. A token without an
// expiry never lapses on the client side.
func (s Session) Expired(now time.Time) bool {
	return !s.Expires.IsZero() && !now.Before(s.Expires)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package store is the typed client for the chat backend. It covers the
// conversation, message, member, media and push endpoints the chat core
// depends on, and maps HTTP failures onto the error taxonomy in errors.go.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/xx_network/primitives/netTime"
	"go.uber.org/ratelimit"
)

const (
	authorizationHeader = "Authorization"
	requestIDHeader     = "X-Request-ID"
	contentTypeHeader   = "Content-Type"
	jsonContentType     = "application/json"
)

// Client talks to the chat backend on behalf of one session.
type Client struct {
	base    *url.URL
	http    *http.Client
	limiter ratelimit.Limiter
	params  Params

	session Session

	onUnauthenticated func(loginURL string)
	mux               sync.RWMutex
}

// NewClient builds a Client for the session. transport may be nil to use
// http.DefaultTransport.
func NewClient(params Params, session Session,
	transport http.RoundTripper) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(params.BaseURL, "/"))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid base URL %q", params.BaseURL)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, errors.Errorf("base URL %q must be absolute", params.BaseURL)
	}

	limiter := ratelimit.NewUnlimited()
	if params.RequestsPerSecond > 0 {
		limiter = ratelimit.New(params.RequestsPerSecond)
	}

	if transport == nil {
		transport = http.DefaultTransport
	}

	return &Client{
		base:    base,
		http:    &http.Client{Transport: transport, Timeout: params.Timeout},
		limiter: limiter,
		params:  params,
		session: session,
	}, nil
}

// Session returns the viewer session the client authenticates as.
func (c *Client) Session() Session {
	return c.session
}

// OnUnauthenticated registers the function called with the login URL
// whenever the backend rejects the session. It replaces any earlier one.
func (c *Client) OnUnauthenticated(f func(loginURL string)) {
	c.mux.Lock()
	c.onUnauthenticated = f
	c.mux.Unlock()
}

// getJSON issues a GET and decodes the response into out.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values,
	out interface{}) error {
	return c.do(ctx, http.MethodGet, path, query, nil, "", out)
}

// sendJSON issues a request with a JSON body and decodes the response into
// out, which may be nil.
func (c *Client) sendJSON(ctx context.Context, method, path string,
	body interface{}, out interface{}) error {
	var reader io.Reader
	contentType := ""
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrapf(err, "failed to encode %s %s", method, path)
		}
		reader = bytes.NewReader(data)
		contentType = jsonContentType
	}
	return c.do(ctx, method, path, nil, reader, contentType, out)
}

// do sends one request. Every non-2xx status becomes a *StatusError; a 401
// additionally fires the unauthenticated handler so the session ends.
func (c *Client) do(ctx context.Context, method, path string,
	query url.Values, body io.Reader, contentType string,
	out interface{}) error {

	var err error
	if c.session.Expired(netTime.Now()) {
		jww.WARN.Printf("[Store] Session expired before %s %s", method, path)
		c.unauthenticated()
		return errors.WithStack(ErrUnauthenticated)
	}

	// path arrives with its segments already escaped
	u := *c.base
	u.RawPath = c.base.EscapedPath() + path
	if u.Path, err = url.PathUnescape(u.RawPath); err != nil {
		return errors.Wrapf(err, "invalid path %q", path)
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return errors.Wrapf(err, "failed to build %s %s", method, path)
	}
	if c.session.Token != "" {
		req.Header.Set(authorizationHeader, "Bearer "+c.session.Token)
	}
	if contentType != "" {
		req.Header.Set(contentTypeHeader, contentType)
	}
	requestID := uuid.NewString()
	req.Header.Set(requestIDHeader, requestID)
	req.Header.Set("Accept", jsonContentType)

	c.limiter.Take()
	jww.TRACE.Printf("[Store] %s %s (%s)", method, u.Path, requestID)

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s failed", method, path)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			jww.DEBUG.Printf("[Store] Failed to close body of %s %s: %+v",
				method, path, err)
		}
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(err, "failed to read response of %s %s",
			method, path)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &StatusError{
			Method:  method,
			Path:    path,
			Status:  resp.StatusCode,
			Message: extractMessage(resp.StatusCode, data),
		}
		if resp.StatusCode == http.StatusUnauthorized {
			jww.WARN.Printf("[Store] Session rejected on %s %s", method, path)
			c.unauthenticated()
		}
		return se
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err = json.Unmarshal(data, out); err != nil {
		return errors.Wrapf(err, "failed to decode response of %s %s",
			method, path)
	}
	return nil
}

func (c *Client) unauthenticated() {
	c.mux.RLock()
	f := c.onUnauthenticated
	c.mux.RUnlock()
	if f != nil {
		f(c.params.LoginURL)
	}
}

// decodeList decodes a collection that the backend returns either bare or
// wrapped in an object under key.
func decodeList(data json.RawMessage, key string, out interface{}) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if trimmed[0] == '[' {
		return json.Unmarshal(trimmed, out)
	}

	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return err
	}
	inner, ok := wrapped[key]
	if !ok {
		return errors.Errorf("response has neither a list nor a %q field", key)
	}
	return decodeList(inner, key, out)
}

////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package offline

import (
	"context"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

// Transport returns a RoundTripper that routes requests through the cache:
//   - API paths and non-GET requests always go to the network and are never
//     cached.
//   - Other GETs are served from the cache when present and revalidated in
//     the background; otherwise they are fetched and cached.
//   - A navigation that fails both ways is served the cached shell root.
func (c *Cache) Transport() http.RoundTripper {
	return roundTripper{c}
}

type roundTripper struct {
	c *Cache
}

func (rt roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return rt.c.roundTrip(req)
}

func (c *Cache) roundTrip(req *http.Request) (*http.Response, error) {
	if c.bypass(req) {
		return c.network.RoundTrip(req)
	}

	u := req.URL.String()
	if e, ok := c.Get(u); ok {
		jww.TRACE.Printf("[OfflineCache] Hit %s", u)
		c.revalidate(req)
		return e.response(req), nil
	}

	resp, err := c.network.RoundTrip(req)
	if err != nil {
		if isNavigation(req) {
			if shell, ok := c.Get(c.resolve(c.params.ShellRoot)); ok {
				jww.INFO.Printf("[OfflineCache] Offline, serving shell for %s",
					u)
				return shell.response(req), nil
			}
		}
		return nil, errors.Wrapf(err, "failed to fetch %s", u)
	}
	if resp.StatusCode != http.StatusOK {
		return resp, nil
	}

	e, err := readEntry(u, resp)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", u)
	}
	if err = c.put(e); err != nil {
		jww.WARN.Printf("[OfflineCache] Failed to cache %s: %+v", u, err)
	}
	return e.response(req), nil
}

// revalidate refetches req in the background and overwrites the cached
// entry on success.
func (c *Cache) revalidate(req *http.Request) {
	bg := req.Clone(context.Background())
	u := bg.URL.String()

	c.revalidating.Add(1)
	go func() {
		defer c.revalidating.Done()
		resp, err := c.network.RoundTrip(bg)
		if err != nil {
			jww.DEBUG.Printf("[OfflineCache] Revalidating %s failed: %+v",
				u, err)
			return
		}
		e, err := readEntry(u, resp)
		if err != nil || e.Status != http.StatusOK {
			return
		}
		if err = c.put(e); err != nil {
			jww.WARN.Printf("[OfflineCache] Failed to update %s: %+v", u, err)
		}
	}()
}

// bypass reports whether req must go straight to the network.
func (c *Cache) bypass(req *http.Request) bool {
	if req.Method != "" && req.Method != http.MethodGet {
		return true
	}
	return c.params.APIPrefix != "" &&
		strings.HasPrefix(req.URL.Path, c.params.APIPrefix)
}

// isNavigation reports whether req loads a page rather than a subresource.
func isNavigation(req *http.Request) bool {
	if mode := req.Header.Get("Sec-Fetch-Mode"); mode != "" {
		return mode == "navigate"
	}
	return strings.Contains(req.Header.Get("Accept"), "text/html")
}

////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package offline keeps the app shell and other static GET responses
// available without a network. API calls are never cached.
package offline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/elixxir/ekv"
	"gitlab.com/xx_network/primitives/netTime"
	"golang.org/x/crypto/blake2b"
)

const (
	// generationsKey holds the registry of every generation and the keys
	// it wrote, so activation can purge old generations.
	generationsKey = "offlineCacheGenerations"
	entryKeyFormat = "%s:%x"

	installErr = "failed to cache %s"
)

// Entry is one cached response.
type Entry struct {
	URL    string      `json:"url"`
	Status int         `json:"status"`
	Header http.Header `json:"header"`
	Body   []byte      `json:"body"`
	Stored time.Time   `json:"stored"`
}

// response rebuilds an http.Response for req from the entry.
func (e Entry) response(req *http.Request) *http.Response {
	body := append([]byte(nil), e.Body...)
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", e.Status, http.StatusText(e.Status)),
		StatusCode:    e.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        e.Header.Clone(),
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}

// generations maps a generation name to the storage keys it wrote.
type generations map[string][]string

// Cache is a named, versioned response cache backed by ekv with an LRU in
// front of it.
type Cache struct {
	params  Params
	name    string
	origin  *url.URL
	kv      ekv.KeyValue
	network http.RoundTripper
	mem     *lru.Cache[string, Entry]

	revalidating sync.WaitGroup
	mux          sync.Mutex
}

// NewCache returns the cache generation named by params. Relative asset
// paths are resolved against origin. A nil network uses
// http.DefaultTransport.
func NewCache(kv ekv.KeyValue, origin string, network http.RoundTripper,
	params Params) (*Cache, error) {
	base, err := url.Parse(origin)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid origin %q", origin)
	}
	if network == nil {
		network = http.DefaultTransport
	}
	size := params.MemoryEntries
	if size <= 0 {
		size = 1
	}
	mem, err := lru.New[string, Entry](size)
	if err != nil {
		return nil, err
	}

	return &Cache{
		params:  params,
		name:    params.CacheName(),
		origin:  base,
		kv:      kv,
		network: network,
		mem:     mem,
	}, nil
}

// Name returns the cache generation name.
func (c *Cache) Name() string {
	return c.name
}

// Install fetches every shell asset and caches it. Any failure fails the
// install.
func (c *Cache) Install(ctx context.Context) error {
	for _, asset := range c.params.Assets {
		u := c.resolve(asset)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return errors.Wrapf(err, installErr, u)
		}
		resp, err := c.network.RoundTrip(req)
		if err != nil {
			return errors.Wrapf(err, installErr, u)
		}
		e, err := readEntry(u, resp)
		if err != nil {
			return errors.Wrapf(err, installErr, u)
		} else if e.Status != http.StatusOK {
			return errors.Errorf(installErr+": status %d", u, e.Status)
		}
		if err = c.put(e); err != nil {
			return errors.Wrapf(err, installErr, u)
		}
	}

	jww.INFO.Printf("[OfflineCache] Installed %d assets into %s",
		len(c.params.Assets), c.name)
	return nil
}

// Activate makes this generation the only one by deleting every entry
// written by any other generation. It returns the purged generation names.
func (c *Cache) Activate() ([]string, error) {
	c.mux.Lock()
	defer c.mux.Unlock()

	gens, err := c.loadGenerations()
	if err != nil {
		return nil, err
	}

	var purged []string
	for name, keys := range gens {
		if name == c.name {
			continue
		}
		for _, key := range keys {
			if err = c.kv.Delete(key); err != nil {
				jww.WARN.Printf("[OfflineCache] Failed to delete %s of %s: "+
					"%+v", key, name, err)
			}
		}
		delete(gens, name)
		purged = append(purged, name)
	}
	sort.Strings(purged)

	if _, ok := gens[c.name]; !ok {
		gens[c.name] = nil
	}
	if err = c.saveGenerations(gens); err != nil {
		return nil, err
	}

	if len(purged) > 0 {
		jww.INFO.Printf("[OfflineCache] Activated %s, purged %v", c.name,
			purged)
	}
	return purged, nil
}

// Get returns the cached entry for the absolute URL u.
func (c *Cache) Get(u string) (Entry, bool) {
	key := c.key(u)
	if e, ok := c.mem.Get(key); ok {
		return e, true
	}

	data, err := c.kv.GetBytes(key)
	if err != nil {
		if ekv.Exists(err) {
			jww.WARN.Printf("[OfflineCache] Failed to read %s: %+v", u, err)
		}
		return Entry{}, false
	}
	var e Entry
	if err = json.Unmarshal(data, &e); err != nil {
		jww.WARN.Printf("[OfflineCache] Discarding corrupt entry for %s", u)
		return Entry{}, false
	}
	c.mem.Add(key, e)
	return e, true
}

// Wait blocks until every background revalidation has finished.
func (c *Cache) Wait() {
	c.revalidating.Wait()
}

// put stores e and records its key under this generation.
func (c *Cache) put(e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	key := c.key(e.URL)

	c.mux.Lock()
	defer c.mux.Unlock()
	if err = c.kv.SetBytes(key, data); err != nil {
		return err
	}
	c.mem.Add(key, e)

	gens, err := c.loadGenerations()
	if err != nil {
		return err
	}
	for _, k := range gens[c.name] {
		if k == key {
			return nil
		}
	}
	gens[c.name] = append(gens[c.name], key)
	return c.saveGenerations(gens)
}

func (c *Cache) loadGenerations() (generations, error) {
	data, err := c.kv.GetBytes(generationsKey)
	if err != nil {
		if !ekv.Exists(err) {
			return generations{}, nil
		}
		return nil, errors.Wrap(err, "failed to load cache generations")
	}
	gens := generations{}
	if err = json.Unmarshal(data, &gens); err != nil {
		return nil, errors.Wrap(err, "failed to decode cache generations")
	}
	return gens, nil
}

func (c *Cache) saveGenerations(gens generations) error {
	data, err := json.Marshal(gens)
	if err != nil {
		return err
	}
	return c.kv.SetBytes(generationsKey, data)
}

// key is the storage key of u in this generation.
func (c *Cache) key(u string) string {
	h := blake2b.Sum256([]byte(u))
	return fmt.Sprintf(entryKeyFormat, c.name, h[:16])
}

// resolve turns a path into an absolute URL on the origin.
func (c *Cache) resolve(path string) string {
	ref, err := url.Parse(path)
	if err != nil {
		return path
	}
	return c.origin.ResolveReference(ref).String()
}

// readEntry consumes resp into an Entry.
func readEntry(u string, resp *http.Response) (Entry, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		URL:    u,
		Status: resp.StatusCode,
		Header: resp.Header.Clone(),
		Body:   body,
		Stored: netTime.Now(),
	}, nil
}

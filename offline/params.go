////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package offline

import (
	"encoding/json"
	"fmt"
)

// Params configures the Cache.
type Params struct {
	// Name and Version make up the cache generation name. Bump Version on
	// any change to the shell assets so activation purges the old copies.
	Name    string
	Version int

	// APIPrefix marks request paths that always go to the network.
	APIPrefix string

	// ShellRoot is served for navigations when both the cache and the
	// network fail.
	ShellRoot string

	// Assets are fetched and cached on Install.
	Assets []string

	// MemoryEntries is the size of the in-memory front of the cache.
	MemoryEntries int
}

// GetDefaultParams returns the default Params.
func GetDefaultParams() Params {
	return Params{
		Name:          "carechat-shell",
		Version:       1,
		APIPrefix:     "/api/",
		ShellRoot:     "/",
		Assets:        []string{"/", "/manifest.json", "/icon-192.png"},
		MemoryEntries: 64,
	}
}

// ParseParams returns the default Params overridden by any field set in the
// JSON string.
func ParseParams(data string) (Params, error) {
	p := GetDefaultParams()
	if len(data) == 0 {
		return p, nil
	}
	err := json.Unmarshal([]byte(data), &p)
	return p, err
}

// CacheName is the name of this generation of the cache.
func (p Params) CacheName() string {
	return fmt.Sprintf("%s-v%d", p.Name, p.Version)
}

////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package display

import (
	"encoding/json"
	"time"
	// the timezone database is embedded so hosts without one still render
	// local dates
	_ "time/tzdata"

	jww "github.com/spf13/jwalterweatherman"
)

// DefaultTimezone is the timezone the provider operates in.
const DefaultTimezone = "Australia/Sydney"

// Params configures how timestamps are rendered.
type Params struct {
	// Timezone is the IANA name dates and separators are computed in.
	Timezone string

	// DateLayout is used for separators older than yesterday.
	DateLayout string

	// TimeLayout is used for message times.
	TimeLayout string
}

// GetDefaultParams returns the default rendering parameters.
func GetDefaultParams() Params {
	return Params{
		Timezone:   DefaultTimezone,
		DateLayout: "Monday, 2 January 2006",
		TimeLayout: "3:04 PM",
	}
}

// ParseParams decodes JSON encoded Params over the defaults.
func ParseParams(data string) (Params, error) {
	p := GetDefaultParams()
	if data == "" {
		return p, nil
	}
	err := json.Unmarshal([]byte(data), &p)
	return p, err
}

// LoadLocation returns the named location. An unknown name or a missing
// timezone database falls back to UTC so rendering never fails.
func LoadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		jww.WARN.Printf("[Display] Failed to load timezone %q, falling "+
			"back to UTC: %+v", name, err)
		return time.UTC
	}
	return loc
}

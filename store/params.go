////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package store

import (
	"encoding/json"
	"time"
)

// Params configures the Client.
type Params struct {
	// BaseURL is the root of the chat API, for example
	// https://crm.example.com/api/chat.
	BaseURL string

	// Timeout bounds every request, including uploads.
	Timeout time.Duration

	// RequestsPerSecond paces outgoing requests. Zero disables pacing.
	RequestsPerSecond int

	// LoginURL is where the viewer is sent when the session is rejected.
	LoginURL string
}

// paramsDisk is used to marshal Params with human-readable durations.
type paramsDisk struct {
	BaseURL           string
	Timeout           string
	RequestsPerSecond int
	LoginURL          string
}

// GetDefaultParams returns the default Params.
func GetDefaultParams() Params {
	return Params{
		BaseURL:           "http://localhost:3000/api/chat",
		Timeout:           30 * time.Second,
		RequestsPerSecond: 20,
		LoginURL:          "/login",
	}
}

// ParseParams returns the default Params overridden by any field set in the
// JSON string.
func ParseParams(data string) (Params, error) {
	p := GetDefaultParams()
	if len(data) == 0 {
		return p, nil
	}
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return Params{}, err
	}
	return p, nil
}

// MarshalJSON adheres to the json.Marshaler interface.
func (p Params) MarshalJSON() ([]byte, error) {
	return json.Marshal(paramsDisk{
		BaseURL:           p.BaseURL,
		Timeout:           p.Timeout.String(),
		RequestsPerSecond: p.RequestsPerSecond,
		LoginURL:          p.LoginURL,
	})
}

// UnmarshalJSON adheres to the json.Unmarshaler interface. Fields absent from
// the data keep their current values.
func (p *Params) UnmarshalJSON(data []byte) error {
	pd := paramsDisk{
		BaseURL:           p.BaseURL,
		Timeout:           p.Timeout.String(),
		RequestsPerSecond: p.RequestsPerSecond,
		LoginURL:          p.LoginURL,
	}
	if err := json.Unmarshal(data, &pd); err != nil {
		return err
	}

	timeout, err := time.ParseDuration(pd.Timeout)
	if err != nil {
		return err
	}

	*p = Params{
		BaseURL:           pd.BaseURL,
		Timeout:           timeout,
		RequestsPerSecond: pd.RequestsPerSecond,
		LoginURL:          pd.LoginURL,
	}
	return nil
}

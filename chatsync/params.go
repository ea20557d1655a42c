////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package chatsync

import (
	"encoding/json"
	"time"
)

// Params configures the Engine.
type Params struct {
	// ListPeriod is the interval between conversation list polls.
	ListPeriod time.Duration

	// ThreadPeriod is the interval between polls of the open thread.
	ThreadPeriod time.Duration

	// StopTimeout bounds how long stopping waits for the poll loops.
	StopTimeout time.Duration

	// ReportPeriod is how often poll counts are logged and reported.
	ReportPeriod time.Duration
}

// paramsDisk is used to marshal Params with human-readable durations.
type paramsDisk struct {
	ListPeriod   string
	ThreadPeriod string
	StopTimeout  string
	ReportPeriod string
}

// GetDefaultParams returns the default Params.
func GetDefaultParams() Params {
	return Params{
		ListPeriod:   5 * time.Second,
		ThreadPeriod: 3 * time.Second,
		StopTimeout:  5 * time.Second,
		ReportPeriod: time.Minute,
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
		ListPeriod:   p.ListPeriod.String(),
		ThreadPeriod: p.ThreadPeriod.String(),
		StopTimeout:  p.StopTimeout.String(),
		ReportPeriod: p.ReportPeriod.String(),
	})
}

// UnmarshalJSON adheres to the json.Unmarshaler interface. Fields absent from
// the data keep their current values.
func (p *Params) UnmarshalJSON(data []byte) error {
	pd := paramsDisk{
		ListPeriod:   p.ListPeriod.String(),
		ThreadPeriod: p.ThreadPeriod.String(),
		StopTimeout:  p.StopTimeout.String(),
		ReportPeriod: p.ReportPeriod.String(),
	}
	if err := json.Unmarshal(data, &pd); err != nil {
		return err
	}

	durations := make([]time.Duration, 4)
	for i, s := range []string{pd.ListPeriod, pd.ThreadPeriod,
		pd.StopTimeout, pd.ReportPeriod} {
		d, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		durations[i] = d
	}

	*p = Params{
		ListPeriod:   durations[0],
		ThreadPeriod: durations[1],
		StopTimeout:  durations[2],
		ReportPeriod: durations[3],
	}
	return nil
}

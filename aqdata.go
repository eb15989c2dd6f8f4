/*
Copyright © 2018 the InMAP authors.
This file is part of InMAP.

InMAP is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

InMAP is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with InMAP.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package aqdata provides access to time-indexed environmental measurement
// and forecast values, organized by parameter (e.g. a pollutant), spatial
// entity (a monitoring station or grid cell), date and forecast horizon.
//
// Two backends implement the DataSource interface: window.Buffer, which
// holds a sliding window of observations read from flat files, and
// gridstore.Store, which accumulates values in a growable four-dimensional
// array on disk. Requests that fall outside the data a backend holds are
// padded with the backend's nodata value rather than causing errors.
package aqdata

import (
	"time"

	"github.com/pkg/errors"
)

// Version gives the version number.
const Version = "1.0.0"

// DefaultNoData is the nodata value returned to callers when no other value
// has been configured.
const DefaultNoData = -999.

// DataSource is the contract shared by all backends. Offsets are relative to
// the base time set with SetBaseTime.
type DataSource interface {
	// SetBaseTime sets the instant that all relative offsets
	// are computed against.
	SetBaseTime(t time.Time) error

	// BaseTime returns the current base time.
	BaseTime() time.Time

	// State returns the lifecycle state of the data source.
	State() State

	// TimeResolution returns the length of one time step.
	TimeResolution() time.Duration

	// Range returns the offsets relative to the base time of the
	// first and last time steps the source can answer for at the
	// given forecast horizon.
	Range(horizon time.Duration) (begin, end time.Duration)

	// NoData returns the value used to mark missing data.
	NoData() float64

	// Values returns the values for the given parameter and entity
	// between the begin and end offsets, inclusive. The returned slice
	// always covers the full requested range; missing values are
	// set to NoData().
	Values(parameter, entity string, begin, end time.Duration) ([]float64, error)

	// ForecastValues is the same as Values but for the given
	// forecast horizon.
	ForecastValues(parameter, entity string, begin, end, horizon time.Duration) ([]float64, error)

	// SetValues stores values for the given parameter and entity at
	// the current base time, one value per forecast horizon.
	SetValues(parameter, entity string, values []float64, horizons []time.Duration) error

	// Close releases any resources held by the data source.
	Close() error
}

// State is the lifecycle state of a DataSource.
type State int

// These are the lifecycle states. A data source moves through them in order,
// and values may only be read or written in the Ready state.
const (
	Unconfigured State = iota
	Configured
	BaseTimeSet
	Ready
)

func (s State) String() string {
	switch s {
	case Unconfigured:
		return "unconfigured"
	case Configured:
		return "configured"
	case BaseTimeSet:
		return "base time set"
	case Ready:
		return "ready"
	default:
		return "invalid state"
	}
}

// CheckReady returns an error wrapping ErrNotConfigured if s is not Ready.
func CheckReady(s State) error {
	if s != Ready {
		return errors.Wrapf(ErrNotConfigured, "data source is %s", s)
	}
	return nil
}

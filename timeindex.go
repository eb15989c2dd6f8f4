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

package aqdata

import (
	"time"

	"github.com/pkg/errors"
)

// These are the supported time resolutions.
const (
	Hourly    = time.Hour
	SixHourly = 6 * time.Hour
	Daily     = 24 * time.Hour
)

// ParseResolution converts a time step given in minutes to a resolution.
// Only hourly, six-hourly and daily steps are supported.
func ParseResolution(minutes int) (time.Duration, error) {
	d := time.Duration(minutes) * time.Minute
	switch d {
	case Hourly, SixHourly, Daily:
		return d, nil
	}
	return 0, errors.Wrapf(ErrConfiguration, "aqdata: unsupported time resolution of %d minutes", minutes)
}

// TimeIndex converts between instants and integer step indices at
// a fixed resolution, counted from Epoch. A zero Epoch means
// 1970-01-01T00:00 UTC, so that daily steps begin at UTC midnight.
type TimeIndex struct {
	Resolution time.Duration
	Epoch      time.Time
}

func (ti TimeIndex) epoch() time.Time {
	if ti.Epoch.IsZero() {
		return time.Unix(0, 0).UTC()
	}
	return ti.Epoch
}

func (ti TimeIndex) check() error {
	if ti.Resolution <= 0 {
		return errors.Wrapf(ErrArithmetic, "aqdata: time resolution %v", ti.Resolution)
	}
	return nil
}

// Index returns the index of the step containing t, rounding toward
// negative infinity for instants before the epoch.
func (ti TimeIndex) Index(t time.Time) (int, error) {
	if err := ti.check(); err != nil {
		return 0, err
	}
	d := t.Sub(ti.epoch())
	i := d / ti.Resolution
	if d%ti.Resolution < 0 {
		i--
	}
	return int(i), nil
}

// Time returns the instant at which step i begins.
func (ti TimeIndex) Time(i int) time.Time {
	return ti.epoch().Add(time.Duration(i) * ti.Resolution)
}

// Floor rounds t down to the nearest step boundary.
func (ti TimeIndex) Floor(t time.Time) (time.Time, error) {
	i, err := ti.Index(t)
	if err != nil {
		return time.Time{}, err
	}
	return ti.Time(i), nil
}

// Ceil rounds t up to the nearest step boundary. It does not
// change t if t is already on a boundary.
func (ti TimeIndex) Ceil(t time.Time) (time.Time, error) {
	f, err := ti.Floor(t)
	if err != nil {
		return time.Time{}, err
	}
	if f.Equal(t) {
		return f, nil
	}
	return f.Add(ti.Resolution), nil
}

// StepsBetween returns the number of steps from a to b, which
// is negative when b is before a.
func (ti TimeIndex) StepsBetween(a, b time.Time) (int, error) {
	ia, err := ti.Index(a)
	if err != nil {
		return 0, err
	}
	ib, err := ti.Index(b)
	if err != nil {
		return 0, err
	}
	return ib - ia, nil
}

// Steps returns the number of whole steps in d, rounding toward
// negative infinity like Index, and whether d is an exact multiple
// of the resolution.
func (ti TimeIndex) Steps(d time.Duration) (int, bool, error) {
	if err := ti.check(); err != nil {
		return 0, false, err
	}
	n, rem := d/ti.Resolution, d%ti.Resolution
	if rem < 0 {
		n--
	}
	return int(n), rem == 0, nil
}

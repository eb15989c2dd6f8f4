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
	"testing"
	"time"

	"github.com/pkg/errors"
)

func TestTimeIndex(t *testing.T) {
	ti := TimeIndex{Resolution: Hourly}
	base := time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)

	t.Run("floor", func(t *testing.T) {
		f, err := ti.Floor(base.Add(90 * time.Minute))
		if err != nil {
			t.Fatal(err)
		}
		if want := base.Add(time.Hour); !f.Equal(want) {
			t.Errorf("have %v, want %v", f, want)
		}
	})
	t.Run("ceil", func(t *testing.T) {
		c, err := ti.Ceil(base.Add(90 * time.Minute))
		if err != nil {
			t.Fatal(err)
		}
		if want := base.Add(2 * time.Hour); !c.Equal(want) {
			t.Errorf("have %v, want %v", c, want)
		}
		c, err = ti.Ceil(base)
		if err != nil {
			t.Fatal(err)
		}
		if !c.Equal(base) {
			t.Errorf("aligned ceil: have %v, want %v", c, base)
		}
	})
	t.Run("before epoch", func(t *testing.T) {
		i, err := ti.Index(time.Date(1969, 12, 31, 23, 30, 0, 0, time.UTC))
		if err != nil {
			t.Fatal(err)
		}
		if i != -1 {
			t.Errorf("have %d, want -1", i)
		}
	})
	t.Run("steps", func(t *testing.T) {
		n, err := ti.StepsBetween(base, base.Add(-3*time.Hour))
		if err != nil {
			t.Fatal(err)
		}
		if n != -3 {
			t.Errorf("have %d, want -3", n)
		}
	})
	t.Run("daily", func(t *testing.T) {
		d := TimeIndex{Resolution: Daily, Epoch: time.Date(2020, 1, 8, 0, 0, 0, 0, time.UTC)}
		i, err := d.Index(time.Date(2020, 1, 10, 12, 0, 0, 0, time.UTC))
		if err != nil {
			t.Fatal(err)
		}
		if i != 2 {
			t.Errorf("have %d, want 2", i)
		}
		if want := time.Date(2020, 1, 10, 0, 0, 0, 0, time.UTC); !d.Time(i).Equal(want) {
			t.Errorf("have %v, want %v", d.Time(i), want)
		}
	})
	t.Run("whole steps", func(t *testing.T) {
		for _, tc := range []struct {
			d     time.Duration
			n     int
			exact bool
		}{
			{d: 3 * time.Hour, n: 3, exact: true},
			{d: 90 * time.Minute, n: 1},
			{d: -90 * time.Minute, n: -2},
			{d: -2 * time.Hour, n: -2, exact: true},
			{d: 0, n: 0, exact: true},
		} {
			n, exact, err := ti.Steps(tc.d)
			if err != nil {
				t.Fatal(err)
			}
			if n != tc.n || exact != tc.exact {
				t.Errorf("%v: have %d, %v; want %d, %v", tc.d, n, exact, tc.n, tc.exact)
			}
		}
		if _, _, err := (TimeIndex{}).Steps(time.Hour); !errors.Is(err, ErrArithmetic) {
			t.Errorf("have %v, want arithmetic error", err)
		}
	})
	t.Run("zero resolution", func(t *testing.T) {
		_, err := TimeIndex{}.Index(base)
		if !errors.Is(err, ErrArithmetic) {
			t.Errorf("have %v, want arithmetic error", err)
		}
	})
}

func TestParseResolution(t *testing.T) {
	for _, test := range []struct {
		minutes int
		want    time.Duration
		ok      bool
	}{
		{60, time.Hour, true},
		{360, 6 * time.Hour, true},
		{1440, 24 * time.Hour, true},
		{30, 0, false},
		{0, 0, false},
	} {
		d, err := ParseResolution(test.minutes)
		if test.ok != (err == nil) {
			t.Errorf("%d: error %v", test.minutes, err)
			continue
		}
		if d != test.want {
			t.Errorf("%d: have %v, want %v", test.minutes, d, test.want)
		}
		if err != nil && !errors.Is(err, ErrConfiguration) {
			t.Errorf("%d: error %v should be a configuration error", test.minutes, err)
		}
	}
}

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

package aqutil

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/spatialmodel/aqdata"
	"github.com/spatialmodel/aqdata/gridstore"
)

func TestDailyMean(t *testing.T) {
	const nd = -999.
	for _, tc := range []struct {
		vals     []float64
		coverage float64
		want     float64
		ok       bool
	}{
		{vals: []float64{1, 2, 3, 4}, coverage: 0.75, want: 2.5, ok: true},
		{vals: []float64{1, nd, 3, 5}, coverage: 0.75, want: 3, ok: true},
		{vals: []float64{1, nd, nd, 5}, coverage: 0.75},
		{vals: []float64{1, nd, nd, 5}, coverage: 0.5, want: 3, ok: true},
		{vals: []float64{nd, nd}, coverage: 0},
	} {
		have, ok := dailyMean(tc.vals, nd, tc.coverage)
		if ok != tc.ok || have != tc.want {
			t.Errorf("%v (coverage %g): have %g, %v; want %g, %v", tc.vals, tc.coverage, have, ok, tc.want, tc.ok)
		}
	}
}

func TestArchiver(t *testing.T) {
	day0 := time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC)

	// Daily values are archived from one in-memory store into another.
	src, err := gridstore.New(gridstore.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range []float64{4, aqdata.DefaultNoData, 8} {
		if err := src.SetBaseTime(day0.AddDate(0, 0, i)); err != nil {
			t.Fatal(err)
		}
		if err := src.SetValues("o3", "S1", []float64{v}, []time.Duration{0}); err != nil {
			t.Fatal(err)
		}
	}
	dst, err := gridstore.New(gridstore.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	a := &Archiver{Parameters: []string{"o3"}, Entities: []string{"S1"}, MinCoverage: 1}
	n, err := a.Archive(src, dst, day0, day0.AddDate(0, 0, 2))
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("archived %d values, want 2", n)
	}
	v, err := dst.Values("o3", "S1", -2*day, 0)
	if err != nil {
		t.Fatal(err)
	}
	if fill := dst.NoData(); v[0] != 4 || v[1] != fill || v[2] != 8 {
		t.Errorf("have %v", v)
	}

	if _, err := (&Archiver{Entities: []string{"S1"}}).Archive(src, dst, day0, day0); !errors.Is(err, aqdata.ErrInvalidArgument) {
		t.Errorf("have %v, want invalid argument", err)
	}
}

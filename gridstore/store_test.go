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

package gridstore

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/spatialmodel/aqdata"
)

var _ aqdata.DataSource = &Store{}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// testConfigs returns an in-memory and a file-backed configuration.
func testConfigs(t *testing.T) map[string]Config {
	mem := DefaultConfig()
	mem.Offset = -2
	file := mem
	file.Filename = filepath.Join(t.TempDir(), "store.ncf")
	file.Chunk = [4]int{1, 2, 2, 2}
	return map[string]Config{"mem": mem, "ncf": file}
}

func TestStore(t *testing.T) {
	for name, cfg := range testConfigs(t) {
		t.Run(name, func(t *testing.T) {
			s, err := New(cfg)
			if err != nil {
				t.Fatal(err)
			}
			defer s.Close()
			if err := s.SetBaseTime(date(2020, 1, 10)); err != nil {
				t.Fatal(err)
			}
			if err := s.SetValues("pm10", "cellA", []float64{10, 11}, []time.Duration{0, day}); err != nil {
				t.Fatal(err)
			}
			start, ok := s.StartDate()
			if !ok || !start.Equal(date(2020, 1, 8)) {
				t.Errorf("start date %v", start)
			}

			v, err := s.ForecastValues("pm10", "cellA", 0, 0, 0)
			if err != nil {
				t.Fatal(err)
			}
			if want := []float64{10}; !reflect.DeepEqual(v, want) {
				t.Errorf("horizon 0: have %v, want %v", v, want)
			}
			v, err = s.ForecastValues("pm10", "cellA", 0, 0, 5*day)
			if err != nil {
				t.Fatal(err)
			}
			if want := []float64{s.NoData()}; !reflect.DeepEqual(v, want) {
				t.Errorf("horizon 5: have %v, want %v", v, want)
			}

			// The one-day forecast made on the 10th is for the 11th.
			if err := s.SetBaseTime(date(2020, 1, 11)); err != nil {
				t.Fatal(err)
			}
			v, err = s.ForecastValues("pm10", "cellA", -day, 0, day)
			if err != nil {
				t.Fatal(err)
			}
			if want := []float64{s.NoData(), 11}; !reflect.DeepEqual(v, want) {
				t.Errorf("horizon 1: have %v, want %v", v, want)
			}
			v, err = s.Values("pm10", "cellA", -3*day, 0)
			if err != nil {
				t.Fatal(err)
			}
			nd := s.NoData()
			if want := []float64{nd, nd, 10, nd}; !reflect.DeepEqual(v, want) {
				t.Errorf("values: have %v, want %v", v, want)
			}
			v, err = s.Values("o3", "cellA", -3*day, 0)
			if err != nil {
				t.Fatal(err)
			}
			if want := []float64{nd, nd, nd, nd}; !reflect.DeepEqual(v, want) {
				t.Errorf("unknown parameter: have %v, want %v", v, want)
			}
		})
	}
}

func TestStoreNoDataRemap(t *testing.T) {
	cfg := DefaultConfig()
	s, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SetBaseTime(date(2020, 3, 1)); err != nil {
		t.Fatal(err)
	}
	if err := s.SetValues("no2", "S1", []float64{aqdata.DefaultNoData, 0, 5}, []time.Duration{0, day, 2 * day}); err != nil {
		t.Fatal(err)
	}
	var have []float64
	for h := 0; h < 3; h++ {
		v, err := s.ForecastValues("no2", "S1", time.Duration(h)*day, time.Duration(h)*day, time.Duration(h)*day)
		if err != nil {
			t.Fatal(err)
		}
		have = append(have, v...)
	}
	if want := []float64{DefaultFillValue, 0, 5}; !reflect.DeepEqual(have, want) {
		t.Errorf("have %v, want %v", have, want)
	}
	if s.NoData() != DefaultFillValue {
		t.Errorf("nodata %g", s.NoData())
	}
}

func TestStoreErrors(t *testing.T) {
	s, err := New(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Values("no2", "S1", 0, 0); !errors.Is(err, aqdata.ErrNotConfigured) {
		t.Errorf("values before base time: have %v", err)
	}
	if err := s.SetValues("no2", "S1", []float64{1}, []time.Duration{0}); !errors.Is(err, aqdata.ErrNotConfigured) {
		t.Errorf("set values before base time: have %v", err)
	}
	if err := new(Store).SetBaseTime(date(2020, 1, 1)); !errors.Is(err, aqdata.ErrNotConfigured) {
		t.Errorf("unconfigured: have %v", err)
	}
	if err := s.SetBaseTime(date(2020, 1, 10)); err != nil {
		t.Fatal(err)
	}
	for _, test := range []struct {
		name     string
		values   []float64
		horizons []time.Duration
	}{
		{"mismatch", []float64{1, 2}, []time.Duration{0}},
		{"empty", nil, nil},
		{"sub-day", []float64{1}, []time.Duration{6 * time.Hour}},
		{"negative", []float64{1}, []time.Duration{-day}},
		{"gap", []float64{1, 2}, []time.Duration{0, 2 * day}},
	} {
		if err := s.SetValues("no2", "S1", test.values, test.horizons); !errors.Is(err, aqdata.ErrInvalidArgument) {
			t.Errorf("%s: have %v, want invalid argument", test.name, err)
		}
	}
	if s.Extents() != [4]int{} {
		t.Errorf("invalid writes changed extents to %v", s.Extents())
	}
	if _, err := s.Values("no2", "S1", day, 0); !errors.Is(err, aqdata.ErrInvalidArgument) {
		t.Errorf("begin after end: have %v", err)
	}
	if _, err := s.ForecastValues("no2", "S1", 0, 0, time.Hour); !errors.Is(err, aqdata.ErrInvalidArgument) {
		t.Errorf("sub-day horizon: have %v", err)
	}

	if err := s.SetValues("no2", "S1", []float64{1}, []time.Duration{0}); err != nil {
		t.Fatal(err)
	}
	// Dates before the start date of the store cannot be written.
	if err := s.SetBaseTime(date(2020, 1, 9)); err != nil {
		t.Fatal(err)
	}
	if err := s.SetValues("no2", "S1", []float64{1}, []time.Duration{0}); !errors.Is(err, aqdata.ErrInvalidArgument) {
		t.Errorf("before start date: have %v", err)
	}
	if err := s.Configure(Config{TimeInterval: time.Hour}); !errors.Is(err, aqdata.ErrConfiguration) {
		t.Errorf("hourly interval: have %v", err)
	}
}

func TestStoreReopen(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Filename = filepath.Join(t.TempDir(), "store.ncf")
	cfg.Offset = -2
	cfg.Description = "reopen test"
	cfg.Chunk = [4]int{1, 1, 1, 1}

	s, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	for i, d := range []time.Time{date(2020, 1, 10), date(2020, 1, 11), date(2020, 1, 12)} {
		if err := s.SetBaseTime(d); err != nil {
			t.Fatal(err)
		}
		for j, e := range []string{"S1", "S2"} {
			v := float64(10*i + j)
			if err := s.SetValues("no2", e, []float64{v, v + 0.5}, []time.Duration{0, day}); err != nil {
				t.Fatal(err)
			}
		}
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if s.State() != aqdata.Configured {
		t.Errorf("state after close: %v", s.State())
	}

	s2, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	if err := s2.SetBaseTime(date(2020, 1, 12)); err != nil {
		t.Fatal(err)
	}
	if want := [4]int{1, 2, 5, 2}; s2.Extents() != want {
		t.Errorf("extents: have %v, want %v", s2.Extents(), want)
	}
	if want := []string{"S1", "S2"}; !reflect.DeepEqual(s2.Entities(), want) {
		t.Errorf("entities: have %v, want %v", s2.Entities(), want)
	}
	if d, _ := s2.Attribute(DescriptionAttr); d != "reopen test" {
		t.Errorf("description %q", d)
	}
	v, err := s2.Values("no2", "S2", -2*day, 0)
	if err != nil {
		t.Fatal(err)
	}
	if want := []float64{1, 11, 21}; !reflect.DeepEqual(v, want) {
		t.Errorf("values: have %v, want %v", v, want)
	}
	v, err = s2.ForecastValues("no2", "S1", -day, day, day)
	if err != nil {
		t.Fatal(err)
	}
	if want := []float64{0.5, 10.5, 20.5}; !reflect.DeepEqual(v, want) {
		t.Errorf("forecast values: have %v, want %v", v, want)
	}
	begin, end := s2.Range(0)
	if begin != -4*day || end != 0 {
		t.Errorf("range: %v, %v", begin, end)
	}
	begin, end = s2.Range(day)
	if begin != -3*day || end != day {
		t.Errorf("range at horizon 1: %v, %v", begin, end)
	}

	// A base time whose start date is before the start of the
	// file is a configuration error.
	s3, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	err = s3.SetBaseTime(date(2020, 1, 9))
	if !errors.Is(err, aqdata.ErrConfiguration) {
		t.Errorf("early base time: have %v", err)
	}
	if s3.State() == aqdata.Ready {
		t.Error("store should not be ready")
	}
}

func TestStoreCorruptFile(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Filename = filepath.Join(t.TempDir(), "store.ncf")
	if err := os.WriteFile(cfg.Filename, []byte(strings.Repeat("x", 100)), 0644); err != nil {
		t.Fatal(err)
	}
	s, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SetBaseTime(date(2020, 1, 1)); !errors.Is(err, aqdata.ErrStorageCorruption) {
		t.Errorf("have %v, want storage corruption", err)
	}
	if s.State() != aqdata.BaseTimeSet {
		t.Errorf("state %v", s.State())
	}
	if _, err := s.Values("no2", "S1", 0, 0); !errors.Is(err, aqdata.ErrNotConfigured) {
		t.Errorf("values: have %v", err)
	}
}

func TestStoreMonotonicGrowth(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Filename = filepath.Join(t.TempDir(), "store.ncf")
	cfg.Chunk = [4]int{1, 1, 1, 1}
	s, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	type write struct {
		day     int
		param   string
		entity  string
		horizon int
		values  []float64
	}
	writes := []write{
		{0, "no2", "S1", 0, []float64{1, 2}},
		{2, "pm10", "S2", 3, []float64{3}},
		{1, "no2", "S3", 1, []float64{4, 5, 6}},
		{5, "o3", "S1", 0, []float64{7}},
		{3, "no2", "S1", 2, []float64{8}},
	}
	var prev [4]int
	for _, w := range writes {
		if err := s.SetBaseTime(date(2020, 6, 1).AddDate(0, 0, w.day)); err != nil {
			t.Fatal(err)
		}
		h := make([]time.Duration, len(w.values))
		for i := range h {
			h[i] = time.Duration(w.horizon+i) * day
		}
		if err := s.SetValues(w.param, w.entity, w.values, h); err != nil {
			t.Fatal(err)
		}
		ext := s.Extents()
		for i := range ext {
			if ext[i] < prev[i] {
				t.Errorf("%v axis shrank from %d to %d", Axis(i), prev[i], ext[i])
			}
		}
		prev = ext
	}
	if want := [4]int{3, 3, 6, 4}; prev != want {
		t.Errorf("extents: have %v, want %v", prev, want)
	}
	for _, w := range writes {
		if err := s.SetBaseTime(date(2020, 6, 1).AddDate(0, 0, w.day)); err != nil {
			t.Fatal(err)
		}
		for i, want := range w.values {
			h := time.Duration(w.horizon+i) * day
			v, err := s.ForecastValues(w.param, w.entity, h, h, h)
			if err != nil {
				t.Fatal(err)
			}
			if v[0] != want {
				t.Errorf("%s/%s day %d horizon %v: have %g, want %g", w.param, w.entity, w.day, h, v[0], want)
			}
		}
	}
}

func TestNetworkValues(t *testing.T) {
	net, err := aqdata.LoadNetwork(strings.NewReader(`
[[station]]
id = "S1"
parameters = ["no2"]

[[station]]
id = "S2"
parameters = ["pm10"]

[[station]]
id = "S3"
`))
	if err != nil {
		t.Fatal(err)
	}
	s, err := New(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SetBaseTime(date(2020, 1, 1)); err != nil {
		t.Fatal(err)
	}
	for _, e := range []string{"S1", "S2"} {
		if err := s.SetValues("no2", e, []float64{12}, []time.Duration{0}); err != nil {
			t.Fatal(err)
		}
	}
	v, err := s.NetworkValues(net, "no2", 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	nd := s.NoData()
	if want := []float64{12, nd, nd}; !reflect.DeepEqual(v, want) {
		t.Errorf("have %v, want %v", v, want)
	}
}

func TestStoreReconfigure(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Filename = filepath.Join(dir, "a.ncf")
	cfg.FillValue = -1
	s, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SetBaseTime(date(2020, 1, 1)); err != nil {
		t.Fatal(err)
	}
	if err := s.SetValues("no2", "S1", []float64{3}, []time.Duration{0}); err != nil {
		t.Fatal(err)
	}

	cfgB := cfg
	cfgB.Filename = filepath.Join(dir, "b.ncf")
	if err := s.Configure(cfgB); err != nil {
		t.Fatal(err)
	}
	if s.State() != aqdata.Configured {
		t.Errorf("state after reconfiguring: %v", s.State())
	}
	if s.Extents() != [4]int{} {
		t.Errorf("extents after reconfiguring: %v", s.Extents())
	}
	if _, err := os.Stat(cfgB.Filename); !os.IsNotExist(err) {
		t.Errorf("b.ncf should not exist before it is written: %v", err)
	}

	// The fill value of a.ncf is only known once it is opened.
	cfgA := cfg
	cfgA.FillValue = -2
	s2, err := New(cfgA)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	if s2.NoData() != -2 {
		t.Errorf("nodata before opening: have %g, want -2", s2.NoData())
	}
	if err := s2.SetBaseTime(date(2020, 1, 1)); err != nil {
		t.Fatal(err)
	}
	if s2.NoData() != -1 {
		t.Errorf("nodata after opening: have %g, want -1", s2.NoData())
	}
	v, err := s2.Values("no2", "S1", 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if want := []float64{3}; !reflect.DeepEqual(v, want) {
		t.Errorf("reopened values: have %v, want %v", v, want)
	}
}

func TestStoreCreateError(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Filename = filepath.Join(t.TempDir(), "missing", "store.ncf")
	s, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SetBaseTime(date(2020, 1, 1)); err != nil {
		t.Fatal(err)
	}
	err = s.SetValues("no2", "S1", []float64{1}, []time.Duration{0})
	if !errors.Is(err, aqdata.ErrConfiguration) {
		t.Errorf("have %v, want configuration error", err)
	}
	if err == nil || !strings.Contains(err.Error(), "gridstore: creating array file") {
		t.Errorf("error should describe the cause: %v", err)
	}
}

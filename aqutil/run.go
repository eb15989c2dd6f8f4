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
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/GaryBoone/GoStats/stats"
	"github.com/gonum/floats"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/aqdata"
	"github.com/spatialmodel/aqdata/gridstore"
	"github.com/spf13/cast"
)

const (
	day        = 24 * time.Hour
	timeFormat = "2006-01-02T15:04"
)

// Get writes the values of parameter at entity from src between the
// begin and end offsets from base, as forecast horizon in advance,
// to w with one "time<tab>value" line per time step.
func Get(w io.Writer, src aqdata.DataSource, base time.Time, parameter, entity string, begin, end, horizon time.Duration) error {
	if err := src.SetBaseTime(base); err != nil {
		return err
	}
	vals, err := src.ForecastValues(parameter, entity, begin, end, horizon)
	if err != nil {
		return err
	}
	ti := aqdata.TimeIndex{Resolution: src.TimeResolution()}
	first, err := ti.Floor(base.Add(begin))
	if err != nil {
		return err
	}
	for i, v := range vals {
		t := first.Add(time.Duration(i) * ti.Resolution)
		if _, err := fmt.Fprintf(w, "%s\t%g\n", t.Format(timeFormat), v); err != nil {
			return err
		}
	}
	return nil
}

// Put stores values of parameter at entity in s for the date of base,
// for consecutive forecast horizons starting at horizon days.
func Put(s *gridstore.Store, base time.Time, parameter, entity string, values []float64, horizon int) error {
	if err := s.SetBaseTime(base); err != nil {
		return err
	}
	horizons := make([]time.Duration, len(values))
	for i := range horizons {
		horizons[i] = time.Duration(horizon+i) * day
	}
	return s.SetValues(parameter, entity, values, horizons)
}

// toFloats converts command-line arguments to numbers.
func toFloats(s []string) ([]float64, error) {
	out := make([]float64, len(s))
	for i, v := range s {
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return nil, errors.Wrapf(aqdata.ErrInvalidArgument, "aqutil: value %q is not a number", v)
		}
		out[i] = f
	}
	return out, nil
}

// Archiver computes daily means of observations and stores them.
type Archiver struct {
	Parameters, Entities []string

	// MinCoverage is the fraction of the time steps in a day that
	// must have data for a daily mean to be stored.
	MinCoverage float64

	Log logrus.FieldLogger
}

// Archive stores the daily mean of each parameter at each entity in src,
// for each day from begin to end, in dst with a forecast horizon of zero.
// Days with too little data are skipped. It returns the number of
// values stored.
func (a *Archiver) Archive(src, dst aqdata.DataSource, begin, end time.Time) (int, error) {
	if len(a.Parameters) == 0 || len(a.Entities) == 0 {
		return 0, errors.Wrap(aqdata.ErrInvalidArgument, "aqutil: no parameters or entities to archive")
	}
	if a.MinCoverage < 0 || a.MinCoverage > 1 {
		return 0, errors.Wrapf(aqdata.ErrInvalidArgument, "aqutil: coverage %g is not between 0 and 1", a.MinCoverage)
	}
	ti := aqdata.TimeIndex{Resolution: day}
	first, err := ti.Floor(begin)
	if err != nil {
		return 0, err
	}
	last, err := ti.Floor(end)
	if err != nil {
		return 0, err
	}
	res := src.TimeResolution()
	var n int
	for d := first; !d.After(last); d = d.Add(day) {
		if err := src.SetBaseTime(d.Add(day)); err != nil {
			return n, err
		}
		if err := dst.SetBaseTime(d); err != nil {
			return n, err
		}
		for _, p := range a.Parameters {
			for _, e := range a.Entities {
				vals, err := src.Values(p, e, -day, -res)
				if err != nil {
					return n, err
				}
				mean, ok := dailyMean(vals, src.NoData(), a.MinCoverage)
				log := a.log().WithFields(logrus.Fields{
					"date":      d.Format("2006-01-02"),
					"parameter": p,
					"entity":    e,
				})
				if !ok {
					log.Debug("aqutil: not enough data for daily mean")
					continue
				}
				if err := dst.SetValues(p, e, []float64{mean}, []time.Duration{0}); err != nil {
					return n, err
				}
				n++
			}
		}
	}
	a.log().WithField("values", n).Info("aqutil: archived daily means")
	return n, nil
}

func (a *Archiver) log() logrus.FieldLogger {
	if a.Log == nil {
		return logrus.StandardLogger()
	}
	return a.Log
}

// dailyMean returns the mean of the values that are not nodata and
// whether they make up at least minCoverage of vals.
func dailyMean(vals []float64, nodata, minCoverage float64) (float64, bool) {
	valid := make([]float64, 0, len(vals))
	for _, v := range vals {
		if v != nodata {
			valid = append(valid, v)
		}
	}
	if len(valid) == 0 || float64(len(valid)) < minCoverage*float64(len(vals)) {
		return 0, false
	}
	return floats.Sum(valid) / float64(len(valid)), true
}

// Info writes a description of s to w. If parameter and entity
// are not empty it also writes statistics of their values for
// all dates at a forecast horizon of zero.
func Info(w io.Writer, s *gridstore.Store, base time.Time, parameter, entity string) error {
	if err := s.SetBaseTime(base); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 8, 1, ' ', 0)
	start, ok := s.StartDate()
	if !ok {
		fmt.Fprintf(tw, "file:\t%s (not created)\n", s.Filename())
		return tw.Flush()
	}
	ext := s.Extents()
	fmt.Fprintf(tw, "file:\t%s\n", s.Filename())
	fmt.Fprintf(tw, "start date:\t%s\n", start.Format("2006-01-02"))
	if desc, ok := s.Attribute(gridstore.DescriptionAttr); ok && desc != "" {
		fmt.Fprintf(tw, "description:\t%s\n", desc)
	}
	fmt.Fprintf(tw, "dates:\t%d\n", ext[gridstore.DateAxis])
	fmt.Fprintf(tw, "horizons:\t%d\n", ext[gridstore.HorizonAxis])
	fmt.Fprintf(tw, "parameters:\t%v\n", s.Parameters())
	fmt.Fprintf(tw, "entities:\t%v\n", s.Entities())
	if parameter == "" || entity == "" {
		return tw.Flush()
	}
	begin, end := s.Range(0)
	vals, err := s.Values(parameter, entity, begin, end)
	if err != nil {
		return err
	}
	valid := make([]float64, 0, len(vals))
	for _, v := range vals {
		if v != s.NoData() {
			valid = append(valid, v)
		}
	}
	fmt.Fprintf(tw, "%s at %s:\t%d of %d dates\n", parameter, entity, len(valid), len(vals))
	if len(valid) > 0 {
		fmt.Fprintf(tw, "min:\t%g\n", floats.Min(valid))
		fmt.Fprintf(tw, "max:\t%g\n", floats.Max(valid))
		fmt.Fprintf(tw, "mean:\t%g\n", floats.Sum(valid)/float64(len(valid)))
	}
	if len(valid) > 1 {
		fmt.Fprintf(tw, "std dev:\t%g\n", stats.StatsSampleStandardDeviation(valid))
	}
	return tw.Flush()
}

// NetworkValues writes the value of parameter at offset from base, as
// forecast horizon in advance, for each station in net to w.
func NetworkValues(w io.Writer, s *gridstore.Store, net aqdata.Network, base time.Time, parameter string, offset, horizon time.Duration) error {
	if err := s.SetBaseTime(base); err != nil {
		return err
	}
	vals, err := s.NetworkValues(net, parameter, offset, horizon)
	if err != nil {
		return err
	}
	for i, e := range net.Entities() {
		if _, err := fmt.Fprintf(w, "%s\t%g\n", e, vals[i]); err != nil {
			return err
		}
	}
	return nil
}

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

// Package window implements a data source that holds a sliding window of
// observations around a base time, read on demand from flat text files.
//
// Each file holds the values of one parameter at one entity. A line holds
// a date (2006-01-02 or 20060102), an optional time of day (HH:MM) and
// one value for each time step starting at that time, separated by
// spaces, commas or semicolons. Lines starting with # are ignored.
package window

import (
	"context"
	"time"

	"github.com/golang/groupcache/lru"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/aqdata"
)

// Config holds the settings of a Buffer.
type Config struct {
	// Filename is the name of the file holding the data for each parameter
	// and entity, with {parameter} and {entity} in place of their names.
	// It can be a local path, an http(s) URL or a blob URL.
	Filename string

	// BeginOffset and EndOffset are the bounds of the window
	// relative to the base time.
	BeginOffset, EndOffset time.Duration

	// ClearOnNewBaseTime specifies whether buffered values are
	// discarded when the base time changes.
	ClearOnNewBaseTime bool

	// Resolution is the time step of the data: one hour, six hours or one day.
	Resolution time.Duration

	// TimeInterval, if it is not zero, must equal Resolution.
	TimeInterval time.Duration

	// Scale multiplies the values read from files.
	Scale float64

	// NoData is the value returned for missing data.
	NoData float64

	// FileNoData, if not nil, is the value that marks
	// missing data in files.
	FileNoData *float64

	// IgnoreHorizon specifies whether a non-zero forecast horizon is
	// ignored by ForecastValues. If it is false, a non-zero horizon
	// causes an error.
	IgnoreHorizon bool

	// MaxSeries, if not zero, is the maximum number of parameter and
	// entity combinations that are held at once. The least recently
	// used combination is discarded to make room for a new one.
	MaxSeries int
}

// DefaultConfig returns a configuration for hourly data in a
// two-day window ending at the base time. Filename must be set
// before use.
func DefaultConfig() Config {
	return Config{
		BeginOffset:        -48 * time.Hour,
		ClearOnNewBaseTime: true,
		Resolution:         aqdata.Hourly,
		Scale:              1,
		NoData:             aqdata.DefaultNoData,
		IgnoreHorizon:      true,
	}
}

// series holds the values of one parameter at one entity, starting
// at the beginning of the window they were read for.
type series struct {
	begin  time.Time
	values []float64
}

// Buffer is a data source holding the values in a window around the
// base time. The values for each parameter and entity are read from
// their file the first time they are requested.
type Buffer struct {
	Log logrus.FieldLogger

	// Opener opens data files. If it is nil, a FileOpener is used.
	Opener Opener

	cfg   Config
	state aqdata.State
	ti    aqdata.TimeIndex

	base       time.Time
	begin, end time.Time
	steps      int

	data *lru.Cache
}

// seriesKey identifies the series of one parameter at one entity.
type seriesKey struct{ parameter, entity string }

// New returns a new Buffer with the given configuration.
func New(cfg Config) (*Buffer, error) {
	b := &Buffer{
		Log:    logrus.StandardLogger(),
		Opener: &FileOpener{MaxRetries: 5},
	}
	if err := b.Configure(cfg); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Buffer) log() logrus.FieldLogger {
	if b.Log == nil {
		return logrus.StandardLogger()
	}
	return b.Log
}

// Configure applies cfg to the buffer and discards any buffered values.
func (b *Buffer) Configure(cfg Config) error {
	b.state = aqdata.Unconfigured
	b.data = nil
	b.base = time.Time{}
	switch {
	case cfg.Filename == "":
		return errors.Wrap(aqdata.ErrConfiguration, "window: missing filename")
	case cfg.Resolution != aqdata.Hourly && cfg.Resolution != aqdata.SixHourly && cfg.Resolution != aqdata.Daily:
		return errors.Wrapf(aqdata.ErrConfiguration, "window: unsupported resolution %v", cfg.Resolution)
	case cfg.BeginOffset > cfg.EndOffset:
		return errors.Wrapf(aqdata.ErrConfiguration, "window: begin offset %v after end offset %v", cfg.BeginOffset, cfg.EndOffset)
	case cfg.TimeInterval != 0 && cfg.TimeInterval != cfg.Resolution:
		return errors.Wrapf(aqdata.ErrConfiguration, "window: time interval %v does not match resolution %v", cfg.TimeInterval, cfg.Resolution)
	case cfg.Scale == 0:
		return errors.Wrap(aqdata.ErrConfiguration, "window: scale is zero")
	case cfg.MaxSeries < 0:
		return errors.Wrapf(aqdata.ErrConfiguration, "window: negative maximum number of series %d", cfg.MaxSeries)
	}
	b.cfg = cfg
	b.ti = aqdata.TimeIndex{Resolution: cfg.Resolution}
	b.state = aqdata.Configured
	return nil
}

// State implements aqdata.DataSource.
func (b *Buffer) State() aqdata.State { return b.state }

// BaseTime implements aqdata.DataSource.
func (b *Buffer) BaseTime() time.Time { return b.base }

// TimeResolution implements aqdata.DataSource.
func (b *Buffer) TimeResolution() time.Duration { return b.cfg.Resolution }

// NoData implements aqdata.DataSource.
func (b *Buffer) NoData() float64 { return b.cfg.NoData }

// Range implements aqdata.DataSource. It returns the
// configured window offsets for any horizon.
func (b *Buffer) Range(horizon time.Duration) (begin, end time.Duration) {
	return b.cfg.BeginOffset, b.cfg.EndOffset
}

// SetBaseTime implements aqdata.DataSource. It rounds t down to the
// time resolution and moves the window. Buffered values are discarded
// unless ClearOnNewBaseTime is false, in which case they are
// shifted into the new window when they are next requested.
func (b *Buffer) SetBaseTime(t time.Time) error {
	if b.state == aqdata.Unconfigured {
		return errors.Wrap(aqdata.ErrNotConfigured, "window: setting base time")
	}
	base, err := b.ti.Floor(t)
	if err != nil {
		return err
	}
	begin, err := b.ti.Floor(base.Add(b.cfg.BeginOffset))
	if err != nil {
		return err
	}
	end, err := b.ti.Ceil(base.Add(b.cfg.EndOffset))
	if err != nil {
		return err
	}
	steps, err := b.ti.StepsBetween(begin, end)
	if err != nil {
		return err
	}
	if b.cfg.ClearOnNewBaseTime || b.base.IsZero() || b.data == nil {
		b.data = lru.New(b.cfg.MaxSeries)
	}
	b.base, b.begin, b.end, b.steps = base, begin, end, steps+1
	b.state = aqdata.Ready
	return nil
}

// Window returns the first and last time steps in the window.
func (b *Buffer) Window() (begin, end time.Time) { return b.begin, b.end }

func (b *Buffer) nodata(n int) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = b.cfg.NoData
	}
	return v
}

// series returns the values in the window for the parameter and entity,
// reading them from their file if they are not buffered.
func (b *Buffer) series(parameter, entity string) []float64 {
	key := seriesKey{parameter, entity}
	var s *series
	if v, ok := b.data.Get(key); ok {
		s = v.(*series)
	} else {
		s = &series{begin: b.begin, values: b.read(parameter, entity)}
		b.data.Add(key, s)
	}
	if !s.begin.Equal(b.begin) {
		b.realign(s)
	}
	return s.values
}

// realign moves the values in s to the current window. Values that
// fall outside of the window are dropped.
func (b *Buffer) realign(s *series) {
	shift, _ := b.ti.StepsBetween(b.begin, s.begin)
	v := b.nodata(b.steps)
	for i, x := range s.values {
		if j := i + shift; j >= 0 && j < len(v) {
			v[j] = x
		}
	}
	s.begin, s.values = b.begin, v
}

// read reads the values in the window for the parameter and entity from
// their file. A missing or unreadable file leaves all values as nodata.
func (b *Buffer) read(parameter, entity string) []float64 {
	vals := b.nodata(b.steps)
	name := fileName(b.cfg.Filename, parameter, entity)
	log := b.log().WithFields(logrus.Fields{
		"parameter": parameter,
		"entity":    entity,
		"file":      name,
	})
	opener := b.Opener
	if opener == nil {
		opener = &FileOpener{MaxRetries: 5, Log: b.Log}
	}
	r, err := opener.Open(context.Background(), name)
	if err != nil {
		if errors.Is(err, aqdata.ErrNotFound) {
			log.Info("window: no data file")
		} else {
			log.WithError(err).Warn("window: opening data file")
		}
		return vals
	}
	defer r.Close()

	fr := &fileReader{
		begin:      b.begin,
		end:        b.end,
		resolution: b.cfg.Resolution,
		scale:      b.cfg.Scale,
		fileNoData: b.cfg.FileNoData,
		warn: func(line int, err error) {
			log.WithField("line", line).WithError(err).Warn("window: skipping line")
		},
	}
	n, err := fr.read(r, vals)
	if err != nil {
		log.WithError(err).Warn("window: reading data file")
		return b.nodata(b.steps)
	}
	log.WithField("values", n).Debug("window: read data file")
	return vals
}

// Values implements aqdata.DataSource. The returned slice has one
// element for each time step from the base time plus begin, rounded
// down, to the base time plus end, rounded up. Time steps outside the
// window or without data are set to NoData().
func (b *Buffer) Values(parameter, entity string, begin, end time.Duration) ([]float64, error) {
	if err := aqdata.CheckReady(b.state); err != nil {
		return nil, err
	}
	if begin > end {
		return nil, errors.Wrapf(aqdata.ErrInvalidArgument, "window: begin offset %v after end offset %v", begin, end)
	}
	first, err := b.ti.Floor(b.base.Add(begin))
	if err != nil {
		return nil, err
	}
	last, err := b.ti.Ceil(b.base.Add(end))
	if err != nil {
		return nil, err
	}
	n, err := b.ti.StepsBetween(first, last)
	if err != nil {
		return nil, err
	}
	src := b.series(parameter, entity)
	out := make([]float64, 0, n+1)
	t := first
	for i := 0; i <= n; i++ {
		switch {
		case t.Before(b.begin) || t.After(b.end):
			out = append(out, b.cfg.NoData)
		default:
			j, _ := b.ti.StepsBetween(b.begin, t)
			if j < len(src) {
				out = append(out, src[j])
			} else {
				out = append(out, b.cfg.NoData)
			}
		}
		t = t.Add(b.cfg.Resolution)
	}
	return out, nil
}

// ForecastValues implements aqdata.DataSource. Buffers hold observations,
// so the horizon is ignored if the IgnoreHorizon option is set and
// must otherwise be zero.
func (b *Buffer) ForecastValues(parameter, entity string, begin, end, horizon time.Duration) ([]float64, error) {
	if horizon != 0 && !b.cfg.IgnoreHorizon {
		return nil, errors.Wrapf(aqdata.ErrUnsupported, "window: forecast horizon %v", horizon)
	}
	return b.Values(parameter, entity, begin, end)
}

// SetValues implements aqdata.DataSource. Buffers are read-only,
// so it always returns an error.
func (b *Buffer) SetValues(parameter, entity string, values []float64, horizons []time.Duration) error {
	return errors.Wrap(aqdata.ErrUnsupported, "window: buffers are read-only")
}

// Close implements aqdata.DataSource. It discards all buffered values.
func (b *Buffer) Close() error {
	b.data = nil
	if b.state != aqdata.Unconfigured {
		b.state = aqdata.Configured
		b.base = time.Time{}
	}
	return nil
}

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

// Package gridstore implements a persistent data source that accumulates
// values in a four-dimensional array indexed by parameter, spatial entity,
// date and forecast horizon. Every axis grows as new names, dates and
// horizons are written.
package gridstore

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/aqdata"
)

const day = 24 * time.Hour

const dateFormat = "2006-01-02"

// DefaultChunk holds the default numbers of indices by which the
// parameter, entity, date and horizon axes of a file grow.
var DefaultChunk = [4]int{4, 64, 32, 16}

// Config holds the settings of a Store.
type Config struct {
	// Filename is the path of the NetCDF file holding the data. If it is
	// empty, the data are kept in memory and discarded when the Store
	// is closed.
	Filename string

	// Offset is the number of days from the first base time to the
	// first date of a new file. It is usually zero or negative.
	Offset int

	// NoData is the value callers use to mark missing data when
	// calling SetValues.
	NoData float64

	// FillValue is the value used for missing data in a new file.
	// Existing files keep the fill value they were created with.
	FillValue float64

	// TimeInterval, if it is not zero, must be one day.
	TimeInterval time.Duration

	// Description is stored in new files.
	Description string

	// Chunk holds the numbers of indices by which the parameter, entity,
	// date and horizon axes of a file grow. Zero values are replaced
	// by the values in DefaultChunk.
	Chunk [4]int
}

// DefaultConfig returns a configuration for an in-memory store
// with the default nodata and fill values.
func DefaultConfig() Config {
	return Config{
		NoData:    aqdata.DefaultNoData,
		FillValue: DefaultFillValue,
		Chunk:     DefaultChunk,
	}
}

// Store is a data source backed by an ArrayFile. It keeps one value per
// parameter, entity, date and forecast horizon, where the date is that
// of the base time when the value was written.
type Store struct {
	Log logrus.FieldLogger

	cfg   Config
	state aqdata.State

	base  time.Time // current base time
	first time.Time // first base time since configuration
	start time.Time // date of date index 0; zero until known

	file       ArrayFile
	parameters *aqdata.Dictionary
	entities   *aqdata.Dictionary
}

// New returns a new Store with the given configuration.
func New(cfg Config) (*Store, error) {
	s := &Store{Log: logrus.StandardLogger()}
	if err := s.Configure(cfg); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) log() logrus.FieldLogger {
	if s.Log == nil {
		return logrus.StandardLogger()
	}
	return s.Log
}

// Configure applies cfg to the store, closing any open file first.
func (s *Store) Configure(cfg Config) error {
	if err := s.closeFile(); err != nil {
		s.log().WithError(err).Warn("gridstore: closing file before reconfiguration")
	}
	s.state = aqdata.Unconfigured
	s.base, s.first, s.start = time.Time{}, time.Time{}, time.Time{}
	s.parameters, s.entities = nil, nil

	if cfg.TimeInterval != 0 && cfg.TimeInterval != day {
		return errors.Wrapf(aqdata.ErrConfiguration, "gridstore: time interval %v; only daily data are supported", cfg.TimeInterval)
	}
	for i, c := range cfg.Chunk {
		switch {
		case c < 0:
			return errors.Wrapf(aqdata.ErrConfiguration, "gridstore: negative %v chunk size %d", Axis(i), c)
		case c == 0:
			cfg.Chunk[i] = DefaultChunk[i]
		}
	}
	s.cfg = cfg
	s.state = aqdata.Configured
	return nil
}

// State implements aqdata.DataSource.
func (s *Store) State() aqdata.State { return s.state }

// BaseTime implements aqdata.DataSource.
func (s *Store) BaseTime() time.Time { return s.base }

// TimeResolution implements aqdata.DataSource. Stores are always daily.
func (s *Store) TimeResolution() time.Duration { return day }

// floorDay truncates t to the start of its UTC day.
func floorDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// SetBaseTime implements aqdata.DataSource. The first time it is called
// after configuration, it opens the configured file if it exists and
// checks that its start date is not after the start date that would
// be computed for t.
func (s *Store) SetBaseTime(t time.Time) error {
	if s.state == aqdata.Unconfigured {
		return errors.Wrap(aqdata.ErrNotConfigured, "gridstore: setting base time")
	}
	s.base = floorDay(t)
	if s.first.IsZero() {
		s.first = s.base
	}
	s.state = aqdata.BaseTimeSet
	if s.file == nil && s.cfg.Filename != "" {
		if err := s.openExisting(); err != nil {
			return err
		}
	}
	s.state = aqdata.Ready
	return nil
}

// openExisting opens the configured file if it exists.
func (s *Store) openExisting() error {
	if _, err := os.Stat(s.cfg.Filename); os.IsNotExist(err) {
		return nil
	} else if err != nil {
		return errors.Wrapf(aqdata.ErrStorageCorruption, "gridstore: %v", err)
	}
	f, err := OpenNCF(s.cfg.Filename, s.cfg.Chunk)
	if err != nil {
		return err
	}
	if err := s.attach(f); err != nil {
		f.Close()
		return err
	}
	want := s.base.AddDate(0, 0, s.cfg.Offset)
	if s.start.After(want) {
		start := s.start
		s.detach()
		f.Close()
		return errors.Wrapf(aqdata.ErrConfiguration,
			"gridstore: file %s starts on %s, after the start date %s for base time %s",
			s.cfg.Filename, start.Format(dateFormat), want.Format(dateFormat), s.base.Format(dateFormat))
	}
	s.log().WithFields(logrus.Fields{
		"file":       s.cfg.Filename,
		"start_date": s.start.Format(dateFormat),
		"extents":    f.Extents(),
	}).Info("gridstore: opened file")
	return nil
}

// attach makes f the backing array of the store, loading its
// dictionaries and start date.
func (s *Store) attach(f ArrayFile) error {
	if v, ok := f.Attribute(SchemaVersionAttr); !ok || v != "1" {
		return errors.Wrapf(aqdata.ErrStorageCorruption, "gridstore: schema version %q; want %d", v, SchemaVersion)
	}
	sd, ok := f.Attribute(StartDateAttr)
	if !ok {
		return errors.Wrapf(aqdata.ErrStorageCorruption, "gridstore: missing %s attribute", StartDateAttr)
	}
	start, err := time.Parse(dateFormat, sd)
	if err != nil {
		return errors.Wrapf(aqdata.ErrStorageCorruption, "gridstore: %s attribute: %v", StartDateAttr, err)
	}
	params, err := aqdata.NewDictionary(f.Names(ParameterAxis)...)
	if err != nil {
		return err
	}
	entities, err := aqdata.NewDictionary(f.Names(EntityAxis)...)
	if err != nil {
		return err
	}
	s.file, s.start, s.parameters, s.entities = f, start, params, entities
	return nil
}

func (s *Store) detach() {
	s.file, s.start, s.parameters, s.entities = nil, time.Time{}, nil, nil
}

// create creates the backing array, with a start date computed
// from the first base time.
func (s *Store) create() error {
	start := s.first.AddDate(0, 0, s.cfg.Offset)
	attrs := map[string]string{
		StartDateAttr:   start.Format(dateFormat),
		DescriptionAttr: s.cfg.Description,
		CreatedAttr:     time.Now().UTC().Format(time.RFC3339),
	}
	var f ArrayFile
	if s.cfg.Filename == "" {
		f = NewMemArray(s.cfg.FillValue, attrs)
	} else {
		var err error
		f, err = CreateNCF(s.cfg.Filename, s.cfg.FillValue, attrs, s.cfg.Chunk)
		if err != nil {
			return errors.Wrapf(aqdata.ErrConfiguration, "%v", err)
		}
	}
	if err := s.attach(f); err != nil {
		f.Close()
		return err
	}
	s.log().WithFields(logrus.Fields{
		"file":       s.cfg.Filename,
		"start_date": attrs[StartDateAttr],
	}).Info("gridstore: created new store")
	return nil
}

// NoData implements aqdata.DataSource. It returns the fill value of the
// backing file, which is used for missing data in returned values.
// Until SetBaseTime has opened or created the file, it returns the
// configured FillValue, which an existing file may not share.
func (s *Store) NoData() float64 {
	if s.file != nil {
		return s.file.FillValue()
	}
	return s.cfg.FillValue
}

// dateIndex returns the index along the date axis of the date of t.
func (s *Store) dateIndex(t time.Time) int {
	i, _ := aqdata.TimeIndex{Resolution: day, Epoch: s.start}.Index(t)
	return i
}

// horizonIndex converts a forecast horizon to an index along
// the horizon axis.
func horizonIndex(h time.Duration) (int, error) {
	n, exact, err := aqdata.TimeIndex{Resolution: day}.Steps(h)
	if err != nil {
		return 0, err
	}
	if n < 0 || !exact {
		return 0, errors.Wrapf(aqdata.ErrInvalidArgument, "gridstore: horizon %v is not a whole number of days", h)
	}
	return n, nil
}

// Range implements aqdata.DataSource. It returns the offsets of the first
// and last dates held in the store, shifted by the horizon. It returns
// zero offsets when the store is empty.
func (s *Store) Range(horizon time.Duration) (begin, end time.Duration) {
	if s.file == nil {
		return 0, 0
	}
	n := s.file.Extents()[DateAxis]
	if n == 0 {
		return 0, 0
	}
	first := s.start.Add(horizon)
	last := s.start.AddDate(0, 0, n-1).Add(horizon)
	return first.Sub(s.base), last.Sub(s.base)
}

// Values implements aqdata.DataSource. It is the same
// as ForecastValues with a zero horizon.
func (s *Store) Values(parameter, entity string, begin, end time.Duration) ([]float64, error) {
	return s.ForecastValues(parameter, entity, begin, end, 0)
}

// ForecastValues implements aqdata.DataSource. It returns one value per day
// from begin to end, as forecast horizon days before each day. Days,
// parameters or entities that are not in the store are set to NoData().
func (s *Store) ForecastValues(parameter, entity string, begin, end, horizon time.Duration) ([]float64, error) {
	if err := aqdata.CheckReady(s.state); err != nil {
		return nil, err
	}
	if begin > end {
		return nil, errors.Wrapf(aqdata.ErrInvalidArgument, "gridstore: begin offset %v after end offset %v", begin, end)
	}
	h, err := horizonIndex(horizon)
	if err != nil {
		return nil, err
	}
	ti := aqdata.TimeIndex{Resolution: day}
	first, err := ti.Floor(s.base.Add(begin - horizon))
	if err != nil {
		return nil, err
	}
	last, err := ti.Ceil(s.base.Add(end - horizon))
	if err != nil {
		return nil, err
	}
	n, err := ti.StepsBetween(first, last)
	if err != nil {
		return nil, err
	}
	out := make([]float64, n+1)
	nodata := s.NoData()
	for i := range out {
		out[i] = nodata
	}
	if s.file == nil {
		return out, nil
	}
	p, err := s.parameters.IndexOf(parameter, false)
	if err != nil {
		return out, nil
	}
	e, err := s.entities.IndexOf(entity, false)
	if err != nil {
		return out, nil
	}
	ext := s.file.Extents()
	if h >= ext[HorizonAxis] {
		return out, nil
	}
	d0 := s.dateIndex(first)
	lo, hi := d0, d0+n
	if lo < 0 {
		lo = 0
	}
	if hi > ext[DateAxis]-1 {
		hi = ext[DateAxis] - 1
	}
	if lo > hi {
		return out, nil
	}
	err = s.file.ReadSlab([4]int{p, e, lo, h}, [4]int{1, 1, hi - lo + 1, 1}, out[lo-d0:hi-d0+1])
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SetValues implements aqdata.DataSource. It stores values for the date
// of the current base time, one for each of a run of consecutive daily
// horizons. Values equal to the configured NoData are stored as the
// fill value of the file.
func (s *Store) SetValues(parameter, entity string, values []float64, horizons []time.Duration) error {
	if err := aqdata.CheckReady(s.state); err != nil {
		return err
	}
	if len(values) == 0 || len(values) != len(horizons) {
		return errors.Wrapf(aqdata.ErrInvalidArgument, "gridstore: %d values for %d horizons", len(values), len(horizons))
	}
	h, err := horizonIndex(horizons[0])
	if err != nil {
		return err
	}
	for i := 1; i < len(horizons); i++ {
		if horizons[i]-horizons[i-1] != day {
			return errors.Wrapf(aqdata.ErrInvalidArgument, "gridstore: horizons %v and %v are not consecutive days", horizons[i-1], horizons[i])
		}
	}
	if parameter == "" || entity == "" {
		return errors.Wrap(aqdata.ErrInvalidArgument, "gridstore: empty parameter or entity name")
	}
	if s.file == nil {
		if err := s.create(); err != nil {
			return err
		}
	}
	d := s.dateIndex(s.base)
	if d < 0 {
		return errors.Wrapf(aqdata.ErrInvalidArgument, "gridstore: base time %s is before the start date %s",
			s.base.Format(dateFormat), s.start.Format(dateFormat))
	}
	p, err := s.index(ParameterAxis, s.parameters, parameter)
	if err != nil {
		return err
	}
	e, err := s.index(EntityAxis, s.entities, entity)
	if err != nil {
		return err
	}
	ext := s.file.Extents()
	if d >= ext[DateAxis] {
		if err := s.file.Extend(DateAxis, d+1); err != nil {
			return err
		}
	}
	if h+len(values) > ext[HorizonAxis] {
		if err := s.file.Extend(HorizonAxis, h+len(values)); err != nil {
			return err
		}
	}
	return s.file.WriteSlab([4]int{p, e, d, h}, [4]int{1, 1, 1, len(values)}, s.remap(values))
}

// index returns the index of name along the axis, adding it
// to the dictionary and the file if it is new.
func (s *Store) index(axis Axis, dict *aqdata.Dictionary, name string) (int, error) {
	if i, err := dict.IndexOf(name, false); err == nil {
		return i, nil
	}
	if err := s.file.AppendName(axis, name); err != nil {
		return -1, err
	}
	i, err := dict.IndexOf(name, true)
	if err != nil {
		return -1, err
	}
	s.log().WithFields(logrus.Fields{
		"axis":  axis.String(),
		"name":  name,
		"index": i,
	}).Debug("gridstore: new name")
	return i, nil
}

// remap returns a copy of values in which the configured nodata
// value is replaced by the fill value of the file.
func (s *Store) remap(values []float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	fill := s.file.FillValue()
	if s.cfg.NoData == fill {
		return out
	}
	for i, v := range out {
		if v == s.cfg.NoData {
			out[i] = fill
		}
	}
	return out
}

// Extents returns the extents of the array along the parameter, entity,
// date and horizon axes.
func (s *Store) Extents() [4]int {
	if s.file == nil {
		return [4]int{}
	}
	return s.file.Extents()
}

// Filename returns the path of the backing file, which is empty
// for stores held in memory.
func (s *Store) Filename() string { return s.cfg.Filename }

// StartDate returns the date of the first date index
// and whether it is known yet.
func (s *Store) StartDate() (time.Time, bool) {
	return s.start, s.file != nil
}

// Parameters returns the names of the parameters in the store.
func (s *Store) Parameters() []string {
	if s.parameters == nil {
		return nil
	}
	return s.parameters.Names()
}

// Entities returns the names of the entities in the store.
func (s *Store) Entities() []string {
	if s.entities == nil {
		return nil
	}
	return s.entities.Names()
}

// Attribute returns a metadata attribute of the backing file.
func (s *Store) Attribute(name string) (string, bool) {
	if s.file == nil {
		return "", false
	}
	return s.file.Attribute(name)
}

// Sync flushes the backing file to disk.
func (s *Store) Sync() error {
	if s.file == nil {
		return nil
	}
	return s.file.Sync()
}

func (s *Store) closeFile() error {
	if s.file == nil {
		return nil
	}
	f := s.file
	s.detach()
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Close implements aqdata.DataSource. It flushes and closes the backing
// file. The store can be used again after setting a new base time.
func (s *Store) Close() error {
	err := s.closeFile()
	if s.state != aqdata.Unconfigured {
		s.state = aqdata.Configured
		s.base, s.first = time.Time{}, time.Time{}
	}
	return err
}

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
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/lnashier/viper"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/aqdata"
	"github.com/spatialmodel/aqdata/gridstore"
	"github.com/spatialmodel/aqdata/window"
	"github.com/spf13/cast"
)

// WindowConfig reads the configuration of a window.Buffer from the
// options under prefix in cfg.
func WindowConfig(cfg *viper.Viper, prefix string) (window.Config, error) {
	c := window.DefaultConfig()
	key := func(k string) string { return prefix + "." + k }

	c.Filename = os.ExpandEnv(cfg.GetString(key("filename")))
	c.BeginOffset = time.Duration(cfg.GetFloat64(key("begin_offset")) * float64(time.Hour))
	c.EndOffset = time.Duration(cfg.GetFloat64(key("end_offset")) * float64(time.Hour))
	c.ClearOnNewBaseTime = cfg.GetBool(key("clear_on_new_basetime"))
	c.IgnoreHorizon = cfg.GetBool(key("ignore_horizon"))
	c.Scale = cfg.GetFloat64(key("scale"))
	c.NoData = cfg.GetFloat64(key("nodata"))
	c.MaxSeries = cfg.GetInt(key("max_series"))

	res, err := aqdata.ParseResolution(cfg.GetInt(key("resolution")))
	if err != nil {
		return c, errors.Wrap(err, key("resolution"))
	}
	c.Resolution = res
	if m := cfg.GetInt(key("time_interval")); m != 0 {
		c.TimeInterval = time.Duration(m) * time.Minute
	}
	if s := cfg.GetString(key("file_nodata")); s != "" {
		v, err := cast.ToFloat64E(s)
		if err != nil {
			return c, errors.Wrapf(aqdata.ErrConfiguration, "%s: %v", key("file_nodata"), err)
		}
		c.FileNoData = &v
	}
	return c, nil
}

// GridConfig reads the configuration of a gridstore.Store from the
// options under prefix in cfg.
func GridConfig(cfg *viper.Viper, prefix string) (gridstore.Config, error) {
	c := gridstore.DefaultConfig()
	key := func(k string) string { return prefix + "." + k }

	c.Filename = os.ExpandEnv(cfg.GetString(key("filename")))
	c.Offset = cfg.GetInt(key("offset"))
	c.NoData = cfg.GetFloat64(key("nodata"))
	c.FillValue = cfg.GetFloat64(key("fill_value"))
	c.Description = cfg.GetString(key("description"))
	if m := cfg.GetInt(key("time_interval")); m != 0 {
		c.TimeInterval = time.Duration(m) * time.Minute
	}
	chunk, err := toIntSliceE(cfg.Get(key("chunk")))
	if err != nil {
		return c, errors.Wrapf(aqdata.ErrConfiguration, "%s: %v", key("chunk"), err)
	}
	switch len(chunk) {
	case 0:
	case 4:
		copy(c.Chunk[:], chunk)
	default:
		return c, errors.Wrapf(aqdata.ErrConfiguration, "%s: need 4 chunk sizes but have %d", key("chunk"), len(chunk))
	}
	return c, nil
}

// NewSource returns the data source configured under prefix in cfg.
// The type of the source is given by the "type" option,
// which must be "window" or "grid".
func NewSource(cfg *viper.Viper, prefix string) (aqdata.DataSource, error) {
	switch t := cfg.GetString(prefix + ".type"); t {
	case "window":
		c, err := WindowConfig(cfg, prefix)
		if err != nil {
			return nil, err
		}
		b, err := window.New(c)
		if err != nil {
			return nil, err
		}
		b.Log = logrus.WithField("source", prefix)
		return b, nil
	case "grid":
		return GridStore(cfg, prefix)
	default:
		return nil, errors.Wrapf(aqdata.ErrConfiguration, "aqutil: %s.type is %q but should be window or grid", prefix, t)
	}
}

// GridStore returns the grid store configured under prefix in cfg.
func GridStore(cfg *viper.Viper, prefix string) (*gridstore.Store, error) {
	c, err := GridConfig(cfg, prefix)
	if err != nil {
		return nil, err
	}
	s, err := gridstore.New(c)
	if err != nil {
		return nil, err
	}
	s.Log = logrus.WithField("source", prefix)
	return s, nil
}

// toIntSliceE converts a configuration value to a slice of ints. The value
// may be a list read from a configuration file or a JSON array given
// on the command line.
func toIntSliceE(s interface{}) ([]int, error) {
	switch v := s.(type) {
	case nil:
		return nil, nil
	case []int:
		return v, nil
	case []interface{}:
		o := make([]int, len(v))
		for i, val := range v {
			x, err := cast.ToIntE(val)
			if err != nil {
				return nil, err
			}
			o[i] = x
		}
		return o, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		var o []int
		if err := json.Unmarshal([]byte(v), &o); err != nil {
			return nil, err
		}
		return o, nil
	}
	return nil, fmt.Errorf("invalid int slice %v", s)
}

// parseOffset parses a time offset such as "-3h", "90m" or "2d".
func parseOffset(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if strings.HasSuffix(s, "d") {
		days, err := cast.ToFloat64E(strings.TrimSuffix(s, "d"))
		if err != nil {
			return 0, errors.Wrapf(aqdata.ErrInvalidArgument, "aqutil: invalid offset %q", s)
		}
		return time.Duration(days * float64(24*time.Hour)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, errors.Wrapf(aqdata.ErrInvalidArgument, "aqutil: invalid offset %q", s)
	}
	return d, nil
}

// parseTime parses a date or date and time. Times without
// a time zone are in UTC.
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.Wrap(aqdata.ErrInvalidArgument, "aqutil: missing time")
	}
	t, err := cast.StringToDate(s)
	if err != nil {
		return time.Time{}, errors.Wrapf(aqdata.ErrInvalidArgument, "aqutil: %v", err)
	}
	return t, nil
}

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

// Package aqutil contains the command-line interface for reading and
// writing environmental data with the aqdata data sources.
package aqutil

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/aqdata"
	"github.com/spatialmodel/aqdata/gridstore"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

type option struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

var options []option

// sourceOptions returns the options that configure a data source
// under the given prefix.
func sourceOptions(prefix, defaultType string, sets ...*pflag.FlagSet) []option {
	return []option{
		{
			name: prefix + ".type",
			usage: `
              ` + prefix + `.type specifies the kind of data source: "window" for
              observations read from flat files, or "grid" for a NetCDF grid store.`,
			defaultVal: defaultType,
			flagsets:   sets,
		},
		{
			name: prefix + ".filename",
			usage: `
              ` + prefix + `.filename specifies the data file. For window sources
              it is a pattern in which {parameter} and {entity} are replaced by
              their names; it can be a local path, an http(s) URL or a blob URL
              (file://, gs:// or s3://). For grid sources it is the path of the
              NetCDF file, which is created if it does not exist.`,
			defaultVal: "",
			flagsets:   sets,
		},
		{
			name: prefix + ".offset",
			usage: `
              ` + prefix + `.offset specifies the number of days from the first
              base time to the first date of a new grid store.`,
			defaultVal: 0,
			flagsets:   sets,
		},
		{
			name: prefix + ".begin_offset",
			usage: `
              ` + prefix + `.begin_offset specifies the beginning of the window of
              a window source in hours relative to the base time.`,
			defaultVal: -48.0,
			flagsets:   sets,
		},
		{
			name: prefix + ".end_offset",
			usage: `
              ` + prefix + `.end_offset specifies the end of the window of
              a window source in hours relative to the base time.`,
			defaultVal: 0.0,
			flagsets:   sets,
		},
		{
			name: prefix + ".clear_on_new_basetime",
			usage: `
              ` + prefix + `.clear_on_new_basetime specifies whether a window
              source discards the values it has read when the base time changes.`,
			defaultVal: true,
			flagsets:   sets,
		},
		{
			name: prefix + ".resolution",
			usage: `
              ` + prefix + `.resolution specifies the time step of a window
              source in minutes: 60, 360 or 1440.`,
			defaultVal: 60,
			flagsets:   sets,
		},
		{
			name: prefix + ".time_interval",
			usage: `
              ` + prefix + `.time_interval, if not zero, specifies the time step of the
              data in minutes. It must match the resolution of the source.`,
			defaultVal: 0,
			flagsets:   sets,
		},
		{
			name: prefix + ".scale",
			usage: `
              ` + prefix + `.scale specifies a factor that values read by a window
              source are multiplied by.`,
			defaultVal: 1.0,
			flagsets:   sets,
		},
		{
			name: prefix + ".nodata",
			usage: `
              ` + prefix + `.nodata specifies the value that marks missing data
              in values returned by a window source or given to a grid store.`,
			defaultVal: aqdata.DefaultNoData,
			flagsets:   sets,
		},
		{
			name: prefix + ".file_nodata",
			usage: `
              ` + prefix + `.file_nodata, if set, specifies the value that marks
              missing data in the files read by a window source.`,
			defaultVal: "",
			flagsets:   sets,
		},
		{
			name: prefix + ".max_series",
			usage: `
              ` + prefix + `.max_series, if not zero, specifies the maximum number of
              parameter and entity combinations a window source holds at once.`,
			defaultVal: 0,
			flagsets:   sets,
		},
		{
			name: prefix + ".fill_value",
			usage: `
              ` + prefix + `.fill_value specifies the value that marks missing
              data in a new grid store file.`,
			defaultVal: gridstore.DefaultFillValue,
			flagsets:   sets,
		},
		{
			name: prefix + ".description",
			usage: `
              ` + prefix + `.description is stored in new grid store files.`,
			defaultVal: "",
			flagsets:   sets,
		},
		{
			name: prefix + ".ignore_horizon",
			usage: `
              ` + prefix + `.ignore_horizon specifies whether a window source
              ignores forecast horizons rather than rejecting them.`,
			defaultVal: true,
			flagsets:   sets,
		},
		{
			name: prefix + ".chunk",
			usage: `
              ` + prefix + `.chunk specifies the numbers of indices by which the
              parameter, entity, date and horizon axes of a grid store file grow.`,
			defaultVal: gridstore.DefaultChunk[:],
			flagsets:   sets,
		},
	}
}

func init() {
	options = []option{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "loglevel",
			usage: `
              loglevel specifies the level of log messages to print:
              debug, info, warning or error.`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "basetime",
			usage: `
              basetime specifies the base time that offsets are relative to,
              for example 2020-01-02 or 2020-01-02T06:00:00Z.`,
			shorthand:  "t",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{getCmd.Flags(), putCmd.Flags(), infoCmd.Flags(), networkCmd.Flags()},
		},
		{
			name: "parameter",
			usage: `
              parameter specifies the parameter to read or write, for example no2.`,
			shorthand:  "p",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{getCmd.Flags(), putCmd.Flags(), infoCmd.Flags(), networkCmd.Flags()},
		},
		{
			name: "entity",
			usage: `
              entity specifies the station or grid cell to read or write.`,
			shorthand:  "e",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{getCmd.Flags(), putCmd.Flags(), infoCmd.Flags()},
		},
		{
			name: "begin",
			usage: `
              begin specifies the first time to read, relative to the base time,
              for example -48h or -2d.`,
			defaultVal: "0h",
			flagsets:   []*pflag.FlagSet{getCmd.Flags()},
		},
		{
			name: "end",
			usage: `
              end specifies the last time to read, relative to the base time.`,
			defaultVal: "0h",
			flagsets:   []*pflag.FlagSet{getCmd.Flags()},
		},
		{
			name: "horizon",
			usage: `
              horizon specifies the forecast horizon in days.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{getCmd.Flags(), putCmd.Flags(), networkCmd.Flags()},
		},
		{
			name: "values",
			usage: `
              values specifies the values to store, one for each consecutive
              forecast horizon starting at --horizon.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{putCmd.Flags()},
		},
		{
			name: "offset",
			usage: `
              offset specifies the time to read relative to the base time.`,
			defaultVal: "0h",
			flagsets:   []*pflag.FlagSet{networkCmd.Flags()},
		},
		{
			name: "network",
			usage: `
              network specifies a TOML file listing the stations of a
              monitoring network and the parameters they measure.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{networkCmd.Flags()},
		},
		{
			name: "archive.parameters",
			usage: `
              archive.parameters specifies the parameters to archive.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{archiveCmd.Flags()},
		},
		{
			name: "archive.entities",
			usage: `
              archive.entities specifies the entities to archive.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{archiveCmd.Flags()},
		},
		{
			name: "archive.begin_date",
			usage: `
              archive.begin_date specifies the first date to archive.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{archiveCmd.Flags()},
		},
		{
			name: "archive.end_date",
			usage: `
              archive.end_date specifies the last date to archive.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{archiveCmd.Flags()},
		},
		{
			name: "archive.min_coverage",
			usage: `
              archive.min_coverage specifies the fraction of the time steps in
              a day that must have data for a daily mean to be stored.`,
			defaultVal: 0.75,
			flagsets:   []*pflag.FlagSet{archiveCmd.Flags()},
		},
	}
	options = append(options, sourceOptions("source", "window", getCmd.Flags(), archiveCmd.Flags())...)
	options = append(options, sourceOptions("store", "grid", putCmd.Flags(), archiveCmd.Flags(), infoCmd.Flags(), networkCmd.Flags())...)

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("AQDATA")
	Cfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	Cfg.AutomaticEnv()

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case []string:
				if option.shorthand == "" {
					set.StringSlice(option.name, option.defaultVal.([]string), option.usage)
				} else {
					set.StringSliceP(option.name, option.shorthand, option.defaultVal.([]string), option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, option.defaultVal.(bool), option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, option.defaultVal.(int), option.usage)
				} else {
					set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
				}
			case []int:
				if option.shorthand == "" {
					set.IntSlice(option.name, option.defaultVal.([]int), option.usage)
				} else {
					set.IntSliceP(option.name, option.shorthand, option.defaultVal.([]int), option.usage)
				}
			case float64:
				if option.shorthand == "" {
					set.Float64(option.name, option.defaultVal.(float64), option.usage)
				} else {
					set.Float64P(option.name, option.shorthand, option.defaultVal.(float64), option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(getCmd)
	Root.AddCommand(putCmd)
	Root.AddCommand(archiveCmd)
	Root.AddCommand(infoCmd)
	Root.AddCommand(networkCmd)
}

// setConfig finds and reads in the configuration file, if there is one,
// and sets the log level.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("aqdata: problem reading configuration file: %v", err)
		}
	}
	level, err := logrus.ParseLevel(Cfg.GetString("loglevel"))
	if err != nil {
		return fmt.Errorf("aqdata: %v", err)
	}
	logrus.SetLevel(level)
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "aqdata",
	Short: "Read and store environmental measurements and forecasts.",
	Long: `aqdata reads and stores time series of environmental measurements and
forecasts by parameter, station or grid cell, date and forecast horizon.
Use the subcommands specified below to access its functionality.

Observations are read from flat text files through a "window" source, which
holds the values in a window of time around a base time. Forecasts and daily
archives are kept in NetCDF "grid" stores, which grow as values are added.

Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'AQDATA_var' where 'var' is the
name of the variable to be set.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of aqdata.",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "aqdata v%s\n", aqdata.Version)
	},
	DisableAutoGenTag: true,
}

// baseTime returns the configured base time, or the current time if
// none is configured and allowNow is true.
func baseTime(allowNow bool) (time.Time, error) {
	s := Cfg.GetString("basetime")
	if s == "" && allowNow {
		return time.Now().UTC(), nil
	}
	return parseTime(s)
}

var getCmd = &cobra.Command{
	Use:   "get",
	Short: "Print values from a data source",
	Long: `get prints the values of a parameter at an entity from the data source
configured under 'source', one line per time step from --begin to --end
relative to --basetime. Missing values are printed as the nodata value.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		base, err := baseTime(false)
		if err != nil {
			return err
		}
		begin, err := parseOffset(Cfg.GetString("begin"))
		if err != nil {
			return err
		}
		end, err := parseOffset(Cfg.GetString("end"))
		if err != nil {
			return err
		}
		src, err := NewSource(Cfg, "source")
		if err != nil {
			return err
		}
		defer src.Close()
		return Get(cmd.OutOrStdout(), src, base, Cfg.GetString("parameter"), Cfg.GetString("entity"),
			begin, end, time.Duration(Cfg.GetInt("horizon"))*24*time.Hour)
	},
	DisableAutoGenTag: true,
}

var putCmd = &cobra.Command{
	Use:   "put",
	Short: "Store values in a grid store",
	Long: `put stores values of a parameter at an entity in the grid store
configured under 'store', for the date of --basetime and the consecutive
forecast horizons starting at --horizon.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		base, err := baseTime(false)
		if err != nil {
			return err
		}
		values, err := toFloats(Cfg.GetStringSlice("values"))
		if err != nil {
			return err
		}
		s, err := GridStore(Cfg, "store")
		if err != nil {
			return err
		}
		if err := Put(s, base, Cfg.GetString("parameter"), Cfg.GetString("entity"), values, Cfg.GetInt("horizon")); err != nil {
			s.Close()
			return err
		}
		return s.Close()
	},
	DisableAutoGenTag: true,
}

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Archive daily means of observations",
	Long: `archive computes the daily mean of each of archive.parameters at each of
archive.entities from the data source configured under 'source', for each
day from archive.begin_date to archive.end_date, and stores them in the grid
store configured under 'store' with a forecast horizon of zero.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		begin, err := parseTime(Cfg.GetString("archive.begin_date"))
		if err != nil {
			return err
		}
		end, err := parseTime(Cfg.GetString("archive.end_date"))
		if err != nil {
			return err
		}
		src, err := NewSource(Cfg, "source")
		if err != nil {
			return err
		}
		defer src.Close()
		dst, err := GridStore(Cfg, "store")
		if err != nil {
			return err
		}
		a := &Archiver{
			Parameters:  Cfg.GetStringSlice("archive.parameters"),
			Entities:    Cfg.GetStringSlice("archive.entities"),
			MinCoverage: Cfg.GetFloat64("archive.min_coverage"),
			Log:         logrus.StandardLogger(),
		}
		n, err := a.Archive(src, dst, begin, end)
		if err != nil {
			dst.Close()
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "archived %d daily values\n", n)
		return dst.Close()
	},
	DisableAutoGenTag: true,
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Describe a grid store",
	Long: `info prints the start date, size, parameters and entities of the grid
store configured under 'store'. If --parameter and --entity are given, it
also prints statistics of their stored values.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		base, err := baseTime(true)
		if err != nil {
			return err
		}
		s, err := GridStore(Cfg, "store")
		if err != nil {
			return err
		}
		defer s.Close()
		return Info(cmd.OutOrStdout(), s, base, Cfg.GetString("parameter"), Cfg.GetString("entity"))
	},
	DisableAutoGenTag: true,
}

var networkCmd = &cobra.Command{
	Use:   "network",
	Short: "Print values for all stations of a network",
	Long: `network prints the value of a parameter at --offset from --basetime for
every station in the network file given by --network, read from the grid store
configured under 'store'. Stations that do not measure the parameter are
printed with the nodata value.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		base, err := baseTime(false)
		if err != nil {
			return err
		}
		offset, err := parseOffset(Cfg.GetString("offset"))
		if err != nil {
			return err
		}
		f, err := os.Open(os.ExpandEnv(Cfg.GetString("network")))
		if err != nil {
			return fmt.Errorf("aqdata: opening network file: %v", err)
		}
		net, err := aqdata.LoadNetwork(f)
		f.Close()
		if err != nil {
			return err
		}
		s, err := GridStore(Cfg, "store")
		if err != nil {
			return err
		}
		defer s.Close()
		return NetworkValues(cmd.OutOrStdout(), s, net, base, Cfg.GetString("parameter"),
			offset, time.Duration(Cfg.GetInt("horizon"))*24*time.Hour)
	},
	DisableAutoGenTag: true,
}

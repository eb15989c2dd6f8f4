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

package window

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/gonum/floats"
)

var dateFormats = []string{"2006-01-02", "20060102"}

// fileName substitutes the parameter and entity into the
// {parameter} and {entity} placeholders of pattern.
func fileName(pattern, parameter, entity string) string {
	return strings.NewReplacer("{parameter}", parameter, "{entity}", entity).Replace(pattern)
}

func isSeparator(r rune) bool {
	return unicode.IsSpace(r) || r == ',' || r == ';'
}

// parseLine splits a data line into the time of its first value and
// its value fields. A line starts with a date, optionally followed by
// a time of day in HH:MM format, followed by one value per time step.
func parseLine(line string) (time.Time, []string, error) {
	fields := strings.FieldsFunc(line, isSeparator)
	if len(fields) < 2 {
		return time.Time{}, nil, fmt.Errorf("need a date and at least one value")
	}
	var t time.Time
	var err error
	for _, f := range dateFormats {
		if t, err = time.Parse(f, fields[0]); err == nil {
			break
		}
	}
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("invalid date %q", fields[0])
	}
	fields = fields[1:]
	if strings.Contains(fields[0], ":") {
		hm, err := time.Parse("15:04", fields[0])
		if err != nil {
			return time.Time{}, nil, fmt.Errorf("invalid time %q", fields[0])
		}
		t = t.Add(time.Duration(hm.Hour())*time.Hour + time.Duration(hm.Minute())*time.Minute)
		fields = fields[1:]
	}
	return t, fields, nil
}

// fileReader copies the values in a flat file that fall within a window
// into a vector with one element per time step.
type fileReader struct {
	begin, end time.Time
	resolution time.Duration
	scale      float64
	fileNoData *float64

	// warn is called for lines that cannot be parsed.
	warn func(line int, err error)
}

// read reads r into vals, which holds one value for each step from
// begin to end. It returns the number of values read.
func (fr *fileReader) read(r io.Reader, vals []float64) (int, error) {
	s := bufio.NewScanner(r)
	var row []float64
	var n, lineNo int
	for s.Scan() {
		lineNo++
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		t, fields, err := parseLine(line)
		if err != nil {
			fr.warn(lineNo, err)
			continue
		}
		if t.After(fr.end) || t.Add(time.Duration(len(fields)-1)*fr.resolution).Before(fr.begin) {
			continue
		}
		row = row[:0]
		for _, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil || (fr.fileNoData != nil && v == *fr.fileNoData) {
				v = math.NaN()
			}
			row = append(row, v)
		}
		floats.Scale(fr.scale, row)
		for j, v := range row {
			if math.IsNaN(v) {
				continue
			}
			ti := t.Add(time.Duration(j) * fr.resolution)
			if ti.Before(fr.begin) || ti.After(fr.end) {
				continue
			}
			i := int(ti.Sub(fr.begin) / fr.resolution)
			if i < len(vals) {
				vals[i] = v
				n++
			}
		}
	}
	return n, s.Err()
}

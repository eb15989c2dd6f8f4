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
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/ctessum/cdf"
	"github.com/pkg/errors"
	"github.com/spatialmodel/aqdata"
)

// These are the variable and dimension names of the NetCDF layout.
const (
	valuesVar = "values"
	extentVar = "extent"
	axisDim   = "axis"
	strlenDim = "name_strlen"

	// NameLength is the maximum length in bytes of a parameter
	// or entity name.
	NameLength = 64
)

var nameVars = [2]string{"parameter_name", "entity_name"}

// createFile creates the files that arrays are written to.
var createFile = os.Create

// DefaultFillValue is the NetCDF default fill value for doubles.
const DefaultFillValue = 9.9692099683868690e+36

// NCF is an ArrayFile stored in a NetCDF classic file. Each axis has a
// capacity that is a multiple of its chunk size; the extents of the
// axes in use are stored in the file alongside the values. Extending an
// axis beyond its capacity rewrites the file with larger capacities.
type NCF struct {
	path string
	f    *os.File
	cf   *cdf.File

	chunk    [4]int
	capacity [4]int
	extents  [4]int
	fill     float64
	names    [2][]string
	attrs    map[string]string
}

// CreateNCF creates a new, empty array file at path, overwriting any
// existing file. The capacity of each axis grows in multiples of chunk.
func CreateNCF(path string, fill float64, attrs map[string]string, chunk [4]int) (*NCF, error) {
	a := &NCF{
		path:  path,
		chunk: chunk,
		fill:  fill,
		attrs: make(map[string]string, len(attrs)+1),
	}
	for k, v := range attrs {
		a.attrs[k] = v
	}
	a.attrs[SchemaVersionAttr] = strconv.Itoa(SchemaVersion)
	for i := range a.capacity {
		a.capacity[i] = roundUp(0, chunk[i])
	}
	f, err := createFile(path)
	if err != nil {
		return nil, fmt.Errorf("gridstore: creating array file: %v", err)
	}
	cf, err := a.initFile(f, a.capacity)
	if err == nil {
		a.f, a.cf = f, cf
		err = a.writeExtents()
	}
	if err != nil {
		// A partly written file would be reported as corrupt when reopened.
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("gridstore: creating array file %s: %v", path, err)
	}
	return a, nil
}

// OpenNCF opens an existing array file for reading and writing.
// Files that cannot be read or do not have the expected layout cause
// an error wrapping aqdata.ErrStorageCorruption.
func OpenNCF(path string, chunk [4]int) (*NCF, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return nil, errors.Wrapf(aqdata.ErrStorageCorruption, "gridstore: opening array file: %v", err)
	}
	a, err := openNCF(f, chunk)
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(aqdata.ErrStorageCorruption, "gridstore: opening array file %s: %v", path, err)
	}
	a.path = path
	return a, nil
}

func openNCF(f *os.File, chunk [4]int) (*NCF, error) {
	cf, err := cdf.Open(f)
	if err != nil {
		return nil, err
	}
	a := &NCF{f: f, cf: cf, chunk: chunk, attrs: make(map[string]string)}

	h := cf.Header
	for _, v := range []string{valuesVar, extentVar, nameVars[0], nameVars[1]} {
		if h.Lengths(v) == nil {
			return nil, fmt.Errorf("missing variable %s", v)
		}
	}
	dims := h.Dimensions(valuesVar)
	if len(dims) != 4 {
		return nil, fmt.Errorf("variable %s has dimensions %v", valuesVar, dims)
	}
	for i, d := range dims {
		if d != axisNames[i] {
			return nil, fmt.Errorf("variable %s has dimensions %v", valuesVar, dims)
		}
	}
	if h.IsRecordVariable(valuesVar) {
		return nil, fmt.Errorf("variable %s has a record dimension", valuesVar)
	}
	copy(a.capacity[:], h.Lengths(valuesVar))
	fill, ok := h.FillValue(valuesVar).(float64)
	if !ok {
		return nil, fmt.Errorf("variable %s is not of type double", valuesVar)
	}
	a.fill = fill

	for _, name := range h.Attributes("") {
		switch v := h.GetAttribute("", name).(type) {
		case string:
			a.attrs[name] = v
		case []int32:
			if len(v) == 1 {
				a.attrs[name] = strconv.Itoa(int(v[0]))
			}
		}
	}

	ext := make([]int32, 4)
	if err := readVar(cf, extentVar, nil, nil, ext); err != nil {
		return nil, fmt.Errorf("reading %s: %v", extentVar, err)
	}
	for i, e := range ext {
		if e < 0 || int(e) > a.capacity[i] {
			return nil, fmt.Errorf("%v extent %d outside of capacity %d", Axis(i), e, a.capacity[i])
		}
		a.extents[i] = int(e)
	}
	for axis := ParameterAxis; axis <= EntityAxis; axis++ {
		for i := 0; i < a.extents[axis]; i++ {
			b := make([]byte, NameLength)
			if err := readVar(cf, nameVars[axis], []int{i, 0}, []int{i, NameLength - 1}, b); err != nil {
				return nil, fmt.Errorf("reading %v name %d: %v", axis, i, err)
			}
			a.names[axis] = append(a.names[axis], string(bytes.TrimRight(b, "\x00")))
		}
	}
	return a, nil
}

func newHeader(capacity [4]int, fill float64, attrs map[string]string) (*cdf.Header, error) {
	h := cdf.NewHeader(
		[]string{axisNames[0], axisNames[1], axisNames[2], axisNames[3], axisDim, strlenDim},
		[]int{capacity[0], capacity[1], capacity[2], capacity[3], 4, NameLength},
	)
	h.AddVariable(extentVar, []string{axisDim}, []int32{0})
	h.AddAttribute(extentVar, "description", "number of indices in use along each axis of values")
	for i, v := range nameVars {
		h.AddVariable(v, []string{axisNames[i], strlenDim}, "")
		h.AddAttribute(v, "description", axisNames[i]+" names")
	}
	h.AddVariable(valuesVar, axisNames[:], []float64{0})
	h.AddAttribute(valuesVar, "description", "values by parameter, entity, date and forecast horizon")
	h.AddAttribute(valuesVar, "_FillValue", []float64{fill})

	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		if k != SchemaVersionAttr && attrs[k] != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		h.AddAttribute("", k, attrs[k])
	}
	h.AddAttribute("", SchemaVersionAttr, []int32{SchemaVersion})
	h.Define()
	if errs := h.Check(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid header: %v", errs)
	}
	return h, nil
}

// initFile writes a header with the given capacities to f and
// sets every element to its fill value.
func (a *NCF) initFile(f *os.File, capacity [4]int) (*cdf.File, error) {
	h, err := newHeader(capacity, a.fill, a.attrs)
	if err != nil {
		return nil, err
	}
	cf, err := cdf.Create(f, h)
	if err != nil {
		return nil, err
	}
	for _, v := range []string{extentVar, nameVars[0], nameVars[1]} {
		if err := cf.Fill(v); err != nil {
			return nil, err
		}
	}
	block := make([]float64, capacity[2]*capacity[3])
	for i := range block {
		block[i] = a.fill
	}
	for p := 0; p < capacity[0]; p++ {
		for e := 0; e < capacity[1]; e++ {
			begin := []int{p, e, 0, 0}
			end := []int{p, e, capacity[2] - 1, capacity[3] - 1}
			if err := writeVar(cf, valuesVar, begin, end, block); err != nil {
				return nil, err
			}
		}
	}
	return cf, nil
}

// readVar reads the elements of v between the corners begin and end,
// inclusive, into data.
func readVar(cf *cdf.File, v string, begin, end []int, data interface{}) error {
	r := cf.Reader(v, begin, end)
	if r == nil {
		return fmt.Errorf("no variable %s", v)
	}
	if _, err := r.Read(data); err != nil && err != io.EOF {
		return err
	}
	return nil
}

// writeVar writes data to the elements of v between the corners begin
// and end, inclusive.
func writeVar(cf *cdf.File, v string, begin, end []int, data interface{}) error {
	w := cf.Writer(v, begin, end)
	if w == nil {
		return fmt.Errorf("no variable %s", v)
	}
	if _, err := w.Write(data); err != nil && err != io.EOF {
		return err
	}
	return nil
}

func (a *NCF) writeExtents() error {
	ext := make([]int32, 4)
	for i, e := range a.extents {
		ext[i] = int32(e)
	}
	if err := writeVar(a.cf, extentVar, nil, nil, ext); err != nil {
		return fmt.Errorf("gridstore: writing extents: %v", err)
	}
	return nil
}

// Extents implements ArrayFile.
func (a *NCF) Extents() [4]int { return a.extents }

// Capacity returns the number of indices along each axis that
// can be used without rewriting the file.
func (a *NCF) Capacity() [4]int { return a.capacity }

// Extend implements ArrayFile.
func (a *NCF) Extend(axis Axis, size int) error {
	if axis.named() || axis < 0 || axis > HorizonAxis {
		return errors.Wrapf(aqdata.ErrInvalidArgument, "gridstore: cannot extend %v axis", axis)
	}
	return a.extend(axis, size)
}

func (a *NCF) extend(axis Axis, size int) error {
	if size <= a.extents[axis] {
		return nil
	}
	if size > a.capacity[axis] {
		capacity := a.capacity
		capacity[axis] = roundUp(size, a.chunk[axis])
		if err := a.rewrite(capacity); err != nil {
			return err
		}
	}
	a.extents[axis] = size
	return a.writeExtents()
}

// rewrite copies the contents of the file into a new file with the
// given capacities and replaces the old file with it.
func (a *NCF) rewrite(capacity [4]int) error {
	tmp := a.path + ".tmp"
	f, err := createFile(tmp)
	if err != nil {
		return fmt.Errorf("gridstore: growing array file: %v", err)
	}
	cf, err := a.initFile(f, capacity)
	if err == nil {
		err = a.copyTo(cf)
	}
	if err == nil {
		err = f.Sync()
	}
	if err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("gridstore: growing array file %s: %v", a.path, err)
	}
	if err := os.Rename(tmp, a.path); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("gridstore: growing array file: %v", err)
	}
	old := a.f
	a.f, a.cf, a.capacity = f, cf, capacity
	if err := old.Close(); err != nil {
		return fmt.Errorf("gridstore: growing array file: %v", err)
	}
	return a.writeExtents()
}

// copyTo copies the names and values in use to cf.
func (a *NCF) copyTo(cf *cdf.File) error {
	for axis, names := range a.names {
		for i, n := range names {
			if err := writeName(cf, Axis(axis), i, n); err != nil {
				return err
			}
		}
	}
	ext := a.extents
	if ext[2] == 0 || ext[3] == 0 {
		return nil
	}
	block := make([]float64, ext[2]*a.capacity[3])
	for p := 0; p < ext[0]; p++ {
		for e := 0; e < ext[1]; e++ {
			begin := []int{p, e, 0, 0}
			end := []int{p, e, ext[2] - 1, a.capacity[3] - 1}
			if err := readVar(a.cf, valuesVar, begin, end, block); err != nil {
				return err
			}
			for d := 0; d < ext[2]; d++ {
				row := block[d*a.capacity[3] : d*a.capacity[3]+ext[3]]
				if err := writeVar(cf, valuesVar, []int{p, e, d, 0}, []int{p, e, d, ext[3] - 1}, row); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// ReadSlab implements ArrayFile.
func (a *NCF) ReadSlab(offset, count [4]int, dst []float64) error {
	if err := checkSlab(a.extents, offset, count, len(dst)); err != nil {
		return err
	}
	if len(dst) == 0 {
		return nil
	}
	for p := 0; p < count[0]; p++ {
		for e := 0; e < count[1]; e++ {
			for d := 0; d < count[2]; d++ {
				begin := []int{offset[0] + p, offset[1] + e, offset[2] + d, offset[3]}
				end := []int{begin[0], begin[1], begin[2], offset[3] + count[3] - 1}
				j := rowStart(count, p, e, d)
				if err := readVar(a.cf, valuesVar, begin, end, dst[j:j+count[3]]); err != nil {
					return fmt.Errorf("gridstore: reading %v: %v", begin, err)
				}
			}
		}
	}
	return nil
}

// WriteSlab implements ArrayFile.
func (a *NCF) WriteSlab(offset, count [4]int, src []float64) error {
	if err := checkSlab(a.extents, offset, count, len(src)); err != nil {
		return err
	}
	if len(src) == 0 {
		return nil
	}
	for p := 0; p < count[0]; p++ {
		for e := 0; e < count[1]; e++ {
			for d := 0; d < count[2]; d++ {
				begin := []int{offset[0] + p, offset[1] + e, offset[2] + d, offset[3]}
				end := []int{begin[0], begin[1], begin[2], offset[3] + count[3] - 1}
				j := rowStart(count, p, e, d)
				if err := writeVar(a.cf, valuesVar, begin, end, src[j:j+count[3]]); err != nil {
					return fmt.Errorf("gridstore: writing %v: %v", begin, err)
				}
			}
		}
	}
	return nil
}

// Names implements ArrayFile.
func (a *NCF) Names(axis Axis) []string {
	if !axis.named() {
		return nil
	}
	return append([]string(nil), a.names[axis]...)
}

func writeName(cf *cdf.File, axis Axis, i int, name string) error {
	b := make([]byte, NameLength)
	copy(b, name)
	return writeVar(cf, nameVars[axis], []int{i, 0}, []int{i, NameLength - 1}, b)
}

// AppendName implements ArrayFile.
func (a *NCF) AppendName(axis Axis, name string) error {
	if !axis.named() {
		return errors.Wrapf(aqdata.ErrInvalidArgument, "gridstore: %v axis has no names", axis)
	}
	if len(name) > NameLength {
		return errors.Wrapf(aqdata.ErrInvalidArgument, "gridstore: %v name %q is longer than %d bytes", axis, name, NameLength)
	}
	i := len(a.names[axis])
	if i+1 > a.capacity[axis] {
		capacity := a.capacity
		capacity[axis] = roundUp(i+1, a.chunk[axis])
		if err := a.rewrite(capacity); err != nil {
			return err
		}
	}
	if err := writeName(a.cf, axis, i, name); err != nil {
		return fmt.Errorf("gridstore: writing %v name: %v", axis, err)
	}
	a.names[axis] = append(a.names[axis], name)
	return a.extend(axis, i+1)
}

// Attribute implements ArrayFile.
func (a *NCF) Attribute(name string) (string, bool) {
	v, ok := a.attrs[name]
	return v, ok
}

// FillValue implements ArrayFile.
func (a *NCF) FillValue() float64 { return a.fill }

// Sync implements ArrayFile.
func (a *NCF) Sync() error { return a.f.Sync() }

// Close implements ArrayFile.
func (a *NCF) Close() error {
	if a.f == nil {
		return nil
	}
	err := a.f.Close()
	a.f, a.cf = nil, nil
	return err
}

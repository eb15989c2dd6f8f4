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
	"fmt"

	"github.com/pkg/errors"
	"github.com/spatialmodel/aqdata"
)

// Axis identifies one of the four dimensions of the value array.
type Axis int

// These are the axes of the value array, from outermost to innermost.
const (
	ParameterAxis Axis = iota
	EntityAxis
	DateAxis
	HorizonAxis
)

var axisNames = [4]string{"parameter", "entity", "date", "horizon"}

func (a Axis) String() string {
	if a < 0 || int(a) >= len(axisNames) {
		return fmt.Sprintf("axis(%d)", int(a))
	}
	return axisNames[a]
}

// named returns whether the indices along the axis correspond to names.
func (a Axis) named() bool { return a == ParameterAxis || a == EntityAxis }

// SchemaVersion is the version of the array layout written by this package.
const SchemaVersion = 1

// These are the attribute names written to every array file.
const (
	StartDateAttr     = "start_date"
	SchemaVersionAttr = "schema_version"
	DescriptionAttr   = "description"
	CreatedAttr       = "created"
)

// ArrayFile is a four-dimensional array of float64 values with axes
// [parameter, entity, date, horizon], each of which can be extended.
// Regions are addressed by per-axis offsets and counts and are laid out
// in row-major order, with the horizon axis varying fastest.
// Elements that have never been written hold the fill value.
type ArrayFile interface {
	// Extents returns the number of indices in use along each axis.
	Extents() [4]int

	// Extend increases the extent of the date or horizon axis to size.
	// It does nothing if the axis is already at least that large.
	// The parameter and entity axes are extended with AppendName.
	Extend(axis Axis, size int) error

	// ReadSlab reads the region starting at offset with the given counts
	// into dst, which must have one element for each index in the region.
	ReadSlab(offset, count [4]int, dst []float64) error

	// WriteSlab writes src into the region starting at offset with
	// the given counts.
	WriteSlab(offset, count [4]int, src []float64) error

	// Names returns the names of the indices along the parameter
	// or entity axis.
	Names(axis Axis) []string

	// AppendName adds a name to the parameter or entity axis, extending
	// the axis by one.
	AppendName(axis Axis, name string) error

	// Attribute returns the metadata attribute with the given name.
	Attribute(name string) (string, bool)

	// FillValue returns the value of elements that have not been written.
	FillValue() float64

	// Sync flushes the array to durable storage.
	Sync() error

	// Close releases the resources held by the array.
	Close() error
}

// checkSlab checks that the region fits within extents and that n
// is the number of elements in the region.
func checkSlab(extents, offset, count [4]int, n int) error {
	size := 1
	for i := range offset {
		if offset[i] < 0 || count[i] < 0 || offset[i]+count[i] > extents[i] {
			return errors.Wrapf(aqdata.ErrOutOfRange, "gridstore: %v offset %d count %d; extent %d",
				Axis(i), offset[i], count[i], extents[i])
		}
		size *= count[i]
	}
	if size != n {
		return errors.Wrapf(aqdata.ErrInvalidArgument, "gridstore: region has %d elements but buffer has %d", size, n)
	}
	return nil
}

// rowStart returns the position in a slab buffer of the first horizon
// element of row (p, e, d), where the indices are relative to the slab offset.
func rowStart(count [4]int, p, e, d int) int {
	return ((p*count[1]+e)*count[2] + d) * count[3]
}

// roundUp rounds n up to a multiple of chunk.
func roundUp(n, chunk int) int {
	if chunk <= 0 {
		chunk = 1
	}
	if n <= 0 {
		return chunk
	}
	return (n + chunk - 1) / chunk * chunk
}

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
	"strconv"

	"github.com/google/btree"
	"github.com/pkg/errors"
	"github.com/spatialmodel/aqdata"
)

type rowKey struct{ p, e, d int }

// row holds the horizon values for one (parameter, entity, date) triple.
type row struct {
	key    rowKey
	values []float64
}

func lessRow(a, b row) bool {
	switch {
	case a.key.p != b.key.p:
		return a.key.p < b.key.p
	case a.key.e != b.key.e:
		return a.key.e < b.key.e
	default:
		return a.key.d < b.key.d
	}
}

// MemArray is an ArrayFile held in memory. Only rows that have been
// written take up space; they are kept in a B-tree ordered by
// parameter, entity and date.
type MemArray struct {
	fill    float64
	extents [4]int
	names   [2][]string
	attrs   map[string]string
	rows    *btree.BTreeG[row]
}

// NewMemArray returns an empty in-memory array with the given fill value
// and metadata attributes.
func NewMemArray(fill float64, attrs map[string]string) *MemArray {
	a := &MemArray{
		fill:  fill,
		attrs: make(map[string]string, len(attrs)+1),
		rows:  btree.NewG(16, lessRow),
	}
	for k, v := range attrs {
		a.attrs[k] = v
	}
	a.attrs[SchemaVersionAttr] = strconv.Itoa(SchemaVersion)
	return a
}

// Extents implements ArrayFile.
func (a *MemArray) Extents() [4]int { return a.extents }

// Extend implements ArrayFile.
func (a *MemArray) Extend(axis Axis, size int) error {
	if axis.named() || axis < 0 || axis > HorizonAxis {
		return errors.Wrapf(aqdata.ErrInvalidArgument, "gridstore: cannot extend %v axis", axis)
	}
	if size > a.extents[axis] {
		a.extents[axis] = size
	}
	return nil
}

// ReadSlab implements ArrayFile.
func (a *MemArray) ReadSlab(offset, count [4]int, dst []float64) error {
	if err := checkSlab(a.extents, offset, count, len(dst)); err != nil {
		return err
	}
	for i := range dst {
		dst[i] = a.fill
	}
	if len(dst) == 0 {
		return nil
	}
	for p := 0; p < count[0]; p++ {
		for e := 0; e < count[1]; e++ {
			lo := row{key: rowKey{offset[0] + p, offset[1] + e, offset[2]}}
			hi := row{key: rowKey{offset[0] + p, offset[1] + e, offset[2] + count[2]}}
			a.rows.AscendRange(lo, hi, func(r row) bool {
				j := rowStart(count, p, e, r.key.d-offset[2])
				for h := 0; h < count[3]; h++ {
					if k := offset[3] + h; k < len(r.values) {
						dst[j+h] = r.values[k]
					}
				}
				return true
			})
		}
	}
	return nil
}

// WriteSlab implements ArrayFile.
func (a *MemArray) WriteSlab(offset, count [4]int, src []float64) error {
	if err := checkSlab(a.extents, offset, count, len(src)); err != nil {
		return err
	}
	if len(src) == 0 {
		return nil
	}
	for p := 0; p < count[0]; p++ {
		for e := 0; e < count[1]; e++ {
			for d := 0; d < count[2]; d++ {
				key := rowKey{offset[0] + p, offset[1] + e, offset[2] + d}
				r, ok := a.rows.Get(row{key: key})
				if !ok {
					r = row{key: key}
				}
				for len(r.values) < offset[3]+count[3] {
					r.values = append(r.values, a.fill)
				}
				j := rowStart(count, p, e, d)
				copy(r.values[offset[3]:offset[3]+count[3]], src[j:j+count[3]])
				a.rows.ReplaceOrInsert(r)
			}
		}
	}
	return nil
}

// Names implements ArrayFile.
func (a *MemArray) Names(axis Axis) []string {
	if !axis.named() {
		return nil
	}
	return append([]string(nil), a.names[axis]...)
}

// AppendName implements ArrayFile.
func (a *MemArray) AppendName(axis Axis, name string) error {
	if !axis.named() {
		return errors.Wrapf(aqdata.ErrInvalidArgument, "gridstore: %v axis has no names", axis)
	}
	a.names[axis] = append(a.names[axis], name)
	if n := len(a.names[axis]); n > a.extents[axis] {
		a.extents[axis] = n
	}
	return nil
}

// Attribute implements ArrayFile.
func (a *MemArray) Attribute(name string) (string, bool) {
	v, ok := a.attrs[name]
	return v, ok
}

// FillValue implements ArrayFile.
func (a *MemArray) FillValue() float64 { return a.fill }

// Sync implements ArrayFile. It does nothing.
func (a *MemArray) Sync() error { return nil }

// Close implements ArrayFile. It discards the contents of the array.
func (a *MemArray) Close() error {
	a.rows.Clear(false)
	return nil
}

// Len returns the number of rows that have been written.
func (a *MemArray) Len() int { return a.rows.Len() }

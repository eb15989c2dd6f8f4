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

package aqdata

import "github.com/pkg/errors"

// Dictionary is an append-only mapping between names and dense indices.
// Indices are assigned in order of first appearance and never change.
type Dictionary struct {
	names []string
	index map[string]int
}

// NewDictionary returns a dictionary holding the given names in order,
// for example names loaded from a file. Empty or repeated names
// are reported as storage corruption.
func NewDictionary(names ...string) (*Dictionary, error) {
	d := &Dictionary{index: make(map[string]int, len(names))}
	for i, n := range names {
		if n == "" {
			return nil, errors.Wrapf(ErrStorageCorruption, "aqdata: empty name at index %d", i)
		}
		if j, ok := d.index[n]; ok {
			return nil, errors.Wrapf(ErrStorageCorruption, "aqdata: name %q at indices %d and %d", n, j, i)
		}
		d.index[n] = i
		d.names = append(d.names, n)
	}
	return d, nil
}

// IndexOf returns the index of name. If name is not in the dictionary
// it is added when create is true; otherwise an error wrapping
// ErrNotFound is returned.
func (d *Dictionary) IndexOf(name string, create bool) (int, error) {
	if d.index == nil {
		d.index = make(map[string]int)
	}
	if i, ok := d.index[name]; ok {
		return i, nil
	}
	if !create {
		return -1, errors.Wrapf(ErrNotFound, "aqdata: name %q", name)
	}
	if name == "" {
		return -1, errors.Wrap(ErrInvalidArgument, "aqdata: empty name")
	}
	i := len(d.names)
	d.names = append(d.names, name)
	d.index[name] = i
	return i, nil
}

// NameAt returns the name at index i.
func (d *Dictionary) NameAt(i int) (string, error) {
	if i < 0 || i >= len(d.names) {
		return "", errors.Wrapf(ErrOutOfRange, "aqdata: index %d; dictionary length %d", i, len(d.names))
	}
	return d.names[i], nil
}

// Len returns the number of names.
func (d *Dictionary) Len() int { return len(d.names) }

// Names returns a copy of the names in index order.
func (d *Dictionary) Names() []string {
	return append([]string(nil), d.names...)
}

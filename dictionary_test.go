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

import (
	"reflect"
	"testing"

	"github.com/pkg/errors"
)

func TestDictionary(t *testing.T) {
	d := new(Dictionary)
	i, err := d.IndexOf("no2", true)
	if err != nil {
		t.Fatal(err)
	}
	j, err := d.IndexOf("pm10", true)
	if err != nil {
		t.Fatal(err)
	}
	k, err := d.IndexOf("no2", true)
	if err != nil {
		t.Fatal(err)
	}
	if i != 0 || j != 1 || k != 0 {
		t.Errorf("indices: %d, %d, %d", i, j, k)
	}
	if _, err := d.IndexOf("o3", false); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing name: have %v, want not found", err)
	}
	if d.Len() != 2 {
		t.Errorf("length %d", d.Len())
	}
	n, err := d.NameAt(1)
	if err != nil {
		t.Fatal(err)
	}
	if n != "pm10" {
		t.Errorf("name %s", n)
	}
	if _, err := d.NameAt(2); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("have %v, want out of range", err)
	}
	if _, err := d.IndexOf("", true); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("have %v, want invalid argument", err)
	}
	if want := []string{"no2", "pm10"}; !reflect.DeepEqual(d.Names(), want) {
		t.Errorf("have %v, want %v", d.Names(), want)
	}
}

func TestNewDictionary(t *testing.T) {
	d, err := NewDictionary("a", "b", "c")
	if err != nil {
		t.Fatal(err)
	}
	i, err := d.IndexOf("c", false)
	if err != nil {
		t.Fatal(err)
	}
	if i != 2 {
		t.Errorf("have %d, want 2", i)
	}
	if _, err := NewDictionary("a", "b", "a"); !errors.Is(err, ErrStorageCorruption) {
		t.Errorf("duplicate: have %v", err)
	}
}

func TestCheckReady(t *testing.T) {
	if err := CheckReady(BaseTimeSet); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("have %v", err)
	}
	if err := CheckReady(Ready); err != nil {
		t.Error(err)
	}
}

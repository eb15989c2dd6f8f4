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
	"fmt"
	"io"

	"github.com/BurntSushi/toml"
)

// Network describes the spatial entities of a monitoring network and
// the parameters each of them measures.
type Network interface {
	// Entities returns the identifiers of all entities in the network.
	Entities() []string

	// Provides returns whether the entity measures the parameter.
	Provides(entity, parameter string) bool
}

// Station is a member of a StationList.
type Station struct {
	ID   string `toml:"id"`
	Name string `toml:"name"`

	// Parameters lists the parameters measured at the station.
	// An empty list means the station provides every parameter.
	Parameters []string `toml:"parameters"`
}

// StationList is a Network read from a TOML file, for example:
//
//	[[station]]
//	id = "S1"
//	parameters = ["no2", "pm10"]
type StationList struct {
	Stations []Station `toml:"station"`

	index map[string]int
}

// LoadNetwork reads a StationList from r.
func LoadNetwork(r io.Reader) (*StationList, error) {
	sl := new(StationList)
	if _, err := toml.DecodeReader(r, sl); err != nil {
		return nil, fmt.Errorf("aqdata: reading network: %v", err)
	}
	sl.index = make(map[string]int, len(sl.Stations))
	for i, s := range sl.Stations {
		if s.ID == "" {
			return nil, fmt.Errorf("aqdata: reading network: station %d has no id", i)
		}
		if _, ok := sl.index[s.ID]; ok {
			return nil, fmt.Errorf("aqdata: reading network: duplicate station id %q", s.ID)
		}
		sl.index[s.ID] = i
	}
	return sl, nil
}

// Entities returns the station ids in file order.
func (sl *StationList) Entities() []string {
	o := make([]string, len(sl.Stations))
	for i, s := range sl.Stations {
		o[i] = s.ID
	}
	return o
}

// Provides implements the Network interface.
func (sl *StationList) Provides(entity, parameter string) bool {
	i, ok := sl.index[entity]
	if !ok {
		return false
	}
	s := sl.Stations[i]
	if len(s.Parameters) == 0 {
		return true
	}
	for _, p := range s.Parameters {
		if p == parameter {
			return true
		}
	}
	return false
}

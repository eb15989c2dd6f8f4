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
	"time"

	"github.com/spatialmodel/aqdata"
)

// NetworkValues returns the value of parameter at offset from the base
// time, as forecast horizon days in advance, for every entity in net.
// The values are in the order of net.Entities(). Entities that do not
// provide the parameter are set to NoData().
func (s *Store) NetworkValues(net aqdata.Network, parameter string, offset, horizon time.Duration) ([]float64, error) {
	if err := aqdata.CheckReady(s.state); err != nil {
		return nil, err
	}
	entities := net.Entities()
	out := make([]float64, len(entities))
	for i, e := range entities {
		if !net.Provides(e, parameter) {
			out[i] = s.NoData()
			continue
		}
		v, err := s.ForecastValues(parameter, e, offset, offset, horizon)
		if err != nil {
			return nil, err
		}
		out[i] = v[0]
	}
	return out, nil
}

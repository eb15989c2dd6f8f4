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

// These errors classify the failures of data source operations. Errors
// returned by this module wrap one of them and can be checked with errors.Is
// or errors.Cause. Missing data is never an error.
var (
	// ErrConfiguration means a required option is missing or invalid,
	// or that an existing file does not match the configuration.
	ErrConfiguration = errors.New("configuration error")

	// ErrNotConfigured means an operation was called before the
	// data source was ready for it.
	ErrNotConfigured = errors.New("data source not ready")

	// ErrInvalidArgument means a request was malformed.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnsupported means the data source does not offer
	// the requested capability.
	ErrUnsupported = errors.New("unsupported operation")

	// ErrStorageCorruption means a persistent file could not be read
	// or has an incompatible layout.
	ErrStorageCorruption = errors.New("storage corruption")

	// ErrNotFound means a name or resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrOutOfRange means an index is outside of the valid range.
	ErrOutOfRange = errors.New("index out of range")

	// ErrArithmetic means a time calculation could not be carried out,
	// usually because the time resolution is not set.
	ErrArithmetic = errors.New("arithmetic error")
)

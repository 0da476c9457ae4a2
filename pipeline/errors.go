// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pipeline

import "errors"

// Configuration and runtime errors. All are fatal for the operation
// that returns them; see §7 of the design for disposition.
var (
	// ErrReservedName is returned when a barcode is registered under one
	// of the reserved template field names (read_name, lane, tile, x, y).
	ErrReservedName = errors.New("pipeline: name is reserved")

	// ErrFileLengthMismatch is returned when registered input files
	// return differing record counts at a chunk boundary.
	ErrFileLengthMismatch = errors.New("pipeline: input files returned differing record counts")

	// ErrBadTemplate is returned for a malformed output name template
	// (unmatched braces, an empty field) or when a referenced read name
	// lacks the colon-separated fields a positional attribute needs.
	ErrBadTemplate = errors.New("pipeline: malformed output name template")

	// ErrUnknownField is returned when a template field is neither a
	// positional attribute, read_name, nor a registered barcode name.
	ErrUnknownField = errors.New("pipeline: output name template references an unknown field")

	// ErrConfigFrozen is returned by add_sequence, add_barcode or
	// set_output_names once reading has started.
	ErrConfigFrozen = errors.New("pipeline: configuration is frozen after the first read_chunk")
)

// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package match

import "errors"

// Construction-time errors. All are fatal: a Matcher is never returned
// alongside a non-nil error.
var (
	// ErrEmpty is returned when a dictionary has no sequences.
	ErrEmpty = errors.New("match: dictionary is empty")

	// ErrBadBase is returned when a dictionary sequence contains a
	// character outside {A, C, G, T}, including 'N'. A valid barcode
	// dictionary must be over ACGT only; queries, not dictionary
	// entries, are the place N is tolerated.
	ErrBadBase = errors.New("match: dictionary sequence contains a character outside ACGT")

	// ErrLengthMismatch is returned when dictionary sequences are not
	// all the same length.
	ErrLengthMismatch = errors.New("match: dictionary sequences have differing lengths")

	// ErrBadLength is returned when the dictionary's barcode length
	// exceeds the maximum length the packed representation supports.
	ErrBadLength = errors.New("match: barcode length exceeds maximum supported length")
)

// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"fmt"
	"strings"
)

// reservedNames are the template fields a barcode may never be
// registered under (§4.6).
var reservedNames = map[string]bool{
	"read_name": true,
	"lane":      true,
	"tile":      true,
	"x":         true,
	"y":         true,
}

// positionalFields are the {field} names resolved from a colon-split
// Illumina read name rather than from read_name or a barcode label.
var positionalFields = map[string]int{
	"lane": 3,
	"tile": 4,
	"x":    5,
	"y":    6,
}

// nameTemplate is a parsed output-name pattern: a flat sequence of
// literal strings interleaved with field substitutions, per §3 and
// §6. len(literals) == len(fields)+1 always.
type nameTemplate struct {
	literals []string
	fields   []string
}

// parseTemplate parses a "literal {field} literal {field} … literal"
// pattern. It does not validate that fields name something that
// exists; that happens at first read_chunk (§4.6: "Unknown fields are
// rejected at first-chunk validation, not at template parse time").
func parseTemplate(pattern string) (*nameTemplate, error) {
	t := &nameTemplate{}
	var lit strings.Builder
	for i := 0; i < len(pattern); {
		c := pattern[i]
		switch c {
		case '{':
			end := strings.IndexByte(pattern[i+1:], '}')
			if end < 0 {
				return nil, fmt.Errorf("pipeline: template %q: unmatched '{': %w", pattern, ErrBadTemplate)
			}
			field := pattern[i+1 : i+1+end]
			if field == "" {
				return nil, fmt.Errorf("pipeline: template %q: empty field: %w", pattern, ErrBadTemplate)
			}
			t.literals = append(t.literals, lit.String())
			lit.Reset()
			t.fields = append(t.fields, field)
			i += end + 2
		case '}':
			return nil, fmt.Errorf("pipeline: template %q: unmatched '}': %w", pattern, ErrBadTemplate)
		default:
			lit.WriteByte(c)
			i++
		}
	}
	t.literals = append(t.literals, lit.String())
	return t, nil
}

// validate checks every field of t against the positional attributes,
// read_name, and the caller-supplied set of registered barcode names.
func (t *nameTemplate) validate(barcodeNames map[string]bool) error {
	for _, f := range t.fields {
		if f == "read_name" {
			continue
		}
		if _, ok := positionalFields[f]; ok {
			continue
		}
		if barcodeNames[f] {
			continue
		}
		return fmt.Errorf("pipeline: template field %q: %w", f, ErrUnknownField)
	}
	return nil
}

// needsPositional reports whether t references any of lane/tile/x/y.
func (t *nameTemplate) needsPositional() bool {
	for _, f := range t.fields {
		if _, ok := positionalFields[f]; ok {
			return true
		}
	}
	return false
}

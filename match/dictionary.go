// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package match

import (
	"fmt"
	"io"

	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/io/seqio"
	"github.com/biogo/biogo/io/seqio/fasta"
	"github.com/biogo/biogo/seq/linear"
)

// DictionaryFromFASTA reads a barcode dictionary from r in FASTA format,
// using the sequence itself as the barcode and the record's description
// as its label, or the record's ID when the description is empty.
// Validation of base composition and
// uniform length happens in whichever Matcher constructor the caller
// passes the result to.
func DictionaryFromFASTA(r io.Reader) (sequences, labels []string, err error) {
	sc := seqio.NewScanner(fasta.NewReader(r, linear.NewSeq("", nil, alphabet.DNA)))
	for sc.Next() {
		s := sc.Seq().(*linear.Seq)
		seq := s.Seq.String()
		sequences = append(sequences, seq)
		if s.Desc != "" {
			labels = append(labels, s.Desc)
		} else {
			labels = append(labels, s.ID)
		}
	}
	if err := sc.Error(); err != nil {
		return nil, nil, fmt.Errorf("match: reading FASTA dictionary: %w", err)
	}
	if len(sequences) == 0 {
		return nil, nil, ErrEmpty
	}
	return sequences, labels, nil
}

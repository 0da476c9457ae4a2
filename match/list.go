// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package match

import "github.com/GreenleafLab/matcha/dna"

// List is an exhaustive Hamming-distance matcher: every query is
// compared against every dictionary entry. It has no mismatch bound and
// always reports a best match. Recommended for dictionaries of at most
// a few hundred sequences; for larger dictionaries with a small
// mismatch bound, Hash is far faster.
type List struct {
	dictionary
	mask uint64
}

// NewList builds a List matcher over sequences, an ACGT-only dictionary
// of equal-length barcodes. labels may be nil, in which case sequences
// themselves are used as labels.
func NewList(sequences, labels []string) (*List, error) {
	d, err := newDictionary(sequences, labels)
	if err != nil {
		return nil, err
	}
	return &List{dictionary: d, mask: dna.FullMask(d.k)}, nil
}

// MatchChunk implements Matcher. For each query it returns the smallest
// Hamming distance over the whole dictionary (dist), the lowest
// dictionary index achieving it (match), and the second-smallest
// distance across the dictionary, counting a tied entry as its own
// second-best (second_best_dist).
func (l *List) MatchChunk(words, nflags []uint64) (match []uint64, quality []uint16) {
	match = make([]uint64, len(words))
	quality = make([]uint16, len(words))
	for i := range words {
		best := NoMatch
		d1, d2 := initDist, initDist
		q, qf := words[i], nflags[i]
		for idx, s := range l.seqs {
			d := dna.HammingDistance(q, qf, s, 0, l.mask)
			trackBest(d, uint64(idx), &best, &d1, &d2)
		}
		if d2 >= initDist {
			// No second candidate was ever observed (e.g. a
			// single-entry dictionary): report the sentinel, not the
			// initDist seed value, so List agrees with Hash's "unknown
			// / out of bound" encoding (§3).
			d2 = SentinelDist
		}
		match[i] = best
		quality[i] = PackQuality(d1, d2)
	}
	return match, quality
}

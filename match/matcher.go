// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package match implements nearest-barcode matching against a fixed
// dictionary of equal-length DNA sequences, tolerating a bounded number
// of base substitutions. Two Matcher implementations are provided: List,
// an exhaustive scan suited to small dictionaries, and Hash, a
// multi-index hashing engine (Norouzi et al., arXiv:1307.2982) suited to
// large dictionaries with a small mismatch bound.
package match

import (
	"fmt"

	"github.com/GreenleafLab/matcha/dna"
)

// NoMatch is the sentinel dictionary index meaning "no candidate within
// the configured mismatch bound".
const NoMatch = ^uint64(0)

// SentinelDist is the sentinel distance value, "unknown / out of bound".
// It fits the 6-bit field that dist and second_best_dist share on the
// wire, which caps supported barcode lengths at k <= 62 independently of
// the 32-base packing limit in package dna.
const SentinelDist = 63

// Matcher is the common interface implemented by List and Hash. Query
// sequences are passed already packed (see package dna); a Matcher never
// returns an error at query time — a query with no candidate within
// bound yields the sentinel pair (NoMatch, distance SentinelDist).
type Matcher interface {
	// K returns the barcode length shared by every dictionary entry.
	K() int

	// MatchChunk matches each query against the dictionary. words and
	// nflags must have the same length; the returned match and quality
	// slices have that same length. quality packs dist in its low 6
	// bits and second_best_dist in the next 6 bits; use Dist and
	// SecondBestDist to unpack.
	MatchChunk(words, nflags []uint64) (match []uint64, quality []uint16)

	// Label returns the dictionary label for index i. Calling Label
	// with i == NoMatch is a programming error; callers must check for
	// NoMatch first.
	Label(i uint64) string
}

// PackQuality combines a best-match distance and a second-best-match
// distance into the 12-bit wire quality value described in §3 of the
// design: low 6 bits hold dist, the next 6 bits hold second_best_dist.
func PackQuality(dist, second int) uint16 {
	return uint16(dist&0x3f) | uint16(second&0x3f)<<6
}

// Dist unpacks the best-match distance from a quality value.
func Dist(quality uint16) int { return int(quality & 0x3f) }

// SecondBestDist unpacks the second-best-match distance from a quality
// value.
func SecondBestDist(quality uint16) int { return int((quality >> 6) & 0x3f) }

// dictionary holds the state shared by every Matcher implementation:
// the packed barcode words, their labels, and the shared barcode
// length. Both List and Hash embed it.
type dictionary struct {
	k      int
	seqs   []uint64
	labels []string
}

// newDictionary validates sequences and labels and packs sequences into
// 2-bit words. labels defaults to sequences themselves when nil, as
// described in §6 ("labels default to the sequence string if omitted").
func newDictionary(sequences []string, labels []string) (dictionary, error) {
	if len(sequences) == 0 {
		return dictionary{}, ErrEmpty
	}
	k := len(sequences[0])
	if k > dna.MaxLength {
		return dictionary{}, fmt.Errorf("match: barcode length %d: %w", k, ErrBadLength)
	}
	for i, s := range sequences {
		if len(s) != k {
			return dictionary{}, fmt.Errorf("match: sequence %d has length %d, want %d: %w", i, len(s), k, ErrLengthMismatch)
		}
		for j := 0; j < len(s); j++ {
			switch s[j] {
			case 'A', 'C', 'G', 'T':
			default:
				return dictionary{}, fmt.Errorf("match: sequence %d, position %d: %w", i, j, ErrBadBase)
			}
		}
	}
	if labels == nil {
		labels = append([]string(nil), sequences...)
	} else if len(labels) != len(sequences) {
		return dictionary{}, fmt.Errorf("match: %d labels for %d sequences", len(labels), len(sequences))
	}

	words := make([]uint64, len(sequences))
	for i, s := range sequences {
		w, _, err := dna.Encode(s)
		if err != nil {
			return dictionary{}, err
		}
		words[i] = w
	}

	return dictionary{k: k, seqs: words, labels: append([]string(nil), labels...)}, nil
}

func (d dictionary) K() int { return d.k }

func (d dictionary) Label(i uint64) string { return d.labels[i] }

// trackBest folds candidate distance d for dictionary index idx into
// the running (best, d1, d2) triple. Ties at d1 make d2 equal to d1,
// since a tied entry is itself a valid second-best (§4.3's tie-break
// rule), and keep the lower of the two tied indices as best: List
// visits the dictionary in increasing index order so the first arrival
// at d1 is already lowest, but Hash's probe order is not index-ordered,
// so the comparison is needed explicitly to match List on ties.
func trackBest(d int, idx uint64, best *uint64, d1, d2 *int) {
	switch {
	case d < *d1:
		*d2 = *d1
		*d1 = d
		*best = idx
	case d == *d1:
		*d2 = *d1
		if idx < *best {
			*best = idx
		}
	case d < *d2:
		*d2 = d
	}
}

// initDist is a distance larger than any real Hamming distance a
// barcode this package supports can produce (k <= dna.MaxLength), used
// to seed trackBest's running minimums.
const initDist = dna.MaxLength + 1

// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package match

import (
	"fmt"

	"gonum.org/v1/gonum/stat/combin"

	"github.com/GreenleafLab/matcha/dna"
)

// Hash is a multi-index hashing matcher (Norouzi, Punjani and Fleet,
// "Fast Search in Hamming Space with Multi-Index Hashing",
// arXiv:1307.2982). It partitions each barcode into B disjoint
// sub-sequences, builds one hash table per partition, and at query time
// enumerates every value within a per-partition radius of the query's
// masked bits. By the pigeonhole principle, any dictionary entry within
// total Hamming distance R of a query shares at least one partition
// with a sufficiently small local mismatch count, so it is guaranteed to
// be found by at least one partition's probe.
type Hash struct {
	dictionary
	fullMask      uint64
	maxMismatches int
	partitions    []partition
}

// partition is one of a Hash matcher's B sub-sequence indexes.
type partition struct {
	mask  uint64              // base_mask: bits of the positions this partition owns
	xors  []uint64            // neighbor_xors: every XOR delta within this partition's radius
	table map[uint64][]uint64 // masked dictionary word -> dictionary indices
}

// NewHash builds a multi-index hash matcher over sequences with mismatch
// bound maxMismatches and subsequenceCount disjoint partitions (1 <=
// subsequenceCount <= barcode length). See OptimalPartitions for a
// recommended subsequenceCount given the dictionary size and mismatch
// bound.
func NewHash(sequences, labels []string, maxMismatches, subsequenceCount int) (*Hash, error) {
	d, err := newDictionary(sequences, labels)
	if err != nil {
		return nil, err
	}
	if subsequenceCount < 1 || subsequenceCount > d.k {
		return nil, fmt.Errorf("match: subsequence count %d out of range [1, %d]", subsequenceCount, d.k)
	}

	groups := stripedPartitionPositions(d.k, subsequenceCount)
	// Sort partitions by length ascending so the cheapest (smallest)
	// partitions are probed first; the assignment is deterministic
	// because stripedPartitionPositions and this sort are both
	// positional, not map-order, dependent.
	sortByLength(groups)

	rPrime := maxMismatches / subsequenceCount
	a := maxMismatches % subsequenceCount

	partitions := make([]partition, subsequenceCount)
	for i, positions := range groups {
		localR := rPrime
		if i > a {
			localR = rPrime - 1
		}
		mask := partitionMask(positions)
		partitions[i].mask = mask
		if localR < 0 {
			// Pigeonhole still holds: at least one other partition
			// has a non-negative local radius, so this partition
			// simply contributes no candidates.
			continue
		}
		partitions[i].xors = neighborXORs(positions, localR)
	}

	for i := range partitions {
		if partitions[i].xors == nil {
			continue
		}
		table := make(map[uint64][]uint64, len(d.seqs))
		for idx, s := range d.seqs {
			key := s & partitions[i].mask
			table[key] = append(table[key], uint64(idx))
		}
		partitions[i].table = table
	}

	return &Hash{
		dictionary:    d,
		fullMask:      dna.FullMask(d.k),
		maxMismatches: maxMismatches,
		partitions:    partitions,
	}, nil
}

// MatchChunk implements Matcher. See package doc and §4.4 for the
// probe algorithm; distances and the best/second-best tie-break follow
// the same rule as List.MatchChunk, restricted to the subset of the
// dictionary that at least one partition's probe actually surfaces.
func (h *Hash) MatchChunk(words, nflags []uint64) (match []uint64, quality []uint16) {
	match = make([]uint64, len(words))
	quality = make([]uint16, len(words))

	// visited is reused across the queries of this call via an epoch
	// counter, giving O(1) amortized "clear" without reallocating per
	// query; it is allocated fresh per call so concurrent MatchChunk
	// calls sharing this *Hash (e.g. the same matcher used for two
	// barcode configs in one chunk) never share mutable state.
	visited := make([]uint32, len(h.seqs))
	var epoch uint32

	for i := range words {
		epoch++
		best := NoMatch
		d1, d2 := initDist, initDist
		q, qf := words[i], nflags[i]

		for _, p := range h.partitions {
			if p.xors == nil {
				continue
			}
			base := q & p.mask
			for _, x := range p.xors {
				for _, cand := range p.table[base^x] {
					if visited[cand] == epoch {
						continue
					}
					visited[cand] = epoch
					d := dna.HammingDistance(q, qf, h.seqs[cand], 0, h.fullMask)
					trackBest(d, cand, &best, &d1, &d2)
				}
			}
		}

		if d1 > h.maxMismatches {
			best = NoMatch
			d1 = SentinelDist
		}
		if d2 > h.maxMismatches {
			d2 = SentinelDist
		}
		match[i] = best
		quality[i] = PackQuality(d1, d2)
	}
	return match, quality
}

// stripedPartitionPositions assigns the k base positions of a barcode
// to subsequenceCount partitions in a striped (not contiguous) manner:
// partition b owns positions b, b+B, b+2B, .... Striping spreads
// correlated base positions across partitions, which matters when
// dictionaries share long conserved regions.
func stripedPartitionPositions(k, subsequenceCount int) [][]int {
	groups := make([][]int, subsequenceCount)
	for pos := 0; pos < k; pos++ {
		b := pos % subsequenceCount
		groups[b] = append(groups[b], pos)
	}
	return groups
}

// sortByLength orders partitions by ascending length. Lengths differ by
// at most one element for a striped assignment, so insertion sort is
// both simple and sufficient.
func sortByLength(groups [][]int) {
	for i := 1; i < len(groups); i++ {
		for j := i; j > 0 && len(groups[j]) < len(groups[j-1]); j-- {
			groups[j], groups[j-1] = groups[j-1], groups[j]
		}
	}
}

func partitionMask(positions []int) uint64 {
	var mask uint64
	for _, p := range positions {
		mask |= uint64(3) << uint(2*p)
	}
	return mask
}

// neighborXORs enumerates every XOR delta that changes at most r of the
// given positions to one of the three alternate bases, as a flat slice
// of masks (computed once, at construction, never at query time). The
// count is Σ_{i=0..r} C(len(positions), i)·3^i.
func neighborXORs(positions []int, r int) []uint64 {
	xors := []uint64{0}
	for m := 1; m <= r && m <= len(positions); m++ {
		for _, combo := range combin.Combinations(len(positions), m) {
			for _, assignment := range ternaryAssignments(m) {
				var mask uint64
				for j, posIdx := range combo {
					// assignment values are in {0,1,2}; XOR deltas
					// must be nonzero (1, 2 or 3) to actually change
					// the base at that position.
					mask |= uint64(assignment[j]+1) << uint(2*positions[posIdx])
				}
				xors = append(xors, mask)
			}
		}
	}
	return xors
}

// ternaryAssignments returns every base-3 digit string of length m, as
// the concrete assignment of one of three alternate bases to each of m
// chosen positions.
func ternaryAssignments(m int) [][]int {
	n := pow3(m)
	out := make([][]int, 0, n)
	digits := make([]int, m)
	for c := 0; c < n; c++ {
		row := append([]int(nil), digits...)
		out = append(out, row)
		for i := m - 1; i >= 0; i-- {
			digits[i]++
			if digits[i] < 3 {
				break
			}
			digits[i] = 0
		}
	}
	return out
}

func pow3(m int) int {
	n := 1
	for i := 0; i < m; i++ {
		n *= 3
	}
	return n
}

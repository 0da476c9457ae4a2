// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package match

import "gonum.org/v1/gonum/stat/combin"

// OptimalPartitions estimates the number of sub-sequence partitions a
// Hash matcher should use, given the dictionary size n, barcode length
// k and maximum mismatch bound r. It scans B = 1, 2, ... and returns the
// last B for which the modeled cost still decreases. This is a
// recommendation only, per §4.7 and the open question in §9: the model
// conflates hash-probe cost with Hamming-check cost, and callers remain
// free to pass any valid B to NewHash.
func OptimalPartitions(n, k, r int) int {
	best := partitionCost(n, k, 1, r)
	b := 1
	for {
		next := b + 1
		if next > k {
			return b
		}
		c := partitionCost(n, k, next, r)
		if c < best {
			best = c
			b = next
			continue
		}
		return b
	}
}

// partitionCost models the expected work of a Hash matcher with b
// partitions over an n-sequence, k-base dictionary with mismatch bound
// r: for each partition, (1 + n/4^|P|) candidate-list entries are
// expected, each costing one mismatch check, plus the neighbor
// enumeration itself, assumed to cost the same as a hash probe.
func partitionCost(n, k, b, r int) float64 {
	// rPrime/a divide r the way NewHash's radius assignment does
	// (§4.4); the Python reference computes the same rprime/a but then
	// curiously reuses the undivided r for local_r, which would wildly
	// overstate cost. Modeling the actual per-partition radius the real
	// Hash matcher uses is more useful for a recommendation, so that
	// divergence is not carried over here.
	rPrime := r / b
	a := r % b
	short := k / b
	long := short + 1
	numLong := k - b*short
	numShort := b - numLong

	total := 0.0
	for i := 0; i < b; i++ {
		length := long
		if i < numShort {
			length = short
		}
		local := rPrime
		if i > a {
			local = rPrime - 1
		}
		total += costOfPartition(n, length, local)
	}
	return total
}

// costOfPartition models one partition of the given length probed with
// radius r: the neighbor count Σ_{i=0..r} 3^i·C(length, i) (the same
// count neighborXORs produces) times the expected candidate-list length
// 1 + n/4^length. A partition with negative radius is never probed and
// costs nothing.
func costOfPartition(n, length, r int) float64 {
	if r < 0 {
		return 0
	}
	neighbors := 0.0
	for i := 0; i <= r && i <= length; i++ {
		neighbors += float64(pow3(i)) * float64(combin.Binomial(length, i))
	}
	expectedCandidates := 1 + float64(n)/pow4(length)
	return expectedCandidates * neighbors
}

func pow4(n int) float64 {
	v := 1.0
	for i := 0; i < n; i++ {
		v *= 4
	}
	return v
}

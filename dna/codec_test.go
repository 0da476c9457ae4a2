// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dna

import (
	"strings"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, s := range []string{
		"", "A", "T", "ACGT", "NNNN", "ACGTACGTACGTACGTACGTACGTACGTACGT",
		"ANCGT", "NNNNNNNNNNNNNNNNNNNNNNNNNNNNNNNN",
	} {
		word, nflag, err := Encode(s)
		if err != nil {
			t.Fatalf("Encode(%q): %v", s, err)
		}
		got := Decode(word, nflag, len(s))
		if got != s {
			t.Errorf("Decode(Encode(%q)) = %q, want %q", s, got, s)
		}
	}
}

func TestEncodeBadLength(t *testing.T) {
	_, _, err := Encode(strings.Repeat("A", MaxLength+1))
	if err == nil {
		t.Fatal("expected error for sequence longer than MaxLength")
	}
}

func TestHammingDistanceMatchesCharwise(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"ACGT", "ACGT", 0},
		{"ACGT", "TCGA", 2},
		{"AAAA", "TTTT", 4},
		{"ACGTN", "ACGTA", 1},
		{"NNNN", "AAAA", 4},
		{"NNNN", "NNNN", 4}, // every N position is a guaranteed mismatch
		{"ANGT", "AAGT", 1},
	}
	for _, c := range cases {
		aw, af, err := Encode(c.a)
		if err != nil {
			t.Fatal(err)
		}
		bw, bf, err := Encode(c.b)
		if err != nil {
			t.Fatal(err)
		}
		got := HammingDistance(aw, af, bw, bf, FullMask(len(c.a)))
		if got != c.want {
			t.Errorf("HammingDistance(%q, %q) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestHammingDistanceZeroLength(t *testing.T) {
	if got := HammingDistance(0, 0, 0, 0, FullMask(0)); got != 0 {
		t.Errorf("zero-length distance = %d, want 0", got)
	}
}

func TestEncodeRange(t *testing.T) {
	seqs := []string{"ACGTACGT", "TTTTAAAA", "NNNNNNNN"}
	words, nflags, err := EncodeRange(seqs, 2, 6)
	if err != nil {
		t.Fatal(err)
	}
	for i, s := range seqs {
		want := s[2:6]
		got := Decode(words[i], nflags[i], 4)
		if got != want {
			t.Errorf("EncodeRange[%d] = %q, want %q", i, got, want)
		}
	}
}

func TestEncodeRangeEmptyWindow(t *testing.T) {
	words, nflags, err := EncodeRange([]string{"ACGT"}, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if words[0] != 0 || nflags[0] != 0 {
		t.Errorf("empty window = (%d, %d), want (0, 0)", words[0], nflags[0])
	}
}

func TestFullMask(t *testing.T) {
	if FullMask(0) != 0 {
		t.Errorf("FullMask(0) = %#x, want 0", FullMask(0))
	}
	if FullMask(4) != 0xFF {
		t.Errorf("FullMask(4) = %#x, want 0xff", FullMask(4))
	}
	if FullMask(32) != ^uint64(0) {
		t.Errorf("FullMask(32) = %#x, want all ones", FullMask(32))
	}
}

// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/GreenleafLab/matcha/fastq"
	"github.com/GreenleafLab/matcha/match"
)

// writeFastq writes n four-line records to path, all with the same
// bases and quals, naming record i nameFor(i) so records are
// distinguishable.
func writeFastq(t *testing.T, path string, n int, bases, quals string, nameFor func(i int) string) {
	t.Helper()
	w, err := fastq.NewWriter(path)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < n; i++ {
		if err := w.WriteRecord(nameFor(i), bases, quals); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
}

func illuminaName(i int) string {
	return fmt.Sprintf("INST1:1:FC1:%d:1101:1000:%d", i, 2000+i)
}

func TestPipelineReadChunkSynchrony(t *testing.T) {
	dir := t.TempDir()
	r1 := filepath.Join(dir, "R1.fastq")
	r2 := filepath.Join(dir, "R2.fastq")
	writeFastq(t, r1, 5, "ACGTACGT", "IIIIIIII", illuminaName)
	writeFastq(t, r2, 5, "TTTTGGGG", "JJJJJJJJ", illuminaName)

	p := New()
	if err := p.AddSequence("R1", r1, ""); err != nil {
		t.Fatal(err)
	}
	if err := p.AddSequence("R2", r2, ""); err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	n, err := p.ReadChunk(3)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("n = %d, want 3", n)
	}
	n, err = p.ReadChunk(3)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("n = %d, want 2", n)
	}
	n, err = p.ReadChunk(3)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("n = %d, want 0 at EOF", n)
	}
}

func TestPipelineFileLengthMismatch(t *testing.T) {
	dir := t.TempDir()
	r1 := filepath.Join(dir, "R1.fastq")
	r2 := filepath.Join(dir, "R2.fastq")
	writeFastq(t, r1, 5, "ACGT", "IIII", illuminaName)
	writeFastq(t, r2, 3, "ACGT", "IIII", illuminaName)

	p := New()
	if err := p.AddSequence("R1", r1, ""); err != nil {
		t.Fatal(err)
	}
	if err := p.AddSequence("R2", r2, ""); err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	_, err := p.ReadChunk(10)
	if !errors.Is(err, ErrFileLengthMismatch) {
		t.Fatalf("err = %v, want ErrFileLengthMismatch", err)
	}
}

func TestPipelineReservedBarcodeName(t *testing.T) {
	p := New()
	dict := mustList(t, []string{"AAAA"}, []string{"bc"})
	if err := p.AddSequence("I1", "unused", ""); err != nil {
		t.Fatal(err)
	}
	err := p.AddBarcode("lane", dict, "I1", 0)
	if !errors.Is(err, ErrReservedName) {
		t.Fatalf("err = %v, want ErrReservedName", err)
	}
}

func TestPipelineConfigFrozenAfterReadChunk(t *testing.T) {
	dir := t.TempDir()
	r1 := filepath.Join(dir, "R1.fastq")
	writeFastq(t, r1, 1, "ACGT", "IIII", illuminaName)

	p := New()
	if err := p.AddSequence("R1", r1, ""); err != nil {
		t.Fatal(err)
	}
	defer p.Close()
	if _, err := p.ReadChunk(10); err != nil {
		t.Fatal(err)
	}
	if err := p.AddSequence("R2", r1, ""); !errors.Is(err, ErrConfigFrozen) {
		t.Fatalf("AddSequence after read: err = %v, want ErrConfigFrozen", err)
	}
	dict := mustList(t, []string{"AAAA"}, []string{"bc"})
	if err := p.AddBarcode("bc", dict, "R1", 0); !errors.Is(err, ErrConfigFrozen) {
		t.Fatalf("AddBarcode after read: err = %v, want ErrConfigFrozen", err)
	}
	if err := p.SetOutputNames("{read_name}"); !errors.Is(err, ErrConfigFrozen) {
		t.Fatalf("SetOutputNames after read: err = %v, want ErrConfigFrozen", err)
	}
}

func mustList(t *testing.T, seqs, labels []string) *match.List {
	t.Helper()
	m, err := match.NewList(seqs, labels)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

// TestPipelineRoundTripWithTemplate exercises scenario S4: four
// synchronized inputs, two matchers on the index reads, a name
// template combining both barcode labels with the original read name,
// and a filter keeping two of five records.
func TestPipelineRoundTripWithTemplate(t *testing.T) {
	dir := t.TempDir()
	paths := map[string]string{
		"R1": filepath.Join(dir, "R1.fastq"),
		"R2": filepath.Join(dir, "R2.fastq"),
		"I1": filepath.Join(dir, "I1.fastq"),
		"I2": filepath.Join(dir, "I2.fastq"),
	}
	writeFastq(t, paths["R1"], 5, "ACGTACGT", "IIIIIIII", illuminaName)
	writeFastq(t, paths["R2"], 5, "TTTTGGGG", "JJJJJJJJ", illuminaName)
	writeFastq(t, paths["I1"], 5, "AAAA", "IIII", illuminaName)
	writeFastq(t, paths["I2"], 5, "CCCC", "IIII", illuminaName)

	outPaths := map[string]string{
		"R1": filepath.Join(dir, "R1.out.fastq"),
		"R2": filepath.Join(dir, "R2.out.fastq"),
		"I1": filepath.Join(dir, "I1.out.fastq"),
		"I2": filepath.Join(dir, "I2.out.fastq"),
	}

	p := New()
	for _, name := range []string{"R1", "R2", "I1", "I2"} {
		if err := p.AddSequence(name, paths[name], outPaths[name]); err != nil {
			t.Fatal(err)
		}
	}
	i5 := mustList(t, []string{"AAAA"}, []string{"bc5"})
	i7 := mustList(t, []string{"CCCC"}, []string{"bc7"})
	if err := p.AddBarcode("cell_i5", i5, "I1", 0); err != nil {
		t.Fatal(err)
	}
	if err := p.AddBarcode("cell_i7", i7, "I2", 0); err != nil {
		t.Fatal(err)
	}
	if err := p.SetOutputNames("{cell_i5}+{cell_i7}:{read_name}"); err != nil {
		t.Fatal(err)
	}

	n, err := p.ReadChunk(10)
	if err != nil {
		t.Fatal(err)
	}
	if n != 5 {
		t.Fatalf("n = %d, want 5", n)
	}

	match5, _, ok := p.MatchResult("cell_i5")
	if !ok || len(match5) != 5 {
		t.Fatalf("MatchResult(cell_i5) = %v, %v", match5, ok)
	}

	filter := []bool{true, false, false, true, false}
	if err := p.WriteChunk(filter); err != nil {
		t.Fatal(err)
	}
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}

	r, err := fastq.NewReader(outPaths["R1"])
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	got, err := r.ReadChunk(10)
	if err != nil {
		t.Fatal(err)
	}
	if got != 2 {
		t.Fatalf("output record count = %d, want 2", got)
	}
	wantName0 := "bc5+bc7:" + illuminaName(0)
	if r.Names[0] != wantName0 {
		t.Errorf("name[0] = %q, want %q", r.Names[0], wantName0)
	}
	if r.Bases[0] != "ACGTACGT" || r.Quals[0] != "IIIIIIII" {
		t.Errorf("record 0 bases/quals = %q/%q, want original verbatim", r.Bases[0], r.Quals[0])
	}
	wantName1 := "bc5+bc7:" + illuminaName(3)
	if r.Names[1] != wantName1 {
		t.Errorf("name[1] = %q, want %q", r.Names[1], wantName1)
	}
}

func TestPipelinePositionalTemplate(t *testing.T) {
	dir := t.TempDir()
	r1 := filepath.Join(dir, "R1.fastq")
	writeFastq(t, r1, 2, "ACGT", "IIII", illuminaName)
	outPath := filepath.Join(dir, "R1.out.fastq")

	p := New()
	if err := p.AddSequence("R1", r1, outPath); err != nil {
		t.Fatal(err)
	}
	if err := p.SetOutputNames("lane{lane}_tile{tile}_x{x}_y{y}"); err != nil {
		t.Fatal(err)
	}
	if _, err := p.ReadChunk(10); err != nil {
		t.Fatal(err)
	}
	if err := p.WriteChunk([]bool{true, true}); err != nil {
		t.Fatal(err)
	}
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}

	r, err := fastq.NewReader(outPath)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	n, err := r.ReadChunk(10)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("n = %d, want 2", n)
	}
	if want := "lane0_tile1101_x1000_y2000"; r.Names[0] != want {
		t.Errorf("name[0] = %q, want %q", r.Names[0], want)
	}
}

func TestPipelineUnknownTemplateField(t *testing.T) {
	dir := t.TempDir()
	r1 := filepath.Join(dir, "R1.fastq")
	writeFastq(t, r1, 1, "ACGT", "IIII", illuminaName)

	p := New()
	if err := p.AddSequence("R1", r1, ""); err != nil {
		t.Fatal(err)
	}
	defer p.Close()
	if err := p.SetOutputNames("{not_a_field}"); err != nil {
		t.Fatal(err)
	}
	_, err := p.ReadChunk(10)
	if !errors.Is(err, ErrUnknownField) {
		t.Fatalf("err = %v, want ErrUnknownField", err)
	}
}

func TestPipelineBadTemplateSyntax(t *testing.T) {
	p := New()
	err := p.SetOutputNames("{unterminated")
	if !errors.Is(err, ErrBadTemplate) {
		t.Fatalf("err = %v, want ErrBadTemplate", err)
	}
}

// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pipeline implements synchronized, chunked ingest of several
// paired FASTQ streams, per-chunk barcode matching against the
// configured positions of each stream, and optional filtered
// re-emission with templated read-name rewriting. See §4.6 and §5 of
// the design.
package pipeline

import (
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/GreenleafLab/matcha/dna"
	"github.com/GreenleafLab/matcha/fastq"
	"github.com/GreenleafLab/matcha/match"
)

// Pipeline reads several synchronized FASTQ files in lockstep, matches
// configured barcode windows against their dictionaries, and optionally
// writes a filtered, renamed copy of every input. It is not safe for
// concurrent use by the caller: the public API is not re-entrant (§5).
type Pipeline struct {
	workers int
	frozen  bool
	closed  bool
	count   int

	sequences []*sequenceEntry
	seqIndex  map[string]int

	barcodes      []*barcodeEntry
	barcodeByName map[string]*barcodeEntry

	template *nameTemplate
}

type sequenceEntry struct {
	name    string
	inPath  string
	outPath string
	reader  *fastq.Reader
	writer  *fastq.Writer
}

type barcodeEntry struct {
	name         string
	matcher      match.Matcher
	sequenceName string
	seqIdx       int
	matchStart   int

	match   []uint64
	quality []uint16
}

// Option configures a Pipeline at construction.
type Option func(*Pipeline)

// WithWorkers overrides the default worker pool size (one goroutine per
// registered input file). n must be positive; non-positive values are
// ignored and the default is used instead.
func WithWorkers(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// New creates an unconfigured Pipeline. Register sequences and
// barcodes with AddSequence and AddBarcode, then call ReadChunk.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		seqIndex:      make(map[string]int),
		barcodeByName: make(map[string]*barcodeEntry),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// AddSequence registers a FASTQ input under a symbolic name (e.g.
// "R1"), and an optional output path. outPath == "" means this
// sequence is read but never re-emitted.
func (p *Pipeline) AddSequence(name, inPath, outPath string) error {
	if p.frozen {
		return ErrConfigFrozen
	}
	if _, exists := p.seqIndex[name]; exists {
		return fmt.Errorf("pipeline: sequence %q already registered", name)
	}
	p.seqIndex[name] = len(p.sequences)
	p.sequences = append(p.sequences, &sequenceEntry{name: name, inPath: inPath, outPath: outPath})
	return nil
}

// AddBarcode associates matcher with the window [matchStart,
// matchStart+matcher.K()) of the named sequence. name may not be one
// of the reserved template fields (read_name, lane, tile, x, y).
func (p *Pipeline) AddBarcode(name string, matcher match.Matcher, sequenceName string, matchStart int) error {
	if p.frozen {
		return ErrConfigFrozen
	}
	if reservedNames[name] {
		return fmt.Errorf("pipeline: barcode name %q: %w", name, ErrReservedName)
	}
	if _, exists := p.barcodeByName[name]; exists {
		return fmt.Errorf("pipeline: barcode %q already registered", name)
	}
	b := &barcodeEntry{name: name, matcher: matcher, sequenceName: sequenceName, matchStart: matchStart}
	p.barcodes = append(p.barcodes, b)
	p.barcodeByName[name] = b
	return nil
}

// SetOutputNames parses pattern as an output-name template (§6): a
// flat sequence of literals and {field} substitutions. Fields are not
// checked against registered names until the first ReadChunk call.
func (p *Pipeline) SetOutputNames(pattern string) error {
	if p.frozen {
		return ErrConfigFrozen
	}
	t, err := parseTemplate(pattern)
	if err != nil {
		return err
	}
	p.template = t
	return nil
}

// freeze validates the configuration, opens every file handle, and
// resolves the default worker count. It runs once; later calls are a
// no-op, matching §4.6's "validates configuration on first call
// (idempotent)".
func (p *Pipeline) freeze() error {
	if p.frozen {
		return nil
	}
	if len(p.sequences) == 0 {
		return fmt.Errorf("pipeline: no sequences registered")
	}
	for _, b := range p.barcodes {
		idx, ok := p.seqIndex[b.sequenceName]
		if !ok {
			return fmt.Errorf("pipeline: barcode %q references unknown sequence %q", b.name, b.sequenceName)
		}
		b.seqIdx = idx
	}
	if p.template != nil {
		if err := p.template.validate(barcodeNameSet(p.barcodes)); err != nil {
			return err
		}
	}

	for _, s := range p.sequences {
		r, err := fastq.NewReader(s.inPath)
		if err != nil {
			p.closePartial()
			return fmt.Errorf("pipeline: opening %s: %w", s.inPath, err)
		}
		s.reader = r
		if s.outPath != "" {
			w, err := fastq.NewWriter(s.outPath)
			if err != nil {
				p.closePartial()
				return fmt.Errorf("pipeline: opening %s: %w", s.outPath, err)
			}
			s.writer = w
		}
	}

	if p.workers <= 0 {
		p.workers = len(p.sequences)
	}
	p.frozen = true
	return nil
}

func barcodeNameSet(barcodes []*barcodeEntry) map[string]bool {
	names := make(map[string]bool, len(barcodes))
	for _, b := range barcodes {
		names[b.name] = true
	}
	return names
}

// closePartial releases any file handles opened so far during a failed
// freeze, so a construction error never leaks descriptors.
func (p *Pipeline) closePartial() {
	for _, s := range p.sequences {
		if s.reader != nil {
			s.reader.Close()
		}
		if s.writer != nil {
			s.writer.Close()
		}
	}
}

// ReadChunk reads up to max records from every registered sequence,
// then matches every registered barcode against its configured window.
// It returns the number of records read (0 at a clean end of file).
func (p *Pipeline) ReadChunk(max int) (int, error) {
	if p.closed {
		return 0, fmt.Errorf("pipeline: read_chunk called after close")
	}
	if err := p.freeze(); err != nil {
		return 0, err
	}

	var readGroup errgroup.Group
	readGroup.SetLimit(p.workers)
	counts := make([]int, len(p.sequences))
	for i, s := range p.sequences {
		i, s := i, s
		readGroup.Go(func() error {
			n, err := s.reader.ReadChunk(max)
			if err != nil {
				return fmt.Errorf("pipeline: reading %s: %w", s.inPath, err)
			}
			counts[i] = n
			return nil
		})
	}
	if err := readGroup.Wait(); err != nil {
		return 0, err
	}

	count := counts[0]
	for i, n := range counts {
		if n != count {
			return 0, fmt.Errorf("pipeline: %q returned %d records, %q returned %d: %w",
				p.sequences[i].name, n, p.sequences[0].name, count, ErrFileLengthMismatch)
		}
	}
	p.count = count
	if count == 0 {
		return 0, nil
	}

	var matchGroup errgroup.Group
	matchGroup.SetLimit(p.workers)
	for _, b := range p.barcodes {
		b := b
		matchGroup.Go(func() error {
			seq := p.sequences[b.seqIdx]
			k := b.matcher.K()
			words, flags, err := dna.EncodeRange(seq.reader.Bases, b.matchStart, b.matchStart+k)
			if err != nil {
				return fmt.Errorf("pipeline: barcode %q: %w", b.name, err)
			}
			b.match, b.quality = b.matcher.MatchChunk(words, flags)
			return nil
		})
	}
	if err := matchGroup.Wait(); err != nil {
		return 0, err
	}

	return count, nil
}

// MatchResult returns the most recent chunk's match and quality arrays
// for the named barcode. ok is false if name was never registered with
// AddBarcode.
func (p *Pipeline) MatchResult(name string) (match []uint64, quality []uint16, ok bool) {
	b, ok := p.barcodeByName[name]
	if !ok {
		return nil, nil, false
	}
	return b.match, b.quality, true
}

// Sequence returns the most recent chunk's raw names, bases and
// qualities for the named sequence. ok is false if name was never
// registered with AddSequence.
func (p *Pipeline) Sequence(name string) (names, bases, quals []string, ok bool) {
	idx, ok := p.seqIndex[name]
	if !ok {
		return nil, nil, nil, false
	}
	r := p.sequences[idx].reader
	return r.Names, r.Bases, r.Quals, true
}

// WriteChunk emits one record per kept index to every registered
// output, in input order, preserving SEQ and QUAL verbatim (§8
// invariant 7). filter must have the same length as the most recent
// ReadChunk's returned count.
func (p *Pipeline) WriteChunk(filter []bool) error {
	if !p.frozen {
		return fmt.Errorf("pipeline: write_chunk called before read_chunk")
	}
	if len(filter) != p.count {
		return fmt.Errorf("pipeline: filter has %d entries, want %d", len(filter), p.count)
	}

	kept := make([]int, 0, p.count)
	for i, keep := range filter {
		if keep {
			kept = append(kept, i)
		}
	}

	names, err := p.resolveNames(kept)
	if err != nil {
		return err
	}

	var writeGroup errgroup.Group
	writeGroup.SetLimit(p.workers)
	for _, s := range p.sequences {
		if s.writer == nil {
			continue
		}
		s := s
		writeGroup.Go(func() error {
			for j, i := range kept {
				if err := s.writer.WriteRecord(names[j], s.reader.Bases[i], s.reader.Quals[i]); err != nil {
					return fmt.Errorf("pipeline: writing %s: %w", s.outPath, err)
				}
			}
			return nil
		})
	}
	return writeGroup.Wait()
}

// resolveNames applies p.template to each kept index, producing the
// final output read name (without the leading '@', which fastq.Writer
// adds). Positional attributes (lane/tile/x/y) are parsed from the
// first registered sequence's read name, lazily and only once per
// call, the first time the template actually references one.
func (p *Pipeline) resolveNames(kept []int) ([]string, error) {
	if p.template == nil {
		return nil, fmt.Errorf("pipeline: write_chunk requires set_output_names")
	}
	t := p.template
	canonical := p.sequences[0].reader

	var parts [][]string
	if t.needsPositional() {
		parts = make([][]string, len(kept))
		for j, i := range kept {
			ps := strings.Split(canonical.Names[i], ":")
			if len(ps) < 7 {
				return nil, fmt.Errorf("pipeline: read name %q: %w", canonical.Names[i], ErrBadTemplate)
			}
			parts[j] = ps
		}
	}

	names := make([]string, len(kept))
	var sb strings.Builder
	for j, i := range kept {
		sb.Reset()
		sb.WriteString(t.literals[0])
		for fi, field := range t.fields {
			switch field {
			case "read_name":
				sb.WriteString(canonical.Names[i])
			case "lane", "tile", "x", "y":
				sb.WriteString(parts[j][positionalFields[field]])
			default:
				b := p.barcodeByName[field]
				idx := b.match[i]
				if idx == match.NoMatch {
					sb.WriteString("NoMatch")
				} else {
					sb.WriteString(b.matcher.Label(idx))
				}
			}
			sb.WriteString(t.literals[fi+1])
		}
		names[j] = sb.String()
	}
	return names, nil
}

// Close flushes and releases every file handle. Close is idempotent.
func (p *Pipeline) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	var firstErr error
	for _, s := range p.sequences {
		if s.reader != nil {
			if err := s.reader.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		if s.writer != nil {
			if err := s.writer.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

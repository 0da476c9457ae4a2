// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// matcha-match streams one or more synchronized FASTQ files through a
// chunked barcode-matching pipeline, optionally writing a filtered,
// renamed copy of every input alongside the original.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/GreenleafLab/matcha/match"
	"github.com/GreenleafLab/matcha/pipeline"
)

func main() {
	var seqs, barcodes sliceValue
	flag.Var(&seqs, "seq", "register an input sequence: name:in.fastq[.gz][:out.fastq[.gz]] (required - may be present more than once)")
	flag.Var(&barcodes, "barcode", "register a barcode match: name:dict.fasta:sequence:matchStart[:maxMismatches[:subsequences]] (may be present more than once)")
	template := flag.String("template", "", "output read-name template, e.g. \"{cell_i5}+{cell_i7}:{read_name}\"")
	chunkSize := flag.Int("chunk", 100000, "records per chunk")
	workers := flag.Int("workers", 0, "worker pool size (<=0 uses one worker per input file)")
	requireAll := flag.Bool("require-all-matched", true, "write only records where every barcode found a match within bound")

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), `Usage of %[1]s:
  $ %[1]s [options] -seq R1:R1.fastq.gz:R1.out.fastq.gz -seq R2:R2.fastq.gz:R2.out.fastq.gz \
      -barcode cell_i5:i5.fasta:R1:0:2:3 -template "{cell_i5}:{read_name}"

Options:
`, os.Args[0])
		flag.PrintDefaults()
	}

	flag.Parse()

	if len(seqs) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	log.Println(os.Args)

	p := pipeline.New(pipeline.WithWorkers(*workers))
	defer p.Close()

	for _, spec := range seqs {
		name, in, out, err := parseSeqSpec(spec)
		if err != nil {
			log.Fatal(err)
		}
		if err := p.AddSequence(name, in, out); err != nil {
			log.Fatal(err)
		}
	}

	barcodeNames := make([]string, 0, len(barcodes))
	for _, spec := range barcodes {
		b, err := parseBarcodeSpec(spec)
		if err != nil {
			log.Fatal(err)
		}
		m, err := buildMatcher(b)
		if err != nil {
			log.Fatalf("barcode %q: %v", b.name, err)
		}
		if err := p.AddBarcode(b.name, m, b.sequence, b.matchStart); err != nil {
			log.Fatal(err)
		}
		barcodeNames = append(barcodeNames, b.name)
	}

	if *template != "" {
		if err := p.SetOutputNames(*template); err != nil {
			log.Fatal(err)
		}
	}

	total := 0
	for {
		n, err := p.ReadChunk(*chunkSize)
		if err != nil {
			log.Fatal(err)
		}
		if n == 0 {
			break
		}
		total += n

		if *template != "" {
			filter := make([]bool, n)
			for i := range filter {
				filter[i] = true
			}
			if *requireAll {
				for _, name := range barcodeNames {
					matches, _, _ := p.MatchResult(name)
					for i, idx := range matches {
						if idx == match.NoMatch {
							filter[i] = false
						}
					}
				}
			}
			if err := p.WriteChunk(filter); err != nil {
				log.Fatal(err)
			}
		}
		log.Printf("processed %d records (%d total)", n, total)
	}

	log.Printf("done: %d records", total)
}

// parseSeqSpec parses a -seq value of the form "name:in[:out]".
func parseSeqSpec(s string) (name, in, out string, err error) {
	fields := strings.Split(s, ":")
	if len(fields) < 2 || len(fields) > 3 {
		return "", "", "", fmt.Errorf("matcha-match: bad -seq spec %q: want name:in[:out]", s)
	}
	name, in = fields[0], fields[1]
	if len(fields) == 3 {
		out = fields[2]
	}
	return name, in, out, nil
}

// barcodeSpec is "name:dict.fasta:sequence:matchStart[:maxMismatches[:subsequences]]".
type barcodeSpec struct {
	name          string
	dictPath      string
	sequence      string
	matchStart    int
	maxMismatches int
	subsequences  int
	useHash       bool
	autoPartition bool
}

func parseBarcodeSpec(s string) (barcodeSpec, error) {
	fields := strings.Split(s, ":")
	if len(fields) < 4 || len(fields) > 6 {
		return barcodeSpec{}, fmt.Errorf("matcha-match: bad -barcode spec %q: want name:dict.fasta:sequence:matchStart[:maxMismatches[:subsequences]]", s)
	}
	start, err := strconv.Atoi(fields[3])
	if err != nil {
		return barcodeSpec{}, fmt.Errorf("matcha-match: bad -barcode spec %q: matchStart: %w", s, err)
	}
	b := barcodeSpec{name: fields[0], dictPath: fields[1], sequence: fields[2], matchStart: start}
	if len(fields) >= 5 {
		mm, err := strconv.Atoi(fields[4])
		if err != nil {
			return barcodeSpec{}, fmt.Errorf("matcha-match: bad -barcode spec %q: maxMismatches: %w", s, err)
		}
		b.useHash = true
		b.maxMismatches = mm
		if len(fields) == 6 {
			subseqs, err := strconv.Atoi(fields[5])
			if err != nil {
				return barcodeSpec{}, fmt.Errorf("matcha-match: bad -barcode spec %q: subsequences: %w", s, err)
			}
			b.subsequences = subseqs
		} else {
			b.autoPartition = true
		}
	}
	return b, nil
}

func buildMatcher(b barcodeSpec) (match.Matcher, error) {
	f, err := os.Open(b.dictPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	sequences, labels, err := match.DictionaryFromFASTA(f)
	if err != nil {
		return nil, err
	}

	if !b.useHash {
		return match.NewList(sequences, labels)
	}

	subseqs := b.subsequences
	if b.autoPartition {
		subseqs = match.OptimalPartitions(len(sequences), len(sequences[0]), b.maxMismatches)
		log.Printf("barcode %q: recommending %d sub-sequences for n=%d k=%d R=%d", b.name, subseqs, len(sequences), len(sequences[0]), b.maxMismatches)
	}
	return match.NewHash(sequences, labels, b.maxMismatches, subseqs)
}

// sliceValue is a multi-value flag value.
type sliceValue []string

// Set adds the string to the sliceValue.
func (s *sliceValue) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// String satisfies the flag.Value interface.
func (s *sliceValue) String() string {
	return fmt.Sprintf("%q", []string(*s))
}

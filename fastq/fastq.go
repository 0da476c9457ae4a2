// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fastq implements line-oriented reading and writing of FASTQ
// sequence files, with transparent gzip compression for paths ending in
// ".gz". A FASTQ record is exactly four lines: an '@'-prefixed name, the
// sequence, a '+' separator, and the quality string; see §4.5 and §6.
package fastq

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// ErrMalformedFASTQ is returned when a record is truncated mid-way
// through its four lines, or its third line does not begin with the
// '+' separator.
var ErrMalformedFASTQ = errors.New("fastq: malformed record")

// Reader reads FASTQ records in chunks. ReadChunk overwrites Names,
// Bases and Quals in place; a call to ReadChunk invalidates any slices
// returned by a previous call, per §3's ownership rule.
type Reader struct {
	file *os.File
	gz   io.ReadCloser
	br   *bufio.Reader

	Names []string
	Bases []string
	Quals []string

	closed bool
}

// NewReader opens path for reading. Paths ending in ".gz" are
// transparently decompressed.
func NewReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r := &Reader{file: f}
	var src io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("fastq: %s: %w", path, err)
		}
		r.gz = gz
		src = gz
	}
	r.br = bufio.NewReaderSize(src, 64*1024)
	return r, nil
}

// ReadChunk reads up to max records, returning the number read. It
// returns 0 with a nil error at a clean end of file. A record that
// begins (its name line is present) but does not complete all four
// lines, or whose third line is not '+'-prefixed, fails with
// ErrMalformedFASTQ.
func (r *Reader) ReadChunk(max int) (int, error) {
	r.Names = r.Names[:0]
	r.Bases = r.Bases[:0]
	r.Quals = r.Quals[:0]

	for len(r.Names) < max {
		name, err := r.readLine()
		if err != nil {
			if err == io.EOF {
				break
			}
			return len(r.Names), err
		}
		if !strings.HasPrefix(name, "@") {
			return len(r.Names), fmt.Errorf("fastq: record %d: name line missing '@': %w", len(r.Names), ErrMalformedFASTQ)
		}

		bases, err := r.readLine()
		if err != nil {
			return len(r.Names), truncated(err)
		}
		plus, err := r.readLine()
		if err != nil {
			return len(r.Names), truncated(err)
		}
		if !strings.HasPrefix(plus, "+") {
			return len(r.Names), fmt.Errorf("fastq: record %d: missing '+' separator: %w", len(r.Names), ErrMalformedFASTQ)
		}
		quals, err := r.readLine()
		if err != nil {
			return len(r.Names), truncated(err)
		}

		r.Names = append(r.Names, name[1:])
		r.Bases = append(r.Bases, bases)
		r.Quals = append(r.Quals, quals)
	}
	return len(r.Names), nil
}

func truncated(err error) error {
	if err == io.EOF {
		return fmt.Errorf("fastq: truncated record: %w", ErrMalformedFASTQ)
	}
	return err
}

func (r *Reader) readLine() (string, error) {
	line, err := r.br.ReadString('\n')
	if err != nil {
		if err != io.EOF {
			return "", err
		}
		if line == "" {
			return "", io.EOF
		}
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Close releases the underlying file (and gzip decompressor, if any).
// Close is idempotent.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	var gzErr error
	if r.gz != nil {
		gzErr = r.gz.Close()
	}
	fileErr := r.file.Close()
	if gzErr != nil {
		return gzErr
	}
	return fileErr
}

// Writer writes FASTQ records, with transparent gzip compression for
// paths ending in ".gz".
type Writer struct {
	file *os.File
	gz   io.WriteCloser
	bw   *bufio.Writer

	closed bool
}

// NewWriter creates (or truncates) path for writing.
func NewWriter(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := &Writer{file: f}
	var dst io.Writer = f
	if strings.HasSuffix(path, ".gz") {
		gz := gzip.NewWriter(f)
		w.gz = gz
		dst = gz
	}
	w.bw = bufio.NewWriterSize(dst, 64*1024)
	return w, nil
}

// WriteRecord writes one four-line FASTQ record. name is written
// without a leading '@'; WriteRecord adds it.
func (w *Writer) WriteRecord(name, bases, quals string) error {
	if _, err := w.bw.WriteString("@"); err != nil {
		return err
	}
	if _, err := w.bw.WriteString(name); err != nil {
		return err
	}
	if _, err := w.bw.WriteString("\n"); err != nil {
		return err
	}
	if _, err := w.bw.WriteString(bases); err != nil {
		return err
	}
	if _, err := w.bw.WriteString("\n+\n"); err != nil {
		return err
	}
	if _, err := w.bw.WriteString(quals); err != nil {
		return err
	}
	_, err := w.bw.WriteString("\n")
	return err
}

// Close flushes buffered output and releases the underlying file (and
// gzip compressor, if any). Close is idempotent.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	flushErr := w.bw.Flush()
	var gzErr error
	if w.gz != nil {
		gzErr = w.gz.Close()
	}
	fileErr := w.file.Close()
	switch {
	case flushErr != nil:
		return flushErr
	case gzErr != nil:
		return gzErr
	default:
		return fileErr
	}
}

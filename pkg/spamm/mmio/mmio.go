// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package mmio reads and writes SpAMM matrices in the Matrix Market exchange format.
//
// Read supports the "coordinate" format (real, integer or pattern fields; general, symmetric or
// skew-symmetric) and the dense "array" format (real or integer, general). Write always writes the
// "coordinate real general" format, with only the non-zero elements.
package mmio

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gomlx/spamm/internal/fsutil"
	"github.com/gomlx/spamm/pkg/spamm"
	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
)

// ErrFormat is returned for malformed or unsupported Matrix Market files.
var ErrFormat = errors.New("mmio: invalid Matrix Market file")

const banner = "%%MatrixMarket"

type header struct {
	format   string // coordinate or array.
	field    string // real, integer or pattern.
	symmetry string // general, symmetric or skew-symmetric.
}

func parseHeader(line string) (header, error) {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) != 5 || fields[0] != strings.ToLower(banner) || fields[1] != "matrix" {
		return header{}, errors.Wrapf(ErrFormat, "bad banner %q", line)
	}
	h := header{format: fields[2], field: fields[3], symmetry: fields[4]}
	switch h.format {
	case "coordinate", "array":
	default:
		return h, errors.Wrapf(ErrFormat, "unsupported format %q", h.format)
	}
	switch h.field {
	case "real", "integer":
	case "pattern":
		if h.format == "array" {
			return h, errors.Wrap(ErrFormat, "pattern field requires the coordinate format")
		}
	default:
		return h, errors.Wrapf(ErrFormat, "unsupported field %q", h.field)
	}
	switch h.symmetry {
	case "general":
	case "symmetric", "skew-symmetric":
		if h.format == "array" {
			return h, errors.Wrapf(ErrFormat, "%s symmetry is only supported in the coordinate format", h.symmetry)
		}
	default:
		return h, errors.Wrapf(ErrFormat, "unsupported symmetry %q", h.symmetry)
	}
	return h, nil
}

// Read a matrix in Matrix Market format. The options configure the structure of the matrix, as in spamm.New.
func Read[T constraints.Float](r io.Reader, opts ...spamm.Option) (*spamm.Matrix[T], error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNum := 0
	// nextLine returns the next line that is not a comment or empty.
	nextLine := func() (string, bool) {
		for scanner.Scan() {
			lineNum++
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "%") {
				continue
			}
			return line, true
		}
		return "", false
	}

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, errors.Wrap(err, "mmio: reading banner")
		}
		return nil, errors.Wrap(ErrFormat, "empty file")
	}
	lineNum++
	h, err := parseHeader(scanner.Text())
	if err != nil {
		return nil, err
	}

	sizeLine, ok := nextLine()
	if !ok {
		return nil, errors.Wrap(ErrFormat, "missing size line")
	}
	sizes, err := parseInts(strings.Fields(sizeLine))
	if err != nil {
		return nil, errors.WithMessagef(err, "line %d", lineNum)
	}
	if (h.format == "coordinate" && len(sizes) != 3) || (h.format == "array" && len(sizes) != 2) {
		return nil, errors.Wrapf(ErrFormat, "line %d: bad size line %q for the %s format", lineNum, sizeLine, h.format)
	}
	for _, size := range sizes {
		if size < 0 {
			return nil, errors.Wrapf(ErrFormat, "line %d: negative size in %q", lineNum, sizeLine)
		}
	}
	rows, cols := sizes[0], sizes[1]
	m, err := spamm.New[T](2, []int{rows, cols}, opts...)
	if err != nil {
		return nil, err
	}

	if h.format == "array" {
		// Column-major dense values.
		for j := range cols {
			for i := range rows {
				line, ok := nextLine()
				if !ok {
					return nil, errors.Wrapf(ErrFormat, "expected %d values, got %d", rows*cols, j*rows+i)
				}
				v, err := strconv.ParseFloat(line, 64)
				if err != nil {
					return nil, errors.Wrapf(ErrFormat, "line %d: %v", lineNum, err)
				}
				if v != 0 {
					m.Set([]int{i, j}, T(v))
				}
			}
		}
		return m, nil
	}

	numEntries := sizes[2]
	for entry := range numEntries {
		line, ok := nextLine()
		if !ok {
			if err := scanner.Err(); err != nil {
				return nil, errors.Wrapf(err, "mmio: reading entry %d", entry)
			}
			return nil, errors.Wrapf(ErrFormat, "expected %d entries, got %d", numEntries, entry)
		}
		fields := strings.Fields(line)
		wantFields := 3
		if h.field == "pattern" {
			wantFields = 2
		}
		if len(fields) != wantFields {
			return nil, errors.Wrapf(ErrFormat, "line %d: expected %d fields, got %q", lineNum, wantFields, line)
		}
		idx, err := parseInts(fields[:2])
		if err != nil {
			return nil, errors.WithMessagef(err, "line %d", lineNum)
		}
		i, j := idx[0]-1, idx[1]-1
		if i < 0 || i >= rows || j < 0 || j >= cols {
			return nil, errors.Wrapf(spamm.ErrIndexOutOfRange, "line %d: entry (%d, %d) of a %dx%d matrix", lineNum, i+1, j+1, rows, cols)
		}
		v := 1.0
		if h.field != "pattern" {
			v, err = strconv.ParseFloat(fields[2], 64)
			if err != nil {
				return nil, errors.Wrapf(ErrFormat, "line %d: %v", lineNum, err)
			}
		}
		m.Set([]int{i, j}, T(v))
		if i != j {
			switch h.symmetry {
			case "symmetric":
				m.Set([]int{j, i}, T(v))
			case "skew-symmetric":
				m.Set([]int{j, i}, T(-v))
			}
		}
	}
	return m, nil
}

func parseInts(fields []string) ([]int, error) {
	values := make([]int, len(fields))
	for i, field := range fields {
		v, err := strconv.Atoi(field)
		if err != nil {
			return nil, errors.Wrapf(ErrFormat, "%q is not an integer", field)
		}
		values[i] = v
	}
	return values, nil
}

// ReadFile reads a matrix from a Matrix Market file, see Read. A leading "~" in path is expanded to the
// home directory.
func ReadFile[T constraints.Float](path string, opts ...spamm.Option) (*spamm.Matrix[T], error) {
	f, path, err := fsutil.OpenFile(path)
	if err != nil {
		return nil, errors.WithMessage(err, "mmio")
	}
	defer func() { _ = f.Close() }()
	m, err := Read[T](f, opts...)
	if err != nil {
		return nil, errors.WithMessagef(err, "reading %q", path)
	}
	return m, nil
}

// Write the 2-dimensional matrix m in the Matrix Market "coordinate real general" format.
// Entries are written in the storage order of the tree.
func Write[T constraints.Float](w io.Writer, m *spamm.Matrix[T]) error {
	if m.Dims() != 2 {
		return errors.Wrapf(spamm.ErrUnsupportedDimensions, "mmio: only 2-dimensional matrices can be written, got %d", m.Dims())
	}
	var entries [][2]int
	var values []T
	m.Visit(func(i []int, v T) {
		entries = append(entries, [2]int{i[0], i[1]})
		values = append(values, v)
	})

	bw := bufio.NewWriter(w)
	n := m.N()
	_, _ = fmt.Fprintf(bw, "%s matrix coordinate real general\n", banner)
	_, _ = fmt.Fprintf(bw, "%% written by spamm, matrix %s\n", m.ID())
	_, _ = fmt.Fprintf(bw, "%d %d %d\n", n[0], n[1], len(entries))
	bits := 64
	if _, ok := any(T(0)).(float32); ok {
		bits = 32
	}
	for idx, e := range entries {
		_, _ = fmt.Fprintf(bw, "%d %d %s\n", e[0]+1, e[1]+1, strconv.FormatFloat(float64(values[idx]), 'g', -1, bits))
	}
	return errors.Wrap(bw.Flush(), "mmio: writing")
}

// WriteFile writes the matrix to a Matrix Market file, see Write. Missing parent directories are created.
func WriteFile[T constraints.Float](path string, m *spamm.Matrix[T]) error {
	f, path, err := fsutil.CreateFile(path)
	if err != nil {
		return errors.WithMessage(err, "mmio")
	}
	if err := Write(f, m); err != nil {
		_ = f.Close()
		return err
	}
	return errors.Wrapf(f.Close(), "mmio: closing %q", path)
}

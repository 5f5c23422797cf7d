// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package spamm

import (
	"github.com/gomlx/spamm/pkg/spamm/index"
	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
)

func denseOffset(i, n []int, layout index.Layout) int {
	offset := 0
	if layout == index.ColumnMajor {
		for dim := len(i) - 1; dim >= 0; dim-- {
			offset = offset*n[dim] + i[dim]
		}
		return offset
	}
	for dim, v := range i {
		offset = offset*n[dim] + v
	}
	return offset
}

func checkDenseLayout(layout index.Layout) error {
	if layout != index.RowMajor && layout != index.ColumnMajor {
		return errors.Wrapf(ErrLayoutMismatch, "dense buffers must be %s or %s, got %s",
			index.RowMajor, index.ColumnMajor, layout)
	}
	return nil
}

func product(n []int) int {
	p := 1
	for _, v := range n {
		p *= v
	}
	return p
}

// FromDense creates a matrix from a dense buffer with extents n, stored in the given layout
// (index.RowMajor or index.ColumnMajor). Zero elements are not stored.
//
// The options configure the structure of the matrix, as in New.
func FromDense[T constraints.Float](n []int, data []T, layout index.Layout, opts ...Option) (*Matrix[T], error) {
	if err := checkDenseLayout(layout); err != nil {
		return nil, err
	}
	m, err := New[T](len(n), n, opts...)
	if err != nil {
		return nil, err
	}
	if len(data) != product(n) {
		return nil, errors.Wrapf(ErrDimensionMismatch, "dense buffer has %d elements, expected %v", len(data), n)
	}
	i := make([]int, len(n))
	for {
		if v := data[denseOffset(i, n, layout)]; v != 0 {
			m.Set(i, v)
		}
		dim := len(n) - 1
		for ; dim >= 0; dim-- {
			i[dim]++
			if i[dim] < n[dim] {
				break
			}
			i[dim] = 0
		}
		if dim < 0 {
			break
		}
	}
	return m, nil
}

// ToDense returns the matrix as a dense buffer of its (unpadded) extents, in the given layout
// (index.RowMajor or index.ColumnMajor).
func (m *Matrix[T]) ToDense(layout index.Layout) ([]T, error) {
	if err := checkDenseLayout(layout); err != nil {
		return nil, err
	}
	data := make([]T, product(m.n))
	m.Visit(func(i []int, v T) {
		data[denseOffset(i, m.n, layout)] = v
	})
	return data, nil
}

// Visit calls fn for every non-zero element of the matrix, in no particular order.
// The slice i is reused between calls.
func (m *Matrix[T]) Visit(fn func(i []int, value T)) {
	m.root.walk(func(n *node[T]) {
		if n.chunk == nil {
			return
		}
		n.chunk.Visit(func(i []int, v T) {
			for dim, idx := range i {
				if idx >= m.n[dim] {
					// Padding.
					return
				}
			}
			fn(i, v)
		})
	})
}

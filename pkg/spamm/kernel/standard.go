// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package kernel

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/spamm/pkg/spamm/index"
	"golang.org/x/exp/constraints"
)

// Standard is the register-tiled kernel for the RowMajor and ColumnMajor layouts.
//
// It accumulates 3×4 tiles of C in local variables, and it implements DilatedKernel: with the
// dilated copy of A each A element is loaded as 4 lanes, the way a vector unit would broadcast it.
type Standard[T constraints.Float] struct {
	blockOps[T]
}

// NewStandard returns the register-tiled kernel.
func NewStandard[T constraints.Float]() *Standard[T] { return &Standard[T]{} }

func (*Standard[T]) Name() string { return NameStandard }

func (*Standard[T]) SupportsLayout(layout index.Layout) bool {
	return layout == index.RowMajor || layout == index.ColumnMajor
}

func (*Standard[T]) SuggestedLayout() index.Layout { return index.RowMajor }

func (*Standard[T]) MultiplyAdd(shape Shape, alpha T, a, b, c []T) {
	switch shape.Layout {
	case index.RowMajor:
		tiledRowMajor(shape.N, alpha, a, b, c)
	case index.ColumnMajor:
		// A column-major block is the row-major view of its transpose: C^T += alpha * B^T * A^T.
		tiledRowMajor(shape.N, alpha, b, a, c)
	default:
		exceptions.Panicf("%s does not support layout %s", NameStandard, shape.Layout)
	}
}

func (*Standard[T]) UsesDilated(shape Shape) bool {
	return shape.Layout == index.RowMajor && shape.N%4 == 0
}

func (k *Standard[T]) MultiplyAddDilated(shape Shape, alpha T, aDilated, b, c []T) {
	n := shape.N
	if !k.UsesDilated(shape) {
		// The dilated A only helps broadcasting A elements along the rows of B.
		k.MultiplyAdd(shape, alpha, undilate(aDilated, n*n), b, c)
		return
	}
	if len(aDilated) < 4*n*n || len(b) < n*n || len(c) < n*n {
		return
	}
	for i := range n {
		cRow := c[i*n : (i+1)*n]
		for j := 0; j < n; j += 4 {
			var c0, c1, c2, c3 T
			aIdx := 4 * i * n
			bIdx := j
			for range n {
				a4 := aDilated[aIdx : aIdx+4]
				c0 += a4[0] * b[bIdx]
				c1 += a4[1] * b[bIdx+1]
				c2 += a4[2] * b[bIdx+2]
				c3 += a4[3] * b[bIdx+3]
				aIdx += 4
				bIdx += n
			}
			writeCol4(cRow, j, alpha, c0, c1, c2, c3)
		}
	}
}

// undilate recovers A from its dilated copy. It allocates: only the fallback path uses it.
func undilate[T constraints.Float](aDilated []T, size int) []T {
	a := make([]T, size)
	for i := range a {
		a[i] = aDilated[4*i]
	}
	return a
}

// tiledRowMajor computes out += alpha * lhs * rhs for n×n row-major blocks.
func tiledRowMajor[T constraints.Float](n int, alpha T, lhs, rhs, out []T) {
	// Bounds check hint for the compiler
	if len(lhs) < n*n || len(rhs) < n*n || len(out) < n*n {
		return
	}

	row := 0
	// Main Loop: Process 3 rows at a time
	for ; row+2 < n; row += 3 {
		lRow0Base := row * n
		lRow1Base := lRow0Base + n
		lRow2Base := lRow1Base + n

		col := 0
		// Main Tile: Process 4 columns at a time
		for ; col+3 < n; col += 4 {
			var c00, c01, c02, c03 T
			var c10, c11, c12, c13 T
			var c20, c21, c22, c23 T
			rIdx := col
			for k := range n {
				r0, r1, r2, r3 := rhs[rIdx], rhs[rIdx+1], rhs[rIdx+2], rhs[rIdx+3]

				l0 := lhs[lRow0Base+k]
				c00 += l0 * r0
				c01 += l0 * r1
				c02 += l0 * r2
				c03 += l0 * r3

				l1 := lhs[lRow1Base+k]
				c10 += l1 * r0
				c11 += l1 * r1
				c12 += l1 * r2
				c13 += l1 * r3

				l2 := lhs[lRow2Base+k]
				c20 += l2 * r0
				c21 += l2 * r1
				c22 += l2 * r2
				c23 += l2 * r3

				rIdx += n
			}
			writeCol4(out, row*n+col, alpha, c00, c01, c02, c03)
			writeCol4(out, (row+1)*n+col, alpha, c10, c11, c12, c13)
			writeCol4(out, (row+2)*n+col, alpha, c20, c21, c22, c23)
		}

		// Columns-fringe for the current 3 rows.
		for ; col < n; col++ {
			var c0, c1, c2 T
			rIdx := col
			for k := range n {
				rk := rhs[rIdx]
				c0 += lhs[lRow0Base+k] * rk
				c1 += lhs[lRow1Base+k] * rk
				c2 += lhs[lRow2Base+k] * rk
				rIdx += n
			}
			outIdx := row*n + col
			out[outIdx] += alpha * c0
			out[outIdx+n] += alpha * c1
			out[outIdx+2*n] += alpha * c2
		}
	}

	// Row-fringe: fewer than 3 rows left.
	for ; row < n; row++ {
		for col := range n {
			var acc T
			lIdx := row * n
			rIdx := col
			for range n {
				acc += lhs[lIdx] * rhs[rIdx]
				lIdx++
				rIdx += n
			}
			out[row*n+col] += alpha * acc
		}
	}
}

func writeCol4[T constraints.Float](out []T, offset int, alpha T, v0, v1, v2, v3 T) {
	out[offset+0] += alpha * v0
	out[offset+1] += alpha * v1
	out[offset+2] += alpha * v2
	out[offset+3] += alpha * v3
}

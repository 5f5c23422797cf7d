// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package kernel

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/spamm/pkg/spamm/index"
	"golang.org/x/exp/constraints"
)

// Kernel names.
const (
	NameNaive         = "kernel_naive"
	NameStandard      = "kernel_standard"
	NameZCurve        = "kernel_Z_curve"
	NameExternalSgemm = "kernel_external_sgemm"
)

// Naive is the triple loop kernel: it supports every layout and is the reference the other kernels
// are tested against.
type Naive[T constraints.Float] struct {
	blockOps[T]
}

// NewNaive returns the triple loop kernel.
func NewNaive[T constraints.Float]() *Naive[T] { return &Naive[T]{} }

func (*Naive[T]) Name() string { return NameNaive }
func (*Naive[T]) SupportsLayout(layout index.Layout) bool { return layout.IsALayout() }
func (*Naive[T]) SuggestedLayout() index.Layout { return index.ColumnMajor }

func (*Naive[T]) MultiplyAdd(shape Shape, alpha T, a, b, c []T) {
	n := shape.N
	switch shape.Layout {
	case index.RowMajor:
		for i := range n {
			for j := range n {
				var sum T
				for k := range n {
					sum += a[i*n+k] * b[k*n+j]
				}
				c[i*n+j] += alpha * sum
			}
		}
	case index.ColumnMajor:
		for j := range n {
			for i := range n {
				var sum T
				for k := range n {
					sum += a[i+k*n] * b[k+j*n]
				}
				c[i+j*n] += alpha * sum
			}
		}
	case index.ZCurve:
		bs := shape.BlockSize
		bits := index.Log2(n / bs)
		offset := func(i, j int) int {
			return index.Interleave2D(i/bs, j/bs, bits)*bs*bs + (i%bs)*bs + j%bs
		}
		for i := range n {
			for j := range n {
				var sum T
				for k := range n {
					sum += a[offset(i, k)] * b[offset(k, j)]
				}
				c[offset(i, j)] += alpha * sum
			}
		}
	default:
		exceptions.Panicf("%s: unknown layout %s", NameNaive, shape.Layout)
	}
}

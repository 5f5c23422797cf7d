// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package kernel implements the dense block multiply used at the leaves of the SpAMM trees.
//
// All kernels share one contract: C += alpha * A * B on square n×n blocks stored in the same
// index.Layout, with no allocation and no error path. They differ only in speed and in the summation
// order, so results may differ in the last bits.
//
// Kernels are registered by name and priority for each float type (see Register), and the one to use
// is chosen by name (Lookup) or by layout (ForLayout).
package kernel

import (
	"math"

	"github.com/gomlx/spamm/pkg/spamm/index"
	"golang.org/x/exp/constraints"
)

// Shape describes the square blocks passed to a kernel.
type Shape struct {
	// N is the extent of each dimension of the blocks: they hold N*N elements.
	N int

	// Layout of the elements of A, B and C.
	Layout index.Layout

	// BlockSize is the extent of the basic blocks of the ZCurve layout. Ignored for the other layouts.
	BlockSize int
}

// Kernel multiplies dense blocks.
type Kernel[T constraints.Float] interface {
	// Name under which the kernel is registered.
	Name() string

	// SupportsLayout returns whether MultiplyAdd accepts blocks in the given layout.
	SupportsLayout(layout index.Layout) bool

	// SuggestedLayout is the layout the kernel is fastest with.
	SuggestedLayout() index.Layout

	// MultiplyAdd computes c += alpha * a * b.
	MultiplyAdd(shape Shape, alpha T, a, b, c []T)

	// Scale computes block *= alpha.
	Scale(alpha T, block []T)

	// NormSquared returns the sum of the squares of the elements of block.
	NormSquared(block []T) T
}

// DilatedKernel is implemented by kernels that can consume a dilated copy of A, where every element
// is replicated 4 times in a row (aDilated[4*i+l] == a[i] for l in 0..3).
type DilatedKernel[T constraints.Float] interface {
	Kernel[T]

	// UsesDilated returns whether MultiplyAddDilated is faster than MultiplyAdd for blocks of the given shape.
	UsesDilated(shape Shape) bool

	// MultiplyAddDilated computes c += alpha * a * b, reading A from its dilated copy.
	MultiplyAddDilated(shape Shape, alpha T, aDilated, b, c []T)
}

// Sqrt returns the square root of a norm², computed in float64.
func Sqrt[T constraints.Float](norm2 T) T {
	if norm2 <= 0 {
		return 0
	}
	return T(math.Sqrt(float64(norm2)))
}

// blockOps implements the elementwise operations shared by all kernels.
type blockOps[T constraints.Float] struct{}

func (blockOps[T]) Scale(alpha T, block []T) {
	if alpha == 1 {
		return
	}
	if alpha == 0 {
		clear(block)
		return
	}
	for i := range block {
		block[i] *= alpha
	}
}

func (blockOps[T]) NormSquared(block []T) T {
	var s0, s1, s2, s3 T
	i := 0
	for ; i+3 < len(block); i += 4 {
		v0, v1, v2, v3 := block[i], block[i+1], block[i+2], block[i+3]
		s0 += v0 * v0
		s1 += v1 * v1
		s2 += v2 * v2
		s3 += v3 * v3
	}
	for ; i < len(block); i++ {
		s0 += block[i] * block[i]
	}
	return (s0 + s1) + (s2 + s3)
}

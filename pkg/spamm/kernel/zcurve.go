// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package kernel

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/spamm/pkg/spamm/index"
	"golang.org/x/exp/constraints"
)

// ZCurve is the hierarchical kernel for the index.ZCurve layout.
//
// Quadrants of a Z-curve block are contiguous, so it recurses on the 8 quadrant products down to the
// basic block, which is row-major and multiplied with the tiled loop.
type ZCurve[T constraints.Float] struct {
	blockOps[T]
}

// NewZCurve returns the hierarchical Z-curve kernel.
func NewZCurve[T constraints.Float]() *ZCurve[T] { return &ZCurve[T]{} }

func (*ZCurve[T]) Name() string { return NameZCurve }

func (*ZCurve[T]) SupportsLayout(layout index.Layout) bool { return layout == index.ZCurve }

func (*ZCurve[T]) SuggestedLayout() index.Layout { return index.ZCurve }

func (*ZCurve[T]) MultiplyAdd(shape Shape, alpha T, a, b, c []T) {
	if shape.Layout != index.ZCurve {
		exceptions.Panicf("%s does not support layout %s", NameZCurve, shape.Layout)
	}
	bs := shape.BlockSize
	if bs <= 0 || shape.N%bs != 0 || !index.IsPowerOf2(shape.N/bs) {
		exceptions.Panicf("%s: block of extent %d is not a power-of-2 multiple of the basic block %d",
			NameZCurve, shape.N, bs)
	}
	zCurveRecursive(shape.N, bs, alpha, a, b, c)
}

func zCurveRecursive[T constraints.Float](n, blockSize int, alpha T, a, b, c []T) {
	if n <= blockSize {
		tiledRowMajor(n, alpha, a, b, c)
		return
	}
	half := n / 2
	q := half * half
	quadrant := func(data []T, row, col int) []T {
		start := (row | col<<1) * q
		return data[start : start+q]
	}
	for i := range 2 {
		for j := range 2 {
			cQuad := quadrant(c, i, j)
			for k := range 2 {
				zCurveRecursive(half, blockSize, alpha, quadrant(a, i, k), quadrant(b, k, j), cQuad)
			}
		}
	}
}

// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package spamm

import (
	"fmt"
	"math"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/spamm/pkg/spamm/chunk"
	"github.com/gomlx/spamm/pkg/spamm/kernel"
	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
)

// MultiplyStats reports the work done by a multiplication.
type MultiplyStats struct {
	// Products is the number of basic block products computed.
	Products int64

	// DenseProducts is the number of basic block products of the dense multiplication: (NPadded/BlockSize)^3.
	DenseProducts int64

	// KernelCalls is the number of calls to the dense kernel.
	KernelCalls int64

	// Pruned is the number of pairs of sub-blocks skipped, at any tier, because their norm product
	// was not above the tolerance or one of them was an implicit zero.
	Pruned int64

	// Elapsed is the wall time of the multiplication.
	Elapsed time.Duration
}

// Fraction returns the fraction of the dense products that were computed.
func (s MultiplyStats) Fraction() float64 {
	if s.DenseProducts == 0 {
		return 0
	}
	return float64(s.Products) / float64(s.DenseProducts)
}

// String implements fmt.Stringer.
func (s MultiplyStats) String() string {
	return fmt.Sprintf("%s products out of %s possible (%.2f%%), %s kernel calls, %s pruned, in %s",
		humanize.Comma(s.Products), humanize.Comma(s.DenseProducts), 100*s.Fraction(),
		humanize.Comma(s.KernelCalls), humanize.Comma(s.Pruned), s.Elapsed)
}

// validateMultiply checks the preconditions of Multiply.
func validateMultiply[T constraints.Float](tolerance T, a, b, c *Matrix[T]) error {
	if a == nil || b == nil || c == nil {
		return errors.Wrap(ErrNilMatrix, "Multiply")
	}
	if c == a || c == b {
		return errors.Wrapf(ErrAliased, "Multiply output %s", c.id)
	}
	for _, m := range []*Matrix[T]{a, b, c} {
		if m.dims != 2 {
			return errors.Wrapf(ErrUnsupportedDimensions, "Multiply requires 2 dimensions, matrix %s has %d", m.id, m.dims)
		}
	}
	if a.n[1] != b.n[0] || c.n[0] != a.n[0] || c.n[1] != b.n[1] {
		return errors.Wrapf(ErrDimensionMismatch, "Multiply of A%v by B%v into C%v", a.n, b.n, c.n)
	}
	if !a.sameAs(&b.structure) || !a.sameAs(&c.structure) {
		return errors.Wrapf(ErrStructureMismatch, "A%s, B%s, C%s (operands of different extents need WithPaddedExtent)",
			a.structure.String(), b.structure.String(), c.structure.String())
	}
	if a.layout != b.layout || a.layout != c.layout {
		return errors.Wrapf(ErrLayoutMismatch, "A is %s, B is %s and C is %s", a.layout, b.layout, c.layout)
	}
	if math.IsNaN(float64(tolerance)) || tolerance < 0 {
		return errors.Wrapf(ErrInvalidTolerance, "%g", float64(tolerance))
	}
	return nil
}

// Multiply computes C = alpha*A*B + beta*C, skipping the products of sub-blocks whose norm product is not
// above tolerance. With tolerance 0 only exact zeros are skipped, and the product is exact up to rounding.
//
// A, B and C must be 2-dimensional, with compatible extents and the same structure and layout. For
// rectangular products, create the three of them WithPaddedExtent of the largest extent.
// The preconditions are checked before any work is done, and an error wrapping one of ErrNilMatrix,
// ErrAliased, ErrUnsupportedDimensions, ErrDimensionMismatch, ErrStructureMismatch, ErrLayoutMismatch
// or ErrInvalidTolerance is returned if they don't hold.
//
// A and B are only read. Each of the (i, j) sub-blocks of C is computed by a separate task.
func (e *Engine[T]) Multiply(tolerance T, alpha T, a, b *Matrix[T], beta T, c *Matrix[T]) (MultiplyStats, error) {
	if err := validateMultiply(tolerance, a, b, c); err != nil {
		return MultiplyStats{}, err
	}
	k, err := e.Kernel(c.layout)
	if err != nil {
		return MultiplyStats{}, err
	}

	start := time.Now()
	blocksPerDim := int64(c.nPadded / c.blockSize)
	stats := MultiplyStats{DenseProducts: blocksPerDim * blocksPerDim * blocksPerDim}
	e.scaleNode(c.root, beta)
	if alpha != 0 {
		m := &multiplication[T]{
			engine:    e,
			tolerance: tolerance,
			alpha:     alpha,
			s:         &c.structure,
			kernel:    k,
		}
		if m.keep(a.root, b.root) {
			m.recursive(a.root, b.root, c.root)
		} else {
			m.stats.Pruned.Add(1)
		}
		stats.Products = m.stats.Products.Load()
		stats.KernelCalls = m.stats.KernelCalls.Load()
		stats.Pruned = m.stats.Pruned.Load()
	}
	stats.Elapsed = time.Since(start)
	e.logger.V(1).Info("spamm: multiply",
		"a", a.id, "b", b.id, "c", c.id, "tolerance", tolerance, "alpha", alpha, "beta", beta,
		"kernel", k.Name(), "products", stats.Products, "dense_products", stats.DenseProducts,
		"pruned", stats.Pruned, "elapsed", stats.Elapsed)
	return stats, nil
}

type multiplication[T constraints.Float] struct {
	engine    *Engine[T]
	tolerance T
	alpha     T
	s         *structure
	kernel    kernel.Kernel[T]
	stats     chunk.Stats
}

// keep returns whether the product of the two nodes must be computed: both exist, and their norm
// product is above the tolerance (and not zero).
func (m *multiplication[T]) keep(a, b *node[T]) bool {
	if a == nil || b == nil {
		return false
	}
	product := a.norm * b.norm
	return product > m.tolerance && product > 0
}

// recursive accumulates alpha*a*b into c, where a and b passed the norm test.
func (m *multiplication[T]) recursive(a, b, c *node[T]) {
	if c.tier == m.s.chunkTier {
		if a.chunk == nil || b.chunk == nil {
			m.stats.Pruned.Add(1)
			return
		}
		cChunk := c.chunkOrNew(m.s)
		chunk.Multiply(m.tolerance, m.alpha, a.chunk, b.chunk, 1, cChunk, m.kernel, &m.stats)
		c.setNorm2(cChunk.Norm2())
		return
	}

	// C[i][j] += A[i][k] * B[k][j], with child index row | col<<1.
	var tasks [4]func()
	for i := range 2 {
		for j := range 2 {
			var pairs [2][2]*node[T]
			numPairs := 0
			for k := range 2 {
				aChild, bChild := a.childUnlocked(i|k<<1), b.childUnlocked(k|j<<1)
				if !m.keep(aChild, bChild) {
					m.stats.Pruned.Add(1)
					continue
				}
				pairs[numPairs] = [2]*node[T]{aChild, bChild}
				numPairs++
			}
			if numPairs == 0 {
				continue
			}
			cIdx := i | j<<1
			tasks[cIdx] = func() {
				cChild := c.childOrNew(cIdx, m.s)
				for _, pair := range pairs[:numPairs] {
					m.recursive(pair[0], pair[1], cChild)
				}
			}
		}
	}
	m.engine.pool.Fork(tasks[:]...)
	c.refreshNorm()
}

// Scale computes A = alpha*A. Scaling by 0 releases the storage of A.
func (e *Engine[T]) Scale(alpha T, a *Matrix[T]) error {
	if a == nil {
		return errors.Wrap(ErrNilMatrix, "Scale")
	}
	e.scaleNode(a.root, alpha)
	return nil
}

// scaleNode scales the subtree of n by alpha, and refreshes its norms.
func (e *Engine[T]) scaleNode(n *node[T], alpha T) {
	switch {
	case alpha == 1 || n.isEmpty():
		return
	case alpha == 0:
		n.release()
		return
	case n.chunk != nil:
		n.setNorm2(n.chunk.MultiplyScalar(alpha))
		return
	}
	tasks := make([]func(), len(n.children))
	for idx, child := range n.children {
		if child != nil {
			tasks[idx] = func() { e.scaleNode(child, alpha) }
		}
	}
	e.pool.Fork(tasks...)
	n.refreshNorm()
}

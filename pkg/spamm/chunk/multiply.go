// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package chunk

import (
	"sync/atomic"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/spamm/pkg/spamm/kernel"
	"golang.org/x/exp/constraints"
)

// Stats counts the work done by multiplications. It is safe for concurrent use.
type Stats struct {
	// Products is the number of basic block products computed.
	Products atomic.Int64

	// KernelCalls is the number of calls to the dense kernel. Without the linear tree one call
	// computes all the basic block products of a chunk.
	KernelCalls atomic.Int64

	// Pruned is the number of sub-block pairs skipped by the norm test, at any tier.
	Pruned atomic.Int64
}

// Multiply computes c = alpha*a*b + beta*c, skipping the sub-block products whose norm product is not
// above tolerance, and returns the new norm² of c.
//
// With the linear tree the norm test is applied at every tier of the pyramid, otherwise only to the
// whole chunks. stats may be nil.
//
// The three chunks must have 2 dimensions and the same structure (extent, layout, basic block size and
// linear tree setting), and the kernel must support the layout: it panics otherwise.
func Multiply[T constraints.Float](tolerance T, alpha T, a, b *Chunk[T], beta T, c *Chunk[T],
	k kernel.Kernel[T], stats *Stats) T {
	if c.dims != 2 {
		exceptions.Panicf("chunk.Multiply requires 2 dimensions, got %d", c.dims)
	}
	if err := c.sameStructure(a); err != nil {
		exceptions.Panicf("chunk.Multiply: %v", err)
	}
	if err := c.sameStructure(b); err != nil {
		exceptions.Panicf("chunk.Multiply: %v", err)
	}
	if !k.SupportsLayout(c.layout) {
		exceptions.Panicf("chunk.Multiply: kernel %q doesn't support layout %s", k.Name(), c.layout)
	}
	if stats == nil {
		stats = &Stats{}
	}
	if beta != 1 {
		c.MultiplyScalar(beta)
	}
	if alpha == 0 {
		return c.norm2[0]
	}

	m := multiplier[T]{
		tolerance: tolerance,
		alpha:     alpha,
		a:         a,
		b:         b,
		c:         c,
		kernel:    k,
		stats:     stats,
	}
	leafShape := kernel.Shape{N: c.n, Layout: c.layout, BlockSize: c.blockSize}
	if c.linear {
		leafShape.N = c.blockSize
	}
	if dk, ok := k.(kernel.DilatedKernel[T]); ok && dk.UsesDilated(leafShape) {
		m.dilatedKernel = dk
	}
	if c.linear {
		m.recursive(0, 0, 0, 0)
	} else {
		m.dense()
	}
	return c.norm2[0]
}

type multiplier[T constraints.Float] struct {
	tolerance     T
	alpha         T
	a, b, c       *Chunk[T]
	kernel        kernel.Kernel[T]
	dilatedKernel kernel.DilatedKernel[T]
	stats         *Stats
}

// keep returns whether the product of two sub-blocks with the given norms must be computed.
// Exact zeros are always skipped, even with tolerance 0.
func (m *multiplier[T]) keep(normA, normB T) bool {
	product := normA * normB
	return product > m.tolerance && product > 0
}

// dense multiplies the chunks as one block.
func (m *multiplier[T]) dense() {
	if !m.keep(m.a.norm[0], m.b.norm[0]) {
		m.stats.Pruned.Add(1)
		return
	}
	shape := kernel.Shape{N: m.c.n, Layout: m.c.layout, BlockSize: m.c.blockSize}
	m.blockProduct(shape, m.a.data, m.a.dilated, m.b.data, m.c.data)
	blocksPerDim := int64(m.c.n / m.c.blockSize)
	m.stats.Products.Add(blocksPerDim * blocksPerDim * blocksPerDim)
	m.c.refreshDilated()
	m.c.RecomputeNorms()
}

func (m *multiplier[T]) blockProduct(shape kernel.Shape, a, aDilated, b, c []T) {
	m.stats.KernelCalls.Add(1)
	if m.dilatedKernel != nil {
		m.dilatedKernel.MultiplyAddDilated(shape, m.alpha, aDilated, b, c)
		return
	}
	m.kernel.MultiplyAdd(shape, m.alpha, a, b, c)
}

// recursive multiplies the sub-blocks ia of A and ib of B of the given tier into the sub-block ic of C.
// It returns whether anything was accumulated into C.
func (m *multiplier[T]) recursive(tier, ia, ib, ic int) bool {
	offset := m.c.tierOffsets[tier]
	if !m.keep(m.a.norm[offset+ia], m.b.norm[offset+ib]) {
		m.stats.Pruned.Add(1)
		return false
	}

	if tier == m.c.numTiers-1 {
		// Basic block.
		bs := m.c.blockSize
		size := bs * bs
		cBlock := m.c.data[ic*size : (ic+1)*size]
		shape := kernel.Shape{N: bs, Layout: m.c.layout, BlockSize: bs}
		m.blockProduct(shape,
			m.a.data[ia*size:(ia+1)*size], m.a.dilated[Dilation*ia*size:Dilation*(ia+1)*size],
			m.b.data[ib*size:(ib+1)*size], cBlock)
		m.stats.Products.Add(1)
		m.c.refreshDilatedRange(ic*size, (ic+1)*size)
		norm2 := m.kernel.NormSquared(cBlock)
		m.c.norm2[offset+ic] = norm2
		m.c.norm[offset+ic] = kernel.Sqrt(norm2)
		return true
	}

	// C[i][j] += A[i][k] * B[k][j], with child index row | col<<1.
	childOffset := m.c.tierOffsets[tier+1]
	touched := false
	for i := range 2 {
		for j := range 2 {
			childC := ic*4 + (i | j<<1)
			for k := range 2 {
				if m.recursive(tier+1, ia*4+(i|k<<1), ib*4+(k|j<<1), childC) {
					touched = true
				}
			}
		}
	}
	if touched {
		var norm2 T
		for child := range 4 {
			norm2 += m.c.norm2[childOffset+ic*4+child]
		}
		m.c.norm2[offset+ic] = norm2
		m.c.norm[offset+ic] = kernel.Sqrt(norm2)
	}
	return touched
}

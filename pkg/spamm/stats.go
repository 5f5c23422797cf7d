// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package spamm

import (
	"fmt"
	"strings"
	"unsafe"

	"github.com/dustin/go-humanize"
)

// TreeStats describes the storage of a matrix.
type TreeStats struct {
	// NodesPerTier counts the allocated nodes on each tier, from the root (tier 0) to the chunk tier.
	NodesPerTier []int

	// Chunks is the number of allocated chunks, and DenseChunks the number a dense matrix would have.
	Chunks, DenseChunks int

	// NonZeros is the number of non-zero elements.
	NonZeros int64

	// Bytes is an estimate of the memory used by the nodes and chunks.
	Bytes uint64
}

// Fill returns the fraction of the chunks that are allocated.
func (s TreeStats) Fill() float64 {
	if s.DenseChunks == 0 {
		return 0
	}
	return float64(s.Chunks) / float64(s.DenseChunks)
}

// String implements fmt.Stringer.
func (s TreeStats) String() string {
	var sb strings.Builder
	_, _ = fmt.Fprintf(&sb, "%s chunks out of %s (%.1f%%), %s non-zeros, %s",
		humanize.Comma(int64(s.Chunks)), humanize.Comma(int64(s.DenseChunks)), 100*s.Fill(),
		humanize.Comma(s.NonZeros), humanize.Bytes(s.Bytes))
	_, _ = fmt.Fprintf(&sb, ", nodes per tier %v", s.NodesPerTier)
	return sb.String()
}

// Stats returns the storage statistics of the matrix.
func (m *Matrix[T]) Stats() TreeStats {
	s := TreeStats{
		NodesPerTier: make([]int, m.chunkTier+1),
		DenseChunks:  1 << (m.chunkTier * m.dims),
	}
	nodeSize := uint64(unsafe.Sizeof(node[T]{})) + uint64(2*m.dims)*uint64(unsafe.Sizeof(int(0)))
	m.root.walk(func(n *node[T]) {
		s.NodesPerTier[n.tier]++
		s.Bytes += nodeSize + uint64(len(n.children))*uint64(unsafe.Sizeof(n))
		if n.chunk == nil {
			return
		}
		s.Chunks++
		s.Bytes += uint64(n.chunk.SizeInBytes())
		n.chunk.Visit(func(_ []int, _ T) { s.NonZeros++ })
	})
	return s
}

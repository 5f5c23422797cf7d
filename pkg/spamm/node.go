// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package spamm

import (
	"sync"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/spamm/pkg/spamm/chunk"
	"github.com/gomlx/spamm/pkg/spamm/index"
	"github.com/gomlx/spamm/pkg/spamm/kernel"
	"golang.org/x/exp/constraints"
)

// node of the tree, covering the box [lower, upper).
//
// Above the chunk tier a node may have children (nil entries are implicit zeros), at the chunk tier
// it may have a chunk. Both start nil and are allocated on the first write below the node, after which
// the node never changes shape.
//
// Invariant: norm2 is the sum of the children's norm2, or the chunk's norm2.
type node[T constraints.Float] struct {
	tier         int
	lower, upper []int
	norm, norm2  T

	// mu guards the allocation of children, of its entries and of chunk.
	mu       sync.Mutex
	children []*node[T]
	chunk    *chunk.Chunk[T]
}

// isEmpty returns whether nothing was ever allocated below the node.
func (n *node[T]) isEmpty() bool {
	return n.children == nil && n.chunk == nil
}

// childOrNew returns the child idx, creating it if needed.
func (n *node[T]) childOrNew(idx int, s *structure) *node[T] {
	if n.tier >= s.chunkTier {
		exceptions.Panicf("node of tier %d at or below the chunk tier %d can't have children", n.tier, s.chunkTier)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.children == nil {
		n.children = make([]*node[T], 1<<s.dims)
	}
	if child := n.children[idx]; child != nil {
		return child
	}
	child := &node[T]{
		tier:  n.tier + 1,
		lower: make([]int, s.dims),
		upper: make([]int, s.dims),
	}
	index.ChildBox(idx, n.lower, n.upper, child.lower, child.upper)
	n.children[idx] = child
	return child
}

// child returns the child idx, or nil if it doesn't exist.
func (n *node[T]) child(idx int) *node[T] {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.children == nil {
		return nil
	}
	return n.children[idx]
}

// childUnlocked is like child, for trees that are not being modified.
func (n *node[T]) childUnlocked(idx int) *node[T] {
	if n == nil || n.children == nil {
		return nil
	}
	return n.children[idx]
}

// chunkOrNew returns the chunk of the node, creating it if needed.
func (n *node[T]) chunkOrNew(s *structure) *chunk.Chunk[T] {
	if n.tier != s.chunkTier {
		exceptions.Panicf("node of tier %d is not at the chunk tier %d", n.tier, s.chunkTier)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.chunk == nil {
		c, err := chunk.New[T](n.lower, n.upper, s.blockSize, s.linear, s.layout)
		if err != nil {
			exceptions.Panicf("failed to allocate chunk for node of tier %d: %+v", n.tier, err)
		}
		n.chunk = c
	}
	return n.chunk
}

// setChunk sets the chunk of an empty node at the chunk tier.
func (n *node[T]) setChunk(c *chunk.Chunk[T]) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.chunk = c
	n.setNorm2(c.Norm2())
}

func (n *node[T]) setNorm2(norm2 T) {
	if norm2 < 0 {
		norm2 = 0
	}
	n.norm2 = norm2
	n.norm = kernel.Sqrt(norm2)
}

// refreshNorm recomputes the norm of an internal node from its children, or of a chunk tier node from its chunk.
func (n *node[T]) refreshNorm() {
	if n.chunk != nil {
		n.setNorm2(n.chunk.Norm2())
		return
	}
	var norm2 T
	for _, child := range n.children {
		if child != nil {
			norm2 += child.norm2
		}
	}
	n.setNorm2(norm2)
}

// reset drops everything below the node, making it an implicit zero.
func (n *node[T]) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.children = nil
	n.chunk = nil
	n.norm, n.norm2 = 0, 0
}

// release drops the subtree in post-order.
func (n *node[T]) release() {
	for _, child := range n.children {
		if child != nil {
			child.release()
		}
	}
	n.reset()
}

// walk calls fn for n and every node below it, parents first.
func (n *node[T]) walk(fn func(n *node[T])) {
	fn(n)
	for _, child := range n.children {
		if child != nil {
			child.walk(fn)
		}
	}
}

// copyTree returns a deep copy of the subtree, scaled by alpha.
func (n *node[T]) copyTree(alpha T) *node[T] {
	cp := &node[T]{
		tier:  n.tier,
		lower: append([]int(nil), n.lower...),
		upper: append([]int(nil), n.upper...),
	}
	if n.chunk != nil {
		cp.chunk = n.chunk.CopyScaled(alpha)
	}
	if n.children != nil {
		cp.children = make([]*node[T], len(n.children))
		for idx, child := range n.children {
			if child != nil {
				cp.children[idx] = child.copyTree(alpha)
			}
		}
	}
	cp.refreshNorm()
	return cp
}

// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package spamm

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/spamm/pkg/spamm/index"
)

// Get returns the element i of the matrix.
//
// Elements in regions never written are zero, and reading them allocates nothing.
// It panics if i is not a valid index.
func (m *Matrix[T]) Get(i ...int) T {
	if err := m.checkIndex(i); err != nil {
		exceptions.Panicf("Matrix.Get: %+v", err)
	}
	n := m.root
	for n.tier < m.chunkTier {
		n = n.child(index.ChildIndex(i, n.lower, n.upper))
		if n == nil {
			return 0
		}
	}
	n.mu.Lock()
	c := n.chunk
	n.mu.Unlock()
	if c == nil {
		return 0
	}
	return c.Get(i)
}

// Set the element i of the matrix to value.
//
// It allocates the nodes and chunk on the path to the element as needed, and updates the norms of all
// of them. Setting an element of a region never written to zero allocates nothing.
//
// Set is not safe for concurrent use. It panics if i is not a valid index.
func (m *Matrix[T]) Set(i []int, value T) {
	if err := m.checkIndex(i); err != nil {
		exceptions.Panicf("Matrix.Set: %+v", err)
	}
	if value == 0 && m.Get(i...) == 0 {
		return
	}
	path := make([]*node[T], 0, m.chunkTier+1)
	n := m.root
	for n.tier < m.chunkTier {
		path = append(path, n)
		n = n.childOrNew(index.ChildIndex(i, n.lower, n.upper), &m.structure)
	}
	c := n.chunkOrNew(&m.structure)
	c.Set(i, value)
	n.setNorm2(c.Norm2())
	for p := len(path) - 1; p >= 0; p-- {
		path[p].refreshNorm()
	}
}

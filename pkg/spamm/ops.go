// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package spamm

import (
	"github.com/pkg/errors"
)

// Copy returns a deep copy of the matrix, with a new ID.
func (m *Matrix[T]) Copy() *Matrix[T] {
	cp := m.newLike()
	cp.root = m.root.copyTree(1)
	return cp
}

// Trace returns the sum of the diagonal elements of a 2-dimensional matrix.
func (m *Matrix[T]) Trace() (T, error) {
	if m.dims != 2 {
		return 0, errors.Wrapf(ErrUnsupportedDimensions, "Trace requires 2 dimensions, matrix %s has %d", m.id, m.dims)
	}
	var trace T
	m.root.walk(func(n *node[T]) {
		if n.chunk != nil && n.lower[0] == n.lower[1] {
			trace += n.chunk.Trace()
		}
	})
	return trace, nil
}

// AddIdentity computes A = A + alpha*I, for a 2-dimensional matrix with equal extents.
func (m *Matrix[T]) AddIdentity(alpha T) error {
	if m.dims != 2 {
		return errors.Wrapf(ErrUnsupportedDimensions, "AddIdentity requires 2 dimensions, matrix %s has %d", m.id, m.dims)
	}
	if m.n[0] != m.n[1] {
		return errors.Wrapf(ErrDimensionMismatch, "AddIdentity requires a square matrix, matrix %s has extents %v", m.id, m.n)
	}
	if alpha == 0 {
		return nil
	}
	m.addIdentity(m.root, alpha)
	return nil
}

// addIdentity recurses only over the diagonal nodes.
func (m *Matrix[T]) addIdentity(n *node[T], alpha T) {
	if n.lower[0] >= m.n[0] {
		// Only padding.
		return
	}
	if n.tier == m.chunkTier {
		c := n.chunkOrNew(&m.structure)
		c.AddIdentity(alpha, m.n[0])
		n.setNorm2(c.Norm2())
		return
	}
	for _, idx := range []int{0, 3} {
		m.addIdentity(n.childOrNew(idx, &m.structure), alpha)
	}
	n.refreshNorm()
}

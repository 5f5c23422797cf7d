// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package spamm

import (
	"github.com/gomlx/spamm/pkg/spamm/chunk"
	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
)

func validateSameShape[T constraints.Float](op string, a, b *Matrix[T]) error {
	if a == nil || b == nil {
		return errors.Wrap(ErrNilMatrix, op)
	}
	if a.dims != b.dims {
		return errors.Wrapf(ErrDimensionMismatch, "%s of matrices with %d and %d dimensions", op, a.dims, b.dims)
	}
	for dim := range a.n {
		if a.n[dim] != b.n[dim] {
			return errors.Wrapf(ErrDimensionMismatch, "%s of matrices of extents %v and %v", op, a.n, b.n)
		}
	}
	if !a.sameAs(&b.structure) {
		return errors.Wrapf(ErrStructureMismatch, "%s of %s and %s", op, a.structure.String(), b.structure.String())
	}
	if a.layout != b.layout {
		return errors.Wrapf(ErrLayoutMismatch, "%s of matrices with layouts %s and %s", op, a.layout, b.layout)
	}
	return nil
}

// Add computes A = alpha*A + beta*B. B is only read.
//
// Regions where B has elements and A has none are allocated in A. The norms of A are recomputed
// exactly, unless the Engine was created WithAddNormBound.
//
// A and B must have the same dimensions, structure and layout.
func (e *Engine[T]) Add(alpha T, a *Matrix[T], beta T, b *Matrix[T]) error {
	if err := validateSameShape("Add", a, b); err != nil {
		return err
	}
	switch {
	case a == b:
		e.scaleNode(a.root, alpha+beta)
	case beta == 0:
		e.scaleNode(a.root, alpha)
	default:
		e.addNode(alpha, a.root, beta, b.root, &a.structure)
	}
	e.logger.V(2).Info("spamm: add", "a", a.id, "b", b.id, "alpha", alpha, "beta", beta, "norm", a.root.norm)
	return nil
}

// addNode computes a = alpha*a + beta*b for the subtrees.
func (e *Engine[T]) addNode(alpha T, a *node[T], beta T, b *node[T], s *structure) {
	if b == nil || b.isEmpty() {
		e.scaleNode(a, alpha)
		return
	}
	if a.isEmpty() {
		if a.tier == s.chunkTier {
			a.setChunk(b.chunk.CopyScaled(beta))
			return
		}
		cp := b.copyTree(beta)
		a.children = cp.children
		a.setNorm2(cp.norm2)
		return
	}
	if a.tier == s.chunkTier {
		a.setNorm2(chunk.Add(alpha, a.chunk, beta, b.chunk))
		return
	}

	normA, normB := a.norm, b.norm
	tasks := make([]func(), len(a.children))
	for idx := range a.children {
		bChild := b.childUnlocked(idx)
		aChild := a.children[idx]
		switch {
		case bChild == nil && aChild == nil:
			continue
		case bChild == nil:
			tasks[idx] = func() { e.scaleNode(aChild, alpha) }
		default:
			aChild = a.childOrNew(idx, s)
			tasks[idx] = func() { e.addNode(alpha, aChild, beta, bChild, s) }
		}
	}
	e.pool.Fork(tasks...)
	if e.addNormBound {
		bound := abs(alpha)*normA + abs(beta)*normB
		a.norm, a.norm2 = bound, bound*bound
		return
	}
	a.refreshNorm()
}

func abs[T constraints.Float](v T) T {
	if v < 0 {
		return -v
	}
	return v
}

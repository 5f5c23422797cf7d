// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package spamm

import (
	"fmt"

	"github.com/gomlx/spamm/pkg/spamm/chunk"
	"github.com/gomlx/spamm/pkg/spamm/kernel"
)

// NormViolation describes a cached norm that doesn't match the elements below it.
type NormViolation struct {
	// Tier of the tree node. Violations inside a chunk are reported with the tier of the chunk node.
	Tier int

	// Lower and Upper bound the region of the node.
	Lower, Upper []int

	// Chunk is set for violations of the norm pyramid inside a chunk.
	Chunk *chunk.NormViolation

	// Cached and Computed norm².
	Cached, Computed float64
}

func (v NormViolation) String() string {
	if v.Chunk != nil {
		return fmt.Sprintf("chunk [%v, %v) pyramid tier %d entry %d: cached norm²=%g, computed %g",
			v.Lower, v.Upper, v.Chunk.Tier, v.Chunk.Index, v.Chunk.Cached, v.Chunk.Computed)
	}
	return fmt.Sprintf("node tier %d [%v, %v): cached norm²=%g, computed %g",
		v.Tier, v.Lower, v.Upper, v.Cached, v.Computed)
}

// Check verifies that every cached norm matches, up to the relative tolerance relTolerance, the
// elements below it, and returns the violations found. Each violation is also logged as a warning.
func (m *Matrix[T]) Check(relTolerance float64) []NormViolation {
	var violations []NormViolation
	m.checkNode(m.root, relTolerance, &violations)
	for _, v := range violations {
		m.logger.Info("spamm: norm violation", "id", m.id, "violation", v.String())
	}
	return violations
}

// checkNode returns the norm² computed from the elements below n.
func (m *Matrix[T]) checkNode(n *node[T], relTolerance float64, violations *[]NormViolation) float64 {
	report := func(cached, computed float64) {
		*violations = append(*violations, NormViolation{
			Tier:     n.tier,
			Lower:    append([]int(nil), n.lower...),
			Upper:    append([]int(nil), n.upper...),
			Cached:   cached,
			Computed: computed,
		})
	}

	var computed float64
	if n.chunk != nil {
		for _, cv := range n.chunk.CheckNorms(relTolerance) {
			*violations = append(*violations, NormViolation{
				Tier:     n.tier,
				Lower:    append([]int(nil), n.lower...),
				Upper:    append([]int(nil), n.upper...),
				Chunk:    &cv,
				Cached:   cv.Cached,
				Computed: cv.Computed,
			})
		}
		n.chunk.Visit(func(_ []int, v T) {
			computed += float64(v) * float64(v)
		})
	}
	for _, child := range n.children {
		if child != nil {
			computed += m.checkNode(child, relTolerance, violations)
		}
	}
	cached := float64(n.norm2)
	if !withinRelTolerance(cached, computed, relTolerance) {
		report(cached, computed)
	} else if !withinRelTolerance(float64(n.norm), float64(kernel.Sqrt(n.norm2)), relTolerance) {
		report(float64(n.norm)*float64(n.norm), cached)
	}
	return computed
}

func withinRelTolerance(got, want, relTolerance float64) bool {
	diff := got - want
	if diff < 0 {
		diff = -diff
	}
	return diff <= relTolerance*max(want, -want, 1)
}

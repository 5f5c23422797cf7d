// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package spamm

import (
	"github.com/gomlx/spamm/pkg/spamm/chunk"
	"github.com/gomlx/spamm/pkg/spamm/index"
	"github.com/gomlx/spamm/pkg/spamm/kernel"
	"github.com/pkg/errors"
)

// Errors returned by the entry points of the package. They are wrapped with the details of the
// failure, use errors.Is to test for them.
var (
	// ErrUnsupportedDimensions is returned for matrices with a number of dimensions other than 1, 2 or 3,
	// or for operations that only support 2 dimensions.
	ErrUnsupportedDimensions = errors.New("spamm: unsupported number of dimensions")

	// ErrInvalidSize is returned for non-positive matrix extents or basic block sizes.
	ErrInvalidSize = errors.New("spamm: invalid size")

	// ErrDimensionMismatch is returned when the operands of an operation have incompatible dimensions.
	ErrDimensionMismatch = errors.New("spamm: dimension mismatch")

	// ErrStructureMismatch is returned when the operands of an operation don't share the same padding,
	// depth, chunk tier, basic block size or linear tree setting.
	ErrStructureMismatch = errors.New("spamm: tree structure mismatch")

	// ErrInvalidTier is returned when the chunk tier is negative or deeper than the tree.
	ErrInvalidTier = errors.New("spamm: invalid chunk tier")

	// ErrLayoutMismatch is returned when the operands have different layouts, or the kernel doesn't
	// support their layout.
	ErrLayoutMismatch = errors.New("spamm: layout mismatch")

	// ErrInvalidTolerance is returned for negative or NaN tolerances.
	ErrInvalidTolerance = errors.New("spamm: invalid tolerance")

	// ErrNilMatrix is returned when an operand is nil.
	ErrNilMatrix = errors.New("spamm: nil matrix")

	// ErrAliased is returned when the output of a multiplication is also one of its inputs.
	ErrAliased = errors.New("spamm: output matrix aliases an input")

	// ErrIndexOutOfRange is returned for element indices outside the matrix.
	ErrIndexOutOfRange = errors.New("spamm: index out of range")

	// ErrNotSquare is returned when a region is not hyper-cubic.
	ErrNotSquare = chunk.ErrNotSquare

	// ErrUnknownLayout is returned for layout names that are not known.
	ErrUnknownLayout = index.ErrUnknownLayout

	// ErrUnknownKernel is returned for kernel names that are not registered.
	ErrUnknownKernel = kernel.ErrUnknownKernel
)

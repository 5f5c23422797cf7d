// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package index holds the element and node addressing conventions shared by the chunks, the
// dense kernels and the quad-tree: the storage Layout of dense data and the Morton (Z-curve)
// interleaving used to number tree nodes.
package index

import (
	"strings"

	"github.com/pkg/errors"
)

// Layout is the ordering of the elements of a dense block in memory.
type Layout int

//go:generate go tool enumer -type=Layout -transform=snake -values -text -output=gen_layout_enumer.go layout.go

const (
	// RowMajor stores the last index contiguously: element (i, j) of an n×n block is at i*n+j.
	RowMajor Layout = iota

	// ColumnMajor stores the first index contiguously: element (i, j) of an n×n block is at i+j*n.
	// This is the BLAS convention.
	ColumnMajor

	// ZCurve stores basic blocks in Morton order, each basic block in row-major.
	// Quadrants of any size (down to the basic block) are contiguous in memory.
	ZCurve
)

// ErrUnknownLayout is returned by ParseLayout for names that are not a Layout.
var ErrUnknownLayout = errors.New("spamm: unknown layout")

// ParseLayout converts a layout name to a Layout.
//
// It accepts the enum names ("row_major", "column_major", "z_curve", case-insensitive), "Z_curve",
// and "dense_column_major" (an alias for ColumnMajor).
func ParseLayout(name string) (Layout, error) {
	name = strings.TrimSpace(name)
	if strings.EqualFold(name, "dense_column_major") {
		return ColumnMajor, nil
	}
	layout, err := LayoutString(name)
	if err != nil {
		return 0, errors.Wrapf(ErrUnknownLayout, "%q, valid values are %q", name, LayoutStrings())
	}
	return layout, nil
}

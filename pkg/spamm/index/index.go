// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package index

import "github.com/gomlx/exceptions"

// MaxDims is the maximum number of dimensions of a matrix (1 for vectors, 2 for matrices, 3 for cubes).
const MaxDims = 3

// RowMajorOffset returns the offset of the element i in a hyper-cubic array of extent n
// stored with the last index contiguous.
func RowMajorOffset(i []int, n int) int {
	offset := 0
	for _, v := range i {
		offset = offset*n + v
	}
	return offset
}

// ColumnMajorOffset returns the offset of the element i in a hyper-cubic array of extent n
// stored with the first index contiguous.
func ColumnMajorOffset(i []int, n int) int {
	offset := 0
	for dim := len(i) - 1; dim >= 0; dim-- {
		offset = offset*n + i[dim]
	}
	return offset
}

// Interleave returns the Morton (Z-curve) index of the cell with the given per-dimension coordinates,
// in a grid of 2^bits cells per dimension.
//
// The bit b of coordinate dim goes to the bit b*len(coords)+dim of the result. Read from the most
// significant end, the result is the concatenation of the child indices (see ChildIndex) chosen when
// descending from the root of a quad-tree (or oct-tree) to the cell.
func Interleave(coords []int, bits int) int {
	dims := len(coords)
	result := 0
	for b := range bits {
		for dim, c := range coords {
			result |= ((c >> b) & 1) << (b*dims + dim)
		}
	}
	return result
}

// Deinterleave is the inverse of Interleave: it writes into coords (of length dims) the coordinates
// of the cell with the given Morton index.
func Deinterleave(morton int, bits int, coords []int) {
	dims := len(coords)
	for dim := range coords {
		coords[dim] = 0
	}
	for b := range bits {
		for dim := range coords {
			coords[dim] |= ((morton >> (b*dims + dim)) & 1) << b
		}
	}
}

// Interleave2D is Interleave for two dimensions, without the slice.
func Interleave2D(i, j, bits int) int {
	result := 0
	for b := range bits {
		result |= ((i>>b)&1)<<(2*b) | ((j>>b)&1)<<(2*b+1)
	}
	return result
}

// ChildIndex returns which of the 2^dims children of the box [lower, upper) contains the element i:
// the bit dim is set if i[dim] falls on the upper half of the box.
func ChildIndex(i, lower, upper []int) int {
	child := 0
	for dim := range i {
		if i[dim] >= lower[dim]+(upper[dim]-lower[dim])/2 {
			child |= 1 << dim
		}
	}
	return child
}

// ChildBox writes into childLower and childUpper the box of the given child of [lower, upper).
func ChildBox(child int, lower, upper, childLower, childUpper []int) {
	for dim := range lower {
		half := (upper[dim] - lower[dim]) / 2
		if child&(1<<dim) != 0 {
			childLower[dim] = lower[dim] + half
			childUpper[dim] = upper[dim]
		} else {
			childLower[dim] = lower[dim]
			childUpper[dim] = lower[dim] + half
		}
	}
}

// Offset returns the offset of the element i (relative to the corner of the array) in a hyper-cubic
// array of extent n.
//
// If blocked is true (or layout is ZCurve) the array is made of basic blocks of extent blockSize
// stored contiguously in Morton order, and the layout applies inside each basic block
// (ZCurve blocks are row-major inside). n/blockSize must be a power of two in that case.
func Offset(i []int, n, blockSize int, layout Layout, blocked bool) int {
	if !blocked && layout != ZCurve {
		return layoutOffset(i, n, layout)
	}
	var blockCoords, inBlock [MaxDims]int
	for dim, v := range i {
		blockCoords[dim] = v / blockSize
		inBlock[dim] = v % blockSize
	}
	dims := len(i)
	blockLen := 1
	for range dims {
		blockLen *= blockSize
	}
	bits := Log2(n / blockSize)
	return Interleave(blockCoords[:dims], bits)*blockLen + layoutOffset(inBlock[:dims], blockSize, layout)
}

func layoutOffset(i []int, n int, layout Layout) int {
	switch layout {
	case RowMajor, ZCurve:
		return RowMajorOffset(i, n)
	case ColumnMajor:
		return ColumnMajorOffset(i, n)
	default:
		exceptions.Panicf("unknown layout %s", layout)
		return 0
	}
}

// IsPowerOf2 returns whether n is a positive power of 2.
func IsPowerOf2(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// Log2 returns the floor of the base-2 logarithm of n > 0.
func Log2(n int) int {
	bits := 0
	for n > 1 {
		n >>= 1
		bits++
	}
	return bits
}

// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package spamm implements SpAMM (Sparse Approximate Matrix Multiply) over quad-tree matrices.
//
// A Matrix is stored as a tree: each node covers a hyper-cubic region of the (padded) matrix and
// caches the Frobenius norm of everything below it. Down to the chunk tier the tree is made of
// pointer-linked nodes, where missing children are implicit zeros; at the chunk tier each node owns
// a chunk.Chunk with the dense data.
//
// Multiply computes C = alpha*A*B + beta*C recursing over the three trees in lock-step, and skips
// every pair of sub-blocks whose norm product is not above the tolerance. With tolerance 0 the
// product is exact, and for matrices with decaying elements the number of block products grows
// much slower than the cube of the size.
//
// Example:
//
//	a := must.M1(spamm.New[float32](2, []int{n, n}))
//	...
//	stats, err := spamm.Multiply(1e-6, 1, a, b, 0, c)
package spamm

import (
	"fmt"

	"github.com/gomlx/spamm/pkg/spamm/index"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
	"k8s.io/klog/v2"
)

// structure holds the shape of a tree, shared by all its nodes.
type structure struct {
	dims      int
	nPadded   int
	depth     int
	chunkTier int
	linear    bool
	layout    index.Layout
	blockSize int
}

// chunkExtent is the extent of the chunks in each dimension.
func (s *structure) chunkExtent() int {
	return s.nPadded >> s.chunkTier
}

func (s *structure) sameAs(other *structure) bool {
	return s.dims == other.dims && s.nPadded == other.nPadded && s.depth == other.depth &&
		s.chunkTier == other.chunkTier && s.linear == other.linear && s.blockSize == other.blockSize
}

func (s *structure) String() string {
	return fmt.Sprintf("{dims=%d, nPadded=%d, depth=%d, chunkTier=%d, blockSize=%d, linear=%v, layout=%s}",
		s.dims, s.nPadded, s.depth, s.chunkTier, s.blockSize, s.linear, s.layout)
}

// Matrix is a SpAMM matrix of 1, 2 or 3 dimensions.
//
// Reading methods are safe for concurrent use, as long as no mutating method runs at the same time.
type Matrix[T constraints.Float] struct {
	structure
	id     uuid.UUID
	n      []int
	root   *node[T]
	logger klog.Logger
}

// New creates a zero matrix with the given number of dimensions and extents.
//
// The matrix is padded to the smallest blockSize*2^depth that covers every extent, the same for all dimensions.
// WithPaddedExtent raises the padding, so that matrices of different extents can be multiplied.
func New[T constraints.Float](dims int, n []int, opts ...Option) (*Matrix[T], error) {
	if dims < 1 || dims > index.MaxDims {
		return nil, errors.Wrapf(ErrUnsupportedDimensions, "got %d dimensions, only 1 to %d are supported", dims, index.MaxDims)
	}
	if len(n) != dims {
		return nil, errors.Wrapf(ErrDimensionMismatch, "%d extents given for %d dimensions", len(n), dims)
	}
	cfg := defaultMatrixConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.blockSize <= 0 {
		return nil, errors.Wrapf(ErrInvalidSize, "basic block size %d", cfg.blockSize)
	}
	if !cfg.layout.IsALayout() {
		return nil, errors.Wrapf(ErrUnknownLayout, "layout %d", int(cfg.layout))
	}
	maxN := 0
	for dim, extent := range n {
		if extent <= 0 {
			return nil, errors.Wrapf(ErrInvalidSize, "extent %d of dimension %d", extent, dim)
		}
		maxN = max(maxN, extent)
	}
	if cfg.minPadded < 0 {
		return nil, errors.Wrapf(ErrInvalidSize, "padded extent %d", cfg.minPadded)
	}
	maxN = max(maxN, cfg.minPadded)

	depth := 0
	nPadded := cfg.blockSize
	for nPadded < maxN {
		nPadded *= 2
		depth++
	}
	chunkTier := cfg.chunkTier
	if chunkTier < 0 {
		chunkTier = max(0, depth-DefaultLinearTiers)
	} else if chunkTier > depth {
		return nil, errors.Wrapf(ErrInvalidTier, "chunk tier %d is deeper than the tree depth %d", chunkTier, depth)
	}

	m := &Matrix[T]{
		structure: structure{
			dims:      dims,
			nPadded:   nPadded,
			depth:     depth,
			chunkTier: chunkTier,
			linear:    cfg.linearTree,
			layout:    cfg.layout,
			blockSize: cfg.blockSize,
		},
		id:     uuid.New(),
		n:      append([]int(nil), n...),
		logger: cfg.logger,
	}
	m.root = m.newRoot()
	m.logger.V(2).Info("spamm: new matrix", "id", m.id, "n", n, "structure", m.structure.String())
	return m, nil
}

func (m *Matrix[T]) newRoot() *node[T] {
	lower := make([]int, m.dims)
	upper := make([]int, m.dims)
	for dim := range upper {
		upper[dim] = m.nPadded
	}
	return &node[T]{tier: 0, lower: lower, upper: upper}
}

// newLike creates an empty matrix with the same structure as m.
func (m *Matrix[T]) newLike() *Matrix[T] {
	other := &Matrix[T]{
		structure: m.structure,
		id:        uuid.New(),
		n:         append([]int(nil), m.n...),
		logger:    m.logger,
	}
	other.root = other.newRoot()
	return other
}

// ID returns the unique identifier of the matrix, used in logs and reports.
func (m *Matrix[T]) ID() uuid.UUID { return m.id }

// Dims returns the number of dimensions.
func (m *Matrix[T]) Dims() int { return m.dims }

// N returns the (unpadded) extent of each dimension.
func (m *Matrix[T]) N() []int { return append([]int(nil), m.n...) }

// NPadded returns the padded extent, the same for every dimension.
func (m *Matrix[T]) NPadded() int { return m.nPadded }

// Depth returns the height of the tree: NPadded = BlockSize * 2^Depth.
func (m *Matrix[T]) Depth() int { return m.depth }

// ChunkTier returns the tier at which the tree nodes hold chunks.
func (m *Matrix[T]) ChunkTier() int { return m.chunkTier }

// UseLinearTree returns whether the chunks use the linear tree.
func (m *Matrix[T]) UseLinearTree() bool { return m.linear }

// Layout returns the layout of the dense data in the chunks.
func (m *Matrix[T]) Layout() index.Layout { return m.layout }

// BlockSize returns the extent of the basic blocks.
func (m *Matrix[T]) BlockSize() int { return m.blockSize }

// Logger returns the logger of the matrix.
func (m *Matrix[T]) Logger() klog.Logger { return m.logger }

// Norm returns the Frobenius norm of the matrix.
func (m *Matrix[T]) Norm() T { return m.root.norm }

// Norm2 returns the square of the Frobenius norm of the matrix.
func (m *Matrix[T]) Norm2() T { return m.root.norm2 }

// String returns a short description of the matrix.
func (m *Matrix[T]) String() string {
	return fmt.Sprintf("spamm.Matrix[%T]{id=%s, n=%v, structure=%s, norm=%g}",
		T(0), m.id, m.n, m.structure.String(), float64(m.root.norm))
}

// Delete releases the storage of the matrix, bottom-up. The matrix is left as a zero matrix.
func (m *Matrix[T]) Delete() {
	m.root.release()
	m.root = m.newRoot()
}

// checkIndex returns an error if i is not a valid element index of m.
func (m *Matrix[T]) checkIndex(i []int) error {
	if len(i) != m.dims {
		return errors.Wrapf(ErrIndexOutOfRange, "index %v for a matrix with %d dimensions", i, m.dims)
	}
	for dim, v := range i {
		if v < 0 || v >= m.n[dim] {
			return errors.Wrapf(ErrIndexOutOfRange, "index %v for a matrix of extents %v", i, m.n)
		}
	}
	return nil
}

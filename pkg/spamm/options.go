// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package spamm

import (
	"github.com/gomlx/spamm/pkg/spamm/index"
	"github.com/gomlx/spamm/pkg/spamm/kernel"
	"golang.org/x/exp/constraints"
	"k8s.io/klog/v2"
)

// Defaults of the matrix structure.
const (
	// DefaultBlockSize is the extent of the basic blocks multiplied by the dense kernels.
	DefaultBlockSize = 4

	// DefaultLinearTiers is the number of tiers handled inside a chunk by default: the chunk tier is
	// set to depth-DefaultLinearTiers (or 0 for shallow trees).
	DefaultLinearTiers = 3

	// DefaultLayout of the dense data in the chunks.
	DefaultLayout = index.ColumnMajor

	// DefaultLinearTree is whether chunks use the linear tree by default.
	DefaultLinearTree = true
)

type matrixConfig struct {
	chunkTier  int // -1 means the default.
	linearTree bool
	layout     index.Layout
	blockSize  int
	minPadded  int
	logger     klog.Logger
}

func defaultMatrixConfig() matrixConfig {
	return matrixConfig{
		chunkTier:  -1,
		linearTree: DefaultLinearTree,
		layout:     DefaultLayout,
		blockSize:  DefaultBlockSize,
		logger:     klog.Background(),
	}
}

// Option configures the structure of a Matrix, see New.
type Option func(*matrixConfig)

// WithChunkTier sets the tier at which the tree switches to contiguous chunks.
// 0 makes the whole matrix a single chunk, and the depth of the tree makes each chunk a single basic block.
// A negative tier selects the default, max(0, depth-3).
func WithChunkTier(tier int) Option {
	return func(c *matrixConfig) { c.chunkTier = tier }
}

// WithLinearTree sets whether the chunks store the norms of their sub-blocks (the linear tree) so
// the multiplication prunes inside the chunks.
func WithLinearTree(linear bool) Option {
	return func(c *matrixConfig) { c.linearTree = linear }
}

// WithLayout sets the layout of the dense data in the chunks.
func WithLayout(layout index.Layout) Option {
	return func(c *matrixConfig) { c.layout = layout }
}

// WithBlockSize sets the extent of the basic blocks.
func WithBlockSize(blockSize int) Option {
	return func(c *matrixConfig) { c.blockSize = blockSize }
}

// WithPaddedExtent pads the matrix to at least n in every dimension.
//
// Operands of Multiply and Add must share the padded extent: the operands of a rectangular product,
// say 12×20 by 20×7, are created with WithPaddedExtent of the largest extent involved (20).
func WithPaddedExtent(n int) Option {
	return func(c *matrixConfig) { c.minPadded = n }
}

// WithLogger sets the logger used by the matrix, by default klog.Background().
func WithLogger(logger klog.Logger) Option {
	return func(c *matrixConfig) { c.logger = logger }
}

type engineConfig struct {
	kernelName   string
	kernel       any
	parallelism  int
	hasPool      bool
	logger       klog.Logger
	addNormBound bool
}

// EngineOption configures an Engine, see NewEngine.
type EngineOption func(*engineConfig)

// WithKernel selects the dense kernel by its registered name (see kernel.Names).
// By default the highest priority kernel supporting the layout of the operands is used.
func WithKernel(name string) EngineOption {
	return func(c *engineConfig) { c.kernelName = name }
}

// WithKernelImpl sets the dense kernel to use. It must be a kernel for the float type of the Engine.
func WithKernelImpl[T constraints.Float](k kernel.Kernel[T]) EngineOption {
	return func(c *engineConfig) { c.kernel = k }
}

// WithParallelism sets the soft limit of parallel tasks. 0 disables parallelism, and a negative
// value makes it unlimited. By default it is runtime.NumCPU().
func WithParallelism(parallelism int) EngineOption {
	return func(c *engineConfig) {
		c.parallelism = parallelism
		c.hasPool = true
	}
}

// WithEngineLogger sets the logger used by the engine, by default klog.Background().
func WithEngineLogger(logger klog.Logger) EngineOption {
	return func(c *engineConfig) { c.logger = logger }
}

// WithAddNormBound makes Add set the norms of internal nodes to the bound
// (|alpha|*|A| + |beta|*|B|)², computed from the norms before the addition, instead of summing the
// fresh norms of the children.
//
// The bound is never below the true norm, so pruning stays conservative, but the cached norms of
// internal nodes no longer match the elements exactly and Check reports them.
//
// It differs from the signed combination alpha²|A|² + beta²|B|² + 2*alpha*beta*|A|*|B| when
// alpha*beta < 0: that one can fall below the true norm, and would prune products that matter.
func WithAddNormBound(bound bool) EngineOption {
	return func(c *engineConfig) { c.addNormBound = bound }
}

// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package chunk implements the contiguous dense leaves of a SpAMM tree.
//
// A Chunk holds a hyper-cubic dense block of the matrix, a dilated (4× replicated) copy of it, and
// a pyramid of Frobenius norms: one entry per sub-block for every tier from 0 (the whole chunk) down
// to the finest tier. Entries of a tier are numbered in Morton order (see index.Interleave), so the
// children of entry p of tier t are the entries p*2^dims+c of tier t+1.
//
// With the linear tree enabled the finest tier is made of basic blocks, stored contiguously, and
// the multiplication recurses through the pyramid pruning sub-block products. Without it the
// pyramid has only tier 0 and the chunk is multiplied as one dense block.
package chunk

import (
	"fmt"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/spamm/pkg/spamm/index"
	"github.com/gomlx/spamm/pkg/spamm/kernel"
	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
)

// Dilation is the number of copies of each element in the dilated copy of the data.
const Dilation = 4

var (
	// ErrNotSquare is returned when the bounding box of a chunk doesn't have the same extent in every dimension.
	ErrNotSquare = errors.New("spamm: only square shaped regions are supported")

	// ErrBlockSize is returned when the extent of a chunk is not a power of 2 multiple of the basic block size.
	ErrBlockSize = errors.New("spamm: chunk extent must be the basic block size times a power of 2")

	// ErrDims is returned for an unsupported number of dimensions.
	ErrDims = errors.New("spamm: unsupported number of dimensions")
)

// Chunk is a dense hyper-cubic region of a matrix with its norm pyramid.
//
// A Chunk is not safe for concurrent mutation. Concurrent reads are safe.
type Chunk[T constraints.Float] struct {
	dims      int
	numTiers  int
	linear    bool
	layout    index.Layout
	blockSize int

	// n is the extent of the chunk in every dimension.
	n            int
	lower, upper []int

	data    []T
	dilated []T

	// norm and norm2 hold all tiers, tier t starts at tierOffsets[t].
	norm, norm2 []T
	tierOffsets []int
}

// New creates a zero chunk covering the box [lower, upper).
//
// The box must have the same extent in every dimension, and that extent must be blockSize times a
// power of 2. With linear set, the norm pyramid goes down to basic blocks of extent blockSize.
func New[T constraints.Float](lower, upper []int, blockSize int, linear bool, layout index.Layout) (*Chunk[T], error) {
	dims := len(lower)
	if dims < 1 || dims > index.MaxDims || len(upper) != dims {
		return nil, errors.Wrapf(ErrDims, "chunk box with lower=%v and upper=%v", lower, upper)
	}
	n := upper[0] - lower[0]
	for dim := range dims {
		if upper[dim]-lower[dim] != n {
			return nil, errors.Wrapf(ErrNotSquare, "chunk box with lower=%v and upper=%v", lower, upper)
		}
	}
	if blockSize <= 0 || n%blockSize != 0 || !index.IsPowerOf2(n/blockSize) {
		return nil, errors.Wrapf(ErrBlockSize, "extent %d, basic block size %d", n, blockSize)
	}
	if !layout.IsALayout() {
		return nil, errors.Wrapf(index.ErrUnknownLayout, "layout %d", int(layout))
	}

	c := &Chunk[T]{
		dims:      dims,
		numTiers:  1,
		linear:    linear,
		layout:    layout,
		blockSize: blockSize,
		n:         n,
		lower:     append([]int(nil), lower...),
		upper:     append([]int(nil), upper...),
	}
	if linear {
		c.numTiers = index.Log2(n/blockSize) + 1
	}
	size := ipow(n, dims)
	c.data = make([]T, size)
	c.dilated = make([]T, Dilation*size)
	c.tierOffsets = tierOffsets(dims, c.numTiers)
	c.norm = make([]T, c.tierOffsets[c.numTiers])
	c.norm2 = make([]T, c.tierOffsets[c.numTiers])
	return c, nil
}

// tierOffsets returns the offset of each tier in the norm pyramid: tier t has (2^dims)^t entries.
// The extra last element is the total number of entries.
func tierOffsets(dims, numTiers int) []int {
	offsets := make([]int, numTiers+1)
	entries := 1
	for t := range numTiers {
		offsets[t+1] = offsets[t] + entries
		entries <<= dims
	}
	return offsets
}

func ipow(base, exp int) int {
	result := 1
	for range exp {
		result *= base
	}
	return result
}

// Dims returns the number of dimensions.
func (c *Chunk[T]) Dims() int { return c.dims }

// NumTiers returns the number of tiers of the norm pyramid.
func (c *Chunk[T]) NumTiers() int { return c.numTiers }

// Linear returns whether the chunk uses the linear tree.
func (c *Chunk[T]) Linear() bool { return c.linear }

// Layout returns the layout of the dense data.
func (c *Chunk[T]) Layout() index.Layout { return c.layout }

// BlockSize returns the extent of the basic blocks.
func (c *Chunk[T]) BlockSize() int { return c.blockSize }

// N returns the extent of the chunk in each dimension.
func (c *Chunk[T]) N() int { return c.n }

// Lower returns the lower corner (inclusive) of the region covered. Don't modify it.
func (c *Chunk[T]) Lower() []int { return c.lower }

// Upper returns the upper corner (exclusive) of the region covered. Don't modify it.
func (c *Chunk[T]) Upper() []int { return c.upper }

// Norm returns the Frobenius norm of the whole chunk.
func (c *Chunk[T]) Norm() T { return c.norm[0] }

// Norm2 returns the square of the Frobenius norm of the whole chunk.
func (c *Chunk[T]) Norm2() T { return c.norm2[0] }

// TierNorm2 returns the norm² of the entry idx (in Morton order) of the given tier.
func (c *Chunk[T]) TierNorm2(tier, idx int) T { return c.norm2[c.tierOffsets[tier]+idx] }

// TierNorm returns the norm of the entry idx (in Morton order) of the given tier.
func (c *Chunk[T]) TierNorm(tier, idx int) T { return c.norm[c.tierOffsets[tier]+idx] }

// Data returns the dense data, in the chunk's layout. Don't modify it: it would break the norms.
func (c *Chunk[T]) Data() []T { return c.data }

// Dilated returns the dilated copy of the data: element k of Data is replicated at positions 4k to 4k+3.
func (c *Chunk[T]) Dilated() []T { return c.dilated }

// Contains returns whether the element i is inside the chunk.
func (c *Chunk[T]) Contains(i []int) bool {
	if len(i) != c.dims {
		return false
	}
	for dim, v := range i {
		if v < c.lower[dim] || v >= c.upper[dim] {
			return false
		}
	}
	return true
}

// offset returns the offset of the element i (in matrix coordinates) in data.
func (c *Chunk[T]) offset(i []int) int {
	var local [index.MaxDims]int
	for dim, v := range i {
		local[dim] = v - c.lower[dim]
	}
	return index.Offset(local[:c.dims], c.n, c.blockSize, c.layout, c.linear)
}

// Get returns the element i, given in matrix coordinates.
//
// It panics if i is outside the chunk.
func (c *Chunk[T]) Get(i []int) T {
	if !c.Contains(i) {
		exceptions.Panicf("chunk.Get(%v) outside of chunk [%v, %v)", i, c.lower, c.upper)
	}
	return c.data[c.offset(i)]
}

// Set the element i, given in matrix coordinates, to value.
//
// The norms of every tier along the path to the element are updated incrementally. It panics if i
// is outside the chunk.
func (c *Chunk[T]) Set(i []int, value T) {
	if !c.Contains(i) {
		exceptions.Panicf("chunk.Set(%v) outside of chunk [%v, %v)", i, c.lower, c.upper)
	}
	offset := c.offset(i)
	old := c.data[offset]
	c.data[offset] = value
	for l := range Dilation {
		c.dilated[Dilation*offset+l] = value
	}

	delta := value*value - old*old
	var local [index.MaxDims]int
	for dim, v := range i {
		local[dim] = v - c.lower[dim]
	}
	var coords [index.MaxDims]int
	for tier := range c.numTiers {
		extent := c.n >> tier
		for dim := range c.dims {
			coords[dim] = local[dim] / extent
		}
		idx := c.tierOffsets[tier] + index.Interleave(coords[:c.dims], tier)
		norm2 := c.norm2[idx] + delta
		if norm2 < 0 {
			// Rounding of the incremental update.
			norm2 = 0
		}
		c.norm2[idx] = norm2
		c.norm[idx] = kernel.Sqrt(norm2)
	}
}

// RecomputeNorms recomputes the whole norm pyramid from the data.
func (c *Chunk[T]) RecomputeNorms() T {
	finest := c.numTiers - 1
	cellSize := ipow(c.n>>finest, c.dims)
	start := c.tierOffsets[finest]
	for idx := range c.tierOffsets[finest+1] - start {
		c.norm2[start+idx] = normSquared(c.data[idx*cellSize : (idx+1)*cellSize])
		c.norm[start+idx] = kernel.Sqrt(c.norm2[start+idx])
	}
	numChildren := 1 << c.dims
	for tier := finest - 1; tier >= 0; tier-- {
		start, childStart := c.tierOffsets[tier], c.tierOffsets[tier+1]
		for idx := range childStart - start {
			var sum T
			for child := range numChildren {
				sum += c.norm2[childStart+idx*numChildren+child]
			}
			c.norm2[start+idx] = sum
			c.norm[start+idx] = kernel.Sqrt(sum)
		}
	}
	return c.norm2[0]
}

func normSquared[T constraints.Float](values []T) T {
	var sum T
	for _, v := range values {
		sum += v * v
	}
	return sum
}

// refreshDilated rewrites the dilated copy from the data.
func (c *Chunk[T]) refreshDilated() {
	c.refreshDilatedRange(0, len(c.data))
}

// refreshDilatedRange rewrites the dilated copy of data[start:end].
func (c *Chunk[T]) refreshDilatedRange(start, end int) {
	for offset := start; offset < end; offset++ {
		v := c.data[offset]
		d := c.dilated[Dilation*offset : Dilation*offset+Dilation]
		d[0], d[1], d[2], d[3] = v, v, v, v
	}
}

// sameStructure returns an error if other can't be combined elementwise with c.
func (c *Chunk[T]) sameStructure(other *Chunk[T]) error {
	if c.dims != other.dims || c.n != other.n || c.linear != other.linear ||
		c.layout != other.layout || c.blockSize != other.blockSize {
		return errors.Errorf("chunks of different structure: %s vs %s", c.describe(), other.describe())
	}
	return nil
}

func (c *Chunk[T]) describe() string {
	return fmt.Sprintf("chunk{dims=%d, n=%d, blockSize=%d, linear=%v, layout=%s}",
		c.dims, c.n, c.blockSize, c.linear, c.layout)
}

// String returns a short description of the chunk.
func (c *Chunk[T]) String() string {
	return fmt.Sprintf("%s [%v, %v) norm=%g", c.describe(), c.lower, c.upper, float64(c.norm[0]))
}

// Add computes a = alpha*a + beta*b elementwise and recomputes all of a's norms. It returns the new norm² of a.
//
// Both chunks must have the same structure (extent, layout, basic block size and linear tree
// setting), it panics otherwise.
func Add[T constraints.Float](alpha T, a *Chunk[T], beta T, b *Chunk[T]) T {
	if err := a.sameStructure(b); err != nil {
		exceptions.Panicf("chunk.Add: %v", err)
	}
	for offset, v := range b.data {
		a.data[offset] = alpha*a.data[offset] + beta*v
	}
	a.refreshDilated()
	return a.RecomputeNorms()
}

// MultiplyScalar scales the chunk by alpha and returns the new norm².
func (c *Chunk[T]) MultiplyScalar(alpha T) T {
	if alpha == 1 {
		return c.norm2[0]
	}
	if alpha == 0 {
		clear(c.data)
		clear(c.dilated)
		clear(c.norm)
		clear(c.norm2)
		return 0
	}
	for offset := range c.data {
		c.data[offset] *= alpha
	}
	for offset := range c.dilated {
		c.dilated[offset] *= alpha
	}
	absAlpha := alpha
	if absAlpha < 0 {
		absAlpha = -absAlpha
	}
	alpha2 := alpha * alpha
	for idx := range c.norm2 {
		c.norm2[idx] *= alpha2
		c.norm[idx] *= absAlpha
	}
	return c.norm2[0]
}

// Copy returns a deep copy of the chunk.
func (c *Chunk[T]) Copy() *Chunk[T] {
	return c.CopyScaled(1)
}

// CopyScaled returns a deep copy of the chunk scaled by alpha.
func (c *Chunk[T]) CopyScaled(alpha T) *Chunk[T] {
	cp := &Chunk[T]{
		dims:        c.dims,
		numTiers:    c.numTiers,
		linear:      c.linear,
		layout:      c.layout,
		blockSize:   c.blockSize,
		n:           c.n,
		lower:       append([]int(nil), c.lower...),
		upper:       append([]int(nil), c.upper...),
		data:        append([]T(nil), c.data...),
		dilated:     append([]T(nil), c.dilated...),
		norm:        append([]T(nil), c.norm...),
		norm2:       append([]T(nil), c.norm2...),
		tierOffsets: append([]int(nil), c.tierOffsets...),
	}
	cp.MultiplyScalar(alpha)
	return cp
}

// Trace returns the sum of the elements of the chunk on the diagonal of the matrix (i == j).
// Only for 2 dimensions.
func (c *Chunk[T]) Trace() T {
	if c.dims != 2 {
		exceptions.Panicf("chunk.Trace() requires 2 dimensions, got %d", c.dims)
	}
	var trace T
	var i [2]int
	for d := max(c.lower[0], c.lower[1]); d < min(c.upper[0], c.upper[1]); d++ {
		i[0], i[1] = d, d
		trace += c.data[c.offset(i[:])]
	}
	return trace
}

// AddIdentity adds alpha to the elements of the chunk on the diagonal of the matrix (i == j), for
// i < limit. Elements beyond limit are padding and left untouched. Only for 2 dimensions.
func (c *Chunk[T]) AddIdentity(alpha T, limit int) {
	if c.dims != 2 {
		exceptions.Panicf("chunk.AddIdentity() requires 2 dimensions, got %d", c.dims)
	}
	var i [2]int
	for d := max(c.lower[0], c.lower[1]); d < min(c.upper[0], c.upper[1], limit); d++ {
		i[0], i[1] = d, d
		c.Set(i[:], c.data[c.offset(i[:])]+alpha)
	}
}

// Visit calls fn for every non-zero element of the chunk, with its coordinates in the matrix.
// The slice i is reused between calls.
func (c *Chunk[T]) Visit(fn func(i []int, value T)) {
	i := append([]int(nil), c.lower...)
	for {
		if v := c.data[c.offset(i)]; v != 0 {
			fn(i, v)
		}
		// Increment i, last dimension first.
		dim := c.dims - 1
		for ; dim >= 0; dim-- {
			i[dim]++
			if i[dim] < c.upper[dim] {
				break
			}
			i[dim] = c.lower[dim]
		}
		if dim < 0 {
			return
		}
	}
}

// NormViolation describes an entry of the norm pyramid that doesn't match the data.
type NormViolation struct {
	Tier, Index      int
	Cached, Computed float64
}

// CheckNorms recomputes the norm pyramid from the data and returns the entries whose cached norm²
// differs from the computed one by more than relTolerance (relative to the computed value, or absolute
// if the computed value is smaller than 1), or whose cached norm is not the square root of the cached norm².
func (c *Chunk[T]) CheckNorms(relTolerance float64) []NormViolation {
	fresh := c.Copy()
	fresh.RecomputeNorms()
	var violations []NormViolation
	for tier := range c.numTiers {
		for idx := range c.tierOffsets[tier+1] - c.tierOffsets[tier] {
			pos := c.tierOffsets[tier] + idx
			cached, computed := float64(c.norm2[pos]), float64(fresh.norm2[pos])
			if !withinTolerance(cached, computed, relTolerance) ||
				!withinTolerance(float64(c.norm[pos]), float64(kernel.Sqrt(c.norm2[pos])), relTolerance) {
				violations = append(violations, NormViolation{Tier: tier, Index: idx, Cached: cached, Computed: computed})
			}
		}
	}
	return violations
}

func withinTolerance(got, want, relTolerance float64) bool {
	diff := got - want
	if diff < 0 {
		diff = -diff
	}
	return diff <= relTolerance*max(want, -want, 1)
}

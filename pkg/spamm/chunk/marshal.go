// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package chunk

import (
	"encoding/binary"
	"math"

	"github.com/gomlx/spamm/pkg/spamm/index"
	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
)

// The flat buffer format of a chunk: a fixed size header followed by the data, the dilated copy,
// the norm and the norm² pyramids. Each section starts on an Alignment boundary. All values are
// little-endian.
const (
	// Alignment of each section of the flat buffer, in bytes.
	Alignment = 64

	headerSize    = 128
	formatVersion = 1
)

var magic = [4]byte{'S', 'P', 'M', 'C'}

// ErrCorrupt is returned when unmarshaling a buffer that is not a valid chunk.
var ErrCorrupt = errors.New("spamm: corrupt chunk buffer")

func align(offset int) int {
	return (offset + Alignment - 1) / Alignment * Alignment
}

func elementSize[T constraints.Float]() int {
	var zero T
	if _, ok := any(zero).(float32); ok {
		return 4
	}
	return 8
}

// sectionOffsets returns the byte offsets of the data, dilated, norm and norm2 sections, and the total size.
func (c *Chunk[T]) sectionOffsets() (data, dilated, norm, norm2, total int) {
	return sectionsLayout(elementSize[T](), len(c.data), len(c.norm))
}

// sectionsLayout returns the section offsets for numElements data elements and numNorms pyramid entries.
func sectionsLayout(elemSize, numElements, numNorms int) (data, dilated, norm, norm2, total int) {
	data = headerSize
	dilated = align(data + elemSize*numElements)
	norm = align(dilated + elemSize*Dilation*numElements)
	norm2 = align(norm + elemSize*numNorms)
	total = align(norm2 + elemSize*numNorms)
	return
}

// SizeInBytes returns the size of the chunk in its flat buffer form, including the header and padding.
func (c *Chunk[T]) SizeInBytes() int {
	_, _, _, _, total := c.sectionOffsets()
	return total
}

// MarshalBinary serializes the chunk to a self-describing flat buffer.
func (c *Chunk[T]) MarshalBinary() ([]byte, error) {
	dataOff, dilatedOff, normOff, norm2Off, total := c.sectionOffsets()
	buf := make([]byte, total)
	copy(buf[0:4], magic[:])
	le := binary.LittleEndian
	le.PutUint32(buf[4:], formatVersion)
	le.PutUint32(buf[8:], uint32(elementSize[T]()))
	le.PutUint32(buf[12:], uint32(c.dims))
	le.PutUint32(buf[16:], uint32(c.numTiers))
	var flags uint32
	if c.linear {
		flags |= 1
	}
	le.PutUint32(buf[20:], flags)
	le.PutUint32(buf[24:], uint32(c.layout))
	le.PutUint32(buf[28:], uint32(c.blockSize))
	le.PutUint32(buf[32:], uint32(c.n))
	for dim := range index.MaxDims {
		var lower uint64
		if dim < c.dims {
			lower = uint64(c.lower[dim])
		}
		le.PutUint64(buf[40+8*dim:], lower)
	}
	pos := 40 + 8*index.MaxDims
	for _, offset := range []int{dataOff, dilatedOff, normOff, norm2Off, total} {
		le.PutUint64(buf[pos:], uint64(offset))
		pos += 8
	}
	putFloats(buf[dataOff:], c.data)
	putFloats(buf[dilatedOff:], c.dilated)
	putFloats(buf[normOff:], c.norm)
	putFloats(buf[norm2Off:], c.norm2)
	return buf, nil
}

// Unmarshal creates a chunk from a flat buffer created with MarshalBinary.
func Unmarshal[T constraints.Float](buf []byte) (*Chunk[T], error) {
	if len(buf) < headerSize || [4]byte(buf[0:4]) != magic {
		return nil, errors.Wrap(ErrCorrupt, "bad header")
	}
	le := binary.LittleEndian
	if v := le.Uint32(buf[4:]); v != formatVersion {
		return nil, errors.Wrapf(ErrCorrupt, "unknown format version %d", v)
	}
	if es := int(le.Uint32(buf[8:])); es != elementSize[T]() {
		return nil, errors.Wrapf(ErrCorrupt, "element size is %d bytes, expected %d", es, elementSize[T]())
	}
	dims := int(le.Uint32(buf[12:]))
	if dims < 1 || dims > index.MaxDims {
		return nil, errors.Wrapf(ErrCorrupt, "invalid number of dimensions %d", dims)
	}
	numTiers := int(le.Uint32(buf[16:]))
	linear := le.Uint32(buf[20:])&1 != 0
	layout := index.Layout(le.Uint32(buf[24:]))
	blockSize := int(le.Uint32(buf[28:]))
	n := int(le.Uint32(buf[32:]))
	if blockSize <= 0 || n <= 0 || n%blockSize != 0 || !index.IsPowerOf2(n/blockSize) {
		return nil, errors.Wrapf(ErrCorrupt, "extent %d with basic block size %d", n, blockSize)
	}
	wantTiers := 1
	if linear {
		wantTiers = index.Log2(n/blockSize) + 1
	}
	if numTiers != wantTiers {
		return nil, errors.Wrapf(ErrCorrupt, "%d tiers, expected %d", numTiers, wantTiers)
	}

	// Sizes are checked against the buffer before anything is allocated.
	elemSize := elementSize[T]()
	maxElements := len(buf) / elemSize
	numElements := 1
	for range dims {
		if numElements > maxElements/n {
			return nil, errors.Wrapf(ErrCorrupt, "a chunk of extent %d in %d dimensions doesn't fit in %d bytes", n, dims, len(buf))
		}
		numElements *= n
	}
	numNorms := tierOffsets(dims, numTiers)[numTiers]
	dataOff, dilatedOff, normOff, norm2Off, total := sectionsLayout(elemSize, numElements, numNorms)
	pos := 40 + 8*index.MaxDims
	for _, want := range []int{dataOff, dilatedOff, normOff, norm2Off, total} {
		if got := le.Uint64(buf[pos:]); got != uint64(want) {
			return nil, errors.Wrapf(ErrCorrupt, "section offset %d, expected %d", got, want)
		}
		pos += 8
	}
	if len(buf) < total {
		return nil, errors.Wrapf(ErrCorrupt, "buffer has %d bytes, expected %d", len(buf), total)
	}

	lower := make([]int, dims)
	upper := make([]int, dims)
	for dim := range dims {
		v := le.Uint64(buf[40+8*dim:])
		if v > math.MaxInt32 {
			return nil, errors.Wrapf(ErrCorrupt, "lower corner %d of dimension %d", v, dim)
		}
		lower[dim] = int(v)
		upper[dim] = lower[dim] + n
	}
	c, err := New[T](lower, upper, blockSize, linear, layout)
	if err != nil {
		return nil, errors.WithMessagef(ErrCorrupt, "invalid chunk description: %v", err)
	}
	getFloats(buf[dataOff:], c.data)
	getFloats(buf[dilatedOff:], c.dilated)
	getFloats(buf[normOff:], c.norm)
	getFloats(buf[norm2Off:], c.norm2)
	return c, nil
}

// UnmarshalBinary replaces the contents of c with the chunk serialized in buf.
func (c *Chunk[T]) UnmarshalBinary(buf []byte) error {
	decoded, err := Unmarshal[T](buf)
	if err != nil {
		return err
	}
	*c = *decoded
	return nil
}

func putFloats[T constraints.Float](buf []byte, values []T) {
	le := binary.LittleEndian
	switch vs := any(values).(type) {
	case []float32:
		for i, v := range vs {
			le.PutUint32(buf[4*i:], math.Float32bits(v))
		}
	case []float64:
		for i, v := range vs {
			le.PutUint64(buf[8*i:], math.Float64bits(v))
		}
	}
}

func getFloats[T constraints.Float](buf []byte, values []T) {
	le := binary.LittleEndian
	switch vs := any(values).(type) {
	case []float32:
		for i := range vs {
			vs[i] = math.Float32frombits(le.Uint32(buf[4*i:]))
		}
	case []float64:
		for i := range vs {
			vs[i] = math.Float64frombits(le.Uint64(buf[8*i:]))
		}
	}
}

package chunk

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/gomlx/spamm/pkg/spamm/index"
	"github.com/gomlx/spamm/pkg/spamm/kernel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChunk(t *testing.T, lower []int, n, blockSize int, linear bool, layout index.Layout) *Chunk[float64] {
	upper := make([]int, len(lower))
	for dim := range lower {
		upper[dim] = lower[dim] + n
	}
	c, err := New[float64](lower, upper, blockSize, linear, layout)
	require.NoError(t, err)
	return c
}

// fillRandom sets every element of the 2D chunk and returns the row-major dense copy.
func fillRandom(c *Chunk[float64], rng *rand.Rand) []float64 {
	n := c.N()
	dense := make([]float64, n*n)
	for i := range n {
		for j := range n {
			v := rng.Float64()*2 - 1
			dense[i*n+j] = v
			c.Set([]int{c.Lower()[0] + i, c.Lower()[1] + j}, v)
		}
	}
	return dense
}

func TestNew(t *testing.T) {
	_, err := New[float32]([]int{0, 0}, []int{8, 16}, 4, true, index.RowMajor)
	assert.ErrorIs(t, err, ErrNotSquare)
	_, err = New[float32]([]int{0, 0}, []int{12, 12}, 4, true, index.RowMajor)
	assert.ErrorIs(t, err, ErrBlockSize)
	_, err = New[float32]([]int{0, 0, 0, 0}, []int{4, 4, 4, 4}, 4, true, index.RowMajor)
	assert.ErrorIs(t, err, ErrDims)

	c, err := New[float32]([]int{16, 32}, []int{32, 48}, 4, true, index.ColumnMajor)
	require.NoError(t, err)
	assert.Equal(t, 3, c.NumTiers())
	assert.Equal(t, []int{0, 1, 5, 21}, c.tierOffsets)
	assert.Len(t, c.Data(), 256)
	assert.Len(t, c.Dilated(), 4*256)
	assert.Equal(t, float32(0), c.Norm())

	c, err = New[float32]([]int{0, 0}, []int{16, 16}, 4, false, index.ColumnMajor)
	require.NoError(t, err)
	assert.Equal(t, 1, c.NumTiers())
}

func TestSetGet(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for _, dims := range []int{1, 2, 3} {
		for _, layout := range index.LayoutValues() {
			for _, linear := range []bool{false, true} {
				t.Run(fmt.Sprintf("dims=%d/%s/linear=%v", dims, layout, linear), func(t *testing.T) {
					lower := make([]int, dims)
					for dim := range lower {
						lower[dim] = 8 * (dim + 1)
					}
					c := newChunk(t, lower, 8, 2, linear, layout)
					values := make(map[[3]int]float64)
					var sum2 float64
					i := make([]int, dims)
					for range 40 {
						var key [3]int
						for dim := range dims {
							i[dim] = lower[dim] + rng.IntN(8)
							key[dim] = i[dim]
						}
						v := rng.Float64()
						c.Set(i, v)
						values[key] = v
					}
					for key, v := range values {
						sum2 += v * v
						assert.Equal(t, v, c.Get(key[:dims]))
					}
					assert.InDelta(t, sum2, c.Norm2(), 1e-12)
					assert.InDelta(t, math.Sqrt(sum2), c.Norm(), 1e-12)
					assert.Empty(t, c.CheckNorms(1e-12))

					// Dilated copy.
					for offset, v := range c.Data() {
						for l := range Dilation {
							require.Equal(t, v, c.Dilated()[Dilation*offset+l])
						}
					}

					// Visit sees every non-zero.
					count := 0
					c.Visit(func(i []int, v float64) {
						var key [3]int
						copy(key[:], i)
						assert.Equal(t, values[key], v)
						count++
					})
					assert.Equal(t, len(values), count)
				})
			}
		}
	}
}

func TestSetOverwriteNormsNonNegative(t *testing.T) {
	c := newChunk(t, []int{0, 0}, 8, 2, true, index.RowMajor)
	c.Set([]int{3, 5}, 1e3)
	c.Set([]int{3, 5}, 1e-3)
	c.Set([]int{3, 5}, 0)
	assert.InDelta(t, 0.0, c.Norm2(), 1e-9)
	for tier := range c.NumTiers() {
		for idx := range 1 << (2 * tier) {
			assert.GreaterOrEqual(t, c.TierNorm2(tier, idx), 0.0)
		}
	}
	assert.Panics(t, func() { c.Set([]int{8, 0}, 1) })
	assert.Panics(t, func() { c.Get([]int{-1, 0}) })
}

func denseMultiply(n int, alpha float64, a, b []float64, beta float64, c []float64) []float64 {
	out := make([]float64, n*n)
	for i := range n {
		for j := range n {
			var sum float64
			for k := range n {
				sum += a[i*n+k] * b[k*n+j]
			}
			out[i*n+j] = alpha*sum + beta*c[i*n+j]
		}
	}
	return out
}

func TestMultiplyExact(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	const n, bs = 16, 4
	for _, name := range kernel.Names[float64]() {
		k, err := kernel.Lookup[float64](name)
		require.NoError(t, err)
		for _, layout := range index.LayoutValues() {
			if !k.SupportsLayout(layout) {
				continue
			}
			for _, linear := range []bool{false, true} {
				t.Run(fmt.Sprintf("%s/%s/linear=%v", name, layout, linear), func(t *testing.T) {
					a := newChunk(t, []int{0, 16}, n, bs, linear, layout)
					b := newChunk(t, []int{16, 32}, n, bs, linear, layout)
					c := newChunk(t, []int{0, 32}, n, bs, linear, layout)
					aDense, bDense, cDense := fillRandom(a, rng), fillRandom(b, rng), fillRandom(c, rng)
					want := denseMultiply(n, 1.2, aDense, bDense, 0.5, cDense)

					var stats Stats
					norm2 := Multiply(0, 1.2, a, b, 0.5, c, k, &stats)
					assert.Equal(t, int64((n/bs)*(n/bs)*(n/bs)), stats.Products.Load())
					var wantNorm2 float64
					for i := range n {
						for j := range n {
							require.InDelta(t, want[i*n+j], c.Get([]int{i, 32 + j}), 1e-10)
							wantNorm2 += want[i*n+j] * want[i*n+j]
						}
					}
					assert.InDelta(t, wantNorm2, norm2, 1e-9)
					assert.Empty(t, c.CheckNorms(1e-10))
					for offset, v := range c.Data() {
						require.Equal(t, v, c.Dilated()[Dilation*offset+Dilation-1])
					}
				})
			}
		}
	}
}

func TestMultiplyPrunesBlockDiagonal(t *testing.T) {
	const n, bs = 16, 4
	k := kernel.NewStandard[float64]()
	a := newChunk(t, []int{0, 0}, n, bs, true, index.RowMajor)
	b := newChunk(t, []int{0, 0}, n, bs, true, index.RowMajor)
	c := newChunk(t, []int{0, 0}, n, bs, true, index.RowMajor)
	for i := range n {
		a.Set([]int{i, i}, 2)
		b.Set([]int{i, i}, float64(i))
	}
	var stats Stats
	Multiply(0, 1, a, b, 0, c, k, &stats)
	// Only the 4 diagonal basic blocks multiply.
	assert.Equal(t, int64(n/bs), stats.Products.Load())
	assert.Positive(t, stats.Pruned.Load())
	for i := range n {
		for j := range n {
			want := 0.0
			if i == j {
				want = 2 * float64(i)
			}
			require.Equal(t, want, c.Get([]int{i, j}))
		}
	}

	// A tolerance above every norm product prunes everything at tier 0.
	stats = Stats{}
	before := append([]float64(nil), c.Data()...)
	Multiply(1e9, 1, a, b, 1, c, k, &stats)
	assert.Equal(t, int64(0), stats.Products.Load())
	assert.Equal(t, int64(1), stats.Pruned.Load())
	assert.Equal(t, before, c.Data())
}

func TestAddAndScale(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 6))
	a := newChunk(t, []int{0, 0}, 8, 2, true, index.ZCurve)
	b := newChunk(t, []int{0, 0}, 8, 2, true, index.ZCurve)
	aDense, bDense := fillRandom(a, rng), fillRandom(b, rng)
	norm2 := Add(0.5, a, -2, b)
	var want2 float64
	for i := range 8 {
		for j := range 8 {
			want := 0.5*aDense[i*8+j] - 2*bDense[i*8+j]
			want2 += want * want
			require.InDelta(t, want, a.Get([]int{i, j}), 1e-14)
		}
	}
	assert.InDelta(t, want2, norm2, 1e-12)
	assert.Empty(t, a.CheckNorms(1e-12))

	cp := a.CopyScaled(-3)
	assert.InDelta(t, 9*a.Norm2(), cp.Norm2(), 1e-9)
	assert.InDelta(t, -3*a.Get([]int{1, 2}), cp.Get([]int{1, 2}), 1e-14)
	assert.Empty(t, cp.CheckNorms(1e-12))
	cp.Set([]int{0, 0}, 100)
	assert.NotEqual(t, 100.0, a.Get([]int{0, 0}))

	assert.Equal(t, 0.0, cp.MultiplyScalar(0))
	assert.Empty(t, cp.CheckNorms(0))

	other := newChunk(t, []int{0, 0}, 8, 2, false, index.ZCurve)
	assert.Panics(t, func() { Add(1, a, 1, other) })
}

func TestTraceAndIdentity(t *testing.T) {
	// Chunk straddling the diagonal partially: rows [4, 12), columns [8, 16).
	c := newChunk(t, []int{4, 8}, 8, 4, false, index.ColumnMajor)
	c.AddIdentity(1.5, 10)
	// Diagonal elements in the chunk are 8..11, only 8 and 9 are below the limit.
	assert.Equal(t, 3.0, c.Trace())
	assert.Equal(t, 1.5, c.Get([]int{9, 9}))
	assert.Equal(t, 0.0, c.Get([]int{10, 10}))
	assert.InDelta(t, 2*1.5*1.5, c.Norm2(), 1e-14)
}

func TestMarshal(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 8))
	c, err := New[float32]([]int{32, 0}, []int{48, 16}, 4, true, index.RowMajor)
	require.NoError(t, err)
	for range 50 {
		c.Set([]int{32 + rng.IntN(16), rng.IntN(16)}, rng.Float32())
	}
	buf, err := c.MarshalBinary()
	require.NoError(t, err)
	assert.Len(t, buf, c.SizeInBytes())
	assert.Zero(t, len(buf)%Alignment)

	var decoded Chunk[float32]
	require.NoError(t, decoded.UnmarshalBinary(buf))
	assert.Equal(t, c.Data(), decoded.Data())
	assert.Equal(t, c.Norm2(), decoded.Norm2())
	assert.Equal(t, c.Lower(), decoded.Lower())
	assert.Equal(t, c.Upper(), decoded.Upper())
	assert.Equal(t, c.NumTiers(), decoded.NumTiers())
	assert.Empty(t, decoded.CheckNorms(1e-6))

	// Wrong element type.
	_, err = Unmarshal[float64](buf)
	assert.ErrorIs(t, err, ErrCorrupt)
	// Truncated.
	_, err = Unmarshal[float32](buf[:len(buf)-Alignment])
	assert.ErrorIs(t, err, ErrCorrupt)
	_, err = Unmarshal[float32]([]byte("not a chunk"))
	assert.ErrorIs(t, err, ErrCorrupt)

	// Corrupt headers are rejected before anything is allocated.
	flat, err := New[float32]([]int{0, 0}, []int{16, 16}, 4, false, index.ColumnMajor)
	require.NoError(t, err)
	flatBuf, err := flat.MarshalBinary()
	require.NoError(t, err)
	patched := func(src []byte, offset int, value uint32) []byte {
		dst := append([]byte(nil), src...)
		binary.LittleEndian.PutUint32(dst[offset:], value)
		return dst
	}
	for name, corrupt := range map[string][]byte{
		"huge extent, linear":     patched(buf, 32, 4<<22),
		"huge extent":             patched(flatBuf, 32, 4<<22),
		"huge extent, 3 dims":     patched(patched(flatBuf, 12, 3), 32, 1<<20),
		"zero block size":         patched(flatBuf, 28, 0),
		"extent not a power of 2": patched(flatBuf, 32, 12),
		"tiers":                   patched(buf, 16, 7),
		"dims":                    patched(flatBuf, 12, 5),
		"section offsets":         patched(flatBuf, 12, 1),
		"lower corner":            patched(patched(flatBuf, 40, 0), 44, 0xFFFFFFFF),
	} {
		_, err := Unmarshal[float32](corrupt)
		assert.ErrorIs(t, err, ErrCorrupt, name)
	}
}

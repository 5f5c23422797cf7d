package spamm

import (
	"fmt"
	"testing"

	"github.com/gomlx/spamm/pkg/spamm/index"
	"github.com/gomlx/spamm/pkg/spamm/spammtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fromRowMajor[T float32 | float64](t *testing.T, rows, cols int, data []T, opts ...Option) *Matrix[T] {
	m, err := FromDense([]int{rows, cols}, data, index.RowMajor, opts...)
	require.NoError(t, err)
	return m
}

func toRowMajor[T float32 | float64](t *testing.T, m *Matrix[T]) []T {
	data, err := m.ToDense(index.RowMajor)
	require.NoError(t, err)
	return data
}

func TestNew(t *testing.T) {
	m, err := New[float32](2, []int{20, 20})
	require.NoError(t, err)
	assert.Equal(t, 32, m.NPadded())
	assert.Equal(t, 3, m.Depth())
	assert.Equal(t, 0, m.ChunkTier())
	assert.True(t, m.UseLinearTree())
	assert.Equal(t, index.ColumnMajor, m.Layout())
	assert.Equal(t, float32(0), m.Norm())

	m, err = New[float32](2, []int{500, 100}, WithLayout(index.ZCurve))
	require.NoError(t, err)
	assert.Equal(t, 512, m.NPadded())
	assert.Equal(t, 7, m.Depth())
	assert.Equal(t, 4, m.ChunkTier())
	assert.Equal(t, []int{500, 100}, m.N())

	m, err = New[float32](3, []int{5, 6, 7}, WithBlockSize(2), WithChunkTier(1), WithLinearTree(false))
	require.NoError(t, err)
	assert.Equal(t, 8, m.NPadded())
	assert.Equal(t, 2, m.Depth())
	assert.Equal(t, 1, m.ChunkTier())
	assert.False(t, m.UseLinearTree())

	m, err = New[float32](2, []int{12, 7}, WithPaddedExtent(20))
	require.NoError(t, err)
	assert.Equal(t, 32, m.NPadded())
	assert.Equal(t, 3, m.Depth())
	assert.Equal(t, []int{12, 7}, m.N())
	m, err = New[float32](2, []int{12, 7}, WithPaddedExtent(3))
	require.NoError(t, err)
	assert.Equal(t, 16, m.NPadded())

	_, err = New[float32](0, nil)
	assert.ErrorIs(t, err, ErrUnsupportedDimensions)
	_, err = New[float32](4, []int{1, 1, 1, 1})
	assert.ErrorIs(t, err, ErrUnsupportedDimensions)
	_, err = New[float32](2, []int{3})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	_, err = New[float32](2, []int{3, 0})
	assert.ErrorIs(t, err, ErrInvalidSize)
	_, err = New[float32](2, []int{3, 3}, WithBlockSize(0))
	assert.ErrorIs(t, err, ErrInvalidSize)
	_, err = New[float32](2, []int{3, 3}, WithPaddedExtent(-1))
	assert.ErrorIs(t, err, ErrInvalidSize)
	_, err = New[float32](2, []int{20, 20}, WithChunkTier(4))
	assert.ErrorIs(t, err, ErrInvalidTier)
	_, err = New[float32](2, []int{20, 20}, WithLayout(index.Layout(17)))
	assert.ErrorIs(t, err, ErrUnknownLayout)
}

func TestSetGet(t *testing.T) {
	rng := spammtest.NewRand(1)
	for dims := 1; dims <= 3; dims++ {
		for _, layout := range index.LayoutValues() {
			for _, linear := range []bool{false, true} {
				t.Run(fmt.Sprintf("dims=%d/%s/linear=%v", dims, layout, linear), func(t *testing.T) {
					n := make([]int, dims)
					for dim := range n {
						n[dim] = 9 + dim
					}
					m, err := New[float64](dims, n, WithLayout(layout), WithLinearTree(linear), WithBlockSize(2), WithChunkTier(1))
					require.NoError(t, err)

					// Reading never allocates.
					zero := make([]int, dims)
					assert.Zero(t, m.Get(zero...))
					m.Set(zero, 0)
					assert.Zero(t, m.Stats().Chunks)

					want := make(map[[index.MaxDims]int]float64)
					var norm2 float64
					for range 40 {
						var key [index.MaxDims]int
						for dim := range dims {
							key[dim] = rng.IntN(n[dim])
						}
						v := rng.Float64()*2 - 1
						norm2 += v*v - want[key]*want[key]
						want[key] = v
						m.Set(key[:dims], v)
					}
					for key, v := range want {
						assert.Equal(t, v, m.Get(key[:dims]...))
					}
					assert.InDelta(t, norm2, m.Norm2(), 1e-9)
					assert.Empty(t, m.Check(1e-9))
				})
			}
		}
	}
}

func TestGetSetPanics(t *testing.T) {
	m, err := New[float32](2, []int{5, 7})
	require.NoError(t, err)
	assert.Panics(t, func() { m.Get(5, 0) })
	assert.Panics(t, func() { m.Get(0, -1) })
	assert.Panics(t, func() { m.Get(1) })
	assert.Panics(t, func() { m.Set([]int{0, 7}, 1) })
	assert.NotPanics(t, func() { m.Set([]int{4, 6}, 1) })
}

func TestDenseRoundTrip(t *testing.T) {
	rng := spammtest.NewRand(2)
	const rows, cols = 13, 7
	data := spammtest.Random[float32](rng, rows, cols)
	data[3] = 0
	for _, layout := range index.LayoutValues() {
		t.Run(layout.String(), func(t *testing.T) {
			m := fromRowMajor(t, rows, cols, data, WithLayout(layout), WithChunkTier(1))
			assert.Equal(t, data, toRowMajor(t, m))
			columnMajor, err := m.ToDense(index.ColumnMajor)
			require.NoError(t, err)
			assert.Equal(t, spammtest.Transpose(data, rows, cols), columnMajor)
			assert.InDelta(t, spammtest.Frobenius(data), float64(m.Norm()), 1e-4)

			m2, err := FromDense([]int{rows, cols}, columnMajor, index.ColumnMajor, WithLayout(layout), WithChunkTier(1))
			require.NoError(t, err)
			assert.Equal(t, data, toRowMajor(t, m2))
		})
	}

	_, err := FromDense([]int{rows, cols}, data, index.ZCurve)
	assert.ErrorIs(t, err, ErrLayoutMismatch)
	_, err = FromDense([]int{rows, cols}, data[1:], index.RowMajor)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	m := fromRowMajor(t, rows, cols, data)
	_, err = m.ToDense(index.ZCurve)
	assert.ErrorIs(t, err, ErrLayoutMismatch)
}

func TestDelete(t *testing.T) {
	m := fromRowMajor(t, 30, 30, spammtest.Random[float64](spammtest.NewRand(3), 30, 30))
	require.NotZero(t, m.Stats().Chunks)
	m.Delete()
	assert.Zero(t, m.Norm())
	assert.Zero(t, m.Stats().Chunks)
	assert.Zero(t, m.Get(3, 4))
	m.Set([]int{3, 4}, 2)
	assert.Equal(t, 2.0, m.Get(3, 4))
	assert.Equal(t, 2.0, m.Norm())
}

func TestCopyTraceIdentity(t *testing.T) {
	const n = 10
	data := spammtest.Random[float64](spammtest.NewRand(4), n, n)
	m := fromRowMajor(t, n, n, data, WithBlockSize(2))

	cp := m.Copy()
	assert.NotEqual(t, m.ID(), cp.ID())
	assert.Equal(t, data, toRowMajor(t, cp))
	cp.Set([]int{0, 0}, 100)
	assert.Equal(t, data[0], m.Get(0, 0))

	var want float64
	for i := range n {
		want += data[i*n+i]
	}
	trace, err := m.Trace()
	require.NoError(t, err)
	assert.InDelta(t, want, trace, 1e-12)

	require.NoError(t, m.AddIdentity(2))
	trace, err = m.Trace()
	require.NoError(t, err)
	assert.InDelta(t, want+2*n, trace, 1e-12)
	got := toRowMajor(t, m)
	for i := range n {
		for j := range n {
			if i == j {
				assert.InDelta(t, data[i*n+j]+2, got[i*n+j], 1e-12)
			} else {
				assert.Equal(t, data[i*n+j], got[i*n+j])
			}
		}
	}
	// Padding was left untouched.
	assert.Empty(t, m.Check(1e-9))
	assert.InDelta(t, spammtest.Frobenius(got), m.Norm(), 1e-9)

	// Identity on an empty matrix only allocates the diagonal.
	id, err := New[float32](2, []int{64, 64})
	require.NoError(t, err)
	require.NoError(t, id.AddIdentity(1))
	assert.Equal(t, 2, id.Stats().Chunks)
	assert.InDelta(t, 8.0, float64(id.Norm()), 1e-6)

	v, err := New[float32](1, []int{10})
	require.NoError(t, err)
	_, err = v.Trace()
	assert.ErrorIs(t, err, ErrUnsupportedDimensions)
	assert.ErrorIs(t, v.AddIdentity(1), ErrUnsupportedDimensions)
	rect, err := New[float32](2, []int{10, 5})
	require.NoError(t, err)
	assert.ErrorIs(t, rect.AddIdentity(1), ErrDimensionMismatch)
}

func TestStats(t *testing.T) {
	const n = 64
	m := fromRowMajor(t, n, n, spammtest.Diagonal[float32](spammtest.NewRand(5), n))
	s := m.Stats()
	assert.Equal(t, 2, s.Chunks)
	assert.Equal(t, 4, s.DenseChunks)
	assert.Equal(t, int64(n), s.NonZeros)
	assert.Equal(t, []int{1, 2}, s.NodesPerTier)
	assert.InDelta(t, 0.5, s.Fill(), 1e-9)
	assert.Greater(t, s.Bytes, uint64(2*32*32*4))
	assert.Contains(t, s.String(), "2 chunks out of 4")
}

func TestCheckFindsViolations(t *testing.T) {
	m := fromRowMajor(t, 16, 16, spammtest.Random[float64](spammtest.NewRand(6), 16, 16), WithChunkTier(1))
	require.Empty(t, m.Check(1e-9))
	m.root.children[0].norm2 += 1
	violations := m.Check(1e-9)
	require.Len(t, violations, 1)
	assert.Equal(t, 1, violations[0].Tier)
	assert.Nil(t, violations[0].Chunk)

	m.root.children[0].refreshNorm()
	require.Empty(t, m.Check(1e-9))
}

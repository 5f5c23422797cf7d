package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLayout(t *testing.T) {
	for name, want := range map[string]Layout{
		"row_major":           RowMajor,
		"column_major":        ColumnMajor,
		"Z_curve":             ZCurve,
		"z_curve":             ZCurve,
		" dense_column_major": ColumnMajor,
	} {
		got, err := ParseLayout(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
	_, err := ParseLayout("hilbert")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownLayout)
	assert.Equal(t, "z_curve", ZCurve.String())
}

func TestOffsets(t *testing.T) {
	assert.Equal(t, 2*5+3, RowMajorOffset([]int{2, 3}, 5))
	assert.Equal(t, 2+3*5, ColumnMajorOffset([]int{2, 3}, 5))
	assert.Equal(t, (1*4+2)*4+3, RowMajorOffset([]int{1, 2, 3}, 4))
	assert.Equal(t, 1+4*(2+4*3), ColumnMajorOffset([]int{1, 2, 3}, 4))
	assert.Equal(t, 7, RowMajorOffset([]int{7}, 10))
	assert.Equal(t, 7, ColumnMajorOffset([]int{7}, 10))
}

func TestInterleave(t *testing.T) {
	// 2D: row bit goes to the even bits, column bit to the odd bits.
	assert.Equal(t, 0b01, Interleave([]int{1, 0}, 1))
	assert.Equal(t, 0b10, Interleave([]int{0, 1}, 1))
	assert.Equal(t, 0b1101, Interleave([]int{3, 2}, 2))
	assert.Equal(t, Interleave([]int{5, 6}, 3), Interleave2D(5, 6, 3))

	// Round trip over all cells of an 8x8x8 grid.
	coords := make([]int, 3)
	seen := make(map[int]bool)
	for i := range 8 {
		for j := range 8 {
			for k := range 8 {
				m := Interleave([]int{i, j, k}, 3)
				require.False(t, seen[m])
				seen[m] = true
				Deinterleave(m, 3, coords)
				require.Equal(t, []int{i, j, k}, coords)
			}
		}
	}
	assert.Len(t, seen, 512)
}

func TestChildIndexMatchesInterleave(t *testing.T) {
	// Descending by ChildIndex from the root of a 16x16 box must produce the Morton index digits.
	const n, bits = 16, 4
	for i := range n {
		for j := range n {
			lower, upper := []int{0, 0}, []int{n, n}
			cl, cu := make([]int, 2), make([]int, 2)
			morton := 0
			for range bits {
				child := ChildIndex([]int{i, j}, lower, upper)
				morton = morton<<2 | child
				ChildBox(child, lower, upper, cl, cu)
				copy(lower, cl)
				copy(upper, cu)
			}
			require.Equal(t, Interleave2D(i, j, bits), morton, "element (%d, %d)", i, j)
			assert.Equal(t, []int{i, j}, lower)
		}
	}
}

func TestOffsetBlocked(t *testing.T) {
	// 8x8 array of 4x4 blocks in column-major: element (5, 2) is in block (1, 0) -> Morton 1, in-block (1, 2).
	assert.Equal(t, 1*16+1+2*4, Offset([]int{5, 2}, 8, 4, ColumnMajor, true))
	// Same element with ZCurve: row-major inside the block.
	assert.Equal(t, 1*16+1*4+2, Offset([]int{5, 2}, 8, 4, ZCurve, false))
	// Not blocked: plain layout.
	assert.Equal(t, 5*8+2, Offset([]int{5, 2}, 8, 4, RowMajor, false))

	// Every layout is a permutation.
	for _, layout := range LayoutValues() {
		for _, blocked := range []bool{false, true} {
			seen := make([]bool, 16*16)
			for i := range 16 {
				for j := range 16 {
					off := Offset([]int{i, j}, 16, 4, layout, blocked)
					require.False(t, seen[off])
					seen[off] = true
				}
			}
		}
	}
}

func TestLog2(t *testing.T) {
	assert.Equal(t, 0, Log2(1))
	assert.Equal(t, 3, Log2(8))
	assert.Equal(t, 3, Log2(9))
	assert.True(t, IsPowerOf2(64))
	assert.False(t, IsPowerOf2(0))
	assert.False(t, IsPowerOf2(12))
}

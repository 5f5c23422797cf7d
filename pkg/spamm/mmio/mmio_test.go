package mmio

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gomlx/spamm/pkg/spamm"
	"github.com/gomlx/spamm/pkg/spamm/index"
	"github.com/gomlx/spamm/pkg/spamm/spammtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCoordinate(t *testing.T) {
	const file = `%%MatrixMarket matrix coordinate real general
% A comment.

3 4 3
1 1 1.5
3 4 -2
2 3 1e-3
`
	m, err := Read[float64](strings.NewReader(file))
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4}, m.N())
	dense, err := m.ToDense(index.RowMajor)
	require.NoError(t, err)
	assert.Equal(t, []float64{
		1.5, 0, 0, 0,
		0, 0, 1e-3, 0,
		0, 0, 0, -2,
	}, dense)
}

func TestReadSymmetricAndPattern(t *testing.T) {
	m, err := Read[float32](strings.NewReader(`%%MatrixMarket matrix coordinate integer symmetric
2 2 2
1 1 3
2 1 5
`))
	require.NoError(t, err)
	assert.Equal(t, float32(5), m.Get(0, 1))
	assert.Equal(t, float32(5), m.Get(1, 0))
	assert.Equal(t, float32(3), m.Get(0, 0))

	m, err = Read[float32](strings.NewReader(`%%MatrixMarket matrix coordinate real skew-symmetric
2 2 1
2 1 5
`))
	require.NoError(t, err)
	assert.Equal(t, float32(-5), m.Get(0, 1))
	assert.Equal(t, float32(5), m.Get(1, 0))

	m, err = Read[float32](strings.NewReader(`%%MatrixMarket matrix coordinate pattern general
2 3 2
1 3
2 2
`))
	require.NoError(t, err)
	assert.Equal(t, float32(1), m.Get(0, 2))
	assert.Equal(t, float32(1), m.Get(1, 1))
	assert.InDelta(t, 1.4142135, float64(m.Norm()), 1e-6)
}

func TestReadArray(t *testing.T) {
	m, err := Read[float64](strings.NewReader(`%%MatrixMarket matrix array real general
2 2
1
2
0
4
`), spamm.WithBlockSize(2))
	require.NoError(t, err)
	dense, err := m.ToDense(index.RowMajor)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 2, 4}, dense)
	assert.Equal(t, 2, m.BlockSize())
}

func TestReadErrors(t *testing.T) {
	for name, file := range map[string]string{
		"empty":           ``,
		"banner":          "%%NotMatrixMarket matrix coordinate real general\n1 1 0\n",
		"format":          "%%MatrixMarket matrix hash real general\n1 1 0\n",
		"field":           "%%MatrixMarket matrix coordinate complex general\n1 1 0\n",
		"symmetry":        "%%MatrixMarket matrix coordinate real hermitian\n1 1 0\n",
		"array pattern":   "%%MatrixMarket matrix array pattern general\n1 1\n",
		"missing size":    "%%MatrixMarket matrix coordinate real general\n",
		"bad size":        "%%MatrixMarket matrix coordinate real general\n1 1\n",
		"missing entries": "%%MatrixMarket matrix coordinate real general\n2 2 2\n1 1 1\n",
		"bad value":       "%%MatrixMarket matrix coordinate real general\n2 2 1\n1 1 x\n",
		"bad index":       "%%MatrixMarket matrix coordinate real general\n2 2 1\n1 a 1\n",
		"fields":          "%%MatrixMarket matrix coordinate real general\n2 2 1\n1 1\n",
		"short array":     "%%MatrixMarket matrix array real general\n2 2\n1\n2\n",
		"negative count":  "%%MatrixMarket matrix coordinate real general\n3 3 -1\n",
		"negative rows":   "%%MatrixMarket matrix coordinate real general\n-3 3 1\n1 1 1\n",
		"negative cols":   "%%MatrixMarket matrix array real general\n3 -3\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Read[float64](strings.NewReader(file))
			assert.ErrorIs(t, err, ErrFormat)
		})
	}

	_, err := Read[float64](strings.NewReader("%%MatrixMarket matrix coordinate real general\n2 2 1\n3 1 1\n"))
	assert.ErrorIs(t, err, spamm.ErrIndexOutOfRange)
	_, err = Read[float64](strings.NewReader("%%MatrixMarket matrix coordinate real general\n0 2 0\n"))
	assert.ErrorIs(t, err, spamm.ErrInvalidSize)
}

func TestWriteRead(t *testing.T) {
	const rows, cols = 17, 9
	data := spammtest.Decay[float32](spammtest.NewRand(1), rows, cols, 1)
	for i := range data {
		if data[i] < 0.05 {
			data[i] = 0
		}
	}
	m, err := spamm.FromDense([]int{rows, cols}, data, index.RowMajor)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, m))
	assert.True(t, strings.HasPrefix(buf.String(), "%%MatrixMarket matrix coordinate real general\n"))

	m2, err := Read[float32](&buf)
	require.NoError(t, err)
	dense, err := m2.ToDense(index.RowMajor)
	require.NoError(t, err)
	assert.Equal(t, data, dense)

	path := filepath.Join(t.TempDir(), "out", "m.mtx")
	require.NoError(t, WriteFile(path, m))
	m3, err := ReadFile[float32](path)
	require.NoError(t, err)
	assert.Equal(t, m.N(), m3.N())
	assert.InDelta(t, m.Norm(), m3.Norm(), 1e-5)

	_, err = ReadFile[float32](filepath.Join(t.TempDir(), "missing.mtx"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	v, err := spamm.New[float32](1, []int{3})
	require.NoError(t, err)
	assert.ErrorIs(t, Write(&buf, v), spamm.ErrUnsupportedDimensions)
}

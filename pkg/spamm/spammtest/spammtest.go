// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package spammtest holds dense reference implementations and matrix generators used to test and
// benchmark SpAMM.
//
// All dense buffers here are row-major.
package spammtest

import (
	"math"
	"math/rand/v2"

	"github.com/gomlx/spamm/internal/workerspool"
	"golang.org/x/exp/constraints"
	"gonum.org/v1/gonum/floats"
)

// NewRand returns a deterministic random number generator for the seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x5eed))
}

// Random returns a rows×cols matrix with elements uniform in [0, 1).
func Random[T constraints.Float](rng *rand.Rand, rows, cols int) []T {
	data := make([]T, rows*cols)
	for i := range data {
		data[i] = T(rng.Float64())
	}
	return data
}

// Decay returns a rows×cols matrix with elements rand*exp(-|i-j|/decay), with rand uniform in [0, 1).
func Decay[T constraints.Float](rng *rand.Rand, rows, cols int, decay float64) []T {
	data := make([]T, rows*cols)
	for i := range rows {
		for j := range cols {
			data[i*cols+j] = T(rng.Float64() * math.Exp(-math.Abs(float64(i-j))/decay))
		}
	}
	return data
}

// Diagonal returns an n×n matrix with random elements in [1, 2) on the diagonal, and zeros elsewhere.
func Diagonal[T constraints.Float](rng *rand.Rand, n int) []T {
	data := make([]T, n*n)
	for i := range n {
		data[i*n+i] = T(1 + rng.Float64())
	}
	return data
}

// Transpose converts a rows×cols row-major matrix to column-major (or the reverse, with rows and
// cols swapped).
func Transpose[T constraints.Float](data []T, rows, cols int) []T {
	out := make([]T, len(data))
	for i := range rows {
		for j := range cols {
			out[j*rows+i] = data[i*cols+j]
		}
	}
	return out
}

// MultiplyDense computes c = alpha*a*b + beta*c, for a of shape m×k, b of shape k×n and c of shape m×n.
// The rows of c are computed in parallel, and the accumulation is done in float64.
func MultiplyDense[T constraints.Float](alpha T, a []T, m, k int, b []T, n int, beta T, c []T) {
	rows := make(chan int, m)
	for row := range m {
		rows <- row
	}
	close(rows)
	workerspool.New().Saturate(func() {
		for i := range rows {
			for j := range n {
				var sum float64
				for l := range k {
					sum += float64(a[i*k+l]) * float64(b[l*n+j])
				}
				c[i*n+j] = T(float64(alpha)*sum + float64(beta)*float64(c[i*n+j]))
			}
		}
	})
}

func toFloat64[T constraints.Float](values []T) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = float64(v)
	}
	return out
}

// MaxAbsDiff returns the largest absolute difference between the elements of a and b.
func MaxAbsDiff[T constraints.Float](a, b []T) float64 {
	return floats.Distance(toFloat64(a), toFloat64(b), math.Inf(1))
}

// FrobeniusDiff returns the Frobenius norm of a-b.
func FrobeniusDiff[T constraints.Float](a, b []T) float64 {
	return floats.Distance(toFloat64(a), toFloat64(b), 2)
}

// Frobenius returns the Frobenius norm of a.
func Frobenius[T constraints.Float](a []T) float64 {
	return floats.Norm(toFloat64(a), 2)
}

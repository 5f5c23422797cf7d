// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package kernel

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/spamm/pkg/spamm/index"
	"golang.org/x/exp/constraints"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
	"gonum.org/v1/gonum/blas/blas64"
)

// GemmFunc is a BLAS gemm restricted to square matrices, with the column-major convention:
// c = alpha * a * b + beta * c, where a, b and c are n×n with leading dimensions lda, ldb and ldc.
type GemmFunc[T constraints.Float] func(n int, alpha T, a []T, lda int, b []T, ldb int, beta T, c []T, ldc int)

// External is a Kernel that delegates the block products to a GemmFunc.
type External[T constraints.Float] struct {
	blockOps[T]
	name string
	gemm GemmFunc[T]
}

// NewExternal returns a kernel with the given name that calls gemm for every block product.
//
// RowMajor blocks are supported by swapping the operands: the row-major view of a column-major
// product is the product of the transposes in the reverse order.
func NewExternal[T constraints.Float](name string, gemm GemmFunc[T]) *External[T] {
	return &External[T]{name: name, gemm: gemm}
}

func (k *External[T]) Name() string { return k.name }

func (*External[T]) SupportsLayout(layout index.Layout) bool {
	return layout == index.RowMajor || layout == index.ColumnMajor
}

func (*External[T]) SuggestedLayout() index.Layout { return index.ColumnMajor }

func (k *External[T]) MultiplyAdd(shape Shape, alpha T, a, b, c []T) {
	n := shape.N
	switch shape.Layout {
	case index.ColumnMajor:
		k.gemm(n, alpha, a, n, b, n, 1, c, n)
	case index.RowMajor:
		k.gemm(n, alpha, b, n, a, n, 1, c, n)
	default:
		exceptions.Panicf("%s does not support layout %s", k.name, shape.Layout)
	}
}

// GonumGemm returns a GemmFunc backed by gonum's BLAS implementation (blas32 for float32 and blas64
// for float64).
func GonumGemm[T constraints.Float]() GemmFunc[T] {
	var zero T
	switch any(zero).(type) {
	case float32:
		impl := blas32.Implementation()
		fn := GemmFunc[float32](func(n int, alpha float32, a []float32, lda int, b []float32, ldb int, beta float32, c []float32, ldc int) {
			// gonum is row-major: swap the operands to get the column-major product.
			impl.Sgemm(blas.NoTrans, blas.NoTrans, n, n, n, alpha, b, ldb, a, lda, beta, c, ldc)
		})
		return any(fn).(GemmFunc[T])
	case float64:
		impl := blas64.Implementation()
		fn := GemmFunc[float64](func(n int, alpha float64, a []float64, lda int, b []float64, ldb int, beta float64, c []float64, ldc int) {
			impl.Dgemm(blas.NoTrans, blas.NoTrans, n, n, n, alpha, b, ldb, a, lda, beta, c, ldc)
		})
		return any(fn).(GemmFunc[T])
	default:
		exceptions.Panicf("GonumGemm: unsupported type %T", zero)
		return nil
	}
}

// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/gomlx/spamm/pkg/spamm"
	"github.com/gomlx/spamm/pkg/spamm/index"
	"github.com/gomlx/spamm/pkg/spamm/mmio"
	"github.com/gomlx/spamm/pkg/spamm/spammtest"
	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

// operands of the benchmark. The dense copies are row-major, and only kept with -verify.
type operands[T constraints.Float] struct {
	n                      int
	a, b, c                *spamm.Matrix[T]
	aDense, bDense, cDense []T
}

// generateDense returns a new n×n row-major matrix of the type given by -type.
func generateDense[T constraints.Float](kind string, n int, seed uint64) ([]T, error) {
	rng := spammtest.NewRand(seed)
	switch kind {
	case "dense":
		return spammtest.Random[T](rng, n, n), nil
	case "decay":
		return spammtest.Decay[T](rng, n, n, *flagDecay), nil
	case "diagonal":
		return spammtest.Diagonal[T](rng, n), nil
	}
	return nil, errors.Errorf("unknown matrix -type=%q, valid values are dense, decay or diagonal", kind)
}

// generate the operands A, B and C in parallel.
func generate[T constraints.Float](cfg *config) (*operands[T], error) {
	if *flagInput != "" {
		return readInput[T](cfg)
	}
	n := *flagN
	ops := &operands[T]{n: n}
	matrices := []**spamm.Matrix[T]{&ops.a, &ops.b, &ops.c}
	dense := make([][]T, len(matrices))
	var g errgroup.Group
	for idx, m := range matrices {
		g.Go(func() error {
			data, err := generateDense[T](*flagType, n, *flagSeed+uint64(idx))
			if err != nil {
				return err
			}
			*m, err = spamm.FromDense([]int{n, n}, data, index.RowMajor, cfg.matrixOpts...)
			if err != nil {
				return err
			}
			dense[idx] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if *flagVerify {
		ops.aDense, ops.bDense, ops.cDense = dense[0], dense[1], dense[2]
	}
	klog.V(1).Infof("generated %d×%d %s matrices", n, n, *flagType)
	return ops, nil
}

// readInput reads A from the -input file. B is a copy of A, and C is zero.
func readInput[T constraints.Float](cfg *config) (*operands[T], error) {
	a, err := mmio.ReadFile[T](*flagInput, cfg.matrixOpts...)
	if err != nil {
		return nil, err
	}
	n := a.N()
	if n[0] != n[1] {
		return nil, errors.Wrapf(spamm.ErrDimensionMismatch, "-input=%q must be a square matrix, got %d×%d", *flagInput, n[0], n[1])
	}
	c, err := spamm.New[T](2, n, cfg.matrixOpts...)
	if err != nil {
		return nil, err
	}
	ops := &operands[T]{n: n[0], a: a, b: a.Copy(), c: c}
	if *flagVerify {
		if ops.aDense, err = a.ToDense(index.RowMajor); err != nil {
			return nil, err
		}
		ops.bDense = ops.aDense
		ops.cDense = make([]T, n[0]*n[1])
	}
	klog.V(1).Infof("read %d×%d matrix from %q", n[0], n[1], *flagInput)
	return ops, nil
}

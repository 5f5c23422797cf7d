// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package spamm

import (
	"github.com/gomlx/spamm/internal/workerspool"
	"github.com/gomlx/spamm/pkg/spamm/index"
	"github.com/gomlx/spamm/pkg/spamm/kernel"
	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
	"k8s.io/klog/v2"
)

// Engine runs the recursive operations on matrices of type T: it owns the dense kernel, the pool
// of workers and the logger.
//
// An Engine is safe for concurrent use, as long as the operations don't write to the same matrices.
type Engine[T constraints.Float] struct {
	kernel       kernel.Kernel[T] // nil: chosen by layout for each operation.
	pool         *workerspool.Pool
	logger       klog.Logger
	addNormBound bool
}

// NewEngine creates an Engine configured by the options.
func NewEngine[T constraints.Float](opts ...EngineOption) (*Engine[T], error) {
	cfg := engineConfig{logger: klog.Background()}
	for _, opt := range opts {
		opt(&cfg)
	}
	e := &Engine[T]{
		logger:       cfg.logger,
		addNormBound: cfg.addNormBound,
	}
	if cfg.hasPool {
		e.pool = workerspool.NewWithParallelism(cfg.parallelism)
	} else {
		e.pool = workerspool.New()
	}
	switch {
	case cfg.kernel != nil:
		k, ok := cfg.kernel.(kernel.Kernel[T])
		if !ok {
			return nil, errors.Errorf("kernel of type %T given to an Engine[%T]", cfg.kernel, T(0))
		}
		e.kernel = k
	case cfg.kernelName != "":
		k, err := kernel.Lookup[T](cfg.kernelName)
		if err != nil {
			return nil, err
		}
		e.kernel = k
	}
	return e, nil
}

// Kernel returns the dense kernel used for matrices of the given layout.
func (e *Engine[T]) Kernel(layout index.Layout) (kernel.Kernel[T], error) {
	if e.kernel == nil {
		k, err := kernel.ForLayout[T](layout)
		if err != nil {
			return nil, errors.WithMessagef(ErrLayoutMismatch, "%v", err)
		}
		return k, nil
	}
	if !e.kernel.SupportsLayout(layout) {
		return nil, errors.Wrapf(ErrLayoutMismatch, "kernel %q doesn't support layout %s", e.kernel.Name(), layout)
	}
	return e.kernel, nil
}

// Parallelism returns the soft limit of parallel tasks of the engine.
func (e *Engine[T]) Parallelism() int { return e.pool.MaxParallelism() }

// Multiply computes C = alpha*A*B + beta*C with the default Engine, see Engine.Multiply.
func Multiply[T constraints.Float](tolerance T, alpha T, a, b *Matrix[T], beta T, c *Matrix[T]) (MultiplyStats, error) {
	e, err := NewEngine[T]()
	if err != nil {
		return MultiplyStats{}, err
	}
	return e.Multiply(tolerance, alpha, a, b, beta, c)
}

// Add computes A = alpha*A + beta*B with the default Engine, see Engine.Add.
func Add[T constraints.Float](alpha T, a *Matrix[T], beta T, b *Matrix[T]) error {
	e, err := NewEngine[T]()
	if err != nil {
		return err
	}
	return e.Add(alpha, a, beta, b)
}

// Scale computes A = alpha*A with the default Engine, see Engine.Scale.
func Scale[T constraints.Float](alpha T, a *Matrix[T]) error {
	e, err := NewEngine[T]()
	if err != nil {
		return err
	}
	return e.Scale(alpha, a)
}

// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/gomlx/spamm/pkg/spamm"
	"github.com/gomlx/spamm/pkg/spamm/index"
	"github.com/gomlx/spamm/pkg/spamm/mmio"
	"github.com/gomlx/spamm/pkg/spamm/spammtest"
	"github.com/janpfeifer/must"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/exp/constraints"
	"k8s.io/klog/v2"
)

// result of the multiplications with one tolerance.
type result struct {
	tolerance float64
	stats     spamm.MultiplyStats // Of the fastest repetition.
	norm      float64             // Of C.
	verified  bool
	maxDiff   float64
	frobDiff  float64
}

func run[T constraints.Float]() {
	cfg := must.M1(parseFlags())
	engine := must.M1(spamm.NewEngine[T](cfg.engineOpts...))
	start := time.Now()
	ops := must.M1(generate[T](cfg))
	klog.V(1).Infof("operands ready in %s", time.Since(start))
	kernel := must.M1(engine.Kernel(ops.a.Layout()))

	var want []T
	if *flagVerify {
		start = time.Now()
		want = append([]T(nil), ops.cDense...)
		spammtest.MultiplyDense(T(*flagAlpha), ops.aDense, ops.n, ops.n, ops.bDense, ops.n, T(*flagBeta), want)
		klog.V(1).Infof("dense reference product computed in %s", time.Since(start))
	}

	bar := progressbar.NewOptions(len(cfg.tolerances)**flagRepeat,
		progressbar.OptionSetDescription("multiplying"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.ThemeASCII),
		progressbar.OptionClearOnFinish(),
	)
	results := make([]result, 0, len(cfg.tolerances))
	var c *spamm.Matrix[T]
	for _, tolerance := range cfg.tolerances {
		r := result{tolerance: tolerance}
		for repeat := range *flagRepeat {
			c = ops.c.Copy()
			stats := must.M1(engine.Multiply(T(tolerance), T(*flagAlpha), ops.a, ops.b, T(*flagBeta), c))
			if repeat == 0 || stats.Elapsed < r.stats.Elapsed {
				r.stats = stats
			}
			_ = bar.Add(1)
		}
		r.norm = float64(c.Norm())
		if want != nil {
			got := must.M1(c.ToDense(index.RowMajor))
			r.verified = true
			r.maxDiff = spammtest.MaxAbsDiff(want, got)
			r.frobDiff = spammtest.FrobeniusDiff(want, got)
		}
		klog.V(1).Infof("tolerance %g: %s", tolerance, r.stats)
		results = append(results, r)
	}
	_ = bar.Finish()

	printOperands(ops, kernel.Name(), engine.Parallelism())
	printResults(results)
	if *flagPlot != "" {
		must.M(plotSweep(*flagPlot, results))
		fmt.Printf("Plot saved to %q\n", *flagPlot)
	}
	if *flagOutput != "" {
		must.M(mmio.WriteFile(*flagOutput, c))
		fmt.Printf("C saved to %q\n", *flagOutput)
	}
}

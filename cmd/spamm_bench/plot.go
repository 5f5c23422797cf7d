// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// plotSweep saves to path a log-log plot of the fraction of the dense products computed, and of the
// errors if they were verified, against the tolerance. Points that are zero can't be plotted and
// are left out.
func plotSweep(path string, results []result) error {
	var fractions, maxDiffs, frobDiffs plotter.XYs
	for _, r := range results {
		if r.tolerance <= 0 {
			continue
		}
		if f := r.stats.Fraction(); f > 0 {
			fractions = append(fractions, plotter.XY{X: r.tolerance, Y: f})
		}
		if r.maxDiff > 0 {
			maxDiffs = append(maxDiffs, plotter.XY{X: r.tolerance, Y: r.maxDiff})
		}
		if r.frobDiff > 0 {
			frobDiffs = append(frobDiffs, plotter.XY{X: r.tolerance, Y: r.frobDiff})
		}
	}
	if len(fractions) == 0 {
		return errors.New("-plot requires at least one positive tolerance in -sweep")
	}

	p := plot.New()
	p.Title.Text = "SpAMM tolerance sweep"
	p.X.Label.Text = "tolerance"
	p.X.Scale = plot.LogScale{}
	p.X.Tick.Marker = plot.LogTicks{Prec: -1}
	p.Y.Scale = plot.LogScale{}
	p.Y.Tick.Marker = plot.LogTicks{Prec: -1}
	p.Legend.Top = true

	lines := []any{"fraction of products", fractions}
	if len(maxDiffs) > 0 {
		lines = append(lines, "max |ΔC|", maxDiffs)
	}
	if len(frobDiffs) > 0 {
		lines = append(lines, "‖ΔC‖", frobDiffs)
	}
	if err := plotutil.AddLinePoints(p, lines...); err != nil {
		return errors.Wrap(err, "plotting tolerance sweep")
	}
	widenLogRange(&p.X)
	widenLogRange(&p.Y)
	return errors.Wrapf(p.Save(8*vg.Inch, 5*vg.Inch, path), "saving plot to %q", path)
}

// widenLogRange makes the range of a log-scaled axis non-empty: plot would otherwise widen it linearly,
// possibly to non-positive values.
func widenLogRange(axis *plot.Axis) {
	if axis.Min == axis.Max {
		axis.Min /= 10
		axis.Max *= 10
	}
}

// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// spamm_bench multiplies matrices with SpAMM and reports the work done, the time taken and,
// optionally, the error against the dense product.
//
// Examples:
//
//	spamm_bench -N 1024 -type decay -tolerance 1e-6 -verify
//	spamm_bench -N 2048 -sweep 0,1e-8,1e-6,1e-4,1e-2 -plot sweep.png
//	spamm_bench -input matrix.mtx -tolerance 1e-4 -output product.mtx
package main

import (
	"flag"
	"runtime"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/spamm/pkg/spamm"
	"github.com/gomlx/spamm/pkg/spamm/index"
	"github.com/muesli/termenv"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var (
	flagN         = flag.Int("N", 1024, "Size of the N×N matrices generated.")
	flagType      = flag.String("type", "decay", "Type of matrices generated: dense, decay or diagonal.")
	flagDecay     = flag.Float64("decay", 3, "Decay constant for -type=decay: A[i][j] = rand*exp(-|i-j|/decay).")
	flagSeed      = flag.Uint64("seed", 1, "Seed of the random generator.")
	flagInput     = flag.String("input", "", "Matrix Market file to read A from, instead of generating it. B is a copy of A and C starts as zero.")
	flagOutput    = flag.String("output", "", "Matrix Market file to write C to, after the last multiplication.")
	flagTolerance = flag.Float64("tolerance", 1e-6, "SpAMM tolerance: products of sub-blocks whose norm product is not above it are skipped.")
	flagSweep     = flag.String("sweep", "", "Comma-separated list of tolerances to run, instead of -tolerance.")
	flagAlpha     = flag.Float64("alpha", 1.2, "Scalar alpha in C = alpha*A*B + beta*C.")
	flagBeta      = flag.Float64("beta", 0.5, "Scalar beta in C = alpha*A*B + beta*C.")
	flagChunkTier = flag.Int("chunk_tier", -1, "Tier of the chunks, -1 for the default (the depth of the tree minus 3).")
	flagLinear    = flag.Bool("linear", spamm.DefaultLinearTree, "Whether chunks use the linear tree.")
	flagBlock     = flag.Int("block", spamm.DefaultBlockSize, "Extent of the basic blocks.")
	flagLayout    = flag.String("layout", spamm.DefaultLayout.String(), "Layout of the dense data: row_major, column_major or z_curve.")
	flagKernel    = flag.String("kernel", "", "Name of the dense kernel, by default the best one for the layout.")
	flagParallel  = flag.Int("parallelism", runtime.NumCPU(), "Soft limit of parallel tasks, 0 disables parallelism and -1 makes it unlimited.")
	flagRepeat    = flag.Int("repeat", 1, "Number of times each multiplication is repeated, the fastest one is reported.")
	flagVerify    = flag.Bool("verify", false, "Compare C against the dense product.")
	flagPlot      = flag.String("plot", "", "PNG file to plot the error and the work done against the tolerance.")
	flagColor     = flag.Bool("color", true, "Use colors in the output.")
	flagFloat64   = flag.Bool("float64", false, "Use float64 instead of float32.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	if len(flag.Args()) > 0 {
		klog.Fatalf("Unexpected arguments %q. See 'spamm_bench -help'.", flag.Args())
	}
	if !*flagColor {
		lipgloss.SetColorProfile(termenv.Ascii)
	}

	var err error
	if *flagFloat64 {
		err = exceptions.TryCatch[error](run[float64])
	} else {
		err = exceptions.TryCatch[error](run[float32])
	}
	if err != nil {
		klog.Fatalf("Failed with error: %+v", err)
	}
}

// config holds the parsed flags.
type config struct {
	tolerances []float64
	matrixOpts []spamm.Option
	engineOpts []spamm.EngineOption
}

func parseFlags() (*config, error) {
	layout, err := index.ParseLayout(*flagLayout)
	if err != nil {
		return nil, err
	}
	if *flagRepeat < 1 {
		return nil, errors.Errorf("-repeat must be at least 1, got %d", *flagRepeat)
	}
	cfg := &config{
		matrixOpts: []spamm.Option{
			spamm.WithLayout(layout),
			spamm.WithBlockSize(*flagBlock),
			spamm.WithLinearTree(*flagLinear),
			spamm.WithChunkTier(*flagChunkTier),
		},
		engineOpts: []spamm.EngineOption{spamm.WithParallelism(*flagParallel)},
	}
	if *flagKernel != "" {
		cfg.engineOpts = append(cfg.engineOpts, spamm.WithKernel(*flagKernel))
	}
	if *flagSweep == "" {
		cfg.tolerances = []float64{*flagTolerance}
	} else {
		for _, part := range strings.Split(*flagSweep, ",") {
			tolerance, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
			if err != nil {
				return nil, errors.Wrapf(err, "parsing -sweep=%q", *flagSweep)
			}
			cfg.tolerances = append(cfg.tolerances, tolerance)
		}
	}
	return cfg, nil
}

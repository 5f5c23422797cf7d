// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/spamm/pkg/spamm"
	"golang.org/x/exp/constraints"
)

var (
	headerRowStyle = lipgloss.NewStyle().Reverse(true).
			Padding(0, 2, 0, 2).Align(lipgloss.Center)

	oddRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFF")).
			PaddingLeft(1).PaddingRight(1)
	evenRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#999")).
			PaddingLeft(1).PaddingRight(1)

	titleStyle = lipgloss.NewStyle().Bold(true).Padding(1, 4, 1, 4)
)

func newPlainTable(withHeader bool) *lgtable.Table {
	return lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) (s lipgloss.Style) {
			if withHeader && row == lgtable.HeaderRow {
				return headerRowStyle
			}
			if row%2 == 0 {
				s = oddRowStyle
			} else {
				s = evenRowStyle
			}
			if col == 0 {
				return s.Align(lipgloss.Right)
			}
			return s.Align(lipgloss.Left)
		})
}

func printOperands[T constraints.Float](ops *operands[T], kernelName string, parallelism int) {
	fmt.Println(titleStyle.Render("Operands"))
	table := newPlainTable(false)
	a := ops.a
	source := *flagType
	if *flagInput != "" {
		source = *flagInput
	}
	table.Row("matrices", fmt.Sprintf("%d×%d %s (%T)", ops.n, ops.n, source, T(0)))
	table.Row("padded", humanize.Comma(int64(a.NPadded())))
	table.Row("depth", fmt.Sprintf("%d", a.Depth()))
	table.Row("chunk tier", fmt.Sprintf("%d", a.ChunkTier()))
	table.Row("linear tree", fmt.Sprintf("%v", a.UseLinearTree()))
	table.Row("layout", a.Layout().String())
	table.Row("block size", fmt.Sprintf("%d", a.BlockSize()))
	table.Row("kernel", kernelName)
	table.Row("parallelism", fmt.Sprintf("%d", parallelism))
	table.Row("alpha, beta", fmt.Sprintf("%g, %g", *flagAlpha, *flagBeta))
	for _, operand := range []struct {
		name string
		m    *spamm.Matrix[T]
	}{{"A", ops.a}, {"B", ops.b}} {
		name, m := operand.name, operand.m
		s := m.Stats()
		table.Row(name+" norm", fmt.Sprintf("%.6g", float64(m.Norm())))
		table.Row(name+" storage", fmt.Sprintf("%s chunks of %s (%.1f%%), %s",
			humanize.Comma(int64(s.Chunks)), humanize.Comma(int64(s.DenseChunks)), 100*s.Fill(), humanize.Bytes(s.Bytes)))
	}
	fmt.Println(table.Render())
}

func printResults(results []result) {
	fmt.Println(titleStyle.Render("Results"))
	table := newPlainTable(true)
	headers := []string{"tolerance", "products", "% of dense", "pruned", "time", "|C|"}
	verified := len(results) > 0 && results[0].verified
	if verified {
		headers = append(headers, "max |ΔC|", "‖ΔC‖")
	}
	table.Headers(headers...)
	for _, r := range results {
		row := []string{
			fmt.Sprintf("%g", r.tolerance),
			humanize.Comma(r.stats.Products),
			fmt.Sprintf("%.3f%%", 100*r.stats.Fraction()),
			humanize.Comma(r.stats.Pruned),
			r.stats.Elapsed.String(),
			fmt.Sprintf("%.6g", r.norm),
		}
		if verified {
			row = append(row, fmt.Sprintf("%.3g", r.maxDiff), fmt.Sprintf("%.3g", r.frobDiff))
		}
		table.Row(row...)
	}
	fmt.Println(table.Render())
}

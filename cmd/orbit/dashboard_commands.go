package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/orbitrc/orbit/internal/api"
	"github.com/orbitrc/orbit/internal/app"
	"github.com/orbitrc/orbit/internal/ui"
)

func newStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show dashboard totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, func(rt *app.Runtime) error {
				stats := rt.Dashboard.Summary(cmd.Context())
				out := cmd.OutOrStdout()
				styled := isTerminal(out)

				fmt.Fprintln(out, renderTable(
					[]string{"Metric", "Value"},
					[][]string{
						{"Requisitions", strconv.Itoa(stats.TotalRequisitions)},
						{"Total value", ui.FormatValue(stats.TotalValue)},
					},
					[]columnAlignment{alignLeft, alignRight},
					styled,
				))

				rows := make([][]string, 0, len(api.Stages))
				for _, stage := range api.Stages {
					rows = append(rows, []string{stage.String(), strconv.Itoa(stats.StatusDistribution[stage.Label()])})
				}
				fmt.Fprintln(out, renderTable([]string{"Stage", "Count"}, rows, []columnAlignment{alignLeft, alignRight}, styled))
				if stats.Synthetic {
					fmt.Fprintln(out, "placeholder data, no backend reachable")
				}
				return nil
			})
		},
	}
}

func newSLACommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sla",
		Short: "Show SLA targets and current performance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, func(rt *app.Runtime) error {
				metrics := rt.Dashboard.SLA(cmd.Context())
				out := cmd.OutOrStdout()
				styled := isTerminal(out)

				steps := make([]string, 0, len(metrics.Targets))
				for step := range metrics.Targets {
					steps = append(steps, step)
				}
				sort.Strings(steps)
				rows := make([][]string, 0, len(steps))
				for _, step := range steps {
					target := metrics.Targets[step]
					perf := metrics.Performance[step]
					rows = append(rows, []string{
						step,
						fmt.Sprintf("%g %s", target.Target, target.Unit),
						fmt.Sprintf("%.1f", perf.Average),
						fmt.Sprintf("%.0f%%", perf.Compliance),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Step", "Target", "Average", "Compliance"},
					rows,
					[]columnAlignment{alignLeft, alignRight, alignRight, alignRight},
					styled,
				))

				kinds := make([]string, 0, len(metrics.Deadlines))
				for kind := range metrics.Deadlines {
					kinds = append(kinds, kind)
				}
				sort.Strings(kinds)
				for _, kind := range kinds {
					fmt.Fprintf(out, "%s: %s\n", kind, metrics.Deadlines[kind])
				}
				if metrics.Synthetic {
					fmt.Fprintln(out, "placeholder data, no backend reachable")
				}
				return nil
			})
		},
	}
}

func newSampleDataCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sample-data",
		Short: "Ask the backend to seed sample requisitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, func(rt *app.Runtime) error {
				ok, message := rt.Dashboard.AddSampleData(cmd.Context())
				if !ok {
					return fmt.Errorf("sample data not added: %s", message)
				}
				if message == "" {
					message = "sample data added"
				}
				fmt.Fprintln(cmd.OutOrStdout(), message)
				return nil
			})
		},
	}
}

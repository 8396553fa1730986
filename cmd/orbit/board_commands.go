package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/orbitrc/orbit/internal/api"
	"github.com/orbitrc/orbit/internal/app"
	"github.com/orbitrc/orbit/internal/board"
	"github.com/orbitrc/orbit/internal/ui"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var (
		filters api.Filters
		stage   string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List requisitions on the board",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var only *api.Stage
			if strings.TrimSpace(stage) != "" {
				parsed, err := api.ParseStage(stage)
				if err != nil {
					return err
				}
				only = &parsed
			}
			return ctx.withRuntime(cmd, func(rt *app.Runtime) error {
				rt.Board.SetFilters(filters)
				snap, err := rt.Board.Load(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderBoardTable(snap, only, isTerminal(out)))
				fmt.Fprintln(out, boardFooter(snap, only))
				return nil
			})
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&stage, "stage", "", "Only show one stage (name or label)")
	flags.StringVar(&filters.RequestType, "type", "", "Filter by requisition type")
	flags.StringVar(&filters.CreatedBy, "created-by", "", "Filter by requester")
	flags.StringVar(&filters.Supplier, "supplier", "", "Filter by suggested supplier")
	flags.Float64Var(&filters.MinValue, "min-value", 0, "Minimum estimated value")
	flags.Float64Var(&filters.MaxValue, "max-value", 0, "Maximum estimated value")
	return cmd
}

func newMoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "move <id> <stage>",
		Short: "Move a requisition to another stage",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			to, err := api.ParseStage(args[1])
			if err != nil {
				return err
			}
			return ctx.withRuntime(cmd, func(rt *app.Runtime) error {
				snap, err := rt.Board.Load(cmd.Context())
				if err != nil {
					return err
				}
				card, ok := snap.Find(id)
				if !ok {
					return fmt.Errorf("move %s: %w", id, board.ErrUnknownItem)
				}
				outcome, err := rt.Board.Move(cmd.Context(), id, card.Status, to)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s: %s -> %s (%s)\n", id, card.Status, to, outcome)
				switch outcome {
				case board.Unconfirmed:
					fmt.Fprintln(out, "warning: no backend confirmed the move; the change was not saved")
				case board.RolledBack:
					fmt.Fprintf(out, "warning: no backend confirmed the move; %s stays in %s\n", id, card.Status)
				}
				return nil
			})
		},
	}
}

func renderBoardTable(snap board.Snapshot, only *api.Stage, styled bool) string {
	headers := []string{"ID", "Stage", "Value", "Type", "Requested by", "Supplier", "Created"}
	aligns := []columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignLeft, alignLeft}
	var rows [][]string
	for _, col := range snap.Columns {
		if only != nil && col.Stage != *only {
			continue
		}
		for _, card := range col.Cards {
			rows = append(rows, []string{
				card.ID,
				col.Stage.String(),
				ui.FormatValue(card.EstimatedValue),
				card.RequestType,
				card.CreatedBy,
				card.Supplier,
				createdDate(card.Item),
			})
		}
	}
	return renderTable(headers, rows, aligns, styled)
}

func createdDate(card api.Item) string {
	created := card.ParsedCreatedAt()
	if created.IsZero() {
		return ""
	}
	return created.Format("2006-01-02")
}

func boardFooter(snap board.Snapshot, only *api.Stage) string {
	count := snap.Total()
	if only != nil {
		count = len(snap.Column(*only).Cards)
	}
	footer := fmt.Sprintf("%d requisitions", count)
	if snap.Synthetic {
		footer += " (placeholder data, no backend reachable)"
	}
	return footer
}

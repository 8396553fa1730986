package main

import (
	"github.com/spf13/cobra"

	"github.com/orbitrc/orbit/internal/app"
)

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	runBoard := func(cmd *cobra.Command, args []string) error {
		return app.Run(cmd.Context(), ctx.options())
	}

	rootCmd := &cobra.Command{
		Use:           "orbit",
		Short:         "Purchase requisition board",
		Long:          "orbit tracks purchase requisitions on a Kanban board and keeps working when the backend is unreachable.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE:          runBoard,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&ctx.configFlag, "config", "c", "", "Configuration file path")
	flags.StringVar(&ctx.sessionFlag, "session", "", "Session file path (overrides session_path)")
	flags.BoolVar(&ctx.assumeOnline, "assume-online", false, "Skip local network detection")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "board",
		Short: "Open the interactive board",
		Args:  cobra.NoArgs,
		RunE:  runBoard,
	})
	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newListCommand(ctx))
	rootCmd.AddCommand(newMoveCommand(ctx))
	rootCmd.AddCommand(newStatsCommand(ctx))
	rootCmd.AddCommand(newSLACommand(ctx))
	rootCmd.AddCommand(newSampleDataCommand(ctx))
	rootCmd.AddCommand(newDevModeCommand(ctx))
	rootCmd.AddCommand(newEndpointCommand(ctx))
	rootCmd.AddCommand(newWakeCommand(ctx))

	return rootCmd
}

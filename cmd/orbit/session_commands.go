package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/orbitrc/orbit/internal/app"
	"github.com/orbitrc/orbit/internal/health"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Probe the active backend and show connectivity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, func(rt *app.Runtime) error {
				rt.Monitor.Probe(cmd.Context())
				printStatus(cmd, rt)
				return nil
			})
		},
	}
}

func newWakeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "wake",
		Short: "Nudge a sleeping backend and probe it again",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, func(rt *app.Runtime) error {
				if err := rt.Monitor.WakeUp(cmd.Context()); err != nil && !errors.Is(err, health.ErrWakeThrottled) {
					fmt.Fprintf(cmd.ErrOrStderr(), "wake-up request failed: %v\n", err)
				}
				select {
				case <-time.After(rt.Config.WakeDelay):
				case <-cmd.Context().Done():
					return cmd.Context().Err()
				}
				rt.Monitor.Probe(cmd.Context())
				printStatus(cmd, rt)
				return nil
			})
		},
	}
}

func printStatus(cmd *cobra.Command, rt *app.Runtime) {
	state := rt.Monitor.State()
	rows := [][]string{
		{"Connectivity", state.String()},
		{"Active backend", rt.Resolver.Current()},
		{"Primary", rt.Resolver.Primary()},
		{"Fallback", rt.Resolver.Fallback()},
		{"Developer mode", strconv.FormatBool(rt.DeveloperMode())},
		{"Session file", rt.Session.Path()},
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderTable([]string{"Field", "Value"}, rows, nil, isTerminal(out)))
}

func newDevModeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:       "devmode [on|off]",
		Short:     "Show or switch developer mode (no backend calls)",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, func(rt *app.Runtime) error {
				out := cmd.OutOrStdout()
				if len(args) == 1 {
					enabled, err := parseSwitch(args[0])
					if err != nil {
						return err
					}
					if err := rt.Session.SetDevMode(enabled); err != nil {
						return fmt.Errorf("save session: %w", err)
					}
				}
				fmt.Fprintf(out, "developer mode: %s\n", onOff(rt.DeveloperMode()))
				if rt.Config.DeveloperMode && !rt.Session.DevMode() {
					fmt.Fprintln(out, "forced on by configuration")
				}
				return nil
			})
		},
	}
}

func newEndpointCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:       "endpoint [show|reset]",
		Short:     "Show the active backend or reset it to the primary",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"show", "reset"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, func(rt *app.Runtime) error {
				if len(args) == 1 && args[0] == "reset" {
					rt.Resolver.Reset()
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "active:   %s\n", rt.Resolver.Current())
				fmt.Fprintf(out, "primary:  %s\n", rt.Resolver.Primary())
				fmt.Fprintf(out, "fallback: %s\n", rt.Resolver.Fallback())
				return nil
			})
		},
	}
}

func parseSwitch(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "on", "true", "1", "yes":
		return true, nil
	case "off", "false", "0", "no":
		return false, nil
	default:
		return false, fmt.Errorf("expected on or off, got %q", value)
	}
}

func onOff(enabled bool) string {
	if enabled {
		return "on"
	}
	return "off"
}

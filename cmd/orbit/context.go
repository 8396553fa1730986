package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/orbitrc/orbit/internal/app"
)

type commandContext struct {
	configFlag   string
	sessionFlag  string
	assumeOnline bool
}

func (c *commandContext) options() app.Options {
	return app.Options{
		ConfigPath:   strings.TrimSpace(c.configFlag),
		SessionPath:  strings.TrimSpace(c.sessionFlag),
		AssumeOnline: c.assumeOnline,
	}
}

// withRuntime builds a runtime that logs to the command's stderr, runs fn
// and tears the runtime down. Background jobs are not started; commands
// drive the components directly.
func (c *commandContext) withRuntime(cmd *cobra.Command, fn func(rt *app.Runtime) error) error {
	opts := c.options()
	opts.Console = cmd.ErrOrStderr()
	rt, err := app.New(opts)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()
	return fn(rt)
}

package main

import (
	"github.com/spf13/cobra"

	"pty.systems/botty/internal/wire"
)

func newShutdownCmd(cfgPath, socketOverride *string) *cobra.Command {
	return &cobra.Command{
		Use:   "shutdown",
		Short: "Ask a botty server to drain and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClient(cmd, *cfgPath, *socketOverride, wire.Request{Kind: wire.KindShutdown}, func(resp wire.Response) error {
				fprintln(cmd, "shutdown requested")
				return nil
			})
		},
	}
}

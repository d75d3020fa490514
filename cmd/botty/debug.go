package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"pty.systems/botty/internal/wire"
)

func newDebugCmd(cfgPath, socketOverride *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "debug",
		Short: "Debug helpers for botty",
	}
	cmd.AddCommand(newDebugAgentCmd(cfgPath, socketOverride))
	return cmd
}

func newDebugAgentCmd(cfgPath, socketOverride *string) *cobra.Command {
	return &cobra.Command{
		Use:   "agent ID",
		Short: "Dump an agent's raw internal state as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := wire.Request{Kind: wire.KindDebug, Debug: &wire.DebugRequest{ID: args[0]}}
			return runClient(cmd, *cfgPath, *socketOverride, req, func(resp wire.Response) error {
				out, err := json.MarshalIndent(resp.Debug, "", "  ")
				if err != nil {
					return newCliError(exitOther, err)
				}
				fprintln(cmd, string(out))
				return nil
			})
		},
	}
}

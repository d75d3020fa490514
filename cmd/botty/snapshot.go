package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"pty.systems/botty/internal/wire"
)

func newSnapshotCmd(cfgPath, socketOverride *string) *cobra.Command {
	var formatFlag string
	var raw bool
	cmd := &cobra.Command{
		Use:   "snapshot ID",
		Short: "Print an agent's current screen contents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := wire.Request{Kind: wire.KindSnapshot, Snapshot: &wire.SnapshotRequest{
				ID: args[0], Format: formatFlag, Normalize: !raw,
			}}
			return runClient(cmd, *cfgPath, *socketOverride, req, func(resp wire.Response) error {
				if formatFlag == "cells" {
					var cells any
					if err := json.Unmarshal(resp.Bytes, &cells); err != nil {
						return newCliError(exitOther, err)
					}
					out, err := json.Marshal(cells)
					if err != nil {
						return newCliError(exitOther, err)
					}
					fprintln(cmd, string(out))
					return nil
				}
				fprintln(cmd, resp.Text)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&formatFlag, "format", "text", "output format: text|cells")
	cmd.Flags().BoolVar(&raw, "raw", false, "keep color escapes instead of stripping them")
	return cmd
}

package main

import (
	"github.com/spf13/cobra"

	"pty.systems/botty/internal/wire"
)

func newSubscribeCmd(cfgPath, socketOverride *string) *cobra.Command {
	var ids []string
	var labels []string
	var includeOutput bool

	cmd := &cobra.Command{
		Use:   "subscribe [--output] [--id ID ...] [--label L ...]",
		Short: "Stream lifecycle events, optionally including live output bytes",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := wire.Request{ID: newRequestID(), Kind: wire.KindSubscribe, Subscribe: &wire.SubscribeRequest{
				Filter:        wire.FilterWire{IDs: ids, Labels: labels},
				IncludeOutput: includeOutput,
			}}
			return streamAndPrint(cmd, *cfgPath, *socketOverride, req)
		},
	}
	cmd.Flags().StringArrayVar(&ids, "id", nil, "only stream these agent ids (repeatable)")
	cmd.Flags().StringArrayVar(&labels, "label", nil, "only stream agents carrying this label (repeatable)")
	cmd.Flags().BoolVar(&includeOutput, "output", false, "include raw output events, not just lifecycle events")
	return cmd
}

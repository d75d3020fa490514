package main

import (
	"github.com/spf13/cobra"

	"pty.systems/botty/internal/wire"
)

func newResizeCmd(cfgPath, socketOverride *string) *cobra.Command {
	var rows, cols int
	var clear bool
	cmd := &cobra.Command{
		Use:   "resize ID --rows R --cols C",
		Short: "Change an agent's terminal geometry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := wire.Request{Kind: wire.KindResize, Resize: &wire.ResizeRequest{
				ID: args[0], Rows: rows, Cols: cols, ClearTranscript: clear,
			}}
			return runClient(cmd, *cfgPath, *socketOverride, req, func(resp wire.Response) error { return nil })
		},
	}
	cmd.Flags().IntVar(&rows, "rows", 0, "new row count")
	cmd.Flags().IntVar(&cols, "cols", 0, "new column count")
	cmd.Flags().BoolVar(&clear, "clear", false, "clear the transcript after resizing")
	_ = cmd.MarkFlagRequired("rows")
	_ = cmd.MarkFlagRequired("cols")
	return cmd
}

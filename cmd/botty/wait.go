package main

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"pty.systems/botty/internal/wire"
)

var errWaitTimedOut = errors.New("wait timed out")

func newWaitCmd(cfgPath, socketOverride *string) *cobra.Command {
	var contains string
	var regex string
	var stable time.Duration
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "wait ID [--contains S] [--regex R] [--stable MS] [--timeout S]",
		Short: "Block until an agent's transcript satisfies a predicate or it exits",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := wire.Request{Kind: wire.KindWait, Wait: &wire.WaitRequest{
				ID: args[0],
				Predicate: wire.PredicateWire{
					Contains: contains,
					Regex:    regex,
					StableMs: stable.Milliseconds(),
					OnExit:   contains == "" && regex == "" && stable == 0,
				},
				TimeoutMs: timeout.Milliseconds(),
			}}
			return runClient(cmd, *cfgPath, *socketOverride, req, func(resp wire.Response) error {
				if resp.Wait == nil {
					return nil
				}
				fprintln(cmd, resp.Wait.Outcome)
				if resp.Wait.Outcome == "timeout" {
					return newCliError(exitWaitTimeout, errWaitTimedOut)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&contains, "contains", "", "resolve once the transcript contains this substring")
	cmd.Flags().StringVar(&regex, "regex", "", "resolve once the transcript matches this regex")
	cmd.Flags().DurationVar(&stable, "stable", 0, "resolve once output has been quiet for this long")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "give up after this long (0 = no timeout)")
	return cmd
}

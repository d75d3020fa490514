package main

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"pty.systems/botty/internal/wire"
)

var errSpawnRequiresCommand = errors.New("spawn requires a command after --")

func newSpawnCmd(cfgPath, socketOverride *string) *cobra.Command {
	var name string
	var labels []string
	var env []string
	var timeout time.Duration
	var maxOutput int64
	var after []string
	var waitFor []string
	var rows, cols int

	cmd := &cobra.Command{
		Use:   "spawn [flags] -- CMD...",
		Short: "Start a new agent and print its id",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			argv := args
			if idx := cmd.ArgsLenAtDash(); idx >= 0 {
				argv = args[idx:]
			}
			if len(argv) == 0 {
				return newCliError(exitUsage, errSpawnRequiresCommand)
			}
			req := wire.Request{
				Kind: wire.KindSpawn,
				Spawn: &wire.SpawnRequest{
					Name:      name,
					Argv:      argv,
					Labels:    labels,
					Env:       env,
					Rows:      rows,
					Cols:      cols,
					TimeoutMs: timeout.Milliseconds(),
					MaxOutput: maxOutput,
					After:     after,
					WaitFor:   waitFor,
				},
			}
			return runClient(cmd, *cfgPath, *socketOverride, req, func(resp wire.Response) error {
				if resp.Agent != nil {
					fprintln(cmd, resp.Agent.ID)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "human-readable name for the agent")
	cmd.Flags().StringArrayVar(&labels, "label", nil, "attach a label (repeatable)")
	cmd.Flags().StringArrayVar(&env, "env", nil, "set an environment variable as KEY=VALUE (repeatable)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "kill the agent after this long")
	cmd.Flags().Int64Var(&maxOutput, "max-output", 0, "kill the agent once its cumulative output exceeds this many bytes")
	cmd.Flags().StringArrayVar(&after, "after", nil, "wait for these agent ids to exit before starting")
	cmd.Flags().StringArrayVar(&waitFor, "wait-for", nil, "wait for AGENT:PATTERN in another agent's transcript before starting")
	cmd.Flags().IntVar(&rows, "rows", 0, "initial terminal rows (defaults to server geometry default)")
	cmd.Flags().IntVar(&cols, "cols", 0, "initial terminal columns (defaults to server geometry default)")
	return cmd
}

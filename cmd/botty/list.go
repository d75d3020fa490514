package main

import (
	"github.com/spf13/cobra"

	"pty.systems/botty/core"
	"pty.systems/botty/internal/format"
	"pty.systems/botty/internal/wire"
)

func newListCmd(cfgPath, socketOverride *string) *cobra.Command {
	var all bool
	var label string
	var formatFlag string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List live agents (or all retained agents with --all)",
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := format.ParseKind(formatFlag)
			if err != nil {
				return newCliError(exitUsage, err)
			}
			return runClient(cmd, *cfgPath, *socketOverride, wire.Request{Kind: wire.KindList}, func(resp wire.Response) error {
				agents := filterAgents(resp.Agents, all, label)
				out, err := format.Render(kind, agents)
				if err != nil {
					return newCliError(exitOther, err)
				}
				fprintln(cmd, out)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include retained Exited agents")
	cmd.Flags().StringVar(&label, "label", "", "only show agents carrying this label")
	cmd.Flags().StringVar(&formatFlag, "format", "json", "output format: toon|json")
	return cmd
}

func filterAgents(agents []core.Snapshot, all bool, label string) []core.Snapshot {
	out := make([]core.Snapshot, 0, len(agents))
	for _, a := range agents {
		if !all && a.State == "exited" {
			continue
		}
		if label != "" && !hasLabel(a.Labels, label) {
			continue
		}
		out = append(out, a)
	}
	return out
}

func hasLabel(labels []string, label string) bool {
	for _, l := range labels {
		if l == label {
			return true
		}
	}
	return false
}

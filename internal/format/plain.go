// Package format renders agent listings for the CLI's `list --format`
// flag: JSON for machine consumption, TOON for a token-efficient tabular
// form intended for agent-driven callers that would otherwise re-pay
// JSON's per-row key overhead on every list.
package format

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"pty.systems/botty/core"
)

// Kind selects a list rendering.
type Kind string

const (
	KindJSON Kind = "json"
	KindToon Kind = "toon"
)

// ParseKind validates a --format flag value, defaulting to JSON.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case "", KindJSON:
		return KindJSON, nil
	case KindToon:
		return KindToon, nil
	default:
		return "", fmt.Errorf("unsupported format %q (want json or toon)", s)
	}
}

// Render formats a list of agent snapshots per kind.
func Render(kind Kind, agents []core.Snapshot) (string, error) {
	switch kind {
	case KindToon:
		return renderToon(agents), nil
	default:
		data, err := json.MarshalIndent(agents, "", "  ")
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}

// toonFields is the fixed column set list rendering emits; wait/dump/tail
// results don't flow through this renderer, only `list`.
var toonFields = []string{"id", "pid", "state", "rows", "cols", "argv"}

// renderToon emits TOON's tabular shape: a header naming the array length
// and shared field set, then one indented row per record with values
// joined by commas — the array-of-uniform-objects table form, not the
// nested key:value form TOON also allows for divergent objects.
func renderToon(agents []core.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "agents[%d]{%s}:\n", len(agents), strings.Join(toonFields, ","))
	for _, a := range agents {
		row := []string{
			toonEscape(a.ID),
			strconv.Itoa(a.PID),
			a.State,
			strconv.Itoa(a.Rows),
			strconv.Itoa(a.Cols),
			toonEscape(strings.Join(a.Argv, " ")),
		}
		fmt.Fprintf(&b, "  %s\n", strings.Join(row, ","))
	}
	return strings.TrimRight(b.String(), "\n")
}

// toonEscape quotes a field value if it would otherwise be ambiguous with
// the comma delimiter.
func toonEscape(s string) string {
	if strings.ContainsAny(s, ",\n\"") {
		return strconv.Quote(s)
	}
	if s == "" {
		return `""`
	}
	return s
}

package sshview

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	gliderssh "github.com/gliderlabs/ssh"

	"pty.systems/botty/core"
	"pty.systems/botty/internal/eventbus"
	"pkt.systems/pslog"
)

const refreshInterval = 500 * time.Millisecond

// viewerSession renders one SSH client's view: a tab bar of live agent ids
// plus the selected agent's current screen. Cycling tabs and periodic
// output events are the only things that trigger a redraw; keystrokes are
// never forwarded to a PTY.
type viewerSession struct {
	sess     gliderssh.Session
	registry *core.Registry
	bus      *eventbus.Bus
	log      pslog.Logger

	width, height int
	activeID      string
	dirty         bool
}

func newViewerSession(sess gliderssh.Session, registry *core.Registry, bus *eventbus.Bus, log pslog.Logger) *viewerSession {
	return &viewerSession{sess: sess, registry: registry, bus: bus, log: log, width: 80, height: 24}
}

func (v *viewerSession) SetSize(width, height int) {
	if width <= 0 {
		width = 80
	}
	if height <= 0 {
		height = 24
	}
	v.width, v.height = width, height
}

func (v *viewerSession) Run(ctx context.Context, winCh <-chan gliderssh.Window) error {
	_, _ = io.WriteString(v.sess, "\x1b[?1049h\x1b[H\x1b[2J")
	defer func() { _, _ = io.WriteString(v.sess, "\x1b[?1049l\x1b[?25h") }()

	var unsubscribe func()
	var events <-chan eventbus.Event
	if v.bus != nil {
		events, unsubscribe = v.bus.Subscribe(eventbus.Filter{})
		defer unsubscribe()
	}

	keys := make(chan key, 16)
	go readKeys(v.sess, keys)

	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	v.render()
	for {
		select {
		case <-ctx.Done():
			return nil
		case k, ok := <-keys:
			if !ok {
				return nil
			}
			if v.handleKey(k) {
				return nil
			}
		case win, ok := <-winCh:
			if ok {
				v.SetSize(win.Width, win.Height)
				v.dirty = true
			}
		case ev, ok := <-events:
			if !ok {
				events = nil
				break
			}
			if ev.AgentID == v.activeID || ev.Kind == eventbus.KindAgentSpawned || ev.Kind == eventbus.KindAgentExited {
				v.dirty = true
			}
		case <-ticker.C:
			v.dirty = true
		}
		if v.dirty {
			v.render()
			v.dirty = false
		}
	}
}

func (v *viewerSession) handleKey(k key) bool {
	switch k.kind {
	case keyCtrlC:
		return true
	case keyRune:
		if k.r == 'q' {
			return true
		}
		if k.r >= '1' && k.r <= '9' {
			v.selectByIndex(int(k.r - '1'))
		}
	case keyTab:
		v.cycleTab(1)
	case keyShiftTab:
		v.cycleTab(-1)
	}
	return false
}

func (v *viewerSession) liveAgentIDs() []string {
	agents := v.registry.List()
	ids := make([]string, 0, len(agents))
	for _, a := range agents {
		if a.State() == core.Exited {
			continue
		}
		ids = append(ids, a.ID)
	}
	sort.Strings(ids)
	return ids
}

func (v *viewerSession) selectByIndex(idx int) {
	ids := v.liveAgentIDs()
	if idx < 0 || idx >= len(ids) {
		return
	}
	if ids[idx] != v.activeID {
		v.activeID = ids[idx]
		v.dirty = true
	}
}

func (v *viewerSession) cycleTab(step int) {
	ids := v.liveAgentIDs()
	if len(ids) == 0 {
		v.activeID = ""
		return
	}
	current := 0
	for i, id := range ids {
		if id == v.activeID {
			current = i
			break
		}
	}
	next := (current + step + len(ids)) % len(ids)
	v.activeID = ids[next]
	v.dirty = true
}

func (v *viewerSession) render() {
	ids := v.liveAgentIDs()
	if v.activeID == "" && len(ids) > 0 {
		v.activeID = ids[0]
	}

	var b strings.Builder
	b.WriteString("\x1b[?25l\x1b[H\x1b[2J")
	b.WriteString(renderTabBar(ids, v.activeID, v.width))
	b.WriteString("\r\n")

	agent, err := v.registry.Get(v.activeID)
	if err != nil {
		b.WriteString(ansiFgRGB(defaultTheme.MetaFG))
		b.WriteString("no live agents")
		b.WriteString(ansiReset)
	} else {
		b.Write(agent.Screen.RenderFullScreen())
	}
	b.WriteString("\x1b[?25h")
	if _, werr := io.WriteString(v.sess, b.String()); werr != nil {
		v.log.With("agent", v.activeID).Warn("viewer write failed", "error", werr)
	}
}

func renderTabBar(ids []string, active string, width int) string {
	if width <= 0 {
		width = 80
	}
	barStyle := ansiBgRGB(defaultTheme.TabBarBG) + ansiFgRGB(defaultTheme.TabInactiveFG)
	activeStyle := ansiBgRGB(defaultTheme.TabActiveBG) + ansiFgRGB(defaultTheme.TabActiveFG) + ansiBold
	inactiveStyle := ansiBgRGB(defaultTheme.TabInactiveBG) + ansiFgRGB(defaultTheme.TabInactiveFG)

	var b strings.Builder
	b.WriteString(barStyle)
	if len(ids) == 0 {
		b.WriteString(inactiveStyle)
		b.WriteString(" no agents ")
		b.WriteString(barStyle)
	} else {
		used := 0
		for i, id := range ids {
			label := fmt.Sprintf(" %d:%s ", i+1, truncateName(id, 12))
			labelWidth := utf8.RuneCountInString(label)
			if used+labelWidth > width {
				break
			}
			if id == active {
				b.WriteString(activeStyle)
			} else {
				b.WriteString(inactiveStyle)
			}
			b.WriteString(label)
			b.WriteString(barStyle)
			used += labelWidth
		}
		if used < width {
			b.WriteString(strings.Repeat(" ", width-used))
		}
	}
	b.WriteString(ansiReset)
	return b.String()
}

func truncateName(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max-1]) + "…"
}

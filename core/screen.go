package core

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/charmbracelet/x/ansi"
)

// Attr holds the SGR attributes in effect for a cell.
type Attr struct {
	FG        int32
	BG        int32
	Bold      bool
	Faint     bool
	Italic    bool
	Underline bool
	Blink     bool
	Reverse   bool
	Strike    bool
	FGSet     bool
	BGSet     bool
}

// Cell is one grid position: a rune plus the attributes it was written with.
type Cell struct {
	Rune rune
	Attr Attr
}

var blankCell = Cell{Rune: ' '}

// Screen is a virtual terminal grid driven by a byte-oriented VT100/xterm
// subset parser (vtparser.go). It tracks cursor position, alternate
// screen, saved-cursor state, and a DECSTBM scroll region, and offers
// snapshotting for CLI consumption and full-state replay for Attach.
type Screen struct {
	mu sync.Mutex

	rows, cols int
	grid       [][]Cell
	altGrid    [][]Cell
	altScreen  bool

	cur      cursor
	saved    cursor
	altSaved cursor

	scrollTop, scrollBottom int // inclusive, 0-based
	cursorVisible           bool
	title                   string

	parser *vtParser
}

type cursor struct {
	row, col int
	attr     Attr
}

// NewScreen constructs a Screen of the given geometry, defaulting to 24x80.
func NewScreen(rows, cols int) *Screen {
	if rows <= 0 {
		rows = DefaultSize.Rows
	}
	if cols <= 0 {
		cols = DefaultSize.Cols
	}
	s := &Screen{
		rows:          rows,
		cols:          cols,
		grid:          newGrid(rows, cols),
		altGrid:       newGrid(rows, cols),
		scrollTop:     0,
		scrollBottom:  rows - 1,
		cursorVisible: true,
	}
	s.parser = newVTParser(s)
	return s
}

func newGrid(rows, cols int) [][]Cell {
	g := make([][]Cell, rows)
	for r := range g {
		row := make([]Cell, cols)
		for c := range row {
			row[c] = blankCell
		}
		g[r] = row
	}
	return g
}

// Write feeds raw PTY output bytes through the VT parser.
func (s *Screen) Write(b []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parser.feed(b)
}

func (s *Screen) activeGrid() [][]Cell {
	if s.altScreen {
		return s.altGrid
	}
	return s.grid
}

// Resize changes grid dimensions in place. Historical content above the
// new row count, or to the right of the new column count, is dropped
// without rewrapping, per the resize policy: geometry changes are cheap
// and lossy, not a reflow engine.
func (s *Screen) Resize(rows, cols int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grid = resizeGrid(s.grid, rows, cols)
	s.altGrid = resizeGrid(s.altGrid, rows, cols)
	s.rows, s.cols = rows, cols
	s.scrollTop = 0
	s.scrollBottom = rows - 1
	if s.cur.row >= rows {
		s.cur.row = rows - 1
	}
	if s.cur.col >= cols {
		s.cur.col = cols - 1
	}
}

func resizeGrid(old [][]Cell, rows, cols int) [][]Cell {
	g := newGrid(rows, cols)
	for r := 0; r < rows && r < len(old); r++ {
		for c := 0; c < cols && c < len(old[r]); c++ {
			g[r][c] = old[r][c]
		}
	}
	return g
}

// SnapshotOpts controls text snapshot formatting.
type SnapshotOpts struct {
	StripColor bool
	Replace    []ReplaceRule
}

// ReplaceRule is a regex substitution applied in order, e.g. to redact
// timestamps or PIDs from a snapshot for deterministic comparisons.
type ReplaceRule struct {
	Pattern     *regexp.Regexp
	Replacement string
}

// SnapshotText composes the visible grid into logical lines, trimming
// trailing spaces per row.
func (s *Screen) SnapshotText(opts SnapshotOpts) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	grid := s.activeGrid()
	lines := make([]string, len(grid))
	for r, row := range grid {
		var b strings.Builder
		for _, cell := range row {
			if opts.StripColor || cell.Attr == (Attr{}) {
				b.WriteRune(cell.Rune)
				continue
			}
			b.WriteString(sgrPrefix(cell.Attr))
			b.WriteRune(cell.Rune)
			b.WriteString("\x1b[0m")
		}
		lines[r] = strings.TrimRight(b.String(), " ")
	}
	text := strings.Join(lines, "\n")
	if opts.StripColor {
		text = ansi.Strip(text)
	}
	for _, rule := range opts.Replace {
		text = rule.Pattern.ReplaceAllString(text, rule.Replacement)
	}
	return text
}

// SnapshotCells returns the raw grid, for structured/JSON consumers.
func (s *Screen) SnapshotCells() [][]Cell {
	s.mu.Lock()
	defer s.mu.Unlock()
	grid := s.activeGrid()
	out := make([][]Cell, len(grid))
	for r, row := range grid {
		out[r] = append([]Cell(nil), row...)
	}
	return out
}

// RenderFullScreen emits a self-contained escape sequence that, replayed on
// a fresh terminal of the current size, reproduces the visible state:
// alt-screen entry if active, clear, per-row cursor-move + SGR + text,
// final cursor position, and cursor visibility. Idempotent for equal-size
// terminals.
func (s *Screen) RenderFullScreen() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	var b strings.Builder
	if s.altScreen {
		b.WriteString("\x1b[?1049h")
	}
	b.WriteString("\x1b[2J\x1b[H")
	grid := s.activeGrid()
	var lastAttr Attr
	haveAttr := false
	for r, row := range grid {
		fmt.Fprintf(&b, "\x1b[%d;1H", r+1)
		for _, cell := range row {
			if !haveAttr || cell.Attr != lastAttr {
				b.WriteString(sgrPrefix(cell.Attr))
				lastAttr = cell.Attr
				haveAttr = true
			}
			b.WriteRune(cell.Rune)
		}
		b.WriteString("\x1b[0m")
		haveAttr = false
	}
	fmt.Fprintf(&b, "\x1b[%d;%dH", s.cur.row+1, s.cur.col+1)
	if s.cursorVisible {
		b.WriteString("\x1b[?25h")
	} else {
		b.WriteString("\x1b[?25l")
	}
	return []byte(b.String())
}

// sgrPrefix renders a minimal SGR sequence for the given attributes.
func sgrPrefix(a Attr) string {
	if a == (Attr{}) {
		return "\x1b[0m"
	}
	parts := []string{"0"}
	if a.Bold {
		parts = append(parts, "1")
	}
	if a.Faint {
		parts = append(parts, "2")
	}
	if a.Italic {
		parts = append(parts, "3")
	}
	if a.Underline {
		parts = append(parts, "4")
	}
	if a.Blink {
		parts = append(parts, "5")
	}
	if a.Reverse {
		parts = append(parts, "7")
	}
	if a.Strike {
		parts = append(parts, "9")
	}
	if a.FGSet {
		parts = append(parts, sgrColor(30, a.FG))
	}
	if a.BGSet {
		parts = append(parts, sgrColor(40, a.BG))
	}
	return "\x1b[" + strings.Join(parts, ";") + "m"
}

func sgrColor(base int, color int32) string {
	if color&truecolorFlag != 0 {
		r := (color >> 16) & 0xff
		g := (color >> 8) & 0xff
		b := color & 0xff
		return fmt.Sprintf("%d;2;%d;%d;%d", base+8, r, g, b)
	}
	if color >= 0 && color <= 7 {
		return fmt.Sprintf("%d", base+int(color))
	}
	if color >= 8 && color <= 15 {
		return fmt.Sprintf("%d;1", base+int(color)-8)
	}
	return fmt.Sprintf("%d;5;%d", base+8, color)
}

// Title returns the most recent OSC-0/2 window title, if any was seen.
func (s *Screen) Title() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.title
}

// AltScreen reports whether the alternate screen buffer is active.
func (s *Screen) AltScreen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.altScreen
}

// Cursor returns the current cursor row/col (0-based) and visibility.
func (s *Screen) Cursor() (row, col int, visible bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur.row, s.cur.col, s.cursorVisible
}

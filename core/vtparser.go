package core

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// truecolorFlag marks a packed Attr color as 24-bit RGB (SGR 38;2/48;2)
// rather than a palette index, since a bare int32 can't otherwise tell a
// large palette index from an (r,g,b) triple. Bit 24 is free for this: the
// widest legal palette index is 255.
const truecolorFlag = int32(1 << 24)

// vtParser is a byte-oriented VT100/xterm-subset state machine feeding a
// Screen's grid. It implements the sequences a terminal-native agent
// actually emits in practice: SGR, cursor movement, erase-in-display/line,
// alt-screen, cursor visibility, save/restore cursor, and DECSTBM. OSC and
// DCS payloads are absorbed (OSC 0/2 updates the title; nothing else acts
// on their content). This is deliberately not a general-purpose emulator:
// unrecognized CSI finals are swallowed silently rather than crashing the
// pump on an agent that emits something exotic.
type vtParser struct {
	s *Screen

	state parserState
	// csi collects parameter bytes (digits and ';') and intermediates
	// until a final byte 0x40-0x7e terminates the sequence.
	csi strings.Builder
	// oscBuf collects an OSC payload until BEL or ST terminates it.
	oscBuf strings.Builder
	// private is true if the CSI sequence began with '?'.
	private bool
	// escIntermediate holds a pending intermediate byte after ESC, e.g. '('.
	escIntermediate byte
}

type parserState int

const (
	stateGround parserState = iota
	stateEscape
	stateCSI
	stateOSC
	stateOSCEsc
	stateDCS
	stateDCSEsc
)

func newVTParser(s *Screen) *vtParser {
	return &vtParser{s: s}
}

func (p *vtParser) feed(data []byte) {
	for i := 0; i < len(data); {
		// While in ground state and looking at a printable lead byte, decode
		// one full grapheme with ansi.DecodeSequence rather than stepping a
		// single byte at a time: a byte-at-a-time putRune mishandles any
		// multi-byte UTF-8 text a PTY writes (box-drawing glyphs, accents,
		// emoji), rendering it as several garbled single-byte cells. CSI/OSC
		// boundary-finding stays on the hand-rolled byte state machine below:
		// it only ever needs one byte of lookahead, so it survives an escape
		// sequence split arbitrarily across two pump reads by construction,
		// which is not a guarantee this code relies on DecodeSequence for.
		if p.state == stateGround && data[i] >= 0x20 {
			seq, width, n, _ := ansi.DecodeSequence(data[i:], 0, nil)
			if n > 0 && width > 0 {
				for _, r := range string(seq) {
					p.putRune(r)
				}
				i += n
				continue
			}
		}
		p.step(data[i])
		i++
	}
}

func (p *vtParser) step(b byte) {
	switch p.state {
	case stateGround:
		p.ground(b)
	case stateEscape:
		p.escape(b)
	case stateCSI:
		p.stepCSI(b)
	case stateOSC:
		p.stepOSC(b)
	case stateOSCEsc:
		if b == '\\' {
			p.finishOSC()
			p.state = stateGround
		} else {
			p.oscBuf.WriteByte(0x1b)
			p.oscBuf.WriteByte(b)
			p.state = stateOSC
		}
	case stateDCS:
		if b == 0x1b {
			p.state = stateDCSEsc
		}
	case stateDCSEsc:
		if b == '\\' {
			p.state = stateGround
		} else {
			p.state = stateDCS
		}
	}
}

func (p *vtParser) ground(b byte) {
	switch b {
	case 0x1b:
		p.state = stateEscape
	case '\r':
		p.s.cur.col = 0
	case '\n':
		p.lineFeed()
	case '\b':
		if p.s.cur.col > 0 {
			p.s.cur.col--
		}
	case '\t':
		next := (p.s.cur.col/8 + 1) * 8
		if next >= p.s.cols {
			next = p.s.cols - 1
		}
		p.s.cur.col = next
	default:
		if b >= 0x20 {
			p.putRune(rune(b))
		}
	}
}

func (p *vtParser) escape(b byte) {
	if p.escIntermediate != 0 {
		// b designates the charset for a preceding ESC ( or ESC ); swallow it.
		p.escIntermediate = 0
		p.state = stateGround
		return
	}
	switch b {
	case '[':
		p.state = stateCSI
		p.csi.Reset()
		p.private = false
	case ']':
		p.state = stateOSC
		p.oscBuf.Reset()
	case 'P':
		p.state = stateDCS
	case '7':
		p.s.saved = p.s.cur
		p.state = stateGround
	case '8':
		p.s.cur = p.s.saved
		p.state = stateGround
	case '(', ')':
		p.escIntermediate = b // stay in stateEscape: next byte selects charset; we don't act on it
	default:
		p.state = stateGround
	}
}

func (p *vtParser) stepCSI(b byte) {
	if b == '?' && p.csi.Len() == 0 {
		p.private = true
		return
	}
	if b >= 0x40 && b <= 0x7e {
		p.dispatchCSI(b)
		p.state = stateGround
		return
	}
	p.csi.WriteByte(b)
}

func (p *vtParser) stepOSC(b byte) {
	switch b {
	case 0x07:
		p.finishOSC()
		p.state = stateGround
	case 0x1b:
		p.state = stateOSCEsc
	default:
		p.oscBuf.WriteByte(b)
	}
}

func (p *vtParser) finishOSC() {
	payload := p.oscBuf.String()
	if idx := strings.IndexByte(payload, ';'); idx >= 0 {
		code := payload[:idx]
		if code == "0" || code == "2" {
			p.s.title = payload[idx+1:]
		}
	}
}

func (p *vtParser) params() []int {
	raw := p.csi.String()
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ";")
	out := make([]int, len(parts))
	for i, part := range parts {
		if part == "" {
			out[i] = -1
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			out[i] = -1
			continue
		}
		out[i] = n
	}
	return out
}

func param(params []int, idx, def int) int {
	if idx >= len(params) || params[idx] < 0 {
		return def
	}
	return params[idx]
}

func (p *vtParser) dispatchCSI(final byte) {
	params := p.params()
	s := p.s
	switch final {
	case 'H', 'f':
		row := param(params, 0, 1) - 1
		col := param(params, 1, 1) - 1
		s.cur.row = clamp(row, 0, s.rows-1)
		s.cur.col = clamp(col, 0, s.cols-1)
	case 'A':
		s.cur.row = clamp(s.cur.row-param(params, 0, 1), s.scrollTop, s.rows-1)
	case 'B':
		s.cur.row = clamp(s.cur.row+param(params, 0, 1), 0, s.rows-1)
	case 'C':
		s.cur.col = clamp(s.cur.col+param(params, 0, 1), 0, s.cols-1)
	case 'D':
		s.cur.col = clamp(s.cur.col-param(params, 0, 1), 0, s.cols-1)
	case 'G':
		s.cur.col = clamp(param(params, 0, 1)-1, 0, s.cols-1)
	case 'd':
		s.cur.row = clamp(param(params, 0, 1)-1, 0, s.rows-1)
	case 'J':
		p.eraseInDisplay(param(params, 0, 0))
	case 'K':
		p.eraseInLine(param(params, 0, 0))
	case 'r':
		top := param(params, 0, 1) - 1
		bottom := param(params, 1, s.rows) - 1
		if top < 0 {
			top = 0
		}
		if bottom >= s.rows {
			bottom = s.rows - 1
		}
		if top < bottom {
			s.scrollTop, s.scrollBottom = top, bottom
		}
	case 's':
		s.saved = s.cur
	case 'u':
		s.cur = s.saved
	case 'm':
		p.applySGR(params)
	case 'h':
		p.setMode(params, true)
	case 'l':
		p.setMode(params, false)
	default:
		// Unrecognized final: absorbed without effect.
	}
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (p *vtParser) setMode(params []int, enable bool) {
	s := p.s
	if !p.private {
		return
	}
	for _, mode := range params {
		switch mode {
		case 1049:
			if enable && !s.altScreen {
				s.altSaved = s.cur
				s.altGrid = newGrid(s.rows, s.cols)
				s.cur.row, s.cur.col = 0, 0
			}
			s.altScreen = enable
			if !enable {
				s.cur = s.altSaved
			}
		case 25:
			s.cursorVisible = enable
		}
	}
}

func (p *vtParser) eraseInDisplay(mode int) {
	s := p.s
	grid := s.activeGrid()
	switch mode {
	case 0:
		p.eraseInLine(0)
		for r := s.cur.row + 1; r < s.rows; r++ {
			clearRow(grid[r])
		}
	case 1:
		p.eraseInLine(1)
		for r := 0; r < s.cur.row; r++ {
			clearRow(grid[r])
		}
	case 2, 3:
		for r := range grid {
			clearRow(grid[r])
		}
	}
}

func (p *vtParser) eraseInLine(mode int) {
	s := p.s
	grid := s.activeGrid()
	row := grid[s.cur.row]
	switch mode {
	case 0:
		for c := s.cur.col; c < len(row); c++ {
			row[c] = blankCell
		}
	case 1:
		for c := 0; c <= s.cur.col && c < len(row); c++ {
			row[c] = blankCell
		}
	case 2:
		clearRow(row)
	}
}

func clearRow(row []Cell) {
	for i := range row {
		row[i] = blankCell
	}
}

func (p *vtParser) applySGR(params []int) {
	a := &p.s.cur.attr
	if len(params) == 0 {
		*a = Attr{}
		return
	}
	for i := 0; i < len(params); i++ {
		code := params[i]
		if code < 0 {
			code = 0
		}
		switch {
		case code == 0:
			*a = Attr{}
		case code == 1:
			a.Bold = true
		case code == 2:
			a.Faint = true
		case code == 3:
			a.Italic = true
		case code == 4:
			a.Underline = true
		case code == 5:
			a.Blink = true
		case code == 7:
			a.Reverse = true
		case code == 9:
			a.Strike = true
		case code == 22:
			a.Bold, a.Faint = false, false
		case code == 23:
			a.Italic = false
		case code == 24:
			a.Underline = false
		case code == 25:
			a.Blink = false
		case code == 27:
			a.Reverse = false
		case code == 29:
			a.Strike = false
		case code >= 30 && code <= 37:
			a.FG, a.FGSet = int32(code-30), true
		case code == 38:
			n, consumed := p.extendedColor(params[i+1:])
			a.FG, a.FGSet = n, true
			i += consumed
		case code == 39:
			a.FGSet = false
		case code >= 40 && code <= 47:
			a.BG, a.BGSet = int32(code-40), true
		case code == 48:
			n, consumed := p.extendedColor(params[i+1:])
			a.BG, a.BGSet = n, true
			i += consumed
		case code == 49:
			a.BGSet = false
		case code >= 90 && code <= 97:
			a.FG, a.FGSet = int32(code-90+8), true
		case code >= 100 && code <= 107:
			a.BG, a.BGSet = int32(code-100+8), true
		}
	}
}

// extendedColor parses the tail of a 38/48 SGR sequence (5;n or 2;r;g;b),
// returning the resolved index/RGB packed into an int32 and how many
// params it consumed.
func (p *vtParser) extendedColor(rest []int) (int32, int) {
	if len(rest) == 0 {
		return 0, 0
	}
	switch rest[0] {
	case 5:
		if len(rest) >= 2 {
			return int32(rest[1]), 2
		}
	case 2:
		if len(rest) >= 4 {
			r, g, b := rest[1], rest[2], rest[3]
			return truecolorFlag | int32(r<<16|g<<8|b), 4
		}
	}
	return 0, len(rest)
}

func (p *vtParser) putRune(r rune) {
	s := p.s
	grid := s.activeGrid()
	if s.cur.col >= s.cols {
		s.cur.col = 0
		p.lineFeed()
		grid = s.activeGrid()
	}
	grid[s.cur.row][s.cur.col] = Cell{Rune: r, Attr: s.cur.attr}
	s.cur.col++
}

func (p *vtParser) lineFeed() {
	s := p.s
	if s.cur.row == s.scrollBottom {
		p.scrollUp()
		return
	}
	if s.cur.row < s.rows-1 {
		s.cur.row++
	}
}

func (p *vtParser) scrollUp() {
	s := p.s
	grid := s.activeGrid()
	for r := s.scrollTop; r < s.scrollBottom; r++ {
		grid[r] = grid[r+1]
	}
	newRow := make([]Cell, s.cols)
	for c := range newRow {
		newRow[c] = blankCell
	}
	grid[s.scrollBottom] = newRow
}

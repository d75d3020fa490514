package core

import "testing"

func TestScreenWritesPlainText(t *testing.T) {
	s := NewScreen(3, 10)
	s.Write([]byte("hello"))
	text := s.SnapshotText(SnapshotOpts{StripColor: true})
	lines := splitLines(text)
	if lines[0] != "hello" {
		t.Fatalf("expected first line %q, got %q", "hello", lines[0])
	}
}

func TestScreenHandlesCursorMovementAndErase(t *testing.T) {
	s := NewScreen(3, 10)
	s.Write([]byte("abcdef"))
	s.Write([]byte("\x1b[1;1H")) // home
	s.Write([]byte("\x1b[K"))    // erase to end of line
	text := s.SnapshotText(SnapshotOpts{StripColor: true})
	lines := splitLines(text)
	if lines[0] != "" {
		t.Fatalf("expected line cleared, got %q", lines[0])
	}
}

func TestScreenAltScreenToggle(t *testing.T) {
	s := NewScreen(3, 20)
	s.Write([]byte("main screen"))
	s.Write([]byte("\x1b[?1049h"))
	if !s.AltScreen() {
		t.Fatalf("expected alt screen active after ?1049h")
	}
	s.Write([]byte("alt content"))
	altText := s.SnapshotText(SnapshotOpts{StripColor: true})
	if splitLines(altText)[0] != "alt content" {
		t.Fatalf("expected alt buffer content, got %q", altText)
	}
	s.Write([]byte("\x1b[?1049l"))
	if s.AltScreen() {
		t.Fatalf("expected alt screen inactive after ?1049l")
	}
	mainText := s.SnapshotText(SnapshotOpts{StripColor: true})
	if splitLines(mainText)[0] != "main screen" {
		t.Fatalf("expected main buffer preserved across alt-screen round trip, got %q", mainText)
	}
}

func TestScreenCursorVisibility(t *testing.T) {
	s := NewScreen(3, 10)
	_, _, visible := s.Cursor()
	if !visible {
		t.Fatalf("expected cursor visible by default")
	}
	s.Write([]byte("\x1b[?25l"))
	if _, _, visible := s.Cursor(); visible {
		t.Fatalf("expected cursor hidden after ?25l")
	}
}

func TestScreenScrollRegion(t *testing.T) {
	s := NewScreen(3, 10)
	s.Write([]byte("\x1b[1;2r")) // scroll region rows 1-2 (0-based rows 0-1)
	s.Write([]byte("line1\r\n"))
	s.Write([]byte("line2\r\n"))
	s.Write([]byte("line3"))
	text := s.SnapshotText(SnapshotOpts{StripColor: true})
	lines := splitLines(text)
	if lines[0] != "line2" || lines[1] != "line3" {
		t.Fatalf("expected scroll region to shift line1 out and line3 in, got lines=%v", lines)
	}
	if lines[2] != "" {
		t.Fatalf("expected row outside the scroll region untouched, got %q", lines[2])
	}
}

func TestScreenHandlesMultiByteUTF8(t *testing.T) {
	s := NewScreen(3, 10)
	s.Write([]byte("café ──"))
	text := s.SnapshotText(SnapshotOpts{StripColor: true})
	lines := splitLines(text)
	if lines[0] != "café ──" {
		t.Fatalf("expected multi-byte UTF-8 to decode as whole runes, got %q", lines[0])
	}
}

func TestScreenRenderFullScreenIsIdempotentSize(t *testing.T) {
	s := NewScreen(2, 5)
	s.Write([]byte("hi"))
	a := s.RenderFullScreen()
	b := s.RenderFullScreen()
	if string(a) != string(b) {
		t.Fatalf("expected RenderFullScreen to be deterministic for unchanged state")
	}
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	lines = append(lines, s[start:])
	return lines
}

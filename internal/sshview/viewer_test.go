package sshview

import (
	"strings"
	"testing"
)

func TestRenderTabBarMarksActive(t *testing.T) {
	out := renderTabBar([]string{"alpha", "beta"}, "beta", 40)
	if out == "" {
		t.Fatalf("expected non-empty tab bar")
	}
	if !strings.Contains(out, "1:alpha") || !strings.Contains(out, "2:beta") {
		t.Fatalf("expected both tab labels, got %q", out)
	}
	active := ansiBgRGB(defaultTheme.TabActiveBG) + ansiFgRGB(defaultTheme.TabActiveFG) + ansiBold
	if !strings.Contains(out, active+" 2:beta ") || strings.Contains(out, active+" 1:alpha ") {
		t.Fatalf("expected only the beta tab to carry the active style, got %q", out)
	}
}

func TestRenderTabBarEmpty(t *testing.T) {
	out := renderTabBar(nil, "", 20)
	if !strings.Contains(out, "no agents") {
		t.Fatalf("expected placeholder label, got %q", out)
	}
}

func TestTruncateNameShortensLongIDs(t *testing.T) {
	got := truncateName("abcdefghijklmnop", 6)
	if len([]rune(got)) != 6 {
		t.Fatalf("expected truncated length 6, got %q (%d)", got, len([]rune(got)))
	}
}

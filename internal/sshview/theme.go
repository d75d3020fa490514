package sshview

import "strconv"

// rgb is a truecolor triple, used for the tab bar since the underlying
// Agent screens already carry their own SGR state.
type rgb struct {
	r int
	g int
	b int
}

type viewerTheme struct {
	TabBarBG      rgb
	TabActiveBG   rgb
	TabActiveFG   rgb
	TabInactiveBG rgb
	TabInactiveFG rgb
	MetaFG        rgb
}

const (
	ansiReset = "\x1b[0m"
	ansiBold  = "\x1b[1m"
)

// defaultTheme is the only palette botty's viewer ships; the teacher's
// multi-theme selection served per-user preference, which has no analogue
// for a shared read-only operator console.
var defaultTheme = viewerTheme{
	TabBarBG:      rgb{r: 26, g: 27, b: 38},
	TabActiveBG:   rgb{r: 122, g: 162, b: 247},
	TabActiveFG:   rgb{r: 26, g: 27, b: 38},
	TabInactiveBG: rgb{r: 26, g: 27, b: 38},
	TabInactiveFG: rgb{r: 192, g: 202, b: 245},
	MetaFG:        rgb{r: 127, g: 133, b: 163},
}

func ansiFgRGB(c rgb) string {
	return "\x1b[38;2;" + strconv.Itoa(c.r) + ";" + strconv.Itoa(c.g) + ";" + strconv.Itoa(c.b) + "m"
}

func ansiBgRGB(c rgb) string {
	return "\x1b[48;2;" + strconv.Itoa(c.r) + ";" + strconv.Itoa(c.g) + ";" + strconv.Itoa(c.b) + "m"
}

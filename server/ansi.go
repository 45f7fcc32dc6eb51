package server

import "regexp"

// ansiEscapeRE matches CSI-style ANSI control sequences (color codes,
// cursor movement) that a container's raw log stream may contain.
var ansiEscapeRE = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

func stripANSI(s string) string {
	return ansiEscapeRE.ReplaceAllString(s, "")
}

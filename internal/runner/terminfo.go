package runner

import (
	"os"
	"strings"
)

// Terminals whose terminfo entry is often missing on the host but which
// behave like xterm-256color.
var termAliases = map[string]string{
	"xterm-ghostty": "xterm-256color",
	"xterm-kitty":   "xterm-256color",
	"wezterm":       "xterm-256color",
}

// normalizeTERMForBubbleTea swaps TERM for a widely installed equivalent
// while a Bubble Tea program runs. The returned func restores it.
func normalizeTERMForBubbleTea() func() {
	prev, existed := os.LookupEnv("TERM")
	alias, ok := termAliases[strings.ToLower(strings.TrimSpace(prev))]
	if !existed || !ok {
		return func() {}
	}
	_ = os.Setenv("TERM", alias)
	return func() { _ = os.Setenv("TERM", prev) }
}

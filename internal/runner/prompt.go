package runner

import (
	"context"
	"io"
)

// Confirmation is a yes/no question about a destructive action.
type Confirmation struct {
	Title string
	// Items lists what the action affects, one per line.
	Items []string
}

type confirmPrompter interface {
	Confirm(ctx context.Context, c Confirmation) (bool, error)
}

// newPrompter prefers the Bubble Tea card and falls back to a plain
// line-based prompt when in or out is not a file.
func newPrompter(in io.Reader, out io.Writer, projectDir string) confirmPrompter {
	if canUseBubbleTea(in, out) {
		return newBubbleTeaPrompter(in, out, projectDir)
	}
	return newTerminalPrompter(in, out)
}

package docker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

// BuildOptions configures an image build whose context is streamed on stdin.
type BuildOptions struct {
	Tag     string
	Context io.Reader
	Labels  map[string]string
	// NoCache disables docker's own layer cache.
	NoCache bool
	// Progress receives each non-empty line of build output as it arrives.
	Progress func(line string)
}

// ImageExists reports whether an image with the given reference is present
// in the local image store.
func (c *Client) ImageExists(ctx context.Context, ref string) (bool, error) {
	if _, err := c.output(ctx, "image", "inspect", "--format", "{{.Id}}", ref); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// BuildImage runs docker build reading the (optionally compressed) build
// context from opts.Context. Docker only applies the tag once every step has
// succeeded.
func (c *Client) BuildImage(ctx context.Context, opts BuildOptions) error {
	if strings.TrimSpace(opts.Tag) == "" {
		return errors.New("build tag required")
	}
	if opts.Context == nil {
		return errors.New("build context required")
	}

	args := []string{"build", "--progress=plain", "--force-rm", "-t", opts.Tag}
	if opts.NoCache {
		args = append(args, "--no-cache")
	}
	args = append(args, labelArgs(opts.Labels)...)
	args = append(args, "-")

	tail := newTailWriter(opts.Progress, 20)
	code, err := c.stream(ctx, Stream{Stdin: opts.Context, Stdout: tail, Stderr: tail}, args...)
	tail.Flush()
	if err != nil {
		return err
	}
	if code != 0 {
		if last := tail.Tail(); last != "" {
			return fmt.Errorf("docker build exited with status %d:\n%s", code, last)
		}
		return fmt.Errorf("docker build exited with status %d", code)
	}
	return nil
}

// ListImages returns repository:tag references for the given repository.
func (c *Client) ListImages(ctx context.Context, repository string) ([]string, error) {
	out, err := c.output(ctx, "image", "ls", repository, "--format", "{{.Repository}}:{{.Tag}}")
	if err != nil {
		return nil, err
	}
	var refs []string
	for _, line := range splitLines(out) {
		if strings.HasSuffix(line, ":<none>") {
			continue
		}
		refs = append(refs, line)
	}
	return refs, nil
}

// RemoveImage force-removes an image reference.
func (c *Client) RemoveImage(ctx context.Context, ref string) error {
	_, err := c.output(ctx, "image", "rm", "-f", ref)
	return err
}

// tailWriter splits streamed output into lines, forwards each to a callback
// and remembers the last few for error reporting. Safe for concurrent
// writers since stdout and stderr share one instance.
type tailWriter struct {
	mu      sync.Mutex
	fn      func(string)
	partial strings.Builder
	lines   []string
	keep    int
}

func newTailWriter(fn func(string), keep int) *tailWriter {
	return &tailWriter{fn: fn, keep: keep}
}

func (w *tailWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.partial.Write(p)
	buf := w.partial.String()
	for {
		idx := strings.IndexByte(buf, '\n')
		if idx < 0 {
			break
		}
		w.emit(buf[:idx])
		buf = buf[idx+1:]
	}
	w.partial.Reset()
	w.partial.WriteString(buf)
	return len(p), nil
}

// Flush emits any trailing partial line.
func (w *tailWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.partial.Len() > 0 {
		w.emit(w.partial.String())
		w.partial.Reset()
	}
}

func (w *tailWriter) emit(line string) {
	line = strings.TrimRight(line, "\r ")
	if strings.TrimSpace(line) == "" {
		return
	}
	if w.fn != nil {
		w.fn(line)
	}
	w.lines = append(w.lines, line)
	if len(w.lines) > w.keep {
		w.lines = w.lines[len(w.lines)-w.keep:]
	}
}

// Tail returns the retained trailing lines joined by newlines.
func (w *tailWriter) Tail() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return strings.Join(w.lines, "\n")
}

func sortedKeys(m map[string]string) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

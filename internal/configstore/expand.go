package configstore

import (
	"bytes"
	"errors"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Service credentials and [container] env values may reference host
// variables as $VAR or ${VAR}. `\$` keeps a literal dollar.

// expandValue expands variable references in raw using getenv.
func expandValue(raw string, getenv func(string) string) string {
	if !strings.Contains(raw, "$") {
		return raw
	}
	parts := strings.Split(raw, `\$`)
	for i, part := range parts {
		parts[i] = os.Expand(part, getenv)
	}
	return strings.Join(parts, "$")
}

// maxEscapeRepairs bounds how many `\$` escapes decodeConfig will repair in
// one file.
const maxEscapeRepairs = 64

// repairDollarEscape handles the one TOML complaint users hit with the `\$`
// convention: basic strings reject it as an escape. It doubles the backslash
// of the `\$` the decoder pointed at so the value decodes to `\$` and
// expandValue can honour it. ok is false when err is some other problem.
func repairDollarEscape(data []byte, err error) (fixed []byte, ok bool) {
	var decodeErr *toml.DecodeError
	if !errors.As(err, &decodeErr) || !strings.Contains(decodeErr.Error(), "U+0024 '$'") {
		return nil, false
	}
	row, col := decodeErr.Position()
	lines := bytes.SplitAfter(data, []byte("\n"))
	if row < 1 || row > len(lines) {
		return nil, false
	}
	line := lines[row-1]
	at := nearestEscape(line, col-1)
	if at < 0 {
		return nil, false
	}
	repaired := make([]byte, 0, len(line)+1)
	repaired = append(repaired, line[:at]...)
	repaired = append(repaired, '\\')
	repaired = append(repaired, line[at:]...)
	lines[row-1] = repaired
	return bytes.Join(lines, nil), true
}

// nearestEscape returns the offset of the unescaped `\$` in line closest to
// col, or -1.
func nearestEscape(line []byte, col int) int {
	best := -1
	for i := 0; i+1 < len(line); i++ {
		if line[i] != '\\' {
			continue
		}
		if line[i+1] == '$' && (best < 0 || abs(i-col) < abs(best-col)) {
			best = i
		}
		// Skip the escaped character so `\\$` is not mistaken for `\$`.
		i++
	}
	return best
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

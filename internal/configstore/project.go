package configstore

import (
	"path/filepath"
	"strings"
)

const maxProjectNameLen = 63

// ProjectName derives a docker-safe project name from a directory: its base
// name lowercased, with runs of other characters collapsed to '-'.
func ProjectName(dir string) string {
	base := filepath.Base(filepath.Clean(dir))
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(base) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		default:
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	name := strings.Trim(b.String(), "-")
	if len(name) > maxProjectNameLen {
		name = strings.TrimRight(name[:maxProjectNameLen], "-")
	}
	if name == "" {
		return "project"
	}
	return name
}

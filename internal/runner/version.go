package runner

import "strings"

var productVersion = "dev"

// SetVersion records the bubble version shown in interactive prompts.
func SetVersion(v string) {
	v = strings.TrimSpace(v)
	if v == "" {
		return
	}
	productVersion = v
}

func versionTag() string {
	v := strings.TrimSpace(productVersion)
	if v == "" || v == "dev" {
		return "dev"
	}
	if strings.HasPrefix(strings.ToLower(v), "v") {
		return v
	}
	return "v" + v
}

//go:build darwin

package credentials

import (
	"fmt"
	"os/exec"
	"strings"
)

// readKeychainToken reads the Claude Code entry from the login keychain.
func readKeychainToken() (string, error) {
	cmd := exec.Command("security", "find-generic-password", "-s", keychainService, "-w")
	output, err := cmd.Output()
	if err != nil {
		// security exits 44 when the item does not exist
		return "", fmt.Errorf("keychain lookup failed: %w", err)
	}
	value := strings.TrimSpace(string(output))
	if value == "" {
		return "", fmt.Errorf("keychain entry %q is empty", keychainService)
	}
	return value, nil
}

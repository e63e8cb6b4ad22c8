//go:build !darwin

package credentials

import "fmt"

func readKeychainToken() (string, error) {
	return "", fmt.Errorf("keychain access only supported on macOS")
}

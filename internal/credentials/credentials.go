// Package credentials finds the Claude Code OAuth token handed to the
// primary container.
package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// EnvVar is both where the token is looked up on the host and the variable
// it is exposed as inside the container.
const EnvVar = "CLAUDE_CODE_OAUTH_TOKEN"

// ConfigEnvVar carries the generated ~/.claude.json contents into the
// container, where the entrypoint writes it out.
const ConfigEnvVar = "BUBBLE_CLAUDE_CONFIG"

const keychainService = "Claude Code-credentials"

// Resolver looks up the token in the environment, then the OS keychain.
type Resolver struct {
	Getenv   func(string) string
	Keychain func() (string, error)
	Logger   *log.Logger
	Verbose  bool
}

// NewResolver returns a Resolver wired to the process environment and the
// platform keychain.
func NewResolver(logger *log.Logger, verbose bool) *Resolver {
	return &Resolver{Getenv: os.Getenv, Keychain: readKeychainToken, Logger: logger, Verbose: verbose}
}

// Resolve returns the token and whether one was found. A miss is logged as
// a warning; the token itself is never logged.
func (r *Resolver) Resolve() (string, bool) {
	getenv := r.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	if token := strings.TrimSpace(getenv(EnvVar)); token != "" {
		r.debugf("OAuth token found in %s", EnvVar)
		return token, true
	}
	if r.Keychain != nil {
		raw, err := r.Keychain()
		if err != nil {
			r.debugf("keychain lookup: %v", err)
		} else if token := extractToken(raw); token != "" {
			r.debugf("OAuth token read from keychain")
			return token, true
		}
	}
	if r.Logger != nil {
		r.Logger.Printf("Warning: no OAuth token found; Claude Code may ask you to log in inside the container")
	}
	return "", false
}

// extractToken accepts either a bare token or the JSON credentials blob
// Claude Code stores, returning the access token in both cases.
func extractToken(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "{") {
		return raw
	}
	var blob struct {
		ClaudeAiOauth struct {
			AccessToken string `json:"accessToken"`
		} `json:"claudeAiOauth"`
	}
	if err := json.Unmarshal([]byte(raw), &blob); err != nil {
		return ""
	}
	return strings.TrimSpace(blob.ClaudeAiOauth.AccessToken)
}

// ClaudeConfig builds the ~/.claude.json written inside the container: it
// skips onboarding and carries over the host's oauthAccount when present.
func ClaudeConfig(home string) (string, error) {
	config := map[string]any{
		"hasCompletedOnboarding": true,
		"theme":                  "dark-daltonized",
	}
	if strings.TrimSpace(home) != "" {
		data, err := os.ReadFile(filepath.Join(home, ".claude.json"))
		switch {
		case err == nil:
			var host map[string]json.RawMessage
			if err := json.Unmarshal(data, &host); err != nil {
				return "", fmt.Errorf("parse %s: %w", filepath.Join(home, ".claude.json"), err)
			}
			if account, ok := host["oauthAccount"]; ok {
				config["oauthAccount"] = account
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return "", fmt.Errorf("read %s: %w", filepath.Join(home, ".claude.json"), err)
		}
	}
	out, err := json.Marshal(config)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (r *Resolver) debugf(format string, args ...any) {
	if r.Verbose && r.Logger != nil {
		r.Logger.Printf(format, args...)
	}
}

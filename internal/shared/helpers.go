// Package shared provides common utility functions used across multiple
// packages in the devpi-cleaner codebase.
package shared

import (
	"fmt"
	"strings"

	"github.com/drone/envsubst"
)

// HTTPStatusErrorWithBody creates a formatted error that includes the
// response body for non-2xx HTTP responses.
func HTTPStatusErrorWithBody(status int, url string, body string) error {
	return fmt.Errorf("status=%d url=%s response=%s", status, url, body)
}

// CommandError wraps a command execution error with its trimmed output
// for cleaner error messages.
func CommandError(output []byte, err error) error {
	return fmt.Errorf("%s: %w", strings.TrimSpace(string(output)), err)
}

// ExpandEnv substitutes ${VAR} references in configuration values.
// Values that fail to parse are returned unchanged.
func ExpandEnv(value string) string {
	expanded, err := envsubst.EvalEnv(value)
	if err != nil {
		return value
	}
	return expanded
}

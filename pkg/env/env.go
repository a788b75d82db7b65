package env

import (
	"os"
	"strings"
)

// Get reads key from the process environment, falling back when the
// variable is unset or blank.
func Get(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

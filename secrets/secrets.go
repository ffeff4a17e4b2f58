package secrets

import (
	"fmt"
	"os"
	"strings"
)

// Resolve looks up a secret by environment variable name. The variable itself
// wins; otherwise <name>_FILE may point at a mounted secret file whose trimmed
// contents are returned.
func Resolve(name string) (string, error) {
	if value := os.Getenv(name); value != "" {
		return value, nil
	}
	if path := os.Getenv(name + "_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read secret file for %s: %w", name, err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	return "", fmt.Errorf("secret %s is not set (set %s or %s_FILE)", name, name, name)
}

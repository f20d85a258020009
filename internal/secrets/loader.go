package secrets

import (
	"fmt"
	"os"
	"strings"
)

// Source describes where a credential may come from. File wins over Value,
// Value wins over Env.
type Source struct {
	// Name is used in error messages, e.g. "github token".
	Name string
	// Value is an inline value from configuration or flags.
	Value string
	// File points to a file holding the value.
	File string
	// Env names an environment variable consulted last.
	Env string
}

// Load returns the trimmed secret. Optional sources return an empty string
// instead of an error when nothing is configured.
func Load(src Source) (string, error) {
	name := strings.TrimSpace(src.Name)
	if name == "" {
		name = "secret"
	}

	if file := strings.TrimSpace(src.File); file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("reading %s from file %q: %w", name, file, err)
		}
		secret := strings.TrimSpace(string(data))
		if secret == "" {
			return "", fmt.Errorf("%s file %q is empty", name, file)
		}
		return secret, nil
	}

	if secret := strings.TrimSpace(src.Value); secret != "" {
		return secret, nil
	}

	if env := strings.TrimSpace(src.Env); env != "" {
		if secret := strings.TrimSpace(os.Getenv(env)); secret != "" {
			return secret, nil
		}
		return "", fmt.Errorf("%s is not configured (set %s)", name, env)
	}

	return "", fmt.Errorf("%s is not configured", name)
}

// Optional is Load for credentials the caller can work without, such as an
// API token that only raises rate limits. A read failure is still an error.
func Optional(src Source) (string, error) {
	if strings.TrimSpace(src.File) != "" {
		return Load(src)
	}
	secret, err := Load(src)
	if err != nil {
		return "", nil
	}
	return secret, nil
}

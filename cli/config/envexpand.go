// Package config loads mstream.yaml / mstream.toml build configuration.
package config

import (
	"fmt"
	"os"
	"regexp"

	"go.uber.org/multierr"
)

// envVarPattern matches ${VAR}, ${VAR:-default} and ${VAR:?message}.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?:(:-|:\?)([^}]*))?\}`)

// ExpandEnv replaces environment references in input:
//   - ${VAR} expands to the value, or empty when unset
//   - ${VAR:-default} expands to the value, or default when unset or empty
//   - ${VAR:?message} expands to the value, and fails when unset or empty
//
// Every missing required variable is reported, not just the first.
func ExpandEnv(input string) (string, error) {
	var errs error
	out := envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		m := envVarPattern.FindStringSubmatch(match)
		name, op, arg := m[1], m[2], m[3]

		if value := os.Getenv(name); value != "" {
			return value
		}
		switch op {
		case ":-":
			return arg
		case ":?":
			if arg == "" {
				arg = "required"
			}
			errs = multierr.Append(errs, fmt.Errorf("${%s}: %s", name, arg))
		}
		return ""
	})
	return out, errs
}

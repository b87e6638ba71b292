// Package options defines the contract shared by every configuration
// section of the mhire binaries.
package options

import (
	"strings"

	"github.com/spf13/pflag"
)

// IOptions is implemented by every configuration section.
type IOptions interface {
	// Validate reports every invalid field; it must not mutate the receiver.
	Validate() []error

	// AddFlags registers the section's flags, optionally under prefixes.
	AddFlags(fs *pflag.FlagSet, prefixes ...string)
}

// Completer is implemented by sections that derive defaults or read
// secrets from the environment before validation.
type Completer interface {
	Complete() error
}

// Join builds a flag prefix such as "chat." or "a.b." from its parts.
// Empty parts are skipped and trailing dots are normalised.
func Join(prefixes ...string) string {
	parts := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		p = strings.Trim(p, ".")
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, ".") + "."
}

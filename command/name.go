package command

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// MaxNameLength bounds custom command names.
const MaxNameLength = 32

// NormalizeName case-folds a command token. A Caser is stateful, so one is
// built per call.
func NormalizeName(token string) string {
	return cases.Fold().String(strings.TrimSpace(token))
}

// ValidateName checks a normalized custom command name.
func ValidateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: name is empty", ErrInvalidName)
	case strings.HasPrefix(name, "!"):
		return fmt.Errorf("%w: leave out the leading '!'", ErrInvalidName)
	case len(name) > MaxNameLength:
		return fmt.Errorf("%w: name is longer than %d characters", ErrInvalidName, MaxNameLength)
	case name[0] < 'a' || name[0] > 'z':
		return fmt.Errorf("%w: name must start with a lowercase letter", ErrInvalidName)
	}
	for _, r := range name {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '_' {
			return fmt.Errorf("%w: only a-z, 0-9 and _ are allowed", ErrInvalidName)
		}
	}
	return nil
}

// Package format manipulates string colors for terminal output.
package format

import (
	"fmt"

	"golang.org/x/term"
)

var enabled = term.IsTerminal(1)

// SetEnabled overrides terminal detection, for --no-color and for tests.
func SetEnabled(on bool) { enabled = on }

var (
	Bold   = color("\033[1m%s\033[0m")
	Red    = color("\033[1;31m%s\033[0m")
	Green  = color("\033[1;32m%s\033[0m")
	Yellow = color("\033[1;33m%s\033[0m")
	Blue   = color("\033[1;34m%s\033[0m")
	Cyan   = color("\033[1;36m%s\033[0m")
)

func color(colorString string) func(...any) string {
	return func(args ...any) string {
		if enabled {
			return fmt.Sprintf(colorString, fmt.Sprint(args...))
		}
		return fmt.Sprint(args...)
	}
}

package cli

import (
	"time"
)

// FlagSet is a map-based implementation of the flags. It allows one to call an
// action outside of a running application, for instance in tests.
//
// - implements cli.Flags
type FlagSet map[string]interface{}

// String implements cli.Flags. It returns the string associated with the flag
// name if it is set, otherwise it returns an empty string.
func (fset FlagSet) String(name string) string {
	switch v := fset[name].(type) {
	case string:
		return v
	default:
		return ""
	}
}

// Duration implements cli.Flags. It returns the duration associated with the
// flag name if it is set, otherwise it returns zero.
func (fset FlagSet) Duration(name string) time.Duration {
	switch v := fset[name].(type) {
	case time.Duration:
		return v
	default:
		return 0
	}
}

// Path implements cli.Flags. It returns the path associated with the flag name
// if it is set, otherwise it returns an empty string.
func (fset FlagSet) Path(name string) string {
	return fset.String(name)
}

// Int implements cli.Flags. It returns the integer associated with the flag if
// it is set, otherwise it returns zero.
func (fset FlagSet) Int(name string) int {
	switch v := fset[name].(type) {
	case int:
		return v
	default:
		return 0
	}
}

// Bool implements cli.Flags. It returns the boolean associated with the flag if
// it is set, otherwise it returns false.
func (fset FlagSet) Bool(name string) bool {
	switch v := fset[name].(type) {
	case bool:
		return v
	default:
		return false
	}
}

// Float64 implements cli.Flags. It returns the number associated with the flag
// if it is set, otherwise it returns zero.
func (fset FlagSet) Float64(name string) float64 {
	switch v := fset[name].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}

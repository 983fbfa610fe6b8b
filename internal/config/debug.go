package config

import (
	"os"
	"strconv"
)

// IsDebug reports whether TUSK_DEBUG holds a true value ("1", "true", ...).
func IsDebug() bool {
	on, _ := strconv.ParseBool(os.Getenv("TUSK_DEBUG"))
	return on
}

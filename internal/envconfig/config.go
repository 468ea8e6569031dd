// Package envconfig reads colorgan settings from the environment.
//
// Every variable has one accessor. Invalid values fall back to the default
// and are reported with slog.Warn.
package envconfig

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

// Var returns an environment variable with surrounding quotes and spaces removed.
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}

// LogLevel returns the log level configured by COLORGAN_DEBUG.
//
// COLORGAN_DEBUG=1 enables debug logs; larger integers lower the level further.
func LogLevel() slog.Level {
	level := slog.LevelInfo
	if s := Var("COLORGAN_DEBUG"); s != "" {
		if b, _ := strconv.ParseBool(s); b {
			level = slog.LevelDebug
		} else if i, _ := strconv.ParseInt(s, 10, 64); i != 0 {
			level = slog.Level(i * -4)
		}
	}

	return level
}

// DataDir returns the training image directory (COLORGAN_DATA).
func DataDir() string {
	return Var("COLORGAN_DATA")
}

// OutputDir returns the output location (COLORGAN_OUTPUT).
// It may be a local path or a storage URL such as s3://bucket/run.
func OutputDir() string {
	if s := Var("COLORGAN_OUTPUT"); s != "" {
		return s
	}
	return filepath.Join(".", "output")
}

// Workers returns the number of concurrent image decoders (COLORGAN_WORKERS).
func Workers() int {
	def := max(runtime.GOMAXPROCS(0)-1, 1)
	return int(Uint("COLORGAN_WORKERS", uint(def))())
}

// UseGPU reports whether COLORGAN_GPU asks for the WebGPU backend.
var UseGPU = Bool("COLORGAN_GPU")

// BoolWithDefault returns a reader for a boolean variable.
func BoolWithDefault(k string) func(defaultValue bool) bool {
	return func(defaultValue bool) bool {
		if s := Var(k); s != "" {
			b, err := strconv.ParseBool(s)
			if err != nil {
				return true
			}
			return b
		}
		return defaultValue
	}
}

// Bool returns a reader for a boolean variable that defaults to false.
func Bool(k string) func() bool {
	withDefault := BoolWithDefault(k)
	return func() bool {
		return withDefault(false)
	}
}

// Uint returns a reader for an unsigned integer variable.
func Uint(key string, defaultValue uint) func() uint {
	return func() uint {
		if s := Var(key); s != "" {
			if n, err := strconv.ParseUint(s, 10, 64); err != nil {
				slog.Warn("invalid environment variable, using default", "key", key, "value", s, "default", defaultValue)
			} else {
				return uint(n)
			}
		}
		return defaultValue
	}
}

// EnvVar describes one environment variable for help output.
type EnvVar struct {
	Name        string
	Value       any
	Description string
}

// AsMap returns every variable with its current value and description.
func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"COLORGAN_DEBUG":   {"COLORGAN_DEBUG", LogLevel(), "Show additional debug information (e.g. COLORGAN_DEBUG=1)"},
		"COLORGAN_DATA":    {"COLORGAN_DATA", DataDir(), "Directory of training images"},
		"COLORGAN_OUTPUT":  {"COLORGAN_OUTPUT", OutputDir(), "Output directory or storage URL (default \"./output\")"},
		"COLORGAN_WORKERS": {"COLORGAN_WORKERS", Workers(), "Number of concurrent image decoders"},
		"COLORGAN_GPU":     {"COLORGAN_GPU", UseGPU(), "Train on the WebGPU backend when available"},
	}
}

// Values returns every variable formatted as a string.
func Values() map[string]string {
	vals := make(map[string]string)
	for k, v := range AsMap() {
		vals[k] = fmt.Sprintf("%v", v.Value)
	}
	return vals
}

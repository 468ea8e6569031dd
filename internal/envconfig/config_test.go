package envconfig

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":      slog.LevelInfo,
		"false": slog.LevelInfo,
		"1":     slog.LevelDebug,
		"true":  slog.LevelDebug,
		"2":     slog.Level(-8),
	}
	for value, want := range cases {
		t.Run(value, func(t *testing.T) {
			t.Setenv("COLORGAN_DEBUG", value)
			assert.Equal(t, want, LogLevel())
		})
	}
}

func TestVarTrimsQuotes(t *testing.T) {
	t.Setenv("COLORGAN_DATA", ` "/data/images" `)
	assert.Equal(t, "/data/images", DataDir())
}

func TestWorkers(t *testing.T) {
	t.Setenv("COLORGAN_WORKERS", "3")
	assert.Equal(t, 3, Workers())

	t.Setenv("COLORGAN_WORKERS", "lots")
	assert.GreaterOrEqual(t, Workers(), 1)
}

func TestOutputDirDefault(t *testing.T) {
	t.Setenv("COLORGAN_OUTPUT", "")
	assert.Equal(t, "output", OutputDir())

	t.Setenv("COLORGAN_OUTPUT", "mem://localhost/run")
	assert.Equal(t, "mem://localhost/run", OutputDir())
}

func TestAsMap(t *testing.T) {
	t.Setenv("COLORGAN_GPU", "1")
	vars := AsMap()
	assert.Contains(t, vars, "COLORGAN_DEBUG")
	assert.Equal(t, true, vars["COLORGAN_GPU"].Value)
	assert.Equal(t, "true", Values()["COLORGAN_GPU"])
}

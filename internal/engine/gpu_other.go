//go:build !windows

package engine

import (
	"context"
	"log/slog"
)

func runGPU(context.Context, Task) (bool, error) {
	slog.Warn("GPU backend is only built on windows, using CPU")
	return false, nil
}

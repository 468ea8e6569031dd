//go:build windows

package main

import (
	"context"

	"github.com/born-ml/colorgan/internal/engine"
)

func (t *trainTask) RunGPU(ctx context.Context, backend engine.GPU) error {
	return runTrain(ctx, backend, t)
}

func (t *colorizeTask) RunGPU(ctx context.Context, backend engine.GPU) error {
	return runColorize(ctx, backend, t)
}

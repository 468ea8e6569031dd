//go:build windows

package engine

import (
	"context"
	"log/slog"

	"github.com/born-ml/born/autodiff"
	"github.com/born-ml/born/backend/webgpu"
)

// GPU is the autodiff backend on WebGPU.
type GPU = *autodiff.Backend[*webgpu.Backend]

// GPUTask is a Task with a GPU implementation.
type GPUTask interface {
	Task
	RunGPU(ctx context.Context, backend GPU) error
}

func runGPU(ctx context.Context, task Task) (bool, error) {
	gt, ok := task.(GPUTask)
	if !ok {
		slog.Warn("task has no GPU implementation, using CPU")
		return false, nil
	}
	if !webgpu.IsAvailable() {
		slog.Warn("no WebGPU adapter found, using CPU")
		return false, nil
	}
	gpu, err := webgpu.New()
	if err != nil {
		slog.Warn("WebGPU initialization failed, using CPU", "error", err)
		return false, nil
	}
	defer gpu.Release()

	slog.Info("using backend", "name", gpu.Name())
	return true, gt.RunGPU(ctx, autodiff.New(gpu))
}

// Package engine picks the tensor backend a command runs on.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/born-ml/born/autodiff"
	"github.com/born-ml/born/backend/cpu"
)

// CPU is the autodiff backend on the pure Go CPU implementation.
type CPU = *autodiff.Backend[*cpu.Backend]

// NewCPU returns a fresh CPU backend with an empty tape.
func NewCPU() CPU {
	return autodiff.New(cpu.New())
}

// Task is work that can run on the CPU backend. Tasks that also implement
// GPUTask run on the GPU when one is requested and available.
type Task interface {
	RunCPU(ctx context.Context, backend CPU) error
}

// ErrEngine wraps panics raised by the tensor engine.
var ErrEngine = errors.New("tensor engine failure")

// Recover turns an engine panic into an error. Use it as
//
//	defer engine.Recover(&err)
func Recover(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%w: %v", ErrEngine, r)
	}
}

// Run executes task on the CPU, or on the GPU when useGPU is set and the
// platform supports it.
func Run(ctx context.Context, useGPU bool, task Task) error {
	if useGPU {
		ok, err := runGPU(ctx, task)
		if ok || err != nil {
			return err
		}
	}
	backend := NewCPU()
	slog.Debug("using backend", "name", backend.Name())
	return task.RunCPU(ctx, backend)
}

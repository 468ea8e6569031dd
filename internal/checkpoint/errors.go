package checkpoint

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrInvalidHeader     = errors.New("invalid safetensors header")
	ErrHeaderTooLarge    = errors.New("header exceeds maximum size")
	ErrUnsupportedDType  = errors.New("unsupported dtype")
	ErrChecksumMismatch  = errors.New("checksum mismatch: file may be corrupted")
	ErrMissingTensor     = errors.New("tensor missing from checkpoint")
	ErrUnexpectedTensor  = errors.New("unexpected tensor in checkpoint")
	ErrShapeMismatch     = errors.New("tensor shape mismatch")
	ErrNotFound          = errors.New("checkpoint not found")
	ErrInvalidName       = errors.New("invalid checkpoint file name")
	ErrInvalidTensorName = errors.New("invalid tensor name")
)

// ValidationError describes a malformed tensor table.
type ValidationError struct {
	Type    string
	Tensor  string
	Tensor2 string
	Details string
}

func (e *ValidationError) Error() string {
	if e.Tensor2 != "" {
		return fmt.Sprintf("%s: tensors %q and %q: %s", e.Type, e.Tensor, e.Tensor2, e.Details)
	}
	if e.Tensor != "" {
		return fmt.Sprintf("%s: tensor %q: %s", e.Type, e.Tensor, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Details)
}

// Unwrap lets errors.Is match ErrInvalidHeader for any validation failure.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidHeader
}

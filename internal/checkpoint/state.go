package checkpoint

import (
	"errors"
	"fmt"
	"slices"

	"github.com/born-ml/born/tensor"

	"github.com/born-ml/colorgan/internal/layers"
)

// FromParameters copies the current values of named parameters.
func FromParameters[B tensor.Backend](named []layers.NamedParameter[B]) []Tensor {
	out := make([]Tensor, len(named))
	for i, np := range named {
		t := np.Param.Tensor()
		out[i] = Tensor{
			Name:  np.Name,
			Shape: slices.Clone([]int(t.Shape())),
			Data:  layers.Values(t),
		}
	}
	return out
}

// Apply loads the tensors of f into named parameters in place.
//
// Every parameter must be present with the same shape and f must not hold
// anything else. Nothing is written unless all checks pass.
func Apply[B tensor.Backend](named []layers.NamedParameter[B], f *File) error {
	byName := make(map[string]Tensor, len(f.Tensors))
	for _, t := range f.Tensors {
		byName[t.Name] = t
	}

	var errs []error
	for _, np := range named {
		t, ok := byName[np.Name]
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %s", ErrMissingTensor, np.Name))
			continue
		}
		delete(byName, np.Name)
		want := np.Param.Tensor().Shape()
		if !slices.Equal([]int(want), t.Shape) {
			errs = append(errs, fmt.Errorf("%w: %s is %v in the model and %v in the file", ErrShapeMismatch, np.Name, want, t.Shape))
		}
	}
	extra := make([]string, 0, len(byName))
	for name := range byName {
		extra = append(extra, name)
	}
	slices.Sort(extra)
	for _, name := range extra {
		errs = append(errs, fmt.Errorf("%w: %s", ErrUnexpectedTensor, name))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("load %s: %w", f.Info.Model, err)
	}

	for _, np := range named {
		t, _ := f.Lookup(np.Name)
		copy(np.Param.Tensor().Raw().AsFloat32(), t.Data)
	}
	return nil
}

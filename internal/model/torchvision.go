package model

import (
	"errors"
	"fmt"
	"slices"

	"github.com/born-ml/born/tensor"
	"github.com/nlpodyssey/gopickle/pytorch"
	"github.com/nlpodyssey/gopickle/types"

	"github.com/born-ml/colorgan/internal/layers"
)

// ErrNotStateDict is returned when a .pth file does not hold a state dict.
var ErrNotStateDict = errors.New("pytorch file is not a state dict")

// ImportTorchVGG copies torchvision vgg16 weights from a .pth file into the
// backbone and returns the number of tensors copied.
//
// Parameter names of Bottom and Top already follow torchvision
// ("features.0.weight", "classifier.6.bias"), so the state dict is matched by
// name. torchvision pools to 7x7 before the classifier, so classifier weights
// only fit 224x224 inputs; other sizes report a shape mismatch.
func ImportTorchVGG[B tensor.Backend](path string, bottom *Bottom[B], top *Top[B]) (int, error) {
	raw, err := pytorch.Load(path)
	if err != nil {
		return 0, fmt.Errorf("load %s: %w", path, err)
	}

	weights, err := torchStateDict(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}

	named := append(bottom.NamedParameters(""), top.NamedParameters("")...)
	return copyTorchWeights(named, weights)
}

type torchWeight struct {
	shape []int
	data  []float32
}

func torchStateDict(raw any) (map[string]torchWeight, error) {
	out := make(map[string]torchWeight)
	add := func(k, v any) error {
		name, ok := k.(string)
		if !ok {
			return fmt.Errorf("%w: key %v is %T", ErrNotStateDict, k, k)
		}
		t, ok := v.(*pytorch.Tensor)
		if !ok {
			return nil
		}
		data, err := torchData(t)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		out[name] = torchWeight{shape: slices.Clone(t.Size), data: data}
		return nil
	}

	switch dict := raw.(type) {
	case *types.Dict:
		for _, k := range dict.Keys() {
			if err := add(k, dict.MustGet(k)); err != nil {
				return nil, err
			}
		}
	case *types.OrderedDict:
		for e := dict.List.Front(); e != nil; e = e.Next() {
			entry := e.Value.(*types.OrderedDictEntry)
			if err := add(entry.Key, entry.Value); err != nil {
				return nil, err
			}
		}
	default:
		return nil, fmt.Errorf("%w: got %T", ErrNotStateDict, raw)
	}
	return out, nil
}

// torchData returns the elements of t in row-major order.
func torchData(t *pytorch.Tensor) ([]float32, error) {
	var storage []float32
	switch s := t.Source.(type) {
	case *pytorch.FloatStorage:
		storage = s.Data
	case *pytorch.HalfStorage:
		storage = s.Data
	case *pytorch.BFloat16Storage:
		storage = s.Data
	default:
		return nil, fmt.Errorf("unsupported storage %T", t.Source)
	}

	n := 1
	for _, d := range t.Size {
		n *= d
	}
	out := make([]float32, n)
	index := make([]int, len(t.Size))
	for i := range out {
		offset := t.StorageOffset
		for d, idx := range index {
			offset += idx * t.Stride[d]
		}
		if offset >= len(storage) {
			return nil, fmt.Errorf("storage offset %d out of range %d", offset, len(storage))
		}
		out[i] = storage[offset]
		for d := len(index) - 1; d >= 0; d-- {
			index[d]++
			if index[d] < t.Size[d] {
				break
			}
			index[d] = 0
		}
	}
	return out, nil
}

func copyTorchWeights[B tensor.Backend](named []layers.NamedParameter[B], weights map[string]torchWeight) (int, error) {
	copied := 0
	for _, np := range named {
		w, ok := weights[np.Name]
		if !ok {
			return copied, fmt.Errorf("missing weight %q", np.Name)
		}
		dst := np.Param.Tensor()
		if !slices.Equal(w.shape, []int(dst.Shape())) {
			return copied, fmt.Errorf("weight %q: shape %v does not match %v", np.Name, w.shape, dst.Shape())
		}
		copy(dst.Raw().AsFloat32(), w.data)
		copied++
	}
	return copied, nil
}

package checkpoint

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type tensorHeader struct {
	DType       DType    `json:"dtype"`
	Shape       []int64  `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

// Write encodes f to w. Tensors keep their order; all are stored as f.DType,
// or F32 when it is empty.
func Write(w io.Writer, f *File) error {
	dtype := f.DType
	if dtype == "" {
		dtype = F32
	}
	if dtype.Size() == 0 {
		return fmt.Errorf("%w: %q", ErrUnsupportedDType, dtype)
	}

	seen := make(map[string]bool, len(f.Tensors))
	chunks := make([][]byte, len(f.Tensors))
	entries := make([]tensorHeader, len(f.Tensors))
	var offset int64
	for i, t := range f.Tensors {
		if err := validateName(t.Name); err != nil {
			return err
		}
		if seen[t.Name] {
			return &ValidationError{Type: "duplicate_name", Tensor: t.Name, Details: "written twice"}
		}
		seen[t.Name] = true
		if t.NumElements() != len(t.Data) {
			return fmt.Errorf("%w: %s has shape %v but %d values", ErrShapeMismatch, t.Name, t.Shape, len(t.Data))
		}

		chunks[i] = dtype.encode(t.Data)
		shape := make([]int64, len(t.Shape))
		for j, d := range t.Shape {
			shape[j] = int64(d)
		}
		size := int64(len(chunks[i]))
		entries[i] = tensorHeader{DType: dtype, Shape: shape, DataOffsets: [2]int64{offset, offset + size}}
		offset += size
	}

	sum := sha256.New()
	for _, c := range chunks {
		sum.Write(c)
	}

	header := orderedmap.New[string, any]()
	header.Set(metaKey, f.metadata(hex.EncodeToString(sum.Sum(nil))))
	for i, t := range f.Tensors {
		header.Set(t.Name, entries[i])
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	// The data section starts on an 8-byte boundary.
	for len(headerJSON)%8 != 0 {
		headerJSON = append(headerJSON, ' ')
	}

	if err := binary.Write(w, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return fmt.Errorf("failed to write header size: %w", err)
	}
	if _, err := w.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, c := range chunks {
		if _, err := w.Write(c); err != nil {
			return fmt.Errorf("failed to write tensor %s: %w", f.Tensors[i].Name, err)
		}
	}
	return nil
}

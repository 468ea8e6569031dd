package checkpoint

import (
	"bytes"
	"cmp"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Limits applied while reading untrusted files.
const (
	MaxHeaderSize    = 100 * 1024 * 1024
	MaxTensorCount   = 100_000
	MaxTensorNameLen = 4096
)

// rawValue keeps a header value undecoded until its key is known.
type rawValue []byte

func (r *rawValue) UnmarshalJSON(b []byte) error {
	*r = append((*r)[:0], b...)
	return nil
}

type span struct {
	name        string
	start, stop int64
}

// Read decodes a checkpoint and verifies its checksum when one is stored.
func Read(r io.Reader) (*File, error) {
	var headerSize uint64
	if err := binary.Read(r, binary.LittleEndian, &headerSize); err != nil {
		return nil, fmt.Errorf("%w: read header size: %w", ErrInvalidHeader, err)
	}
	if headerSize > MaxHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrHeaderTooLarge, headerSize)
	}
	headerJSON := make([]byte, headerSize)
	if _, err := io.ReadFull(r, headerJSON); err != nil {
		return nil, fmt.Errorf("%w: read header: %w", ErrInvalidHeader, err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read tensor data: %w", err)
	}

	header := orderedmap.New[string, rawValue]()
	if err := header.UnmarshalJSON(bytes.TrimRight(headerJSON, " ")); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidHeader, err)
	}
	if header.Len() > MaxTensorCount+1 {
		return nil, &ValidationError{Type: "too_many_tensors", Details: fmt.Sprintf("got %d, max %d", header.Len(), MaxTensorCount)}
	}

	f := &File{Metadata: map[string]string{}}
	var spans []span
	for pair := header.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Key == metaKey {
			if err := json.Unmarshal(pair.Value, &f.Metadata); err != nil {
				return nil, fmt.Errorf("%w: metadata: %w", ErrInvalidHeader, err)
			}
			continue
		}
		t, s, dtype, err := decodeTensor(pair.Key, pair.Value, data)
		if err != nil {
			return nil, err
		}
		if f.DType == "" {
			f.DType = dtype
		}
		f.Tensors = append(f.Tensors, t)
		spans = append(spans, s)
	}
	if err := validateSpans(spans, int64(len(data))); err != nil {
		return nil, err
	}

	if want, ok := f.Metadata[keyChecksum]; ok {
		got := sha256.Sum256(data)
		if !strings.EqualFold(hex.EncodeToString(got[:]), want) {
			return nil, ErrChecksumMismatch
		}
	}
	if f.Info, err = parseInfo(f.Metadata); err != nil {
		return nil, err
	}
	for _, k := range []string{keyFormat, keyModel, keyEpoch, keyBatch, keyRunID, keyChecksum} {
		delete(f.Metadata, k)
	}
	return f, nil
}

func decodeTensor(name string, raw rawValue, data []byte) (Tensor, span, DType, error) {
	if err := validateName(name); err != nil {
		return Tensor{}, span{}, "", err
	}
	var h struct {
		DType       string   `json:"dtype"`
		Shape       []int64  `json:"shape"`
		DataOffsets [2]int64 `json:"data_offsets"`
	}
	if err := json.Unmarshal(raw, &h); err != nil {
		return Tensor{}, span{}, "", fmt.Errorf("%w: tensor %q: %w", ErrInvalidHeader, name, err)
	}
	dtype, err := ParseDType(h.DType)
	if err != nil {
		return Tensor{}, span{}, "", fmt.Errorf("tensor %q: %w", name, err)
	}

	shape := make([]int, len(h.Shape))
	n := int64(1)
	limit := math.MaxInt64 / int64(dtype.Size())
	for i, d := range h.Shape {
		if d < 0 {
			return Tensor{}, span{}, "", &ValidationError{Type: "invalid_shape", Tensor: name, Details: fmt.Sprintf("%v", h.Shape)}
		}
		if d > 0 && n > limit/d {
			return Tensor{}, span{}, "", &ValidationError{Type: "shape_overflow", Tensor: name, Details: fmt.Sprintf("%v", h.Shape)}
		}
		shape[i] = int(d)
		n *= d
	}

	s := span{name: name, start: h.DataOffsets[0], stop: h.DataOffsets[1]}
	if s.start < 0 || s.stop < s.start {
		return Tensor{}, span{}, "", &ValidationError{Type: "negative_offset", Tensor: name, Details: fmt.Sprintf("offsets %v", h.DataOffsets)}
	}
	if s.stop > int64(len(data)) {
		return Tensor{}, span{}, "", &ValidationError{
			Type:    "out_of_bounds",
			Tensor:  name,
			Details: fmt.Sprintf("end %d > data size %d", s.stop, len(data)),
		}
	}
	if s.stop-s.start != n*int64(dtype.Size()) {
		return Tensor{}, span{}, "", &ValidationError{
			Type:    "size_mismatch",
			Tensor:  name,
			Details: fmt.Sprintf("%d bytes for %d %s elements", s.stop-s.start, n, dtype),
		}
	}

	return Tensor{Name: name, Shape: shape, Data: dtype.decode(data[s.start:s.stop])}, s, dtype, nil
}

func validateSpans(spans []span, dataSize int64) error {
	sorted := slices.Clone(spans)
	slices.SortFunc(sorted, func(a, b span) int { return cmp.Compare(a.start, b.start) })
	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1], sorted[i]
		if prev.stop > cur.start {
			return &ValidationError{
				Type:    "offset_overlap",
				Tensor:  prev.name,
				Tensor2: cur.name,
				Details: fmt.Sprintf("regions [%d-%d] and [%d-%d] overlap", prev.start, prev.stop, cur.start, cur.stop),
			}
		}
	}
	if len(sorted) > 0 && sorted[len(sorted)-1].stop > dataSize {
		last := sorted[len(sorted)-1]
		return &ValidationError{Type: "out_of_bounds", Tensor: last.name, Details: fmt.Sprintf("end %d > data size %d", last.stop, dataSize)}
	}
	return nil
}

func validateName(name string) error {
	switch {
	case name == "" || name == metaKey:
		return fmt.Errorf("%w: %q", ErrInvalidTensorName, name)
	case len(name) > MaxTensorNameLen:
		return fmt.Errorf("%w: length %d > max %d", ErrInvalidTensorName, len(name), MaxTensorNameLen)
	case strings.ContainsAny(name, "/\\\x00"), strings.Contains(name, ".."):
		return fmt.Errorf("%w: %q", ErrInvalidTensorName, name)
	}
	return nil
}

// IsCorrupt reports whether err means the file content is unusable.
func IsCorrupt(err error) bool {
	return errors.Is(err, ErrInvalidHeader) || errors.Is(err, ErrChecksumMismatch) ||
		errors.Is(err, ErrHeaderTooLarge) || errors.Is(err, ErrUnsupportedDType)
}

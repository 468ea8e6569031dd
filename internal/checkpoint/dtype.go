package checkpoint

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	bfloat16 "github.com/d4l3k/go-bfloat16"
	"github.com/x448/float16"
)

// DType is the on-disk element type of a tensor.
type DType string

// Supported element types. Parameters are always float32 in memory.
const (
	F32  DType = "F32"
	F16  DType = "F16"
	BF16 DType = "BF16"
)

// ParseDType parses a safetensors dtype name, case-insensitively.
func ParseDType(s string) (DType, error) {
	switch d := DType(strings.ToUpper(s)); d {
	case F32, F16, BF16:
		return d, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedDType, s)
}

// Size returns the number of bytes per element.
func (d DType) Size() int {
	switch d {
	case F32:
		return 4
	case F16, BF16:
		return 2
	}
	return 0
}

func (d DType) encode(values []float32) []byte {
	switch d {
	case F16:
		out := make([]byte, 2*len(values))
		for i, v := range values {
			binary.LittleEndian.PutUint16(out[2*i:], float16.Fromfloat32(v).Bits())
		}
		return out
	case BF16:
		return bfloat16.EncodeFloat32(values)
	default:
		out := make([]byte, 4*len(values))
		for i, v := range values {
			binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(v))
		}
		return out
	}
}

func (d DType) decode(data []byte) []float32 {
	switch d {
	case F16:
		out := make([]float32, len(data)/2)
		for i := range out {
			out[i] = float16.Frombits(binary.LittleEndian.Uint16(data[2*i:])).Float32()
		}
		return out
	case BF16:
		return bfloat16.DecodeFloat32(data)
	default:
		out := make([]float32, len(data)/4)
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
		}
		return out
	}
}

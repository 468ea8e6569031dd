// Package checkpoint reads and writes model snapshots in the safetensors
// format.
//
// A file is an 8-byte little-endian header length, a JSON header and the raw
// tensor data. The header maps tensor names to their dtype, shape and byte
// range; "__metadata__" carries the model name, the epoch and batch the
// snapshot was taken at and a SHA-256 of the data section.
package checkpoint

import (
	"fmt"
	"strconv"
)

// Metadata keys written to every checkpoint.
const (
	metaKey      = "__metadata__"
	keyFormat    = "format"
	keyModel     = "model"
	keyEpoch     = "epoch"
	keyBatch     = "batch"
	keyRunID     = "run_id"
	keyChecksum  = "sha256"
	formatString = "colorgan"
)

// Tensor is one named float32 tensor.
type Tensor struct {
	Name  string
	Shape []int
	Data  []float32
}

// NumElements returns the product of the shape.
func (t Tensor) NumElements() int {
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// Info identifies the training position a snapshot belongs to.
type Info struct {
	Model string
	Epoch int
	Batch int
	RunID string
}

// FileName returns the name the snapshot is stored under.
func (i Info) FileName() string {
	return FileName(i.Model, i.Epoch, i.Batch)
}

// File is a decoded checkpoint.
type File struct {
	Info  Info
	DType DType
	// Metadata holds extra string pairs stored next to Info.
	Metadata map[string]string
	Tensors  []Tensor
}

// Lookup returns the tensor with the given name.
func (f *File) Lookup(name string) (Tensor, bool) {
	for _, t := range f.Tensors {
		if t.Name == name {
			return t, true
		}
	}
	return Tensor{}, false
}

func (f *File) metadata(checksum string) map[string]string {
	meta := make(map[string]string, len(f.Metadata)+6)
	for k, v := range f.Metadata {
		meta[k] = v
	}
	meta[keyFormat] = formatString
	meta[keyModel] = f.Info.Model
	meta[keyEpoch] = strconv.Itoa(f.Info.Epoch)
	meta[keyBatch] = strconv.Itoa(f.Info.Batch)
	if f.Info.RunID != "" {
		meta[keyRunID] = f.Info.RunID
	}
	meta[keyChecksum] = checksum
	return meta
}

func parseInfo(meta map[string]string) (Info, error) {
	info := Info{Model: meta[keyModel], RunID: meta[keyRunID]}
	var err error
	if v, ok := meta[keyEpoch]; ok {
		if info.Epoch, err = strconv.Atoi(v); err != nil {
			return Info{}, fmt.Errorf("%w: epoch %q", ErrInvalidHeader, v)
		}
	}
	if v, ok := meta[keyBatch]; ok {
		if info.Batch, err = strconv.Atoi(v); err != nil {
			return Info{}, fmt.Errorf("%w: batch %q", ErrInvalidHeader, v)
		}
	}
	return info, nil
}

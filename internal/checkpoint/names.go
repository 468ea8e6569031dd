package checkpoint

import (
	"fmt"
	"path"
	"strconv"
	"strings"
)

// Ext is the checkpoint file extension.
const Ext = ".safetensors"

// FileName returns "<model>_e<epoch>_b<batch>.safetensors".
func FileName(model string, epoch, batch int) string {
	return fmt.Sprintf("%s_e%d_b%d%s", model, epoch, batch, Ext)
}

// StaticFileName returns "<model>.safetensors", the name of a model that is
// saved once per output directory rather than per position.
func StaticFileName(model string) string {
	return model + Ext
}

// ParseFileName is the inverse of FileName. Directories are ignored.
func ParseFileName(name string) (Info, error) {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	stem, ok := strings.CutSuffix(base, Ext)
	if !ok {
		return Info{}, fmt.Errorf("%w: %s", ErrInvalidName, name)
	}
	i := strings.LastIndex(stem, "_b")
	j := strings.LastIndex(stem[:max(i, 0)], "_e")
	if i < 0 || j <= 0 {
		return Info{}, fmt.Errorf("%w: %s", ErrInvalidName, name)
	}
	epoch, err := strconv.Atoi(stem[j+2 : i])
	if err != nil {
		return Info{}, fmt.Errorf("%w: %s", ErrInvalidName, name)
	}
	batch, err := strconv.Atoi(stem[i+2:])
	if err != nil {
		return Info{}, fmt.Errorf("%w: %s", ErrInvalidName, name)
	}
	return Info{Model: stem[:j], Epoch: epoch, Batch: batch}, nil
}

// Latest returns the newest position of model among names.
func Latest(names []string, model string) (Info, bool) {
	var best Info
	found := false
	for _, n := range names {
		info, err := ParseFileName(n)
		if err != nil || info.Model != model {
			continue
		}
		if !found || info.Epoch > best.Epoch || (info.Epoch == best.Epoch && info.Batch > best.Batch) {
			best, found = info, true
		}
	}
	return best, found
}

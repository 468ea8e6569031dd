package train

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/born-ml/born/autodiff"
	"github.com/born-ml/born/tensor"

	"github.com/born-ml/colorgan/internal/dataset"
	"github.com/born-ml/colorgan/internal/engine"
	"github.com/born-ml/colorgan/internal/layers"
	"github.com/born-ml/colorgan/internal/model"
	"github.com/born-ml/colorgan/internal/storage"
)

// colorizeBatch bounds how many images share one forward pass.
const colorizeBatch = 8

// ColorizedName returns the output name for the image at path.
func ColorizedName(path string) string {
	return stem(path) + "_color.png"
}

// ColorizedNames returns one distinct output name per path. Images whose
// file names collide (a/x.png, b/x.png) get a numeric suffix in input order:
// x_color.png, x_2_color.png.
func ColorizedNames(paths []string) []string {
	names := make([]string, len(paths))
	used := make(map[string]bool, len(paths))
	for i, path := range paths {
		name := ColorizedName(path)
		for k := 2; used[name]; k++ {
			name = fmt.Sprintf("%s_%d_color.png", stem(path), k)
		}
		used[name] = true
		names[i] = name
	}
	return names
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Colorize predicts chroma for every image in paths with the bottom and
// generator of set and writes the results to out. Only the lightness of the
// inputs is used. It returns the written names in input order.
func Colorize[B autodiff.BackwardCapable](ctx context.Context, backend B, set *model.Set[B], paths []string, out *storage.Dir, workers int) (names []string, err error) {
	defer engine.Recover(&err)
	backend.GetTape().StopRecording()

	outNames := ColorizedNames(paths)
	size := set.ImageSize
	for start := 0; start < len(paths); start += colorizeBatch {
		chunk := paths[start:min(start+colorizeBatch, len(paths))]
		b, err := dataset.LoadPaths(ctx, chunk, size, workers)
		if err != nil {
			return names, err
		}

		grey := layers.Constant(b.Grey3(), tensor.Shape{b.N, 3, size, size}, backend)
		ab, _ := set.Generator.Forward(set.Bottom.Forward(grey))
		pred := layers.Values(ab)

		p := size * size
		for i, path := range chunk {
			name := outNames[start+i]
			l, _ := b.Sample(i)
			img := dataset.ToRGB(l, pred[2*i*p:2*(i+1)*p], size, size)

			var buf bytes.Buffer
			if err := dataset.EncodePNG(&buf, img); err != nil {
				return names, fmt.Errorf("encode %s: %w", path, err)
			}
			if err := out.WriteFile(ctx, name, buf.Bytes()); err != nil {
				return names, fmt.Errorf("write %s: %w", name, err)
			}
			names = append(names, name)
		}
	}
	return names, nil
}

package train

import (
	"bytes"
	"context"
	"fmt"

	"github.com/born-ml/colorgan/internal/dataset"
)

// SampleName returns the file name of the sample written at (epoch, batch).
func SampleName(epoch, batch int) string {
	return fmt.Sprintf("e%db%d.png", epoch, batch)
}

// WriteSample stores the first image of b as a strip: the greyscale input,
// the prediction and the original.
func (t *Trainer[B]) WriteSample(ctx context.Context, epoch, batch int, b *dataset.Batch, pred []float32) error {
	s := b.Size
	l, ab := b.Sample(0)
	strip := dataset.Strip(
		dataset.Grey(l, s, s),
		dataset.ToRGB(l, pred[:2*s*s], s, s),
		dataset.ToRGB(l, ab, s, s),
	)

	var buf bytes.Buffer
	if err := dataset.EncodePNG(&buf, strip); err != nil {
		return fmt.Errorf("encode sample: %w", err)
	}
	name := SampleName(epoch, batch)
	if err := t.samples.WriteFile(ctx, name, buf.Bytes()); err != nil {
		return fmt.Errorf("write sample %s: %w", name, err)
	}
	return nil
}

package train

import (
	"time"

	"github.com/born-ml/born/autodiff"
	"github.com/born-ml/born/tensor"

	"github.com/born-ml/colorgan/internal/dataset"
	"github.com/born-ml/colorgan/internal/engine"
	"github.com/born-ml/colorgan/internal/layers"
	"github.com/born-ml/colorgan/internal/loss"
)

// StepReport holds the losses of one training step.
type StepReport struct {
	Epoch int
	Batch int

	Generator     loss.GeneratorReport
	Discriminator loss.DiscriminatorReport

	// Pred is the generator output [N, 2, S, S] before the update.
	Pred     []float32
	Duration time.Duration
}

// Step runs one generator and one discriminator update on b.
func (t *Trainer[B]) Step(b *dataset.Batch) (rep StepReport, err error) {
	defer engine.Recover(&err)
	started := time.Now()

	rep.Generator, rep.Pred = t.generatorStep(b)
	rep.Discriminator, err = t.discriminatorStep(b, rep.Pred)
	if err != nil {
		return rep, err
	}
	rep.Duration = time.Since(started)
	return rep, nil
}

func (t *Trainer[B]) generatorStep(b *dataset.Batch) (loss.GeneratorReport, []float32) {
	n, s := b.N, b.Size
	backend := t.backend
	tape := backend.GetTape()
	defer func() {
		tape.StopRecording()
		tape.Clear()
	}()

	tape.Clear()
	tape.StartRecording()
	grey := layers.Constant(b.Grey3(), tensor.Shape{n, 3, s, s}, backend)
	features := t.models.Bottom.Forward(grey)
	ab, classes := t.models.Generator.Forward(features)

	// The frozen top only provides the target distribution.
	tape.StopRecording()
	logits := t.models.Top.Forward(layers.Detach(features))
	target := loss.SoftmaxRows(layers.Values(logits), n, t.models.Config.Backbone.NumClasses)
	tape.StartRecording()

	in := loss.GeneratorInput[B]{
		L:       layers.Constant(b.L, tensor.Shape{n, 1, s, s}, backend),
		AB:      ab,
		Classes: classes,
		TrueAB:  layers.Constant(b.AB, tensor.Shape{n, 2, s, s}, backend),
		Target:  target,
	}
	total, rep := loss.Generator[B](t.models.Discriminator, in, t.weights)
	grads := autodiff.Backward(total, backend)
	tape.StopRecording()

	pred := layers.Values(ab)
	t.genOpt.Step(grads)
	return rep, pred
}

func (t *Trainer[B]) discriminatorStep(b *dataset.Batch, pred []float32) (loss.DiscriminatorReport, error) {
	batch := loss.Batch{
		N:      b.N,
		Height: b.Size,
		Width:  b.Size,
		L:      b.L,
		RealAB: b.AB,
		FakeAB: pred,
	}
	grads, rep, err := loss.Discriminator(t.backend, t.models.Discriminator, batch, loss.RandomAlpha(t.rng, b.N), t.weights)
	if err != nil {
		return rep, err
	}
	t.discOpt.Step(grads)
	return rep, nil
}

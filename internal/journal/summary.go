package journal

import "gonum.org/v1/gonum/stat"

// Summary aggregates the steps of one epoch.
type Summary struct {
	Epoch   int
	Batches int

	GenMean  float64
	GenStd   float64
	DiscMean float64
	DiscStd  float64
	MSEMean  float64
	GPMean   float64
}

// Summarize groups steps by epoch, in order of first appearance.
func Summarize(steps []Step) []Summary {
	type acc struct {
		gen, disc, mse, gp []float64
	}
	var order []int
	byEpoch := map[int]*acc{}
	for _, s := range steps {
		a, ok := byEpoch[s.Epoch]
		if !ok {
			a = &acc{}
			byEpoch[s.Epoch] = a
			order = append(order, s.Epoch)
		}
		a.gen = append(a.gen, float64(s.GenTotal))
		a.disc = append(a.disc, float64(s.DiscTotal))
		a.mse = append(a.mse, float64(s.GenMSE))
		a.gp = append(a.gp, float64(s.DiscGP))
	}

	out := make([]Summary, 0, len(order))
	for _, e := range order {
		a := byEpoch[e]
		sum := Summary{
			Epoch:    e,
			Batches:  len(a.gen),
			GenMean:  stat.Mean(a.gen, nil),
			DiscMean: stat.Mean(a.disc, nil),
			MSEMean:  stat.Mean(a.mse, nil),
			GPMean:   stat.Mean(a.gp, nil),
		}
		if len(a.gen) > 1 {
			sum.GenStd = stat.StdDev(a.gen, nil)
			sum.DiscStd = stat.StdDev(a.disc, nil)
		}
		out = append(out, sum)
	}
	return out
}

// wavefunction.go
package qweave

import (
	"fmt"
	"sort"
	"strings"

	"github.com/theapemachine/errnie"
	"github.com/theapemachine/qweave/linalg"
)

/*
WaveFunction is a frozen view of the joint outcome distribution of a set of
containers. It can be collapsed any number of times to draw outcomes without
disturbing the containers it was taken from, which is how repeated-shot
statistics are gathered.
*/
type WaveFunction struct {
	Dims          []int
	Probabilities []float64
	backend       linalg.Backend
}

/*
Count is how often one joint outcome was drawn.
*/
type Count struct {
	Index []int
	Count int
}

func (c Count) String() string {
	parts := make([]string, len(c.Index))
	for i, v := range c.Index {
		parts[i] = fmt.Sprint(v)
	}
	return "(" + strings.Join(parts, ",") + ")"
}

/*
NewWaveFunction captures the computational-basis distribution of the
targets, as tracked by ce.
*/
func NewWaveFunction(ce *CompositeEnvelope, targets ...*State) (*WaveFunction, error) {
	probs, err := ce.Distribution(targets...)
	if err != nil {
		return nil, err
	}

	dims := make([]int, len(targets))
	for i, s := range targets {
		dims[i] = s.dim
	}

	errnie.Info("NewWaveFunction - dims %v, outcomes %d", dims, len(probs))
	return &WaveFunction{
		Dims:          dims,
		Probabilities: probs,
		backend:       ce.cfg.Backend(),
	}, nil
}

// Probability of one joint outcome; zero for out-of-range indices.
func (wf *WaveFunction) Probability(index ...int) float64 {
	if len(index) != len(wf.Dims) {
		return 0
	}

	flat := 0
	for i, v := range index {
		if v < 0 || v >= wf.Dims[i] {
			return 0
		}
		flat = flat*wf.Dims[i] + v
	}
	return wf.Probabilities[flat]
}

/*
Collapse draws one joint outcome from the seeded backend source. It returns
nil when the distribution is empty.
*/
func (wf *WaveFunction) Collapse() []int {
	k := wf.backend.Sample(wf.Probabilities)
	if k < 0 {
		return nil
	}
	return wf.unflatten(k)
}

// Shots collapses n times and returns the outcome counts, most frequent first.
func (wf *WaveFunction) Shots(n int) []Count {
	counts := make(map[int]int)
	for i := 0; i < n; i++ {
		k := wf.backend.Sample(wf.Probabilities)
		if k < 0 {
			break
		}
		counts[k]++
	}

	out := make([]Count, 0, len(counts))
	for k, c := range counts {
		out = append(out, Count{Index: wf.unflatten(k), Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].String() < out[j].String()
	})
	return out
}

func (wf *WaveFunction) unflatten(k int) []int {
	index := make([]int, len(wf.Dims))
	for i := len(wf.Dims) - 1; i >= 0; i-- {
		index[i] = k % wf.Dims[i]
		k /= wf.Dims[i]
	}
	return index
}

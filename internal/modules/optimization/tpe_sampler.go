package optimization

import (
	"math"
	"math/rand"
	"sort"

	"github.com/vqtran/fundfolio/internal/domain"
)

// TPESampler is a tree-structured Parzen estimator sampler: completed
// trials are split into a "good" and a "bad" set by objective quantile,
// and each dimension is drawn to maximize the density ratio between kernel
// estimates fitted to the two sets. Categorical dimensions use smoothed
// good-set frequencies. The reference sampler for optimization studies.
type TPESampler struct {
	startupTrials int     // random warm-up before the model kicks in
	gamma         float64 // quantile of trials considered good
	candidates    int     // candidates scored per dimension
}

// NewTPESampler creates a TPE sampler with standard settings.
func NewTPESampler() *TPESampler {
	return &TPESampler{
		startupTrials: 10,
		gamma:         0.25,
		candidates:    24,
	}
}

// Name implements Sampler.
func (s *TPESampler) Name() string { return "tpe" }

// NeedsHistory implements Sampler.
func (s *TPESampler) NeedsHistory() bool { return true }

// Suggest implements Sampler.
func (s *TPESampler) Suggest(rng *rand.Rand, space Space, history []Trial) domain.Parameters {
	completed := completedTrials(history)
	if len(completed) < s.startupTrials {
		return NewRandomSampler().Suggest(rng, space, history)
	}

	good, bad := s.split(completed)

	params := domain.Parameters{NStocks: space.NStocks}
	for _, dim := range dimensions() {
		r := dim.rng(space, params)
		goodVals := values(good, dim.get)
		badVals := values(bad, dim.get)
		dim.set(&params, s.suggestFloat(rng, r, goodVals, badVals))
	}
	params.Allocation = s.suggestMethod(rng, space.Methods, good)
	return params
}

// split partitions completed trials into good (top gamma quantile by value,
// at least one trial) and bad.
func (s *TPESampler) split(completed []Trial) (good, bad []Trial) {
	ordered := make([]Trial, len(completed))
	copy(ordered, completed)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Value > ordered[j].Value })

	nGood := int(math.Ceil(s.gamma * float64(len(ordered))))
	if nGood < 1 {
		nGood = 1
	}
	return ordered[:nGood], ordered[nGood:]
}

// suggestFloat scores candidate values drawn from the good-set kernel
// estimate and keeps the one with the best good/bad density ratio.
func (s *TPESampler) suggestFloat(rng *rand.Rand, r FloatRange, good, bad []float64) float64 {
	if r.Max <= r.Min {
		return r.Min
	}
	bandwidth := (r.Max - r.Min) / 5

	best := r.Min
	bestScore := math.Inf(-1)
	for i := 0; i < s.candidates; i++ {
		// Draw around a random good observation (a Parzen kernel sample).
		center := good[rng.Intn(len(good))]
		candidate := r.Quantize(center + rng.NormFloat64()*bandwidth)

		score := kernelDensity(candidate, good, bandwidth) /
			(kernelDensity(candidate, bad, bandwidth) + 1e-12)
		if score > bestScore {
			bestScore = score
			best = candidate
		}
	}
	return best
}

// suggestMethod samples a categorical dimension with add-one smoothing over
// good-set frequencies.
func (s *TPESampler) suggestMethod(rng *rand.Rand, methods []domain.AllocationMethod, good []Trial) domain.AllocationMethod {
	weights := make([]float64, len(methods))
	var total float64
	for i, m := range methods {
		weights[i] = 1 // smoothing
		for _, t := range good {
			if t.Params.Allocation == m {
				weights[i]++
			}
		}
		total += weights[i]
	}

	draw := rng.Float64() * total
	for i, w := range weights {
		draw -= w
		if draw <= 0 {
			return methods[i]
		}
	}
	return methods[len(methods)-1]
}

// kernelDensity is a Gaussian kernel density estimate at x.
func kernelDensity(x float64, observations []float64, bandwidth float64) float64 {
	if len(observations) == 0 {
		return 0
	}
	var sum float64
	for _, o := range observations {
		z := (x - o) / bandwidth
		sum += math.Exp(-0.5 * z * z)
	}
	return sum / float64(len(observations))
}

func completedTrials(history []Trial) []Trial {
	var out []Trial
	for _, t := range history {
		if t.State == TrialComplete {
			out = append(out, t)
		}
	}
	return out
}

func values(trials []Trial, get func(domain.Parameters) float64) []float64 {
	out := make([]float64, len(trials))
	for i, t := range trials {
		out[i] = get(t.Params)
	}
	return out
}

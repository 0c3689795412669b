package optimization

import (
	"math/rand"

	"github.com/vqtran/fundfolio/internal/domain"
)

// Sampler proposes the next candidate parameter vector. Implementations
// draw all randomness from the provided rng so a fixed driver seed yields an
// identical trial sequence.
type Sampler interface {
	// Name identifies the sampler in study records.
	Name() string

	// Suggest proposes a candidate given the completed trial history.
	Suggest(rng *rand.Rand, space Space, history []Trial) domain.Parameters

	// NeedsHistory reports whether suggestions depend on earlier results.
	// History-free samplers can have their trials evaluated in parallel;
	// model-based ones are evaluated strictly in sequence.
	NeedsHistory() bool
}

// RandomSampler draws each dimension uniformly from its (conditional)
// quantized range. Suggestions are independent of the trial history.
type RandomSampler struct{}

// NewRandomSampler creates a new random sampler
func NewRandomSampler() *RandomSampler {
	return &RandomSampler{}
}

// Name implements Sampler.
func (s *RandomSampler) Name() string { return "random" }

// NeedsHistory implements Sampler.
func (s *RandomSampler) NeedsHistory() bool { return false }

// Suggest implements Sampler.
func (s *RandomSampler) Suggest(rng *rand.Rand, space Space, _ []Trial) domain.Parameters {
	params := domain.Parameters{NStocks: space.NStocks}
	for _, dim := range dimensions() {
		r := dim.rng(space, params)
		dim.set(&params, r.value(rng.Intn(r.gridSize())))
	}
	params.Allocation = space.Methods[rng.Intn(len(space.Methods))]
	return params
}

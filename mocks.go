package plasmocore

import "math/rand"

// The helpers in this file build small, deterministic fixtures for tests:
// a handful of loci, a handful of infections with random genotypes, and a
// ready-to-use Model wired over them. Nothing here is exported outside the
// package; test files reach for these the way the rest of the package
// reaches for its own constructors.

// sampleGenotype draws a uniformly random presence/absence genotype over n
// alleles.
func sampleGenotype(rng *rand.Rand, n int) Genotype {
	present := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if rng.Intn(2) == 1 {
			present = append(present, i)
		}
	}
	if len(present) == 0 {
		present = append(present, rng.Intn(n))
	}
	return NewGenotype(n, present...)
}

// sampleLoci builds n loci, each with the given number of alleles.
func sampleLoci(n, alleles int) []*Locus {
	loci := make([]*Locus, n)
	for i := range loci {
		loci[i] = NewLocus(string(rune('A'+i)), alleles)
	}
	return loci
}

// sampleInfections builds n infections, each genotyped at every locus in
// loci with a random presence/absence pattern, sampling times spread one
// day apart.
func sampleInfections(rng *rand.Rand, loci []*Locus, n int) []*Infection {
	infections := make([]*Infection, n)
	for i := range infections {
		inf := NewInfection(
			"infection"+string(rune('0'+i)),
			uint32(i),
			i%2 == 0,
			float64(3+i),
		)
		for _, locus := range loci {
			inf.AddLocus(locus, sampleGenotype(rng, locus.Alleles))
		}
		infections[i] = inf
	}
	return infections
}

// sampleModelConfig returns a ModelConfig with cardinality caps small enough
// for a test to exhaustively enumerate, but large enough not to reject the
// random fixtures sampleInfections produces.
func sampleModelConfig() ModelConfig {
	return ModelConfig{
		COIMax:                4,
		SMax:                  4,
		TMax:                  6,
		PMax:                  4,
		ParentSetCap:          3,
		MaxSnapshotDepth:      32,
		InitialMeanStrains:    1.5,
		InitialPLoss:          0.1,
		InitialFalsePositive:  0.01,
		InitialFalseNegative:  0.01,
		InitialCOIPriorLambda: 1.5,
	}
}

// noopDurationPrior is a DurationPrior that never penalizes any duration,
// useful for tests that want to isolate the transmission-likelihood terms
// from the duration prior.
type noopDurationPrior struct{}

func (noopDurationPrior) LogDensity(symptomatic bool, duration float64) float64 { return 0 }

// constantPosterior is a LogPosterior that never changes value, useful for
// isolating a kernel's own accept/reject bookkeeping from the rest of the
// likelihood graph: every proposal is accepted, since the Metropolis-Hastings
// ratio with no Hastings adjustment and an unchanging target is always 0.
type constantPosterior float64

func (p constantPosterior) Value() float64 { return float64(p) }

// sampleModel builds a small Model over numInfections infections across
// numLoci loci, with no disallowed-parent restrictions. A caller that hits
// *InitialInfeasibility (rare, but possible with few infections and a fully
// random genotype draw) should retry with a different seed rather than
// treat it as a test failure.
func sampleModel(seed int64, numInfections, numLoci, alleles int) (*Model, error) {
	rng := rand.New(rand.NewSource(seed))
	loci := sampleLoci(numLoci, alleles)
	infections := sampleInfections(rng, loci, numInfections)
	cfg := sampleModelConfig()
	return NewModel(cfg, loci, infections, nil, noopDurationPrior{})
}

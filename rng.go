package plasmocore

import "math/rand"

// RNG is the per-chain deterministic random source every kernel draws from.
// It wraps math/rand.Rand rather than the package-level generator so
// replica exchange can give each chain a fully independent stream from one
// master seed, and so a fixed --seed with a single chain on a single core
// reproduces byte-identical output.
type RNG struct {
	*rand.Rand
}

// NewRNG seeds a fresh generator. Chain-splitting (one seed into N
// independent per-chain seeds) is the caller's responsibility — see
// BuildChainSet in run.go, which uses SplitSeeds — so that reproducing a run
// only requires the single top-level --seed value.
func NewRNG(seed int64) *RNG {
	return &RNG{Rand: rand.New(rand.NewSource(seed))}
}

// SplitSeeds derives n child seeds deterministically from a master seed, so
// that --seed L plus --numchains N always reproduces the same per-chain
// streams regardless of how many cores ran them concurrently.
func SplitSeeds(master int64, n int) []int64 {
	src := rand.New(rand.NewSource(master))
	seeds := make([]int64, n)
	for i := range seeds {
		seeds[i] = src.Int63()
	}
	return seeds
}

// Uniform draws a single float64 in [0, 1).
func (r *RNG) Uniform() float64 { return r.Float64() }

// Normal draws a single standard-normal variate.
func (r *RNG) Normal() float64 { return r.NormFloat64() }

// Intn draws a uniform integer in [0, n).
func (r *RNG) Intn(n int) int { return r.Rand.Intn(n) }

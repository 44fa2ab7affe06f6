package plasmocore

import "math"

// probabilityExactCoverage returns the probability that m iid categorical
// draws, restricted and renormalized to the allele indices in support,
// collectively hit every allele in support and none outside it, evaluated
// by inclusion-exclusion over the 2^|support| sub-coverages. support is
// expected to be small (a per-locus presence set under a handful of
// co-infecting strains), so the exponential blow-up is bounded in practice.
func probabilityExactCoverage(support []int, freq []float64, m int) float64 {
	if len(support) == 0 {
		return 1 // vacuously true: no alleles to cover
	}
	total := 0.0
	for _, i := range support {
		total += freq[i]
	}
	if total <= 0 {
		return 0
	}
	n := len(support)
	sum := 0.0
	for mask := 1; mask < (1 << uint(n)); mask++ {
		sub := 0.0
		bitsSet := 0
		for b := 0; b < n; b++ {
			if mask&(1<<uint(b)) != 0 {
				sub += freq[support[b]]
				bitsSet++
			}
		}
		term := math.Pow(sub/total, float64(m))
		if (n-bitsSet)%2 == 0 {
			sum += term
		} else {
			sum -= term
		}
	}
	return sum
}

// CoiPrior is anything SourceTransmissionLikelihood can read a COI PMF from
// and subscribe to for change notification: a raw Parameter[[]float64], or a
// derived distribution node such as ZTGeometric/ZTPoisson (distribution.go).
type CoiPrior interface {
	Observable
	Value() []float64
}

// SourceTransmissionLikelihood is the multinomial log-likelihood of a
// founder genotype (no informative parent) under the population allele
// frequencies, marginalized over COI:
//
//	L = Σ_{m=1..k} p(coi=m) * Π_l Pr(G_l exactly drawn in m iid
//	                                  multinomial draws from f_l)
//
// It caches a (#loci x k+1) matrix of per-locus-per-m log-probabilities;
// when one locus' frequencies or genotype changes, only that locus' row is
// invalidated, but the log-sum-exp across the COI axis is still
// re-evaluated on every read.
type SourceTransmissionLikelihood struct {
	*Computation[float64]

	loci       []*Locus
	freqs      map[LocusHandle]*Simplex
	genotype   map[LocusHandle]*Parameter[Genotype]
	coiPrior   CoiPrior // p(coi=m), 1-indexed, length k+1
	k          int

	rowDirty   map[LocusHandle]bool
	rowCache   map[LocusHandle][]float64 // length k+1, 1-indexed
}

// NewSourceTransmissionLikelihood wires one likelihood node for a founder
// (an Infection acting as its own source, or a LatentParent) across loci.
func NewSourceTransmissionLikelihood(label string, loci []*Locus, freqs map[LocusHandle]*Simplex, genotype map[LocusHandle]*Parameter[Genotype], coiPrior CoiPrior, k int) *SourceTransmissionLikelihood {
	s := &SourceTransmissionLikelihood{
		loci:     loci,
		freqs:    freqs,
		genotype: genotype,
		coiPrior: coiPrior,
		k:        k,
		rowDirty: make(map[LocusHandle]bool),
		rowCache: make(map[LocusHandle][]float64),
	}
	for _, l := range loci {
		s.rowDirty[l.Handle] = true
		h := l.Handle
		Wire(freqs[h], rowInvalidator{s: s, locus: h})
		Wire(genotype[h], rowInvalidator{s: s, locus: h})
	}
	s.Computation = NewComputation(label, s.recompute)
	Wire(coiPrior, s.Computation)
	for _, l := range loci {
		// Any per-locus change must also dirty the top-level Computation so
		// Value() actually re-derives the log-sum-exp, even though the
		// per-locus row cache is what's expensive and is invalidated more
		// surgically above.
		Wire(freqs[l.Handle], s.Computation)
		Wire(genotype[l.Handle], s.Computation)
	}
	return s
}

// rowInvalidator adapts "mark exactly this locus' row dirty" to the
// DirtyCheckpointer contract Wire expects, without giving the per-locus row
// cache its own full save/restore/accept stack — a row is always safe to
// recompute on demand, so instead of snapshotting it a restore of the
// locus' genotype or frequencies simply marks the row dirty again.
type rowInvalidator struct {
	s     *SourceTransmissionLikelihood
	locus LocusHandle
}

func (r rowInvalidator) Dirty() bool        { return r.s.rowDirty[r.locus] }
func (r rowInvalidator) SetDirty()          { r.s.rowDirty[r.locus] = true }
func (r rowInvalidator) SaveState(StateID)  {}
func (r rowInvalidator) RestoreState(StateID) { r.s.rowDirty[r.locus] = true }
func (r rowInvalidator) AcceptState()       {}

func (s *SourceTransmissionLikelihood) row(locus *Locus) []float64 {
	if !s.rowDirty[locus.Handle] {
		if cached, ok := s.rowCache[locus.Handle]; ok {
			return cached
		}
	}
	freq := s.freqs[locus.Handle].Value()
	g := s.genotype[locus.Handle].Value()
	support := g.Alleles()
	row := make([]float64, s.k+1)
	for m := 1; m <= s.k; m++ {
		p := probabilityExactCoverage(support, freq, m)
		if p <= 0 {
			row[m] = math.Inf(-1)
		} else {
			row[m] = math.Log(p)
		}
	}
	s.rowCache[locus.Handle] = row
	s.rowDirty[locus.Handle] = false
	return row
}

func (s *SourceTransmissionLikelihood) recompute() float64 {
	prior := s.coiPrior.Value()
	logTerms := make([]float64, 0, s.k)
	for m := 1; m <= s.k; m++ {
		if prior[m] <= 0 {
			continue
		}
		logTerm := math.Log(prior[m])
		for _, l := range s.loci {
			logTerm += s.row(l)[m]
		}
		logTerms = append(logTerms, logTerm)
	}
	return logSumExp(logTerms)
}

// logSumExp computes log(Σ exp(x_i)) stably; an empty slice or one composed
// entirely of -Inf returns -Inf, the "numerically infeasible" signal leaf
// computations are expected to surface rather than panic on.
func logSumExp(xs []float64) float64 {
	max := math.Inf(-1)
	for _, x := range xs {
		if x > max {
			max = x
		}
	}
	if math.IsInf(max, -1) {
		return max
	}
	sum := 0.0
	for _, x := range xs {
		sum += math.Exp(x - max)
	}
	return max + math.Log(sum)
}

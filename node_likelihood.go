package plasmocore

import "math"

// GenotypeSource is anything NodeTransmissionLikelihood can read a per-locus
// genotype from: an Infection or a LatentParent.
type GenotypeSource interface {
	HandleID() InfectionHandle
	GenotypeAt(locus LocusHandle) Genotype
}

func (inf *Infection) HandleID() InfectionHandle { return inf.Handle }
func (inf *Infection) GenotypeAt(locus LocusHandle) Genotype {
	return inf.LatentGenotype[locus].Value()
}

func (lp *LatentParent) HandleID() InfectionHandle { return lp.Handle }
func (lp *LatentParent) GenotypeAt(locus LocusHandle) Genotype {
	return lp.LatentGenotype[locus].Value()
}

// NodeTransmissionLikelihood is the two-method contract for the probability
// of a child's genotype given a plain parent set, and given a parent set
// plus a latent background source. Two interchangeable leaf implementations
// back it: MultinomialTransmissionProcess and SimpleLoss.
type NodeTransmissionLikelihood interface {
	// LogLikelihood returns ln L(child | parentSet).
	LogLikelihood(loci []*Locus, child GenotypeSource, parentSet []GenotypeSource) float64
	// LogLikelihoodWithLatent returns ln L(child | latentParent, parentSet,
	// sourceProcess), folding in the latent parent's own source-transmission
	// log-likelihood.
	LogLikelihoodWithLatent(loci []*Locus, child GenotypeSource, latent GenotypeSource, parentSet []GenotypeSource, sourceLogLik float64) float64
}

// MultinomialTransmissionProcess draws the transmitted strain count s from a
// zero-truncated Poisson on mean_strains, conditioned on s >= |parentSet|
// and s <= sMax, then assumes each transmitted strain's allele at each locus
// is an iid draw from the pooled, uniform-over-union parent-allele
// distribution.
type MultinomialTransmissionProcess struct {
	MeanStrains *Parameter[float64]
	SMax        int
}

// NewMultinomialTransmissionProcess constructs the process; sMax bounds the
// strain-count sum.
func NewMultinomialTransmissionProcess(meanStrains *Parameter[float64], sMax int) *MultinomialTransmissionProcess {
	return &MultinomialTransmissionProcess{MeanStrains: meanStrains, SMax: sMax}
}

func (m *MultinomialTransmissionProcess) strainCountPMF(sMin int) []float64 {
	lambda := m.MeanStrains.Value()
	pmf := make([]float64, m.SMax+1)
	total := 0.0
	logFact := 0.0
	for s := 1; s <= m.SMax; s++ {
		if s > 1 {
			logFact += math.Log(float64(s))
		}
		v := 0.0
		if s >= sMin {
			logP := float64(s)*math.Log(lambda) - lambda - logFact
			v = math.Exp(logP)
		}
		pmf[s] = v
		total += v
	}
	if total > 0 {
		for s := range pmf {
			pmf[s] /= total
		}
	}
	return pmf
}

func pooledFrequencies(locus *Locus, parentSet []GenotypeSource) []float64 {
	freq := make([]float64, locus.Alleles)
	union := make(map[int]struct{})
	for _, p := range parentSet {
		for _, a := range p.GenotypeAt(locus.Handle).Alleles() {
			union[a] = struct{}{}
		}
	}
	if len(union) == 0 {
		return freq
	}
	w := 1.0 / float64(len(union))
	for a := range union {
		freq[a] = w
	}
	return freq
}

func (m *MultinomialTransmissionProcess) LogLikelihood(loci []*Locus, child GenotypeSource, parentSet []GenotypeSource) float64 {
	sMin := len(parentSet)
	if sMin < 1 {
		sMin = 1
	}
	pmf := m.strainCountPMF(sMin)
	logTerms := make([]float64, 0, m.SMax)
	for s := sMin; s <= m.SMax; s++ {
		if pmf[s] <= 0 {
			continue
		}
		logTerm := math.Log(pmf[s])
		for _, l := range loci {
			freq := pooledFrequencies(l, parentSet)
			support := child.GenotypeAt(l.Handle).Alleles()
			p := probabilityExactCoverage(support, freq, s)
			if p <= 0 {
				logTerm = math.Inf(-1)
				break
			}
			logTerm += math.Log(p)
		}
		logTerms = append(logTerms, logTerm)
	}
	return logSumExp(logTerms)
}

func (m *MultinomialTransmissionProcess) LogLikelihoodWithLatent(loci []*Locus, child, latent GenotypeSource, parentSet []GenotypeSource, sourceLogLik float64) float64 {
	withLatent := append(append([]GenotypeSource(nil), parentSet...), latent)
	return m.LogLikelihood(loci, child, withLatent) + sourceLogLik
}

var _ NodeTransmissionLikelihood = (*MultinomialTransmissionProcess)(nil)

// SimpleLoss models per-allele loss at rate p_loss over a number of
// transmission generations drawn from a zero-truncated Geometric up to
// T_max, with inclusion-exclusion over the 2^|parentSet| joint
// presence/absence events per locus standing in for "any of the parents that
// carry this allele might have transmitted it". Supports
// parent sets up to P_max in size; returns -Inf if any child-present allele
// is absent from every parent.
type SimpleLoss struct {
	PLoss *Parameter[float64]
	TMax  int
	PMax  int
}

// NewSimpleLoss constructs the process.
func NewSimpleLoss(pLoss *Parameter[float64], tMax, pMax int) *SimpleLoss {
	return &SimpleLoss{PLoss: pLoss, TMax: tMax, PMax: pMax}
}

// generationWeights returns the ZT-Geometric pmf over {1,...,TMax} for the
// number of transmission generations, using a shape parameter held fixed at
// 0.5; only p_loss itself is a free model parameter.
func generationWeights(tMax int) []float64 {
	const shape = 0.5
	w := make([]float64, tMax+1)
	total := 0.0
	for g := 1; g <= tMax; g++ {
		v := math.Pow(1-shape, float64(g)) * shape
		w[g] = v
		total += v
	}
	if total > 0 {
		for g := range w {
			w[g] /= total
		}
	}
	return w
}

// singleLinkSurvival is the marginal probability that one transmission path
// (across a random number of generations) preserves an allele.
func (s *SimpleLoss) singleLinkSurvival() float64 {
	pLoss := s.PLoss.Value()
	weights := generationWeights(s.TMax)
	total := 0.0
	for g := 1; g <= s.TMax; g++ {
		total += weights[g] * math.Pow(1-pLoss, float64(g))
	}
	return total
}

func (s *SimpleLoss) LogLikelihood(loci []*Locus, child GenotypeSource, parentSet []GenotypeSource) float64 {
	if len(parentSet) > s.PMax {
		return math.Inf(-1)
	}
	link := s.singleLinkSurvival()
	logLik := 0.0
	for _, l := range loci {
		childG := child.GenotypeAt(l.Handle)
		for a := 0; a < l.Alleles; a++ {
			carriers := 0
			for _, p := range parentSet {
				if p.GenotypeAt(l.Handle).Has(a) {
					carriers++
				}
			}
			present := childG.Has(a)
			if carriers == 0 {
				if present {
					return math.Inf(-1)
				}
				continue // log(1) == 0
			}
			pPresent := probabilityAnyCarrierTransmits(carriers, link)
			if present {
				logLik += math.Log(pPresent)
			} else {
				logLik += math.Log(1 - pPresent)
			}
		}
	}
	return logLik
}

// probabilityAnyCarrierTransmits computes, by inclusion-exclusion over the
// 2^carriers subsets of carrying parents, the probability that at least one
// of them transmits the allele through an independent link of survival
// probability link each. Equal in closed form to 1-(1-link)^carriers;
// spelled out via inclusion-exclusion since that is the form the surrounding
// sum is already structured around.
func probabilityAnyCarrierTransmits(carriers int, link float64) float64 {
	sum := 0.0
	for mask := 1; mask < (1 << uint(carriers)); mask++ {
		bitsSet := popcountInt(mask)
		term := math.Pow(link, float64(bitsSet))
		if bitsSet%2 == 1 {
			sum += term
		} else {
			sum -= term
		}
	}
	return sum
}

func popcountInt(x int) int {
	n := 0
	for x != 0 {
		n++
		x &= x - 1
	}
	return n
}

func (s *SimpleLoss) LogLikelihoodWithLatent(loci []*Locus, child, latent GenotypeSource, parentSet []GenotypeSource, sourceLogLik float64) float64 {
	withLatent := append(append([]GenotypeSource(nil), parentSet...), latent)
	return s.LogLikelihood(loci, child, withLatent) + sourceLogLik
}

var _ NodeTransmissionLikelihood = (*SimpleLoss)(nil)

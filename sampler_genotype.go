package plasmocore

// RandomAllelesBitSetSampler flips one allele bit in a locus's latent
// genotype, subject to two local constraints checked before
// ever touching the posterior: the resulting genotype must keep the
// infection's total complexity-of-infection in `[1, COIMax]`, and the
// proposed genotype must still share at least one allele with each current
// parent at this locus (a transmission-link sanity bound, not a full
// likelihood evaluation). Symmetric single-bit flip, so the MH adjustment is
// always 0.
type RandomAllelesBitSetSampler struct {
	kernelStats
	infection *Infection
	locus     *Locus
	posterior LogPosterior
	states    *StateIDSource
	parentSet *OrderDerivedParentSet
	resolve   ParentResolver
	coiMax    int
}

// NewRandomAllelesBitSetSampler constructs a kernel flipping bits of inf's
// latent genotype at locus.
func NewRandomAllelesBitSetSampler(label string, inf *Infection, locus *Locus, posterior LogPosterior, states *StateIDSource, parentSet *OrderDerivedParentSet, resolve ParentResolver, coiMax int) *RandomAllelesBitSetSampler {
	return &RandomAllelesBitSetSampler{
		kernelStats: kernelStats{label: label},
		infection:   inf,
		locus:       locus,
		posterior:   posterior,
		states:      states,
		parentSet:   parentSet,
		resolve:     resolve,
		coiMax:      coiMax,
	}
}

func (k *RandomAllelesBitSetSampler) Update(rng *RNG) {
	target := k.infection.LatentGenotype[k.locus.Handle]
	cur := target.Value()
	bitIdx := rng.Intn(cur.NumAlleles())
	flip := NewGenotype(cur.NumAlleles(), bitIdx)
	prop := cur.MutationMask(flip)

	totalCOI := k.infection.COI() - cur.Popcount() + prop.Popcount()
	if totalCOI < 1 || totalCOI > k.coiMax {
		k.rejections++
		return
	}
	for _, h := range k.parentSet.Members() {
		parent := k.resolve(h)
		parentG := parent.LatentGenotype[k.locus.Handle].Value()
		if parentG.And(prop).Popcount() == 0 {
			k.rejections++
			return
		}
	}

	id := k.states.Next()
	curLlik := k.posterior.Value()
	target.SaveState(id)
	target.SetValue(prop)

	accepted := metropolisHastingsAccept(rng, k.posterior, curLlik, 0,
		func() { target.AcceptState() },
		func() { target.RestoreState(id) },
	)
	if accepted {
		k.acceptances++
	} else {
		k.rejections++
	}
}

func (k *RandomAllelesBitSetSampler) Adapt(step int) {}

var _ Kernel = (*RandomAllelesBitSetSampler)(nil)

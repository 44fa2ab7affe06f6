package plasmocore

import "github.com/segmentio/ksuid"

// InfectionHandle identifies an Infection or a LatentParent. Stable for the
// lifetime of a Model; minted once at construction, the same pattern as
// LocusHandle (locus.go), minted once and stable for the Model's lifetime.
type InfectionHandle ksuid.KSUID

func newInfectionHandle() InfectionHandle { return InfectionHandle(ksuid.New()) }

func (h InfectionHandle) String() string { return ksuid.KSUID(h).String() }

// AsHandleID narrows an InfectionHandle down to the HandleID space the
// keyed-event bus uses, by packing the first 8 bytes of the KSUID's payload
// big-endian into a uint64 (no hashing). KSUIDs are
// themselves globally unique, so the truncation only needs to preserve
// uniqueness within a single Model's entity set, not globally.
func (h InfectionHandle) AsHandleID() HandleID {
	k := ksuid.KSUID(h)
	b := k.Payload()
	var v uint64
	for i := 0; i < 8 && i < len(b); i++ {
		v = v<<8 | uint64(b[i])
	}
	return HandleID(v)
}

// Infection is an observed, genotyped sample: a sampling time, a symptom
// flag, an inferred infection duration, and per-locus latent and observed
// genotypes. ObservedGenotype is populated from input data and
// is not normally mutated by a kernel; LatentGenotype and Duration are the
// MCMC-mutable members of this entity.
type Infection struct {
	Handle InfectionHandle
	ID     string

	SamplingTime uint32
	Symptomatic  bool

	// Duration is the inferred offset (in days) between acquisition and
	// sampling, with a per-symptom-status discrete prior (the IDP).
	Duration *Parameter[float64]

	// LatentGenotype is the MCMC-mutable true genotype per locus.
	LatentGenotype map[LocusHandle]*Parameter[Genotype]
	// ObservedGenotype is the genotype as read off the assay, per locus.
	// Initialized from input data; the observation process (C13) compares
	// it against LatentGenotype.
	ObservedGenotype map[LocusHandle]*Parameter[Genotype]
}

// NewInfection mints a fresh handle and wires empty genotype maps. Callers
// populate LatentGenotype/ObservedGenotype per locus via AddLocus once loci
// are known, in construction order: Locus handles before Infection genotype parameters.
func NewInfection(id string, samplingTime uint32, symptomatic bool, initialDuration float64) *Infection {
	return &Infection{
		Handle:           newInfectionHandle(),
		ID:               id,
		SamplingTime:     samplingTime,
		Symptomatic:      symptomatic,
		Duration:         NewParameter(id+".duration", initialDuration),
		LatentGenotype:   make(map[LocusHandle]*Parameter[Genotype]),
		ObservedGenotype: make(map[LocusHandle]*Parameter[Genotype]),
	}
}

// CloneForChain builds an independent copy of inf sharing its Handle and
// ID but with fresh Duration/LatentGenotype/ObservedGenotype parameters, so
// one parsed input document can back several replica-exchange chains
// without their kernels stepping on each other's state. Reusing the Handle
// (rather than minting a new one) keeps a disallowed-parents map and any
// per-infection logging keyed the same way across every chain.
func (inf *Infection) CloneForChain() *Infection {
	clone := &Infection{
		Handle:           inf.Handle,
		ID:               inf.ID,
		SamplingTime:     inf.SamplingTime,
		Symptomatic:      inf.Symptomatic,
		Duration:         NewParameter(inf.ID+".duration", inf.Duration.Value()),
		LatentGenotype:   make(map[LocusHandle]*Parameter[Genotype], len(inf.LatentGenotype)),
		ObservedGenotype: make(map[LocusHandle]*Parameter[Genotype], len(inf.ObservedGenotype)),
	}
	for handle, p := range inf.ObservedGenotype {
		clone.ObservedGenotype[handle] = NewParameter(inf.ID+".observed", p.Value())
		clone.LatentGenotype[handle] = NewParameter(inf.ID+".latent", inf.LatentGenotype[handle].Value())
	}
	return clone
}

// AddLocus wires a locus' latent and observed genotype parameters onto this
// infection. observed is typically set once from input data via
// InitializeValue and then left alone; latent starts as a copy of observed
// (the usual MCMC starting point before genotype-bit-flip kernels explore
// alternatives).
func (inf *Infection) AddLocus(locus *Locus, observed Genotype) {
	inf.ObservedGenotype[locus.Handle] = NewParameter(inf.ID+"."+locus.Label+".observed", observed)
	inf.LatentGenotype[locus.Handle] = NewParameter(inf.ID+"."+locus.Label+".latent", observed)
}

// COI returns the latent complexity of infection: the sum, across loci, of
// the popcount of the latent genotype. This is the quantity the mean-COI
// global scalar parameter summarizes across all infections.
func (inf *Infection) COI() int {
	total := 0
	for _, g := range inf.LatentGenotype {
		total += g.Value().Popcount()
	}
	return total
}

// LatentParent represents an unobserved background infection acting as a
// source contributor to one observed Infection's allele pool.
// It carries only a handle, the handle of the Infection it backs, and a
// per-locus latent genotype: no ID, sampling metadata, duration or observed
// genotype.
type LatentParent struct {
	Handle InfectionHandle
	// Of is the observed Infection this latent parent backs. Exactly one
	// LatentParent exists per observed Infection.
	Of InfectionHandle

	LatentGenotype map[LocusHandle]*Parameter[Genotype]
}

// NewLatentParent mints a fresh handle for the background source of inf.
func NewLatentParent(inf *Infection) *LatentParent {
	return &LatentParent{
		Handle:         newInfectionHandle(),
		Of:             inf.Handle,
		LatentGenotype: make(map[LocusHandle]*Parameter[Genotype]),
	}
}

// AddLocus wires a locus' latent genotype parameter onto this latent parent,
// seeded from an initial guess (NewModel passes the backing infection's
// observed genotype at this locus).
func (lp *LatentParent) AddLocus(locus *Locus, initial Genotype) {
	lp.LatentGenotype[locus.Handle] = NewParameter("latent_parent."+lp.Handle.String()+"."+locus.Label, initial)
}

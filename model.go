package plasmocore

import "math"

// ModelConfig holds the scalar bounds and switches that shape a Model's
// construction: cardinality caps that keep the combinatorial pieces
// (probabilityExactCoverage, OrderBasedTransmissionProcess's per-hypothesis
// cache, SimpleLoss's carrier subsets) bounded, plus the choice of which
// NodeTransmissionLikelihood backs every infection.
type ModelConfig struct {
	COIMax           int
	SMax             int // strain-count cap, MultinomialTransmissionProcess
	TMax             int // transmission-generation cap, SimpleLoss
	PMax             int // parent-set cardinality cap, SimpleLoss
	ParentSetCap     int // K, OrderBasedTransmissionProcess hypothesis cap
	MaxSnapshotDepth int

	UseSimpleLoss bool // false selects MultinomialTransmissionProcess
	NullModel     bool // true drops every genotype-conditional term from Likelihood

	InitialMeanStrains      float64
	InitialPLoss            float64
	InitialFalsePositive    float64
	InitialFalseNegative    float64
	InitialCOIPriorLambda   float64
}

// DurationPrior looks up the log-density of an inferred acquisition-to-
// sampling offset under the per-symptom-status infection duration prior
// (the IDP tables io_idp.go loads from CSV). Held as an interface so Model
// construction does not need the loader wired up before the rest of the
// graph can be built.
type DurationPrior interface {
	LogDensity(symptomatic bool, duration float64) float64
}

// Model owns the whole computation graph for one MCMC chain: every
// Infection and its LatentParent, the shared allele-frequency and
// transmission-process parameters, the per-infection likelihood nodes, and
// the two root accumulators (likelihood and prior) that together make up the
// log-posterior a TemperedTarget reads from.
type Model struct {
	Config ModelConfig

	Loci       []*Locus
	Infections []*Infection
	byHandle   map[InfectionHandle]*Infection
	Latents    map[InfectionHandle]*LatentParent

	Ordering   *Ordering
	ParentSets map[InfectionHandle]*OrderDerivedParentSet

	AlleleFreqs    map[LocusHandle]*Simplex
	CoiPrior       CoiPrior
	CoiPriorLambda *Parameter[float64]

	FalsePositiveRate *Parameter[float64]
	FalseNegativeRate *Parameter[float64]
	MeanStrains       *Parameter[float64]
	PLoss             *Parameter[float64]

	NodeProcess NodeTransmissionLikelihood

	SourceLikelihoods map[InfectionHandle]*SourceTransmissionLikelihood // keyed by latent parent handle
	OBTPs             map[InfectionHandle]*OrderBasedTransmissionProcess
	Observations      map[InfectionHandle]*ObservationProcessLikelihood

	Network *TransmissionNetwork // alternate-model DAG parameter; nil unless enabled

	Likelihood *Accumulator
	Prior      *Accumulator
}

// NewModel constructs the full graph for the given loci and infections,
// wired in this order: the two root accumulators and the Ordering (loci and
// infections arrive already built), then the allele-frequency simplices,
// scalar parameters, COI prior and node process, then per infection its
// LatentParent, source process, parent set, and the combining OBTP and
// observation nodes, which are added to the root accumulators. disallowedParents maps
// an infection handle to the set of handles that may NOT act as its parent
// (a missing entry means "everyone preceding it in the ordering is
// eligible"); the input file's allowed_parents field is inverted into this
// form by the IO loader before NewModel ever sees it.
func NewModel(cfg ModelConfig, loci []*Locus, infections []*Infection, disallowedParents map[InfectionHandle]map[InfectionHandle]struct{}, durationPrior DurationPrior) (*Model, error) {
	m := &Model{
		Config:            cfg,
		Loci:              loci,
		Infections:        infections,
		byHandle:          make(map[InfectionHandle]*Infection, len(infections)),
		Latents:           make(map[InfectionHandle]*LatentParent, len(infections)),
		ParentSets:        make(map[InfectionHandle]*OrderDerivedParentSet, len(infections)),
		AlleleFreqs:       make(map[LocusHandle]*Simplex, len(loci)),
		SourceLikelihoods: make(map[InfectionHandle]*SourceTransmissionLikelihood, len(infections)),
		OBTPs:             make(map[InfectionHandle]*OrderBasedTransmissionProcess, len(infections)),
		Observations:      make(map[InfectionHandle]*ObservationProcessLikelihood, len(infections)),
		Likelihood:        NewAccumulator("log_likelihood"),
		Prior:             NewAccumulator("log_prior"),
	}

	for _, inf := range infections {
		m.byHandle[inf.Handle] = inf
	}

	handles := make([]InfectionHandle, len(infections))
	for i, inf := range infections {
		handles[i] = inf.Handle
	}
	m.Ordering = NewOrdering("ordering", handles)

	for _, l := range loci {
		uniform := make([]float64, l.Alleles)
		for i := range uniform {
			uniform[i] = 1.0 / float64(l.Alleles)
		}
		m.AlleleFreqs[l.Handle] = NewSimplex("freq."+l.Label, uniform, 1e-6, 1e-9)
	}

	m.FalsePositiveRate = NewParameter("false_positive_rate", cfg.InitialFalsePositive)
	m.FalseNegativeRate = NewParameter("false_negative_rate", cfg.InitialFalseNegative)
	m.MeanStrains = NewParameter("mean_strains", cfg.InitialMeanStrains)
	m.PLoss = NewParameter("p_loss", cfg.InitialPLoss)

	m.CoiPriorLambda = NewParameter("coi_prior_lambda", cfg.InitialCOIPriorLambda)
	m.CoiPrior = NewZTPoisson("coi_prior", m.CoiPriorLambda, cfg.COIMax)

	// nodeProcessSource is the single scalar Parameter the chosen
	// NodeTransmissionLikelihood reads from; OBTP wires its own cache
	// invalidation off of that parameter directly; the process struct itself
	// is a stateless strategy object with no events of its own to fire.
	var nodeProcessSource Observable
	if cfg.UseSimpleLoss {
		m.NodeProcess = NewSimpleLoss(m.PLoss, cfg.TMax, cfg.PMax)
		nodeProcessSource = m.PLoss
	} else {
		m.NodeProcess = NewMultinomialTransmissionProcess(m.MeanStrains, cfg.SMax)
		nodeProcessSource = m.MeanStrains
	}

	resolve := ParentResolver(func(h InfectionHandle) *Infection { return m.byHandle[h] })

	for _, inf := range infections {
		latent := NewLatentParent(inf)
		for _, l := range loci {
			latent.AddLocus(l, inf.ObservedGenotype[l.Handle].Value())
		}
		m.Latents[inf.Handle] = latent

		genotypeByLocus := make(map[LocusHandle]*Parameter[Genotype], len(loci))
		for _, l := range loci {
			genotypeByLocus[l.Handle] = latent.LatentGenotype[l.Handle]
		}
		source := NewSourceTransmissionLikelihood("source."+inf.ID, loci, m.AlleleFreqs, genotypeByLocus, m.CoiPrior, cfg.COIMax)
		m.SourceLikelihoods[inf.Handle] = source

		disallowed := disallowedParents[inf.Handle]
		parentSet := NewOrderDerivedParentSet(m.Ordering, inf.Handle, disallowed)
		m.ParentSets[inf.Handle] = parentSet

		obtp := NewOrderBasedTransmissionProcess(
			"obtp."+inf.ID,
			inf,
			loci,
			parentSet,
			latent,
			resolve,
			m.NodeProcess,
			nodeProcessSource,
			source,
			cfg.ParentSetCap,
			cfg.MaxSnapshotDepth,
		)
		m.OBTPs[inf.Handle] = obtp

		obs := NewObservationProcessLikelihood("observation."+inf.ID, loci, inf, m.FalsePositiveRate, m.FalseNegativeRate)
		m.Observations[inf.Handle] = obs

		// Under the null model, OBTP and the observation process are still
		// built and still maintained (so hotloading or later switching models
		// mid-run would have consistent state to resume from), they are just
		// never added to Likelihood: genotype data carries no weight, only
		// the transmission-topology structure (Ordering, parent sets) does.
		if !cfg.NullModel {
			m.Likelihood.AddInput(inf.Handle.AsHandleID(), obtp)
			m.Likelihood.AddInput(hashCombine(inf.Handle.AsHandleID(), 1), obs)
		}

		if durationPrior != nil {
			m.Prior.AddInput(hashCombine(inf.Handle.AsHandleID(), 2), newDurationLogDensity(inf, durationPrior))
		}
	}

	if math.IsInf(m.Likelihood.Value(), -1) {
		return nil, infeasibilityError(m)
	}

	return m, nil
}

func infeasibilityError(m *Model) error {
	for h, obtp := range m.OBTPs {
		if math.IsInf(obtp.Peek(), -1) {
			inf := m.byHandle[h]
			members := m.ParentSets[h].Members()
			names := make([]string, len(members))
			for i, p := range members {
				names[i] = m.byHandle[p].ID
			}
			return &InitialInfeasibility{Infection: inf.ID, ParentSet: names}
		}
	}
	return &InitialInfeasibility{Infection: "<unknown>"}
}

// hashCombine folds a small integer discriminant into a HandleID so a single
// Infection can contribute more than one keyed input (its OBTP term and its
// observation-process term) to the same Accumulator without collision.
func hashCombine(h HandleID, salt uint64) HandleID {
	return h*31 + HandleID(salt)
}

type durationLogDensity struct {
	*Computation[float64]
}

func newDurationLogDensity(inf *Infection, prior DurationPrior) *durationLogDensity {
	d := &durationLogDensity{}
	d.Computation = NewComputation(inf.ID+".duration_prior", func() float64 {
		return prior.LogDensity(inf.Symptomatic, inf.Duration.Value())
	})
	Wire(inf.Duration, d.Computation)
	return d
}

var _ AccumulatorInput = (*durationLogDensity)(nil)

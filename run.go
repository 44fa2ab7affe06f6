package plasmocore

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"
)

// BuildScheduler registers one kernel per mutable parameter in m: the five
// scalar rates (bounded random walks), one SALT sampler per locus' allele
// frequencies, an ordering sampler, and one genotype bit-flip sampler per
// infection (and per latent parent) per locus. All are eligible on every
// step (updateWindow 1) and self-adapt after every 50 of their own updates,
// accepted or rejected, except
// the ordering sampler and the genotype samplers, which have nothing to
// adapt.
//
// A latent parent's genotype sampler is built over an always-empty
// OrderDerivedParentSet: Handle is never entered into m.Ordering, so
// PositionOf(latent.Handle) reads the zero value and the transmission-link
// check in RandomAllelesBitSetSampler.Update never has a member to check
// against. That is correct here, since a latent parent is the root of its
// observed infection's source term (source_likelihood.go), not itself a
// transmission recipient with upstream parents to stay allele-compatible
// with.
func BuildScheduler(m *Model, target *TemperedTarget, states *StateIDSource) (*RandomizedScheduler, error) {
	sched := NewRandomizedScheduler()
	resolve := ParentResolver(func(h InfectionHandle) *Infection {
		if inf, ok := m.byHandleLookup(h); ok {
			return inf
		}
		return nil
	})

	register := func(k Kernel, weight float64, adaptationWindow int) error {
		return sched.Register(k, weight, 1, adaptationWindow)
	}

	if err := register(NewBoundedContinuousRandomWalk("p_loss", m.PLoss, target, states, 0, 1, 0.05, 0.001, 0.5, 0.3, 0.6), 1, 50); err != nil {
		return nil, err
	}
	if err := register(NewBoundedContinuousRandomWalk("mean_strains", m.MeanStrains, target, states, 0.01, float64(m.Config.SMax), 0.3, 0.01, 3, 0.3, 0.6), 1, 50); err != nil {
		return nil, err
	}
	if err := register(NewBoundedContinuousRandomWalk("false_positive_rate", m.FalsePositiveRate, target, states, 0, 1, 0.02, 0.0001, 0.3, 0.3, 0.6), 1, 50); err != nil {
		return nil, err
	}
	if err := register(NewBoundedContinuousRandomWalk("false_negative_rate", m.FalseNegativeRate, target, states, 0, 1, 0.02, 0.0001, 0.3, 0.3, 0.6), 1, 50); err != nil {
		return nil, err
	}
	if err := register(NewBoundedContinuousRandomWalk("coi_prior_lambda", m.CoiPriorLambda, target, states, 0.01, float64(m.Config.COIMax), 0.3, 0.01, 3, 0.3, 0.6), 1, 50); err != nil {
		return nil, err
	}

	for _, locus := range m.Loci {
		simplex := m.AlleleFreqs[locus.Handle]
		k := NewSALTSampler("freq."+locus.Label, simplex, target, states, 0.2, 0.01, 2, 0.3, 0.6)
		if err := register(k, 1, 50); err != nil {
			return nil, err
		}
	}

	if err := register(NewZanellaNeighborOrderSampler("ordering", m.Ordering, target, states, 4), float64(len(m.Infections)), 0); err != nil {
		return nil, err
	}

	for _, inf := range m.Infections {
		parentSet := m.ParentSets[inf.Handle]
		latent := m.Latents[inf.Handle]
		emptyParentSet := NewOrderDerivedParentSet(m.Ordering, latent.Handle, nil)

		for _, locus := range m.Loci {
			k := NewRandomAllelesBitSetSampler(inf.ID+"."+locus.Label+".latent", inf, locus, target, states, parentSet, resolve, m.Config.COIMax)
			if err := register(k, 1, 0); err != nil {
				return nil, err
			}

			kLatent := NewRandomAllelesBitSetSampler(inf.ID+"."+locus.Label+".latent_parent", latentAsInfection(latent), locus, target, states, emptyParentSet, resolve, m.Config.COIMax)
			if err := register(kLatent, 1, 0); err != nil {
				return nil, err
			}
		}
	}

	return sched, nil
}

// byHandleLookup exposes Model's private handle index to the scheduler
// builder without widening Model's exported surface to a public map.
func (m *Model) byHandleLookup(h InfectionHandle) (*Infection, bool) {
	inf, ok := m.byHandle[h]
	return inf, ok
}

// latentAsInfection adapts a LatentParent to the *Infection shape
// RandomAllelesBitSetSampler expects: the kernel only ever touches
// LatentGenotype and calls COI(), both of which read from the embedded map
// regardless of which concrete entity it came from.
func latentAsInfection(lp *LatentParent) *Infection {
	return &Infection{
		Handle:         lp.Handle,
		ID:             "latent_parent." + lp.Of.String(),
		LatentGenotype: lp.LatentGenotype,
	}
}

// ChainSet is one replica-exchange run's worth of per-chain state: the
// Models (one per chain, each with its own infection/parameter copies), the
// Chains wrapping them, and the loggers writing each chain's trace. Models
// and Loggers are indexed by Chain.ID, not by a chain's current rank in
// ReplicaExchange: a swap permutes rank-to-chain assignment but never
// changes a Chain's ID, so looking up by ID stays correct across swaps.
type ChainSet struct {
	Models  map[int]*Model
	Chains  []*Chain
	Loggers map[int]*RunLogger

	// Sqlite mirrors each chain's trace into a SQLite database alongside its
	// CSV/YAML output, keyed by Chain.ID like Models and Loggers. Nil when
	// BuildChainSet was called with sqliteMirror false; logSample skips the
	// mirror write entirely in that case rather than probing a nil map.
	Sqlite map[int]*SQLiteLogger
}

// BuildChainSet constructs numChains independent Models over cloned
// infections, tempers each at the inverse temperature
// LinearInverseTemperatures assigns it, and wires a RunLogger per chain. When
// sqliteMirror is set, it also opens a SQLiteLogger per chain under the same
// output directory, the way the teacher's bin/contagion selected SQLiteLogger
// as an alternate DataLogger.
func BuildChainSet(cfg ModelConfig, loci []*Locus, infections []*Infection, disallowed map[InfectionHandle]map[InfectionHandle]struct{}, durationPrior DurationPrior, numChains int, gradient float64, masterSeed int64, outputDir string, sqliteMirror bool) (*ChainSet, error) {
	betas := LinearInverseTemperatures(numChains, gradient)
	seeds := SplitSeeds(masterSeed, numChains)

	set := &ChainSet{
		Models:  make(map[int]*Model, numChains),
		Chains:  make([]*Chain, numChains),
		Loggers: make(map[int]*RunLogger, numChains),
	}
	if sqliteMirror {
		set.Sqlite = make(map[int]*SQLiteLogger, numChains)
	}

	infectionIDs := make([]string, len(infections))
	for i, inf := range infections {
		infectionIDs[i] = inf.ID
	}

	for c := 0; c < numChains; c++ {
		cloned := make([]*Infection, len(infections))
		for i, inf := range infections {
			cloned[i] = inf.CloneForChain()
		}

		m, err := NewModel(cfg, loci, cloned, disallowed, durationPrior)
		if err != nil {
			return nil, fmt.Errorf("plasmocore: chain %d: %w", c, err)
		}
		set.Models[c] = m

		target := NewTemperedTarget(m.Likelihood, m.Prior, betas[c])
		states := NewStateIDSource()
		sched, err := BuildScheduler(m, target, states)
		if err != nil {
			return nil, fmt.Errorf("plasmocore: chain %d: %w", c, err)
		}

		set.Chains[c] = NewChain(c, target, sched, NewRNG(seeds[c]))

		logger := NewRunLogger(outputDir, c)
		if err := logger.Init(scalarHotloadLabels, loci, infectionIDs); err != nil {
			return nil, fmt.Errorf("plasmocore: chain %d: %w", c, err)
		}
		set.Loggers[c] = logger

		if sqliteMirror {
			dbPath := filepath.Join(outputDir, fmt.Sprintf("chain%03d", c), "trace.sqlite3")
			sl, err := NewSQLiteLogger(dbPath, c)
			if err != nil {
				return nil, fmt.Errorf("plasmocore: chain %d: opening sqlite mirror: %w", c, err)
			}
			if err := sl.Init(); err != nil {
				return nil, fmt.Errorf("plasmocore: chain %d: initializing sqlite mirror: %w", c, err)
			}
			set.Sqlite[c] = sl
		}
	}

	return set, nil
}

// Close closes every per-chain SQLite mirror, if any were opened. Safe to
// call on a ChainSet built without sqliteMirror: Sqlite is nil and the range
// is a no-op.
func (set *ChainSet) Close() error {
	for _, sl := range set.Sqlite {
		if err := sl.Close(); err != nil {
			return err
		}
	}
	return nil
}

// RunOptions bundles everything the sampling loop needs beyond the chain
// set: iteration counts, the interrupt guard, and optional diagnostics.
type RunOptions struct {
	Burnin       int
	Sample       int
	Thin         int
	SwapInterval int
	Logger       zerolog.Logger
	Diagnostics  *RunDiagnostics
	Metrics      *RunMetrics
	Guard        *InterruptGuard
}

// RunReplicaExchange drives burn-in (unlogged) followed by the sampling
// phase (logged every Thin steps) across every chain in set, swapping
// adjacent temperatures every SwapInterval steps. It returns after Sample
// steps complete or the interrupt guard reports a signal, in which case it
// returns *Interrupted having flushed whatever samples it already logged.
func RunReplicaExchange(ctx context.Context, set *ChainSet, opts RunOptions) error {
	driverSeed := int64(1)
	for _, c := range set.Chains {
		driverSeed += int64(c.ID) + 1
	}
	driverRNG := NewRNG(driverSeed)

	exchange := NewReplicaExchange(set.Chains, opts.Logger)

	for step := 1; step <= opts.Burnin; step++ {
		if opts.Guard != nil && opts.Guard.Interrupted() {
			return &Interrupted{}
		}
		if err := exchange.StepAll(ctx); err != nil {
			return err
		}
		if opts.SwapInterval > 0 && step%opts.SwapInterval == 0 {
			exchange.SwapOnce(driverRNG)
		}
	}

	for step := 1; step <= opts.Sample; step++ {
		if opts.Guard != nil && opts.Guard.Interrupted() {
			if opts.Diagnostics != nil {
				opts.Diagnostics.Interrupted(step)
			}
			return &Interrupted{}
		}
		if err := exchange.StepAll(ctx); err != nil {
			return err
		}
		if opts.SwapInterval > 0 && step%opts.SwapInterval == 0 {
			exchange.SwapOnce(driverRNG)
		}

		if step%opts.Thin == 0 {
			if err := logSample(set, step); err != nil {
				return err
			}
			if opts.Metrics != nil {
				observeMetrics(opts.Metrics, set, exchange)
			}
		}
	}

	return nil
}

// logSample writes one trace row per chain, looking up each chain's Model
// and RunLogger by Chain.ID rather than by its current slot in set.Chains
// (which SwapOnce permutes).
func logSample(set *ChainSet, step int) error {
	for _, c := range set.Chains {
		m := set.Models[c.ID]
		l := set.Loggers[c.ID]
		sl := set.Sqlite[c.ID]

		for label, p := range map[string]*Parameter[float64]{
			"mean_strains":        m.MeanStrains,
			"p_loss":              m.PLoss,
			"false_positive_rate": m.FalsePositiveRate,
			"false_negative_rate": m.FalseNegativeRate,
			"coi_prior_lambda":    m.CoiPriorLambda,
		} {
			if err := l.WriteScalar(label, step, p.Value()); err != nil {
				return err
			}
			if sl != nil {
				if err := sl.WriteScalar(label, step, p.Value()); err != nil {
					return err
				}
			}
		}

		for _, locus := range m.Loci {
			freq := m.AlleleFreqs[locus.Handle].Value()
			if err := l.WriteFrequencies(locus, step, freq); err != nil {
				return err
			}
			if sl != nil {
				if err := sl.WriteFrequencies(locus.Label, step, freq); err != nil {
					return err
				}
			}
		}

		for _, inf := range m.Infections {
			latent := m.Latents[inf.Handle]
			for _, locus := range m.Loci {
				observed := inf.LatentGenotype[locus.Handle].Value()
				latentVal := latent.LatentGenotype[locus.Handle].Value()
				if err := l.WriteGenotype(inf.ID, locus, false, step, observed); err != nil {
					return err
				}
				if err := l.WriteGenotype(inf.ID, locus, true, step, latentVal); err != nil {
					return err
				}
				if sl != nil {
					if err := sl.WriteGenotype(inf.ID, locus.Label, false, step, observed); err != nil {
						return err
					}
					if err := sl.WriteGenotype(inf.ID, locus.Label, true, step, latentVal); err != nil {
						return err
					}
				}
			}
		}

		sequence := m.Ordering.Sequence()
		orderingIDs := make([]string, len(sequence))
		for idx, h := range sequence {
			orderingIDs[idx] = m.byHandle[h].ID
		}
		parentSets := make(map[string][]string, len(m.Infections))
		for _, inf := range m.Infections {
			members := m.ParentSets[inf.Handle].Members()
			names := make([]string, len(members))
			for i, h := range members {
				names[i] = m.byHandle[h].ID
			}
			parentSets[inf.ID] = names
		}
		if err := l.WriteNetwork(step, orderingIDs, parentSets); err != nil {
			return err
		}
	}
	return nil
}

func observeMetrics(metrics *RunMetrics, set *ChainSet, exchange *ReplicaExchange) {
	metrics.ObserveSwap(exchange.SwapAcceptanceRate())
	for _, c := range set.Chains {
		label := fmt.Sprintf("%d", c.ID)
		metrics.ObserveChain(label, c.Target.InverseTemperature, c.LogLikelihood())
		for _, k := range c.Scheduler.Kernels() {
			metrics.ObserveKernel(k.Label(), k.AcceptanceRate())
		}
	}
}

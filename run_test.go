package plasmocore

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSchedulerRegistersOneKernelPerMutableParameter(t *testing.T) {
	m, err := sampleModel(10, 3, 2, 3)
	require.NoError(t, err)

	target := NewTemperedTarget(m.Likelihood, m.Prior, 1)
	states := NewStateIDSource()
	sched, err := BuildScheduler(m, target, states)
	require.NoError(t, err)

	// 5 scalar kernels + 1 per locus (SALT) + 1 ordering kernel +
	// 2 genotype kernels (infection, latent parent) per infection per locus.
	want := 5 + len(m.Loci) + 1 + 2*len(m.Infections)*len(m.Loci)
	assert.Equal(t, want, len(sched.Kernels()))
}

func TestBuildSchedulerStepsWithoutPanicking(t *testing.T) {
	m, err := sampleModel(11, 3, 2, 3)
	require.NoError(t, err)

	target := NewTemperedTarget(m.Likelihood, m.Prior, 1)
	states := NewStateIDSource()
	sched, err := BuildScheduler(m, target, states)
	require.NoError(t, err)

	rng := NewRNG(99)
	for i := 0; i < 200; i++ {
		sched.Step(rng)
	}
	assert.False(t, math.IsInf(target.Value(), -1), "200 accepted-or-rejected steps must never leave the posterior at -Inf")
}

func TestBuildChainSetAndRunReplicaExchangeSmoke(t *testing.T) {
	rng := rand.New(rand.NewSource(21))
	loci := sampleLoci(2, 2)
	infections := sampleInfections(rng, loci, 3)
	cfg := sampleModelConfig()

	outputDir := t.TempDir()
	set, err := BuildChainSet(cfg, loci, infections, nil, noopDurationPrior{}, 2, 0.5, 42, outputDir, true)
	require.NoError(t, err)
	require.Len(t, set.Chains, 2)
	defer set.Close()

	opts := RunOptions{
		Burnin:       5,
		Sample:       10,
		Thin:         5,
		SwapInterval: 2,
		Logger:       zerolog.Nop(),
	}
	err = RunReplicaExchange(context.Background(), set, opts)
	require.NoError(t, err)
}

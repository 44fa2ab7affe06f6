package plasmocore

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneForChainSharesIdentityNotState(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	loci := sampleLoci(2, 3)
	inf := sampleInfections(rng, loci, 1)[0]

	clone := inf.CloneForChain()
	assert.Equal(t, inf.Handle, clone.Handle)
	assert.Equal(t, inf.ID, clone.ID)
	require.Len(t, clone.LatentGenotype, len(inf.LatentGenotype))

	id := StateID(1)
	clone.LatentGenotype[loci[0].Handle].SaveState(id)
	mutated := NewGenotype(loci[0].Alleles, 0)
	clone.LatentGenotype[loci[0].Handle].SetValue(mutated)
	clone.LatentGenotype[loci[0].Handle].AcceptState()

	assert.True(t, clone.LatentGenotype[loci[0].Handle].Value().Equal(mutated))
	assert.NotEqual(t, mutated, inf.LatentGenotype[loci[0].Handle].Value(),
		"mutating a clone's latent genotype must not be visible through the original Infection's Parameter")
}

func TestCloneForChainCOIIsIndependent(t *testing.T) {
	loci := sampleLoci(1, 4)
	inf := NewInfection("inf0", 0, true, 3)
	inf.AddLocus(loci[0], NewGenotype(4, 0))

	clone := inf.CloneForChain()
	require.Equal(t, 1, inf.COI())

	id := StateID(1)
	clone.LatentGenotype[loci[0].Handle].SaveState(id)
	clone.LatentGenotype[loci[0].Handle].SetValue(NewGenotype(4, 0, 1, 2, 3))
	clone.LatentGenotype[loci[0].Handle].AcceptState()

	assert.Equal(t, 4, clone.COI())
	assert.Equal(t, 1, inf.COI())
}

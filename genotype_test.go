package plasmocore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGenotypeRoundTrip(t *testing.T) {
	g := NewGenotype(4, 0, 2)
	assert.Equal(t, 4, g.NumAlleles())
	assert.True(t, g.Has(0))
	assert.False(t, g.Has(1))
	assert.True(t, g.Has(2))
	assert.False(t, g.Has(3))
	assert.Equal(t, 2, g.Popcount())
	assert.Equal(t, []int{0, 2}, g.Alleles())
	assert.Equal(t, "1010", g.String())
}

func TestGenotypeAndOrNot(t *testing.T) {
	a := NewGenotype(4, 0, 1)
	b := NewGenotype(4, 1, 2)

	assert.Equal(t, NewGenotype(4, 1), a.And(b))
	assert.Equal(t, NewGenotype(4, 0, 1, 2), a.Or(b))
	assert.Equal(t, NewGenotype(4, 2, 3), a.Not())
}

func TestGenotypeCounts(t *testing.T) {
	ref := NewGenotype(4, 0, 1)
	g := NewGenotype(4, 1, 2)

	tp, fp, tn, fn := g.Counts(ref)
	assert.Equal(t, 1, tp) // allele 1 present in both
	assert.Equal(t, 1, fp) // allele 2 present in g only
	assert.Equal(t, 1, tn) // allele 3 absent in both
	assert.Equal(t, 1, fn) // allele 0 present in ref only
}

func TestGenotypeMutationMaskIsXOR(t *testing.T) {
	a := NewGenotype(4, 0, 1)
	b := NewGenotype(4, 1, 2)
	mask := a.MutationMask(b)
	assert.Equal(t, NewGenotype(4, 0, 2), mask)
	assert.True(t, a.Equal(a))
	assert.False(t, a.Equal(b))
}

func TestGenotypeFromBitsMasksHighBits(t *testing.T) {
	g := GenotypeFromBits(3, 0b1111)
	assert.Equal(t, 3, g.Popcount())
	assert.Equal(t, "111", g.String())
}

func TestNewGenotypePanicsAboveMaxAlleles(t *testing.T) {
	require.Panics(t, func() { NewGenotype(MaxAlleles + 1) })
}

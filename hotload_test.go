package plasmocore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyHotloadNoOpWhenChainDirMissing(t *testing.T) {
	m, err := sampleModel(1, 3, 2, 2)
	require.NoError(t, err)
	before := m.PLoss.Value()

	err = ApplyHotload(m, t.TempDir(), 0)
	require.NoError(t, err)
	assert.Equal(t, before, m.PLoss.Value())
}

func TestApplyHotloadReadsLastRow(t *testing.T) {
	m, err := sampleModel(2, 3, 2, 2)
	require.NoError(t, err)

	outputDir := t.TempDir()
	chainDir := filepath.Join(outputDir, "chain000")
	require.NoError(t, os.MkdirAll(chainDir, 0755))
	require.NoError(t, os.WriteFile(
		filepath.Join(chainDir, "p_loss.csv"),
		[]byte("step,value\n1,0.2\n50,0.37\n"),
		0644,
	))

	require.NoError(t, ApplyHotload(m, outputDir, 0))
	assert.Equal(t, 0.37, m.PLoss.Value())
	// mean_strains has no CSV on disk, so it keeps its configured initial value.
	assert.Equal(t, m.Config.InitialMeanStrains, m.MeanStrains.Value())
}

func TestApplyHotloadRejectsMalformedRow(t *testing.T) {
	m, err := sampleModel(3, 3, 2, 2)
	require.NoError(t, err)

	outputDir := t.TempDir()
	chainDir := filepath.Join(outputDir, "chain000")
	require.NoError(t, os.MkdirAll(chainDir, 0755))
	require.NoError(t, os.WriteFile(
		filepath.Join(chainDir, "p_loss.csv"),
		[]byte("step,value\nnot,a,csv,row\n"),
		0644,
	))

	assert.Error(t, ApplyHotload(m, outputDir, 0))
}

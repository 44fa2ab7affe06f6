package plasmocore

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// scalarHotloadLabels lists the scalar parameters RunLogger.Init registers
// a CSV for (BuildChainSet passes this list to Init). hotload reads each one back so resuming a run with --hotload starts from the
// last sampled value rather than the configured initial value.
var scalarHotloadLabels = []string{
	"mean_strains",
	"p_loss",
	"false_positive_rate",
	"false_negative_rate",
	"coi_prior_lambda",
}

// ApplyHotload reads the last row of every scalar CSV RunLogger previously
// wrote for chainID under outputDir and sets the matching Model parameter
// to that value, leaving any scalar with no prior output file at its
// configured initial value. It is a no-op (not an error) if the chain
// directory does not exist yet, since that is the expected state for a
// brand-new run sharing an output directory with other chains.
func ApplyHotload(m *Model, outputDir string, chainID int) error {
	chainDir := filepath.Join(outputDir, fmt.Sprintf("chain%03d", chainID))
	if _, err := os.Stat(chainDir); os.IsNotExist(err) {
		return nil
	}

	scalars := map[string]*Parameter[float64]{
		"mean_strains":         m.MeanStrains,
		"p_loss":               m.PLoss,
		"false_positive_rate":  m.FalsePositiveRate,
		"false_negative_rate":  m.FalseNegativeRate,
		"coi_prior_lambda":     m.CoiPriorLambda,
	}

	for _, label := range scalarHotloadLabels {
		path := filepath.Join(chainDir, sanitizeFilename(label)+".csv")
		value, ok, err := lastCSVValue(path)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		// The graph is already built, so go through save/set/accept rather
		// than InitializeValue: SetValue fires post_change, which invalidates
		// every cached likelihood that depends on this scalar.
		const hotloadState StateID = 1
		p := scalars[label]
		p.SaveState(hotloadState)
		p.SetValue(value)
		p.AcceptState()
	}
	return nil
}

// lastCSVValue reads a "step,value\n" CSV and returns the value column of
// its final data row.
func lastCSVValue(path string) (float64, bool, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	defer f.Close()

	var last string
	scanner := bufio.NewScanner(f)
	scanner.Scan() // discard header
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			last = line
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, false, err
	}
	if last == "" {
		return 0, false, nil
	}
	fields := strings.Split(last, ",")
	if len(fields) != 2 {
		return 0, false, fmt.Errorf("plasmocore: malformed hotload row in %q: %q", path, last)
	}
	value, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return 0, false, err
	}
	return value, true, nil
}

package plasmocore

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// RunLogger is the system of record for posterior samples: one append-only
// CSV per scalar parameter and per allele-frequency vector, a per-infection
// genotype CSV tree, a matching latent-parent tree, and a YAML dump of the
// current ordering and parent sets, all rooted under OutputDir. Each write
// formats one row into a buffer and appends it to its file; scalar and
// frequency CSV headers are written once at Init, genotype CSV headers on
// the first write to each file.
type RunLogger struct {
	outputDir string
	chainID   int

	scalarPaths map[string]string
	freqPaths   map[LocusHandle]string
	genotypeDir string
	latentDir   string
	networkPath string
}

// NewRunLogger creates a logger rooted at outputDir for chain chainID. It
// touches no files; Init creates the directory tree.
func NewRunLogger(outputDir string, chainID int) *RunLogger {
	return &RunLogger{
		outputDir:   outputDir,
		chainID:     chainID,
		scalarPaths: make(map[string]string),
		freqPaths:   make(map[LocusHandle]string),
	}
}

// Init creates the output directory tree and one header-only CSV per scalar
// parameter and per locus' allele-frequency vector.
func (l *RunLogger) Init(scalarLabels []string, loci []*Locus, infectionIDs []string) error {
	chainDir := filepath.Join(l.outputDir, fmt.Sprintf("chain%03d", l.chainID))
	l.genotypeDir = filepath.Join(chainDir, "genotypes")
	l.latentDir = filepath.Join(chainDir, "latent_parents")
	l.networkPath = filepath.Join(chainDir, "network.yaml")

	for _, dir := range []string{chainDir, l.genotypeDir, l.latentDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	for _, label := range scalarLabels {
		path := filepath.Join(chainDir, sanitizeFilename(label)+".csv")
		l.scalarPaths[label] = path
		if err := newFileIfAbsent(path, "step,value\n"); err != nil {
			return err
		}
	}

	for _, locus := range loci {
		path := filepath.Join(chainDir, "freq."+sanitizeFilename(locus.Label)+".csv")
		l.freqPaths[locus.Handle] = path
		header := "step"
		for a := 0; a < locus.Alleles; a++ {
			header += fmt.Sprintf(",allele%d", a)
		}
		header += "\n"
		if err := newFileIfAbsent(path, header); err != nil {
			return err
		}
	}

	for _, id := range infectionIDs {
		if err := os.MkdirAll(filepath.Join(l.genotypeDir, sanitizeFilename(id)), 0755); err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Join(l.latentDir, sanitizeFilename(id)), 0755); err != nil {
			return err
		}
	}

	return nil
}

// WriteScalar appends one (step, value) row to the CSV for the named scalar
// parameter.
func (l *RunLogger) WriteScalar(label string, step int, value float64) error {
	path, ok := l.scalarPaths[label]
	if !ok {
		return fmt.Errorf("plasmocore: no scalar CSV registered for %q", label)
	}
	var b bytes.Buffer
	fmt.Fprintf(&b, "%d,%g\n", step, value)
	return AppendToFile(path, b.Bytes())
}

// WriteFrequencies appends one row of a locus' allele-frequency vector.
func (l *RunLogger) WriteFrequencies(locus *Locus, step int, freq []float64) error {
	path, ok := l.freqPaths[locus.Handle]
	if !ok {
		return fmt.Errorf("plasmocore: no frequency CSV registered for locus %q", locus.Label)
	}
	var b bytes.Buffer
	fmt.Fprintf(&b, "%d", step)
	for _, f := range freq {
		fmt.Fprintf(&b, ",%g", f)
	}
	b.WriteString("\n")
	return AppendToFile(path, b.Bytes())
}

// WriteGenotype appends one row of an infection's latent genotype at one
// locus (or a latent parent's, when isLatent is true), encoded as an allele
// bit-string.
func (l *RunLogger) WriteGenotype(infectionID string, locus *Locus, isLatent bool, step int, g Genotype) error {
	dir := l.genotypeDir
	if isLatent {
		dir = l.latentDir
	}
	path := filepath.Join(dir, sanitizeFilename(infectionID), sanitizeFilename(locus.Label)+".csv")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := newFileIfAbsent(path, "step,genotype\n"); err != nil {
			return err
		}
	}
	var b bytes.Buffer
	fmt.Fprintf(&b, "%d,%s\n", step, g.String())
	return AppendToFile(path, b.Bytes())
}

// networkDump is the YAML shape WriteNetwork serializes: the current
// ordering and, per child, its resolved parent set.
type networkDump struct {
	Step      int                 `yaml:"step"`
	Ordering  []string            `yaml:"ordering"`
	ParentSet map[string][]string `yaml:"parent_sets"`
}

// WriteNetwork overwrites the network YAML dump with the current ordering
// and parent sets (unlike the per-sample CSVs, this file holds only the
// latest snapshot; no other output records earlier orderings or parent
// sets).
func (l *RunLogger) WriteNetwork(step int, ordering []string, parentSets map[string][]string) error {
	doc := networkDump{Step: step, Ordering: ordering, ParentSet: parentSets}
	b, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	return os.WriteFile(l.networkPath, b, 0644)
}

func sanitizeFilename(s string) string {
	return strings.NewReplacer("/", "_", " ", "_", ":", "_").Replace(s)
}

func newFileIfAbsent(path, header string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return NewFile(path, []byte(header))
}

// NewFile creates a new file on the given path, failing if it already
// exists.
func NewFile(path string, b []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(b); err != nil {
		return err
	}
	return f.Sync()
}

// AppendToFile creates the file if absent, or appends to it if present.
func AppendToFile(path string, b []byte) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(b); err != nil {
		return err
	}
	return f.Sync()
}

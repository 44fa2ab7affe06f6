package plasmocore

import (
	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// RunConfig is the full set of knobs a plasmocore-mcmc invocation needs,
// loadable from a TOML file and then overridden field-by-field by whichever
// CLI flags the caller actually set (flags win on conflict, matching the
// teacher's SingleHostConfig/EvoEpiConfig TOML-plus-flags pattern in
// utils.go/LoadSingleHostConfig).
type RunConfig struct {
	Burnin       int     `toml:"burnin"`
	Sample       int     `toml:"sample"`
	Thin         int     `toml:"thin"`
	NumChains    int     `toml:"numchains"`
	NumCores     int     `toml:"numcores"`
	Gradient     float64 `toml:"gradient"`
	Seed         int64   `toml:"seed"`
	Hotload      bool    `toml:"hotload"`
	NullModel    bool    `toml:"null_model"`
	SQLiteMirror bool    `toml:"sqlite_mirror"`

	Input           string `toml:"input"`
	OutputDir       string `toml:"output_dir"`
	SymptomaticIDP  string `toml:"symptomatic_idp"`
	AsymptomaticIDP string `toml:"asymptomatic_idp"`
	MetricsAddr     string `toml:"metrics_addr"`

	COIMax           int  `toml:"coi_max"`
	SMax             int  `toml:"s_max"`
	TMax             int  `toml:"t_max"`
	PMax             int  `toml:"p_max"`
	ParentSetCap     int  `toml:"parent_set_cap"`
	MaxSnapshotDepth int  `toml:"max_snapshot_depth"`
	UseSimpleLoss    bool `toml:"use_simple_loss"`
}

// DefaultRunConfig provides the defaults a plasmocore-mcmc invocation falls
// back to when a flag or config file does not set a value.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		Burnin:           5000,
		Sample:           10000,
		Thin:             100,
		NumChains:        1,
		NumCores:         1,
		Gradient:         1,
		Seed:             -1,
		OutputDir:        "./output",
		COIMax:           8,
		SMax:             8,
		TMax:             20,
		PMax:             8,
		ParentSetCap:     4,
		MaxSnapshotDepth: 64,
	}
}

// LoadRunConfig reads a TOML file at path into a copy of base, leaving any
// field the file doesn't mention untouched (toml.Decode only overwrites keys
// present in the document).
func LoadRunConfig(path string, base RunConfig) (RunConfig, error) {
	cfg := base
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "plasmocore: loading run config %q", path)
	}
	return cfg, nil
}

// Validate reports a DataError for any configuration value the rest of the
// system cannot tolerate, rather than letting it surface later as a cryptic
// panic deep in construction.
func (c RunConfig) Validate() error {
	if c.Input == "" {
		return &DataError{Reason: "missing required --input path"}
	}
	if c.NumChains < 1 {
		return &DataError{Reason: "numchains must be >= 1", Detail: c.Input}
	}
	if c.Gradient <= 0 || c.Gradient > 1 {
		return &DataError{Reason: "gradient must be in (0, 1]"}
	}
	if c.Thin < 1 {
		return &DataError{Reason: "thin must be >= 1"}
	}
	return nil
}

// ToModelConfig narrows the run-level configuration down to the subset
// NewModel needs.
func (c RunConfig) ToModelConfig() ModelConfig {
	return ModelConfig{
		COIMax:                c.COIMax,
		SMax:                  c.SMax,
		TMax:                  c.TMax,
		PMax:                  c.PMax,
		ParentSetCap:          c.ParentSetCap,
		MaxSnapshotDepth:      c.MaxSnapshotDepth,
		UseSimpleLoss:         c.UseSimpleLoss,
		NullModel:             c.NullModel,
		InitialMeanStrains:    1.5,
		InitialPLoss:          0.1,
		InitialFalsePositive:  0.01,
		InitialFalseNegative:  0.01,
		InitialCOIPriorLambda: 1.5,
	}
}

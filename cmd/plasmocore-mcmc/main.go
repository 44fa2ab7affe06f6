// Command plasmocore-mcmc reconstructs malaria transmission networks from
// genotyped infection data by Markov chain Monte Carlo.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/kentwait/plasmocore"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run builds the root command and executes it, returning the process exit
// code the CLI contract promises: 0 on success, 1 on a DataError (invalid
// input data, an invalid configuration value, or an unusable command line),
// 2 on anything else, including unreadable files and malformed JSON or TOML.
func run(args []string) int {
	cfgPath := ""
	cfg := plasmocore.DefaultRunConfig()

	cmd := &cobra.Command{
		Use:           "plasmocore-mcmc",
		Short:         "Reconstruct transmission networks from genotyped infections by MCMC",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(c *cobra.Command, _ []string) error {
			// Flags win over the file: remember what was set on the command
			// line, load the file over the defaults, then re-apply those flags.
			set := make(map[string]string)
			c.Flags().Visit(func(f *pflag.Flag) { set[f.Name] = f.Value.String() })
			loaded, err := plasmocore.LoadRunConfig(cfgPath, plasmocore.DefaultRunConfig())
			if err != nil {
				return err
			}
			cfg = loaded
			for name, value := range set {
				if err := c.Flags().Set(name, value); err != nil {
					return err
				}
			}
			return execute(cfg)
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &plasmocore.DataError{Reason: "invalid command line", Detail: err.Error()}
	})

	flags := cmd.Flags()
	flags.StringVar(&cfgPath, "config", "", "TOML run configuration (flags override values it sets)")
	flags.IntVar(&cfg.Burnin, "burnin", cfg.Burnin, "number of discarded burn-in steps per chain")
	flags.IntVar(&cfg.Sample, "sample", cfg.Sample, "number of logged sampling steps per chain")
	flags.IntVar(&cfg.Thin, "thin", cfg.Thin, "log every Nth sampling step")
	flags.IntVar(&cfg.NumChains, "numchains", cfg.NumChains, "number of tempered replica-exchange chains")
	flags.IntVar(&cfg.NumCores, "numcores", cfg.NumCores, "reserved for future worker-pool sizing; chains always step concurrently via errgroup")
	flags.Float64Var(&cfg.Gradient, "gradient", cfg.Gradient, "hottest chain's inverse temperature; 1 disables tempering")
	flags.Int64Var(&cfg.Seed, "seed", cfg.Seed, "master RNG seed; negative seeds from the system clock")
	flags.BoolVar(&cfg.Hotload, "hotload", cfg.Hotload, "resume scalar parameters from a prior run's CSV output in --output-dir")
	flags.BoolVar(&cfg.NullModel, "null-model", cfg.NullModel, "drop every genotype-conditional likelihood term, sampling topology against the prior alone")
	flags.BoolVar(&cfg.SQLiteMirror, "sqlite-mirror", cfg.SQLiteMirror, "also mirror each chain's trace into a SQLite database under --output-dir")
	flags.StringVar(&cfg.Input, "input", cfg.Input, "input infection dataset (JSON, optionally gzip-compressed)")
	flags.StringVar(&cfg.OutputDir, "output-dir", cfg.OutputDir, "directory to write per-chain trace output")
	flags.StringVar(&cfg.SymptomaticIDP, "symptomatic-idp", cfg.SymptomaticIDP, "CSV infection-duration prior for symptomatic infections")
	flags.StringVar(&cfg.AsymptomaticIDP, "asymptomatic-idp", cfg.AsymptomaticIDP, "CSV infection-duration prior for asymptomatic infections")
	flags.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "address to serve Prometheus /metrics on; empty disables it")

	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		var dataErr *plasmocore.DataError
		if errors.As(err, &dataErr) {
			return 1
		}
		return 2
	}
	return 0
}

func execute(cfg plasmocore.RunConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	loci, infections, disallowed, err := plasmocore.LoadInputDocument(cfg.Input)
	if err != nil {
		return err
	}

	var durationPrior plasmocore.DurationPrior
	if cfg.SymptomaticIDP != "" && cfg.AsymptomaticIDP != "" {
		durationPrior, err = plasmocore.LoadDurationPriors(cfg.SymptomaticIDP, cfg.AsymptomaticIDP)
		if err != nil {
			return err
		}
	}

	set, err := plasmocore.BuildChainSet(cfg.ToModelConfig(), loci, infections, disallowed, durationPrior, cfg.NumChains, cfg.Gradient, resolveSeed(cfg.Seed), cfg.OutputDir, cfg.SQLiteMirror)
	if err != nil {
		return err
	}
	defer set.Close()

	if cfg.Hotload {
		for id, m := range set.Models {
			if err := plasmocore.ApplyHotload(m, cfg.OutputDir, id); err != nil {
				return err
			}
		}
	}

	coldID := set.Chains[len(set.Chains)-1].ID
	diagnostics := plasmocore.NewDefaultRunDiagnostics(coldID)
	coldModel := set.Models[coldID]
	diagnostics.Constructed(len(coldModel.Infections), len(coldModel.Loci), coldModel.Likelihood.Value())

	var metrics *plasmocore.RunMetrics
	if cfg.MetricsAddr != "" {
		metrics = plasmocore.NewRunMetrics()
		go func() {
			if err := metrics.Serve(cfg.MetricsAddr); err != nil {
				diagnostics.Failed(err)
			}
		}()
	}

	guard := plasmocore.NewInterruptGuard()
	defer guard.Stop()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	opts := plasmocore.RunOptions{
		Burnin:       cfg.Burnin,
		Sample:       cfg.Sample,
		Thin:         cfg.Thin,
		SwapInterval: 1,
		Logger:       logger,
		Diagnostics:  diagnostics,
		Metrics:      metrics,
		Guard:        guard,
	}

	err = plasmocore.RunReplicaExchange(context.Background(), set, opts)
	if _, interrupted := err.(*plasmocore.Interrupted); interrupted {
		return nil
	}
	return err
}

// resolveSeed turns a negative configured seed into one taken from the
// system clock, since RunConfig.Seed is the only knob controlling
// reproducibility and a negative value is documented as "seed from the
// clock".
func resolveSeed(seed int64) int64 {
	if seed >= 0 {
		return seed
	}
	return time.Now().UnixNano()
}

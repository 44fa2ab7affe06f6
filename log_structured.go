package plasmocore

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// RunDiagnostics is the structured, human-facing log of a run's lifecycle:
// construction, interruption, and periodic kernel/replica summaries. It is
// distinct from RunLogger, which writes the numeric posterior trace a later
// analysis reads; this one is for watching a chain run.
type RunDiagnostics struct {
	log zerolog.Logger
}

// NewRunDiagnostics builds a console-friendly diagnostics logger writing to
// w (typically os.Stderr), tagged with the chain's ID.
func NewRunDiagnostics(w io.Writer, chainID int) *RunDiagnostics {
	console := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	logger := zerolog.New(console).With().Timestamp().Int("chain", chainID).Logger()
	return &RunDiagnostics{log: logger}
}

// NewDefaultRunDiagnostics builds a RunDiagnostics writing to stderr.
func NewDefaultRunDiagnostics(chainID int) *RunDiagnostics {
	return NewRunDiagnostics(os.Stderr, chainID)
}

// Constructed logs the outcome of Model construction.
func (d *RunDiagnostics) Constructed(numInfections, numLoci int, initialLogLikelihood float64) {
	d.log.Info().
		Int("infections", numInfections).
		Int("loci", numLoci).
		Float64("initial_log_likelihood", initialLogLikelihood).
		Msg("model constructed")
}

// Progress logs a periodic sampling-progress summary: the current step,
// wall-clock elapsed, and per-kernel acceptance rates.
func (d *RunDiagnostics) Progress(step, total int, elapsed time.Duration, acceptance map[string]float64) {
	ev := d.log.Info().
		Int("step", step).
		Int("total", total).
		Dur("elapsed", elapsed)
	for kernel, rate := range acceptance {
		ev = ev.Float64(kernel, rate)
	}
	ev.Msg("sampling progress")
}

// SwapAttempted logs one replica-exchange attempt between adjacent chains.
func (d *RunDiagnostics) SwapAttempted(lo, hi int, accepted bool, logRatio float64) {
	d.log.Debug().
		Int("lo", lo).
		Int("hi", hi).
		Bool("accepted", accepted).
		Float64("log_ratio", logRatio).
		Msg("replica swap attempted")
}

// Interrupted logs a clean shutdown triggered by a signal.
func (d *RunDiagnostics) Interrupted(step int) {
	d.log.Warn().Int("step", step).Msg("sampling interrupted, flushing output")
}

// Failed logs a fatal, unhandled error before the process exits non-zero.
func (d *RunDiagnostics) Failed(err error) {
	d.log.Error().Err(err).Msg("run failed")
}

package plasmocore

import "fmt"

// DataError reports a structural problem with input data: an unknown locus,
// a genotype exceeding its locus' allele count, or allowed_parents naming an
// infection that does not exist. It is reported at parse time and aborts
// core construction.
type DataError struct {
	Reason string
	Detail string
}

func (e *DataError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("plasmocore: data error: %s", e.Reason)
	}
	return fmt.Sprintf("plasmocore: data error: %s (%s)", e.Reason, e.Detail)
}

// InitialInfeasibility reports that the root log-posterior evaluated to -Inf
// at construction time, naming the offending infection and parent set
// hypothesis.
type InitialInfeasibility struct {
	Infection string
	ParentSet []string
}

func (e *InitialInfeasibility) Error() string {
	return fmt.Sprintf("plasmocore: initial state infeasible for infection %s with parent set %v", e.Infection, e.ParentSet)
}

// Interrupted reports that sampling was stopped by SIGINT/SIGTERM between
// iterations. It is not a failure: the CLI treats it as a clean shutdown
// after loggers are flushed.
type Interrupted struct{}

func (e *Interrupted) Error() string { return "plasmocore: sampling interrupted" }

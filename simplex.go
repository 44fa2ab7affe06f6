package plasmocore

import "fmt"

// Simplex is a non-negative vector summing to 1, used as the per-locus
// allele-frequency parameter. SetValue enforces the simplex invariant:
// every component in [EpsLow, 1], sum exactly 1 up to Tolerance.
type Simplex struct {
	*Parameter[[]float64]
	EpsLow    float64
	Tolerance float64
}

// NewSimplex creates a Simplex parameter initialized to v, which must
// already satisfy the invariant (construction-time values are not
// renormalized, matching Parameter.InitializeValue's unguarded-assignment
// semantics).
func NewSimplex(label string, v []float64, epsLow, tolerance float64) *Simplex {
	s := &Simplex{
		Parameter: NewParameter(label, append([]float64(nil), v...)),
		EpsLow:    epsLow,
		Tolerance: tolerance,
	}
	if err := s.checkInvariant(v); err != nil {
		panic(err)
	}
	return s
}

func (s *Simplex) checkInvariant(v []float64) error {
	total := 0.0
	for _, c := range v {
		if c < s.EpsLow || c > 1 {
			return &DataError{Reason: "simplex component out of [eps_low, 1]", Detail: fmt.Sprintf("%v", v)}
		}
		total += c
	}
	if diff := total - 1; diff > s.Tolerance || diff < -s.Tolerance {
		return &DataError{Reason: "simplex does not sum to 1", Detail: fmt.Sprintf("sum=%f", total)}
	}
	return nil
}

// SetValue enforces the simplex invariant before delegating to
// Parameter.SetValue. Kernels (SALTSampler) are expected to propose
// already-renormalized vectors; this is the last line of defense.
func (s *Simplex) SetValue(v []float64) {
	if err := s.checkInvariant(v); err != nil {
		panic(err)
	}
	s.Parameter.SetValue(append([]float64(nil), v...))
}

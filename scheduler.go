package plasmocore

import "github.com/pkg/errors"

// scheduledKernel pairs a Kernel with the scheduling metadata that decides
// how often it fires and how often its adaptation runs.
type scheduledKernel struct {
	kernel          Kernel
	weight          float64
	updateWindow    int // run Update every updateWindow steps; 1 means every step
	adaptationWindow int // run Adapt every adaptationWindow updates of this kernel, accepted or not; 0 disables adaptation
	updatesSinceAdapt int
}

// RandomizedScheduler draws one kernel per MCMC step with probability
// proportional to its weight, restricted to kernels whose update window has
// come due on this step, and runs that kernel's own adaptation on its own
// schedule. This is the chain-level driver every replica in replica.go runs
// independently.
type RandomizedScheduler struct {
	entries []*scheduledKernel
	step    int
}

// NewRandomizedScheduler constructs an empty scheduler.
func NewRandomizedScheduler() *RandomizedScheduler {
	return &RandomizedScheduler{}
}

// Register adds a kernel with the given selection weight, update cadence, and
// adaptation cadence (0 disables adaptation for this kernel).
func (s *RandomizedScheduler) Register(kernel Kernel, weight float64, updateWindow, adaptationWindow int) error {
	if weight <= 0 {
		return errors.Errorf("plasmocore: kernel %q registered with non-positive weight %v", kernel.Label(), weight)
	}
	if updateWindow < 1 {
		updateWindow = 1
	}
	s.entries = append(s.entries, &scheduledKernel{
		kernel:           kernel,
		weight:           weight,
		updateWindow:     updateWindow,
		adaptationWindow: adaptationWindow,
	})
	return nil
}

// Kernels returns every registered kernel in registration order, for
// reporting acceptance rates at the end of a run.
func (s *RandomizedScheduler) Kernels() []Kernel {
	out := make([]Kernel, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.kernel
	}
	return out
}

// eligible returns the entries whose update window has come due on the
// current step, along with the cumulative weight prefix sums used to pick
// among them.
func (s *RandomizedScheduler) eligible() ([]*scheduledKernel, []float64) {
	var due []*scheduledKernel
	var prefix []float64
	total := 0.0
	for _, e := range s.entries {
		if s.step%e.updateWindow != 0 {
			continue
		}
		total += e.weight
		due = append(due, e)
		prefix = append(prefix, total)
	}
	return due, prefix
}

// selectIndex does a linear scan over the prefix sums; scheduler candidate
// counts are small (tens of kernels) so a binary search buys nothing a
// reader can see.
func selectIndex(prefix []float64, u float64) int {
	target := u * prefix[len(prefix)-1]
	for i, p := range prefix {
		if target <= p {
			return i
		}
	}
	return len(prefix) - 1
}

// Step advances the schedule by one: picks a kernel weighted among those due
// this step, runs its Update, then runs its Adapt if its own adaptation
// window has also come due. Returns the label of the kernel that ran, or ""
// if no kernel was due (a degenerate all-large-update-window configuration).
func (s *RandomizedScheduler) Step(rng *RNG) string {
	due, prefix := s.eligible()
	s.step++
	if len(due) == 0 {
		return ""
	}
	idx := selectIndex(prefix, rng.Uniform())
	entry := due[idx]
	entry.kernel.Update(rng)
	entry.updatesSinceAdapt++
	if entry.adaptationWindow > 0 && entry.updatesSinceAdapt >= entry.adaptationWindow {
		entry.kernel.Adapt(s.step)
		entry.updatesSinceAdapt = 0
	}
	return entry.kernel.Label()
}

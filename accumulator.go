package plasmocore

// AccumulatorInput is what Accumulator needs from each of its I-typed
// inputs: a way to read its current contribution (forcing recompute) and to
// peek the last value read without forcing one, plus enough of Observable to
// subscribe to its post_change/set_dirty/restore_state events.
type AccumulatorInput interface {
	Observable
	Value() float64
	Peek() float64
}

// Accumulator sums float64 contributions from a set of named inputs,
// re-summing only the inputs that have gone dirty since the last read. This
// is the root posterior's workhorse: the joint log-posterior is a sum of
// per-infection transmission log-likelihoods plus prior terms, and after
// one proposal touches one infection's genotype, only that one term needs
// to be re-read — everything else is still valid.
type Accumulator struct {
	*EventBus
	label string

	inputs map[HandleID]AccumulatorInput
	// lastValue is the contribution each input had the last time it was
	// folded into sum; subtracted back out when that input goes dirty so
	// sum never double-counts or silently drops a stale contribution.
	lastValue map[HandleID]float64
	dirtySet  map[HandleID]struct{}
	sum       float64

	// snapshot stack, hand-rolled rather than routed through
	// Checkpointable[float64] because what must be saved/restored is not
	// just sum but the (dirtySet, lastValue) bookkeeping alongside it —
	// : "Accumulators also snapshot their dirty-set and
	// previous-sum across save/restore/accept".
	stack []accumulatorSnapshot
}

type accumulatorSnapshot struct {
	id        StateID
	sum       float64
	dirtySet  map[HandleID]struct{}
	lastValue map[HandleID]float64
}

// NewAccumulator creates an empty accumulator. Inputs are registered with
// AddInput before first use.
func NewAccumulator(label string) *Accumulator {
	return &Accumulator{
		EventBus:  NewEventBus(),
		label:     label,
		inputs:    make(map[HandleID]AccumulatorInput),
		lastValue: make(map[HandleID]float64),
		dirtySet:  make(map[HandleID]struct{}),
	}
}

// AddInput registers input under key, marks it dirty so its contribution is
// folded in on the next Value() call, and subscribes to its lifecycle events
// so future changes, and restores of the input's own snapshot, mark it dirty
// again.
func (a *Accumulator) AddInput(key HandleID, input AccumulatorInput) {
	a.inputs[key] = input
	a.dirtySet[key] = struct{}{}
	input.AddListener(EventPostChange, func(args ...interface{}) { a.markInputDirty(key) })
	input.AddListener(EventSetDirty, func(args ...interface{}) { a.markInputDirty(key) })
	input.AddListener(EventRestoreState, func(args ...interface{}) { a.markInputDirty(key) })
}

// RemoveInput drops an input entirely, subtracting its last-known
// contribution out of sum. Used when a parent set membership change removes
// a term from the sum outright (e.g. C9 element_removed cascading into an
// accumulator keyed by parent handle).
func (a *Accumulator) RemoveInput(key HandleID) {
	if _, ok := a.inputs[key]; !ok {
		return
	}
	a.sum -= a.lastValue[key]
	delete(a.inputs, key)
	delete(a.lastValue, key)
	delete(a.dirtySet, key)
}

func (a *Accumulator) markInputDirty(key HandleID) {
	if _, already := a.dirtySet[key]; already {
		return
	}
	a.dirtySet[key] = struct{}{}
	a.sum -= a.lastValue[key]
	a.Notify(EventSetDirty)
}

// Value folds in every dirty input's current Value() and returns the sum.
// Equivalent by construction to Σ input.Value() over all inputs.
func (a *Accumulator) Value() float64 {
	for key := range a.dirtySet {
		v := a.inputs[key].Value()
		a.sum += v
		a.lastValue[key] = v
	}
	a.dirtySet = make(map[HandleID]struct{})
	return a.sum
}

// Peek returns the last folded sum without recomputing any dirty input.
func (a *Accumulator) Peek() float64 { return a.sum }

func (a *Accumulator) Dirty() bool { return len(a.dirtySet) > 0 }

func (a *Accumulator) SetDirty() {
	// An accumulator has no single "dirty" bit: individual inputs carry
	// their own dirtiness. A direct SetDirty (e.g. from Wire when the
	// accumulator itself is used as a Computation-like dependent) marks
	// every current input dirty, the conservative fallback.
	for key := range a.inputs {
		a.markInputDirty(key)
	}
}

// SaveState pushes a deep-enough copy of (sum, dirtySet, lastValue) and
// fires save_state so that registrants cascade their own saves.
func (a *Accumulator) SaveState(id StateID) {
	if len(a.stack) > 0 && a.stack[len(a.stack)-1].id == id {
		return
	}
	snap := accumulatorSnapshot{
		id:        id,
		sum:       a.Value(), // force a clean fold before snapshotting
		dirtySet:  copyHandleSet(a.dirtySet),
		lastValue: copyFloatMap(a.lastValue),
	}
	a.stack = append(a.stack, snap)
	a.Notify(EventSaveState, id)
}

// RestoreState pops the matching snapshot and adopts it verbatim.
func (a *Accumulator) RestoreState(id StateID) {
	if len(a.stack) == 0 {
		panic(&SnapshotImbalance{Op: "accumulator restore_state", Got: id, Empty: true})
	}
	top := a.stack[len(a.stack)-1]
	if top.id != id {
		panic(&SnapshotImbalance{Op: "accumulator restore_state", Expected: top.id, Got: id})
	}
	a.Notify(EventRestoreState, id)
	a.sum = top.sum
	a.dirtySet = top.dirtySet
	a.lastValue = top.lastValue
	a.stack = a.stack[:len(a.stack)-1]
}

// AcceptState clears the snapshot stack; the live (sum, dirtySet, lastValue)
// are already correct.
func (a *Accumulator) AcceptState() {
	var id StateID
	if len(a.stack) > 0 {
		id = a.stack[len(a.stack)-1].id
	}
	a.Notify(EventAcceptState, id)
	a.stack = a.stack[:0]
}

func copyHandleSet(m map[HandleID]struct{}) map[HandleID]struct{} {
	out := make(map[HandleID]struct{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyFloatMap(m map[HandleID]float64) map[HandleID]float64 {
	out := make(map[HandleID]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

var _ DirtyCheckpointer = (*Accumulator)(nil)

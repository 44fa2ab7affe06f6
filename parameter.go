package plasmocore

// Parameter composes Observable + Checkpointable[T] + a read/write value. It
// is the MCMC-mutable leaf of the computation graph: scalars (duration
// offsets, FPR/FNR, mean COI), vectors, and categorical values (Simplex,
// Genotype) are all Parameter[T] for the appropriate T. The infection
// Ordering is its own type (ordering.go), not a Parameter.
type Parameter[T any] struct {
	*EventBus
	*Checkpointable[T]
	label string
	value T
}

// NewParameter creates a Parameter already holding v, with no outstanding
// snapshots.
func NewParameter[T any](label string, v T) *Parameter[T] {
	bus := NewEventBus()
	return &Parameter[T]{
		EventBus:       bus,
		Checkpointable: NewCheckpointable[T](bus),
		label:          label,
		value:          v,
	}
}

// Label returns the parameter's human-readable name, used by loggers and
// kernel diagnostics.
func (p *Parameter[T]) Label() string { return p.label }

// Value returns the current value.
func (p *Parameter[T]) Value() T { return p.value }

// InitializeValue performs an unguarded assignment, for use only during
// graph construction before any listener depends on pre_change/post_change
// ordering.
func (p *Parameter[T]) InitializeValue(v T) {
	p.value = v
}

// SetValue requires the parameter currently be saved (an outstanding
// snapshot exists) — proposals must call SaveState before mutating. It fires
// pre_change, assigns, then fires post_change so dependents that listen on
// post_change (Computations, Accumulators) see the new value when they
// recompute.
func (p *Parameter[T]) SetValue(v T) {
	if p.Depth() == 0 {
		panic(&SnapshotImbalance{Op: "set_value (unsaved parameter)", Empty: true})
	}
	p.Notify(EventPreChange, p.value)
	p.value = v
	p.Notify(EventPostChange, p.value)
}

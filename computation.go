package plasmocore

// Computation caches a derived value T and recomputes it lazily: Value()
// returns the cached value if clean, otherwise calls compute() and marks
// itself clean.
//
// Computation also embeds Checkpointable[T] so derived quantities can
// snapshot their value directly instead of paying a recompute on every
// restore; cheap computations (distribution nodes, likelihoods) use the same
// mechanism for uniformity even though for them a recompute-on-restore would
// be just as fast. OrderBasedTransmissionProcess (obtp.go) is not a
// Computation and keeps its own cache stack.
type Computation[T any] struct {
	*EventBus
	*Checkpointable[T]
	label   string
	dirty   bool
	value   T
	compute func() T
}

// NewComputation creates a Computation that derives its value by calling
// compute whenever it is dirty. compute must be a pure function of the
// node's declared inputs; callers are responsible for wiring SetDirty calls
// from those inputs via Wire.
func NewComputation[T any](label string, compute func() T) *Computation[T] {
	bus := NewEventBus()
	return &Computation[T]{
		EventBus:       bus,
		Checkpointable: NewCheckpointable[T](bus),
		label:          label,
		dirty:          true,
		compute:        compute,
	}
}

func (c *Computation[T]) Label() string { return c.label }

func (c *Computation[T]) Dirty() bool { return c.dirty }

// SetDirty is idempotent: see cacheable.go for why that matters.
func (c *Computation[T]) SetDirty() {
	if c.dirty {
		return
	}
	c.dirty = true
	c.Notify(EventSetDirty)
}

// Peek returns the cached value without forcing a recompute, useful for
// Accumulator's "subtract the previous contribution" bookkeeping.
func (c *Computation[T]) Peek() T { return c.value }

// Value returns the cached value, recomputing first if dirty.
func (c *Computation[T]) Value() T {
	if c.dirty {
		c.value = c.compute()
		c.dirty = false
	}
	return c.value
}

// SaveState forces a recompute (so the snapshot holds a valid value) and
// pushes it onto this node's own stack.
func (c *Computation[T]) SaveState(id StateID) {
	c.Checkpointable.SaveState(id, c.Value())
}

// RestoreState pops this node's stack and adopts the popped value directly,
// marking the node clean — cheaper than a from-scratch recompute.
func (c *Computation[T]) RestoreState(id StateID) {
	c.value = c.Checkpointable.RestoreState(id)
	c.dirty = false
}

// AcceptState clears this node's stack; the current value is already
// correct and is left untouched.
func (c *Computation[T]) AcceptState() {
	c.Checkpointable.AcceptState()
}

// Checkpointer is the uniform save/restore/accept contract every node in
// the dependency graph exposes, regardless of whether it is a Parameter, a
// Computation, or a hand-written composite like OrderBasedTransmissionProcess.
type Checkpointer interface {
	SaveState(id StateID)
	RestoreState(id StateID)
	AcceptState()
}

// SaveState/RestoreState/AcceptState on Parameter adapt Checkpointable[T]'s
// two-argument SaveState to the zero-argument Checkpointer contract above,
// so Parameter and Computation can be wired identically by Wire.
func (p *Parameter[T]) SaveState(id StateID) {
	p.Checkpointable.SaveState(id, p.value)
}

func (p *Parameter[T]) RestoreState(id StateID) {
	p.value = p.Checkpointable.RestoreState(id)
}

func (p *Parameter[T]) AcceptState() {
	p.Checkpointable.AcceptState()
}

var (
	_ Checkpointer = (*Computation[float64])(nil)
	_ Checkpointer = (*Parameter[float64])(nil)
	_ Cacheable    = (*Computation[float64])(nil)
)

// DirtyCheckpointer is what Wire needs from a dependent node: it must be
// both markable-dirty and checkpointable.
type DirtyCheckpointer interface {
	Cacheable
	Checkpointer
}

// Wire registers child as a dependent of parent: whenever parent fires
// post_change or set_dirty, child is marked dirty; whenever parent fires
// save_state/restore_state/accept_state, child's matching operation runs
// with the same StateID. This is the "typed dispatch" §9 design note calls
// for in place of allocating a fresh closure per hot-path fan-out: every
// dependency edge in the graph is wired through this one function.
func Wire(parent Observable, child DirtyCheckpointer) {
	parent.AddListener(EventPostChange, func(args ...interface{}) { child.SetDirty() })
	parent.AddListener(EventSetDirty, func(args ...interface{}) { child.SetDirty() })
	parent.AddListener(EventSaveState, func(args ...interface{}) { child.SaveState(args[0].(StateID)) })
	parent.AddListener(EventRestoreState, func(args ...interface{}) { child.RestoreState(args[0].(StateID)) })
	parent.AddListener(EventAcceptState, func(args ...interface{}) { child.AcceptState() })
}

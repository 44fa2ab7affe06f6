package plasmocore

import "fmt"

// StateID tags which kernel proposal originated a snapshot. Checkpointable's
// SnapshotImbalance guard compares StateIDs rather than just checking "is the
// stack non-empty", which is what stops a bug where one kernel's restore pops
// a snapshot pushed by a different, still-in-flight kernel.
type StateID uint64

// Hook is a pre/post hook run around a Checkpointable operation. Hooks let a
// node piggy-back extra snapshot/restore/accept bookkeeping onto a plain
// Checkpointable[T] without that type needing to know about them.
// Accumulator and OrderBasedTransmissionProcess do not use hooks; each keeps
// its own hand-rolled snapshot stack.
type Hook func(id StateID)

// SnapshotImbalance is the programmer error reported when a
// restore/accept was attempted whose StateID does not match the top of the
// stack it targets, or the stack was empty. It is unrecoverable and always
// panics — Go has no release-mode assertion strip, so "assertion-fails in
// debug, undefined in release" collapses to "always panics" here.
type SnapshotImbalance struct {
	Op       string
	Expected StateID
	Got      StateID
	Empty    bool
}

func (e *SnapshotImbalance) Error() string {
	if e.Empty {
		return fmt.Sprintf("plasmocore: %s on empty snapshot stack (state %d)", e.Op, e.Got)
	}
	return fmt.Sprintf("plasmocore: %s state id mismatch: stack top is %d, got %d", e.Op, e.Expected, e.Got)
}

type checkpointEntry[T any] struct {
	value T
	id    StateID
}

// Checkpointable composes with an observable node to give it a
// save/restore/accept stack. Checkpointable[T] is embedded by Parameter[T]
// and Computation[T] and held as a field by Ordering, OrderDerivedParentSet
// and TransmissionNetwork.
type Checkpointable[T any] struct {
	bus   *EventBus
	stack []checkpointEntry[T]

	preSave, postSave       []Hook
	preRestore, postRestore []Hook
	preAccept, postAccept   []Hook
}

// NewCheckpointable creates an empty stack wired to bus for event firing.
func NewCheckpointable[T any](bus *EventBus) *Checkpointable[T] {
	return &Checkpointable[T]{bus: bus}
}

// OnPreSave/OnPostSave/... register extra bookkeeping hooks. They are not
// part of the Observable event stream: they always run, in registration
// order, immediately before/after the corresponding stack operation and its
// event firing (pre hooks before the event fires, post hooks after).
func (c *Checkpointable[T]) OnPreSave(h Hook)       { c.preSave = append(c.preSave, h) }
func (c *Checkpointable[T]) OnPostSave(h Hook)      { c.postSave = append(c.postSave, h) }
func (c *Checkpointable[T]) OnPreRestore(h Hook)    { c.preRestore = append(c.preRestore, h) }
func (c *Checkpointable[T]) OnPostRestore(h Hook)   { c.postRestore = append(c.postRestore, h) }
func (c *Checkpointable[T]) OnPreAccept(h Hook)     { c.preAccept = append(c.preAccept, h) }
func (c *Checkpointable[T]) OnPostAccept(h Hook)    { c.postAccept = append(c.postAccept, h) }

// Depth reports how many nested snapshots are outstanding.
func (c *Checkpointable[T]) Depth() int { return len(c.stack) }

// TopID reports the StateID of the outstanding snapshot nearest the top, and
// whether one exists.
func (c *Checkpointable[T]) TopID() (StateID, bool) {
	if len(c.stack) == 0 {
		return 0, false
	}
	return c.stack[len(c.stack)-1].id, true
}

// SaveState pushes current iff the stack is empty or its top's id differs
// from id — a kernel that transitively touches the same parameter twice in
// one proposal (e.g. through two different dependency paths) must not push
// two snapshots for a single logical save.
func (c *Checkpointable[T]) SaveState(id StateID, current T) {
	if top, ok := c.TopID(); ok && top == id {
		return
	}
	for _, h := range c.preSave {
		h(id)
	}
	c.stack = append(c.stack, checkpointEntry[T]{value: current, id: id})
	c.bus.Notify(EventSaveState, id)
	for _, h := range c.postSave {
		h(id)
	}
}

// RestoreState requires the stack top's id equals id. It fires restore_state,
// returns the value that was on top, and pops.
func (c *Checkpointable[T]) RestoreState(id StateID) T {
	top, ok := c.TopID()
	if !ok {
		panic(&SnapshotImbalance{Op: "restore_state", Got: id, Empty: true})
	}
	if top != id {
		panic(&SnapshotImbalance{Op: "restore_state", Expected: top, Got: id})
	}
	for _, h := range c.preRestore {
		h(id)
	}
	c.bus.Notify(EventRestoreState, id)
	restored := c.stack[len(c.stack)-1].value
	c.stack = c.stack[:len(c.stack)-1]
	for _, h := range c.postRestore {
		h(id)
	}
	return restored
}

// AcceptState fires accept_state and clears the entire stack: every
// outstanding snapshot, not just the most recent one, is discarded, matching
// the "accept commits everything downstream" semantics of a kernel accepting
// a proposal whose dependency cone may have been saved at several nesting
// depths.
func (c *Checkpointable[T]) AcceptState() {
	var id StateID
	if top, ok := c.TopID(); ok {
		id = top
	}
	for _, h := range c.preAccept {
		h(id)
	}
	c.bus.Notify(EventAcceptState, id)
	c.stack = c.stack[:0]
	for _, h := range c.postAccept {
		h(id)
	}
}

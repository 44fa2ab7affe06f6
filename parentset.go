package plasmocore

// OrderDerivedParentSet maintains, for one child Infection, the set of
// Infection handles that currently precede it in an Ordering and are not
// named in that child's disallowed set.
// It keeps this set incrementally: it only reacts to moved_left/moved_right
// events keyed to its own child, so an Ordering.Swap that doesn't involve
// this child costs it nothing.
type OrderDerivedParentSet struct {
	*EventBus
	checkpoint *Checkpointable[map[InfectionHandle]struct{}]

	ordering   *Ordering
	child      InfectionHandle
	disallowed map[InfectionHandle]struct{}
	value      map[InfectionHandle]struct{}
}

// NewOrderDerivedParentSet computes the initial parent set with one
// left-to-right scan of ordering and wires keyed listeners scoped to child.
func NewOrderDerivedParentSet(ordering *Ordering, child InfectionHandle, disallowed map[InfectionHandle]struct{}) *OrderDerivedParentSet {
	bus := NewEventBus()
	ps := &OrderDerivedParentSet{
		EventBus:   bus,
		checkpoint: NewCheckpointable[map[InfectionHandle]struct{}](bus),
		ordering:   ordering,
		child:      child,
		disallowed: disallowed,
		value:      make(map[InfectionHandle]struct{}),
	}
	if disallowed == nil {
		ps.disallowed = make(map[InfectionHandle]struct{})
	}
	childPos := ordering.PositionOf(child)
	for i := 0; i < childPos; i++ {
		x := ordering.At(i)
		if _, bad := ps.disallowed[x]; !bad {
			ps.value[x] = struct{}{}
		}
	}

	key := child.AsHandleID()
	ordering.AddKeyedListener(EventMovedLeft, key, func(args ...interface{}) {
		// args: (child, x) — x moved from child's right to child's left,
		// i.e. x now precedes child.
		x := args[1].(InfectionHandle)
		ps.insert(x)
	})
	ordering.AddKeyedListener(EventMovedRight, key, func(args ...interface{}) {
		// args: (child, x) — x moved from child's left to child's right,
		// i.e. x no longer precedes child.
		x := args[1].(InfectionHandle)
		ps.remove(x)
	})
	return ps
}

func (ps *OrderDerivedParentSet) insert(x InfectionHandle) {
	if _, bad := ps.disallowed[x]; bad {
		return
	}
	if _, already := ps.value[x]; already {
		return
	}
	ps.value[x] = struct{}{}
	ps.Notify(EventElementAdded, x)
}

func (ps *OrderDerivedParentSet) remove(x InfectionHandle) {
	if _, present := ps.value[x]; !present {
		return
	}
	delete(ps.value, x)
	ps.Notify(EventElementRemove, x)
}

// Members returns the current parent-set handles, in no particular order.
func (ps *OrderDerivedParentSet) Members() []InfectionHandle {
	out := make([]InfectionHandle, 0, len(ps.value))
	for h := range ps.value {
		out = append(out, h)
	}
	return out
}

// Contains reports whether h is currently a member.
func (ps *OrderDerivedParentSet) Contains(h InfectionHandle) bool {
	_, ok := ps.value[h]
	return ok
}

// Size returns |ParentSet|.
func (ps *OrderDerivedParentSet) Size() int { return len(ps.value) }

func copyParentSet(m map[InfectionHandle]struct{}) map[InfectionHandle]struct{} {
	out := make(map[InfectionHandle]struct{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// SaveState/RestoreState/AcceptState snapshot the whole membership set. A
// single Ordering.Swap can add/remove several members in one call, so there
// is no cheaper partial snapshot than the whole set.
func (ps *OrderDerivedParentSet) SaveState(id StateID) {
	ps.checkpoint.SaveState(id, copyParentSet(ps.value))
}

func (ps *OrderDerivedParentSet) RestoreState(id StateID) {
	ps.value = ps.checkpoint.RestoreState(id)
}

func (ps *OrderDerivedParentSet) AcceptState() {
	ps.checkpoint.AcceptState()
}

var _ Checkpointer = (*OrderDerivedParentSet)(nil)

package plasmocore

// Ordering is a mutable permutation of all Infection handles. It fires keyed moved_left/moved_right events so
// OrderDerivedParentSet instances only react to swaps that actually cross
// their own child, instead of every listener re-scanning the whole
// permutation on every swap.
type Ordering struct {
	*EventBus
	checkpoint *Checkpointable[[]InfectionHandle]

	seq   []InfectionHandle
	pos   map[InfectionHandle]int
	label string
}

// NewOrdering creates an Ordering over the given handles, in the given
// initial order.
func NewOrdering(label string, handles []InfectionHandle) *Ordering {
	bus := NewEventBus()
	o := &Ordering{
		EventBus:   bus,
		checkpoint: NewCheckpointable[[]InfectionHandle](bus),
		seq:        append([]InfectionHandle(nil), handles...),
		pos:        make(map[InfectionHandle]int, len(handles)),
		label:      label,
	}
	for i, h := range o.seq {
		o.pos[h] = i
	}
	return o
}

// Len returns the number of entities in the ordering.
func (o *Ordering) Len() int { return len(o.seq) }

// PositionOf returns the zero-based index of h in the current ordering.
func (o *Ordering) PositionOf(h InfectionHandle) int { return o.pos[h] }

// At returns the handle currently at position i.
func (o *Ordering) At(i int) InfectionHandle { return o.seq[i] }

// Precedes reports whether a precedes b in the current ordering.
func (o *Ordering) Precedes(a, b InfectionHandle) bool { return o.pos[a] < o.pos[b] }

// Sequence returns a defensive copy of the current permutation, in position
// order — used by loggers to dump the "network" output file.
func (o *Ordering) Sequence() []InfectionHandle {
	return append([]InfectionHandle(nil), o.seq...)
}

// Swap exchanges the elements at positions i and j (i < j required) and
// fires, for the pair that crossed and every element strictly between them,
// the keyed moved_left/moved_right events, keyed by the post-swap occupant
// whose predecessor set changed:
//
//	pair (b now at i, a now at j): moved_right(b, a), moved_left(a, b)
//	each intermediate c:           moved_left(a, c), moved_right(b, c),
//	                               moved_right(c, a), moved_left(c, b)
//
// b moved left past every element between i and j, so it loses each of them
// (and a) as a predecessor: moved_right is keyed by b. a moved right past
// the same elements, so it gains each of them (and b) as a predecessor:
// moved_left is keyed by a. This lets an OrderDerivedParentSet listening
// only for events keyed by its own child determine, without scanning the
// whole permutation, exactly which handles entered or left the set of
// predecessors of that child.
func (o *Ordering) Swap(i, j int) {
	if i >= j {
		panic("plasmocore: Ordering.Swap requires i < j")
	}
	a, b := o.seq[i], o.seq[j]

	o.seq[i], o.seq[j] = b, a
	o.pos[a], o.pos[b] = j, i

	o.NotifyKeyed(EventMovedRight, b.AsHandleID(), b, a)
	o.NotifyKeyed(EventMovedLeft, a.AsHandleID(), a, b)

	for m := i + 1; m < j; m++ {
		c := o.seq[m]
		o.NotifyKeyed(EventMovedLeft, a.AsHandleID(), a, c)
		o.NotifyKeyed(EventMovedRight, b.AsHandleID(), b, c)
		o.NotifyKeyed(EventMovedRight, c.AsHandleID(), c, a)
		o.NotifyKeyed(EventMovedLeft, c.AsHandleID(), c, b)
	}
}

// SaveState/RestoreState/AcceptState snapshot the whole permutation. Order
// proposals (OrderSampler, Zanella variants) always touch the global
// permutation, so there is no cheaper partial snapshot to take.
func (o *Ordering) SaveState(id StateID) {
	o.checkpoint.SaveState(id, o.Sequence())
}

func (o *Ordering) RestoreState(id StateID) {
	restored := o.checkpoint.RestoreState(id)
	o.seq = restored
	o.pos = make(map[InfectionHandle]int, len(restored))
	for i, h := range restored {
		o.pos[h] = i
	}
}

func (o *Ordering) AcceptState() {
	o.checkpoint.AcceptState()
}

var _ Checkpointer = (*Ordering)(nil)

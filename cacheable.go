package plasmocore

// Cacheable is the dirty-flag half of a Computation: a node that can be
// marked stale and later recomputed. SetDirty is idempotent — firing the
// set_dirty event only on the false-to-true transition is what lets dirty-up
// propagation terminate: a node that is already dirty
// has already notified its dependents, so notifying them again would walk
// the same sub-graph forever on cyclic listener topologies and is wasted
// work even on acyclic ones.
type Cacheable interface {
	Dirty() bool
	SetDirty()
}

// cacheableBase is a standalone dirty flag with set_dirty notification.
// Computation[T] and Accumulator keep their own dirty tracking and do not
// embed it.
type cacheableBase struct {
	bus   *EventBus
	dirty bool
}

func newCacheableBase(bus *EventBus) cacheableBase {
	return cacheableBase{bus: bus, dirty: true}
}

func (c *cacheableBase) Dirty() bool { return c.dirty }

func (c *cacheableBase) SetDirty() {
	if c.dirty {
		return
	}
	c.dirty = true
	c.bus.Notify(EventSetDirty)
}

// setClean is only ever called from within recompute(), after value has been
// refreshed from current inputs.
func (c *cacheableBase) setClean() {
	c.dirty = false
}

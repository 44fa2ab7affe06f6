package plasmocore

import "sort"

// ParentResolver looks up the Infection behind a handle that
// OrderDerivedParentSet reports as a current member. OrderBasedTransmissionProcess
// needs the Infection itself (not just its handle) to read per-locus genotypes
// through the GenotypeSource contract.
type ParentResolver func(InfectionHandle) *Infection

// obtpEntry is one cached hypothesis: the combined log-likelihood
// contribution of parent-set hypothesis T, plus which handles T contains (so
// a later "parent p changed/removed" event can find every cached entry that
// needs to go).
type obtpEntry struct {
	value   float64
	members map[InfectionHandle]struct{}
}

// obtpSnapshot is one entry of the cache's own save/restore stack.
type obtpSnapshot struct {
	id    StateID
	cache map[string]obtpEntry
}

// OrderBasedTransmissionProcess evaluates ln p(child | ordering) by summing,
// over every parent-set hypothesis T drawn from the child's
// OrderDerivedParentSet up to cardinality K, the combined node-transmission
// likelihood with and without the latent background parent Λ. It memoizes per-hypothesis contributions in a
// cache keyed by the hypothesis' member set, and invalidates that cache
// according to a declarative set of rules rather than recomputing from
// scratch on every read.
type OrderBasedTransmissionProcess struct {
	*EventBus

	label string
	dirty bool
	value float64

	child     *Infection
	loci      []*Locus
	parentSet *OrderDerivedParentSet
	latent    *LatentParent
	resolve   ParentResolver

	nodeProcess   NodeTransmissionLikelihood
	sourceProcess *SourceTransmissionLikelihood
	k             int

	cache map[string]obtpEntry

	// parentListeners tracks the per-member "parent changed" subscriptions
	// this node has registered, so unwatchParent can tear them down again
	// when a member leaves the parent set.
	parentListeners map[InfectionHandle][]ListenerID

	stack    []obtpSnapshot
	maxDepth int
}

// NewOrderBasedTransmissionProcess wires one OBTP node for child and eagerly
// evaluates it. A first value of -Inf means no hypothesis (including the
// latent-only baseline) explains the observed genotype, a user-detectable
// data-model error rather than a silent zero: the caller is expected to
// report child and its current parent set and abort.
func NewOrderBasedTransmissionProcess(
	label string,
	child *Infection,
	loci []*Locus,
	parentSet *OrderDerivedParentSet,
	latent *LatentParent,
	resolve ParentResolver,
	nodeProcess NodeTransmissionLikelihood,
	nodeProcessSource Observable,
	sourceProcess *SourceTransmissionLikelihood,
	k int,
	maxSnapshotDepth int,
) *OrderBasedTransmissionProcess {
	o := &OrderBasedTransmissionProcess{
		EventBus:        NewEventBus(),
		label:           label,
		dirty:           true,
		child:           child,
		loci:            loci,
		parentSet:       parentSet,
		latent:          latent,
		resolve:         resolve,
		nodeProcess:     nodeProcess,
		sourceProcess:   sourceProcess,
		k:               k,
		cache:           make(map[string]obtpEntry),
		parentListeners: make(map[InfectionHandle][]ListenerID),
		maxDepth:        maxSnapshotDepth,
	}

	// Node-transmission process set_dirty / Child's post_change: clear the
	// entire cache, since every hypothesis' contribution depends on both.
	nodeProcessSource.AddListener(EventPostChange, func(args ...interface{}) { o.clearAll() })
	nodeProcessSource.AddListener(EventSetDirty, func(args ...interface{}) { o.clearAll() })
	for _, l := range loci {
		child.LatentGenotype[l.Handle].AddListener(EventPostChange, func(args ...interface{}) { o.clearAll() })
	}

	// Source-transmission process set_dirty / latent parent's post_change:
	// every cached hypothesis includes Λ, so this also means clear everything.
	sourceProcess.AddListener(EventSetDirty, func(args ...interface{}) { o.clearAll() })
	for _, l := range loci {
		latent.LatentGenotype[l.Handle].AddListener(EventPostChange, func(args ...interface{}) { o.clearAll() })
	}

	// Parent set membership changes: adding a member invalidates nothing (new
	// hypotheses simply miss and get computed); removing one clears every
	// hypothesis that mentions it and tears down that member's own listeners.
	parentSet.AddListener(EventElementAdded, func(args ...interface{}) {
		h := args[0].(InfectionHandle)
		o.watchParent(h)
		o.markDirty()
	})
	parentSet.AddListener(EventElementRemove, func(args ...interface{}) {
		h := args[0].(InfectionHandle)
		o.unwatchParent(h)
		o.clearContaining(h)
		o.markDirty()
	})
	for _, h := range parentSet.Members() {
		o.watchParent(h)
	}

	o.value = o.recompute()
	o.dirty = false
	return o
}

// watchParent subscribes to "parent changed" for h — its per-locus latent
// genotype parameters — clearing every hypothesis mentioning h when any of
// them fires post_change.
func (o *OrderBasedTransmissionProcess) watchParent(h InfectionHandle) {
	parent := o.resolve(h)
	ids := make([]ListenerID, 0, len(o.loci))
	for _, l := range o.loci {
		param := parent.LatentGenotype[l.Handle]
		id := param.AddListener(EventPostChange, func(args ...interface{}) {
			o.clearContaining(h)
			o.markDirty()
		})
		ids = append(ids, id)
	}
	o.parentListeners[h] = ids
}

func (o *OrderBasedTransmissionProcess) unwatchParent(h InfectionHandle) {
	parent := o.resolve(h)
	ids := o.parentListeners[h]
	for i, l := range o.loci {
		if i < len(ids) {
			parent.LatentGenotype[l.Handle].RemoveListener(EventPostChange, ids[i])
		}
	}
	delete(o.parentListeners, h)
}

func (o *OrderBasedTransmissionProcess) clearAll() {
	o.cache = make(map[string]obtpEntry)
	o.markDirty()
}

func (o *OrderBasedTransmissionProcess) clearContaining(h InfectionHandle) {
	for key, entry := range o.cache {
		if _, ok := entry.members[h]; ok {
			delete(o.cache, key)
		}
	}
}

func (o *OrderBasedTransmissionProcess) markDirty() {
	if o.dirty {
		return
	}
	o.dirty = true
	o.Notify(EventSetDirty)
}

func (o *OrderBasedTransmissionProcess) Dirty() bool { return o.dirty }
func (o *OrderBasedTransmissionProcess) SetDirty()   { o.markDirty() }

func (o *OrderBasedTransmissionProcess) Label() string { return o.label }

// Value returns the cached log-likelihood, recomputing (and re-filling any
// cache misses) if dirty.
func (o *OrderBasedTransmissionProcess) Value() float64 {
	if o.dirty {
		o.value = o.recompute()
		o.dirty = false
	}
	return o.value
}

func (o *OrderBasedTransmissionProcess) Peek() float64 { return o.value }

// hypKey canonicalizes a hypothesis' member set into a map key: sorted handle
// strings, joined. Two hypotheses with the same members always collide.
func hypKey(members []InfectionHandle) string {
	strs := make([]string, len(members))
	for i, h := range members {
		strs[i] = h.String()
	}
	sort.Strings(strs)
	key := ""
	for _, s := range strs {
		key += s + "|"
	}
	return key
}

func membersSet(members []InfectionHandle) map[InfectionHandle]struct{} {
	out := make(map[InfectionHandle]struct{}, len(members))
	for _, h := range members {
		out[h] = struct{}{}
	}
	return out
}

// combinations returns every k-element subset of elems, in no particular
// order. |elems| is the current parent-set size, expected small (a handful of
// co-infecting lineages), so the naive recursive generator is adequate.
func combinations(elems []InfectionHandle, k int) [][]InfectionHandle {
	if k == 0 {
		return [][]InfectionHandle{{}}
	}
	if k > len(elems) {
		return nil
	}
	var out [][]InfectionHandle
	var pick func(start int, chosen []InfectionHandle)
	pick = func(start int, chosen []InfectionHandle) {
		if len(chosen) == k {
			cp := append([]InfectionHandle(nil), chosen...)
			out = append(out, cp)
			return
		}
		for i := start; i < len(elems); i++ {
			pick(i+1, append(chosen, elems[i]))
		}
	}
	pick(0, nil)
	return out
}

// recompute sums, over every hypothesis T (|T| in [0, K], with T=∅ the
// latent-only baseline), the log-space contribution term and combines them
// via log-sum-exp.
func (o *OrderBasedTransmissionProcess) recompute() float64 {
	members := o.parentSet.Members()
	maxK := o.k
	if maxK > len(members) {
		maxK = len(members)
	}

	terms := make([]float64, 0, 1<<uint(len(members)))
	for k := 0; k <= maxK; k++ {
		for _, T := range combinations(members, k) {
			terms = append(terms, o.hypothesisValue(T))
		}
	}
	return logSumExp(terms)
}

// hypothesisValue returns the cached contribution of hypothesis T, computing
// and inserting it on a miss. T=∅ is the latent-only baseline
// L_node(child|Λ) + ln p_source(Λ); every other T additionally folds in
// L_node(child|T) for the "T alone, no latent parent" reading.
func (o *OrderBasedTransmissionProcess) hypothesisValue(T []InfectionHandle) float64 {
	key := hypKey(T)
	if entry, ok := o.cache[key]; ok {
		return entry.value
	}

	parents := make([]GenotypeSource, len(T))
	for i, h := range T {
		parents[i] = o.resolve(h)
	}

	sourceLL := o.sourceProcess.Value()
	withLatent := o.nodeProcess.LogLikelihoodWithLatent(o.loci, o.child, o.latent, parents, sourceLL)

	value := withLatent
	if len(T) > 0 {
		value += o.nodeProcess.LogLikelihood(o.loci, o.child, parents)
	}

	o.cache[key] = obtpEntry{value: value, members: membersSet(T)}
	return value
}

func copyOBTPCache(m map[string]obtpEntry) map[string]obtpEntry {
	out := make(map[string]obtpEntry, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// SaveState pushes a duplicate of the live cache, keyed by id, onto a
// growable stack. The stack is bounded to fail fast at maxDepth rather than
// grow silently without limit: a missed accept/restore that lets saves pile
// up unboundedly is a programming error worth surfacing immediately instead
// of as a slow memory leak.
func (o *OrderBasedTransmissionProcess) SaveState(id StateID) {
	if len(o.stack) > 0 && o.stack[len(o.stack)-1].id == id {
		return
	}
	if len(o.stack) >= o.maxDepth {
		panic(&SnapshotImbalance{Op: "obtp save_state: exceeded max snapshot depth", Got: id})
	}
	o.Value() // force a clean cache before snapshotting it
	o.stack = append(o.stack, obtpSnapshot{id: id, cache: copyOBTPCache(o.cache)})
	o.Notify(EventSaveState, id)
}

// RestoreState pops the matching snapshot and adopts its cache verbatim.
func (o *OrderBasedTransmissionProcess) RestoreState(id StateID) {
	if len(o.stack) == 0 {
		panic(&SnapshotImbalance{Op: "obtp restore_state", Got: id, Empty: true})
	}
	top := o.stack[len(o.stack)-1]
	if top.id != id {
		panic(&SnapshotImbalance{Op: "obtp restore_state", Expected: top.id, Got: id})
	}
	o.Notify(EventRestoreState, id)
	o.cache = top.cache
	o.stack = o.stack[:len(o.stack)-1]
	o.dirty = true
}

// AcceptState commits the current cache and drops the rest of the stack,
// the same "accept copies the top down to index 0 and resets" contract
// every other Checkpointable node follows. Since this implementation keeps
// the live cache as the single source of truth rather than indexing into
// the stack to read it, that reduces to
// simply discarding every outstanding snapshot — the live cache already is
// the accepted state.
func (o *OrderBasedTransmissionProcess) AcceptState() {
	var id StateID
	if len(o.stack) > 0 {
		id = o.stack[len(o.stack)-1].id
	}
	o.Notify(EventAcceptState, id)
	o.stack = o.stack[:0]
}

var _ DirtyCheckpointer = (*OrderBasedTransmissionProcess)(nil)
var _ AccumulatorInput = (*OrderBasedTransmissionProcess)(nil)

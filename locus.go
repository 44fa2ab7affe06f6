package plasmocore

import "github.com/segmentio/ksuid"

// LocusHandle identifies a Locus. Stable for the lifetime of a Model; minted
// once at construction by NewLocus, backed directly by ksuid rather than
// wrapped in a tree node, since loci have no parent/child relationship to
// track.
type LocusHandle ksuid.KSUID

func newLocusHandle() LocusHandle { return LocusHandle(ksuid.New()) }

func (h LocusHandle) String() string { return ksuid.KSUID(h).String() }

// Locus is immutable leaf metadata: a stable label and the number of
// alleles segregating at this position. It carries no Observable/Cacheable
// capability of its own — Loci never change after construction.
type Locus struct {
	Handle  LocusHandle
	Label   string
	Alleles int
}

// NewLocus mints a fresh handle for a locus with the given label and allele
// count.
func NewLocus(label string, alleles int) *Locus {
	if alleles < 1 || alleles > MaxAlleles {
		panic(&DataError{Reason: "locus allele count out of range", Detail: label})
	}
	return &Locus{Handle: newLocusHandle(), Label: label, Alleles: alleles}
}

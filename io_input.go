package plasmocore

import (
	"compress/gzip"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// inputDocument is the on-disk JSON shape: loci, infections, and the
// allowed-parents map. Genotypes are
// accepted either as a bit-string ("1010") or an allele-index list ([0, 2]).
type inputDocument struct {
	Loci []struct {
		Label   string `json:"label"`
		Alleles int    `json:"alleles"`
	} `json:"loci"`

	Infections []struct {
		ID           string                     `json:"id"`
		SamplingTime uint32                     `json:"sampling_time"`
		Symptomatic  bool                       `json:"symptomatic"`
		Duration     float64                    `json:"duration"`
		Genotypes    map[string]json.RawMessage `json:"genotypes"`
	} `json:"infections"`

	AllowedParents map[string][]string `json:"allowed_parents"`
}

// LoadInputDocument reads and deserializes the infection dataset at path,
// transparently gzip-decompressing it if its first two bytes carry the gzip
// magic number. It returns the Locus set, the Infection set, and the
// disallowed-parents map NewModel expects — the allowed_parents field is
// inverted here, once, rather than carried as "allowed" through the rest of
// the graph.
func LoadInputDocument(path string) ([]*Locus, []*Infection, map[InfectionHandle]map[InfectionHandle]struct{}, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, nil, errors.Wrapf(err, "plasmocore: opening input %q", path)
	}
	defer f.Close()

	r, err := maybeGunzip(f)
	if err != nil {
		return nil, nil, nil, errors.Wrapf(err, "plasmocore: decompressing input %q", path)
	}

	var doc inputDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, nil, nil, errors.Wrapf(err, "plasmocore: parsing input %q", path)
	}

	loci := make([]*Locus, 0, len(doc.Loci))
	locusByLabel := make(map[string]*Locus, len(doc.Loci))
	for _, l := range doc.Loci {
		locus := NewLocus(l.Label, l.Alleles)
		loci = append(loci, locus)
		locusByLabel[l.Label] = locus
	}

	infections := make([]*Infection, 0, len(doc.Infections))
	handleByID := make(map[string]InfectionHandle, len(doc.Infections))
	for _, rec := range doc.Infections {
		inf := NewInfection(rec.ID, rec.SamplingTime, rec.Symptomatic, rec.Duration)
		for label, raw := range rec.Genotypes {
			locus, ok := locusByLabel[label]
			if !ok {
				return nil, nil, nil, &DataError{Reason: "infection references unknown locus", Detail: label}
			}
			g, err := decodeGenotype(locus, raw)
			if err != nil {
				return nil, nil, nil, errors.Wrapf(err, "plasmocore: infection %q locus %q", rec.ID, label)
			}
			inf.AddLocus(locus, g)
		}
		for _, locus := range loci {
			if _, ok := inf.ObservedGenotype[locus.Handle]; !ok {
				return nil, nil, nil, &DataError{Reason: "infection missing genotype for locus", Detail: rec.ID + "/" + locus.Label}
			}
		}
		infections = append(infections, inf)
		handleByID[rec.ID] = inf.Handle
	}

	disallowed := make(map[InfectionHandle]map[InfectionHandle]struct{}, len(doc.AllowedParents))
	allHandles := make(map[InfectionHandle]struct{}, len(infections))
	for _, inf := range infections {
		allHandles[inf.Handle] = struct{}{}
	}
	for childID, allowedIDs := range doc.AllowedParents {
		childHandle, ok := handleByID[childID]
		if !ok {
			return nil, nil, nil, &DataError{Reason: "allowed_parents names an infection not present", Detail: childID}
		}
		allowed := make(map[InfectionHandle]struct{}, len(allowedIDs))
		for _, id := range allowedIDs {
			h, ok := handleByID[id]
			if !ok {
				return nil, nil, nil, &DataError{Reason: "allowed_parents names an infection not present", Detail: id}
			}
			allowed[h] = struct{}{}
		}
		banned := make(map[InfectionHandle]struct{})
		for h := range allHandles {
			if h == childHandle {
				continue
			}
			if _, ok := allowed[h]; !ok {
				banned[h] = struct{}{}
			}
		}
		disallowed[childHandle] = banned
	}

	return loci, infections, disallowed, nil
}

func maybeGunzip(f *os.File) (io.Reader, error) {
	magic := make([]byte, 2)
	n, err := io.ReadFull(f, magic)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	if n == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		return gzip.NewReader(f)
	}
	return f, nil
}

// decodeGenotype accepts either a bit-string ("1010", index 0 leftmost) or a
// JSON array of allele indices ([0, 2]).
func decodeGenotype(locus *Locus, raw json.RawMessage) (Genotype, error) {
	trimmed := strings.TrimSpace(string(raw))
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var bits string
		if err := json.Unmarshal(raw, &bits); err != nil {
			return Genotype{}, err
		}
		if len(bits) != locus.Alleles {
			return Genotype{}, &DataError{Reason: "genotype bit-string length does not match locus allele count", Detail: locus.Label}
		}
		present := make([]int, 0, len(bits))
		for i, c := range bits {
			if c == '1' {
				present = append(present, i)
			} else if c != '0' {
				return Genotype{}, &DataError{Reason: "genotype bit-string has a non-0/1 character", Detail: locus.Label}
			}
		}
		return NewGenotype(locus.Alleles, present...), nil
	}

	var indices []int
	if err := json.Unmarshal(raw, &indices); err != nil {
		return Genotype{}, err
	}
	for _, i := range indices {
		if i < 0 || i >= locus.Alleles {
			return Genotype{}, &DataError{Reason: "genotype allele index out of range", Detail: locus.Label}
		}
	}
	return NewGenotype(locus.Alleles, indices...), nil
}

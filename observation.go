package plasmocore

import "math"

// ObservationProcessLikelihood is the per-infection sequencing-error model:
//
//	ln L(observed | latent, eps+, eps-) = TP·ln(1-eps+) + TN·ln(1-eps-)
//	                                     + FP·ln(eps+)  + FN·ln(eps-)
//
// summed across loci, treating the latent presence-set as ground truth.
type ObservationProcessLikelihood struct {
	*Computation[float64]

	loci    []*Locus
	latent  map[LocusHandle]*Parameter[Genotype]
	observe map[LocusHandle]*Parameter[Genotype]

	falsePositiveRate *Parameter[float64] // eps+
	falseNegativeRate *Parameter[float64] // eps-
}

// NewObservationProcessLikelihood wires one likelihood node for inf, against
// the false-positive and false-negative rate parameters, each a single
// scalar shared by every infection and locus.
func NewObservationProcessLikelihood(label string, loci []*Locus, inf *Infection, falsePositiveRate, falseNegativeRate *Parameter[float64]) *ObservationProcessLikelihood {
	o := &ObservationProcessLikelihood{
		loci:              loci,
		latent:            inf.LatentGenotype,
		observe:           inf.ObservedGenotype,
		falsePositiveRate: falsePositiveRate,
		falseNegativeRate: falseNegativeRate,
	}
	o.Computation = NewComputation(label, o.recompute)
	Wire(falsePositiveRate, o.Computation)
	Wire(falseNegativeRate, o.Computation)
	for _, l := range loci {
		Wire(o.latent[l.Handle], o.Computation)
		Wire(o.observe[l.Handle], o.Computation)
	}
	return o
}

func (o *ObservationProcessLikelihood) recompute() float64 {
	epsPos := o.falsePositiveRate.Value()
	epsNeg := o.falseNegativeRate.Value()
	logOneMinusPos := math.Log(1 - epsPos)
	logOneMinusNeg := math.Log(1 - epsNeg)
	logPos := math.Log(epsPos)
	logNeg := math.Log(epsNeg)

	total := 0.0
	for _, l := range o.loci {
		latentG := o.latent[l.Handle].Value()
		observedG := o.observe[l.Handle].Value()
		tp, fp, tn, fn := observedG.Counts(latentG)
		total += float64(tp)*logOneMinusPos + float64(tn)*logOneMinusNeg + float64(fp)*logPos + float64(fn)*logNeg
	}
	return total
}

package plasmocore

import "math"

// ZTGeometric is a zero-truncated Geometric distribution over {1, ..., k}:
// element j (1<=j<=k) is proportional to (1-p)^j * p, element 0 is always 0.
// It re-derives its PMF vector whenever its scalar input p goes dirty.
type ZTGeometric struct {
	*Computation[[]float64]
	p *Parameter[float64]
	k int
}

// NewZTGeometric wires a ZTGeometric of support {1,...,k} to parameter p.
func NewZTGeometric(label string, p *Parameter[float64], k int) *ZTGeometric {
	d := &ZTGeometric{p: p, k: k}
	d.Computation = NewComputation(label, d.recompute)
	Wire(p, d.Computation)
	return d
}

func (d *ZTGeometric) recompute() []float64 {
	p := d.p.Value()
	pmf := make([]float64, d.k+1)
	total := 0.0
	for j := 1; j <= d.k; j++ {
		v := math.Pow(1-p, float64(j)) * p
		pmf[j] = v
		total += v
	}
	if total > 0 {
		for j := 1; j <= d.k; j++ {
			pmf[j] /= total
		}
	}
	return pmf
}

// ZTPoisson is a zero-truncated Poisson distribution over {1, ..., k}:
// element j proportional to lambda^j * e^-lambda / j!, element 0 is always 0.
type ZTPoisson struct {
	*Computation[[]float64]
	lambda *Parameter[float64]
	k      int
}

// NewZTPoisson wires a ZTPoisson of support {1,...,k} to parameter lambda.
func NewZTPoisson(label string, lambda *Parameter[float64], k int) *ZTPoisson {
	d := &ZTPoisson{lambda: lambda, k: k}
	d.Computation = NewComputation(label, d.recompute)
	Wire(lambda, d.Computation)
	return d
}

func (d *ZTPoisson) recompute() []float64 {
	lambda := d.lambda.Value()
	pmf := make([]float64, d.k+1)
	total := 0.0
	logFact := 0.0
	for j := 1; j <= d.k; j++ {
		logFact += math.Log(float64(j))
		logP := float64(j)*math.Log(lambda) - lambda - logFact
		v := math.Exp(logP)
		pmf[j] = v
		total += v
	}
	if total > 0 {
		for j := 1; j <= d.k; j++ {
			pmf[j] /= total
		}
	}
	return pmf
}

// ZTMultiplicativeBinomial is a (k+1)x(k+1) row-stochastic matrix; row j
// gives the distribution over {0,...,j} successes out of j trials under
// success probability p and a multiplicative interaction term a, with row 0
// identically zero. Precomputed integer matrices (the exponents of p, 1-p,
// and the interaction term) are cached once per
// dimension k and reused across recomputes — only the row-normalization and
// the p/a-dependent terms change when the scalar inputs move.
type ZTMultiplicativeBinomial struct {
	*Computation[[][]float64]
	p, a *Parameter[float64]
	k    int

	// binom[j][s] = C(j, s); expK[j][s] = s; expJK[j][s] = j - s;
	// expInteract[j][s] = s * (j - s). Fixed for the life of the node.
	binom       [][]float64
	expK        [][]int
	expJK       [][]int
	expInteract [][]int
}

// NewZTMultiplicativeBinomial wires a ZTMultiplicativeBinomial matrix of
// dimension k+1 to success-probability parameter p and interaction
// parameter a.
func NewZTMultiplicativeBinomial(label string, p, a *Parameter[float64], k int) *ZTMultiplicativeBinomial {
	d := &ZTMultiplicativeBinomial{p: p, a: a, k: k}
	d.precomputeIntegerMatrices()
	d.Computation = NewComputation(label, d.recompute)
	Wire(p, d.Computation)
	Wire(a, d.Computation)
	return d
}

func (d *ZTMultiplicativeBinomial) precomputeIntegerMatrices() {
	n := d.k + 1
	d.binom = make([][]float64, n)
	d.expK = make([][]int, n)
	d.expJK = make([][]int, n)
	d.expInteract = make([][]int, n)
	for j := 0; j < n; j++ {
		d.binom[j] = make([]float64, j+1)
		d.expK[j] = make([]int, j+1)
		d.expJK[j] = make([]int, j+1)
		d.expInteract[j] = make([]int, j+1)
		for s := 0; s <= j; s++ {
			d.binom[j][s] = binomialCoefficient(j, s)
			d.expK[j][s] = s
			d.expJK[j][s] = j - s
			d.expInteract[j][s] = s * (j - s)
		}
	}
}

func (d *ZTMultiplicativeBinomial) recompute() [][]float64 {
	p := d.p.Value()
	a := d.a.Value()
	n := d.k + 1
	m := make([][]float64, n)
	m[0] = make([]float64, n)
	for j := 1; j < n; j++ {
		row := make([]float64, n)
		total := 0.0
		for s := 0; s <= j; s++ {
			v := d.binom[j][s] * math.Pow(p, float64(d.expK[j][s])) * math.Pow(1-p, float64(d.expJK[j][s])) * math.Pow(a, float64(d.expInteract[j][s]))
			row[s] = v
			total += v
		}
		if total > 0 {
			for s := 0; s <= j; s++ {
				row[s] /= total
			}
		}
		m[j] = row
	}
	return m
}

func binomialCoefficient(n, k int) float64 {
	if k < 0 || k > n {
		return 0
	}
	if k > n-k {
		k = n - k
	}
	result := 1.0
	for i := 0; i < k; i++ {
		result *= float64(n-i) / float64(i+1)
	}
	return result
}

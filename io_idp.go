package plasmocore

import (
	"bufio"
	"math"
	"os"
	"strconv"

	"github.com/pkg/errors"
)

// csvDurationPrior is the DurationPrior (model.go) backing the two
// discrete probability vectors loaded from the IDP files: one real number
// per line, index i giving p(duration = i), loaded once at startup from
// --symptomatic-idp / --asymptomatic-idp.
type csvDurationPrior struct {
	symptomatic  []float64
	asymptomatic []float64
}

// LoadDurationPriors reads the symptomatic and asymptomatic IDP CSV files
// (one probability per line) into a DurationPrior.
func LoadDurationPriors(symptomaticPath, asymptomaticPath string) (DurationPrior, error) {
	sym, err := loadProbabilityVector(symptomaticPath)
	if err != nil {
		return nil, errors.Wrapf(err, "plasmocore: loading symptomatic IDP %q", symptomaticPath)
	}
	asym, err := loadProbabilityVector(asymptomaticPath)
	if err != nil {
		return nil, errors.Wrapf(err, "plasmocore: loading asymptomatic IDP %q", asymptomaticPath)
	}
	return &csvDurationPrior{symptomatic: sym, asymptomatic: asym}, nil
}

func loadProbabilityVector(path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var values []float64
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if text == "" {
			continue
		}
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		values = append(values, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return values, nil
}

// LogDensity looks up ln p(duration) in the table matching symptomatic,
// indexing by the nearest integer day; an out-of-range duration reports
// -Inf rather than panicking, the same "numerically infeasible, reject
// locally" treatment every other leaf gives an impossible proposal.
func (c *csvDurationPrior) LogDensity(symptomatic bool, duration float64) float64 {
	table := c.asymptomatic
	if symptomatic {
		table = c.symptomatic
	}
	day := int(duration + 0.5)
	if day < 0 || day >= len(table) || table[day] <= 0 {
		return math.Inf(-1)
	}
	return math.Log(table[day])
}

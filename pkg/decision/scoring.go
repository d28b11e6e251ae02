package decision

import (
	"fmt"
	"math"
	"sort"
)

const (
	// weightTolerance is how far the weight sum may drift from 1 before
	// proportional renormalization kicks in.
	weightTolerance = 1e-6

	// scoreTie is the gap under which two weighted totals count as tied;
	// tied candidates keep their submission order.
	scoreTie = 1e-9
)

// Direction states whether larger raw values are preferable.
type Direction string

const (
	HigherIsBetter Direction = "higher"
	LowerIsBetter  Direction = "lower"
)

// Criterion is one weighted ranking dimension.
type Criterion struct {
	Name      string
	Weight    float64
	Direction Direction
}

// Candidate is one option to rank, with raw values per criterion name.
type Candidate struct {
	ID     string
	Values map[string]float64
}

// ScoredOption is a ranked candidate with its normalized values and
// weighted total. Produced fresh per call, never retained.
type ScoredOption struct {
	ID         string
	Normalized map[string]float64
	Score      float64
}

// Rank scores candidates against the weighted criteria and returns them in
// descending score order. Raw values are min-max normalized to [0,1] per
// criterion across the candidate set, inverted for LowerIsBetter criteria;
// a constant criterion normalizes to 1 for everyone.
//
// If the weights do not sum to 1 within tolerance they are renormalized
// proportionally and a non-fatal WeightNormalizationWarning is returned
// alongside the ranking.
func Rank(candidates []Candidate, criteria []Criterion) ([]ScoredOption, *WeightNormalizationWarning, error) {
	if len(criteria) == 0 {
		return nil, nil, fmt.Errorf("scoring: no criteria")
	}
	for _, c := range criteria {
		if c.Weight < 0 || c.Weight > 1 {
			return nil, nil, fmt.Errorf("scoring: criterion %q weight %g outside [0,1]", c.Name, c.Weight)
		}
		if c.Direction != HigherIsBetter && c.Direction != LowerIsBetter {
			return nil, nil, fmt.Errorf("scoring: criterion %q has unknown direction %q", c.Name, c.Direction)
		}
	}
	if len(candidates) == 0 {
		return nil, nil, nil
	}

	weights, warning := normalizeWeights(criteria)

	// Per-criterion extremes across the candidate set.
	mins := make(map[string]float64, len(criteria))
	maxs := make(map[string]float64, len(criteria))
	for _, c := range criteria {
		mins[c.Name] = math.Inf(1)
		maxs[c.Name] = math.Inf(-1)
	}
	for _, cand := range candidates {
		for _, c := range criteria {
			v := cand.Values[c.Name]
			if v < mins[c.Name] {
				mins[c.Name] = v
			}
			if v > maxs[c.Name] {
				maxs[c.Name] = v
			}
		}
	}

	ranked := make([]ScoredOption, len(candidates))
	for i, cand := range candidates {
		opt := ScoredOption{
			ID:         cand.ID,
			Normalized: make(map[string]float64, len(criteria)),
		}
		for _, c := range criteria {
			n := normalize(cand.Values[c.Name], mins[c.Name], maxs[c.Name], c.Direction)
			opt.Normalized[c.Name] = n
			opt.Score += weights[c.Name] * n
		}
		ranked[i] = opt
	}

	// Stable sort: only strictly better scores move ahead, so ties within
	// scoreTie keep submission order.
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score+scoreTie
	})

	return ranked, warning, nil
}

func normalizeWeights(criteria []Criterion) (map[string]float64, *WeightNormalizationWarning) {
	sum := 0.0
	for _, c := range criteria {
		sum += c.Weight
	}

	weights := make(map[string]float64, len(criteria))
	if math.Abs(sum-1) <= weightTolerance {
		for _, c := range criteria {
			weights[c.Name] = c.Weight
		}
		return weights, nil
	}

	if sum == 0 {
		// Degenerate: treat all criteria equally.
		for _, c := range criteria {
			weights[c.Name] = 1.0 / float64(len(criteria))
		}
	} else {
		for _, c := range criteria {
			weights[c.Name] = c.Weight / sum
		}
	}
	return weights, &WeightNormalizationWarning{Sum: sum}
}

func normalize(v, min, max float64, dir Direction) float64 {
	if max == min {
		return 1
	}
	if dir == LowerIsBetter {
		return (max - v) / (max - min)
	}
	return (v - min) / (max - min)
}

// Package match classifies probe embeddings against labeled reference
// sets by nearest-neighbour Euclidean distance with a rejection
// threshold.
package match

import "math"

// UnknownLabel is returned when no reference embedding is within the
// rejection threshold of the probe.
const UnknownLabel = "unknown"

// DefaultThreshold is the maximum Euclidean distance for an accepted
// match.
const DefaultThreshold = 0.6

// Reference is one labeled set of enrollment embeddings.
type Reference struct {
	Label      string
	Embeddings [][]float32
}

// Result is the classification of a single probe embedding.
type Result struct {
	Label    string  `json:"label"`
	Distance float32 `json:"distance"`
}

// Matcher holds the reference sets for one user. Enumeration order of
// the references is preserved: when two labels are equidistant from a
// probe, the first-seen label wins. Build references from a stable
// source ordering, never from a map.
type Matcher struct {
	refs      []Reference
	threshold float32
}

// New builds a matcher over refs. A non-positive threshold falls back
// to DefaultThreshold.
func New(refs []Reference, threshold float32) *Matcher {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Matcher{refs: refs, threshold: threshold}
}

// Classify finds the reference embedding nearest to probe. If the
// minimum distance exceeds the threshold the result label is
// UnknownLabel. Reference embeddings with a different dimension than
// the probe are ignored.
func (m *Matcher) Classify(probe []float32) Result {
	best := Result{
		Label:    UnknownLabel,
		Distance: float32(math.Inf(1)),
	}
	for _, ref := range m.refs {
		for _, emb := range ref.Embeddings {
			if len(emb) != len(probe) {
				continue
			}
			// Strict less-than keeps the first-seen label on ties.
			if d := euclidean(probe, emb); d < best.Distance {
				best.Distance = d
				best.Label = ref.Label
			}
		}
	}
	if best.Distance > m.threshold {
		best.Label = UnknownLabel
	}
	return best
}

// ClassifyAll classifies each probe in input order.
func (m *Matcher) ClassifyAll(probes [][]float32) []Result {
	results := make([]Result, len(probes))
	for i, probe := range probes {
		results[i] = m.Classify(probe)
	}
	return results
}

func euclidean(a, b []float32) float32 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return float32(math.Sqrt(sum))
}

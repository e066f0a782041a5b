package textutil

import "math"

// Vector is a sparse term-weight vector.
type Vector struct {
	weights map[string]float64
	norm    float64
}

// NewVector counts the terms of text. It returns nil when text has no terms.
func NewVector(text string) *Vector {
	terms := Terms(text)
	if len(terms) == 0 {
		return nil
	}
	counts := make(map[string]float64, len(terms))
	for _, term := range terms {
		counts[term]++
	}
	return newVector(counts)
}

func newVector(weights map[string]float64) *Vector {
	var sum float64
	for _, w := range weights {
		sum += w * w
	}
	if sum == 0 {
		return nil
	}
	return &Vector{weights: weights, norm: math.Sqrt(sum)}
}

// Len returns the number of distinct terms.
func (v *Vector) Len() int {
	if v == nil {
		return 0
	}
	return len(v.weights)
}

// Weighted scales every term by its entry in idf. Terms missing from idf keep
// their count; terms weighted to zero are dropped.
func (v *Vector) Weighted(idf map[string]float64) *Vector {
	if v == nil || len(idf) == 0 {
		return v
	}
	weighted := make(map[string]float64, len(v.weights))
	for term, count := range v.weights {
		w := count
		if factor, ok := idf[term]; ok {
			w *= factor
		}
		if w != 0 {
			weighted[term] = w
		}
	}
	return newVector(weighted)
}

// Cosine returns the cosine similarity of a and b, or 0 when either is nil.
func Cosine(a, b *Vector) float64 {
	if a == nil || b == nil {
		return 0
	}
	small, large := a, b
	if len(small.weights) > len(large.weights) {
		small, large = large, small
	}
	var dot float64
	for term, w := range small.weights {
		dot += w * large.weights[term]
	}
	if dot == 0 {
		return 0
	}
	return dot / (a.norm * b.norm)
}

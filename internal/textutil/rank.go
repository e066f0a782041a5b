package textutil

import "math"

// Corpus accumulates document frequencies for IDF weights.
type Corpus struct {
	docs    int
	docFreq map[string]int
}

// NewCorpus creates an empty corpus.
func NewCorpus() *Corpus {
	return &Corpus{docFreq: make(map[string]int)}
}

// Add counts each distinct term of v once.
func (c *Corpus) Add(v *Vector) {
	if c == nil {
		return
	}
	c.docs++
	if v == nil {
		return
	}
	for term := range v.weights {
		c.docFreq[term]++
	}
}

// IDF returns 1 + log((N+1)/(1+df)) per term. The constant keeps terms that
// appear in every document from dropping to zero weight.
func (c *Corpus) IDF() map[string]float64 {
	if c == nil || c.docs == 0 {
		return nil
	}
	n := float64(c.docs)
	idf := make(map[string]float64, len(c.docFreq))
	for term, df := range c.docFreq {
		idf[term] = 1 + math.Log((n+1)/(1+float64(df)))
	}
	return idf
}

// Rank scores every doc against query. Scores are aligned with docs and lie
// in [0, 1].
func Rank(query string, docs []string) []float64 {
	scores := make([]float64, len(docs))
	queryVec := NewVector(query)
	if queryVec == nil || len(docs) == 0 {
		return scores
	}
	vectors := make([]*Vector, len(docs))
	corpus := NewCorpus()
	for i, doc := range docs {
		vectors[i] = NewVector(doc)
		corpus.Add(vectors[i])
	}
	idf := corpus.IDF()
	weightedQuery := queryVec.Weighted(idf)
	for i, vec := range vectors {
		scores[i] = Cosine(weightedQuery, vec.Weighted(idf))
	}
	return scores
}

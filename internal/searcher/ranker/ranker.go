// Package ranker implements the classic TF-IDF similarity used to score
// matching documents.
package ranker

import (
	"math"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/document"
)

// ScoredDoc is a ranked hit.
type ScoredDoc struct {
	DocID document.ID `json:"doc_id"`
	Score float64     `json:"score"`
	Path  string      `json:"path,omitempty"`
}

// Classic is the vector-space similarity:
//
//	score(t, f, d) = tf(t, f, d) * idf(t, f)^2 * norm(f, d) * queryNorm
//
// with tf = sqrt(freq), idf = 1 + ln(N / (df + 1)) and norm = 1/sqrt(len).
type Classic struct{}

// TF returns the term-frequency factor.
func (Classic) TF(freq int) float64 {
	if freq <= 0 {
		return 0
	}
	return math.Sqrt(float64(freq))
}

// IDF returns the inverse document frequency of a term found in docFreq of
// totalDocs documents.
func (Classic) IDF(docFreq, totalDocs int) float64 {
	return 1 + math.Log(float64(totalDocs)/float64(docFreq+1))
}

// Norm returns the length normalization for a field of length tokens.
// Fields without length information, such as exact fields, are not
// normalized.
func (Classic) Norm(length int) float64 {
	if length <= 0 {
		return 1
	}
	return 1 / math.Sqrt(float64(length))
}

// QueryNorm turns the sum of squared clause weights into the per-query
// normalization constant. It never changes the relative order of hits.
func (Classic) QueryNorm(sumOfSquaredWeights float64) float64 {
	if sumOfSquaredWeights <= 0 || math.IsInf(sumOfSquaredWeights, 0) || math.IsNaN(sumOfSquaredWeights) {
		return 1
	}
	return 1 / math.Sqrt(sumOfSquaredWeights)
}

// TermScore combines the factors for one matching (term, field, document).
func (c Classic) TermScore(freq int, idf, norm, queryNorm float64) float64 {
	return c.TF(freq) * idf * idf * norm * queryNorm
}

// Sort orders docs by descending score, ties broken by ascending DocID.
func Sort(docs []ScoredDoc) {
	sort.Slice(docs, func(i, j int) bool {
		return Less(docs[j], docs[i])
	})
}

// Less reports whether a ranks strictly below b.
func Less(a, b ScoredDoc) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return a.DocID > b.DocID
}

package ngram

// Params are the BM25 tuning constants
type Params struct {
	K1 float64
	B  float64
}

// DefaultParams keeps k1 low: n-gram terms saturate faster than words
var DefaultParams = Params{K1: 0.5, B: 0.75}

// TermScore is tf·(k1+1) / (tf + k1·(1 − b + b·docLen/avgdl))
func TermScore(tf, docLen, avgdl float64, p Params) float64 {
	if tf <= 0 {
		return 0
	}
	norm := 1.0
	if avgdl > 0 {
		norm = 1 - p.B + p.B*docLen/avgdl
	}
	return tf * (p.K1 + 1) / (tf + p.K1*norm)
}

// Score sums term scores over the unique query grams present in a
// document. tf maps gram to its occurrence count in the document.
func Score(queryGrams []string, tf map[string]int, docLen int, avgdl float64, p Params) float64 {
	var total float64
	for _, g := range Unique(queryGrams) {
		if n := tf[g]; n > 0 {
			total += TermScore(float64(n), float64(docLen), avgdl, p)
		}
	}
	return total
}

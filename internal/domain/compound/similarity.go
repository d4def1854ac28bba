package compound

import "sort"

// Candidate is a screened similarity hit awaiting exact scoring.  The record
// carries properties only; identifiers are attached after pagination.
type Candidate struct {
	Record      CompoundRecord
	Fingerprint Fingerprint
}

// RankBySimilarity scores candidates against the query fingerprint, drops
// those below threshold or failing filters, and orders the rest by
// similarity descending with CanonicalID ascending as the tie-break.
// Candidates without a fingerprint, or with one of a different length, are
// excluded rather than scored as zero.
func RankBySimilarity(query Fingerprint, candidates []Candidate, threshold float64, filters *SearchFilters) []SimilarityResult {
	out := make([]SimilarityResult, 0, len(candidates))
	if query.IsEmpty() {
		return out
	}
	for i := range candidates {
		c := &candidates[i]
		if c.Fingerprint.IsEmpty() {
			continue
		}
		score, err := Tanimoto(query, c.Fingerprint)
		if err != nil || score < threshold {
			continue
		}
		if !filters.Matches(&c.Record) {
			continue
		}
		out = append(out, SimilarityResult{CompoundRecord: c.Record, Similarity: score})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		if out[i].CanonicalID != out[j].CanonicalID {
			return out[i].CanonicalID < out[j].CanonicalID
		}
		return out[i].EntityID < out[j].EntityID
	})
	return out
}

// Paginate returns items[offset : offset+limit], clamped to the slice.
// Negative arguments are treated as zero.
func Paginate[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}
	if offset >= len(items) {
		return items[:0]
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

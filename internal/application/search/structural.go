package search

import (
	"context"
	"strings"

	"github.com/turtacn/metabo-search/internal/domain/compound"
	"github.com/turtacn/metabo-search/internal/infrastructure/monitoring/logging"
)

func (s *serviceImpl) SearchBySubstructure(ctx context.Context, q Query) (recs []compound.CompoundRecord, err error) {
	ctx, log, timer := s.begin(ctx, "substructure")
	defer func() { s.finish("substructure", timer, len(recs), err) }()

	pattern := strings.TrimSpace(q.Text)
	if pattern == "" {
		return []compound.CompoundRecord{}, nil
	}
	if err := s.ensureVocabulary(ctx); err != nil {
		return nil, err
	}

	out := s.substructure(ctx, pattern, q)
	if !out.needsFallback() {
		s.labelRecords(out.rows)
		return out.rows, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.logFallback(log, "substructure", pattern, out.reason, out.cause)
	return s.identifierSearch(ctx, log, Query{Text: pattern, Limit: q.Limit, Offset: q.Offset, Filters: q.Filters})
}

func (s *serviceImpl) substructure(ctx context.Context, pattern string, q Query) outcome[compound.CompoundRecord] {
	valid, err := s.validity.IsValid(ctx, pattern)
	if err != nil {
		return fallback[compound.CompoundRecord](ReasonEngineFailure, err)
	}
	if !valid {
		return fallback[compound.CompoundRecord](ReasonInvalidPattern, nil)
	}
	rows, err := s.structures.Substructure(ctx, pattern, q.Filters, s.limit(q.Limit), q.Offset)
	if err != nil {
		return fallback[compound.CompoundRecord](ReasonEngineFailure, err)
	}
	return answered(rows)
}

func (s *serviceImpl) SearchBySimilarity(ctx context.Context, q SimilarityQuery) (res []compound.SimilarityResult, err error) {
	ctx, log, timer := s.begin(ctx, "similarity")
	defer func() { s.finish("similarity", timer, len(res), err) }()

	pattern := strings.TrimSpace(q.Text)
	if pattern == "" {
		return []compound.SimilarityResult{}, nil
	}
	if err := s.ensureVocabulary(ctx); err != nil {
		return nil, err
	}

	out := s.similarity(ctx, pattern, s.threshold(q.Threshold), q.Query)
	if !out.needsFallback() {
		return out.rows, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.logFallback(log, "similarity", pattern, out.reason, out.cause)
	recs, err := s.identifierSearch(ctx, log, Query{Text: pattern, Limit: q.Limit, Offset: q.Offset, Filters: q.Filters})
	if err != nil {
		return nil, err
	}
	return compound.WithZeroSimilarity(recs), nil
}

// similarity screens candidates through the engine's fingerprint index,
// rescores them exactly, paginates and only then attaches identifiers to the
// page that survives.
func (s *serviceImpl) similarity(ctx context.Context, pattern string, threshold float64, q Query) outcome[compound.SimilarityResult] {
	valid, err := s.validity.IsValid(ctx, pattern)
	if err != nil {
		return fallback[compound.SimilarityResult](ReasonEngineFailure, err)
	}
	if !valid {
		return fallback[compound.SimilarityResult](ReasonInvalidPattern, nil)
	}

	queryFP, candidates, err := s.structures.ScreenSimilar(ctx, pattern, threshold, q.Filters, s.opts.MaxSimilarityCandidates)
	if err != nil {
		return fallback[compound.SimilarityResult](ReasonEngineFailure, err)
	}
	ranked := compound.RankBySimilarity(queryFP, candidates, threshold, q.Filters)
	page := compound.Paginate(ranked, s.limit(q.Limit), q.Offset)
	if len(page) == 0 {
		return answered[compound.SimilarityResult](nil)
	}

	keys := make([]int64, len(page))
	for i := range page {
		keys[i] = page[i].EntityID
	}
	ids, err := s.details.LoadIdentifiers(ctx, keys)
	if err != nil {
		return fallback[compound.SimilarityResult](ReasonEngineFailure, err)
	}

	out := make([]compound.SimilarityResult, len(page))
	copy(out, page)
	for i := range out {
		out[i].Identifiers = ids[out[i].EntityID]
		if out[i].Identifiers == nil {
			out[i].Identifiers = []compound.IdentifierInfo{}
		}
		s.labelIdentifiers(out[i].Identifiers)
	}
	return answered(out)
}

func (s *serviceImpl) threshold(t *float64) float64 {
	if t != nil {
		return *t
	}
	return s.opts.SimilarityThreshold
}

// logFallback records a strategy handing its query to the identifier path.
// A done context is checked by the caller first so that cancellation never
// turns into a fallback query.
func (s *serviceImpl) logFallback(log logging.Logger, strategy, pattern string, reason FallbackReason, cause error) {
	fields := []logging.Field{
		logging.String("pattern", pattern),
		logging.String("reason", string(reason)),
	}
	if cause != nil {
		fields = append(fields, logging.Err(cause))
		log.Warn("structural search failed, falling back to identifier search", fields...)
	} else {
		log.Debug("pattern rejected, falling back to identifier search", fields...)
	}
	s.metrics.RecordFallback(strategy, string(reason))
}

// Package search is the compound search orchestrator.  It owns the
// vocabulary caches, picks a strategy per call and, when a structural
// strategy cannot answer, re-runs the query through the identifier path.
package search

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/metabo-search/internal/config"
	"github.com/turtacn/metabo-search/internal/domain/compound"
	"github.com/turtacn/metabo-search/internal/domain/vocabulary"
	"github.com/turtacn/metabo-search/internal/infrastructure/database/redis"
	"github.com/turtacn/metabo-search/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/metabo-search/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/metabo-search/pkg/errors"
)

// Service defines the search operations.
type Service interface {
	Search(ctx context.Context, q Query) ([]compound.CompoundRecord, error)
	SearchByText(ctx context.Context, q Query) ([]compound.CompoundRecord, error)
	SearchBySubstructure(ctx context.Context, q Query) ([]compound.CompoundRecord, error)
	SearchBySimilarity(ctx context.Context, q SimilarityQuery) ([]compound.SimilarityResult, error)

	// Dispatch runs the strategy named by mode.  Rows from non-similarity
	// modes carry similarity 0.
	Dispatch(ctx context.Context, mode Mode, q SimilarityQuery) ([]compound.SimilarityResult, error)

	Autocomplete(ctx context.Context, query string, limit int) ([]compound.Suggestion, error)
	GetByEntityKey(ctx context.Context, entityKey string) (*compound.CompoundRecord, error)
	GetByCanonicalID(ctx context.Context, canonicalID int64) (*compound.CompoundRecord, error)
	GetPublications(ctx context.Context, entityKey string) ([]string, error)
	GetLiterature(ctx context.Context, entityKey string) (*compound.Literature, error)
	SearchTerms(ctx context.Context, query string, limit int) ([]vocabulary.CvTerm, error)

	// Warmup initializes both vocabulary caches concurrently.
	Warmup(ctx context.Context) error
}

// Query is a paginated search request.  A zero Limit selects the configured
// default; other values are used as given.
type Query struct {
	Text    string
	Limit   int
	Offset  int
	Filters *compound.SearchFilters
}

// SimilarityQuery adds a Tanimoto threshold.  A nil Threshold selects the
// configured default.
type SimilarityQuery struct {
	Query
	Threshold *float64
}

// Mode names a search strategy.
type Mode string

const (
	ModeText         Mode = "text"
	ModeSubstructure Mode = "substructure"
	ModeSimilarity   Mode = "similarity"
)

// ParseMode maps a mode name to a Mode.  The empty string is text mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeText:
		return ModeText, nil
	case ModeSubstructure:
		return ModeSubstructure, nil
	case ModeSimilarity:
		return ModeSimilarity, nil
	default:
		return "", errors.New(errors.ErrCodeInvalidSearchMode, "unknown search mode").WithDetail(s)
	}
}

// SummaryFetcher returns bibliographic summaries for PubMed identifiers.
type SummaryFetcher interface {
	FetchSummaries(ctx context.Context, pmids []string) ([]compound.Publication, error)
}

// Options are the orchestrator tunables.
type Options struct {
	DefaultLimit            int
	AutocompleteLimit       int
	AutocompleteMinLength   int
	SimilarityThreshold     float64
	PrefixCandidates        int
	CandidateMultiplier     int
	MaxSimilarityCandidates int
	ValidityCacheSize       int
	WarmupConcurrency       int
	ReferenceTypes          []string

	DetailTTL       time.Duration
	PublicationTTL  time.Duration
	AutocompleteTTL time.Duration
}

// DefaultOptions returns Options populated from the config defaults.
func DefaultOptions() Options {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	return OptionsFromConfig(cfg)
}

// OptionsFromConfig extracts the orchestrator tunables from cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		DefaultLimit:            cfg.Search.DefaultLimit,
		AutocompleteLimit:       cfg.Search.AutocompleteLimit,
		AutocompleteMinLength:   cfg.Search.AutocompleteMinLength,
		SimilarityThreshold:     cfg.Search.SimilarityThreshold,
		PrefixCandidates:        cfg.Search.PrefixCandidates,
		CandidateMultiplier:     cfg.Search.CandidateMultiplier,
		MaxSimilarityCandidates: cfg.Search.MaxSimilarityCandidates,
		ValidityCacheSize:       cfg.Search.ValidityCacheSize,
		WarmupConcurrency:       cfg.Search.WarmupConcurrency,
		ReferenceTypes:          append([]string(nil), cfg.Publications.ReferenceTypes...),
		DetailTTL:               cfg.Redis.DetailTTL,
		PublicationTTL:          cfg.Redis.PublicationTTL,
		AutocompleteTTL:         cfg.Redis.AutocompleteTTL,
	}
}

// Deps are the collaborators of the service.  Summaries, Cache and Metrics
// are optional.
type Deps struct {
	Identifiers compound.IdentifierIndex
	Structures  compound.StructureIndex
	Details     compound.DetailLoader
	Types       *vocabulary.TypeCache
	Terms       *vocabulary.CvCache
	Summaries   SummaryFetcher
	Cache       redis.Cache
	Metrics     *prometheus.SearchMetrics
	Logger      logging.Logger
}

type serviceImpl struct {
	identifiers compound.IdentifierIndex
	structures  compound.StructureIndex
	details     compound.DetailLoader
	types       *vocabulary.TypeCache
	terms       *vocabulary.CvCache
	summaries   SummaryFetcher
	cache       redis.Cache
	metrics     *prometheus.SearchMetrics
	validity    *validityMemo
	opts        Options
	logger      logging.Logger
}

// NewService creates the search service.
func NewService(deps Deps, opts Options) (Service, error) {
	switch {
	case deps.Identifiers == nil:
		return nil, errors.InvalidParam("identifier index is required")
	case deps.Structures == nil:
		return nil, errors.InvalidParam("structure index is required")
	case deps.Details == nil:
		return nil, errors.InvalidParam("detail loader is required")
	case deps.Types == nil || deps.Terms == nil:
		return nil, errors.InvalidParam("vocabulary caches are required")
	}

	opts = withDefaults(opts)
	validity, err := newValidityMemo(deps.Structures, opts.ValidityCacheSize)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to create validity cache")
	}

	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	cache := deps.Cache
	if cache == nil {
		cache = redis.NewPassthroughCache()
	}

	return &serviceImpl{
		identifiers: deps.Identifiers,
		structures:  deps.Structures,
		details:     deps.Details,
		types:       deps.Types,
		terms:       deps.Terms,
		summaries:   deps.Summaries,
		cache:       cache,
		metrics:     deps.Metrics,
		validity:    validity,
		opts:        opts,
		logger:      logger.Named("search"),
	}, nil
}

func withDefaults(o Options) Options {
	d := config.Config{}
	config.ApplyDefaults(&d)
	if o.DefaultLimit == 0 {
		o.DefaultLimit = d.Search.DefaultLimit
	}
	if o.AutocompleteLimit == 0 {
		o.AutocompleteLimit = d.Search.AutocompleteLimit
	}
	if o.AutocompleteMinLength == 0 {
		o.AutocompleteMinLength = d.Search.AutocompleteMinLength
	}
	if o.PrefixCandidates == 0 {
		o.PrefixCandidates = d.Search.PrefixCandidates
	}
	if o.CandidateMultiplier == 0 {
		o.CandidateMultiplier = d.Search.CandidateMultiplier
	}
	if o.MaxSimilarityCandidates == 0 {
		o.MaxSimilarityCandidates = d.Search.MaxSimilarityCandidates
	}
	if o.WarmupConcurrency == 0 {
		o.WarmupConcurrency = d.Search.WarmupConcurrency
	}
	if len(o.ReferenceTypes) == 0 {
		o.ReferenceTypes = d.Publications.ReferenceTypes
	}
	return o
}

// ─────────────────────────────────────────────────────────────────────────────
// Identifier-first search
// ─────────────────────────────────────────────────────────────────────────────

func (s *serviceImpl) Search(ctx context.Context, q Query) (recs []compound.CompoundRecord, err error) {
	ctx, log, timer := s.begin(ctx, "identifier")
	defer func() { s.finish("identifier", timer, len(recs), err) }()
	return s.identifierSearch(ctx, log, q)
}

func (s *serviceImpl) SearchByText(ctx context.Context, q Query) (recs []compound.CompoundRecord, err error) {
	ctx, log, timer := s.begin(ctx, "text")
	defer func() { s.finish("text", timer, len(recs), err) }()

	text := strings.TrimSpace(q.Text)
	if text == "" {
		return []compound.CompoundRecord{}, nil
	}
	if err := s.ensureVocabulary(ctx); err != nil {
		return nil, err
	}
	return s.textSearch(ctx, log, text, q)
}

// identifierSearch resolves the query through identifier prefixes first and
// falls through to text search when no usable entity key comes back.
func (s *serviceImpl) identifierSearch(ctx context.Context, log logging.Logger, q Query) ([]compound.CompoundRecord, error) {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return []compound.CompoundRecord{}, nil
	}
	if err := s.ensureVocabulary(ctx); err != nil {
		return nil, err
	}

	matches, err := s.identifiers.PrefixSearch(ctx, text, s.opts.PrefixCandidates)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		log.Debug("no identifier match, using text search", logging.String("query", text))
		s.metrics.RecordFallback("identifier", string(ReasonNoIdentifierMatch))
		return s.textSearch(ctx, log, text, q)
	}

	keys, dropped := entityKeys(matches)
	if dropped > 0 {
		log.Warn("dropped malformed entity keys", logging.Int("dropped", dropped))
	}
	if len(keys) == 0 {
		s.metrics.RecordFallback("identifier", string(ReasonMalformedKeys))
		return s.textSearch(ctx, log, text, q)
	}

	recs, err := s.loadBatch(ctx, compound.BatchQuery{
		EntityKeys: keys,
		Filters:    q.Filters,
		Limit:      s.limit(q.Limit),
		Offset:     q.Offset,
	})
	if err != nil {
		return nil, err
	}
	log.Debug("identifier search", logging.Int("keys", len(keys)), logging.Int("results", len(recs)))
	return recs, nil
}

// textSearch unions identifier-prefix candidates with formula prefix and
// suffix matches in a single hydration.
func (s *serviceImpl) textSearch(ctx context.Context, log logging.Logger, text string, q Query) ([]compound.CompoundRecord, error) {
	keys, err := s.identifiers.PrefixEntityKeys(ctx, text, s.opts.CandidateMultiplier*s.opts.PrefixCandidates)
	if err != nil {
		return nil, err
	}
	recs, err := s.loadBatch(ctx, compound.BatchQuery{
		EntityKeys:      keys,
		FormulaFragment: text,
		Filters:         q.Filters,
		Limit:           s.limit(q.Limit),
		Offset:          q.Offset,
	})
	if err != nil {
		return nil, err
	}
	log.Debug("text search", logging.Int("candidates", len(keys)), logging.Int("results", len(recs)))
	return recs, nil
}

// loadBatch hydrates and labels one page.  An empty page is never nil.
func (s *serviceImpl) loadBatch(ctx context.Context, q compound.BatchQuery) ([]compound.CompoundRecord, error) {
	recs, err := s.details.LoadBatch(ctx, q)
	if err != nil {
		return nil, err
	}
	if recs == nil {
		return []compound.CompoundRecord{}, nil
	}
	s.labelRecords(recs)
	return recs, nil
}

// entityKeys returns the distinct well-formed keys of matches in first-seen
// order and the number of malformed ones.
func entityKeys(matches []compound.Suggestion) ([]int64, int) {
	seen := make(map[int64]struct{}, len(matches))
	keys := make([]int64, 0, len(matches))
	dropped := 0
	for _, m := range matches {
		k, ok := parseEntityKey(m.EntityID)
		if !ok {
			dropped++
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	return keys, dropped
}

func parseEntityKey(s string) (int64, bool) {
	k, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, false
	}
	return k, true
}

// ─────────────────────────────────────────────────────────────────────────────
// Dispatch / autocomplete / lookups
// ─────────────────────────────────────────────────────────────────────────────

func (s *serviceImpl) Dispatch(ctx context.Context, mode Mode, q SimilarityQuery) ([]compound.SimilarityResult, error) {
	switch mode {
	case "", ModeText:
		recs, err := s.Search(ctx, q.Query)
		if err != nil {
			return nil, err
		}
		return compound.WithZeroSimilarity(recs), nil
	case ModeSubstructure:
		recs, err := s.SearchBySubstructure(ctx, q.Query)
		if err != nil {
			return nil, err
		}
		return compound.WithZeroSimilarity(recs), nil
	case ModeSimilarity:
		return s.SearchBySimilarity(ctx, q)
	default:
		return nil, errors.New(errors.ErrCodeInvalidSearchMode, "unknown search mode").WithDetail(string(mode))
	}
}

func (s *serviceImpl) Autocomplete(ctx context.Context, query string, limit int) (out []compound.Suggestion, err error) {
	ctx, _, timer := s.begin(ctx, "autocomplete")
	defer func() { s.finish("autocomplete", timer, len(out), err) }()

	text := strings.TrimSpace(query)
	if text == "" || len([]rune(text)) < s.opts.AutocompleteMinLength {
		return []compound.Suggestion{}, nil
	}
	if limit == 0 {
		limit = s.opts.AutocompleteLimit
	}
	if err := s.ensureVocabulary(ctx); err != nil {
		return nil, err
	}

	key := "ac:" + strconv.Itoa(limit) + ":" + strings.ToLower(text)
	err = s.cache.GetOrSet(ctx, key, &out, s.opts.AutocompleteTTL, func(ctx context.Context) (interface{}, error) {
		matches, err := s.identifiers.PrefixSearch(ctx, text, limit)
		if err != nil {
			return nil, err
		}
		for i := range matches {
			matches[i].Type = s.types.Resolve(matches[i].TypeKey)
		}
		return matches, nil
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []compound.Suggestion{}
	}
	return out, nil
}

func (s *serviceImpl) GetByEntityKey(ctx context.Context, entityKey string) (*compound.CompoundRecord, error) {
	key, ok := parseEntityKey(entityKey)
	if !ok {
		s.logger.Debug("ignoring malformed entity key", logging.String("entity_key", entityKey))
		return nil, nil
	}
	if err := s.ensureVocabulary(ctx); err != nil {
		return nil, err
	}
	return s.cachedRecord(ctx, "detail:"+strconv.FormatInt(key, 10), func(ctx context.Context) (*compound.CompoundRecord, error) {
		return s.details.LoadOne(ctx, key)
	})
}

func (s *serviceImpl) GetByCanonicalID(ctx context.Context, canonicalID int64) (*compound.CompoundRecord, error) {
	if err := s.ensureVocabulary(ctx); err != nil {
		return nil, err
	}
	return s.cachedRecord(ctx, "canonical:"+strconv.FormatInt(canonicalID, 10), func(ctx context.Context) (*compound.CompoundRecord, error) {
		return s.details.LoadByCanonicalID(ctx, canonicalID)
	})
}

// cachedRecord reads a single record through the result cache.  Labels are
// attached before caching since type keys are not serialized.
func (s *serviceImpl) cachedRecord(ctx context.Context, key string, load func(context.Context) (*compound.CompoundRecord, error)) (*compound.CompoundRecord, error) {
	var rec compound.CompoundRecord
	err := s.cache.GetOrSet(ctx, key, &rec, s.opts.DetailTTL, func(ctx context.Context) (interface{}, error) {
		r, err := load(ctx)
		if err != nil || r == nil {
			return nil, err
		}
		s.labelIdentifiers(r.Identifiers)
		return r, nil
	})
	if errors.Is(err, redis.ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if rec.Identifiers == nil {
		rec.Identifiers = []compound.IdentifierInfo{}
	}
	return &rec, nil
}

func (s *serviceImpl) SearchTerms(ctx context.Context, query string, limit int) ([]vocabulary.CvTerm, error) {
	if err := s.ensureVocabulary(ctx); err != nil {
		return nil, err
	}
	matches := s.terms.SearchTerms(query, limit)
	exact, ok := s.terms.ByAccession(strings.TrimSpace(query))
	if !ok {
		return matches, nil
	}
	out := []vocabulary.CvTerm{exact}
	for _, t := range matches {
		if limit > 0 && len(out) >= limit {
			break
		}
		if t.EntityID != exact.EntityID {
			out = append(out, t)
		}
	}
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func (s *serviceImpl) limit(l int) int {
	if l == 0 {
		return s.opts.DefaultLimit
	}
	return l
}

// begin returns a logger tagged with a fresh search id.
// begin tags the call with a fresh search_id.  The returned context carries
// the tagged logger so storage logs correlate with the call.
func (s *serviceImpl) begin(ctx context.Context, strategy string) (context.Context, logging.Logger, *prometheus.Timer) {
	log := s.logger.With(
		logging.String("search_id", uuid.NewString()),
		logging.String("strategy", strategy),
	)
	return logging.WithContext(ctx, log), log, s.metrics.StartSearch(strategy)
}

func (s *serviceImpl) finish(strategy string, timer *prometheus.Timer, results int, err error) {
	timer.ObserveDuration()
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.metrics.ObserveSearch(strategy, outcome, results)
}

// labelRecords fills identifier type names from the type cache.
func (s *serviceImpl) labelRecords(recs []compound.CompoundRecord) {
	for i := range recs {
		s.labelIdentifiers(recs[i].Identifiers)
	}
}

func (s *serviceImpl) labelIdentifiers(ids []compound.IdentifierInfo) {
	for i := range ids {
		if e, ok := s.types.Lookup(ids[i].TypeKey); ok {
			ids[i].Type = e.Name
			ids[i].TypeAccession = e.Accession
			continue
		}
		ids[i].Type = vocabulary.UnknownType
	}
}

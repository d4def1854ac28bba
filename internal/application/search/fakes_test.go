package search

import (
	"context"
	"fmt"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/turtacn/metabo-search/internal/domain/compound"
	"github.com/turtacn/metabo-search/internal/domain/vocabulary"
	"github.com/turtacn/metabo-search/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/metabo-search/internal/infrastructure/monitoring/prometheus"
)

func f64(v float64) *float64 { return &v }
func i64(v int64) *int64     { return &v }

// ─────────────────────────────────────────────────────────────────────────────
// Vocabulary store stub
// ─────────────────────────────────────────────────────────────────────────────

const (
	typeCommonName = int64(10)
	typeSynonym    = int64(11)
	typeUnknown    = int64(99)
)

type stubVocabulary struct {
	loads atomic.Int32
	extra []vocabulary.TermAttribute
}

func (s *stubVocabulary) ResolveMarkers(_ context.Context, _ []string) (map[string]int64, error) {
	m := vocabulary.DefaultMarkers()
	return map[string]int64{m.TermRole: 1, m.Name: 2, m.Accession: 3, m.Synonym: 4}, nil
}

func (s *stubVocabulary) LoadTermAttributes(_ context.Context, _ int64, _ []int64) ([]vocabulary.TermAttribute, error) {
	s.loads.Add(1)
	return append([]vocabulary.TermAttribute{
		{EntityID: typeCommonName, AttributeKey: 2, Value: "Common name"},
		{EntityID: typeCommonName, AttributeKey: 3, Value: "OM:0010"},
		{EntityID: typeSynonym, AttributeKey: 2, Value: "Synonym"},
		{EntityID: typeSynonym, AttributeKey: 3, Value: "OM:0011"},
		{EntityID: typeSynonym, AttributeKey: 4, Value: "alias"},
	}, s.extra...), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// In-memory compound store
// ─────────────────────────────────────────────────────────────────────────────

type memCompound struct {
	rec    compound.CompoundRecord
	smiles string
	fp     []byte
	refs   []string
}

// memStore implements IdentifierIndex, StructureIndex and DetailLoader over
// a fixed dataset with the ordering rules of the SQL repositories.
type memStore struct {
	compounds []memCompound
	valid     map[string]bool
	queryFPs  map[string][]byte

	validityErr     error
	substructureErr error
	screenErr       error

	mu    sync.Mutex
	calls map[string]int
}

func (m *memStore) called(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = map[string]int{}
	}
	m.calls[name]++
}

func (m *memStore) count(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

func (m *memStore) totalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		n += c
	}
	return n
}

func cloneRecord(r compound.CompoundRecord) compound.CompoundRecord {
	r.Identifiers = append([]compound.IdentifierInfo{}, r.Identifiers...)
	return r
}

func sortRecords(recs []compound.CompoundRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i].MolecularWeight, recs[j].MolecularWeight
		switch {
		case a == nil && b != nil:
			return false
		case a != nil && b == nil:
			return true
		case a != nil && b != nil && *a != *b:
			return *a < *b
		}
		return recs[i].CanonicalID < recs[j].CanonicalID
	})
}

func page(recs []compound.CompoundRecord, limit, offset int) []compound.CompoundRecord {
	if limit == compound.NoLimit {
		limit = len(recs)
	}
	return compound.Paginate(recs, limit, offset)
}

func (m *memStore) PrefixSearch(_ context.Context, prefix string, limit int) ([]compound.Suggestion, error) {
	m.called("PrefixSearch")
	p := strings.ToLower(prefix)
	out := []compound.Suggestion{}
	for _, c := range m.compounds {
		for _, id := range c.rec.Identifiers {
			if strings.HasPrefix(strings.ToLower(id.Value), p) {
				out = append(out, compound.Suggestion{
					Label:    id.Value,
					Value:    id.Value,
					TypeKey:  id.TypeKey,
					EntityID: strconv.FormatInt(c.rec.EntityID, 10),
				})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Value < out[j].Value })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) PrefixEntityKeys(ctx context.Context, prefix string, limit int) ([]int64, error) {
	m.called("PrefixEntityKeys")
	matches, _ := m.PrefixSearch(ctx, prefix, len(m.compounds)*10)
	seen := map[int64]bool{}
	keys := []int64{}
	for _, s := range matches {
		k, _ := strconv.ParseInt(s.EntityID, 10, 64)
		if seen[k] {
			continue
		}
		seen[k] = true
		keys = append(keys, k)
		if len(keys) == limit {
			break
		}
	}
	return keys, nil
}

func (m *memStore) LoadBatch(_ context.Context, q compound.BatchQuery) ([]compound.CompoundRecord, error) {
	m.called("LoadBatch")
	want := map[int64]bool{}
	for _, k := range q.EntityKeys {
		want[k] = true
	}
	out := []compound.CompoundRecord{}
	for _, c := range m.compounds {
		match := want[c.rec.EntityID]
		if !match && q.FormulaFragment != "" && c.rec.Formula != nil {
			f := *c.rec.Formula
			match = strings.HasPrefix(f, q.FormulaFragment) || strings.HasSuffix(f, q.FormulaFragment)
		}
		if match && q.Filters.Matches(&c.rec) {
			out = append(out, cloneRecord(c.rec))
		}
	}
	sortRecords(out)
	return page(out, q.Limit, q.Offset), nil
}

func (m *memStore) LoadOne(_ context.Context, entityKey int64) (*compound.CompoundRecord, error) {
	m.called("LoadOne")
	for _, c := range m.compounds {
		if c.rec.EntityID == entityKey {
			r := cloneRecord(c.rec)
			return &r, nil
		}
	}
	return nil, nil
}

func (m *memStore) LoadByCanonicalID(_ context.Context, canonicalID int64) (*compound.CompoundRecord, error) {
	m.called("LoadByCanonicalID")
	for _, c := range m.compounds {
		if c.rec.CanonicalID == canonicalID {
			r := cloneRecord(c.rec)
			return &r, nil
		}
	}
	return nil, nil
}

func (m *memStore) LoadIdentifiers(_ context.Context, entityKeys []int64) (map[int64][]compound.IdentifierInfo, error) {
	m.called("LoadIdentifiers")
	out := make(map[int64][]compound.IdentifierInfo, len(entityKeys))
	for _, k := range entityKeys {
		for _, c := range m.compounds {
			if c.rec.EntityID == k {
				out[k] = append([]compound.IdentifierInfo{}, c.rec.Identifiers...)
			}
		}
	}
	return out, nil
}

func (m *memStore) LoadPublications(_ context.Context, entityKey int64, _ []string) ([]string, error) {
	m.called("LoadPublications")
	out := []string{}
	for _, c := range m.compounds {
		if c.rec.EntityID == entityKey {
			out = append(out, c.refs...)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *memStore) IsValid(ctx context.Context, pattern string) (bool, error) {
	m.called("IsValid")
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if m.validityErr != nil {
		return false, m.validityErr
	}
	return m.valid[pattern], nil
}

func (m *memStore) Substructure(ctx context.Context, pattern string, filters *compound.SearchFilters, limit, offset int) ([]compound.CompoundRecord, error) {
	m.called("Substructure")
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.substructureErr != nil {
		return nil, m.substructureErr
	}
	out := []compound.CompoundRecord{}
	for _, c := range m.compounds {
		if strings.Contains(c.smiles, pattern) && filters.Matches(&c.rec) {
			out = append(out, cloneRecord(c.rec))
		}
	}
	sortRecords(out)
	return page(out, limit, offset), nil
}

func (m *memStore) ScreenSimilar(ctx context.Context, pattern string, _ float64, _ *compound.SearchFilters, maxCandidates int) (compound.Fingerprint, []compound.Candidate, error) {
	m.called("ScreenSimilar")
	if err := ctx.Err(); err != nil {
		return compound.Fingerprint{}, nil, err
	}
	if m.screenErr != nil {
		return compound.Fingerprint{}, nil, m.screenErr
	}
	query := compound.NewFingerprint(m.queryFPs[pattern])
	type scored struct {
		cand  compound.Candidate
		score float64
	}
	var hits []scored
	for _, c := range m.compounds {
		rec := c.rec
		rec.Identifiers = nil
		fp := compound.NewFingerprint(c.fp)
		score, _ := compound.Tanimoto(query, fp)
		hits = append(hits, scored{cand: compound.Candidate{Record: rec, Fingerprint: fp}, score: score})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].cand.Record.CanonicalID < hits[j].cand.Record.CanonicalID
	})
	cands := []compound.Candidate{}
	for _, h := range hits {
		if len(cands) == maxCandidates {
			break
		}
		cands = append(cands, h.cand)
	}
	return query, cands, nil
}

func ident(typeKey int64, value string) compound.IdentifierInfo {
	return compound.IdentifierInfo{TypeKey: typeKey, Value: value}
}

func entry(entityID, canonicalID int64, smiles, formula string, mw, logp float64, hbd, hba int64, fp []byte, ids ...compound.IdentifierInfo) memCompound {
	f := formula
	return memCompound{
		rec: compound.CompoundRecord{
			EntityID:        entityID,
			CanonicalID:     canonicalID,
			CanonicalSmiles: &smiles,
			Formula:         &f,
			MolecularWeight: f64(mw),
			LogP:            f64(logp),
			HBD:             i64(hbd),
			HBA:             i64(hba),
			Identifiers:     ids,
		},
		smiles: smiles,
		fp:     fp,
	}
}

// newDataset returns a small fixture: a handful of named compounds, two
// Lipinski probes and 25 "Ethyl ester" compounds with tied weights for
// pagination.
func newDataset() *memStore {
	aspirin := entry(1, 101, "CC(=O)OC1=CC=CC=C1C(=O)O", "C9H8O4", 180.16, 1.19, 1, 4, []byte{0xF0, 0x0F},
		ident(typeCommonName, "Acetylsalicylic acid"), ident(typeSynonym, "Aspirin"))
	aspirin.refs = []string{"PMID:11111", "22222", "not-a-pmid"}

	compounds := []memCompound{
		aspirin,
		entry(2, 102, "CCO", "C2H6O", 46.07, -0.31, 1, 1, []byte{0xFF, 0x0F},
			ident(typeCommonName, "Ethanol"), ident(typeSynonym, "Ethyl alcohol")),
		entry(3, 103, "CCCO", "C3H8O", 60.1, 0.25, 1, 1, []byte{0xFF, 0x07},
			ident(typeCommonName, "Propanol")),
		entry(4, 104, "CCOCC", "C4H10O", 74.12, 0.89, 0, 1, []byte{0x0F, 0x0F},
			ident(typeCommonName, "Ethoxyethane"), ident(typeUnknown, "Ether")),
		entry(5, 105, "CN1C=NC2=C1C(=O)N(C(=O)N2C)C", "C8H10N4O2", 194.19, -0.07, 0, 6, nil,
			ident(typeCommonName, "Caffeine")),
		entry(6, 106, "CC[C@H](C)[C@@H]1NC(=O)", "C62H111N11O12", 1202.6, 7.0, 5, 12, []byte{0x01, 0x00},
			ident(typeCommonName, "Cyclosporin A")),
		entry(7, 107, "C1CCCCC1N", "C20H30N2O3", 450, 3, 2, 5, nil, ident(typeCommonName, "Probe 450")),
		entry(8, 108, "C1CCCCC1NN", "C30H40N2O3", 600, 3, 2, 5, nil, ident(typeCommonName, "Probe 600")),
	}
	for i := 0; i < 25; i++ {
		compounds = append(compounds, entry(int64(200+i), int64(1000+i), "CCCCC", "C5H12",
			72.15+float64(i%5), 2.0, 0, 0, nil, ident(typeCommonName, fmt.Sprintf("Ethyl ester %02d", i))))
	}

	return &memStore{
		compounds: compounds,
		valid:     map[string]bool{"CCO": true, "CCCO": true, "C3H8O": true},
		queryFPs:  map[string][]byte{"CCO": {0xFF, 0x0F}, "CCCO": {0xFF, 0x07}},
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Mocks
// ─────────────────────────────────────────────────────────────────────────────

type MockIdentifierIndex struct {
	mock.Mock
}

func (m *MockIdentifierIndex) PrefixSearch(ctx context.Context, prefix string, limit int) ([]compound.Suggestion, error) {
	args := m.Called(ctx, prefix, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]compound.Suggestion), args.Error(1)
}

func (m *MockIdentifierIndex) PrefixEntityKeys(ctx context.Context, prefix string, limit int) ([]int64, error) {
	args := m.Called(ctx, prefix, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

type MockDetailLoader struct {
	mock.Mock
}

func (m *MockDetailLoader) LoadBatch(ctx context.Context, q compound.BatchQuery) ([]compound.CompoundRecord, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]compound.CompoundRecord), args.Error(1)
}

func (m *MockDetailLoader) LoadOne(ctx context.Context, entityKey int64) (*compound.CompoundRecord, error) {
	args := m.Called(ctx, entityKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*compound.CompoundRecord), args.Error(1)
}

func (m *MockDetailLoader) LoadByCanonicalID(ctx context.Context, canonicalID int64) (*compound.CompoundRecord, error) {
	args := m.Called(ctx, canonicalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*compound.CompoundRecord), args.Error(1)
}

func (m *MockDetailLoader) LoadIdentifiers(ctx context.Context, entityKeys []int64) (map[int64][]compound.IdentifierInfo, error) {
	args := m.Called(ctx, entityKeys)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[int64][]compound.IdentifierInfo), args.Error(1)
}

func (m *MockDetailLoader) LoadPublications(ctx context.Context, entityKey int64, referenceTypes []string) ([]string, error) {
	args := m.Called(ctx, entityKey, referenceTypes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type MockSummaryFetcher struct {
	mock.Mock
}

func (m *MockSummaryFetcher) FetchSummaries(ctx context.Context, pmids []string) ([]compound.Publication, error) {
	args := m.Called(ctx, pmids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]compound.Publication), args.Error(1)
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

type fixture struct {
	svc       Service
	store     *memStore
	vocab     *stubVocabulary
	collector prometheus.MetricsCollector
}

func vocabularyCaches(store vocabulary.Store) (*vocabulary.TypeCache, *vocabulary.CvCache) {
	m := vocabulary.DefaultMarkers()
	return vocabulary.NewTypeCache(store, m, logging.NewNopLogger()),
		vocabulary.NewCvCache(store, m, logging.NewNopLogger())
}

func newTestMetrics(t *testing.T) (prometheus.MetricsCollector, *prometheus.SearchMetrics) {
	t.Helper()
	c, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{Namespace: "search_test"}, logging.NewNopLogger())
	require.NoError(t, err)
	return c, prometheus.NewSearchMetrics(c)
}

func observedLogger() (logging.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return logging.NewLoggerFromCore(core), logs
}

func scrape(t *testing.T, c prometheus.MetricsCollector) string {
	t.Helper()
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	return rec.Body.String()
}

// newFixture wires the service to a fresh in-memory dataset.
func newFixture(t *testing.T, mutate ...func(*Deps)) *fixture {
	t.Helper()
	return newFixtureWithOptions(t, DefaultOptions(), mutate...)
}

func newFixtureWithOptions(t *testing.T, opts Options, mutate ...func(*Deps)) *fixture {
	t.Helper()
	store := newDataset()
	vocab := &stubVocabulary{}
	types, terms := vocabularyCaches(vocab)
	collector, metrics := newTestMetrics(t)

	deps := Deps{
		Identifiers: store,
		Structures:  store,
		Details:     store,
		Types:       types,
		Terms:       terms,
		Metrics:     metrics,
		Logger:      logging.NewNopLogger(),
	}
	for _, fn := range mutate {
		fn(&deps)
	}
	svc, err := NewService(deps, opts)
	require.NoError(t, err)
	return &fixture{svc: svc, store: store, vocab: vocab, collector: collector}
}

func recordIDs(rows []compound.CompoundRecord) []int64 {
	out := make([]int64, len(rows))
	for i, r := range rows {
		out[i] = r.CanonicalID
	}
	return out
}

func resultIDs(rows []compound.SimilarityResult) []int64 {
	out := make([]int64, len(rows))
	for i, r := range rows {
		out[i] = r.CanonicalID
	}
	return out
}

package vocabulary

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/metabo-search/internal/infrastructure/monitoring/logging"
)

// MockStore is a testify mock of Store.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) ResolveMarkers(ctx context.Context, accessions []string) (map[string]int64, error) {
	args := m.Called(ctx, accessions)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int64), args.Error(1)
}

func (m *MockStore) LoadTermAttributes(ctx context.Context, termRoleKey int64, attributeKeys []int64) ([]TermAttribute, error) {
	args := m.Called(ctx, termRoleKey, attributeKeys)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]TermAttribute), args.Error(1)
}

const (
	roleKey = int64(1)
	nameKey = int64(2)
	accKey  = int64(3)
	synKey  = int64(4)
)

func allMarkers() map[string]int64 {
	m := DefaultMarkers()
	return map[string]int64{m.TermRole: roleKey, m.Name: nameKey, m.Accession: accKey, m.Synonym: synKey}
}

func sampleRows() []TermAttribute {
	return []TermAttribute{
		// 100: complete term with synonyms
		{100, nameKey, "PubChem CID"},
		{100, accKey, "OM:1001"},
		{100, synKey, "CID"},
		{100, synKey, "PubChem compound"},
		// 101: name only
		{101, nameKey, "Registry name"},
		// 102: accession only
		{102, accKey, "OM:1002"},
		// 103: complete, sorts first by name
		{103, nameKey, "ChEBI"},
		{103, accKey, "OM:1003"},
	}
}

func newReadyStore() *MockStore {
	s := &MockStore{}
	s.On("ResolveMarkers", mock.Anything, DefaultMarkers().List()).Return(allMarkers(), nil)
	s.On("LoadTermAttributes", mock.Anything, roleKey, []int64{nameKey, accKey, synKey}).Return(sampleRows(), nil)
	return s
}

func TestMarkers_WithOverrides(t *testing.T) {
	m := DefaultMarkers().WithOverrides(Markers{Name: "X:1"})
	assert.Equal(t, "X:1", m.Name)
	assert.Equal(t, DefaultMarkers().Accession, m.Accession)
	assert.Equal(t, []string{m.TermRole, "X:1", m.Accession, m.Synonym}, m.List())
}

func TestTypeCache_ResolveAndUnknown(t *testing.T) {
	store := newReadyStore()
	c := NewTypeCache(store, DefaultMarkers(), logging.NewNopLogger())

	assert.Equal(t, UnknownType, c.Resolve(100), "uninitialized cache knows nothing")
	require.NoError(t, c.Initialize(context.Background()))

	assert.True(t, c.Initialized())
	assert.Equal(t, "PubChem CID", c.Resolve(100))
	assert.Equal(t, "Registry name", c.Resolve(101))
	assert.Equal(t, UnknownType, c.Resolve(102), "entries without a name are skipped")
	assert.Equal(t, UnknownType, c.Resolve(999))

	e, ok := c.Lookup(100)
	require.True(t, ok)
	assert.Equal(t, "OM:1001", e.Accession)
	e, ok = c.Lookup(101)
	require.True(t, ok)
	assert.Empty(t, e.Accession)
	assert.Equal(t, 3, c.Len())
}

func TestTypeCache_InitializeIsIdempotent(t *testing.T) {
	store := newReadyStore()
	c := NewTypeCache(store, DefaultMarkers(), nil)

	require.NoError(t, c.Initialize(context.Background()))
	require.NoError(t, c.Initialize(context.Background()))

	store.AssertNumberOfCalls(t, "ResolveMarkers", 1)
	store.AssertNumberOfCalls(t, "LoadTermAttributes", 1)
}

func TestTypeCache_MissingTermRoleDegrades(t *testing.T) {
	store := &MockStore{}
	store.On("ResolveMarkers", mock.Anything, mock.Anything).Return(map[string]int64{}, nil)

	c := NewTypeCache(store, DefaultMarkers(), nil)
	require.NoError(t, c.Initialize(context.Background()))
	require.NoError(t, c.Initialize(context.Background()))

	assert.True(t, c.Initialized())
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, UnknownType, c.Resolve(100))
	store.AssertNumberOfCalls(t, "ResolveMarkers", 1)
	store.AssertNotCalled(t, "LoadTermAttributes", mock.Anything, mock.Anything, mock.Anything)
}

func TestTypeCache_TransientFailureRetries(t *testing.T) {
	store := &MockStore{}
	store.On("ResolveMarkers", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused")).Once()
	store.On("ResolveMarkers", mock.Anything, mock.Anything).Return(allMarkers(), nil).Once()
	store.On("LoadTermAttributes", mock.Anything, roleKey, mock.Anything).Return(sampleRows(), nil).Once()

	c := NewTypeCache(store, DefaultMarkers(), nil)
	err := c.Initialize(context.Background())
	require.Error(t, err)
	assert.False(t, c.Initialized())

	require.NoError(t, c.Initialize(context.Background()))
	assert.Equal(t, "ChEBI", c.Resolve(103))
	store.AssertExpectations(t)
}

func TestTypeCache_CancelledContext(t *testing.T) {
	store := &MockStore{}
	c := NewTypeCache(store, DefaultMarkers(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.Initialize(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, c.Initialized())
	store.AssertNotCalled(t, "ResolveMarkers", mock.Anything, mock.Anything)
}

func TestCvCache_KeepsOnlyCompleteTerms(t *testing.T) {
	c := NewCvCache(newReadyStore(), DefaultMarkers(), nil)
	require.NoError(t, c.Initialize(context.Background()))

	assert.Equal(t, 2, c.Len())
	_, ok := c.ByAccession("OM:1002")
	assert.False(t, ok, "accession-only terms are incomplete")

	term, ok := c.ByAccession("OM:1001")
	require.True(t, ok)
	assert.Equal(t, int64(100), term.EntityID)
	assert.Equal(t, "PubChem CID", term.Name)
	assert.Equal(t, []string{"CID", "PubChem compound"}, term.Synonyms)

	term, ok = c.ByAccession("OM:1003")
	require.True(t, ok)
	assert.Equal(t, int64(103), term.EntityID)
}

func TestCvCache_SearchTerms(t *testing.T) {
	c := NewCvCache(newReadyStore(), DefaultMarkers(), nil)
	assert.Empty(t, c.SearchTerms("pub", 0))
	require.NoError(t, c.Initialize(context.Background()))

	got := c.SearchTerms("om:10", 0)
	require.Len(t, got, 2)
	assert.Equal(t, "ChEBI", got[0].Name)
	assert.Equal(t, "PubChem CID", got[1].Name)

	got = c.SearchTerms("compound", 0)
	require.Len(t, got, 1)
	assert.Equal(t, int64(100), got[0].EntityID)

	assert.Len(t, c.SearchTerms("om:", 1), 1)
	assert.Empty(t, c.SearchTerms("   ", 0))
}

// countingStore counts bootstrap queries and slows them down so concurrent
// initializers overlap.
type countingStore struct {
	resolves atomic.Int32
}

func (s *countingStore) ResolveMarkers(_ context.Context, _ []string) (map[string]int64, error) {
	s.resolves.Add(1)
	time.Sleep(20 * time.Millisecond)
	return allMarkers(), nil
}

func (s *countingStore) LoadTermAttributes(_ context.Context, _ int64, _ []int64) ([]TermAttribute, error) {
	return sampleRows(), nil
}

func TestCaches_ConcurrentInitializePopulatesOnce(t *testing.T) {
	store := &countingStore{}
	tc := NewTypeCache(store, DefaultMarkers(), nil)
	cv := NewCvCache(store, DefaultMarkers(), nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, tc.Initialize(context.Background()))
			assert.Equal(t, "PubChem CID", tc.Resolve(100))
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, cv.Initialize(context.Background()))
			assert.Equal(t, 2, cv.Len())
		}()
	}
	wg.Wait()

	// One population per cache.
	assert.Equal(t, int32(2), store.resolves.Load())
}

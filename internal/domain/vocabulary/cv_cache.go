package vocabulary

import (
	"context"
	"sort"
	"strings"

	"github.com/turtacn/metabo-search/internal/infrastructure/monitoring/logging"
)

// CvTerm is a complete controlled-vocabulary term.
type CvTerm struct {
	EntityID  int64    `json:"entityId"`
	Name      string   `json:"name"`
	Accession string   `json:"accession"`
	Synonyms  []string `json:"synonyms"`
}

// CvCache indexes every vocabulary term that has both a name and an
// accession.  Incomplete terms are left out.
type CvCache struct {
	store   Store
	markers Markers
	logger  logging.Logger

	init        lazyInit
	terms       map[int64]CvTerm
	byAccession map[string]int64
	sorted      []CvTerm
}

// NewCvCache creates an unpopulated CvCache.
func NewCvCache(store Store, markers Markers, logger logging.Logger) *CvCache {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &CvCache{store: store, markers: markers, logger: logger.Named("cv_cache")}
}

// Initialize populates the cache on first successful call.
func (c *CvCache) Initialize(ctx context.Context) error {
	return c.init.do(ctx, func(ctx context.Context) error {
		raw, err := loadTerms(ctx, c.store, c.markers, c.logger)
		if err != nil {
			return err
		}
		terms := make(map[int64]CvTerm, len(raw))
		byAcc := make(map[string]int64, len(raw))
		sorted := make([]CvTerm, 0, len(raw))
		for id, t := range raw {
			if t.name == "" || t.accession == "" {
				continue
			}
			syn := append([]string{}, t.synonyms...)
			sort.Strings(syn)
			term := CvTerm{EntityID: id, Name: t.name, Accession: t.accession, Synonyms: syn}
			terms[id] = term
			byAcc[t.accession] = id
			sorted = append(sorted, term)
		}
		sort.Slice(sorted, func(i, j int) bool {
			if sorted[i].Name != sorted[j].Name {
				return sorted[i].Name < sorted[j].Name
			}
			return sorted[i].EntityID < sorted[j].EntityID
		})
		c.terms, c.byAccession, c.sorted = terms, byAcc, sorted
		c.logger.Info("controlled vocabulary cache initialized", logging.Int("terms", len(terms)))
		return nil
	})
}

// Initialized reports whether population has completed.
func (c *CvCache) Initialized() bool { return c.init.initialized() }

// ByAccession returns the term carrying accession.
func (c *CvCache) ByAccession(accession string) (CvTerm, bool) {
	if !c.init.initialized() {
		return CvTerm{}, false
	}
	id, ok := c.byAccession[accession]
	if !ok {
		return CvTerm{}, false
	}
	return c.terms[id], true
}

// SearchTerms returns terms whose name, accession or a synonym contains
// query, case-insensitively, ordered by name.  An empty query matches
// nothing.
func (c *CvCache) SearchTerms(query string, limit int) []CvTerm {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" || !c.init.initialized() {
		return []CvTerm{}
	}
	out := make([]CvTerm, 0)
	for _, t := range c.sorted {
		if limit > 0 && len(out) >= limit {
			break
		}
		if termMatches(t, q) {
			out = append(out, t)
		}
	}
	return out
}

func termMatches(t CvTerm, q string) bool {
	if strings.Contains(strings.ToLower(t.Name), q) || strings.Contains(strings.ToLower(t.Accession), q) {
		return true
	}
	for _, s := range t.Synonyms {
		if strings.Contains(strings.ToLower(s), q) {
			return true
		}
	}
	return false
}

// Len returns the number of cached terms.
func (c *CvCache) Len() int {
	if !c.init.initialized() {
		return 0
	}
	return len(c.terms)
}

package search

import (
	"context"
	"strconv"
	"strings"

	"github.com/turtacn/metabo-search/internal/domain/compound"
	"github.com/turtacn/metabo-search/internal/infrastructure/monitoring/logging"
)

// GetPublications returns the bibliographic reference values linked to the
// entity through its evidence.  A malformed key yields an empty list.
func (s *serviceImpl) GetPublications(ctx context.Context, entityKey string) ([]string, error) {
	key, ok := parseEntityKey(entityKey)
	if !ok {
		s.logger.Debug("ignoring malformed entity key", logging.String("entity_key", entityKey))
		return []string{}, nil
	}

	var refs []string
	err := s.cache.GetOrSet(ctx, "pubs:"+strconv.FormatInt(key, 10), &refs, s.opts.PublicationTTL,
		func(ctx context.Context) (interface{}, error) {
			return s.details.LoadPublications(ctx, key, s.opts.ReferenceTypes)
		})
	if err != nil {
		return nil, err
	}
	if refs == nil {
		refs = []string{}
	}
	return refs, nil
}

// GetLiterature pairs the entity's PubMed identifiers with their summaries.
// Summary lookups are best effort: a failure leaves Publications empty.
func (s *serviceImpl) GetLiterature(ctx context.Context, entityKey string) (*compound.Literature, error) {
	refs, err := s.GetPublications(ctx, entityKey)
	if err != nil {
		return nil, err
	}
	lit := &compound.Literature{PubmedIDs: refs, Publications: []compound.Publication{}}

	pmids := pubmedIDs(refs)
	if len(pmids) == 0 || s.summaries == nil {
		return lit, nil
	}
	pubs, err := s.summaries.FetchSummaries(ctx, pmids)
	if err != nil {
		s.logger.Warn("failed to fetch literature summaries",
			logging.String("entity_key", entityKey),
			logging.Int("pmids", len(pmids)),
			logging.Err(err))
		return lit, nil
	}
	lit.Publications = pubs
	return lit, nil
}

// pubmedIDs extracts the numeric PMIDs from reference values, accepting an
// optional "PMID:" prefix.
func pubmedIDs(refs []string) []string {
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		v := strings.TrimSpace(r)
		if len(v) > 5 && strings.EqualFold(v[:5], "pmid:") {
			v = strings.TrimSpace(v[5:])
		}
		if v == "" || strings.TrimLeft(v, "0123456789") != "" {
			continue
		}
		out = append(out, v)
	}
	return out
}

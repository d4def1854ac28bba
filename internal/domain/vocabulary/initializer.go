package vocabulary

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/turtacn/metabo-search/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/metabo-search/pkg/errors"
)

// lazyInit runs a populate function at most once successfully.  Concurrent
// callers block on the same attempt; a failed attempt leaves the gate open
// for the next caller.
type lazyInit struct {
	mu   sync.Mutex
	done atomic.Bool
}

func (l *lazyInit) do(ctx context.Context, populate func(context.Context) error) error {
	if l.done.Load() {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done.Load() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := populate(ctx); err != nil {
		return err
	}
	l.done.Store(true)
	return nil
}

func (l *lazyInit) initialized() bool { return l.done.Load() }

// termAttributes gathers everything known about one vocabulary term.
type termAttributes struct {
	name      string
	accession string
	synonyms  []string
}

// loadTerms resolves the markers and reads every term's attributes.  A
// missing term-role marker yields an empty, non-error result so that the
// caches settle in a degraded state instead of retrying on every call.
func loadTerms(ctx context.Context, store Store, markers Markers, log logging.Logger) (map[int64]*termAttributes, error) {
	resolved, err := store.ResolveMarkers(ctx, markers.List())
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeBootstrapFailed, "failed to resolve vocabulary markers")
	}

	roleKey, ok := resolved[markers.TermRole]
	if !ok {
		log.Warn("vocabulary term role marker not found; caches start empty",
			logging.String("marker", markers.TermRole))
		return map[int64]*termAttributes{}, nil
	}

	nameKey, hasName := resolved[markers.Name]
	accKey, hasAcc := resolved[markers.Accession]
	synKey, hasSyn := resolved[markers.Synonym]

	var attrKeys []int64
	for _, m := range []struct {
		accession string
		key       int64
		ok        bool
	}{
		{markers.Name, nameKey, hasName},
		{markers.Accession, accKey, hasAcc},
		{markers.Synonym, synKey, hasSyn},
	} {
		if !m.ok {
			log.Warn("vocabulary marker not found", logging.String("marker", m.accession))
			continue
		}
		attrKeys = append(attrKeys, m.key)
	}
	if len(attrKeys) == 0 {
		return map[int64]*termAttributes{}, nil
	}

	rows, err := store.LoadTermAttributes(ctx, roleKey, attrKeys)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeBootstrapFailed, "failed to load vocabulary terms")
	}

	terms := make(map[int64]*termAttributes)
	for _, r := range rows {
		t, ok := terms[r.EntityID]
		if !ok {
			t = &termAttributes{}
			terms[r.EntityID] = t
		}
		switch {
		case hasName && r.AttributeKey == nameKey:
			if t.name == "" {
				t.name = r.Value
			}
		case hasAcc && r.AttributeKey == accKey:
			if t.accession == "" {
				t.accession = r.Value
			}
		case hasSyn && r.AttributeKey == synKey:
			t.synonyms = append(t.synonyms, r.Value)
		}
	}
	return terms, nil
}

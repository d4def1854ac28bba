package repositories

import (
	"context"

	"github.com/turtacn/metabo-search/internal/domain/compound"
	"github.com/turtacn/metabo-search/internal/infrastructure/database/postgres"
	"github.com/turtacn/metabo-search/internal/infrastructure/monitoring/logging"
)

type postgresIdentifierRepo struct {
	log      logging.Logger
	executor queryExecutor
}

// NewPostgresIdentifierRepo returns the identifier prefix index backed by
// entity_identifiers.  Only values short enough to populate id_value_small
// are searchable.
func NewPostgresIdentifierRepo(conn *postgres.Connection, log logging.Logger) compound.IdentifierIndex {
	return &postgresIdentifierRepo{log: log, executor: conn.DB()}
}

func (r *postgresIdentifierRepo) PrefixSearch(ctx context.Context, prefix string, limit int) ([]compound.Suggestion, error) {
	out := []compound.Suggestion{}
	if prefix == "" || limit <= 0 {
		return out, nil
	}

	query := `
		SELECT ei.id_value_small, ei.id_type_id, ei.entity_id::text
		FROM entity_identifiers ei
		WHERE ei.id_value_small IS NOT NULL
		  AND lower(ei.id_value_small) LIKE lower($1)
		ORDER BY ei.id_value_small, ei.entity_id
		LIMIT $2`

	rows, err := r.executor.QueryContext(ctx, query, prefixPattern(prefix), limit)
	if err != nil {
		return nil, classifyError(err, "identifier prefix search failed")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			s       compound.Suggestion
			typeKey *int64
		)
		if err := rows.Scan(&s.Value, &typeKey, &s.EntityID); err != nil {
			return nil, classifyError(err, "failed to scan identifier")
		}
		s.Label = s.Value
		if typeKey != nil {
			s.TypeKey = *typeKey
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyError(err, "identifier prefix search failed")
	}

	logging.FromContext(ctx, r.log).Debug("identifier prefix search",
		logging.String("prefix", prefix),
		logging.Int("matches", len(out)))
	return out, nil
}

func (r *postgresIdentifierRepo) PrefixEntityKeys(ctx context.Context, prefix string, limit int) ([]int64, error) {
	out := []int64{}
	if prefix == "" || limit <= 0 {
		return out, nil
	}

	query := `
		SELECT ei.entity_id
		FROM entity_identifiers ei
		WHERE ei.id_value_small IS NOT NULL
		  AND lower(ei.id_value_small) LIKE lower($1)
		GROUP BY ei.entity_id
		ORDER BY min(ei.id_value_small), ei.entity_id
		LIMIT $2`

	rows, err := r.executor.QueryContext(ctx, query, prefixPattern(prefix), limit)
	if err != nil {
		return nil, classifyError(err, "identifier candidate lookup failed")
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, classifyError(err, "failed to scan entity key")
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyError(err, "identifier candidate lookup failed")
	}
	return out, nil
}

package repositories

import (
	"context"

	"github.com/lib/pq"

	"github.com/turtacn/metabo-search/internal/domain/vocabulary"
	"github.com/turtacn/metabo-search/internal/infrastructure/database/postgres"
	"github.com/turtacn/metabo-search/internal/infrastructure/monitoring/logging"
)

type postgresVocabularyRepo struct {
	log      logging.Logger
	executor queryExecutor
}

// NewPostgresVocabularyRepo returns the vocabulary bootstrap store.
func NewPostgresVocabularyRepo(conn *postgres.Connection, log logging.Logger) vocabulary.Store {
	return &postgresVocabularyRepo{log: log, executor: conn.DB()}
}

func (r *postgresVocabularyRepo) ResolveMarkers(ctx context.Context, accessions []string) (map[string]int64, error) {
	out := make(map[string]int64, len(accessions))
	if len(accessions) == 0 {
		return out, nil
	}

	query := `
		SELECT ei.id_value, min(ei.entity_id)
		FROM entity_identifiers ei
		WHERE ei.id_value = ANY($1)
		GROUP BY ei.id_value`

	rows, err := r.executor.QueryContext(ctx, query, pq.Array(accessions))
	if err != nil {
		return nil, classifyError(err, "failed to resolve vocabulary markers")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			accession string
			key       int64
		)
		if err := rows.Scan(&accession, &key); err != nil {
			return nil, classifyError(err, "failed to scan vocabulary marker")
		}
		out[accession] = key
	}
	if err := rows.Err(); err != nil {
		return nil, classifyError(err, "failed to resolve vocabulary markers")
	}
	return out, nil
}

func (r *postgresVocabularyRepo) LoadTermAttributes(ctx context.Context, termRoleKey int64, attributeKeys []int64) ([]vocabulary.TermAttribute, error) {
	out := []vocabulary.TermAttribute{}
	if len(attributeKeys) == 0 {
		return out, nil
	}

	query := `
		SELECT ei.entity_id, ei.id_type_id, ei.id_value
		FROM entity e
		JOIN entity_identifiers ei ON ei.entity_id = e.entity_id
		WHERE e.entity_type_id = $1
		  AND ei.id_type_id = ANY($2)
		  AND ei.id_value IS NOT NULL
		ORDER BY ei.entity_id, ei.id_type_id, ei.id_value`

	rows, err := r.executor.QueryContext(ctx, query, termRoleKey, pq.Array(attributeKeys))
	if err != nil {
		return nil, classifyError(err, "failed to load vocabulary terms")
	}
	defer rows.Close()

	for rows.Next() {
		var a vocabulary.TermAttribute
		if err := rows.Scan(&a.EntityID, &a.AttributeKey, &a.Value); err != nil {
			return nil, classifyError(err, "failed to scan vocabulary term")
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyError(err, "failed to load vocabulary terms")
	}

	logging.FromContext(ctx, r.log).Debug("loaded vocabulary attributes", logging.Int("rows", len(out)))
	return out, nil
}

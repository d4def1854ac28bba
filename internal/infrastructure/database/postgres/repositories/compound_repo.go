package repositories

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"github.com/turtacn/metabo-search/internal/domain/compound"
	"github.com/turtacn/metabo-search/internal/infrastructure/database/postgres"
	"github.com/turtacn/metabo-search/internal/infrastructure/monitoring/logging"
)

type postgresCompoundRepo struct {
	log      logging.Logger
	executor queryExecutor
}

// NewPostgresCompoundRepo returns the detail loader backed by compound,
// entity_compound and entity_identifiers.
func NewPostgresCompoundRepo(conn *postgres.Connection, log logging.Logger) compound.DetailLoader {
	return &postgresCompoundRepo{log: log, executor: conn.DB()}
}

// selectGrouped runs the grouped compound projection with the given
// selection and page.  Every hydration path funnels through here.
func (r *postgresCompoundRepo) selectGrouped(ctx context.Context, selection string, args *argList, filters *compound.SearchFilters, limit, offset int) ([]compound.CompoundRecord, error) {
	conds := append([]string{selection}, filterConditions(filters, args)...)
	query := fmt.Sprintf(`
		SELECT %s,
		%s
		FROM entity_compound ec
		JOIN compound c ON c.id = ec.compound_id
		LEFT JOIN entity_identifiers ei ON ei.entity_id = ec.entity_id
		WHERE %s
		GROUP BY ec.entity_id, c.id
		ORDER BY %s
		%s`, compoundColumns, identifierJSONColumn, whereClause(conds), compoundOrder, pageClause(limit, offset, args))

	rows, err := r.executor.QueryContext(ctx, query, args.args...)
	if err != nil {
		return nil, classifyError(err, "failed to load compounds")
	}
	defer rows.Close()

	out := []compound.CompoundRecord{}
	for rows.Next() {
		rec, err := scanCompoundWithIdentifiers(rows)
		if err != nil {
			return nil, classifyError(err, "failed to scan compound")
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyError(err, "failed to load compounds")
	}
	return out, nil
}

func (r *postgresCompoundRepo) LoadBatch(ctx context.Context, q compound.BatchQuery) ([]compound.CompoundRecord, error) {
	if len(q.EntityKeys) == 0 && q.FormulaFragment == "" {
		return []compound.CompoundRecord{}, nil
	}

	args := &argList{}
	var selection string
	switch {
	case len(q.EntityKeys) > 0 && q.FormulaFragment != "":
		selection = fmt.Sprintf("(ec.entity_id = ANY(%s) OR c.formula ILIKE %s OR c.formula ILIKE %s)",
			args.add(pq.Array(q.EntityKeys)), args.add(prefixPattern(q.FormulaFragment)), args.add(suffixPattern(q.FormulaFragment)))
	case len(q.EntityKeys) > 0:
		selection = fmt.Sprintf("ec.entity_id = ANY(%s)", args.add(pq.Array(q.EntityKeys)))
	default:
		selection = fmt.Sprintf("(c.formula ILIKE %s OR c.formula ILIKE %s)",
			args.add(prefixPattern(q.FormulaFragment)), args.add(suffixPattern(q.FormulaFragment)))
	}

	recs, err := r.selectGrouped(ctx, selection, args, q.Filters, q.Limit, q.Offset)
	if err != nil {
		return nil, err
	}
	logging.FromContext(ctx, r.log).Debug("loaded compound batch",
		logging.Int("keys", len(q.EntityKeys)),
		logging.Bool("formula", q.FormulaFragment != ""),
		logging.Int("rows", len(recs)))
	return recs, nil
}

func (r *postgresCompoundRepo) LoadOne(ctx context.Context, entityKey int64) (*compound.CompoundRecord, error) {
	args := &argList{}
	selection := "ec.entity_id = " + args.add(entityKey)
	recs, err := r.selectGrouped(ctx, selection, args, nil, 1, 0)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return &recs[0], nil
}

func (r *postgresCompoundRepo) LoadByCanonicalID(ctx context.Context, canonicalID int64) (*compound.CompoundRecord, error) {
	args := &argList{}
	selection := "c.id = " + args.add(canonicalID)
	recs, err := r.selectGrouped(ctx, selection, args, nil, 1, 0)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return &recs[0], nil
}

func (r *postgresCompoundRepo) LoadIdentifiers(ctx context.Context, entityKeys []int64) (map[int64][]compound.IdentifierInfo, error) {
	out := make(map[int64][]compound.IdentifierInfo, len(entityKeys))
	if len(entityKeys) == 0 {
		return out, nil
	}

	query := `
		SELECT ei.entity_id, ei.id_type_id, ei.id_value
		FROM entity_identifiers ei
		WHERE ei.entity_id = ANY($1) AND ei.id_value IS NOT NULL
		ORDER BY ei.entity_id, ei.id_value`

	rows, err := r.executor.QueryContext(ctx, query, pq.Array(entityKeys))
	if err != nil {
		return nil, classifyError(err, "failed to load identifiers")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			entityID int64
			typeKey  *int64
			info     compound.IdentifierInfo
		)
		if err := rows.Scan(&entityID, &typeKey, &info.Value); err != nil {
			return nil, classifyError(err, "failed to scan identifier")
		}
		if typeKey != nil {
			info.TypeKey = *typeKey
		}
		out[entityID] = append(out[entityID], info)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyError(err, "failed to load identifiers")
	}
	return out, nil
}

func (r *postgresCompoundRepo) LoadPublications(ctx context.Context, entityKey int64, referenceTypes []string) ([]string, error) {
	out := []string{}
	if len(referenceTypes) == 0 {
		return out, nil
	}

	query := `
		SELECT DISTINCT ref.value
		FROM entity_to_evidence ete
		JOIN evidence_reference er ON er.entity_evidence_id = ete.entity_evidence_id
		JOIN "references" ref ON ref.id = er.reference_id
		WHERE ete.entity_id = $1
		  AND ref.type = ANY($2)
		  AND ref.value IS NOT NULL
		ORDER BY ref.value`

	rows, err := r.executor.QueryContext(ctx, query, entityKey, pq.Array(referenceTypes))
	if err != nil {
		return nil, classifyError(err, "failed to load publications")
	}
	defer rows.Close()

	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, classifyError(err, "failed to scan publication")
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyError(err, "failed to load publications")
	}
	return out, nil
}

package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/turtacn/metabo-search/internal/domain/compound"
	"github.com/turtacn/metabo-search/internal/infrastructure/database/postgres"
	"github.com/turtacn/metabo-search/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/metabo-search/pkg/errors"
)

type postgresStructureRepo struct {
	conn     *postgres.Connection
	log      logging.Logger
	executor queryExecutor
}

// NewPostgresStructureRepo returns the structure index backed by the RDKit
// cartridge: mol columns for substructure matching and bfp Morgan
// fingerprints for similarity screening.
func NewPostgresStructureRepo(conn *postgres.Connection, log logging.Logger) compound.StructureIndex {
	return &postgresStructureRepo{conn: conn, log: log, executor: conn.DB()}
}

func (r *postgresStructureRepo) IsValid(ctx context.Context, pattern string) (bool, error) {
	var valid sql.NullBool
	err := r.executor.QueryRowContext(ctx,
		`SELECT mol_from_smiles($1::cstring) IS NOT NULL`, pattern).Scan(&valid)
	if err != nil {
		return false, classifyError(err, "structure validity check failed")
	}
	return valid.Valid && valid.Bool, nil
}

func (r *postgresStructureRepo) Substructure(ctx context.Context, pattern string, filters *compound.SearchFilters, limit, offset int) ([]compound.CompoundRecord, error) {
	args := &argList{}
	conds := []string{
		"c.mol IS NOT NULL",
		fmt.Sprintf("c.mol @> mol_from_smiles(%s::cstring)", args.add(pattern)),
	}
	conds = append(conds, filterConditions(filters, args)...)

	query := fmt.Sprintf(`
		SELECT %s,
		%s
		FROM compound c
		JOIN entity_compound ec ON ec.compound_id = c.id
		WHERE %s
		ORDER BY %s
		%s`, compoundColumns, identifierSubqueryColumn, whereClause(conds), compoundOrder, pageClause(limit, offset, args))

	rows, err := r.executor.QueryContext(ctx, query, args.args...)
	if err != nil {
		return nil, classifyError(err, "substructure search failed")
	}
	defer rows.Close()

	out := []compound.CompoundRecord{}
	for rows.Next() {
		rec, err := scanCompoundWithIdentifiers(rows)
		if err != nil {
			return nil, classifyError(err, "failed to scan substructure hit")
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyError(err, "substructure search failed")
	}
	return out, nil
}

// ScreenSimilar runs inside a read-only transaction so the Tanimoto
// threshold setting stays local to this search.
func (r *postgresStructureRepo) ScreenSimilar(ctx context.Context, pattern string, threshold float64, filters *compound.SearchFilters, maxCandidates int) (compound.Fingerprint, []compound.Candidate, error) {
	tx, err := r.conn.DB().BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return compound.Fingerprint{}, nil, classifyError(err, "failed to begin similarity transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `SELECT set_config('rdkit.tanimoto_threshold', $1, true)`,
		strconv.FormatFloat(threshold, 'f', -1, 64)); err != nil {
		return compound.Fingerprint{}, nil, classifyError(err, "failed to set similarity threshold")
	}

	var queryFP []byte
	err = tx.QueryRowContext(ctx,
		`SELECT bfp_to_binary_text(morganbv_fp(mol_from_smiles($1::cstring)))`, pattern).Scan(&queryFP)
	if err != nil {
		return compound.Fingerprint{}, nil, classifyError(err, "failed to compute query fingerprint")
	}
	if len(queryFP) == 0 {
		return compound.Fingerprint{}, nil, errors.New(errors.ErrCodeFingerprintUnavailable, "query structure has no fingerprint")
	}

	args := &argList{}
	queryMol := fmt.Sprintf("morganbv_fp(mol_from_smiles(%s::cstring))", args.add(pattern))
	conds := []string{
		"c.morgan_fp IS NOT NULL",
		"c.morgan_fp % " + queryMol,
	}
	conds = append(conds, filterConditions(filters, args)...)

	// Best scores first, so the cap only ever drops the weakest candidates.
	query := fmt.Sprintf(`
		SELECT %s,
		bfp_to_binary_text(c.morgan_fp)
		FROM compound c
		JOIN entity_compound ec ON ec.compound_id = c.id
		WHERE %s
		ORDER BY tanimoto_sml(c.morgan_fp, %s) DESC, c.id, ec.entity_id
		%s`, compoundColumns, whereClause(conds), queryMol, pageClause(maxCandidates, 0, args))

	rows, err := tx.QueryContext(ctx, query, args.args...)
	if err != nil {
		return compound.Fingerprint{}, nil, classifyError(err, "similarity screening failed")
	}
	defer rows.Close()

	var candidates []compound.Candidate
	for rows.Next() {
		var fp []byte
		rec, err := scanCompound(rows, &fp)
		if err != nil {
			return compound.Fingerprint{}, nil, classifyError(err, "failed to scan similarity candidate")
		}
		candidates = append(candidates, compound.Candidate{Record: rec, Fingerprint: compound.NewFingerprint(fp)})
	}
	if err := rows.Err(); err != nil {
		return compound.Fingerprint{}, nil, classifyError(err, "similarity screening failed")
	}
	if err := rows.Close(); err != nil {
		return compound.Fingerprint{}, nil, classifyError(err, "similarity screening failed")
	}
	if err := tx.Commit(); err != nil {
		return compound.Fingerprint{}, nil, classifyError(err, "failed to commit similarity transaction")
	}

	if len(candidates) >= maxCandidates {
		logging.FromContext(ctx, r.log).Warn("similarity screen hit candidate cap",
			logging.Int("cap", maxCandidates),
			logging.Float64("threshold", threshold))
	}
	return compound.NewFingerprint(queryFP), candidates, nil
}

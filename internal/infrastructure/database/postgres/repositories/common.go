package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/turtacn/metabo-search/internal/domain/compound"
	"github.com/turtacn/metabo-search/pkg/errors"
)

// queryExecutor abstracts sql.DB and sql.Tx
type queryExecutor interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// scanner abstracts sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

// SQLSTATE codes that change how a failure is reported.
const (
	sqlStateUndefinedFunction = "42883"
	sqlStateUndefinedObject   = "42704"
	sqlStateQueryCanceled     = "57014"
	sqlStateInvalidParameter  = "22023"
)

// classifyError wraps a driver error with the error code callers branch on.
// Missing RDKit functions surface as ServiceUnavailable, cancellations as
// Timeout, everything else as DatabaseError.
func classifyError(err error, message string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return errors.Wrap(err, errors.ErrCodeTimeout, message)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlStateUndefinedFunction, sqlStateUndefinedObject:
			return errors.Wrap(err, errors.ErrCodeServiceUnavailable, message+": structure engine unavailable")
		case sqlStateQueryCanceled:
			return errors.Wrap(err, errors.ErrCodeTimeout, message)
		case sqlStateInvalidParameter:
			return errors.Wrap(err, errors.ErrCodeInvalidPattern, message)
		}
	}
	return errors.Wrap(err, errors.ErrCodeDatabaseError, message)
}

// likeEscaper escapes LIKE metacharacters so user input matches literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func prefixPattern(s string) string { return likeEscaper.Replace(s) + "%" }

func suffixPattern(s string) string { return "%" + likeEscaper.Replace(s) }

// ─────────────────────────────────────────────────────────────────────────────
// Compound rows
// ─────────────────────────────────────────────────────────────────────────────

// compoundColumns is the projection shared by every compound query.  It
// expects the aliases ec (entity_compound) and c (compound).
const compoundColumns = `ec.entity_id, c.id, c.structure_key, c.canonical_smiles, c.inchi, c.formula,
		c.molecular_weight, c.exact_mass, c.logp, c.tpsa, c.hbd, c.hba,
		c.rotatable_bonds, c.aromatic_rings, c.heavy_atoms,
		c.is_drug, c.is_lipid, c.is_metabolite`

// identifierJSONColumn aggregates the joined ei rows of a grouped query.
const identifierJSONColumn = `COALESCE(
			json_agg(json_build_object('t', ei.id_type_id, 'v', ei.id_value) ORDER BY ei.id_value)
				FILTER (WHERE ei.id_value IS NOT NULL),
			'[]'::json)`

// identifierSubqueryColumn fetches identifiers per row with a correlated
// subquery, for queries that cannot be grouped.
const identifierSubqueryColumn = `COALESCE((
			SELECT json_agg(json_build_object('t', ei.id_type_id, 'v', ei.id_value) ORDER BY ei.id_value)
			FROM entity_identifiers ei
			WHERE ei.entity_id = ec.entity_id AND ei.id_value IS NOT NULL
		), '[]'::json)`

// compoundOrder is the canonical result ordering.
const compoundOrder = `c.molecular_weight ASC NULLS LAST, c.id ASC, ec.entity_id ASC`

type identifierJSON struct {
	TypeKey *int64 `json:"t"`
	Value   string `json:"v"`
}

func decodeIdentifiers(raw []byte) ([]compound.IdentifierInfo, error) {
	out := []compound.IdentifierInfo{}
	if len(raw) == 0 {
		return out, nil
	}
	var items []identifierJSON
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode identifiers")
	}
	for _, it := range items {
		info := compound.IdentifierInfo{Value: it.Value}
		if it.TypeKey != nil {
			info.TypeKey = *it.TypeKey
		}
		out = append(out, info)
	}
	return out, nil
}

// scanCompound reads compoundColumns followed by extra destinations.
func scanCompound(s scanner, extra ...interface{}) (compound.CompoundRecord, error) {
	var (
		r                                    compound.CompoundRecord
		structureKey, smiles, inchi, formula sql.NullString
		mw, exactMass, logp, tpsa            sql.NullFloat64
		hbd, hba, rotatable, aromatic, heavy sql.NullInt64
		isDrug, isLipid, isMetabolite        sql.NullBool
	)
	dest := []interface{}{
		&r.EntityID, &r.CanonicalID, &structureKey, &smiles, &inchi, &formula,
		&mw, &exactMass, &logp, &tpsa, &hbd, &hba,
		&rotatable, &aromatic, &heavy,
		&isDrug, &isLipid, &isMetabolite,
	}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		return r, err
	}

	r.StructureKey = nullString(structureKey)
	r.CanonicalSmiles = nullString(smiles)
	r.InChI = nullString(inchi)
	r.Formula = nullString(formula)
	r.MolecularWeight = nullFloat(mw)
	r.ExactMass = nullFloat(exactMass)
	r.LogP = nullFloat(logp)
	r.TPSA = nullFloat(tpsa)
	r.HBD = nullInt(hbd)
	r.HBA = nullInt(hba)
	r.RotatableBonds = nullInt(rotatable)
	r.AromaticRings = nullInt(aromatic)
	r.HeavyAtoms = nullInt(heavy)
	r.IsDrug = nullBool(isDrug)
	r.IsLipid = nullBool(isLipid)
	r.IsMetabolite = nullBool(isMetabolite)
	r.Identifiers = []compound.IdentifierInfo{}
	return r, nil
}

// scanCompoundWithIdentifiers reads compoundColumns plus one identifier
// JSON column.
func scanCompoundWithIdentifiers(s scanner) (compound.CompoundRecord, error) {
	var raw []byte
	r, err := scanCompound(s, &raw)
	if err != nil {
		return r, err
	}
	ids, err := decodeIdentifiers(raw)
	if err != nil {
		return r, err
	}
	r.Identifiers = ids
	return r, nil
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	i := v.Int64
	return &i
}

func nullBool(v sql.NullBool) *bool {
	if !v.Valid {
		return nil
	}
	b := v.Bool
	return &b
}

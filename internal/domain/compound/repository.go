package compound

import "context"

// NoLimit disables the LIMIT clause of a batch load.
const NoLimit = -1

// BatchQuery selects compounds linked to any of EntityKeys, or, when
// FormulaFragment is set, whose formula starts or ends with it.  Results are
// ordered by molecular weight ascending (missing weights last) with the
// canonical id as tie-break, then paginated.
type BatchQuery struct {
	EntityKeys      []int64
	FormulaFragment string
	Filters         *SearchFilters
	Limit           int
	Offset          int
}

// IdentifierIndex answers prefix lookups over entity identifiers.
type IdentifierIndex interface {
	// PrefixSearch returns up to limit identifiers whose value starts with
	// prefix (case-insensitive), ordered by value.
	PrefixSearch(ctx context.Context, prefix string, limit int) ([]Suggestion, error)

	// PrefixEntityKeys returns up to limit distinct entity keys that own an
	// identifier starting with prefix.
	PrefixEntityKeys(ctx context.Context, prefix string, limit int) ([]int64, error)
}

// StructureIndex is the chemistry-aware side of the store.
type StructureIndex interface {
	// IsValid reports whether the engine can parse pattern as a structure.
	IsValid(ctx context.Context, pattern string) (bool, error)

	// Substructure returns compounds containing pattern, hydrated with
	// identifiers, ordered like BatchQuery results.
	Substructure(ctx context.Context, pattern string, filters *SearchFilters, limit, offset int) ([]CompoundRecord, error)

	// ScreenSimilar computes the query fingerprint and returns at most
	// maxCandidates compounds the engine's index places at or above
	// threshold, best engine score first.  The screen may over-report;
	// callers rescore exactly.
	ScreenSimilar(ctx context.Context, pattern string, threshold float64, filters *SearchFilters, maxCandidates int) (Fingerprint, []Candidate, error)
}

// DetailLoader hydrates compound records.
type DetailLoader interface {
	LoadBatch(ctx context.Context, q BatchQuery) ([]CompoundRecord, error)

	// LoadOne returns nil when the entity has no compound.
	LoadOne(ctx context.Context, entityKey int64) (*CompoundRecord, error)

	// LoadByCanonicalID returns nil when no compound has that id.
	LoadByCanonicalID(ctx context.Context, canonicalID int64) (*CompoundRecord, error)

	// LoadIdentifiers returns the identifiers of each requested entity.
	LoadIdentifiers(ctx context.Context, entityKeys []int64) (map[int64][]IdentifierInfo, error)

	// LoadPublications returns the distinct reference values of the given
	// types linked to the entity through its evidence.
	LoadPublications(ctx context.Context, entityKey int64, referenceTypes []string) ([]string, error)
}

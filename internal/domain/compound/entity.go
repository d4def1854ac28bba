// Package compound defines the search-facing view of compound entities: the
// hydrated record returned by every search strategy, the property filters
// that narrow a search, and the fingerprint arithmetic used to rank
// similarity candidates.
package compound

// ─────────────────────────────────────────────────────────────────────────────
// Identifiers
// ─────────────────────────────────────────────────────────────────────────────

// IdentifierInfo is one external identifier attached to an entity, e.g. a
// PubChem CID or a registry name.  TypeKey is the raw vocabulary key stored
// alongside the value; Type and TypeAccession are filled in from the type
// cache before a record leaves the search service.
type IdentifierInfo struct {
	TypeKey       int64  `json:"-"`
	Type          string `json:"type"`
	TypeAccession string `json:"typeAccession,omitempty"`
	Value         string `json:"value"`
}

// ─────────────────────────────────────────────────────────────────────────────
// CompoundRecord
// ─────────────────────────────────────────────────────────────────────────────

// CompoundRecord is a fully hydrated search hit.  Physicochemical properties
// are nullable; a nil pointer means the value was never computed.
type CompoundRecord struct {
	EntityID    int64 `json:"entityId"`
	CanonicalID int64 `json:"canonicalId"`

	StructureKey    *string `json:"structureKey,omitempty"`
	CanonicalSmiles *string `json:"canonicalSmiles,omitempty"`
	InChI           *string `json:"inchi,omitempty"`
	Formula         *string `json:"formula,omitempty"`

	MolecularWeight *float64 `json:"molecularWeight,omitempty"`
	ExactMass       *float64 `json:"exactMass,omitempty"`
	LogP            *float64 `json:"logp,omitempty"`
	TPSA            *float64 `json:"tpsa,omitempty"`
	HBD             *int64   `json:"hbd,omitempty"`
	HBA             *int64   `json:"hba,omitempty"`
	RotatableBonds  *int64   `json:"rotatableBonds,omitempty"`
	AromaticRings   *int64   `json:"aromaticRings,omitempty"`
	HeavyAtoms      *int64   `json:"heavyAtoms,omitempty"`

	IsDrug       *bool `json:"isDrug,omitempty"`
	IsLipid      *bool `json:"isLipid,omitempty"`
	IsMetabolite *bool `json:"isMetabolite,omitempty"`

	Identifiers []IdentifierInfo `json:"identifiers"`
}

// PrimaryName returns the first identifier value, or the structure key when
// the record has no identifiers.
func (r *CompoundRecord) PrimaryName() string {
	if r == nil {
		return ""
	}
	if len(r.Identifiers) > 0 {
		return r.Identifiers[0].Value
	}
	if r.StructureKey != nil {
		return *r.StructureKey
	}
	return ""
}

// SimilarityResult is a CompoundRecord annotated with its Tanimoto
// similarity to the query structure.
type SimilarityResult struct {
	CompoundRecord
	Similarity float64 `json:"similarity"`
}

// WithZeroSimilarity wraps records produced by a non-similarity strategy so
// they can be returned from a similarity search.
func WithZeroSimilarity(records []CompoundRecord) []SimilarityResult {
	out := make([]SimilarityResult, 0, len(records))
	for _, r := range records {
		out = append(out, SimilarityResult{CompoundRecord: r})
	}
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Autocomplete
// ─────────────────────────────────────────────────────────────────────────────

// Suggestion is one autocomplete entry.  EntityID is kept as text exactly as
// stored; callers that need a numeric key must validate it.
type Suggestion struct {
	Label    string `json:"label"`
	Value    string `json:"value"`
	TypeKey  int64  `json:"-"`
	Type     string `json:"type"`
	EntityID string `json:"entityId"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Literature
// ─────────────────────────────────────────────────────────────────────────────

// Publication is a bibliographic summary for a PubMed identifier.
type Publication struct {
	PMID            string   `json:"pmid"`
	Title           string   `json:"title"`
	Journal         string   `json:"journal,omitempty"`
	PublicationDate string   `json:"publicationDate,omitempty"`
	Authors         []string `json:"authors"`
	DOI             string   `json:"doi,omitempty"`
	URL             string   `json:"url"`
}

// Literature pairs an entity's PubMed identifiers with whatever summaries
// could be fetched for them.
type Literature struct {
	PubmedIDs    []string      `json:"pubmedIds"`
	Publications []Publication `json:"publications"`
}

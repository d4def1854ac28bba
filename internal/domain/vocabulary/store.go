package vocabulary

import "context"

// TermAttribute is one attribute value of a vocabulary term: EntityID is
// the term, AttributeKey the attribute type (name, accession or synonym).
type TermAttribute struct {
	EntityID     int64
	AttributeKey int64
	Value        string
}

// Store is the slice of the entity store the caches read from.
type Store interface {
	// ResolveMarkers maps each accession to the key of the entity carrying
	// it.  Accessions that resolve to nothing are absent from the result.
	ResolveMarkers(ctx context.Context, accessions []string) (map[string]int64, error)

	// LoadTermAttributes returns the attributeKeys values of every entity
	// whose type is termRoleKey.
	LoadTermAttributes(ctx context.Context, termRoleKey int64, attributeKeys []int64) ([]TermAttribute, error)
}

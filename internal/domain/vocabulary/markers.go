// Package vocabulary holds the two process-wide lookup tables built from
// the entity store's controlled vocabulary: the TypeCache, which names
// identifier types, and the CvCache, which indexes complete vocabulary
// terms with their synonyms.  Both are populated once, lazily, from the
// same bootstrap query.
package vocabulary

// Markers are the accessions of the well-known vocabulary entities that
// bootstrap everything else: the attribute types carrying a term's name,
// accession and synonyms, and the entity type that marks an entity as a
// vocabulary term.
type Markers struct {
	Name      string
	Accession string
	Synonym   string
	TermRole  string
}

// DefaultMarkers returns the built-in marker accessions.
func DefaultMarkers() Markers {
	return Markers{
		TermRole:  "OM:0001",
		Name:      "OM:0002",
		Accession: "OM:0003",
		Synonym:   "OM:0004",
	}
}

// WithOverrides returns m with every non-empty field of o applied.
func (m Markers) WithOverrides(o Markers) Markers {
	if o.Name != "" {
		m.Name = o.Name
	}
	if o.Accession != "" {
		m.Accession = o.Accession
	}
	if o.Synonym != "" {
		m.Synonym = o.Synonym
	}
	if o.TermRole != "" {
		m.TermRole = o.TermRole
	}
	return m
}

// List returns the marker accessions in a fixed order.
func (m Markers) List() []string {
	return []string{m.TermRole, m.Name, m.Accession, m.Synonym}
}

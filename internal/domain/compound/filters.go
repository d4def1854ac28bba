package compound

// Rule-of-five thresholds applied by the LipinskiCompliant filter.  All four
// bounds are inclusive.
const (
	LipinskiMaxMolecularWeight = 500.0
	LipinskiMaxLogP            = 5.0
	LipinskiMaxHBD             = 5
	LipinskiMaxHBA             = 10
)

// Field names a filterable compound property.  The values match the column
// names of the compound table.
type Field string

const (
	FieldMolecularWeight Field = "molecular_weight"
	FieldLogP            Field = "logp"
	FieldHBD             Field = "hbd"
	FieldHBA             Field = "hba"
	FieldIsDrug          Field = "is_drug"
	FieldIsLipid         Field = "is_lipid"
	FieldIsMetabolite    Field = "is_metabolite"
)

// Op is a comparison operator.
type Op string

const (
	OpGTE Op = ">="
	OpLTE Op = "<="
	OpEQ  Op = "="
)

// Predicate is a single property comparison.  Value is a float64 for the
// numeric fields and a bool for the classification flags.
type Predicate struct {
	Field Field
	Op    Op
	Value interface{}
}

// SearchFilters narrows a search by property ranges.  Every set field is
// ANDed with the others; a nil *SearchFilters matches everything.
type SearchFilters struct {
	MolecularWeightMin *float64 `json:"molecularWeightMin,omitempty"`
	MolecularWeightMax *float64 `json:"molecularWeightMax,omitempty"`
	LogPMin            *float64 `json:"logpMin,omitempty"`
	LogPMax            *float64 `json:"logpMax,omitempty"`
	LipinskiCompliant  bool     `json:"lipinskiCompliant,omitempty"`

	IsDrug       *bool `json:"isDrug,omitempty"`
	IsLipid      *bool `json:"isLipid,omitempty"`
	IsMetabolite *bool `json:"isMetabolite,omitempty"`
}

// IsEmpty reports whether the filters would not exclude anything.
func (f *SearchFilters) IsEmpty() bool {
	return len(f.Predicates()) == 0
}

// Predicates expands the filters into the flat list of comparisons every
// strategy must apply.  The order is stable so generated SQL is too.
func (f *SearchFilters) Predicates() []Predicate {
	if f == nil {
		return nil
	}
	var out []Predicate
	if f.MolecularWeightMin != nil {
		out = append(out, Predicate{FieldMolecularWeight, OpGTE, *f.MolecularWeightMin})
	}
	if f.MolecularWeightMax != nil {
		out = append(out, Predicate{FieldMolecularWeight, OpLTE, *f.MolecularWeightMax})
	}
	if f.LogPMin != nil {
		out = append(out, Predicate{FieldLogP, OpGTE, *f.LogPMin})
	}
	if f.LogPMax != nil {
		out = append(out, Predicate{FieldLogP, OpLTE, *f.LogPMax})
	}
	if f.LipinskiCompliant {
		out = append(out,
			Predicate{FieldMolecularWeight, OpLTE, LipinskiMaxMolecularWeight},
			Predicate{FieldLogP, OpLTE, LipinskiMaxLogP},
			Predicate{FieldHBD, OpLTE, float64(LipinskiMaxHBD)},
			Predicate{FieldHBA, OpLTE, float64(LipinskiMaxHBA)},
		)
	}
	if f.IsDrug != nil {
		out = append(out, Predicate{FieldIsDrug, OpEQ, *f.IsDrug})
	}
	if f.IsLipid != nil {
		out = append(out, Predicate{FieldIsLipid, OpEQ, *f.IsLipid})
	}
	if f.IsMetabolite != nil {
		out = append(out, Predicate{FieldIsMetabolite, OpEQ, *f.IsMetabolite})
	}
	return out
}

// Matches evaluates the filters against a hydrated record.  A missing
// property never satisfies a comparison, mirroring SQL NULL semantics.
func (f *SearchFilters) Matches(r *CompoundRecord) bool {
	if r == nil {
		return false
	}
	for _, p := range f.Predicates() {
		if !p.Eval(r) {
			return false
		}
	}
	return true
}

// Eval reports whether r satisfies the predicate.
func (p Predicate) Eval(r *CompoundRecord) bool {
	switch v := p.Value.(type) {
	case float64:
		actual, ok := numericField(r, p.Field)
		if !ok {
			return false
		}
		switch p.Op {
		case OpGTE:
			return actual >= v
		case OpLTE:
			return actual <= v
		case OpEQ:
			return actual == v
		}
	case bool:
		actual, ok := flagField(r, p.Field)
		return ok && p.Op == OpEQ && actual == v
	}
	return false
}

func numericField(r *CompoundRecord, f Field) (float64, bool) {
	switch f {
	case FieldMolecularWeight:
		if r.MolecularWeight != nil {
			return *r.MolecularWeight, true
		}
	case FieldLogP:
		if r.LogP != nil {
			return *r.LogP, true
		}
	case FieldHBD:
		if r.HBD != nil {
			return float64(*r.HBD), true
		}
	case FieldHBA:
		if r.HBA != nil {
			return float64(*r.HBA), true
		}
	}
	return 0, false
}

func flagField(r *CompoundRecord, f Field) (bool, bool) {
	var p *bool
	switch f {
	case FieldIsDrug:
		p = r.IsDrug
	case FieldIsLipid:
		p = r.IsLipid
	case FieldIsMetabolite:
		p = r.IsMetabolite
	}
	if p == nil {
		return false, false
	}
	return *p, true
}

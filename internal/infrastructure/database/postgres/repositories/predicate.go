package repositories

import (
	"fmt"
	"strings"

	"github.com/turtacn/metabo-search/internal/domain/compound"
)

// argList accumulates positional query arguments.
type argList struct {
	args []interface{}
}

// add appends v and returns its placeholder.
func (a *argList) add(v interface{}) string {
	a.args = append(a.args, v)
	return fmt.Sprintf("$%d", len(a.args))
}

// filterColumns maps filterable fields to columns of the c (compound) alias.
var filterColumns = map[compound.Field]string{
	compound.FieldMolecularWeight: "c.molecular_weight",
	compound.FieldLogP:            "c.logp",
	compound.FieldHBD:             "c.hbd",
	compound.FieldHBA:             "c.hba",
	compound.FieldIsDrug:          "c.is_drug",
	compound.FieldIsLipid:         "c.is_lipid",
	compound.FieldIsMetabolite:    "c.is_metabolite",
}

// filterConditions renders filters as SQL conditions, binding every value
// through args.  All structural strategies build their WHERE clauses here so
// the same filters mean the same thing everywhere.
func filterConditions(filters *compound.SearchFilters, args *argList) []string {
	preds := filters.Predicates()
	out := make([]string, 0, len(preds))
	for _, p := range preds {
		col, ok := filterColumns[p.Field]
		if !ok {
			continue
		}
		out = append(out, fmt.Sprintf("%s %s %s", col, p.Op, args.add(p.Value)))
	}
	return out
}

// whereClause joins conditions with AND.  An empty list yields "TRUE".
func whereClause(conds []string) string {
	if len(conds) == 0 {
		return "TRUE"
	}
	return strings.Join(conds, "\n\t\t  AND ")
}

// pageClause renders LIMIT/OFFSET.  compound.NoLimit omits the LIMIT.
func pageClause(limit, offset int, args *argList) string {
	var b strings.Builder
	if limit != compound.NoLimit {
		if limit < 0 {
			limit = 0
		}
		b.WriteString("LIMIT " + args.add(limit))
	}
	if offset > 0 {
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString("OFFSET " + args.add(offset))
	}
	return b.String()
}

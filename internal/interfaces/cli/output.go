package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/turtacn/metabo-search/internal/domain/compound"
	"github.com/turtacn/metabo-search/internal/domain/vocabulary"
)

const (
	outputText = "text"
	outputJSON = "json"
)

// PrintResult writes data as JSON when requested, otherwise through render.
func PrintResult(cmd *cobra.Command, data interface{}, render func(w io.Writer) error) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil || cliCtx.OutputFormat == outputJSON || render == nil {
		return printJSON(cmd.OutOrStdout(), data)
	}
	return render(cmd.OutOrStdout())
}

// printJSON outputs data as indented JSON.
func printJSON(w io.Writer, data interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// PrintError writes a formatted error message to stderr.
func PrintError(cmd *cobra.Command, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", color.RedString("Error:"), err.Error())
}

// PrintSuccess writes a formatted success message to stdout.
func PrintSuccess(cmd *cobra.Command, msg string) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", color.GreenString("OK:"), msg)
}

func renderTable(w io.Writer, headers []string, rows [][]string) error {
	table := tablewriter.NewWriter(w)
	table.Header(headers)
	for _, row := range rows {
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}

// ─────────────────────────────────────────────────────────────────────────────
// Search results
// ─────────────────────────────────────────────────────────────────────────────

func renderSearchResults(w io.Writer, results []compound.SimilarityResult, withSimilarity bool) error {
	if len(results) == 0 {
		fmt.Fprintln(w, "No compounds found.")
		return nil
	}

	headers := []string{"#", "Entity", "Canonical", "Name", "Formula", "MW", "LogP"}
	if withSimilarity {
		headers = append(headers, "Similarity")
	}

	rows := make([][]string, 0, len(results))
	for i, r := range results {
		row := []string{
			strconv.Itoa(i + 1),
			strconv.FormatInt(r.EntityID, 10),
			strconv.FormatInt(r.CanonicalID, 10),
			truncateString(r.PrimaryName(), 30),
			stringOrDash(r.Formula),
			floatOrDash(r.MolecularWeight),
			floatOrDash(r.LogP),
		}
		if withSimilarity {
			row = append(row, formatSimilarity(r.Similarity))
		}
		rows = append(rows, row)
	}

	if err := renderTable(w, headers, rows); err != nil {
		return err
	}
	fmt.Fprintf(w, "\nTotal results: %d\n", len(results))
	return nil
}

func formatSimilarity(sim float64) string {
	s := fmt.Sprintf("%.2f%%", sim*100)
	switch {
	case sim >= 0.8:
		return color.GreenString(s)
	case sim >= 0.5:
		return color.YellowString(s)
	default:
		return s
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Compound detail
// ─────────────────────────────────────────────────────────────────────────────

func renderCompound(w io.Writer, rec *compound.CompoundRecord) error {
	if rec == nil {
		fmt.Fprintln(w, "Compound not found.")
		return nil
	}

	props := [][]string{
		{"Entity", strconv.FormatInt(rec.EntityID, 10)},
		{"Canonical", strconv.FormatInt(rec.CanonicalID, 10)},
		{"Structure key", stringOrDash(rec.StructureKey)},
		{"SMILES", stringOrDash(rec.CanonicalSmiles)},
		{"InChI", stringOrDash(rec.InChI)},
		{"Formula", stringOrDash(rec.Formula)},
		{"Molecular weight", floatOrDash(rec.MolecularWeight)},
		{"Exact mass", floatOrDash(rec.ExactMass)},
		{"LogP", floatOrDash(rec.LogP)},
		{"TPSA", floatOrDash(rec.TPSA)},
		{"H-bond donors", intOrDash(rec.HBD)},
		{"H-bond acceptors", intOrDash(rec.HBA)},
		{"Rotatable bonds", intOrDash(rec.RotatableBonds)},
		{"Aromatic rings", intOrDash(rec.AromaticRings)},
		{"Heavy atoms", intOrDash(rec.HeavyAtoms)},
		{"Drug", boolOrDash(rec.IsDrug)},
		{"Lipid", boolOrDash(rec.IsLipid)},
		{"Metabolite", boolOrDash(rec.IsMetabolite)},
	}
	if err := renderTable(w, []string{"Property", "Value"}, props); err != nil {
		return err
	}

	if len(rec.Identifiers) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	ids := make([][]string, 0, len(rec.Identifiers))
	for _, id := range rec.Identifiers {
		ids = append(ids, []string{id.Type, id.TypeAccession, id.Value})
	}
	return renderTable(w, []string{"Type", "Accession", "Value"}, ids)
}

// ─────────────────────────────────────────────────────────────────────────────
// Lookups
// ─────────────────────────────────────────────────────────────────────────────

func renderSuggestions(w io.Writer, suggestions []compound.Suggestion) error {
	if len(suggestions) == 0 {
		fmt.Fprintln(w, "No suggestions.")
		return nil
	}
	rows := make([][]string, 0, len(suggestions))
	for _, s := range suggestions {
		rows = append(rows, []string{s.Value, s.Type, s.EntityID})
	}
	return renderTable(w, []string{"Value", "Type", "Entity"}, rows)
}

func renderTerms(w io.Writer, terms []vocabulary.CvTerm) error {
	if len(terms) == 0 {
		fmt.Fprintln(w, "No matching terms.")
		return nil
	}
	rows := make([][]string, 0, len(terms))
	for _, t := range terms {
		rows = append(rows, []string{
			strconv.FormatInt(t.EntityID, 10),
			t.Accession,
			t.Name,
			truncateString(strings.Join(t.Synonyms, "; "), 50),
		})
	}
	return renderTable(w, []string{"Entity", "Accession", "Name", "Synonyms"}, rows)
}

func renderReferences(w io.Writer, refs []string) error {
	if len(refs) == 0 {
		fmt.Fprintln(w, "No references.")
		return nil
	}
	for _, r := range refs {
		fmt.Fprintln(w, r)
	}
	return nil
}

func renderLiterature(w io.Writer, lit *compound.Literature) error {
	if err := renderReferences(w, lit.PubmedIDs); err != nil {
		return err
	}
	if len(lit.Publications) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	rows := make([][]string, 0, len(lit.Publications))
	for _, p := range lit.Publications {
		rows = append(rows, []string{
			p.PMID,
			truncateString(p.Title, 60),
			truncateString(p.Journal, 20),
			p.PublicationDate,
		})
	}
	return renderTable(w, []string{"PMID", "Title", "Journal", "Date"}, rows)
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func truncateString(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}

func stringOrDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

func floatOrDash(f *float64) string {
	if f == nil {
		return "-"
	}
	return strconv.FormatFloat(*f, 'f', 2, 64)
}

func intOrDash(i *int64) string {
	if i == nil {
		return "-"
	}
	return strconv.FormatInt(*i, 10)
}

func boolOrDash(b *bool) string {
	if b == nil {
		return "-"
	}
	if *b {
		return "yes"
	}
	return "no"
}

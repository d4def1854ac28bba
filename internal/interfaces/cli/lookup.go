package cli

import (
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/metabo-search/internal/domain/compound"
	"github.com/turtacn/metabo-search/pkg/errors"
)

func newCompoundCmd(factory RuntimeFactory) *cobra.Command {
	var canonical bool

	cmd := &cobra.Command{
		Use:     "compound KEY",
		Aliases: []string{"entity"},
		Short:   "Show one compound with its properties and identifiers",
		Long: "Show one compound.  KEY is an entity key; with --canonical it is the\n" +
			"canonical compound id instead.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := strings.TrimSpace(args[0])
			var canonicalID int64
			if canonical {
				id, err := strconv.ParseInt(key, 10, 64)
				if err != nil {
					return errors.Newf(errors.ErrCodeInvalidEntityKey, "canonical id must be an integer, got %q", key)
				}
				canonicalID = id
			}

			return withRuntime(cmd, factory, func(ctx context.Context, _ *CLIContext, rt *Runtime) error {
				var (
					rec *compound.CompoundRecord
					err error
				)
				if canonical {
					rec, err = rt.Search.GetByCanonicalID(ctx, canonicalID)
				} else {
					rec, err = rt.Search.GetByEntityKey(ctx, key)
				}
				if err != nil {
					return err
				}
				if rec == nil {
					return errors.Newf(errors.ErrCodeNotFound, "compound %q not found", key)
				}
				return PrintResult(cmd, rec, func(w io.Writer) error {
					return renderCompound(w, rec)
				})
			})
		},
	}

	cmd.Flags().BoolVar(&canonical, "canonical", false, "treat KEY as a canonical compound id")
	return cmd
}

func newPublicationsCmd(factory RuntimeFactory) *cobra.Command {
	var summaries bool

	cmd := &cobra.Command{
		Use:     "publications KEY",
		Aliases: []string{"pubs"},
		Short:   "List the literature references of an entity",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := strings.TrimSpace(args[0])

			return withRuntime(cmd, factory, func(ctx context.Context, _ *CLIContext, rt *Runtime) error {
				if !summaries {
					refs, err := rt.Search.GetPublications(ctx, key)
					if err != nil {
						return err
					}
					return PrintResult(cmd, refs, func(w io.Writer) error {
						return renderReferences(w, refs)
					})
				}

				lit, err := rt.Search.GetLiterature(ctx, key)
				if err != nil {
					return err
				}
				return PrintResult(cmd, lit, func(w io.Writer) error {
					return renderLiterature(w, lit)
				})
			})
		},
	}

	cmd.Flags().BoolVar(&summaries, "summaries", false, "fetch PubMed summaries for the references")
	return cmd
}

func newAutocompleteCmd(factory RuntimeFactory) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "autocomplete PREFIX",
		Short: "Suggest identifiers starting with PREFIX",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return errors.Newf(errors.ErrCodeValidation, "limit must not be negative, got %d", limit)
			}
			return withRuntime(cmd, factory, func(ctx context.Context, _ *CLIContext, rt *Runtime) error {
				suggestions, err := rt.Search.Autocomplete(ctx, args[0], limit)
				if err != nil {
					return err
				}
				return PrintResult(cmd, suggestions, func(w io.Writer) error {
					return renderSuggestions(w, suggestions)
				})
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of suggestions (0 uses the configured default)")
	return cmd
}

func newTermsCmd(factory RuntimeFactory) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "terms QUERY",
		Short: "Search controlled vocabulary terms by name, accession or synonym",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return errors.Newf(errors.ErrCodeValidation, "limit must not be negative, got %d", limit)
			}
			return withRuntime(cmd, factory, func(ctx context.Context, _ *CLIContext, rt *Runtime) error {
				terms, err := rt.Search.SearchTerms(ctx, args[0], limit)
				if err != nil {
					return err
				}
				return PrintResult(cmd, terms, func(w io.Writer) error {
					return renderTerms(w, terms)
				})
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of terms")
	return cmd
}

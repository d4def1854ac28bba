package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/turtacn/metabo-search/internal/application/search"
	"github.com/turtacn/metabo-search/internal/domain/compound"
	"github.com/turtacn/metabo-search/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/metabo-search/pkg/errors"
)

// searchOptions holds the flags of the search command.
type searchOptions struct {
	mode      string
	limit     int
	offset    int
	threshold float64

	mwMin, mwMax     float64
	logpMin, logpMax float64
	lipinski         bool
	drug             bool
	lipid            bool
	metabolite       bool
}

func newSearchCmd(factory RuntimeFactory) *cobra.Command {
	opts := &searchOptions{}

	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Search compounds by identifier, formula, substructure or similarity",
		Long: "Search compounds.  The text mode matches identifier prefixes and falls back\n" +
			"to molecular formula fragments; the substructure and similarity modes take a\n" +
			"SMILES pattern and fall back to the text mode when the pattern cannot be used.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, q, err := opts.query(cmd, args[0])
			if err != nil {
				return err
			}
			return withRuntime(cmd, factory, func(ctx context.Context, cliCtx *CLIContext, rt *Runtime) error {
				return runSearch(ctx, cmd, cliCtx.Logger, rt.Search, mode, q)
			})
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.mode, "mode", "m", string(search.ModeText), "search mode: text|substructure|similarity")
	f.IntVarP(&opts.limit, "limit", "n", 0, "maximum number of results (0 uses the configured default)")
	f.IntVar(&opts.offset, "offset", 0, "number of results to skip")
	f.Float64Var(&opts.threshold, "threshold", 0, "minimum Tanimoto similarity (similarity mode, default from config)")
	f.Float64Var(&opts.mwMin, "mw-min", 0, "minimum molecular weight")
	f.Float64Var(&opts.mwMax, "mw-max", 0, "maximum molecular weight")
	f.Float64Var(&opts.logpMin, "logp-min", 0, "minimum LogP")
	f.Float64Var(&opts.logpMax, "logp-max", 0, "maximum LogP")
	f.BoolVar(&opts.lipinski, "lipinski", false, "only compounds passing Lipinski's rule of five")
	f.BoolVar(&opts.drug, "drug", false, "filter on the drug flag")
	f.BoolVar(&opts.lipid, "lipid", false, "filter on the lipid flag")
	f.BoolVar(&opts.metabolite, "metabolite", false, "filter on the metabolite flag")

	return cmd
}

// query validates the flags and converts them into a search request.  Range
// and flag filters are only applied when the flag was given explicitly.
func (o *searchOptions) query(cmd *cobra.Command, text string) (search.Mode, search.SimilarityQuery, error) {
	mode, err := search.ParseMode(o.mode)
	if err != nil {
		return "", search.SimilarityQuery{}, err
	}
	if o.limit < 0 {
		return "", search.SimilarityQuery{}, errors.Newf(errors.ErrCodeValidation, "limit must not be negative, got %d", o.limit)
	}
	if o.offset < 0 {
		return "", search.SimilarityQuery{}, errors.Newf(errors.ErrCodeValidation, "offset must not be negative, got %d", o.offset)
	}

	q := search.SimilarityQuery{Query: search.Query{Text: text, Limit: o.limit, Offset: o.offset}}

	flags := cmd.Flags()
	if flags.Changed("threshold") {
		if o.threshold < 0 || o.threshold > 1 {
			return "", search.SimilarityQuery{}, errors.Newf(errors.ErrCodeValidation, "threshold must be between 0.0 and 1.0, got %.2f", o.threshold)
		}
		t := o.threshold
		q.Threshold = &t
	}

	filters := &compound.SearchFilters{}
	setFloat := func(name string, v float64, dst **float64) {
		if flags.Changed(name) {
			x := v
			*dst = &x
		}
	}
	setBool := func(name string, v bool, dst **bool) {
		if flags.Changed(name) {
			x := v
			*dst = &x
		}
	}
	setFloat("mw-min", o.mwMin, &filters.MolecularWeightMin)
	setFloat("mw-max", o.mwMax, &filters.MolecularWeightMax)
	setFloat("logp-min", o.logpMin, &filters.LogPMin)
	setFloat("logp-max", o.logpMax, &filters.LogPMax)
	if flags.Changed("lipinski") {
		filters.LipinskiCompliant = o.lipinski
	}
	setBool("drug", o.drug, &filters.IsDrug)
	setBool("lipid", o.lipid, &filters.IsLipid)
	setBool("metabolite", o.metabolite, &filters.IsMetabolite)

	if !filters.IsEmpty() {
		q.Filters = filters
	}
	return mode, q, nil
}

func runSearch(ctx context.Context, cmd *cobra.Command, logger logging.Logger, svc search.Service, mode search.Mode, q search.SimilarityQuery) error {
	logger.Debug("starting search",
		logging.String("mode", string(mode)),
		logging.String("query", q.Text),
		logging.Int("limit", q.Limit),
		logging.Int("offset", q.Offset),
	)

	results, err := svc.Dispatch(ctx, mode, q)
	if err != nil {
		return errors.Wrap(err, errors.GetCode(err), "search failed")
	}

	return PrintResult(cmd, results, func(w io.Writer) error {
		return renderSearchResults(w, results, mode == search.ModeSimilarity)
	})
}

// withRuntime builds a runtime for the duration of fn.
func withRuntime(cmd *cobra.Command, factory RuntimeFactory, fn func(ctx context.Context, cliCtx *CLIContext, rt *Runtime) error) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	if factory == nil {
		return errors.New(errors.ErrCodeInternal, "command requires a search runtime")
	}

	ctx, cancel := commandContext(cmd, cliCtx)
	defer cancel()

	rt, err := factory(ctx, cliCtx)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeServiceUnavailable, "failed to initialize search runtime")
	}
	defer func() {
		if cerr := rt.Close(); cerr != nil {
			cliCtx.Logger.Warn("failed to release runtime", logging.Err(cerr))
		}
	}()

	return fn(ctx, cliCtx, rt)
}

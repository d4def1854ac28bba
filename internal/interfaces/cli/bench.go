package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/spf13/cobra"

	"github.com/turtacn/metabo-search/internal/application/search"
	"github.com/turtacn/metabo-search/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/metabo-search/pkg/errors"
)

type benchOptions struct {
	file        string
	mode        string
	concurrency int
	repeat      int
	limit       int
	metricsAddr string
}

// benchReport summarises one bench run.
type benchReport struct {
	Mode     string        `json:"mode"`
	Queries  int           `json:"queries"`
	Errors   int           `json:"errors"`
	Empty    int           `json:"empty"`
	P50      time.Duration `json:"p50"`
	P95      time.Duration `json:"p95"`
	Max      time.Duration `json:"max"`
	Elapsed  time.Duration `json:"elapsed"`
	Warmup   time.Duration `json:"warmup"`
	DBOpen   int           `json:"dbOpenConnections"`
	DBInUse  int           `json:"dbInUseConnections"`
	Workers  int           `json:"workers"`
	Repeated int           `json:"repeat"`
}

func newBenchCmd(factory RuntimeFactory) *cobra.Command {
	opts := &benchOptions{}

	cmd := &cobra.Command{
		Use:   "bench [QUERY...]",
		Short: "Replay queries against one search strategy and report latencies",
		Long: "Replay queries concurrently against one search strategy.  Queries come from\n" +
			"the arguments or, with --file, one per line (blank lines and # comments are\n" +
			"skipped).  With --metrics-addr the Prometheus registry is served while the\n" +
			"run is in progress.",
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := search.ParseMode(opts.mode)
			if err != nil {
				return err
			}
			if opts.concurrency <= 0 {
				return errors.Newf(errors.ErrCodeValidation, "concurrency must be greater than 0, got %d", opts.concurrency)
			}
			if opts.repeat <= 0 {
				return errors.Newf(errors.ErrCodeValidation, "repeat must be greater than 0, got %d", opts.repeat)
			}

			queries := args
			if opts.file != "" {
				fromFile, err := readQueries(opts.file)
				if err != nil {
					return err
				}
				queries = append(queries, fromFile...)
			}
			if len(queries) == 0 {
				return errors.New(errors.ErrCodeValidation, "no queries given; pass them as arguments or with --file")
			}

			return withRuntime(cmd, factory, func(ctx context.Context, cliCtx *CLIContext, rt *Runtime) error {
				stop := serveMetrics(cliCtx.Logger, rt, opts.metricsAddr)
				defer stop()

				report, err := runBench(ctx, cliCtx.Logger, rt, mode, queries, opts)
				if err != nil {
					return err
				}
				return PrintResult(cmd, report, func(w io.Writer) error {
					return renderBenchReport(w, report)
				})
			})
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.file, "file", "f", "", "file with one query per line")
	f.StringVarP(&opts.mode, "mode", "m", string(search.ModeText), "search mode: text|substructure|similarity")
	f.IntVar(&opts.concurrency, "concurrency", 4, "number of concurrent workers")
	f.IntVar(&opts.repeat, "repeat", 1, "number of passes over the query list")
	f.IntVarP(&opts.limit, "limit", "n", 0, "result limit per query (0 uses the configured default)")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve /metrics on this address during the run")

	return cmd
}

func readQueries(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeValidation, "failed to open query file")
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeValidation, "failed to read query file")
	}
	return out, nil
}

func runBench(ctx context.Context, logger logging.Logger, rt *Runtime, mode search.Mode, queries []string, opts *benchOptions) (*benchReport, error) {
	report := &benchReport{Mode: string(mode), Workers: opts.concurrency, Repeated: opts.repeat}

	warmStart := time.Now()
	if err := rt.Search.Warmup(ctx); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeBootstrapFailed, "vocabulary warm-up failed")
	}
	report.Warmup = time.Since(warmStart)

	pool, err := ants.NewPool(opts.concurrency)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to create bench pool")
	}
	defer pool.Release()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		durations = make([]time.Duration, 0, len(queries)*opts.repeat)
	)
	start := time.Now()
	for pass := 0; pass < opts.repeat; pass++ {
		for _, text := range queries {
			wg.Add(1)
			submitErr := pool.Submit(func() {
				defer wg.Done()
				q := search.SimilarityQuery{Query: search.Query{Text: text, Limit: opts.limit}}
				t0 := time.Now()
				res, err := rt.Search.Dispatch(ctx, mode, q)
				d := time.Since(t0)

				mu.Lock()
				defer mu.Unlock()
				report.Queries++
				durations = append(durations, d)
				switch {
				case err != nil:
					report.Errors++
					logger.Warn("bench query failed", logging.String("query", text), logging.Err(err))
				case len(res) == 0:
					report.Empty++
				}
			})
			if submitErr != nil {
				wg.Done()
				wg.Wait()
				return nil, errors.Wrap(submitErr, errors.ErrCodeInternal, "failed to schedule bench query")
			}
		}
	}
	wg.Wait()
	report.Elapsed = time.Since(start)

	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })
	report.P50 = percentile(durations, 0.50)
	report.P95 = percentile(durations, 0.95)
	if n := len(durations); n > 0 {
		report.Max = durations[n-1]
	}

	if stats, ok := rt.DBStats(); ok {
		rt.Metrics.ObserveDBStats("primary", stats)
		report.DBOpen = stats.OpenConnections
		report.DBInUse = stats.InUse
	}
	return report, nil
}

// percentile expects sorted input and uses the nearest-rank method.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(p*float64(len(sorted))+0.999999) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}

// serveMetrics exposes the runtime's registry on addr until the returned
// stop function is called.  An empty addr or missing collector is a no-op.
func serveMetrics(logger logging.Logger, rt *Runtime, addr string) func() {
	if addr == "" || rt.Collector == nil {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", rt.Collector.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", logging.String("addr", addr), logging.Err(err))
		}
	}()
	logger.Info("serving metrics", logging.String("addr", addr))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func renderBenchReport(w io.Writer, r *benchReport) error {
	rows := [][]string{
		{"Mode", r.Mode},
		{"Queries", strconv.Itoa(r.Queries)},
		{"Errors", strconv.Itoa(r.Errors)},
		{"Empty results", strconv.Itoa(r.Empty)},
		{"Workers", strconv.Itoa(r.Workers)},
		{"Warm-up", r.Warmup.Round(time.Microsecond).String()},
		{"p50", r.P50.Round(time.Microsecond).String()},
		{"p95", r.P95.Round(time.Microsecond).String()},
		{"Max", r.Max.Round(time.Microsecond).String()},
		{"Elapsed", r.Elapsed.Round(time.Millisecond).String()},
		{"DB connections (open/in use)", fmt.Sprintf("%d/%d", r.DBOpen, r.DBInUse)},
	}
	return renderTable(w, []string{"Metric", "Value"}, rows)
}

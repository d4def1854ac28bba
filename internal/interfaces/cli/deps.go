package cli

import (
	"context"
	"database/sql"

	"github.com/turtacn/metabo-search/internal/application/search"
	"github.com/turtacn/metabo-search/internal/config"
	"github.com/turtacn/metabo-search/internal/domain/vocabulary"
	"github.com/turtacn/metabo-search/internal/infrastructure/database/postgres"
	"github.com/turtacn/metabo-search/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/metabo-search/internal/infrastructure/database/redis"
	"github.com/turtacn/metabo-search/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/metabo-search/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/metabo-search/internal/infrastructure/pubmed"
)

// RuntimeFactory builds the search runtime for one command invocation.
type RuntimeFactory func(ctx context.Context, cliCtx *CLIContext) (*Runtime, error)

// Runtime bundles the wired search service with the resources backing it.
type Runtime struct {
	Search    search.Service
	Collector prometheus.MetricsCollector
	Metrics   *prometheus.SearchMetrics

	conn    *postgres.Connection
	closers []func() error
}

// DBStats returns the connection pool statistics, when a pool is attached.
func (r *Runtime) DBStats() (sql.DBStats, bool) {
	if r.conn == nil {
		return sql.DBStats{}, false
	}
	return r.conn.Stats(), true
}

// Close releases every resource in reverse acquisition order.
func (r *Runtime) Close() error {
	var first error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	r.closers = nil
	return first
}

// NewRuntime wires the production stack: PostgreSQL repositories, the
// vocabulary caches, the optional Redis result cache and PubMed client, and
// a Prometheus registry.
func NewRuntime(ctx context.Context, cliCtx *CLIContext) (*Runtime, error) {
	cfg := cliCtx.Config
	log := cliCtx.Logger

	conn, err := postgres.NewConnection(cfg.Database, log)
	if err != nil {
		return nil, err
	}
	rt := &Runtime{conn: conn, closers: []func() error{conn.Close}}

	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            cfg.Metrics.Namespace,
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}, log)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.Collector = collector
	rt.Metrics = prometheus.NewSearchMetrics(collector)

	store := repositories.NewPostgresVocabularyRepo(conn, log)
	markers := markersFromConfig(cfg.Vocabulary)

	deps := search.Deps{
		Identifiers: repositories.NewPostgresIdentifierRepo(conn, log),
		Structures:  repositories.NewPostgresStructureRepo(conn, log),
		Details:     repositories.NewPostgresCompoundRepo(conn, log),
		Types:       vocabulary.NewTypeCache(store, markers, log),
		Terms:       vocabulary.NewCvCache(store, markers, log),
		Cache:       newResultCache(rt, cfg.Redis, log),
		Metrics:     rt.Metrics,
		Logger:      log,
	}
	if cfg.PubMed.Enabled {
		deps.Summaries = pubmed.NewClient(cfg.PubMed, log)
	}

	svc, err := search.NewService(deps, search.OptionsFromConfig(cfg))
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.Search = svc

	log.Debug("search runtime ready",
		logging.Bool("redis", cfg.Redis.Enabled),
		logging.Bool("pubmed", cfg.PubMed.Enabled),
	)
	return rt, nil
}

// newResultCache connects to Redis when enabled.  An unreachable server
// degrades to the passthrough cache rather than failing the command.
func newResultCache(rt *Runtime, cfg config.RedisConfig, log logging.Logger) redis.Cache {
	if !cfg.Enabled {
		return redis.NewPassthroughCache()
	}

	client, err := redis.NewClient(cfg, log)
	if err != nil {
		log.Warn("result cache unavailable, continuing without it",
			logging.String("addr", cfg.Addr), logging.Err(err))
		return redis.NewPassthroughCache()
	}
	rt.closers = append(rt.closers, client.Close)

	return redis.NewRedisCache(client, log,
		redis.WithPrefix(cfg.KeyPrefix),
		redis.WithRecorder("result", rt.Metrics),
	)
}

func markersFromConfig(cfg config.VocabularyConfig) vocabulary.Markers {
	return vocabulary.DefaultMarkers().WithOverrides(vocabulary.Markers{
		Name:      cfg.NameMarker,
		Accession: cfg.AccessionMarker,
		Synonym:   cfg.SynonymMarker,
		TermRole:  cfg.TermRoleMarker,
	})
}

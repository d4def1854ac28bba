// Package config defines the configuration structures of the metabo-search
// engine.  Parsing lives in loader.go and defaults in defaults.go; this file
// holds plain data types and validation only.
package config

import (
	"fmt"
	"time"

	"github.com/turtacn/metabo-search/internal/infrastructure/monitoring/logging"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// DatabaseConfig holds PostgreSQL connection parameters.  The database must
// have the RDKit cartridge installed for the structural strategies.
type DatabaseConfig struct {
	Host             string        `mapstructure:"host"`
	Port             int           `mapstructure:"port"`
	User             string        `mapstructure:"user"`
	Password         string        `mapstructure:"password"`
	DBName           string        `mapstructure:"db_name"`
	SSLMode          string        `mapstructure:"ssl_mode"`
	MaxOpenConns     int           `mapstructure:"max_open_conns"`
	MaxIdleConns     int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime  time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime  time.Duration `mapstructure:"conn_max_idle_time"`
	StatementTimeout time.Duration `mapstructure:"statement_timeout"`

	// MigrationPath points at a directory of migration files.  Empty uses
	// the migrations compiled into the binary.
	MigrationPath string `mapstructure:"migration_path"`
}

// RedisConfig holds the result-cache connection parameters.  When Enabled is
// false the engine runs without a shared result cache.
type RedisConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Addr            string        `mapstructure:"addr"`
	Password        string        `mapstructure:"password"`
	DB              int           `mapstructure:"db"`
	PoolSize        int           `mapstructure:"pool_size"`
	DialTimeout     time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	KeyPrefix       string        `mapstructure:"key_prefix"`
	DetailTTL       time.Duration `mapstructure:"detail_ttl"`
	PublicationTTL  time.Duration `mapstructure:"publication_ttl"`
	AutocompleteTTL time.Duration `mapstructure:"autocomplete_ttl"`
}

// SearchConfig holds the orchestrator tunables.
type SearchConfig struct {
	DefaultLimit            int     `mapstructure:"default_limit"`
	AutocompleteLimit       int     `mapstructure:"autocomplete_limit"`
	AutocompleteMinLength   int     `mapstructure:"autocomplete_min_length"`
	SimilarityThreshold     float64 `mapstructure:"similarity_threshold"`
	PrefixCandidates        int     `mapstructure:"prefix_candidates"`
	CandidateMultiplier     int     `mapstructure:"candidate_multiplier"`
	MaxSimilarityCandidates int     `mapstructure:"max_similarity_candidates"`
	ValidityCacheSize       int     `mapstructure:"validity_cache_size"`
	WarmupConcurrency       int     `mapstructure:"warmup_concurrency"`
}

// VocabularyConfig overrides the marker accessions used to bootstrap the
// type and controlled-vocabulary caches.  Empty fields keep the built-in table.
type VocabularyConfig struct {
	NameMarker      string `mapstructure:"name_marker"`
	AccessionMarker string `mapstructure:"accession_marker"`
	SynonymMarker   string `mapstructure:"synonym_marker"`
	TermRoleMarker  string `mapstructure:"term_role_marker"`
}

// PublicationsConfig controls which reference types count as bibliographic.
type PublicationsConfig struct {
	ReferenceTypes []string `mapstructure:"reference_types"`
}

// PubMedConfig configures the NCBI E-utilities summary client.
type PubMedConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	BaseURL string        `mapstructure:"base_url"`
	Tool    string        `mapstructure:"tool"`
	Email   string        `mapstructure:"email"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// MetricsConfig configures the Prometheus registry.
type MetricsConfig struct {
	Namespace string `mapstructure:"namespace"`
	Addr      string `mapstructure:"addr"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration object.
type Config struct {
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Search       SearchConfig       `mapstructure:"search"`
	Vocabulary   VocabularyConfig   `mapstructure:"vocabulary"`
	Publications PublicationsConfig `mapstructure:"publications"`
	PubMed       PubMedConfig       `mapstructure:"pubmed"`
	Log          logging.LogConfig  `mapstructure:"log"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate performs semantic validation of a fully-populated Config and
// returns the first problem found.
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return fmt.Errorf("config: database.host is required")
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("config: database.port %d is out of range [1, 65535]", c.Database.Port)
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("config: database.db_name is required")
	}
	if c.Database.MaxOpenConns < 1 {
		return fmt.Errorf("config: database.max_open_conns must be >= 1, got %d", c.Database.MaxOpenConns)
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("config: redis.addr is required when redis.enabled is true")
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("config: redis.db must be >= 0, got %d", c.Redis.DB)
	}

	if c.Search.DefaultLimit < 1 {
		return fmt.Errorf("config: search.default_limit must be >= 1, got %d", c.Search.DefaultLimit)
	}
	if c.Search.PrefixCandidates < 1 {
		return fmt.Errorf("config: search.prefix_candidates must be >= 1, got %d", c.Search.PrefixCandidates)
	}
	if c.Search.CandidateMultiplier < 1 {
		return fmt.Errorf("config: search.candidate_multiplier must be >= 1, got %d", c.Search.CandidateMultiplier)
	}
	if c.Search.SimilarityThreshold < 0 || c.Search.SimilarityThreshold > 1 {
		return fmt.Errorf("config: search.similarity_threshold %.3f is out of range [0, 1]", c.Search.SimilarityThreshold)
	}
	if c.Search.MaxSimilarityCandidates < 1 {
		return fmt.Errorf("config: search.max_similarity_candidates must be >= 1, got %d", c.Search.MaxSimilarityCandidates)
	}

	if len(c.Publications.ReferenceTypes) == 0 {
		return fmt.Errorf("config: publications.reference_types must name at least one type")
	}

	if c.PubMed.Enabled && c.PubMed.BaseURL == "" {
		return fmt.Errorf("config: pubmed.base_url is required when pubmed.enabled is true")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	if c.Metrics.Namespace == "" {
		return fmt.Errorf("config: metrics.namespace is required")
	}
	return nil
}

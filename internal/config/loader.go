package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// envPrefix is the environment variable prefix for every setting.
const envPrefix = "METABO"

// newViper builds a Viper instance with the engine's standard settings:
// YAML files, METABO_ env prefix, automatic env binding and a "." → "_"
// key replacer so that "database.host" resolves to METABO_DATABASE_HOST.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	registerDefaults(v)
	return v
}

// registerDefaults makes every key known to viper.  Unmarshal only consults
// the environment for keys viper has seen, so env-only deployments depend on
// this list being complete.
func registerDefaults(v *viper.Viper) {
	v.SetDefault("database.host", DefaultDBHost)
	v.SetDefault("database.port", DefaultDBPort)
	v.SetDefault("database.user", DefaultDBUser)
	v.SetDefault("database.password", "")
	v.SetDefault("database.db_name", DefaultDBName)
	v.SetDefault("database.ssl_mode", DefaultDBSSLMode)
	v.SetDefault("database.max_open_conns", DefaultDBMaxOpenConns)
	v.SetDefault("database.max_idle_conns", DefaultDBMaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", DefaultDBConnMaxLifetime)
	v.SetDefault("database.conn_max_idle_time", DefaultDBConnMaxIdleTime)
	v.SetDefault("database.statement_timeout", DefaultDBStatementTimeout)
	v.SetDefault("database.migration_path", DefaultMigrationPath)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", DefaultRedisAddr)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", DefaultRedisPoolSize)
	v.SetDefault("redis.dial_timeout", DefaultRedisDialTimeout)
	v.SetDefault("redis.read_timeout", DefaultRedisReadTimeout)
	v.SetDefault("redis.write_timeout", DefaultRedisWriteTimeout)
	v.SetDefault("redis.key_prefix", DefaultRedisKeyPrefix)
	v.SetDefault("redis.detail_ttl", DefaultRedisDetailTTL)
	v.SetDefault("redis.publication_ttl", DefaultRedisPublicationTTL)
	v.SetDefault("redis.autocomplete_ttl", DefaultRedisAutocompleteTTL)

	v.SetDefault("search.default_limit", DefaultSearchLimit)
	v.SetDefault("search.autocomplete_limit", DefaultAutocompleteLimit)
	v.SetDefault("search.autocomplete_min_length", DefaultAutocompleteMinLength)
	v.SetDefault("search.similarity_threshold", DefaultSimilarityThreshold)
	v.SetDefault("search.prefix_candidates", DefaultPrefixCandidates)
	v.SetDefault("search.candidate_multiplier", DefaultCandidateMultiplier)
	v.SetDefault("search.max_similarity_candidates", DefaultMaxSimilarityCandidates)
	v.SetDefault("search.validity_cache_size", DefaultValidityCacheSize)
	v.SetDefault("search.warmup_concurrency", DefaultWarmupConcurrency)

	v.SetDefault("vocabulary.name_marker", "")
	v.SetDefault("vocabulary.accession_marker", "")
	v.SetDefault("vocabulary.synonym_marker", "")
	v.SetDefault("vocabulary.term_role_marker", "")

	v.SetDefault("publications.reference_types", DefaultReferenceTypes)

	v.SetDefault("pubmed.enabled", true)
	v.SetDefault("pubmed.base_url", DefaultPubMedBaseURL)
	v.SetDefault("pubmed.tool", DefaultPubMedTool)
	v.SetDefault("pubmed.email", "")
	v.SetDefault("pubmed.timeout", DefaultPubMedTimeout)

	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.format", DefaultLogFormat)

	v.SetDefault("metrics.namespace", DefaultMetricsNamespace)
	v.SetDefault("metrics.addr", "")
}

// Load reads the YAML file at configPath, merges METABO_* environment
// overrides, applies defaults and validates the result.
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}

	return unmarshalAndFinalize(v)
}

// LoadFromEnv builds a Config from METABO_* environment variables and
// defaults only.
//
//	METABO_<SECTION>_<FIELD>   e.g.  METABO_DATABASE_HOST, METABO_REDIS_ENABLED
func LoadFromEnv() (*Config, error) {
	return unmarshalAndFinalize(newViper())
}

func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal configuration: %w", err)
	}

	ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return cfg, nil
}

// MustLoad wraps Load and panics on error.
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}

package config

import "time"

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultDBHost             = "localhost"
	DefaultDBPort             = 5432
	DefaultDBName             = "metabo"
	DefaultDBUser             = "metabo"
	DefaultDBSSLMode          = "disable"
	DefaultDBMaxOpenConns     = 25
	DefaultDBMaxIdleConns     = 10
	DefaultDBConnMaxLifetime  = 30 * time.Minute
	DefaultDBConnMaxIdleTime  = 5 * time.Minute
	DefaultDBStatementTimeout = 30 * time.Second
	DefaultMigrationPath      = ""

	DefaultRedisAddr            = "localhost:6379"
	DefaultRedisPoolSize        = 10
	DefaultRedisDialTimeout     = 5 * time.Second
	DefaultRedisReadTimeout     = 3 * time.Second
	DefaultRedisWriteTimeout    = 3 * time.Second
	DefaultRedisKeyPrefix       = "metabo:"
	DefaultRedisDetailTTL       = 30 * time.Minute
	DefaultRedisPublicationTTL  = 6 * time.Hour
	DefaultRedisAutocompleteTTL = 5 * time.Minute

	DefaultSearchLimit             = 20
	DefaultAutocompleteLimit       = 10
	DefaultAutocompleteMinLength   = 2
	DefaultSimilarityThreshold     = 0.3
	DefaultPrefixCandidates        = 500
	DefaultCandidateMultiplier     = 2
	DefaultMaxSimilarityCandidates = 5000
	DefaultValidityCacheSize       = 1024
	DefaultWarmupConcurrency       = 2

	DefaultPubMedBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"
	DefaultPubMedTool    = "metabo-search"
	DefaultPubMedTimeout = 10 * time.Second

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultMetricsNamespace = "metabo"
)

// DefaultReferenceTypes are the bibliographic reference types that count as
// publications.  Both carry PubMed identifiers.
var DefaultReferenceTypes = []string{"pubmed", "medline"}

// ApplyDefaults fills every zero-value field in cfg with its default.
// Explicitly configured values are left unchanged.  Boolean switches cannot
// be defaulted here; loader.go registers them with viper instead.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Database ──────────────────────────────────────────────────────────────
	if cfg.Database.Host == "" {
		cfg.Database.Host = DefaultDBHost
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = DefaultDBPort
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = DefaultDBName
	}
	if cfg.Database.User == "" {
		cfg.Database.User = DefaultDBUser
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = DefaultDBSSLMode
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = DefaultDBMaxOpenConns
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = DefaultDBMaxIdleConns
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = DefaultDBConnMaxLifetime
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = DefaultDBConnMaxIdleTime
	}
	if cfg.Database.StatementTimeout == 0 {
		cfg.Database.StatementTimeout = DefaultDBStatementTimeout
	}

	// ── Redis ─────────────────────────────────────────────────────────────────
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.PoolSize == 0 {
		cfg.Redis.PoolSize = DefaultRedisPoolSize
	}
	if cfg.Redis.DialTimeout == 0 {
		cfg.Redis.DialTimeout = DefaultRedisDialTimeout
	}
	if cfg.Redis.ReadTimeout == 0 {
		cfg.Redis.ReadTimeout = DefaultRedisReadTimeout
	}
	if cfg.Redis.WriteTimeout == 0 {
		cfg.Redis.WriteTimeout = DefaultRedisWriteTimeout
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}
	if cfg.Redis.DetailTTL == 0 {
		cfg.Redis.DetailTTL = DefaultRedisDetailTTL
	}
	if cfg.Redis.PublicationTTL == 0 {
		cfg.Redis.PublicationTTL = DefaultRedisPublicationTTL
	}
	if cfg.Redis.AutocompleteTTL == 0 {
		cfg.Redis.AutocompleteTTL = DefaultRedisAutocompleteTTL
	}

	// ── Search ────────────────────────────────────────────────────────────────
	if cfg.Search.DefaultLimit == 0 {
		cfg.Search.DefaultLimit = DefaultSearchLimit
	}
	if cfg.Search.AutocompleteLimit == 0 {
		cfg.Search.AutocompleteLimit = DefaultAutocompleteLimit
	}
	if cfg.Search.AutocompleteMinLength == 0 {
		cfg.Search.AutocompleteMinLength = DefaultAutocompleteMinLength
	}
	if cfg.Search.SimilarityThreshold == 0 {
		cfg.Search.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if cfg.Search.PrefixCandidates == 0 {
		cfg.Search.PrefixCandidates = DefaultPrefixCandidates
	}
	if cfg.Search.CandidateMultiplier == 0 {
		cfg.Search.CandidateMultiplier = DefaultCandidateMultiplier
	}
	if cfg.Search.MaxSimilarityCandidates == 0 {
		cfg.Search.MaxSimilarityCandidates = DefaultMaxSimilarityCandidates
	}
	if cfg.Search.ValidityCacheSize == 0 {
		cfg.Search.ValidityCacheSize = DefaultValidityCacheSize
	}
	if cfg.Search.WarmupConcurrency == 0 {
		cfg.Search.WarmupConcurrency = DefaultWarmupConcurrency
	}

	// ── Publications / PubMed ─────────────────────────────────────────────────
	if len(cfg.Publications.ReferenceTypes) == 0 {
		cfg.Publications.ReferenceTypes = append([]string(nil), DefaultReferenceTypes...)
	}
	if cfg.PubMed.BaseURL == "" {
		cfg.PubMed.BaseURL = DefaultPubMedBaseURL
	}
	if cfg.PubMed.Tool == "" {
		cfg.PubMed.Tool = DefaultPubMedTool
	}
	if cfg.PubMed.Timeout == 0 {
		cfg.PubMed.Timeout = DefaultPubMedTimeout
	}

	// ── Log / Metrics ─────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
}

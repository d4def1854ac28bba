package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

func TestApplyDefaults_NilSafe(t *testing.T) {
	assert.NotPanics(t, func() { ApplyDefaults(nil) })
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := &Config{}
	cfg.Search.CandidateMultiplier = 5
	cfg.Publications.ReferenceTypes = []string{"doi"}
	ApplyDefaults(cfg)

	assert.Equal(t, 5, cfg.Search.CandidateMultiplier)
	assert.Equal(t, []string{"doi"}, cfg.Publications.ReferenceTypes)
	assert.Equal(t, DefaultSearchLimit, cfg.Search.DefaultLimit)
	assert.Equal(t, DefaultSimilarityThreshold, cfg.Search.SimilarityThreshold)
}

func TestApplyDefaults_ReferenceTypesAreCopied(t *testing.T) {
	cfg := validConfig()
	cfg.Publications.ReferenceTypes[0] = "mutated"
	assert.Equal(t, "pubmed", DefaultReferenceTypes[0])
}

func TestValidate_Defaults(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidate_Errors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"db host", func(c *Config) { c.Database.Host = "" }, "database.host"},
		{"db port", func(c *Config) { c.Database.Port = 70000 }, "database.port"},
		{"db name", func(c *Config) { c.Database.DBName = "" }, "database.db_name"},
		{"pool", func(c *Config) { c.Database.MaxOpenConns = 0 }, "max_open_conns"},
		{"redis addr", func(c *Config) { c.Redis.Enabled = true; c.Redis.Addr = "" }, "redis.addr"},
		{"redis db", func(c *Config) { c.Redis.DB = -1 }, "redis.db"},
		{"limit", func(c *Config) { c.Search.DefaultLimit = 0 }, "default_limit"},
		{"prefix candidates", func(c *Config) { c.Search.PrefixCandidates = 0 }, "prefix_candidates"},
		{"multiplier", func(c *Config) { c.Search.CandidateMultiplier = 0 }, "candidate_multiplier"},
		{"threshold", func(c *Config) { c.Search.SimilarityThreshold = -0.1 }, "similarity_threshold"},
		{"candidates", func(c *Config) { c.Search.MaxSimilarityCandidates = 0 }, "max_similarity_candidates"},
		{"reference types", func(c *Config) { c.Publications.ReferenceTypes = nil }, "reference_types"},
		{"pubmed url", func(c *Config) { c.PubMed.Enabled = true; c.PubMed.BaseURL = "" }, "pubmed.base_url"},
		{"log level", func(c *Config) { c.Log.Level = "trace" }, "log.level"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"namespace", func(c *Config) { c.Metrics.Namespace = "" }, "metrics.namespace"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

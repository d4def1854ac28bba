package cli

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/metabo-search/internal/config"
	"github.com/turtacn/metabo-search/internal/domain/vocabulary"
	"github.com/turtacn/metabo-search/pkg/errors"
)

func TestNewRootCommand_Structure(t *testing.T) {
	cmd := NewRootCommand(nil)

	assert.Equal(t, "metabo", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotEmpty(t, cmd.Long)

	names := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"search", "compound", "publications", "autocomplete", "terms", "migrate", "bench"} {
		assert.True(t, names[want], "missing subcommand %q", want)
	}
}

func TestNewRootCommand_GlobalFlags(t *testing.T) {
	cmd := NewRootCommand(nil)
	pf := cmd.PersistentFlags()

	for _, name := range []string{"config", "log-level", "output", "no-color", "timeout"} {
		assert.NotNil(t, pf.Lookup(name), "missing flag %q", name)
	}
	assert.Equal(t, "c", pf.Lookup("config").Shorthand)
	assert.Equal(t, "o", pf.Lookup("output").Shorthand)
	assert.Equal(t, "text", pf.Lookup("output").DefValue)
	assert.Equal(t, "30s", pf.Lookup("timeout").DefValue)
}

func TestPersistentPreRun_RejectsUnknownOutput(t *testing.T) {
	svc := &MockService{}
	run := runCLI(t, svc, "-o", "yaml", "search", "ethanol")

	require.Error(t, run.err)
	assert.Contains(t, run.err.Error(), "unsupported output format")
	assert.Zero(t, run.builds)
}

func TestPersistentPreRun_BadConfigPath(t *testing.T) {
	root := NewRootCommand(nil)
	root.SetArgs([]string{"--config", "/nonexistent/metabo.yaml", "terms", "x"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config initialization failed")
}

func TestGetCLIContext_Missing(t *testing.T) {
	cmd := NewRootCommand(nil)
	cmd.SetContext(context.Background())

	_, err := GetCLIContext(cmd)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInternal))
}

func TestWithRuntime_FactoryFailure(t *testing.T) {
	run := &cliRun{}
	factory := func(context.Context, *CLIContext) (*Runtime, error) {
		run.builds++
		return nil, stderrors.New("dial tcp 127.0.0.1:5432: connection refused")
	}

	got := runWithFactory(t, factory, run, "terms", "alias")
	require.Error(t, got.err)
	assert.True(t, errors.IsCode(got.err, errors.ErrCodeServiceUnavailable))
	assert.Contains(t, got.err.Error(), "connection refused")
	assert.Equal(t, 1, got.builds)
}

func TestRuntime_CloseOrder(t *testing.T) {
	var order []string
	rt := &Runtime{closers: []func() error{
		func() error { order = append(order, "db"); return stderrors.New("db close failed") },
		func() error { order = append(order, "redis"); return stderrors.New("redis close failed") },
	}}

	err := rt.Close()
	assert.EqualError(t, err, "redis close failed")
	assert.Equal(t, []string{"redis", "db"}, order)
	assert.NoError(t, rt.Close(), "closers run once")

	_, ok := rt.DBStats()
	assert.False(t, ok)
}

func TestMarkersFromConfig(t *testing.T) {
	m := markersFromConfig(config.VocabularyConfig{TermRoleMarker: "OM:9999"})

	want := vocabulary.DefaultMarkers()
	want.TermRole = "OM:9999"
	assert.Equal(t, want, m)
}

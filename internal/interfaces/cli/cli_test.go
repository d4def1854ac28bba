package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/metabo-search/internal/application/search"
	"github.com/turtacn/metabo-search/internal/domain/compound"
	"github.com/turtacn/metabo-search/internal/domain/vocabulary"
)

const testConfigYAML = `
database:
  host: "localhost"
  db_name: "metabo_test"
log:
  level: "error"
`

// MockService is a testify mock of search.Service.
type MockService struct {
	mock.Mock
}

func (m *MockService) Search(ctx context.Context, q search.Query) ([]compound.CompoundRecord, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]compound.CompoundRecord), args.Error(1)
}

func (m *MockService) SearchByText(ctx context.Context, q search.Query) ([]compound.CompoundRecord, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]compound.CompoundRecord), args.Error(1)
}

func (m *MockService) SearchBySubstructure(ctx context.Context, q search.Query) ([]compound.CompoundRecord, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]compound.CompoundRecord), args.Error(1)
}

func (m *MockService) SearchBySimilarity(ctx context.Context, q search.SimilarityQuery) ([]compound.SimilarityResult, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]compound.SimilarityResult), args.Error(1)
}

func (m *MockService) Dispatch(ctx context.Context, mode search.Mode, q search.SimilarityQuery) ([]compound.SimilarityResult, error) {
	args := m.Called(ctx, mode, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]compound.SimilarityResult), args.Error(1)
}

func (m *MockService) Autocomplete(ctx context.Context, query string, limit int) ([]compound.Suggestion, error) {
	args := m.Called(ctx, query, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]compound.Suggestion), args.Error(1)
}

func (m *MockService) GetByEntityKey(ctx context.Context, entityKey string) (*compound.CompoundRecord, error) {
	args := m.Called(ctx, entityKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*compound.CompoundRecord), args.Error(1)
}

func (m *MockService) GetByCanonicalID(ctx context.Context, canonicalID int64) (*compound.CompoundRecord, error) {
	args := m.Called(ctx, canonicalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*compound.CompoundRecord), args.Error(1)
}

func (m *MockService) GetPublications(ctx context.Context, entityKey string) ([]string, error) {
	args := m.Called(ctx, entityKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockService) GetLiterature(ctx context.Context, entityKey string) (*compound.Literature, error) {
	args := m.Called(ctx, entityKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*compound.Literature), args.Error(1)
}

func (m *MockService) SearchTerms(ctx context.Context, query string, limit int) ([]vocabulary.CvTerm, error) {
	args := m.Called(ctx, query, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]vocabulary.CvTerm), args.Error(1)
}

func (m *MockService) Warmup(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// cliRun is the outcome of one command invocation.
type cliRun struct {
	stdout string
	stderr string
	err    error
	// builds counts factory invocations.
	builds int
}

func writeTestConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "metabo.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfigYAML), 0o600))
	return path
}

// runCLI executes the root command against svc with a throwaway config.
func runCLI(t *testing.T, svc search.Service, args ...string) cliRun {
	t.Helper()

	run := cliRun{}
	factory := func(context.Context, *CLIContext) (*Runtime, error) {
		run.builds++
		return &Runtime{Search: svc}, nil
	}
	return runWithFactory(t, factory, &run, args...)
}

func runWithFactory(t *testing.T, factory RuntimeFactory, run *cliRun, args ...string) cliRun {
	t.Helper()

	var stdout, stderr bytes.Buffer
	root := NewRootCommand(factory)
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append([]string{"--config", writeTestConfig(t), "--no-color"}, args...))

	run.err = root.Execute()
	run.stdout = stdout.String()
	run.stderr = stderr.String()
	return *run
}

func f64(v float64) *float64 { return &v }

func ethanol() compound.CompoundRecord {
	formula := "C2H6O"
	return compound.CompoundRecord{
		EntityID:        2,
		CanonicalID:     102,
		Formula:         &formula,
		MolecularWeight: f64(46.07),
		LogP:            f64(-0.31),
		Identifiers: []compound.IdentifierInfo{
			{Type: "Common name", TypeAccession: "OM:0010", Value: "Ethanol"},
		},
	}
}

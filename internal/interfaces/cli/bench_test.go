package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/metabo-search/internal/application/search"
	"github.com/turtacn/metabo-search/internal/domain/compound"
	"github.com/turtacn/metabo-search/pkg/errors"
)

func queryText(text string) interface{} {
	return mock.MatchedBy(func(q search.SimilarityQuery) bool { return q.Text == text })
}

func TestBenchCmd(t *testing.T) {
	svc := &MockService{}
	svc.On("Warmup", mock.Anything).Return(nil).Once()
	svc.On("Dispatch", mock.Anything, search.ModeSubstructure, queryText("CCO")).
		Return([]compound.SimilarityResult{{CompoundRecord: ethanol()}}, nil)
	svc.On("Dispatch", mock.Anything, search.ModeSubstructure, queryText("C1CC")).
		Return([]compound.SimilarityResult{}, nil)
	svc.On("Dispatch", mock.Anything, search.ModeSubstructure, queryText("boom")).
		Return(nil, errors.New(errors.CodeDatabaseError, "canceling statement due to statement timeout"))

	file := filepath.Join(t.TempDir(), "queries.txt")
	require.NoError(t, os.WriteFile(file, []byte("# smoke set\nC1CC\n\nboom\n"), 0o600))

	run := runCLI(t, svc, "-o", "json", "bench", "CCO",
		"--file", file, "--mode", "substructure", "--repeat", "3", "--concurrency", "2")
	require.NoError(t, run.err)

	var report benchReport
	require.NoError(t, json.Unmarshal([]byte(run.stdout), &report))
	assert.Equal(t, "substructure", report.Mode)
	assert.Equal(t, 9, report.Queries)
	assert.Equal(t, 3, report.Errors)
	assert.Equal(t, 3, report.Empty)
	assert.Equal(t, 2, report.Workers)
	assert.LessOrEqual(t, report.P50, report.P95)
	assert.LessOrEqual(t, report.P95, report.Max)

	svc.AssertExpectations(t)
	svc.AssertNumberOfCalls(t, "Dispatch", 9)
}

func TestBenchCmd_WarmupFailure(t *testing.T) {
	svc := &MockService{}
	svc.On("Warmup", mock.Anything).Return(errors.New(errors.ErrCodeMarkersMissing, "marker OM:0002 not found"))

	run := runCLI(t, svc, "bench", "CCO")
	require.Error(t, run.err)
	assert.True(t, errors.IsCode(run.err, errors.ErrCodeBootstrapFailed))
	svc.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything, mock.Anything)
}

func TestBenchCmd_Validation(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no queries", []string{"bench"}},
		{"zero concurrency", []string{"bench", "CCO", "--concurrency", "0"}},
		{"zero repeat", []string{"bench", "CCO", "--repeat", "0"}},
		{"missing file", []string{"bench", "--file", "/nonexistent/queries.txt"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := runCLI(t, &MockService{}, tt.args...)
			require.Error(t, run.err)
			assert.True(t, errors.IsCode(run.err, errors.ErrCodeValidation), "got %v", run.err)
			assert.Zero(t, run.builds)
		})
	}
}

func TestBenchCmd_TextReport(t *testing.T) {
	svc := &MockService{}
	svc.On("Warmup", mock.Anything).Return(nil)
	svc.On("Dispatch", mock.Anything, search.ModeText, mock.Anything).
		Return([]compound.SimilarityResult{{CompoundRecord: ethanol()}}, nil)

	run := runCLI(t, svc, "bench", "ethanol", "propanol")
	require.NoError(t, run.err)
	assert.Contains(t, run.stdout, "p95")
	assert.Contains(t, run.stdout, "Queries")
}

func TestPercentile(t *testing.T) {
	var ds []time.Duration
	for i := 1; i <= 20; i++ {
		ds = append(ds, time.Duration(i)*time.Millisecond)
	}

	assert.Equal(t, 10*time.Millisecond, percentile(ds, 0.50))
	assert.Equal(t, 19*time.Millisecond, percentile(ds, 0.95))
	assert.Equal(t, 20*time.Millisecond, percentile(ds, 1))
	assert.Equal(t, 1*time.Millisecond, percentile(ds, 0))
	assert.Zero(t, percentile(nil, 0.5))
}

func TestReadQueries(t *testing.T) {
	file := filepath.Join(t.TempDir(), "q.txt")
	require.NoError(t, os.WriteFile(file, []byte("  CCO  \n#comment\n\nc1ccccc1\n"), 0o600))

	got, err := readQueries(file)
	require.NoError(t, err)
	assert.Equal(t, []string{"CCO", "c1ccccc1"}, got)
}

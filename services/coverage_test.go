package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoverageAnalyzerFiltersUnknownAreas(t *testing.T) {
	llm := &fakeLLM{replies: []string{`{
		"covered_areas": [
			{"area": "Technical Skills", "explanation": "migration work"},
			{"area": "Juggling", "explanation": "not a real competency"},
			{"area": "Technical Skills", "explanation": "repeated"}
		],
		"total_areas_covered": 3,
		"summary": "mixed bag"
	}`}}
	analyzer := NewCoverageAnalyzer(llm)

	report, err := analyzer.Analyze(context.Background(), "I migrated the billing system.")
	require.NoError(t, err)
	require.Len(t, report.CoveredAreas, 1)
	assert.Equal(t, "Technical Skills", report.CoveredAreas[0].Area)
	// The count follows the filtered set, not the model's claim.
	assert.Equal(t, 1, report.TotalAreasCovered)
	assert.Equal(t, "mixed bag", report.Summary)
}

func TestCoverageAnalyzerEmptyReport(t *testing.T) {
	llm := &fakeLLM{replies: []string{`{"covered_areas": [], "total_areas_covered": 0, "summary": "No specific competency areas clearly identified"}`}}
	analyzer := NewCoverageAnalyzer(llm)

	report, err := analyzer.Analyze(context.Background(), "hello")
	require.NoError(t, err)
	assert.Empty(t, report.CoveredAreas)
	assert.Zero(t, report.TotalAreasCovered)
}

func TestCoverageAnalyzerBackendFailure(t *testing.T) {
	llm := &fakeLLM{err: errors.New("backend down")}
	analyzer := NewCoverageAnalyzer(llm)

	_, err := analyzer.Analyze(context.Background(), "anything")
	require.ErrorIs(t, err, ErrGenerationUnavailable)
}

func TestCoverageAnalyzerUnparseableReply(t *testing.T) {
	llm := &fakeLLM{replies: []string{"I could not classify that, sorry."}}
	analyzer := NewCoverageAnalyzer(llm)

	_, err := analyzer.Analyze(context.Background(), "anything")
	require.ErrorIs(t, err, ErrGenerationUnavailable)
}

package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/kaizenhr/appraise/backend/models"
)

// CoveredArea is one competency area a piece of text was judged to address.
type CoveredArea struct {
	Area        string `json:"area"`
	Explanation string `json:"explanation"`
}

// CoverageReport is the classification of a single utterance against the
// competency catalog. Ephemeral: recomputed after every user turn and never
// persisted beyond the latest value.
type CoverageReport struct {
	CoveredAreas      []CoveredArea `json:"covered_areas"`
	TotalAreasCovered int           `json:"total_areas_covered"`
	Summary           string        `json:"summary"`
}

// CoverageAnalyzer classifies one utterance at a time. Each analysis is
// independent of prior turns; callers may merge reports themselves.
type CoverageAnalyzer struct {
	llm TextGenerator
}

func NewCoverageAnalyzer(llm TextGenerator) *CoverageAnalyzer {
	return &CoverageAnalyzer{llm: llm}
}

// Analyze returns the coverage report for the utterance, or a generation
// failure. Callers treat failure as "no new coverage information", never as
// fatal to the interview.
func (a *CoverageAnalyzer) Analyze(ctx context.Context, utterance string) (*CoverageReport, error) {
	reply, err := a.llm.Complete(ctx, []models.ChatMessage{
		{Role: models.ChatRoleUser, Content: buildCoveragePrompt(utterance)},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationUnavailable, err)
	}

	var report CoverageReport
	if err := json.Unmarshal([]byte(extractJSON(reply)), &report); err != nil {
		slog.Warn("Coverage reply is not valid JSON", "error", err, "reply_length", len(reply))
		return nil, fmt.Errorf("%w: unparseable coverage report", ErrGenerationUnavailable)
	}

	// Drop areas the catalog does not know and deduplicate, then keep the
	// count consistent with the filtered set.
	seen := make(map[string]bool)
	filtered := report.CoveredAreas[:0]
	for _, covered := range report.CoveredAreas {
		if _, ok := AreaByName(covered.Area); !ok {
			slog.Warn("Coverage report names unknown area", "area", covered.Area)
			continue
		}
		if seen[covered.Area] {
			continue
		}
		seen[covered.Area] = true
		filtered = append(filtered, covered)
	}
	report.CoveredAreas = filtered
	report.TotalAreasCovered = len(filtered)

	slog.Info("Coverage analyzed", "areas_covered", report.TotalAreasCovered)
	return &report, nil
}

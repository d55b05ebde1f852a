package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/kaizenhr/appraise/backend/models"
)

// QuestionPlanner produces the ordered interview question plan, one question
// per competency area. Called once per appraisal; the plan is fixed once
// generated. A returned count that differs from the catalog size is accepted
// as-is: the conduct prompt embeds whatever the planner produced.
type QuestionPlanner interface {
	Generate(ctx context.Context) ([]models.PlannedQuestion, error)
}

// GeneratedPlanner asks the text generation backend for the plan.
type GeneratedPlanner struct {
	llm TextGenerator
}

func NewGeneratedPlanner(llm TextGenerator) *GeneratedPlanner {
	return &GeneratedPlanner{llm: llm}
}

func (p *GeneratedPlanner) Generate(ctx context.Context) ([]models.PlannedQuestion, error) {
	reply, err := p.llm.Complete(ctx, []models.ChatMessage{
		{Role: models.ChatRoleSystem, Content: buildQuestionPlanPrompt()},
		{Role: models.ChatRoleUser, Content: "Generate the questions."},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationUnavailable, err)
	}

	var parsed struct {
		Questions []models.PlannedQuestion `json:"questions"`
	}
	if err := json.Unmarshal([]byte(extractJSON(reply)), &parsed); err != nil {
		slog.Warn("Question plan reply is not valid JSON", "error", err, "reply_length", len(reply))
		return nil, fmt.Errorf("%w: unparseable question plan", ErrGenerationUnavailable)
	}
	if len(parsed.Questions) == 0 {
		return nil, fmt.Errorf("%w: empty question plan", ErrGenerationUnavailable)
	}

	if len(parsed.Questions) != len(CompetencyCatalog) {
		slog.Warn("Question plan size differs from catalog", "questions", len(parsed.Questions), "areas", len(CompetencyCatalog))
	}

	slog.Info("Question plan generated", "questions", len(parsed.Questions))
	return parsed.Questions, nil
}

// StaticPlanner returns a fixed question per catalog area without calling the
// generation backend. Selected by configuration for deterministic interviews.
type StaticPlanner struct{}

func NewStaticPlanner() *StaticPlanner {
	return &StaticPlanner{}
}

func (p *StaticPlanner) Generate(ctx context.Context) ([]models.PlannedQuestion, error) {
	questions := make([]models.PlannedQuestion, len(CompetencyCatalog))
	for i, area := range CompetencyCatalog {
		questions[i] = models.PlannedQuestion{
			Question: fmt.Sprintf("Looking at the last few months, can you share specific examples of your contributions in %s (%s)?", area.Name, area.Definition),
		}
	}
	return questions, nil
}

// NewQuestionPlanner selects a planner strategy by name.
func NewQuestionPlanner(strategy string, llm TextGenerator) QuestionPlanner {
	switch strategy {
	case "static":
		return NewStaticPlanner()
	default:
		return NewGeneratedPlanner(llm)
	}
}

package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratedPlannerParsesReply(t *testing.T) {
	llm := &fakeLLM{replies: []string{
		"```json\n{\"questions\": [{\"question\": \"First?\"}, {\"question\": \"Second?\"}]}\n```",
	}}
	planner := NewGeneratedPlanner(llm)

	questions, err := planner.Generate(context.Background())
	require.NoError(t, err)
	require.Len(t, questions, 2)
	assert.Equal(t, "First?", questions[0].Question)
	assert.Equal(t, "Second?", questions[1].Question)
}

func TestGeneratedPlannerBackendFailure(t *testing.T) {
	llm := &fakeLLM{err: errors.New("backend down")}
	planner := NewGeneratedPlanner(llm)

	_, err := planner.Generate(context.Background())
	require.ErrorIs(t, err, ErrGenerationUnavailable)
}

func TestGeneratedPlannerUnparseableReply(t *testing.T) {
	llm := &fakeLLM{replies: []string{"Sure! Here are some questions for you."}}
	planner := NewGeneratedPlanner(llm)

	_, err := planner.Generate(context.Background())
	require.ErrorIs(t, err, ErrGenerationUnavailable)
}

func TestGeneratedPlannerEmptyPlan(t *testing.T) {
	llm := &fakeLLM{replies: []string{`{"questions": []}`}}
	planner := NewGeneratedPlanner(llm)

	_, err := planner.Generate(context.Background())
	require.ErrorIs(t, err, ErrGenerationUnavailable)
}

func TestStaticPlannerCoversEveryArea(t *testing.T) {
	planner := NewStaticPlanner()

	questions, err := planner.Generate(context.Background())
	require.NoError(t, err)
	require.Len(t, questions, len(CompetencyCatalog))
	for i, area := range CompetencyCatalog {
		assert.Contains(t, questions[i].Question, area.Name)
	}
}

func TestNewQuestionPlannerSelectsStrategy(t *testing.T) {
	assert.IsType(t, &StaticPlanner{}, NewQuestionPlanner("static", nil))
	assert.IsType(t, &GeneratedPlanner{}, NewQuestionPlanner("generated", &fakeLLM{}))
	assert.IsType(t, &GeneratedPlanner{}, NewQuestionPlanner("", &fakeLLM{}))
}

package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaizenhr/appraise/backend/models"
)

// fakeLLM replays scripted replies in order. A non-nil block channel makes
// Complete wait until the channel is closed.
type fakeLLM struct {
	mu      sync.Mutex
	replies []string
	err     error
	block   chan struct{}
	calls   [][]models.ChatMessage
}

func (f *fakeLLM) Complete(ctx context.Context, messages []models.ChatMessage) (string, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, messages)
	if f.err != nil {
		return "", f.err
	}
	if len(f.replies) == 0 {
		return "", errors.New("no scripted reply")
	}
	reply := f.replies[0]
	f.replies = f.replies[1:]
	return reply, nil
}

type statusUpdate struct {
	from, to models.AppraisalStatus
	extra    map[string]interface{}
}

// fakeStore is an in-memory AppraisalStore tracking every write.
type fakeStore struct {
	mu sync.Mutex

	draft         *models.AppraisalSubmission
	createCalls   int
	savedHistory  [][]models.ChatMessage
	savedPlan     []models.PlannedQuestion
	statusUpdates []statusUpdate
	analysis      string
	deleted       bool

	findErr   error
	convErr   error
	statusErr error
}

func (f *fakeStore) FindDraft(ctx context.Context, employeeID string) (*models.AppraisalSubmission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	if f.draft != nil && f.draft.Status == models.StatusDraft {
		return f.draft, nil
	}
	return nil, nil
}

func (f *fakeStore) CreateDraft(ctx context.Context, employeeID string) (*models.AppraisalSubmission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	f.draft = &models.AppraisalSubmission{
		ID:         uuid.New().String(),
		EmployeeID: employeeID,
		Status:     models.StatusDraft,
	}
	return f.draft, nil
}

func (f *fakeStore) UpdateConversation(ctx context.Context, id string, history []models.ChatMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.convErr != nil {
		return f.convErr
	}
	f.savedHistory = append(f.savedHistory, history)
	return nil
}

func (f *fakeStore) UpdateQuestionPlan(ctx context.Context, id string, questions []models.PlannedQuestion) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.savedPlan = questions
	return nil
}

func (f *fakeStore) UpdateStatus(ctx context.Context, id string, from, to models.AppraisalStatus, extra map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return f.statusErr
	}
	f.statusUpdates = append(f.statusUpdates, statusUpdate{from: from, to: to, extra: extra})
	if f.draft != nil {
		f.draft.Status = to
	}
	return nil
}

func (f *fakeStore) SaveAnalysis(ctx context.Context, id string, analysis string, from, to models.AppraisalStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.analysis = analysis
	f.statusUpdates = append(f.statusUpdates, statusUpdate{from: from, to: to})
	if f.draft != nil {
		f.draft.Status = to
	}
	return nil
}

func (f *fakeStore) DeleteAllForEmployee(ctx context.Context, employeeID string, statuses []models.AppraisalStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = true
	f.draft = nil
	return nil
}

func (f *fakeStore) lastHistory() []models.ChatMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.savedHistory) == 0 {
		return nil
	}
	return f.savedHistory[len(f.savedHistory)-1]
}

// fixedPlanner returns a canned plan or a canned error.
type fixedPlanner struct {
	questions []models.PlannedQuestion
	err       error
}

func (p *fixedPlanner) Generate(ctx context.Context) ([]models.PlannedQuestion, error) {
	return p.questions, p.err
}

func testEmployee() *models.User {
	return &models.User{
		ID:        uuid.New().String(),
		Email:     "alice@example.com",
		FirstName: "Alice",
		LastName:  "Kovacs",
		Role:      models.RoleEmployee,
	}
}

func noCoverageAnalyzer() *CoverageAnalyzer {
	return NewCoverageAnalyzer(&fakeLLM{replies: []string{
		`{"covered_areas": [], "total_areas_covered": 0, "summary": "nothing"}`,
		`{"covered_areas": [], "total_areas_covered": 0, "summary": "nothing"}`,
		`{"covered_areas": [], "total_areas_covered": 0, "summary": "nothing"}`,
	}})
}

func testPlanner() *fixedPlanner {
	return &fixedPlanner{questions: []models.PlannedQuestion{
		{Question: "What have you shipped recently?"},
		{Question: "How do you collaborate with your team?"},
	}}
}

func newTestEngine(store *fakeStore, llm *fakeLLM, planner QuestionPlanner, analyzer *CoverageAnalyzer) *ConversationEngine {
	return NewConversationEngine(testEmployee(), store, llm, planner, analyzer, time.Second)
}

func TestInitializeCreatesDraftAndWelcome(t *testing.T) {
	store := &fakeStore{}
	engine := newTestEngine(store, &fakeLLM{}, testPlanner(), noCoverageAnalyzer())

	require.NoError(t, engine.Initialize(context.Background()))

	assert.Equal(t, 1, store.createCalls)
	assert.Len(t, store.savedPlan, 2)

	snapshot := engine.Snapshot()
	assert.Equal(t, "interviewing", snapshot.State)
	require.Len(t, snapshot.Messages, 1)
	assert.Equal(t, models.ChatRoleAssistant, snapshot.Messages[0].Role)
	assert.Contains(t, snapshot.Messages[0].Content, "Alice")
	assert.Contains(t, snapshot.Messages[0].Content, "What have you shipped recently?")

	// The welcome is presentation only, the stored transcript stays empty.
	assert.Empty(t, store.savedHistory)
}

func TestInitializeIsIdempotent(t *testing.T) {
	store := &fakeStore{}
	engine := newTestEngine(store, &fakeLLM{}, testPlanner(), noCoverageAnalyzer())

	require.NoError(t, engine.Initialize(context.Background()))
	require.NoError(t, engine.Initialize(context.Background()))

	assert.Equal(t, 1, store.createCalls)
	assert.Len(t, engine.Snapshot().Messages, 1)
}

func TestInitializeResumesStoredTranscript(t *testing.T) {
	history, err := json.Marshal([]models.ChatMessage{
		{Role: models.ChatRoleUser, Content: "I led the billing migration."},
		{Role: models.ChatRoleAssistant, Content: `{"question": "What was the hardest part?"}`},
	})
	require.NoError(t, err)
	plan, err := json.Marshal([]models.PlannedQuestion{{Question: "What have you shipped recently?"}})
	require.NoError(t, err)

	store := &fakeStore{draft: &models.AppraisalSubmission{
		ID:                  uuid.New().String(),
		Status:              models.StatusDraft,
		ConversationHistory: history,
		PlannedQuestions:    plan,
	}}
	planner := &fixedPlanner{err: errors.New("should not be called")}
	engine := newTestEngine(store, &fakeLLM{}, planner, noCoverageAnalyzer())

	require.NoError(t, engine.Initialize(context.Background()))

	assert.Equal(t, 0, store.createCalls)
	snapshot := engine.Snapshot()
	assert.Equal(t, "interviewing", snapshot.State)
	require.Len(t, snapshot.Messages, 2)
	// No second welcome, and the structured reply renders as its question text.
	assert.Equal(t, "I led the billing migration.", snapshot.Messages[0].Content)
	assert.Equal(t, "What was the hardest part?", snapshot.Messages[1].Content)
}

func TestInitializeResumesCompletedConversation(t *testing.T) {
	history, err := json.Marshal([]models.ChatMessage{
		{Role: models.ChatRoleUser, Content: "That covers everything."},
		{Role: models.ChatRoleAssistant, Content: "Thank you for your answers, this is the end of our conversation."},
	})
	require.NoError(t, err)

	store := &fakeStore{draft: &models.AppraisalSubmission{
		ID:                  uuid.New().String(),
		Status:              models.StatusDraft,
		ConversationHistory: history,
	}}
	engine := newTestEngine(store, &fakeLLM{}, testPlanner(), noCoverageAnalyzer())

	require.NoError(t, engine.Initialize(context.Background()))

	snapshot := engine.Snapshot()
	assert.Equal(t, "awaiting_submission", snapshot.State)
	assert.True(t, snapshot.IsComplete)
}

func TestInitializeFallsBackWhenPlanningFails(t *testing.T) {
	store := &fakeStore{}
	llm := &fakeLLM{replies: []string{`{"question": "Tell me more."}`}}
	planner := &fixedPlanner{err: ErrGenerationUnavailable}
	engine := newTestEngine(store, llm, planner, noCoverageAnalyzer())

	require.NoError(t, engine.Initialize(context.Background()))

	snapshot := engine.Snapshot()
	require.Len(t, snapshot.Messages, 1)
	assert.Contains(t, snapshot.Messages[0].Content, "What would you like to tell me")

	// The interview still accepts turns without a plan.
	require.NoError(t, engine.SubmitTurn(context.Background(), "I shipped the new importer."))
	assert.Len(t, engine.Snapshot().Messages, 3)
}

func TestSubmitTurnPersistsTranscript(t *testing.T) {
	store := &fakeStore{}
	llm := &fakeLLM{replies: []string{`{"question": "How do you collaborate with your team?"}`}}
	engine := newTestEngine(store, llm, testPlanner(), noCoverageAnalyzer())
	require.NoError(t, engine.Initialize(context.Background()))

	require.NoError(t, engine.SubmitTurn(context.Background(), "  I led the billing migration.  "))

	saved := store.lastHistory()
	require.Len(t, saved, 2)
	assert.Equal(t, models.ChatMessage{Role: models.ChatRoleUser, Content: "I led the billing migration."}, saved[0])
	assert.Equal(t, models.ChatRoleAssistant, saved[1].Role)

	snapshot := engine.Snapshot()
	require.Len(t, snapshot.Messages, 3)
	assert.Equal(t, "How do you collaborate with your team?", snapshot.Messages[2].Content)
	for _, msg := range snapshot.Messages {
		assert.False(t, msg.IsTyping)
	}
}

func TestSubmitTurnIgnoresEmptyInput(t *testing.T) {
	store := &fakeStore{}
	engine := newTestEngine(store, &fakeLLM{}, testPlanner(), noCoverageAnalyzer())
	require.NoError(t, engine.Initialize(context.Background()))

	require.NoError(t, engine.SubmitTurn(context.Background(), "   \n\t "))

	assert.Empty(t, store.savedHistory)
	assert.Len(t, engine.Snapshot().Messages, 1)
}

func TestSubmitTurnGenerationFailureKeepsUserMessage(t *testing.T) {
	store := &fakeStore{}
	llm := &fakeLLM{err: errors.New("backend down")}
	engine := newTestEngine(store, llm, testPlanner(), noCoverageAnalyzer())
	require.NoError(t, engine.Initialize(context.Background()))

	err := engine.SubmitTurn(context.Background(), "I led the billing migration.")
	require.ErrorIs(t, err, ErrGenerationUnavailable)

	// The user message survives the rollback, no assistant turn dangles and
	// nothing was persisted. The interview stays open for a retry.
	snapshot := engine.Snapshot()
	assert.Equal(t, "interviewing", snapshot.State)
	require.Len(t, snapshot.Messages, 2)
	assert.Equal(t, models.ChatRoleUser, snapshot.Messages[1].Role)
	assert.Empty(t, store.savedHistory)

	llm.mu.Lock()
	llm.err = nil
	llm.replies = []string{`{"question": "And what else?"}`}
	llm.mu.Unlock()

	require.NoError(t, engine.SubmitTurn(context.Background(), "Retrying my answer."))
	require.Len(t, store.lastHistory(), 3)
}

func TestSubmitTurnRejectsConcurrentTurn(t *testing.T) {
	store := &fakeStore{}
	block := make(chan struct{})
	llm := &fakeLLM{replies: []string{`{"question": "Next?"}`}, block: block}
	analyzer := NewCoverageAnalyzer(&fakeLLM{replies: []string{
		`{"covered_areas": [], "total_areas_covered": 0, "summary": "nothing"}`,
	}})
	engine := newTestEngine(store, llm, testPlanner(), analyzer)
	require.NoError(t, engine.Initialize(context.Background()))

	done := make(chan error, 1)
	go func() {
		done <- engine.SubmitTurn(context.Background(), "First answer.")
	}()

	require.Eventually(t, func() bool {
		return engine.Snapshot().IsLoading
	}, time.Second, 5*time.Millisecond)

	// The snapshot shows the optimistic user message and a typing placeholder.
	snapshot := engine.Snapshot()
	require.Len(t, snapshot.Messages, 3)
	assert.True(t, snapshot.Messages[2].IsTyping)

	err := engine.SubmitTurn(context.Background(), "Second answer.")
	require.ErrorIs(t, err, ErrConcurrentTurn)

	close(block)
	require.NoError(t, <-done)

	// Only the first turn made it into the transcript, the placeholder is gone.
	saved := store.lastHistory()
	require.Len(t, saved, 2)
	assert.Equal(t, "First answer.", saved[0].Content)
	for _, msg := range engine.Snapshot().Messages {
		assert.False(t, msg.IsTyping)
	}
}

func TestCompletionHeuristicClosesInterview(t *testing.T) {
	store := &fakeStore{}
	reply := "Thank you for sharing all of this, we have reached the end of the interview."
	llm := &fakeLLM{replies: []string{reply}}
	engine := newTestEngine(store, llm, testPlanner(), noCoverageAnalyzer())
	require.NoError(t, engine.Initialize(context.Background()))

	require.NoError(t, engine.SubmitTurn(context.Background(), "That covers everything I wanted to say."))

	snapshot := engine.Snapshot()
	assert.Equal(t, "awaiting_submission", snapshot.State)
	assert.True(t, snapshot.IsComplete)
	assert.Equal(t, closingMessage, snapshot.Messages[len(snapshot.Messages)-1].Content)

	// The canned closing is presentation only; the stored transcript ends with
	// the model's own reply.
	saved := store.lastHistory()
	require.Len(t, saved, 2)
	assert.Equal(t, reply, saved[1].Content)

	err := engine.SubmitTurn(context.Background(), "One more thing.")
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestSubmitStampsDateAndRunsAnalysis(t *testing.T) {
	store := &fakeStore{}
	llm := &fakeLLM{replies: []string{
		"Thank you, we are at the end of the conversation.",
		"Strengths: ownership of the billing migration.",
	}}
	engine := newTestEngine(store, llm, testPlanner(), noCoverageAnalyzer())
	require.NoError(t, engine.Initialize(context.Background()))
	require.NoError(t, engine.SubmitTurn(context.Background(), "I led the billing migration."))

	require.NoError(t, engine.Submit(context.Background()))

	require.Len(t, store.statusUpdates, 2)
	assert.Equal(t, models.StatusDraft, store.statusUpdates[0].from)
	assert.Equal(t, models.StatusSubmitted, store.statusUpdates[0].to)
	assert.Contains(t, store.statusUpdates[0].extra, "submission_date")
	assert.Equal(t, models.StatusSubmitted, store.statusUpdates[1].from)
	assert.Equal(t, models.StatusAIAnalyzed, store.statusUpdates[1].to)
	assert.Equal(t, "Strengths: ownership of the billing migration.", store.analysis)

	assert.Equal(t, "submitted", engine.Snapshot().State)
	require.ErrorIs(t, engine.Submit(context.Background()), ErrInvalidTransition)
}

func TestSubmitBeforeCompletionRejected(t *testing.T) {
	store := &fakeStore{}
	engine := newTestEngine(store, &fakeLLM{}, testPlanner(), noCoverageAnalyzer())
	require.NoError(t, engine.Initialize(context.Background()))

	require.ErrorIs(t, engine.Submit(context.Background()), ErrInvalidTransition)
	assert.Empty(t, store.statusUpdates)
}

func TestSubmitAnalysisFailureDoesNotBlockSubmission(t *testing.T) {
	store := &fakeStore{}
	llm := &fakeLLM{replies: []string{"Thank you, this is the end."}}
	engine := newTestEngine(store, llm, testPlanner(), noCoverageAnalyzer())
	require.NoError(t, engine.Initialize(context.Background()))
	require.NoError(t, engine.SubmitTurn(context.Background(), "All done."))

	// No scripted reply left, the analysis call fails.
	require.NoError(t, engine.Submit(context.Background()))

	require.Len(t, store.statusUpdates, 1)
	assert.Equal(t, models.StatusSubmitted, store.statusUpdates[0].to)
	assert.Empty(t, store.analysis)
	assert.Equal(t, "submitted", engine.Snapshot().State)
}

func TestSubmitStoreFailureIsRetryable(t *testing.T) {
	store := &fakeStore{statusErr: errors.New("connection reset")}
	llm := &fakeLLM{replies: []string{
		"Thank you, this is the end.",
		"Analysis text.",
	}}
	engine := newTestEngine(store, llm, testPlanner(), noCoverageAnalyzer())
	require.NoError(t, engine.Initialize(context.Background()))
	require.NoError(t, engine.SubmitTurn(context.Background(), "All done."))

	err := engine.Submit(context.Background())
	require.ErrorIs(t, err, ErrPersistenceUnavailable)
	assert.Equal(t, "awaiting_submission", engine.Snapshot().State)

	store.mu.Lock()
	store.statusErr = nil
	store.mu.Unlock()
	require.NoError(t, engine.Submit(context.Background()))
	assert.Equal(t, "submitted", engine.Snapshot().State)
}

func TestCancelDeletesAndResets(t *testing.T) {
	store := &fakeStore{}
	llm := &fakeLLM{replies: []string{`{"question": "Next?"}`}}
	engine := newTestEngine(store, llm, testPlanner(), noCoverageAnalyzer())
	require.NoError(t, engine.Initialize(context.Background()))
	require.NoError(t, engine.SubmitTurn(context.Background(), "Some answer."))

	require.NoError(t, engine.Cancel(context.Background()))

	assert.True(t, store.deleted)
	snapshot := engine.Snapshot()
	assert.Equal(t, "uninitialized", snapshot.State)
	assert.Empty(t, snapshot.Messages)
	assert.Zero(t, snapshot.Progress)

	// Starting over creates a fresh draft.
	require.NoError(t, engine.Initialize(context.Background()))
	assert.Equal(t, 2, store.createCalls)
}

func TestCoverageDrivesProgress(t *testing.T) {
	store := &fakeStore{}
	llm := &fakeLLM{replies: []string{
		`{"question": "Next?"}`,
		`{"question": "And then?"}`,
	}}
	analyzer := NewCoverageAnalyzer(&fakeLLM{replies: []string{
		`{"covered_areas": [{"area": "Technical Skills", "explanation": "migration work"}, {"area": "Teamwork", "explanation": "pairing"}], "total_areas_covered": 2, "summary": "two areas"}`,
		`{"covered_areas": [{"area": "Technical Skills", "explanation": "more migration work"}], "total_areas_covered": 1, "summary": "one area"}`,
	}})
	engine := newTestEngine(store, llm, testPlanner(), analyzer)
	require.NoError(t, engine.Initialize(context.Background()))

	require.NoError(t, engine.SubmitTurn(context.Background(), "I migrated the billing system with my team."))
	snapshot := engine.Snapshot()
	require.NotNil(t, snapshot.Coverage)
	assert.Equal(t, 2, snapshot.Coverage.TotalAreasCovered)
	assert.InDelta(t, 25.0, snapshot.Progress, 0.01)

	// A later turn re-covering a known area reports it alone but progress is
	// the union across turns, so it does not move backward.
	require.NoError(t, engine.SubmitTurn(context.Background(), "More migration details."))
	snapshot = engine.Snapshot()
	assert.Equal(t, 1, snapshot.Coverage.TotalAreasCovered)
	assert.InDelta(t, 25.0, snapshot.Progress, 0.01)
}

func TestCoverageFailureDoesNotFailTurn(t *testing.T) {
	store := &fakeStore{}
	llm := &fakeLLM{replies: []string{`{"question": "Next?"}`}}
	analyzer := NewCoverageAnalyzer(&fakeLLM{err: errors.New("classifier down")})
	engine := newTestEngine(store, llm, testPlanner(), analyzer)
	require.NoError(t, engine.Initialize(context.Background()))

	require.NoError(t, engine.SubmitTurn(context.Background(), "I migrated the billing system."))

	snapshot := engine.Snapshot()
	assert.Nil(t, snapshot.Coverage)
	assert.Zero(t, snapshot.Progress)
	require.Len(t, store.lastHistory(), 2)
}

func TestDisplayText(t *testing.T) {
	tests := []struct {
		name     string
		msg      models.ChatMessage
		expected string
	}{
		{
			name:     "structured assistant reply",
			msg:      models.ChatMessage{Role: models.ChatRoleAssistant, Content: `{"question": "What did you ship?"}`},
			expected: "What did you ship?",
		},
		{
			name:     "fenced structured reply",
			msg:      models.ChatMessage{Role: models.ChatRoleAssistant, Content: "```json\n{\"question\": \"What did you ship?\"}\n```"},
			expected: "What did you ship?",
		},
		{
			name:     "free text assistant reply",
			msg:      models.ChatMessage{Role: models.ChatRoleAssistant, Content: "Thanks for sharing that."},
			expected: "Thanks for sharing that.",
		},
		{
			name:     "user message with braces stays verbatim",
			msg:      models.ChatMessage{Role: models.ChatRoleUser, Content: `{"question": "not a question"}`},
			expected: `{"question": "not a question"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, displayText(tt.msg))
		})
	}
}

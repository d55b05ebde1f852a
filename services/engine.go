package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kaizenhr/appraise/backend/models"
)

// EngineState is the conversation engine's own state, distinct from the
// persisted appraisal status lifecycle.
type EngineState int

const (
	StateUninitialized EngineState = iota
	StateInterviewing
	StateAwaitingSubmission
	StateSubmitted
)

func (s EngineState) String() string {
	switch s {
	case StateInterviewing:
		return "interviewing"
	case StateAwaitingSubmission:
		return "awaiting_submission"
	case StateSubmitted:
		return "submitted"
	default:
		return "uninitialized"
	}
}

// AppraisalStore is the persistence boundary the engine writes through.
// Implemented by repository.GORMRepository; faked in tests.
type AppraisalStore interface {
	FindDraft(ctx context.Context, employeeID string) (*models.AppraisalSubmission, error)
	CreateDraft(ctx context.Context, employeeID string) (*models.AppraisalSubmission, error)
	UpdateConversation(ctx context.Context, id string, history []models.ChatMessage) error
	UpdateQuestionPlan(ctx context.Context, id string, questions []models.PlannedQuestion) error
	UpdateStatus(ctx context.Context, id string, from, to models.AppraisalStatus, extra map[string]interface{}) error
	SaveAnalysis(ctx context.Context, id string, analysis string, from, to models.AppraisalStatus) error
	DeleteAllForEmployee(ctx context.Context, employeeID string, statuses []models.AppraisalStatus) error
}

// UIMessage is one entry of the observable message list. The typing
// placeholder is ephemeral and never reaches the persisted transcript.
type UIMessage struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	IsTyping  bool      `json:"is_typing,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Snapshot is the engine state exposed to the presentation layer.
type Snapshot struct {
	AppraisalID string          `json:"appraisal_id"`
	State       string          `json:"state"`
	Messages    []UIMessage     `json:"messages"`
	IsLoading   bool            `json:"is_loading"`
	IsComplete  bool            `json:"is_complete"`
	Progress    float64         `json:"progress"`
	Coverage    *CoverageReport `json:"coverage,omitempty"`
}

// ConversationEngine conducts one employee's appraisal interview: it owns the
// transcript, decides when the conversation is complete and drives the
// appraisal record through draft -> submitted (-> ai_analyzed).
//
// One pending generation call at a time: new turns are rejected while a turn
// is in flight, and the persistence write for a turn happens under the same
// lock, so writes for one appraisal are strictly ordered.
type ConversationEngine struct {
	mu sync.Mutex

	employee *models.User
	store    AppraisalStore
	llm      TextGenerator
	planner  QuestionPlanner
	analyzer *CoverageAnalyzer

	genTimeout time.Duration

	state       EngineState
	appraisalID string
	transcript  []models.ChatMessage
	messages    []UIMessage
	questions   []models.PlannedQuestion
	coverage    *CoverageReport
	touched     map[string]bool // union of covered area names across turns, drives progress
	inFlight    bool
}

func NewConversationEngine(
	employee *models.User,
	store AppraisalStore,
	llm TextGenerator,
	planner QuestionPlanner,
	analyzer *CoverageAnalyzer,
	genTimeout time.Duration,
) *ConversationEngine {
	if genTimeout <= 0 {
		genTimeout = 60 * time.Second
	}
	return &ConversationEngine{
		employee:   employee,
		store:      store,
		llm:        llm,
		planner:    planner,
		analyzer:   analyzer,
		genTimeout: genTimeout,
		touched:    make(map[string]bool),
	}
}

// Initialize looks up or creates the draft appraisal and emits exactly one
// assistant message for a fresh conversation. Idempotent: calling it again
// on an initialized engine changes nothing.
func (e *ConversationEngine) Initialize(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateUninitialized {
		return nil
	}

	draft, err := e.store.FindDraft(ctx, e.employee.ID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}
	if draft == nil {
		draft, err = e.store.CreateDraft(ctx, e.employee.ID)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
		}
	}
	e.appraisalID = draft.ID

	transcript, err := draft.Transcript()
	if err != nil {
		slog.Warn("Stored transcript is unreadable, starting fresh", "error", err, "appraisal_id", draft.ID)
		transcript = nil
	}
	questions, err := draft.QuestionPlan()
	if err != nil {
		slog.Warn("Stored question plan is unreadable", "error", err, "appraisal_id", draft.ID)
		questions = nil
	}
	e.questions = questions

	if len(transcript) > 0 {
		e.resume(ctx, transcript)
		return nil
	}

	if len(e.questions) == 0 {
		e.planQuestions(ctx)
	}

	var welcome string
	if len(e.questions) > 0 {
		welcome = buildWelcomeMessage(e.employee.FirstName, e.questions[0].Question)
	} else {
		welcome = buildFallbackWelcome(e.employee.FirstName)
	}
	e.messages = append(e.messages, newUIMessage(models.ChatRoleAssistant, welcome))
	e.state = StateInterviewing

	slog.Info("Appraisal conversation initialized", "appraisal_id", e.appraisalID, "employee_id", e.employee.ID, "questions", len(e.questions))
	return nil
}

// resume restores a prior transcript verbatim. No new welcome message; the
// question plan is regenerated only when it was never persisted.
func (e *ConversationEngine) resume(ctx context.Context, transcript []models.ChatMessage) {
	e.transcript = transcript
	e.messages = e.messages[:0]
	for _, msg := range transcript {
		e.messages = append(e.messages, newUIMessage(msg.Role, displayText(msg)))
	}

	if len(e.questions) == 0 {
		e.planQuestions(ctx)
	}

	last := transcript[len(transcript)-1]
	if last.Role == models.ChatRoleAssistant && isConversationComplete(last.Content) {
		e.state = StateAwaitingSubmission
	} else {
		e.state = StateInterviewing
	}

	slog.Info("Appraisal conversation resumed", "appraisal_id", e.appraisalID, "turns", len(transcript), "state", e.state.String())
}

// planQuestions calls the planner once and persists the plan best-effort.
// Planner failure is non-fatal: the interview falls back to the generic
// opening and an empty plan in the conduct prompt.
func (e *ConversationEngine) planQuestions(ctx context.Context) {
	pctx, cancel := context.WithTimeout(ctx, e.genTimeout)
	defer cancel()

	questions, err := e.planner.Generate(pctx)
	if err != nil {
		slog.Warn("Question planning failed, falling back to open conversation", "error", err, "appraisal_id", e.appraisalID)
		return
	}
	e.questions = questions

	if err := e.store.UpdateQuestionPlan(ctx, e.appraisalID, questions); err != nil {
		slog.Warn("Failed to persist question plan", "error", err, "appraisal_id", e.appraisalID)
	}
}

// SubmitTurn appends the user's message, obtains the assistant's reply and
// persists the updated transcript. Empty input is ignored. At most one turn
// may be in flight; extras are dropped with ErrConcurrentTurn. On generation
// failure the transcript keeps the user message only and the turn may be
// retried.
func (e *ConversationEngine) SubmitTurn(ctx context.Context, text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	e.mu.Lock()
	if e.state != StateInterviewing {
		e.mu.Unlock()
		return fmt.Errorf("%w: cannot send a turn in state %s", ErrInvalidTransition, e.state)
	}
	if e.inFlight {
		e.mu.Unlock()
		return ErrConcurrentTurn
	}
	e.inFlight = true

	// Optimistic append, before any network call.
	e.transcript = append(e.transcript, models.ChatMessage{Role: models.ChatRoleUser, Content: trimmed})
	e.messages = append(e.messages, newUIMessage(models.ChatRoleUser, trimmed))
	e.messages = append(e.messages, typingPlaceholder())

	prompt := make([]models.ChatMessage, 0, len(e.transcript)+1)
	prompt = append(prompt, models.ChatMessage{Role: models.ChatRoleSystem, Content: buildInterviewConductPrompt(e.questions)})
	prompt = append(prompt, e.transcript...)
	appraisalID := e.appraisalID
	e.mu.Unlock()

	// Coverage analysis runs alongside reply generation; its errors are
	// swallowed. Both must resolve before the next turn is accepted.
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.genTimeout)
		defer cancel()

		report, err := e.analyzer.Analyze(cctx, trimmed)
		if err != nil {
			slog.Warn("Coverage analysis failed", "error", err, "appraisal_id", appraisalID)
			return
		}
		e.mu.Lock()
		e.coverage = report
		for _, area := range report.CoveredAreas {
			e.touched[area.Area] = true
		}
		e.mu.Unlock()
	}()

	gctx, cancel := context.WithTimeout(ctx, e.genTimeout)
	reply, genErr := e.llm.Complete(gctx, prompt)
	cancel()
	wg.Wait()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.inFlight = false
	e.removeTypingPlaceholder()

	if genErr != nil {
		// Roll back to no dangling assistant turn; the user's message stays
		// so they can retry.
		slog.Error("Reply generation failed", "error", genErr, "appraisal_id", appraisalID)
		return fmt.Errorf("%w: %v", ErrGenerationUnavailable, genErr)
	}

	e.transcript = append(e.transcript, models.ChatMessage{Role: models.ChatRoleAssistant, Content: reply})
	e.messages = append(e.messages, newUIMessage(models.ChatRoleAssistant, displayText(models.ChatMessage{Role: models.ChatRoleAssistant, Content: reply})))

	// Write-through after every successful turn: the durability point.
	persistErr := e.store.UpdateConversation(ctx, appraisalID, append([]models.ChatMessage(nil), e.transcript...))

	if isConversationComplete(reply) {
		e.messages = append(e.messages, newUIMessage(models.ChatRoleAssistant, closingMessage))
		e.state = StateAwaitingSubmission
		slog.Info("Appraisal conversation complete", "appraisal_id", appraisalID, "turns", len(e.transcript))
	}

	if persistErr != nil {
		return fmt.Errorf("%w: %v", ErrPersistenceUnavailable, persistErr)
	}
	return nil
}

// Submit commits the appraisal: draft -> submitted, then a best-effort
// analysis pass over the full transcript that advances submitted ->
// ai_analyzed when it succeeds. Analysis failure never blocks submission.
func (e *ConversationEngine) Submit(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateAwaitingSubmission {
		return fmt.Errorf("%w: cannot submit in state %s", ErrInvalidTransition, e.state)
	}

	if err := ValidateTransition(models.StatusDraft, models.StatusSubmitted); err != nil {
		return err
	}
	err := e.store.UpdateStatus(ctx, e.appraisalID, models.StatusDraft, models.StatusSubmitted, map[string]interface{}{
		"submission_date": time.Now().Truncate(24 * time.Hour),
	})
	if err != nil {
		// Retryable: state stays AwaitingSubmission, record stays draft.
		return fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}
	e.state = StateSubmitted
	slog.Info("Appraisal submitted", "appraisal_id", e.appraisalID, "employee_id", e.employee.ID)

	e.analyzeTranscript(ctx)
	return nil
}

// analyzeTranscript runs the post-submission analysis over the user's side of
// the conversation. Best-effort: every failure is logged and swallowed, the
// submission has already committed.
func (e *ConversationEngine) analyzeTranscript(ctx context.Context) {
	var userTurns []string
	for _, msg := range e.transcript {
		if msg.Role == models.ChatRoleUser {
			userTurns = append(userTurns, msg.Content)
		}
	}
	if len(userTurns) == 0 {
		return
	}

	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.genTimeout)
	defer cancel()

	analysis, err := e.llm.Complete(actx, []models.ChatMessage{
		{Role: models.ChatRoleSystem, Content: interviewerRole},
		{Role: models.ChatRoleUser, Content: buildTranscriptAnalysisPrompt(strings.Join(userTurns, "\n\n"))},
	})
	if err != nil {
		slog.Warn("Post-submission analysis failed", "error", err, "appraisal_id", e.appraisalID)
		return
	}

	if err := e.store.SaveAnalysis(ctx, e.appraisalID, analysis, models.StatusSubmitted, models.StatusAIAnalyzed); err != nil {
		slog.Warn("Failed to save analysis", "error", err, "appraisal_id", e.appraisalID)
		return
	}
	slog.Info("Appraisal analysis saved", "appraisal_id", e.appraisalID)
}

// Cancel deletes the employee's draft and submitted appraisals outright and
// resets the engine. Destructive start-over semantics, not a transition.
func (e *ConversationEngine) Cancel(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	err := e.store.DeleteAllForEmployee(ctx, e.employee.ID, []models.AppraisalStatus{
		models.StatusDraft,
		models.StatusSubmitted,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}

	e.state = StateUninitialized
	e.appraisalID = ""
	e.transcript = nil
	e.messages = nil
	e.questions = nil
	e.coverage = nil
	e.touched = make(map[string]bool)
	e.inFlight = false

	slog.Info("Appraisals cancelled", "employee_id", e.employee.ID)
	return nil
}

// Snapshot returns the observable state for the presentation layer.
func (e *ConversationEngine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	messages := append([]UIMessage(nil), e.messages...)
	progress := float64(len(e.touched)) / float64(len(CompetencyCatalog)) * 100
	if progress > 100 {
		progress = 100
	}

	return Snapshot{
		AppraisalID: e.appraisalID,
		State:       e.state.String(),
		Messages:    messages,
		IsLoading:   e.inFlight,
		IsComplete:  e.state == StateAwaitingSubmission || e.state == StateSubmitted,
		Progress:    progress,
		Coverage:    e.coverage,
	}
}

func (e *ConversationEngine) removeTypingPlaceholder() {
	kept := e.messages[:0]
	for _, msg := range e.messages {
		if !msg.IsTyping {
			kept = append(kept, msg)
		}
	}
	e.messages = kept
}

func newUIMessage(role, content string) UIMessage {
	return UIMessage{
		ID:        uuid.New().String(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

func typingPlaceholder() UIMessage {
	return UIMessage{
		ID:        uuid.New().String(),
		Role:      models.ChatRoleAssistant,
		IsTyping:  true,
		Timestamp: time.Now(),
	}
}

// displayText extracts the display form of a transcript message: structured
// {"question": ...} assistant replies show only the question text, everything
// else shows raw content.
func displayText(msg models.ChatMessage) string {
	if msg.Role != models.ChatRoleAssistant {
		return msg.Content
	}
	var parsed struct {
		Question string `json:"question"`
	}
	if err := json.Unmarshal([]byte(extractJSON(msg.Content)), &parsed); err == nil && parsed.Question != "" {
		return parsed.Question
	}
	return msg.Content
}

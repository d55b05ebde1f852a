package services

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kaizenhr/appraise/backend/models"
	"github.com/kaizenhr/appraise/backend/repository"
)

// AppraisalEndpoints is the REST surface over the conversation engine and the
// appraisal records: the employee chat commands, the team lead review queue
// and the HR aggregates.
type AppraisalEndpoints struct {
	repo    *repository.GORMRepository
	manager *EngineManager
}

func NewAppraisalEndpoints(repo *repository.GORMRepository, manager *EngineManager) *AppraisalEndpoints {
	return &AppraisalEndpoints{
		repo:    repo,
		manager: manager,
	}
}

type SendMessageRequest struct {
	Content string `json:"content"`
}

type ReviewRequest struct {
	Comments string                 `json:"comments"`
	Status   models.AppraisalStatus `json:"status"`
}

func (e *AppraisalEndpoints) RegisterRoutes(r chi.Router, auth *AuthService) {
	r.Route("/appraisals", func(r chi.Router) {
		// Employee chat commands
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(models.RoleEmployee))
			r.Get("/", e.MyAppraisalsHandler)
			r.Route("/chat", func(r chi.Router) {
				r.Post("/start", e.StartChatHandler)
				r.Get("/", e.ChatStateHandler)
				r.Post("/message", e.SendMessageHandler)
				r.Post("/submit", e.SubmitChatHandler)
				r.Delete("/", e.CancelChatHandler)
			})
		})

		// Team lead review queue
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(models.RoleTeamLead))
			r.Get("/team", e.TeamAppraisalsHandler)
			r.Post("/{id}/review", e.ReviewHandler)
		})

		// HR aggregates
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(models.RoleHR))
			r.Get("/all", e.AllAppraisalsHandler)
			r.Get("/stats", e.StatsHandler)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(models.RoleHR))
		r.Get("/employees", e.EmployeesHandler)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// writeEngineError maps the engine's error taxonomy onto HTTP statuses.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrConcurrentTurn):
		http.Error(w, "A turn is already in flight", http.StatusConflict)
	case errors.Is(err, ErrInvalidTransition):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ErrGenerationUnavailable):
		http.Error(w, "Text generation is unavailable, please retry", http.StatusBadGateway)
	case errors.Is(err, ErrPersistenceUnavailable):
		http.Error(w, "Storage is unavailable, please retry", http.StatusServiceUnavailable)
	default:
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
}

func (e *AppraisalEndpoints) StartChatHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	engine := e.manager.Get(user)
	if err := engine.Initialize(r.Context()); err != nil {
		slog.Error("Failed to initialize appraisal conversation", "error", err, "employee_id", user.ID)
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, engine.Snapshot())
}

func (e *AppraisalEndpoints) ChatStateHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, e.manager.Get(user).Snapshot())
}

func (e *AppraisalEndpoints) SendMessageHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	engine := e.manager.Get(user)
	e.manager.Touch(user.ID)
	if err := engine.SubmitTurn(r.Context(), req.Content); err != nil {
		slog.Error("Turn failed", "error", err, "employee_id", user.ID)
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, engine.Snapshot())
}

func (e *AppraisalEndpoints) SubmitChatHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	engine := e.manager.Get(user)
	if err := engine.Submit(r.Context()); err != nil {
		slog.Error("Submit failed", "error", err, "employee_id", user.ID)
		writeEngineError(w, err)
		return
	}
	e.manager.Remove(user.ID)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Appraisal submitted successfully",
	})
}

func (e *AppraisalEndpoints) CancelChatHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	engine := e.manager.Get(user)
	if err := engine.Cancel(r.Context()); err != nil {
		slog.Error("Cancel failed", "error", err, "employee_id", user.ID)
		writeEngineError(w, err)
		return
	}
	e.manager.Remove(user.ID)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Appraisals cancelled",
	})
}

func (e *AppraisalEndpoints) MyAppraisalsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	appraisals, err := e.repo.GetAppraisalsByEmployee(r.Context(), user.ID)
	if err != nil {
		http.Error(w, "Failed to get appraisals", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"appraisals": appraisals,
		"count":      len(appraisals),
	})
}

func (e *AppraisalEndpoints) TeamAppraisalsHandler(w http.ResponseWriter, r *http.Request) {
	appraisals, err := e.repo.GetAppraisalsByStatus(r.Context(), []models.AppraisalStatus{
		models.StatusSubmitted,
		models.StatusTeamLeadReview,
	})
	if err != nil {
		http.Error(w, "Failed to get team appraisals", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"appraisals": appraisals,
		"count":      len(appraisals),
	})
}

// ReviewHandler records a team lead review. The requested status must be a
// defined forward move; a record that already reached ai_analyzed keeps its
// status and only the review fields are written.
func (e *AppraisalEndpoints) ReviewHandler(w http.ResponseWriter, r *http.Request) {
	reviewer, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	appraisalID := chi.URLParam(r, "id")

	var req ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Status != models.StatusTeamLeadReview && req.Status != models.StatusTeamLeadApproved {
		http.Error(w, "Invalid review status", http.StatusBadRequest)
		return
	}

	appraisal, err := e.repo.GetAppraisal(r.Context(), appraisalID)
	if err != nil {
		http.Error(w, "Failed to get appraisal", http.StatusInternalServerError)
		return
	}
	if appraisal == nil {
		http.Error(w, "Appraisal not found", http.StatusNotFound)
		return
	}

	target := req.Status
	switch {
	case CanTransition(appraisal.Status, target):
		// status advances with the review
	case appraisal.Status == models.StatusAIAnalyzed:
		// analysis got there first; record the review without moving status
		target = appraisal.Status
	case appraisal.Status == target:
		// re-review in place, e.g. updating comments while in review
	default:
		http.Error(w, ErrInvalidTransition.Error(), http.StatusConflict)
		return
	}

	if err := e.repo.UpdateTeamLeadReview(r.Context(), appraisalID, reviewer.ID, req.Comments, appraisal.Status, target); err != nil {
		http.Error(w, "Failed to save review", http.StatusInternalServerError)
		return
	}

	slog.Info("Appraisal reviewed", "appraisal_id", appraisalID, "reviewer_id", reviewer.ID, "status", target)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Review saved",
		"status":  target,
	})
}

func (e *AppraisalEndpoints) AllAppraisalsHandler(w http.ResponseWriter, r *http.Request) {
	appraisals, err := e.repo.GetAllAppraisals(r.Context())
	if err != nil {
		http.Error(w, "Failed to get appraisals", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"appraisals": appraisals,
		"count":      len(appraisals),
	})
}

func (e *AppraisalEndpoints) StatsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := e.repo.GetAppraisalStats(r.Context())
	if err != nil {
		http.Error(w, "Failed to get stats", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func (e *AppraisalEndpoints) EmployeesHandler(w http.ResponseWriter, r *http.Request) {
	employees, err := e.repo.GetUsersByRole(r.Context(), models.RoleEmployee)
	if err != nil {
		http.Error(w, "Failed to get employees", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"employees": employees,
		"count":     len(employees),
	})
}

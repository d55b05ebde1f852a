package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/kaizenhr/appraise/backend/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Appraisal operations. The conversation transcript is one JSON document per
// record and every write overwrites it whole, so callers must serialize
// writes per appraisal id.

// FindDraft returns the employee's current draft appraisal, or nil when none
// exists. At most one draft per employee exists at any time.
func (r *GORMRepository) FindDraft(ctx context.Context, employeeID string) (*models.AppraisalSubmission, error) {
	var appraisal models.AppraisalSubmission
	err := r.db.WithContext(ctx).
		Where("employee_id = ? AND status = ?", employeeID, models.StatusDraft).
		First(&appraisal).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to find draft appraisal", "error", err, "employee_id", employeeID)
		return nil, err
	}
	return &appraisal, nil
}

// CreateDraft creates a fresh draft appraisal with an empty transcript.
func (r *GORMRepository) CreateDraft(ctx context.Context, employeeID string) (*models.AppraisalSubmission, error) {
	appraisal := models.AppraisalSubmission{
		EmployeeID: employeeID,
		Status:     models.StatusDraft,
	}
	if err := r.db.WithContext(ctx).Create(&appraisal).Error; err != nil {
		slog.Error("Failed to create draft appraisal", "error", err, "employee_id", employeeID)
		return nil, err
	}
	slog.Info("Draft appraisal created", "appraisal_id", appraisal.ID, "employee_id", employeeID)
	return &appraisal, nil
}

func (r *GORMRepository) GetAppraisal(ctx context.Context, id string) (*models.AppraisalSubmission, error) {
	var appraisal models.AppraisalSubmission
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		Preload("Employee").
		First(&appraisal).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		slog.Error("Failed to get appraisal", "error", err, "appraisal_id", id)
		return nil, err
	}
	return &appraisal, nil
}

func (r *GORMRepository) GetAppraisalsByEmployee(ctx context.Context, employeeID string) ([]models.AppraisalSubmission, error) {
	var appraisals []models.AppraisalSubmission
	err := r.db.WithContext(ctx).
		Where("employee_id = ?", employeeID).
		Order("created_at DESC").
		Find(&appraisals).Error
	if err != nil {
		slog.Error("Failed to get appraisals by employee", "error", err, "employee_id", employeeID)
		return nil, err
	}
	return appraisals, nil
}

// GetAppraisalsByStatus lists appraisals in any of the given statuses, newest
// first, with the owning employee preloaded. Used by the team lead queue.
func (r *GORMRepository) GetAppraisalsByStatus(ctx context.Context, statuses []models.AppraisalStatus) ([]models.AppraisalSubmission, error) {
	var appraisals []models.AppraisalSubmission
	err := r.db.WithContext(ctx).
		Where("status IN ?", statuses).
		Preload("Employee").
		Order("created_at DESC").
		Find(&appraisals).Error
	if err != nil {
		slog.Error("Failed to get appraisals by status", "error", err)
		return nil, err
	}
	return appraisals, nil
}

func (r *GORMRepository) GetAllAppraisals(ctx context.Context) ([]models.AppraisalSubmission, error) {
	var appraisals []models.AppraisalSubmission
	err := r.db.WithContext(ctx).
		Preload("Employee").
		Order("created_at DESC").
		Find(&appraisals).Error
	if err != nil {
		slog.Error("Failed to get all appraisals", "error", err)
		return nil, err
	}
	return appraisals, nil
}

// UpdateConversation overwrites the persisted transcript with the given
// history. This is the durability point of every interview turn.
func (r *GORMRepository) UpdateConversation(ctx context.Context, id string, history []models.ChatMessage) error {
	payload, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("failed to encode conversation history: %w", err)
	}
	if err := r.db.WithContext(ctx).
		Model(&models.AppraisalSubmission{}).
		Where("id = ?", id).
		Update("conversation_history", datatypes.JSON(payload)).Error; err != nil {
		slog.Error("Failed to update conversation history", "error", err, "appraisal_id", id)
		return err
	}
	slog.Info("Conversation history saved", "appraisal_id", id, "turns", len(history))
	return nil
}

// UpdateQuestionPlan persists the generated interview question plan so a
// resumed conversation keeps the same plan.
func (r *GORMRepository) UpdateQuestionPlan(ctx context.Context, id string, questions []models.PlannedQuestion) error {
	payload, err := json.Marshal(questions)
	if err != nil {
		return fmt.Errorf("failed to encode question plan: %w", err)
	}
	if err := r.db.WithContext(ctx).
		Model(&models.AppraisalSubmission{}).
		Where("id = ?", id).
		Update("planned_questions", datatypes.JSON(payload)).Error; err != nil {
		slog.Error("Failed to update question plan", "error", err, "appraisal_id", id)
		return err
	}
	return nil
}

// UpdateStatus moves an appraisal from an expected status to the next one,
// optionally setting extra columns in the same write. The WHERE clause on the
// expected status makes concurrent transitions lose cleanly.
func (r *GORMRepository) UpdateStatus(ctx context.Context, id string, from, to models.AppraisalStatus, extra map[string]interface{}) error {
	updates := map[string]interface{}{"status": to}
	for k, v := range extra {
		updates[k] = v
	}

	result := r.db.WithContext(ctx).
		Model(&models.AppraisalSubmission{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		slog.Error("Failed to update appraisal status", "error", result.Error, "appraisal_id", id, "from", from, "to", to)
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("appraisal %s is not in status %s", id, from)
	}

	slog.Info("Appraisal status updated", "appraisal_id", id, "from", from, "to", to)
	return nil
}

// SaveAnalysis writes the AI analysis blob and stamps the given status. The
// analysis is written exactly once, when the post-submission pass succeeds.
func (r *GORMRepository) SaveAnalysis(ctx context.Context, id string, analysis string, from, to models.AppraisalStatus) error {
	return r.UpdateStatus(ctx, id, from, to, map[string]interface{}{
		"ai_analysis": analysis,
	})
}

// UpdateTeamLeadReview records the reviewer's comments and decision.
func (r *GORMRepository) UpdateTeamLeadReview(ctx context.Context, id string, reviewerID, comments string, from, to models.AppraisalStatus) error {
	now := time.Now()
	return r.UpdateStatus(ctx, id, from, to, map[string]interface{}{
		"team_lead_comments":    comments,
		"team_lead_reviewed_by": reviewerID,
		"team_lead_reviewed_at": now,
	})
}

func (r *GORMRepository) DeleteAppraisal(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.AppraisalSubmission{}).Error; err != nil {
		slog.Error("Failed to delete appraisal", "error", err, "appraisal_id", id)
		return err
	}
	slog.Info("Appraisal deleted", "appraisal_id", id)
	return nil
}

// DeleteAllForEmployee removes every appraisal for the employee that is still
// in one of the given statuses. Destructive start-over semantics.
func (r *GORMRepository) DeleteAllForEmployee(ctx context.Context, employeeID string, statuses []models.AppraisalStatus) error {
	if err := r.db.WithContext(ctx).
		Where("employee_id = ? AND status IN ?", employeeID, statuses).
		Delete(&models.AppraisalSubmission{}).Error; err != nil {
		slog.Error("Failed to delete appraisals for employee", "error", err, "employee_id", employeeID)
		return err
	}
	slog.Info("Appraisals deleted for employee", "employee_id", employeeID)
	return nil
}

// AppraisalStats aggregates counts for the HR dashboard.
type AppraisalStats struct {
	Total        int64                            `json:"total"`
	ByStatus     map[models.AppraisalStatus]int64 `json:"by_status"`
	ByDepartment map[string]int64                 `json:"by_department"`
}

func (r *GORMRepository) GetAppraisalStats(ctx context.Context) (*AppraisalStats, error) {
	stats := &AppraisalStats{
		ByStatus:     make(map[models.AppraisalStatus]int64),
		ByDepartment: make(map[string]int64),
	}

	if err := r.db.WithContext(ctx).
		Model(&models.AppraisalSubmission{}).
		Count(&stats.Total).Error; err != nil {
		slog.Error("Failed to count appraisals", "error", err)
		return nil, err
	}

	var statusRows []struct {
		Status models.AppraisalStatus
		Count  int64
	}
	if err := r.db.WithContext(ctx).
		Model(&models.AppraisalSubmission{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&statusRows).Error; err != nil {
		slog.Error("Failed to count appraisals by status", "error", err)
		return nil, err
	}
	for _, row := range statusRows {
		stats.ByStatus[row.Status] = row.Count
	}

	var deptRows []struct {
		Department string
		Count      int64
	}
	if err := r.db.WithContext(ctx).
		Model(&models.AppraisalSubmission{}).
		Select("users.department, count(*) as count").
		Joins("JOIN users ON users.id = appraisal_submissions.employee_id").
		Group("users.department").
		Scan(&deptRows).Error; err != nil {
		slog.Error("Failed to count appraisals by department", "error", err)
		return nil, err
	}
	for _, row := range deptRows {
		dept := row.Department
		if dept == "" {
			dept = "Unknown"
		}
		stats.ByDepartment[dept] = row.Count
	}

	return stats, nil
}

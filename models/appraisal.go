package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AppraisalStatus is the lifecycle position of an appraisal record. The
// lifecycle only moves forward; the valid transitions live in
// services.AppraisalLifecycle.
type AppraisalStatus string

const (
	StatusDraft            AppraisalStatus = "draft"
	StatusSubmitted        AppraisalStatus = "submitted"
	StatusTeamLeadReview   AppraisalStatus = "team_lead_review"
	StatusTeamLeadApproved AppraisalStatus = "team_lead_approved"
	StatusAIAnalyzed       AppraisalStatus = "ai_analyzed"
	StatusCompleted        AppraisalStatus = "completed"
)

// Message roles inside a conversation transcript.
const (
	ChatRoleSystem    = "system"
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// ChatMessage is one turn of a conversation, both in the persisted
// transcript and on the wire to the text generation backend.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// PlannedQuestion is one interview question from the generated plan.
type PlannedQuestion struct {
	Question string `json:"question"`
}

// AppraisalSubmission is the permanent audit record for one appraisal. The
// conversational interview mutates it only while status is draft; the
// transcript is stored as a single JSON document and overwritten whole on
// every successful turn.
type AppraisalSubmission struct {
	ID                  string          `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	EmployeeID          string          `gorm:"type:uuid;not null;index:idx_appraisal_employee" json:"employee_id"`
	Status              AppraisalStatus `gorm:"not null;default:'draft';check:status IN ('draft', 'submitted', 'team_lead_review', 'team_lead_approved', 'ai_analyzed', 'completed')" json:"status"`
	ConversationHistory datatypes.JSON  `gorm:"type:jsonb" json:"conversation_history,omitempty"`
	PlannedQuestions    datatypes.JSON  `gorm:"type:jsonb" json:"planned_questions,omitempty"`
	RawEmployeeText     datatypes.JSON  `gorm:"type:jsonb" json:"raw_employee_text,omitempty"` // legacy per-competency responses, absent in the conversational flow
	AIAnalysis          *string         `gorm:"type:text" json:"ai_analysis,omitempty"`
	SubmissionDate      *time.Time      `gorm:"type:date" json:"submission_date,omitempty"`
	TeamLeadComments    *string         `gorm:"type:text" json:"team_lead_comments,omitempty"`
	TeamLeadReviewedBy  *string         `gorm:"type:uuid" json:"team_lead_reviewed_by,omitempty"`
	TeamLeadReviewedAt  *time.Time      `json:"team_lead_reviewed_at,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
	DeletedAt           gorm.DeletedAt  `gorm:"index" json:"-"`

	// Relationships
	Employee User `gorm:"foreignKey:EmployeeID" json:"employee,omitempty"`
}

func (AppraisalSubmission) TableName() string {
	return "appraisal_submissions"
}

// Transcript decodes the stored conversation history. An empty column
// decodes to a nil slice.
func (a *AppraisalSubmission) Transcript() ([]ChatMessage, error) {
	if len(a.ConversationHistory) == 0 {
		return nil, nil
	}
	var history []ChatMessage
	if err := json.Unmarshal(a.ConversationHistory, &history); err != nil {
		return nil, fmt.Errorf("failed to decode conversation history: %w", err)
	}
	return history, nil
}

// QuestionPlan decodes the persisted interview question plan, if any.
func (a *AppraisalSubmission) QuestionPlan() ([]PlannedQuestion, error) {
	if len(a.PlannedQuestions) == 0 {
		return nil, nil
	}
	var questions []PlannedQuestion
	if err := json.Unmarshal(a.PlannedQuestions, &questions); err != nil {
		return nil, fmt.Errorf("failed to decode question plan: %w", err)
	}
	return questions, nil
}

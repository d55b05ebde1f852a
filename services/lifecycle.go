package services

import (
	"fmt"

	"github.com/kaizenhr/appraise/backend/models"
)

// AppraisalLifecycle is the status state machine for an appraisal record,
// kept separate from the conversation engine so reviewers and the analysis
// pass can transition records independently of the interview flow.
//
// Two paths lead into ai_analyzed on purpose: the engine's own best-effort
// analysis jumps there straight from submitted, while the reviewed path goes
// through team_lead_review and team_lead_approved first. Analysis can
// complete before or after human review. No transition moves a record
// backward.
var appraisalTransitions = map[models.AppraisalStatus][]models.AppraisalStatus{
	models.StatusDraft:            {models.StatusSubmitted},
	models.StatusSubmitted:        {models.StatusTeamLeadReview, models.StatusAIAnalyzed},
	models.StatusTeamLeadReview:   {models.StatusTeamLeadApproved},
	models.StatusTeamLeadApproved: {models.StatusAIAnalyzed},
	models.StatusAIAnalyzed:       {models.StatusCompleted},
	models.StatusCompleted:        {},
}

// CanTransition reports whether from -> to is a defined forward move.
func CanTransition(from, to models.AppraisalStatus) bool {
	for _, next := range appraisalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns ErrInvalidTransition for any move the lifecycle
// does not define, including every backward move.
func ValidateTransition(from, to models.AppraisalStatus) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

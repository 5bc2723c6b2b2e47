package engine

import "talentline/internal/domain"

// Sticky stages are set by explicit operations (offer, hire, reject,
// administrative override) and must never be recomputed from nested data.
var stickyStages = map[string]bool{
	domain.StageOfferExtended: true,
	domain.StageOfferAccepted: true,
	domain.StageHired:         true,
	domain.StageRejected:      true,
	domain.StageWithdrawn:     true,
}

// IsSticky reports whether a stage is terminal for the resolver.
func IsSticky(stage string) bool { return stickyStages[stage] }

// ResolveOverallStatus maps the candidate's nested collections to a single
// pipeline stage. An interview present at all wins over assessments: the
// scheduling gate only admits interviews once every assessment is evaluated,
// so interview presence means the assessment phase is settled.
func ResolveOverallStatus(c domain.Candidate) string {
	if IsSticky(c.CurrentStatus) {
		return c.CurrentStatus
	}
	if latest := latestInterview(c.Interviews); latest != nil {
		switch latest.Status {
		case domain.ItemEvaluated:
			return domain.StageInterviewEvaluated
		case domain.ItemCompleted:
			return domain.StageInterviewCompleted
		case domain.ItemInProgress:
			return domain.StageInterviewInProgress
		case domain.ItemScheduled:
			return domain.StageInterviewScheduled
		}
		// Cancelled falls through to the assessment stage.
	}
	if latest := latestAssessment(c.Assessments); latest != nil {
		evaluated := latest.Score != nil && latest.Remarks != nil
		switch {
		case latest.Status == domain.ItemCompleted && !evaluated:
			return domain.StageAssessmentCompleted
		case latest.Status == domain.ItemEvaluated || evaluated:
			return domain.StageAssessmentEvaluated
		case latest.Status == domain.ItemInProgress:
			return domain.StageAssessmentInProgress
		case latest.Status == domain.ItemScheduled:
			return domain.StageAssessmentScheduled
		}
	}
	// Nothing to derive from; a freshly applied candidate stays Applied.
	return c.CurrentStatus
}

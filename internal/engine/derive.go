package engine

import (
	"time"

	"talentline/internal/domain"
)

// Status derivation computes an item's status from its scheduled time and
// evaluation fields. It runs lazily on every read because time passing alone
// moves an item Scheduled -> In Progress -> Completed without any mutation.
//
// Rule order matters and is deliberately not collapsed into if/else:
// the start-window check runs first, the completion-threshold check can
// overwrite it, and the score+remarks override runs last.

// DeriveAssessmentStatus returns the assessment with its status recomputed
// against now. An item already Evaluated or Cancelled, or with an unparseable
// scheduled date, is returned unchanged.
func DeriveAssessmentStatus(a domain.CandidateAssessment, now time.Time, startWindow, completionAfter time.Duration) domain.CandidateAssessment {
	if a.Status == domain.ItemEvaluated || a.Status == domain.ItemCancelled {
		return a
	}
	scheduled, ok := parseTime(a.ScheduledDate)
	if !ok {
		return a
	}
	a.Status = deriveItemStatus(a.Status, scheduled, now, startWindow, completionAfter, a.Score, a.Remarks)
	return a
}

// DeriveInterviewStatus is the interview twin; interviews get a wider start
// window because they rarely begin on the minute.
func DeriveInterviewStatus(iv domain.CandidateInterview, now time.Time, startWindow, completionAfter time.Duration) domain.CandidateInterview {
	if iv.Status == domain.ItemEvaluated || iv.Status == domain.ItemCancelled {
		return iv
	}
	scheduled, ok := parseTime(iv.ScheduledDatetime)
	if !ok {
		return iv
	}
	iv.Status = deriveItemStatus(iv.Status, scheduled, now, startWindow, completionAfter, iv.Score, iv.Remarks)
	return iv
}

func deriveItemStatus(status string, scheduled, now time.Time, startWindow, completionAfter time.Duration, score *int, remarks *string) string {
	if diff := now.Sub(scheduled); diff >= -startWindow && diff <= startWindow {
		status = domain.ItemInProgress
	}
	if now.After(scheduled.Add(completionAfter)) {
		if score != nil && remarks != nil {
			status = domain.ItemEvaluated
		} else {
			status = domain.ItemCompleted
		}
	}
	if score != nil && remarks != nil && status != domain.ItemEvaluated {
		status = domain.ItemEvaluated
	}
	return status
}

func parseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

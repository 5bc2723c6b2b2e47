package engine

import (
	"fmt"
	"strings"

	"talentline/internal/domain"
)

// Eligibility is the result of a scheduling gate check. Reason is set only
// when OK is false and names the blocking item, since consumers match on it.
type Eligibility struct {
	OK     bool   `json:"can_schedule"`
	Reason string `json:"reason,omitempty"`
}

// CanScheduleAssessment decides whether a new assessment may be attached.
// Only the highest-sequence assessment gates the next one; the check reads
// the raw stored status, not the time-derived one.
func CanScheduleAssessment(c domain.Candidate) Eligibility {
	if c.CurrentStatus == domain.StageRejected {
		return Eligibility{Reason: "candidate has been rejected"}
	}
	latest := latestAssessment(c.Assessments)
	if latest == nil {
		return Eligibility{OK: true}
	}
	if latest.Status != domain.ItemEvaluated {
		return Eligibility{Reason: assessmentBlockReason(*latest)}
	}
	return Eligibility{OK: true}
}

// CanScheduleInterview decides whether a new interview may be attached.
// Interviews require every assessment evaluated, not just the latest one.
func CanScheduleInterview(c domain.Candidate) Eligibility {
	if c.CurrentStatus == domain.StageRejected {
		return Eligibility{Reason: "candidate has been rejected"}
	}
	if len(c.Assessments) == 0 {
		return Eligibility{Reason: "candidate has no assessments"}
	}
	remaining := 0
	for _, a := range c.Assessments {
		if a.Status != domain.ItemEvaluated {
			remaining++
		}
	}
	if remaining > 0 {
		return Eligibility{Reason: fmt.Sprintf("%d assessment(s) awaiting evaluation", remaining)}
	}
	latest := latestInterview(c.Interviews)
	if latest == nil {
		return Eligibility{OK: true}
	}
	if latest.Status != domain.ItemEvaluated {
		return Eligibility{Reason: fmt.Sprintf("interview %q is not evaluated yet", latest.InterviewType)}
	}
	return Eligibility{OK: true}
}

func assessmentBlockReason(a domain.CandidateAssessment) string {
	var missing []string
	if a.Score == nil {
		missing = append(missing, "score")
	}
	if a.Remarks == nil {
		missing = append(missing, "remarks")
	}
	if len(missing) == 0 {
		return fmt.Sprintf("assessment %q (sequence %d) is not evaluated yet", a.AssessmentName, a.Sequence)
	}
	return fmt.Sprintf("assessment %q (sequence %d) is not evaluated: missing %s", a.AssessmentName, a.Sequence, strings.Join(missing, " and "))
}

// latestAssessment picks the entry with the highest sequence, regardless of
// slice order.
func latestAssessment(list []domain.CandidateAssessment) *domain.CandidateAssessment {
	var latest *domain.CandidateAssessment
	for i := range list {
		if latest == nil || list[i].Sequence > latest.Sequence {
			latest = &list[i]
		}
	}
	return latest
}

func latestInterview(list []domain.CandidateInterview) *domain.CandidateInterview {
	var latest *domain.CandidateInterview
	for i := range list {
		if latest == nil || list[i].Sequence > latest.Sequence {
			latest = &list[i]
		}
	}
	return latest
}

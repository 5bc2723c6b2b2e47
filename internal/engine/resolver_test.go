package engine_test

import (
	"testing"

	"talentline/internal/domain"
	"talentline/internal/engine"
)

func TestResolveOverallStatusStickyStages(t *testing.T) {
	for _, stage := range []string{
		domain.StageOfferExtended,
		domain.StageOfferAccepted,
		domain.StageHired,
		domain.StageRejected,
		domain.StageWithdrawn,
	} {
		c := domain.Candidate{
			CurrentStatus: stage,
			Interviews: []domain.CandidateInterview{
				{Sequence: 1, Status: domain.ItemScheduled},
			},
		}
		if got := engine.ResolveOverallStatus(c); got != stage {
			t.Fatalf("sticky stage %q resolved to %q", stage, got)
		}
		if !engine.IsSticky(stage) {
			t.Fatalf("IsSticky(%q) = false", stage)
		}
	}
	if engine.IsSticky(domain.StageAssessmentEvaluated) {
		t.Fatal("Assessment Evaluated should not be sticky")
	}
}

func TestResolveOverallStatusInterviewWins(t *testing.T) {
	cases := []struct {
		ivStatus string
		want     string
	}{
		{domain.ItemScheduled, domain.StageInterviewScheduled},
		{domain.ItemInProgress, domain.StageInterviewInProgress},
		{domain.ItemCompleted, domain.StageInterviewCompleted},
		{domain.ItemEvaluated, domain.StageInterviewEvaluated},
	}
	for _, tc := range cases {
		c := domain.Candidate{
			CurrentStatus: domain.StageAssessmentEvaluated,
			Assessments: []domain.CandidateAssessment{
				{Sequence: 1, Status: domain.ItemEvaluated, Score: intp(90), Remarks: strp("pass")},
			},
			Interviews: []domain.CandidateInterview{
				{Sequence: 1, Status: tc.ivStatus},
			},
		}
		if got := engine.ResolveOverallStatus(c); got != tc.want {
			t.Fatalf("interview %q: resolved %q, want %q", tc.ivStatus, got, tc.want)
		}
	}
}

func TestResolveOverallStatusCancelledInterviewFallsThrough(t *testing.T) {
	c := domain.Candidate{
		CurrentStatus: domain.StageInterviewScheduled,
		Assessments: []domain.CandidateAssessment{
			{Sequence: 1, Status: domain.ItemEvaluated, Score: intp(90), Remarks: strp("pass")},
		},
		Interviews: []domain.CandidateInterview{
			{Sequence: 1, Status: domain.ItemCancelled},
		},
	}
	if got := engine.ResolveOverallStatus(c); got != domain.StageAssessmentEvaluated {
		t.Fatalf("resolved %q, want %q", got, domain.StageAssessmentEvaluated)
	}
}

func TestResolveOverallStatusAssessmentMapping(t *testing.T) {
	cases := []struct {
		name  string
		entry domain.CandidateAssessment
		want  string
	}{
		{"scheduled", domain.CandidateAssessment{Sequence: 1, Status: domain.ItemScheduled}, domain.StageAssessmentScheduled},
		{"in progress", domain.CandidateAssessment{Sequence: 1, Status: domain.ItemInProgress}, domain.StageAssessmentInProgress},
		{"completed unevaluated", domain.CandidateAssessment{Sequence: 1, Status: domain.ItemCompleted}, domain.StageAssessmentCompleted},
		{"evaluated status", domain.CandidateAssessment{Sequence: 1, Status: domain.ItemEvaluated, Score: intp(80), Remarks: strp("ok")}, domain.StageAssessmentEvaluated},
		{
			// Score and remarks recorded but the stored status lags behind.
			"completed with score and remarks",
			domain.CandidateAssessment{Sequence: 1, Status: domain.ItemCompleted, Score: intp(80), Remarks: strp("ok")},
			domain.StageAssessmentEvaluated,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := domain.Candidate{
				CurrentStatus: domain.StageApplied,
				Assessments:   []domain.CandidateAssessment{tc.entry},
			}
			if got := engine.ResolveOverallStatus(c); got != tc.want {
				t.Fatalf("resolved %q, want %q", got, tc.want)
			}
		})
	}
}

func TestResolveOverallStatusHighestSequenceWins(t *testing.T) {
	c := domain.Candidate{
		CurrentStatus: domain.StageAssessmentEvaluated,
		Assessments: []domain.CandidateAssessment{
			{Sequence: 2, Status: domain.ItemScheduled},
			{Sequence: 1, Status: domain.ItemEvaluated, Score: intp(95), Remarks: strp("great")},
		},
	}
	if got := engine.ResolveOverallStatus(c); got != domain.StageAssessmentScheduled {
		t.Fatalf("resolved %q, want %q", got, domain.StageAssessmentScheduled)
	}
}

func TestResolveOverallStatusNothingToDerive(t *testing.T) {
	c := domain.Candidate{CurrentStatus: domain.StageApplied}
	if got := engine.ResolveOverallStatus(c); got != domain.StageApplied {
		t.Fatalf("resolved %q, want %q", got, domain.StageApplied)
	}
}

package core

import (
	"time"
)

// Decision is the outcome class of a policy evaluation
type Decision string

const (
	DecisionAllowed Decision = "allowed"
	DecisionWarning Decision = "warning"
	DecisionBlocked Decision = "blocked"
)

// Block reasons returned in Verdict.Reason
const (
	ReasonFocusMode  = "focus_mode"
	ReasonBedtime    = "bedtime"
	ReasonDailyLimit = "daily_limit"
)

// Verdict is the policy evaluator's result. RemainingMinutes is meaningful
// for warning verdicts; Reason is set on blocked verdicts.
type Verdict struct {
	Decision         Decision `json:"decision"`
	RemainingMinutes int      `json:"remaining_minutes,omitempty"`
	Reason           string   `json:"reason,omitempty"`
}

// Allowed returns true unless the verdict blocks usage
func (v Verdict) Allowed() bool {
	return v.Decision != DecisionBlocked
}

// Evaluator decides whether usage is currently permitted for a child, given
// the child's controls and today's aggregate. Evaluation is read-only and
// side-effect-free.
type Evaluator struct {
	timezone *time.Location
}

// NewEvaluator creates a policy evaluator operating in the guardian's timezone
func NewEvaluator(timezone *time.Location) *Evaluator {
	if timezone == nil {
		timezone = time.UTC
	}
	return &Evaluator{timezone: timezone}
}

// Evaluate produces an enforcement verdict. Checks run in priority order:
// hard overrides (focus mode, bedtime) before quota math, because they
// represent explicit guardian intervention or a categorical restriction
// rather than a budget.
func (e *Evaluator) Evaluate(controls *ParentalControls, aggregate *DailyAggregate, now time.Time) Verdict {
	// No controls on file behaves the same as controls switched off
	if controls == nil || !controls.Enabled {
		return Verdict{Decision: DecisionAllowed}
	}

	if controls.FocusModeUntil != nil && now.Before(*controls.FocusModeUntil) {
		return Verdict{Decision: DecisionBlocked, Reason: ReasonFocusMode}
	}

	if controls.BedtimeConfigured() &&
		InBedtimeWindow(now.In(e.timezone), *controls.BedtimeStart, *controls.BedtimeEnd) {
		return Verdict{Decision: DecisionBlocked, Reason: ReasonBedtime}
	}

	if controls.DailyTimeLimitMinutes != nil {
		var used, bonus int
		if aggregate != nil {
			used = aggregate.TotalSeconds / 60
			bonus = aggregate.BonusMinutes
		}

		// Bonus minutes extend the effective limit rather than refunding
		// already-used time.
		effectiveLimit := *controls.DailyTimeLimitMinutes + bonus

		if used >= effectiveLimit {
			return Verdict{Decision: DecisionBlocked, Reason: ReasonDailyLimit}
		}

		remaining := effectiveLimit - used
		if remaining <= controls.WarningThresholdMinutes {
			return Verdict{Decision: DecisionWarning, RemainingMinutes: remaining}
		}
	}

	return Verdict{Decision: DecisionAllowed}
}

package enums

// ReportKind classifies operator-visible failure reports.
type ReportKind string

const (
	ReportKindFreezeTimeout      ReportKind = "freeze_timeout"
	ReportKindInvalidEvent       ReportKind = "invalid_event"
	ReportKindFrozenSurveyorVote ReportKind = "frozen_surveyor_vote"
)

// IsValid reports whether the kind is known.
func (k ReportKind) IsValid() bool {
	switch k {
	case ReportKindFreezeTimeout, ReportKindInvalidEvent, ReportKindFrozenSurveyorVote:
		return true
	}
	return false
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// SkipReason explains why a paper ended in the Skipped state.
type SkipReason string

const (
	SkipNotFound      SkipReason = "not_found"
	SkipPaywalled     SkipReason = "paywalled"
	SkipNetworkError  SkipReason = "network_error"
	SkipParseError    SkipReason = "parse_error"
	SkipInvalidRecord SkipReason = "invalid_record"
	SkipInterrupted   SkipReason = "interrupted"
)

// SkipReasons lists every skip reason in report order.
var SkipReasons = []SkipReason{
	SkipNotFound, SkipPaywalled, SkipNetworkError,
	SkipParseError, SkipInvalidRecord, SkipInterrupted,
}

// SkipReasonFor maps an acquisition failure onto the skip taxonomy.
func SkipReasonFor(r FailureReason) SkipReason {
	switch r {
	case FailurePaywalled:
		return SkipPaywalled
	case FailureNetworkError:
		return SkipNetworkError
	case FailureParseError:
		return SkipParseError
	default:
		return SkipNotFound
	}
}

// PaperState is a node of the per-paper state machine.
type PaperState string

const (
	StatePending     PaperState = "pending"
	StateResolving   PaperState = "resolving"
	StateConverting  PaperState = "converting"
	StateMatching    PaperState = "matching"
	StateClassifying PaperState = "classifying"
	StateSkipped     PaperState = "skipped"
	StateNoContent   PaperState = "no_content"
	StateDone        PaperState = "done"
)

// Terminal reports whether no further transition is possible.
func (s PaperState) Terminal() bool {
	return s == StateSkipped || s == StateNoContent || s == StateDone
}

// PaperOutcome is the terminal result of processing one record.
type PaperOutcome struct {
	Record     PaperRecord `json:"record" yaml:"record"`
	State      PaperState  `json:"state" yaml:"state"`
	SkipReason SkipReason  `json:"skip_reason,omitempty" yaml:"skip_reason,omitempty"`

	// Detail is a human-readable explanation of a skip.
	Detail string `json:"detail,omitempty" yaml:"detail,omitempty"`

	// Source names the acquisition strategy that produced the PDF.
	Source string `json:"source,omitempty" yaml:"source,omitempty"`

	Windows         []ContextWindow  `json:"windows,omitempty" yaml:"windows,omitempty"`
	Classifications []Classification `json:"classifications,omitempty" yaml:"classifications,omitempty"`
}

// RunReport aggregates the outcomes of one run.
type RunReport struct {
	Done        int                `json:"done" yaml:"done"`
	NoContent   int                `json:"no_content" yaml:"no_content"`
	Skipped     int                `json:"skipped" yaml:"skipped"`
	SkipReasons map[SkipReason]int `json:"skip_reasons" yaml:"skip_reasons"`
	Labels      map[Label]int      `json:"labels" yaml:"labels"`

	// Outcomes holds one entry per input record, in input order.
	Outcomes []PaperOutcome `json:"outcomes" yaml:"outcomes"`
}

// NewRunReport builds a report from outcomes, in the order given.
func NewRunReport(outcomes []PaperOutcome) RunReport {
	r := RunReport{
		SkipReasons: make(map[SkipReason]int),
		Labels:      make(map[Label]int),
		Outcomes:    outcomes,
	}
	for _, o := range outcomes {
		switch o.State {
		case StateDone:
			r.Done++
		case StateNoContent:
			r.NoContent++
		default:
			r.Skipped++
			r.SkipReasons[o.SkipReason]++
		}
		for _, c := range o.Classifications {
			r.Labels[c.Label]++
		}
	}
	return r
}

// Total returns the number of records the report covers.
func (r RunReport) Total() int {
	return r.Done + r.NoContent + r.Skipped
}

// Completed returns the number of papers that were matched, with or without
// relevant content.
func (r RunReport) Completed() int {
	return r.Done + r.NoContent
}

// HasSkips reports whether any paper was skipped.
func (r RunReport) HasSkips() bool {
	return r.Skipped > 0
}

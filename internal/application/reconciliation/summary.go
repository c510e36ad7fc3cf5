package reconciliation

import "time"

// Outcome classifies what happened to one mailbox item
type Outcome string

const (
	OutcomeApplied       Outcome = "applied"
	OutcomeNotApplicable Outcome = "not_applicable"
	OutcomeMalformed     Outcome = "malformed"
	OutcomeNotFound      Outcome = "not_found"
	OutcomeWrongState    Outcome = "wrong_state"
	OutcomeInFlight      Outcome = "in_flight"
	OutcomeFailed        Outcome = "failed"
)

// IsError reports whether the outcome counts toward Summary.Errors.
// not_applicable and in_flight are expected and are not errors.
func (o Outcome) IsError() bool {
	switch o {
	case OutcomeMalformed, OutcomeNotFound, OutcomeWrongState, OutcomeFailed:
		return true
	}
	return false
}

// Kind names the pipeline an item went through
type Kind string

const (
	KindBrokerResponse Kind = "broker_response"
	KindReceipt        Kind = "receipt"
)

// Detail describes one processed item
type Detail struct {
	ItemID     string  `json:"item_id" yaml:"item_id"`
	Kind       Kind    `json:"kind" yaml:"kind"`
	Outcome    Outcome `json:"outcome" yaml:"outcome"`
	CaseNumber string  `json:"case_number,omitempty" yaml:"case_number,omitempty"`
	Message    string  `json:"message" yaml:"message"`
}

// Summary is the structured result of one reconciliation run
type Summary struct {
	RunID      string    `json:"run_id" yaml:"run_id"`
	Processed  int       `json:"processed" yaml:"processed"`
	Matched    int       `json:"matched" yaml:"matched"`
	Applied    int       `json:"applied" yaml:"applied"`
	Errors     int       `json:"errors" yaml:"errors"`
	Fatal      string    `json:"fatal,omitempty" yaml:"fatal,omitempty"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`
	Details    []Detail  `json:"details" yaml:"details"`
}

func (s *Summary) record(d Detail, matched bool) {
	s.Processed++
	if matched {
		s.Matched++
	}
	if d.Outcome == OutcomeApplied {
		s.Applied++
	}
	if d.Outcome.IsError() {
		s.Errors++
	}
	s.Details = append(s.Details, d)
}

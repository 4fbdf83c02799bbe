package model

import "time"

type Instrument string

const (
	InstrumentPHQ9  Instrument = "phq9"
	InstrumentGAD7  Instrument = "gad7"
	InstrumentGDS15 Instrument = "gds15"
	InstrumentEPDS  Instrument = "epds"
)

// Screening is one completed self-administered instrument. Answers are the
// raw item values in question order; score and severity are computed
// server-side at submit time.
type Screening struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	Instrument Instrument `json:"instrument"`
	Answers    []int      `json:"answers"`
	Score      int        `json:"score"`
	Severity   string     `json:"severity"`
	CreatedAt  time.Time  `json:"created_at"`
}

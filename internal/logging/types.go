package logging

import "time"

// #region event-entry
// EventEntry is a single row in the event_log table.
type EventEntry struct {
	RunID      string
	Action     string // "evaluate" | "sweep" | "serve" | "posterior" | "import" | "replay"
	DetailJSON string
	Outcome    string // "ok" | "failed" | "partial"
	Reason     string
	CreatedAt  time.Time
}
// #endregion event-entry

// #region sweep-record
// SweepRecord summarizes one sweep. Serialized as JSON into
// event_log.detail_json.
type SweepRecord struct {
	Items    int     `json:"items"`
	Failed   int     `json:"failed"`
	Workers  int     `json:"workers"`
	Isolated bool    `json:"isolated"`
	Retries  int     `json:"retries"`
	Seconds  float64 `json:"seconds"`

	// Best finite likelihood seen, omitted when every item failed
	BestLnLike *float64  `json:"best_lnlike,omitempty"`
	BestTheta  []float64 `json:"best_theta,omitempty"`
}
// #endregion sweep-record

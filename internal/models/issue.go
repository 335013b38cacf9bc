package models

import "time"

// Track classifies an issue's subject area.
type Track string

const (
	TrackAP     Track = "AP"
	TrackRP     Track = "RP"
	TrackCommon Track = "Common"
	TrackLI     Track = "LI"
	TrackES     Track = "ES"
)

// Valid reports whether the track is one of the recognized categories.
func (t Track) Valid() bool {
	switch t {
	case TrackAP, TrackRP, TrackCommon, TrackLI, TrackES:
		return true
	}
	return false
}

// Status represents the lifecycle state of an issue. Any status may
// transition to any other; no workflow ordering is enforced.
type Status string

const (
	StatusOpen     Status = "Open"
	StatusFixed    Status = "Fixed"
	StatusDeployed Status = "Deployed"
	StatusClosed   Status = "Closed"
)

// Valid reports whether the status is one of the allowed states.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusFixed, StatusDeployed, StatusClosed:
		return true
	}
	return false
}

// MaxSummaryLen is the maximum length of an issue summary in characters.
const MaxSummaryLen = 250

// Issue is the tracked record. Optional free-text fields are pointers
// so that absent values serialize as JSON null.
type Issue struct {
	ID          int64     `json:"id"`
	Track       Track     `json:"track"`
	Summary     string    `json:"summary"`
	Description *string   `json:"description"`
	Attachments []string  `json:"attachments"`
	RaisedBy    *string   `json:"raised_by"`
	Assignee    *string   `json:"assignee"`
	Status      Status    `json:"status"`
	ScenarioID  *string   `json:"scenario_id"`
	StepNo      *string   `json:"step_no"`
	CreatedAt   time.Time `json:"created_at"`
}

// IssuePatch is a partial update. Nil fields are left unchanged;
// set fields are trimmed and applied.
type IssuePatch struct {
	Track       *string `json:"track"`
	Summary     *string `json:"summary"`
	Description *string `json:"description"`
	RaisedBy    *string `json:"raised_by"`
	Assignee    *string `json:"assignee"`
	Status      *string `json:"status"`
	ScenarioID  *string `json:"scenario_id"`
	StepNo      *string `json:"step_no"`
}

package models

import "time"

// RunRecord is the outcome of one scenario run as kept in run history
type RunRecord struct {
	ID         string        `json:"id" yaml:"id"`
	Scenario   string        `json:"scenario" yaml:"scenario"`
	SurfaceURL string        `json:"surface_url" yaml:"surface_url"`
	State      FlowState     `json:"state" yaml:"state"`
	Step       FlowState     `json:"step,omitempty" yaml:"step,omitempty"`             // Step that failed
	ErrorKind  string        `json:"error_kind,omitempty" yaml:"error_kind,omitempty"` // Taxonomy name, e.g. "InvalidPosition"
	Error      string        `json:"error,omitempty" yaml:"error,omitempty"`
	Welcome    string        `json:"welcome,omitempty" yaml:"welcome,omitempty"`
	Passed     bool          `json:"passed" yaml:"passed"`
	Screenshot string        `json:"screenshot,omitempty" yaml:"screenshot,omitempty"`
	StartedAt  time.Time     `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time     `json:"finished_at" yaml:"finished_at"`
	Duration   time.Duration `json:"duration" yaml:"duration"`
}

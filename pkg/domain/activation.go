package domain

import "time"

// OutcomeStatus is the per-entity result of an activation.
type OutcomeStatus string

const (
	OutcomeApplied OutcomeStatus = "applied"
	OutcomeSkipped OutcomeStatus = "skipped"
	OutcomeFailed  OutcomeStatus = "failed"
)

// EntityOutcome records what happened to one entity during activation.
type EntityOutcome struct {
	EntityID string        `json:"entity_id"`
	Status   OutcomeStatus `json:"status"`
	Reason   string        `json:"reason,omitempty"`
	Calls    int           `json:"calls"`
}

// ActivationReport summarizes one activation run.
type ActivationReport struct {
	RunID      string          `json:"run_id"`
	SceneID    string          `json:"scene_id"`
	Outcomes   []EntityOutcome `json:"outcomes"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
}

// Duration returns how long the run took.
func (r *ActivationReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Failures returns the entities that failed to accept their restored state.
func (r *ActivationReport) Failures() []ActivationFailure {
	var out []ActivationFailure
	for _, o := range r.Outcomes {
		if o.Status == OutcomeFailed {
			out = append(out, ActivationFailure{EntityID: o.EntityID, Reason: o.Reason})
		}
	}
	return out
}

// Applied returns the ids of entities that were restored.
func (r *ActivationReport) Applied() []string {
	var out []string
	for _, o := range r.Outcomes {
		if o.Status == OutcomeApplied {
			out = append(out, o.EntityID)
		}
	}
	return out
}

// OK reports whether no entity failed.
func (r *ActivationReport) OK() bool {
	return len(r.Failures()) == 0
}

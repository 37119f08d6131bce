package domain

import (
	"encoding/json"
	"time"
)

// JobStatus enumerates prediction lifecycle states as reported by the provider.
type JobStatus string

const (
	JobStatusStarting   JobStatus = "starting"
	JobStatusProcessing JobStatus = "processing"
	JobStatusSucceeded  JobStatus = "succeeded"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCanceled   JobStatus = "canceled"
)

// Terminal reports whether polling should halt on this status.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusSucceeded, JobStatusFailed, JobStatusCanceled:
		return true
	default:
		return false
	}
}

// Known reports whether the status is part of the state machine.
func (s JobStatus) Known() bool {
	switch s {
	case JobStatusStarting, JobStatusProcessing:
		return true
	default:
		return s.Terminal()
	}
}

func (s JobStatus) rank() int {
	switch s {
	case JobStatusStarting:
		return 0
	case JobStatusProcessing:
		return 1
	default:
		return 2
	}
}

// CanTransition reports whether a job may move from one observed status to
// another. Moves only go forward and terminal states are final.
func CanTransition(from, to JobStatus) bool {
	if !from.Known() || !to.Known() {
		return false
	}
	if from.Terminal() {
		return from == to
	}
	return to.rank() >= from.rank()
}

// PredictionMetrics carries timing data reported by the provider.
type PredictionMetrics struct {
	PredictTime *float64 `json:"predict_time,omitempty"`
}

// Prediction is one external asynchronous generation job. It is owned by the
// request that created it and never shared.
type Prediction struct {
	ID        string             `json:"id"`
	Status    JobStatus          `json:"status"`
	Input     json.RawMessage    `json:"input,omitempty"`
	Output    json.RawMessage    `json:"output,omitempty"`
	Error     string             `json:"error,omitempty"`
	Logs      string             `json:"logs,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	Metrics   *PredictionMetrics `json:"metrics,omitempty"`
}

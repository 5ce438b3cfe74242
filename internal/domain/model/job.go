// Package model contains domain models passed between layers.
package model

import "time"

// Status is the lifecycle state of a consensus job.
// Jobs move pending -> processing -> {completed | failed}; terminal
// states are final.
type Status string

// Job lifecycle states.
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Strategy selects how individual model results are combined.
type Strategy string

// Supported consensus strategies.
const (
	StrategyMajority  Strategy = "majority"
	StrategyWeighted  Strategy = "weighted"
	StrategyUnanimous Strategy = "unanimous"
)

// Valid reports whether the strategy is one of the supported policies.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyMajority, StrategyWeighted, StrategyUnanimous:
		return true
	}
	return false
}

// TaskType describes what kind of judgment the models are asked for.
type TaskType string

// Supported task types.
const (
	TaskGeneral           TaskType = "general"
	TaskConversation      TaskType = "conversation"
	TaskQualification     TaskType = "qualification"
	TaskObjectionHandling TaskType = "objection_handling"
	TaskBooking           TaskType = "booking"
	TaskAnalysis          TaskType = "analysis"
)

// Valid reports whether the task type is known.
func (t TaskType) Valid() bool {
	switch t {
	case TaskGeneral, TaskConversation, TaskQualification, TaskObjectionHandling, TaskBooking, TaskAnalysis:
		return true
	}
	return false
}

// Numeric reports whether the task expects a numeric judgment
// (e.g., a 0-10 lead score) rather than free-form text.
func (t TaskType) Numeric() bool {
	return t == TaskQualification || t == TaskAnalysis
}

// Priority orders jobs in the processing queue.
type Priority string

// Supported priorities.
const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
)

// Valid reports whether the priority is known.
func (p Priority) Valid() bool {
	switch p {
	case PriorityUrgent, PriorityHigh, PriorityNormal:
		return true
	}
	return false
}

// Failure causes recorded on jobs that reach the failed state.
const (
	CauseNoAdapters = "no adapters configured"
	CauseTimeout    = "job timed out"
	CauseCancelled  = "cancelled by client"
	CauseInternal   = "internal error"
)

// ModelResult is one adapter's answer to one prompt. Immutable once
// produced; never persisted independently of its parent job.
type ModelResult struct {
	Model      string  // identifier of the backing model, unique within a dispatch
	Response   string  // free-form answer text
	Score      float64 // numeric judgment for numeric task types
	Confidence float64 // adapter's self-reported certainty in [0,1]
	Reasoning  string  // free-text explanation, may be empty
	TokensUsed int     // informational only
	LatencyMs  int64   // informational only
}

// ConsensusResult is the combined judgment produced by the aggregator.
type ConsensusResult struct {
	Response           string
	Score              float64
	Confidence         float64
	Strategy           Strategy
	ContributingModels []string
}

// Clone returns a deep copy.
func (c *ConsensusResult) Clone() *ConsensusResult {
	if c == nil {
		return nil
	}
	cp := *c
	cp.ContributingModels = append([]string(nil), c.ContributingModels...)
	return &cp
}

// SubmitRequest carries the immutable parameters of one consensus
// request. Tenant scoping is explicit: the caller passes the tenant's
// model allowlist and threshold override rather than relying on any
// ambient state.
type SubmitRequest struct {
	Prompt              string
	TaskType            TaskType
	Strategy            Strategy
	Priority            Priority
	ConfidenceThreshold float64 // 0 means use the service default
	Models              []string
	TenantID            string
	IdempotencyKey      string
}

// ConsensusJob is one tracked request from submission to terminal state.
//
// Invariants: Consensus is non-nil iff Status is completed with an
// agreed outcome; Error is non-empty iff Status is failed; Results may
// hold fewer entries than configured adapters when some timed out.
type ConsensusJob struct {
	ID                  string
	Prompt              string
	TaskType            TaskType
	Strategy            Strategy
	Priority            Priority
	ConfidenceThreshold float64
	Models              []string
	TenantID            string

	Status    Status
	Results   []ModelResult
	Consensus *ConsensusResult
	Warning   string // set on completed jobs whose aggregation soft-failed
	Error     string // set on failed jobs

	CreatedAt   time.Time
	CompletedAt time.Time
}

// Clone returns a deep copy so readers never share mutable state with
// the store.
func (j *ConsensusJob) Clone() ConsensusJob {
	cp := *j
	cp.Models = append([]string(nil), j.Models...)
	cp.Results = append([]ModelResult(nil), j.Results...)
	cp.Consensus = j.Consensus.Clone()
	return cp
}

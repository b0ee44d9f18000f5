// Package interpreter implements the state-machine scheduler (component D):
// it walks a compiled Plan one node at a time, resolving inputs from
// portData, invoking the matching executor, merging outputs back into
// portData and context, resolving the next node via the node's transition,
// checkpointing after every step, and suspending on question nodes, pauses,
// or failures.
package interpreter

import (
	"time"

	"github.com/iota-uz/foundry-sub005/internal/provider"
)

// Status is one of the execution state machine's states (§4.4).
type Status string

const (
	StatusPending     Status = "pending"
	StatusRunning     Status = "running"
	StatusPaused      Status = "paused"
	StatusWaitingUser Status = "waiting_user"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
)

// PendingQuestion describes the question a suspended execution is waiting
// on. A node requests suspension by returning a contextUpdates entry named
// executors.QuestionContextKey; the interpreter lifts it out into
// this dedicated field rather than leaving it in context.
type PendingQuestion struct {
	QuestionID string `json:"questionId"`
	NodeID     string `json:"nodeId"`
	Prompt     string `json:"prompt"`
}

// StepHistoryEntry is one append-only record of a single node's execution
// (§3's stepHistory).
type StepHistoryEntry struct {
	ID          string               `json:"id"`
	NodeID      string               `json:"nodeId"`
	Kind        string               `json:"kind,omitempty"`
	Status      string               `json:"status"` // "completed" or "failed"
	StartedAt   time.Time            `json:"startedAt"`
	CompletedAt time.Time            `json:"completedAt"`
	Duration    time.Duration        `json:"duration"`
	Input       map[string]any       `json:"input,omitempty"`
	Output      map[string]any       `json:"output,omitempty"`
	TokenUsage  *provider.TokenUsage `json:"tokenUsage,omitempty"`
	Error       string               `json:"error,omitempty"`
}

// ExecutionState is the persisted-per-run record (§3).
type ExecutionState struct {
	ID         string `json:"id"`
	WorkflowID string `json:"workflowId"`
	ProjectID  string `json:"projectId"`

	Status        Status `json:"status"`
	CurrentNodeID string `json:"currentNodeId,omitempty"`

	// PortData mirrors plan.portMappings resolution: nodeId -> (portId -> value).
	PortData map[string]map[string]any `json:"portData,omitempty"`

	// Context is the open, user-authored key/value map amended by executor
	// contextUpdates.
	Context map[string]any `json:"context,omitempty"`

	StepHistory []StepHistoryEntry `json:"stepHistory,omitempty"`

	PendingQuestion  *PendingQuestion `json:"pendingQuestion,omitempty"`
	Answers          map[string]any  `json:"answers,omitempty"`
	SkippedQuestions map[string]bool `json:"skippedQuestions,omitempty"`

	// CompletionStatus is the target status resolved from plan.endMappings
	// when the execution reaches END; consulted by the automation router.
	CompletionStatus string `json:"completionStatus,omitempty"`

	StartedAt      time.Time  `json:"startedAt"`
	LastActivityAt time.Time  `json:"lastActivityAt"`
	PausedAt       *time.Time `json:"pausedAt,omitempty"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
	LastError      string     `json:"lastError,omitempty"`
	RetryCount     int        `json:"retryCount"`

	// CancelRequested is the internal "cancelled-intent" flag (§5): set by
	// Cancel, observed by Step before invoking the next executor.
	CancelRequested bool `json:"-"`

	// Deadline is the optional workflow-wide deadline (§5); zero means none.
	Deadline time.Time `json:"deadline,omitempty"`
}

// Clone returns a deep-enough copy for safe external inspection (GetState).
func (s *ExecutionState) Clone() *ExecutionState {
	if s == nil {
		return nil
	}
	cp := *s
	cp.PortData = cloneNestedMap(s.PortData)
	cp.Context = cloneMap(s.Context)
	cp.Answers = cloneMap(s.Answers)
	cp.StepHistory = append([]StepHistoryEntry(nil), s.StepHistory...)
	if s.SkippedQuestions != nil {
		cp.SkippedQuestions = make(map[string]bool, len(s.SkippedQuestions))
		for k, v := range s.SkippedQuestions {
			cp.SkippedQuestions[k] = v
		}
	}
	if s.PendingQuestion != nil {
		q := *s.PendingQuestion
		cp.PendingQuestion = &q
	}
	return &cp
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cp := make(map[string]any, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

func cloneNestedMap(m map[string]map[string]any) map[string]map[string]any {
	if m == nil {
		return nil
	}
	cp := make(map[string]map[string]any, len(m))
	for k, v := range m {
		cp[k] = cloneMap(v)
	}
	return cp
}

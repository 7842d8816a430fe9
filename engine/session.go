package engine

import (
	"sync"
	"time"

	"rlm-engine/sandbox"

	"github.com/google/uuid"
)

// IterationRecord is one root-model turn kept for auditing. The control logic
// never reads the trajectory back.
type IterationRecord struct {
	Iteration int       `json:"iteration"`
	Response  string    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
}

// QuerySession owns all mutable state for one query: the document, the shared
// sandbox state, the trajectory, and the token and sub-call counters. Sessions
// are never shared across queries.
type QuerySession struct {
	ID       string
	Question string
	Document string
	State    sandbox.State

	Trajectory []IterationRecord

	// mu guards the sub-call counters: sandboxed code may issue concurrent
	// sub-queries from its own threads.
	mu               sync.Mutex
	SubCallsUsed     int
	RootInputTokens  int
	RootOutputTokens int
	SubInputTokens   int
	SubOutputTokens  int
}

func newSession(question, document string) *QuerySession {
	return &QuerySession{
		ID:       uuid.NewString(),
		Question: question,
		Document: document,
		State: sandbox.State{
			Buffers:  map[string]any{},
			Findings: []string{},
		},
	}
}

func (s *QuerySession) recordIteration(response string) {
	s.Trajectory = append(s.Trajectory, IterationRecord{
		Iteration: len(s.Trajectory) + 1,
		Response:  response,
		Timestamp: time.Now().UTC(),
	})
}

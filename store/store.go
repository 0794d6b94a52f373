// Package store is the structured-store boundary the runtime records
// provenance through. Schema details belong to the store implementation,
// not to the runtime core.
package store

import (
	"context"
	"time"
)

// CanonicalEvent is one deduplicatable orchestration event. An empty ID asks
// the store to assign one.
type CanonicalEvent struct {
	ID        string         `json:"id,omitempty"`
	Kind      string         `json:"kind"`
	SessionID string         `json:"session_id"`
	FlowID    string         `json:"flow_id"`
	Payload   map[string]any `json:"payload,omitempty"`
	At        time.Time      `json:"at"`
}

// ExecutionRecord captures the terminal outcome of one session run.
type ExecutionRecord struct {
	SessionID string    `json:"session_id"`
	FlowID    string    `json:"flow_id"`
	Status    string    `json:"status"`
	GasUsed   uint64    `json:"gas_used"`
	At        time.Time `json:"at"`
}

// CommitRecord pins the digest of a session's final state tree.
type CommitRecord struct {
	SessionID   string    `json:"session_id"`
	FlowID      string    `json:"flow_id"`
	StateDigest string    `json:"state_digest"`
	At          time.Time `json:"at"`
}

// Provenance is consumed by the coordinator; implementations own persistence.
type Provenance interface {
	UpsertCanonicalEvent(ctx context.Context, ev CanonicalEvent) (string, error)
	RecordExecution(ctx context.Context, rec ExecutionRecord) error
	RecordCommit(ctx context.Context, rec CommitRecord) error
}

// Noop discards everything; used when no store is configured.
type Noop struct{}

func (Noop) UpsertCanonicalEvent(_ context.Context, ev CanonicalEvent) (string, error) {
	return ev.ID, nil
}

func (Noop) RecordExecution(context.Context, ExecutionRecord) error { return nil }

func (Noop) RecordCommit(context.Context, CommitRecord) error { return nil }

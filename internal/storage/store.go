package storage

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors shared by all store implementations. Callers test them
// with errors.Is and map them to 404/409 responses.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid transition")
)

// CandidateStore persists CandidateRecords scoped by tenant. Every read
// method excludes merged (soft-deleted) candidates; the single escape hatch
// is GetIncludingMerged, used for audit display of historical merges.
type CandidateStore interface {
	Insert(ctx context.Context, c *CandidateRecord) error
	// Get returns an active candidate or ErrNotFound.
	Get(ctx context.Context, tenantID, id string) (*CandidateRecord, error)
	// GetIncludingMerged returns a candidate regardless of lifecycle state.
	GetIncludingMerged(ctx context.Context, tenantID, id string) (*CandidateRecord, error)
	Update(ctx context.Context, c *CandidateRecord) error
	// ListActive returns up to limit active candidates; limit <= 0 means all.
	ListActive(ctx context.Context, tenantID string, limit int) ([]*CandidateRecord, error)
	// MarkMerged soft-deletes a candidate: lifecycle -> merged, deleted_at set.
	MarkMerged(ctx context.Context, tenantID, id string, at time.Time) error
	// TenantIDs lists every tenant that has at least one candidate.
	TenantIDs(ctx context.Context) ([]string, error)
}

// ResumeStore persists versioned resumes keyed by candidate.
type ResumeStore interface {
	Insert(ctx context.Context, r *ResumeRecord) error
	// PrimaryForCandidate returns the candidate's primary resume or ErrNotFound.
	PrimaryForCandidate(ctx context.Context, tenantID, candidateID string) (*ResumeRecord, error)
	// NextVersion returns max(version)+1 for the candidate, starting at 1.
	NextVersion(ctx context.Context, tenantID, candidateID string) (int, error)
	// DemotePrimary clears the primary flag on all of the candidate's resumes.
	DemotePrimary(ctx context.Context, tenantID, candidateID string) error
}

// QueueStore persists merge-queue items.
type QueueStore interface {
	Insert(ctx context.Context, item *MergeQueueItem) error
	Get(ctx context.Context, tenantID, id string) (*MergeQueueItem, error)
	// List returns one page of items, newest first, plus the unpaged total.
	// Empty status/matchType filters match everything.
	List(ctx context.Context, tenantID string, page, pageSize int, status QueueStatus, matchType MatchType) ([]*MergeQueueItem, int, error)
	// PendingForPair reports whether the unordered candidate pair already has
	// a pending item.
	PendingForPair(ctx context.Context, tenantID, candidateA, candidateB string) (bool, error)
	// ClaimPending atomically transitions a pending item to a terminal state.
	// Returns ErrInvalidTransition if the item is no longer pending, or
	// ErrNotFound if it does not exist. This is the double-merge guard: of
	// two concurrent reviewers, exactly one claim succeeds.
	ClaimPending(ctx context.Context, tenantID, id string, to QueueStatus, reviewer, notes string, at time.Time) error
	Stats(ctx context.Context, tenantID string) (*QueueStats, error)
}

// CrossRefStore bulk-updates the records that reference a candidate by id.
type CrossRefStore interface {
	// ReassignCandidate re-points all applications, observations and activity
	// events from one candidate to another.
	ReassignCandidate(ctx context.Context, tenantID, fromID, toID string) (CrossRefCounts, error)
}

// MergeResultStore persists merge outcome records.
type MergeResultStore interface {
	Insert(ctx context.Context, r *MergeResult) error
}

// Store aggregates the per-entity stores and provides the transactional unit
// the merger needs: everything inside the InTx callback commits or rolls
// back as a whole.
type Store interface {
	Candidates() CandidateStore
	Resumes() ResumeStore
	Queue() QueueStore
	CrossRefs() CrossRefStore
	MergeResults() MergeResultStore
	// InTx runs fn against a transaction-scoped view of the store. Calling
	// InTx on an already transactional store reuses the open transaction.
	InTx(ctx context.Context, fn func(tx Store) error) error
}

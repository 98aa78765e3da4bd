package dedup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"candidate-dedup/internal/storage"
)

// CandidateMatch is an unpersisted queue-item shape returned by targeted
// detection: the pair, the score, and the human-readable reasons a reviewer
// would see.
type CandidateMatch struct {
	CandidateID        string                `json:"candidate_id"`
	MatchedCandidateID string                `json:"matched_candidate_id"`
	Score              float64               `json:"score"`
	ConfidenceTier     string                `json:"confidence_tier"`
	MatchType          storage.MatchType     `json:"match_type"`
	Reasons            []storage.MatchReason `json:"reasons"`
	SuggestedAction    SuggestedAction       `json:"suggested_action"`
}

// MergeQueueItemDetail is a queue item joined with candidate summaries for
// display. Candidate lookups include merged records so historical items stay
// readable.
type MergeQueueItemDetail struct {
	Item      *storage.MergeQueueItem `json:"item"`
	Primary   *CandidateSummary       `json:"primary,omitempty"`
	Duplicate *CandidateSummary       `json:"duplicate,omitempty"`
}

// CandidateSummary is the slice of a candidate shown in queue listings.
type CandidateSummary struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Lifecycle string `json:"lifecycle_state"`
}

// QueueService owns the merge-queue workflow: targeted detection, batch
// scanning, review transitions, and merge execution.
type QueueService struct {
	store   storage.Store
	matcher *Matcher
	merger  *Merger
	locker  TenantLocker
	log     *zap.Logger
}

func NewQueueService(store storage.Store, locker TenantLocker, log *zap.Logger) *QueueService {
	return &QueueService{
		store:   store,
		matcher: NewMatcher(store, log),
		merger:  NewMerger(store, log),
		locker:  locker,
		log:     log,
	}
}

// Matcher exposes the underlying matcher for callers doing ingestion-time
// detection.
func (s *QueueService) Matcher() *Matcher { return s.matcher }

// Merger exposes the underlying merger for direct (non-queued) merges.
func (s *QueueService) Merger() *Merger { return s.merger }

// DetectDuplicates runs the targeted matcher for one existing candidate and
// returns matches at or above the confidence floor. Nothing is persisted.
func (s *QueueService) DetectDuplicates(ctx context.Context, tenantID, candidateID string, minConfidence float64) ([]*CandidateMatch, error) {
	cand, err := s.store.Candidates().Get(ctx, tenantID, candidateID)
	if err != nil {
		return nil, fmt.Errorf("candidate: %w", err)
	}

	resume, err := s.store.Resumes().PrimaryForCandidate(ctx, tenantID, candidateID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("primary resume: %w", err)
	}

	outcome, err := s.matcher.FindDuplicates(ctx, tenantID, SignalsFromCandidate(cand, resume), candidateID)
	if err != nil {
		return nil, err
	}
	if !outcome.IsDuplicate || outcome.Tier.Confidence() < minConfidence {
		return nil, nil
	}

	return []*CandidateMatch{{
		CandidateID:        candidateID,
		MatchedCandidateID: outcome.MatchedCandidateID,
		Score:              outcome.Tier.Confidence(),
		ConfidenceTier:     outcome.ConfidenceTier,
		MatchType:          outcome.Tier.MatchType(),
		Reasons:            outcome.Reasons,
		SuggestedAction:    outcome.SuggestedAction,
	}}, nil
}

// ScanAllCandidates runs the O(n²) pairwise batch scan over up to limit
// candidates. Each candidate joins at most one flagged pair per pass, and
// pairs that already have a pending queue item are skipped. The context is
// checked between outer iterations so a long scan can be cancelled; items
// created before cancellation stay put and the next run skips them.
func (s *QueueService) ScanAllCandidates(ctx context.Context, tenantID string, limit int, addToQueue bool, triggeredBy string) (*ScanSummary, error) {
	candidates, err := s.store.Candidates().ListActive(ctx, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}

	summary := &ScanSummary{CandidatesScanned: len(candidates)}
	signals := make([]scanSignals, len(candidates))
	for i, c := range candidates {
		signals[i] = newScanSignals(c)
	}

	matched := make(map[string]bool)
	for i := range candidates {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if matched[candidates[i].ID] {
			continue
		}
		for j := i + 1; j < len(candidates); j++ {
			if matched[candidates[j].ID] {
				continue
			}
			score, reasons := scorePair(signals[i], signals[j])
			if score < scanFlagThreshold {
				continue
			}

			summary.DuplicatesFound++
			matched[candidates[i].ID] = true
			matched[candidates[j].ID] = true

			if addToQueue {
				added, err := s.enqueuePair(ctx, tenantID, candidates[i].ID, candidates[j].ID, score, reasons)
				if err != nil {
					return summary, err
				}
				if added {
					summary.ItemsAdded++
				}
			}
			break
		}
	}

	s.log.Info("batch scan finished",
		zap.String("tenant_id", tenantID),
		zap.String("triggered_by", triggeredBy),
		zap.Int("candidates_scanned", summary.CandidatesScanned),
		zap.Int("duplicates_found", summary.DuplicatesFound),
		zap.Int("items_added", summary.ItemsAdded))
	return summary, nil
}

// EnqueueMatch persists a pending queue item for a targeted-detection match
// unless the pair already has one.
func (s *QueueService) EnqueueMatch(ctx context.Context, tenantID string, match *CandidateMatch) (bool, error) {
	exists, err := s.store.Queue().PendingForPair(ctx, tenantID, match.MatchedCandidateID, match.CandidateID)
	if err != nil {
		return false, fmt.Errorf("pending pair check: %w", err)
	}
	if exists {
		return false, nil
	}
	item := &storage.MergeQueueItem{
		ID:                   uuid.NewString(),
		TenantID:             tenantID,
		PrimaryCandidateID:   match.MatchedCandidateID,
		DuplicateCandidateID: match.CandidateID,
		MatchScore:           match.Score,
		MatchType:            match.MatchType,
		Reasons:              match.Reasons,
		Status:               storage.StatusPending,
		CreatedAt:            time.Now().UTC(),
	}
	if err := s.store.Queue().Insert(ctx, item); err != nil {
		return false, fmt.Errorf("insert queue item: %w", err)
	}
	return true, nil
}

func (s *QueueService) enqueuePair(ctx context.Context, tenantID, primaryID, duplicateID string, score int, reasons []storage.MatchReason) (bool, error) {
	exists, err := s.store.Queue().PendingForPair(ctx, tenantID, primaryID, duplicateID)
	if err != nil {
		return false, fmt.Errorf("pending pair check: %w", err)
	}
	if exists {
		return false, nil
	}
	item := &storage.MergeQueueItem{
		ID:                   uuid.NewString(),
		TenantID:             tenantID,
		PrimaryCandidateID:   primaryID,
		DuplicateCandidateID: duplicateID,
		MatchScore:           float64(score) / 100,
		MatchType:            scanMatchType(score),
		Reasons:              reasons,
		Status:               storage.StatusPending,
		CreatedAt:            time.Now().UTC(),
	}
	if err := s.store.Queue().Insert(ctx, item); err != nil {
		return false, fmt.Errorf("insert queue item: %w", err)
	}
	return true, nil
}

// ListQueueItems returns one page of queue items with candidate summaries.
func (s *QueueService) ListQueueItems(ctx context.Context, tenantID string, page, pageSize int, status storage.QueueStatus, matchType storage.MatchType) ([]*MergeQueueItemDetail, int, error) {
	items, total, err := s.store.Queue().List(ctx, tenantID, page, pageSize, status, matchType)
	if err != nil {
		return nil, 0, fmt.Errorf("list queue items: %w", err)
	}
	details := make([]*MergeQueueItemDetail, 0, len(items))
	for _, item := range items {
		details = append(details, s.detail(ctx, item))
	}
	return details, total, nil
}

// GetQueueItem returns one queue item with candidate summaries.
func (s *QueueService) GetQueueItem(ctx context.Context, tenantID, id string) (*MergeQueueItemDetail, error) {
	item, err := s.store.Queue().Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, item), nil
}

func (s *QueueService) detail(ctx context.Context, item *storage.MergeQueueItem) *MergeQueueItemDetail {
	d := &MergeQueueItemDetail{Item: item}
	d.Primary = s.summary(ctx, item.TenantID, item.PrimaryCandidateID)
	d.Duplicate = s.summary(ctx, item.TenantID, item.DuplicateCandidateID)
	return d
}

func (s *QueueService) summary(ctx context.Context, tenantID, candidateID string) *CandidateSummary {
	c, err := s.store.Candidates().GetIncludingMerged(ctx, tenantID, candidateID)
	if err != nil {
		return nil
	}
	return &CandidateSummary{
		ID:        c.ID,
		FirstName: c.FirstName,
		LastName:  c.LastName,
		Email:     c.Email,
		Lifecycle: string(c.Lifecycle),
	}
}

// Merge executes an approved queue item: the pending->merged transition and
// all merge side effects commit in one transaction, serialized per tenant.
// A non-pending item fails with ErrInvalidTransition and the candidates are
// untouched; a failed merge leaves the item pending and retryable.
func (s *QueueService) Merge(ctx context.Context, tenantID, queueItemID string, strategy Strategy, reviewer, notes string) (*storage.MergeResult, error) {
	release, err := s.locker.Acquire(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("acquire tenant lock: %w", err)
	}
	defer release()

	item, err := s.store.Queue().Get(ctx, tenantID, queueItemID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var result *storage.MergeResult
	err = s.store.InTx(ctx, func(tx storage.Store) error {
		if err := tx.Queue().ClaimPending(ctx, tenantID, queueItemID, storage.StatusMerged, reviewer, notes, now); err != nil {
			return err
		}
		r, err := s.merger.apply(ctx, tx, tenantID, item.PrimaryCandidateID, item.DuplicateCandidateID, strategy, reviewer, notes)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("queue item merged",
		zap.String("tenant_id", tenantID),
		zap.String("queue_item_id", queueItemID),
		zap.String("reviewer", reviewer))
	return result, nil
}

// Reject marks a pending item rejected. No candidate data changes.
func (s *QueueService) Reject(ctx context.Context, tenantID, queueItemID, reviewer, notes string) error {
	return s.store.Queue().ClaimPending(ctx, tenantID, queueItemID, storage.StatusRejected, reviewer, notes, time.Now().UTC())
}

// Defer marks a pending item deferred. No candidate data changes.
func (s *QueueService) Defer(ctx context.Context, tenantID, queueItemID, reviewer, notes string) error {
	return s.store.Queue().ClaimPending(ctx, tenantID, queueItemID, storage.StatusDeferred, reviewer, notes, time.Now().UTC())
}

// QueueStats returns the tenant's queue counters.
func (s *QueueService) QueueStats(ctx context.Context, tenantID string) (*storage.QueueStats, error) {
	return s.store.Queue().Stats(ctx, tenantID)
}

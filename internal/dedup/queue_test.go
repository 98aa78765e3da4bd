package dedup

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"candidate-dedup/internal/storage"
)

func newTestQueue(store storage.Store) *QueueService {
	return NewQueueService(store, NewMemoryLocker(), zap.NewNop())
}

func TestScanAllCandidatesFlagsAndQueues(t *testing.T) {
	store := storage.NewMemoryStore()
	q := newTestQueue(store)
	ctx := context.Background()

	a := seedCandidate(t, store, &storage.CandidateRecord{
		FirstName: "Jane", LastName: "Doe", Phone: "555-123-4567",
	})
	b := seedCandidate(t, store, &storage.CandidateRecord{
		FirstName: "Jane", LastName: "Doe", Phone: "(555) 123-4567",
	})
	seedCandidate(t, store, &storage.CandidateRecord{
		FirstName: "Carlos", LastName: "Mendez", Phone: "555-999-0000",
	})

	summary, err := q.ScanAllCandidates(ctx, testTenant, 0, true, "test")
	require.NoError(t, err)

	assert.Equal(t, 3, summary.CandidatesScanned)
	assert.Equal(t, 1, summary.DuplicatesFound)
	assert.Equal(t, 1, summary.ItemsAdded)

	items, total, err := store.Queue().List(ctx, testTenant, 1, 20, storage.StatusPending, "")
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, a.ID, items[0].PrimaryCandidateID)
	assert.Equal(t, b.ID, items[0].DuplicateCandidateID)
	assert.InDelta(t, 0.55, items[0].MatchScore, 1e-9)
	assert.Equal(t, storage.MatchReview, items[0].MatchType)
}

// Re-running the scan must not duplicate queue items for pairs that already
// have a pending one.
func TestScanAllCandidatesPendingSuppression(t *testing.T) {
	store := storage.NewMemoryStore()
	q := newTestQueue(store)
	ctx := context.Background()

	seedCandidate(t, store, &storage.CandidateRecord{
		FirstName: "Jane", LastName: "Doe", Phone: "555-123-4567",
	})
	seedCandidate(t, store, &storage.CandidateRecord{
		FirstName: "Jane", LastName: "Doe", Phone: "555-123-4567",
	})

	first, err := q.ScanAllCandidates(ctx, testTenant, 0, true, "test")
	require.NoError(t, err)
	assert.Equal(t, 1, first.ItemsAdded)

	second, err := q.ScanAllCandidates(ctx, testTenant, 0, true, "test")
	require.NoError(t, err)
	assert.Equal(t, 1, second.DuplicatesFound)
	assert.Equal(t, 0, second.ItemsAdded)

	_, total, err := store.Queue().List(ctx, testTenant, 1, 20, "", "")
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

// Each candidate joins at most one flagged pair per pass: with three mutual
// duplicates only the first pair is flagged this round.
func TestScanAllCandidatesOnePairPerPass(t *testing.T) {
	store := storage.NewMemoryStore()
	q := newTestQueue(store)

	for i := 0; i < 3; i++ {
		seedCandidate(t, store, &storage.CandidateRecord{
			FirstName: "Jane", LastName: "Doe", Phone: "555-123-4567",
		})
	}

	summary, err := q.ScanAllCandidates(context.Background(), testTenant, 0, true, "test")
	require.NoError(t, err)

	assert.Equal(t, 1, summary.DuplicatesFound)
	assert.Equal(t, 1, summary.ItemsAdded)
}

func TestScanAllCandidatesDryRun(t *testing.T) {
	store := storage.NewMemoryStore()
	q := newTestQueue(store)
	ctx := context.Background()

	seedCandidate(t, store, &storage.CandidateRecord{
		FirstName: "Jane", LastName: "Doe", Phone: "555-123-4567",
	})
	seedCandidate(t, store, &storage.CandidateRecord{
		FirstName: "Jane", LastName: "Doe", Phone: "555-123-4567",
	})

	summary, err := q.ScanAllCandidates(ctx, testTenant, 0, false, "test")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.DuplicatesFound)
	assert.Equal(t, 0, summary.ItemsAdded)

	_, total, err := store.Queue().List(ctx, testTenant, 1, 20, "", "")
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}

func TestDetectDuplicatesMinConfidence(t *testing.T) {
	store := storage.NewMemoryStore()
	q := newTestQueue(store)
	ctx := context.Background()

	seedCandidate(t, store, &storage.CandidateRecord{
		FirstName: "Bob", LastName: "Smith",
	})
	probe := seedCandidate(t, store, &storage.CandidateRecord{
		FirstName: "Robert", LastName: "Smith",
	})

	// Name-only is a LOW match at 0.40.
	matches, err := q.DetectDuplicates(ctx, testTenant, probe.ID, 0)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.InDelta(t, 0.40, matches[0].Score, 1e-9)
	assert.Equal(t, storage.MatchReview, matches[0].MatchType)

	// A floor above LOW filters it out.
	matches, err = q.DetectDuplicates(ctx, testTenant, probe.ID, 0.5)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestEnqueueMatchSuppressesPendingPair(t *testing.T) {
	store := storage.NewMemoryStore()
	q := newTestQueue(store)
	ctx := context.Background()

	a := seedCandidate(t, store, &storage.CandidateRecord{FirstName: "A", LastName: "B"})
	b := seedCandidate(t, store, &storage.CandidateRecord{FirstName: "C", LastName: "D"})

	match := &CandidateMatch{
		CandidateID:        b.ID,
		MatchedCandidateID: a.ID,
		Score:              0.85,
		MatchType:          storage.MatchStrong,
	}
	added, err := q.EnqueueMatch(ctx, testTenant, match)
	require.NoError(t, err)
	assert.True(t, added)

	// Same pair again, either orientation.
	added, err = q.EnqueueMatch(ctx, testTenant, match)
	require.NoError(t, err)
	assert.False(t, added)

	flipped := &CandidateMatch{CandidateID: a.ID, MatchedCandidateID: b.ID, Score: 0.85, MatchType: storage.MatchStrong}
	added, err = q.EnqueueMatch(ctx, testTenant, flipped)
	require.NoError(t, err)
	assert.False(t, added)
}

func TestQueueMergeHappyPath(t *testing.T) {
	store := storage.NewMemoryStore()
	q := newTestQueue(store)
	ctx := context.Background()

	primary := seedCandidate(t, store, &storage.CandidateRecord{
		FirstName: "Jane", LastName: "Doe", Phone: "555-123-4567",
	})
	duplicate := seedCandidate(t, store, &storage.CandidateRecord{
		FirstName: "Jane", LastName: "Doe", Phone: "555-123-4567",
	})

	summary, err := q.ScanAllCandidates(ctx, testTenant, 0, true, "test")
	require.NoError(t, err)
	require.Equal(t, 1, summary.ItemsAdded)

	items, _, err := store.Queue().List(ctx, testTenant, 1, 1, storage.StatusPending, "")
	require.NoError(t, err)
	item := items[0]

	result, err := q.Merge(ctx, testTenant, item.ID, SmartMerge, "alice", "confirmed")
	require.NoError(t, err)
	assert.Equal(t, primary.ID, result.PrimaryCandidateID)
	assert.Equal(t, duplicate.ID, result.DuplicateCandidateID)

	// Queue item settled and attributed.
	settled, err := store.Queue().Get(ctx, testTenant, item.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusMerged, settled.Status)
	assert.Equal(t, "alice", settled.ReviewedBy)
	assert.Equal(t, "confirmed", settled.ReviewNotes)
	require.NotNil(t, settled.ReviewedAt)

	// Duplicate is gone from active reads.
	_, err = store.Candidates().Get(ctx, testTenant, duplicate.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestQueueMergeTerminalItem(t *testing.T) {
	store := storage.NewMemoryStore()
	q := newTestQueue(store)
	ctx := context.Background()

	seedCandidate(t, store, &storage.CandidateRecord{
		FirstName: "Jane", LastName: "Doe", Phone: "555-123-4567",
	})
	duplicate := seedCandidate(t, store, &storage.CandidateRecord{
		FirstName: "Jane", LastName: "Doe", Phone: "555-123-4567",
	})

	_, err := q.ScanAllCandidates(ctx, testTenant, 0, true, "test")
	require.NoError(t, err)
	items, _, err := store.Queue().List(ctx, testTenant, 1, 1, storage.StatusPending, "")
	require.NoError(t, err)
	item := items[0]

	require.NoError(t, q.Reject(ctx, testTenant, item.ID, "alice", "different people"))

	// A rejected item cannot be merged, and the candidates stay untouched.
	_, err = q.Merge(ctx, testTenant, item.ID, SmartMerge, "bob", "")
	assert.ErrorIs(t, err, storage.ErrInvalidTransition)

	d, err := store.Candidates().Get(ctx, testTenant, duplicate.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.LifecycleActive, d.Lifecycle)
	assert.Empty(t, store.MergeResultsFor(testTenant))
}

func TestQueueRejectAndDeferTransitions(t *testing.T) {
	store := storage.NewMemoryStore()
	q := newTestQueue(store)
	ctx := context.Background()

	seedCandidate(t, store, &storage.CandidateRecord{
		FirstName: "Jane", LastName: "Doe", Phone: "555-123-4567",
	})
	seedCandidate(t, store, &storage.CandidateRecord{
		FirstName: "Jane", LastName: "Doe", Phone: "555-123-4567",
	})
	_, err := q.ScanAllCandidates(ctx, testTenant, 0, true, "test")
	require.NoError(t, err)
	items, _, err := store.Queue().List(ctx, testTenant, 1, 1, storage.StatusPending, "")
	require.NoError(t, err)
	item := items[0]

	require.NoError(t, q.Defer(ctx, testTenant, item.ID, "alice", "waiting on candidate"))

	// Deferred is terminal too: no second transition.
	err = q.Reject(ctx, testTenant, item.ID, "bob", "")
	assert.ErrorIs(t, err, storage.ErrInvalidTransition)

	settled, err := store.Queue().Get(ctx, testTenant, item.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusDeferred, settled.Status)
	assert.Equal(t, "alice", settled.ReviewedBy)
}

// Two reviewers racing to merge the same item: exactly one wins, the other
// sees the conflict, and the merge side effects apply once.
func TestQueueMergeConcurrentSingleWinner(t *testing.T) {
	store := storage.NewMemoryStore()
	q := newTestQueue(store)
	ctx := context.Background()

	seedCandidate(t, store, &storage.CandidateRecord{
		FirstName: "Jane", LastName: "Doe", Phone: "555-123-4567",
	})
	seedCandidate(t, store, &storage.CandidateRecord{
		FirstName: "Jane", LastName: "Doe", Phone: "555-123-4567",
	})
	_, err := q.ScanAllCandidates(ctx, testTenant, 0, true, "test")
	require.NoError(t, err)
	items, _, err := store.Queue().List(ctx, testTenant, 1, 1, storage.StatusPending, "")
	require.NoError(t, err)
	item := items[0]

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = q.Merge(ctx, testTenant, item.ID, SmartMerge, "reviewer", "")
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			assert.ErrorIs(t, err, storage.ErrInvalidTransition)
		}
	}
	assert.Equal(t, 1, winners)
	assert.Len(t, store.MergeResultsFor(testTenant), 1)
}

func TestGetQueueItemDetailIncludesMergedCandidates(t *testing.T) {
	store := storage.NewMemoryStore()
	q := newTestQueue(store)
	ctx := context.Background()

	seedCandidate(t, store, &storage.CandidateRecord{
		FirstName: "Jane", LastName: "Doe", Phone: "555-123-4567", Email: "jane@example.com",
	})
	seedCandidate(t, store, &storage.CandidateRecord{
		FirstName: "Jane", LastName: "Doe", Phone: "555-123-4567",
	})
	_, err := q.ScanAllCandidates(ctx, testTenant, 0, true, "test")
	require.NoError(t, err)
	items, _, err := store.Queue().List(ctx, testTenant, 1, 1, storage.StatusPending, "")
	require.NoError(t, err)
	item := items[0]

	_, err = q.Merge(ctx, testTenant, item.ID, SmartMerge, "alice", "")
	require.NoError(t, err)

	// Historical items still resolve both sides even after the merge.
	detail, err := q.GetQueueItem(ctx, testTenant, item.ID)
	require.NoError(t, err)
	require.NotNil(t, detail.Primary)
	require.NotNil(t, detail.Duplicate)
	assert.Equal(t, string(storage.LifecycleMerged), detail.Duplicate.Lifecycle)
}

func TestQueueStats(t *testing.T) {
	store := storage.NewMemoryStore()
	q := newTestQueue(store)
	ctx := context.Background()

	seedCandidate(t, store, &storage.CandidateRecord{
		FirstName: "Jane", LastName: "Doe", Phone: "555-123-4567",
	})
	seedCandidate(t, store, &storage.CandidateRecord{
		FirstName: "Jane", LastName: "Doe", Phone: "555-123-4567",
	})
	_, err := q.ScanAllCandidates(ctx, testTenant, 0, true, "test")
	require.NoError(t, err)

	stats, err := q.QueueStats(ctx, testTenant)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, 1, stats.ByMatchType[storage.MatchReview])

	items, _, err := store.Queue().List(ctx, testTenant, 1, 1, storage.StatusPending, "")
	require.NoError(t, err)
	require.NoError(t, q.Reject(ctx, testTenant, items[0].ID, "alice", ""))

	stats, err = q.QueueStats(ctx, testTenant)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Pending)
	assert.Equal(t, 1, stats.Rejected)
}

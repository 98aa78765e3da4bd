package dedup

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"candidate-dedup/internal/identity"
	"candidate-dedup/internal/storage"
)

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, SmartMerge, s)

	s, err = ParseStrategy("prefer_new")
	require.NoError(t, err)
	assert.Equal(t, PreferNew, s)

	s, err = ParseStrategy("prefer_existing")
	require.NoError(t, err)
	assert.Equal(t, PreferExisting, s)

	_, err = ParseStrategy("bogus")
	assert.Error(t, err)
}

func TestMergeCandidatesSmartMerge(t *testing.T) {
	store := storage.NewMemoryStore()
	m := NewMerger(store, zap.NewNop())
	ctx := context.Background()

	primary := seedCandidate(t, store, &storage.CandidateRecord{
		FirstName: "Robert", LastName: "Smith",
		Email: "robert@example.com", Phone: "555-111-2222",
		Location: "Boston", Skills: []string{"Go", "Postgres"},
		Tags: []string{"senior"},
	})
	duplicate := seedCandidate(t, store, &storage.CandidateRecord{
		FirstName: "Bob", LastName: "Smith",
		Email: "bob@example.com", Phone: "555-999-8888",
		Location: "New York", Skills: []string{"go", "Kubernetes"},
		Tags: []string{"senior", "referral"},
	})

	result, err := m.MergeCandidates(ctx, testTenant, primary.ID, duplicate.ID, SmartMerge, "alice", "same person")
	require.NoError(t, err)

	merged, err := store.Candidates().Get(ctx, testTenant, primary.ID)
	require.NoError(t, err)

	// Contact fields come from the duplicate, names survive.
	assert.Equal(t, "Robert", merged.FirstName)
	assert.Equal(t, "robert@example.com", merged.Email)
	assert.Equal(t, "555-999-8888", merged.Phone)
	assert.Equal(t, "New York", merged.Location)

	// Skills union is case-insensitive and keeps first-seen order.
	assert.Equal(t, []string{"Go", "Postgres", "Kubernetes"}, merged.Skills)
	assert.Equal(t, []string{"senior", "referral"}, merged.Tags)

	assert.True(t, result.Changes[storage.ChangeContactFields])
	assert.True(t, result.Changes[storage.ChangeSkillsMerged])
	assert.True(t, result.Changes[storage.ChangeTagsMerged])
	assert.False(t, result.Changes[storage.ChangeNameFields])
	assert.Equal(t, "smart_merge", result.Strategy)
	assert.Equal(t, "alice", result.MergedBy)

	// The duplicate is soft-deleted, not gone.
	_, err = store.Candidates().Get(ctx, testTenant, duplicate.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	kept, err := store.Candidates().GetIncludingMerged(ctx, testTenant, duplicate.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.LifecycleMerged, kept.Lifecycle)
	require.NotNil(t, kept.DeletedAt)
}

func TestMergeCandidatesPreferNew(t *testing.T) {
	store := storage.NewMemoryStore()
	m := NewMerger(store, zap.NewNop())
	ctx := context.Background()

	primary := seedCandidate(t, store, &storage.CandidateRecord{
		FirstName: "Robert", LastName: "Smith", Email: "old@example.com",
		Skills: []string{"Go"},
	})
	duplicate := seedCandidate(t, store, &storage.CandidateRecord{
		FirstName: "Bob", LastName: "Smith", Email: "new@example.com",
		Skills: []string{"Rust"},
	})

	_, err := m.MergeCandidates(ctx, testTenant, primary.ID, duplicate.ID, PreferNew, "alice", "")
	require.NoError(t, err)

	merged, err := store.Candidates().Get(ctx, testTenant, primary.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bob", merged.FirstName)
	assert.Equal(t, "new@example.com", merged.Email)
	assert.Equal(t, []string{"Rust"}, merged.Skills)
}

func TestMergeCandidatesPreferExisting(t *testing.T) {
	store := storage.NewMemoryStore()
	m := NewMerger(store, zap.NewNop())
	ctx := context.Background()

	primary := seedCandidate(t, store, &storage.CandidateRecord{
		FirstName: "Robert", LastName: "Smith", Email: "old@example.com",
	})
	duplicate := seedCandidate(t, store, &storage.CandidateRecord{
		FirstName: "Bob", LastName: "Smith", Email: "new@example.com",
		Phone: "555-123-4567", Location: "Denver",
	})

	_, err := m.MergeCandidates(ctx, testTenant, primary.ID, duplicate.ID, PreferExisting, "alice", "")
	require.NoError(t, err)

	merged, err := store.Candidates().Get(ctx, testTenant, primary.ID)
	require.NoError(t, err)
	// Existing values win; only gaps are filled.
	assert.Equal(t, "Robert", merged.FirstName)
	assert.Equal(t, "old@example.com", merged.Email)
	assert.Equal(t, "555-123-4567", merged.Phone)
	assert.Equal(t, "Denver", merged.Location)
}

func TestMergeAdoptsDuplicateResume(t *testing.T) {
	store := storage.NewMemoryStore()
	m := NewMerger(store, zap.NewNop())
	ctx := context.Background()

	primary := seedCandidate(t, store, &storage.CandidateRecord{FirstName: "A", LastName: "B"})
	duplicate := seedCandidate(t, store, &storage.CandidateRecord{FirstName: "C", LastName: "D"})

	seedPrimaryResume(t, store, primary.ID, []identity.Experience{{Company: "Acme", Title: "Engineer"}})
	seedPrimaryResume(t, store, duplicate.ID, []identity.Experience{{Company: "Globex", Title: "Manager"}})

	result, err := m.MergeCandidates(ctx, testTenant, primary.ID, duplicate.ID, SmartMerge, "alice", "")
	require.NoError(t, err)

	assert.Equal(t, 2, result.ResumeVersion)
	assert.True(t, result.Changes[storage.ChangeResumeAdded])

	// The adopted resume is the primary's new primary.
	current, err := store.Resumes().PrimaryForCandidate(ctx, testTenant, primary.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, current.Version)
	assert.True(t, current.IsPrimary)
	require.Len(t, current.Parsed.Experience, 1)
	assert.Equal(t, "Globex", current.Parsed.Experience[0].Company)
}

func TestMergeWithoutDuplicateResume(t *testing.T) {
	store := storage.NewMemoryStore()
	m := NewMerger(store, zap.NewNop())
	ctx := context.Background()

	primary := seedCandidate(t, store, &storage.CandidateRecord{FirstName: "A", LastName: "B"})
	duplicate := seedCandidate(t, store, &storage.CandidateRecord{FirstName: "C", LastName: "D"})
	seedPrimaryResume(t, store, primary.ID, []identity.Experience{{Company: "Acme", Title: "Engineer"}})

	result, err := m.MergeCandidates(ctx, testTenant, primary.ID, duplicate.ID, SmartMerge, "alice", "")
	require.NoError(t, err)

	assert.Equal(t, 0, result.ResumeVersion)
	assert.False(t, result.Changes[storage.ChangeResumeAdded])

	current, err := store.Resumes().PrimaryForCandidate(ctx, testTenant, primary.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, current.Version)
}

func TestMergeMigratesCrossReferences(t *testing.T) {
	store := storage.NewMemoryStore()
	m := NewMerger(store, zap.NewNop())
	ctx := context.Background()

	primary := seedCandidate(t, store, &storage.CandidateRecord{FirstName: "A", LastName: "B"})
	duplicate := seedCandidate(t, store, &storage.CandidateRecord{FirstName: "C", LastName: "D"})

	store.AddApplication(&storage.Application{
		ID: uuid.NewString(), TenantID: testTenant, CandidateID: duplicate.ID,
		JobID: "job-1", Status: "applied", AppliedAt: time.Now().UTC(),
	})
	store.AddApplication(&storage.Application{
		ID: uuid.NewString(), TenantID: testTenant, CandidateID: duplicate.ID,
		JobID: "job-2", Status: "screening", AppliedAt: time.Now().UTC(),
	})
	store.AddObservation(&storage.Observation{
		ID: uuid.NewString(), TenantID: testTenant, CandidateID: duplicate.ID,
		Kind: "interview_note", Body: "strong", CreatedAt: time.Now().UTC(),
	})

	result, err := m.MergeCandidates(ctx, testTenant, primary.ID, duplicate.ID, SmartMerge, "alice", "")
	require.NoError(t, err)

	assert.True(t, result.Changes[storage.ChangeCrossRefsMoved])
	assert.Len(t, store.ApplicationsFor(testTenant, primary.ID), 2)
	assert.Empty(t, store.ApplicationsFor(testTenant, duplicate.ID))
}

func TestMergeSelfIsInvalid(t *testing.T) {
	store := storage.NewMemoryStore()
	m := NewMerger(store, zap.NewNop())

	c := seedCandidate(t, store, &storage.CandidateRecord{FirstName: "A", LastName: "B"})

	_, err := m.MergeCandidates(context.Background(), testTenant, c.ID, c.ID, SmartMerge, "alice", "")
	assert.ErrorIs(t, err, storage.ErrInvalidTransition)
}

func TestMergeMissingCandidate(t *testing.T) {
	store := storage.NewMemoryStore()
	m := NewMerger(store, zap.NewNop())

	c := seedCandidate(t, store, &storage.CandidateRecord{FirstName: "A", LastName: "B"})

	_, err := m.MergeCandidates(context.Background(), testTenant, c.ID, uuid.NewString(), SmartMerge, "alice", "")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = m.MergeCandidates(context.Background(), testTenant, uuid.NewString(), c.ID, SmartMerge, "alice", "")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

// A failure at any merge step must roll back every side effect already
// applied in the transaction.
func TestMergeIsAtomic(t *testing.T) {
	store := storage.NewMemoryStore()
	m := NewMerger(store, zap.NewNop())
	ctx := context.Background()

	primary := seedCandidate(t, store, &storage.CandidateRecord{
		FirstName: "Robert", LastName: "Smith", Phone: "555-111-2222",
	})
	duplicate := seedCandidate(t, store, &storage.CandidateRecord{
		FirstName: "Bob", LastName: "Smith", Phone: "555-999-8888",
	})
	store.AddApplication(&storage.Application{
		ID: uuid.NewString(), TenantID: testTenant, CandidateID: duplicate.ID,
		JobID: "job-1", AppliedAt: time.Now().UTC(),
	})

	boom := fmt.Errorf("disk on fire")
	store.SetFailHook(func(op string) error {
		if op == "candidates.mark_merged" {
			return boom
		}
		return nil
	})

	_, err := m.MergeCandidates(ctx, testTenant, primary.ID, duplicate.ID, SmartMerge, "alice", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
	store.SetFailHook(nil)

	// Primary's field update and the cross-ref move were rolled back.
	p, err := store.Candidates().Get(ctx, testTenant, primary.ID)
	require.NoError(t, err)
	assert.Equal(t, "555-111-2222", p.Phone)
	assert.Len(t, store.ApplicationsFor(testTenant, duplicate.ID), 1)

	// The duplicate is still active and no result was recorded.
	d, err := store.Candidates().Get(ctx, testTenant, duplicate.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.LifecycleActive, d.Lifecycle)
	assert.Empty(t, store.MergeResultsFor(testTenant))
}

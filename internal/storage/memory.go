package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"candidate-dedup/internal/identity"
)

// MemoryStore is an in-memory Store used by unit tests and local
// development without a database. InTx takes a snapshot of all data and
// restores it when the callback fails, matching the all-or-nothing
// semantics of the Postgres implementation.
type MemoryStore struct {
	mu   sync.Mutex
	data *memData

	// failHook, when set, is consulted before every mutating operation.
	// Returning a non-nil error aborts that operation; tests use it to
	// simulate store failures mid-merge.
	failHook func(op string) error
}

type memData struct {
	candidates     map[string]*CandidateRecord
	candidateOrder []string
	resumes        map[string]*ResumeRecord
	queue          map[string]*MergeQueueItem
	queueOrder     []string
	applications   map[string]*Application
	observations   map[string]*Observation
	events         map[string]*ActivityEvent
	results        map[string]*MergeResult
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: newMemData()}
}

func newMemData() *memData {
	return &memData{
		candidates:   map[string]*CandidateRecord{},
		resumes:      map[string]*ResumeRecord{},
		queue:        map[string]*MergeQueueItem{},
		applications: map[string]*Application{},
		observations: map[string]*Observation{},
		events:       map[string]*ActivityEvent{},
		results:      map[string]*MergeResult{},
	}
}

// SetFailHook installs a fault-injection hook for tests. Operations report
// themselves as "candidates.mark_merged", "crossrefs.reassign", etc.
func (s *MemoryStore) SetFailHook(hook func(op string) error) {
	s.failHook = hook
}

func (s *MemoryStore) hook(op string) error {
	if s.failHook != nil {
		return s.failHook(op)
	}
	return nil
}

func (s *MemoryStore) Candidates() CandidateStore     { return &memCandidates{s: s, lock: true} }
func (s *MemoryStore) Resumes() ResumeStore           { return &memResumes{s: s, lock: true} }
func (s *MemoryStore) Queue() QueueStore              { return &memQueue{s: s, lock: true} }
func (s *MemoryStore) CrossRefs() CrossRefStore       { return &memCrossRefs{s: s, lock: true} }
func (s *MemoryStore) MergeResults() MergeResultStore { return &memMergeResults{s: s, lock: true} }

func (s *MemoryStore) InTx(_ context.Context, fn func(tx Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	if err := fn(&txMemoryStore{root: s}); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

// txMemoryStore is the transaction-scoped view: the root mutex is already
// held, so its sub-stores skip locking.
type txMemoryStore struct {
	root *MemoryStore
}

func (t *txMemoryStore) Candidates() CandidateStore     { return &memCandidates{s: t.root} }
func (t *txMemoryStore) Resumes() ResumeStore           { return &memResumes{s: t.root} }
func (t *txMemoryStore) Queue() QueueStore              { return &memQueue{s: t.root} }
func (t *txMemoryStore) CrossRefs() CrossRefStore       { return &memCrossRefs{s: t.root} }
func (t *txMemoryStore) MergeResults() MergeResultStore { return &memMergeResults{s: t.root} }

func (t *txMemoryStore) InTx(_ context.Context, fn func(tx Store) error) error {
	return fn(t)
}

func (s *MemoryStore) enter(lock bool) func() {
	if !lock {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// Seeding helpers for tests.

func (s *MemoryStore) AddApplication(a *Application) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.data.applications[a.ID] = &cp
}

func (s *MemoryStore) AddObservation(o *Observation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *o
	s.data.observations[o.ID] = &cp
}

func (s *MemoryStore) AddActivityEvent(e *ActivityEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *e
	s.data.events[e.ID] = &cp
}

// ApplicationsFor returns the candidate's applications (any lifecycle).
func (s *MemoryStore) ApplicationsFor(tenantID, candidateID string) []*Application {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Application
	for _, a := range s.data.applications {
		if a.TenantID == tenantID && a.CandidateID == candidateID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out
}

// MergeResultsFor returns recorded merge results for a tenant.
func (s *MemoryStore) MergeResultsFor(tenantID string) []*MergeResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*MergeResult
	for _, r := range s.data.results {
		if r.TenantID == tenantID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out
}

type memCandidates struct {
	s    *MemoryStore
	lock bool
}

func (r *memCandidates) Insert(_ context.Context, c *CandidateRecord) error {
	defer r.s.enter(r.lock)()
	if err := r.s.hook("candidates.insert"); err != nil {
		return err
	}
	cp := cloneCandidate(c)
	r.s.data.candidates[c.ID] = cp
	r.s.data.candidateOrder = append(r.s.data.candidateOrder, c.ID)
	return nil
}

func (r *memCandidates) Get(_ context.Context, tenantID, id string) (*CandidateRecord, error) {
	defer r.s.enter(r.lock)()
	c, ok := r.s.data.candidates[id]
	if !ok || c.TenantID != tenantID || c.Lifecycle != LifecycleActive {
		return nil, fmt.Errorf("candidate %s: %w", id, ErrNotFound)
	}
	return cloneCandidate(c), nil
}

func (r *memCandidates) GetIncludingMerged(_ context.Context, tenantID, id string) (*CandidateRecord, error) {
	defer r.s.enter(r.lock)()
	c, ok := r.s.data.candidates[id]
	if !ok || c.TenantID != tenantID {
		return nil, fmt.Errorf("candidate %s: %w", id, ErrNotFound)
	}
	return cloneCandidate(c), nil
}

func (r *memCandidates) Update(_ context.Context, c *CandidateRecord) error {
	defer r.s.enter(r.lock)()
	if err := r.s.hook("candidates.update"); err != nil {
		return err
	}
	existing, ok := r.s.data.candidates[c.ID]
	if !ok || existing.TenantID != c.TenantID || existing.Lifecycle != LifecycleActive {
		return fmt.Errorf("candidate %s: %w", c.ID, ErrNotFound)
	}
	cp := cloneCandidate(c)
	cp.CreatedAt = existing.CreatedAt
	r.s.data.candidates[c.ID] = cp
	return nil
}

func (r *memCandidates) ListActive(_ context.Context, tenantID string, limit int) ([]*CandidateRecord, error) {
	defer r.s.enter(r.lock)()
	var out []*CandidateRecord
	for _, id := range r.s.data.candidateOrder {
		c, ok := r.s.data.candidates[id]
		if !ok || c.TenantID != tenantID || c.Lifecycle != LifecycleActive {
			continue
		}
		out = append(out, cloneCandidate(c))
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *memCandidates) MarkMerged(_ context.Context, tenantID, id string, at time.Time) error {
	defer r.s.enter(r.lock)()
	if err := r.s.hook("candidates.mark_merged"); err != nil {
		return err
	}
	c, ok := r.s.data.candidates[id]
	if !ok || c.TenantID != tenantID || c.Lifecycle != LifecycleActive {
		return fmt.Errorf("candidate %s: %w", id, ErrNotFound)
	}
	t := at
	c.Lifecycle = LifecycleMerged
	c.DeletedAt = &t
	c.UpdatedAt = at
	return nil
}

func (r *memCandidates) TenantIDs(_ context.Context) ([]string, error) {
	defer r.s.enter(r.lock)()
	seen := map[string]bool{}
	var out []string
	for _, c := range r.s.data.candidates {
		if !seen[c.TenantID] {
			seen[c.TenantID] = true
			out = append(out, c.TenantID)
		}
	}
	sort.Strings(out)
	return out, nil
}

type memResumes struct {
	s    *MemoryStore
	lock bool
}

func (r *memResumes) Insert(_ context.Context, rec *ResumeRecord) error {
	defer r.s.enter(r.lock)()
	if err := r.s.hook("resumes.insert"); err != nil {
		return err
	}
	cp := cloneResume(rec)
	r.s.data.resumes[rec.ID] = cp
	return nil
}

func (r *memResumes) PrimaryForCandidate(_ context.Context, tenantID, candidateID string) (*ResumeRecord, error) {
	defer r.s.enter(r.lock)()
	var best *ResumeRecord
	for _, rec := range r.s.data.resumes {
		if rec.TenantID != tenantID || rec.CandidateID != candidateID || !rec.IsPrimary {
			continue
		}
		if best == nil || rec.Version > best.Version {
			best = rec
		}
	}
	if best == nil {
		return nil, fmt.Errorf("primary resume for candidate %s: %w", candidateID, ErrNotFound)
	}
	return cloneResume(best), nil
}

func (r *memResumes) NextVersion(_ context.Context, tenantID, candidateID string) (int, error) {
	defer r.s.enter(r.lock)()
	max := 0
	for _, rec := range r.s.data.resumes {
		if rec.TenantID == tenantID && rec.CandidateID == candidateID && rec.Version > max {
			max = rec.Version
		}
	}
	return max + 1, nil
}

func (r *memResumes) DemotePrimary(_ context.Context, tenantID, candidateID string) error {
	defer r.s.enter(r.lock)()
	if err := r.s.hook("resumes.demote_primary"); err != nil {
		return err
	}
	for _, rec := range r.s.data.resumes {
		if rec.TenantID == tenantID && rec.CandidateID == candidateID {
			rec.IsPrimary = false
		}
	}
	return nil
}

type memQueue struct {
	s    *MemoryStore
	lock bool
}

func (r *memQueue) Insert(_ context.Context, item *MergeQueueItem) error {
	defer r.s.enter(r.lock)()
	if err := r.s.hook("queue.insert"); err != nil {
		return err
	}
	cp := cloneQueueItem(item)
	r.s.data.queue[item.ID] = cp
	r.s.data.queueOrder = append(r.s.data.queueOrder, item.ID)
	return nil
}

func (r *memQueue) Get(_ context.Context, tenantID, id string) (*MergeQueueItem, error) {
	defer r.s.enter(r.lock)()
	item, ok := r.s.data.queue[id]
	if !ok || item.TenantID != tenantID {
		return nil, fmt.Errorf("queue item %s: %w", id, ErrNotFound)
	}
	return cloneQueueItem(item), nil
}

func (r *memQueue) List(_ context.Context, tenantID string, page, pageSize int, status QueueStatus, matchType MatchType) ([]*MergeQueueItem, int, error) {
	defer r.s.enter(r.lock)()
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	var all []*MergeQueueItem
	// queueOrder is insertion order; newest first mirrors the SQL ordering.
	for i := len(r.s.data.queueOrder) - 1; i >= 0; i-- {
		item, ok := r.s.data.queue[r.s.data.queueOrder[i]]
		if !ok || item.TenantID != tenantID {
			continue
		}
		if status != "" && item.Status != status {
			continue
		}
		if matchType != "" && item.MatchType != matchType {
			continue
		}
		all = append(all, cloneQueueItem(item))
	}
	total := len(all)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (r *memQueue) PendingForPair(_ context.Context, tenantID, candidateA, candidateB string) (bool, error) {
	defer r.s.enter(r.lock)()
	for _, item := range r.s.data.queue {
		if item.TenantID != tenantID || item.Status != StatusPending {
			continue
		}
		if (item.PrimaryCandidateID == candidateA && item.DuplicateCandidateID == candidateB) ||
			(item.PrimaryCandidateID == candidateB && item.DuplicateCandidateID == candidateA) {
			return true, nil
		}
	}
	return false, nil
}

func (r *memQueue) ClaimPending(_ context.Context, tenantID, id string, to QueueStatus, reviewer, notes string, at time.Time) error {
	defer r.s.enter(r.lock)()
	if err := r.s.hook("queue.claim"); err != nil {
		return err
	}
	item, ok := r.s.data.queue[id]
	if !ok || item.TenantID != tenantID {
		return fmt.Errorf("queue item %s: %w", id, ErrNotFound)
	}
	if item.Status != StatusPending {
		return fmt.Errorf("queue item %s is %s: %w", id, item.Status, ErrInvalidTransition)
	}
	t := at
	item.Status = to
	item.ReviewedBy = reviewer
	item.ReviewedAt = &t
	item.ReviewNotes = notes
	return nil
}

func (r *memQueue) Stats(_ context.Context, tenantID string) (*QueueStats, error) {
	defer r.s.enter(r.lock)()
	stats := &QueueStats{ByMatchType: map[MatchType]int{}}
	for _, item := range r.s.data.queue {
		if item.TenantID != tenantID {
			continue
		}
		switch item.Status {
		case StatusPending:
			stats.Pending++
			stats.ByMatchType[item.MatchType]++
		case StatusMerged:
			stats.Merged++
		case StatusRejected:
			stats.Rejected++
		case StatusDeferred:
			stats.Deferred++
		}
	}
	return stats, nil
}

type memCrossRefs struct {
	s    *MemoryStore
	lock bool
}

func (r *memCrossRefs) ReassignCandidate(_ context.Context, tenantID, fromID, toID string) (CrossRefCounts, error) {
	defer r.s.enter(r.lock)()
	var counts CrossRefCounts
	if err := r.s.hook("crossrefs.reassign"); err != nil {
		return counts, err
	}
	for _, a := range r.s.data.applications {
		if a.TenantID == tenantID && a.CandidateID == fromID {
			a.CandidateID = toID
			counts.Applications++
		}
	}
	for _, o := range r.s.data.observations {
		if o.TenantID == tenantID && o.CandidateID == fromID {
			o.CandidateID = toID
			counts.Observations++
		}
	}
	for _, e := range r.s.data.events {
		if e.TenantID == tenantID && e.CandidateID == fromID {
			e.CandidateID = toID
			counts.ActivityEvents++
		}
	}
	return counts, nil
}

type memMergeResults struct {
	s    *MemoryStore
	lock bool
}

func (r *memMergeResults) Insert(_ context.Context, rec *MergeResult) error {
	defer r.s.enter(r.lock)()
	if err := r.s.hook("merge_results.insert"); err != nil {
		return err
	}
	cp := *rec
	cp.Changes = map[string]bool{}
	for k, v := range rec.Changes {
		cp.Changes[k] = v
	}
	r.s.data.results[rec.ID] = &cp
	return nil
}

// clone helpers

func (d *memData) clone() *memData {
	out := newMemData()
	for id, c := range d.candidates {
		out.candidates[id] = cloneCandidate(c)
	}
	out.candidateOrder = append([]string(nil), d.candidateOrder...)
	for id, r := range d.resumes {
		out.resumes[id] = cloneResume(r)
	}
	for id, i := range d.queue {
		out.queue[id] = cloneQueueItem(i)
	}
	out.queueOrder = append([]string(nil), d.queueOrder...)
	for id, a := range d.applications {
		cp := *a
		out.applications[id] = &cp
	}
	for id, o := range d.observations {
		cp := *o
		out.observations[id] = &cp
	}
	for id, e := range d.events {
		cp := *e
		out.events[id] = &cp
	}
	for id, r := range d.results {
		cp := *r
		cp.Changes = map[string]bool{}
		for k, v := range r.Changes {
			cp.Changes[k] = v
		}
		out.results[id] = &cp
	}
	return out
}

func cloneCandidate(c *CandidateRecord) *CandidateRecord {
	cp := *c
	cp.Skills = append([]string(nil), c.Skills...)
	cp.Tags = append([]string(nil), c.Tags...)
	if c.DeletedAt != nil {
		t := *c.DeletedAt
		cp.DeletedAt = &t
	}
	return &cp
}

func cloneResume(r *ResumeRecord) *ResumeRecord {
	cp := *r
	cp.Parsed.Experience = append([]identity.Experience(nil), r.Parsed.Experience...)
	cp.Parsed.Skills = append([]string(nil), r.Parsed.Skills...)
	cp.Parsed.Certifications = append([]string(nil), r.Parsed.Certifications...)
	return &cp
}

func cloneQueueItem(i *MergeQueueItem) *MergeQueueItem {
	cp := *i
	cp.Reasons = append([]MatchReason(nil), i.Reasons...)
	if i.ReviewedAt != nil {
		t := *i.ReviewedAt
		cp.ReviewedAt = &t
	}
	return &cp
}

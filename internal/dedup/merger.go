package dedup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"candidate-dedup/internal/storage"
)

// Strategy is the closed set of merge strategies. Adding a strategy is a
// compile-time-checked change: every switch below must handle it.
type Strategy int

const (
	// SmartMerge takes contact fields from the duplicate (assumed more
	// recent), unions skills and tags, and only fills empty name fields.
	SmartMerge Strategy = iota
	// PreferNew overwrites every primary field that the duplicate has set.
	PreferNew
	// PreferExisting copies duplicate fields only into empty primary fields.
	PreferExisting
)

func (s Strategy) String() string {
	switch s {
	case SmartMerge:
		return "smart_merge"
	case PreferNew:
		return "prefer_new"
	case PreferExisting:
		return "prefer_existing"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// ParseStrategy resolves a strategy name; empty input selects SmartMerge.
func ParseStrategy(name string) (Strategy, error) {
	switch name {
	case "", "smart_merge":
		return SmartMerge, nil
	case "prefer_new":
		return PreferNew, nil
	case "prefer_existing":
		return PreferExisting, nil
	default:
		return SmartMerge, fmt.Errorf("unknown merge strategy %q", name)
	}
}

// Merger executes approved merges: it combines two candidate records under a
// strategy and migrates every dependent record, all inside one transaction.
type Merger struct {
	store storage.Store
	log   *zap.Logger
}

func NewMerger(store storage.Store, log *zap.Logger) *Merger {
	return &Merger{store: store, log: log}
}

// MergeCandidates merges the duplicate into the primary. Both must be
// active candidates of the tenant. Either everything applies — field
// changes, resume re-attachment, cross-reference migration, soft delete,
// result record — or nothing does.
func (m *Merger) MergeCandidates(ctx context.Context, tenantID, primaryID, duplicateID string, strategy Strategy, reviewer, notes string) (*storage.MergeResult, error) {
	var result *storage.MergeResult
	err := m.store.InTx(ctx, func(tx storage.Store) error {
		r, err := m.apply(ctx, tx, tenantID, primaryID, duplicateID, strategy, reviewer, notes)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.log.Info("candidates merged",
		zap.String("tenant_id", tenantID),
		zap.String("primary_id", primaryID),
		zap.String("duplicate_id", duplicateID),
		zap.String("strategy", strategy.String()))
	return result, nil
}

// apply performs the merge steps against an already transactional store.
func (m *Merger) apply(ctx context.Context, tx storage.Store, tenantID, primaryID, duplicateID string, strategy Strategy, reviewer, notes string) (*storage.MergeResult, error) {
	if primaryID == duplicateID {
		return nil, fmt.Errorf("cannot merge candidate %s into itself: %w", primaryID, storage.ErrInvalidTransition)
	}

	primary, err := tx.Candidates().Get(ctx, tenantID, primaryID)
	if err != nil {
		return nil, fmt.Errorf("primary candidate: %w", err)
	}
	duplicate, err := tx.Candidates().Get(ctx, tenantID, duplicateID)
	if err != nil {
		return nil, fmt.Errorf("duplicate candidate: %w", err)
	}

	now := time.Now().UTC()
	changes := map[string]bool{}

	switch strategy {
	case SmartMerge:
		applySmartMerge(primary, duplicate, changes)
	case PreferNew:
		applyPreferNew(primary, duplicate, changes)
	case PreferExisting:
		applyPreferExisting(primary, duplicate, changes)
	default:
		return nil, fmt.Errorf("unknown merge strategy %d", strategy)
	}

	primary.UpdatedAt = now
	if err := tx.Candidates().Update(ctx, primary); err != nil {
		return nil, fmt.Errorf("update primary: %w", err)
	}

	resumeVersion, err := m.adoptResume(ctx, tx, primary, duplicate, now)
	if err != nil {
		return nil, err
	}
	if resumeVersion > 0 {
		changes[storage.ChangeResumeAdded] = true
	}

	counts, err := tx.CrossRefs().ReassignCandidate(ctx, tenantID, duplicateID, primaryID)
	if err != nil {
		return nil, fmt.Errorf("reassign cross-references: %w", err)
	}
	if counts.Total() > 0 {
		changes[storage.ChangeCrossRefsMoved] = true
	}

	if err := tx.Candidates().MarkMerged(ctx, tenantID, duplicateID, now); err != nil {
		return nil, fmt.Errorf("soft-delete duplicate: %w", err)
	}

	result := &storage.MergeResult{
		ID:                   uuid.NewString(),
		TenantID:             tenantID,
		PrimaryCandidateID:   primaryID,
		DuplicateCandidateID: duplicateID,
		Strategy:             strategy.String(),
		Changes:              changes,
		ResumeVersion:        resumeVersion,
		MergedBy:             reviewer,
		Notes:                notes,
		CreatedAt:            now,
	}
	if err := tx.MergeResults().Insert(ctx, result); err != nil {
		return nil, fmt.Errorf("record merge result: %w", err)
	}
	return result, nil
}

// adoptResume attaches the duplicate's primary resume to the primary
// candidate as its new primary version. Returns 0 when the duplicate has no
// resume.
func (m *Merger) adoptResume(ctx context.Context, tx storage.Store, primary, duplicate *storage.CandidateRecord, now time.Time) (int, error) {
	dupResume, err := tx.Resumes().PrimaryForCandidate(ctx, duplicate.TenantID, duplicate.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("duplicate resume: %w", err)
	}

	version, err := tx.Resumes().NextVersion(ctx, primary.TenantID, primary.ID)
	if err != nil {
		return 0, fmt.Errorf("next resume version: %w", err)
	}
	if err := tx.Resumes().DemotePrimary(ctx, primary.TenantID, primary.ID); err != nil {
		return 0, fmt.Errorf("demote primary resume: %w", err)
	}

	adopted := &storage.ResumeRecord{
		ID:          uuid.NewString(),
		TenantID:    primary.TenantID,
		CandidateID: primary.ID,
		Version:     version,
		IsPrimary:   true,
		Parsed:      dupResume.Parsed,
		Filename:    dupResume.Filename,
		FileType:    dupResume.FileType,
		FileSize:    dupResume.FileSize,
		UploadedAt:  now,
	}
	if err := tx.Resumes().Insert(ctx, adopted); err != nil {
		return 0, fmt.Errorf("attach resume: %w", err)
	}
	return version, nil
}

func applySmartMerge(primary, duplicate *storage.CandidateRecord, changes map[string]bool) {
	// Contact fields from the duplicate: the newer submission usually has
	// the current phone and location.
	if duplicate.Phone != "" && duplicate.Phone != primary.Phone {
		primary.Phone = duplicate.Phone
		changes[storage.ChangeContactFields] = true
	}
	if duplicate.LinkedInURL != "" && duplicate.LinkedInURL != primary.LinkedInURL {
		primary.LinkedInURL = duplicate.LinkedInURL
		changes[storage.ChangeContactFields] = true
	}
	if duplicate.Location != "" && duplicate.Location != primary.Location {
		primary.Location = duplicate.Location
		changes[storage.ChangeContactFields] = true
	}

	// Names only fill gaps: a verified name on the primary must survive a
	// badly parsed duplicate.
	if primary.FirstName == "" && duplicate.FirstName != "" {
		primary.FirstName = duplicate.FirstName
		changes[storage.ChangeNameFields] = true
	}
	if primary.LastName == "" && duplicate.LastName != "" {
		primary.LastName = duplicate.LastName
		changes[storage.ChangeNameFields] = true
	}

	if merged, grew := unionLists(primary.Skills, duplicate.Skills); grew {
		primary.Skills = merged
		changes[storage.ChangeSkillsMerged] = true
	}
	if merged, grew := unionLists(primary.Tags, duplicate.Tags); grew {
		primary.Tags = merged
		changes[storage.ChangeTagsMerged] = true
	}
}

func applyPreferNew(primary, duplicate *storage.CandidateRecord, changes map[string]bool) {
	overwrite := func(dst *string, src string, key string) {
		if src != "" && src != *dst {
			*dst = src
			changes[key] = true
		}
	}
	overwrite(&primary.FirstName, duplicate.FirstName, storage.ChangeNameFields)
	overwrite(&primary.LastName, duplicate.LastName, storage.ChangeNameFields)
	overwrite(&primary.Email, duplicate.Email, storage.ChangeContactFields)
	overwrite(&primary.Phone, duplicate.Phone, storage.ChangeContactFields)
	overwrite(&primary.LinkedInURL, duplicate.LinkedInURL, storage.ChangeContactFields)
	overwrite(&primary.Location, duplicate.Location, storage.ChangeContactFields)
	if len(duplicate.Skills) > 0 {
		primary.Skills = append([]string(nil), duplicate.Skills...)
		changes[storage.ChangeSkillsMerged] = true
	}
	if len(duplicate.Tags) > 0 {
		primary.Tags = append([]string(nil), duplicate.Tags...)
		changes[storage.ChangeTagsMerged] = true
	}
}

func applyPreferExisting(primary, duplicate *storage.CandidateRecord, changes map[string]bool) {
	fill := func(dst *string, src string, key string) {
		if *dst == "" && src != "" {
			*dst = src
			changes[key] = true
		}
	}
	fill(&primary.FirstName, duplicate.FirstName, storage.ChangeNameFields)
	fill(&primary.LastName, duplicate.LastName, storage.ChangeNameFields)
	fill(&primary.Email, duplicate.Email, storage.ChangeContactFields)
	fill(&primary.Phone, duplicate.Phone, storage.ChangeContactFields)
	fill(&primary.LinkedInURL, duplicate.LinkedInURL, storage.ChangeContactFields)
	fill(&primary.Location, duplicate.Location, storage.ChangeContactFields)
	if len(primary.Skills) == 0 && len(duplicate.Skills) > 0 {
		primary.Skills = append([]string(nil), duplicate.Skills...)
		changes[storage.ChangeSkillsMerged] = true
	}
	if len(primary.Tags) == 0 && len(duplicate.Tags) > 0 {
		primary.Tags = append([]string(nil), duplicate.Tags...)
		changes[storage.ChangeTagsMerged] = true
	}
}

// unionLists merges two value lists preserving first-seen order and reports
// whether anything new was added.
func unionLists(base, extra []string) ([]string, bool) {
	seen := make(map[string]bool, len(base))
	out := make([]string, 0, len(base)+len(extra))
	for _, v := range base {
		key := normalizeListValue(v)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	grew := false
	for _, v := range extra {
		key := normalizeListValue(v)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
		grew = true
	}
	return out, grew
}

func normalizeListValue(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

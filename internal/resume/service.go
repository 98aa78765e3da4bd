package resume

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"candidate-dedup/internal/storage"
)

// Attach stores a new resume version for a candidate and makes it the
// primary. Version assignment and the primary-flag handoff commit together.
func Attach(ctx context.Context, store storage.Store, tenantID, candidateID string, file *ExtractedFile, parsed storage.ParsedResume) (*storage.ResumeRecord, error) {
	var rec *storage.ResumeRecord
	err := store.InTx(ctx, func(tx storage.Store) error {
		if _, err := tx.Candidates().Get(ctx, tenantID, candidateID); err != nil {
			return fmt.Errorf("candidate: %w", err)
		}
		version, err := tx.Resumes().NextVersion(ctx, tenantID, candidateID)
		if err != nil {
			return fmt.Errorf("next version: %w", err)
		}
		if err := tx.Resumes().DemotePrimary(ctx, tenantID, candidateID); err != nil {
			return fmt.Errorf("demote primary: %w", err)
		}
		rec = &storage.ResumeRecord{
			ID:          uuid.NewString(),
			TenantID:    tenantID,
			CandidateID: candidateID,
			Version:     version,
			IsPrimary:   true,
			Parsed:      parsed,
			Filename:    file.Filename,
			FileType:    file.FileType,
			FileSize:    file.FileSize,
			UploadedAt:  time.Now().UTC(),
		}
		return tx.Resumes().Insert(ctx, rec)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

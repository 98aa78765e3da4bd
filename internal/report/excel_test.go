package report

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"candidate-dedup/internal/storage"
)

func TestWriteQueueWorkbook(t *testing.T) {
	reviewedAt := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	items := []*storage.MergeQueueItem{
		{
			ID:                   "q1",
			TenantID:             "t1",
			PrimaryCandidateID:   "a",
			DuplicateCandidateID: "b",
			MatchScore:           0.85,
			MatchType:            storage.MatchStrong,
			Reasons: []storage.MatchReason{
				{Kind: storage.ReasonPhoneMatch, Confidence: 0.85, Detail: "normalized phone matches"},
			},
			Status:    storage.StatusMerged,
			ReviewedBy: "alice",
			ReviewedAt: &reviewedAt,
			CreatedAt:  time.Date(2026, 3, 13, 12, 0, 0, 0, time.UTC),
		},
		{
			ID:                   "q2",
			TenantID:             "t1",
			PrimaryCandidateID:   "c",
			DuplicateCandidateID: "d",
			MatchScore:           0.55,
			MatchType:            storage.MatchReview,
			Status:               storage.StatusPending,
			CreatedAt:            time.Date(2026, 3, 13, 13, 0, 0, 0, time.UTC),
		},
	}
	stats := &storage.QueueStats{Pending: 1, Merged: 1}

	path := filepath.Join(t.TempDir(), "queue.xlsx")
	require.NoError(t, WriteQueueWorkbook(items, stats, path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	header, err := f.GetCellValue("Queue Items", "A1")
	require.NoError(t, err)
	assert.Equal(t, "ID", header)

	id, err := f.GetCellValue("Queue Items", "A2")
	require.NoError(t, err)
	assert.Equal(t, "q1", id)

	status, err := f.GetCellValue("Queue Items", "F3")
	require.NoError(t, err)
	assert.Equal(t, "pending", status)

	reasons, err := f.GetCellValue("Queue Items", "G2")
	require.NoError(t, err)
	assert.Contains(t, reasons, "phone_match")

	pending, err := f.GetCellValue("Stats", "B2")
	require.NoError(t, err)
	assert.Equal(t, "1", pending)
}

func TestWriteQueueWorkbookWithoutStats(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.xlsx")
	require.NoError(t, WriteQueueWorkbook(nil, nil, path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	idx, err := f.GetSheetIndex("Stats")
	require.NoError(t, err)
	assert.Equal(t, -1, idx)
}

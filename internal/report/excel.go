package report

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"candidate-dedup/internal/storage"
)

// WriteQueueWorkbook writes a merge-queue review report: one sheet of queue
// items and one of status counters.
func WriteQueueWorkbook(items []*storage.MergeQueueItem, stats *storage.QueueStats, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	const itemSheet = "Queue Items"
	f.SetSheetName("Sheet1", itemSheet)

	headers := []string{"ID", "Primary Candidate", "Duplicate Candidate", "Score", "Match Type", "Status", "Reasons", "Reviewed By", "Reviewed At", "Created At"}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(itemSheet, cell, h); err != nil {
			return err
		}
	}

	for row, item := range items {
		reviewedAt := ""
		if item.ReviewedAt != nil {
			reviewedAt = item.ReviewedAt.Format("2006-01-02 15:04:05")
		}
		values := []interface{}{
			item.ID,
			item.PrimaryCandidateID,
			item.DuplicateCandidateID,
			item.MatchScore,
			string(item.MatchType),
			string(item.Status),
			formatReasons(item.Reasons),
			item.ReviewedBy,
			reviewedAt,
			item.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(itemSheet, cell, v); err != nil {
				return err
			}
		}
	}

	if stats != nil {
		const statsSheet = "Stats"
		if _, err := f.NewSheet(statsSheet); err != nil {
			return err
		}
		rows := [][]interface{}{
			{"Status", "Count"},
			{"pending", stats.Pending},
			{"merged", stats.Merged},
			{"rejected", stats.Rejected},
			{"deferred", stats.Deferred},
		}
		for i, r := range rows {
			for col, v := range r {
				cell, err := excelize.CoordinatesToCellName(col+1, i+1)
				if err != nil {
					return err
				}
				if err := f.SetCellValue(statsSheet, cell, v); err != nil {
					return err
				}
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func formatReasons(reasons []storage.MatchReason) string {
	parts := make([]string, 0, len(reasons))
	for _, r := range reasons {
		parts = append(parts, fmt.Sprintf("%s (%.2f): %s", r.Kind, r.Confidence, r.Detail))
	}
	return strings.Join(parts, "; ")
}

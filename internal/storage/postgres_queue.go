package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

type pgQueue struct {
	q querier
}

const queueColumns = `id, tenant_id, primary_candidate_id, duplicate_candidate_id, match_score, match_type, match_reasons, status, reviewed_by, reviewed_at, review_notes, created_at`

func (r *pgQueue) Insert(ctx context.Context, item *MergeQueueItem) error {
	reasons, err := json.Marshal(item.Reasons)
	if err != nil {
		return fmt.Errorf("marshal match reasons: %w", err)
	}
	query := `INSERT INTO merge_queue_items (` + queueColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err = r.q.ExecContext(ctx, query,
		item.ID, item.TenantID, item.PrimaryCandidateID, item.DuplicateCandidateID,
		item.MatchScore, item.MatchType, reasons, item.Status,
		item.ReviewedBy, item.ReviewedAt, item.ReviewNotes, item.CreatedAt,
	)
	return err
}

func (r *pgQueue) Get(ctx context.Context, tenantID, id string) (*MergeQueueItem, error) {
	query := `SELECT ` + queueColumns + ` FROM merge_queue_items
	          WHERE tenant_id = $1 AND id = $2`
	item, err := scanQueueItem(r.q.QueryRowContext(ctx, query, tenantID, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return item, err
}

func (r *pgQueue) List(ctx context.Context, tenantID string, page, pageSize int, status QueueStatus, matchType MatchType) ([]*MergeQueueItem, int, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}

	where := `WHERE tenant_id = $1`
	args := []interface{}{tenantID}
	if status != "" {
		args = append(args, status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if matchType != "" {
		args = append(args, matchType)
		where += fmt.Sprintf(" AND match_type = $%d", len(args))
	}

	var total int
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM merge_queue_items `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, pageSize, (page-1)*pageSize)
	query := fmt.Sprintf(`SELECT %s FROM merge_queue_items %s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`,
		queueColumns, where, len(args)-1, len(args))
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*MergeQueueItem
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}
	return items, total, rows.Err()
}

func (r *pgQueue) PendingForPair(ctx context.Context, tenantID, candidateA, candidateB string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(
	            SELECT 1 FROM merge_queue_items
	            WHERE tenant_id = $1 AND status = 'pending'
	              AND ((primary_candidate_id = $2 AND duplicate_candidate_id = $3)
	                OR (primary_candidate_id = $3 AND duplicate_candidate_id = $2)))`
	err := r.q.QueryRowContext(ctx, query, tenantID, candidateA, candidateB).Scan(&exists)
	return exists, err
}

func (r *pgQueue) ClaimPending(ctx context.Context, tenantID, id string, to QueueStatus, reviewer, notes string, at time.Time) error {
	query := `UPDATE merge_queue_items
	          SET status = $1, reviewed_by = $2, reviewed_at = $3, review_notes = $4
	          WHERE tenant_id = $5 AND id = $6 AND status = 'pending'`
	res, err := r.q.ExecContext(ctx, query, to, reviewer, at, notes, tenantID, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	// Nothing claimed: tell the caller whether the item is gone or already
	// settled by another reviewer.
	var current QueueStatus
	err = r.q.QueryRowContext(ctx,
		`SELECT status FROM merge_queue_items WHERE tenant_id = $1 AND id = $2`,
		tenantID, id).Scan(&current)
	if err == sql.ErrNoRows {
		return fmt.Errorf("queue item %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("queue item %s is %s: %w", id, current, ErrInvalidTransition)
}

func (r *pgQueue) Stats(ctx context.Context, tenantID string) (*QueueStats, error) {
	stats := &QueueStats{ByMatchType: map[MatchType]int{}}

	rows, err := r.q.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM merge_queue_items WHERE tenant_id = $1 GROUP BY status`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var status QueueStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		switch status {
		case StatusPending:
			stats.Pending = count
		case StatusMerged:
			stats.Merged = count
		case StatusRejected:
			stats.Rejected = count
		case StatusDeferred:
			stats.Deferred = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	typeRows, err := r.q.QueryContext(ctx,
		`SELECT match_type, COUNT(*) FROM merge_queue_items WHERE tenant_id = $1 AND status = 'pending' GROUP BY match_type`, tenantID)
	if err != nil {
		return nil, err
	}
	defer typeRows.Close()
	for typeRows.Next() {
		var mt MatchType
		var count int
		if err := typeRows.Scan(&mt, &count); err != nil {
			return nil, err
		}
		stats.ByMatchType[mt] = count
	}
	return stats, typeRows.Err()
}

func scanQueueItem(row rowScanner) (*MergeQueueItem, error) {
	item := &MergeQueueItem{}
	var reasons []byte
	var reviewedBy, reviewNotes sql.NullString
	err := row.Scan(&item.ID, &item.TenantID, &item.PrimaryCandidateID,
		&item.DuplicateCandidateID, &item.MatchScore, &item.MatchType,
		&reasons, &item.Status, &reviewedBy, &item.ReviewedAt, &reviewNotes,
		&item.CreatedAt)
	if err != nil {
		return nil, err
	}
	item.ReviewedBy = reviewedBy.String
	item.ReviewNotes = reviewNotes.String
	if len(reasons) > 0 {
		if err := json.Unmarshal(reasons, &item.Reasons); err != nil {
			return nil, fmt.Errorf("unmarshal match reasons: %w", err)
		}
	}
	return item, nil
}

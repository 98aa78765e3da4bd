package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// querier is the subset of database/sql shared by *sql.DB and *sql.Tx, so
// the same store code runs inside and outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// PostgresStore implements Store on top of lib/pq.
type PostgresStore struct {
	db *sql.DB
	q  querier
}

func NewPostgresStore(dataSourceName string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dataSourceName)
	if err != nil {
		return nil, err
	}

	// Connection pool tuning
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return &PostgresStore{db: db, q: db}, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// GetConnection returns the underlying database connection for advanced queries.
func (s *PostgresStore) GetConnection() *sql.DB {
	return s.db
}

func (s *PostgresStore) Candidates() CandidateStore     { return &pgCandidates{q: s.q} }
func (s *PostgresStore) Resumes() ResumeStore           { return &pgResumes{q: s.q} }
func (s *PostgresStore) Queue() QueueStore              { return &pgQueue{q: s.q} }
func (s *PostgresStore) CrossRefs() CrossRefStore       { return &pgCrossRefs{q: s.q} }
func (s *PostgresStore) MergeResults() MergeResultStore { return &pgMergeResults{q: s.q} }

func (s *PostgresStore) InTx(ctx context.Context, fn func(tx Store) error) error {
	if _, ok := s.q.(*sql.Tx); ok {
		// Already transactional: reuse the open transaction.
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	txStore := &PostgresStore{db: s.db, q: tx}
	if err := fn(txStore); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	return tx.Commit()
}

type pgCandidates struct {
	q querier
}

const candidateColumns = `id, tenant_id, first_name, last_name, email, phone, linkedin_url, location, skills, tags, source, lifecycle_state, deleted_at, created_at, updated_at`

func (r *pgCandidates) Insert(ctx context.Context, c *CandidateRecord) error {
	query := `INSERT INTO candidates (` + candidateColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	_, err := r.q.ExecContext(ctx, query,
		c.ID, c.TenantID, c.FirstName, c.LastName, c.Email, c.Phone,
		c.LinkedInURL, c.Location,
		strings.Join(c.Skills, ","), strings.Join(c.Tags, ","),
		c.Source, c.Lifecycle, c.DeletedAt, c.CreatedAt, c.UpdatedAt,
	)
	return err
}

func (r *pgCandidates) Get(ctx context.Context, tenantID, id string) (*CandidateRecord, error) {
	query := `SELECT ` + candidateColumns + ` FROM candidates
	          WHERE tenant_id = $1 AND id = $2 AND lifecycle_state = 'active'`
	return r.scanOne(r.q.QueryRowContext(ctx, query, tenantID, id))
}

func (r *pgCandidates) GetIncludingMerged(ctx context.Context, tenantID, id string) (*CandidateRecord, error) {
	query := `SELECT ` + candidateColumns + ` FROM candidates
	          WHERE tenant_id = $1 AND id = $2`
	return r.scanOne(r.q.QueryRowContext(ctx, query, tenantID, id))
}

func (r *pgCandidates) Update(ctx context.Context, c *CandidateRecord) error {
	query := `UPDATE candidates
	          SET first_name = $1, last_name = $2, email = $3, phone = $4,
	              linkedin_url = $5, location = $6, skills = $7, tags = $8,
	              source = $9, updated_at = $10
	          WHERE tenant_id = $11 AND id = $12 AND lifecycle_state = 'active'`
	res, err := r.q.ExecContext(ctx, query,
		c.FirstName, c.LastName, c.Email, c.Phone, c.LinkedInURL, c.Location,
		strings.Join(c.Skills, ","), strings.Join(c.Tags, ","),
		c.Source, c.UpdatedAt, c.TenantID, c.ID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("candidate %s: %w", c.ID, ErrNotFound)
	}
	return nil
}

func (r *pgCandidates) ListActive(ctx context.Context, tenantID string, limit int) ([]*CandidateRecord, error) {
	query := `SELECT ` + candidateColumns + ` FROM candidates
	          WHERE tenant_id = $1 AND lifecycle_state = 'active'
	          ORDER BY created_at, id`
	args := []interface{}{tenantID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*CandidateRecord
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *pgCandidates) MarkMerged(ctx context.Context, tenantID, id string, at time.Time) error {
	query := `UPDATE candidates
	          SET lifecycle_state = 'merged', deleted_at = $1, updated_at = $1
	          WHERE tenant_id = $2 AND id = $3 AND lifecycle_state = 'active'`
	res, err := r.q.ExecContext(ctx, query, at, tenantID, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("candidate %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *pgCandidates) TenantIDs(ctx context.Context) ([]string, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT DISTINCT tenant_id FROM candidates ORDER BY tenant_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *pgCandidates) scanOne(row *sql.Row) (*CandidateRecord, error) {
	c, err := scanCandidate(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return c, err
}

func scanCandidate(row rowScanner) (*CandidateRecord, error) {
	c := &CandidateRecord{}
	var skills, tags string
	err := row.Scan(&c.ID, &c.TenantID, &c.FirstName, &c.LastName, &c.Email,
		&c.Phone, &c.LinkedInURL, &c.Location, &skills, &tags, &c.Source,
		&c.Lifecycle, &c.DeletedAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Skills = splitAndTrim(skills)
	c.Tags = splitAndTrim(tags)
	return c, nil
}

// helper to split comma-separated lists
func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

type pgResumes struct {
	q querier
}

const resumeColumns = `id, tenant_id, candidate_id, version, is_primary, parsed, filename, file_type, file_size, uploaded_at`

func (r *pgResumes) Insert(ctx context.Context, rec *ResumeRecord) error {
	parsed, err := json.Marshal(rec.Parsed)
	if err != nil {
		return fmt.Errorf("marshal parsed resume: %w", err)
	}
	query := `INSERT INTO resumes (` + resumeColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err = r.q.ExecContext(ctx, query,
		rec.ID, rec.TenantID, rec.CandidateID, rec.Version, rec.IsPrimary,
		parsed, rec.Filename, rec.FileType, rec.FileSize, rec.UploadedAt,
	)
	return err
}

func (r *pgResumes) PrimaryForCandidate(ctx context.Context, tenantID, candidateID string) (*ResumeRecord, error) {
	query := `SELECT ` + resumeColumns + ` FROM resumes
	          WHERE tenant_id = $1 AND candidate_id = $2 AND is_primary = true
	          ORDER BY version DESC LIMIT 1`
	rec := &ResumeRecord{}
	var parsed []byte
	err := r.q.QueryRowContext(ctx, query, tenantID, candidateID).Scan(
		&rec.ID, &rec.TenantID, &rec.CandidateID, &rec.Version, &rec.IsPrimary,
		&parsed, &rec.Filename, &rec.FileType, &rec.FileSize, &rec.UploadedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(parsed) > 0 {
		if err := json.Unmarshal(parsed, &rec.Parsed); err != nil {
			return nil, fmt.Errorf("unmarshal parsed resume: %w", err)
		}
	}
	return rec, nil
}

func (r *pgResumes) NextVersion(ctx context.Context, tenantID, candidateID string) (int, error) {
	var max sql.NullInt64
	query := `SELECT MAX(version) FROM resumes WHERE tenant_id = $1 AND candidate_id = $2`
	if err := r.q.QueryRowContext(ctx, query, tenantID, candidateID).Scan(&max); err != nil {
		return 0, err
	}
	return int(max.Int64) + 1, nil
}

func (r *pgResumes) DemotePrimary(ctx context.Context, tenantID, candidateID string) error {
	query := `UPDATE resumes SET is_primary = false
	          WHERE tenant_id = $1 AND candidate_id = $2 AND is_primary = true`
	_, err := r.q.ExecContext(ctx, query, tenantID, candidateID)
	return err
}

type pgCrossRefs struct {
	q querier
}

func (r *pgCrossRefs) ReassignCandidate(ctx context.Context, tenantID, fromID, toID string) (CrossRefCounts, error) {
	var counts CrossRefCounts
	tables := []struct {
		name string
		dst  *int
	}{
		{"applications", &counts.Applications},
		{"observations", &counts.Observations},
		{"activity_events", &counts.ActivityEvents},
	}
	for _, t := range tables {
		query := fmt.Sprintf(`UPDATE %s SET candidate_id = $1 WHERE tenant_id = $2 AND candidate_id = $3`, t.name)
		res, err := r.q.ExecContext(ctx, query, toID, tenantID, fromID)
		if err != nil {
			return counts, fmt.Errorf("reassign %s: %w", t.name, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return counts, err
		}
		*t.dst = int(n)
	}
	return counts, nil
}

type pgMergeResults struct {
	q querier
}

func (r *pgMergeResults) Insert(ctx context.Context, rec *MergeResult) error {
	changes, err := json.Marshal(rec.Changes)
	if err != nil {
		return fmt.Errorf("marshal merge changes: %w", err)
	}
	query := `INSERT INTO merge_results
	          (id, tenant_id, primary_candidate_id, duplicate_candidate_id, strategy, changes, resume_version, merged_by, notes, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err = r.q.ExecContext(ctx, query,
		rec.ID, rec.TenantID, rec.PrimaryCandidateID, rec.DuplicateCandidateID,
		rec.Strategy, changes, rec.ResumeVersion, rec.MergedBy, rec.Notes, rec.CreatedAt,
	)
	return err
}

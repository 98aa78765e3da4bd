package storage

import "context"

const schema = `
-- Candidate profiles. Merged-away candidates keep their row with
-- lifecycle_state = 'merged' and deleted_at set.
CREATE TABLE IF NOT EXISTS candidates (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    first_name TEXT NOT NULL DEFAULT '',
    last_name TEXT NOT NULL DEFAULT '',
    email TEXT NOT NULL DEFAULT '',
    phone TEXT NOT NULL DEFAULT '',
    linkedin_url TEXT NOT NULL DEFAULT '',
    location TEXT NOT NULL DEFAULT '',
    skills TEXT NOT NULL DEFAULT '',
    tags TEXT NOT NULL DEFAULT '',
    source TEXT NOT NULL DEFAULT '',
    lifecycle_state TEXT NOT NULL DEFAULT 'active',
    deleted_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_candidates_tenant ON candidates(tenant_id, lifecycle_state);
CREATE INDEX IF NOT EXISTS idx_candidates_created_at ON candidates(created_at);

-- Versioned resume documents; at most one primary per candidate.
CREATE TABLE IF NOT EXISTS resumes (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    candidate_id TEXT NOT NULL REFERENCES candidates(id),
    version INTEGER NOT NULL,
    is_primary BOOLEAN NOT NULL DEFAULT false,
    parsed JSONB,
    filename TEXT NOT NULL DEFAULT '',
    file_type TEXT NOT NULL DEFAULT '',
    file_size BIGINT NOT NULL DEFAULT 0,
    uploaded_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (tenant_id, candidate_id, version)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_resumes_primary
    ON resumes(tenant_id, candidate_id) WHERE is_primary;

-- Candidate pairs flagged for merge review.
CREATE TABLE IF NOT EXISTS merge_queue_items (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    primary_candidate_id TEXT NOT NULL REFERENCES candidates(id),
    duplicate_candidate_id TEXT NOT NULL REFERENCES candidates(id),
    match_score DOUBLE PRECISION NOT NULL,
    match_type TEXT NOT NULL,
    match_reasons JSONB,
    status TEXT NOT NULL DEFAULT 'pending',
    reviewed_by TEXT,
    reviewed_at TIMESTAMPTZ,
    review_notes TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_queue_tenant_status ON merge_queue_items(tenant_id, status);

-- One pending item per unordered candidate pair.
CREATE UNIQUE INDEX IF NOT EXISTS idx_queue_pending_pair
    ON merge_queue_items(tenant_id,
        LEAST(primary_candidate_id, duplicate_candidate_id),
        GREATEST(primary_candidate_id, duplicate_candidate_id))
    WHERE status = 'pending';

-- Executed-merge audit records. Append-only.
CREATE TABLE IF NOT EXISTS merge_results (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    primary_candidate_id TEXT NOT NULL,
    duplicate_candidate_id TEXT NOT NULL,
    strategy TEXT NOT NULL,
    changes JSONB,
    resume_version INTEGER NOT NULL DEFAULT 0,
    merged_by TEXT,
    notes TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_merge_results_tenant ON merge_results(tenant_id);

-- Cross-referencing tables re-pointed by merges. Owned by other services;
-- only the candidate_id column matters here.
CREATE TABLE IF NOT EXISTS applications (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    candidate_id TEXT NOT NULL,
    job_id TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT '',
    applied_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_applications_candidate ON applications(tenant_id, candidate_id);

CREATE TABLE IF NOT EXISTS observations (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    candidate_id TEXT NOT NULL,
    kind TEXT NOT NULL DEFAULT '',
    body TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_observations_candidate ON observations(tenant_id, candidate_id);

CREATE TABLE IF NOT EXISTS activity_events (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    candidate_id TEXT NOT NULL,
    event_type TEXT NOT NULL DEFAULT '',
    detail TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_activity_events_candidate ON activity_events(tenant_id, candidate_id);
`

// InitSchema creates the tables and indexes if they do not exist. Safe to
// run on every startup.
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

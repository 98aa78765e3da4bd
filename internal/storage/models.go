package storage

import (
	"time"

	"candidate-dedup/internal/identity"
)

// LifecycleState is the explicit candidate lifecycle. A merged-away candidate
// is never hard-deleted; it stays on file for audit with state "merged".
type LifecycleState string

const (
	LifecycleActive LifecycleState = "active"
	LifecycleMerged LifecycleState = "merged"
)

// CandidateRecord is a person's profile within a tenant.
type CandidateRecord struct {
	ID          string         `json:"id"`
	TenantID    string         `json:"tenant_id"`
	FirstName   string         `json:"first_name"`
	LastName    string         `json:"last_name"`
	Email       string         `json:"email"`
	Phone       string         `json:"phone"`
	LinkedInURL string         `json:"linkedin_url"`
	Location    string         `json:"location"`
	Skills      []string       `json:"skills"`
	Tags        []string       `json:"tags"`
	Source      string         `json:"source"`
	Lifecycle   LifecycleState `json:"lifecycle_state"`
	DeletedAt   *time.Time     `json:"deleted_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// ParsedResume is the structured payload extracted from a resume upstream.
// The pipeline treats it as opaque except for the experience list, which
// feeds the fingerprint builder. Experience is ordered most-recent-first.
type ParsedResume struct {
	Experience     []identity.Experience `json:"experience"`
	Skills         []string              `json:"skills"`
	Certifications []string              `json:"certifications"`
	RawText        string                `json:"raw_text,omitempty"`
}

// ResumeRecord is a versioned document attached to exactly one candidate.
// At most one resume per candidate carries the primary flag.
type ResumeRecord struct {
	ID          string       `json:"id"`
	TenantID    string       `json:"tenant_id"`
	CandidateID string       `json:"candidate_id"`
	Version     int          `json:"version"`
	IsPrimary   bool         `json:"is_primary"`
	Parsed      ParsedResume `json:"parsed"`
	Filename    string       `json:"filename"`
	FileType    string       `json:"file_type"`
	FileSize    int64        `json:"file_size"`
	UploadedAt  time.Time    `json:"uploaded_at"`
}

// MatchType buckets how a duplicate pair was detected.
type MatchType string

const (
	MatchHard   MatchType = "hard"
	MatchStrong MatchType = "strong"
	MatchFuzzy  MatchType = "fuzzy"
	MatchReview MatchType = "review"
)

// QueueStatus is the merge-queue workflow state. Pending is the only
// non-terminal state.
type QueueStatus string

const (
	StatusPending  QueueStatus = "pending"
	StatusMerged   QueueStatus = "merged"
	StatusRejected QueueStatus = "rejected"
	StatusDeferred QueueStatus = "deferred"
)

// MatchReasonKind is the closed set of signals a match reason can carry.
type MatchReasonKind string

const (
	ReasonEmailMatch     MatchReasonKind = "email_match"
	ReasonPhoneMatch     MatchReasonKind = "phone_match"
	ReasonLinkedInMatch  MatchReasonKind = "linkedin_match"
	ReasonCompanyOverlap MatchReasonKind = "company_overlap"
	ReasonNameSimilarity MatchReasonKind = "name_similarity"
	ReasonSkillOverlap   MatchReasonKind = "skill_overlap"
)

// MatchReason explains one signal that contributed to a match.
type MatchReason struct {
	Kind       MatchReasonKind `json:"kind"`
	Confidence float64         `json:"confidence"`
	Detail     string          `json:"detail"`
}

// MergeQueueItem is a candidate pair flagged for review. A pair of candidate
// ids has at most one pending item at a time.
type MergeQueueItem struct {
	ID                   string        `json:"id"`
	TenantID             string        `json:"tenant_id"`
	PrimaryCandidateID   string        `json:"primary_candidate_id"`
	DuplicateCandidateID string        `json:"duplicate_candidate_id"`
	MatchScore           float64       `json:"match_score"`
	MatchType            MatchType     `json:"match_type"`
	Reasons              []MatchReason `json:"reasons"`
	Status               QueueStatus   `json:"status"`
	ReviewedBy           string        `json:"reviewed_by,omitempty"`
	ReviewedAt           *time.Time    `json:"reviewed_at,omitempty"`
	ReviewNotes          string        `json:"review_notes,omitempty"`
	CreatedAt            time.Time     `json:"created_at"`
}

// MergeResult records the outcome of an executed merge. Written once, never
// mutated.
type MergeResult struct {
	ID                   string          `json:"id"`
	TenantID             string          `json:"tenant_id"`
	PrimaryCandidateID   string          `json:"primary_candidate_id"`
	DuplicateCandidateID string          `json:"duplicate_candidate_id"`
	Strategy             string          `json:"strategy"`
	Changes              map[string]bool `json:"changes"`
	ResumeVersion        int             `json:"resume_version,omitempty"`
	MergedBy             string          `json:"merged_by,omitempty"`
	Notes                string          `json:"notes,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
}

// Change category keys recorded in MergeResult.Changes.
const (
	ChangeContactFields  = "contact_fields"
	ChangeNameFields     = "name_fields"
	ChangeSkillsMerged   = "skills_merged"
	ChangeTagsMerged     = "tags_merged"
	ChangeResumeAdded    = "resume_added"
	ChangeCrossRefsMoved = "cross_references_moved"
)

// Application is a candidate's application to a job requisition. Only the
// candidate foreign key matters to this pipeline.
type Application struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	CandidateID string    `json:"candidate_id"`
	JobID       string    `json:"job_id"`
	Status      string    `json:"status"`
	AppliedAt   time.Time `json:"applied_at"`
}

// Observation is interviewer/recruiter feedback attached to a candidate.
type Observation struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	CandidateID string    `json:"candidate_id"`
	Kind        string    `json:"kind"`
	Body        string    `json:"body"`
	CreatedAt   time.Time `json:"created_at"`
}

// ActivityEvent is an audit-log entry referencing a candidate.
type ActivityEvent struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	CandidateID string    `json:"candidate_id"`
	EventType   string    `json:"event_type"`
	Detail      string    `json:"detail"`
	CreatedAt   time.Time `json:"created_at"`
}

// QueueStats summarizes a tenant's merge queue.
type QueueStats struct {
	Pending     int               `json:"pending"`
	Merged      int               `json:"merged"`
	Rejected    int               `json:"rejected"`
	Deferred    int               `json:"deferred"`
	ByMatchType map[MatchType]int `json:"by_match_type"`
}

// CrossRefCounts reports how many dependent rows a merge re-pointed.
type CrossRefCounts struct {
	Applications   int `json:"applications"`
	Observations   int `json:"observations"`
	ActivityEvents int `json:"activity_events"`
}

// Total returns the combined number of re-pointed rows.
func (c CrossRefCounts) Total() int {
	return c.Applications + c.Observations + c.ActivityEvents
}

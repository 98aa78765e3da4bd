package dedup

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"candidate-dedup/internal/identity"
	"candidate-dedup/internal/storage"
)

// Tier ranks how certain a duplicate match is. Higher is stronger; the
// matcher keeps the single best tier seen across the population.
type Tier int

const (
	TierNone Tier = iota
	TierLow
	TierMedium
	TierHigh
	TierExact
)

func (t Tier) String() string {
	switch t {
	case TierExact:
		return "exact"
	case TierHigh:
		return "high"
	case TierMedium:
		return "medium"
	case TierLow:
		return "low"
	default:
		return "none"
	}
}

// Confidence maps a tier to the numeric score stored on queue items.
func (t Tier) Confidence() float64 {
	switch t {
	case TierExact:
		return 0.95
	case TierHigh:
		return 0.85
	case TierMedium:
		return 0.65
	case TierLow:
		return 0.40
	default:
		return 0
	}
}

// MatchType maps a tier onto the queue item bucket.
func (t Tier) MatchType() storage.MatchType {
	switch t {
	case TierExact:
		return storage.MatchHard
	case TierHigh:
		return storage.MatchStrong
	case TierMedium:
		return storage.MatchFuzzy
	default:
		return storage.MatchReview
	}
}

// SuggestedAction tells the caller what to do with the incoming submission.
type SuggestedAction string

const (
	ActionCreateNew      SuggestedAction = "create_new"
	ActionUpdateExisting SuggestedAction = "update_existing"
	ActionReviewRequired SuggestedAction = "review_required"
)

// IdentitySignals is the raw (unnormalized) identity of a submission or an
// existing candidate being re-checked.
type IdentitySignals struct {
	Email       string
	Phone       string
	LinkedInURL string
	FirstName   string
	LastName    string
	// Experience is optional; without it the MEDIUM tier cannot fire.
	Experience []identity.Experience
}

// MatchOutcome is the matcher's verdict for one submission against a
// tenant's population.
type MatchOutcome struct {
	IsDuplicate        bool                  `json:"is_duplicate"`
	MatchedCandidateID string                `json:"matched_candidate_id,omitempty"`
	Tier               Tier                  `json:"-"`
	ConfidenceTier     string                `json:"confidence_tier"`
	Reasons            []storage.MatchReason `json:"reasons"`
	SuggestedAction    SuggestedAction       `json:"suggested_action"`
	ComparedCount      int                   `json:"compared_count"`
}

// normalizedSignals carries the canonical forms computed once per call.
type normalizedSignals struct {
	email       string
	phone       string
	linkedin    string
	nameKey     string
	fingerprint string
}

// Matcher scans a tenant's candidate population for duplicates of a given
// identity using tiered signal comparison.
type Matcher struct {
	store storage.Store
	log   *zap.Logger
}

func NewMatcher(store storage.Store, log *zap.Logger) *Matcher {
	return &Matcher{store: store, log: log}
}

// FindDuplicates compares the signals against every active candidate in the
// tenant and returns the single best match. Tier evaluation per candidate is
// strict priority order: EXACT (email), then HIGH (phone or LinkedIn), then
// MEDIUM (name + >=2 overlapping company:title tuples), then LOW (name
// only). The first satisfied tier wins for that candidate; across the scan
// a stronger tier always displaces a weaker one, and ties keep the first
// candidate encountered.
func (m *Matcher) FindDuplicates(ctx context.Context, tenantID string, sig IdentitySignals, excludeID string) (*MatchOutcome, error) {
	norm := normalizedSignals{
		email:       identity.NormalizeEmail(sig.Email),
		phone:       identity.NormalizePhone(sig.Phone),
		linkedin:    identity.NormalizeLinkedIn(sig.LinkedInURL),
		nameKey:     identity.NormalizeName(sig.FirstName, sig.LastName),
		fingerprint: identity.ExperienceFingerprint(sig.Experience),
	}

	candidates, err := m.store.Candidates().ListActive(ctx, tenantID, 0)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}

	outcome := &MatchOutcome{
		Tier:            TierNone,
		SuggestedAction: ActionCreateNew,
	}
	for _, cand := range candidates {
		if cand.ID == excludeID {
			continue
		}
		outcome.ComparedCount++

		tier, reasons, err := m.compare(ctx, norm, cand)
		if err != nil {
			return nil, err
		}
		if tier > outcome.Tier {
			outcome.Tier = tier
			outcome.MatchedCandidateID = cand.ID
			outcome.Reasons = reasons
			if tier == TierExact {
				// Nothing can beat an exact email match.
				break
			}
		}
	}

	outcome.ConfidenceTier = outcome.Tier.String()
	switch outcome.Tier {
	case TierExact, TierHigh:
		outcome.IsDuplicate = true
		outcome.SuggestedAction = ActionUpdateExisting
	case TierMedium, TierLow:
		outcome.IsDuplicate = true
		outcome.SuggestedAction = ActionReviewRequired
	}

	if outcome.IsDuplicate {
		m.log.Debug("duplicate detected",
			zap.String("tenant_id", tenantID),
			zap.String("matched_candidate_id", outcome.MatchedCandidateID),
			zap.String("tier", outcome.ConfidenceTier))
	}
	return outcome, nil
}

// compare evaluates one candidate against the normalized signals and returns
// the first tier that fires.
func (m *Matcher) compare(ctx context.Context, norm normalizedSignals, cand *storage.CandidateRecord) (Tier, []storage.MatchReason, error) {
	if norm.email != "" && identity.NormalizeEmail(cand.Email) == norm.email {
		return TierExact, []storage.MatchReason{{
			Kind:       storage.ReasonEmailMatch,
			Confidence: TierExact.Confidence(),
			Detail:     fmt.Sprintf("normalized email %q matches", norm.email),
		}}, nil
	}

	var highReasons []storage.MatchReason
	if norm.phone != "" && identity.NormalizePhone(cand.Phone) == norm.phone {
		highReasons = append(highReasons, storage.MatchReason{
			Kind:       storage.ReasonPhoneMatch,
			Confidence: TierHigh.Confidence(),
			Detail:     fmt.Sprintf("normalized phone %q matches", norm.phone),
		})
	}
	if norm.linkedin != "" && identity.NormalizeLinkedIn(cand.LinkedInURL) == norm.linkedin {
		highReasons = append(highReasons, storage.MatchReason{
			Kind:       storage.ReasonLinkedInMatch,
			Confidence: TierHigh.Confidence(),
			Detail:     fmt.Sprintf("linkedin profile %q matches", norm.linkedin),
		})
	}
	if len(highReasons) > 0 {
		return TierHigh, highReasons, nil
	}

	if norm.nameKey == "" || identity.NormalizeName(cand.FirstName, cand.LastName) != norm.nameKey {
		return TierNone, nil, nil
	}

	// Names collide. Try to upgrade to MEDIUM via experience overlap; a
	// missing fingerprint on either side is not an error, it just leaves
	// the match at LOW.
	if norm.fingerprint != "" {
		candFP, err := m.candidateFingerprint(ctx, cand)
		if err != nil {
			return TierNone, nil, err
		}
		if overlap := identity.FingerprintOverlap(norm.fingerprint, candFP); overlap >= 2 {
			conf := 0.60 + 0.05*float64(overlap-2)
			if conf > 0.80 {
				conf = 0.80
			}
			return TierMedium, []storage.MatchReason{
				{
					Kind:       storage.ReasonNameSimilarity,
					Confidence: TierLow.Confidence(),
					Detail:     fmt.Sprintf("name key %q matches", norm.nameKey),
				},
				{
					Kind:       storage.ReasonCompanyOverlap,
					Confidence: conf,
					Detail:     fmt.Sprintf("%d shared company:title positions", overlap),
				},
			}, nil
		}
	}

	return TierLow, []storage.MatchReason{{
		Kind:       storage.ReasonNameSimilarity,
		Confidence: TierLow.Confidence(),
		Detail:     fmt.Sprintf("name key %q matches, no stronger signal", norm.nameKey),
	}}, nil
}

// candidateFingerprint resolves the stored candidate's experience
// fingerprint from their primary resume. No resume means no fingerprint.
func (m *Matcher) candidateFingerprint(ctx context.Context, cand *storage.CandidateRecord) (string, error) {
	resume, err := m.store.Resumes().PrimaryForCandidate(ctx, cand.TenantID, cand.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("primary resume for %s: %w", cand.ID, err)
	}
	return identity.ExperienceFingerprint(resume.Parsed.Experience), nil
}

// SignalsFromCandidate builds matcher input from a stored candidate and its
// optional primary resume, used when re-checking an existing record.
func SignalsFromCandidate(c *storage.CandidateRecord, resume *storage.ResumeRecord) IdentitySignals {
	sig := IdentitySignals{
		Email:       c.Email,
		Phone:       c.Phone,
		LinkedInURL: c.LinkedInURL,
		FirstName:   c.FirstName,
		LastName:    c.LastName,
	}
	if resume != nil {
		sig.Experience = resume.Parsed.Experience
	}
	return sig
}

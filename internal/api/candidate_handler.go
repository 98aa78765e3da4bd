package api

import (
	"net/http"
	"time"

	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"candidate-dedup/internal/dedup"
	"candidate-dedup/internal/identity"
	"candidate-dedup/internal/storage"
)

type IngestCandidateRequest struct {
	FirstName   string                `json:"first_name"`
	LastName    string                `json:"last_name"`
	Email       string                `json:"email"`
	Phone       string                `json:"phone"`
	LinkedInURL string                `json:"linkedin_url"`
	Location    string                `json:"location"`
	Source      string                `json:"source"`
	Skills      []string              `json:"skills"`
	Tags        []string              `json:"tags"`
	Experience  []identity.Experience `json:"experience,omitempty"`
}

type IngestCandidateResponse struct {
	Candidate  *storage.CandidateRecord `json:"candidate"`
	Detection  *dedup.MatchOutcome      `json:"detection"`
	AutoMerged bool                     `json:"auto_merged"`
	Queued     bool                     `json:"queued"`
}

// IngestCandidateHandler creates a candidate and runs targeted duplicate
// detection against the tenant's population
// @Summary Ingest candidate
// @Description Create a candidate, detect duplicates, and queue or auto-merge matches
// @Tags candidates
// @Accept json
// @Produce json
// @Param X-Tenant-ID header string true "Tenant ID"
// @Param candidate body IngestCandidateRequest true "Candidate submission"
// @Success 201 {object} IngestCandidateResponse
// @Failure 400 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /candidates [post]
func (a *API) IngestCandidateHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	tenant, ok := a.tenantID(w, r)
	if !ok {
		return
	}

	var req IngestCandidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.FirstName == "" && req.LastName == "" && req.Email == "" {
		http.Error(w, "candidate needs at least a name or an email", http.StatusBadRequest)
		return
	}

	outcome, err := a.queue.Matcher().FindDuplicates(r.Context(), tenant, dedup.IdentitySignals{
		Email:       req.Email,
		Phone:       req.Phone,
		LinkedInURL: req.LinkedInURL,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Experience:  req.Experience,
	}, "")
	if err != nil {
		a.writeError(w, err)
		return
	}

	now := time.Now().UTC()
	cand := &storage.CandidateRecord{
		ID:          uuid.NewString(),
		TenantID:    tenant,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		Phone:       req.Phone,
		LinkedInURL: req.LinkedInURL,
		Location:    req.Location,
		Skills:      req.Skills,
		Tags:        req.Tags,
		Source:      req.Source,
		Lifecycle:   storage.LifecycleActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := a.store.Candidates().Insert(r.Context(), cand); err != nil {
		a.writeError(w, err)
		return
	}

	resp := &IngestCandidateResponse{Candidate: cand, Detection: outcome}

	if outcome.IsDuplicate {
		if outcome.Tier == dedup.TierExact && a.cfg.AutoMergeExact {
			// The matched record survives; the fresh submission is absorbed.
			_, err := a.queue.Merger().MergeCandidates(r.Context(), tenant,
				outcome.MatchedCandidateID, cand.ID, dedup.SmartMerge,
				"auto-merge", "exact email match at ingestion")
			if err != nil {
				a.writeError(w, err)
				return
			}
			resp.AutoMerged = true
		} else {
			queued, err := a.queue.EnqueueMatch(r.Context(), tenant, &dedup.CandidateMatch{
				CandidateID:        cand.ID,
				MatchedCandidateID: outcome.MatchedCandidateID,
				Score:              outcome.Tier.Confidence(),
				ConfidenceTier:     outcome.ConfidenceTier,
				MatchType:          outcome.Tier.MatchType(),
				Reasons:            outcome.Reasons,
				SuggestedAction:    outcome.SuggestedAction,
			})
			if err != nil {
				a.writeError(w, err)
				return
			}
			resp.Queued = queued
		}
	}

	a.log.Info("candidate ingested",
		zap.String("tenant_id", tenant),
		zap.String("candidate_id", cand.ID),
		zap.String("confidence_tier", outcome.ConfidenceTier),
		zap.Bool("auto_merged", resp.AutoMerged))
	a.writeJSON(w, http.StatusCreated, resp)
}

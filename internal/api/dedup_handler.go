package api

import (
	"encoding/json"
	"net/http"

	"candidate-dedup/internal/dedup"
)

type DetectRequest struct {
	CandidateID   string  `json:"candidate_id"`
	MinConfidence float64 `json:"min_confidence"`
}

type DetectResponse struct {
	Matches []*dedup.CandidateMatch `json:"matches"`
}

type ScanRequest struct {
	Limit      int  `json:"limit"`
	AddToQueue bool `json:"add_to_queue"`
}

// DetectDuplicatesHandler runs targeted detection for one existing candidate
// @Summary Detect duplicates
// @Description Run targeted duplicate detection for a candidate without persisting anything
// @Tags dedup
// @Accept json
// @Produce json
// @Param X-Tenant-ID header string true "Tenant ID"
// @Param request body DetectRequest true "Detection request"
// @Success 200 {object} DetectResponse
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /dedup/detect [post]
func (a *API) DetectDuplicatesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	tenant, ok := a.tenantID(w, r)
	if !ok {
		return
	}

	var req DetectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.CandidateID == "" {
		http.Error(w, "candidate_id is required", http.StatusBadRequest)
		return
	}

	matches, err := a.queue.DetectDuplicates(r.Context(), tenant, req.CandidateID, req.MinConfidence)
	if err != nil {
		a.writeError(w, err)
		return
	}
	if matches == nil {
		matches = []*dedup.CandidateMatch{}
	}
	a.writeJSON(w, http.StatusOK, &DetectResponse{Matches: matches})
}

// ScanHandler runs the pairwise batch scan for the tenant
// @Summary Batch duplicate scan
// @Description Scan active candidates pairwise and optionally queue flagged pairs
// @Tags dedup
// @Accept json
// @Produce json
// @Param X-Tenant-ID header string true "Tenant ID"
// @Param request body ScanRequest true "Scan options"
// @Success 200 {object} dedup.ScanSummary
// @Failure 400 {object} map[string]string
// @Router /dedup/scan [post]
func (a *API) ScanHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	tenant, ok := a.tenantID(w, r)
	if !ok {
		return
	}

	var req ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Limit <= 0 {
		req.Limit = a.cfg.ScanLimit
	}

	summary, err := a.queue.ScanAllCandidates(r.Context(), tenant, req.Limit, req.AddToQueue, "api")
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, summary)
}

package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"candidate-dedup/internal/dedup"
	"candidate-dedup/internal/storage"
)

type QueueListResponse struct {
	Items    []*dedup.MergeQueueItemDetail `json:"items"`
	Total    int                           `json:"total"`
	Page     int                           `json:"page"`
	PageSize int                           `json:"page_size"`
}

type ReviewRequest struct {
	QueueItemID string `json:"queue_item_id"`
	Strategy    string `json:"strategy,omitempty"`
	ReviewedBy  string `json:"reviewed_by"`
	Notes       string `json:"notes,omitempty"`
}

// ListQueueItemsHandler lists merge-queue items with optional filters
// @Summary List merge queue
// @Description List queue items, filterable by status and match type
// @Tags queue
// @Produce json
// @Param X-Tenant-ID header string true "Tenant ID"
// @Param page query int false "Page number (1-based)"
// @Param page_size query int false "Page size (default 20)"
// @Param status query string false "Filter by status" Enums(pending, merged, rejected, deferred)
// @Param match_type query string false "Filter by match type" Enums(hard, strong, fuzzy, review)
// @Success 200 {object} QueueListResponse
// @Failure 400 {object} map[string]string
// @Router /dedup/queue [get]
func (a *API) ListQueueItemsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	tenant, ok := a.tenantID(w, r)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	status := storage.QueueStatus(r.URL.Query().Get("status"))
	matchType := storage.MatchType(r.URL.Query().Get("match_type"))

	items, total, err := a.queue.ListQueueItems(r.Context(), tenant, page, pageSize, status, matchType)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, &QueueListResponse{
		Items:    items,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

// GetQueueItemHandler returns one queue item with candidate summaries
// @Summary Get queue item
// @Tags queue
// @Produce json
// @Param X-Tenant-ID header string true "Tenant ID"
// @Param id query string true "Queue item ID"
// @Success 200 {object} dedup.MergeQueueItemDetail
// @Failure 404 {object} map[string]string
// @Router /dedup/queue/item [get]
func (a *API) GetQueueItemHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	tenant, ok := a.tenantID(w, r)
	if !ok {
		return
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}

	detail, err := a.queue.GetQueueItem(r.Context(), tenant, id)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, detail)
}

// MergeHandler approves a pending queue item and executes the merge
// @Summary Approve and merge
// @Description Approve a pending queue item; the status flip and merge side effects commit together
// @Tags queue
// @Accept json
// @Produce json
// @Param X-Tenant-ID header string true "Tenant ID"
// @Param request body ReviewRequest true "Merge approval"
// @Success 200 {object} storage.MergeResult
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string "Item is not pending"
// @Router /dedup/queue/merge [post]
func (a *API) MergeHandler(w http.ResponseWriter, r *http.Request) {
	tenant, req, ok := a.reviewRequest(w, r)
	if !ok {
		return
	}
	strategy, err := dedup.ParseStrategy(req.Strategy)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := a.queue.Merge(r.Context(), tenant, req.QueueItemID, strategy, req.ReviewedBy, req.Notes)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, result)
}

// RejectHandler marks a pending queue item rejected
// @Summary Reject queue item
// @Tags queue
// @Accept json
// @Produce json
// @Param X-Tenant-ID header string true "Tenant ID"
// @Param request body ReviewRequest true "Rejection"
// @Success 200 {object} map[string]string
// @Failure 409 {object} map[string]string "Item is not pending"
// @Router /dedup/queue/reject [post]
func (a *API) RejectHandler(w http.ResponseWriter, r *http.Request) {
	tenant, req, ok := a.reviewRequest(w, r)
	if !ok {
		return
	}
	if err := a.queue.Reject(r.Context(), tenant, req.QueueItemID, req.ReviewedBy, req.Notes); err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]string{"status": "rejected"})
}

// DeferHandler marks a pending queue item deferred
// @Summary Defer queue item
// @Tags queue
// @Accept json
// @Produce json
// @Param X-Tenant-ID header string true "Tenant ID"
// @Param request body ReviewRequest true "Deferral"
// @Success 200 {object} map[string]string
// @Failure 409 {object} map[string]string "Item is not pending"
// @Router /dedup/queue/defer [post]
func (a *API) DeferHandler(w http.ResponseWriter, r *http.Request) {
	tenant, req, ok := a.reviewRequest(w, r)
	if !ok {
		return
	}
	if err := a.queue.Defer(r.Context(), tenant, req.QueueItemID, req.ReviewedBy, req.Notes); err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]string{"status": "deferred"})
}

// QueueStatsHandler returns the tenant's queue counters
// @Summary Queue stats
// @Tags queue
// @Produce json
// @Param X-Tenant-ID header string true "Tenant ID"
// @Success 200 {object} storage.QueueStats
// @Router /dedup/queue/stats [get]
func (a *API) QueueStatsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	tenant, ok := a.tenantID(w, r)
	if !ok {
		return
	}
	stats, err := a.queue.QueueStats(r.Context(), tenant)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, stats)
}

// reviewRequest handles the shared decode/validate path of the three review
// endpoints.
func (a *API) reviewRequest(w http.ResponseWriter, r *http.Request) (string, *ReviewRequest, bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return "", nil, false
	}
	tenant, ok := a.tenantID(w, r)
	if !ok {
		return "", nil, false
	}
	var req ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return "", nil, false
	}
	if req.QueueItemID == "" {
		http.Error(w, "queue_item_id is required", http.StatusBadRequest)
		return "", nil, false
	}
	if req.ReviewedBy == "" {
		http.Error(w, "reviewed_by is required", http.StatusBadRequest)
		return "", nil, false
	}
	return tenant, &req, true
}

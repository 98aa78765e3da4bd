package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"candidate-dedup/internal/config"
	"candidate-dedup/internal/dedup"
	"candidate-dedup/internal/resume"
	"candidate-dedup/internal/storage"
)

type API struct {
	store     storage.Store
	queue     *dedup.QueueService
	extractor *resume.Extractor
	cfg       *config.Config
	log       *zap.Logger
}

func NewAPI(store storage.Store, queue *dedup.QueueService, extractor *resume.Extractor, cfg *config.Config, log *zap.Logger) *API {
	return &API{
		store:     store,
		queue:     queue,
		extractor: extractor,
		cfg:       cfg,
		log:       log,
	}
}

// tenantID pulls the tenant from the X-Tenant-ID header. Real tenant
// resolution (auth middleware) lives upstream; this shim keeps every
// handler tenant-scoped.
func (a *API) tenantID(w http.ResponseWriter, r *http.Request) (string, bool) {
	tenant := r.Header.Get("X-Tenant-ID")
	if tenant == "" {
		http.Error(w, "missing X-Tenant-ID header", http.StatusBadRequest)
		return "", false
	}
	return tenant, true
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.log.Error("encode response", zap.Error(err))
	}
}

// writeError maps pipeline errors onto HTTP statuses: missing records are
// the caller's problem (404), stale transitions need a re-fetch (409),
// anything else is a retryable server failure (500).
func (a *API) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, storage.ErrInvalidTransition):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		a.log.Error("request failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

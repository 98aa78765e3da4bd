package api

import (
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"
)

func NewRouter(a *API) http.Handler {
	mux := http.NewServeMux()

	// Swagger documentation - must be registered first
	mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
	))

	// Health check (for Railway, k8s, etc.)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	// Candidate ingestion
	mux.HandleFunc("/api/candidates", a.IngestCandidateHandler)

	// Resume upload
	mux.HandleFunc("/api/resumes/upload", a.ResumeUploadHandler)

	// Duplicate detection
	mux.HandleFunc("/api/dedup/detect", a.DetectDuplicatesHandler)
	mux.HandleFunc("/api/dedup/scan", a.ScanHandler)

	// Merge queue workflow
	mux.HandleFunc("/api/dedup/queue", a.ListQueueItemsHandler)
	mux.HandleFunc("/api/dedup/queue/item", a.GetQueueItemHandler)
	mux.HandleFunc("/api/dedup/queue/merge", a.MergeHandler)
	mux.HandleFunc("/api/dedup/queue/reject", a.RejectHandler)
	mux.HandleFunc("/api/dedup/queue/defer", a.DeferHandler)
	mux.HandleFunc("/api/dedup/queue/stats", a.QueueStatsHandler)

	return mux
}

package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"candidate-dedup/internal/resume"
	"candidate-dedup/internal/storage"
)

const maxUploadSize = 10 << 20 // 10 MB

// ResumeUploadHandler attaches a resume file to a candidate
// @Summary Upload resume
// @Description Upload a resume file (PDF, DOCX, DOC, RTF, ODT, TXT); it becomes the candidate's primary resume
// @Tags resumes
// @Accept multipart/form-data
// @Produce json
// @Param X-Tenant-ID header string true "Tenant ID"
// @Param candidate_id formData string true "Candidate ID"
// @Param file formData file true "Resume file"
// @Param parsed formData string false "Parsed resume payload (JSON)"
// @Success 201 {object} storage.ResumeRecord
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /resumes/upload [post]
func (a *API) ResumeUploadHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	tenant, ok := a.tenantID(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		http.Error(w, "failed to parse form", http.StatusBadRequest)
		return
	}

	candidateID := r.FormValue("candidate_id")
	if candidateID == "" {
		http.Error(w, "candidate_id is required", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	extracted, err := a.extractor.ExtractText(header.Filename, file)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var parsed storage.ParsedResume
	if raw := r.FormValue("parsed"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
			http.Error(w, "invalid parsed payload", http.StatusBadRequest)
			return
		}
	}
	parsed.RawText = extracted.Text
	if len(parsed.Skills) == 0 {
		parsed.Skills = resume.ExtractSkills(extracted.Text)
	}

	rec, err := resume.Attach(r.Context(), a.store, tenant, candidateID, extracted, parsed)
	if err != nil {
		a.writeError(w, err)
		return
	}

	a.log.Info("resume attached",
		zap.String("tenant_id", tenant),
		zap.String("candidate_id", candidateID),
		zap.Int("version", rec.Version))
	a.writeJSON(w, http.StatusCreated, rec)
}

package api

import (
	"net/http"

	"github.com/phrazzld/inkwell-api/internal/api/shared"
	"github.com/phrazzld/inkwell-api/internal/domain"
	"github.com/phrazzld/inkwell-api/internal/service"
)

// GenerationHandler handles job, article and estimate requests.
type GenerationHandler struct {
	generationService service.GenerationService
}

// NewGenerationHandler creates a new GenerationHandler
func NewGenerationHandler(generationService service.GenerationService) *GenerationHandler {
	return &GenerationHandler{generationService: generationService}
}

// SubmitSingle handles POST /api/jobs requests.
// The job runs asynchronously, so a successful submission returns 202 Accepted.
func (h *GenerationHandler) SubmitSingle(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}

	var req SubmitSingleRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, r, http.StatusBadRequest, "Invalid request format", nil)
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		HandleValidationError(w, r, err)
		return
	}

	job, err := h.generationService.SubmitSingle(r.Context(), ownerID, req.Title, req.Config.ToDomain())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to submit job")
		return
	}

	shared.WriteJSON(w, r, http.StatusAccepted, SubmitResponse{
		JobID:            job.ID,
		EstimatedCredits: job.EstimatedCredits,
	})
}

// SubmitBulk handles POST /api/jobs/bulk requests.
func (h *GenerationHandler) SubmitBulk(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}

	var req SubmitBulkRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, r, http.StatusBadRequest, "Invalid request format", nil)
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		HandleValidationError(w, r, err)
		return
	}

	job, err := h.generationService.SubmitBulk(r.Context(), ownerID, req.Titles, req.Config.ToDomain())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to submit job")
		return
	}

	shared.WriteJSON(w, r, http.StatusAccepted, SubmitResponse{
		JobID:            job.ID,
		EstimatedCredits: job.EstimatedCredits,
	})
}

// GetJob handles GET /api/jobs/{id} requests.
func (h *GenerationHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	ownerID, jobID, ok := handleOwnerAndPathUUID(w, r, "id")
	if !ok {
		return
	}

	job, err := h.generationService.GetStatus(r.Context(), ownerID, jobID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to load job")
		return
	}

	shared.WriteJSON(w, r, http.StatusOK, jobToResponse(job))
}

// ListJobs handles GET /api/jobs requests.
func (h *GenerationHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}

	limit, offset := pagination(r)
	jobs, err := h.generationService.ListJobs(r.Context(), ownerID, limit, offset)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list jobs")
		return
	}

	response := make([]JobResponse, 0, len(jobs))
	for _, job := range jobs {
		response = append(response, jobToResponse(job))
	}
	shared.WriteJSON(w, r, http.StatusOK, response)
}

// CancelJob handles POST /api/jobs/{id}/cancel requests.
func (h *GenerationHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	ownerID, jobID, ok := handleOwnerAndPathUUID(w, r, "id")
	if !ok {
		return
	}

	result, err := h.generationService.Cancel(r.Context(), ownerID, jobID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to cancel job")
		return
	}

	status := http.StatusOK
	if result.Pending {
		status = http.StatusAccepted
	}
	shared.WriteJSON(w, r, status, CancelResponse{
		JobID:           result.JobID,
		Status:          string(result.Status),
		RefundedCredits: result.RefundedCredits,
		Pending:         result.Pending,
	})
}

// ListJobArticles handles GET /api/jobs/{id}/articles requests.
func (h *GenerationHandler) ListJobArticles(w http.ResponseWriter, r *http.Request) {
	ownerID, jobID, ok := handleOwnerAndPathUUID(w, r, "id")
	if !ok {
		return
	}

	articles, err := h.generationService.ListArticles(r.Context(), ownerID, jobID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list articles")
		return
	}

	respondWithArticles(w, r, articles)
}

// ListArticles handles GET /api/articles requests.
func (h *GenerationHandler) ListArticles(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}

	limit, offset := pagination(r)
	articles, err := h.generationService.ListOwnerArticles(r.Context(), ownerID, limit, offset)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list articles")
		return
	}

	respondWithArticles(w, r, articles)
}

// GetArticle handles GET /api/articles/{id} requests.
func (h *GenerationHandler) GetArticle(w http.ResponseWriter, r *http.Request) {
	ownerID, articleID, ok := handleOwnerAndPathUUID(w, r, "id")
	if !ok {
		return
	}

	article, err := h.generationService.GetArticle(r.Context(), ownerID, articleID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to load article")
		return
	}

	shared.WriteJSON(w, r, http.StatusOK, articleToResponse(article))
}

// Estimate handles POST /api/estimate requests. Nothing is reserved.
func (h *GenerationHandler) Estimate(w http.ResponseWriter, r *http.Request) {
	var req EstimateRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, r, http.StatusBadRequest, "Invalid request format", nil)
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		HandleValidationError(w, r, err)
		return
	}

	credits, err := h.generationService.EstimatePreview(r.Context(), req.Config.ToDomain(), req.Titles)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to estimate cost")
		return
	}

	shared.WriteJSON(w, r, http.StatusOK, EstimateResponse{EstimatedCredits: credits})
}

// SuggestTitles handles POST /api/titles/suggest requests.
func (h *GenerationHandler) SuggestTitles(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireOwner(w, r); !ok {
		return
	}

	var req SuggestTitlesRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, r, http.StatusBadRequest, "Invalid request format", nil)
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		HandleValidationError(w, r, err)
		return
	}

	titles, err := h.generationService.SuggestTitles(r.Context(), req.Model, req.Topic, req.Count)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to suggest titles")
		return
	}

	shared.WriteJSON(w, r, http.StatusOK, SuggestTitlesResponse{Titles: titles})
}

func respondWithArticles(w http.ResponseWriter, r *http.Request, articles []*domain.Article) {
	response := make([]ArticleResponse, 0, len(articles))
	for _, article := range articles {
		response = append(response, articleToResponse(article))
	}
	shared.WriteJSON(w, r, http.StatusOK, response)
}

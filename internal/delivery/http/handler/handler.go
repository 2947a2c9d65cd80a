package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/user/review-crawler/internal/delivery/http/response"
	"github.com/user/review-crawler/internal/entity"
)

// StatusProvider reports the progress of the running crawl.
type StatusProvider interface {
	Status() entity.CrawlStatus
}

type Handler struct {
	status StatusProvider
	logger *zap.Logger
}

func NewHandler(status StatusProvider, logger *zap.Logger) *Handler {
	return &Handler{
		status: status,
		logger: logger,
	}
}

func (h *Handler) HandleGetCrawlStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, response.NewCrawlStatusResponse(h.status.Status()))
}

func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, response.HealthResponse{Status: "ok"})
}

func (h *Handler) HandleNotFound(w http.ResponseWriter, r *http.Request) {
	h.writeJSONError(w, "Not found", http.StatusNotFound)
}

func (h *Handler) HandleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.writeJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to write JSON response", zap.Error(err))
	}
}

func (h *Handler) writeJSONError(w http.ResponseWriter, message string, status int) {
	h.writeJSON(w, status, response.ErrorResponse{Error: message})
}

package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"aipixels/internal/domain"
	"aipixels/internal/providers/replicate"
)

type predictionDTO struct {
	ID        string                    `json:"id"`
	Status    domain.JobStatus          `json:"status"`
	CreatedAt *time.Time                `json:"created_at"`
	Input     json.RawMessage           `json:"input"`
	Output    json.RawMessage           `json:"output"`
	Error     *string                   `json:"error"`
	Logs      string                    `json:"logs"`
	Metrics   *domain.PredictionMetrics `json:"metrics"`
}

func toPredictionDTO(p *domain.Prediction) predictionDTO {
	dto := predictionDTO{
		ID:      p.ID,
		Status:  p.Status,
		Input:   p.Input,
		Output:  p.Output,
		Logs:    p.Logs,
		Metrics: p.Metrics,
	}
	if !p.CreatedAt.IsZero() {
		created := p.CreatedAt
		dto.CreatedAt = &created
	}
	if len(dto.Input) == 0 {
		dto.Input = json.RawMessage("null")
	}
	if len(dto.Output) == 0 {
		dto.Output = json.RawMessage("null")
	}
	if p.Error != "" {
		msg := p.Error
		dto.Error = &msg
	}
	return dto
}

func (a *App) predictionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		a.error(w, http.StatusBadRequest, "INVALID_INPUT", "prediction id is required")
		return "", false
	}
	if a.Predictions == nil || !a.Predictions.Configured() {
		a.error(w, http.StatusInternalServerError, "SERVICE_NOT_CONFIGURED", "image generation service is not configured")
		return "", false
	}
	return id, true
}

// GetPrediction handles GET /predictions/{id}.
func (a *App) GetPrediction(w http.ResponseWriter, r *http.Request) {
	id, ok := a.predictionID(w, r)
	if !ok {
		return
	}
	pred, err := a.Predictions.Poll(r.Context(), id)
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, toPredictionDTO(pred))
}

// CancelPrediction handles DELETE /predictions/{id}.
func (a *App) CancelPrediction(w http.ResponseWriter, r *http.Request) {
	id, ok := a.predictionID(w, r)
	if !ok {
		return
	}
	result, err := a.Predictions.Cancel(r.Context(), id)
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	if result == replicate.CancelAlreadyTerminal {
		a.error(w, http.StatusBadRequest, "ALREADY_TERMINAL", "prediction has already finished")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"success": true, "message": "prediction cancellation requested"})
}

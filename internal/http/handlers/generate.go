package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"aipixels/internal/generate"
	"aipixels/internal/middleware"
)

const maxGenerateBody = 64 << 10

type generateRequest struct {
	Prompt      string `json:"prompt"`
	StyleID     string `json:"styleId"`
	AspectRatio string `json:"aspectRatio"`
	ImageSize   *struct {
		Ratio string `json:"ratio"`
	} `json:"imageSize"`
}

// Generate handles POST /generate.
func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	owner := middleware.OwnerIDFromContext(r.Context())
	if owner == "" {
		a.error(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
		return
	}
	var body generateRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxGenerateBody))
	if err := dec.Decode(&body); err != nil {
		a.error(w, http.StatusBadRequest, "INVALID_INPUT", "invalid JSON payload")
		return
	}
	req := generate.Request{
		OwnerID:     owner,
		Prompt:      body.Prompt,
		StyleID:     body.StyleID,
		AspectRatio: body.AspectRatio,
		Locale:      middleware.LocaleFromContext(r.Context()),
	}
	if body.ImageSize != nil {
		req.ImageSizeRatio = body.ImageSize.Ratio
	}
	res, err := a.Generator.Generate(r.Context(), req)
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, res)
}

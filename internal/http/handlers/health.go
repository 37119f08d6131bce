package handlers

import (
	"context"
	"net/http"
	"time"
)

const healthTimeout = 2 * time.Second

// Health reports which storage and metadata backends are wired and whether
// they answer.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	status := "ok"
	storage := a.backendStatus(ctx, r, a.Storage)
	metadata := a.backendStatus(ctx, r, a.Metadata)
	if storage == "unavailable" || metadata == "unavailable" {
		status = "degraded"
	}
	a.json(w, http.StatusOK, map[string]string{
		"status":   status,
		"storage":  storage,
		"metadata": metadata,
	})
}

func (a *App) backendStatus(ctx context.Context, r *http.Request, b Backend) string {
	if b.Name == "" {
		return "disabled"
	}
	if b.Pinger != nil {
		if err := b.Pinger.Ping(ctx); err != nil {
			a.log(r).Warn().Err(err).Str("backend", b.Name).Msg("health check failed")
			return "unavailable"
		}
	}
	return b.Name
}

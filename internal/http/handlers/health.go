package handlers

import (
	"net/http"
	"time"
)

func (a *App) Root(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "evaluation service",
	})
}

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"version":   a.Version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"evalserver/internal/domain"
	"evalserver/internal/service"
)

// App is the handler container: it holds the evaluation service and the
// request-independent bits handlers need.
type App struct {
	Evaluations *service.Evaluations
	Scorers     []domain.Scorer
	Logger      zerolog.Logger
	Version     string
}

func NewApp(evaluations *service.Evaluations, logger zerolog.Logger, version string) *App {
	return &App{
		Evaluations: evaluations,
		Scorers:     evaluations.Scorers(),
		Logger:      logger,
		Version:     version,
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]string{
		"error":   errCode,
		"message": message,
	})
}

package handlers

import "net/http"

// ScorersList returns the configured scorer set with names, weights and
// descriptions.
func (a *App) ScorersList(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, a.Scorers)
}

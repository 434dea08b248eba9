package handlers

import "net/http"

// JobsList returns summaries of every known job.
func (a *App) JobsList(w http.ResponseWriter, r *http.Request) {
	jobs := a.Evaluations.List()
	a.json(w, http.StatusOK, map[string]any{
		"total": len(jobs),
		"jobs":  jobs,
	})
}

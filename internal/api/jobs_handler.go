package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// ListJobsHandler handles GET /api/v1/collector/jobs?config_uuid=&limit=
func ListJobsHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := requireOwner(w, r)
		if !ok {
			return
		}

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		execs, err := deps.Services.Jobs.ListExecutions(r.Context(), ownerID, r.URL.Query().Get("config_uuid"), limit)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		respondWithSuccess(w, http.StatusOK, &execs)
	}
}

// GetJobHandler handles GET /api/v1/collector/jobs/{task_id}
func GetJobHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := requireOwner(w, r)
		if !ok {
			return
		}

		exec, err := deps.Services.Jobs.GetExecution(r.Context(), ownerID, chi.URLParam(r, "task_id"))
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		respondWithSuccess(w, http.StatusOK, exec)
	}
}

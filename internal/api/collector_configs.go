package api

import (
	"net/http"

	"devmind/datacollector/internal/auth"
	"devmind/datacollector/internal/models/dtos/requests"

	"github.com/go-chi/chi/v5"
)

// requireOwner returns the authenticated owner or writes a 401
func requireOwner(w http.ResponseWriter, r *http.Request) (string, bool) {
	ownerID := auth.OwnerID(r.Context())
	if ownerID == "" {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized: missing claims")
		return "", false
	}
	return ownerID, true
}

// ListConfigsHandler handles GET /api/v1/collector/configs
func ListConfigsHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := requireOwner(w, r)
		if !ok {
			return
		}

		configs, err := deps.Services.Configs.List(r.Context(), ownerID)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		respondWithSuccess(w, http.StatusOK, &configs)
	}
}

// GetConfigHandler handles GET /api/v1/collector/configs/{config_uuid}
func GetConfigHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := requireOwner(w, r)
		if !ok {
			return
		}

		config, err := deps.Services.Configs.Get(r.Context(), ownerID, chi.URLParam(r, "config_uuid"))
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		respondWithSuccess(w, http.StatusOK, config)
	}
}

// CreateConfigHandler handles POST /api/v1/collector/configs
func CreateConfigHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := requireOwner(w, r)
		if !ok {
			return
		}

		var req requests.CreateConfigRequest
		if err := decodeJSON(r, &req, false); err != nil {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}

		config, err := deps.Services.Configs.Create(r.Context(), ownerID, &req)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		respondWithSuccess(w, http.StatusCreated, config)
	}
}

// UpdateConfigHandler handles PUT /api/v1/collector/configs/{config_uuid}
func UpdateConfigHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := requireOwner(w, r)
		if !ok {
			return
		}

		var req requests.UpdateConfigRequest
		if err := decodeJSON(r, &req, false); err != nil {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}

		config, err := deps.Services.Configs.Update(r.Context(), ownerID, chi.URLParam(r, "config_uuid"), &req)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		respondWithSuccess(w, http.StatusOK, config)
	}
}

// DeleteConfigHandler handles DELETE /api/v1/collector/configs/{config_uuid}
func DeleteConfigHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := requireOwner(w, r)
		if !ok {
			return
		}

		if err := deps.Services.Configs.Delete(r.Context(), ownerID, chi.URLParam(r, "config_uuid")); err != nil {
			handleServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ValidateConfigHandler handles POST /api/v1/collector/configs/validate-config.
// Nothing is saved; the response says whether the platform accepts the credentials.
func ValidateConfigHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireOwner(w, r); !ok {
			return
		}

		var req requests.ValidateCredentialsRequest
		if err := decodeJSON(r, &req, false); err != nil {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}

		result, err := deps.Services.Configs.ValidateCredentials(r.Context(), req.Platform, req.Value)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		respondWithSuccess(w, http.StatusOK, result)
	}
}

// FetchProjectsHandler handles POST /api/v1/collector/configs/fetch-projects
func FetchProjectsHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := requireOwner(w, r)
		if !ok {
			return
		}

		var req requests.FetchProjectsRequest
		if err := decodeJSON(r, &req, false); err != nil {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}

		result, err := deps.Services.Configs.FetchProjects(r.Context(), ownerID, &req)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		respondWithSuccess(w, http.StatusOK, result)
	}
}

// ValidateStoredConfigHandler handles POST /api/v1/collector/configs/{config_uuid}/validate-config
func ValidateStoredConfigHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := requireOwner(w, r)
		if !ok {
			return
		}

		result, err := deps.Services.Configs.ValidateStoredCredentials(r.Context(), ownerID, chi.URLParam(r, "config_uuid"))
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		respondWithSuccess(w, http.StatusOK, result)
	}
}

// TriggerCollectHandler handles POST /api/v1/collector/configs/{config_uuid}/collect
func TriggerCollectHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := requireOwner(w, r)
		if !ok {
			return
		}

		var req requests.TriggerCollectRequest
		if err := decodeJSON(r, &req, true); err != nil {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}

		dispatched, err := deps.Services.Jobs.TriggerCollect(r.Context(), ownerID, chi.URLParam(r, "config_uuid"), &req)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		respondWithSuccess(w, http.StatusAccepted, dispatched)
	}
}

// TriggerValidateHandler handles POST /api/v1/collector/configs/{config_uuid}/validate
func TriggerValidateHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := requireOwner(w, r)
		if !ok {
			return
		}

		var req requests.TriggerValidateRequest
		if err := decodeJSON(r, &req, true); err != nil {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}

		dispatched, err := deps.Services.Jobs.TriggerValidate(r.Context(), ownerID, chi.URLParam(r, "config_uuid"), &req)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		respondWithSuccess(w, http.StatusAccepted, dispatched)
	}
}

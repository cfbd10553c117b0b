package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"devmind/datacollector/internal/constants"
	"devmind/datacollector/internal/logging"
	"devmind/datacollector/internal/models/dtos/responses"
	"devmind/datacollector/internal/services"
)

func respondWithSuccess[T any](w http.ResponseWriter, statusCode int, data *T) {
	resp := responses.APIResponse[T]{
		Status:    string(constants.APIStatusOk),
		Timestamp: time.Now().UTC(),
		Data:      data,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(resp)
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	resp := responses.APIResponse[any]{
		Status:    string(constants.APIStatusError),
		Timestamp: time.Now().UTC(),
		Error:     message,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(resp)
}

// handleServiceError maps service error codes to HTTP statuses
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var svcErr *services.ServiceError
	if !errors.As(err, &svcErr) {
		logging.Error("Unhandled error", "path", r.URL.Path, "error", err.Error())
		respondWithError(w, http.StatusInternalServerError, constants.GetErrorMessage(constants.ErrCodeInternal))
		return
	}

	status := http.StatusInternalServerError
	switch svcErr.Code {
	case constants.ErrCodeConfigNotFound, constants.ErrCodeRecordNotFound,
		constants.ErrCodeAttachmentNotFound, constants.ErrCodeJobNotFound:
		status = http.StatusNotFound
	case constants.ErrCodeConfigMalformed, constants.ErrCodeInvalidTimeRange,
		constants.ErrCodeInvalidCron, constants.ErrCodeUnknownPlatform,
		constants.ErrCodeProjectListFailed:
		status = http.StatusBadRequest
	case constants.ErrCodeConfigExists, constants.ErrCodeVersionConflict:
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		logging.Error("Request failed", "path", r.URL.Path, "code", svcErr.Code, "error", svcErr.Error())
		respondWithError(w, status, svcErr.Message)
		return
	}

	// client errors carry the underlying detail, e.g. which schema rule failed
	respondWithError(w, status, svcErr.Error())
}

// decodeJSON reads a JSON body. An empty body is allowed when optional is set.
func decodeJSON(r *http.Request, dst interface{}, optional bool) error {
	if r.Body == nil {
		if optional {
			return nil
		}
		return errors.New("request body is required")
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) && optional {
		return nil
	}
	if err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

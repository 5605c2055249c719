package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/xraph/jobqueue"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeStoreError maps jobqueue sentinel errors to HTTP statuses.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, jobqueue.ErrJobNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, jobqueue.ErrUnknownWorker),
		errors.Is(err, jobqueue.ErrInvalidWorkerName):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, jobqueue.ErrJobNotRunning):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

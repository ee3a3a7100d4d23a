package api

import (
	"encoding/json"
	"errors"
	"net/http"

	pollRegistry "poll-node/modules/poll-registry"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{msg})
}

// StatusFor maps registry rejections to HTTP status codes. Anything else is
// an internal failure.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, pollRegistry.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, pollRegistry.ErrInvalidOptions),
		errors.Is(err, pollRegistry.ErrInvalidDuration),
		errors.Is(err, pollRegistry.ErrInvalidOption),
		errors.Is(err, pollRegistry.ErrInvalidSignature):
		return http.StatusBadRequest
	case errors.Is(err, pollRegistry.ErrPollNotFound):
		return http.StatusNotFound
	case errors.Is(err, pollRegistry.ErrPollEnded),
		errors.Is(err, pollRegistry.ErrAlreadyVoted):
		return http.StatusConflict
	case errors.Is(err, pollRegistry.ErrFeeDebitFailed):
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

func (api *apiManager) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		api.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

// decode reads a JSON body into T and validates it.
func decode[T any](api *apiManager, w http.ResponseWriter, r *http.Request) (T, bool) {
	var req T
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return req, false
	}
	if err := api.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return req, false
	}
	return req, true
}

package utils

import (
	"encoding/json"
	"net/http"

	"messagely/internal/common"
)

type ErrorBody struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Error writes err as the error envelope. Failures that are not a
// *common.Error are logged and reported as a bare 500.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := common.StatusOf(err)
	if status >= http.StatusInternalServerError {
		LoggerFrom(r.Context()).WithError(err).Error("request failed")
	}
	JSON(w, status, ErrorResponse{Error: ErrorBody{Message: msg, Status: status}})
}

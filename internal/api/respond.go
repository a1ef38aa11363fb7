package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/sells-group/rankboard/internal/apperr"
)

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			zap.L().Warn("response encode failed", zap.Error(err))
		}
	}
}

// writeError maps the error taxonomy onto HTTP statuses. Anything without
// a recognized kind is a 500 and gets logged with its full wrap chain.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	body := errorBody{Error: err.Error()}
	var ae *apperr.Error
	status := http.StatusInternalServerError

	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		status = http.StatusUnprocessableEntity
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindInvalidState:
		status = http.StatusConflict
	case apperr.KindConflict:
		status = http.StatusConflict
	default:
		zap.L().Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		body.Error = "internal error"
	}
	if errors.As(err, &ae) {
		body.Field = ae.Field
	}
	writeJSON(w, status, body)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperr.Validationf("body", "invalid json: %v", err)
	}
	return nil
}

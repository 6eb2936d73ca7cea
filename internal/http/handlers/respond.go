package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"afripay/internal/services/svcerr"

	"github.com/rs/zerolog/hlog"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error  string            `json:"error"`
	Code   string            `json:"code,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
	Detail string            `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Errors maps service errors to responses. Dev echoes internal error text
// on 500s.
type Errors struct {
	Dev bool
}

func (e Errors) Write(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ve *svcerr.ValidationError
		nf *svcerr.NotFoundError
		ce *svcerr.ConflictError
		ch *svcerr.ChainError
	)
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, ErrorBody{Error: "validation failed", Fields: ve.Fields})
	case errors.As(err, &nf):
		writeJSON(w, http.StatusNotFound, ErrorBody{Error: nf.Error()})
	case errors.As(err, &ce):
		writeJSON(w, http.StatusConflict, ErrorBody{Error: ce.Message})
	case errors.As(err, &ch):
		writeJSON(w, http.StatusBadRequest, ErrorBody{Error: ch.Message, Code: ch.Code})
	default:
		hlog.FromRequest(r).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		body := ErrorBody{Error: "internal server error"}
		if e.Dev {
			body.Detail = err.Error()
		}
		writeJSON(w, http.StatusInternalServerError, body)
	}
}

// decode reads a JSON body into v, answering 400 or 413 itself on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, ErrorBody{Error: "request body too large"})
			return false
		}
		writeJSON(w, http.StatusBadRequest, ErrorBody{Error: "invalid JSON body: " + err.Error()})
		return false
	}
	return true
}

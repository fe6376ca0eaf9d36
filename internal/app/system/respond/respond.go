// Package respond writes the JSON envelope shared by every endpoint:
//
//	{ "message": "...", "data": ..., "error": null }
package respond

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dalemusser/taskspace/internal/app/system/apperr"
	"go.uber.org/zap"
)

// maxBodyBytes caps request bodies read by Decode.
const maxBodyBytes = 1 << 20

var errEmptyBody = apperr.New(apperr.InvalidRequest, "Request body is empty")

// Envelope is the response body of every endpoint.
type Envelope struct {
	Message string  `json:"message"`
	Data    any     `json:"data"`
	Error   *string `json:"error"`
}

// JSON writes a success envelope.
func JSON(w http.ResponseWriter, status int, message string, data any) {
	write(w, status, Envelope{Message: message, Data: data})
}

// Error writes a failure envelope for err.
//
// Classified errors carry their own message and a null error field.
// Internal errors expose the underlying cause in the error field.
func Error(w http.ResponseWriter, log *zap.Logger, err error) {
	status := apperr.Status(err)
	env := Envelope{Message: "Internal server error"}

	var ae *apperr.Error
	if errors.As(err, &ae) && ae.Message != "" {
		env.Message = ae.Message
	}

	switch apperr.KindOf(err) {
	case apperr.Internal:
		detail := err.Error()
		if ae != nil && ae.Err != nil {
			detail = ae.Err.Error()
		}
		env.Error = &detail
		if log != nil {
			log.Error("request failed", zap.Int("status", status), zap.Error(err))
		}
	case apperr.Unavailable:
		if log != nil {
			log.Warn("store unavailable", zap.Int("status", status), zap.Error(err))
		}
	default:
		if log != nil {
			log.Debug("request rejected", zap.Int("status", status), zap.Error(err))
		}
	}

	write(w, status, env)
}

// Decode reads a JSON request body into dst. A missing, malformed or
// trailing-data body is an InvalidRequest error.
func Decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return apperr.Wrap(apperr.InvalidRequest, "Invalid request", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return apperr.New(apperr.InvalidRequest, "Request body must hold a single JSON object")
	}
	return nil
}

// DecodeOptional is Decode for partial updates: an empty body leaves dst
// untouched and is not an error.
func DecodeOptional(r *http.Request, dst any) error {
	if err := Decode(r, dst); !errors.Is(err, errEmptyBody) {
		return err
	}
	return nil
}

func write(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

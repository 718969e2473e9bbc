package server

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/koman-maciej/insurance/internal/services/aggregation"
	"github.com/koman-maciej/insurance/internal/upstream"
)

// ErrMissingParameter is returned when a required query parameter is absent.
var ErrMissingParameter = errors.New("missing required parameter")

// StatusClientClosedRequest is recorded when the client disconnects before a
// response could be written.
const StatusClientClosedRequest = 499

// respondError translates err into a status code, logs it once and writes a
// bare status response. Internal detail never reaches the client.
func respondError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, op string, err error, fields ...zap.Field) {
	fields = append(fields, zap.String("op", op), zap.Error(err))

	switch {
	case errors.Is(err, ErrMissingParameter):
		logger.Info("bad request", fields...)
		writeStatus(w, http.StatusBadRequest)
	case errors.Is(err, aggregation.ErrDanglingReference):
		logger.Warn("policy references unknown user", fields...)
		writeStatus(w, http.StatusNotFound)
	case errors.Is(err, upstream.ErrNotFound):
		logger.Info("not found", fields...)
		writeStatus(w, http.StatusNotFound)
	case errors.Is(err, context.Canceled) && r.Context().Err() != nil:
		// Nobody is left to read a body; the status only feeds the access log.
		logger.Info("request cancelled", fields...)
		w.WriteHeader(StatusClientClosedRequest)
	default:
		logger.Error("internal error", fields...)
		writeStatus(w, http.StatusInternalServerError)
	}
}

func writeStatus(w http.ResponseWriter, status int) {
	http.Error(w, http.StatusText(status), status)
}

package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/alphabill-org/guild/logger"
	"github.com/alphabill-org/guild/partition"
	"github.com/alphabill-org/guild/state"
	"github.com/alphabill-org/guild/types"
)

// writeCBORResponse replies to the request with the given response and HTTP code.
func writeCBORResponse(w http.ResponseWriter, response any, statusCode int, log *slog.Logger) {
	w.Header().Set(headerContentType, applicationCBOR)
	w.WriteHeader(statusCode)
	if err := types.Cbor.Encode(w, response); err != nil {
		log.Warn("failed to write CBOR response", logger.Error(err))
	}
}

// writeCBORError replies to the request with the specified error message and HTTP code.
// It does not otherwise end the request; the caller should ensure no further
// writes are done to w.
func writeCBORError(w http.ResponseWriter, e error, code int, log *slog.Logger) {
	w.Header().Set(headerContentType, applicationCBOR)
	w.WriteHeader(code)
	if err := types.Cbor.Encode(w, struct {
		_   struct{} `cbor:",toarray"`
		Err string
	}{
		Err: fmt.Sprintf("%v", e),
	}); err != nil {
		log.Warn("failed to write CBOR error response", logger.Error(err))
	}
}

func writeJSONResponse(w http.ResponseWriter, response any, statusCode int, log *slog.Logger) {
	w.Header().Set(headerContentType, applicationJson)
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Warn("failed to write JSON response", logger.Error(err))
	}
}

type errorResponse struct {
	Message string `json:"message"`
}

func writeJSONError(w http.ResponseWriter, e error, code int, log *slog.Logger) {
	writeJSONResponse(w, errorResponse{Message: e.Error()}, code, log)
}

// statusCodeOf returns the HTTP status for the error of the query.
func statusCodeOf(err error) int {
	switch {
	case errors.Is(err, state.ErrUnitNotFound),
		errors.Is(err, partition.ErrBlockNotFound),
		errors.Is(err, partition.ErrIndexNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

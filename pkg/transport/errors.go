package transport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/minichat/relay/pkg/api"
)

// HTTPStatusFromError maps an error kind to the corresponding HTTP status
// code. Invalid input is the caller's fault (422). A missing credential or
// an internal fault is the operator's (500). A timeout gateways out as 504.
// Everything else that went wrong upstream — auth rejection, connection
// failure, server errors, malformed bodies, exhausted retries — is a bad
// gateway (502).
func HTTPStatusFromError(err *api.Error) int {
	switch err.Kind {
	case api.KindInvalidInput:
		return http.StatusUnprocessableEntity
	case api.KindConfig, api.KindInternal:
		return http.StatusInternalServerError
	case api.KindTimeout:
		return http.StatusGatewayTimeout
	case api.KindAuth, api.KindConnection, api.KindUpstream,
		api.KindMalformed, api.KindExhausted:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes a JSON error response using the ErrorResponse wrapper
// from pkg/api, deriving the HTTP status from the error kind.
func WriteError(w http.ResponseWriter, apiErr *api.Error) {
	WriteJSON(w, HTTPStatusFromError(apiErr), api.ErrorResponse{Error: apiErr})
}

// AsAPIError coerces any error into a classified *api.Error, wrapping
// foreign errors as internal.
func AsAPIError(err error) *api.Error {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return api.NewInternalError(err.Error())
}

// WriteJSON writes v as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

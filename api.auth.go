package main

import (
	"crypto/subtle"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

// APIKeyHeader is the request header carrying the shared secret.
const APIKeyHeader = "X-API-Key"

// ErrMsgInvalidAPIKey is sent on every rejected gated call.
const ErrMsgInvalidAPIKey = "invalid or missing api key"

// APIKeyGate compares a credential against the configured shared secret.
type APIKeyGate struct {
	secret []byte
}

func NewAPIKeyGate(secret string) *APIKeyGate {
	return &APIKeyGate{secret: []byte(secret)}
}

// Authorize grants access only on an exact match. An empty secret never
// matches so that a misconfigured gate stays closed.
func (g *APIKeyGate) Authorize(credential string) bool {
	if len(g.secret) == 0 || credential == "" {
		return false
	}
	return subtle.ConstantTimeCompare(g.secret, []byte(credential)) == 1
}

// APIKeyMiddleware rejects with 401 the requests without the expected api key.
// It runs before any payload decoding so a rejected call never reaches the store.
func (api *APIHandler) APIKeyMiddleware(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if api.gate.Authorize(r.Header.Get(APIKeyHeader)) {
			next(w, r, ps)
			return
		}
		requestID := GetValueFromContext(r.Context(), RequestIDContextKey)
		logger := api.GetLoggerFromContext(r.Context())
		logger.Warn("unauthorized request", zap.String("request.method", r.Method), zap.String("request.path", r.URL.Path))
		errResp := NewAPIError(requestID, http.StatusUnauthorized, ErrMsgInvalidAPIKey, EmptyData)
		if err := WriteErrorResponse(r.Context(), w, errResp); err != nil {
			logger.Error("failed to send error response", zap.Error(err))
		}
	}
}

package handler

import (
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/pos-checkout/internal/domain/auth"
)

// APIKeyHeader carries the terminal key.
const APIKeyHeader = "api_key"

// Security authenticates terminals by HMAC-SHA256 hashed API keys.
type Security struct {
	apikeys auth.Repository
	pepper  []byte
}

// NewSecurity creates a Security with the given API key repository and HMAC
// pepper.
func NewSecurity(apikeys auth.Repository, pepper []byte) *Security {
	return &Security{
		apikeys: apikeys,
		pepper:  pepper,
	}
}

// Middleware rejects requests without a known key and attaches the key's
// identity to the request context.
func (s *Security) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(APIKeyHeader)
		if key == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", nil)
			return
		}

		ctx := r.Context()
		hexHash := auth.HashKey(s.pepper, key)
		info, err := s.apikeys.FindByHash(ctx, hexHash)
		if err != nil {
			zctx.From(ctx).Debug("API key rejected", zap.Error(err))
			writeError(w, http.StatusUnauthorized, "unauthorized", nil)
			return
		}

		// The stored hash must match what we computed even if the lookup
		// returned a row.
		computed, _ := hex.DecodeString(hexHash)
		stored, err := hex.DecodeString(info.KeyHash)
		if err != nil || subtle.ConstantTimeCompare(computed, stored) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized", nil)
			return
		}

		ctx = zctx.With(auth.With(ctx, info), zap.String("cashier", info.Name))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

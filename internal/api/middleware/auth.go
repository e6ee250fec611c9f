package middleware

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/Harshitk-cp/swarm/internal/domain"
)

type contextKey string

const peerContextKey contextKey = "peer"

// PeerFromContext returns the peer authenticated by PeerAuth, if any.
func PeerFromContext(ctx context.Context) *domain.Peer {
	p, _ := ctx.Value(peerContextKey).(*domain.Peer)
	return p
}

// Authenticator resolves an API key hash to the peer that owns it.
type Authenticator interface {
	Authenticate(ctx context.Context, apiKeyHash string) (*domain.Peer, error)
}

func PeerAuth(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey, ok := bearerToken(w, r)
			if !ok {
				return
			}

			peer, err := auth.Authenticate(r.Context(), hashAPIKey(apiKey))
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid API key")
				return
			}

			setRequestNodeKey(r.Context(), peer.NodeKey)
			ctx := context.WithValue(r.Context(), peerContextKey, peer)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminAuth guards operator routes with a single shared key. With no key
// configured the routes are closed.
func AdminAuth(adminKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if adminKey == "" {
				writeError(w, http.StatusForbidden, "admin API is disabled")
				return
			}
			apiKey, ok := bearerToken(w, r)
			if !ok {
				return
			}
			if subtle.ConstantTimeCompare([]byte(apiKey), []byte(adminKey)) != 1 {
				writeError(w, http.StatusUnauthorized, "invalid admin key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(w http.ResponseWriter, r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		writeError(w, http.StatusUnauthorized, "missing authorization header")
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		writeError(w, http.StatusUnauthorized, "invalid authorization header format")
		return "", false
	}
	return parts[1], true
}

func hashAPIKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}

// HashAPIKey is exported for use when registering peers.
func HashAPIKey(key string) string {
	return hashAPIKey(key)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

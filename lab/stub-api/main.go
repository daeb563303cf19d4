// Command stub-api is a toy backend for exercising the aegis client by hand:
// it issues JWT token bundles, honors refresh, and exposes endpoints with
// scripted failure behavior (401-once, flaky 5xx) so retry and
// refresh-and-retry paths can be watched end to end.
package main

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const defaultTokenTTL = 15 * time.Minute

type server struct {
	signingKey []byte

	mu            sync.Mutex
	refreshTokens map[string]string // refresh token -> user id
	expireOnce    map[string]bool   // remote addr -> already failed
	flakyCount    int
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
	UserID       string `json:"user_id"`
}

func main() {
	port := getenv("PORT", "9000")
	s := &server{
		signingKey:    []byte(getenv("JWT_SIGNING_KEY", "dev-secret-key-change-in-production")),
		refreshTokens: make(map[string]string),
		expireOnce:    make(map[string]bool),
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/api/auth/login", s.handleLogin)
	r.Post("/api/auth/refresh", s.handleRefresh)
	r.Get("/api/profile", s.requireAuth(s.handleProfile))
	r.Get("/api/expire-once", s.requireAuth(s.handleExpireOnce))
	r.Get("/api/flaky", s.handleFlaky)
	r.Post("/api/echo", s.handleEcho)

	addr := ":" + port
	log.Printf("stub api listening on %s", addr)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Fatal(srv.ListenAndServe())
}

func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "username and password required"})
		return
	}
	s.issueBundle(w, "user-"+req.Username)
}

func (s *server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "refresh_token required"})
		return
	}

	s.mu.Lock()
	userID, ok := s.refreshTokens[req.RefreshToken]
	if ok {
		// Rotation: each refresh token is single use.
		delete(s.refreshTokens, req.RefreshToken)
	}
	s.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unknown refresh token"})
		return
	}
	s.issueBundle(w, userID)
}

func (s *server) issueBundle(w http.ResponseWriter, userID string) {
	expiresAt := time.Now().Add(defaultTokenTTL)
	claims := jwt.MapClaims{
		"sub": userID,
		"iat": time.Now().Unix(),
		"exp": expiresAt.Unix(),
	}
	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not sign token"})
		return
	}

	refreshToken := uuid.NewString()
	s.mu.Lock()
	s.refreshTokens[refreshToken] = userID
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt.UnixMilli(),
		UserID:       userID,
	})
}

// requireAuth verifies the bearer JWT before calling next.
func (s *server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if raw == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing bearer token"})
			return
		}
		_, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
			return s.signingKey, nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "token rejected"})
			return
		}
		next(w, r)
	}
}

func (s *server) handleProfile(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"id":      "profile-1",
		"name":    "Stub User",
		"fetched": time.Now().Format(time.RFC3339),
	})
}

// handleExpireOnce returns 401 on the first call per client, then succeeds.
// Lets the client's refresh-and-retry path be observed.
func (s *server) handleExpireOnce(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	failed := s.expireOnce[r.RemoteAddr]
	s.expireOnce[r.RemoteAddr] = true
	s.mu.Unlock()

	if !failed {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "scripted 401"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "second attempt accepted"})
}

// handleFlaky fails two out of every three calls with 503.
func (s *server) handleFlaky(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	s.flakyCount++
	n := s.flakyCount
	s.mu.Unlock()

	if n%3 != 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "scripted flakiness"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "lucky call"})
}

func (s *server) handleEcho(w http.ResponseWriter, r *http.Request) {
	var payload any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"echo": payload})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body) //nolint:errcheck // toy server
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

package httpapi

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/MrEthical07/credcore"
	"github.com/MrEthical07/credcore/middleware"
	"github.com/rs/zerolog/hlog"
)

const maxBodyBytes = 64 << 10

type handler struct {
	auth         Authenticator
	cookieSecure bool
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

type sessionResponse struct {
	AccessToken string       `json:"accessToken"`
	ExpiresAt   time.Time    `json:"expiresAt"`
	User        userResponse `json:"user"`
}

type meResponse struct {
	userResponse
	ExpiresAt time.Time `json:"expiresAt"`
}

type messageResponse struct {
	Message string `json:"message"`
}

const (
	msgInvalidLogin   = "Invalid username or password"
	msgNoRefreshToken = "Refresh token not found"
	msgInvalidRefresh = "Invalid refresh token"
	msgLoggedOut      = "Logged out successfully"
	msgBadRequest     = "Request body is required"
	msgUnavailable    = "Service temporarily unavailable"
	msgInternal       = "Internal server error"
)

func toUserResponse(id credcore.Identity) userResponse {
	return userResponse{ID: id.ID, Username: id.Username, Email: id.Email, Role: id.Role}
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: msgBadRequest})
		return
	}

	sess, err := h.auth.Login(r.Context(), req.Username, req.Password)
	req.Password = ""
	if err != nil {
		switch {
		case errors.Is(err, credcore.ErrInvalidCredentials):
			writeJSON(w, http.StatusUnauthorized, messageResponse{Message: msgInvalidLogin})
		case errors.Is(err, credcore.ErrStorageUnavailable):
			hlog.FromRequest(r).Error().Err(err).Msg("login failed: backend unavailable")
			writeJSON(w, http.StatusServiceUnavailable, messageResponse{Message: msgUnavailable})
		default:
			hlog.FromRequest(r).Error().Err(err).Msg("login failed")
			writeJSON(w, http.StatusInternalServerError, messageResponse{Message: msgInternal})
		}
		return
	}

	h.writeSession(w, r, sess)
}

func (h *handler) refresh(w http.ResponseWriter, r *http.Request) {
	token := readRefreshCookie(r)
	if token == "" {
		h.clearRefreshCookie(w, r)
		writeJSON(w, http.StatusUnauthorized, messageResponse{Message: msgNoRefreshToken})
		return
	}

	sess, err := h.auth.Refresh(r.Context(), token)
	if err != nil {
		log := hlog.FromRequest(r)
		switch {
		case errors.Is(err, credcore.ErrTokenReuseDetected):
			log.Warn().Err(err).Msg("refresh token reuse detected")
		case errors.Is(err, credcore.ErrTokenInvalid), errors.Is(err, credcore.ErrTokenExpired):
			log.Debug().Err(err).Msg("refresh rejected")
		case errors.Is(err, credcore.ErrStorageUnavailable):
			log.Error().Err(err).Msg("refresh failed: backend unavailable")
			writeJSON(w, http.StatusServiceUnavailable, messageResponse{Message: msgUnavailable})
			return
		default:
			log.Error().Err(err).Msg("refresh failed")
			writeJSON(w, http.StatusInternalServerError, messageResponse{Message: msgInternal})
			return
		}
		h.clearRefreshCookie(w, r)
		writeJSON(w, http.StatusUnauthorized, messageResponse{Message: msgInvalidRefresh})
		return
	}

	h.writeSession(w, r, sess)
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	if token := readRefreshCookie(r); token != "" {
		if err := h.auth.Logout(r.Context(), token); err != nil {
			hlog.FromRequest(r).Error().Err(err).Msg("logout failed")
		}
	}
	h.clearRefreshCookie(w, r)
	writeJSON(w, http.StatusOK, messageResponse{Message: msgLoggedOut})
}

func (h *handler) me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, messageResponse{Message: "unauthorized"})
		return
	}
	resp := meResponse{userResponse: toUserResponse(claims.Identity())}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) writeSession(w http.ResponseWriter, r *http.Request, sess *credcore.Session) {
	h.setRefreshCookie(w, r, sess.RefreshToken, sess.RefreshExpiresAt)
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, sessionResponse{
		AccessToken: sess.AccessToken,
		ExpiresAt:   sess.AccessExpiresAt.UTC(),
		User:        toUserResponse(sess.User),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func clientIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

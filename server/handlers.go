package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	apperrors "github.com/bookinghq/go-token-service/internal/errors"
	"github.com/bookinghq/go-token-service/token/lockout"
	"github.com/bookinghq/go-token-service/token/revocation"
)

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// RefreshHandler exchanges a refresh token for a new access+refresh pair.
// Every failure mode the client can see collapses to a generic
// invalid-session response - theft detection internals are never revealed,
// only logged server-side by the rotation manager.
func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req refreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
			writeError(w, http.StatusBadRequest, "invalid_request", "Missing refresh_token")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), s.config.GetStoreTimeout())
		defer cancel()

		result, err := s.tokens.Rotate(ctx, req.RefreshToken)
		if err != nil {
			switch {
			case apperrors.Is(err, apperrors.ErrPersistence):
				s.logger.Error().Err(err).Msg("rotation store failure")
				writeError(w, http.StatusServiceUnavailable, "unavailable", "Service temporarily unavailable")
			case apperrors.Is(err, apperrors.ErrTokenExpired):
				writeError(w, http.StatusUnauthorized, "session_expired", "Session expired")
			case apperrors.Is(err, apperrors.ErrTokenNotFound):
				// A valid signature with no stored record means the store
				// lost state or was reset; operators need to see that apart
				// from routine invalid-token noise.
				s.logger.Warn().Err(err).Msg("refresh token has no stored record")
				writeError(w, http.StatusUnauthorized, "invalid_session", "Invalid session, please log in again")
			default:
				// Reused, invalid, malformed: all the same to the client.
				writeError(w, http.StatusUnauthorized, "invalid_session", "Invalid session, please log in again")
			}
			return
		}

		accessToken, err := s.tokens.IssueAccessToken(result.Presented.Claims())
		if err != nil {
			s.logger.Error().Err(err).Msg("failed to mint access token after rotation")
			writeError(w, http.StatusInternalServerError, "internal", "Internal error")
			return
		}

		writeJSON(w, http.StatusOK, tokenResponse{
			AccessToken:  accessToken,
			RefreshToken: result.RefreshToken,
			TokenType:    "bearer",
			ExpiresIn:    int(s.config.GetAccessTokenExpiry().Seconds()),
		})
	}
}

// LogoutHandler blacklists the presented access token and revokes every
// refresh token the subject owns, across all families. A failure on either
// write surfaces as an error - swallowing it would leave a token valid that
// the user believes is revoked.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		verified, ok := verifiedFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "Not authenticated")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), s.config.GetStoreTimeout())
		defer cancel()

		if err := s.stores.Revocation.Blacklist(ctx, verified.ID, verified.Subject, revocation.ReasonLogout, verified.ExpiresAt); err != nil {
			s.logger.Error().Err(err).Str("subject", verified.Subject).Msg("failed to blacklist access token at logout")
			writeError(w, http.StatusBadGateway, "logout_failed", "Could not complete logout, please retry")
			return
		}
		// Claim timestamps carry second precision, so the cutoff aligns to
		// the same grain; a token minted within the logout's second falls on
		// the revoked side.
		cutoff := s.nowFunc().Truncate(time.Second)
		if err := s.stores.Revocation.BlacklistAllForOwner(ctx, verified.Subject, cutoff); err != nil {
			s.logger.Error().Err(err).Str("subject", verified.Subject).Msg("failed to set owner revocation cutoff at logout")
			writeError(w, http.StatusBadGateway, "logout_failed", "Could not complete logout, please retry")
			return
		}
		if err := s.stores.Rotation.RevokeAllForOwner(ctx, verified.Subject); err != nil {
			s.logger.Error().Err(err).Str("subject", verified.Subject).Msg("failed to revoke refresh tokens at logout")
			writeError(w, http.StatusBadGateway, "logout_failed", "Could not complete logout, please retry")
			return
		}

		s.logger.Info().Str("subject", verified.Subject).Msg("logged out")
		w.WriteHeader(http.StatusNoContent)
	}
}

// MeHandler returns the principal mapped from the verified claims.
func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		verified, ok := verifiedFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "Not authenticated")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"subject": verified.Subject,
			"type":    string(verified.Type),
			"phone":   verified.Phone,
			"email":   verified.Email,
		})
	}
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

type lockoutRequest struct {
	Identity string `json:"identity"`
	Purpose  string `json:"purpose"`
}

type lockoutStatusResponse struct {
	Locked            bool   `json:"locked"`
	LockedUntil       string `json:"locked_until,omitempty"`
	RemainingAttempts int    `json:"remaining_attempts"`
	Message           string `json:"message,omitempty"`
}

// LockoutStatusHandler reports whether an identity+purpose pair is locked.
func (s *Server) LockoutStatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := r.URL.Query().Get("identity")
		purpose := r.URL.Query().Get("purpose")
		if identity == "" || purpose == "" {
			writeError(w, http.StatusBadRequest, "invalid_request", "identity and purpose are required")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), s.config.GetStoreTimeout())
		defer cancel()

		status, err := s.lockout.IsLocked(ctx, identity, purpose)
		if err != nil {
			s.logger.Error().Err(err).Msg("lockout store failure")
			writeError(w, http.StatusServiceUnavailable, "unavailable", "Service temporarily unavailable")
			return
		}
		writeJSON(w, http.StatusOK, statusResponse(status))
	}
}

// LockoutFailureHandler records a failed credential check. Repeated lockouts
// for the same pair are an attack signal, logged distinctly.
func (s *Server) LockoutFailureHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req lockoutRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Identity == "" || req.Purpose == "" {
			writeError(w, http.StatusBadRequest, "invalid_request", "identity and purpose are required")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), s.config.GetStoreTimeout())
		defer cancel()

		status, err := s.lockout.RecordFailure(ctx, req.Identity, req.Purpose)
		if err != nil {
			s.logger.Error().Err(err).Msg("lockout store failure")
			writeError(w, http.StatusServiceUnavailable, "unavailable", "Service temporarily unavailable")
			return
		}
		if status.Locked {
			s.logger.Warn().
				Str("security_event", "lockout").
				Str("purpose", req.Purpose).
				Time("until", status.Until).
				Msg("identity locked out after repeated failures")
		}
		writeJSON(w, http.StatusOK, statusResponse(status))
	}
}

// LockoutResetHandler clears the failure record after a successful
// verification.
func (s *Server) LockoutResetHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req lockoutRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Identity == "" || req.Purpose == "" {
			writeError(w, http.StatusBadRequest, "invalid_request", "identity and purpose are required")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), s.config.GetStoreTimeout())
		defer cancel()

		if err := s.lockout.Reset(ctx, req.Identity, req.Purpose); err != nil {
			s.logger.Error().Err(err).Msg("lockout store failure")
			writeError(w, http.StatusServiceUnavailable, "unavailable", "Service temporarily unavailable")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func statusResponse(status lockout.Status) lockoutStatusResponse {
	resp := lockoutStatusResponse{
		Locked:            status.Locked,
		RemainingAttempts: status.RemainingAttempts,
	}
	if status.Locked {
		resp.LockedUntil = status.Until.UTC().Format(time.RFC3339)
		minutes := int(time.Until(status.Until).Minutes()) + 1
		resp.Message = fmt.Sprintf("Too many attempts, try again in %d minutes", minutes)
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, description string) {
	writeJSON(w, status, map[string]string{
		"error":             code,
		"error_description": description,
	})
}

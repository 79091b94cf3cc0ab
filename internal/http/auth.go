package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/tfsgroup/siteportal/internal/auth"
	"github.com/tfsgroup/siteportal/internal/crypto"
	"github.com/tfsgroup/siteportal/internal/db"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	UserID       string `json:"user_id"`
	Role         string `json:"role"`
	FullName     string `json:"full_name"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}

	user, err := s.store.GetUserByEmail(r.Context(), email)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid_credentials")
		return
	}
	if !user.Active {
		writeError(w, http.StatusForbidden, "account_disabled")
		return
	}
	if err := crypto.CheckPassword(user.PasswordHash, req.Password); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid_credentials")
		return
	}

	s.issueTokens(w, r, user.ID)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil || req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	session, err := s.store.GetRefreshSession(r.Context(), crypto.HashToken(req.RefreshToken))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid_refresh_token")
		return
	}
	now := time.Now().UTC()
	if session.RevokedAt != nil || now.After(session.ExpiresAt) {
		writeError(w, http.StatusUnauthorized, "invalid_refresh_token")
		return
	}
	user, err := s.store.GetUserByID(r.Context(), session.UserID)
	if err != nil || !user.Active {
		writeError(w, http.StatusUnauthorized, "invalid_refresh_token")
		return
	}

	// Rotation: the presented token is dead from here on.
	if err := s.store.RevokeRefreshSession(r.Context(), session.ID, now); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	s.issueTokens(w, r, user.ID)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil || req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	session, err := s.store.GetRefreshSession(r.Context(), crypto.HashToken(req.RefreshToken))
	if err != nil {
		// Logging out an unknown token is not an error.
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err := s.store.RevokeRefreshSession(r.Context(), session.ID, time.Now().UTC()); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) issueTokens(w http.ResponseWriter, r *http.Request, userID string) {
	role, err := s.store.GetRole(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	profile, err := s.store.GetProfileByUserID(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	access, err := auth.NewAccessToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, s.cfg.AccessTokenTTL, auth.Claims{
		UserID:   userID,
		Role:     role.Role,
		FullName: profile.FullName,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	refresh, err := crypto.NewRefreshToken()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	userAgent := headerPtr(r.Header.Get("User-Agent"))
	remoteAddr := headerPtr(r.RemoteAddr)
	expiresAt := time.Now().UTC().Add(s.cfg.RefreshTTL)
	if err := s.store.CreateRefreshSession(r.Context(), userID, crypto.HashToken(refresh), expiresAt, userAgent, remoteAddr); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.cfg.AccessTokenTTL.Seconds()),
		UserID:       userID,
		Role:         role.Role,
		FullName:     profile.FullName,
	})
}

type meResponse struct {
	UserID   string  `json:"user_id"`
	Email    string  `json:"email"`
	FullName string  `json:"full_name"`
	Phone    *string `json:"phone,omitempty"`
	Role     string  `json:"role"`
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	user, err := s.store.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, http.StatusNotFound, "user_not_found")
		return
	}
	profile, err := s.store.GetProfileByUserID(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, meResponse{
		UserID:   user.ID,
		Email:    user.Email,
		FullName: profile.FullName,
		Phone:    profile.Phone,
		Role:     claims.Role,
	})
}

// User administration

type createUserRequest struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	FullName string  `json:"full_name"`
	Phone    *string `json:"phone"`
	Role     string  `json:"role"`
}

type userResponse struct {
	UserID   string  `json:"user_id"`
	Email    string  `json:"email"`
	FullName string  `json:"full_name"`
	Phone    *string `json:"phone,omitempty"`
	Role     string  `json:"role"`
	Active   bool    `json:"active"`
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" || strings.TrimSpace(req.FullName) == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}
	if !validRole(req.Role) {
		writeError(w, http.StatusBadRequest, "invalid_role")
		return
	}

	hash, err := crypto.HashPassword(req.Password, s.cfg.BcryptCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	account, err := s.store.CreateUserAccount(r.Context(), email, hash, strings.TrimSpace(req.FullName), req.Phone, req.Role)
	if err != nil {
		if db.IsUniqueViolation(err) {
			writeError(w, http.StatusConflict, "email_exists")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	writeJSON(w, http.StatusCreated, userResponse{
		UserID:   account.User.ID,
		Email:    account.User.Email,
		FullName: account.Profile.FullName,
		Phone:    account.Profile.Phone,
		Role:     account.Role,
		Active:   account.User.Active,
	})
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.ListUsers(r.Context(), parseLimit(r, 200))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	resp := make([]userResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, userResponse{
			UserID:   u.UserID,
			Email:    u.Email,
			FullName: u.FullName,
			Phone:    u.Phone,
			Role:     u.Role,
			Active:   u.Active,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type updateUserRequest struct {
	Email    *string `json:"email"`
	Password *string `json:"password"`
	FullName *string `json:"full_name"`
	Phone    *string `json:"phone"`
	Role     *string `json:"role"`
	Active   *bool   `json:"active"`
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	userID := uriParamUUID(w, r, "userId")
	if userID == "" {
		return
	}
	var req updateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.Role != nil && !validRole(*req.Role) {
		writeError(w, http.StatusBadRequest, "invalid_role")
		return
	}
	if _, err := s.store.GetUserByID(r.Context(), userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "user_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	patch := db.UserPatch{
		FullName: req.FullName,
		Phone:    req.Phone,
		Role:     req.Role,
		Active:   req.Active,
	}
	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		patch.Email = &email
	}
	if req.Password != nil {
		hash, err := crypto.HashPassword(*req.Password, s.cfg.BcryptCost)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "server_error")
			return
		}
		patch.PasswordHash = &hash
	}

	if err := s.store.UpdateUserAccount(r.Context(), userID, patch); err != nil {
		if db.IsUniqueViolation(err) {
			writeError(w, http.StatusConflict, "email_exists")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	// Deactivation cuts existing refresh sessions.
	if req.Active != nil && !*req.Active {
		if err := s.store.RevokeRefreshSessionsByUser(r.Context(), userID, time.Now().UTC()); err != nil {
			writeError(w, http.StatusInternalServerError, "server_error")
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func validRole(role string) bool {
	switch role {
	case "driver", "admin", "manager", "contractor":
		return true
	default:
		return false
	}
}

func headerPtr(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

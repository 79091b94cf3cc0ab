package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/tfsgroup/siteportal/internal/auth"
	"github.com/tfsgroup/siteportal/internal/config"
	"github.com/tfsgroup/siteportal/internal/db"
	"github.com/tfsgroup/siteportal/internal/notify"
)

type Server struct {
	cfg      config.Config
	store    *db.Store
	redis    *redis.Client
	notifier *notify.Notifier
}

func NewServer(cfg config.Config, store *db.Store, redisClient *redis.Client, notifier *notify.Notifier) *Server {
	return &Server{
		cfg:      cfg,
		store:    store,
		redis:    redisClient,
		notifier: notifier,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	// Deep links scanned from site QR codes. Auth is optional here:
	// an anonymous scan redirects to the login page with the original
	// link preserved.
	r.Get("/project-sign", s.handleProjectDeepLink)
	r.Get("/document-sign", s.handleDocumentDeepLink)

	r.Post("/v1/auth/login", s.handleLogin)
	r.Post("/v1/auth/refresh", s.handleRefresh)
	r.Post("/v1/auth/logout", s.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Get("/v1/me", s.handleMe)
		r.Get("/v1/me/documents", s.handleMyDocuments)
		r.Get("/v1/me/signatures", s.handleMySignatures)
		r.Get("/v1/me/payslips", s.handleMyPayslips)
		r.Get("/v1/me/training", s.handleMyTraining)

		r.Post("/v1/projects/{projectId}/sign-on", s.handleProjectSignOn)
		r.Post("/v1/documents/{documentId}/signature", s.handleDocumentSignature)

		r.Post("/v1/runsheets", s.handleCreateRunsheet)
		r.Get("/v1/runsheets", s.handleListRunsheets)
		r.Get("/v1/runsheets/{runsheetId}", s.handleGetRunsheet)
		r.Post("/v1/runsheets/{runsheetId}/finish", s.handleFinishRunsheet)
		r.Post("/v1/runsheets/{runsheetId}/dockets", s.handleCreateDocket)
		r.Get("/v1/runsheets/{runsheetId}/dockets", s.handleListDockets)

		r.Get("/v1/notifications", s.handleListNotifications)
		r.Post("/v1/notifications/{notificationId}/read", s.handleMarkNotificationRead)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware, s.requireManagement)

		r.Post("/v1/users", s.handleCreateUser)
		r.Get("/v1/users", s.handleListUsers)
		r.Patch("/v1/users/{userId}", s.handleUpdateUser)
		r.Post("/v1/users/{userId}/payslips", s.handleCreatePayslip)
		r.Get("/v1/users/{userId}/payslips", s.handleListPayslips)
		r.Post("/v1/users/{userId}/training", s.handleCreateTraining)
		r.Get("/v1/users/{userId}/training", s.handleListTraining)

		r.Get("/v1/clients", s.handleListClients)
		r.Post("/v1/clients", s.handleCreateClient)
		r.Put("/v1/clients/{clientId}", s.handleUpdateClient)

		r.Get("/v1/projects", s.handleListProjects)
		r.Post("/v1/projects", s.handleCreateProject)
		r.Get("/v1/projects/{projectId}", s.handleGetProject)
		r.Put("/v1/projects/{projectId}", s.handleUpdateProject)
		r.Delete("/v1/projects/{projectId}", s.handleDeactivateProject)
		r.Get("/v1/projects/{projectId}/qr.png", s.handleProjectQR)
		r.Get("/v1/projects/{projectId}/enrollments", s.handleListEnrollments)
		r.Post("/v1/enrollments/{enrollmentId}/status", s.handleUpdateEnrollmentStatus)
		r.Get("/v1/projects/{projectId}/signon-report.pdf", s.handleProjectSignOnReport)

		r.Get("/v1/projects/{projectId}/documents", s.handleListDocuments)
		r.Post("/v1/projects/{projectId}/documents", s.handleCreateDocument)
		r.Get("/v1/documents/{documentId}", s.handleGetDocument)
		r.Put("/v1/documents/{documentId}", s.handleUpdateDocument)
		r.Delete("/v1/documents/{documentId}", s.handleDeactivateDocument)
		r.Get("/v1/documents/{documentId}/qr.png", s.handleDocumentQR)
		r.Post("/v1/documents/{documentId}/assignments", s.handleCreateAssignment)
		r.Get("/v1/documents/{documentId}/signon-report.pdf", s.handleDocumentSignOnReport)
		r.Get("/v1/documents/{documentId}/sign-sheet.pdf", s.handleDocumentSignSheet)
	})

	return r
}

// Auth

type claimsKey struct{}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing_token")
			return
		}
		claims, err := auth.ParseToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requireManagement(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFromContext(r.Context())
		if claims == nil {
			writeError(w, http.StatusUnauthorized, "missing_token")
			return
		}
		if !claims.Management() {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func claimsFromContext(ctx context.Context) *auth.Claims {
	value := ctx.Value(claimsKey{})
	claims, _ := value.(*auth.Claims)
	return claims
}

// Utilities

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

// uriParamUUID returns the validated path parameter, or writes a 400
// and returns "" when it is missing or not a UUID.
func uriParamUUID(w http.ResponseWriter, r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if raw == "" {
		writeError(w, http.StatusBadRequest, "missing_"+paramErrName(name))
		return ""
	}
	if _, err := uuid.Parse(raw); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+paramErrName(name))
		return ""
	}
	return raw
}

func paramErrName(name string) string {
	switch name {
	case "projectId":
		return "project_id"
	case "documentId":
		return "document_id"
	case "userId":
		return "user_id"
	case "clientId":
		return "client_id"
	case "runsheetId":
		return "runsheet_id"
	case "enrollmentId":
		return "enrollment_id"
	case "notificationId":
		return "notification_id"
	default:
		return "id"
	}
}

const maxPageLimit = 1000

func parseLimit(r *http.Request, fallback int32) int32 {
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= maxPageLimit {
			return int32(parsed)
		}
	}
	return fallback
}

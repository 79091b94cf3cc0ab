package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tfsgroup/siteportal/internal/model"
	"github.com/tfsgroup/siteportal/internal/qr"
)

// Clients

type clientRequest struct {
	Name          string  `json:"name"`
	ContactPerson *string `json:"contact_person"`
	ContactEmail  *string `json:"contact_email"`
	ContactPhone  *string `json:"contact_phone"`
	Address       *string `json:"address"`
}

type clientResponse struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	ContactPerson *string `json:"contact_person,omitempty"`
	ContactEmail  *string `json:"contact_email,omitempty"`
	ContactPhone  *string `json:"contact_phone,omitempty"`
	Address       *string `json:"address,omitempty"`
}

func mapClient(c model.Client) clientResponse {
	return clientResponse{
		ID:            c.ID,
		Name:          c.Name,
		ContactPerson: c.ContactPerson,
		ContactEmail:  c.ContactEmail,
		ContactPhone:  c.ContactPhone,
		Address:       c.Address,
	}
}

func (s *Server) handleListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := s.store.ListClients(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	resp := make([]clientResponse, 0, len(clients))
	for _, c := range clients {
		resp = append(resp, mapClient(c))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateClient(w http.ResponseWriter, r *http.Request) {
	var req clientRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "missing_name")
		return
	}
	client, err := s.store.CreateClient(r.Context(), model.Client{
		Name:          strings.TrimSpace(req.Name),
		ContactPerson: req.ContactPerson,
		ContactEmail:  req.ContactEmail,
		ContactPhone:  req.ContactPhone,
		Address:       req.Address,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusCreated, mapClient(client))
}

func (s *Server) handleUpdateClient(w http.ResponseWriter, r *http.Request) {
	clientID := uriParamUUID(w, r, "clientId")
	if clientID == "" {
		return
	}
	var req clientRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "missing_name")
		return
	}
	err := s.store.UpdateClient(r.Context(), model.Client{
		ID:            clientID,
		Name:          strings.TrimSpace(req.Name),
		ContactPerson: req.ContactPerson,
		ContactEmail:  req.ContactEmail,
		ContactPhone:  req.ContactPhone,
		Address:       req.Address,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "client_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Projects

type projectRequest struct {
	Name          string  `json:"name"`
	Address       *string `json:"address"`
	ClientID      *string `json:"client_id"`
	ProjectNumber *string `json:"project_number"`
}

type projectResponse struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Address       *string `json:"address,omitempty"`
	ClientID      *string `json:"client_id,omitempty"`
	ClientName    *string `json:"client_name,omitempty"`
	ProjectNumber *string `json:"project_number,omitempty"`
	Active        bool    `json:"active"`
	CreatedAt     int64   `json:"created_at"`
}

func mapProject(p model.Project) projectResponse {
	return projectResponse{
		ID:            p.ID,
		Name:          p.Name,
		Address:       p.Address,
		ClientID:      p.ClientID,
		ClientName:    p.ClientName,
		ProjectNumber: p.ProjectNumber,
		Active:        p.Active,
		CreatedAt:     p.CreatedAt.Unix(),
	}
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("include_inactive") != "true"
	projects, err := s.store.ListProjects(r.Context(), activeOnly)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	resp := make([]projectResponse, 0, len(projects))
	for _, p := range projects {
		resp = append(resp, mapProject(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	projectID := uriParamUUID(w, r, "projectId")
	if projectID == "" {
		return
	}
	project, err := s.store.GetProject(r.Context(), projectID)
	if err != nil {
		writeError(w, http.StatusNotFound, "project_not_found")
		return
	}
	writeJSON(w, http.StatusOK, mapProject(project))
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "missing_name")
		return
	}
	if req.ClientID != nil {
		if _, err := uuid.Parse(*req.ClientID); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_client_id")
			return
		}
	}
	project, err := s.store.CreateProject(r.Context(), model.Project{
		Name:          strings.TrimSpace(req.Name),
		Address:       req.Address,
		ClientID:      req.ClientID,
		ProjectNumber: req.ProjectNumber,
		Active:        true,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusCreated, mapProject(project))
}

func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	projectID := uriParamUUID(w, r, "projectId")
	if projectID == "" {
		return
	}
	var req projectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "missing_name")
		return
	}
	err := s.store.UpdateProject(r.Context(), model.Project{
		ID:            projectID,
		Name:          strings.TrimSpace(req.Name),
		Address:       req.Address,
		ClientID:      req.ClientID,
		ProjectNumber: req.ProjectNumber,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "project_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeactivateProject(w http.ResponseWriter, r *http.Request) {
	projectID := uriParamUUID(w, r, "projectId")
	if projectID == "" {
		return
	}
	if err := s.store.SetProjectActive(r.Context(), projectID, false); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "project_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Documents

type documentRequest struct {
	Title             string  `json:"title"`
	Description       *string `json:"description"`
	DocumentType      string  `json:"document_type"`
	Version           *string `json:"version"`
	FileURL           *string `json:"file_url"`
	RequiresSignature bool    `json:"requires_signature"`
}

type documentResponse struct {
	ID                string  `json:"id"`
	ProjectID         string  `json:"project_id"`
	ProjectName       string  `json:"project_name,omitempty"`
	Title             string  `json:"title"`
	Description       *string `json:"description,omitempty"`
	DocumentType      string  `json:"document_type"`
	Version           *string `json:"version,omitempty"`
	FileURL           *string `json:"file_url,omitempty"`
	RequiresSignature bool    `json:"requires_signature"`
	Active            bool    `json:"active"`
}

func mapDocument(d model.SiteDocument) documentResponse {
	return documentResponse{
		ID:                d.ID,
		ProjectID:         d.ProjectID,
		ProjectName:       d.ProjectName,
		Title:             d.Title,
		Description:       d.Description,
		DocumentType:      d.DocumentType,
		Version:           d.Version,
		FileURL:           d.FileURL,
		RequiresSignature: d.RequiresSignature,
		Active:            d.Active,
	}
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	projectID := uriParamUUID(w, r, "projectId")
	if projectID == "" {
		return
	}
	activeOnly := r.URL.Query().Get("include_inactive") != "true"
	docs, err := s.store.ListDocumentsByProject(r.Context(), projectID, activeOnly)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	resp := make([]documentResponse, 0, len(docs))
	for _, d := range docs {
		resp = append(resp, mapDocument(d))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	documentID := uriParamUUID(w, r, "documentId")
	if documentID == "" {
		return
	}
	doc, err := s.store.GetDocument(r.Context(), documentID)
	if err != nil {
		writeError(w, http.StatusNotFound, "document_not_found")
		return
	}
	writeJSON(w, http.StatusOK, mapDocument(doc))
}

func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	projectID := uriParamUUID(w, r, "projectId")
	if projectID == "" {
		return
	}
	var req documentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(w, http.StatusBadRequest, "missing_title")
		return
	}
	if !validDocumentType(req.DocumentType) {
		writeError(w, http.StatusBadRequest, "invalid_document_type")
		return
	}
	if _, err := s.store.GetProject(r.Context(), projectID); err != nil {
		writeError(w, http.StatusNotFound, "project_not_found")
		return
	}
	doc, err := s.store.CreateDocument(r.Context(), model.SiteDocument{
		ProjectID:         projectID,
		Title:             strings.TrimSpace(req.Title),
		Description:       req.Description,
		DocumentType:      req.DocumentType,
		Version:           req.Version,
		FileURL:           req.FileURL,
		RequiresSignature: req.RequiresSignature,
		Active:            true,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusCreated, mapDocument(doc))
}

func (s *Server) handleUpdateDocument(w http.ResponseWriter, r *http.Request) {
	documentID := uriParamUUID(w, r, "documentId")
	if documentID == "" {
		return
	}
	var req documentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(w, http.StatusBadRequest, "missing_title")
		return
	}
	if !validDocumentType(req.DocumentType) {
		writeError(w, http.StatusBadRequest, "invalid_document_type")
		return
	}
	err := s.store.UpdateDocument(r.Context(), model.SiteDocument{
		ID:                documentID,
		Title:             strings.TrimSpace(req.Title),
		Description:       req.Description,
		DocumentType:      req.DocumentType,
		Version:           req.Version,
		FileURL:           req.FileURL,
		RequiresSignature: req.RequiresSignature,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "document_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeactivateDocument(w http.ResponseWriter, r *http.Request) {
	documentID := uriParamUUID(w, r, "documentId")
	if documentID == "" {
		return
	}
	if err := s.store.SetDocumentActive(r.Context(), documentID, false); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "document_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func validDocumentType(value string) bool {
	switch value {
	case "SWMS", "JSEA", "Site Safety Plan", "Demolition Plan",
		"Induction Checklist", "Training Certificate", "Other":
		return true
	default:
		return false
	}
}

// Assignments

type createAssignmentRequest struct {
	UserID  string `json:"user_id"`
	CanSign bool   `json:"can_sign"`
}

func (s *Server) handleCreateAssignment(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	documentID := uriParamUUID(w, r, "documentId")
	if documentID == "" {
		return
	}
	var req createAssignmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if _, err := uuid.Parse(req.UserID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_user_id")
		return
	}
	doc, err := s.store.GetDocument(r.Context(), documentID)
	if err != nil {
		writeError(w, http.StatusNotFound, "document_not_found")
		return
	}
	if !doc.Active {
		writeError(w, http.StatusConflict, "document_inactive")
		return
	}
	if _, err := s.store.GetUserByID(r.Context(), req.UserID); err != nil {
		writeError(w, http.StatusNotFound, "user_not_found")
		return
	}

	assignment, created, err := s.store.CreateAssignment(r.Context(), documentID, req.UserID, req.CanSign, &claims.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if created {
		s.invalidateUserCaches(r.Context(), req.UserID)
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]interface{}{
		"id":          assignment.ID,
		"document_id": assignment.DocumentID,
		"user_id":     assignment.UserID,
		"can_sign":    assignment.CanSign,
		"assigned_at": assignment.AssignedAt.Unix(),
	})
}

// Enrollments

type enrollmentResponse struct {
	ID         string `json:"id"`
	ProjectID  string `json:"project_id"`
	UserID     string `json:"user_id"`
	FullName   string `json:"full_name,omitempty"`
	Status     string `json:"status"`
	EnrolledAt int64  `json:"enrolled_at"`
}

func (s *Server) handleListEnrollments(w http.ResponseWriter, r *http.Request) {
	projectID := uriParamUUID(w, r, "projectId")
	if projectID == "" {
		return
	}
	enrollments, err := s.store.ListEnrollmentsByProject(r.Context(), projectID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	userIDs := make([]string, 0, len(enrollments))
	for _, e := range enrollments {
		userIDs = append(userIDs, e.UserID)
	}
	names, err := s.store.GetProfileNames(r.Context(), userIDs)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	resp := make([]enrollmentResponse, 0, len(enrollments))
	for _, e := range enrollments {
		resp = append(resp, enrollmentResponse{
			ID:         e.ID,
			ProjectID:  e.ProjectID,
			UserID:     e.UserID,
			FullName:   names[e.UserID],
			Status:     e.Status,
			EnrolledAt: e.EnrolledAt.Unix(),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type updateEnrollmentRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleUpdateEnrollmentStatus(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	enrollmentID := uriParamUUID(w, r, "enrollmentId")
	if enrollmentID == "" {
		return
	}
	var req updateEnrollmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.Status != "approved" && req.Status != "rejected" {
		writeError(w, http.StatusBadRequest, "invalid_status")
		return
	}
	if err := s.store.UpdateEnrollmentStatus(r.Context(), enrollmentID, req.Status, claims.UserID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "enrollment_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// QR codes

func (s *Server) handleProjectQR(w http.ResponseWriter, r *http.Request) {
	projectID := uriParamUUID(w, r, "projectId")
	if projectID == "" {
		return
	}
	project, err := s.store.GetProject(r.Context(), projectID)
	if err != nil {
		writeError(w, http.StatusNotFound, "project_not_found")
		return
	}
	s.writeQR(w, qr.KindProject, project.ID, project.Name)
}

func (s *Server) handleDocumentQR(w http.ResponseWriter, r *http.Request) {
	documentID := uriParamUUID(w, r, "documentId")
	if documentID == "" {
		return
	}
	doc, err := s.store.GetDocument(r.Context(), documentID)
	if err != nil {
		writeError(w, http.StatusNotFound, "document_not_found")
		return
	}
	s.writeQR(w, qr.KindDocument, doc.ID, doc.Title)
}

func (s *Server) writeQR(w http.ResponseWriter, kind qr.Kind, id, name string) {
	png, err := qr.Encode(qr.SignOnURL(s.cfg.BaseURL, kind, uuid.MustParse(id)))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", qr.Filename(kind, name)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// invalidateUserCaches drops the cached document and signature views
// for one user. Cache misses just rebuild on the next read.
func (s *Server) invalidateUserCaches(ctx context.Context, userID string) {
	if s.redis == nil {
		return
	}
	_ = s.redis.Del(ctx, assignedDocsKey(userID), mySignaturesKey(userID)).Err()
}

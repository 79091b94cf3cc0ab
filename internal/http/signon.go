package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"

	"github.com/tfsgroup/siteportal/internal/auth"
	"github.com/tfsgroup/siteportal/internal/model"
	"github.com/tfsgroup/siteportal/internal/qr"
	"github.com/tfsgroup/siteportal/internal/report"
	"github.com/tfsgroup/siteportal/internal/signature"
)

// Deep links

type signOnState struct {
	Kind        string  `json:"kind"`
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Signed      bool    `json:"signed"`
	SignedAt    *int64  `json:"signed_at,omitempty"`
	Description *string `json:"description,omitempty"`
}

// handleProjectDeepLink resolves a scanned project QR code. Anonymous
// scans are bounced to the login page with the original link preserved
// so the app can come straight back after authentication.
func (s *Server) handleProjectDeepLink(w http.ResponseWriter, r *http.Request) {
	claims, ok := s.deepLinkClaims(w, r)
	if !ok {
		return
	}
	projectID := r.URL.Query().Get("project")
	if _, err := uuid.Parse(projectID); err != nil {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	project, err := s.store.GetProject(r.Context(), projectID)
	if err != nil || !project.Active {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}

	state := signOnState{Kind: string(qr.KindProject), ID: project.ID, Name: project.Name}
	signOn, err := s.store.GetSignOnForDay(r.Context(), project.ID, claims.UserID, time.Now().UTC())
	if err == nil {
		state.Signed = true
		signedAt := signOn.SignedAt.Unix()
		state.SignedAt = &signedAt
	} else if !errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleDocumentDeepLink(w http.ResponseWriter, r *http.Request) {
	claims, ok := s.deepLinkClaims(w, r)
	if !ok {
		return
	}
	documentID := r.URL.Query().Get("doc")
	if _, err := uuid.Parse(documentID); err != nil {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	doc, err := s.store.GetDocument(r.Context(), documentID)
	if err != nil || !doc.Active {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}

	state := signOnState{Kind: string(qr.KindDocument), ID: doc.ID, Name: doc.Title, Description: doc.Description}
	sig, err := s.store.GetDocumentSignature(r.Context(), doc.ID, claims.UserID)
	if err == nil {
		state.Signed = true
		signedAt := sig.SignedAt.Unix()
		state.SignedAt = &signedAt
	} else if !errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// deepLinkClaims parses the optional bearer token on a deep link. With
// no valid token the caller gets a 302 to /auth carrying the original
// URL; the response is already written when ok is false.
func (s *Server) deepLinkClaims(w http.ResponseWriter, r *http.Request) (*auth.Claims, bool) {
	token := bearerToken(r.Header.Get("Authorization"))
	if token != "" {
		if claims, err := auth.ParseToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, token); err == nil {
			return claims, true
		}
	}
	redirect := url.QueryEscape(r.URL.RequestURI())
	http.Redirect(w, r, "/auth?redirect="+redirect, http.StatusFound)
	return nil, false
}

// Sign-on submission

type canvasGeometry struct {
	DisplayWidth  float64 `json:"display_width"`
	DisplayHeight float64 `json:"display_height"`
}

type signOnRequest struct {
	Acknowledged bool                `json:"acknowledged"`
	Strokes      [][]signature.Point `json:"strokes"`
	Canvas       *canvasGeometry     `json:"canvas"`
}

type signOnResponse struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id,omitempty"`
	DocID     string `json:"document_id,omitempty"`
	UserID    string `json:"user_id"`
	SignedAt  int64  `json:"signed_at"`
	Created   bool   `json:"created"`
}

func (s *Server) handleProjectSignOn(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	projectID := uriParamUUID(w, r, "projectId")
	if projectID == "" {
		return
	}
	var req signOnRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	// Both halves of the gate are required: the acknowledgement tick
	// and an actual signature. Each failure names the missing half.
	if !req.Acknowledged {
		writeError(w, http.StatusBadRequest, "acknowledgement_required")
		return
	}
	signatureData, err := rasterizeStrokes(req.Strokes, req.Canvas)
	if err != nil {
		writeError(w, http.StatusBadRequest, "signature_required")
		return
	}

	project, err := s.store.GetProject(r.Context(), projectID)
	if err != nil || !project.Active {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}

	_, enrolled, err := s.store.EnsureEnrollment(r.Context(), project.ID, claims.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if enrolled {
		s.notifyEnrollment(r.Context(), claims, project.ID, project.Name)
	}

	signOn, created, err := s.store.CreateProjectSignOn(r.Context(), project.ID, claims.UserID, &signatureData)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, signOnResponse{
		ID:        signOn.ID,
		ProjectID: signOn.ProjectID,
		UserID:    signOn.UserID,
		SignedAt:  signOn.SignedAt.Unix(),
		Created:   created,
	})
}

func (s *Server) handleDocumentSignature(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	documentID := uriParamUUID(w, r, "documentId")
	if documentID == "" {
		return
	}
	var req signOnRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if !req.Acknowledged {
		writeError(w, http.StatusBadRequest, "acknowledgement_required")
		return
	}
	signatureData, err := rasterizeStrokes(req.Strokes, req.Canvas)
	if err != nil {
		writeError(w, http.StatusBadRequest, "signature_required")
		return
	}

	doc, err := s.store.GetDocument(r.Context(), documentID)
	if err != nil || !doc.Active {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}

	// Signing a site document enrolls the signer on its project, same as
	// a project sign-on.
	_, enrolled, err := s.store.EnsureEnrollment(r.Context(), doc.ProjectID, claims.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if enrolled {
		s.notifyEnrollment(r.Context(), claims, doc.ProjectID, doc.ProjectName)
	}

	if !doc.RequiresSignature {
		writeError(w, http.StatusConflict, "signature_not_required")
		return
	}
	assignment, err := s.store.GetAssignment(r.Context(), doc.ID, claims.UserID)
	if err == nil && !assignment.CanSign {
		writeError(w, http.StatusForbidden, "signing_not_allowed")
		return
	}
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	sig, created, err := s.store.CreateDocumentSignature(r.Context(), doc.ID, claims.UserID, &signatureData)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if created {
		s.invalidateUserCaches(r.Context(), claims.UserID)
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, signOnResponse{
		ID:       sig.ID,
		DocID:    sig.DocumentID,
		UserID:   sig.UserID,
		SignedAt: sig.SignedAt.Unix(),
		Created:  created,
	})
}

// rasterizeStrokes replays captured pointer strokes onto a fresh canvas
// and exports the PNG data URI. Display coordinates are scaled to the
// canvas buffer first. An empty drawing is an error.
func rasterizeStrokes(strokes [][]signature.Point, geom *canvasGeometry) (string, error) {
	canvas := signature.NewCanvas(signature.DefaultWidth, signature.DefaultHeight)
	transform := signature.Transform{ScaleX: 1, ScaleY: 1}
	if geom != nil {
		transform = signature.NewTransform(signature.DefaultWidth, signature.DefaultHeight, geom.DisplayWidth, geom.DisplayHeight)
	}
	for _, stroke := range strokes {
		if len(stroke) == 0 {
			continue
		}
		canvas.StartStroke(transform.Apply(stroke[0]))
		for _, point := range stroke[1:] {
			canvas.ExtendStroke(transform.Apply(point))
		}
		canvas.EndStroke()
	}
	if !canvas.HasContent() {
		return "", errors.New("empty signature")
	}
	return canvas.Export()
}

func (s *Server) notifyEnrollment(ctx context.Context, claims *auth.Claims, projectID, projectName string) {
	if s.notifier == nil {
		return
	}
	message := fmt.Sprintf("%s enrolled on %s", claims.FullName, projectName)
	if err := s.notifier.NotifyAdmins(ctx, "project_enrollment", "New site enrollment", &message, &projectID); err != nil {
		log.Printf("enrollment notification failed: %v", err)
	}
}

// Cached personal views

func assignedDocsKey(userID string) string {
	return fmt.Sprintf("assigned_docs:%s", userID)
}

func mySignaturesKey(userID string) string {
	return fmt.Sprintf("my_signatures:%s", userID)
}

type assignedDocumentResponse struct {
	AssignmentID string           `json:"assignment_id"`
	CanSign      bool             `json:"can_sign"`
	Document     documentResponse `json:"document"`
	SignedAt     *int64           `json:"signed_at,omitempty"`
}

func (s *Server) handleMyDocuments(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	if s.serveCached(w, r.Context(), assignedDocsKey(claims.UserID)) {
		return
	}

	docs, err := s.store.ListAssignedDocuments(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	resp := make([]assignedDocumentResponse, 0, len(docs))
	for _, d := range docs {
		entry := assignedDocumentResponse{
			AssignmentID: d.Assignment.ID,
			CanSign:      d.Assignment.CanSign,
			Document:     mapDocument(d.Document),
		}
		if d.SignedAt != nil {
			signedAt := d.SignedAt.Unix()
			entry.SignedAt = &signedAt
		}
		resp = append(resp, entry)
	}
	s.writeAndCache(w, r.Context(), assignedDocsKey(claims.UserID), resp)
}

type userSignatureResponse struct {
	ID            string `json:"id"`
	DocumentID    string `json:"document_id"`
	DocumentTitle string `json:"document_title"`
	ProjectName   string `json:"project_name"`
	SignedAt      int64  `json:"signed_at"`
}

func (s *Server) handleMySignatures(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	if s.serveCached(w, r.Context(), mySignaturesKey(claims.UserID)) {
		return
	}

	sigs, err := s.store.ListSignaturesByUser(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	resp := make([]userSignatureResponse, 0, len(sigs))
	for _, sig := range sigs {
		resp = append(resp, userSignatureResponse{
			ID:            sig.Signature.ID,
			DocumentID:    sig.Signature.DocumentID,
			DocumentTitle: sig.DocumentTitle,
			ProjectName:   sig.ProjectName,
			SignedAt:      sig.Signature.SignedAt.Unix(),
		})
	}
	s.writeAndCache(w, r.Context(), mySignaturesKey(claims.UserID), resp)
}

func (s *Server) serveCached(w http.ResponseWriter, ctx context.Context, key string) bool {
	if s.redis == nil {
		return false
	}
	value, err := s.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return false
	}
	if err != nil {
		log.Printf("cache read failed: %v", err)
		return false
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(value))
	return true
}

func (s *Server) writeAndCache(w http.ResponseWriter, ctx context.Context, key string, payload interface{}) {
	if s.redis != nil {
		if encoded, err := json.Marshal(payload); err == nil {
			if err := s.redis.Set(ctx, key, encoded, s.cfg.SignatureCacheTTL).Err(); err != nil {
				log.Printf("cache write failed: %v", err)
			}
		}
	}
	writeJSON(w, http.StatusOK, payload)
}

// Reports

func (s *Server) handleProjectSignOnReport(w http.ResponseWriter, r *http.Request) {
	projectID := uriParamUUID(w, r, "projectId")
	if projectID == "" {
		return
	}
	project, err := s.store.GetProject(r.Context(), projectID)
	if err != nil {
		writeError(w, http.StatusNotFound, "project_not_found")
		return
	}
	signOns, err := s.store.ListProjectSignOns(r.Context(), project.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	entries := make([]model.SignatureEntry, 0, len(signOns))
	userIDs := make([]string, 0, len(signOns))
	for _, so := range signOns {
		userIDs = append(userIDs, so.UserID)
	}
	names, err := s.store.GetProfileNames(r.Context(), userIDs)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	for _, so := range signOns {
		entries = append(entries, model.SignatureEntry{
			UserID:        so.UserID,
			Name:          names[so.UserID],
			SignatureData: so.SignatureData,
			SignedAt:      so.SignedAt,
		})
	}

	pdf, err := report.SignOnReport(qr.KindProject, project.Name, entries)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writePDF(w, report.SignOnReportFilename(qr.KindProject, project.Name), pdf)
}

func (s *Server) handleDocumentSignOnReport(w http.ResponseWriter, r *http.Request) {
	documentID := uriParamUUID(w, r, "documentId")
	if documentID == "" {
		return
	}
	doc, err := s.store.GetDocument(r.Context(), documentID)
	if err != nil {
		writeError(w, http.StatusNotFound, "document_not_found")
		return
	}
	entries, err := s.documentEntries(r.Context(), doc.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	// The activity report reads newest-first.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}

	pdf, err := report.SignOnReport(qr.KindDocument, doc.Title, entries)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writePDF(w, report.SignOnReportFilename(qr.KindDocument, doc.Title), pdf)
}

func (s *Server) handleDocumentSignSheet(w http.ResponseWriter, r *http.Request) {
	documentID := uriParamUUID(w, r, "documentId")
	if documentID == "" {
		return
	}
	doc, err := s.store.GetDocument(r.Context(), documentID)
	if err != nil {
		writeError(w, http.StatusNotFound, "document_not_found")
		return
	}
	entries, err := s.documentEntries(r.Context(), doc.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	qrPNG, err := qr.Encode(qr.SignOnURL(s.cfg.BaseURL, qr.KindDocument, uuid.MustParse(doc.ID)))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	pdf, err := report.SignSheet(doc, qrPNG, entries)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writePDF(w, report.SignSheetFilename(doc.Title), pdf)
}

func (s *Server) documentEntries(ctx context.Context, documentID string) ([]model.SignatureEntry, error) {
	sigs, err := s.store.ListDocumentSignatures(ctx, documentID)
	if err != nil {
		return nil, err
	}
	userIDs := make([]string, 0, len(sigs))
	for _, sig := range sigs {
		userIDs = append(userIDs, sig.UserID)
	}
	names, err := s.store.GetProfileNames(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	entries := make([]model.SignatureEntry, 0, len(sigs))
	for _, sig := range sigs {
		entries = append(entries, model.SignatureEntry{
			UserID:        sig.UserID,
			Name:          names[sig.UserID],
			SignatureData: sig.SignatureData,
			SignedAt:      sig.SignedAt,
		})
	}
	return entries, nil
}

func writePDF(w http.ResponseWriter, filename string, pdf []byte) {
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

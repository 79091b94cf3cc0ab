package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tfsgroup/siteportal/internal/model"
)

// Runsheets

type createRunsheetRequest struct {
	Date           string  `json:"date"`
	ClientID       *string `json:"client_id"`
	JobID          *string `json:"job_id"`
	AssetID        *string `json:"asset_id"`
	LoadType       string  `json:"load_type"`
	PickupAddress  string  `json:"pickup_address"`
	DropoffAddress string  `json:"dropoff_address"`
	StartTime      string  `json:"start_time"`
	JobDetails     *string `json:"job_details"`
}

type runsheetResponse struct {
	ID             string  `json:"id"`
	UserID         string  `json:"user_id"`
	Date           string  `json:"date"`
	ClientID       *string `json:"client_id,omitempty"`
	JobID          *string `json:"job_id,omitempty"`
	AssetID        *string `json:"asset_id,omitempty"`
	LoadType       string  `json:"load_type"`
	PickupAddress  string  `json:"pickup_address"`
	DropoffAddress string  `json:"dropoff_address"`
	StartTime      string  `json:"start_time"`
	FinishTime     *string `json:"finish_time,omitempty"`
	BreakMinutes   *int32  `json:"break_minutes,omitempty"`
	JobDetails     *string `json:"job_details,omitempty"`
	Status         string  `json:"status"`
}

func mapRunsheet(sheet model.Runsheet) runsheetResponse {
	return runsheetResponse{
		ID:             sheet.ID,
		UserID:         sheet.UserID,
		Date:           sheet.Date.Format("2006-01-02"),
		ClientID:       sheet.ClientID,
		JobID:          sheet.JobID,
		AssetID:        sheet.AssetID,
		LoadType:       sheet.LoadType,
		PickupAddress:  sheet.PickupAddress,
		DropoffAddress: sheet.DropoffAddress,
		StartTime:      sheet.StartTime,
		FinishTime:     sheet.FinishTime,
		BreakMinutes:   sheet.BreakMinutes,
		JobDetails:     sheet.JobDetails,
		Status:         sheet.Status,
	}
}

func (s *Server) handleCreateRunsheet(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	var req createRunsheetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if !validLoadType(req.LoadType) {
		writeError(w, http.StatusBadRequest, "invalid_load_type")
		return
	}
	if strings.TrimSpace(req.PickupAddress) == "" || strings.TrimSpace(req.DropoffAddress) == "" {
		writeError(w, http.StatusBadRequest, "missing_addresses")
		return
	}
	if strings.TrimSpace(req.StartTime) == "" {
		writeError(w, http.StatusBadRequest, "missing_start_time")
		return
	}
	date := time.Now().UTC()
	if req.Date != "" {
		parsed, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date")
			return
		}
		date = parsed
	}

	sheet, err := s.store.CreateRunsheet(r.Context(), model.Runsheet{
		UserID:         claims.UserID,
		Date:           date,
		ClientID:       req.ClientID,
		JobID:          req.JobID,
		AssetID:        req.AssetID,
		LoadType:       req.LoadType,
		PickupAddress:  strings.TrimSpace(req.PickupAddress),
		DropoffAddress: strings.TrimSpace(req.DropoffAddress),
		StartTime:      strings.TrimSpace(req.StartTime),
		JobDetails:     req.JobDetails,
		Status:         "in_progress",
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusCreated, mapRunsheet(sheet))
}

func (s *Server) handleListRunsheets(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	sheets, err := s.store.ListRunsheetsByUser(r.Context(), claims.UserID, parseLimit(r, 50))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	resp := make([]runsheetResponse, 0, len(sheets))
	for _, sheet := range sheets {
		resp = append(resp, mapRunsheet(sheet))
	}
	writeJSON(w, http.StatusOK, resp)
}

// loadRunsheet fetches the runsheet and enforces ownership. Management
// can read any runsheet, drivers only their own.
func (s *Server) loadRunsheet(w http.ResponseWriter, r *http.Request) (model.Runsheet, bool) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return model.Runsheet{}, false
	}
	runsheetID := uriParamUUID(w, r, "runsheetId")
	if runsheetID == "" {
		return model.Runsheet{}, false
	}
	sheet, err := s.store.GetRunsheet(r.Context(), runsheetID)
	if err != nil {
		writeError(w, http.StatusNotFound, "runsheet_not_found")
		return model.Runsheet{}, false
	}
	if sheet.UserID != claims.UserID && !claims.Management() {
		writeError(w, http.StatusForbidden, "forbidden")
		return model.Runsheet{}, false
	}
	return sheet, true
}

func (s *Server) handleGetRunsheet(w http.ResponseWriter, r *http.Request) {
	sheet, ok := s.loadRunsheet(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, mapRunsheet(sheet))
}

type finishRunsheetRequest struct {
	FinishTime   string `json:"finish_time"`
	BreakMinutes *int32 `json:"break_minutes"`
}

func (s *Server) handleFinishRunsheet(w http.ResponseWriter, r *http.Request) {
	sheet, ok := s.loadRunsheet(w, r)
	if !ok {
		return
	}
	var req finishRunsheetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if strings.TrimSpace(req.FinishTime) == "" {
		writeError(w, http.StatusBadRequest, "missing_finish_time")
		return
	}
	if sheet.Status == "completed" {
		writeError(w, http.StatusConflict, "runsheet_completed")
		return
	}
	if err := s.store.FinishRunsheet(r.Context(), sheet.ID, strings.TrimSpace(req.FinishTime), req.BreakMinutes); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func validLoadType(value string) bool {
	switch value {
	case "Concrete", "Steel", "Mixed Waste", "Bricks", "Timber", "Asbestos", "Green Waste", "Soil", "Other":
		return true
	default:
		return false
	}
}

// Dockets

type createDocketRequest struct {
	ClientID *string `json:"client_id"`
}

type docketResponse struct {
	ID           string  `json:"id"`
	RunsheetID   string  `json:"runsheet_id"`
	ClientID     *string `json:"client_id,omitempty"`
	DocketNumber string  `json:"docket_number"`
	CreatedAt    int64   `json:"created_at"`
}

func (s *Server) handleCreateDocket(w http.ResponseWriter, r *http.Request) {
	sheet, ok := s.loadRunsheet(w, r)
	if !ok {
		return
	}
	var req createDocketRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.ClientID != nil {
		if _, err := uuid.Parse(*req.ClientID); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_client_id")
			return
		}
	}
	clientID := req.ClientID
	if clientID == nil {
		clientID = sheet.ClientID
	}
	docket, err := s.store.CreateDocket(r.Context(), sheet.ID, clientID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusCreated, docketResponse{
		ID:           docket.ID,
		RunsheetID:   docket.RunsheetID,
		ClientID:     docket.ClientID,
		DocketNumber: docket.DocketNumber,
		CreatedAt:    docket.CreatedAt.Unix(),
	})
}

func (s *Server) handleListDockets(w http.ResponseWriter, r *http.Request) {
	sheet, ok := s.loadRunsheet(w, r)
	if !ok {
		return
	}
	dockets, err := s.store.ListDocketsByRunsheet(r.Context(), sheet.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	resp := make([]docketResponse, 0, len(dockets))
	for _, docket := range dockets {
		resp = append(resp, docketResponse{
			ID:           docket.ID,
			RunsheetID:   docket.RunsheetID,
			ClientID:     docket.ClientID,
			DocketNumber: docket.DocketNumber,
			CreatedAt:    docket.CreatedAt.Unix(),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// Payslips

type payslipResponse struct {
	ID          string `json:"id"`
	PeriodStart string `json:"period_start"`
	PeriodEnd   string `json:"period_end"`
	FileURL     string `json:"file_url"`
	CreatedAt   int64  `json:"created_at"`
}

func mapPayslip(p model.Payslip) payslipResponse {
	return payslipResponse{
		ID:          p.ID,
		PeriodStart: p.PeriodStart.Format("2006-01-02"),
		PeriodEnd:   p.PeriodEnd.Format("2006-01-02"),
		FileURL:     p.FileURL,
		CreatedAt:   p.CreatedAt.Unix(),
	}
}

func (s *Server) handleMyPayslips(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	s.writePayslips(w, r, claims.UserID)
}

func (s *Server) handleListPayslips(w http.ResponseWriter, r *http.Request) {
	userID := uriParamUUID(w, r, "userId")
	if userID == "" {
		return
	}
	s.writePayslips(w, r, userID)
}

func (s *Server) writePayslips(w http.ResponseWriter, r *http.Request, userID string) {
	payslips, err := s.store.ListPayslipsByUser(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	resp := make([]payslipResponse, 0, len(payslips))
	for _, p := range payslips {
		resp = append(resp, mapPayslip(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

type createPayslipRequest struct {
	PeriodStart string `json:"period_start"`
	PeriodEnd   string `json:"period_end"`
	FileURL     string `json:"file_url"`
}

func (s *Server) handleCreatePayslip(w http.ResponseWriter, r *http.Request) {
	userID := uriParamUUID(w, r, "userId")
	if userID == "" {
		return
	}
	var req createPayslipRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	start, err := time.Parse("2006-01-02", req.PeriodStart)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_period")
		return
	}
	end, err := time.Parse("2006-01-02", req.PeriodEnd)
	if err != nil || end.Before(start) {
		writeError(w, http.StatusBadRequest, "invalid_period")
		return
	}
	if strings.TrimSpace(req.FileURL) == "" {
		writeError(w, http.StatusBadRequest, "missing_file_url")
		return
	}
	if _, err := s.store.GetUserByID(r.Context(), userID); err != nil {
		writeError(w, http.StatusNotFound, "user_not_found")
		return
	}

	payslip, err := s.store.CreatePayslip(r.Context(), model.Payslip{
		UserID:      userID,
		PeriodStart: start,
		PeriodEnd:   end,
		FileURL:     strings.TrimSpace(req.FileURL),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusCreated, mapPayslip(payslip))
}

// Training records

type trainingResponse struct {
	ID             string  `json:"id"`
	UserID         string  `json:"user_id"`
	Title          string  `json:"title"`
	Description    *string `json:"description,omitempty"`
	Mandatory      bool    `json:"mandatory"`
	CompletedAt    *int64  `json:"completed_at,omitempty"`
	ExpiresAt      *int64  `json:"expires_at,omitempty"`
	CertificateURL *string `json:"certificate_url,omitempty"`
}

func mapTraining(rec model.TrainingRecord) trainingResponse {
	resp := trainingResponse{
		ID:             rec.ID,
		UserID:         rec.UserID,
		Title:          rec.Title,
		Description:    rec.Description,
		Mandatory:      rec.Mandatory,
		CertificateURL: rec.CertificateURL,
	}
	if rec.CompletedAt != nil {
		completed := rec.CompletedAt.Unix()
		resp.CompletedAt = &completed
	}
	if rec.ExpiresAt != nil {
		expires := rec.ExpiresAt.Unix()
		resp.ExpiresAt = &expires
	}
	return resp
}

func (s *Server) handleMyTraining(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	s.writeTraining(w, r, claims.UserID)
}

func (s *Server) handleListTraining(w http.ResponseWriter, r *http.Request) {
	userID := uriParamUUID(w, r, "userId")
	if userID == "" {
		return
	}
	s.writeTraining(w, r, userID)
}

func (s *Server) writeTraining(w http.ResponseWriter, r *http.Request, userID string) {
	records, err := s.store.ListTrainingByUser(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	resp := make([]trainingResponse, 0, len(records))
	for _, rec := range records {
		resp = append(resp, mapTraining(rec))
	}
	writeJSON(w, http.StatusOK, resp)
}

type createTrainingRequest struct {
	Title          string  `json:"title"`
	Description    *string `json:"description"`
	Mandatory      bool    `json:"mandatory"`
	CompletedAt    *int64  `json:"completed_at"`
	ExpiresAt      *int64  `json:"expires_at"`
	CertificateURL *string `json:"certificate_url"`
}

func (s *Server) handleCreateTraining(w http.ResponseWriter, r *http.Request) {
	userID := uriParamUUID(w, r, "userId")
	if userID == "" {
		return
	}
	var req createTrainingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(w, http.StatusBadRequest, "missing_title")
		return
	}
	if _, err := s.store.GetUserByID(r.Context(), userID); err != nil {
		writeError(w, http.StatusNotFound, "user_not_found")
		return
	}

	rec := model.TrainingRecord{
		UserID:         userID,
		Title:          strings.TrimSpace(req.Title),
		Description:    req.Description,
		Mandatory:      req.Mandatory,
		CertificateURL: req.CertificateURL,
	}
	if req.CompletedAt != nil {
		completed := time.Unix(*req.CompletedAt, 0).UTC()
		rec.CompletedAt = &completed
	}
	if req.ExpiresAt != nil {
		expires := time.Unix(*req.ExpiresAt, 0).UTC()
		rec.ExpiresAt = &expires
	}

	created, err := s.store.CreateTrainingRecord(r.Context(), rec)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusCreated, mapTraining(created))
}

// Notifications

type notificationResponse struct {
	ID        string  `json:"id"`
	Type      string  `json:"type"`
	Title     string  `json:"title"`
	Message   *string `json:"message,omitempty"`
	RelatedID *string `json:"related_id,omitempty"`
	Read      bool    `json:"read"`
	CreatedAt int64   `json:"created_at"`
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	unreadOnly := r.URL.Query().Get("unread") == "true"
	notifications, err := s.store.ListNotifications(r.Context(), claims.UserID, unreadOnly, parseLimit(r, 100))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	resp := make([]notificationResponse, 0, len(notifications))
	for _, n := range notifications {
		resp = append(resp, notificationResponse{
			ID:        n.ID,
			Type:      n.Type,
			Title:     n.Title,
			Message:   n.Message,
			RelatedID: n.RelatedID,
			Read:      n.Read,
			CreatedAt: n.CreatedAt.Unix(),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	notificationID := uriParamUUID(w, r, "notificationId")
	if notificationID == "" {
		return
	}
	if err := s.store.MarkNotificationRead(r.Context(), notificationID, claims.UserID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "notification_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

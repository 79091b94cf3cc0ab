package http_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
)

// These tests drive a running server against a seeded database. They
// expect an admin account and a driver account to exist already.

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	UserID       string `json:"user_id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func getenv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func requireIntegration(t *testing.T) string {
	t.Helper()
	if os.Getenv("INTEGRATION_TESTS") != "1" {
		t.Skip("set INTEGRATION_TESTS=1 to run")
	}
	return getenv("PORTAL_HTTP_ADDR", "http://127.0.0.1:8080")
}

func login(t *testing.T, baseURL, email, password string) tokenResponse {
	t.Helper()
	status, body := doJSON(t, http.MethodPost, baseURL+"/v1/auth/login", "", map[string]string{
		"email":    email,
		"password": password,
	})
	if status != http.StatusOK {
		t.Fatalf("login status %d: %s", status, body)
	}
	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	return token
}

func doJSON(t *testing.T, method, url, token string, payload interface{}) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, body
}

var signOnPayload = map[string]interface{}{
	"acknowledged": true,
	"strokes": [][]map[string]float64{{
		{"x": 20, "y": 30},
		{"x": 120, "y": 60},
		{"x": 240, "y": 40},
	}},
	"canvas": map[string]float64{"display_width": 320, "display_height": 120},
}

func TestProjectSignOnFlow(t *testing.T) {
	baseURL := requireIntegration(t)
	admin := login(t, baseURL, getenv("ADMIN_EMAIL", "admin@demo.local"), getenv("ADMIN_PASSWORD", "dev-password"))
	driver := login(t, baseURL, getenv("DRIVER_EMAIL", "driver@demo.local"), getenv("DRIVER_PASSWORD", "dev-password"))

	status, body := doJSON(t, http.MethodPost, baseURL+"/v1/projects", admin.AccessToken, map[string]interface{}{
		"name": fmt.Sprintf("Integration Demolition %d", os.Getpid()),
	})
	if status != http.StatusCreated {
		t.Fatalf("create project status %d: %s", status, body)
	}
	var project struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &project); err != nil {
		t.Fatalf("decode project: %v", err)
	}

	// Scanned state before signing.
	status, body = doJSON(t, http.MethodGet, baseURL+"/project-sign?project="+project.ID, driver.AccessToken, nil)
	if status != http.StatusOK {
		t.Fatalf("deep link status %d: %s", status, body)
	}
	var state struct {
		Signed bool `json:"signed"`
	}
	if err := json.Unmarshal(body, &state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if state.Signed {
		t.Fatalf("fresh project must not be signed")
	}

	// First sign-on creates, second is an idempotent no-op.
	status, body = doJSON(t, http.MethodPost, baseURL+"/v1/projects/"+project.ID+"/sign-on", driver.AccessToken, signOnPayload)
	if status != http.StatusCreated {
		t.Fatalf("first sign-on status %d: %s", status, body)
	}
	var first struct {
		ID      string `json:"id"`
		Created bool   `json:"created"`
	}
	if err := json.Unmarshal(body, &first); err != nil {
		t.Fatalf("decode sign-on: %v", err)
	}
	if !first.Created {
		t.Fatalf("first sign-on should report created")
	}

	status, body = doJSON(t, http.MethodPost, baseURL+"/v1/projects/"+project.ID+"/sign-on", driver.AccessToken, signOnPayload)
	if status != http.StatusOK {
		t.Fatalf("repeat sign-on status %d: %s", status, body)
	}
	var second struct {
		ID      string `json:"id"`
		Created bool   `json:"created"`
	}
	if err := json.Unmarshal(body, &second); err != nil {
		t.Fatalf("decode repeat sign-on: %v", err)
	}
	if second.Created || second.ID != first.ID {
		t.Fatalf("repeat sign-on must return the original record")
	}

	// The scanned state flips to signed.
	status, body = doJSON(t, http.MethodGet, baseURL+"/project-sign?project="+project.ID, driver.AccessToken, nil)
	if status != http.StatusOK {
		t.Fatalf("deep link status %d: %s", status, body)
	}
	if err := json.Unmarshal(body, &state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if !state.Signed {
		t.Fatalf("expected signed state after sign-on")
	}

	// The enrollment was created on the way through.
	status, body = doJSON(t, http.MethodGet, baseURL+"/v1/projects/"+project.ID+"/enrollments", admin.AccessToken, nil)
	if status != http.StatusOK {
		t.Fatalf("enrollments status %d: %s", status, body)
	}
	var enrollments []struct {
		UserID string `json:"user_id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &enrollments); err != nil {
		t.Fatalf("decode enrollments: %v", err)
	}
	found := false
	for _, e := range enrollments {
		if e.UserID == driver.UserID && e.Status == "approved" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected approved enrollment for driver")
	}
}

func TestDocumentSignatureFlow(t *testing.T) {
	baseURL := requireIntegration(t)
	admin := login(t, baseURL, getenv("ADMIN_EMAIL", "admin@demo.local"), getenv("ADMIN_PASSWORD", "dev-password"))
	driver := login(t, baseURL, getenv("DRIVER_EMAIL", "driver@demo.local"), getenv("DRIVER_PASSWORD", "dev-password"))

	status, body := doJSON(t, http.MethodPost, baseURL+"/v1/projects", admin.AccessToken, map[string]interface{}{
		"name": fmt.Sprintf("Integration Docs %d", os.Getpid()),
	})
	if status != http.StatusCreated {
		t.Fatalf("create project status %d: %s", status, body)
	}
	var project struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &project); err != nil {
		t.Fatalf("decode project: %v", err)
	}

	status, body = doJSON(t, http.MethodPost, baseURL+"/v1/projects/"+project.ID+"/documents", admin.AccessToken, map[string]interface{}{
		"title":              "Site Induction Pack",
		"document_type":      "Induction Checklist",
		"requires_signature": true,
	})
	if status != http.StatusCreated {
		t.Fatalf("create document status %d: %s", status, body)
	}
	var doc struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		t.Fatalf("decode document: %v", err)
	}

	status, body = doJSON(t, http.MethodPost, baseURL+"/v1/documents/"+doc.ID+"/assignments", admin.AccessToken, map[string]interface{}{
		"user_id":  driver.UserID,
		"can_sign": true,
	})
	if status != http.StatusCreated && status != http.StatusOK {
		t.Fatalf("assignment status %d: %s", status, body)
	}

	status, body = doJSON(t, http.MethodPost, baseURL+"/v1/documents/"+doc.ID+"/signature", driver.AccessToken, signOnPayload)
	if status != http.StatusCreated {
		t.Fatalf("signature status %d: %s", status, body)
	}

	// A second signature is the idempotent no-op.
	status, body = doJSON(t, http.MethodPost, baseURL+"/v1/documents/"+doc.ID+"/signature", driver.AccessToken, signOnPayload)
	if status != http.StatusOK {
		t.Fatalf("repeat signature status %d: %s", status, body)
	}

	// Signing the document enrolled the driver on its project.
	status, body = doJSON(t, http.MethodGet, baseURL+"/v1/projects/"+project.ID+"/enrollments", admin.AccessToken, nil)
	if status != http.StatusOK {
		t.Fatalf("enrollments status %d: %s", status, body)
	}
	var enrollments []struct {
		UserID string `json:"user_id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &enrollments); err != nil {
		t.Fatalf("decode enrollments: %v", err)
	}
	enrolled := false
	for _, e := range enrollments {
		if e.UserID == driver.UserID && e.Status == "approved" {
			enrolled = true
		}
	}
	if !enrolled {
		t.Fatalf("expected document signing to enroll the driver on the project")
	}

	// The signed document shows up in the driver's views.
	status, body = doJSON(t, http.MethodGet, baseURL+"/v1/me/signatures", driver.AccessToken, nil)
	if status != http.StatusOK {
		t.Fatalf("my signatures status %d: %s", status, body)
	}
	var signatures []struct {
		DocumentID string `json:"document_id"`
	}
	if err := json.Unmarshal(body, &signatures); err != nil {
		t.Fatalf("decode signatures: %v", err)
	}
	found := false
	for _, sig := range signatures {
		if sig.DocumentID == doc.ID {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected signature in my signatures view")
	}
}

func TestReportDownloads(t *testing.T) {
	baseURL := requireIntegration(t)
	admin := login(t, baseURL, getenv("ADMIN_EMAIL", "admin@demo.local"), getenv("ADMIN_PASSWORD", "dev-password"))

	status, body := doJSON(t, http.MethodPost, baseURL+"/v1/projects", admin.AccessToken, map[string]interface{}{
		"name": fmt.Sprintf("Integration Reports %d", os.Getpid()),
	})
	if status != http.StatusCreated {
		t.Fatalf("create project status %d: %s", status, body)
	}
	var project struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &project); err != nil {
		t.Fatalf("decode project: %v", err)
	}

	status, body = doJSON(t, http.MethodGet, baseURL+"/v1/projects/"+project.ID+"/signon-report.pdf", admin.AccessToken, nil)
	if status != http.StatusOK {
		t.Fatalf("report status %d: %s", status, body)
	}
	if !bytes.HasPrefix(body, []byte("%PDF")) {
		t.Fatalf("expected PDF payload")
	}

	status, body = doJSON(t, http.MethodGet, baseURL+"/v1/projects/"+project.ID+"/qr.png", admin.AccessToken, nil)
	if status != http.StatusOK {
		t.Fatalf("qr status %d", status)
	}
	if !bytes.HasPrefix(body, []byte("\x89PNG")) {
		t.Fatalf("expected PNG payload")
	}
}

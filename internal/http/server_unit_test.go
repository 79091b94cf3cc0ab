package http

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tfsgroup/siteportal/internal/auth"
	"github.com/tfsgroup/siteportal/internal/config"
	"github.com/tfsgroup/siteportal/internal/signature"
)

func testServer() *Server {
	cfg := config.Config{
		JWTSecret:      "unit-test-secret",
		JWTIssuer:      "siteportal-test",
		AccessTokenTTL: time.Minute,
		BaseURL:        "http://localhost:8080",
	}
	return NewServer(cfg, nil, nil, nil)
}

func testToken(t *testing.T, s *Server, userID, role string) string {
	t.Helper()
	token, err := auth.NewAccessToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, s.cfg.AccessTokenTTL, auth.Claims{
		UserID: userID,
		Role:   role,
	})
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	return token
}

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"Bearer abc":  "abc",
		"bearer abc":  "abc",
		"Bearer  abc": "abc",
		"Basic abc":   "",
		"abc":         "",
		"":            "",
	}
	for header, expect := range cases {
		if got := bearerToken(header); got != expect {
			t.Fatalf("bearerToken(%q) = %q, want %q", header, got, expect)
		}
	}
}

func TestValidRole(t *testing.T) {
	for _, role := range []string{"driver", "admin", "manager", "contractor"} {
		if !validRole(role) {
			t.Fatalf("expected role %s to be valid", role)
		}
	}
	if validRole("student") || validRole("") {
		t.Fatalf("expected unknown roles to be invalid")
	}
}

func TestValidDocumentType(t *testing.T) {
	for _, value := range []string{"SWMS", "JSEA", "Site Safety Plan", "Demolition Plan", "Induction Checklist", "Training Certificate", "Other"} {
		if !validDocumentType(value) {
			t.Fatalf("expected type %s to be valid", value)
		}
	}
	for _, value := range []string{"swms", "contract", ""} {
		if validDocumentType(value) {
			t.Fatalf("expected type %q to be invalid", value)
		}
	}
}

func TestParseLimit(t *testing.T) {
	cases := map[string]int32{
		"25":         25,
		"1000":       1000,
		"0":          50,
		"-5":         50,
		"abc":        50,
		"":           50,
		"1001":       50,
		"2147483648": 50, // overflows int32
		"9999999999": 50,
	}
	for raw, expect := range cases {
		target := "/v1/clients"
		if raw != "" {
			target += "?limit=" + raw
		}
		req := httptest.NewRequest("GET", target, nil)
		if got := parseLimit(req, 50); got != expect {
			t.Fatalf("parseLimit(%q) = %d, want %d", raw, got, expect)
		}
	}
}

func TestValidLoadType(t *testing.T) {
	if !validLoadType("Mixed Waste") || !validLoadType("Asbestos") {
		t.Fatalf("expected known load types to be valid")
	}
	if validLoadType("mixed waste") || validLoadType("") {
		t.Fatalf("load types are exact-match")
	}
}

func TestDeepLinkRedirectsAnonymousScan(t *testing.T) {
	s := testServer()
	router := s.Router()

	req := httptest.NewRequest("GET", "/project-sign?project=7b0d2b46-9a3c-4f60-8af1-2d1dca0a8e24", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != 302 {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
	location := rec.Header().Get("Location")
	if !strings.HasPrefix(location, "/auth?redirect=") {
		t.Fatalf("expected auth redirect, got %q", location)
	}
	if !strings.Contains(location, "project-sign") || !strings.Contains(location, "7b0d2b46") {
		t.Fatalf("redirect must preserve the original link, got %q", location)
	}
}

func TestDeepLinkRejectsBadToken(t *testing.T) {
	s := testServer()
	router := s.Router()

	req := httptest.NewRequest("GET", "/document-sign?doc=7b0d2b46-9a3c-4f60-8af1-2d1dca0a8e24", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != 302 {
		t.Fatalf("expected bad token to fall back to redirect, got %d", rec.Code)
	}
}

func TestSignOnSubmitGate(t *testing.T) {
	s := testServer()
	router := s.Router()
	token := testToken(t, s, "3f9c2f9e-6f04-4a17-9f68-0a0c3a3525d0", "driver")

	stroke := `[[{"x":10,"y":10},{"x":60,"y":40}]]`

	cases := []struct {
		name       string
		body       string
		wantStatus int
		wantError  string
	}{
		{
			name:       "neither acknowledged nor signed",
			body:       `{"acknowledged":false,"strokes":[]}`,
			wantStatus: 400,
			wantError:  "acknowledgement_required",
		},
		{
			name:       "signed but not acknowledged",
			body:       `{"acknowledged":false,"strokes":` + stroke + `}`,
			wantStatus: 400,
			wantError:  "acknowledgement_required",
		},
		{
			name:       "acknowledged but not signed",
			body:       `{"acknowledged":true,"strokes":[]}`,
			wantStatus: 400,
			wantError:  "signature_required",
		},
		{
			name:       "single point draws nothing",
			body:       `{"acknowledged":true,"strokes":[[{"x":10,"y":10}]]}`,
			wantStatus: 400,
			wantError:  "signature_required",
		},
	}

	for _, tc := range cases {
		req := httptest.NewRequest("POST", "/v1/projects/7b0d2b46-9a3c-4f60-8af1-2d1dca0a8e24/sign-on", strings.NewReader(tc.body))
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != tc.wantStatus {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.wantStatus, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), tc.wantError) {
			t.Fatalf("%s: expected error %q, got %s", tc.name, tc.wantError, rec.Body.String())
		}
	}
}

func TestRasterizeStrokes(t *testing.T) {
	if _, err := rasterizeStrokes(nil, nil); err == nil {
		t.Fatalf("expected empty drawing to error")
	}

	strokes := [][]signature.Point{{{X: 5, Y: 5}, {X: 180, Y: 70}}}
	uri, err := rasterizeStrokes(strokes, &canvasGeometry{DisplayWidth: 200, DisplayHeight: 75})
	if err != nil {
		t.Fatalf("rasterize error: %v", err)
	}
	if !signature.IsImageData(uri) {
		t.Fatalf("expected image data uri")
	}
	if _, err := signature.DecodeDataURI(uri); err != nil {
		t.Fatalf("exported uri must decode: %v", err)
	}
}

func TestManagementGuard(t *testing.T) {
	s := testServer()
	router := s.Router()

	// Drivers cannot reach management surfaces.
	token := testToken(t, s, "3f9c2f9e-6f04-4a17-9f68-0a0c3a3525d0", "driver")
	req := httptest.NewRequest("GET", "/v1/clients", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != 403 {
		t.Fatalf("expected 403 for driver, got %d", rec.Code)
	}

	// No token at all is a 401.
	req = httptest.NewRequest("GET", "/v1/clients", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != 401 {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
}

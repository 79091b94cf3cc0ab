package report

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tfsgroup/siteportal/internal/model"
	"github.com/tfsgroup/siteportal/internal/qr"
	"github.com/tfsgroup/siteportal/internal/signature"
)

func TestSignOnReportEmpty(t *testing.T) {
	data, err := SignOnReport(qr.KindProject, "Main St Demolition", nil)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	assertPDF(t, data)
}

func TestSignOnReportPaginates(t *testing.T) {
	entries := make([]model.SignatureEntry, 80)
	for i := range entries {
		entries[i] = model.SignatureEntry{
			UserID:   fmt.Sprintf("user-%d", i),
			Name:     fmt.Sprintf("Driver %d", i),
			SignedAt: time.Now().Add(-time.Duration(i) * time.Hour),
		}
	}
	data, err := SignOnReport(qr.KindProject, "Main St Demolition", entries)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	assertPDF(t, data)
	// "/Type /Page" matches the page tree node too, so subtract it.
	pages := bytes.Count(data, []byte("/Type /Page")) - bytes.Count(data, []byte("/Type /Pages"))
	if pages < 3 {
		t.Fatalf("expected 80 rows to span at least 3 pages, got %d", pages)
	}
}

func TestSignSheetWithSignatures(t *testing.T) {
	c := signature.NewCanvas(signature.DefaultWidth, signature.DefaultHeight)
	c.StartStroke(signature.Point{X: 20, Y: 40})
	c.ExtendStroke(signature.Point{X: 180, Y: 90})
	c.EndStroke()
	uri, err := c.Export()
	if err != nil {
		t.Fatalf("export signature: %v", err)
	}

	version := "3"
	doc := model.SiteDocument{
		ID:           "doc-1",
		Title:        "Site Induction Pack",
		DocumentType: "Induction Checklist",
		Version:      &version,
		ProjectName:  "Main St Demolition",
	}
	qrPNG, err := qr.Encode(qr.SignOnURL("https://portal.example.com", qr.KindDocument, uuid.New()))
	if err != nil {
		t.Fatalf("encode qr: %v", err)
	}

	placeholder := "signed"
	entries := []model.SignatureEntry{
		{UserID: "u1", Name: "Alex Mason", SignatureData: &uri, SignedAt: time.Now()},
		{UserID: "u2", Name: "Sam Reed", SignatureData: &placeholder, SignedAt: time.Now()},
		{UserID: "u3", Name: "Pat Quinn", SignedAt: time.Now()},
	}

	data, err := SignSheet(doc, qrPNG, entries)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	assertPDF(t, data)
}

func TestSignSheetEmpty(t *testing.T) {
	doc := model.SiteDocument{Title: "SWMS", DocumentType: "SWMS", ProjectName: "Stage 2"}
	data, err := SignSheet(doc, nil, nil)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	assertPDF(t, data)
}

func TestFilenames(t *testing.T) {
	if got := SignOnReportFilename(qr.KindProject, "Main St Demolition"); got != "project-signon-report-main-st-demolition.pdf" {
		t.Fatalf("unexpected report filename %q", got)
	}
	if got := SignSheetFilename("Site Induction Pack"); got != "site-induction-pack_signon_sheet.pdf" {
		t.Fatalf("unexpected sheet filename %q", got)
	}
}

func assertPDF(t *testing.T, data []byte) {
	t.Helper()
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Fatalf("expected PDF magic, got %q", data[:min(len(data), 8)])
	}
}

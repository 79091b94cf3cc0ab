// Package report renders the printable PDF artifacts: the sign-on
// activity report for a project or document, and the physical sign-on
// sheet posted on site next to a QR code.
package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/tfsgroup/siteportal/internal/model"
	"github.com/tfsgroup/siteportal/internal/qr"
	"github.com/tfsgroup/siteportal/internal/signature"
)

// A4 layout in millimetres.
const (
	pageMargin      = 15
	contentWidth    = 180
	printableBottom = 270
	dateFormat      = "2 Jan 2006"
	timestampFormat = "2 Jan 2006, 3:04 PM"
)

// SignOnReportFilename names the downloaded activity report, e.g.
// "project-signon-report-main-st-demolition.pdf".
func SignOnReportFilename(kind qr.Kind, name string) string {
	return fmt.Sprintf("%s-signon-report-%s.pdf", kind, qr.Slugify(name))
}

// SignSheetFilename names the printable sheet after the document title.
func SignSheetFilename(title string) string {
	return fmt.Sprintf("%s_signon_sheet.pdf", qr.Slugify(title))
}

// SignOnReport renders the activity report for one project or document.
// Entries are expected newest-first; the table paginates past the
// printable height and re-draws its header on each page.
func SignOnReport(kind qr.Kind, name string, entries []model.SignatureEntry) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(contentWidth, 10, "Sign-On Report", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(contentWidth, 6, fmt.Sprintf("%s: %s", titleFor(kind), name), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(110, 110, 110)
	pdf.CellFormat(contentWidth, 5, "Generated "+time.Now().Format(timestampFormat), "", 1, "L", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(4)

	drawReportHeader(pdf)

	if len(entries) == 0 {
		pdf.SetFont("Helvetica", "I", 10)
		pdf.CellFormat(contentWidth, 8, "No sign-ons recorded", "1", 1, "C", false, 0, "")
	}

	for i, entry := range entries {
		if pdf.GetY() > printableBottom {
			pdf.AddPage()
			drawReportHeader(pdf)
		}
		fill := i%2 == 1
		pdf.SetFillColor(240, 240, 240)
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(110, 8, entry.Name, "1", 0, "L", fill, 0, "")
		pdf.CellFormat(70, 8, entry.SignedAt.Format(timestampFormat), "1", 1, "L", fill, 0, "")
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(contentWidth, 6, fmt.Sprintf("Total Sign-Ons: %d", len(entries)), "", 1, "L", false, 0, "")

	return output(pdf)
}

// SignSheet renders the printable sheet for a document: a title block,
// the QR code linking back to the signature page, and the collected
// signatures with their rasterized images embedded.
func SignSheet(doc model.SiteDocument, qrPNG []byte, entries []model.SignatureEntry) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(125, 10, doc.Title, "", 2, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(125, 5, "Type: "+doc.DocumentType, "", 2, "L", false, 0, "")
	if doc.Version != nil {
		pdf.CellFormat(125, 5, "Version: "+*doc.Version, "", 2, "L", false, 0, "")
	}
	pdf.CellFormat(125, 5, "Project: "+doc.ProjectName, "", 2, "L", false, 0, "")
	pdf.SetTextColor(110, 110, 110)
	pdf.CellFormat(125, 5, "Generated "+time.Now().Format(dateFormat), "", 2, "L", false, 0, "")
	pdf.SetTextColor(0, 0, 0)

	if len(qrPNG) > 0 {
		if err := drawQRBox(pdf, qrPNG); err != nil {
			return nil, err
		}
	}
	pdf.SetY(62)

	drawSheetHeader(pdf)

	if len(entries) == 0 {
		pdf.SetFont("Helvetica", "I", 10)
		pdf.CellFormat(contentWidth, 10, "No signatures yet", "1", 1, "C", false, 0, "")
	}

	for i, entry := range entries {
		if pdf.GetY() > printableBottom-20 {
			pdf.AddPage()
			drawSheetHeader(pdf)
		}
		if err := drawSignatureRow(pdf, i, entry); err != nil {
			return nil, err
		}
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(contentWidth, 6, fmt.Sprintf("Total Signatures: %d", len(entries)), "", 1, "L", false, 0, "")

	return output(pdf)
}

func titleFor(kind qr.Kind) string {
	if kind == qr.KindDocument {
		return "Document"
	}
	return "Project"
}

func drawReportHeader(pdf *gofpdf.Fpdf) {
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(220, 220, 220)
	pdf.CellFormat(110, 8, "Name", "1", 0, "L", true, 0, "")
	pdf.CellFormat(70, 8, "Date", "1", 1, "L", true, 0, "")
}

func drawSheetHeader(pdf *gofpdf.Fpdf) {
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(220, 220, 220)
	pdf.CellFormat(70, 8, "Name", "1", 0, "L", true, 0, "")
	pdf.CellFormat(60, 8, "Signature", "1", 0, "L", true, 0, "")
	pdf.CellFormat(50, 8, "Date", "1", 1, "L", true, 0, "")
}

func drawQRBox(pdf *gofpdf.Fpdf, png []byte) error {
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("sheet-qr", opts, bytes.NewReader(png))
	if pdf.Err() {
		return fmt.Errorf("embed qr: %w", pdf.Error())
	}
	const boxX, boxY, boxSize = 150, 15, 40
	pdf.Rect(boxX, boxY, boxSize, boxSize+6, "D")
	pdf.ImageOptions("sheet-qr", boxX+3, boxY+3, boxSize-6, boxSize-6, false, opts, 0, "")
	pdf.SetXY(boxX, boxY+boxSize-2)
	pdf.SetFont("Helvetica", "", 8)
	pdf.CellFormat(boxSize, 6, "Scan to sign", "", 0, "C", false, 0, "")
	return nil
}

func drawSignatureRow(pdf *gofpdf.Fpdf, i int, entry model.SignatureEntry) error {
	const rowHeight = 16
	fill := i%2 == 1
	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Helvetica", "", 10)

	x, y := pdf.GetXY()
	pdf.CellFormat(70, rowHeight, entry.Name, "1", 0, "L", fill, 0, "")

	sigX := pdf.GetX()
	switch {
	case entry.SignatureData != nil && signature.IsImageData(*entry.SignatureData):
		pdf.CellFormat(60, rowHeight, "", "1", 0, "L", fill, 0, "")
		raw, err := signature.DecodeDataURI(*entry.SignatureData)
		if err != nil {
			return fmt.Errorf("signature for %s: %w", entry.UserID, err)
		}
		opts := gofpdf.ImageOptions{ImageType: "PNG"}
		imgName := fmt.Sprintf("sig-%s-%d", entry.UserID, i)
		pdf.RegisterImageOptionsReader(imgName, opts, bytes.NewReader(raw))
		if pdf.Err() {
			return fmt.Errorf("embed signature for %s: %w", entry.UserID, pdf.Error())
		}
		pdf.ImageOptions(imgName, sigX+2, y+2, 40, rowHeight-4, false, opts, 0, "")
	case entry.SignatureData != nil:
		pdf.CellFormat(60, rowHeight, "[signed]", "1", 0, "L", fill, 0, "")
	default:
		pdf.CellFormat(60, rowHeight, "[signature]", "1", 0, "L", fill, 0, "")
	}

	pdf.SetXY(x+130, y)
	pdf.CellFormat(50, rowHeight, entry.SignedAt.Format(timestampFormat), "1", 1, "L", fill, 0, "")
	return nil
}

func output(pdf *gofpdf.Fpdf) ([]byte, error) {
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

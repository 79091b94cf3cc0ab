// Package qr builds the deep links drivers scan on site and renders
// them as PNG QR codes for laminated site posters and sign-on sheets.
package qr

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"
)

// Kind selects which sign-on flow a code points at.
type Kind string

const (
	KindProject  Kind = "project"
	KindDocument Kind = "document"
)

// PNG rendering defaults. 300px scans reliably from an A4 printout.
const (
	imageSize = 300
)

// SignOnURL returns the deep link a scanned code resolves to.
// Project codes land on the daily sign-on page, document codes on the
// signature page for that document.
func SignOnURL(baseURL string, kind Kind, id uuid.UUID) string {
	base := strings.TrimRight(baseURL, "/")
	switch kind {
	case KindDocument:
		return fmt.Sprintf("%s/document-sign?doc=%s", base, id)
	default:
		return fmt.Sprintf("%s/project-sign?project=%s", base, id)
	}
}

// Encode renders the URL as a black-on-white PNG.
func Encode(url string) ([]byte, error) {
	png, err := qrcode.Encode(url, qrcode.Medium, imageSize)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}

// Filename names a downloaded QR image after the thing it signs onto,
// e.g. "project-main-st-demolition-qr.png".
func Filename(kind Kind, name string) string {
	return fmt.Sprintf("%s-%s-qr.png", kind, Slugify(name))
}

// Slugify lowercases a display name and collapses anything that is not
// a letter or digit into single hyphens.
func Slugify(name string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

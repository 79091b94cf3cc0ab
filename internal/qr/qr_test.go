package qr

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/google/uuid"
)

func TestSignOnURL(t *testing.T) {
	id := uuid.MustParse("7b0d2b46-9a3c-4f60-8af1-2d1dca0a8e24")

	got := SignOnURL("https://portal.example.com/", KindProject, id)
	want := "https://portal.example.com/project-sign?project=7b0d2b46-9a3c-4f60-8af1-2d1dca0a8e24"
	if got != want {
		t.Fatalf("project url = %q, want %q", got, want)
	}

	got = SignOnURL("https://portal.example.com", KindDocument, id)
	want = "https://portal.example.com/document-sign?doc=7b0d2b46-9a3c-4f60-8af1-2d1dca0a8e24"
	if got != want {
		t.Fatalf("document url = %q, want %q", got, want)
	}
}

func TestEncodeProducesPNG(t *testing.T) {
	id := uuid.New()
	data, err := Encode(SignOnURL("https://portal.example.com", KindProject, id))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("expected valid png: %v", err)
	}
	if cfg.Width != imageSize || cfg.Height != imageSize {
		t.Fatalf("expected %dx%d image, got %dx%d", imageSize, imageSize, cfg.Width, cfg.Height)
	}
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Main St Demolition":       "main-st-demolition",
		"Stage 2 - Strip Out":      "stage-2-strip-out",
		"  padded  ":               "padded",
		"SWMS (Rev. 3)":            "swms-rev-3",
		"":                         "",
		"---":                      "",
		"Asbestos Removal Permit!": "asbestos-removal-permit",
	}
	for in, want := range cases {
		if got := Slugify(in); got != want {
			t.Fatalf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFilename(t *testing.T) {
	got := Filename(KindDocument, "Site Induction Pack")
	if got != "document-site-induction-pack-qr.png" {
		t.Fatalf("unexpected filename %q", got)
	}
}

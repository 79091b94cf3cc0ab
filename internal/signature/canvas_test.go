package signature

import (
	"image"
	"image/color"
	"strings"
	"testing"
)

func TestTransformEdges(t *testing.T) {
	// 1:1 display leaves coordinates untouched.
	identity := NewTransform(400, 150, 400, 150)
	if p := identity.Apply(Point{X: 0, Y: 0}); p.X != 0 || p.Y != 0 {
		t.Fatalf("expected origin to stay at origin, got %+v", p)
	}
	if p := identity.Apply(Point{X: 400, Y: 150}); p.X != 400 || p.Y != 150 {
		t.Fatalf("expected max corner to stay put, got %+v", p)
	}

	// Canvas buffer twice the CSS size (e.g. retina).
	scaled := NewTransform(400, 150, 200, 75)
	if p := scaled.Apply(Point{X: 200, Y: 75}); p.X != 400 || p.Y != 150 {
		t.Fatalf("expected 2x scale to map display max to buffer max, got %+v", p)
	}
	if p := scaled.Apply(Point{X: 0, Y: 0}); p.X != 0 || p.Y != 0 {
		t.Fatalf("expected origin invariant under scale, got %+v", p)
	}

	// Non-uniform scale.
	uneven := NewTransform(400, 150, 300, 50)
	p := uneven.Apply(Point{X: 150, Y: 25})
	if p.X != 200 || p.Y != 75 {
		t.Fatalf("expected (200,75), got %+v", p)
	}
}

func TestTransformDegenerateRect(t *testing.T) {
	tr := NewTransform(400, 150, 0, 0)
	if p := tr.Apply(Point{X: 10, Y: 20}); p.X != 10 || p.Y != 20 {
		t.Fatalf("expected identity for zero-size rect, got %+v", p)
	}
}

func TestCanvasContentTracking(t *testing.T) {
	c := NewCanvas(100, 50)
	if c.HasContent() {
		t.Fatalf("new canvas should have no content")
	}

	// Pointer move without pointer down must not draw.
	c.ExtendStroke(Point{X: 10, Y: 10})
	if c.HasContent() {
		t.Fatalf("extend without start should not mark content")
	}

	// A start alone is not content either.
	c.StartStroke(Point{X: 5, Y: 5})
	if c.HasContent() {
		t.Fatalf("start alone should not mark content")
	}

	c.ExtendStroke(Point{X: 30, Y: 30})
	if !c.HasContent() {
		t.Fatalf("expected content after stroke segment")
	}

	c.EndStroke()
	c.ExtendStroke(Point{X: 50, Y: 40})
	if !c.HasContent() {
		t.Fatalf("content flag must persist after stroke end")
	}
}

func TestCanvasClearIsTrueReset(t *testing.T) {
	c := NewCanvas(60, 40)
	c.StartStroke(Point{X: 5, Y: 5})
	c.ExtendStroke(Point{X: 50, Y: 30})
	if !c.HasContent() {
		t.Fatalf("expected content before clear")
	}

	c.Clear()
	if c.HasContent() {
		t.Fatalf("clear must reset content flag")
	}
	assertAllWhite(t, c.Image())
}

func TestExportBlankCanvasIsWhite(t *testing.T) {
	c := NewCanvas(40, 20)
	uri, err := c.Export()
	if err != nil {
		t.Fatalf("export error: %v", err)
	}
	if !strings.HasPrefix(uri, "data:image/png;base64,") {
		t.Fatalf("expected png data uri prefix")
	}
	assertAllWhite(t, c.Image())
}

func TestExportRoundTrip(t *testing.T) {
	c := NewCanvas(40, 20)
	c.StartStroke(Point{X: 2, Y: 2})
	c.ExtendStroke(Point{X: 35, Y: 15})

	uri, err := c.Export()
	if err != nil {
		t.Fatalf("export error: %v", err)
	}
	if !IsImageData(uri) {
		t.Fatalf("exported uri should be image data")
	}
	raw, err := DecodeDataURI(uri)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if len(raw) == 0 {
		t.Fatalf("expected png bytes")
	}
}

func TestIsImageData(t *testing.T) {
	cases := map[string]bool{
		"data:image/png;base64,iVBOR": true,
		"data:image/jpeg;base64,/9j/": true,
		"signed":                      false,
		"":                            false,
		"https://example.com/sig.png": false,
	}
	for value, expect := range cases {
		if IsImageData(value) != expect {
			t.Fatalf("IsImageData(%q) expected %v", value, expect)
		}
	}
}

func TestDecodeDataURIRejectsPlaceholder(t *testing.T) {
	if _, err := DecodeDataURI("signed"); err == nil {
		t.Fatalf("expected placeholder to fail decoding")
	}
	if _, err := DecodeDataURI("data:image/png;base64,not-base64!!"); err == nil {
		t.Fatalf("expected invalid base64 to fail decoding")
	}
}

func assertAllWhite(t *testing.T, img image.Image) {
	t.Helper()
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			white := color.White
			wr, wg, wb, _ := white.RGBA()
			if r != wr || g != wg || b != wb {
				t.Fatalf("expected white pixel at (%d,%d)", x, y)
			}
		}
	}
}

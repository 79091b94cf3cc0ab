// Package signature rasterizes captured signature strokes into the PNG
// data URIs stored on sign-on and signature records.
package signature

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/png"
	"strings"

	"github.com/fogleman/gg"
)

const (
	DefaultWidth  = 400
	DefaultHeight = 150

	strokeWidth = 2
)

const dataURIPrefix = "data:image/png;base64,"

// Canvas is a drawing surface for one signature capture session. Strokes
// arrive as pointer-down / pointer-move sequences already normalized into
// buffer coordinates.
type Canvas struct {
	dc         *gg.Context
	width      int
	height     int
	last       Point
	active     bool
	hasContent bool
}

func NewCanvas(width, height int) *Canvas {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	c := &Canvas{width: width, height: height}
	c.Clear()
	return c
}

// StartStroke begins a new path at p.
func (c *Canvas) StartStroke(p Point) {
	if c == nil || c.dc == nil {
		return
	}
	c.last = p
	c.active = true
}

// ExtendStroke draws a segment from the previous point to p. Points
// arriving without a preceding StartStroke are dropped, matching pointer
// moves with no button down.
func (c *Canvas) ExtendStroke(p Point) {
	if c == nil || c.dc == nil || !c.active {
		return
	}
	c.dc.DrawLine(c.last.X, c.last.Y, p.X, p.Y)
	c.dc.Stroke()
	c.last = p
	c.hasContent = true
}

// EndStroke closes the current path (pointer-up / pointer-leave).
func (c *Canvas) EndStroke() {
	if c == nil {
		return
	}
	c.active = false
}

// Clear repaints the surface opaque white and resets content state.
// Downstream consumers assume a white background, not transparency.
func (c *Canvas) Clear() {
	if c == nil {
		return
	}
	c.dc = gg.NewContext(c.width, c.height)
	c.dc.SetRGB(1, 1, 1)
	c.dc.Clear()
	c.dc.SetRGB(0, 0, 0)
	c.dc.SetLineWidth(strokeWidth)
	c.dc.SetLineCap(gg.LineCapRound)
	c.active = false
	c.hasContent = false
}

// HasContent reports whether any stroke segment has been drawn since the
// last Clear. Export is not gated here; callers must check before storing.
func (c *Canvas) HasContent() bool {
	return c != nil && c.hasContent
}

// Export serializes the surface to a PNG data URI. A never-drawn canvas
// exports as a blank white image.
func (c *Canvas) Export() (string, error) {
	if c == nil || c.dc == nil {
		return "", errors.New("canvas not initialized")
	}
	var buf bytes.Buffer
	if err := c.dc.EncodePNG(&buf); err != nil {
		return "", err
	}
	return dataURIPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Image exposes the rendered surface for tests and report embedding.
func (c *Canvas) Image() image.Image {
	if c == nil || c.dc == nil {
		return nil
	}
	return c.dc.Image()
}

// IsImageData reports whether a stored signature value is an embeddable
// image. Some seeding paths store the literal "signed" placeholder instead
// of a raster; those fall back to text in reports.
func IsImageData(value string) bool {
	return strings.HasPrefix(value, "data:image")
}

// DecodeDataURI decodes a PNG data URI back into image bytes.
func DecodeDataURI(value string) ([]byte, error) {
	if !IsImageData(value) {
		return nil, errors.New("not image data")
	}
	idx := strings.Index(value, ",")
	if idx < 0 {
		return nil, errors.New("malformed data uri")
	}
	raw, err := base64.StdEncoding.DecodeString(value[idx+1:])
	if err != nil {
		return nil, err
	}
	if _, err := png.DecodeConfig(bytes.NewReader(raw)); err != nil {
		return nil, err
	}
	return raw, nil
}

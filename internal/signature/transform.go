package signature

// Point is a coordinate pair. Depending on context it is either in
// viewport (CSS pixel) space or canvas buffer space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Transform maps viewport coordinates onto a canvas pixel buffer. The two
// spaces differ whenever the element's on-screen size is not its buffer
// size (high-density screens, resized containers); drawing without the
// scale factors misaligns strokes from the pointer.
type Transform struct {
	ScaleX float64
	ScaleY float64
}

// NewTransform builds the transform for a buffer of bufWidth x bufHeight
// pixels displayed at rectWidth x rectHeight CSS pixels. Degenerate display
// sizes fall back to the identity scale.
func NewTransform(bufWidth, bufHeight int, rectWidth, rectHeight float64) Transform {
	t := Transform{ScaleX: 1, ScaleY: 1}
	if rectWidth > 0 {
		t.ScaleX = float64(bufWidth) / rectWidth
	}
	if rectHeight > 0 {
		t.ScaleY = float64(bufHeight) / rectHeight
	}
	return t
}

func (t Transform) Apply(p Point) Point {
	return Point{X: p.X * t.ScaleX, Y: p.Y * t.ScaleY}
}

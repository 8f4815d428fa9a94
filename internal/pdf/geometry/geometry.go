// Package geometry converts rectangles and points between PDF user space
// (points, origin bottom-left) and render viewport space (pixels, origin top-left).
//
// All functions are pure. Scale factors are derived independently per axis from
// the viewport and native page dimensions so that non-uniform scaling introduced
// by crop boxes is tolerated.
package geometry

import (
	"fmt"
	"math"

	"github.com/golang/geo/r1"
	"github.com/golang/geo/r2"

	pdferrors "github.com/a3tai/pdf-form-overlay/internal/pdf/errors"
)

// Tolerance is the absolute error accepted when comparing mapped coordinates
const Tolerance = 1e-9

// Size is a width/height pair. Native page sizes are in PDF points.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Viewport describes one page's render surface
type Viewport struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Scale  float64 `json:"scale"`
}

// PDFRect is a rectangle in PDF user space given by its corners (x1,y1) and (x2,y2)
type PDFRect struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Rect is a rectangle in viewport pixel space, origin top-left
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Normalize returns r with X1<=X2 and Y1<=Y2
func (r PDFRect) Normalize() PDFRect {
	return PDFRect{
		X1: math.Min(r.X1, r.X2),
		Y1: math.Min(r.Y1, r.Y2),
		X2: math.Max(r.X1, r.X2),
		Y2: math.Max(r.Y1, r.Y2),
	}
}

// Width returns the horizontal extent
func (r PDFRect) Width() float64 { return r.X2 - r.X1 }

// Height returns the vertical extent
func (r PDFRect) Height() float64 { return r.Y2 - r.Y1 }

// ContainsPoint reports whether (x, y) lies inside r, edges included
func (r PDFRect) ContainsPoint(x, y float64) bool {
	n := r.Normalize()
	box := r2.Rect{X: r1.Interval{Lo: n.X1, Hi: n.X2}, Y: r1.Interval{Lo: n.Y1, Hi: n.Y2}}
	return box.ContainsPoint(r2.Point{X: x, Y: y})
}

// ApproxEqual compares two PDF rects within Tolerance
func (r PDFRect) ApproxEqual(o PDFRect) bool {
	return approx(r.X1, o.X1) && approx(r.Y1, o.Y1) && approx(r.X2, o.X2) && approx(r.Y2, o.Y2)
}

// Contains reports whether the viewport point (x, y) lies inside r, edges included
func (r Rect) Contains(x, y float64) bool {
	return r.bounds().ContainsPoint(r2.Point{X: x, Y: y})
}

// Center returns the midpoint of r
func (r Rect) Center() (float64, float64) {
	c := r.bounds().Center()
	return c.X, c.Y
}

func (r Rect) bounds() r2.Rect {
	return r2.RectFromPoints(r2.Point{X: r.X, Y: r.Y}, r2.Point{X: r.X + r.Width, Y: r.Y + r.Height})
}

// ApproxEqual compares two viewport rects within Tolerance
func (r Rect) ApproxEqual(o Rect) bool {
	return approx(r.X, o.X) && approx(r.Y, o.Y) && approx(r.Width, o.Width) && approx(r.Height, o.Height)
}

func (r Rect) String() string {
	return fmt.Sprintf("(%.2f,%.2f %.2fx%.2f)", r.X, r.Y, r.Width, r.Height)
}

// NewViewport computes the viewport for a page of the given native size at scale
func NewViewport(native Size, scale float64) (Viewport, error) {
	if err := checkSize(native); err != nil {
		return Viewport{}, err
	}
	if !finitePositive(scale) {
		return Viewport{}, pdferrors.Geometry("invalid render scale").
			WithContext(fmt.Sprintf("scale=%v", scale))
	}
	return Viewport{
		Width:  native.Width * scale,
		Height: native.Height * scale,
		Scale:  scale,
	}, nil
}

// Scales returns the independent per-axis conversion factors from PDF points to pixels
func Scales(native Size, vp Viewport) (scaleX, scaleY float64, err error) {
	if err := checkSize(native); err != nil {
		return 0, 0, err
	}
	if !finitePositive(vp.Width) || !finitePositive(vp.Height) {
		return 0, 0, pdferrors.Geometry("degenerate viewport").
			WithContext(fmt.Sprintf("viewport=%vx%v", vp.Width, vp.Height))
	}
	return vp.Width / native.Width, vp.Height / native.Height, nil
}

// ToViewport maps a PDF-space rectangle into viewport space, flipping the y axis
func ToViewport(r PDFRect, native Size, vp Viewport) (Rect, error) {
	sx, sy, err := Scales(native, vp)
	if err != nil {
		return Rect{}, err
	}
	n := r.Normalize()
	return Rect{
		X:      n.X1 * sx,
		Y:      vp.Height - n.Y2*sy,
		Width:  (n.X2 - n.X1) * sx,
		Height: (n.Y2 - n.Y1) * sy,
	}, nil
}

// ToPDF inverts ToViewport. The result is always normalized, so the round trip
// returns r.Normalize() for a PDF rect given with x1 > x2 or y1 > y2.
func ToPDF(r Rect, native Size, vp Viewport) (PDFRect, error) {
	sx, sy, err := Scales(native, vp)
	if err != nil {
		return PDFRect{}, err
	}
	return PDFRect{
		X1: r.X / sx,
		Y1: (vp.Height - r.Y - r.Height) / sy,
		X2: (r.X + r.Width) / sx,
		Y2: (vp.Height - r.Y) / sy,
	}, nil
}

// ScreenToViewport rescales a pointer position from the displayed raster size to
// viewport pixels. A zero displayed dimension means the raster is shown unscaled.
func ScreenToViewport(x, y float64, displayed Size, vp Viewport) (float64, float64) {
	if displayed.Width > 0 {
		x *= vp.Width / displayed.Width
	}
	if displayed.Height > 0 {
		y *= vp.Height / displayed.Height
	}
	return x, y
}

func checkSize(s Size) error {
	if !finitePositive(s.Width) || !finitePositive(s.Height) {
		return pdferrors.Geometry("degenerate page size").
			WithContext(fmt.Sprintf("size=%vx%v", s.Width, s.Height))
	}
	return nil
}

func finitePositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

func approx(a, b float64) bool {
	return math.Abs(a-b) <= Tolerance*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

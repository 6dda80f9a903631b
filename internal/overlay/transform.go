// Package overlay holds the sticker editor: the overlay transform, the
// drag and resize/rotate gestures that mutate it, and the compositing step
// that turns base image + sticker + transform into a single PNG.
package overlay

import (
	"fmt"
	"math"
)

// DefaultSize is the long-edge size of a freshly placed sticker.
const DefaultSize = 100

// Layout is the rendered size of the base image. All transform
// coordinates are local to this box.
type Layout struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (l Layout) empty() bool { return l.Width <= 0 || l.Height <= 0 }

// Size limits for any canvas the package allocates, whether it comes from a
// client layout or from a decoded image header.
const (
	MaxSide   = 4096
	MaxPixels = 16 << 20
)

func withinBudget(w, h float64) bool {
	return w <= MaxSide && h <= MaxSide && w*h <= MaxPixels
}

// check rejects a layout that is not finite or would exceed the canvas
// budget. An empty layout is fine: the base keeps its native size.
func (l Layout) check() error {
	if !finite(l.Width) || !finite(l.Height) {
		return fmt.Errorf("%w: layout %vx%v", ErrInvalidTransform, l.Width, l.Height)
	}
	if !l.empty() && !withinBudget(l.Width, l.Height) {
		return fmt.Errorf("%w: layout %.0fx%.0f exceeds %dx%d or %d pixels", ErrInvalidTransform, l.Width, l.Height, MaxSide, MaxSide, MaxPixels)
	}
	return nil
}

// Transform places the overlay box: X/Y is its top-left corner, Rotation is
// in degrees clockwise about the box centre and may be any finite value.
type Transform struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Rotation float64 `json:"rotation"`
}

// Angle returns the rotation normalised to [0, 360).
func (t Transform) Angle() float64 {
	a := math.Mod(t.Rotation, 360)
	if a < 0 {
		a += 360
	}
	return a
}

// Center returns the pivot the rotation is applied around.
func (t Transform) Center() (float64, float64) {
	return t.X + t.Width/2, t.Y + t.Height/2
}

// Valid reports whether every field is finite and the box has a size.
func (t Transform) Valid() bool {
	for _, v := range []float64{t.X, t.Y, t.Width, t.Height, t.Rotation} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return t.Width > 0 && t.Height > 0
}

// centered builds the reset transform: long edge = size, aspect locked to
// the asset, centred in the layout, no rotation.
func centered(l Layout, size, aspect float64) Transform {
	if !finite(aspect) || aspect <= 0 {
		aspect = 1
	}
	w, h := size, size
	if aspect >= 1 {
		h = size / aspect
	} else {
		w = size * aspect
	}
	return Transform{
		X:      (l.Width - w) / 2,
		Y:      (l.Height - h) / 2,
		Width:  w,
		Height: h,
	}
}

// clamp keeps the box inside the layout. Oversized boxes pin to the origin.
func clamp(t Transform, l Layout) Transform {
	if l.empty() {
		return t
	}
	t.X = math.Max(0, math.Min(t.X, l.Width-t.Width))
	t.Y = math.Max(0, math.Min(t.Y, l.Height-t.Height))
	return t
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func degrees(rad float64) float64 { return rad * 180 / math.Pi }

func radians(deg float64) float64 { return deg * math.Pi / 180 }

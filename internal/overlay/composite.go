package overlay

import (
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// Compose renders base and sticker into one raster the size of layout.
// The base is scaled to the layout (its native size when layout is empty);
// the sticker is scaled to the transform's box and rotated about the box
// centre. sticker or t may be nil, in which case only the base is drawn.
// Identical inputs always produce identical pixels.
func Compose(base, sticker image.Image, l Layout, t *Transform) (*image.NRGBA, error) {
	if base == nil {
		return nil, ErrNoBase
	}
	bb := base.Bounds()
	if bb.Empty() {
		return nil, fmt.Errorf("%w: empty base image", ErrDecode)
	}

	if err := l.check(); err != nil {
		return nil, err
	}
	w, h := bb.Dx(), bb.Dy()
	if !l.empty() {
		w, h = int(math.Round(l.Width)), int(math.Round(l.Height))
	}
	if w <= 0 || h <= 0 || !withinBudget(float64(w), float64(h)) {
		return nil, fmt.Errorf("%w: layout %dx%d", ErrInvalidTransform, w, h)
	}

	var canvas *image.NRGBA
	if w == bb.Dx() && h == bb.Dy() {
		canvas = imaging.Clone(base)
	} else {
		canvas = imaging.Resize(base, w, h, imaging.Lanczos)
	}

	if sticker == nil || t == nil {
		return canvas, nil
	}
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %+v", ErrInvalidTransform, *t)
	}
	sb := sticker.Bounds()
	if sb.Empty() {
		return nil, fmt.Errorf("%w: empty sticker image", ErrDecode)
	}

	draw.BiLinear.Transform(canvas, stickerMatrix(sb, *t), sticker, sb, draw.Over, nil)
	return canvas, nil
}

// stickerMatrix maps sticker source pixels into canvas space:
// scale to the box, move the box centre to the origin, rotate clockwise
// (y grows downward), then move to the box centre on the canvas.
func stickerMatrix(sb image.Rectangle, t Transform) f64.Aff3 {
	sx := t.Width / float64(sb.Dx())
	sy := t.Height / float64(sb.Dy())
	sin, cos := math.Sincos(radians(t.Angle()))
	cx, cy := t.Center()
	minX, minY := float64(sb.Min.X), float64(sb.Min.Y)

	// Linear part R·S.
	a, b := cos*sx, -sin*sy
	c, d := sin*sx, cos*sy

	// Translation: centre - R·(W/2, H/2) - R·S·min.
	tx := cx - (cos*t.Width/2 - sin*t.Height/2) - (a*minX + b*minY)
	ty := cy - (sin*t.Width/2 + cos*t.Height/2) - (c*minX + d*minY)

	return f64.Aff3{a, b, tx, c, d, ty}
}

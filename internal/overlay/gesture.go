package overlay

import (
	"fmt"
	"math"
)

// PointerKind is the phase of a pointer event. Mouse and touch input are
// both reported through these four kinds.
type PointerKind string

const (
	PointerDown   PointerKind = "down"
	PointerMove   PointerKind = "move"
	PointerUp     PointerKind = "up"
	PointerCancel PointerKind = "cancel"
)

// PointerTarget says which part of the overlay received a down event.
type PointerTarget string

const (
	TargetBody   PointerTarget = "body"
	TargetHandle PointerTarget = "handle"
)

// PointerEvent is a single pointer sample in container-local pixels.
type PointerEvent struct {
	Kind   PointerKind   `json:"kind"`
	Target PointerTarget `json:"target,omitempty"`
	X      float64       `json:"x"`
	Y      float64       `json:"y"`
}

func (e PointerEvent) validate() error {
	switch e.Kind {
	case PointerDown, PointerMove, PointerUp, PointerCancel:
	default:
		return fmt.Errorf("%w: unknown pointer kind %q", ErrInvalidTransform, e.Kind)
	}
	if !finite(e.X) || !finite(e.Y) {
		return fmt.Errorf("%w: pointer position not finite", ErrInvalidTransform)
	}
	return nil
}

type gestureMode int

const (
	gestureDrag gestureMode = iota + 1
	gestureResize
)

// capture is the state held between a down event and the matching up or
// cancel. Only one exists per component at a time.
type capture struct {
	mode   gestureMode
	startX float64
	startY float64
	start  Transform
}

// apply computes the transform for pointer position (x, y). The result
// depends only on the start state and the current position, never on the
// path taken to get there.
func (c *capture) apply(x, y float64) Transform {
	dx, dy := x-c.startX, y-c.startY
	t := c.start
	switch c.mode {
	case gestureDrag:
		t.X = c.start.X + dx
		t.Y = c.start.Y + dy
	case gestureResize:
		r := math.Hypot(dx, dy)
		t.Width = c.start.Width + r
		t.Height = c.start.Height + r*c.start.Height/c.start.Width
		t.Rotation = c.start.Rotation + degrees(math.Atan2(dy, dx))
	}
	return t
}

package overlay

import (
	"fmt"
	"math"
)

// Options configures a Component.
type Options struct {
	// DefaultSize is the long edge of a newly placed sticker. Zero means DefaultSize.
	DefaultSize float64
	// ClampToParent keeps the overlay box inside the base layout while dragging.
	ClampToParent bool
	// OnCapture, when set, is called each time a gesture capture is acquired
	// (true) or released (false).
	OnCapture func(held bool)
}

// State is a read-only snapshot of a Component.
type State struct {
	Base      string     `json:"base"`
	Overlay   string     `json:"overlay,omitempty"`
	Layout    Layout     `json:"layout"`
	Transform *Transform `json:"transform,omitempty"`
	Captured  bool       `json:"captured"`
}

// Component is one editor instance. It is not safe for concurrent use;
// callers serialise access (the live session holds a mutex around it).
type Component struct {
	opts    Options
	base    string
	layout  Layout
	overlay string
	aspect  float64
	t       *Transform
	cap     *capture
}

// New returns an empty component with no base and no overlay.
func New(opts Options) *Component {
	if opts.DefaultSize <= 0 || !finite(opts.DefaultSize) {
		opts.DefaultSize = DefaultSize
	}
	return &Component{opts: opts}
}

// SetBase records the base image and its rendered bounds. An existing
// overlay is re-centred when the base changes.
func (c *Component) SetBase(ref string, l Layout) error {
	if !finite(l.Width) || !finite(l.Height) || l.Width < 0 || l.Height < 0 {
		return fmt.Errorf("%w: layout %vx%v", ErrInvalidTransform, l.Width, l.Height)
	}
	changed := ref != c.base
	c.base, c.layout = ref, l
	if ref == "" {
		c.clearOverlay()
		return nil
	}
	if changed && c.t != nil {
		c.release()
		c.reset()
	}
	return nil
}

// SetOverlay selects the sticker. Any change of reference resets the
// transform to the centred default; the same reference is a no-op. An
// empty reference removes the overlay and its transform. aspect is the
// sticker's width/height; non-positive values are treated as square.
func (c *Component) SetOverlay(ref string, aspect float64) {
	if ref == c.overlay {
		return
	}
	if ref == "" {
		c.clearOverlay()
		return
	}
	c.release()
	c.overlay = ref
	c.aspect = aspect
	c.reset()
}

func (c *Component) reset() {
	t := centered(c.layout, c.opts.DefaultSize, c.aspect)
	c.t = &t
}

func (c *Component) clearOverlay() {
	c.release()
	c.overlay, c.aspect, c.t = "", 0, nil
}

// Pointer feeds one pointer event into the gesture state machine.
func (c *Component) Pointer(ev PointerEvent) error {
	if err := ev.validate(); err != nil {
		return err
	}
	switch ev.Kind {
	case PointerDown:
		if c.t == nil {
			return ErrNoOverlay
		}
		c.release()
		mode := gestureDrag
		if ev.Target == TargetHandle {
			mode = gestureResize
		}
		c.acquire(&capture{mode: mode, startX: ev.X, startY: ev.Y, start: *c.t})
	case PointerMove:
		if c.cap == nil {
			return nil
		}
		t := c.cap.apply(ev.X, ev.Y)
		if c.opts.ClampToParent && c.cap.mode == gestureDrag {
			t = clamp(t, c.layout)
		}
		if !t.Valid() {
			return fmt.Errorf("%w: %+v", ErrInvalidTransform, t)
		}
		*c.t = t
	case PointerUp, PointerCancel:
		c.release()
	}
	return nil
}

// SetRotation is the slider control: an absolute angle in [0, 360].
func (c *Component) SetRotation(deg float64) error {
	if !finite(deg) {
		return fmt.Errorf("%w: rotation not finite", ErrInvalidTransform)
	}
	if c.t == nil {
		return ErrNoOverlay
	}
	c.t.Rotation = math.Max(0, math.Min(360, deg))
	return nil
}

// Unmount releases any held capture and discards all state.
func (c *Component) Unmount() {
	c.clearOverlay()
	c.base, c.layout = "", Layout{}
}

// Captured reports whether a gesture currently holds the pointer.
func (c *Component) Captured() bool { return c.cap != nil }

// Snapshot returns a copy of the current state.
func (c *Component) Snapshot() State {
	s := State{Base: c.base, Overlay: c.overlay, Layout: c.layout, Captured: c.cap != nil}
	if c.t != nil {
		t := *c.t
		s.Transform = &t
	}
	return s
}

// ExportRequest describes the current composition for Exporter.Export.
func (c *Component) ExportRequest() (Request, error) {
	if c.base == "" {
		return Request{}, ErrNoBase
	}
	if c.t == nil {
		return Request{}, ErrNoOverlay
	}
	t := *c.t
	return Request{Base: c.base, Overlay: c.overlay, Layout: c.layout, Transform: &t}, nil
}

func (c *Component) acquire(cp *capture) {
	c.cap = cp
	if c.opts.OnCapture != nil {
		c.opts.OnCapture(true)
	}
}

func (c *Component) release() {
	if c.cap == nil {
		return
	}
	c.cap = nil
	if c.opts.OnCapture != nil {
		c.opts.OnCapture(false)
	}
}

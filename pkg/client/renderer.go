package client

import (
	"strings"
	"sync"
	"time"
)

// renderState is the scheduler state machine: idle -> pending (a frame
// is queued) -> rendering -> idle. At most one frame is queued at a
// time; tokens arriving before it fires only extend the accumulator.
type renderState int

const (
	stateIdle renderState = iota
	statePending
	stateRendering
)

const defaultFrameInterval = 33 * time.Millisecond

// Config tunes a Renderer. Zero values get sensible defaults.
type Config struct {
	// FrameInterval bounds render cost to one full re-parse per frame
	// regardless of token arrival rate.
	FrameInterval time.Duration
	// Render is the markdown pass applied to the accumulated text.
	// Defaults to identity.
	Render func(string) string
	// Cursor is the trailing glyph shown while streaming; the final
	// flush renders without it.
	Cursor string
	// OnFirst fires exactly once before the first paint, so a caller
	// can replace its typing indicator with real content.
	OnFirst func()
}

// Renderer accumulates stream tokens and repaints at a bounded frame
// rate. Paint receives the rendered output of the full accumulated
// text; frames are coalesced, never reordered.
type Renderer struct {
	mu      sync.Mutex
	acc     strings.Builder
	state   renderState
	timer   *time.Timer
	closed  bool
	started bool

	frame   time.Duration
	render  func(string) string
	cursor  string
	onFirst func()
	paint   func(string)
}

func NewRenderer(paint func(string), cfg Config) *Renderer {
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = defaultFrameInterval
	}
	if cfg.Render == nil {
		cfg.Render = func(s string) string { return s }
	}
	if paint == nil {
		paint = func(string) {}
	}
	return &Renderer{
		frame:   cfg.FrameInterval,
		render:  cfg.Render,
		cursor:  cfg.Cursor,
		onFirst: cfg.OnFirst,
		paint:   paint,
	}
}

// Append adds a token to the accumulator and queues a repaint unless
// one is already pending.
func (r *Renderer) Append(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.acc.WriteString(token)
	if r.state == stateIdle {
		r.state = statePending
		r.timer = time.AfterFunc(r.frame, r.renderFrame)
	}
}

func (r *Renderer) renderFrame() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.state = stateRendering
	r.firstPaintLocked()
	r.paint(r.render(r.acc.String() + r.cursor))
	r.state = stateIdle
}

// Flush cancels any queued frame, performs the final render without
// the cursor glyph, and returns the raw accumulated text. The renderer
// accepts no tokens afterwards.
func (r *Renderer) Flush() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return r.acc.String()
	}
	if r.timer != nil {
		r.timer.Stop()
	}
	r.closed = true
	r.firstPaintLocked()
	final := r.acc.String()
	r.paint(r.render(final))
	return final
}

func (r *Renderer) firstPaintLocked() {
	if !r.started {
		r.started = true
		if r.onFirst != nil {
			r.onFirst()
		}
	}
}

package client

import (
	"strings"
	"sync"
	"testing"
	"time"
)

// collectingPaint records every frame handed to the painter.
type collectingPaint struct {
	mu     sync.Mutex
	frames []string
}

func (p *collectingPaint) paint(s string) {
	p.mu.Lock()
	p.frames = append(p.frames, s)
	p.mu.Unlock()
}

func (p *collectingPaint) last() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.frames) == 0 {
		return ""
	}
	return p.frames[len(p.frames)-1]
}

func TestFinalRenderEqualsConcatenation(t *testing.T) {
	tokens := []string{"# Title", "\n", "some ", "**bold**", " text", "\n- item"}

	// Whatever the frame timing, the flushed text must equal the plain
	// concatenation and the last painted frame must be its rendering.
	upper := strings.ToUpper
	for _, interval := range []time.Duration{time.Millisecond, 20 * time.Millisecond} {
		p := &collectingPaint{}
		r := NewRenderer(p.paint, Config{FrameInterval: interval, Render: upper})
		for _, tok := range tokens {
			r.Append(tok)
			time.Sleep(3 * time.Millisecond)
		}
		final := r.Flush()

		want := strings.Join(tokens, "")
		if final != want {
			t.Fatalf("interval %v: final = %q, want %q", interval, final, want)
		}
		if p.last() != upper(want) {
			t.Fatalf("interval %v: last frame = %q, want rendered concatenation", interval, p.last())
		}
	}
}

func TestFramesAreCoalesced(t *testing.T) {
	p := &collectingPaint{}
	r := NewRenderer(p.paint, Config{FrameInterval: 50 * time.Millisecond})

	// Many tokens inside one frame interval must produce at most one
	// intermediate paint before the final flush.
	for i := 0; i < 100; i++ {
		r.Append("x")
	}
	time.Sleep(80 * time.Millisecond)
	r.Flush()

	p.mu.Lock()
	frames := len(p.frames)
	p.mu.Unlock()
	if frames > 2 {
		t.Errorf("got %d paints for one burst, want at most 2 (one frame + flush)", frames)
	}
}

func TestCursorOnlyWhileStreaming(t *testing.T) {
	p := &collectingPaint{}
	r := NewRenderer(p.paint, Config{FrameInterval: 5 * time.Millisecond, Cursor: "▌"})

	r.Append("partial")
	time.Sleep(20 * time.Millisecond)

	p.mu.Lock()
	if len(p.frames) == 0 || !strings.HasSuffix(p.frames[0], "▌") {
		t.Errorf("intermediate frame should carry the cursor glyph, got %q", p.frames)
	}
	p.mu.Unlock()

	r.Flush()
	if strings.Contains(p.last(), "▌") {
		t.Errorf("final frame must not carry the cursor glyph: %q", p.last())
	}
}

func TestOnFirstFiresExactlyOnce(t *testing.T) {
	var calls int
	p := &collectingPaint{}
	r := NewRenderer(p.paint, Config{
		FrameInterval: time.Millisecond,
		OnFirst:       func() { calls++ },
	})

	r.Append("a")
	time.Sleep(10 * time.Millisecond)
	r.Append("b")
	time.Sleep(10 * time.Millisecond)
	r.Flush()

	if calls != 1 {
		t.Errorf("OnFirst fired %d times, want exactly once", calls)
	}
}

func TestAppendAfterFlushIsIgnored(t *testing.T) {
	r := NewRenderer(nil, Config{FrameInterval: time.Millisecond})
	r.Append("kept")
	final := r.Flush()
	r.Append("dropped")
	if got := r.Flush(); got != final {
		t.Errorf("text changed after flush: %q -> %q", final, got)
	}
}

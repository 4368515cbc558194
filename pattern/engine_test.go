package pattern

import (
	"errors"
	"testing"

	"hexcell/core"
	"hexcell/display"
	"hexcell/protocol"
)

func mustPattern(t *testing.T, elems ...Element) Pattern {
	t.Helper()
	p, err := New(elems...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func engineWith(t *testing.T, restart bool, elems ...Element) *Engine {
	t.Helper()
	e := NewEngine()
	if err := e.SetPattern(0, mustPattern(t, elems...)); err != nil {
		t.Fatalf("SetPattern: %v", err)
	}
	if err := e.SetCursorToPattern(0, 0, restart); err != nil {
		t.Fatalf("SetCursorToPattern: %v", err)
	}
	return e
}

func TestBlink(t *testing.T) {
	e := engineWith(t, true, Element{Kind: Blink, Color: display.Red, Duration: 1_000_000})

	steps := []struct {
		delta core.Microseconds
		want  display.Led
	}{
		{0, display.Off},
		{499_999, display.Off},
		{1, display.Red},
		{499_999, display.Red},
		{1, display.Red}, // Reaches the full duration, then wraps
		{0, display.Off},
	}
	for i, s := range steps {
		if got := e.Run(s.delta)[0]; got != s.want {
			t.Errorf("step %d: output %v, want %v", i, got, s.want)
		}
	}
}

func TestSolidHoldsForAnyElapsed(t *testing.T) {
	color := display.RGB(10, 20, 30)
	e := engineWith(t, true, Element{Kind: Solid, Color: color, Duration: 1000})

	for _, d := range []core.Microseconds{0, 1, 999, 5_000_000, 0xFFFFFFFF} {
		if got := e.Run(d)[0]; got != color {
			t.Errorf("Run(%d) = %v, want %v", d, got, color)
		}
	}
}

func TestFadeEndpointsAndMonotonic(t *testing.T) {
	target := display.RGB(200, 100, 50)
	e := engineWith(t, true, Element{Kind: Fade, Color: target, Duration: 1000})

	prev := e.Run(0)[0]
	if prev != display.Off {
		t.Fatalf("fade start = %v, want off", prev)
	}
	for i := 0; i < 100; i++ {
		cur := e.Run(10)[0]
		if cur.R < prev.R || cur.G < prev.G || cur.B < prev.B {
			t.Fatalf("step %d: %v after %v is not monotonic", i, cur, prev)
		}
		prev = cur
	}
	if absDiff(prev.R, target.R) > 1 || absDiff(prev.G, target.G) > 1 || absDiff(prev.B, target.B) > 1 {
		t.Errorf("fade end = %v, want %v", prev, target)
	}
}

func absDiff(a, b uint8) uint8 {
	if a > b {
		return a - b
	}
	return b - a
}

func TestFadeStartsFromPreviousElement(t *testing.T) {
	e := engineWith(t, true,
		Element{Kind: Solid, Color: display.Red, Duration: 100},
		Element{Kind: Fade, Color: display.Blue, Duration: 1000},
	)
	e.Run(100)
	if got := e.Run(0)[0]; got != display.Red {
		t.Errorf("fade start = %v, want red", got)
	}
	if got := e.Run(1000)[0]; got != display.Blue {
		t.Errorf("fade end = %v, want blue", got)
	}
}

func TestNoAutoRestartStopsOnLastFrame(t *testing.T) {
	e := engineWith(t, false,
		Element{Kind: Solid, Color: display.Red, Duration: 100},
		Element{Kind: Solid, Color: display.Green, Duration: 100},
	)
	e.Run(100)
	if got := e.Run(100)[0]; got != display.Green {
		t.Fatalf("second element = %v, want green", got)
	}
	c, _ := e.Cursor(0)
	if c.Enabled() {
		t.Error("cursor still enabled after the last element")
	}
	if got := e.Run(100)[0]; got != display.Green {
		t.Errorf("held frame = %v, want green", got)
	}
}

func TestSetCursorToPatternErrors(t *testing.T) {
	e := NewEngine()
	e.SetPattern(1, mustPattern(t, Element{Kind: Solid, Color: display.White, Duration: 10}))
	before := e.cursors

	if err := e.SetCursorToPattern(display.LEDCount, 0, true); !errors.Is(err, InvalidCursorError) {
		t.Errorf("cursor out of range: %v", err)
	}
	if err := e.SetCursorToPattern(0, MaxPatternCount, true); !errors.Is(err, InvalidPatternError) {
		t.Errorf("pattern out of range: %v", err)
	}
	if err := e.SetCursorToPattern(-1, 0, true); !errors.Is(err, core.PatternError) {
		t.Errorf("error %v does not chain to core.PatternError", err)
	}
	if e.cursors != before {
		t.Fatal("failed binding changed a cursor")
	}

	if err := e.SetCursorToPattern(3, 1, false); err != nil {
		t.Fatalf("SetCursorToPattern: %v", err)
	}
	for i := range e.cursors {
		changed := e.cursors[i] != before[i]
		if changed != (i == 3) {
			t.Errorf("cursor %d changed=%v", i, changed)
		}
	}
	if c, _ := e.Cursor(3); c.Pattern() != 1 || c.AutoRestart() {
		t.Errorf("cursor 3 = %+v", c)
	}
}

func TestSetPatternErrors(t *testing.T) {
	e := NewEngine()
	p := mustPattern(t, Element{Kind: Solid, Color: display.Red, Duration: 1})
	if err := e.SetPattern(MaxPatternCount, p); !errors.Is(err, InvalidPatternError) {
		t.Errorf("slot out of range: %v", err)
	}
	if err := e.SetPattern(0, Pattern{}); !errors.Is(err, PatternSizeError) {
		t.Errorf("empty pattern: %v", err)
	}
}

func TestEmptyPatternCursorSkipped(t *testing.T) {
	e := NewEngine()
	e.Start()
	out := e.Run(1000)
	if out != (display.LedBuffer{}) {
		t.Errorf("output = %v, want all off", out)
	}
}

func TestStartAndStop(t *testing.T) {
	e := NewEngine()
	e.SetPattern(0, mustPattern(t, Element{Kind: Solid, Color: display.Green, Duration: 10}))
	e.Start()
	out := e.Run(1)
	for i, led := range out {
		if led != display.Green {
			t.Errorf("LED %d = %v, want green", i, led)
		}
	}
	e.Stop()
	e.SetPattern(0, mustPattern(t, Element{Kind: Solid, Color: display.Red, Duration: 10}))
	if got := e.Run(1)[4]; got != display.Green {
		t.Errorf("stopped output = %v, want held green", got)
	}
}

func TestBuilderOverflow(t *testing.T) {
	b := NewBuilder()
	for i := 0; i <= MaxPatternElements; i++ {
		b.Then(Blink, display.Blue, 100)
	}
	p, err := b.Finish()
	if !errors.Is(err, PatternSizeError) {
		t.Errorf("Finish error = %v, want PatternSizeError", err)
	}
	if p.Len() != MaxPatternElements {
		t.Errorf("Len = %d, want %d", p.Len(), MaxPatternElements)
	}
}

func TestReservedKindHoldsUntilRegistered(t *testing.T) {
	elems := []Element{
		{Kind: Solid, Color: display.Red, Duration: 10},
		{Kind: Heartbeat, Color: display.Green, Duration: 10},
	}
	e := engineWith(t, true, elems...)
	other := engineWith(t, true, elems...)
	e.Run(10)
	other.Run(10)
	if got := e.Run(5)[0]; got != display.Red {
		t.Errorf("heartbeat without evaluator = %v, want held red", got)
	}

	old, err := e.RegisterKind(Heartbeat, func(el Element, _ display.Led, elapsed uint32, _ display.Led) display.Led {
		return el.Color.Scale(uint8(elapsed * 255 / uint32(el.Duration)))
	})
	if err != nil {
		t.Fatalf("RegisterKind: %v", err)
	}
	if old == nil {
		t.Error("previous heartbeat evaluator not returned")
	}

	if got := e.Run(5)[0]; got.G == 0 || got.R != 0 {
		t.Errorf("custom heartbeat = %v", got)
	}
	if got := other.Run(5)[0]; got != display.Red {
		t.Errorf("registration leaked into another engine: %v", got)
	}
	if _, err := e.RegisterKind(MaxKinds, nil); !errors.Is(err, InvalidPatternError) {
		t.Errorf("RegisterKind out of range: %v", err)
	}
}

func TestCodec(t *testing.T) {
	p, _ := NewBuilder().
		Then(Fade, display.Hex(0x123456), 2_500_000).
		Then(Blink, display.White, 0xFFFFFFFF).
		Finish()

	out := protocol.NewScratchOutput()
	Encode(out, &p)
	data := out.Result()
	got, err := Decode(&data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got != p || len(data) != 0 {
		t.Errorf("Decode = %+v (rest %d)", got.Elements(), len(data))
	}

	empty := []byte{0}
	if _, err := Decode(&empty); !errors.Is(err, PatternSizeError) {
		t.Errorf("empty pattern: %v", err)
	}
	badKind := []byte{1, 20, 0, 0}
	if _, err := Decode(&badKind); !errors.Is(err, InvalidPatternError) {
		t.Errorf("bad kind: %v", err)
	}
}

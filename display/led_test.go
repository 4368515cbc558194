package display

import "testing"

func TestScale(t *testing.T) {
	got := RGB(255, 128, 10).Scale(128)
	want := RGB(127, 64, 5)
	if got != want {
		t.Errorf("Scale = %v, want %v", got, want)
	}
	if White.Scale(0) != Off {
		t.Errorf("Scale(0) should be off")
	}
}

func TestFadeFactor(t *testing.T) {
	testCases := []struct {
		elapsed, duration uint32
		want              uint8
	}{
		{0, 1000, 0},
		{500, 1000, 128},
		{999, 1000, 255},
		{1000, 1000, 0xFF},
		{5000, 1000, 0xFF},
		// Durations beyond 2^24 us must not overflow the shift
		{30_000_000, 60_000_000, 128},
	}
	for _, tc := range testCases {
		if got := FadeFactor(tc.elapsed, tc.duration); got != tc.want {
			t.Errorf("FadeFactor(%d, %d) = %d, want %d", tc.elapsed, tc.duration, got, tc.want)
		}
	}
}

func TestInterpolateEndpoints(t *testing.T) {
	start := RGB(10, 200, 255)
	target := RGB(250, 0, 7)

	if got := start.Interpolate(target, 0, 1000); got != start {
		t.Errorf("At elapsed=0 got %v, want %v", got, start)
	}
	if got := start.Interpolate(target, 1000, 1000); got != target {
		t.Errorf("At elapsed=duration got %v, want %v", got, target)
	}
}

func TestInterpolateMonotonic(t *testing.T) {
	start := RGB(0, 100, 200)
	target := RGB(255, 101, 255)

	prev := start
	for elapsed := uint32(0); elapsed <= 1000; elapsed += 7 {
		cur := start.Interpolate(target, elapsed, 1000)
		if cur.R < prev.R || cur.G < prev.G || cur.B < prev.B {
			t.Fatalf("Not monotonic at %d: %v after %v", elapsed, cur, prev)
		}
		prev = cur
	}
}

func TestSaturatingArithmetic(t *testing.T) {
	if got := RGB(200, 10, 0).Add(RGB(100, 10, 0)); got != RGB(255, 20, 0) {
		t.Errorf("Add = %v", got)
	}
	if got := RGB(5, 10, 0).Sub(RGB(10, 5, 0)); got != RGB(0, 5, 0) {
		t.Errorf("Sub = %v", got)
	}
	if got := RGB(100, 10, 1).Mul(3); got != RGB(255, 30, 3) {
		t.Errorf("Mul = %v", got)
	}
	if got := RGB(100, 10, 1).Div(0); got != Off {
		t.Errorf("Div(0) = %v", got)
	}
}

func TestPacking(t *testing.T) {
	c := Hex(0x123456)
	if c != RGB(0x12, 0x34, 0x56) {
		t.Errorf("Hex = %v", c)
	}
	if c.GRB() != 0x341256 {
		t.Errorf("GRB = %06x", c.GRB())
	}
	if c.String() != "#123456" {
		t.Errorf("String = %s", c.String())
	}
}

func TestDisplay(t *testing.T) {
	var d Display
	d.SetAll(Red)
	if err := d.SetLED(LEDCount, Blue); err != ErrInvalidLED {
		t.Errorf("Expected ErrInvalidLED, got %v", err)
	}
	if err := d.SetLED(4, Blue); err != nil {
		t.Fatal(err)
	}

	var got LedBuffer
	d.Commit(SinkFunc(func(buf *LedBuffer) { got = *buf }))
	if got[0] != Red || got[4] != Blue {
		t.Errorf("Committed frame wrong: %v", got)
	}

	d.Clear()
	if d.Buffer() != (LedBuffer{}) {
		t.Errorf("Clear left LEDs on")
	}
}

package core

// Microseconds is a 32-bit microsecond timestamp or duration. All arithmetic
// on it wraps, so intervals stay correct across the ~71 minute rollover.
type Microseconds uint32

// Clock supplies the current time to a cell
type Clock interface {
	Now() Microseconds
}

// Since returns the wrapping interval from then to now
func Since(now, then Microseconds) Microseconds {
	return now - then
}

// Millis converts milliseconds to Microseconds
func Millis(ms uint32) Microseconds {
	return Microseconds(ms * 1000)
}

// GetTime returns the last published system time
func GetTime() Microseconds {
	return Microseconds(getSystemTicks())
}

// SetTime publishes the current hardware time (called from the target main loop)
func SetTime(us Microseconds) {
	setSystemTicks(uint32(us))
}

// SystemClock reads the time published with SetTime
type SystemClock struct{}

// Now implements Clock
func (SystemClock) Now() Microseconds {
	return GetTime()
}

// ManualClock is a Clock advanced explicitly by its owner (simulation, tests)
type ManualClock struct {
	now Microseconds
}

// NewManualClock creates a clock starting at start
func NewManualClock(start Microseconds) *ManualClock {
	return &ManualClock{now: start}
}

// Now implements Clock
func (c *ManualClock) Now() Microseconds {
	return c.now
}

// Advance moves the clock forward by d
func (c *ManualClock) Advance(d Microseconds) Microseconds {
	c.now += d
	return c.now
}

// Set jumps the clock to t
func (c *ManualClock) Set(t Microseconds) {
	c.now = t
}

package pattern

import (
	"hexcell/core"
	"hexcell/display"
)

// Cursor is the playback position of one LED
type Cursor struct {
	pattern     uint8
	element     uint8
	lastColor   display.Led
	elapsed     uint32
	autoRestart bool
	enabled     bool
}

// Pattern returns the bound pattern slot
func (c Cursor) Pattern() int { return int(c.pattern) }

// Element returns the element being played
func (c Cursor) Element() int { return int(c.element) }

// Elapsed returns the time spent in the current element
func (c Cursor) Elapsed() uint32 { return c.elapsed }

// Enabled reports whether the cursor animates
func (c Cursor) Enabled() bool { return c.enabled }

// AutoRestart reports whether the cursor wraps at the end of its pattern
func (c Cursor) AutoRestart() bool { return c.autoRestart }

// Engine advances one cursor per LED over a fixed library of patterns
type Engine struct {
	cursors    [display.LEDCount]Cursor
	patterns   [MaxPatternCount]Pattern
	output     display.LedBuffer
	evaluators [MaxKinds]Evaluator
}

// NewEngine creates an engine with empty patterns, idle cursors and the
// built-in kind evaluators
func NewEngine() *Engine {
	return &Engine{evaluators: defaultEvaluators}
}

// Start loops every cursor over pattern 0 from its first element,
// fading in from off
func (e *Engine) Start() {
	for i := range e.cursors {
		c := &e.cursors[i]
		c.enabled = true
		c.autoRestart = true
		c.pattern = 0
		c.element = 0
		c.elapsed = 0
		c.lastColor = display.Off
	}
}

// Stop disables every cursor; the output holds the last frame
func (e *Engine) Stop() {
	for i := range e.cursors {
		e.cursors[i].enabled = false
	}
}

// Run advances every enabled cursor by delta and returns the frame
func (e *Engine) Run(delta core.Microseconds) display.LedBuffer {
	for i := range e.cursors {
		c := &e.cursors[i]
		if !c.enabled {
			continue
		}
		p := &e.patterns[c.pattern]
		if p.n == 0 {
			continue
		}
		if c.element >= p.n {
			c.element = 0
		}
		el := p.elems[c.element]
		duration := uint32(el.Duration)

		elapsed := c.elapsed + uint32(delta)
		if elapsed < c.elapsed || elapsed > duration {
			elapsed = duration
		}
		c.elapsed = elapsed

		e.output[i] = e.evaluate(el, c.lastColor, elapsed, e.output[i])

		if elapsed >= duration {
			c.element++
			if c.element >= p.n {
				c.element = 0
				c.enabled = c.autoRestart
			}
			if c.enabled {
				c.lastColor = el.Color
				c.elapsed = 0
			}
		}
	}
	return e.output
}

// Output returns the last frame produced by Run
func (e *Engine) Output() display.LedBuffer {
	return e.output
}

// SetPattern stores p in slot. Cursors playing the slot restart at its
// first element.
func (e *Engine) SetPattern(slot int, p Pattern) error {
	if slot < 0 || slot >= MaxPatternCount {
		return InvalidPatternError
	}
	if p.IsEmpty() {
		return PatternSizeError
	}
	e.patterns[slot] = p
	for i := range e.cursors {
		if c := &e.cursors[i]; int(c.pattern) == slot {
			c.element = 0
			c.elapsed = 0
		}
	}
	return nil
}

// Pattern returns the pattern stored in slot
func (e *Engine) Pattern(slot int) (Pattern, error) {
	if slot < 0 || slot >= MaxPatternCount {
		return Pattern{}, InvalidPatternError
	}
	return e.patterns[slot], nil
}

// SetCursorToPattern binds the cursor of one LED to a stored pattern and
// plays it from the start. With restart the cursor loops; without it the
// cursor stops on the last element.
func (e *Engine) SetCursorToPattern(cursor, pattern int, restart bool) error {
	if cursor < 0 || cursor >= display.LEDCount {
		return InvalidCursorError
	}
	if pattern < 0 || pattern >= MaxPatternCount {
		return InvalidPatternError
	}
	c := &e.cursors[cursor]
	c.pattern = uint8(pattern)
	c.element = 0
	c.elapsed = 0
	c.autoRestart = restart
	c.enabled = true
	return nil
}

// SetAllCursors binds every cursor to pattern
func (e *Engine) SetAllCursors(pattern int, restart bool) error {
	for i := range e.cursors {
		if err := e.SetCursorToPattern(i, pattern, restart); err != nil {
			return err
		}
	}
	return nil
}

// Cursor returns a snapshot of the cursor for LED i
func (e *Engine) Cursor(i int) (Cursor, error) {
	if i < 0 || i >= display.LEDCount {
		return Cursor{}, InvalidCursorError
	}
	return e.cursors[i], nil
}

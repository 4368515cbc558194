package pattern

import (
	"hexcell/core"
	"hexcell/display"
)

// Kind selects how an element animates its color
type Kind uint8

const (
	Solid Kind = iota
	Blink
	Fade
	Heartbeat
	SOS
)

// MaxKinds bounds the evaluator table
const MaxKinds = 16

var kindNames = [...]string{"solid", "blink", "fade", "heartbeat", "sos"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind" + core.Itoa(int(k))
}

// ParseKind maps a kind name back to its value
func ParseKind(name string) (Kind, bool) {
	for i, n := range kindNames {
		if n == name {
			return Kind(i), true
		}
	}
	return 0, false
}

// Evaluator computes the output of one LED for the element being played.
// from is the color the previous element finished on, elapsed is clamped
// to the element duration and prev is the LED's output on the last tick.
type Evaluator func(el Element, from display.Led, elapsed uint32, prev display.Led) display.Led

// defaultEvaluators is copied into every engine; it is never written
var defaultEvaluators = [MaxKinds]Evaluator{
	Solid: func(el Element, _ display.Led, _ uint32, _ display.Led) display.Led {
		return el.Color
	},
	Blink: func(el Element, _ display.Led, elapsed uint32, _ display.Led) display.Led {
		if elapsed < uint32(el.Duration)/2 {
			return display.Off
		}
		return el.Color
	},
	Fade: func(el Element, from display.Led, elapsed uint32, _ display.Led) display.Led {
		return from.Interpolate(el.Color, elapsed, uint32(el.Duration))
	},
	Heartbeat: hold,
	SOS:       hold,
}

// hold keeps the previous output; reserved kinds use it until they get
// an evaluator of their own
func hold(_ Element, _ display.Led, _ uint32, prev display.Led) display.Led {
	return prev
}

// RegisterKind installs or replaces the evaluator for k on this engine
// and returns the previous one. A nil evaluator makes k hold its last
// output. Other engines are unaffected.
func (e *Engine) RegisterKind(k Kind, ev Evaluator) (Evaluator, error) {
	if k >= MaxKinds {
		return nil, InvalidPatternError
	}
	old := e.evaluators[k]
	e.evaluators[k] = ev
	return old, nil
}

func (e *Engine) evaluate(el Element, from display.Led, elapsed uint32, prev display.Led) display.Led {
	if el.Kind >= MaxKinds || e.evaluators[el.Kind] == nil {
		return prev
	}
	return e.evaluators[el.Kind](el, from, elapsed, prev)
}

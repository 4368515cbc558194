// Package pattern animates a cell's LEDs from a small library of stored
// color sequences, one playback cursor per LED.
package pattern

import (
	"hexcell/core"
	"hexcell/display"
)

const (
	MaxPatternElements = 16
	MaxPatternCount    = display.LEDCount
)

// Element is one step of a pattern
type Element struct {
	Kind     Kind
	Color    display.Led
	Duration core.Microseconds
}

// Pattern is a bounded sequence of elements
type Pattern struct {
	elems [MaxPatternElements]Element
	n     uint8
}

// New builds a pattern from elems
func New(elems ...Element) (Pattern, error) {
	var p Pattern
	for _, e := range elems {
		if err := p.Append(e); err != nil {
			return p, err
		}
	}
	return p, nil
}

// Append adds an element, failing with PatternSizeError when full
func (p *Pattern) Append(e Element) error {
	if int(p.n) == MaxPatternElements {
		return PatternSizeError
	}
	p.elems[p.n] = e
	p.n++
	return nil
}

// Len returns the number of elements
func (p *Pattern) Len() int {
	return int(p.n)
}

// IsEmpty reports whether the pattern has no elements
func (p *Pattern) IsEmpty() bool {
	return p.n == 0
}

// At returns element i
func (p *Pattern) At(i int) Element {
	return p.elems[i]
}

// Elements returns a copy of the elements
func (p *Pattern) Elements() []Element {
	out := make([]Element, p.n)
	copy(out, p.elems[:p.n])
	return out
}

// Builder chains elements into a pattern. The first overflow is kept and
// reported by Finish.
type Builder struct {
	p   Pattern
	err error
}

// NewBuilder starts an empty pattern
func NewBuilder() *Builder {
	return &Builder{}
}

// Then appends an element
func (b *Builder) Then(kind Kind, color display.Led, duration core.Microseconds) *Builder {
	if b.err == nil {
		b.err = b.p.Append(Element{Kind: kind, Color: color, Duration: duration})
	}
	return b
}

// Finish returns the pattern built so far and any overflow error
func (b *Builder) Finish() (Pattern, error) {
	return b.p, b.err
}

package pattern

import (
	"hexcell/core"
	"hexcell/display"
	"hexcell/protocol"
)

// Encode writes p as VLQ values: the element count, then kind, 0xRRGGBB
// color and duration for each element.
func Encode(out protocol.OutputBuffer, p *Pattern) {
	protocol.EncodeVLQUint(out, uint32(p.n))
	for _, el := range p.elems[:p.n] {
		protocol.EncodeVLQUint(out, uint32(el.Kind))
		protocol.EncodeVLQUint(out, el.Color.Uint32())
		protocol.EncodeVLQUint(out, uint32(el.Duration))
	}
}

// Decode reads a pattern written by Encode and advances data past it
func Decode(data *[]byte) (Pattern, error) {
	var p Pattern
	count, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return p, err
	}
	if count == 0 || count > MaxPatternElements {
		return p, PatternSizeError
	}
	for i := uint32(0); i < count; i++ {
		kind, err := protocol.DecodeVLQUint(data)
		if err != nil {
			return p, err
		}
		if kind >= MaxKinds {
			return p, InvalidPatternError
		}
		rgb, err := protocol.DecodeVLQUint(data)
		if err != nil {
			return p, err
		}
		duration, err := protocol.DecodeVLQUint(data)
		if err != nil {
			return p, err
		}
		p.Append(Element{Kind: Kind(kind), Color: display.Hex(rgb), Duration: core.Microseconds(duration)})
	}
	return p, nil
}

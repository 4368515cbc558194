// Package display holds the LED color model and the per-cell frame buffer
package display

import "image/color"

// LEDCount is the number of LEDs on a cell
const LEDCount = 9

// Led is an 8-bit per channel RGB color
type Led struct {
	R, G, B uint8
}

// Common colors
var (
	Off   = Led{}
	White = Led{255, 255, 255}
	Red   = Led{255, 0, 0}
	Green = Led{0, 255, 0}
	Blue  = Led{0, 0, 255}
)

// RGB builds a Led from channel values
func RGB(r, g, b uint8) Led {
	return Led{R: r, G: g, B: b}
}

// Hex builds a Led from 0xRRGGBB
func Hex(rgb uint32) Led {
	return Led{R: uint8(rgb >> 16), G: uint8(rgb >> 8), B: uint8(rgb)}
}

// Uint32 packs the color as 0xRRGGBB
func (l Led) Uint32() uint32 {
	return uint32(l.R)<<16 | uint32(l.G)<<8 | uint32(l.B)
}

// GRB packs the color in WS2812 wire order as 0xGGRRBB
func (l Led) GRB() uint32 {
	return uint32(l.G)<<16 | uint32(l.R)<<8 | uint32(l.B)
}

// RGBA converts to an opaque image/color value
func (l Led) RGBA() color.RGBA {
	return color.RGBA{R: l.R, G: l.G, B: l.B, A: 0xFF}
}

// IsOff reports whether every channel is zero
func (l Led) IsOff() bool {
	return l == Off
}

func (l Led) String() string {
	const digits = "0123456789abcdef"
	b := []byte{'#', 0, 0, 0, 0, 0, 0}
	for i, c := range [3]uint8{l.R, l.G, l.B} {
		b[1+2*i] = digits[c>>4]
		b[2+2*i] = digits[c&0x0F]
	}
	return string(b)
}

// Scale multiplies every channel by factor/256
func (l Led) Scale(factor uint8) Led {
	return Led{
		R: uint8(uint16(l.R) * uint16(factor) >> 8),
		G: uint8(uint16(l.G) * uint16(factor) >> 8),
		B: uint8(uint16(l.B) * uint16(factor) >> 8),
	}
}

// Add sums channels, saturating at 255
func (l Led) Add(o Led) Led {
	return Led{R: addSat(l.R, o.R), G: addSat(l.G, o.G), B: addSat(l.B, o.B)}
}

// Sub subtracts channels, saturating at 0
func (l Led) Sub(o Led) Led {
	return Led{R: subSat(l.R, o.R), G: subSat(l.G, o.G), B: subSat(l.B, o.B)}
}

// Mul multiplies every channel by n, saturating at 255
func (l Led) Mul(n uint8) Led {
	return Led{R: mulSat(l.R, n), G: mulSat(l.G, n), B: mulSat(l.B, n)}
}

// Div divides every channel by n. Division by zero yields Off.
func (l Led) Div(n uint8) Led {
	if n == 0 {
		return Off
	}
	return Led{R: l.R / n, G: l.G / n, B: l.B / n}
}

// FadeFactor is the 8-bit fixed-point progress of elapsed through
// duration, saturated to 0xFF once elapsed reaches duration
func FadeFactor(elapsed, duration uint32) uint8 {
	if elapsed >= duration {
		return 0xFF
	}
	return uint8((uint64(elapsed) << 8) / uint64(duration))
}

// Interpolate blends from l toward target by elapsed/duration. The factor
// is widened from 0..255 to 0..256 before blending so both endpoints are
// exact and every channel moves monotonically toward the target.
func (l Led) Interpolate(target Led, elapsed, duration uint32) Led {
	return l.Blend(target, FadeFactor(elapsed, duration))
}

// Blend mixes l and target with an 8-bit fixed-point factor
func (l Led) Blend(target Led, factor uint8) Led {
	w := uint16(factor) + uint16(factor>>7)
	inv := 256 - w
	return Led{
		R: uint8((uint16(l.R)*inv + uint16(target.R)*w) >> 8),
		G: uint8((uint16(l.G)*inv + uint16(target.G)*w) >> 8),
		B: uint8((uint16(l.B)*inv + uint16(target.B)*w) >> 8),
	}
}

func addSat(a, b uint8) uint8 {
	if s := uint16(a) + uint16(b); s < 0xFF {
		return uint8(s)
	}
	return 0xFF
}

func subSat(a, b uint8) uint8 {
	if a > b {
		return a - b
	}
	return 0
}

func mulSat(a, n uint8) uint8 {
	if p := uint16(a) * uint16(n); p < 0xFF {
		return uint8(p)
	}
	return 0xFF
}

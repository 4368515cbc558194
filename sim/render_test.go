package sim

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"hexcell/display"
)

func TestRenderMesh(t *testing.T) {
	s := CellState{UID: 0xabc, State: "Idle", LEDs: make([]string, display.LEDCount)}
	for i := range s.LEDs {
		s.LEDs[i] = display.Off.String()
	}
	s.LEDs[4] = display.Red.String()

	out := RenderCell(s)
	assert.Contains(t, out, "00000abc")
	assert.Contains(t, out, "Idle")
	assert.Equal(t, 1, strings.Count(out, "●"))
	assert.Equal(t, 8, strings.Count(out, "·"))

	two := RenderMesh([]CellState{s, s, s}, 2)
	assert.Equal(t, 3, strings.Count(two, "00000abc"))
	assert.Equal(t, display.Red, parseLED("#ff0000"))
	assert.Equal(t, display.Off, parseLED("bogus"))
}

package sim

import (
	"fmt"

	"hexcell/network"
)

// Coordinate is a position on the simulated table in odd-q offset layout:
// odd columns sit half a cell lower than even ones.
type Coordinate struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

func (c Coordinate) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

// Neighbor offsets clockwise from the top, indexed by port
var (
	evenColumn = [network.PortCount][2]int{{0, -1}, {1, -1}, {1, 0}, {0, 1}, {-1, 0}, {-1, -1}}
	oddColumn  = [network.PortCount][2]int{{0, -1}, {1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}}
)

// AdjacentCoordinates returns the six neighbor positions, element i lying
// across port i
func (c Coordinate) AdjacentCoordinates() [network.PortCount]Coordinate {
	offsets := &evenColumn
	if c.X&1 != 0 {
		offsets = &oddColumn
	}
	var out [network.PortCount]Coordinate
	for i, o := range offsets {
		out[i] = Coordinate{X: c.X + o[0], Y: c.Y + o[1]}
	}
	return out
}

// PortTo returns the port of c facing other
func (c Coordinate) PortTo(other Coordinate) (network.Port, bool) {
	for i, adj := range c.AdjacentCoordinates() {
		if adj == other {
			return network.Port(i), true
		}
	}
	return network.NoPort, false
}

// IsAdjacent reports whether other touches c
func (c Coordinate) IsAdjacent(other Coordinate) bool {
	_, ok := c.PortTo(other)
	return ok
}

// OppositePort is the port that faces p across a shared edge
func OppositePort(p network.Port) network.Port {
	return (p + 3) % network.PortCount
}

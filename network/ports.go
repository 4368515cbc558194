// Package network discovers a cell's position in the mesh and relays
// messages between cells using only local port adjacency.
package network

import "hexcell/protocol"

// Port identifies one of the six physical neighbor connections
type Port uint8

const (
	PortA Port = iota
	PortB
	PortC
	PortD
	PortE
	PortF

	// PortCount doubles as the "no port" value
	PortCount
)

// NoPort marks the absence of a port (the root has no parent)
const NoPort = PortCount

// Discovery priority, lower rank first
var portRanks = [PortCount]uint8{
	PortA: 0,
	PortB: 4,
	PortC: 2,
	PortD: 3,
	PortE: 1,
	PortF: 5,
}

var rankedPorts = [PortCount]Port{PortA, PortE, PortC, PortD, PortB, PortF}

// Axial offset from a cell to the neighbor across each port
var portDeltas = [PortCount][2]int16{
	PortA: {0, 1},
	PortB: {1, 1},
	PortC: {-1, 0},
	PortD: {-1, 1},
	PortE: {1, 0},
	PortF: {0, -1},
}

// Valid reports whether p names a physical port
func (p Port) Valid() bool {
	return p < PortCount
}

func (p Port) String() string {
	if p.Valid() {
		return string(rune('A' + p))
	}
	return "-"
}

// ParsePort accepts "A".."F" (either case) or "0".."5"
func ParsePort(s string) (Port, error) {
	if len(s) == 1 {
		c := s[0]
		switch {
		case c >= 'A' && c <= 'F':
			return Port(c - 'A'), nil
		case c >= 'a' && c <= 'f':
			return Port(c - 'a'), nil
		case c >= '0' && c <= '5':
			return Port(c - '0'), nil
		}
	}
	return NoPort, protocol.InvalidPort
}

// RankOf returns the discovery priority of p. Invalid ports rank last.
func RankOf(p Port) uint8 {
	if !p.Valid() {
		return uint8(PortCount)
	}
	return portRanks[p]
}

// PortOfRank returns the port holding rank r, or NoPort
func PortOfRank(r uint8) Port {
	if r >= uint8(PortCount) {
		return NoPort
	}
	return rankedPorts[r]
}

// Delta returns the coordinate offset across p. Invalid ports have none.
func Delta(p Port) (dx, dy int16) {
	if !p.Valid() {
		return 0, 0
	}
	return portDeltas[p][0], portDeltas[p][1]
}

// CheckedDelta is Delta reporting InvalidPort for out of range ports
func CheckedDelta(p Port) (dx, dy int16, err error) {
	if !p.Valid() {
		return 0, 0, protocol.InvalidPort
	}
	dx, dy = Delta(p)
	return dx, dy, nil
}

package network

import (
	"encoding/binary"

	"hexcell/core"
	"hexcell/protocol"
)

// UIDUnassigned marks a NetworkId whose unique id is not yet known
const UIDUnassigned uint32 = 0

// IDSize is the encoded size of a NetworkId
const IDSize = 8

// NetworkId is an axial coordinate plus a device unique id
type NetworkId struct {
	X   int16
	Y   int16
	UID uint32
}

// ComputeExternalID returns the coordinates of the neighbor across p. The
// unique id is left unassigned; only the neighbor itself can supply it.
func (id NetworkId) ComputeExternalID(p Port) NetworkId {
	dx, dy := Delta(p)
	return NetworkId{X: id.X + dx, Y: id.Y + dy, UID: UIDUnassigned}
}

// Assigned reports whether the unique id is known
func (id NetworkId) Assigned() bool {
	return id.UID != UIDUnassigned
}

// SameCoordinates compares positions only
func (id NetworkId) SameCoordinates(x, y int16) bool {
	return id.X == x && id.Y == y
}

// Address packs the coordinates into the 32-bit device address
func (id NetworkId) Address() uint32 {
	return uint32(uint16(id.X))<<16 | uint32(uint16(id.Y))
}

// FromAddress unpacks a 32-bit device address into coordinates
func FromAddress(addr uint32, uid uint32) NetworkId {
	return NetworkId{X: int16(addr >> 16), Y: int16(addr), UID: uid}
}

func (id NetworkId) String() string {
	return "(" + core.Itoa(int(id.X)) + "," + core.Itoa(int(id.Y)) + ")#" + core.Hex32(id.UID)
}

// Distance is the squared euclidean distance between two coordinates
func Distance(ax, ay, bx, by int16) int64 {
	dx := int64(ax) - int64(bx)
	dy := int64(ay) - int64(by)
	return dx*dx + dy*dy
}

// PutID encodes id into dst (8 bytes, little endian)
func PutID(dst []byte, id NetworkId) {
	binary.LittleEndian.PutUint16(dst[0:], uint16(id.X))
	binary.LittleEndian.PutUint16(dst[2:], uint16(id.Y))
	binary.LittleEndian.PutUint32(dst[4:], id.UID)
}

// ReadID decodes an id written by PutID
func ReadID(src []byte) (NetworkId, error) {
	if len(src) < IDSize {
		return NetworkId{}, protocol.InvalidMessageContents
	}
	return NetworkId{
		X:   int16(binary.LittleEndian.Uint16(src[0:])),
		Y:   int16(binary.LittleEndian.Uint16(src[2:])),
		UID: binary.LittleEndian.Uint32(src[4:]),
	}, nil
}

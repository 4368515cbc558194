//go:build rp2040

package pio

import "errors"

var ErrNoStateMachine = errors.New("pio: no free state machine")

// RP2040 has 2 PIO blocks (PIO0, PIO1) with 4 state machines each
var allocations = [2][4]bool{} // [pioNum][smNum]

// allocate returns the first free state machine, PIO0 first
func allocate() (uint8, uint8, bool) {
	for pioNum := range allocations {
		for smNum := range allocations[pioNum] {
			if !allocations[pioNum][smNum] {
				allocations[pioNum][smNum] = true
				return uint8(pioNum), uint8(smNum), true
			}
		}
	}
	return 0, 0, false
}

func release(pioNum, smNum uint8) {
	allocations[pioNum][smNum] = false
}

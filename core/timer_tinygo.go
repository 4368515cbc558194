//go:build tinygo

package core

import "runtime/volatile"

// Written from the main loop, read from interrupt handlers
var systemTicksValue volatile.Register32

// getSystemTicks returns the published hardware time
func getSystemTicks() uint32 {
	return systemTicksValue.Get()
}

// setSystemTicks publishes the hardware time
func setSystemTicks(us uint32) {
	systemTicksValue.Set(us)
}

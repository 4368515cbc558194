//go:build !tinygo

package core

import "sync/atomic"

var systemTicks uint32

// getSystemTicks returns the published time (hosted Go implementation)
func getSystemTicks() uint32 {
	return atomic.LoadUint32(&systemTicks)
}

// setSystemTicks publishes the time (hosted Go implementation)
func setSystemTicks(us uint32) {
	atomic.StoreUint32(&systemTicks, us)
}

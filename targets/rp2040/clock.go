//go:build rp2040

package main

import (
	"runtime/volatile"
	"unsafe"

	"hexcell/core"
)

// RP2040 Timer peripheral memory map
const (
	timerBase     = 0x40054000
	timerTIMERAWL = timerBase + 0x0C // Raw timer low word
)

var timerRAWL = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWL)))

// hardwareClock reads the 1MHz timer. The low word wraps every ~71
// minutes, which the scheduler's wrapping arithmetic absorbs.
type hardwareClock struct{}

func (hardwareClock) Now() core.Microseconds {
	return core.Microseconds(timerRAWL.Get())
}

// updateSystemTime publishes hardware time to core.GetTime users
func updateSystemTime(now core.Microseconds) {
	core.SetTime(now)
}

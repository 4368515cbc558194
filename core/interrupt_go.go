//go:build !tinygo

package core

// State stands in for the interrupt mask on hosted Go
type State uintptr

// disableInterrupts is a no-op on hosted Go; the event ring is guarded by
// single-goroutine ownership there
func disableInterrupts() State {
	return 0
}

// restoreInterrupts is a no-op on hosted Go
func restoreInterrupts(State) {}

//go:build !tinygo

package core

import "sync"

// State is a placeholder for interrupt state on regular Go
type State uintptr

// irqMask stands in for the CPU interrupt mask on the host. Encoder
// "interrupts" are delivered from other goroutines and take the mask for
// the duration of the handler, so a critical section excludes them the same
// way disabling interrupts does on the MCU.
var irqMask sync.Mutex

// disableInterrupts enters a critical section. Not reentrant on the host.
func disableInterrupts() State {
	irqMask.Lock()
	return 0
}

// restoreInterrupts leaves a critical section
func restoreInterrupts(state State) {
	irqMask.Unlock()
}

// enterISR marks the start of an interrupt handler body
func enterISR() {
	irqMask.Lock()
}

// exitISR marks the end of an interrupt handler body
func exitISR() {
	irqMask.Unlock()
}

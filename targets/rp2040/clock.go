//go:build rp2040

package main

import (
	"runtime/volatile"
	"unsafe"

	"quadservo/core"
)

// RP2040 timer peripheral: a free-running 64-bit microsecond counter
const (
	timerBase     = 0x40054000
	timerTIMERAWL = timerBase + 0x28 // raw low word, no latching
)

var timerRAWL = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWL)))

// hardwareTime returns the low 32 bits of the microsecond counter, which
// matches core.TimerFreq
func hardwareTime() uint32 {
	return timerRAWL.Get()
}

// updateSystemTime copies the hardware counter into the core clock
func updateSystemTime() {
	core.SetTime(hardwareTime())
}

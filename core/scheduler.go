package core

import "sync/atomic"

// TimerFreq is the rate of the system clock that drives the timer list.
// The control loop works in microseconds so the clock runs at 1MHz on
// every target.
const TimerFreq = 1000000

var systemTicks atomic.Uint32

// GetTime returns the current system time in timer ticks
func GetTime() uint32 {
	return systemTicks.Load()
}

// SetTime sets the current system time. The firmware main loop feeds it
// from the hardware counter, the simulator from its virtual clock.
func SetTime(ticks uint32) {
	systemTicks.Store(ticks)
}

// AdvanceTime moves the clock forward by ticks and returns the new time
func AdvanceTime(ticks uint32) uint32 {
	return systemTicks.Add(ticks)
}

// TimerFromUS converts microseconds to timer ticks
func TimerFromUS(us uint32) uint32 {
	return uint32(uint64(us) * TimerFreq / 1000000)
}

// TimerToUS converts timer ticks to microseconds
func TimerToUS(ticks uint32) uint32 {
	return uint32(uint64(ticks) * 1000000 / TimerFreq)
}

// TimerIsBefore reports whether a comes before b, tolerating wraparound
func TimerIsBefore(a, b uint32) bool {
	return int32(a-b) < 0
}

// ProcessTimers runs every timer that is due at the current system time
func ProcessTimers() {
	TimerDispatch(GetTime())
}

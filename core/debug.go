package core

import "sync/atomic"

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// EventKind identifies an entry in the event ring
type EventKind uint8

// Event kinds
const (
	EvtNone        EventKind = iota
	EvtArm                   // controller entered Running
	EvtStop                  // controller stopped by request
	EvtFault                 // v1 = FaultReason
	EvtRearm                 // fault cleared
	EvtDecodeFault           // v1 = new faults this tick, v2 = total
	EvtEndstop               // v1 = endstop bits after the change
	EvtSetPosition           // v1 = new raw count
	EvtTickOverrun           // v1 = ticks late
)

func (k EventKind) String() string {
	switch k {
	case EvtArm:
		return "ARM"
	case EvtStop:
		return "STOP"
	case EvtFault:
		return "FAULT"
	case EvtRearm:
		return "REARM"
	case EvtDecodeFault:
		return "DECODE_FAULT"
	case EvtEndstop:
		return "ENDSTOP"
	case EvtSetPosition:
		return "SET_POS"
	case EvtTickOverrun:
		return "OVERRUN"
	default:
		return "UNKNOWN"
	}
}

// Event is one entry of the post-mortem ring
type Event struct {
	Kind   EventKind
	Axis   int8 // -1 for controller-wide events
	Clock  uint32
	Value1 uint32
	Value2 uint32
}

const EventRingSize = 32

var (
	debugPrintln DebugWriter = func(s string) {}
	debugEnabled atomic.Bool

	eventRing     [EventRingSize]Event
	eventRingHead uint8

	debugChan chan string
)

// SetDebugWriter sets the platform-specific debug output function
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled.Store(enabled)
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return debugEnabled.Load()
}

// InitAsyncDebug starts a goroutine that drains DebugAsync messages to the writer
func InitAsyncDebug() {
	debugChan = make(chan string, 16)
	go func() {
		for msg := range debugChan {
			debugPrintln(msg)
		}
	}()
}

// DebugPrintln writes a debug message if debug output is enabled
func DebugPrintln(msg string) {
	if debugEnabled.Load() && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// DebugAsync queues a message for the async writer, dropping it if the
// queue is full. Without InitAsyncDebug it behaves like DebugPrintln.
func DebugAsync(msg string) {
	if !debugEnabled.Load() {
		return
	}
	if debugChan == nil {
		DebugPrintln(msg)
		return
	}
	select {
	case debugChan <- msg:
	default:
	}
}

// RecordEvent appends an event to the ring, overwriting the oldest entry
func RecordEvent(kind EventKind, axis int, value1, value2 uint32) {
	state := disableInterrupts()
	eventRing[eventRingHead] = Event{
		Kind:   kind,
		Axis:   int8(axis),
		Clock:  GetTime(),
		Value1: value1,
		Value2: value2,
	}
	eventRingHead = (eventRingHead + 1) % EventRingSize
	restoreInterrupts(state)
}

// Events returns the recorded events, oldest first
func Events() []Event {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	out := make([]Event, 0, EventRingSize)
	for i := uint8(0); i < EventRingSize; i++ {
		evt := eventRing[(eventRingHead+i)%EventRingSize]
		if evt.Kind != EvtNone {
			out = append(out, evt)
		}
	}
	return out
}

// DumpEvents writes the event ring through the debug writer
func DumpEvents() {
	if debugPrintln == nil {
		return
	}
	debugPrintln("[EVENTS] === Event Ring Dump ===")
	for _, evt := range Events() {
		debugPrintln("[EVENTS] " + evt.Kind.String() +
			" axis=" + itoa(int(evt.Axis)) +
			" clock=" + utoa(evt.Clock) +
			" v1=" + utoa(evt.Value1) +
			" v2=" + utoa(evt.Value2))
	}
	debugPrintln("[EVENTS] === End Dump ===")
}

// ClearEvents empties the event ring
func ClearEvents() {
	state := disableInterrupts()
	eventRing = [EventRingSize]Event{}
	eventRingHead = 0
	restoreInterrupts(state)
}

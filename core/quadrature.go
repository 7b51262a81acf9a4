package core

import "sync/atomic"

// phaseTable maps a pin sample (a | b<<1) to its Gray-code phase:
// (0,0)->0, (1,0)->1, (1,1)->2, (0,1)->3
var phaseTable = [4]uint8{0, 1, 3, 2}

// PhaseOf returns the quadrature phase for one pair of pin samples
func PhaseOf(a, b bool) uint8 {
	idx := 0
	if a {
		idx |= 1
	}
	if b {
		idx |= 2
	}
	return phaseTable[idx]
}

// Decoder turns A/B pin samples into a signed pulse count.
//
// Update is the only writer of the count and phase apart from Preset, which
// runs in a critical section. Readers use the atomic accessors and never
// see a torn value.
type Decoder struct {
	count  atomic.Int32
	phase  atomic.Uint32
	faults atomic.Uint32
}

// Prime sets the phase from the current pin levels without counting. Call
// once at startup so the first edge is decoded against the real state.
func (d *Decoder) Prime(a, b bool) {
	d.phase.Store(uint32(PhaseOf(a, b)))
}

// Update decodes one edge. Safe to call from interrupt context: no locks on
// the MCU, no allocation, constant time.
func (d *Decoder) Update(a, b bool) {
	enterISR()
	next := uint32(PhaseOf(a, b))
	prev := d.phase.Load()
	switch (next - prev) & 3 {
	case 1:
		d.count.Add(1)
	case 3:
		d.count.Add(-1)
	case 2:
		// skipped a phase, direction unknown; resync on the new state
		d.faults.Add(1)
	}
	d.phase.Store(next)
	exitISR()
}

// Count returns the raw pulse count
func (d *Decoder) Count() int32 {
	return d.count.Load()
}

// Phase returns the last decoded phase in [0,3]
func (d *Decoder) Phase() uint8 {
	return uint8(d.phase.Load())
}

// Faults returns the number of illegal transitions seen so far
func (d *Decoder) Faults() uint32 {
	return d.faults.Load()
}

// Preset overwrites the count, excluding concurrent Update calls
func (d *Decoder) Preset(count int32) {
	state := disableInterrupts()
	d.count.Store(count)
	restoreInterrupts(state)
}

//go:build rp2040

package main

import (
	"machine"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"

	"quadservo/core"
)

// The sampler reads both encoder lines every few cycles and pushes the
// pair to the RX FIFO only when it changed, so edges closer together than
// the interrupt latency are still seen in order.
//
//	0: mov isr, null
//	1: in pins, 2        ; bit 0 = A, bit 1 = B
//	2: mov x, isr
//	3: jmp x!=y, 5
//	4: jmp 0
//	5: mov y, x
//	6: push noblock      ; wrap to 0
func buildQuadratureProgram() []uint16 {
	asm := rp2pio.AssemblerV0{SidesetBits: 0}
	return []uint16{
		asm.Mov(rp2pio.MovDestISR, rp2pio.MovSrcNull).Encode(),
		asm.In(rp2pio.InSrcPins, 2).Encode(),
		asm.Mov(rp2pio.MovDestX, rp2pio.MovSrcISR).Encode(),
		asm.Jmp(5, rp2pio.JmpXNotEqualY).Encode(),
		asm.Jmp(0, rp2pio.JmpAlways).Encode(),
		asm.Mov(rp2pio.MovDestY, rp2pio.MovSrcX).Encode(),
		asm.Push(false, false).Encode(),
	}
}

const quadraturePIOOrigin = 0

// pioSampler captures one axis's encoder lines on a PIO state machine.
// encB must be the GPIO after encA.
type pioSampler struct {
	axis int
	sm   rp2pio.StateMachine
}

// pioEncoders samples every axis on PIO0, one state machine per axis
type pioEncoders struct {
	samplers []pioSampler
}

func newPIOEncoders(axes int) (*pioEncoders, error) {
	pio := rp2pio.PIO0
	program := buildQuadratureProgram()
	offset, err := pio.AddProgram(program, quadraturePIOOrigin)
	if err != nil {
		return nil, err
	}

	e := &pioEncoders{samplers: make([]pioSampler, axes)}
	for i := 0; i < axes; i++ {
		p := &board[i]
		sm := pio.StateMachine(uint8(i))
		sm.TryClaim()

		p.encA.Configure(machine.PinConfig{Mode: pio.PinMode()})
		p.encB.Configure(machine.PinConfig{Mode: pio.PinMode()})

		cfg := rp2pio.DefaultStateMachineConfig()
		cfg.SetInPins(p.encA)
		cfg.SetInShift(false, false, 32)
		cfg.SetWrap(offset+uint8(len(program))-1, offset)
		// 12.5 MHz state machine clock
		cfg.SetClkDivIntFrac(10, 0)

		sm.Init(offset, cfg)
		sm.SetPindirsConsecutive(p.encA, 2, false)
		sm.SetEnabled(true)

		e.samplers[i] = pioSampler{axis: i, sm: sm}
	}
	return e, nil
}

// drain feeds every captured transition to the decoders. Call from the
// main loop often enough that the 4-entry FIFOs never fill.
func (e *pioEncoders) drain(ctrl *core.Controller) {
	for i := range e.samplers {
		s := &e.samplers[i]
		for !s.sm.IsRxFIFOEmpty() {
			v := s.sm.RxGet()
			ctrl.EncoderSample(s.axis, v&1 != 0, v&2 != 0)
		}
	}
}

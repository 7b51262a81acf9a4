//go:build rp2040

package main

import "machine"

// On the RP2040 machine.Serial is the USB CDC-ACM port set up by the runtime.

func initUSB() {
	machine.Serial.Configure(machine.UARTConfig{})
}

// readUSB moves whatever is buffered into dst and returns the byte count
func readUSB(dst []byte) int {
	n := 0
	for n < len(dst) && machine.Serial.Buffered() > 0 {
		b, err := machine.Serial.ReadByte()
		if err != nil {
			break
		}
		dst[n] = b
		n++
	}
	return n
}

// writeUSB writes all of data, giving up after a few stalled attempts so a
// disconnected host cannot block the control loop
func writeUSB(data []byte) {
	stalls := 0
	for len(data) > 0 && stalls < 10 {
		n, err := machine.Serial.Write(data)
		if err != nil || n == 0 {
			stalls++
			continue
		}
		data = data[n:]
	}
}

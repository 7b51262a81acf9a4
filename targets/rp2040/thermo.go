//go:build rp2040

package main

import (
	"machine"

	"quadservo/thermo"
)

// thermoRate is within the converters' 4.3 MHz limit
const thermoRate = 1000000

// configureThermo brings up SPI1 for the thermocouple converters. The
// converters clock data out on the falling edge, so SPI mode 0 samples it
// mid-bit.
func configureThermo() (*thermo.Bank, error) {
	for _, cs := range thermoCS {
		cs.Configure(machine.PinConfig{Mode: machine.PinOutput})
	}
	err := machine.SPI1.Configure(machine.SPIConfig{
		Frequency: thermoRate,
		SCK:       thermoSCK,
		SDO:       thermoSDO,
		SDI:       thermoSDI,
		Mode:      0,
	})
	if err != nil {
		return nil, err
	}
	return thermo.NewBank(machine.SPI1, thermoCS[0], thermoCS[1]), nil
}

package thermo

import (
	"errors"
	"testing"

	"quadservo/core"
)

type fakeSPI struct {
	frames map[int]uint16
	sel    *int
	err    error
	calls  int
}

func (f *fakeSPI) Tx(w, r []byte) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	frame := f.frames[*f.sel]
	r[0] = byte(frame >> 8)
	r[1] = byte(frame)
	return nil
}

func (f *fakeSPI) Transfer(b byte) (byte, error) {
	return 0, errors.New("not used")
}

type fakeCS struct {
	id  int
	sel *int
	low bool
}

func (c *fakeCS) High() {
	c.low = false
	if *c.sel == c.id {
		*c.sel = -1
	}
}

func (c *fakeCS) Low() {
	c.low = true
	*c.sel = c.id
}

func newBank(frames map[int]uint16) (*Bank, *fakeSPI, []*fakeCS) {
	sel := -1
	bus := &fakeSPI{frames: frames, sel: &sel}
	cs := []*fakeCS{{id: 0, sel: &sel}, {id: 1, sel: &sel}}
	return NewBank(bus, cs[0], cs[1]), bus, cs
}

func TestDecode(t *testing.T) {
	testCases := []struct {
		name     string
		frame    uint16
		expected float32
	}{
		{"zero", 0x0000, 0},
		{"one lsb", 1 << 3, 0.25},
		{"room", 100 << 3, 25},
		{"full scale", 0x0FFF << 3, 1023.75},
		{"ignores low bits", 100<<3 | 0x3, 25},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Decode(tc.frame)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if got != tc.expected {
				t.Errorf("Expected %v, got %v", tc.expected, got)
			}
		})
	}
}

func TestDecodeOpen(t *testing.T) {
	_, err := Decode(100<<3 | openBit)
	if !errors.Is(err, ErrOpenCircuit) {
		t.Errorf("Expected ErrOpenCircuit, got %v", err)
	}
	if !errors.Is(err, core.ErrTemperatureUnavailable) {
		t.Errorf("Expected open circuit to be unavailable, got %v", err)
	}
	if _, err := Decode(0xFFFF); !IsUnavailable(err) {
		t.Errorf("Expected floating bus to be unavailable, got %v", err)
	}
}

func TestBankSelectsChannel(t *testing.T) {
	b, _, cs := newBank(map[int]uint16{0: 80 << 3, 1: 400 << 3})
	for _, c := range cs {
		if c.low {
			t.Fatalf("Expected channel %d deselected after NewBank", c.id)
		}
	}
	if b.Channels() != 2 {
		t.Fatalf("Expected 2 channels, got %d", b.Channels())
	}

	got, err := b.ReadTemperature(0)
	if err != nil || got != 20 {
		t.Errorf("Expected 20, nil; got %v, %v", got, err)
	}
	got, err = b.ReadTemperature(1)
	if err != nil || got != 100 {
		t.Errorf("Expected 100, nil; got %v, %v", got, err)
	}
	for _, c := range cs {
		if c.low {
			t.Errorf("Expected channel %d released after read", c.id)
		}
	}
}

func TestBankInvalidChannel(t *testing.T) {
	b, bus, _ := newBank(nil)
	for _, ch := range []int{-1, 2} {
		if _, err := b.ReadTemperature(ch); !errors.Is(err, core.ErrInvalidChannel) {
			t.Errorf("Channel %d: expected ErrInvalidChannel, got %v", ch, err)
		}
	}
	if bus.calls != 0 {
		t.Errorf("Expected no bus traffic, got %d transfers", bus.calls)
	}
}

func TestBankBusError(t *testing.T) {
	b, bus, cs := newBank(map[int]uint16{0: 80 << 3})
	bus.err = errors.New("bus stuck")
	_, err := b.ReadTemperature(0)
	if !IsUnavailable(err) {
		t.Errorf("Expected bus error to be unavailable, got %v", err)
	}
	if cs[0].low {
		t.Error("Expected chip select released after bus error")
	}
}

func TestBankAsControllerSensor(t *testing.T) {
	var _ core.TemperatureSensor = (*Bank)(nil)
}

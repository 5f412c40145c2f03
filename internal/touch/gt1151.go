package touch

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
)

const (
	gt1151Addr      = 0x14
	regProductID    = 0x8140
	regStatus       = 0x814E
	regPoints       = 0x814F
	pointRecordSize = 8
)

// GT1151 is the capacitive touch controller on the Waveshare touch HAT.
type GT1151 struct {
	bus i2c.BusCloser
	dev *i2c.Dev
	irq gpio.PinIn
	rst gpio.PinOut
}

var _ Controller = (*GT1151)(nil)

// OpenGT1151 opens the controller on the given I2C bus with its interrupt
// and reset lines. host.Init must have been called.
func OpenGT1151(busName, intPin, rstPin string) (*GT1151, error) {
	irq := gpioreg.ByName(intPin)
	if irq == nil {
		return nil, fmt.Errorf("touch interrupt pin %q not found", intPin)
	}
	rst := gpioreg.ByName(rstPin)
	if rst == nil {
		return nil, fmt.Errorf("touch reset pin %q not found", rstPin)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("open i2c %q: %w", busName, err)
	}
	return &GT1151{
		bus: bus,
		dev: &i2c.Dev{Bus: bus, Addr: gt1151Addr},
		irq: irq,
		rst: rst,
	}, nil
}

// Init resets the chip and checks that it answers.
func (g *GT1151) Init() error {
	for _, l := range []gpio.Level{gpio.High, gpio.Low, gpio.High} {
		if err := g.rst.Out(l); err != nil {
			return fmt.Errorf("touch reset: %w", err)
		}
		time.Sleep(100 * time.Millisecond)
	}
	if err := g.irq.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return fmt.Errorf("touch interrupt: %w", err)
	}
	if _, err := g.read(regProductID, 4); err != nil {
		return fmt.Errorf("touch product id: %w", err)
	}
	return nil
}

// Touched reports whether the interrupt line is asserted (active low).
func (g *GT1151) Touched() (bool, error) {
	return g.irq.Read() == gpio.Low, nil
}

// Read returns the first reported touch point, if any, and acknowledges the
// controller's buffer.
func (g *GT1151) Read() (Raw, bool, error) {
	status, err := g.read(regStatus, 1)
	if err != nil {
		return Raw{}, false, err
	}
	if status[0]&0x80 == 0 {
		return Raw{}, false, nil
	}
	count := int(status[0] & 0x0F)
	if count < 1 || count > 5 {
		_ = g.write(regStatus, 0x00)
		return Raw{}, false, nil
	}
	data, err := g.read(regPoints, count*pointRecordSize)
	if err != nil {
		return Raw{}, false, err
	}
	_ = g.write(regStatus, 0x00)
	x := int(data[1]) | int(data[2])<<8
	y := int(data[3]) | int(data[4])<<8
	if x < 0 || x >= ShortSide || y < 0 || y >= LongSide {
		return Raw{}, false, nil
	}
	return Raw{X: x, Y: y}, true, nil
}

func (g *GT1151) Close() error {
	if g.bus != nil {
		return g.bus.Close()
	}
	return nil
}

func (g *GT1151) read(reg uint16, n int) ([]byte, error) {
	w := []byte{byte(reg >> 8), byte(reg & 0xFF)}
	r := make([]byte, n)
	if err := g.dev.Tx(w, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (g *GT1151) write(reg uint16, b byte) error {
	w := []byte{byte(reg >> 8), byte(reg & 0xFF), b}
	return g.dev.Tx(w, nil)
}

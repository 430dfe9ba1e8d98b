package adc

import (
	"fmt"

	"go.uber.org/multierr"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ads1x15"
	"periph.io/x/host/v3"
)

// I²C addresses of the two converters. The first carries throttle, torque,
// battery and motor temperature; the second carries controller temperature.
const (
	PrimaryAddr   = 0x48
	SecondaryAddr = 0x49
)

const (
	fullScaleRange = 4096 * physic.MilliVolt
	sampleRate     = 860 * physic.Hertz
)

type wiring struct {
	secondary bool
	input     ads1x15.Channel
}

var channelWiring = map[Channel]wiring{
	Throttle:       {false, ads1x15.Channel0},
	Torque:         {false, ads1x15.Channel1},
	Battery:        {false, ads1x15.Channel2},
	MotorTemp:      {false, ads1x15.Channel3},
	ControllerTemp: {true, ads1x15.Channel0},
}

// ADS1115Reader samples the analog inputs from two ADS1115 converters.
type ADS1115Reader struct {
	bus  i2c.BusCloser
	pins map[Channel]ads1x15.PinADC
}

// NewADS1115Reader initialises periph, opens the named I²C bus ("" for the
// default) and configures one single-ended pin per channel.
func NewADS1115Reader(busName string) (*ADS1115Reader, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init periph host: %w", err)
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", busName, err)
	}

	primary, err := ads1x15.NewADS1115(bus, &ads1x15.Opts{I2cAddress: PrimaryAddr})
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("open ads1115 at %#x: %w", PrimaryAddr, err)
	}
	secondary, err := ads1x15.NewADS1115(bus, &ads1x15.Opts{I2cAddress: SecondaryAddr})
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("open ads1115 at %#x: %w", SecondaryAddr, err)
	}

	r := &ADS1115Reader{bus: bus, pins: make(map[Channel]ads1x15.PinADC)}
	for ch, w := range channelWiring {
		dev := primary
		if w.secondary {
			dev = secondary
		}
		pin, err := dev.PinForChannel(w.input, fullScaleRange, sampleRate, ads1x15.BestQuality)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("configure %s input: %w", ch, err)
		}
		r.pins[ch] = pin
	}

	return r, nil
}

// ReadAnalog performs a single conversion on the channel.
func (r *ADS1115Reader) ReadAnalog(ch Channel) (int, error) {
	pin, ok := r.pins[ch]
	if !ok {
		return 0, fmt.Errorf("read %s: channel not configured", ch)
	}
	sample, err := pin.Read()
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", ch, err)
	}
	return codeFor(float64(sample.V) / float64(physic.Volt)), nil
}

// Close halts every pin and releases the bus.
func (r *ADS1115Reader) Close() error {
	var err error
	for ch, pin := range r.pins {
		if herr := pin.Halt(); herr != nil {
			err = multierr.Append(err, fmt.Errorf("halt %s: %w", ch, herr))
		}
	}
	if r.bus != nil {
		err = multierr.Append(err, r.bus.Close())
	}
	return err
}

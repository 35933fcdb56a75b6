package serialmux

import (
	"fmt"
	"strconv"
	"strings"

	"go.bug.st/serial"
)

// DefaultBaudRate is the IMU's factory baud rate.
const DefaultBaudRate = 115200

// PortOptions describes the serial connection used to talk to the IMU.
type PortOptions struct {
	BaudRate int    `json:"baud_rate"`
	DataBits int    `json:"data_bits"`
	StopBits int    `json:"stop_bits"`
	Parity   string `json:"parity"`
}

// ParsePortOptions parses a compact "baud,databits,parity,stopbits" string
// such as "115200,8,N,1". Trailing fields may be omitted.
func ParsePortOptions(s string) (PortOptions, error) {
	var opts PortOptions
	s = strings.TrimSpace(s)
	if s == "" {
		return opts.Normalize()
	}
	fields := strings.Split(s, ",")
	if len(fields) > 4 {
		return opts, fmt.Errorf("invalid port options %q: expected baud,databits,parity,stopbits", s)
	}
	atoi := func(name, v string) (int, error) {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("invalid %s %q: %w", name, v, err)
		}
		return n, nil
	}

	var err error
	if opts.BaudRate, err = atoi("baud rate", fields[0]); err != nil {
		return opts, err
	}
	if len(fields) > 1 {
		if opts.DataBits, err = atoi("data bits", fields[1]); err != nil {
			return opts, err
		}
	}
	if len(fields) > 2 {
		opts.Parity = fields[2]
	}
	if len(fields) > 3 {
		if opts.StopBits, err = atoi("stop bits", fields[3]); err != nil {
			return opts, err
		}
	}
	return opts.Normalize()
}

// Normalize validates the options and applies defaults for unset values.
func (o PortOptions) Normalize() (PortOptions, error) {
	opts := o

	if opts.BaudRate <= 0 {
		opts.BaudRate = DefaultBaudRate
	}

	if opts.DataBits == 0 {
		opts.DataBits = 8
	}
	if opts.DataBits < 5 || opts.DataBits > 8 {
		return opts, fmt.Errorf("invalid data bits %d: must be between 5 and 8", opts.DataBits)
	}

	if opts.StopBits == 0 {
		opts.StopBits = 1
	}
	if opts.StopBits != 1 && opts.StopBits != 2 {
		return opts, fmt.Errorf("invalid stop bits %d: supported values are 1 or 2", opts.StopBits)
	}

	switch strings.TrimSpace(strings.ToUpper(opts.Parity)) {
	case "", "N", "NONE":
		opts.Parity = "N"
	case "E", "EVEN":
		opts.Parity = "E"
	case "O", "ODD":
		opts.Parity = "O"
	default:
		return opts, fmt.Errorf("unsupported parity %q: expected N, E, or O", opts.Parity)
	}
	return opts, nil
}

// String renders the options in the form accepted by ParsePortOptions.
func (o PortOptions) String() string {
	return fmt.Sprintf("%d,%d,%s,%d", o.BaudRate, o.DataBits, o.Parity, o.StopBits)
}

// SerialMode converts the options into the go.bug.st/serial mode used to
// open the port.
func (o PortOptions) SerialMode() (*serial.Mode, error) {
	opts, err := o.Normalize()
	if err != nil {
		return nil, err
	}

	mode := &serial.Mode{
		BaudRate: opts.BaudRate,
		DataBits: opts.DataBits,
	}
	if opts.StopBits == 2 {
		mode.StopBits = serial.TwoStopBits
	} else {
		mode.StopBits = serial.OneStopBit
	}

	switch opts.Parity {
	case "E":
		mode.Parity = serial.EvenParity
	case "O":
		mode.Parity = serial.OddParity
	default:
		mode.Parity = serial.NoParity
	}
	return mode, nil
}

package printer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"
)

const (
	DefaultBaudRate = 115200

	serialReadTimeout = 200 * time.Millisecond
)

// SerialLink is an open serial port to a printer. Bluetooth links keep the
// RFCOMM binding in release so it goes away with the port.
type SerialLink struct {
	port     serial.Port
	portName string
	release  io.Closer
}

// OpenSerial opens a connection to the printer on the given serial port
func OpenSerial(portName string, baud int) (*SerialLink, error) {
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open port %s: %w", portName, err)
	}

	if err := port.SetReadTimeout(serialReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", portName, err)
	}

	return &SerialLink{
		port:     port,
		portName: portName,
	}, nil
}

// Write sends raw data to the printer
func (l *SerialLink) Write(data []byte) (int, error) {
	if l.port == nil {
		return 0, ErrNotOpen
	}
	return l.port.Write(data)
}

// Read returns (0, nil) when the read timeout expires
func (l *SerialLink) Read(buf []byte) (int, error) {
	if l.port == nil {
		return 0, ErrNotOpen
	}
	return l.port.Read(buf)
}

// Close closes the port and any RFCOMM binding behind it
func (l *SerialLink) Close() error {
	var errs []error
	if l.port != nil {
		if err := l.port.Close(); err != nil {
			errs = append(errs, err)
		}
		l.port = nil
	}
	if l.release != nil {
		if err := l.release.Close(); err != nil {
			errs = append(errs, err)
		}
		l.release = nil
	}
	return errors.Join(errs...)
}

// PortName returns the current port name
func (l *SerialLink) PortName() string {
	return l.portName
}

// FindRFCOMMDevices lists bound /dev/rfcomm* devices
func FindRFCOMMDevices() ([]string, error) {
	devices, err := filepath.Glob("/dev/rfcomm*")
	if err != nil {
		return nil, err
	}
	sort.Strings(devices)
	return devices, nil
}

// SerialTransport treats serial ports as raw-port printers. With Port set
// only that port is reported; otherwise every port the OS lists is.
type SerialTransport struct {
	Port     string
	BaudRate int
	poll     poller
}

func NewSerialTransport(port string, baud int, interval time.Duration, logger *zap.Logger) *SerialTransport {
	t := &SerialTransport{Port: port, BaudRate: baud}
	t.poll = poller{list: t.Accessories, interval: interval, logger: nopIfNil(logger)}
	return t
}

func (t *SerialTransport) Accessories() ([]Accessory, error) {
	var ports []string
	if t.Port != "" {
		if _, err := os.Stat(t.Port); err != nil && filepath.IsAbs(t.Port) {
			return nil, nil
		}
		ports = []string{t.Port}
	} else {
		list, err := serial.GetPortsList()
		if err != nil {
			return nil, fmt.Errorf("failed to list serial ports: %w", err)
		}
		rfcomm, _ := FindRFCOMMDevices()
		ports = mergePorts(list, rfcomm)
	}

	accessories := make([]Accessory, 0, len(ports))
	for _, p := range ports {
		accessories = append(accessories, Accessory{
			Name:      filepath.Base(p),
			Address:   p,
			Transport: KindSerial,
			Protocols: []string{RawPortProtocol},
		})
	}
	return accessories, nil
}

func (t *SerialTransport) Open(_ context.Context, acc Accessory) (Link, error) {
	return OpenSerial(acc.Address, t.BaudRate)
}

func (t *SerialTransport) Watch(ctx context.Context) <-chan Event {
	return t.poll.watch(ctx)
}

func mergePorts(lists ...[]string) []string {
	seen := make(map[string]bool)
	var ports []string
	for _, list := range lists {
		for _, p := range list {
			if !seen[p] {
				seen[p] = true
				ports = append(ports, p)
			}
		}
	}
	sort.Strings(ports)
	return ports
}

package printer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"zebra-label/internal/logging"
)

// Bluetooth errors
var (
	ErrRFCOMMFailed       = errors.New("failed to establish RFCOMM connection")
	ErrPrivilegeRequired  = errors.New("root privileges required for RFCOMM")
	ErrConnectionCanceled = errors.New("connection canceled")
	ErrNotSupported       = errors.New("operation not supported on this platform")
)

// DefaultRFCOMMChannel is the SPP channel Zebra mobile printers listen on
const DefaultRFCOMMChannel = 1

// BluetoothDevice represents a paired Bluetooth device
type BluetoothDevice struct {
	Name       string
	MAC        string // MAC address on Linux, or COM port on Windows
	SerialPort bool   // advertises the Serial Port profile
}

func (d BluetoothDevice) accessory() Accessory {
	acc := Accessory{
		Name:      d.Name,
		Address:   d.MAC,
		Transport: KindBluetooth,
	}
	if d.SerialPort {
		acc.Protocols = []string{RawPortProtocol}
	}
	return acc
}

// BluetoothTransport opens paired SPP printers through an RFCOMM-bound
// serial port. Platform specifics live in bluetooth_<os>.go.
type BluetoothTransport struct {
	Channel  int
	BaudRate int
	logger   *zap.Logger
	poll     poller
}

func NewBluetoothTransport(channel, baud int, interval time.Duration, logger *zap.Logger) *BluetoothTransport {
	if channel <= 0 {
		channel = DefaultRFCOMMChannel
	}
	t := &BluetoothTransport{
		Channel:  channel,
		BaudRate: baud,
		logger:   nopIfNil(logger),
	}
	t.poll = poller{list: t.connected, interval: interval, logger: t.logger}
	return t
}

// Accessories lists paired devices, marking SPP devices as raw-port printers
func (t *BluetoothTransport) Accessories() ([]Accessory, error) {
	devices, err := ListPairedBluetoothDevices()
	if err != nil {
		return nil, err
	}

	accessories := make([]Accessory, 0, len(devices))
	for _, d := range devices {
		accessories = append(accessories, d.accessory())
	}
	return accessories, nil
}

func (t *BluetoothTransport) connected() ([]Accessory, error) {
	devices, err := ListConnectedBluetoothDevices()
	if err != nil {
		return nil, err
	}

	accessories := make([]Accessory, 0, len(devices))
	for _, d := range devices {
		accessories = append(accessories, d.accessory())
	}
	return accessories, nil
}

// Open binds an RFCOMM device for acc and opens it as a serial port
func (t *BluetoothTransport) Open(ctx context.Context, acc Accessory) (Link, error) {
	logger := logging.ForDevice(t.logger, KindBluetooth, acc.Address)

	conn, err := EstablishRFCOMM(ctx, acc.Address, t.Channel, func(status string) {
		logger.Debug("rfcomm", zap.String("status", status))
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRFCOMMFailed, err)
	}

	link, err := OpenSerial(conn.DevicePath, t.BaudRate)
	if err != nil {
		conn.Close()
		return nil, err
	}
	link.release = conn
	logger.Info("rfcomm link open", zap.String("port", conn.DevicePath))
	return link, nil
}

func (t *BluetoothTransport) Watch(ctx context.Context) <-chan Event {
	return t.poll.watch(ctx)
}

// sppUUID is the Serial Port profile service class
const sppUUID = "00001101-0000-1000-8000-00805f9b34fb"

// parseBluetoothctlDevices parses "Device XX:XX:XX:XX:XX:XX DeviceName" lines
func parseBluetoothctlDevices(out string) []BluetoothDevice {
	var devices []BluetoothDevice
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "Device ") {
			continue
		}
		parts := strings.SplitN(strings.TrimPrefix(line, "Device "), " ", 2)
		if len(parts) == 2 {
			devices = append(devices, BluetoothDevice{
				MAC:  parts[0],
				Name: parts[1],
			})
		}
	}
	return devices
}

// advertisesSerialPort looks for the SPP UUID in `bluetoothctl info` output
func advertisesSerialPort(info string) bool {
	return strings.Contains(strings.ToLower(info), sppUUID)
}

// markSerialPort sets SerialPort on the devices whose info lists the SPP
// UUID. A device whose info cannot be read is left unmarked.
func markSerialPort(devices []BluetoothDevice, info func(mac string) (string, error)) {
	for i := range devices {
		out, err := info(devices[i].MAC)
		devices[i].SerialPort = err == nil && advertisesSerialPort(out)
	}
}

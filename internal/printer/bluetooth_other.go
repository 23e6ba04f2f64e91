//go:build !linux && !windows

package printer

import "context"

// RFCOMMConnection is unused on platforms without an RFCOMM helper
type RFCOMMConnection struct {
	DevicePath string
	MAC        string
}

func ListPairedBluetoothDevices() ([]BluetoothDevice, error) {
	return nil, ErrNotSupported
}

func ListConnectedBluetoothDevices() ([]BluetoothDevice, error) {
	return nil, ErrNotSupported
}

func EstablishRFCOMM(_ context.Context, _ string, _ int, _ func(string)) (*RFCOMMConnection, error) {
	return nil, ErrNotSupported
}

func (c *RFCOMMConnection) Close() error {
	return nil
}

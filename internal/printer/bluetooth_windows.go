//go:build windows

package printer

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sys/windows/registry"
)

// RFCOMMConnection is a compatibility type for Windows
// On Windows, we don't need to manage RFCOMM - COM ports are created automatically
type RFCOMMConnection struct {
	DevicePath string
	MAC        string
}

// ListPairedBluetoothDevices returns Bluetooth COM ports on Windows
// On Windows, paired BT SPP devices appear as COM ports automatically
func ListPairedBluetoothDevices() ([]BluetoothDevice, error) {
	ports, err := getBluetoothCOMPorts()
	if err != nil {
		return nil, fmt.Errorf("failed to read Bluetooth COM ports: %w", err)
	}

	names := make([]string, 0, len(ports))
	for name := range ports {
		names = append(names, name)
	}
	sort.Strings(names)

	devices := make([]BluetoothDevice, 0, len(names))
	for _, name := range names {
		devices = append(devices, BluetoothDevice{
			Name:       name,
			MAC:        ports[name], // On Windows, we use COM port as identifier
			SerialPort: true,
		})
	}
	return devices, nil
}

// ListConnectedBluetoothDevices reports every Bluetooth COM port; Windows keeps
// them registered while the device is paired.
func ListConnectedBluetoothDevices() ([]BluetoothDevice, error) {
	return ListPairedBluetoothDevices()
}

// getBluetoothCOMPorts reads Bluetooth COM port mappings from registry
func getBluetoothCOMPorts() (map[string]string, error) {
	ports := make(map[string]string)

	key, err := registry.OpenKey(registry.LOCAL_MACHINE, `HARDWARE\DEVICEMAP\SERIALCOMM`, registry.READ)
	if err != nil {
		return nil, err
	}
	defer key.Close()

	names, err := key.ReadValueNames(-1)
	if err != nil {
		return nil, err
	}

	for _, name := range names {
		val, _, err := key.GetStringValue(name)
		if err == nil {
			lower := strings.ToLower(name)
			if strings.Contains(lower, "bth") || strings.Contains(lower, "bluetooth") {
				ports[name] = val
			}
		}
	}

	return ports, nil
}

// EstablishRFCOMM on Windows simply returns the COM port path
func EstablishRFCOMM(_ context.Context, mac string, _ int, statusCallback func(string)) (*RFCOMMConnection, error) {
	// On Windows, 'mac' is actually the COM port (e.g., "COM3")
	if statusCallback != nil {
		statusCallback(fmt.Sprintf("Using port %s...", mac))
	}

	comPath := mac
	if !strings.HasPrefix(strings.ToUpper(mac), "COM") {
		return nil, fmt.Errorf("invalid COM port: %s", mac)
	}

	// For COM ports > 9, need to use \\.\COM10 format
	if len(mac) > 4 {
		comPath = `\\.\` + mac
	}

	return &RFCOMMConnection{
		DevicePath: comPath,
		MAC:        mac,
	}, nil
}

// Close is a no-op on Windows (COM ports don't need special cleanup)
func (c *RFCOMMConnection) Close() error {
	return nil
}

//go:build linux

package printer

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"
)

const rfcommReadyTimeout = 15 * time.Second

// RFCOMMConnection manages an RFCOMM connection process (Linux-specific)
type RFCOMMConnection struct {
	DevicePath string
	MAC        string
	cmd        *exec.Cmd
	cancel     context.CancelFunc
	mu         sync.Mutex
}

// ListPairedBluetoothDevices returns all paired Bluetooth devices
func ListPairedBluetoothDevices() ([]BluetoothDevice, error) {
	out, err := exec.Command("bluetoothctl", "devices", "Paired").Output()
	if err != nil {
		return nil, fmt.Errorf("failed to list paired devices: %w", err)
	}

	devices := parseBluetoothctlDevices(string(out))
	markSerialPort(devices, bluetoothctlInfo)
	return devices, nil
}

// ListConnectedBluetoothDevices returns paired devices currently in range and connected
func ListConnectedBluetoothDevices() ([]BluetoothDevice, error) {
	out, err := exec.Command("bluetoothctl", "devices", "Connected").Output()
	if err != nil {
		return nil, fmt.Errorf("failed to list connected devices: %w", err)
	}

	devices := parseBluetoothctlDevices(string(out))
	markSerialPort(devices, bluetoothctlInfo)
	return devices, nil
}

func bluetoothctlInfo(mac string) (string, error) {
	out, err := exec.Command("bluetoothctl", "info", mac).Output()
	return string(out), err
}

// FindAvailableRFCOMMDevice finds an unused /dev/rfcommN device number
func FindAvailableRFCOMMDevice() (string, int, error) {
	for i := 0; i < 10; i++ {
		devPath := fmt.Sprintf("/dev/rfcomm%d", i)
		if _, err := os.Stat(devPath); os.IsNotExist(err) {
			return devPath, i, nil
		}
	}
	return "", -1, fmt.Errorf("no available RFCOMM device slots")
}

// CheckRFCOMMInstalled verifies rfcomm binary is available
func CheckRFCOMMInstalled() error {
	_, err := exec.LookPath("rfcomm")
	if err != nil {
		return fmt.Errorf("rfcomm not found - install with: sudo apt install bluez")
	}
	return nil
}

// CheckPrivilegeHelper checks which privilege escalation method is available
func CheckPrivilegeHelper() string {
	// pkexec works with a GUI session
	if _, err := exec.LookPath("pkexec"); err == nil {
		return "pkexec"
	}
	if _, err := exec.LookPath("sudo"); err == nil {
		return "sudo"
	}
	return ""
}

// EstablishRFCOMM runs rfcomm connect in the background and returns once the
// device node exists. ctx bounds the wait, not the life of the binding.
func EstablishRFCOMM(ctx context.Context, mac string, channel int, statusCallback func(string)) (*RFCOMMConnection, error) {
	if err := CheckRFCOMMInstalled(); err != nil {
		return nil, err
	}

	devPath, devNum, err := FindAvailableRFCOMMDevice()
	if err != nil {
		return nil, err
	}

	helper := CheckPrivilegeHelper()
	if helper == "" {
		return nil, ErrPrivilegeRequired
	}

	procCtx, cancel := context.WithCancel(context.Background())
	conn := &RFCOMMConnection{
		DevicePath: devPath,
		MAC:        mac,
		cancel:     cancel,
	}

	rfcommArgs := []string{"connect", fmt.Sprintf("/dev/rfcomm%d", devNum), mac, fmt.Sprintf("%d", channel)}

	var cmd *exec.Cmd
	if helper == "pkexec" {
		cmd = exec.CommandContext(procCtx, "pkexec", append([]string{"rfcomm"}, rfcommArgs...)...)
	} else {
		cmd = exec.CommandContext(procCtx, "sudo", append([]string{"-n", "rfcomm"}, rfcommArgs...)...)
	}
	conn.cmd = cmd

	stderr, _ := cmd.StderrPipe()
	stdout, _ := cmd.StdoutPipe()

	if statusCallback != nil {
		statusCallback(fmt.Sprintf("Connecting to %s...", mac))
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start rfcomm: %w", err)
	}

	go forwardLines(stdout, statusCallback)
	go forwardLines(stderr, statusCallback)

	deadline := time.Now().Add(rfcommReadyTimeout)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			conn.Close()
			return nil, ErrConnectionCanceled
		default:
		}

		if _, err := os.Stat(devPath); err == nil {
			// Device exists, give it a moment to be ready
			time.Sleep(500 * time.Millisecond)
			if statusCallback != nil {
				statusCallback(fmt.Sprintf("Connected: %s", devPath))
			}
			return conn, nil
		}
		time.Sleep(500 * time.Millisecond)
	}

	conn.Close()
	return nil, fmt.Errorf("timeout waiting for %s to appear", devPath)
}

func forwardLines(r io.Reader, statusCallback func(string)) {
	if r == nil {
		return
	}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if statusCallback != nil {
			statusCallback(scanner.Text())
		}
	}
}

// Close terminates the RFCOMM connection
func (c *RFCOMMConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}

	if c.DevicePath != "" {
		// Try to release - may need privileges
		switch CheckPrivilegeHelper() {
		case "pkexec":
			exec.Command("pkexec", "rfcomm", "release", c.DevicePath).Run()
		case "sudo":
			exec.Command("sudo", "-n", "rfcomm", "release", c.DevicePath).Run()
		}
	}

	if c.cmd != nil && c.cmd.Process != nil {
		c.cmd.Process.Kill()
		c.cmd.Wait()
		c.cmd = nil
	}

	return nil
}

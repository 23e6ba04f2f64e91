package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zebra-label/internal/job"
	"zebra-label/internal/label"
	"zebra-label/internal/printer"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "zebra-label.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { require.NoError(t, os.Chdir(wd)) })
}

func TestDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("HOME", t.TempDir())

	c, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, TransportBluetooth, c.Transport)
	assert.Equal(t, printer.RawPortProtocol, c.Protocol)
	assert.Equal(t, printer.DefaultWatchInterval, c.WatchInterval)
	assert.Equal(t, printer.DefaultRFCOMMChannel, c.Bluetooth.Channel)
	assert.Equal(t, printer.DefaultBaudRate, c.Serial.Baud)
	assert.Equal(t, uint16(0x0a5f), c.USB.Vendor)
	assert.Equal(t, job.DetectPerConnection, c.DetectPolicy)
	assert.Equal(t, printer.DefaultQueryTimeout, c.DetectTimeout)
	assert.Equal(t, label.DefaultOptions(), c.Label)
	assert.Equal(t, "info", c.Log.Level)
	assert.False(t, c.Log.Development)
}

func TestFileOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
transport: usb
usb:
  vendor: "0x1234"
detect:
  policy: every-job
  timeout: 500ms
label:
  duplicate_end_marker: true
  cpcl_max: "MAX:90"
log:
  level: debug
`)

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, TransportUSB, c.Transport)
	assert.Equal(t, uint16(0x1234), c.USB.Vendor)
	assert.Equal(t, job.DetectEveryJob, c.DetectPolicy)
	assert.Equal(t, 500*time.Millisecond, c.DetectTimeout)
	assert.True(t, c.Label.DuplicateEndMarker)
	assert.Equal(t, "MIN:-6", c.Label.CPCLMin)
	assert.Equal(t, "MAX:90", c.Label.CPCLMax)
	assert.Equal(t, "debug", c.Log.Level)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "transport: usb\n")
	t.Setenv("ZEBRA_LABEL_TRANSPORT", "serial")
	t.Setenv("ZEBRA_LABEL_SERIAL_PORT", "/dev/ttyUSB0")
	t.Setenv("ZEBRA_LABEL_LABEL_DUPLICATE_END_MARKER", "true")

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, TransportSerial, c.Transport)
	assert.Equal(t, "/dev/ttyUSB0", c.Serial.Port)
	assert.True(t, c.Label.DuplicateEndMarker)
}

func TestSearchPathFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "zebra-label.yaml"), []byte("transport: serial\n"), 0o600))
	chdir(t, dir)

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, TransportSerial, c.Transport)
}

func TestInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"transport", "transport: carrier-pigeon\n"},
		{"vendor", "usb:\n  vendor: zebra\n"},
		{"policy", "detect:\n  policy: sometimes\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestNewTransport(t *testing.T) {
	c := &Config{Transport: TransportSerial}
	c.Serial.Port = "/dev/ttyUSB0"

	tr, err := c.NewTransport(nil)
	require.NoError(t, err)
	assert.IsType(t, &printer.SerialTransport{}, tr)

	c.Transport = TransportBluetooth
	tr, err = c.NewTransport(nil)
	require.NoError(t, err)
	assert.IsType(t, &printer.BluetoothTransport{}, tr)

	c.Transport = "infrared"
	_, err = c.NewTransport(nil)
	assert.Error(t, err)
}

func TestManagerOptions(t *testing.T) {
	c := &Config{Protocol: "com.zebra.rawport", DetectTimeout: time.Second}
	opts := c.ManagerOptions(nil)
	assert.Equal(t, "com.zebra.rawport", opts.Protocol)
	assert.Equal(t, time.Second, opts.QueryTimeout)
}

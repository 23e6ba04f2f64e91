// Package config loads settings from defaults, an optional zebra-label.yaml
// and ZEBRA_LABEL_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"zebra-label/internal/job"
	"zebra-label/internal/label"
	"zebra-label/internal/logging"
	"zebra-label/internal/printer"
)

const (
	EnvPrefix = "ZEBRA_LABEL"
	FileName  = "zebra-label"
)

// Transport names accepted by the transport key
const (
	TransportBluetooth = "bluetooth"
	TransportUSB       = "usb"
	TransportSerial    = "serial"
)

type Config struct {
	Transport     string
	Protocol      string
	WatchInterval time.Duration

	Bluetooth struct {
		Channel int
		Baud    int
	}
	Serial struct {
		Port string
		Baud int
	}
	USB struct {
		Vendor uint16
	}

	DetectPolicy  job.Policy
	DetectTimeout time.Duration

	Label label.Options
	Log   logging.Options
}

func setDefaults(v *viper.Viper) {
	labelDefaults := label.DefaultOptions()

	v.SetDefault("transport", TransportBluetooth)
	v.SetDefault("protocol", printer.RawPortProtocol)
	v.SetDefault("watch.interval", printer.DefaultWatchInterval)
	v.SetDefault("bluetooth.channel", printer.DefaultRFCOMMChannel)
	v.SetDefault("bluetooth.baud", printer.DefaultBaudRate)
	v.SetDefault("serial.port", "")
	v.SetDefault("serial.baud", printer.DefaultBaudRate)
	v.SetDefault("usb.vendor", fmt.Sprintf("0x%04x", printer.ZebraVendorID))
	v.SetDefault("detect.policy", job.DetectPerConnection.String())
	v.SetDefault("detect.timeout", printer.DefaultQueryTimeout)
	v.SetDefault("label.duplicate_end_marker", labelDefaults.DuplicateEndMarker)
	v.SetDefault("label.cpcl_min", labelDefaults.CPCLMin)
	v.SetDefault("label.cpcl_max", labelDefaults.CPCLMax)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// New returns a viper instance with defaults and environment binding set up.
// If file is empty the working directory and $HOME/.config/zebra-label are
// searched for zebra-label.yaml; a missing file is not an error.
func New(file string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", file, err)
		}
		return v, nil
	}

	v.SetConfigName(FileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", FileName))
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	return v, nil
}

// Load reads the configuration. See New for where it looks.
func Load(file string) (*Config, error) {
	v, err := New(file)
	if err != nil {
		return nil, err
	}
	return FromViper(v)
}

// FromViper decodes and validates the settings held by v
func FromViper(v *viper.Viper) (*Config, error) {
	var c Config

	c.Transport = strings.ToLower(v.GetString("transport"))
	switch c.Transport {
	case TransportBluetooth, TransportUSB, TransportSerial:
	default:
		return nil, fmt.Errorf("unknown transport %q", c.Transport)
	}

	c.Protocol = v.GetString("protocol")
	c.WatchInterval = v.GetDuration("watch.interval")
	c.Bluetooth.Channel = v.GetInt("bluetooth.channel")
	c.Bluetooth.Baud = v.GetInt("bluetooth.baud")
	c.Serial.Port = v.GetString("serial.port")
	c.Serial.Baud = v.GetInt("serial.baud")

	vendor, err := strconv.ParseUint(v.GetString("usb.vendor"), 0, 16)
	if err != nil {
		return nil, fmt.Errorf("invalid usb.vendor %q: %w", v.GetString("usb.vendor"), err)
	}
	c.USB.Vendor = uint16(vendor)

	c.DetectPolicy, err = job.ParsePolicy(v.GetString("detect.policy"))
	if err != nil {
		return nil, err
	}
	c.DetectTimeout = v.GetDuration("detect.timeout")

	c.Label = label.Options{
		DuplicateEndMarker: v.GetBool("label.duplicate_end_marker"),
		CPCLMin:            v.GetString("label.cpcl_min"),
		CPCLMax:            v.GetString("label.cpcl_max"),
	}
	c.Log = logging.Options{
		Level:       v.GetString("log.level"),
		Development: v.GetBool("log.development"),
	}
	return &c, nil
}

// NewTransport builds the configured printer transport
func (c *Config) NewTransport(logger *zap.Logger) (printer.Transport, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("transport", c.Transport))

	switch c.Transport {
	case TransportBluetooth:
		return printer.NewBluetoothTransport(c.Bluetooth.Channel, c.Bluetooth.Baud, c.WatchInterval, logger), nil
	case TransportUSB:
		return printer.NewUSBTransport(c.USB.Vendor, c.WatchInterval, logger), nil
	case TransportSerial:
		return printer.NewSerialTransport(c.Serial.Port, c.Serial.Baud, c.WatchInterval, logger), nil
	}
	return nil, fmt.Errorf("unknown transport %q", c.Transport)
}

func (c *Config) ManagerOptions(logger *zap.Logger) printer.ManagerOptions {
	return printer.ManagerOptions{
		Protocol:     c.Protocol,
		QueryTimeout: c.DetectTimeout,
		Logger:       logger,
	}
}

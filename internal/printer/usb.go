package printer

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/google/gousb"
	"go.uber.org/zap"

	"zebra-label/internal/logging"
)

// ZebraVendorID is the USB vendor id of Zebra Technologies
const ZebraVendorID = 0x0a5f

const usbReadTimeout = 200 * time.Millisecond

// USBTransport opens USB printer-class devices from one vendor
type USBTransport struct {
	Vendor gousb.ID
	logger *zap.Logger
	poll   poller
}

func NewUSBTransport(vendor uint16, interval time.Duration, logger *zap.Logger) *USBTransport {
	if vendor == 0 {
		vendor = ZebraVendorID
	}
	t := &USBTransport{
		Vendor: gousb.ID(vendor),
		logger: nopIfNil(logger),
	}
	t.poll = poller{list: t.present, interval: interval, logger: t.logger}
	return t
}

func usbAddress(desc *gousb.DeviceDesc) string {
	return fmt.Sprintf("%d:%d", desc.Bus, desc.Address)
}

// IsPrinter checks if a device exposes a printer-class interface
func IsPrinter(dev *gousb.Device) bool {
	if dev == nil {
		return false
	}

	cfgNum, err := dev.ActiveConfigNum()
	if err != nil {
		return false
	}

	for _, cfg := range dev.Desc.Configs {
		if cfg.Number != cfgNum {
			continue
		}
		for _, iface := range cfg.Interfaces {
			for _, alt := range iface.AltSettings {
				if alt.Class == gousb.ClassPrinter {
					return true
				}
			}
		}
	}
	return false
}

// Accessories opens each vendor device long enough to read its strings
func (t *USBTransport) Accessories() ([]Accessory, error) {
	ctx := gousb.NewContext()
	defer ctx.Close()

	devices, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == t.Vendor
	})
	if err != nil && len(devices) == 0 {
		return nil, fmt.Errorf("failed to enumerate USB devices: %w", err)
	}

	var accessories []Accessory
	for _, dev := range devices {
		if IsPrinter(dev) {
			acc := Accessory{
				Address:   usbAddress(dev.Desc),
				Transport: KindUSB,
				Protocols: []string{RawPortProtocol},
			}
			acc.Name, _ = dev.Product()
			acc.Serial, _ = dev.SerialNumber()
			accessories = append(accessories, acc)
		} else {
			t.logger.Debug("skipping non-printer device", zap.String("device", usbAddress(dev.Desc)))
		}
		dev.Close()
	}
	return accessories, nil
}

// present lists vendor devices from their descriptors without opening them
func (t *USBTransport) present() ([]Accessory, error) {
	ctx := gousb.NewContext()
	defer ctx.Close()

	var accessories []Accessory
	_, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if desc.Vendor == t.Vendor {
			accessories = append(accessories, Accessory{
				Address:   usbAddress(desc),
				Transport: KindUSB,
				Protocols: []string{RawPortProtocol},
			})
		}
		return false
	})
	if err != nil {
		return nil, err
	}
	return accessories, nil
}

// Open claims the printer interface of the device at acc.Address
func (t *USBTransport) Open(_ context.Context, acc Accessory) (Link, error) {
	usbCtx := gousb.NewContext()

	devices, err := usbCtx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == t.Vendor && usbAddress(desc) == acc.Address
	})
	if len(devices) == 0 {
		usbCtx.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to open USB device %s: %w", acc.Address, err)
		}
		return nil, fmt.Errorf("USB device %s not found", acc.Address)
	}
	for _, extra := range devices[1:] {
		extra.Close()
	}

	logger := logging.ForDevice(t.logger, KindUSB, acc.Address)

	link, err := claimPrinter(usbCtx, devices[0])
	if err != nil {
		logger.Warn("failed to claim printer interface", zap.Error(err))
		devices[0].Close()
		usbCtx.Close()
		return nil, err
	}
	logger.Info("usb link open")
	return link, nil
}

func (t *USBTransport) Watch(ctx context.Context) <-chan Event {
	return t.poll.watch(ctx)
}

// USBLink is a claimed printer interface with its bulk endpoints
type USBLink struct {
	ctx   *gousb.Context
	dev   *gousb.Device
	cfg   *gousb.Config
	iface *gousb.Interface
	out   *gousb.OutEndpoint
	in    *gousb.InEndpoint
}

func claimPrinter(usbCtx *gousb.Context, dev *gousb.Device) (*USBLink, error) {
	// Set auto-detach kernel driver on Linux
	if runtime.GOOS == "linux" {
		dev.SetAutoDetach(true)
	}

	cfgNum, err := dev.ActiveConfigNum()
	if err != nil {
		return nil, fmt.Errorf("failed to get active config: %w", err)
	}

	cfg, err := dev.Config(cfgNum)
	if err != nil {
		return nil, fmt.Errorf("failed to get config: %w", err)
	}

	ifaceNum := -1
	for _, desc := range cfg.Desc.Interfaces {
		for _, alt := range desc.AltSettings {
			if alt.Class == gousb.ClassPrinter {
				ifaceNum = desc.Number
				break
			}
		}
		if ifaceNum >= 0 {
			break
		}
	}
	if ifaceNum < 0 {
		cfg.Close()
		return nil, errors.New("no printer interface found")
	}

	iface, err := cfg.Interface(ifaceNum, 0)
	if err != nil {
		cfg.Close()
		return nil, fmt.Errorf("failed to claim interface: %w", err)
	}

	link := &USBLink{ctx: usbCtx, dev: dev, cfg: cfg, iface: iface}
	for _, ep := range iface.Setting.Endpoints {
		if ep.Direction == gousb.EndpointDirectionOut && link.out == nil {
			if out, err := iface.OutEndpoint(ep.Number); err == nil {
				link.out = out
			}
		}
		if ep.Direction == gousb.EndpointDirectionIn && link.in == nil {
			if in, err := iface.InEndpoint(ep.Number); err == nil {
				link.in = in
			}
		}
	}

	if link.out == nil {
		iface.Close()
		cfg.Close()
		return nil, errors.New("cannot find output endpoint from printer")
	}
	return link, nil
}

func (l *USBLink) Write(data []byte) (int, error) {
	if l.out == nil {
		return 0, ErrNotOpen
	}
	return l.out.Write(data)
}

// Read waits up to usbReadTimeout for a response
func (l *USBLink) Read(buf []byte) (int, error) {
	if l.in == nil {
		return 0, errors.New("input endpoint not available")
	}
	ctx, cancel := context.WithTimeout(context.Background(), usbReadTimeout)
	defer cancel()

	n, err := l.in.ReadContext(ctx, buf)
	if err != nil && errors.Is(err, gousb.TransferCancelled) {
		return n, nil
	}
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return n, nil
	}
	return n, err
}

func (l *USBLink) Close() error {
	var errs []error
	if l.iface != nil {
		l.iface.Close()
		l.iface = nil
	}
	if l.cfg != nil {
		if err := l.cfg.Close(); err != nil {
			errs = append(errs, err)
		}
		l.cfg = nil
	}
	if l.dev != nil {
		if err := l.dev.Close(); err != nil {
			errs = append(errs, err)
		}
		l.dev = nil
	}
	if l.ctx != nil {
		if err := l.ctx.Close(); err != nil {
			errs = append(errs, err)
		}
		l.ctx = nil
	}
	l.out, l.in = nil, nil
	return errors.Join(errs...)
}

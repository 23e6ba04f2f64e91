package printer

import (
	"context"
	"fmt"
)

// RawPortProtocol identifies accessories that accept raw Zebra command streams
const RawPortProtocol = "com.zebra.rawport"

// Transport kinds reported in Accessory.Transport
const (
	KindBluetooth = "bluetooth"
	KindUSB       = "usb"
	KindSerial    = "serial"
)

// Accessory is an attached device a transport can open
type Accessory struct {
	Name      string
	Serial    string
	Address   string // MAC address, COM/tty path, or USB bus:address
	Transport string
	Protocols []string
}

// Supports reports whether the accessory advertises protocol
func (a Accessory) Supports(protocol string) bool {
	for _, p := range a.Protocols {
		if p == protocol {
			return true
		}
	}
	return false
}

func (a Accessory) String() string {
	if a.Name == "" {
		return fmt.Sprintf("%s:%s", a.Transport, a.Address)
	}
	return fmt.Sprintf("%s (%s:%s)", a.Name, a.Transport, a.Address)
}

// EventType represents accessory events
type EventType int

const (
	EventConnected EventType = iota
	EventDisconnected
)

func (t EventType) String() string {
	switch t {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	}
	return fmt.Sprintf("EventType(%d)", int(t))
}

// Event is published by a transport when an accessory appears or goes away
type Event struct {
	Type      EventType
	Accessory Accessory
}

// Link is an open byte stream to one printer
type Link interface {
	// Write sends data to the printer
	Write(data []byte) (int, error)

	// Read reads a response from the printer. Implementations return
	// (0, nil) when nothing arrived within their read timeout.
	Read(buf []byte) (int, error)

	// Close releases the link
	Close() error
}

// Transport discovers and opens printer accessories
type Transport interface {
	// Accessories lists currently attached accessories
	Accessories() ([]Accessory, error)

	// Open opens a link to acc
	Open(ctx context.Context, acc Accessory) (Link, error)

	// Watch publishes connect/disconnect events until ctx is done
	Watch(ctx context.Context) <-chan Event
}

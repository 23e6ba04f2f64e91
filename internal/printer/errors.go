package printer

import (
	"errors"
	"fmt"
)

var (
	ErrNotOpen         = errors.New("printer connection is not open")
	ErrNoAccessory     = errors.New("no printer accessory attached")
	ErrDetectionFailed = errors.New("printer language detection failed")
	ErrQueryTimeout    = errors.New("printer did not answer in time")
)

// ConnectionErrorKind classifies connection failures
type ConnectionErrorKind int

const (
	OpenFailed ConnectionErrorKind = iota
	NotOpen
	TransportError
)

func (k ConnectionErrorKind) String() string {
	switch k {
	case OpenFailed:
		return "open failed"
	case NotOpen:
		return "not open"
	case TransportError:
		return "transport error"
	}
	return fmt.Sprintf("ConnectionErrorKind(%d)", int(k))
}

// ConnectionError is returned by Manager operations
type ConnectionError struct {
	Kind      ConnectionErrorKind
	Accessory Accessory
	Err       error
}

func (e *ConnectionError) Error() string {
	if e.Accessory.Address == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s (%s): %v", e.Kind, e.Accessory, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// IsConnectionError reports whether err is a ConnectionError of kind
func IsConnectionError(err error, kind ConnectionErrorKind) bool {
	var connErr *ConnectionError
	return errors.As(err, &connErr) && connErr.Kind == kind
}

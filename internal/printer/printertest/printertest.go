// Package printertest provides an in-memory printer transport for tests.
package printertest

import (
	"bytes"
	"context"
	"sync"

	"zebra-label/internal/printer"
)

// Accessory returns a raw-port accessory with the given address
func Accessory(name, address string) printer.Accessory {
	return printer.Accessory{
		Name:      name,
		Address:   address,
		Transport: "fake",
		Protocols: []string{printer.RawPortProtocol},
	}
}

// Transport is a fake printer.Transport. Fields may be changed between
// calls under the test's own ordering.
type Transport struct {
	mu        sync.Mutex
	attached  []printer.Accessory
	listErr   error
	openErr   error
	opens     int
	opened    []printer.Accessory
	links     []*Link
	nextReply []byte
	gate      <-chan struct{}
	events    chan printer.Event
}

func NewTransport(attached ...printer.Accessory) *Transport {
	return &Transport{
		attached: attached,
		events:   make(chan printer.Event, 16),
	}
}

// Attach replaces the attached accessories
func (t *Transport) Attach(accs ...printer.Accessory) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.attached = accs
}

func (t *Transport) SetListError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listErr = err
}

func (t *Transport) SetOpenError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.openErr = err
}

// SetOpenGate makes Open wait until gate is closed or the context ends
func (t *Transport) SetOpenGate(gate <-chan struct{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.gate = gate
}

// SetReply sets what links opened from now on answer to any write
func (t *Transport) SetReply(reply string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextReply = []byte(reply)
}

func (t *Transport) Accessories() ([]printer.Accessory, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listErr != nil {
		return nil, t.listErr
	}
	return append([]printer.Accessory(nil), t.attached...), nil
}

func (t *Transport) Open(ctx context.Context, acc printer.Accessory) (printer.Link, error) {
	t.mu.Lock()
	gate := t.gate
	t.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.opens++
	if t.openErr != nil {
		return nil, t.openErr
	}
	link := &Link{reply: t.nextReply}
	t.opened = append(t.opened, acc)
	t.links = append(t.links, link)
	return link, nil
}

func (t *Transport) Watch(_ context.Context) <-chan printer.Event {
	return t.events
}

// Emit publishes an event to the watcher
func (t *Transport) Emit(ev printer.Event) {
	t.events <- ev
}

// Opens counts calls to Open, successful or not
func (t *Transport) Opens() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.opens
}

// Opened lists accessories successfully opened, in order
func (t *Transport) Opened() []printer.Accessory {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]printer.Accessory(nil), t.opened...)
}

// LastLink returns the most recently opened link, or nil
func (t *Transport) LastLink() *Link {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.links) == 0 {
		return nil
	}
	return t.links[len(t.links)-1]
}

// Link is a fake printer.Link that records writes. After each write the
// configured reply becomes readable once.
type Link struct {
	mu       sync.Mutex
	written  bytes.Buffer
	writes   int
	writeErr error
	reply    []byte
	unread   []byte
	closed   bool
	closes   int
}

func (l *Link) Write(data []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writes++
	if l.writeErr != nil {
		return 0, l.writeErr
	}
	l.written.Write(data)
	l.unread = append([]byte(nil), l.reply...)
	return len(data), nil
}

func (l *Link) Read(buf []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := copy(buf, l.unread)
	l.unread = l.unread[n:]
	return n, nil
}

func (l *Link) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	l.closes++
	return nil
}

func (l *Link) SetWriteError(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writeErr = err
}

func (l *Link) SetReply(reply string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reply = []byte(reply)
}

// Written returns everything written so far
func (l *Link) Written() []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]byte(nil), l.written.Bytes()...)
}

// Writes counts calls to Write, including failed ones
func (l *Link) Writes() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.writes
}

func (l *Link) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

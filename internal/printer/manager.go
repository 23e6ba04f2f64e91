package printer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultQueryTimeout = 2 * time.Second

	queryPoll = 35 * time.Millisecond
)

// State of the printer connection
type State int

const (
	Disconnected State = iota
	Connecting
	Open
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// StateListener is told about every state transition, in order. It runs
// with no manager lock held, usually on the goroutine that caused the
// transition, and may call back into the manager.
type StateListener func(state State, acc Accessory)

// ManagerOptions configure a Manager
type ManagerOptions struct {
	// Protocol an accessory must advertise to be picked by Discover
	Protocol     string
	QueryTimeout time.Duration
	Logger       *zap.Logger
}

type transition struct {
	state State
	acc   Accessory
}

// Manager owns the single printer connection. Every state change, whether
// from an API call or a transport event, happens under mu.
type Manager struct {
	transport    Transport
	protocol     string
	queryTimeout time.Duration
	logger       *zap.Logger

	mu        sync.Mutex
	state     State
	accessory Accessory
	link      Link
	session   uint64
	pending   []transition

	// Transitions wait in queue until a single deliverer hands them to
	// the listener.
	queueMu    sync.Mutex
	queue      []transition
	delivering bool

	listenerMu sync.Mutex
	listener   StateListener

	cancel context.CancelFunc
	done   chan struct{}
}

func NewManager(transport Transport, opts ManagerOptions) *Manager {
	if opts.Protocol == "" {
		opts.Protocol = RawPortProtocol
	}
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = DefaultQueryTimeout
	}
	return &Manager{
		transport:    transport,
		protocol:     opts.Protocol,
		queryTimeout: opts.QueryTimeout,
		logger:       nopIfNil(opts.Logger),
	}
}

func nopIfNil(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

// SetListener replaces the current listener; nil removes it
func (m *Manager) SetListener(l StateListener) {
	m.listenerMu.Lock()
	defer m.listenerMu.Unlock()
	m.listener = l
}

// Start subscribes to transport events and runs the event loop. Before the
// loop takes its first event it makes one attempt to open an already
// attached printer; failure to find or open one is not an error. Start
// does not wait for that attempt.
func (m *Manager) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	events := m.transport.Watch(ctx)
	go m.run(ctx, events)
}

// Shutdown stops the event loop and closes the connection
func (m *Manager) Shutdown() error {
	if m.cancel != nil {
		m.cancel()
		<-m.done
		m.cancel = nil
	}
	return m.Close()
}

func (m *Manager) run(ctx context.Context, events <-chan Event) {
	defer close(m.done)

	m.openAttached(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			m.handleEvent(ev)
		}
	}
}

func (m *Manager) openAttached(ctx context.Context) {
	acc, err := m.Discover()
	if err != nil {
		m.logger.Info("no printer attached at startup", zap.Error(err))
		return
	}
	if err := m.Open(ctx, acc); err != nil {
		m.logger.Warn("failed to open printer at startup", zap.Error(err))
	}
}

func (m *Manager) handleEvent(ev Event) {
	m.mu.Lock()
	defer m.unlock()

	logger := m.logger.With(zap.Stringer("event", ev.Type), zap.Stringer("accessory", ev.Accessory))

	switch ev.Type {
	case EventConnected:
		if !ev.Accessory.Supports(m.protocol) {
			logger.Debug("ignoring accessory without raw port")
			return
		}
		logger.Info("accessory connected")
		if m.state == Disconnected {
			m.accessory = ev.Accessory
			m.setStateLocked(Connecting)
		}
	case EventDisconnected:
		if m.state == Disconnected {
			return
		}
		if m.accessory.Address != "" && ev.Accessory.Address != m.accessory.Address {
			logger.Debug("ignoring disconnect of another accessory")
			return
		}
		logger.Info("accessory disconnected")
		if err := m.closeLocked(); err != nil {
			logger.Warn("failed to close link after disconnect", zap.Error(err))
		}
	}
}

// Discover returns the first attached accessory advertising the raw-port
// protocol, in the order the transport lists them.
func (m *Manager) Discover() (Accessory, error) {
	accessories, err := m.transport.Accessories()
	if err != nil {
		m.logger.Warn("accessory scan failed", zap.Error(err))
		return Accessory{}, fmt.Errorf("failed to list accessories: %w", err)
	}

	for _, acc := range accessories {
		if !acc.Supports(m.protocol) {
			continue
		}
		m.logger.Info("printer discovered", zap.Stringer("accessory", acc), zap.Int("attached", len(accessories)))

		m.mu.Lock()
		if m.state == Disconnected {
			m.accessory = acc
			m.setStateLocked(Connecting)
		}
		m.unlock()
		return acc, nil
	}

	m.logger.Info("no printer among attached accessories", zap.Int("attached", len(accessories)))
	return Accessory{}, ErrNoAccessory
}

// Open opens a link to acc. It does nothing if a link is already open.
func (m *Manager) Open(ctx context.Context, acc Accessory) error {
	m.mu.Lock()
	defer m.unlock()

	if m.state == Open {
		m.logger.Debug("open skipped, already open", zap.Stringer("accessory", m.accessory))
		return nil
	}

	m.accessory = acc
	if m.state == Disconnected {
		m.setStateLocked(Connecting)
	}

	link, err := m.transport.Open(ctx, acc)
	if err != nil {
		m.logger.Warn("failed to open printer", zap.Stringer("accessory", acc), zap.Error(err))
		m.setStateLocked(Disconnected)
		return &ConnectionError{Kind: OpenFailed, Accessory: acc, Err: err}
	}

	m.link = link
	m.session++
	m.setStateLocked(Open)
	m.logger.Info("printer connection open", zap.Stringer("accessory", acc), zap.Uint64("session", m.session))
	return nil
}

// Close releases the connection. It is safe to call in any state.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.unlock()
	return m.closeLocked()
}

func (m *Manager) closeLocked() error {
	var err error
	if m.link != nil {
		err = m.link.Close()
		m.link = nil
		m.logger.Info("printer connection closed", zap.Stringer("accessory", m.accessory))
	}
	if m.state != Disconnected {
		m.setStateLocked(Disconnected)
	}
	return err
}

// Write sends data to the printer. A failed write leaves the link open.
func (m *Manager) Write(ctx context.Context, data []byte) error {
	m.mu.Lock()
	defer m.unlock()

	if m.state != Open || m.link == nil {
		return &ConnectionError{Kind: NotOpen, Err: ErrNotOpen}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	n, err := m.link.Write(data)
	if err == nil && n < len(data) {
		err = io.ErrShortWrite
	}
	if err != nil {
		m.logger.Warn("write failed", zap.Stringer("accessory", m.accessory), zap.Int("written", n), zap.Error(err))
		return &ConnectionError{Kind: TransportError, Accessory: m.accessory, Err: err}
	}

	m.logger.Debug("wrote to printer", zap.Int("bytes", n))
	return nil
}

// Query writes request and collects the reply until it holds a complete
// quoted value or the query timeout passes. It never changes state.
func (m *Manager) Query(ctx context.Context, request []byte) ([]byte, error) {
	m.mu.Lock()
	defer m.unlock()

	if m.state != Open || m.link == nil {
		return nil, &ConnectionError{Kind: NotOpen, Err: ErrNotOpen}
	}

	if _, err := m.link.Write(request); err != nil {
		return nil, &ConnectionError{Kind: TransportError, Accessory: m.accessory, Err: err}
	}

	deadline := time.Now().Add(m.queryTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	resp, err := readReply(ctx, m.link, deadline)
	if err != nil && !errors.Is(err, ErrQueryTimeout) && !errors.Is(err, ctx.Err()) {
		return nil, &ConnectionError{Kind: TransportError, Accessory: m.accessory, Err: err}
	}
	return resp, err
}

func readReply(ctx context.Context, link Link, deadline time.Time) ([]byte, error) {
	buf := make([]byte, 512)
	var resp []byte

	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		n, err := link.Read(buf)
		if n > 0 {
			resp = append(resp, buf[:n]...)
			if bytes.Count(resp, []byte{'"'}) >= 2 {
				return resp, nil
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) && len(resp) > 0 {
				return resp, nil
			}
			return nil, err
		}
		if n == 0 {
			time.Sleep(queryPoll)
		}
	}

	if len(resp) == 0 {
		return nil, ErrQueryTimeout
	}
	return resp, nil
}

// State returns the current connection state
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Accessory returns the accessory the manager last discovered or opened
func (m *Manager) Accessory() Accessory {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accessory
}

// Session counts successful opens, so callers can tell a reconnect apart
// from the connection they saw before.
func (m *Manager) Session() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

func (m *Manager) setStateLocked(s State) {
	if s == m.state {
		return
	}
	m.logger.Debug("state transition", zap.Stringer("from", m.state), zap.Stringer("to", s))
	m.state = s
	m.pending = append(m.pending, transition{state: s, acc: m.accessory})
}

// unlock queues the transitions made under mu, releases mu and delivers
// whatever is queued.
func (m *Manager) unlock() {
	pending := m.pending
	m.pending = nil
	if len(pending) > 0 {
		m.queueMu.Lock()
		m.queue = append(m.queue, pending...)
		m.queueMu.Unlock()
	}
	m.mu.Unlock()

	if len(pending) > 0 {
		m.deliver()
	}
}

// deliver drains the queue unless another goroutine already is
func (m *Manager) deliver() {
	m.queueMu.Lock()
	if m.delivering {
		m.queueMu.Unlock()
		return
	}
	m.delivering = true

	for len(m.queue) > 0 {
		t := m.queue[0]
		m.queue = m.queue[1:]
		m.queueMu.Unlock()

		m.listenerMu.Lock()
		listener := m.listener
		m.listenerMu.Unlock()
		if listener != nil {
			listener(t.state, t.acc)
		}

		m.queueMu.Lock()
	}

	m.delivering = false
	m.queueMu.Unlock()
}

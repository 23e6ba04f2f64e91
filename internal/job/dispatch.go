package job

import "sync"

// Dispatcher runs callbacks on the goroutine that owns the UI
type Dispatcher interface {
	Dispatch(fn func())
}

// DispatcherFunc adapts a function to Dispatcher
type DispatcherFunc func(fn func())

func (f DispatcherFunc) Dispatch(fn func()) {
	f(fn)
}

// Inline runs callbacks on the calling goroutine
var Inline Dispatcher = DispatcherFunc(func(fn func()) { fn() })

// Queue is a Dispatcher backed by a single goroutine. Callbacks run one at
// a time in submission order.
type Queue struct {
	tasks chan func()
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewQueue(size int) *Queue {
	q := &Queue{
		tasks: make(chan func(), size),
		done:  make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *Queue) run() {
	defer close(q.done)
	for fn := range q.tasks {
		fn()
	}
}

// Dispatch enqueues fn. Callbacks dispatched after Close are dropped.
func (q *Queue) Dispatch(fn func()) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return
	}
	q.tasks <- fn
}

// Close runs the callbacks already queued and stops the queue goroutine
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.closed = true
	close(q.tasks)
	q.mu.Unlock()
	<-q.done
}

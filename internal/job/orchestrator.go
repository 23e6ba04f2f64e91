package job

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"zebra-label/internal/label"
	"zebra-label/internal/printer"
)

// Connection is the part of printer.Manager a job needs
type Connection interface {
	State() printer.State
	Discover() (printer.Accessory, error)
	Open(ctx context.Context, acc printer.Accessory) error
	Write(ctx context.Context, data []byte) error
	Query(ctx context.Context, request []byte) ([]byte, error)
	Session() uint64
}

// LanguageDetector is satisfied by *printer.Detector
type LanguageDetector interface {
	Detect(ctx context.Context, q printer.Querier) (label.Language, error)
}

// Policy controls how often the printer language is queried
type Policy int

const (
	// DetectPerConnection queries once per opened connection
	DetectPerConnection Policy = iota
	// DetectEveryJob queries before every job
	DetectEveryJob
)

func (p Policy) String() string {
	switch p {
	case DetectPerConnection:
		return "per-connection"
	case DetectEveryJob:
		return "every-job"
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "per-connection", "connection":
		return DetectPerConnection, nil
	case "every-job", "job":
		return DetectEveryJob, nil
	}
	return 0, fmt.Errorf("unknown detection policy %q", s)
}

type Options struct {
	Policy     Policy
	Dispatcher Dispatcher // defaults to Inline
	Logger     *zap.Logger
}

// Orchestrator runs one job at a time: connect, detect, encode, write.
type Orchestrator struct {
	conn     Connection
	detector LanguageDetector
	encoder  *label.Encoder
	policy   Policy
	dispatch Dispatcher
	logger   *zap.Logger

	busy atomic.Bool
	wg   sync.WaitGroup

	cacheMu      sync.Mutex
	cached       bool
	cacheSession uint64
	cacheLang    label.Language
}

func NewOrchestrator(conn Connection, detector LanguageDetector, encoder *label.Encoder, opts Options) *Orchestrator {
	if opts.Dispatcher == nil {
		opts.Dispatcher = Inline
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Orchestrator{
		conn:     conn,
		detector: detector,
		encoder:  encoder,
		policy:   opts.Policy,
		dispatch: opts.Dispatcher,
		logger:   opts.Logger,
	}
}

// Submit runs j in the background. See SubmitContext.
func (o *Orchestrator) Submit(j Job, l Listener) error {
	return o.SubmitContext(context.Background(), j, l)
}

// SubmitContext runs j on a new goroutine and reports the outcome to l on
// the dispatcher. It returns ErrBusy, without calling l, while another job
// is in flight.
func (o *Orchestrator) SubmitContext(ctx context.Context, j Job, l Listener) error {
	if !o.busy.CompareAndSwap(false, true) {
		o.logger.Info("job rejected, printer busy", zap.Stringer("job", j.ID))
		return ErrBusy
	}
	if l == nil {
		l = ListenerFuncs{}
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()

		fail := o.run(ctx, j)
		o.busy.Store(false)

		if fail != nil {
			o.dispatch.Dispatch(func() { l.OnFailure(j, fail) })
			return
		}
		o.dispatch.Dispatch(func() { l.OnSuccess(j) })
	}()
	return nil
}

// Busy reports whether a job is in flight
func (o *Orchestrator) Busy() bool {
	return o.busy.Load()
}

// Wait blocks until every submitted job has finished
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) run(ctx context.Context, j Job) *Failure {
	logger := o.logger.With(
		zap.Stringer("job", j.ID),
		zap.Stringer("size", j.Size),
		zap.Int("copies", j.Copies),
	)

	// Size and copies are known before the printer is; reject them without
	// touching the connection.
	if err := label.Validate(j.Size, j.Copies); err != nil {
		logger.Warn("invalid print request", zap.Error(err))
		return &Failure{Reason: ReasonEncodingFailed, Err: err}
	}

	if err := o.connect(ctx); err != nil {
		logger.Warn("printer unavailable", zap.Error(err))
		return &Failure{Reason: ReasonConnectionUnavailable, Err: err}
	}

	lang, err := o.language(ctx)
	if err != nil {
		logger.Warn("language detection failed", zap.Error(err))
		return &Failure{Reason: ReasonLanguageUndetected, Err: err}
	}

	data, err := o.encoder.Encode(j.Record, j.Size, lang, j.Copies)
	if err != nil {
		logger.Warn("label encoding failed", zap.Stringer("language", lang), zap.Error(err))
		return &Failure{Reason: ReasonEncodingFailed, Err: err}
	}

	if err := o.conn.Write(ctx, data); err != nil {
		logger.Warn("label write failed", zap.Error(err))
		return &Failure{Reason: ReasonWriteFailed, Err: err}
	}

	logger.Info("label printed", zap.Stringer("language", lang), zap.Int("bytes", len(data)))
	return nil
}

func (o *Orchestrator) connect(ctx context.Context) error {
	if o.conn.State() == printer.Open {
		return nil
	}
	acc, err := o.conn.Discover()
	if err != nil {
		return err
	}
	return o.conn.Open(ctx, acc)
}

func (o *Orchestrator) language(ctx context.Context) (label.Language, error) {
	if o.policy == DetectEveryJob {
		return o.detector.Detect(ctx, o.conn)
	}

	session := o.conn.Session()

	o.cacheMu.Lock()
	if o.cached && o.cacheSession == session {
		lang := o.cacheLang
		o.cacheMu.Unlock()
		return lang, nil
	}
	o.cacheMu.Unlock()

	lang, err := o.detector.Detect(ctx, o.conn)
	if err != nil {
		return 0, err
	}

	o.cacheMu.Lock()
	o.cached = true
	o.cacheSession = session
	o.cacheLang = lang
	o.cacheMu.Unlock()
	return lang, nil
}

// Package engine is the per-frame smoothing core: kernel normalization, the
// float32 working-copy lifecycle and dispatch to a smoothing capability.
package engine

import (
	"sync"
	"time"

	"BlurServer/logger"
	"BlurServer/ndarray"
	iface "BlurServer/interface"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Engine struct {
	cycle    sync.Mutex
	mu       sync.Mutex
	id       string
	portName string
	params   *Params
	pool     *ndarray.Pool
	dispatch Dispatcher
	log      *zap.Logger
	held     *ndarray.Frame
	state    int
	stats    Stats
}

type Option func(*Engine)

func WithPortName(name string) Option { return func(e *Engine) { e.portName = name } }

func WithPool(p *ndarray.Pool) Option { return func(e *Engine) { e.pool = p } }

func WithParams(p *Params) Option { return func(e *Engine) { e.params = p } }

func WithLogger(l *zap.Logger) Option { return func(e *Engine) { e.log = l } }

func WithRecorder(r Recorder) Option { return func(e *Engine) { e.dispatch.Recorder = r } }

// New creates an engine over the given smoothing capability.
func New(s iface.Smoother, opts ...Option) *Engine {
	e := &Engine{
		id:       uuid.NewString(),
		portName: "BLUR1",
		state:    IDLE,
	}
	e.dispatch.Smoother = s
	for _, opt := range opts {
		opt(e)
	}
	if e.params == nil {
		e.params = NewParams(DefaultParams())
	}
	if e.pool == nil {
		e.pool = ndarray.NewPool(0, 0)
	}
	if e.log == nil {
		e.log = logger.Component(PluginType)
	}
	e.log = e.log.With(zap.String(logger.FieldPort, e.portName))
	e.dispatch.Log = e.log
	return e
}

func (e *Engine) ID() string { return e.id }

func (e *Engine) PortName() string { return e.portName }

func (e *Engine) PluginType() string { return PluginType }

func (e *Engine) Params() *Params { return e.params }

func (e *Engine) Pool() *ndarray.Pool { return e.pool }

func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.stats
	s.ID = e.id
	s.PortName = e.portName
	s.PluginType = PluginType
	s.Backend = e.dispatch.Smoother.Name()
	s.State = e.state
	return s
}

// Process runs one cycle on in. The frame is checked first; then the
// configuration is snapshotted under the lock and the conversions and the
// filter run unlocked on owned buffers. The lock is taken again only to read
// the output type and to store the result as the held frame.
func (e *Engine) Process(in *ndarray.Frame) Result {
	start := time.Now()
	e.cycle.Lock()
	defer e.cycle.Unlock()

	e.mu.Lock()
	e.state = BUSY
	e.releaseHeld()
	e.mu.Unlock()

	if err := checkFrame(in); err != nil {
		e.log.Error("unsupported frame",
			zap.String(logger.FieldFunction, "processCallbacks"),
			zap.Int(logger.FieldNDims, in.NDims()),
			zap.Ints("dims", in.Dims),
			zap.Int64(logger.FieldUniqueID, in.UniqueID),
			zap.Error(err))
		return e.finish(Result{Params: e.params.Get()}, iface.Rejected, err, start)
	}

	e.mu.Lock()
	p, err := e.params.Normalize()
	info := in.Info()
	e.mu.Unlock()

	res := Result{Params: p}
	if err != nil {
		e.log.Error("kernel rejected",
			zap.String(logger.FieldFunction, "normalize"),
			zap.Int(logger.FieldKernelWidth, p.KernelWidth),
			zap.Int(logger.FieldKernelHeight, p.KernelHeight),
			zap.Bool("legacy", p.LegacyKernelCheck),
			zap.Error(err))
		return e.finish(res, iface.Rejected, err, start)
	}

	work, out, err := e.prepare(in)
	if err != nil {
		e.log.Error("cannot allocate working frames",
			zap.String(logger.FieldFunction, "processCallbacks"),
			zap.Int64(logger.FieldUniqueID, in.UniqueID),
			zap.Error(err))
		return e.finish(res, iface.Rejected, err, start)
	}

	status := iface.Success
	ferr := e.dispatch.Apply(work, out, info, p.KernelWidth, p.KernelHeight, p.Mode)
	if ferr != nil {
		status = iface.Degraded
	}
	_ = work.Release()

	e.mu.Lock()
	dt := e.params.OutputType()
	e.mu.Unlock()
	if dt == ndarray.Auto || !dt.Valid() {
		dt = in.DataType
	}
	if err := e.pool.ConvertInPlace(out, dt); err != nil {
		_ = out.Release()
		e.log.Error("cannot convert output",
			zap.String(logger.FieldFunction, "processCallbacks"),
			zap.Stringer("data_type", dt),
			zap.Error(err))
		return e.finish(res, iface.Rejected, err, start)
	}
	out.Attributes = in.Attributes.Clone()
	out.Reserve()

	e.mu.Lock()
	e.held = out
	e.mu.Unlock()

	res.Output = out
	return e.finish(res, status, ferr, start)
}

// checkFrame accepts 1-D and 2-D frames whose dims match their data.
func checkFrame(in *ndarray.Frame) error {
	if nd := in.NDims(); nd != 1 && nd != 2 {
		return errors.Wrapf(ErrUnsupportedRank, "got %d", nd)
	}
	return in.Validate()
}

// prepare returns a float32 copy of in to read from and a float32 duplicate
// to write the result into. Both are owned by the engine.
func (e *Engine) prepare(in *ndarray.Frame) (*ndarray.Frame, *ndarray.Frame, error) {
	out, err := e.pool.Copy(in)
	if err != nil {
		return nil, nil, err
	}
	if err := e.pool.ConvertInPlace(out, ndarray.Float32); err != nil {
		_ = out.Release()
		return nil, nil, err
	}
	work, err := e.pool.Convert(in, ndarray.Float32)
	if err != nil {
		_ = out.Release()
		return nil, nil, err
	}
	return work, out, nil
}

func (e *Engine) finish(res Result, status iface.CycleStatus, err error, start time.Time) Result {
	res.Status = status
	res.Err = err
	res.Duration = time.Since(start)

	e.mu.Lock()
	e.state = IDLE
	e.stats.Cycles++
	switch status {
	case iface.Success:
		e.stats.Succeeded++
	case iface.Degraded:
		e.stats.Degraded++
	case iface.Rejected:
		e.stats.Rejected++
	}
	e.stats.LastStatus = status
	e.stats.LastError = ""
	if err != nil {
		e.stats.LastError = err.Error()
	}
	e.mu.Unlock()

	e.log.Debug("cycle finished",
		zap.Stringer(logger.FieldStatus, status),
		zap.Duration("duration", res.Duration))
	if e.dispatch.Recorder != nil {
		e.dispatch.Recorder.ObserveCycle(status, res.Duration)
	}
	return res
}

// releaseHeld drops the previous cycle's output. Callers hold e.mu.
func (e *Engine) releaseHeld() {
	if e.held == nil {
		return
	}
	if err := e.held.Release(); err != nil {
		e.log.Warn("held frame already released", zap.Error(err))
	}
	e.held = nil
}

// Destroy releases the held frame and the capability.
func (e *Engine) Destroy() {
	e.mu.Lock()
	e.releaseHeld()
	e.mu.Unlock()
	e.dispatch.Smoother.Destroy()
}

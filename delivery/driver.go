// Package delivery feeds frames to the engine and fans the results out to
// subscribers, either in the producer's goroutine or through a bounded queue
// drained by a worker.
package delivery

import (
	"fmt"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"BlurServer/engine"
	"BlurServer/logger"
	"BlurServer/ndarray"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrQueueFull = errors.New("input queue full, frame dropped")
	ErrClosed    = errors.New("driver closed")
)

// Processor runs one cycle. *engine.Engine implements it.
type Processor interface {
	Process(in *ndarray.Frame) engine.Result
}

// Subscriber receives every emitted frame. The frame is only valid for the
// duration of Publish unless the subscriber reserves it.
type Subscriber interface {
	Publish(f *ndarray.Frame) error
}

// DropCounter is told about every frame dropped on a full queue.
type DropCounter interface {
	FrameDropped()
}

type Options struct {
	QueueSize         int
	BlockingCallbacks bool
	// Priority and StackSize are recorded for reporting only.
	Priority  int
	StackSize int
}

type Driver struct {
	proc  Processor
	opts  Options
	drops DropCounter
	log   *zap.Logger

	queue  chan *ndarray.Frame
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	subMu sync.RWMutex
	subs  map[string]Subscriber

	dropped      atomic.Uint64
	restartDelay time.Duration
}

// NewDriver creates a driver. A QueueSize below 1 is raised to 1.
func NewDriver(p Processor, opts Options, drops DropCounter) *Driver {
	log := logger.Component(engine.PluginType)
	if opts.QueueSize < 1 {
		log.Warn("queue size must be at least 1, using 1", zap.Int("queue_size", opts.QueueSize))
		opts.QueueSize = 1
	}
	return &Driver{
		proc:         p,
		opts:         opts,
		drops:        drops,
		log:          log,
		queue:        make(chan *ndarray.Frame, opts.QueueSize),
		subs:         make(map[string]Subscriber),
		restartDelay: time.Second,
	}
}

func (d *Driver) Options() Options { return d.opts }

// Start launches the queue worker. It does nothing in blocking mode.
func (d *Driver) Start() {
	if d.opts.BlockingCallbacks {
		return
	}
	d.wg.Add(1)
	go d.runWorker()
}

func (d *Driver) Subscribe(s Subscriber) string {
	id := uuid.NewString()
	d.subMu.Lock()
	d.subs[id] = s
	d.subMu.Unlock()
	return id
}

func (d *Driver) Unsubscribe(id string) {
	d.subMu.Lock()
	delete(d.subs, id)
	d.subMu.Unlock()
}

// Submit hands a frame to the engine. In blocking mode the cycle runs before
// Submit returns; otherwise the frame is reserved and queued, or dropped with
// ErrQueueFull when the queue is full.
func (d *Driver) Submit(f *ndarray.Frame) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	if d.opts.BlockingCallbacks {
		res := d.ProcessNow(f)
		if res.Output != nil {
			_ = res.Output.Release()
		}
		return nil
	}
	f.Reserve()
	select {
	case d.queue <- f:
		return nil
	default:
		_ = f.Release()
		d.dropped.Add(1)
		if d.drops != nil {
			d.drops.FrameDropped()
		}
		return errors.Wrapf(ErrQueueFull, "unique id %d", f.UniqueID)
	}
}

// ProcessNow runs a cycle in the calling goroutine and publishes the output.
// The caller owns the returned Output reference.
func (d *Driver) ProcessNow(f *ndarray.Frame) engine.Result {
	res := d.proc.Process(f)
	if res.Output != nil {
		d.publish(res.Output)
	}
	return res
}

func (d *Driver) Dropped() uint64 { return d.dropped.Load() }

// QueueLen is the number of frames waiting for the worker.
func (d *Driver) QueueLen() int { return len(d.queue) }

// Close stops accepting frames and waits for the worker to drain the queue.
func (d *Driver) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()
	d.wg.Wait()
	for f := range d.queue {
		_ = f.Release()
	}
}

func (d *Driver) runWorker() {
	restarting := false
	defer func() {
		if r := recover(); r != nil {
			d.log.Error(fmt.Sprintf("Worker panic: %v. Restarting in %s...", r, d.restartDelay))
			restarting = true
			time.Sleep(d.restartDelay)
			go d.runWorker()
		}
		if !restarting {
			d.wg.Done()
		}
	}()
	for f := range d.queue {
		d.handle(f)
	}
}

func (d *Driver) handle(f *ndarray.Frame) {
	defer func() { _ = f.Release() }()
	res := d.proc.Process(f)
	if res.Output == nil {
		return
	}
	defer func() { _ = res.Output.Release() }()
	d.publish(res.Output)
}

func (d *Driver) publish(out *ndarray.Frame) {
	d.subMu.RLock()
	subs := maps.Clone(d.subs)
	d.subMu.RUnlock()
	for id, s := range subs {
		if err := publishOne(s, out); err != nil {
			d.log.Warn("subscriber failed",
				zap.String("subscriber", id),
				zap.Int64(logger.FieldUniqueID, out.UniqueID),
				zap.Error(err))
		}
	}
}

func publishOne(s Subscriber, out *ndarray.Frame) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("subscriber panic: %v", r)
		}
	}()
	return s.Publish(out)
}

// Report combines engine counters with delivery and pool state.
type Report struct {
	engine.Stats
	LastStatus        string `json:"lastStatus"`
	Dropped           uint64 `json:"dropped"`
	QueueSize         int    `json:"queueSize"`
	QueueLen          int    `json:"queueLen"`
	BlockingCallbacks bool   `json:"blockingCallbacks"`
	Priority          int    `json:"priority"`
	StackSize         int    `json:"stackSize"`
	PoolBuffers       int    `json:"poolBuffers"`
	PoolFree          int    `json:"poolFree"`
	PoolMemory        int64  `json:"poolMemory"`
}

func BuildReport(e *engine.Engine, d *Driver) Report {
	st := e.Stats()
	r := Report{
		Stats:             st,
		LastStatus:        st.LastStatus.String(),
		Dropped:           d.Dropped(),
		QueueSize:         d.opts.QueueSize,
		QueueLen:          d.QueueLen(),
		BlockingCallbacks: d.opts.BlockingCallbacks,
		Priority:          d.opts.Priority,
		StackSize:         d.opts.StackSize,
		PoolBuffers:       e.Pool().NumBuffers(),
		PoolFree:          e.Pool().NumFree(),
		PoolMemory:        e.Pool().MemorySize(),
	}
	if st.Cycles == 0 {
		r.LastStatus = ""
	}
	return r
}

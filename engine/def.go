package engine

import (
	"encoding/json"
	"sync"
	"time"

	"BlurServer/ndarray"
	iface "BlurServer/interface"

	"github.com/cockroachdb/errors"
)

const PluginType = "NDPluginBlur"

const (
	IDLE = 0x0003
	BUSY = 0x0004
)

var (
	ErrValidation      = errors.New("kernel width and height should be > 0")
	ErrUnsupportedRank = errors.New("number of array dimensions must be 1 or 2")
	ErrFilterExecution = errors.New("filter execution failed")
)

// ParamValues is a snapshot of the engine parameters.
type ParamValues struct {
	KernelWidth       int              `json:"kernelWidth"`
	KernelHeight      int              `json:"kernelHeight"`
	Mode              iface.Mode       `json:"blurType"`
	OutputType        ndarray.DataType `json:"dataType"`
	LegacyKernelCheck bool             `json:"legacyKernelCheck"`
}

// DefaultParams is a 3x3 kernel, no smoothing, output in the input's type.
func DefaultParams() ParamValues {
	return ParamValues{KernelWidth: 3, KernelHeight: 3, Mode: iface.None, OutputType: ndarray.Auto}
}

// MergeParams overlays fields, keyed by the JSON names of ParamValues, onto
// cur. Unknown keys are ignored.
func MergeParams(cur ParamValues, fields map[string]any) (ParamValues, error) {
	patch, err := json.Marshal(fields)
	if err != nil {
		return cur, errors.Wrap(err, "encode parameters")
	}
	if err := json.Unmarshal(patch, &cur); err != nil {
		return cur, errors.Wrap(err, "decode parameters")
	}
	return cur, nil
}

// Params is the engine's parameter store. All accessors are safe for
// concurrent use.
type Params struct {
	mu sync.RWMutex
	v  ParamValues
}

func NewParams(v ParamValues) *Params {
	return &Params{v: v}
}

func (p *Params) Get() ParamValues {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.v
}

// Update applies fn to the current values atomically. Nothing changes if fn
// returns an error.
func (p *Params) Update(fn func(ParamValues) (ParamValues, error)) (ParamValues, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, err := fn(p.v)
	if err != nil {
		return p.v, err
	}
	p.v = v
	return v, nil
}

func (p *Params) KernelWidth() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.v.KernelWidth
}

func (p *Params) KernelHeight() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.v.KernelHeight
}

func (p *Params) SetKernelHeight(h int) {
	p.mu.Lock()
	p.v.KernelHeight = h
	p.mu.Unlock()
}

func (p *Params) Mode() iface.Mode {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.v.Mode
}

func (p *Params) OutputType() ndarray.DataType {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.v.OutputType
}

func (p *Params) SetOutputType(dt ndarray.DataType) {
	p.mu.Lock()
	p.v.OutputType = dt
	p.mu.Unlock()
}

func (p *Params) LegacyKernelCheck() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.v.LegacyKernelCheck
}

func (p *Params) SetLegacyKernelCheck(on bool) {
	p.mu.Lock()
	p.v.LegacyKernelCheck = on
	p.mu.Unlock()
}

// Result describes one processing cycle. Output is nil unless Status is
// Success or Degraded, in which case the caller owns one reference to it.
type Result struct {
	Status   iface.CycleStatus
	Err      error
	Output   *ndarray.Frame
	Params   ParamValues
	Duration time.Duration
}

// Stats are cumulative cycle counters.
type Stats struct {
	ID         string            `json:"id"`
	PortName   string            `json:"portName"`
	PluginType string            `json:"pluginType"`
	Backend    string            `json:"backend"`
	State      int               `json:"state"`
	Cycles     uint64            `json:"cycles"`
	Succeeded  uint64            `json:"succeeded"`
	Degraded   uint64            `json:"degraded"`
	Rejected   uint64            `json:"rejected"`
	LastStatus iface.CycleStatus `json:"-"`
	LastError  string            `json:"lastError,omitempty"`
}

// Recorder receives per-cycle observations, normally the prometheus metrics.
type Recorder interface {
	ObserveCycle(status iface.CycleStatus, d time.Duration)
	FilterFailure(mode iface.Mode)
}

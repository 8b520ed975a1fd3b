package engine

import (
	"BlurServer/logger"
	"BlurServer/ndarray"
	iface "BlurServer/interface"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// Dispatcher runs the selected smoothing capability over float32 frames.
type Dispatcher struct {
	Smoother iface.Smoother
	Log      *zap.Logger
	Recorder Recorder
}

// Apply first copies in to out byte for byte, then smooths in into out for
// the given mode. A capability failure leaves the copy in place and returns
// an error wrapping ErrFilterExecution. None and unknown modes are no-ops.
func (d *Dispatcher) Apply(in, out *ndarray.Frame, info ndarray.ArrayInfo, kw, kh int, mode iface.Mode) error {
	n := info.NElements * ndarray.Float32.Size()
	copy(out.Data[:n], in.Data[:n])

	var run func(src iface.Plane, dst []float32) error
	switch mode {
	case iface.NormalizedBox:
		run = func(src iface.Plane, dst []float32) error { return d.Smoother.NormalizedBox(src, dst, kw, kh) }
	case iface.Gaussian:
		run = func(src iface.Plane, dst []float32) error { return d.Smoother.Gaussian(src, dst, kw, kh) }
	case iface.Median:
		run = func(src iface.Plane, dst []float32) error { return d.Smoother.Median(src, dst, kw) }
	case iface.Bilateral:
		run = func(src iface.Plane, dst []float32) error {
			return d.Smoother.Bilateral(src, dst, kw, iface.BilateralSigmaColor, iface.BilateralSigmaSpace)
		}
	default:
		return nil
	}

	src := iface.Plane{Data: in.Float32s()[:info.NElements], Rows: info.YSize, Cols: info.XSize}
	scratch := make([]float32, info.NElements)
	if err := guard(func() error { return run(src, scratch) }); err != nil {
		err = errors.Wrapf(ErrFilterExecution, "%s: %v", mode, err)
		d.log().Warn("filter failed, output is the unfiltered input",
			zap.String(logger.FieldFunction, "dispatch"),
			zap.Stringer(logger.FieldMode, mode),
			zap.Int(logger.FieldKernelWidth, kw),
			zap.Int(logger.FieldKernelHeight, kh),
			zap.Error(err))
		if d.Recorder != nil {
			d.Recorder.FilterFailure(mode)
		}
		return err
	}
	copy(out.Float32s(), scratch)
	return nil
}

func (d *Dispatcher) log() *zap.Logger {
	if d.Log != nil {
		return d.Log
	}
	return logger.Component(PluginType)
}

// guard turns a panic in fn into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("panic: %v", r)
		}
	}()
	return fn()
}

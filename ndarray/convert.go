package ndarray

import (
	"math"

	"github.com/cockroachdb/errors"
)

// convertData converts src (of type st) into dst (of type dt). Both slices
// must hold the same number of elements. Float to integer conversion rounds
// to nearest and saturates at the destination range.
func convertData(dst []byte, dt DataType, src []byte, st DataType) {
	if dt == st {
		copy(dst, src)
		return
	}
	switch dt {
	case Int8:
		convertFrom(view[int8](dst), src, st, saturate[int8](math.MinInt8, math.MaxInt8))
	case UInt8:
		convertFrom(view[uint8](dst), src, st, saturate[uint8](0, math.MaxUint8))
	case Int16:
		convertFrom(view[int16](dst), src, st, saturate[int16](math.MinInt16, math.MaxInt16))
	case UInt16:
		convertFrom(view[uint16](dst), src, st, saturate[uint16](0, math.MaxUint16))
	case Int32:
		convertFrom(view[int32](dst), src, st, saturate[int32](math.MinInt32, math.MaxInt32))
	case UInt32:
		convertFrom(view[uint32](dst), src, st, saturate[uint32](0, math.MaxUint32))
	case Float32:
		convertFrom(view[float32](dst), src, st, func(v float64) float32 { return float32(v) })
	case Float64:
		convertFrom(view[float64](dst), src, st, func(v float64) float64 { return v })
	}
}

func convertFrom[D number](dst []D, src []byte, st DataType, cast func(float64) D) {
	switch st {
	case Int8:
		convertSlice(dst, view[int8](src), cast)
	case UInt8:
		convertSlice(dst, view[uint8](src), cast)
	case Int16:
		convertSlice(dst, view[int16](src), cast)
	case UInt16:
		convertSlice(dst, view[uint16](src), cast)
	case Int32:
		convertSlice(dst, view[int32](src), cast)
	case UInt32:
		convertSlice(dst, view[uint32](src), cast)
	case Float32:
		convertSlice(dst, view[float32](src), cast)
	case Float64:
		convertSlice(dst, view[float64](src), cast)
	}
}

func convertSlice[D, S number](dst []D, src []S, cast func(float64) D) {
	n := min(len(dst), len(src))
	for i := 0; i < n; i++ {
		dst[i] = cast(float64(src[i]))
	}
}

func saturate[D number](lo, hi float64) func(float64) D {
	return func(v float64) D {
		switch {
		case math.IsNaN(v):
			return 0
		case v <= lo:
			return D(lo)
		case v >= hi:
			return D(hi)
		}
		return D(math.Round(v))
	}
}

// Values returns the frame's samples widened to float64. Intended for
// inspection and tests, not the processing path.
func (f *Frame) Values() []float64 {
	b := alignedBytes(f.Info().NElements * Float64.Size())
	convertData(b, Float64, f.Data, f.DataType)
	return view[float64](b)
}

// FromValues builds a standalone frame of type dt from float64 samples,
// applying the same rounding and saturation as Convert.
func FromValues(dims []int, dt DataType, values []float64) (*Frame, error) {
	f, err := NewFrame(dims, dt)
	if err != nil {
		return nil, err
	}
	if len(values) != f.Info().NElements {
		return nil, errors.Wrapf(ErrInvalidDims, "%d values for %d elements", len(values), f.Info().NElements)
	}
	src := alignedBytes(len(values) * Float64.Size())
	copy(view[float64](src), values)
	convertData(f.Data, dt, src, Float64)
	return f, nil
}

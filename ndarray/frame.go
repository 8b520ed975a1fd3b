// Package ndarray holds the typed, reference-counted sample arrays that flow
// through the plugin chain, and the pool they are allocated from.
package ndarray

import (
	"math"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/cockroachdb/errors"
)

var (
	ErrInvalidDims = errors.New("invalid dimensions")
	ErrReleased    = errors.New("frame already released")
)

// Attribute is opaque metadata carried through processing unmodified.
type Attribute struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Value       any    `json:"value"`
}

type AttributeList []Attribute

// Clone returns an independent copy of the list. Values are copied shallowly.
func (l AttributeList) Clone() AttributeList {
	if l == nil {
		return nil
	}
	out := make(AttributeList, len(l))
	copy(out, l)
	return out
}

// Get returns the named attribute.
func (l AttributeList) Get(name string) (Attribute, bool) {
	for _, a := range l {
		if a.Name == name {
			return a, true
		}
	}
	return Attribute{}, false
}

// ArrayInfo is derived from a frame's current dims and type. It is recomputed
// per frame and never cached.
type ArrayInfo struct {
	NElements       int
	BytesPerElement int
	TotalBytes      int
	XDim, YDim      int
	XSize, YSize    int
}

// Frame is an N-dimensional array of samples. Dims[0] is the fastest varying
// (x) axis. Data is stored in native byte order.
type Frame struct {
	UniqueID   int64
	TimeStamp  time.Time
	Dims       []int
	DataType   DataType
	Attributes AttributeList
	Data       []byte

	pool     *Pool
	refCount atomic.Int32
}

// NewFrame allocates a frame outside of any pool with a reference count of 1.
func NewFrame(dims []int, dt DataType) (*Frame, error) {
	n, err := elementCount(dims, dt)
	if err != nil {
		return nil, err
	}
	f := &Frame{
		Dims:     append([]int(nil), dims...),
		DataType: dt,
		Data:     alignedBytes(n * dt.Size()),
	}
	f.refCount.Store(1)
	return f, nil
}

// elementCount returns the product of dims. It fails if any dim is not
// positive or if the product, or its size in bytes, overflows int.
func elementCount(dims []int, dt DataType) (int, error) {
	if !dt.Valid() {
		return 0, errors.Wrapf(ErrUnknownDataType, "%v", dt)
	}
	if len(dims) == 0 {
		return 0, errors.Wrap(ErrInvalidDims, "no dimensions")
	}
	n := 1
	for i, d := range dims {
		if d <= 0 {
			return 0, errors.Wrapf(ErrInvalidDims, "dims[%d]=%d", i, d)
		}
		if n > math.MaxInt/d {
			return 0, errors.Wrapf(ErrInvalidDims, "dims %v overflow", dims)
		}
		n *= d
	}
	if n > math.MaxInt/dt.Size() {
		return 0, errors.Wrapf(ErrInvalidDims, "dims %v of %v overflow", dims, dt)
	}
	return n, nil
}

// ByteSize returns the number of data bytes dims of dt need.
func ByteSize(dims []int, dt DataType) (int, error) {
	n, err := elementCount(dims, dt)
	if err != nil {
		return 0, err
	}
	return n * dt.Size(), nil
}

// NDims returns the rank of the frame.
func (f *Frame) NDims() int { return len(f.Dims) }

// Info computes the ArrayInfo for the frame's current dims and type. Element
// and byte counts are zero when the dims are not valid for the type.
func (f *Frame) Info() ArrayInfo {
	info := ArrayInfo{BytesPerElement: f.DataType.Size(), XDim: 0, YDim: 1}
	if len(f.Dims) == 0 {
		return info
	}
	if n, err := elementCount(f.Dims, f.DataType); err == nil {
		info.NElements = n
		info.TotalBytes = n * info.BytesPerElement
	}
	info.XSize = f.Dims[info.XDim]
	info.YSize = 1
	if len(f.Dims) > 1 {
		info.YSize = f.Dims[info.YDim]
	}
	return info
}

// Validate checks that the dims and type describe exactly the bytes in Data.
func (f *Frame) Validate() error {
	size, err := ByteSize(f.Dims, f.DataType)
	if err != nil {
		return err
	}
	if size != len(f.Data) {
		return errors.Wrapf(ErrInvalidDims, "dims %v of %v need %d bytes, have %d", f.Dims, f.DataType, size, len(f.Data))
	}
	return nil
}

// Reserve adds a holder.
func (f *Frame) Reserve() {
	f.refCount.Add(1)
}

// Release drops a holder. The storage goes back to the pool when no holder remains.
func (f *Frame) Release() error {
	n := f.refCount.Add(-1)
	switch {
	case n < 0:
		f.refCount.Store(0)
		return ErrReleased
	case n > 0:
		return nil
	}
	if f.pool != nil {
		f.pool.put(f.Data)
	}
	f.Data = nil
	return nil
}

// RefCount returns the number of current holders.
func (f *Frame) RefCount() int {
	return int(f.refCount.Load())
}

// Float32s views the data of a Float32 frame without copying.
func (f *Frame) Float32s() []float32 {
	if f.DataType != Float32 {
		return nil
	}
	return view[float32](f.Data)
}

// alignedBytes returns a zeroed byte slice whose backing array is 8-byte
// aligned, so it can be viewed as any element type.
func alignedBytes(n int) []byte {
	if n <= 0 {
		return []byte{}
	}
	words := make([]uint64, (n+7)/8)
	return unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), len(words)*8)[:n]
}

type number interface {
	~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32 | ~float32 | ~float64
}

func view[T number](b []byte) []T {
	var zero T
	n := len(b) / int(unsafe.Sizeof(zero))
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(b))), n)
}

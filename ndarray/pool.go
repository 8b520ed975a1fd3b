package ndarray

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
)

var ErrPoolExhausted = errors.New("frame pool exhausted")

// Pool hands out frame storage and takes it back when the last holder
// releases. maxBuffers limits the number of buffers the pool owns and
// maxMemory the bytes; zero or negative means unlimited.
type Pool struct {
	mu         sync.Mutex
	maxBuffers int
	maxMemory  int64
	numBuffers int
	memorySize int64
	free       [][]byte
	nextID     atomic.Int64
}

func NewPool(maxBuffers int, maxMemory int64) *Pool {
	return &Pool{maxBuffers: maxBuffers, maxMemory: maxMemory}
}

// Alloc returns a zeroed frame with a reference count of 1.
func (p *Pool) Alloc(dims []int, dt DataType) (*Frame, error) {
	n, err := elementCount(dims, dt)
	if err != nil {
		return nil, err
	}
	data, err := p.get(n * dt.Size())
	if err != nil {
		return nil, err
	}
	f := &Frame{
		UniqueID:  p.nextID.Add(1),
		TimeStamp: time.Now(),
		Dims:      append([]int(nil), dims...),
		DataType:  dt,
		Data:      data,
		pool:      p,
	}
	f.refCount.Store(1)
	return f, nil
}

// Copy duplicates src into a new pool frame with independent storage. Dims,
// type, id, timestamp and attributes are carried over.
func (p *Pool) Copy(src *Frame) (*Frame, error) {
	if src.Data == nil {
		return nil, ErrReleased
	}
	dst, err := p.Alloc(src.Dims, src.DataType)
	if err != nil {
		return nil, err
	}
	copy(dst.Data, src.Data)
	dst.UniqueID = src.UniqueID
	dst.TimeStamp = src.TimeStamp
	dst.Attributes = src.Attributes.Clone()
	return dst, nil
}

// Convert returns a new pool frame holding src's values as dt. src is not modified.
func (p *Pool) Convert(src *Frame, dt DataType) (*Frame, error) {
	if src.Data == nil {
		return nil, ErrReleased
	}
	if dt == src.DataType {
		return p.Copy(src)
	}
	dst, err := p.Alloc(src.Dims, dt)
	if err != nil {
		return nil, err
	}
	convertData(dst.Data, dt, src.Data, src.DataType)
	dst.UniqueID = src.UniqueID
	dst.TimeStamp = src.TimeStamp
	dst.Attributes = src.Attributes.Clone()
	return dst, nil
}

// ConvertInPlace changes f's element type, swapping in new storage from the
// pool. Only call it on frames the caller owns exclusively.
func (p *Pool) ConvertInPlace(f *Frame, dt DataType) error {
	if f.DataType == dt {
		return nil
	}
	if !dt.Valid() {
		return errors.Wrapf(ErrUnknownDataType, "%v", dt)
	}
	nf, err := p.Convert(f, dt)
	if err != nil {
		return err
	}
	f.Data, nf.Data = nf.Data, f.Data
	f.pool, nf.pool = nf.pool, f.pool
	nf.DataType = f.DataType
	f.DataType = dt
	return nf.Release()
}

// NumBuffers is the number of buffers owned by the pool, in use or free.
func (p *Pool) NumBuffers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.numBuffers
}

// NumFree is the number of buffers waiting for reuse.
func (p *Pool) NumFree() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}

// MemorySize is the number of bytes owned by the pool.
func (p *Pool) MemorySize() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.memorySize
}

func (p *Pool) get(size int) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, b := range p.free {
		if cap(b) >= size {
			p.free = append(p.free[:i], p.free[i+1:]...)
			b = b[:size]
			clear(b)
			return b, nil
		}
	}
	need := int64((size + 7) &^ 7)
	if p.maxMemory > 0 && p.memorySize+need > p.maxMemory {
		// free buffers too small to reuse still count against the limit
		for _, b := range p.free {
			p.memorySize -= int64(cap(b))
			p.numBuffers--
		}
		p.free = nil
		if p.memorySize+need > p.maxMemory {
			return nil, errors.Wrapf(ErrPoolExhausted, "need %d bytes, %d of %d in use", need, p.memorySize, p.maxMemory)
		}
	}
	if p.maxBuffers > 0 && p.numBuffers >= p.maxBuffers {
		if len(p.free) == 0 {
			return nil, errors.Wrapf(ErrPoolExhausted, "all %d buffers in use", p.maxBuffers)
		}
		// drop one undersized free buffer to make room
		p.memorySize -= int64(cap(p.free[0]))
		p.numBuffers--
		p.free = p.free[1:]
	}
	b := alignedBytes(size)
	p.numBuffers++
	p.memorySize += int64(cap(b))
	return b, nil
}

func (p *Pool) put(b []byte) {
	if b == nil {
		return
	}
	p.mu.Lock()
	p.free = append(p.free, b)
	p.mu.Unlock()
}

package ndarray

import (
	"encoding/json"
	"math"
	"runtime"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrame_Info(t *testing.T) {
	t.Run("2-D", func(t *testing.T) {
		f, err := NewFrame([]int{7, 3}, UInt16)
		require.NoError(t, err)
		info := f.Info()
		assert.Equal(t, 21, info.NElements)
		assert.Equal(t, 2, info.BytesPerElement)
		assert.Equal(t, 42, info.TotalBytes)
		assert.Equal(t, 7, info.XSize)
		assert.Equal(t, 3, info.YSize)
		assert.Len(t, f.Data, 42)
	})

	t.Run("1-D", func(t *testing.T) {
		f, err := NewFrame([]int{9}, Float64)
		require.NoError(t, err)
		info := f.Info()
		assert.Equal(t, 9, info.XSize)
		assert.Equal(t, 1, info.YSize)
		assert.Equal(t, 72, info.TotalBytes)
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := NewFrame([]int{4, 0}, UInt8)
		assert.True(t, errors.Is(err, ErrInvalidDims))
		_, err = NewFrame(nil, UInt8)
		assert.True(t, errors.Is(err, ErrInvalidDims))
		_, err = NewFrame([]int{4}, Auto)
		assert.True(t, errors.Is(err, ErrUnknownDataType))
	})
}

func TestFrame_RefCount(t *testing.T) {
	p := NewPool(0, 0)
	f, err := p.Alloc([]int{4, 4}, Float32)
	require.NoError(t, err)
	assert.Equal(t, 1, f.RefCount())

	f.Reserve()
	require.NoError(t, f.Release())
	assert.NotNil(t, f.Data, "storage must survive while a holder remains")
	assert.Equal(t, 0, p.NumFree())

	require.NoError(t, f.Release())
	assert.Nil(t, f.Data)
	assert.Equal(t, 1, p.NumFree())

	assert.ErrorIs(t, f.Release(), ErrReleased)
}

func TestPool_Limits(t *testing.T) {
	t.Run("max buffers", func(t *testing.T) {
		p := NewPool(2, 0)
		a, err := p.Alloc([]int{8}, UInt8)
		require.NoError(t, err)
		_, err = p.Alloc([]int{8}, UInt8)
		require.NoError(t, err)
		_, err = p.Alloc([]int{8}, UInt8)
		assert.True(t, errors.Is(err, ErrPoolExhausted))

		require.NoError(t, a.Release())
		c, err := p.Alloc([]int{8}, UInt8)
		require.NoError(t, err, "released buffer must be reused")
		assert.Equal(t, 2, p.NumBuffers())
		assert.Equal(t, make([]byte, 8), c.Data, "reused storage is zeroed")
	})

	t.Run("max memory", func(t *testing.T) {
		p := NewPool(0, 64)
		_, err := p.Alloc([]int{4, 4}, Float32)
		require.NoError(t, err)
		_, err = p.Alloc([]int{2}, Float32)
		assert.True(t, errors.Is(err, ErrPoolExhausted))
		assert.Equal(t, int64(64), p.MemorySize())
	})

	t.Run("undersized free buffers are dropped", func(t *testing.T) {
		p := NewPool(1, 0)
		small, err := p.Alloc([]int{2}, UInt8)
		require.NoError(t, err)
		require.NoError(t, small.Release())
		big, err := p.Alloc([]int{64}, UInt8)
		require.NoError(t, err)
		assert.Len(t, big.Data, 64)
		assert.Equal(t, 1, p.NumBuffers())
	})
}

func TestPool_Copy(t *testing.T) {
	p := NewPool(0, 0)
	src, err := FromValues([]int{3}, Int16, []float64{-5, 0, 7})
	require.NoError(t, err)
	src.UniqueID = 42
	src.Attributes = AttributeList{{Name: "ColorMode", Value: 0}}

	dup, err := p.Copy(src)
	require.NoError(t, err)
	assert.Equal(t, src.Data, dup.Data)
	assert.Equal(t, int64(42), dup.UniqueID)
	assert.Equal(t, src.Attributes, dup.Attributes)

	dup.Data[0] = 0xff
	dup.Attributes[0].Value = 1
	assert.Equal(t, []float64{-5, 0, 7}, src.Values(), "copy must not share storage")
	assert.Equal(t, 0, src.Attributes[0].Value)
}

func TestPool_ConvertRoundTrip(t *testing.T) {
	cases := []struct {
		dt     DataType
		values []float64
		delta  float64
	}{
		{Int8, []float64{math.MinInt8, -1, 0, 1, math.MaxInt8}, 0},
		{UInt8, []float64{0, 1, 128, math.MaxUint8}, 0},
		{Int16, []float64{math.MinInt16, -300, 0, 300, math.MaxInt16}, 0},
		{UInt16, []float64{0, 1000, math.MaxUint16}, 0},
		{Int32, []float64{-1 << 24, -12345, 0, 1 << 24}, 0},
		{UInt32, []float64{0, 99999, 1 << 24}, 0},
		{Int32, []float64{math.MaxInt32 - 1}, 128},
		{Float32, []float64{-1.5, 0, 3.25, 1024}, 0},
		{Float64, []float64{math.Pi, -1e-3, 1e20}, 0},
	}
	p := NewPool(0, 0)
	for _, tc := range cases {
		t.Run(tc.dt.String(), func(t *testing.T) {
			src, err := FromValues([]int{len(tc.values)}, tc.dt, tc.values)
			require.NoError(t, err)

			work, err := p.Convert(src, Float32)
			require.NoError(t, err)
			require.NoError(t, p.ConvertInPlace(work, tc.dt))
			assert.Equal(t, tc.dt, work.DataType)

			got := work.Values()
			for i, want := range tc.values {
				if tc.delta == 0 && tc.dt != Float64 {
					assert.Equal(t, want, got[i])
				} else {
					assert.InDelta(t, want, got[i], math.Max(tc.delta, math.Abs(want)*1e-7))
				}
			}
			assert.Equal(t, tc.values, src.Values(), "source frame is not modified")
		})
	}
}

func TestPool_ConvertSaturates(t *testing.T) {
	src, err := FromValues([]int{5}, Float32, []float64{-3.7, 2.5, 254.6, 300, math.NaN()})
	require.NoError(t, err)
	out, err := NewPool(0, 0).Convert(src, UInt8)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 3, 255, 255, 0}, out.Values())
}

func TestPool_ConvertInPlaceReturnsOldStorage(t *testing.T) {
	p := NewPool(0, 0)
	f, err := p.Alloc([]int{4}, UInt8)
	require.NoError(t, err)
	require.NoError(t, p.ConvertInPlace(f, Float32))
	assert.Equal(t, Float32, f.DataType)
	assert.Len(t, f.Float32s(), 4)
	assert.Equal(t, 1, p.NumFree(), "the uint8 buffer goes back to the pool")
	assert.Equal(t, 1, f.RefCount())
}

func TestDecode(t *testing.T) {
	src, err := FromValues([]int{2, 2}, UInt16, []float64{1, 2, 3, 4})
	require.NoError(t, err)
	src.Attributes = AttributeList{{Name: "exposure", Value: 0.5}}

	f, err := Decode(Encode(src))
	require.NoError(t, err)
	assert.Equal(t, src.Dims, f.Dims)
	assert.Equal(t, UInt16, f.DataType)
	assert.Equal(t, src.Values(), f.Values())
	assert.Equal(t, src.Attributes, f.Attributes)

	m := Encode(src)
	m.Data = m.Data[:3]
	_, err = Decode(m)
	assert.True(t, errors.Is(err, ErrInvalidDims))

	m = Encode(src)
	m.DataType = "Complex64"
	_, err = Decode(m)
	assert.True(t, errors.Is(err, ErrUnknownDataType))
}

func TestFrame_Overflow(t *testing.T) {
	for _, tc := range []struct {
		name string
		dims []int
		dt   DataType
	}{
		{"elements wrap to zero", []int{1 << 32, 1 << 32}, UInt8},
		{"elements wrap negative", []int{1 << 62, 3}, UInt8},
		{"bytes overflow", []int{math.MaxInt / 4, 3}, Float32},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ByteSize(tc.dims, tc.dt)
			assert.True(t, errors.Is(err, ErrInvalidDims), "%v", err)
			_, err = NewPool(0, 0).Alloc(tc.dims, tc.dt)
			assert.True(t, errors.Is(err, ErrInvalidDims), "%v", err)
			_, err = Decode(Message{Dims: tc.dims, DataType: tc.dt.String()})
			assert.True(t, errors.Is(err, ErrInvalidDims), "%v", err)
		})
	}

	t.Run("info stays zero", func(t *testing.T) {
		f, err := NewFrame([]int{2, 2}, UInt8)
		require.NoError(t, err)
		f.Dims = []int{1 << 62, 3}
		info := f.Info()
		assert.Zero(t, info.NElements)
		assert.Zero(t, info.TotalBytes)
		assert.True(t, errors.Is(f.Validate(), ErrInvalidDims))
	})
}

func TestFrame_Validate(t *testing.T) {
	f, err := NewFrame([]int{3, 2}, Int16)
	require.NoError(t, err)
	assert.NoError(t, f.Validate())

	f.Dims = []int{3, 3}
	assert.True(t, errors.Is(f.Validate(), ErrInvalidDims))

	f.Dims = []int{3, 2}
	require.NoError(t, f.Release())
	assert.True(t, errors.Is(f.Validate(), ErrInvalidDims), "released frames have no data")
}

func TestDecode_ChecksSizeFirst(t *testing.T) {
	// 8192x8192 Float64 would need 512 MiB; the short payload is refused
	// before anything is allocated.
	m := Message{Dims: []int{8192, 8192}, DataType: "Float64", Data: []byte{1, 2, 3}}
	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	_, err := Decode(m)
	runtime.ReadMemStats(&after)
	assert.True(t, errors.Is(err, ErrInvalidDims))
	assert.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(1<<20))
}

func TestParseDataType(t *testing.T) {
	for in, want := range map[string]DataType{
		"UInt8": UInt8, "float32": Float32, " Auto ": Auto, "6": Float32, "-1": Auto, "0": Int8,
	} {
		got, err := ParseDataType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"Complex64", "8", "-2", "2.5", ""} {
		_, err := ParseDataType(in)
		assert.True(t, errors.Is(err, ErrUnknownDataType), in)
	}
}

func TestDataType_UnmarshalJSON(t *testing.T) {
	var v struct {
		DT DataType `json:"dt"`
	}
	for in, want := range map[string]DataType{
		`{"dt":"Float64"}`: Float64,
		`{"dt":"3"}`:       UInt16,
		`{"dt":3}`:         UInt16,
		`{"dt":6.0}`:       Float32,
		`{"dt":-1}`:        Auto,
	} {
		require.NoError(t, json.Unmarshal([]byte(in), &v), in)
		assert.Equal(t, want, v.DT, in)
	}
	for _, in := range []string{`{"dt":2.5}`, `{"dt":42}`, `{"dt":"x"}`, `{"dt":true}`} {
		assert.Error(t, json.Unmarshal([]byte(in), &v), in)
	}

	v.DT = Auto
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"dt":"Auto"}`, string(raw))
}

package ndarray

import (
	"time"

	"github.com/cockroachdb/errors"
)

// Message is the JSON wire form of a frame used by the REST, websocket and
// HTTP sink surfaces. Data is base64 encoded by encoding/json.
type Message struct {
	UniqueID   int64         `json:"uniqueId"`
	TimeStamp  time.Time     `json:"timeStamp"`
	Dims       []int         `json:"dims" binding:"required"`
	DataType   string        `json:"dataType" binding:"required"`
	Data       []byte        `json:"data"`
	Attributes AttributeList `json:"attributes,omitempty"`
}

// Encode snapshots f into a Message. The data is copied.
func Encode(f *Frame) Message {
	return Message{
		UniqueID:   f.UniqueID,
		TimeStamp:  f.TimeStamp,
		Dims:       append([]int(nil), f.Dims...),
		DataType:   f.DataType.String(),
		Data:       append([]byte(nil), f.Data...),
		Attributes: f.Attributes.Clone(),
	}
}

// Decode builds a standalone frame from m.
func Decode(m Message) (*Frame, error) {
	dt, err := ParseDataType(m.DataType)
	if err != nil {
		return nil, err
	}
	size, err := ByteSize(m.Dims, dt)
	if err != nil {
		return nil, err
	}
	if len(m.Data) != size {
		return nil, errors.Wrapf(ErrInvalidDims, "data has %d bytes, dims %v of %v need %d", len(m.Data), m.Dims, dt, size)
	}
	f, err := NewFrame(m.Dims, dt)
	if err != nil {
		return nil, err
	}
	copy(f.Data, m.Data)
	f.UniqueID = m.UniqueID
	f.TimeStamp = m.TimeStamp
	f.Attributes = m.Attributes.Clone()
	return f, nil
}

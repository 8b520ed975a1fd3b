package ndarray

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// DataType is the element type of a frame.
type DataType int

const (
	Int8 DataType = iota
	UInt8
	Int16
	UInt16
	Int32
	UInt32
	Float32
	Float64
)

// Auto is only meaningful as an output type: emit in the incoming frame's type.
const Auto DataType = -1

var dataTypeNames = map[DataType]string{
	Int8:    "Int8",
	UInt8:   "UInt8",
	Int16:   "Int16",
	UInt16:  "UInt16",
	Int32:   "Int32",
	UInt32:  "UInt32",
	Float32: "Float32",
	Float64: "Float64",
	Auto:    "Auto",
}

var ErrUnknownDataType = errors.New("unknown data type")

func (dt DataType) String() string {
	if s, ok := dataTypeNames[dt]; ok {
		return s
	}
	return "DataType(" + strconv.Itoa(int(dt)) + ")"
}

// Valid reports whether dt is a concrete element type.
func (dt DataType) Valid() bool {
	return dt >= Int8 && dt <= Float64
}

// Size returns bytes per element, 0 for Auto or unknown types.
func (dt DataType) Size() int {
	switch dt {
	case Int8, UInt8:
		return 1
	case Int16, UInt16:
		return 2
	case Int32, UInt32, Float32:
		return 4
	case Float64:
		return 8
	}
	return 0
}

// ParseDataType accepts the names returned by String, case-insensitive, or
// the integer value of a concrete type or Auto.
func ParseDataType(s string) (DataType, error) {
	s = strings.TrimSpace(s)
	for dt, name := range dataTypeNames {
		if strings.EqualFold(name, s) {
			return dt, nil
		}
	}
	if n, err := strconv.Atoi(s); err == nil {
		if dt := DataType(n); dt.Valid() || dt == Auto {
			return dt, nil
		}
	}
	return Auto, errors.Wrapf(ErrUnknownDataType, "%q", s)
}

func (dt DataType) MarshalText() ([]byte, error) {
	return []byte(dt.String()), nil
}

func (dt *DataType) UnmarshalText(b []byte) error {
	v, err := ParseDataType(string(b))
	if err != nil {
		return err
	}
	*dt = v
	return nil
}

// UnmarshalJSON takes a name, a quoted integer or a plain JSON number.
// structpb hands every number over as a float64, so 6.0 is read as 6.
func (dt *DataType) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		return dt.UnmarshalText([]byte(s))
	}
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil || f != math.Trunc(f) {
		return errors.Wrapf(ErrUnknownDataType, "%s", b)
	}
	return dt.UnmarshalText([]byte(strconv.FormatInt(int64(f), 10)))
}

package iface

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

var ErrUnknownMode = errors.New("unknown blur type")

// Mode selects the smoothing algorithm. Values match the BLUR_TYPE parameter.
type Mode int

const (
	None Mode = iota
	NormalizedBox
	Gaussian
	Median
	Bilateral
)

var modeNames = []string{"None", "NormalizedBox", "Gaussian", "Median", "Bilateral"}

func (m Mode) String() string {
	if m >= 0 && int(m) < len(modeNames) {
		return modeNames[m]
	}
	return "Unknown"
}

// ParseMode maps a configuration name to a Mode. The second result is false
// for unknown names.
func ParseMode(s string) (Mode, bool) {
	for i, name := range modeNames {
		if strings.EqualFold(name, strings.TrimSpace(s)) {
			return Mode(i), true
		}
	}
	return None, false
}

// Bilateral filter constants.
const (
	BilateralSigmaColor = 5.0
	BilateralSigmaSpace = 5.0
)

// CycleStatus is the outcome of one processing cycle.
type CycleStatus int

const (
	Success CycleStatus = iota
	Degraded
	Rejected
)

func (s CycleStatus) String() string {
	switch s {
	case Success:
		return "success"
	case Degraded:
		return "degraded"
	case Rejected:
		return "rejected"
	}
	return "unknown"
}

func (m Mode) MarshalText() ([]byte, error) {
	if m < 0 || int(m) >= len(modeNames) {
		return []byte(strconv.Itoa(int(m))), nil
	}
	return []byte(m.String()), nil
}

// UnmarshalText accepts a mode name or its integer value. Out of range
// integers are kept; the engine treats them as a no-op.
func (m *Mode) UnmarshalText(b []byte) error {
	if v, ok := ParseMode(string(b)); ok {
		*m = v
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil {
		return errors.Wrapf(ErrUnknownMode, "%q", b)
	}
	*m = Mode(n)
	return nil
}

// UnmarshalJSON takes a name, a quoted integer or a plain JSON number.
// structpb hands every number over as a float64, so 2.0 is read as 2.
func (m *Mode) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		return m.UnmarshalText([]byte(s))
	}
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return errors.Wrapf(ErrUnknownMode, "%s", b)
	}
	*m = Mode(int(f))
	return nil
}

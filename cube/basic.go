package cube

import (
	"fmt"
	"math"

	"github.com/notargets/meshoctree/stream"
)

// Type classifies a cube relative to the input surface. Values are bit
// flags so that queries can select several types at once.
type Type uint8

const (
	Unknown Type = 1
	Outside Type = 2
	Data    Type = 4
	Inside  Type = 8
)

func (t Type) known() bool {
	return t == Unknown || t == Outside || t == Data || t == Inside
}

func (t Type) String() string {
	switch t {
	case Unknown:
		return "UNKNOWN"
	case Outside:
		return "OUTSIDE"
	case Data:
		return "DATA"
	case Inside:
		return "INSIDE"
	}
	return fmt.Sprintf("Type(%d)", uint8(t))
}

// Processor ownership markers
const (
	// AllProcs marks a cube replicated on every rank
	AllProcs int16 = -2
	// OtherProc marks a neighbour that exists on a rank not held locally
	OtherProc int16 = -3
)

// Basic is the minimal description of a cube: where it is, what it is and
// who owns it
type Basic struct {
	Coordinates
	Type   Type
	ProcNo int16
}

// WriteTokens writes (cubeType procNo (I J K Level))
func (b Basic) WriteTokens(w *stream.Writer) {
	w.Begin()
	w.Label(int64(b.Type))
	w.Space()
	w.Label(int64(b.ProcNo))
	w.Space()
	b.Coordinates.WriteTokens(w)
	w.End()
}

// ReadBasic reads the form written by Basic.WriteTokens
func ReadBasic(r *stream.Reader) (b Basic, err error) {
	const name = "meshOctreeCubeBasic"
	if err = r.ReadBegin(name); err != nil {
		return
	}
	var t, p int64
	if t, err = r.ReadLabel(name); err != nil {
		return
	}
	if !Type(t).known() || t != int64(Type(t)) {
		return b, &stream.ParseError{Record: name, Expected: "cube type", Found: fmt.Sprint(t)}
	}
	if p, err = r.ReadLabel(name); err != nil {
		return
	}
	if p < math.MinInt16 || p > math.MaxInt16 {
		return b, &stream.ParseError{Record: name, Expected: "processor number", Found: fmt.Sprint(p)}
	}
	if b.Coordinates, err = ReadCoordinates(r); err != nil {
		return
	}
	b.Type, b.ProcNo = Type(t), int16(p)
	err = r.ReadEnd(name)
	return
}

package parallel

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/meshoctree/cube"
	"github.com/notargets/meshoctree/stream"
)

// Pair is two labels travelling together
type Pair struct {
	First, Second int64
}

type (
	// LabelledCoordinates carries cube coordinates under the sender's label
	LabelledCoordinates = Record[cube.Coordinates]
	// LabelledCube carries a whole cube description
	LabelledCube = Record[cube.Basic]
	// LabelledPair carries two labels, for example a leaf and its owner
	LabelledPair = Record[Pair]
	// LabelledPoint carries a point
	LabelledPoint = Record[r3.Vec]
	// RefLabelledPoint wraps a labelled point with a reference label
	RefLabelledPoint = Record[LabelledPoint]
	// ParTriFace carries a triangle with its global label
	ParTriFace = Record[[3]r3.Vec]
)

// LabelledPairEqual compares labels and the pair regardless of its order
func LabelledPairEqual(a, b LabelledPair) bool {
	if a.Label != b.Label {
		return false
	}
	p, q := a.Payload, b.Payload
	return (p.First == q.First && p.Second == q.Second) ||
		(p.First == q.Second && p.Second == q.First)
}

var CoordinatesCodec = Codec[cube.Coordinates]{
	Name:  "labelledMeshOctreeCubeCoordinates",
	Write: func(w *stream.Writer, c cube.Coordinates) { c.WriteTokens(w) },
	Read:  cube.ReadCoordinates,
}

var CubeCodec = Codec[cube.Basic]{
	Name:  "labelledMeshOctreeCube",
	Write: func(w *stream.Writer, b cube.Basic) { b.WriteTokens(w) },
	Read:  cube.ReadBasic,
}

var PairCodec = Codec[Pair]{
	Name: "labelledPair",
	Write: func(w *stream.Writer, p Pair) {
		w.Begin()
		w.Label(p.First)
		w.Space()
		w.Label(p.Second)
		w.End()
	},
	Read: func(r *stream.Reader) (p Pair, err error) {
		const name = "labelledPair"
		if err = r.ReadBegin(name); err != nil {
			return
		}
		if p.First, err = r.ReadLabel(name); err != nil {
			return
		}
		if p.Second, err = r.ReadLabel(name); err != nil {
			return
		}
		err = r.ReadEnd(name)
		return
	},
}

var PointCodec = Codec[r3.Vec]{
	Name:  "labelledPoint",
	Write: func(w *stream.Writer, v r3.Vec) { w.Vector(v) },
	Read:  func(r *stream.Reader) (r3.Vec, error) { return r.ReadVector("labelledPoint") },
}

var RefPointCodec = Codec[LabelledPoint]{
	Name:  "refLabelledPoint",
	Write: func(w *stream.Writer, lp LabelledPoint) { WriteRecord(w, PointCodec, lp) },
	Read:  func(r *stream.Reader) (LabelledPoint, error) { return ReadRecord(r, PointCodec) },
}

var TriFaceCodec = Codec[[3]r3.Vec]{
	Name: "parTriFace",
	Write: func(w *stream.Writer, tri [3]r3.Vec) {
		w.Begin()
		for i, p := range tri {
			if i > 0 {
				w.Space()
			}
			w.Vector(p)
		}
		w.End()
	},
	Read: func(r *stream.Reader) (tri [3]r3.Vec, err error) {
		const name = "parTriFace"
		if err = r.ReadBegin(name); err != nil {
			return
		}
		for i := range tri {
			if tri[i], err = r.ReadVector(name); err != nil {
				return
			}
		}
		err = r.ReadEnd(name)
		return
	},
}

// valueCodec carries nothing but the label
var valueCodec = Codec[struct{}]{
	Name:  "value",
	Write: func(*stream.Writer, struct{}) {},
	Read:  func(*stream.Reader) (struct{}, error) { return struct{}{}, nil },
}

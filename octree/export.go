package octree

import (
	"io"

	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
	"gonum.org/v1/gonum/spatial/r3"
)

type boxJSON struct {
	Min [3]float64 `json:"min"`
	Max [3]float64 `json:"max"`
}

func toBoxJSON(b r3.Box) boxJSON {
	return boxJSON{
		Min: [3]float64{b.Min.X, b.Min.Y, b.Min.Z},
		Max: [3]float64{b.Max.X, b.Max.Y, b.Max.Z},
	}
}

type leafJSON struct {
	Index       int     `json:"index"`
	Coordinates [4]int  `json:"coordinates"`
	Box         boxJSON `json:"box"`
	Type        string  `json:"type"`
	Owner       int     `json:"owner"`
	Triangles   []int   `json:"triangles,omitempty"`
}

type octreeJSON struct {
	Rank    int        `json:"rank"`
	RootBox boxJSON    `json:"rootBox"`
	Leaves  []leafJSON `json:"leaves"`
}

// WriteJSON writes the leaf list with geometry, type, owner and contained
// triangles
func (o *Octree) WriteJSON(w io.Writer) error {
	o.requireLeaves("WriteJSON")
	doc := octreeJSON{
		Rank:    o.rank,
		RootBox: toBoxJSON(o.root),
		Leaves:  make([]leafJSON, len(o.leaves)),
	}
	for leafI := range o.leaves {
		cc := o.LeafCoordinates(leafI)
		doc.Leaves[leafI] = leafJSON{
			Index:       leafI,
			Coordinates: [4]int{int(cc.I), int(cc.J), int(cc.K), int(cc.Level)},
			Box:         toBoxJSON(cc.BoundingBox(o.root)),
			Type:        o.LeafType(leafI).String(),
			Owner:       o.LeafProcNo(leafI),
			Triangles:   o.ContainedTriangles(leafI, nil),
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(doc), "writing octree json")
}

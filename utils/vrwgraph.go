package utils

// VRWGraph stores rows of varying width back to back. Rows are appended and
// never resized, so a row index stays valid for the life of the graph.
type VRWGraph struct {
	data    []int
	offsets []int // row r occupies data[offsets[r]:offsets[r+1]]
}

// NewVRWGraph returns an empty graph
func NewVRWGraph() *VRWGraph {
	return &VRWGraph{offsets: []int{0}}
}

// AppendRow copies row into the graph and returns its index
func (g *VRWGraph) AppendRow(row []int) int {
	if len(g.offsets) == 0 {
		g.offsets = append(g.offsets, 0)
	}
	g.data = append(g.data, row...)
	g.offsets = append(g.offsets, len(g.data))
	return len(g.offsets) - 2
}

// NumberOfRows returns the number of appended rows
func (g *VRWGraph) NumberOfRows() int {
	if len(g.offsets) == 0 {
		return 0
	}
	return len(g.offsets) - 1
}

// SizeOfRow returns the width of row r
func (g *VRWGraph) SizeOfRow(r int) int {
	return g.offsets[r+1] - g.offsets[r]
}

// Row returns row r. The slice aliases the graph and must not be modified.
func (g *VRWGraph) Row(r int) []int {
	return g.data[g.offsets[r]:g.offsets[r+1]:g.offsets[r+1]]
}

// CopyRow resets dst and appends row r to it
func (g *VRWGraph) CopyRow(r int, dst []int) []int {
	return append(dst[:0], g.Row(r)...)
}

// Contains reports whether v appears in row r
func (g *VRWGraph) Contains(r, v int) bool {
	for _, x := range g.Row(r) {
		if x == v {
			return true
		}
	}
	return false
}

// NumberOfEntries returns the total number of stored values
func (g *VRWGraph) NumberOfEntries() int { return len(g.data) }

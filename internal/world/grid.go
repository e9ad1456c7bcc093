package world

// SpatialGrid is a uniform grid for broad-phase overlap queries on the ground plane.
// Cells store handles; positions outside the world are clamped to the edge cells.
type SpatialGrid struct {
	cellSize   float64
	cols, rows int
	cells      [][]Handle
}

// NewSpatialGrid creates a grid covering width x height with the given cell size
func NewSpatialGrid(width, height, cellSize float64) *SpatialGrid {
	if cellSize <= 0 {
		cellSize = DefaultCellSize
	}
	cols := int(width/cellSize) + 1
	rows := int(height/cellSize) + 1
	return &SpatialGrid{
		cellSize: cellSize,
		cols:     cols,
		rows:     rows,
		cells:    make([][]Handle, cols*rows),
	}
}

// Clear resets all cells (keeps allocated capacity)
func (g *SpatialGrid) Clear() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
}

func (g *SpatialGrid) clampCol(c int) int {
	if c < 0 {
		return 0
	}
	if c >= g.cols {
		return g.cols - 1
	}
	return c
}

func (g *SpatialGrid) clampRow(r int) int {
	if r < 0 {
		return 0
	}
	if r >= g.rows {
		return g.rows - 1
	}
	return r
}

func (g *SpatialGrid) span(x, y, radius float64) (minCX, maxCX, minCY, maxCY int) {
	minCX = g.clampCol(int((x - radius) / g.cellSize))
	maxCX = g.clampCol(int((x + radius) / g.cellSize))
	minCY = g.clampRow(int((y - radius) / g.cellSize))
	maxCY = g.clampRow(int((y + radius) / g.cellSize))
	return
}

// Insert adds a handle at the given position
func (g *SpatialGrid) Insert(x, y float64, h Handle) {
	idx := g.clampRow(int(y/g.cellSize))*g.cols + g.clampCol(int(x/g.cellSize))
	g.cells[idx] = append(g.cells[idx], h)
}

// InsertCircle adds a handle to all cells overlapping its bounding box
func (g *SpatialGrid) InsertCircle(x, y, radius float64, h Handle) {
	minCX, maxCX, minCY, maxCY := g.span(x, y, radius)
	for cy := minCY; cy <= maxCY; cy++ {
		for cx := minCX; cx <= maxCX; cx++ {
			idx := cy*g.cols + cx
			g.cells[idx] = append(g.cells[idx], h)
		}
	}
}

// QueryBuf appends the handles of every cell overlapping the bounding box to buf.
// A handle inserted with InsertCircle may appear more than once.
func (g *SpatialGrid) QueryBuf(x, y, radius float64, buf []Handle) []Handle {
	minCX, maxCX, minCY, maxCY := g.span(x, y, radius)
	for cy := minCY; cy <= maxCY; cy++ {
		for cx := minCX; cx <= maxCX; cx++ {
			buf = append(buf, g.cells[cy*g.cols+cx]...)
		}
	}
	return buf
}

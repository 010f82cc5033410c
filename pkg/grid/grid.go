// Package grid maps linear cell indexes onto a fixed-width grid.
package grid

// GetGridCoords returns the column and row of cell index in a grid cols
// cells wide.
func GetGridCoords(index, cols int) (x, y int) {
	return index % cols, index / cols
}

// CellAt is the inverse of GetGridCoords: the index of the cell under
// pixel (px, py) for cells cellW by cellH pixels, or -1 outside the grid.
func CellAt(px, py, cellW, cellH, cols, rows int) int {
	if px < 0 || py < 0 {
		return -1
	}
	x, y := px/cellW, py/cellH
	if x >= cols || y >= rows {
		return -1
	}
	return y*cols + x
}

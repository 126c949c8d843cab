// Package symbol 负责 Data Matrix 模块矩阵的获取与栅格化。
//
// 编码算法本身由外部库完成，本包只关心模块矩阵如何变成位图：
// 每模块像素数、静区宽度、按目标物理尺寸反推模块像素数，以及编码失败时的占位图。
package symbol

import (
	"errors"
	"fmt"
)

// ErrInvalidGrid 表示模块矩阵为空或行列不一致。
var ErrInvalidGrid = errors.New("symbol: invalid module grid")

// ModuleGrid 是按行优先存储的布尔模块矩阵，创建后不可变。
type ModuleGrid struct {
	rows  int
	cols  int
	cells []bool
}

// NewModuleGrid copies cells (row-major, len == rows*cols) into a new grid.
func NewModuleGrid(rows, cols int, cells []bool) (*ModuleGrid, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidGrid, rows, cols)
	}
	if len(cells) != rows*cols {
		return nil, fmt.Errorf("%w: %d cells for %dx%d", ErrInvalidGrid, len(cells), rows, cols)
	}
	own := make([]bool, len(cells))
	copy(own, cells)
	return &ModuleGrid{rows: rows, cols: cols, cells: own}, nil
}

// GridFromRows builds a grid from a slice of equally sized rows.
func GridFromRows(rows [][]bool) (*ModuleGrid, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrInvalidGrid)
	}
	cols := len(rows[0])
	cells := make([]bool, 0, len(rows)*cols)
	for i, row := range rows {
		if len(row) != cols {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", ErrInvalidGrid, i, len(row), cols)
		}
		cells = append(cells, row...)
	}
	return &ModuleGrid{rows: len(rows), cols: cols, cells: cells}, nil
}

func (g *ModuleGrid) Rows() int { return g.rows }
func (g *ModuleGrid) Cols() int { return g.cols }

// At reports whether the module at (row, col) is dark. Out of range reads are light.
func (g *ModuleGrid) At(row, col int) bool {
	if row < 0 || col < 0 || row >= g.rows || col >= g.cols {
		return false
	}
	return g.cells[row*g.cols+col]
}

func (g *ModuleGrid) valid() bool {
	return g != nil && g.rows > 0 && g.cols > 0 && len(g.cells) == g.rows*g.cols
}

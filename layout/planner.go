package layout

import (
	"errors"
	"fmt"
	"math"
)

// ErrNegativeCount is returned by PlanSlots for count < 0.
var ErrNegativeCount = errors.New("layout: negative slot count")

// PlanGrid 计算单页网格：
//
//	cols = floor((W - 2*margin + spacing) / (footprint + spacing))
//	rows = floor((H - 2*margin + spacing) / (footprint + 2*caption + spacing))
//
// 任一方向为 0 时强制为 1（degenerate 返回 true），保证每页至少一个槽位。
func PlanGrid(page PageSpec, footprint, caption float64) (Grid, bool) {
	cellW := footprint
	cellH := footprint + 2*caption
	cols := int(math.Floor((page.Width - 2*page.Margin + page.Spacing) / (cellW + page.Spacing)))
	rows := int(math.Floor((page.Height - 2*page.Margin + page.Spacing) / (cellH + page.Spacing)))
	degenerate := false
	if cols < 1 {
		cols, degenerate = 1, true
	}
	if rows < 1 {
		rows, degenerate = 1, true
	}
	return Grid{Cols: cols, Rows: rows, CellWidth: cellW, CellHeight: cellH}, degenerate
}

// PlanSlots 为 count 个符号依次分配槽位，页码在一页填满后自动递增。
// 第 0 行位于页面顶部：
//
//	x = margin + col*(cellW + spacing)
//	y = H - margin - (row+1)*(cellH + spacing)
func PlanSlots(page PageSpec, footprint, caption float64, count int) (*Plan, error) {
	if count < 0 {
		return nil, fmt.Errorf("%w: %d", ErrNegativeCount, count)
	}
	if err := page.Validate(); err != nil {
		return nil, err
	}
	if footprint <= 0 || math.IsInf(footprint, 0) || math.IsNaN(footprint) {
		return nil, fmt.Errorf("layout: 符号尺寸必须为正数，实际 %g", footprint)
	}
	if caption < 0 {
		return nil, fmt.Errorf("layout: 标注区高度不能为负，实际 %g", caption)
	}

	grid, degenerate := PlanGrid(page, footprint, caption)
	perPage := grid.PerPage()
	slots := make([]Slot, count)
	for i := range slots {
		inPage := i % perPage
		row := inPage / grid.Cols
		col := inPage % grid.Cols
		slots[i] = Slot{
			Index: i,
			Page:  i / perPage,
			Row:   row,
			Col:   col,
			X:     page.Margin + float64(col)*(grid.CellWidth+page.Spacing),
			Y:     page.Height - page.Margin - float64(row+1)*(grid.CellHeight+page.Spacing),
		}
	}
	return &Plan{
		Page:       page,
		Grid:       grid,
		Footprint:  footprint,
		Caption:    caption,
		Degenerate: degenerate,
		Slots:      slots,
	}, nil
}

// PageCount returns ceil(len(Slots) / PerPage).
func (p *Plan) PageCount() int {
	perPage := p.Grid.PerPage()
	if perPage == 0 {
		return 0
	}
	return (len(p.Slots) + perPage - 1) / perPage
}

// EndsPage 判断第 i 个槽位之后是否需要结束当前页：页内最后一格或整个序列的最后一个。
func (p *Plan) EndsPage(i int) bool {
	perPage := p.Grid.PerPage()
	return i%perPage == perPage-1 || i == len(p.Slots)-1
}

package layout

import "image"

// 该文件定义页面规格、排版计划与文档模型，供排版、渲染与调试 JSON 共用。
// 所有长度单位均为毫米，坐标原点位于页面左下角，y 轴向上。

// PageSpec 描述纸张尺寸、页边距与符号间距（mm）。
type PageSpec struct {
	Name    string  `json:"name,omitempty"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	Margin  float64 `json:"margin"`
	Spacing float64 `json:"spacing"`
}

// Grid 是单页的槽位网格。CellWidth 为符号占位宽度，CellHeight 额外包含上下标注区。
type Grid struct {
	Cols       int     `json:"cols"`
	Rows       int     `json:"rows"`
	CellWidth  float64 `json:"cellWidth"`
	CellHeight float64 `json:"cellHeight"`
}

// PerPage returns the number of slots on one page.
func (g Grid) PerPage() int { return g.Cols * g.Rows }

// Slot 把第 Index 个符号分配到 (Page, Row, Col)，X/Y 为单元格左下角坐标。
type Slot struct {
	Index int     `json:"index"`
	Page  int     `json:"page"`
	Row   int     `json:"row"`
	Col   int     `json:"col"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

// Plan 是一次排版的完整结果。
type Plan struct {
	Page       PageSpec `json:"page"`
	Grid       Grid     `json:"grid"`
	Footprint  float64  `json:"footprint"`
	Caption    float64  `json:"captionMargin"`
	Degenerate bool     `json:"degenerate"` // 页面放不下任何符号时被强制为每页一个
	Slots      []Slot   `json:"slots"`
}

// Document 是渲染前的最终文档模型。
type Document struct {
	Pages []Page       `json:"pages"`
	Meta  DocumentMeta `json:"meta"`
}

// Page 记录页面尺寸与可以直接绘制的元素。
type Page struct {
	Width  float64    `json:"width"`
	Height float64    `json:"height"`
	Images []ImageBox `json:"images"`
	Texts  []TextBox  `json:"texts"`
	Rects  []Rect     `json:"rects,omitempty"`
}

// ImageBox 放置一张位图，(X, Y) 为左下角。
type ImageBox struct {
	Image       image.Image `json:"-"`
	Slot        int         `json:"slot"`
	X           float64     `json:"x"`
	Y           float64     `json:"y"`
	Width       float64     `json:"width"`
	Height      float64     `json:"height"`
	Placeholder bool        `json:"placeholder,omitempty"`
}

// TextBox 是单行文本，Y 为基线位置，Align 作用于 [X, X+Width]。
type TextBox struct {
	Content  string  `json:"content"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Font     string  `json:"font"`
	FontSize float64 `json:"fontSize"` // pt
	Color    Color   `json:"color"`
	Align    string  `json:"align,omitempty"` // left/center/right，默认 left
}

// Rect 表示一个只描边的矩形，用作裁切辅助线。
type Rect struct {
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
	StrokeColor Color   `json:"strokeColor"`
	StrokeWidth float64 `json:"strokeWidth"` // mm
}

// Color 采用 0-255 的 RGB 数值。
type Color struct {
	R int `json:"r"`
	G int `json:"g"`
	B int `json:"b"`
}

// DocumentMeta 保存 PDF 元信息。
type DocumentMeta struct {
	Title    string   `json:"title"`
	Author   string   `json:"author"`
	Subject  string   `json:"subject"`
	Creator  string   `json:"creator"`
	Keywords []string `json:"keywords"`
}

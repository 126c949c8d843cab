package labels

import (
	"errors"
	"image"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/ByLCY/dmsheet/binding"
	"github.com/ByLCY/dmsheet/layout"
	"github.com/ByLCY/dmsheet/symbol"
)

const (
	batchSeparator   = "\r\n"
	guideStrokeWidth = 0.1 // mm
	// 仅有占位图时使用的最小占位边长（像素）
	fallbackFootprintPx = 100
)

// Result 是排版后、渲染前的完整中间结果。
type Result struct {
	Document *layout.Document
	Plan     *layout.Plan
	Resolved Resolved
	Stats    Stats
}

// group 是映射到同一个符号的一段连续载荷。
type group struct {
	text  string
	first string
	last  string
	count int
}

type renderedSymbol struct {
	img         image.Image
	placeholder bool
}

// Layout 完成编码、栅格化与分页，返回可直接交给渲染器的文档模型。
func (g *Generator) Layout(req Request) (*Result, error) {
	if err := g.validatePayloads(req.Payloads); err != nil {
		return nil, err
	}
	res, err := g.cfg.Resolve(req.Size, req.DPI)
	if err != nil {
		return nil, err
	}

	groups := g.groups(req.Payloads)
	symbols := make([]renderedSymbol, len(groups))
	stats := Stats{Payloads: len(req.Payloads), Symbols: len(groups)}
	for i, gr := range groups {
		sym, err := g.renderSymbol(gr.text, res, i, g.cfg.FailFast)
		if err != nil {
			return nil, err
		}
		if sym.placeholder {
			stats.Placeholders++
		}
		symbols[i] = sym
	}
	if stats.AllPlaceholders() {
		g.logger.Warn("every payload fell back to a placeholder", zap.Int("symbols", stats.Symbols))
	}

	footprint := footprintMM(res, symbols)
	caption := g.cfg.Caption.Margin
	plan, err := layout.PlanSlots(g.cfg.Page, footprint, caption, len(groups))
	if err != nil {
		return nil, inputErr("page", err)
	}
	if plan.Degenerate {
		g.logger.Warn("page too small for the symbol, forcing one symbol per page",
			zap.Float64("footprint", footprint),
			zap.Float64("pageWidth", g.cfg.Page.Width),
			zap.Float64("pageHeight", g.cfg.Page.Height),
		)
	}

	doc := &layout.Document{Meta: g.meta(req.Subject)}
	var page *layout.Page
	for i, slot := range plan.Slots {
		if page == nil {
			page = &layout.Page{Width: g.cfg.Page.Width, Height: g.cfg.Page.Height}
		}
		g.place(page, plan, slot, symbols[i], groups[i], res)
		if plan.EndsPage(i) {
			doc.Pages = append(doc.Pages, *page)
			g.logger.Debug("page finished", zap.Int("page", slot.Page), zap.Int("symbols", len(page.Images)))
			page = nil
		}
	}

	stats.Pages = len(doc.Pages)
	stats.PerPage = plan.Grid.PerPage()
	stats.Footprint = footprint
	return &Result{Document: doc, Plan: plan, Resolved: res, Stats: stats}, nil
}

func (g *Generator) groups(payloads []string) []group {
	size := 1
	if g.cfg.Mode == ModeBatch {
		size = g.cfg.GroupSize
		if size <= 0 {
			size = len(payloads)
		}
	}
	out := make([]group, 0, (len(payloads)+size-1)/size)
	for start := 0; start < len(payloads); start += size {
		chunk := payloads[start:min(start+size, len(payloads))]
		out = append(out, group{
			text:  strings.Join(chunk, batchSeparator),
			first: chunk[0],
			last:  chunk[len(chunk)-1],
			count: len(chunk),
		})
	}
	return out
}

// renderSymbol 编码并栅格化一段文本。EncodingError 在此处被替换为占位图，
// 其余错误视为内部错误向上返回；failFast 时编码失败作为 InputError 返回。
func (g *Generator) renderSymbol(text string, res Resolved, index int, failFast bool) (renderedSymbol, error) {
	var grid *symbol.ModuleGrid
	var err error
	if text == "" {
		err = &symbol.EncodingError{Text: text, Err: symbol.ErrEmptyText}
	} else {
		grid, err = g.encoder.Encode(text)
	}
	if err != nil {
		var encErr *symbol.EncodingError
		if !errors.As(err, &encErr) {
			return renderedSymbol{}, internalErr("encode symbol", err)
		}
		if failFast {
			return renderedSymbol{}, inputErr("payload", err)
		}
		g.logger.Warn("payload cannot be encoded, using placeholder",
			zap.Int("index", index),
			zap.Int("length", len(text)),
			zap.Error(err),
		)
		return renderedSymbol{img: symbol.Placeholder(text, res.Class.PlaceholderScale), placeholder: true}, nil
	}

	img, err := symbol.Rasterize(grid, res.ModuleSize(grid), res.Border)
	if err != nil {
		return renderedSymbol{}, internalErr("rasterize symbol", err)
	}
	return renderedSymbol{img: img}, nil
}

// footprintMM 返回符号占位边长：目标尺寸类直接使用目标宽度，
// 固定模块像素的尺寸类取批次中最宽符号的打印宽度。
func footprintMM(res Resolved, symbols []renderedSymbol) float64 {
	if res.Class.TargetMM > 0 {
		return res.Class.TargetMM
	}
	widest := 0.0
	for _, s := range symbols {
		if s.placeholder {
			continue
		}
		b := s.img.Bounds()
		widest = math.Max(widest, layout.PixelsToMM(max(b.Dx(), b.Dy()), res.DPI))
	}
	if widest == 0 {
		widest = layout.PixelsToMM(fallbackFootprintPx, res.DPI)
	}
	return widest
}

// place 把一个符号及其标注放入槽位。图像按打印分辨率取自然尺寸，
// 超出占位时等比缩小，水平居中。
func (g *Generator) place(page *layout.Page, plan *layout.Plan, slot layout.Slot, sym renderedSymbol, gr group, res Resolved) {
	fp := plan.Footprint
	caption := plan.Caption
	b := sym.img.Bounds()
	w := layout.PixelsToMM(b.Dx(), res.DPI)
	h := layout.PixelsToMM(b.Dy(), res.DPI)
	if scale := math.Min(fp/w, fp/h); scale < 1 {
		w, h = w*scale, h*scale
	}
	page.Images = append(page.Images, layout.ImageBox{
		Image:       sym.img,
		Slot:        slot.Index,
		X:           slot.X + (fp-w)/2,
		Y:           slot.Y + caption + (fp-h)/2,
		Width:       w,
		Height:      h,
		Placeholder: sym.placeholder,
	})

	if g.cfg.Guides {
		page.Rects = append(page.Rects, layout.Rect{
			X:           slot.X,
			Y:           slot.Y,
			Width:       plan.Grid.CellWidth,
			Height:      plan.Grid.CellHeight,
			StrokeColor: g.cfg.GuideColor,
			StrokeWidth: guideStrokeWidth,
		})
	}

	cc := g.cfg.Caption
	if caption <= 0 || cc.FontSize <= 0 {
		return
	}
	data := binding.Values{
		"first": gr.first,
		"last":  gr.last,
		"index": slot.Index + 1,
		"page":  slot.Page + 1,
		"count": gr.count,
	}
	baseline := captionBaseline(caption, cc.FontSize)
	for _, c := range []struct {
		tpl string
		y   float64
	}{
		{cc.Top, slot.Y + caption + fp + baseline},
		{cc.Bottom, slot.Y + baseline},
	} {
		text := binding.Interpolate(c.tpl, data)
		if text == "" {
			continue
		}
		page.Texts = append(page.Texts, layout.TextBox{
			Content:  text,
			X:        slot.X,
			Y:        c.y,
			Width:    fp,
			Font:     cc.Font,
			FontSize: cc.FontSize,
			Color:    cc.Color,
			Align:    "center",
		})
	}
}

// captionBaseline 返回标注基线相对标注区底边的偏移：字高在标注区内垂直居中，
// 再下移约四分之一字号留给下行部。
func captionBaseline(band, fontSizePt float64) float64 {
	fs := fontSizePt * layout.PtToMm
	return math.Max((band-fs)/2+fs*0.25, 0)
}

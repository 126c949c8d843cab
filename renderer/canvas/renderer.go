package canvasrenderer

import (
	"bytes"
	"fmt"
	"image/color"
	"strings"
	"sync"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/pdf"

	"github.com/ByLCY/dmsheet/fonts"
	"github.com/ByLCY/dmsheet/layout"
	"github.com/ByLCY/dmsheet/renderer"
)

const (
	defaultStrokeWidth = 0.2
	// 标注自动缩小时的最小字号（pt）
	minFontSize = 3.0
)

// Renderer draws documents via github.com/tdewolff/canvas.
type Renderer struct {
	fontBlobs map[string][]byte // 额外注入的字体，按名称索引

	fontMu       sync.Mutex
	fontFamilies map[string]*canvas.FontFamily
}

var _ renderer.Renderer = (*Renderer)(nil)

// Options configures the canvas renderer.
type Options struct {
	Fonts map[string][]byte // 额外字体，覆盖同名内置字体
}

// NewRenderer creates a renderer using the built-in fonts.
func NewRenderer() *Renderer { return NewRendererWithOptions(Options{}) }

// NewRendererWithOptions creates a renderer with injected fonts.
func NewRendererWithOptions(opts Options) *Renderer {
	r := &Renderer{
		fontBlobs:    map[string][]byte{},
		fontFamilies: map[string]*canvas.FontFamily{},
	}
	for name, data := range opts.Fonts {
		if name == "" || len(data) == 0 {
			continue
		}
		r.fontBlobs[strings.ToLower(name)] = data
	}
	return r
}

// Render renders the document into a PDF byte slice.
// 坐标沿用 canvas 默认的 CartesianI：原点在左下角，单位 mm。
func (r *Renderer) Render(doc *layout.Document) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("渲染文档为空")
	}
	if len(doc.Pages) == 0 {
		return nil, fmt.Errorf("缺少可渲染的页面")
	}

	var buf bytes.Buffer
	writer := pdf.New(&buf, doc.Pages[0].Width, doc.Pages[0].Height, nil)
	r.applyMeta(writer, doc.Meta)
	for i, page := range doc.Pages {
		if i > 0 {
			writer.NewPage(page.Width, page.Height)
		}
		c := canvas.New(page.Width, page.Height)
		ctx := canvas.NewContext(c)
		if err := r.drawPage(ctx, page); err != nil {
			return nil, fmt.Errorf("绘制第 %d 页失败: %w", i+1, err)
		}
		c.RenderTo(writer)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("写入 PDF 失败: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) applyMeta(writer *pdf.PDF, meta layout.DocumentMeta) {
	keywords := strings.Join(meta.Keywords, ", ")
	writer.SetInfo(meta.Title, meta.Subject, keywords, meta.Author, meta.Creator)
}

func (r *Renderer) drawPage(ctx *canvas.Context, page layout.Page) error {
	// 辅助线作为背景先绘制
	r.drawRects(ctx, page.Rects)
	if err := r.drawImages(ctx, page.Images); err != nil {
		return err
	}
	for _, tb := range page.Texts {
		if err := r.drawTextBox(ctx, tb); err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) drawImages(ctx *canvas.Context, images []layout.ImageBox) error {
	for _, img := range images {
		if img.Image == nil {
			return fmt.Errorf("槽位 %d 缺少图像", img.Slot)
		}
		px := img.Image.Bounds().Dx()
		if px <= 0 || img.Width <= 0 {
			return fmt.Errorf("槽位 %d 图像尺寸无效", img.Slot)
		}
		// DPMM 决定图像在页面上的物理宽度：px / dpmm = Width(mm)
		ctx.DrawImage(img.X, img.Y, img.Image, canvas.DPMM(float64(px)/img.Width))
	}
	return nil
}

// drawTextBox 绘制单行文本；文本宽于 Width 时逐步缩小字号，直到放下或达到最小字号。
func (r *Renderer) drawTextBox(ctx *canvas.Context, tb layout.TextBox) error {
	if tb.Content == "" {
		return nil
	}
	size := tb.FontSize
	face, err := r.fontFace(tb.Font, size, tb.Color)
	if err != nil {
		return err
	}
	if tb.Width > 0 {
		for face.TextWidth(tb.Content) > tb.Width && size > minFontSize {
			size = max(size*0.9, minFontSize)
			if face, err = r.fontFace(tb.Font, size, tb.Color); err != nil {
				return err
			}
		}
	}

	var textAlign canvas.TextAlign
	var anchorX float64
	switch strings.ToLower(tb.Align) {
	case "center":
		textAlign = canvas.Center
		anchorX = tb.X + tb.Width/2
	case "right", "end":
		textAlign = canvas.Right
		anchorX = tb.X + tb.Width
	default:
		textAlign = canvas.Left
		anchorX = tb.X
	}
	ctx.DrawText(anchorX, tb.Y, canvas.NewTextLine(face, tb.Content, textAlign))
	return nil
}

// drawRects 绘制只描边的矩形
func (r *Renderer) drawRects(ctx *canvas.Context, rects []layout.Rect) {
	for _, rc := range rects {
		w := rc.StrokeWidth
		if w <= 0 {
			w = defaultStrokeWidth
		}
		ctx.SetFillColor(color.RGBA{0, 0, 0, 0})
		ctx.SetStrokeColor(colorFromLayout(rc.StrokeColor))
		ctx.SetStrokeWidth(w)
		ctx.DrawPath(rc.X, rc.Y, canvas.Rectangle(rc.Width, rc.Height))
	}
}

func (r *Renderer) fontFace(name string, sizePt float64, col layout.Color) (*canvas.FontFace, error) {
	family, err := r.ensureFontFamily(name)
	if err != nil {
		return nil, err
	}
	return family.Face(sizePt, colorFromLayout(col), canvas.FontRegular, canvas.FontNormal), nil
}

func (r *Renderer) ensureFontFamily(name string) (*canvas.FontFamily, error) {
	if name == "" {
		name = fonts.Default
	}
	key := strings.ToLower(name)
	r.fontMu.Lock()
	defer r.fontMu.Unlock()

	if family, ok := r.fontFamilies[key]; ok {
		return family, nil
	}
	data, ok := r.fontBlobs[key]
	if !ok {
		var err error
		if data, err = fonts.Load(name); err != nil {
			return nil, err
		}
	}
	family := canvas.NewFontFamily(name)
	if err := family.LoadFont(data, 0, canvas.FontRegular); err != nil {
		return nil, fmt.Errorf("加载字体 %s 失败: %w", name, err)
	}
	r.fontFamilies[key] = family
	return family, nil
}

func colorFromLayout(c layout.Color) color.Color {
	return canvas.RGBA(float64(c.R)/255.0, float64(c.G)/255.0, float64(c.B)/255.0, 1.0)
}

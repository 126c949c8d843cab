// Package labels 是标签排版引擎的入口：把有序的序列号列表排成 Data Matrix 预览图与多页 PDF。
package labels

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ByLCY/dmsheet/layout"
	"github.com/ByLCY/dmsheet/renderer"
	canvasrenderer "github.com/ByLCY/dmsheet/renderer/canvas"
	"github.com/ByLCY/dmsheet/symbol"
)

// Generator 持有不可变配置与外部依赖；不含可变共享状态，可被多个请求并发使用。
type Generator struct {
	cfg      Config
	encoder  symbol.Encoder
	renderer renderer.Renderer
	logger   *zap.Logger
}

// Option customises a Generator.
type Option func(*Generator)

// WithEncoder replaces the Data Matrix encoder.
func WithEncoder(e symbol.Encoder) Option {
	return func(g *Generator) { g.encoder = e }
}

// WithRenderer replaces the PDF renderer.
func WithRenderer(r renderer.Renderer) Option {
	return func(g *Generator) { g.renderer = r }
}

// WithLogger sets the logger; nil keeps the no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}

// New validates cfg and builds a Generator. An invalid configuration is an InputError.
func New(cfg Config, opts ...Option) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, inputErr("config", err)
	}
	g := &Generator{
		cfg:     cfg.Clone(),
		encoder: symbol.DataMatrix{},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.renderer == nil {
		g.renderer = canvasrenderer.NewRenderer()
	}
	return g, nil
}

// Config returns a copy of the generator configuration.
func (g *Generator) Config() Config { return g.cfg.Clone() }

// Request 是一次上传对应的输入：有序载荷、尺寸名与可选分辨率。
type Request struct {
	Payloads []string
	Size     string
	DPI      int    // 0 表示使用尺寸类或全局默认值
	Subject  string // 写入 PDF 元信息，通常为批次号
}

// Stats 汇总一次文档生成的结果。
type Stats struct {
	Payloads     int     `json:"payloads"`
	Symbols      int     `json:"symbols"`
	Placeholders int     `json:"placeholders"`
	Pages        int     `json:"pages"`
	PerPage      int     `json:"perPage"`
	Footprint    float64 `json:"footprint"`
}

// AllPlaceholders reports whether every symbol fell back to a placeholder.
func (s Stats) AllPlaceholders() bool { return s.Symbols > 0 && s.Placeholders == s.Symbols }

// Output bundles both artifacts of one request.
type Output struct {
	Preview []byte // PNG
	PDF     []byte
	Stats   Stats
}

// GeneratePreview 返回预览 PNG。
func (g *Generator) GeneratePreview(req Request) ([]byte, error) {
	res, err := g.cfg.Resolve(req.Size, req.DPI)
	if err != nil {
		return nil, err
	}
	return g.previewPNG(g.previewText(req.Payloads), res)
}

// GenerateDocument 返回完成的 PDF 字节。
func (g *Generator) GenerateDocument(req Request) ([]byte, error) {
	result, err := g.Layout(req)
	if err != nil {
		return nil, err
	}
	return g.Render(result)
}

// Generate 依次生成预览与文档，两者使用同一次尺寸解析。
func (g *Generator) Generate(req Request) (*Output, error) {
	result, err := g.Layout(req)
	if err != nil {
		return nil, err
	}
	preview, err := g.previewPNG(g.previewText(req.Payloads), result.Resolved)
	if err != nil {
		return nil, err
	}
	pdf, err := g.Render(result)
	if err != nil {
		return nil, err
	}
	return &Output{Preview: preview, PDF: pdf, Stats: result.Stats}, nil
}

// Render 将 Layout 的结果交给渲染器输出 PDF。
func (g *Generator) Render(result *Result) ([]byte, error) {
	data, err := g.renderer.Render(result.Document)
	if err != nil {
		return nil, internalErr("render document", err)
	}
	g.logger.Info("document generated",
		zap.Int("payloads", result.Stats.Payloads),
		zap.Int("symbols", result.Stats.Symbols),
		zap.Int("placeholders", result.Stats.Placeholders),
		zap.Int("pages", result.Stats.Pages),
		zap.Int("bytes", len(data)),
	)
	return data, nil
}

// SplitLines 将上传文本拆成载荷：逐行去除首尾空白并丢弃空行，保留顺序与重复项。
func SplitLines(text string) []string {
	var out []string
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if s := strings.TrimSpace(line); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (g *Generator) validatePayloads(payloads []string) error {
	if len(payloads) == 0 {
		return inputErr("payloads", ErrNoPayloads)
	}
	if g.cfg.MaxPayloads > 0 && len(payloads) > g.cfg.MaxPayloads {
		return inputErr("payloads", fmt.Errorf("%w: %d > %d", ErrTooMany, len(payloads), g.cfg.MaxPayloads))
	}
	return nil
}

func (g *Generator) meta(subject string) layout.DocumentMeta {
	m := g.cfg.Meta
	m.Keywords = append([]string(nil), m.Keywords...)
	if subject != "" {
		m.Subject = subject
	}
	return m
}

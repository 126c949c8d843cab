package labels

import (
	"image"
	"strings"

	"github.com/ByLCY/dmsheet/symbol"
)

// Preview 编码一段文本并栅格化；编码失败（包括空文本）时返回占位图。
// 仅在尺寸类或分辨率非法时返回 InputError。
func (g *Generator) Preview(text, size string, dpi int) (image.Image, error) {
	res, err := g.cfg.Resolve(size, dpi)
	if err != nil {
		return nil, err
	}
	sym, err := g.previewSymbol(text, res)
	if err != nil {
		return nil, err
	}
	return sym.img, nil
}

func (g *Generator) previewSymbol(text string, res Resolved) (renderedSymbol, error) {
	// 预览始终以占位图代替编码失败，不受 fail-fast 影响
	return g.renderSymbol(text, res, 0, false)
}

func (g *Generator) previewPNG(text string, res Resolved) ([]byte, error) {
	sym, err := g.previewSymbol(text, res)
	if err != nil {
		return nil, err
	}
	data, err := symbol.EncodePNG(sym.img)
	if err != nil {
		return nil, internalErr("encode preview", err)
	}
	return data, nil
}

// previewText 选择预览内容：single 模式取第一条载荷，batch 模式取整个批次。
func (g *Generator) previewText(payloads []string) string {
	if len(payloads) == 0 {
		return ""
	}
	if g.cfg.Mode == ModeBatch {
		return strings.Join(payloads, batchSeparator)
	}
	return payloads[0]
}

package symbol

import (
	"image"
	"image/color"
	"image/draw"
	"strings"
	"unicode/utf8"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	placeholderMinSide  = 100
	placeholderMaxSide  = 2000
	placeholderMaxLines = 10
	placeholderInset    = 10
	placeholderLeading  = 12
	emptyText           = "<empty>"
)

// PlaceholderSide returns clamp(len(text)*scale/2, 100, 2000), len counted in runes.
func PlaceholderSide(text string, scale int) int {
	side := utf8.RuneCountInString(text) * scale / 2
	return min(max(side, placeholderMinSide), placeholderMaxSide)
}

// Placeholder 生成编码失败时的替代图：带 1 像素黑框的白色正方形，
// 内部逐行写出原文的前 10 行。结果只取决于 text 与 scale。
func Placeholder(text string, scale int) *image.RGBA {
	side := PlaceholderSide(text, scale)
	img := image.NewRGBA(image.Rect(0, 0, side, side))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	strokeRect(img, img.Bounds(), color.Black)

	body := text
	if body == "" {
		body = emptyText
	}
	lines := strings.Split(body, "\n")
	if len(lines) > placeholderMaxLines {
		lines = lines[:placeholderMaxLines]
	}

	face := basicfont.Face7x13
	d := &font.Drawer{Dst: img, Src: image.Black, Face: face}
	ascent := face.Metrics().Ascent.Ceil()
	y := placeholderInset
	for _, line := range lines {
		d.Dot = fixed.P(placeholderInset, y+ascent)
		d.DrawString(strings.TrimRight(line, "\r"))
		y += placeholderLeading
	}
	return img
}

func strokeRect(img *image.RGBA, r image.Rectangle, c color.Color) {
	for x := r.Min.X; x < r.Max.X; x++ {
		img.Set(x, r.Min.Y, c)
		img.Set(x, r.Max.Y-1, c)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		img.Set(r.Min.X, y, c)
		img.Set(r.Max.X-1, y, c)
	}
}

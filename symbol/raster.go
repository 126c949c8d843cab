package symbol

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
)

// MaxCanvasSide 限制单个位图的边长（像素），防止异常参数导致超大内存分配。
const MaxCanvasSide = 1 << 14

// ErrCanvasTooLarge is returned when the requested bitmap exceeds MaxCanvasSide.
var ErrCanvasTooLarge = errors.New("symbol: canvas too large")

const mmPerInch = 25.4

// CanvasSize returns the bitmap size for a grid at moduleSize pixels per module
// with border light modules on every side.
func CanvasSize(rows, cols, moduleSize, border int) (width, height int) {
	return (cols + 2*border) * moduleSize, (rows + 2*border) * moduleSize
}

// Rasterize 将模块矩阵绘制为白底黑模块的 RGBA 位图。
// 宽 = (cols+2*border)*moduleSize，高同理。
func Rasterize(grid *ModuleGrid, moduleSize, border int) (*image.RGBA, error) {
	if !grid.valid() {
		return nil, ErrInvalidGrid
	}
	if moduleSize < 1 {
		return nil, fmt.Errorf("symbol: module size %d < 1", moduleSize)
	}
	if border < 0 {
		return nil, fmt.Errorf("symbol: border %d < 0", border)
	}
	w, h := CanvasSize(grid.rows, grid.cols, moduleSize, border)
	if w > MaxCanvasSide || h > MaxCanvasSide {
		return nil, fmt.Errorf("%w: %dx%d", ErrCanvasTooLarge, w, h)
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	black := image.NewUniform(color.Black)
	for r := 0; r < grid.rows; r++ {
		for c := 0; c < grid.cols; c++ {
			if !grid.cells[r*grid.cols+c] {
				continue
			}
			x0 := (c + border) * moduleSize
			y0 := (r + border) * moduleSize
			draw.Draw(img, image.Rect(x0, y0, x0+moduleSize, y0+moduleSize), black, image.Point{}, draw.Src)
		}
	}
	return img, nil
}

// ModuleSizeForTarget 计算在给定 dpi 下使打印宽度接近 targetMM 的每模块像素数。
// 像素目标按四舍六入五成双取整，最后一步整除向下取整，保证成品不超过目标尺寸；结果至少为 1。
func ModuleSizeForTarget(gridCols int, targetMM float64, dpi, border int) int {
	total := gridCols + 2*border
	if total <= 0 || dpi <= 0 || targetMM <= 0 {
		return 1
	}
	targetPx := int(math.RoundToEven(targetMM / mmPerInch * float64(dpi)))
	return max(1, targetPx/total)
}

// PrintedWidthMM returns the printed width of a symbol of gridCols modules.
func PrintedWidthMM(gridCols, moduleSize, dpi, border int) float64 {
	if dpi <= 0 {
		return 0
	}
	px := (gridCols + 2*border) * moduleSize
	return float64(px) / float64(dpi) * mmPerInch
}

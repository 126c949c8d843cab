package symbol

import (
	"errors"
	"fmt"
	"image/color"

	"github.com/boombuler/barcode/datamatrix"
)

// ErrEmptyText 表示待编码文本为空；空文本按编码失败处理，走占位图分支。
var ErrEmptyText = errors.New("symbol: empty text")

// Encoder converts text into a module grid.
type Encoder interface {
	Encode(text string) (*ModuleGrid, error)
}

// EncoderFunc adapts a plain function to Encoder.
type EncoderFunc func(text string) (*ModuleGrid, error)

func (f EncoderFunc) Encode(text string) (*ModuleGrid, error) { return f(text) }

// EncodingError 表示某一条文本无法被编码（例如超出最大符号容量）。
// 调用方通过 errors.As 识别它并替换为占位图，其他错误不在此列。
type EncodingError struct {
	Text string
	Err  error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("symbol: cannot encode %d bytes: %v", len(e.Text), e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

// DataMatrix encodes ECC200 symbols via github.com/boombuler/barcode.
type DataMatrix struct{}

var _ Encoder = DataMatrix{}

// Encode returns the module grid of the smallest square symbol holding text.
func (DataMatrix) Encode(text string) (*ModuleGrid, error) {
	if text == "" {
		return nil, &EncodingError{Text: text, Err: ErrEmptyText}
	}
	code, err := datamatrix.Encode(text)
	if err != nil {
		return nil, &EncodingError{Text: text, Err: err}
	}
	// boombuler 的条码图像以 1 像素表示 1 个模块
	b := code.Bounds()
	rows, cols := b.Dy(), b.Dx()
	cells := make([]bool, rows*cols)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			cells[y*cols+x] = isDark(code.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	grid, err := NewModuleGrid(rows, cols, cells)
	if err != nil {
		return nil, &EncodingError{Text: text, Err: err}
	}
	return grid, nil
}

func isDark(c color.Color) bool {
	gray := color.GrayModel.Convert(c).(color.Gray)
	return gray.Y < 0x80
}

package layout

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPage 表示页面尺寸、边距或间距不合法。
var ErrInvalidPage = errors.New("layout: invalid page spec")

var pagePresets = map[string][2]float64{
	"A3":     {297, 420},
	"A4":     {210, 297},
	"A5":     {148, 210},
	"A6":     {105, 148},
	"LETTER": {215.9, 279.4},
	"LEGAL":  {215.9, 355.6},
}

// A4 returns the default page: A4 portrait, 10mm margin, 5mm spacing.
func A4() PageSpec {
	return PageSpec{Name: "A4", Width: 210, Height: 297, Margin: 10, Spacing: 5}
}

// ResolvePageSize 返回预设纸张的宽高（mm），landscape 时交换宽高。
func ResolvePageSize(name string, landscape bool) (float64, float64, error) {
	base, ok := pagePresets[strings.ToUpper(name)]
	if !ok {
		return 0, 0, fmt.Errorf("%w: 暂不支持的纸张尺寸：%s", ErrInvalidPage, name)
	}
	w, h := base[0], base[1]
	if landscape {
		w, h = h, w
	}
	return w, h, nil
}

// Validate 检查尺寸为正，边距与间距非负且小于页面宽高的一半。
func (p PageSpec) Validate() error {
	if p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("%w: 页面尺寸 %gx%g", ErrInvalidPage, p.Width, p.Height)
	}
	half := min(p.Width, p.Height) / 2
	if p.Margin < 0 || p.Margin >= half {
		return fmt.Errorf("%w: 页边距 %gmm 超出范围 [0, %g)", ErrInvalidPage, p.Margin, half)
	}
	if p.Spacing < 0 || p.Spacing >= half {
		return fmt.Errorf("%w: 间距 %gmm 超出范围 [0, %g)", ErrInvalidPage, p.Spacing, half)
	}
	return nil
}

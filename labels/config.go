package labels

import (
	"fmt"
	"maps"
	"strings"

	"github.com/ByLCY/dmsheet/binding"
	"github.com/ByLCY/dmsheet/fonts"
	"github.com/ByLCY/dmsheet/layout"
	"github.com/ByLCY/dmsheet/symbol"
)

const (
	defaultPlaceholderScale = 50
	maxDPI                  = 2400
)

// Mode 决定载荷如何映射为符号。
type Mode int

const (
	// ModeSingle 每条载荷一个符号，上下标注均为该载荷本身。
	ModeSingle Mode = iota
	// ModeBatch 将载荷以 CRLF 拼接后编码进同一个符号；文档中按 GroupSize 分组，
	// 标注为组内首尾两条载荷。预览使用整个批次。
	ModeBatch
)

func (m Mode) String() string {
	if m == ModeBatch {
		return "batch"
	}
	return "single"
}

// ParseMode accepts "single" or "batch".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "single", "":
		return ModeSingle, nil
	case "batch":
		return ModeBatch, nil
	default:
		return ModeSingle, fmt.Errorf("unknown mode %q", s)
	}
}

// SizeClass 是一个命名尺寸预设：要么给出每模块像素数，要么给出目标打印宽度与分辨率。
type SizeClass struct {
	Name             string  `json:"name"`
	ModuleSize       int     `json:"moduleSize,omitempty"` // px per module
	TargetMM         float64 `json:"targetMM,omitempty"`
	DPI              int     `json:"dpi,omitempty"`
	PlaceholderScale int     `json:"placeholderScale,omitempty"`
}

// Validate 检查 ModuleSize 与 TargetMM 恰好给出一个，给出 TargetMM 时必须同时给出 DPI。
func (s SizeClass) Validate() error {
	explicit := s.ModuleSize != 0
	target := s.TargetMM != 0
	switch {
	case explicit == target:
		return fmt.Errorf("size %q: exactly one of module size and target size must be set", s.Name)
	case s.ModuleSize < 0:
		return fmt.Errorf("size %q: module size %d < 1", s.Name, s.ModuleSize)
	case s.TargetMM < 0:
		return fmt.Errorf("size %q: target %gmm must be positive", s.Name, s.TargetMM)
	case target && s.DPI <= 0:
		return fmt.Errorf("size %q: target size requires a resolution", s.Name)
	case s.DPI < 0 || s.DPI > maxDPI:
		return fmt.Errorf("size %q: dpi %d out of range", s.Name, s.DPI)
	case s.PlaceholderScale < 0:
		return fmt.Errorf("size %q: negative placeholder scale", s.Name)
	}
	return nil
}

// Caption 控制符号上下方的标注文本。Margin 为单侧标注区高度，为 0 时不绘制标注。
type Caption struct {
	Margin   float64      `json:"margin"`   // mm
	FontSize float64      `json:"fontSize"` // pt
	Font     string       `json:"font"`
	Top      string       `json:"top"`
	Bottom   string       `json:"bottom"`
	Color    layout.Color `json:"color"`
}

// Config 是生成器的不可变配置，在 New 时复制。
type Config struct {
	Sizes       map[string]SizeClass
	DefaultSize string
	Page        layout.PageSpec
	DPI         int // 显式模块尺寸换算为打印尺寸时使用的分辨率
	Border      int // 静区模块数
	Caption     Caption
	Mode        Mode
	GroupSize   int // ModeBatch 下每个符号包含的载荷数，0 表示全部
	Guides      bool
	GuideColor  layout.Color
	FailFast    bool
	MaxPayloads int // 0 表示不限制
	Meta        layout.DocumentMeta
}

// DefaultConfig 返回内置尺寸表：small/medium/large 为固定模块像素，label 为 34mm@300dpi。
func DefaultConfig() Config {
	return Config{
		Sizes: map[string]SizeClass{
			"small":  {Name: "small", ModuleSize: 6, PlaceholderScale: 25},
			"medium": {Name: "medium", ModuleSize: 8, PlaceholderScale: 50},
			"large":  {Name: "large", ModuleSize: 12, PlaceholderScale: 100},
			"label":  {Name: "label", TargetMM: 34, DPI: 300, PlaceholderScale: 50},
		},
		DefaultSize: "medium",
		Page:        layout.A4(),
		DPI:         300,
		Border:      2,
		Caption: Caption{
			Margin:   4,
			FontSize: 7,
			Font:     fonts.Default,
			Top:      "${first}",
			Bottom:   "${last}",
		},
		Mode:       ModeSingle,
		GuideColor: layout.Color{R: 200, G: 200, B: 200},
		Meta:       layout.DocumentMeta{Title: "Data Matrix labels", Creator: "dmsheet"},
	}
}

// Clone returns a deep copy so callers may derive per-request variants.
func (c Config) Clone() Config {
	out := c
	out.Sizes = maps.Clone(c.Sizes)
	out.Meta.Keywords = append([]string(nil), c.Meta.Keywords...)
	return out
}

// Validate checks the whole configuration.
func (c Config) Validate() error {
	if len(c.Sizes) == 0 {
		return fmt.Errorf("no size classes configured")
	}
	for key, s := range c.Sizes {
		if key != strings.ToLower(key) {
			return fmt.Errorf("size key %q must be lower case", key)
		}
		if err := s.Validate(); err != nil {
			return err
		}
	}
	if _, ok := c.Sizes[strings.ToLower(c.DefaultSize)]; !ok {
		return fmt.Errorf("default size %q is not configured", c.DefaultSize)
	}
	if err := c.Page.Validate(); err != nil {
		return err
	}
	if c.DPI <= 0 || c.DPI > maxDPI {
		return fmt.Errorf("dpi %d out of range", c.DPI)
	}
	if c.Border < 0 {
		return fmt.Errorf("border %d < 0", c.Border)
	}
	if c.Caption.Margin < 0 || c.Caption.FontSize < 0 {
		return fmt.Errorf("caption margin and font size must not be negative")
	}
	if c.GroupSize < 0 || c.MaxPayloads < 0 {
		return fmt.Errorf("group size and payload limit must not be negative")
	}
	for _, tpl := range []string{c.Caption.Top, c.Caption.Bottom} {
		if err := binding.Validate(tpl, captionFields...); err != nil {
			return err
		}
	}
	if c.Caption.Font != "" {
		if _, err := fonts.Load(c.Caption.Font); err != nil {
			return err
		}
	}
	return nil
}

var captionFields = []string{"first", "last", "index", "page", "count"}

// Resolved 是尺寸类与请求分辨率合并后的结果，预览与文档共用同一份。
type Resolved struct {
	Class  SizeClass
	DPI    int
	Border int
}

// Resolve 将调用方的尺寸名与可选分辨率解析为 Resolved。size 为空时使用默认尺寸。
func (c Config) Resolve(size string, dpi int) (Resolved, error) {
	key := strings.ToLower(strings.TrimSpace(size))
	if key == "" {
		key = strings.ToLower(c.DefaultSize)
	}
	class, ok := c.Sizes[key]
	if !ok {
		return Resolved{}, inputErr("size", fmt.Errorf("%w: %q", ErrUnknownSize, size))
	}
	if dpi < 0 || dpi > maxDPI {
		return Resolved{}, inputErr("dpi", fmt.Errorf("%d out of range (0, %d]", dpi, maxDPI))
	}
	if class.PlaceholderScale == 0 {
		class.PlaceholderScale = defaultPlaceholderScale
	}
	res := Resolved{Class: class, DPI: c.DPI, Border: c.Border}
	switch {
	case dpi > 0:
		res.DPI = dpi
	case class.DPI > 0:
		res.DPI = class.DPI
	}
	return res, nil
}

// ModuleSize 返回给定模块矩阵应使用的每模块像素数。
func (r Resolved) ModuleSize(grid *symbol.ModuleGrid) int {
	if r.Class.ModuleSize > 0 {
		return r.Class.ModuleSize
	}
	return symbol.ModuleSizeForTarget(grid.Cols(), r.Class.TargetMM, r.DPI, r.Border)
}

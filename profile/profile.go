// Package profile 将 dsl 描述的标签配置文件解释为 labels.Config。
// 未出现的指令保留基础配置中的取值。
package profile

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ByLCY/dmsheet/dsl"
	"github.com/ByLCY/dmsheet/labels"
	"github.com/ByLCY/dmsheet/layout"
)

// LoadFile 读取并解释配置文件，以 labels.DefaultConfig 为基础。
func LoadFile(path string) (labels.Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return labels.Config{}, fmt.Errorf("无法打开配置文件 %s: %w", path, err)
	}
	defer file.Close()
	return Load(file)
}

// Load 解析 r 中的配置并应用到默认配置上。
func Load(r io.Reader) (labels.Config, error) {
	p, err := dsl.Parse(r)
	if err != nil {
		return labels.Config{}, fmt.Errorf("解析配置失败: %w", err)
	}
	return Apply(labels.DefaultConfig(), p)
}

// Apply 依次执行 p 中的指令，返回新的配置；base 不会被修改。
func Apply(base labels.Config, p *dsl.Profile) (labels.Config, error) {
	cfg := base.Clone()
	if p == nil || p.Body == nil {
		return cfg, nil
	}
	for _, stmt := range p.Body.Statements {
		if stmt.Command == nil {
			return cfg, fmt.Errorf("配置顶层只允许指令")
		}
		cmd := stmt.Command
		if err := applyCommand(&cfg, cmd); err != nil {
			return cfg, fmt.Errorf("%s: %s: %w", cmd.Pos, cmd.Name, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("配置无效: %w", err)
	}
	return cfg, nil
}

func applyCommand(cfg *labels.Config, cmd *dsl.Command) error {
	args := values(cmd.Args)
	switch cmd.Name {
	case "meta":
		return applyMeta(&cfg.Meta, cmd.Block)
	case "page":
		return applyPage(&cfg.Page, args)
	case "symbol":
		return eachOption(args, map[string]func(string) error{
			"border": intSetter(&cfg.Border),
			"dpi":    intSetter(&cfg.DPI),
		})
	case "caption":
		return applyCaption(&cfg.Caption, args)
	case "size":
		return applySize(cfg, args)
	case "default":
		if len(args) != 1 {
			return fmt.Errorf("需要一个尺寸名")
		}
		cfg.DefaultSize = strings.ToLower(args[0])
		return nil
	case "mode":
		if len(args) == 0 {
			return fmt.Errorf("缺少模式")
		}
		mode, err := labels.ParseMode(args[0])
		if err != nil {
			return err
		}
		cfg.Mode = mode
		return eachOption(args[1:], map[string]func(string) error{
			"group": intSetter(&cfg.GroupSize),
		})
	case "guides":
		if len(args) == 0 {
			return fmt.Errorf("需要 on 或 off")
		}
		on, err := parseSwitch(args[0])
		if err != nil {
			return err
		}
		cfg.Guides = on
		return eachOption(args[1:], map[string]func(string) error{
			"color": colorSetter(&cfg.GuideColor),
		})
	case "fail-fast":
		if len(args) != 1 {
			return fmt.Errorf("需要 on 或 off")
		}
		on, err := parseSwitch(args[0])
		cfg.FailFast = on
		return err
	case "limit":
		if len(args) != 1 {
			return fmt.Errorf("需要一个数量")
		}
		return intSetter(&cfg.MaxPayloads)(args[0])
	default:
		return fmt.Errorf("未知指令")
	}
}

func applyMeta(meta *layout.DocumentMeta, block *dsl.Block) error {
	if block == nil {
		return fmt.Errorf("meta 需要代码块")
	}
	for _, stmt := range block.Statements {
		a := stmt.Assignment
		if a == nil {
			return fmt.Errorf("meta 只允许 key: value")
		}
		switch a.Key {
		case "title":
			meta.Title = a.Value.Text()
		case "author":
			meta.Author = a.Value.Text()
		case "subject":
			meta.Subject = a.Value.Text()
		case "creator":
			meta.Creator = a.Value.Text()
		case "keywords":
			meta.Keywords = a.Value.Strings()
		default:
			return fmt.Errorf("未知 meta 字段 %q", a.Key)
		}
	}
	return nil
}

// applyPage: page <preset> [portrait|landscape] [margin L] [spacing L]
// 或 page custom width L height L ...
func applyPage(page *layout.PageSpec, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("缺少纸张尺寸")
	}
	name := args[0]
	landscape := false
	var width, height float64
	rest := args[1:]
	opts := map[string]func(string) error{
		"margin":  lengthSetter(&page.Margin),
		"spacing": lengthSetter(&page.Spacing),
		"width":   lengthSetter(&width),
		"height":  lengthSetter(&height),
	}
	var filtered []string
	for _, a := range rest {
		switch a {
		case "portrait":
		case "landscape":
			landscape = true
		default:
			filtered = append(filtered, a)
		}
	}
	if err := eachOption(filtered, opts); err != nil {
		return err
	}
	if strings.EqualFold(name, "custom") {
		if width <= 0 || height <= 0 {
			return fmt.Errorf("custom 纸张需要 width 与 height")
		}
		if landscape {
			width, height = height, width
		}
		page.Name, page.Width, page.Height = "custom", width, height
		return nil
	}
	w, h, err := layout.ResolvePageSize(name, landscape)
	if err != nil {
		return err
	}
	page.Name, page.Width, page.Height = strings.ToUpper(name), w, h
	return nil
}

func applyCaption(c *labels.Caption, args []string) error {
	if len(args) == 1 && args[0] == "off" {
		c.Margin = 0
		return nil
	}
	return eachOption(args, map[string]func(string) error{
		"margin": lengthSetter(&c.Margin),
		"size": func(v string) error {
			l, ok := layout.ParseLength(v)
			if !ok {
				return fmt.Errorf("无效字号 %q", v)
			}
			if l.Unit == layout.UnitNone {
				c.FontSize = l.Value
			} else {
				c.FontSize = l.ToPT()
			}
			return nil
		},
		"font":   func(v string) error { c.Font = v; return nil },
		"top":    func(v string) error { c.Top = v; return nil },
		"bottom": func(v string) error { c.Bottom = v; return nil },
		"color":  colorSetter(&c.Color),
	})
}

// applySize: size <name> (module N | target L) [dpi N] [scale N]，或 size <name> off 删除。
func applySize(cfg *labels.Config, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("用法: size <name> module N | target L [dpi N] [scale N]")
	}
	name := strings.ToLower(args[0])
	if args[1] == "off" {
		delete(cfg.Sizes, name)
		return nil
	}
	class := labels.SizeClass{Name: name}
	if err := eachOption(args[1:], map[string]func(string) error{
		"module": intSetter(&class.ModuleSize),
		"target": lengthSetter(&class.TargetMM),
		"dpi":    intSetter(&class.DPI),
		"scale":  intSetter(&class.PlaceholderScale),
	}); err != nil {
		return err
	}
	if err := class.Validate(); err != nil {
		return err
	}
	cfg.Sizes[name] = class
	return nil
}

// eachOption 以 key value 成对消费参数。
func eachOption(args []string, setters map[string]func(string) error) error {
	if len(args)%2 != 0 {
		return fmt.Errorf("参数必须成对出现: %v", args)
	}
	for i := 0; i < len(args); i += 2 {
		set, ok := setters[args[i]]
		if !ok {
			return fmt.Errorf("未知参数 %q", args[i])
		}
		if err := set(args[i+1]); err != nil {
			return fmt.Errorf("%s: %w", args[i], err)
		}
	}
	return nil
}

func intSetter(dst *int) func(string) error {
	return func(v string) error {
		n, err := strconv.Atoi(strings.TrimSuffix(v, "px"))
		if err != nil {
			return fmt.Errorf("无效整数 %q", v)
		}
		*dst = n
		return nil
	}
}

// lengthSetter 解析长度并换算为 mm；无单位时按 mm 处理。
func lengthSetter(dst *float64) func(string) error {
	return func(v string) error {
		l, ok := layout.ParseLength(v)
		if !ok {
			return fmt.Errorf("无效长度 %q", v)
		}
		if l.Unit == layout.UnitNone {
			l.Unit = layout.UnitMM
		}
		*dst = l.ToMM()
		return nil
	}
}

func colorSetter(dst *layout.Color) func(string) error {
	return func(v string) error {
		c, err := parseColor(v)
		if err != nil {
			return err
		}
		*dst = c
		return nil
	}
}

func parseColor(value string) (layout.Color, error) {
	hex := strings.TrimPrefix(value, "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return layout.Color{}, fmt.Errorf("无效颜色 %q", value)
	}
	n, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return layout.Color{}, fmt.Errorf("无效颜色 %q", value)
	}
	return layout.Color{R: int(n >> 16 & 0xff), G: int(n >> 8 & 0xff), B: int(n & 0xff)}, nil
}

func parseSwitch(v string) (bool, error) {
	switch v {
	case "on", "true", "yes":
		return true, nil
	case "off", "false", "no":
		return false, nil
	default:
		return false, fmt.Errorf("需要 on 或 off，实际 %q", v)
	}
}

func values(args []*dsl.Lexeme) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = a.Value
	}
	return out
}

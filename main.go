package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ByLCY/dmsheet/labels"
	"github.com/ByLCY/dmsheet/layout"
	"github.com/ByLCY/dmsheet/profile"
	"github.com/ByLCY/dmsheet/server"
)

const shutdownTimeout = 15 * time.Second

// options 是一次命令行生成的参数。
type options struct {
	input   string
	output  string
	preview string
	debug   string
	size    string
	dpi     int
}

func main() {
	input := flag.String("in", "-", "序列号文本路径，每行一个；- 表示标准输入")
	output := flag.String("out", "output/labels.pdf", "PDF 输出路径")
	preview := flag.String("preview", "", "预览 PNG 输出路径")
	size := flag.String("size", "", "尺寸类，默认取配置中的 default")
	dpi := flag.Int("dpi", 0, "打印分辨率，0 表示使用尺寸类或配置默认值")
	profileRef := flag.String("profile", "", "配置文件路径或内置配置名")
	debug := flag.String("debug", "", "排版调试 JSON 输出路径")
	serve := flag.String("serve", "", "以 HTTP 服务运行的监听地址，如 :8080")
	maxUpload := flag.Int64("max-upload", server.DefaultMaxUpload, "上传请求体上限（字节）")
	verbose := flag.Bool("v", false, "输出调试日志")
	flag.Parse()

	logger, err := newLogger(*verbose)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := profile.Resolve(*profileRef)
	if err != nil {
		logger.Fatal("加载配置失败", zap.Error(err))
	}
	gen, err := labels.New(cfg, labels.WithLogger(logger))
	if err != nil {
		logger.Fatal("配置无效", zap.Error(err))
	}

	if *serve != "" {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		srv := &http.Server{
			Addr:              *serve,
			Handler:           server.New(gen, server.Options{MaxUpload: *maxUpload, Logger: logger}).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		if err := server.Run(ctx, srv, logger, shutdownTimeout); err != nil {
			logger.Fatal("服务异常退出", zap.Error(err))
		}
		return
	}

	opts := options{input: *input, output: *output, preview: *preview, debug: *debug, size: *size, dpi: *dpi}
	stats, err := run(gen, opts, os.Stdin)
	if err != nil {
		logger.Fatal("生成标签失败", zap.Error(err))
	}
	fmt.Printf("已生成 PDF：%s（%d 页，%d 个占位图）\n", opts.output, stats.Pages, stats.Placeholders)
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// run 串联读取、排版与渲染。stdin 在 input 为 "-" 时使用。
func run(gen *labels.Generator, opts options, stdin io.Reader) (labels.Stats, error) {
	text, err := readInput(opts.input, stdin)
	if err != nil {
		return labels.Stats{}, err
	}
	req := labels.Request{Payloads: labels.SplitLines(text), Size: opts.size, DPI: opts.dpi}

	result, err := gen.Layout(req)
	if err != nil {
		return labels.Stats{}, fmt.Errorf("排版失败: %w", err)
	}
	if opts.debug != "" {
		if err := writeDebug(result.Plan, opts.debug); err != nil {
			return labels.Stats{}, err
		}
	}

	pdfBytes, err := gen.Render(result)
	if err != nil {
		return labels.Stats{}, fmt.Errorf("渲染 PDF 失败: %w", err)
	}
	if err := writeFile(opts.output, pdfBytes); err != nil {
		return labels.Stats{}, err
	}

	if opts.preview != "" {
		png, err := gen.GeneratePreview(req)
		if err != nil {
			return labels.Stats{}, fmt.Errorf("生成预览失败: %w", err)
		}
		if err := writeFile(opts.preview, png); err != nil {
			return labels.Stats{}, err
		}
	}
	return result.Stats, nil
}

func readInput(path string, stdin io.Reader) (string, error) {
	if path == "-" || path == "" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("读取标准输入失败: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("无法打开序列号文件 %s: %w", path, err)
	}
	return string(data), nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("写入 %s 失败: %w", path, err)
	}
	return nil
}

func writeDebug(plan *layout.Plan, debugPath string) error {
	if err := os.MkdirAll(filepath.Dir(debugPath), 0o755); err != nil {
		return fmt.Errorf("创建调试目录失败: %w", err)
	}
	if err := layout.WriteDebugJSON(plan, debugPath); err != nil {
		return fmt.Errorf("输出调试 JSON 失败: %w", err)
	}
	return nil
}

package labels

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ByLCY/dmsheet/layout"
	"github.com/ByLCY/dmsheet/symbol"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

// fakeEncoder 返回固定 10x10 棋盘格；以 BAD 开头的文本返回 EncodingError，BOOM 返回普通错误。
type fakeEncoder struct {
	seen []string
}

func (f *fakeEncoder) Encode(text string) (*symbol.ModuleGrid, error) {
	f.seen = append(f.seen, text)
	switch {
	case strings.HasPrefix(text, "BAD"):
		return nil, &symbol.EncodingError{Text: text, Err: errors.New("capacity exceeded")}
	case text == "BOOM":
		return nil, errors.New("encoder crashed")
	}
	cells := make([]bool, 100)
	for i := range cells {
		cells[i] = (i/10+i%10)%2 == 0
	}
	return symbol.NewModuleGrid(10, 10, cells)
}

type failingRenderer struct{}

func (failingRenderer) Render(*layout.Document) ([]byte, error) {
	return nil, errors.New("disk full")
}

func newGenerator(t *testing.T, cfg Config, opts ...Option) *Generator {
	t.Helper()
	opts = append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)
	g, err := New(cfg, opts...)
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}
	return g
}

func payloads(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("SN%05d", i)
	}
	return out
}

func TestConcreteScenario(t *testing.T) {
	g := newGenerator(t, DefaultConfig())
	req := Request{Payloads: []string{"ABC123", "DEF456", "GHI789"}, Size: "medium"}

	preview, err := g.GeneratePreview(req)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if !bytes.HasPrefix(preview, pngMagic) {
		t.Fatalf("preview is not a PNG")
	}

	result, err := g.Layout(req)
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	if result.Stats.Pages != 1 || len(result.Document.Pages) != 1 {
		t.Fatalf("expected 1 page, got %d", result.Stats.Pages)
	}
	if result.Stats.Placeholders != 0 {
		t.Fatalf("unexpected placeholders: %d", result.Stats.Placeholders)
	}

	pdf, err := g.GenerateDocument(req)
	if err != nil {
		t.Fatalf("document: %v", err)
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF-")) {
		t.Fatalf("document is not a PDF")
	}
}

func TestGenerateBothArtifacts(t *testing.T) {
	g := newGenerator(t, DefaultConfig())
	out, err := g.Generate(Request{Payloads: payloads(5), Size: "label", Subject: "batch-1"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !bytes.HasPrefix(out.Preview, pngMagic) || !bytes.HasPrefix(out.PDF, []byte("%PDF-")) {
		t.Fatalf("unexpected artifacts")
	}
	if out.Stats.Payloads != 5 || out.Stats.Symbols != 5 || out.Stats.Pages != 1 {
		t.Fatalf("stats = %+v", out.Stats)
	}
}

func TestEmptyPayloadListIsInputError(t *testing.T) {
	g := newGenerator(t, DefaultConfig())
	_, err := g.GenerateDocument(Request{Size: "medium"})
	if !errors.Is(err, ErrInput) {
		t.Fatalf("expected ErrInput, got %v", err)
	}
	var inErr *InputError
	if !errors.As(err, &inErr) || !errors.Is(err, ErrNoPayloads) {
		t.Fatalf("expected InputError wrapping ErrNoPayloads, got %v", err)
	}
}

func TestEmptyPreviewIsPlaceholder(t *testing.T) {
	g := newGenerator(t, DefaultConfig())
	img, err := g.Preview("", "medium", 0)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	side := symbol.PlaceholderSide("", 50)
	if img.Bounds() != image.Rect(0, 0, side, side) {
		t.Fatalf("placeholder bounds = %v", img.Bounds())
	}

	data, err := g.GeneratePreview(Request{Size: "medium"})
	if err != nil {
		t.Fatalf("preview of empty request: %v", err)
	}
	if !bytes.HasPrefix(data, pngMagic) {
		t.Fatalf("placeholder preview is not a PNG")
	}
}

func TestUnknownSizeAndDPI(t *testing.T) {
	g := newGenerator(t, DefaultConfig())
	for _, req := range []Request{
		{Payloads: []string{"A"}, Size: "huge"},
		{Payloads: []string{"A"}, Size: "medium", DPI: 100000},
		{Payloads: []string{"A"}, Size: "medium", DPI: -1},
	} {
		if _, err := g.GenerateDocument(req); !errors.Is(err, ErrInput) {
			t.Fatalf("%+v: expected ErrInput, got %v", req, err)
		}
		if _, err := g.GeneratePreview(req); !errors.Is(err, ErrInput) {
			t.Fatalf("%+v: preview expected ErrInput, got %v", req, err)
		}
	}
	if _, err := g.GeneratePreview(Request{Payloads: []string{"A"}, Size: " MEDIUM "}); err != nil {
		t.Fatalf("size names are case-insensitive: %v", err)
	}
}

func TestPageBoundaries(t *testing.T) {
	g := newGenerator(t, DefaultConfig())
	probe, err := g.Layout(Request{Payloads: payloads(1), Size: "label"})
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	perPage := probe.Stats.PerPage
	// 34mm + 2*4mm 标注，A4 10mm 边距 5mm 间距：5 列 6 行
	if perPage != 30 {
		t.Fatalf("per page = %d, want 30", perPage)
	}

	cases := []struct {
		n, pages, last int
	}{
		{1, 1, 1},
		{perPage, 1, perPage},
		{perPage + 1, 2, 1},
		{2*perPage + 7, 3, 7},
	}
	for _, tc := range cases {
		res, err := g.Layout(Request{Payloads: payloads(tc.n), Size: "label"})
		if err != nil {
			t.Fatalf("n=%d: %v", tc.n, err)
		}
		wantPages := int(math.Ceil(float64(tc.n) / float64(perPage)))
		if res.Stats.Pages != tc.pages || wantPages != tc.pages {
			t.Fatalf("n=%d: pages = %d, want %d", tc.n, res.Stats.Pages, tc.pages)
		}
		pages := res.Document.Pages
		if got := len(pages[len(pages)-1].Images); got != tc.last {
			t.Fatalf("n=%d: last page has %d symbols, want %d", tc.n, got, tc.last)
		}
		total := 0
		for _, p := range pages {
			total += len(p.Images)
		}
		if total != tc.n {
			t.Fatalf("n=%d: placed %d symbols", tc.n, total)
		}
	}
}

func TestEncodingFailureFallsBackToPlaceholder(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	enc := &fakeEncoder{}
	g, err := New(DefaultConfig(), WithEncoder(enc), WithLogger(zap.New(core)))
	if err != nil {
		t.Fatal(err)
	}
	res, err := g.Layout(Request{Payloads: []string{"OK1", "BAD-too-long", "OK2"}, Size: "small"})
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	images := res.Document.Pages[0].Images
	if len(images) != 3 {
		t.Fatalf("expected one slot per payload, got %d", len(images))
	}
	var flags []bool
	for _, im := range images {
		flags = append(flags, im.Placeholder)
	}
	if diff := cmp.Diff([]bool{false, true, false}, flags); diff != "" {
		t.Fatalf("placeholder flags (-want +got):\n%s", diff)
	}
	if res.Stats.Placeholders != 1 || res.Stats.AllPlaceholders() {
		t.Fatalf("stats = %+v", res.Stats)
	}
	warned := logs.FilterMessage("payload cannot be encoded, using placeholder").All()
	if len(warned) != 1 || warned[0].ContextMap()["index"] != int64(1) {
		t.Fatalf("expected one placeholder warning for index 1, got %+v", warned)
	}
}

func TestOversizedPayloadWithRealEncoder(t *testing.T) {
	g := newGenerator(t, DefaultConfig())
	huge := strings.Repeat("Z", 4000)
	res, err := g.Layout(Request{Payloads: []string{"ABC", huge}, Size: "medium"})
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	images := res.Document.Pages[0].Images
	if len(images) != 2 || images[0].Placeholder || !images[1].Placeholder {
		t.Fatalf("unexpected images %+v", images)
	}
}

func TestAllPlaceholdersStillProducesDocument(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	g, err := New(DefaultConfig(), WithEncoder(&fakeEncoder{}), WithLogger(zap.New(core)))
	if err != nil {
		t.Fatal(err)
	}
	res, err := g.Layout(Request{Payloads: []string{"BAD1", "BAD2"}})
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	if !res.Stats.AllPlaceholders() || res.Stats.Pages != 1 {
		t.Fatalf("stats = %+v", res.Stats)
	}
	want := layout.PixelsToMM(fallbackFootprintPx, 300)
	if res.Stats.Footprint != want {
		t.Fatalf("footprint = %g, want %g", res.Stats.Footprint, want)
	}
	if logs.FilterMessage("every payload fell back to a placeholder").Len() != 1 {
		t.Fatalf("missing all-placeholder warning")
	}
}

func TestFailFast(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FailFast = true
	g := newGenerator(t, cfg, WithEncoder(&fakeEncoder{}))
	req := Request{Payloads: []string{"BAD", "OK"}}
	_, err := g.Layout(req)
	var encErr *symbol.EncodingError
	if !errors.Is(err, ErrInput) || !errors.As(err, &encErr) {
		t.Fatalf("expected InputError wrapping EncodingError, got %v", err)
	}
	// 预览不受 fail-fast 影响
	if _, err := g.GeneratePreview(req); err != nil {
		t.Fatalf("preview: %v", err)
	}
}

func TestUnexpectedEncoderErrorIsInternal(t *testing.T) {
	g := newGenerator(t, DefaultConfig(), WithEncoder(&fakeEncoder{}))
	for _, fn := range []func() error{
		func() error { _, err := g.GenerateDocument(Request{Payloads: []string{"OK", "BOOM"}}); return err },
		func() error { _, err := g.GeneratePreview(Request{Payloads: []string{"BOOM"}}); return err },
	} {
		err := fn()
		var internal *InternalError
		if !errors.Is(err, ErrInternal) || !errors.As(err, &internal) || errors.Is(err, ErrInput) {
			t.Fatalf("expected InternalError, got %v", err)
		}
	}
}

func TestRendererFailureIsInternal(t *testing.T) {
	g := newGenerator(t, DefaultConfig(), WithRenderer(failingRenderer{}), WithEncoder(&fakeEncoder{}))
	_, err := g.GenerateDocument(Request{Payloads: []string{"OK"}})
	if !errors.Is(err, ErrInternal) {
		t.Fatalf("expected ErrInternal, got %v", err)
	}
}

func TestTooManyPayloads(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxPayloads = 3
	g := newGenerator(t, cfg, WithEncoder(&fakeEncoder{}))
	_, err := g.Layout(Request{Payloads: payloads(4)})
	if !errors.Is(err, ErrInput) || !errors.Is(err, ErrTooMany) {
		t.Fatalf("expected ErrTooMany, got %v", err)
	}
}

func TestBatchModeGroupsAndCaptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mode = ModeBatch
	cfg.GroupSize = 2
	enc := &fakeEncoder{}
	g := newGenerator(t, cfg, WithEncoder(enc))

	res, err := g.Layout(Request{Payloads: []string{"A", "B", "C", "D", "E"}})
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	if diff := cmp.Diff([]string{"A\r\nB", "C\r\nD", "E"}, enc.seen); diff != "" {
		t.Fatalf("encoded groups (-want +got):\n%s", diff)
	}
	if res.Stats.Symbols != 3 || res.Stats.Payloads != 5 {
		t.Fatalf("stats = %+v", res.Stats)
	}
	var captions []string
	for _, tb := range res.Document.Pages[0].Texts {
		captions = append(captions, tb.Content)
	}
	if diff := cmp.Diff([]string{"A", "B", "C", "D", "E", "E"}, captions); diff != "" {
		t.Fatalf("captions (-want +got):\n%s", diff)
	}

	enc.seen = nil
	if _, err := g.GeneratePreview(Request{Payloads: []string{"A", "B", "C"}}); err != nil {
		t.Fatalf("preview: %v", err)
	}
	if diff := cmp.Diff([]string{"A\r\nB\r\nC"}, enc.seen); diff != "" {
		t.Fatalf("batch preview should encode the whole batch (-want +got):\n%s", diff)
	}
}

func TestBatchModeWholeBatch(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mode = ModeBatch
	cfg.Caption.Bottom = "${index}/${count} p${page}"
	g := newGenerator(t, cfg, WithEncoder(&fakeEncoder{}))
	res, err := g.Layout(Request{Payloads: payloads(7)})
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	if res.Stats.Symbols != 1 {
		t.Fatalf("group size 0 should produce one symbol, got %d", res.Stats.Symbols)
	}
	texts := res.Document.Pages[0].Texts
	if len(texts) != 2 || texts[0].Content != "SN00000" || texts[1].Content != "1/7 p1" {
		t.Fatalf("captions = %+v", texts)
	}
}

func TestSinglePreviewUsesFirstPayload(t *testing.T) {
	enc := &fakeEncoder{}
	g := newGenerator(t, DefaultConfig(), WithEncoder(enc))
	if _, err := g.GeneratePreview(Request{Payloads: []string{"FIRST", "SECOND"}}); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"FIRST"}, enc.seen); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

func TestPreviewAndDocumentShareResolvedSize(t *testing.T) {
	g := newGenerator(t, DefaultConfig())
	for _, size := range []string{"small", "medium", "large", "label"} {
		req := Request{Payloads: []string{"ABC123", "DEF456"}, Size: size}
		res, err := g.Layout(req)
		if err != nil {
			t.Fatalf("%s: %v", size, err)
		}
		preview, err := g.Preview(req.Payloads[0], req.Size, req.DPI)
		if err != nil {
			t.Fatalf("%s: %v", size, err)
		}
		docImg := res.Document.Pages[0].Images[0].Image
		if preview.Bounds() != docImg.Bounds() {
			t.Fatalf("%s: preview %v != document %v", size, preview.Bounds(), docImg.Bounds())
		}
	}
}

func TestSymbolsFitInsideSlots(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Guides = true
	g := newGenerator(t, cfg)
	res, err := g.Layout(Request{Payloads: []string{"A", strings.Repeat("LONGER PAYLOAD ", 20), "BAD"}, Size: "label"})
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	plan := res.Plan
	const eps = 1e-9
	page := res.Document.Pages[0]
	if len(page.Rects) != len(page.Images) {
		t.Fatalf("expected one guide per symbol")
	}
	for i, im := range page.Images {
		slot := plan.Slots[i]
		if im.Width > plan.Footprint+eps || im.Height > plan.Footprint+eps {
			t.Fatalf("image %d larger than footprint: %gx%g", i, im.Width, im.Height)
		}
		if im.X < slot.X-eps || im.X+im.Width > slot.X+plan.Footprint+eps {
			t.Fatalf("image %d escapes its slot horizontally", i)
		}
		bottom := slot.Y + plan.Caption
		if im.Y < bottom-eps || im.Y+im.Height > bottom+plan.Footprint+eps {
			t.Fatalf("image %d escapes its slot vertically", i)
		}
		if math.Abs((im.X+im.Width/2)-(slot.X+plan.Footprint/2)) > 1e-6 {
			t.Fatalf("image %d not centred", i)
		}
	}
}

func TestLayoutIsDeterministic(t *testing.T) {
	g := newGenerator(t, DefaultConfig(), WithEncoder(&fakeEncoder{}))
	req := Request{Payloads: payloads(40), Size: "small"}
	a, err := g.Layout(req)
	if err != nil {
		t.Fatal(err)
	}
	b, err := g.Layout(req)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(a.Plan, b.Plan); diff != "" {
		t.Fatalf("plans differ (-a +b):\n%s", diff)
	}
	if diff := cmp.Diff(a.Stats, b.Stats); diff != "" {
		t.Fatalf("stats differ (-a +b):\n%s", diff)
	}
}

func TestDegeneratePageWarns(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Page = layout.PageSpec{Name: "custom", Width: 40, Height: 40, Margin: 2, Spacing: 1}
	core, logs := observer.New(zapcore.WarnLevel)
	g, err := New(cfg, WithEncoder(&fakeEncoder{}), WithLogger(zap.New(core)))
	if err != nil {
		t.Fatal(err)
	}
	res, err := g.Layout(Request{Payloads: payloads(3), Size: "label"})
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	if !res.Plan.Degenerate || res.Stats.Pages != 3 {
		t.Fatalf("expected one symbol per page, got %+v", res.Stats)
	}
	if logs.FilterMessage("page too small for the symbol, forcing one symbol per page").Len() != 1 {
		t.Fatalf("missing degenerate warning")
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	mutations := map[string]func(*Config){
		"no sizes":        func(c *Config) { c.Sizes = nil },
		"missing default": func(c *Config) { c.DefaultSize = "nope" },
		"negative margin": func(c *Config) { c.Page.Margin = -1 },
		"huge spacing":    func(c *Config) { c.Page.Spacing = 200 },
		"zero dpi":        func(c *Config) { c.DPI = 0 },
		"caption field":   func(c *Config) { c.Caption.Top = "${serial}" },
		"unknown font":    func(c *Config) { c.Caption.Font = "Comic Sans" },
		"upper key": func(c *Config) {
			c.Sizes["Big"] = SizeClass{Name: "Big", ModuleSize: 20}
		},
		"both sizes": func(c *Config) {
			c.Sizes["x"] = SizeClass{Name: "x", ModuleSize: 2, TargetMM: 10, DPI: 300}
		},
		"target without dpi": func(c *Config) {
			c.Sizes["x"] = SizeClass{Name: "x", TargetMM: 10}
		},
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			if _, err := New(cfg); !errors.Is(err, ErrInput) {
				t.Fatalf("expected ErrInput, got %v", err)
			}
		})
	}
}

func TestResolvePrecedence(t *testing.T) {
	cfg := DefaultConfig()
	res, err := cfg.Resolve("", 0)
	if err != nil {
		t.Fatal(err)
	}
	if res.Class.Name != "medium" || res.DPI != 300 || res.Border != 2 {
		t.Fatalf("default resolve = %+v", res)
	}
	res, err = cfg.Resolve("label", 600)
	if err != nil {
		t.Fatal(err)
	}
	if res.DPI != 600 {
		t.Fatalf("request dpi should win, got %d", res.DPI)
	}
	grid, _ := (&fakeEncoder{}).Encode("x")
	// 34mm@600dpi = 803px，14 模块 -> 57px/模块
	if got := res.ModuleSize(grid); got != 57 {
		t.Fatalf("module size = %d, want 57", got)
	}
}

func TestSplitLines(t *testing.T) {
	got := SplitLines("  A1 \r\n\n B2\n\t\nA1\n")
	if diff := cmp.Diff([]string{"A1", "B2", "A1"}, got); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
	if SplitLines(" \n\n") != nil {
		t.Fatalf("blank input should produce no payloads")
	}
}

func TestConfigCloneIsIndependent(t *testing.T) {
	cfg := DefaultConfig()
	g := newGenerator(t, cfg)
	cfg.Sizes["medium"] = SizeClass{Name: "medium", ModuleSize: 99}
	if g.Config().Sizes["medium"].ModuleSize != 8 {
		t.Fatalf("generator config shares the caller's size table")
	}
}

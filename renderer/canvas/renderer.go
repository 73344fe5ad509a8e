package canvasrenderer

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"io"
	"sync"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/pdf"
	"go.uber.org/zap"

	"github.com/ByLCY/rmlpdf/fonts"
	"github.com/ByLCY/rmlpdf/layout"
	"github.com/ByLCY/rmlpdf/renderer"
)

var (
	// ErrNotEnoughSpace 表示 place 的内容超出了声明的矩形。
	ErrNotEnoughSpace = errors.New("not enough space")
	// ErrFlowableTooLarge 表示某个不可拆分的元素在空 frame 中也放不下。
	ErrFlowableTooLarge = errors.New("flowable too large for frame")
)

const defaultCreator = "rmlpdf"

// Renderer 基于 github.com/tdewolff/canvas 排版并输出 PDF。
// 布局计算统一使用 pt，只在调用 canvas 时换算为 mm。
type Renderer struct {
	log     *zap.SugaredLogger
	creator string

	fontMu     sync.Mutex
	registered map[string]*fonts.Font
	families   map[string]*canvas.FontFamily
}

var _ renderer.Renderer = (*Renderer)(nil)

// Options configures the canvas renderer.
type Options struct {
	Logger  *zap.SugaredLogger
	Creator string
}

// New 创建一个渲染器。渲染器持有单次转换的字体族，不应跨转换复用。
func New(opts Options) *Renderer {
	r := &Renderer{
		log:        opts.Logger,
		creator:    opts.Creator,
		registered: map[string]*fonts.Font{},
		families:   map[string]*canvas.FontFamily{},
	}
	if r.log == nil {
		r.log = zap.NewNop().Sugar()
	}
	if r.creator == "" {
		r.creator = defaultCreator
	}
	return r
}

// RegisterFont 注册一个字体，之后可在样式与绘图指令中按 f.Name 引用。
func (r *Renderer) RegisterFont(f *fonts.Font) error {
	if f == nil || f.Name == "" {
		return fmt.Errorf("注册字体缺少名称")
	}
	family := canvas.NewFontFamily(f.Name)
	if err := family.LoadFont(f.Data, f.Index, canvas.FontRegular); err != nil {
		return fmt.Errorf("加载字体 %s 失败: %w", f.Name, err)
	}
	r.fontMu.Lock()
	defer r.fontMu.Unlock()
	r.registered[f.Name] = f
	r.families[f.Name] = family
	r.log.Debugw("font registered", "face", f.Name, "file", f.File)
	return nil
}

// Render 排版文档并写出 PDF。输出先写入缓冲区，只有成功时才复制到 w。
func (r *Renderer) Render(doc *layout.Document, w io.Writer) error {
	if doc == nil {
		return fmt.Errorf("渲染文档为空")
	}
	var buf bytes.Buffer
	out := &pdfDoc{out: &buf, creator: r.creator}
	var err error
	switch doc.Mode {
	case layout.ModeDrawing:
		err = r.renderDrawing(doc, out)
	default:
		err = r.renderFlow(doc, out)
	}
	if err != nil {
		return err
	}
	if err := out.close(); err != nil {
		return fmt.Errorf("写入 PDF 失败: %w", err)
	}
	if _, err := io.Copy(w, &buf); err != nil {
		return fmt.Errorf("输出 PDF 失败: %w", err)
	}
	return nil
}

// renderDrawing 在单个 A4 页面上执行绘图指令。
func (r *Renderer) renderDrawing(doc *layout.Document, out *pdfDoc) error {
	pg := newPage(1, layout.DefaultPageWidth, layout.DefaultPageHeight)
	p := r.newPainter(pg)
	if err := p.run(doc.Drawing); err != nil {
		return err
	}
	out.emit(pg)
	return nil
}

// page 是正在绘制的一页，宽高为 pt。
type page struct {
	number int
	width  float64
	height float64
	canvas *canvas.Canvas
	ctx    *canvas.Context
}

func newPage(number int, width, height float64) *page {
	c := canvas.New(toMm(width), toMm(height))
	return &page{number: number, width: width, height: height, canvas: c, ctx: canvas.NewContext(c)}
}

// pdfDoc 延迟创建 PDF writer：第一页的尺寸决定 writer 的初始页面。
type pdfDoc struct {
	out     io.Writer
	writer  *pdf.PDF
	creator string
	title   string
	author  string
	pages   int
}

func (d *pdfDoc) emit(pg *page) {
	w, h := toMm(pg.width), toMm(pg.height)
	if d.writer == nil {
		d.writer = pdf.New(d.out, w, h, nil)
		d.writer.SetInfo(d.title, "", "", d.author, d.creator)
	} else {
		d.writer.NewPage(w, h)
	}
	pg.canvas.RenderTo(d.writer)
	d.pages++
}

func (d *pdfDoc) close() error {
	if d.writer == nil {
		return layout.ErrNothingToRender
	}
	return d.writer.Close()
}

func colorFromLayout(c layout.Color) color.Color {
	if c.None {
		return color.RGBA{0, 0, 0, 0}
	}
	return canvas.RGBA(float64(c.R)/255.0, float64(c.G)/255.0, float64(c.B)/255.0, 1.0)
}

// toPt 将毫米(mm)转换为点(pt)。
func toPt(mm float64) float64 { return mm * layout.MmToPt }

// toMm 将点(pt)转换为毫米(mm)。
func toMm(pt float64) float64 { return pt * layout.PtToMm }

package canvasrenderer

import (
	"fmt"
	"image"
	"math"

	"github.com/tdewolff/canvas"

	"github.com/ByLCY/rmlpdf/layout"
)

// block 是按可用宽度排好版的流式元素，坐标单位为 pt，top 为上边缘的 y。
type block interface {
	height() float64
	// extent 是占用的宽度，用于判断能否放进 frame 或 place。
	extent() float64
	spacing() (before, after float64)
	draw(pg *page, x, top float64) error
	// split 返回能放进 avail 高度的部分与剩余部分；head 为 nil 表示放不下任何内容。
	split(avail float64) (head, tail block)
}

// fixed 是不可拆分元素的公共实现。
type fixed struct{}

func (fixed) spacing() (float64, float64)  { return 0, 0 }
func (fixed) split(float64) (block, block) { return nil, nil }

type spacerBlock struct {
	fixed
	w, h float64
}

func (b *spacerBlock) height() float64                    { return b.h }
func (b *spacerBlock) extent() float64                    { return b.w }
func (b *spacerBlock) draw(*page, float64, float64) error { return nil }

// split 让 spacer 在 frame 底部被截断，而不是推到下一个 frame。
func (b *spacerBlock) split(avail float64) (block, block) {
	if avail <= 0 {
		return nil, nil
	}
	return &spacerBlock{w: b.w, h: avail}, nil
}

type imageBlock struct {
	fixed
	img  image.Image
	w, h float64
}

func (b *imageBlock) height() float64 { return b.h }
func (b *imageBlock) extent() float64 { return b.w }

func (b *imageBlock) draw(pg *page, x, top float64) error {
	return drawImage(pg.ctx, b.img, x, top-b.h, b.w, b.h)
}

type illustrationBlock struct {
	fixed
	r    *Renderer
	w, h float64
	cmds []layout.DrawCommand
}

func (b *illustrationBlock) height() float64 { return b.h }
func (b *illustrationBlock) extent() float64 { return b.w }

func (b *illustrationBlock) draw(pg *page, x, top float64) error {
	pg.ctx.Push()
	defer pg.ctx.Pop()
	pg.ctx.Translate(toMm(x), toMm(top-b.h))
	return b.r.newPainter(pg).run(b.cmds)
}

type barcodeBlock struct {
	fixed
	bc layout.Barcode
}

func (b *barcodeBlock) height() float64 { return b.bc.BarHeight }
func (b *barcodeBlock) extent() float64 { return float64(b.bc.Matrix.Cols) * b.bc.BarWidth }

func (b *barcodeBlock) draw(pg *page, x, top float64) error {
	drawBarcode(pg.ctx, b.bc, x, top-b.bc.BarHeight)
	return nil
}

// stackBlock 把若干 block 自上而下叠放，用于表格单元格与 place。
type stackBlock struct {
	fixed
	items []block
}

func (b *stackBlock) height() float64 {
	h := 0.0
	for i, it := range b.items {
		before, after := it.spacing()
		if i > 0 {
			h += before
		}
		h += it.height()
		if i < len(b.items)-1 {
			h += after
		}
	}
	return h
}

func (b *stackBlock) extent() float64 {
	w := 0.0
	for _, it := range b.items {
		w = math.Max(w, it.extent())
	}
	return w
}

func (b *stackBlock) draw(pg *page, x, top float64) error {
	y := top
	for i, it := range b.items {
		before, after := it.spacing()
		if i > 0 {
			y -= before
		}
		if err := it.draw(pg, x, y); err != nil {
			return err
		}
		y -= it.height() + after
	}
	return nil
}

// wrap 按宽度排版一个流式元素。控制类元素（分页、换 frame 等）返回 nil。
func (r *Renderer) wrap(f layout.Flowable, width float64, pageNo int) (block, error) {
	switch f := f.(type) {
	case layout.Paragraph:
		return r.paragraph(f.Style, f.Runs, width, pageNo, true)
	case layout.Preformatted:
		var runs []layout.Run
		for i, line := range f.Lines {
			if i > 0 {
				runs = append(runs, layout.Run{LineBreak: true})
			}
			runs = append(runs, layout.Run{Text: line})
		}
		return r.paragraph(f.Style, runs, width, pageNo, false)
	case layout.XPreformatted:
		var runs []layout.Run
		for i, line := range f.Lines {
			if i > 0 {
				runs = append(runs, layout.Run{LineBreak: true})
			}
			runs = append(runs, line...)
		}
		return r.paragraph(f.Style, runs, width, pageNo, false)
	case layout.Table:
		return r.table(f, width, pageNo)
	case layout.Image:
		if f.Data == nil {
			return nil, fmt.Errorf("图片 %s 缺少数据", f.Source)
		}
		return &imageBlock{img: f.Data, w: f.Width, h: f.Height}, nil
	case layout.Spacer:
		return &spacerBlock{w: f.Width, h: f.Height}, nil
	case layout.Illustration:
		return &illustrationBlock{r: r, w: f.Width, h: f.Height, cmds: f.Commands}, nil
	case layout.Barcode:
		return &barcodeBlock{bc: f}, nil
	default:
		return nil, nil
	}
}

// stack 排版一组流式元素，忽略控制类元素。
func (r *Renderer) stack(story []layout.Flowable, width float64, pageNo int) (*stackBlock, error) {
	s := &stackBlock{}
	for _, f := range story {
		b, err := r.wrap(f, width, pageNo)
		if err != nil {
			return nil, err
		}
		if b != nil {
			s.items = append(s.items, b)
		}
	}
	return s, nil
}

// composer 把 story 分配到各页的 frame 中。
type composer struct {
	r   *Renderer
	tpl *layout.Template
	out *pdfDoc

	pg       *page
	current  layout.PageTemplate
	next     string
	frameIdx int
	cursor   float64
	empty    bool
}

func (r *Renderer) renderFlow(doc *layout.Document, out *pdfDoc) error {
	tpl := doc.Template
	if tpl == nil || len(tpl.PageTemplates) == 0 {
		return fmt.Errorf("%w: 缺少页面模板", layout.ErrStructure)
	}
	out.title, out.author = tpl.Title, tpl.Author
	c := &composer{r: r, tpl: tpl, out: out, current: tpl.PageTemplates[0]}
	if err := c.startPage(); err != nil {
		return err
	}
	if err := c.flow(doc.Story); err != nil {
		return err
	}
	c.finishPage()
	return nil
}

type pending struct {
	flow layout.Flowable
	item block
}

func (c *composer) flow(story []layout.Flowable) error {
	queue := make([]pending, 0, len(story))
	for _, f := range story {
		queue = append(queue, pending{flow: f})
	}
	for len(queue) > 0 {
		head := &queue[0]
		switch f := head.flow.(type) {
		case layout.PageBreak:
			queue = queue[1:]
			if err := c.newPage(); err != nil {
				return err
			}
			continue
		case layout.FrameBreak:
			queue = queue[1:]
			if err := c.nextFrame(); err != nil {
				return err
			}
			continue
		case layout.CondPageBreak:
			queue = queue[1:]
			if c.available() < f.Height {
				if err := c.newPage(); err != nil {
					return err
				}
			}
			continue
		case layout.NextTemplate:
			queue = queue[1:]
			if _, ok := c.tpl.PageTemplate(f.Name); !ok {
				return fmt.Errorf("%w: 未知的 pageTemplate %q", layout.ErrStructure, f.Name)
			}
			c.next = f.Name
			continue
		case layout.NamedValue:
			queue = queue[1:]
			continue
		}

		frame := c.frame()
		width := frame.Width - frame.LeftPadding - frame.RightPadding
		if head.item == nil {
			item, err := c.r.wrap(head.flow, width, c.pg.number)
			if err != nil {
				return err
			}
			if item == nil {
				queue = queue[1:]
				continue
			}
			head.item = item
		}
		placed, err := c.place(head.item)
		if err != nil {
			return fmt.Errorf("%s: %w", head.flow.Kind(), err)
		}
		if placed == nil {
			queue = queue[1:]
			continue
		}
		// 只放下了一部分：剩余部分留到下一个 frame。
		head.item = placed
		if err := c.nextFrame(); err != nil {
			return err
		}
	}
	return nil
}

// place 尝试在当前 frame 放置 item，返回尚未放下的部分。
func (c *composer) place(item block) (block, error) {
	before, after := item.spacing()
	if c.empty {
		before = 0
	}
	avail := c.available()
	x := c.contentX()
	f := c.frame()
	if w, inner := item.extent(), f.Width-f.LeftPadding-f.RightPadding; w > inner+1e-6 {
		if c.empty {
			return nil, fmt.Errorf("%w: 宽度 %.1fpt，frame 可用 %.1fpt", ErrFlowableTooLarge, w, inner)
		}
		return item, nil
	}
	if before+item.height() <= avail+1e-6 {
		if err := item.draw(c.pg, x, c.cursor-before); err != nil {
			return nil, err
		}
		c.cursor -= before + item.height() + after
		c.empty = false
		return nil, nil
	}
	if c.tpl.AllowSplitting != 0 {
		if head, tail := item.split(avail - before); head != nil {
			if err := head.draw(c.pg, x, c.cursor-before); err != nil {
				return nil, err
			}
			c.cursor -= before + head.height()
			c.empty = false
			if tail == nil {
				c.cursor -= after
			}
			return tail, nil
		}
	}
	if c.empty {
		return nil, fmt.Errorf("%w: 高度 %.1fpt，frame 可用 %.1fpt", ErrFlowableTooLarge, item.height(), avail)
	}
	return item, nil
}

func (c *composer) frame() layout.Frame { return c.current.Frames[c.frameIdx] }

func (c *composer) contentX() float64 {
	f := c.frame()
	return f.X1 + f.LeftPadding
}

func (c *composer) available() float64 {
	f := c.frame()
	return c.cursor - (f.Y1 + f.BottomPadding)
}

func (c *composer) enterFrame(idx int) {
	c.frameIdx = idx
	f := c.frame()
	c.cursor = f.Y1 + f.Height - f.TopPadding
	c.empty = true
}

func (c *composer) nextFrame() error {
	if c.frameIdx+1 < len(c.current.Frames) {
		c.enterFrame(c.frameIdx + 1)
		return nil
	}
	return c.newPage()
}

func (c *composer) newPage() error {
	c.finishPage()
	if c.next != "" {
		c.current, _ = c.tpl.PageTemplate(c.next)
		c.next = ""
	}
	return c.startPage()
}

// startPage 开始新的一页：先绘制 pageGraphics，再绘制 frame 边界。
func (c *composer) startPage() error {
	number := 1
	if c.pg != nil {
		number = c.pg.number + 1
	}
	c.pg = newPage(number, c.tpl.PageWidth, c.tpl.PageHeight)
	if len(c.current.Graphics) > 0 {
		c.pg.ctx.Push()
		err := c.r.newPainter(c.pg).run(c.current.Graphics)
		c.pg.ctx.Pop()
		if err != nil {
			return fmt.Errorf("pageGraphics: %w", err)
		}
	}
	for _, f := range c.current.Frames {
		if f.ShowBoundary {
			ctx := c.pg.ctx
			ctx.SetFillColor(colorFromLayout(layout.Transparent))
			ctx.SetStrokeColor(colorFromLayout(layout.Black))
			ctx.SetStrokeWidth(toMm(0.5))
			ctx.SetDashes(0)
			ctx.DrawPath(toMm(f.X1), toMm(f.Y1), canvas.Rectangle(toMm(f.Width), toMm(f.Height)))
		}
	}
	c.enterFrame(0)
	return nil
}

func (c *composer) finishPage() {
	if c.pg == nil {
		return
	}
	c.out.emit(c.pg)
}

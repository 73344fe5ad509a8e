package canvasrenderer

import (
	"fmt"
	"image"
	"strconv"
	"strings"

	"github.com/tdewolff/canvas"

	"github.com/ByLCY/rmlpdf/layout"
)

// gstate 是绘图指令共享的图形状态。
type gstate struct {
	fill     layout.Color
	stroke   layout.Color
	width    float64
	fontName string
	fontSize float64
	join     layout.LineJoin
	cap      layout.LineCap
	dash     []float64
}

func defaultGState() gstate {
	return gstate{
		fill:     layout.Black,
		stroke:   layout.Black,
		width:    1,
		fontName: "Helvetica",
		fontSize: 12,
	}
}

// painter 在一页上顺序执行绘图指令。
type painter struct {
	r  *Renderer
	pg *page
	gs gstate
}

func (r *Renderer) newPainter(pg *page) *painter {
	return &painter{r: r, pg: pg, gs: defaultGState()}
}

func (p *painter) run(cmds []layout.DrawCommand) error {
	for _, cmd := range cmds {
		if err := p.exec(cmd); err != nil {
			return fmt.Errorf("%s: %w", cmd.Op(), err)
		}
	}
	return nil
}

func (p *painter) exec(cmd layout.DrawCommand) error {
	ctx := p.pg.ctx
	switch c := cmd.(type) {
	case layout.DrawString:
		return p.drawString(c)
	case layout.Rect:
		p.style(c.Fill, c.Stroke)
		path := canvas.Rectangle(toMm(c.Width), toMm(c.Height))
		if c.Radius > 0 {
			path = canvas.RoundedRectangle(toMm(c.Width), toMm(c.Height), toMm(c.Radius))
		}
		ctx.DrawPath(toMm(c.X), toMm(c.Y), path)
	case layout.Ellipse:
		p.style(c.Fill, c.Stroke)
		ctx.DrawPath(toMm(c.X+c.Width/2), toMm(c.Y+c.Height/2), canvas.Ellipse(toMm(c.Width/2), toMm(c.Height/2)))
	case layout.Circle:
		p.style(c.Fill, c.Stroke)
		ctx.DrawPath(toMm(c.X), toMm(c.Y), canvas.Circle(toMm(c.Radius)))
	case layout.Lines:
		p.style(false, true)
		path := &canvas.Path{}
		for _, s := range c.Segments {
			path.MoveTo(toMm(s[0]), toMm(s[1]))
			path.LineTo(toMm(s[2]), toMm(s[3]))
		}
		ctx.DrawPath(0, 0, path)
	case layout.Curves:
		p.style(false, true)
		path := &canvas.Path{}
		for _, s := range c.Segments {
			path.MoveTo(toMm(s[0]), toMm(s[1]))
			path.CubeTo(toMm(s[2]), toMm(s[3]), toMm(s[4]), toMm(s[5]), toMm(s[6]), toMm(s[7]))
		}
		ctx.DrawPath(0, 0, path)
	case layout.Path:
		p.style(c.Fill, c.Stroke)
		path := &canvas.Path{}
		path.MoveTo(toMm(c.X), toMm(c.Y))
		for _, op := range c.Ops {
			pts := op.Points
			switch op.Op {
			case "moveTo":
				path.MoveTo(toMm(pts[0]), toMm(pts[1]))
			case "lineTo":
				path.LineTo(toMm(pts[0]), toMm(pts[1]))
			case "curveTo":
				path.CubeTo(toMm(pts[0]), toMm(pts[1]), toMm(pts[2]), toMm(pts[3]), toMm(pts[4]), toMm(pts[5]))
			}
		}
		if c.Close {
			path.Close()
		}
		ctx.DrawPath(0, 0, path)
	case layout.Grid:
		if len(c.Xs) == 0 || len(c.Ys) == 0 {
			return nil
		}
		p.style(false, true)
		path := &canvas.Path{}
		x0, x1 := c.Xs[0], c.Xs[len(c.Xs)-1]
		y0, y1 := c.Ys[0], c.Ys[len(c.Ys)-1]
		for _, x := range c.Xs {
			path.MoveTo(toMm(x), toMm(y0))
			path.LineTo(toMm(x), toMm(y1))
		}
		for _, y := range c.Ys {
			path.MoveTo(toMm(x0), toMm(y))
			path.LineTo(toMm(x1), toMm(y))
		}
		ctx.DrawPath(0, 0, path)
	case layout.DrawImage:
		if c.Data == nil {
			return fmt.Errorf("图片 %s 缺少数据", c.Source)
		}
		return drawImage(ctx, c.Data, c.X, c.Y, c.Width, c.Height)
	case layout.SetFillColor:
		p.gs.fill = c.Color
	case layout.SetStrokeColor:
		p.gs.stroke = c.Color
	case layout.SetFont:
		p.gs.fontName, p.gs.fontSize = c.Name, c.Size
	case layout.LineMode:
		if c.Width != nil {
			p.gs.width = *c.Width
		}
		if c.Join != nil {
			p.gs.join = *c.Join
		}
		if c.Cap != nil {
			p.gs.cap = *c.Cap
		}
		if c.Dash != nil {
			p.gs.dash = c.Dash
		}
	case layout.Translate:
		ctx.Translate(toMm(c.DX), toMm(c.DY))
	case layout.Rotate:
		ctx.Rotate(c.Degrees)
	case layout.Place:
		return p.place(c)
	}
	return nil
}

// style 把图形状态应用到 canvas；不填充或不描边时使用透明色。
func (p *painter) style(fill, stroke bool) {
	ctx := p.pg.ctx
	if fill {
		ctx.SetFillColor(colorFromLayout(p.gs.fill))
	} else {
		ctx.SetFillColor(colorFromLayout(layout.Transparent))
	}
	if stroke {
		ctx.SetStrokeColor(colorFromLayout(p.gs.stroke))
	} else {
		ctx.SetStrokeColor(colorFromLayout(layout.Transparent))
	}
	ctx.SetStrokeWidth(toMm(p.gs.width))
	switch p.gs.join {
	case layout.JoinRound:
		ctx.SetStrokeJoiner(canvas.RoundJoin)
	case layout.JoinBevel:
		ctx.SetStrokeJoiner(canvas.BevelJoin)
	default:
		ctx.SetStrokeJoiner(canvas.MiterJoin)
	}
	switch p.gs.cap {
	case layout.CapRound:
		ctx.SetStrokeCapper(canvas.RoundCap)
	case layout.CapSquare:
		ctx.SetStrokeCapper(canvas.SquareCap)
	default:
		ctx.SetStrokeCapper(canvas.ButtCap)
	}
	dashes := make([]float64, len(p.gs.dash))
	for i, d := range p.gs.dash {
		dashes[i] = toMm(d)
	}
	ctx.SetDashes(0, dashes...)
}

func (p *painter) drawString(c layout.DrawString) error {
	var sb strings.Builder
	for _, part := range c.Text {
		if part.PageNumber {
			sb.WriteString(strconv.Itoa(p.pg.number))
			continue
		}
		sb.WriteString(part.Text)
	}
	text := strings.Join(strings.Fields(sb.String()), " ")
	if text == "" {
		return nil
	}
	face, err := p.r.fontFace(p.gs.fontName, p.gs.fontSize, p.gs.fill, false, false)
	if err != nil {
		return err
	}
	align := canvas.Left
	switch c.Align {
	case layout.AlignCenter:
		align = canvas.Center
	case layout.AlignRight:
		align = canvas.Right
	}
	p.pg.ctx.DrawText(toMm(c.X), toMm(c.Y), canvas.NewTextLine(face, text, align))
	return nil
}

// place 把 story 自上而下排进矩形；内容高度超出矩形时失败，不做裁剪。
func (p *painter) place(c layout.Place) error {
	s, err := p.r.stack(c.Story, c.Width, p.pg.number)
	if err != nil {
		return err
	}
	used := 0.0
	for i, it := range s.items {
		before, after := it.spacing()
		if w := it.extent(); w > c.Width+1e-6 {
			return fmt.Errorf("%w: 第 %d 个元素宽度 %.1fpt 超出 %.1fpt", ErrNotEnoughSpace, i+1, w, c.Width)
		}
		if i > 0 {
			used += before
		}
		if used += it.height(); used > c.Height+1e-6 {
			return fmt.Errorf("%w: 内容高度 %.1fpt 超出 %.1fpt", ErrNotEnoughSpace, used, c.Height)
		}
		used += after
	}
	p.pg.ctx.Push()
	defer p.pg.ctx.Pop()
	return s.draw(p.pg, c.X, c.Y+c.Height)
}

// drawImage 把图片缩放到 w×h（pt）后绘制在 (x, y)。
func drawImage(ctx *canvas.Context, img image.Image, x, y, w, h float64) error {
	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return fmt.Errorf("图片尺寸无效")
	}
	ctx.Push()
	defer ctx.Pop()
	ctx.Translate(toMm(x), toMm(y))
	ctx.Scale(toMm(w)/float64(bounds.Dx()), toMm(h)/float64(bounds.Dy()))
	ctx.DrawImage(0, 0, img, canvas.DPMM(1))
	return nil
}

// drawBarcode 把模块矩阵画为黑色矩形，一行内相邻的深色模块合并为一条。
func drawBarcode(ctx *canvas.Context, bc layout.Barcode, x, y float64) {
	m := bc.Matrix
	if m.Cols == 0 || m.Rows == 0 {
		return
	}
	moduleH := bc.BarHeight / float64(m.Rows)
	ctx.SetFillColor(colorFromLayout(layout.Black))
	ctx.SetStrokeColor(colorFromLayout(layout.Transparent))
	for row := 0; row < m.Rows; row++ {
		rowY := y + bc.BarHeight - float64(row+1)*moduleH
		for col := 0; col < m.Cols; {
			if !m.At(col, row) {
				col++
				continue
			}
			start := col
			for col < m.Cols && m.At(col, row) {
				col++
			}
			w := float64(col-start) * bc.BarWidth
			ctx.DrawPath(toMm(x+float64(start)*bc.BarWidth), toMm(rowY), canvas.Rectangle(toMm(w), toMm(moduleH)))
		}
	}
}

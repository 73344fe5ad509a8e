package canvasrenderer

import (
	"fmt"

	"github.com/tdewolff/canvas"

	"github.com/ByLCY/rmlpdf/fonts"
	"github.com/ByLCY/rmlpdf/layout"
)

// fontFace 返回指定字体名、字号（pt）与颜色的字体面。
// 内置字体的粗体/斜体映射到对应字体；注册字体不区分粗斜体。
func (r *Renderer) fontFace(name string, size float64, col layout.Color, bold, italic bool) (*canvas.FontFace, error) {
	if name == "" {
		name = fonts.DefaultFace
	}
	if size <= 0 {
		size = 10
	}
	r.fontMu.Lock()
	_, registered := r.registered[name]
	r.fontMu.Unlock()
	if !registered {
		name, _ = fonts.Variant(name, bold, italic)
	}
	family, err := r.ensureFontFamily(name)
	if err != nil {
		return nil, err
	}
	return family.Face(size, colorFromLayout(col), canvas.FontRegular, canvas.FontNormal), nil
}

func (r *Renderer) ensureFontFamily(name string) (*canvas.FontFamily, error) {
	r.fontMu.Lock()
	defer r.fontMu.Unlock()

	if family, ok := r.families[name]; ok {
		return family, nil
	}
	f, ok := fonts.Builtin(name)
	if !ok {
		r.log.Warnw("unknown font, using default", "font", name, "default", fonts.DefaultFace)
		f, _ = fonts.Builtin(fonts.DefaultFace)
	}
	family := canvas.NewFontFamily(name)
	if err := family.LoadFont(f.Data, f.Index, canvas.FontRegular); err != nil {
		return nil, fmt.Errorf("加载字体 %s 失败: %w", name, err)
	}
	r.families[name] = family
	return family, nil
}

// textWidth 返回文本宽度（pt）。canvas 的度量单位为 mm。
func textWidth(face *canvas.FontFace, s string) float64 {
	if s == "" {
		return 0
	}
	return toPt(face.TextWidth(s))
}

func ascent(face *canvas.FontFace) float64 {
	return toPt(face.Metrics().Ascent)
}

package renderer

import (
	"io"

	"github.com/ByLCY/rmlpdf/fonts"
	"github.com/ByLCY/rmlpdf/layout"
)

// Renderer 将编译后的文档排版并输出为最终文件（例如 PDF）。
// 字体需在 Render 之前通过 RegisterFont 注册；Render 仅在成功时写入 w。
type Renderer interface {
	RegisterFont(f *fonts.Font) error
	Render(doc *layout.Document, w io.Writer) error
}

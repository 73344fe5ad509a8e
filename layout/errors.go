package layout

import (
	"errors"
	"fmt"

	"github.com/ByLCY/rmlpdf/dsl"
)

// 致命错误的哨兵值，调用方通过 errors.Is 判断类别。
var (
	ErrMalformedValue    = errors.New("属性值格式错误")
	ErrMissingAttribute  = errors.New("缺少必需属性")
	ErrColumnMismatch    = errors.New("列宽数量与表格列数不一致")
	ErrRowMismatch       = errors.New("行高数量与表格行数不一致")
	ErrUnknownTableStyle = errors.New("未知的表格样式")
	ErrNothingToRender   = errors.New("文档既没有 template 也没有 pageDrawing")
	ErrStructure         = errors.New("文档结构错误")
)

// elementError prefixes err with the element position.
func elementError(n *dsl.Node, err error) error {
	if n == nil {
		return err
	}
	return fmt.Errorf("第 %d 行 <%s>: %w", n.Line, n.Tag, err)
}

func requireAttr(n *dsl.Node, name string) (string, error) {
	v, ok := n.Attr(name)
	if !ok {
		return "", elementError(n, fmt.Errorf("%w: %s", ErrMissingAttribute, name))
	}
	return v, nil
}

package layout

import (
	"image"

	"go.uber.org/zap"

	"github.com/ByLCY/rmlpdf/dsl"
)

// BuildOptions 配置编译阶段所需的依赖。图片解析与条码编码由调用方注入，
// layout 包本身不依赖具体实现。
type BuildOptions struct {
	Logger   *zap.SugaredLogger
	Images   ImageResolver
	Barcodes BarcodeEncoder
}

// ImageResolver loads the image an element refers to and returns the resolved
// placement (any of width, height, x, y in points).
type ImageResolver func(n *dsl.Node) (image.Image, map[string]float64, error)

// BarcodeEncoder turns a value into a module matrix for the given symbology.
type BarcodeEncoder interface {
	Encode(code, value string) (BarcodeMatrix, error)
}

// BarcodeMatrix is a grid of dark (true) and light modules. One-dimensional
// codes have a single row.
type BarcodeMatrix struct {
	Cols int    `json:"cols"`
	Rows int    `json:"rows"`
	Bits []bool `json:"-"`
}

// At reports whether the module at (x, y) is dark.
func (m BarcodeMatrix) At(x, y int) bool {
	if x < 0 || y < 0 || x >= m.Cols || y >= m.Rows {
		return false
	}
	return m.Bits[y*m.Cols+x]
}

func (o BuildOptions) logger() *zap.SugaredLogger {
	if o.Logger == nil {
		return zap.NewNop().Sugar()
	}
	return o.Logger
}

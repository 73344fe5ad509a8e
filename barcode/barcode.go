// Package barcode 基于 speedata/barcode 实现 barCode 元素的编码能力。
package barcode

import (
	"errors"
	"fmt"
	"image/color"
	"strings"

	"github.com/speedata/barcode"
	"github.com/speedata/barcode/codabar"
	"github.com/speedata/barcode/code128"
	"github.com/speedata/barcode/code39"
	"github.com/speedata/barcode/code93"
	"github.com/speedata/barcode/ean"
	"github.com/speedata/barcode/qr"
	"github.com/speedata/barcode/twooffive"
	"go.uber.org/zap"

	"github.com/ByLCY/rmlpdf/layout"
)

// ErrUnsupportedSymbology 表示 code 属性指定的码制无法编码。
var ErrUnsupportedSymbology = errors.New("unsupported barcode type")

const (
	barcodeEAN int = iota
	barcodeCode128
	barcodeQR
	barcodeCodabar
	barcodeCode39
	barcodeCode39Extended
	barcodeCode93
	barcodeCode93Extended
	barcodeI2of5
)

// symbologies 的键为小写的 code 属性值。
var symbologies = map[string]int{
	"code128":    barcodeCode128,
	"ean13":      barcodeEAN,
	"ean8":       barcodeEAN,
	"ean":        barcodeEAN,
	"qr":         barcodeQR,
	"qrcode":     barcodeQR,
	"codabar":    barcodeCodabar,
	"standard39": barcodeCode39,
	"code39":     barcodeCode39,
	"extended39": barcodeCode39Extended,
	"standard93": barcodeCode93,
	"code93":     barcodeCode93,
	"extended93": barcodeCode93Extended,
	"i2of5":      barcodeI2of5,
}

// Encoder 把条码值编码为模块矩阵，实现 layout.BarcodeEncoder。
type Encoder struct {
	Logger *zap.SugaredLogger
	// QRLevel 是二维码纠错等级，零值为 L，New 默认使用 M。
	QRLevel qr.ErrorCorrectionLevel
}

// New 返回使用 M 级纠错的编码器。
func New(logger *zap.SugaredLogger) *Encoder {
	return &Encoder{Logger: logger, QRLevel: qr.M}
}

// Encode 按 code 选择码制。code11、msi、fim、postnet 等没有编码器的码制
// 返回 ErrUnsupportedSymbology。
func (e *Encoder) Encode(code, value string) (layout.BarcodeMatrix, error) {
	if value == "" {
		return layout.BarcodeMatrix{}, fmt.Errorf("条码内容为空")
	}
	typ, ok := symbologies[code]
	if !ok {
		e.logger().Warnw("unsupported barcode type", "code", code)
		return layout.BarcodeMatrix{}, fmt.Errorf("%w: %q", ErrUnsupportedSymbology, code)
	}
	var (
		bc  barcode.Barcode
		err error
	)
	switch typ {
	case barcodeEAN:
		bc, err = ean.Encode(value)
	case barcodeCode128:
		bc, err = code128.Encode(value)
	case barcodeQR:
		bc, err = qr.Encode(value, e.QRLevel, qr.Auto)
	case barcodeCodabar:
		bc, err = codabar.Encode(codabarFrame(value))
	case barcodeCode39, barcodeCode39Extended:
		bc, err = code39.Encode(value, true, typ == barcodeCode39Extended)
	case barcodeCode93, barcodeCode93Extended:
		bc, err = code93.Encode(value, true, typ == barcodeCode93Extended)
	case barcodeI2of5:
		bc, err = twooffive.Encode(value, true)
	}
	if err != nil {
		return layout.BarcodeMatrix{}, fmt.Errorf("%s: %w", code, err)
	}
	if typ == barcodeQR {
		return matrix(bc, bc.Bounds().Dy()), nil
	}
	return matrix(bc, 1), nil
}

// codabarFrame 在缺少起止符时补上 A...B。
func codabarFrame(value string) string {
	stops := "ABCDabcd"
	if len(value) >= 2 && strings.ContainsRune(stops, rune(value[0])) && strings.ContainsRune(stops, rune(value[len(value)-1])) {
		return strings.ToUpper(value)
	}
	return "A" + value + "B"
}

// matrix 逐模块读取条码图像；一维码只取第一行。
func matrix(bc barcode.Barcode, rows int) layout.BarcodeMatrix {
	b := bc.Bounds()
	m := layout.BarcodeMatrix{Cols: b.Dx(), Rows: rows, Bits: make([]bool, b.Dx()*rows)}
	for y := 0; y < rows; y++ {
		for x := 0; x < m.Cols; x++ {
			m.Bits[y*m.Cols+x] = dark(bc.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return m
}

func dark(c color.Color) bool {
	return color.GrayModel.Convert(c).(color.Gray).Y < 0x80
}

func (e *Encoder) logger() *zap.SugaredLogger {
	if e.Logger == nil {
		return zap.NewNop().Sugar()
	}
	return e.Logger
}

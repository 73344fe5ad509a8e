package rml

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/ByLCY/rmlpdf/barcode"
	"github.com/ByLCY/rmlpdf/fonts"
	"github.com/ByLCY/rmlpdf/layout"
	canvasrenderer "github.com/ByLCY/rmlpdf/renderer/canvas"
)

const fullPageTemplate = `<template pageSize="A4">
  <pageTemplate id="main"><frame id="body" x1="0" y1="0" width="21cm" height="29.7cm"/></pageTemplate>
</template>`

func convert(t *testing.T, src string, opts Options) ([]byte, error) {
	t.Helper()
	var out bytes.Buffer
	err := Convert(strings.NewReader(src), &out, opts)
	return out.Bytes(), err
}

func observed() (*zap.SugaredLogger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.WarnLevel)
	return zap.New(core).Sugar(), logs
}

// 场景 A
func TestConvertHello(t *testing.T) {
	pdf, err := convert(t, `<document filename="a.pdf">`+fullPageTemplate+`<story><para style="Normal">Hello</para></story></document>`, Options{})
	if err != nil {
		t.Fatalf("转换失败: %v", err)
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF-")) {
		t.Fatalf("输出不是 PDF")
	}
}

// 场景 C
func TestConvertMissingStyleWarns(t *testing.T) {
	logger, logs := observed()
	_, err := convert(t, `<document>`+fullPageTemplate+`<story><para style="Missing">x</para></story></document>`, Options{Logger: logger})
	if err != nil {
		t.Fatalf("缺失样式不应导致失败: %v", err)
	}
	if logs.Len() == 0 {
		t.Fatalf("缺失样式应记录警告")
	}
}

// 场景 D
func TestConvertPlaceOverflow(t *testing.T) {
	pdf, err := convert(t, `<document><pageDrawing>
  <place x="10" y="10" width="40" height="10"><para>`+strings.Repeat("overflowing text ", 20)+`</para></place>
</pageDrawing></document>`, Options{})
	if !errors.Is(err, canvasrenderer.ErrNotEnoughSpace) {
		t.Fatalf("期望 ErrNotEnoughSpace，实际 %v", err)
	}
	if len(pdf) != 0 {
		t.Fatalf("失败时不应输出内容")
	}

	_, err = convert(t, `<document><pageDrawing>
  <place x="10" y="10" width="60" height="100"><blockTable colWidths="150,150"><tr><td>a</td><td>b</td></tr></blockTable></place>
</pageDrawing></document>`, Options{})
	if !errors.Is(err, canvasrenderer.ErrNotEnoughSpace) {
		t.Fatalf("表格比 place 宽时期望 ErrNotEnoughSpace，实际 %v", err)
	}
}

// 场景 E
func TestConvertNothingToRender(t *testing.T) {
	if _, err := convert(t, `<document><stylesheet/></document>`, Options{}); !errors.Is(err, layout.ErrNothingToRender) {
		t.Fatalf("期望 ErrNothingToRender，实际 %v", err)
	}
	if _, err := convert(t, `<document><story>`, Options{}); err == nil {
		t.Fatalf("XML 格式错误应报错")
	}
}

func TestConvertDrawingWithFontsImagesAndBarcode(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "Vera.ttf"), goregular.TTF, 0o644); err != nil {
		t.Fatalf("写入字体失败: %v", err)
	}
	var img bytes.Buffer
	if err := png.Encode(&img, image.NewGray(image.Rect(0, 0, 10, 5))); err != nil {
		t.Fatalf("编码图片失败: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "logo.png"), img.Bytes(), 0o644); err != nil {
		t.Fatalf("写入图片失败: %v", err)
	}
	logger, logs := observed()
	cache := fonts.NewCache()
	opts := Options{
		Logger:       logger,
		Cache:        cache,
		FontDirs:     []string{dir},
		ResourceDirs: []string{dir},
		Barcodes:     barcode.New(logger),
	}
	src := `<document>
<docinit>
  <registerTTFont faceName="Vera" fileName="Vera.ttf"/>
  <registerCidFont faceName="HeiseiMin-W3"/>
</docinit>
<pageDrawing>
  <setFont name="Vera" size="12"/>
  <drawString x="72" y="700">Registered font</drawString>
  <image file="logo.png" x="72" y="600" width="100"/>
  <place x="72" y="100" width="300" height="200"><barCode code="qr">rmlpdf</barCode></place>
</pageDrawing></document>`
	pdf, err := convert(t, src, opts)
	if err != nil {
		t.Fatalf("转换失败: %v", err)
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF-")) {
		t.Fatalf("输出不是 PDF")
	}
	if cache.Len() != 1 {
		t.Fatalf("TTF 字体应进入缓存，实际 %d 项", cache.Len())
	}
	if logs.FilterMessageSnippet("CID font not found").Len() != 1 {
		t.Fatalf("找不到的 CID 字体应跳过并警告")
	}

	// 第二次转换复用缓存中的字体。
	if _, err := convert(t, src, opts); err != nil {
		t.Fatalf("第二次转换失败: %v", err)
	}
	if cache.Len() != 1 {
		t.Fatalf("缓存应只有一项，实际 %d", cache.Len())
	}
}

func TestConvertMissingTTFont(t *testing.T) {
	_, err := convert(t, `<document><docinit><registerTTFont faceName="X" fileName="missing.ttf"/></docinit><pageDrawing/></document>`, Options{})
	if !errors.Is(err, fonts.ErrFontNotFound) {
		t.Fatalf("期望 ErrFontNotFound，实际 %v", err)
	}
}

func TestConvertWithData(t *testing.T) {
	var captured []string
	opts := Options{
		Data:  map[string]any{"who": "R&D"},
		Debug: filepath.Join(t.TempDir(), "debug.json"),
	}
	opts.FontResolver = func(kind string, params map[string]any) (*fonts.Font, error) {
		captured = append(captured, params["faceName"].(string))
		return nil, nil
	}
	_, err := convert(t, `<document><docinit><registerCidFont faceName="${who}"/></docinit>`+fullPageTemplate+`<story><para>Hello ${who}</para></story></document>`, opts)
	if err != nil {
		t.Fatalf("转换失败: %v", err)
	}
	if len(captured) != 1 || captured[0] != "R&D" {
		t.Fatalf("数据应在解析前插入并转义: %v", captured)
	}
	debug, err := os.ReadFile(opts.Debug)
	if err != nil {
		t.Fatalf("应写出调试 JSON: %v", err)
	}
	if !bytes.Contains(debug, []byte(`Hello R\u0026D`)) {
		t.Fatalf("调试 JSON 应包含插入后的文本: %s", debug)
	}
}

func TestConvertFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.rml")
	out := filepath.Join(dir, "out", "doc.pdf")
	if err := os.WriteFile(in, []byte(`<document>`+fullPageTemplate+`<story><para>ok</para></story></document>`), 0o644); err != nil {
		t.Fatalf("写入失败: %v", err)
	}
	if err := ConvertFile(in, out, Options{}); err != nil {
		t.Fatalf("转换失败: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil || !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Fatalf("输出文件不是 PDF: %v", err)
	}

	if err := os.WriteFile(in, []byte(`<document/>`), 0o644); err != nil {
		t.Fatalf("写入失败: %v", err)
	}
	bad := filepath.Join(dir, "bad.pdf")
	if err := ConvertFile(in, bad, Options{}); err == nil {
		t.Fatalf("空文档应报错")
	}
	if _, err := os.Stat(bad); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("失败时应删除输出文件")
	}
	if err := ConvertFile(filepath.Join(dir, "none.rml"), bad, Options{}); err == nil {
		t.Fatalf("输入不存在应报错")
	}
}

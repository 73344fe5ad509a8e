package images

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/ByLCY/rmlpdf/dsl"
	"github.com/ByLCY/rmlpdf/layout"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.Black)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("编码 PNG 失败: %v", err)
	}
	return buf.Bytes()
}

func imageNode(t *testing.T, attrs string) *dsl.Node {
	t.Helper()
	doc, err := dsl.ParseString(`<image ` + attrs + `/>`)
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	return doc.Root
}

func TestFit(t *testing.T) {
	cases := []struct {
		name      string
		placement map[string]float64
		w, h      float64
	}{
		{"natural", map[string]float64{}, 200, 100},
		{"width only", map[string]float64{"width": 50}, 50, 25},
		{"height only", map[string]float64{"height": 50}, 100, 50},
		{"fit wide box", map[string]float64{"width": 400, "height": 50}, 100, 50},
		{"fit tall box", map[string]float64{"width": 40, "height": 500}, 40, 20},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, h := Fit(200, 100, tc.placement)
			if math.Abs(w-tc.w) > 1e-9 || math.Abs(h-tc.h) > 1e-9 {
				t.Fatalf("期望 %gx%g，实际 %gx%g", tc.w, tc.h, w, h)
			}
		})
	}
}

func TestResolveFromDirs(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "logo.png"), pngBytes(t, 20, 10), 0o644); err != nil {
		t.Fatalf("写入图片失败: %v", err)
	}
	r := &Resolver{Dirs: []string{filepath.Join(dir, "missing"), dir}}
	img, placement, err := r.Resolve(imageNode(t, `file="logo.png" width="1cm" x="5" y="6"`))
	if err != nil {
		t.Fatalf("解析图片失败: %v", err)
	}
	if img.Bounds().Dx() != 20 {
		t.Fatalf("图片尺寸不符: %v", img.Bounds())
	}
	cm := 72 / 2.54
	if math.Abs(placement["width"]-cm) > 1e-6 || math.Abs(placement["height"]-cm/2) > 1e-6 {
		t.Fatalf("应按比例补全高度: %v", placement)
	}
	if placement["x"] != 5 || placement["y"] != 6 {
		t.Fatalf("位置不符: %v", placement)
	}
}

func TestResolveErrors(t *testing.T) {
	r := &Resolver{}
	if _, _, err := r.Resolve(imageNode(t, `width="10"`)); !errors.Is(err, layout.ErrMissingAttribute) {
		t.Fatalf("缺少 file 应报 ErrMissingAttribute，实际 %v", err)
	}
	if _, _, err := r.Resolve(imageNode(t, `file="nope.png"`)); !errors.Is(err, ErrImageNotFound) {
		t.Fatalf("期望 ErrImageNotFound，实际 %v", err)
	}

	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.png")
	if err := os.WriteFile(bad, []byte("not an image"), 0o644); err != nil {
		t.Fatalf("写入失败: %v", err)
	}
	if _, _, err := r.Resolve(imageNode(t, `file="`+bad+`"`)); err == nil {
		t.Fatalf("无法解码的文件应报错")
	}

	good := filepath.Join(dir, "good.png")
	if err := os.WriteFile(good, pngBytes(t, 4, 4), 0o644); err != nil {
		t.Fatalf("写入失败: %v", err)
	}
	if _, _, err := r.Resolve(imageNode(t, `file="`+good+`" width="abc"`)); !errors.Is(err, layout.ErrMalformedValue) {
		t.Fatalf("非法长度应报 ErrMalformedValue，实际 %v", err)
	}
}

func TestResolveHTTP(t *testing.T) {
	data := pngBytes(t, 8, 16)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/img.png" {
			http.NotFound(w, req)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(data)
	}))
	defer srv.Close()

	r := &Resolver{Client: srv.Client()}
	img, placement, err := r.Resolve(imageNode(t, `file="`+srv.URL+`/img.png" height="32"`))
	if err != nil {
		t.Fatalf("下载图片失败: %v", err)
	}
	if img.Bounds().Dy() != 16 || placement["width"] != 16 || placement["height"] != 32 {
		t.Fatalf("结果不符: %v %v", img.Bounds(), placement)
	}
	if _, _, err := r.Resolve(imageNode(t, `file="`+srv.URL+`/missing.png"`)); !errors.Is(err, ErrImageNotFound) {
		t.Fatalf("404 应报 ErrImageNotFound，实际 %v", err)
	}
}

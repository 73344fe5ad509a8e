// Package images 提供默认的图片解析器：按 file 属性从本地目录或 http(s) 地址读取图片，
// 并根据 width/height/x/y 属性计算放置尺寸。
package images

import (
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	// 注册标准库与 x/image 提供的解码器
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/ByLCY/rmlpdf/dsl"
	"github.com/ByLCY/rmlpdf/layout"
)

// ErrImageNotFound 表示在所有搜索目录中都找不到图片文件。
var ErrImageNotFound = errors.New("image not found")

// Resolver 是默认的图片解析器。
type Resolver struct {
	// Dirs 是相对路径的搜索目录，按顺序尝试；为空时只使用工作目录。
	Dirs []string
	// Client 用于 http(s) 图片；nil 时使用 http.DefaultClient。
	Client *http.Client
	Logger *zap.SugaredLogger
}

// Func 返回可直接放进 layout.BuildOptions 的解析函数。
func (r *Resolver) Func() layout.ImageResolver {
	return r.Resolve
}

// Resolve 读取元素的 file 属性指向的图片，返回图片和放置参数（单位 pt）。
func (r *Resolver) Resolve(n *dsl.Node) (image.Image, map[string]float64, error) {
	src, ok := n.Attr("file")
	if !ok || strings.TrimSpace(src) == "" {
		return nil, nil, fmt.Errorf("%w: file", layout.ErrMissingAttribute)
	}
	img, err := r.open(strings.TrimSpace(src))
	if err != nil {
		return nil, nil, err
	}
	placement := map[string]float64{}
	for _, key := range []string{"width", "height", "x", "y"} {
		raw, ok := n.Attr(key)
		if !ok {
			continue
		}
		v, err := layout.ParseLength(raw)
		if err != nil {
			return nil, nil, fmt.Errorf("图片属性 %s: %w", key, err)
		}
		placement[key] = v
	}
	w, h := Fit(img.Bounds().Dx(), img.Bounds().Dy(), placement)
	placement["width"], placement["height"] = w, h
	return img, placement, nil
}

// Fit 根据图片像素尺寸补全放置尺寸：
// 只给宽或高时按比例补另一边；都给时在保持比例的前提下放进该矩形；都不给时使用像素尺寸。
func Fit(px, py int, placement map[string]float64) (float64, float64) {
	sx, sy := float64(px), float64(py)
	w, hasW := placement["width"]
	h, hasH := placement["height"]
	if sx <= 0 || sy <= 0 {
		return w, h
	}
	switch {
	case hasW && hasH:
		scale := min(w/sx, h/sy)
		return sx * scale, sy * scale
	case hasW:
		return w, sy * w / sx
	case hasH:
		return sx * h / sy, h
	default:
		return sx, sy
	}
}

func (r *Resolver) open(src string) (image.Image, error) {
	if u, err := url.Parse(src); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return r.fetch(src)
	}
	path, err := r.find(src)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开图片 %s: %w", path, err)
	}
	defer f.Close()
	return decode(f, src)
}

func (r *Resolver) fetch(src string) (image.Image, error) {
	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	r.logger().Debugw("fetch image", "url", src)
	resp, err := client.Get(src)
	if err != nil {
		return nil, fmt.Errorf("下载图片 %s: %w", src, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("下载图片 %s: %w (HTTP %d)", src, ErrImageNotFound, resp.StatusCode)
	}
	return decode(resp.Body, src)
}

// find 先尝试原路径，相对路径再依次在 Dirs 中查找。
func (r *Resolver) find(name string) (string, error) {
	candidates := []string{name}
	if !filepath.IsAbs(name) {
		for _, dir := range r.Dirs {
			candidates = append(candidates, filepath.Join(dir, name))
		}
	}
	for _, c := range candidates {
		if st, err := os.Stat(c); err == nil && st.Mode().IsRegular() {
			r.logger().Debugw("file lookup", "src", name, "found", c)
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrImageNotFound, name)
}

func decode(rd io.Reader, src string) (image.Image, error) {
	img, _, err := image.Decode(rd)
	if err != nil {
		return nil, fmt.Errorf("解码图片 %s: %w", src, err)
	}
	return img, nil
}

func (r *Resolver) logger() *zap.SugaredLogger {
	if r.Logger == nil {
		return zap.NewNop().Sugar()
	}
	return r.Logger
}

// Package rml 串联 RML 文档的解析、字体注册、编译与渲染。
package rml

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/ByLCY/rmlpdf/binding"
	"github.com/ByLCY/rmlpdf/dsl"
	"github.com/ByLCY/rmlpdf/fonts"
	"github.com/ByLCY/rmlpdf/images"
	"github.com/ByLCY/rmlpdf/layout"
	"github.com/ByLCY/rmlpdf/renderer"
	canvasrenderer "github.com/ByLCY/rmlpdf/renderer/canvas"
)

// FontResolver 处理 docinit 中的一条字体注册请求；返回 nil 字体表示跳过。
type FontResolver func(kind string, params map[string]any) (*fonts.Font, error)

// Options 控制一次转换。零值可用：没有字体目录、图片只按工作目录查找、不支持条码。
type Options struct {
	Logger *zap.SugaredLogger
	// Cache 是跨转换共享的字体缓存；nil 时每次转换使用新的缓存。
	Cache *fonts.Cache
	// FontDirs 与 ResourceDirs 只在未指定 FontResolver / Images 时用于构造默认解析器。
	FontDirs     []string
	ResourceDirs []string
	FontResolver FontResolver
	Images       layout.ImageResolver
	Barcodes     layout.BarcodeEncoder
	// Data 非空时先把它插入 RML 文本中的 ${path} 占位符。
	Data any
	// Debug 非空时把编译后的文档模型写成 JSON。
	Debug string
}

func (o Options) logger() *zap.SugaredLogger {
	if o.Logger == nil {
		return zap.NewNop().Sugar()
	}
	return o.Logger
}

func (o Options) fontResolver() FontResolver {
	if o.FontResolver != nil {
		return o.FontResolver
	}
	cache := o.Cache
	if cache == nil {
		cache = fonts.NewCache()
	}
	res := &fonts.Resolver{Dirs: o.FontDirs, Cache: cache, Logger: o.Logger}
	return res.Resolve
}

func (o Options) images() layout.ImageResolver {
	if o.Images != nil {
		return o.Images
	}
	res := &images.Resolver{Dirs: o.ResourceDirs, Logger: o.Logger}
	return res.Func()
}

// Convert 读取 RML 并把 PDF 写入 w。出错时 w 不会收到任何内容。
func Convert(r io.Reader, w io.Writer, opts Options) error {
	log := opts.logger()
	if opts.Data != nil {
		src, err := io.ReadAll(r)
		if err != nil {
			return fmt.Errorf("读取 RML 失败: %w", err)
		}
		r = bytes.NewReader([]byte(binding.Interpolate(string(src), opts.Data)))
	}
	tree, err := dsl.Parse(r)
	if err != nil {
		return err
	}

	rend := canvasrenderer.New(canvasrenderer.Options{Logger: opts.Logger})
	if err := registerFonts(tree, rend, opts.fontResolver(), log); err != nil {
		return err
	}

	doc, err := layout.Compile(tree, layout.BuildOptions{
		Logger:   opts.Logger,
		Images:   opts.images(),
		Barcodes: opts.Barcodes,
	})
	if err != nil {
		return fmt.Errorf("编译 RML 失败: %w", err)
	}
	if opts.Debug != "" {
		if err := layout.WriteDebugJSON(doc, opts.Debug); err != nil {
			return err
		}
	}
	log.Debugw("document compiled", "mode", doc.Mode, "story", len(doc.Story), "drawing", len(doc.Drawing))

	if err := rend.Render(doc, w); err != nil {
		return fmt.Errorf("渲染 PDF 失败: %w", err)
	}
	return nil
}

// registerFonts 在编译之前处理 docinit 中的字体注册。
func registerFonts(tree *dsl.Document, rend renderer.Renderer, resolve FontResolver, log *zap.SugaredLogger) error {
	directives, err := layout.FontDirectives(tree.Root)
	if err != nil {
		return err
	}
	for _, d := range directives {
		f, err := resolve(d.Kind, d.Params)
		if err != nil {
			return fmt.Errorf("第 %d 行注册字体失败: %w", d.Line, err)
		}
		if f == nil {
			log.Debugw("font registration skipped", "kind", d.Kind, "line", d.Line)
			continue
		}
		if err := rend.RegisterFont(f); err != nil {
			return fmt.Errorf("第 %d 行注册字体失败: %w", d.Line, err)
		}
	}
	return nil
}

// ConvertFile 转换 in 并写入 out。失败时删除已创建的输出文件。
func ConvertFile(in, out string, opts Options) (err error) {
	src, err := os.Open(in)
	if err != nil {
		return fmt.Errorf("无法打开 RML 文件 %s: %w", in, err)
	}
	defer src.Close()

	if dir := filepath.Dir(out); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("创建输出目录失败: %w", err)
		}
	}
	dst, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("创建输出文件失败: %w", err)
	}
	defer func() {
		if cerr := dst.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("关闭输出文件失败: %w", cerr)
		}
		if err != nil {
			if rerr := os.Remove(out); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
				opts.logger().Warnw("remove partial output failed", "file", out, "error", rerr)
			}
		}
	}()
	return Convert(src, dst, opts)
}

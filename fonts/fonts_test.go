package fonts

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/image/font/gofont/goregular"
)

func TestBuiltinNames(t *testing.T) {
	for _, name := range []string{"Helvetica", "helvetica-bold", "Times", "Courier-BoldOblique", "ZapfDingbats"} {
		f, ok := Builtin(name)
		if !ok || len(f.Data) == 0 {
			t.Fatalf("%s 应为内置字体", name)
		}
	}
	if _, ok := Builtin("Comic Sans"); ok {
		t.Fatalf("未知字体不应命中")
	}
	if len(BuiltinNames()) != 14 {
		t.Fatalf("内置字体应为 14 种，实际 %d", len(BuiltinNames()))
	}
}

func TestVariant(t *testing.T) {
	cases := []struct {
		name         string
		bold, italic bool
		want         string
	}{
		{"Helvetica", true, false, "Helvetica-Bold"},
		{"Helvetica-Bold", false, true, "Helvetica-BoldOblique"},
		{"Times-Roman", false, true, "Times-Italic"},
		{"courier", false, false, "Courier"},
	}
	for _, c := range cases {
		got, ok := Variant(c.name, c.bold, c.italic)
		if !ok || got != c.want {
			t.Fatalf("%s b=%v i=%v: 期望 %s，实际 %s", c.name, c.bold, c.italic, c.want, got)
		}
	}
	if got, ok := Variant("MyFace", true, true); ok || got != "MyFace" {
		t.Fatalf("非内置字体应原样返回")
	}
}

func writeFont(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, goregular.TTF, 0o644); err != nil {
		t.Fatalf("写入字体失败: %v", err)
	}
	return path
}

func TestCacheLoadsOnce(t *testing.T) {
	dir := t.TempDir()
	path := writeFont(t, dir, "a.ttf")
	cache := NewCache()

	var wg sync.WaitGroup
	results := make([]*Font, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			f, err := cache.Load("A", path, 0)
			if err != nil {
				t.Errorf("加载失败: %v", err)
				return
			}
			results[i] = f
		}(i)
	}
	wg.Wait()
	for _, f := range results[1:] {
		if f != results[0] {
			t.Fatalf("同一键应返回同一对象")
		}
	}
	if cache.Len() != 1 {
		t.Fatalf("缓存条目应为 1，实际 %d", cache.Len())
	}
	if _, err := cache.Load("A", path+".missing", 0); err == nil {
		t.Fatalf("缺失文件应报错")
	}
}

func TestResolverTTFont(t *testing.T) {
	dir := t.TempDir()
	writeFont(t, dir, "Vera.ttf")
	r := &Resolver{Dirs: []string{dir}, Cache: NewCache()}

	f, err := r.Resolve(KindTTF, map[string]any{"faceName": "Vera", "fileName": "Vera", "subfontIndex": "0"})
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if f.Name != "Vera" || filepath.Base(f.File) != "Vera.ttf" {
		t.Fatalf("字体不符: %+v", f)
	}
	if _, err := r.Resolve(KindTTF, map[string]any{"faceName": "X", "fileName": "nope.ttf"}); !errors.Is(err, ErrFontNotFound) {
		t.Fatalf("期望 ErrFontNotFound，实际 %v", err)
	}
	if _, err := r.Resolve(KindTTF, map[string]any{"faceName": "X"}); err == nil {
		t.Fatalf("缺少 fileName 应报错")
	}
	if _, err := r.Resolve("Type1", map[string]any{"faceName": "X"}); err == nil {
		t.Fatalf("未知类型应报错")
	}
}

func TestResolverMissingCIDFontIsSkipped(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	r := &Resolver{Logger: zap.New(core).Sugar()}
	f, err := r.Resolve(KindCID, map[string]any{"faceName": "STSong-Light"})
	if err != nil || f != nil {
		t.Fatalf("缺失的 CID 字体应跳过: %v %v", f, err)
	}
	if logs.FilterMessageSnippet("CID font not found").Len() != 1 {
		t.Fatalf("应记录一条警告")
	}
}

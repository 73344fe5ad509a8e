package fonts

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
)

// 字体注册指令的种类。
const (
	KindCID = "UnicodeCIDFont"
	KindTTF = "TTFont"
)

var ErrFontNotFound = errors.New("font not found")

var fontExtensions = []string{"", ".ttf", ".otf", ".ttc"}

// Resolver 是默认的字体解析器：在字体目录中查找文件并经 Cache 复用。
type Resolver struct {
	Dirs   []string
	Cache  *Cache
	Logger *zap.SugaredLogger
}

type fontParams struct {
	FaceName     string `mapstructure:"faceName"`
	FileName     string `mapstructure:"fileName"`
	SubfontIndex int    `mapstructure:"subfontIndex"`
}

// Resolve 处理一条字体注册请求。返回 nil 字体表示跳过注册。
func (r *Resolver) Resolve(kind string, params map[string]any) (*Font, error) {
	var p fontParams
	if err := mapstructure.WeakDecode(params, &p); err != nil {
		return nil, fmt.Errorf("解析字体参数失败: %w", err)
	}
	if p.FaceName == "" {
		return nil, fmt.Errorf("%s 缺少 faceName", kind)
	}
	switch kind {
	case KindCID:
		// CID 字体按名字在字体目录中查找，找不到时跳过。
		path, ok := r.find(p.FaceName)
		if !ok {
			r.logger().Warnw("CID font not found, registration skipped", "face", p.FaceName)
			return nil, nil
		}
		return r.Cache.Load(p.FaceName, path, 0)
	case KindTTF:
		if p.FileName == "" {
			return nil, fmt.Errorf("%s %s 缺少 fileName", kind, p.FaceName)
		}
		path, ok := r.find(p.FileName)
		if !ok {
			return nil, fmt.Errorf("%w: %s (%s)", ErrFontNotFound, p.FileName, p.FaceName)
		}
		return r.Cache.Load(p.FaceName, path, p.SubfontIndex)
	default:
		return nil, fmt.Errorf("未知的字体类型 %q", kind)
	}
}

// find 依次尝试原路径与各字体目录，允许省略扩展名。
func (r *Resolver) find(name string) (string, bool) {
	candidates := []string{name}
	if !filepath.IsAbs(name) {
		for _, dir := range r.Dirs {
			candidates = append(candidates, filepath.Join(dir, name))
		}
	}
	for _, base := range candidates {
		for _, ext := range fontExtensions {
			path := base + ext
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path, true
			}
		}
	}
	return "", false
}

func (r *Resolver) logger() *zap.SugaredLogger {
	if r.Logger == nil {
		return zap.NewNop().Sugar()
	}
	return r.Logger
}

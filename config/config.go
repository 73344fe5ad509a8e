// Package config 读取 rmlpdf 的 TOML 配置文件。
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/pelletier/go-toml/v2"
)

// DefaultListen 是 serve 命令的默认监听地址。
const DefaultListen = "127.0.0.1:8080"

// Config 描述一次运行所需的搜索目录与服务参数。
type Config struct {
	// FontDirs 是 TTF/CID 字体的搜索目录。
	FontDirs []string `toml:"font_dirs"`
	// ResourceDirs 是图片等资源的搜索目录，每个目录下的 fonts 子目录同时加入字体目录。
	ResourceDirs []string `toml:"resource_dirs"`
	// TemplateDir 是 serve 命令查找 RML 模板的目录。
	TemplateDir string `toml:"template_dir"`
	Workers     int    `toml:"workers"`
	Listen      string `toml:"listen"`
	Verbose     bool   `toml:"verbose"`
}

// Default 返回没有配置文件时使用的配置。
func Default() *Config {
	return &Config{
		TemplateDir: ".",
		Workers:     runtime.NumCPU(),
		Listen:      DefaultListen,
	}
}

// Load 读取 path 指向的 TOML 文件，未出现的字段保持默认值；出现未知字段时报错。
// 配置中的相对目录以配置文件所在目录为基准。
func Load(path string) (*Config, error) {
	cfg := Default()
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开配置文件: %w", err)
	}
	defer f.Close()

	dec := toml.NewDecoder(f).DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, fmt.Errorf("配置文件 %s: %s", path, strict.String())
		}
		return nil, fmt.Errorf("配置文件 %s: %w", path, err)
	}
	cfg.resolve(filepath.Dir(path))
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Listen == "" {
		cfg.Listen = DefaultListen
	}
	return cfg, nil
}

func (c *Config) resolve(base string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	for i, d := range c.FontDirs {
		c.FontDirs[i] = abs(d)
	}
	for i, d := range c.ResourceDirs {
		c.ResourceDirs[i] = abs(d)
	}
	c.TemplateDir = abs(c.TemplateDir)
}

// AllFontDirs 返回字体目录加上每个资源目录下的 fonts 子目录。
func (c *Config) AllFontDirs() []string {
	dirs := append([]string(nil), c.FontDirs...)
	for _, d := range c.ResourceDirs {
		dirs = append(dirs, filepath.Join(d, "fonts"))
	}
	return dirs
}

// Package server 把模板目录中的 RML 模板以 HTTP 接口提供为 PDF 下载。
//
//	GET  /pdf/{template}?key=value&pdf_name=x.pdf&download=0
//	POST /pdf/{template}   JSON 请求体作为绑定数据
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ByLCY/rmlpdf/rml"
)

const maxBody = 4 << 20

// Server 处理 PDF 请求。Options 在每次请求时复制使用，其中的字体缓存被所有请求共享。
type Server struct {
	TemplateDir string
	Options     rml.Options
	Logger      *zap.SugaredLogger
}

// Handler 返回路由好的 http.Handler。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /pdf/{template...}", s.handlePDF)
	mux.HandleFunc("POST /pdf/{template...}", s.handlePDF)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// ListenAndServe 在 addr 上提供服务，直到 ctx 结束后优雅退出。
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.logger().Infow("listening", "addr", addr, "templates", s.TemplateDir)
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handlePDF(w http.ResponseWriter, req *http.Request) {
	log := s.logger()
	name := req.PathValue("template")
	file, err := s.templatePath(name)
	if err != nil {
		http.Error(w, html.EscapeString(err.Error()), http.StatusNotFound)
		return
	}

	params, err := requestData(req)
	if err != nil {
		http.Error(w, html.EscapeString(err.Error()), http.StatusBadRequest)
		return
	}
	pdfName := pdfFilename(name, params)
	download := true
	if v, ok := params["download"].(string); ok {
		download = v != "0" && v != "false"
		delete(params, "download")
	}

	src, err := os.Open(file)
	if err != nil {
		http.Error(w, html.EscapeString(err.Error()), http.StatusNotFound)
		return
	}
	defer src.Close()

	opts := s.Options
	opts.Data = params
	var buf bytes.Buffer
	if err := rml.Convert(src, &buf, opts); err != nil {
		log.Errorw("convert failed", "template", name, "error", err)
		http.Error(w, html.EscapeString(err.Error()), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	if download {
		w.Header().Set("Content-Disposition", "attachment; filename="+pdfName)
	}
	if _, err := buf.WriteTo(w); err != nil {
		log.Warnw("write response failed", "template", name, "error", err)
		return
	}
	log.Debugw("pdf served", "template", name, "pdf_name", pdfName)
}

// templatePath 把请求中的模板名映射到模板目录内的文件，不允许越出该目录。
func (s *Server) templatePath(name string) (string, error) {
	if name == "" || !filepath.IsLocal(name) {
		return "", fmt.Errorf("无效的模板名 %q", name)
	}
	file := filepath.Join(s.TemplateDir, filepath.FromSlash(name))
	st, err := os.Stat(file)
	if err != nil {
		return "", fmt.Errorf("模板 %s 不存在", name)
	}
	if st.IsDir() {
		return "", fmt.Errorf("模板 %s 不是文件", name)
	}
	return file, nil
}

// requestData 合并查询参数与 POST 的 JSON 对象，JSON 中的同名键优先。
func requestData(req *http.Request) (map[string]any, error) {
	params := map[string]any{}
	for k, v := range req.URL.Query() {
		if len(v) == 1 {
			params[k] = v[0]
			continue
		}
		list := make([]any, len(v))
		for i, s := range v {
			list[i] = s
		}
		params[k] = list
	}
	if req.Method != http.MethodPost || req.Body == nil {
		return params, nil
	}
	var body map[string]any
	dec := json.NewDecoder(http.MaxBytesReader(nil, req.Body, maxBody))
	if err := dec.Decode(&body); err != nil {
		if errors.Is(err, io.EOF) {
			return params, nil
		}
		return nil, fmt.Errorf("解析 JSON 请求体失败: %w", err)
	}
	for k, v := range body {
		params[k] = v
	}
	return params, nil
}

// pdfFilename 取 pdf_name 参数，否则用模板名去掉扩展名；两者都没有时为 download.pdf。
// 结果同时写回 params，模板中可以引用 ${pdf_name}。
func pdfFilename(template string, params map[string]any) string {
	name, _ := params["pdf_name"].(string)
	if name == "" {
		base := path.Base(template)
		if body := strings.TrimSuffix(base, path.Ext(base)); body != "" && body != "." && body != "/" {
			name = body + ".pdf"
		} else {
			name = "download.pdf"
		}
	}
	params["pdf_name"] = name
	return name
}

func (s *Server) logger() *zap.SugaredLogger {
	if s.Logger == nil {
		return zap.NewNop().Sugar()
	}
	return s.Logger
}

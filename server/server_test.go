package server

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ByLCY/rmlpdf/fonts"
	"github.com/ByLCY/rmlpdf/rml"
)

const invoice = `<document><template><pageTemplate id="p"><frame id="f" x1="36" y1="36" width="500" height="700"/></pageTemplate></template>
<story><para>Invoice for ${customer|nobody}</para></story></document>`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"invoice.rml":    invoice,
		"broken.rml":     `<document><story><para>no template</para></story></document>`,
		"sub/letter.rml": invoice,
	}
	for name, body := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("创建目录失败: %v", err)
		}
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatalf("写入模板失败: %v", err)
		}
	}
	s := &Server{TemplateDir: dir, Options: rml.Options{Cache: fonts.NewCache()}}
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("请求失败: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, body
}

func TestServePDF(t *testing.T) {
	srv := newTestServer(t)
	resp, body := get(t, srv.URL+"/pdf/invoice.rml?customer=ACME")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("期望 200，实际 %d: %s", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("Content-Type 不符: %s", ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); cd != "attachment; filename=invoice.pdf" {
		t.Fatalf("Content-Disposition 不符: %s", cd)
	}
	if !bytes.HasPrefix(body, []byte("%PDF-")) {
		t.Fatalf("响应不是 PDF")
	}

	resp, _ = get(t, srv.URL+"/pdf/sub/letter.rml?pdf_name=custom.pdf")
	if cd := resp.Header.Get("Content-Disposition"); cd != "attachment; filename=custom.pdf" {
		t.Fatalf("pdf_name 参数应生效: %s", cd)
	}
	resp, _ = get(t, srv.URL+"/pdf/invoice.rml?download=0")
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Disposition") != "" {
		t.Fatalf("download=0 时不应设置 Content-Disposition")
	}
}

func TestServePost(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Post(srv.URL+"/pdf/invoice.rml", "application/json", strings.NewReader(`{"customer":"Tom & Jerry"}`))
	if err != nil {
		t.Fatalf("请求失败: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("期望 200，实际 %d", resp.StatusCode)
	}
	resp, err = http.Post(srv.URL+"/pdf/invoice.rml", "application/json", strings.NewReader(`{not json`))
	if err != nil {
		t.Fatalf("请求失败: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("非法 JSON 期望 400，实际 %d", resp.StatusCode)
	}
}

func TestServeErrors(t *testing.T) {
	srv := newTestServer(t)
	resp, body := get(t, srv.URL+"/pdf/broken.rml")
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("转换失败期望 500，实际 %d", resp.StatusCode)
	}
	if len(body) == 0 || bytes.HasPrefix(body, []byte("%PDF-")) {
		t.Fatalf("500 响应应包含错误原因")
	}
	if resp, _ := get(t, srv.URL+"/pdf/missing.rml"); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("模板不存在期望 404，实际 %d", resp.StatusCode)
	}
	if resp, _ := get(t, srv.URL+"/pdf/sub"); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("目录期望 404，实际 %d", resp.StatusCode)
	}
}

func TestPdfFilename(t *testing.T) {
	cases := map[string]string{
		"common/base.rml": "base.pdf",
		"report":          "report.pdf",
		".rml":            "download.pdf",
	}
	for tmpl, want := range cases {
		params := map[string]any{}
		if got := pdfFilename(tmpl, params); got != want || params["pdf_name"] != want {
			t.Errorf("pdfFilename(%q) = %q，期望 %q", tmpl, got, want)
		}
	}
	if !filepath.IsLocal("a/b.rml") || filepath.IsLocal("../x.rml") {
		t.Fatalf("路径检查前提不成立")
	}
	s := &Server{TemplateDir: t.TempDir()}
	if _, err := s.templatePath("../etc/passwd"); err == nil {
		t.Fatalf("不应允许越出模板目录")
	}
}

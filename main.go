package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/gammazero/workerpool"
	"github.com/speedata/optionparser"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ByLCY/rmlpdf/barcode"
	"github.com/ByLCY/rmlpdf/config"
	"github.com/ByLCY/rmlpdf/fonts"
	"github.com/ByLCY/rmlpdf/rml"
	"github.com/ByLCY/rmlpdf/server"
)

// newZapLogger 输出到 stderr，stdout 留给 PDF。
func newZapLogger(verbose bool) (*zap.SugaredLogger, error) {
	cfg := zap.Config{
		Encoding:         "console",
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
		EncoderConfig: zapcore.EncoderConfig{
			EncodeLevel: zapcore.LowercaseColorLevelEncoder,
			LevelKey:    "level",
			MessageKey:  "message",
		},
	}
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

type cliOptions struct {
	verbose bool
	config  string
	data    string
	debug   string
	output  string
	outdir  string
	listen  string
}

func dothings() error {
	var o cliOptions
	op := optionparser.NewOptionParser()
	op.Banner = "Usage: rmlpdf [options] input.rml [input.rml ...] > out.pdf\n       rmlpdf [options] serve"
	op.On("--verbose", "Print more debugging information", &o.verbose)
	op.On("-c", "--config FILE", "Read configuration from TOML file", &o.config)
	op.On("-d", "--data JSON", "Bind JSON data to ${path} placeholders", &o.data)
	op.On("--debug FILE", "Write the compiled document model as JSON", &o.debug)
	op.On("-o", "--output FILE", "Write the PDF to FILE instead of stdout", &o.output)
	op.On("--outdir DIR", "Convert all inputs concurrently into DIR", &o.outdir)
	op.On("--listen ADDR", "Address for the serve command", &o.listen)
	op.Command("serve", "Serve RML templates as PDF over HTTP")
	if err := op.Parse(); err != nil {
		op.Help()
		return err
	}
	if len(op.Extra) == 0 {
		op.Help()
		return nil
	}

	cfg := config.Default()
	if o.config != "" {
		var err error
		if cfg, err = config.Load(o.config); err != nil {
			return err
		}
	}
	logger, err := newZapLogger(o.verbose || cfg.Verbose)
	if err != nil {
		return err
	}
	defer logger.Sync()

	var data any
	if o.data != "" {
		if err := json.Unmarshal([]byte(o.data), &data); err != nil {
			return fmt.Errorf("解析 data JSON 失败: %w", err)
		}
	}

	// 字体缓存在整个进程内共享。
	opts := rml.Options{
		Logger:       logger,
		Cache:        fonts.NewCache(),
		FontDirs:     cfg.AllFontDirs(),
		ResourceDirs: cfg.ResourceDirs,
		Barcodes:     barcode.New(logger),
		Data:         data,
		Debug:        o.debug,
	}

	if op.Extra[0] == "serve" {
		addr := cfg.Listen
		if o.listen != "" {
			addr = o.listen
		}
		opts.Debug = ""
		srv := &server.Server{TemplateDir: cfg.TemplateDir, Options: opts, Logger: logger}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return srv.ListenAndServe(ctx, addr)
	}

	inputs := op.Extra
	if o.outdir != "" {
		return convertAll(inputs, o.outdir, cfg.Workers, opts, logger)
	}
	if len(inputs) > 1 {
		return fmt.Errorf("多个输入文件需要 --outdir")
	}
	if o.output != "" {
		if err := rml.ConvertFile(inputs[0], o.output, opts); err != nil {
			return err
		}
		logger.Infow("pdf written", "file", o.output)
		return nil
	}
	f, err := os.Open(inputs[0])
	if err != nil {
		return err
	}
	defer f.Close()
	return rml.Convert(f, os.Stdout, opts)
}

// convertAll 在工作池中并发转换多个文件，输出为 outdir/<name>.pdf。
func convertAll(inputs []string, outdir string, workers int, opts rml.Options, logger *zap.SugaredLogger) error {
	if workers < 1 {
		workers = 1
	}
	opts.Debug = ""
	wp := workerpool.New(workers)
	var (
		mu   sync.Mutex
		errs []error
	)
	for _, in := range inputs {
		wp.Submit(func() {
			base := strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))
			out := filepath.Join(outdir, base+".pdf")
			if err := rml.ConvertFile(in, out, opts); err != nil {
				logger.Errorw("convert failed", "file", in, "error", err)
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", in, err))
				mu.Unlock()
				return
			}
			logger.Infow("pdf written", "file", out)
		})
	}
	wp.StopWait()
	logger.Debugw("batch finished", "files", len(inputs), "failed", len(errs), "cached_fonts", opts.Cache.Len())
	return errors.Join(errs...)
}

func main() {
	if err := dothings(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Package logging 构造全局使用的 zap logger。
//
// stdout 保留给 JSON 报告，日志一律写 stderr。
package logging

import (
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Options struct {
	// Level：debug/info/warn/error，空串为 info。
	Level string
	// Format：json（生产）或 console（开发），空串为 console。
	Format string
	// Output 为 nil 时写 stderr（测试可注入）。
	Output io.Writer
}

func New(opts Options) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(orDefault(opts.Level, "info"))))
	if err != nil {
		return nil, fmt.Errorf("日志级别无效：%w", err)
	}

	var cfg zap.Config
	switch strings.ToLower(strings.TrimSpace(orDefault(opts.Format, "console"))) {
	case "json":
		cfg = zap.NewProductionConfig()
	case "console":
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	default:
		return nil, fmt.Errorf("日志格式只能是 json 或 console，实际 %q", opts.Format)
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.DisableStacktrace = level > zapcore.DebugLevel

	if opts.Output == nil {
		return cfg.Build()
	}
	var enc zapcore.Encoder
	if cfg.Encoding == "json" {
		enc = zapcore.NewJSONEncoder(cfg.EncoderConfig)
	} else {
		enc = zapcore.NewConsoleEncoder(cfg.EncoderConfig)
	}
	core := zapcore.NewCore(enc, zapcore.AddSync(opts.Output), cfg.Level)
	return zap.New(core), nil
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

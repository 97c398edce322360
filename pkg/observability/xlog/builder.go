package xlog

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/omeyang/xrelay/pkg/observability/xrotate"
)

// ReplaceAttrFunc 属性替换函数，返回空 Key 的 Attr 表示移除该属性。
type ReplaceAttrFunc func(groups []string, a slog.Attr) slog.Attr

// Config 日志配置，可直接由 xconf 反序列化。
type Config struct {
	Level     string         `koanf:"level"`
	Format    string         `koanf:"format"`
	AddSource bool           `koanf:"add_source"`
	File      string         `koanf:"file"`
	Rotation  RotationConfig `koanf:"rotation"`
}

// RotationConfig 文件轮转配置，仅在 Config.File 非空时生效。零值使用 xrotate 默认值。
type RotationConfig struct {
	MaxSizeMB  int  `koanf:"max_size_mb"`
	MaxBackups int  `koanf:"max_backups"`
	MaxAgeDays int  `koanf:"max_age_days"`
	Compress   bool `koanf:"compress"`
}

func (r RotationConfig) options() []xrotate.Option {
	var opts []xrotate.Option
	if r.MaxSizeMB > 0 {
		opts = append(opts, xrotate.WithMaxSize(r.MaxSizeMB))
	}
	if r.MaxBackups > 0 {
		opts = append(opts, xrotate.WithMaxBackups(r.MaxBackups))
	}
	if r.MaxAgeDays > 0 {
		opts = append(opts, xrotate.WithMaxAge(r.MaxAgeDays))
	}
	return append(opts, xrotate.WithCompress(r.Compress))
}

// Builder 日志配置构建器
//
// first-error-wins：记录第一个配置错误，在 Build 时返回。
type Builder struct {
	output       io.Writer
	levelVar     *slog.LevelVar
	format       string
	addSource    bool
	enableEnrich bool
	replaceAttr  ReplaceAttrFunc
	rotator      xrotate.Rotator
	onError      func(error)
	err          error
}

// New 创建构建器：stderr、Info 级别、text 格式、启用 trace 注入。
func New() *Builder {
	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.LevelInfo)
	return &Builder{
		output:       os.Stderr,
		levelVar:     levelVar,
		format:       "text",
		enableEnrich: true,
	}
}

// FromConfig 按 Config 创建构建器，返回的 Builder 仍可继续定制。
func FromConfig(cfg Config) *Builder {
	b := New().SetFormat(cfg.Format).SetAddSource(cfg.AddSource)
	if cfg.Level != "" {
		b.SetLevelString(cfg.Level)
	}
	if cfg.File != "" {
		b.SetRotation(cfg.File, cfg.Rotation.options()...)
	}
	return b
}

// SetOutput 设置日志输出目标
func (b *Builder) SetOutput(w io.Writer) *Builder {
	if b.err != nil {
		return b
	}
	if w == nil {
		b.err = fmt.Errorf("xlog: output is nil")
		return b
	}
	b.output = w
	return b
}

// SetLevel 设置日志级别
func (b *Builder) SetLevel(level Level) *Builder {
	b.levelVar.Set(slog.Level(level))
	return b
}

// SetLevelString 通过字符串设置日志级别
func (b *Builder) SetLevelString(s string) *Builder {
	if b.err != nil {
		return b
	}
	level, err := ParseLevel(s)
	if err != nil {
		b.err = err
		return b
	}
	return b.SetLevel(level)
}

// SetFormat 设置输出格式：text 或 json，空值视为 text。
func (b *Builder) SetFormat(format string) *Builder {
	if b.err != nil {
		return b
	}
	switch normalized := strings.ToLower(strings.TrimSpace(format)); normalized {
	case "":
		b.format = "text"
	case "text", "json":
		b.format = normalized
	default:
		b.err = fmt.Errorf("xlog: unknown format %q", format)
	}
	return b
}

// SetAddSource 是否记录源码位置
func (b *Builder) SetAddSource(enable bool) *Builder {
	b.addSource = enable
	return b
}

// SetEnrich 是否从 context 注入 trace_id/span_id，默认启用。
func (b *Builder) SetEnrich(enable bool) *Builder {
	b.enableEnrich = enable
	return b
}

// SetRotation 输出到按大小轮转的文件
func (b *Builder) SetRotation(filename string, opts ...xrotate.Option) *Builder {
	if b.err != nil {
		return b
	}
	rotator, err := xrotate.NewLumberjack(filename, opts...)
	if err != nil {
		b.err = err
		return b
	}
	b.rotator = rotator
	b.output = rotator
	return b
}

// SetOnError 设置 Handler.Handle 失败时的回调。
//
// 回调在写日志的 goroutine 中同步执行，应保持轻量；
// 回调内部再次触发的日志错误不会重入。
func (b *Builder) SetOnError(fn func(error)) *Builder {
	b.onError = fn
	return b
}

// SetReplaceAttr 设置属性替换函数，用于字段重命名或脱敏
func (b *Builder) SetReplaceAttr(fn ReplaceAttrFunc) *Builder {
	b.replaceAttr = fn
	return b
}

// Build 构建 Logger，返回的 cleanup 负责关闭轮转文件，可重复调用。
func (b *Builder) Build() (LoggerWithLevel, func() error, error) {
	if b.err != nil {
		if b.rotator != nil {
			_ = b.rotator.Close()
		}
		return nil, nil, b.err
	}

	opts := &slog.HandlerOptions{
		Level:       b.levelVar,
		AddSource:   b.addSource,
		ReplaceAttr: b.replaceAttr,
	}

	var handler slog.Handler
	if b.format == "json" {
		handler = slog.NewJSONHandler(b.output, opts)
	} else {
		handler = slog.NewTextHandler(b.output, opts)
	}
	if b.enableEnrich {
		enriched, err := NewEnrichHandler(handler)
		if err != nil {
			return nil, nil, err
		}
		handler = enriched
	}

	logger := &xlogger{
		handler:        handler,
		levelVar:       b.levelVar,
		onError:        b.onError,
		errorCount:     new(atomic.Uint64),
		addSource:      b.addSource,
		inErrorHandler: new(atomic.Bool),
	}

	var once sync.Once
	rotator := b.rotator
	cleanup := func() error {
		var err error
		once.Do(func() {
			if rotator != nil {
				err = rotator.Close()
			}
		})
		return err
	}
	return logger, cleanup, nil
}

package xconf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

var _ Config = (*koanfConfig)(nil)

// koanfConfig Config 的 koanf 实现。
type koanfConfig struct {
	mu        sync.RWMutex
	k         *koanf.Koanf
	overrides map[string]any

	// reloadMu 串行化 Reload，防止慢的旧读取覆盖新结果
	reloadMu sync.Mutex

	path    string
	format  Format
	opts    *Options
	isBytes bool
}

// New 从文件创建配置，按扩展名识别格式（.yaml/.yml/.json）。
func New(path string, opts ...Option) (Config, error) {
	return newFromFile(path, opts...)
}

func newFromFile(path string, opts ...Option) (*koanfConfig, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	format, err := detectFormat(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path) //#nosec G304 -- 配置路径由运维指定
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}

	options := applyOptions(opts)
	k := koanf.New(options.Delim)
	if err := loadData(k, data, format); err != nil {
		return nil, err
	}
	return &koanfConfig{
		k:         k,
		overrides: make(map[string]any),
		path:      path,
		format:    format,
		opts:      options,
	}, nil
}

// NewFromBytes 从字节数据创建配置，空数据得到空配置。
func NewFromBytes(data []byte, format Format, opts ...Option) (Config, error) {
	if !isValidFormat(format) {
		return nil, ErrUnsupportedFormat
	}
	options := applyOptions(opts)
	k := koanf.New(options.Delim)
	if len(data) > 0 {
		if err := loadData(k, data, format); err != nil {
			return nil, err
		}
	}
	return &koanfConfig{
		k:         k,
		overrides: make(map[string]any),
		format:    format,
		opts:      options,
		isBytes:   true,
	}, nil
}

// Load 读取文件并反序列化整个配置到 target，是启动阶段的常用组合。
func Load(path string, target any, opts ...Option) (Config, error) {
	cfg, err := New(path, opts...)
	if err != nil {
		return nil, err
	}
	if err := cfg.Unmarshal("", target); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *koanfConfig) Client() *koanf.Koanf {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.k
}

func (c *koanfConfig) Unmarshal(path string, target any) error {
	k := c.Client()
	if err := k.UnmarshalWithConf(path, target, koanf.UnmarshalConf{Tag: c.opts.Tag}); err != nil {
		return fmt.Errorf("%w: %w", ErrUnmarshalFailed, err)
	}
	if v, ok := target.(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalid, err)
		}
	}
	return nil
}

func (c *koanfConfig) Set(key string, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.k.Set(key, value); err != nil {
		return err
	}
	c.overrides[key] = value
	return nil
}

func (c *koanfConfig) Reload() error {
	if c.isBytes {
		return ErrNotReloadable
	}

	c.reloadMu.Lock()
	defer c.reloadMu.Unlock()

	data, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	next := koanf.New(c.opts.Delim)
	if err := loadData(next, data, c.format); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for key, value := range c.overrides {
		if err := next.Set(key, value); err != nil {
			return err
		}
	}
	c.k = next
	return nil
}

func (c *koanfConfig) Path() string { return c.path }

func (c *koanfConfig) Format() Format { return c.format }

func detectFormat(path string) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown extension %q", ErrUnsupportedFormat, ext)
	}
}

func isValidFormat(format Format) bool {
	return format == FormatYAML || format == FormatJSON
}

func loadData(k *koanf.Koanf, data []byte, format Format) error {
	var parser koanf.Parser
	switch format {
	case FormatYAML:
		parser = yaml.Parser()
	case FormatJSON:
		parser = json.Parser()
	default:
		return ErrUnsupportedFormat
	}
	if err := k.Load(rawbytes.Provider(data), parser); err != nil {
		return fmt.Errorf("%w: %w", ErrParseFailed, err)
	}
	return nil
}

package xconf

import "github.com/knadh/koanf/v2"

// Format 配置文件格式。
type Format string

// 支持的配置格式。
const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// Config 配置接口。
// 只提供增值功能，其余操作直接使用 Client() 返回的 koanf 实例。
type Config interface {
	// Client 返回当前 koanf 实例的快照，Reload 后旧实例仍可读但不再更新。
	Client() *koanf.Koanf

	// Unmarshal 将 path 下的配置反序列化到 target，path 为空表示整个配置。
	// target 实现 [Validator] 时在反序列化成功后调用其 Validate。
	Unmarshal(path string, target any) error

	// Set 设置覆盖值，覆盖值在 Reload 之后依然生效。
	// 用于命令行参数覆盖文件配置。
	Set(key string, value any) error

	// Reload 重新读取配置文件，仅对 New 创建的 Config 有效。
	Reload() error

	// Path 返回配置文件路径，NewFromBytes 创建的 Config 返回空字符串。
	Path() string

	Format() Format
}

// Validator 由需要在加载后自检的配置结构体实现。
type Validator interface {
	Validate() error
}

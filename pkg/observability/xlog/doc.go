// Package xlog 基于 log/slog 的结构化日志库。
//
// # 创建 Logger
//
// Builder 采用 first-error-wins：第一个配置错误在 Build 时返回。
//
//	logger, cleanup, err := xlog.New().
//	    SetLevelString("debug").
//	    SetFormat("json").
//	    SetRotation("/var/log/xrelay/relay.log", xrotate.WithMaxSize(100)).
//	    Build()
//	defer cleanup()
//
// 从配置文件创建时使用 [FromConfig]，Config 带 koanf 标签，可由 xconf 直接反序列化。
//
// # 追踪字段
//
// EnrichHandler 默认启用，从 ctx 中的 OpenTelemetry span 上下文注入
// trace_id、span_id、trace_flags。
//
// # 动态级别
//
// Build 返回 [LoggerWithLevel]，SetLevel 运行时生效，派生 Logger 同步变化。
// 配置热更新时可直接调用 SetLevel。
//
// # 便捷属性
//
// 通用：[Err]、[Duration]、[Component]、[Operation]、[Count]。
// 消息：[Topic]、[Partition]、[Offset]、[Attempt]、[Group]、[MessageID]。
package xlog

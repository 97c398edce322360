// Package observability 提供可观测性相关的子包。
//
// 子包列表：
//   - xlog: 结构化日志，基于 log/slog 扩展
//   - xmetrics: 统一可观测性接口（指标、追踪），OpenTelemetry 与 Prometheus 两种实现
//   - xrotate: 日志文件轮转
//
// 设计原则：
//   - 遵循 OpenTelemetry 语义规范
//   - 自动从 context 中提取追踪信息注入日志
//   - 支持动态级别控制
package observability

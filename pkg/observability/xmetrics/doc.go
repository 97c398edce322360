// Package xmetrics 提供统一的观测接口（指标 + 追踪）。
//
// 业务代码只依赖 Observer/Span/Attr 三个最小接口，具体后端可替换：
//   - NewOTelObserver：OpenTelemetry trace + metric
//   - NewPrometheusObserver：prometheus/client_golang 计数器与直方图
//   - Multi：同时写入多个后端
//
// # 使用示例
//
//	ctx, span := xmetrics.Start(ctx, obs, xmetrics.SpanOptions{
//		Component: "xkafka",
//		Operation: "send",
//		Kind:      xmetrics.KindProducer,
//	})
//	defer func() { span.End(xmetrics.Result{Err: err}) }()
//
// # 指标命名
//
// OTel：xrelay.operation.total / xrelay.operation.duration。
// Prometheus：xrelay_operations_total / xrelay_operation_duration_seconds。
// 统一标签：component / operation / status。
package xmetrics

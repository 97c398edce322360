// Package xrun 基于 errgroup 的进程生命周期管理。
//
// Group 并发运行多个服务，任一失败即取消全部；Run 额外监听退出信号，
// 收到信号时以 *SignalError 返回。HTTPServer 与 Ticker 把常见的
// 长期任务包装成服务函数。
package xrun

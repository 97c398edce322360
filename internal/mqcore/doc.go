// Package mqcore 提供 xkafka 内部共享的消息队列基础设施。
//
// 本包是 internal 包，外部用户不应直接导入。
//
// 主要功能：
//   - Tracer：在消息头中注入/提取 W3C Trace Context
//   - RunConsumeLoop：基于 xretry.BackoffPolicy 的消费循环，错误时退避、成功时复位
//   - 共享错误定义
package mqcore

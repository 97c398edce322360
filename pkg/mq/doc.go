// Package mq 提供消息队列相关的子包。
//
// 子包列表：
//   - xkafka: Kafka 可靠投递核心，支持重试发送、重试主题升级、死信主题和有界拉取
//
// 内部包：
//   - internal/mqcore: 共享的消费循环、错误定义和追踪传播
//
// 设计原则：
//   - 发送端与消费端的重试分别由 xretry 的状态机和重试主题驱动
//   - 内置追踪上下文传播（W3C Trace Context）
//   - 内置可观测性（指标、日志、追踪）
package mq

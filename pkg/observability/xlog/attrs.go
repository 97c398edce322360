package xlog

import (
	"log/slog"
	"time"
)

// 标准字段名
const (
	KeyError     = "error"
	KeyStack     = "stack"
	KeyDuration  = "duration"
	KeyCount     = "count"
	KeyComponent = "component"
	KeyOperation = "operation"

	// 消息相关字段，命名参考 OpenTelemetry messaging 语义约定
	KeyTopic     = "topic"
	KeyPartition = "partition"
	KeyOffset    = "offset"
	KeyAttempt   = "attempt"
	KeyGroup     = "consumer_group"
	KeyMessageID = "message_id"
)

// Err 创建错误属性，err 为 nil 时返回会被 slog 忽略的空属性。
//
//	if err != nil {
//	    logger.Error(ctx, "publish failed", xlog.Err(err))
//	}
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Duration 以人类可读格式（如 "1.5s"）记录耗时
func Duration(d time.Duration) slog.Attr {
	return slog.String(KeyDuration, d.String())
}

// Component 标识日志来源组件
func Component(name string) slog.Attr {
	return slog.String(KeyComponent, name)
}

// Operation 标识当前操作
func Operation(name string) slog.Attr {
	return slog.String(KeyOperation, name)
}

// Count 计数
func Count(n int64) slog.Attr {
	return slog.Int64(KeyCount, n)
}

// Topic 消息主题
func Topic(name string) slog.Attr {
	return slog.String(KeyTopic, name)
}

// Partition 消息分区
func Partition(p int32) slog.Attr {
	return slog.Int(KeyPartition, int(p))
}

// Offset 消息偏移量
func Offset(o int64) slog.Attr {
	return slog.Int64(KeyOffset, o)
}

// Attempt 投递尝试序号（从 1 开始）
func Attempt(n int) slog.Attr {
	return slog.Int(KeyAttempt, n)
}

// Group 消费者组
func Group(id string) slog.Attr {
	return slog.String(KeyGroup, id)
}

// MessageID 消息唯一标识
func MessageID(id string) slog.Attr {
	return slog.String(KeyMessageID, id)
}

// Package xmsglog 提供进程内的已处理消息记录。
//
// Log 是一个只追加的有序列表：消费者处理成功的每条消息追加一次，
// 查询方通过 Snapshot 拿到当前内容的副本。Log 显式构造后注入使用方，
// 不提供包级全局实例。
//
// 内容只在内存中，进程重启即丢失。
package xmsglog

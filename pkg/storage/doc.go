// Package storage 提供数据存储相关的子包。
//
// 子包列表：
//   - xmsglog: 进程内只追加的消息记录，由消费端写入、调用方读取快照
package storage

// Package xrotate 提供日志文件轮转，作为 xlog 的文件输出目标。
//
// 当前唯一实现 [NewLumberjack] 基于 lumberjack v2 按文件大小轮转，
// 同时按备份数量和保留天数清理旧文件：
//
//	w, err := xrotate.NewLumberjack("/var/log/xrelay/relay.log",
//	    xrotate.WithMaxSize(100),
//	    xrotate.WithMaxBackups(5),
//	)
package xrotate

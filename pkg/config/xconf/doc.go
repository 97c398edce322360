// Package xconf 基于 koanf 的配置加载器，负责文件与字节数据的加载、反序列化和热重载。
//
// 支持 YAML（.yaml/.yml）与 JSON（.json）。
//
//	var cfg AppConfig
//	c, err := xconf.Load("/etc/xrelay/config.yaml", &cfg)
//
// Unmarshal 使用 koanf 默认的 mapstructure 解码，支持 "500ms" 这类时长字符串；
// 目标实现 [Validator] 时自动校验。
//
// # 覆盖值
//
// Set 写入的值优先于文件内容，并在 Reload 后重新应用，
// 适合命令行参数覆盖配置文件。
//
// # 热重载
//
// Watch 基于 fsnotify 监视配置文件所在目录，内置防抖。
// Run(ctx) 阻塞到 ctx 结束，可直接交给 xrun.Group 管理；返回后不再触发回调。
// 回调持有内部锁执行，回调中不应再次调用 Run。
package xconf

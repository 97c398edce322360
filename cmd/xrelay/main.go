// xrelay 是 Kafka 可靠投递核心的命令行入口。
//
// 用法:
//
//	xrelay [全局选项] <命令> [命令参数]
//
// 全局选项:
//
//	-c, --config     配置文件路径（YAML/JSON），为空时只使用命令行参数
//	-b, --brokers    Kafka broker 地址，覆盖 kafka.brokers
//	-g, --group      消费组，覆盖 kafka.group_id
//	    --topic      主主题，覆盖 kafka.topic
//	    --log-level  日志级别，覆盖 log.level
//
// 命令:
//
//	serve            运行监听器与死信监听器，暴露 /metrics 和 /messages
//	send <payload>   发送消息，--retry 时阻塞重试
//	fetch            同步拉取至多 --max 条消息并逐行输出
//	topics           创建主主题、重试主题和死信主题
//	config           输出生效的配置与派生主题
//
// 退出码:
//
//	0: 成功
//	1: 运行失败
//	2: 参数或配置错误
//
// 示例:
//
//	xrelay -c relay.yaml serve
//	xrelay -b localhost:9092 --topic orders send --retry "hello"
//	xrelay -b localhost:9092 --topic orders fetch --max 10
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/omeyang/xrelay/pkg/config/xconf"

	"github.com/urfave/cli/v3"
)

// 版本信息（可通过 -ldflags 注入）。
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func main() {
	os.Exit(run(context.Background(), os.Args))
}

// createApp 创建 CLI 应用。
func createApp() *cli.Command {
	return &cli.Command{
		Name:    "xrelay",
		Usage:   "Kafka 可靠投递：重试主题、死信主题与有界拉取",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "配置文件路径（YAML/JSON）",
			},
			&cli.StringSliceFlag{
				Name:    "brokers",
				Aliases: []string{"b"},
				Usage:   "Kafka broker 地址",
				Value:   []string{"localhost:9092"},
			},
			&cli.StringFlag{
				Name:    "group",
				Aliases: []string{"g"},
				Usage:   "消费组",
				Value:   "xrelay",
			},
			&cli.StringFlag{
				Name:  "topic",
				Usage: "主主题",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "日志级别 (debug/info/warn/error)",
				Value: "info",
			},
		},
		Commands: createCommands(),
		// 设计决策: 禁止 urfave/cli 直接调用 os.Exit，由 run 统一映射退出码。
		ExitErrHandler: func(_ context.Context, _ *cli.Command, err error) {
			if _, ok := err.(cli.ExitCoder); ok {
				fmt.Fprintln(os.Stderr, err)
			}
		},
	}
}

func run(ctx context.Context, args []string) int {
	app := createApp()
	if err := app.Run(ctx, args); err != nil {
		if errors.Is(err, xconf.ErrInvalid) || errors.Is(err, xconf.ErrUnmarshalFailed) ||
			errors.Is(err, xconf.ErrParseFailed) || errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "参数错误: %v\n", err)
			return 2
		}
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		return 1
	}
	return 0
}

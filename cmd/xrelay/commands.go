package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/omeyang/xrelay/pkg/config/xconf"
	"github.com/omeyang/xrelay/pkg/lifecycle/xrun"
	"github.com/omeyang/xrelay/pkg/mq/xkafka"
	"github.com/omeyang/xrelay/pkg/observability/xlog"
	"github.com/omeyang/xrelay/pkg/observability/xmetrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"
)

const (
	defaultFetchMax     = 10
	httpShutdownTimeout = 5 * time.Second
	configWatchDebounce = 200 * time.Millisecond
)

func createCommands() []*cli.Command {
	return []*cli.Command{
		createServeCommand(),
		createSendCommand(),
		createFetchCommand(),
		createTopicsCommand(),
		createConfigCommand(),
	}
}

// runtime 单次命令执行所需的配置与日志。
type runtime struct {
	cfg     xconf.Config
	app     *AppConfig
	logger  xlog.LoggerWithLevel
	cleanup func() error
}

func newRuntime(cmd *cli.Command) (*runtime, error) {
	cfg, app, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger, cleanup, err := buildLogger(app.Log)
	if err != nil {
		return nil, fmt.Errorf("xrelay: build logger: %w", err)
	}
	return &runtime{cfg: cfg, app: app, logger: logger, cleanup: cleanup}, nil
}

func (r *runtime) close() {
	if r.cleanup != nil {
		_ = r.cleanup()
	}
}

func (r *runtime) newService(opts ...xkafka.Option) (*xkafka.Service, error) {
	opts = append([]xkafka.Option{xkafka.WithLogger(r.logger)}, opts...)
	return xkafka.NewService(r.app.Kafka, opts...)
}

// ============================================================================
// serve
// ============================================================================

func createServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "运行监听器与死信监听器",
		Description: `持续消费主主题与全部重试主题，失败消息按重试主题逐级升级，
耗尽后进入 <topic>.DLQ。metrics.addr 非空时在该地址暴露
/metrics（Prometheus）与 /messages（已处理消息记录，JSON）。
配置来自文件时，修改 log.level 无需重启即可生效。`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "HTTP 监听地址，覆盖 metrics.addr",
				Value: defaultMetricsAddr,
			},
			&cli.StringSliceFlag{
				Name:  "reject",
				Usage: "payload 含有该片段时视为处理失败（可重复）",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			rt, err := newRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.close()
			if cmd.IsSet("metrics-addr") || rt.app.Metrics.Addr == "" {
				rt.app.Metrics.Addr = cmd.String("metrics-addr")
			}
			return serve(ctx, rt, cmd.StringSlice("reject"))
		},
	}
}

func serve(ctx context.Context, rt *runtime, reject []string) error {
	reg := prometheus.NewRegistry()
	obs, err := xmetrics.NewPrometheusObserver(
		xmetrics.WithNamespace(rt.app.Metrics.Namespace),
		xmetrics.WithRegistry(reg),
	)
	if err != nil {
		return fmt.Errorf("xrelay: metrics: %w", err)
	}
	tr, err := newTracing()
	if err != nil {
		return err
	}
	defer func() { _ = tr.shutdown(context.Background()) }()

	opts := []xkafka.Option{
		xkafka.WithObserver(xmetrics.Multi(tr.observer, obs)),
		xkafka.WithOnDeadLetter(func(ctx context.Context, r xkafka.DeadLetterRecord) {
			rt.logger.Warn(ctx, "message dead-lettered",
				xlog.Topic(r.OriginalTopic),
				xlog.Partition(r.Partition),
				xlog.Attempt(r.Attempts),
				slog.String("reason", r.Reason))
		}),
	}
	if len(reject) > 0 {
		opts = append(opts, xkafka.WithProcessor(xkafka.RejectContaining(reject...)))
	}
	svc, err := rt.newService(opts...)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	err = xrun.Run(ctx, func(g *xrun.Group) {
		g.Add("relay", svc)
		if addr := rt.app.Metrics.Addr; addr != "" {
			server := &http.Server{
				Addr:              addr,
				Handler:           newMux(obs, svc),
				ReadHeaderTimeout: 5 * time.Second,
			}
			g.Go("http", xrun.HTTPServer(server, httpShutdownTimeout))
		}
		g.Go("stats", xrun.Ticker(rt.app.Metrics.StatsInterval, false, func(ctx context.Context) error {
			logStats(ctx, rt.logger, svc.Stats())
			return nil
		}))
		if rt.cfg.Path() != "" {
			w, werr := xconf.Watch(rt.cfg, levelReloader(rt.logger), xconf.WithDebounce(configWatchDebounce))
			if werr != nil {
				rt.logger.Warn(ctx, "config watch disabled", xlog.Err(werr))
				return
			}
			g.Go("config-watch", w.Run)
		}
	}, xrun.WithLogger(rt.logger), xrun.WithName("xrelay"))
	if errors.Is(err, xrun.ErrSignal) {
		return nil
	}
	return err
}

func newMux(obs *xmetrics.PrometheusObserver, svc *xkafka.Service) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", obs.Handler())
	mux.HandleFunc("/messages", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(svc.GetLog())
	})
	return mux
}

// levelReloader 配置文件变更时仅重新应用 log.level，其余配置需重启生效。
func levelReloader(logger xlog.LoggerWithLevel) func(xconf.Config, error) {
	return func(cfg xconf.Config, err error) {
		ctx := context.Background()
		if err != nil {
			logger.Warn(ctx, "config reload failed", xlog.Err(err))
			return
		}
		raw := cfg.Client().String("log.level")
		if raw == "" {
			return
		}
		level, perr := xlog.ParseLevel(raw)
		if perr != nil {
			logger.Warn(ctx, "invalid log level in reloaded config", slog.String("level", raw))
			return
		}
		if level != logger.GetLevel() {
			logger.SetLevel(level)
			logger.Info(ctx, "log level changed", slog.String("level", raw))
		}
	}
}

func logStats(ctx context.Context, logger xlog.Logger, s xkafka.Stats) {
	logger.Info(ctx, "relay stats",
		slog.Int64("produced", s.Dispatcher.Produced),
		slog.Int64("delivered", s.Dispatcher.Delivered),
		slog.Int64("received", s.Listener.Received),
		slog.Int64("completed", s.Listener.Completed),
		slog.Int64("failed", s.Listener.Failed),
		slog.Int64("retried", s.Router.Retried),
		slog.Int64("dead_lettered", s.Router.DeadLettered),
		slog.Int("message_log", s.MessageLogSize))
}

// ============================================================================
// send
// ============================================================================

func createSendCommand() *cli.Command {
	return &cli.Command{
		Name:      "send",
		Usage:     "发送消息",
		ArgsUsage: "<payload> [payload...]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "retry",
				Usage: "阻塞等待确认并按配置重试",
			},
			&cli.StringFlag{
				Name:  "to",
				Usage: "目标主题，默认使用 kafka.topic",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			payloads := cmd.Args().Slice()
			if len(payloads) == 0 {
				return fmt.Errorf("%w: send requires at least one payload", errUsage)
			}
			rt, err := newRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.close()

			tr, err := newTracing()
			if err != nil {
				return err
			}
			defer func() { _ = tr.shutdown(context.Background()) }()

			svc, err := rt.newService(xkafka.WithObserver(tr.observer))
			if err != nil {
				return err
			}
			topic := cmd.String("to")
			if topic == "" {
				topic = rt.app.Kafka.Topic
			}
			useRetry := cmd.Bool("retry")
			for _, p := range payloads {
				if err := svc.Send(ctx, topic, p, useRetry); err != nil {
					_ = svc.Close()
					return err
				}
			}
			// Close 刷新本地队列，非重试发送的消息在此之前可能尚未送达
			return svc.Close()
		},
	}
}

// ============================================================================
// fetch
// ============================================================================

func createFetchCommand() *cli.Command {
	return &cli.Command{
		Name:  "fetch",
		Usage: "同步拉取一批消息",
		Description: `使用独立的 <group_id>-fetch 消费组拉取至多 --max 条消息，
逐行输出 payload 并提交 offset。主题空闲时输出为空。`,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "max",
				Aliases: []string{"n"},
				Usage:   "最多返回的消息数",
				Value:   defaultFetchMax,
			},
			&cli.StringFlag{
				Name:  "from",
				Usage: "拉取的主题，默认使用 kafka.topic",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			rt, err := newRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.close()

			svc, err := rt.newService()
			if err != nil {
				return err
			}
			defer func() { _ = svc.Close() }()

			topic := cmd.String("from")
			if topic == "" {
				topic = rt.app.Kafka.Topic
			}
			payloads, err := svc.Fetch(ctx, topic, int(cmd.Int("max")))
			if err != nil {
				return err
			}
			out := cmd.Root().Writer
			for _, p := range payloads {
				fmt.Fprintln(out, p)
			}
			return nil
		},
	}
}

// ============================================================================
// topics
// ============================================================================

func createTopicsCommand() *cli.Command {
	return &cli.Command{
		Name:  "topics",
		Usage: "创建主主题、重试主题和死信主题",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			rt, err := newRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.close()

			svc, err := rt.newService()
			if err != nil {
				return err
			}
			defer func() { _ = svc.Close() }()

			if err := svc.EnsureTopics(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.Root().Writer, strings.Join(topicsOf(rt.app.Kafka), "\n"))
			return nil
		},
	}
}

// ============================================================================
// config
// ============================================================================

func createConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "输出生效的配置与派生主题",
		Action: func(_ context.Context, cmd *cli.Command) error {
			_, app, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			printConfig(cmd.Root().Writer, app)
			return nil
		},
	}
}

func topicsOf(c xkafka.Config) []string {
	return xkafka.AllTopics(c.Topic, c.Consumer.RetryAttempts)
}

func printConfig(w io.Writer, app *AppConfig) {
	k := app.Kafka
	fmt.Fprintf(w, "brokers:        %s\n", strings.Join(k.Brokers, ","))
	fmt.Fprintf(w, "group:          %s\n", k.GroupID)
	fmt.Fprintf(w, "topic:          %s\n", k.Topic)
	fmt.Fprintf(w, "retry topics:   %s\n", strings.Join(xkafka.RetryTopics(k.Topic, k.Consumer.RetryAttempts), ","))
	fmt.Fprintf(w, "dlq topic:      %s\n", xkafka.DLQTopic(k.Topic))
	fmt.Fprintf(w, "retry attempts: %d\n", k.Consumer.RetryAttempts)
	fmt.Fprintf(w, "retry delay:    %s\n", k.Consumer.RetryDelay)
	fmt.Fprintf(w, "send attempts:  %d (%s)\n", k.Producer.MaxAttempts, k.Producer.Backoff)
	fmt.Fprintf(w, "log level:      %s\n", app.Log.Level)
}

package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/omeyang/xrelay/pkg/config/xconf"
	"github.com/omeyang/xrelay/pkg/mq/xkafka"
	"github.com/omeyang/xrelay/pkg/observability/xlog"

	"github.com/urfave/cli/v3"
)

// errUsage 命令行参数错误。
var errUsage = errors.New("xrelay: usage error")

// 默认值。
const (
	defaultMetricsAddr   = ":9464"
	defaultNamespace     = "xrelay"
	defaultStatsInterval = time.Minute
)

// AppConfig 进程配置。
//
//	log:
//	  level: info
//	  format: json
//	kafka:
//	  brokers: ["localhost:9092"]
//	  group_id: relay
//	  topic: orders
//	metrics:
//	  addr: ":9464"
type AppConfig struct {
	Log     xlog.Config   `koanf:"log"`
	Kafka   xkafka.Config `koanf:"kafka"`
	Metrics MetricsConfig `koanf:"metrics"`
}

// MetricsConfig serve 的 HTTP 端点配置。
type MetricsConfig struct {
	// Addr 为空时不启动 HTTP 端点。
	Addr          string        `koanf:"addr"`
	Namespace     string        `koanf:"namespace"`
	StatsInterval time.Duration `koanf:"stats_interval"`
}

// Validate 实现 xconf.Validator。
func (c *AppConfig) Validate() error {
	if _, err := xlog.ParseLevel(c.Log.Level); c.Log.Level != "" && err != nil {
		return err
	}
	return c.Kafka.WithDefaults().Validate()
}

func (c *AppConfig) withDefaults() {
	c.Kafka = c.Kafka.WithDefaults()
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = defaultNamespace
	}
	if c.Metrics.StatsInterval <= 0 {
		c.Metrics.StatsInterval = defaultStatsInterval
	}
}

// flagOverrides 命令行参数到配置键的映射。
// 参数显式给出，或配置中缺少该键时，以参数值覆盖。
var flagOverrides = []struct {
	flag string
	key  string
}{
	{"brokers", "kafka.brokers"},
	{"group", "kafka.group_id"},
	{"topic", "kafka.topic"},
	{"log-level", "log.level"},
}

// loadConfig 读取配置文件（可选），叠加命令行参数后反序列化并校验。
func loadConfig(cmd *cli.Command) (xconf.Config, *AppConfig, error) {
	var (
		cfg xconf.Config
		err error
	)
	if path := cmd.String("config"); path != "" {
		cfg, err = xconf.New(path)
	} else {
		cfg, err = xconf.NewFromBytes([]byte("{}"), xconf.FormatJSON)
	}
	if err != nil {
		return nil, nil, err
	}

	k := cfg.Client()
	for _, o := range flagOverrides {
		if !cmd.IsSet(o.flag) && k.Exists(o.key) {
			continue
		}
		var value any = cmd.String(o.flag)
		if o.flag == "brokers" {
			value = cmd.StringSlice(o.flag)
		}
		if s, ok := value.(string); ok && s == "" {
			continue
		}
		if err := cfg.Set(o.key, value); err != nil {
			return nil, nil, fmt.Errorf("xrelay: override %s: %w", o.key, err)
		}
	}

	app := &AppConfig{}
	if err := cfg.Unmarshal("", app); err != nil {
		return nil, nil, err
	}
	app.withDefaults()
	return cfg, app, nil
}

// buildLogger 按配置创建日志记录器，返回的 cleanup 必须在退出前调用。
func buildLogger(c xlog.Config) (xlog.LoggerWithLevel, func() error, error) {
	return xlog.FromConfig(c).Build()
}

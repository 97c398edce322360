package xkafka

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/omeyang/xrelay/pkg/lifecycle/xrun"
	"github.com/omeyang/xrelay/pkg/observability/xlog"
	"github.com/omeyang/xrelay/pkg/storage/xmsglog"
)

// Stats 汇总各组件统计。
type Stats struct {
	Dispatcher      DispatcherStats
	Listener        ListenerStats
	Router          RouterStats
	DeadLettersSeen int64
	MessageLogSize  int
}

// Service 对外暴露的投递核心：Send、Fetch、GetLog、RegisterProcessor。
//
// 生命周期：NewService 创建生产者并启动投递报告消费；Run 阻塞运行监听器与死信监听器；
// Close 在 Run 返回后调用，刷新并关闭生产者。
type Service struct {
	cfg        Config
	log        *xmsglog.Log
	dispatcher *Dispatcher
	router     *Router
	listener   *Listener
	dlq        *DLQListener
	fetcher    *Fetcher
	options    *options
	closed     atomic.Bool
}

// NewService 校验配置并装配全部组件。
func NewService(cfg Config, opts ...Option) (*Service, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("xkafka: invalid config: %w", err)
	}
	o := applyOptions(opts)
	if o.Log == nil {
		o.Log = xmsglog.New()
	}

	producerConfig, err := cfg.producerConfigMap()
	if err != nil {
		return nil, err
	}
	producer, err := o.NewProducer(producerConfig)
	if err != nil {
		return nil, &BrokerError{Op: "new producer", Err: err}
	}
	if producer == nil {
		return nil, ErrNilClient
	}

	// 各组件共用同一组已解析的选项。
	shared := func(target *options) { *target = *o }

	dispatcher, err := NewDispatcher(producer, cfg.Producer, shared)
	if err != nil {
		producer.Close()
		return nil, err
	}
	svc, err := assemble(cfg, o, dispatcher, shared)
	if err != nil {
		return nil, errors.Join(err, dispatcher.Close())
	}
	return svc, nil
}

func assemble(cfg Config, o *options, dispatcher *Dispatcher, shared Option) (*Service, error) {
	router, err := NewRouter(dispatcher.producer, cfg, shared)
	if err != nil {
		return nil, err
	}
	listener, err := NewListener(cfg, router, o.Log, shared)
	if err != nil {
		return nil, err
	}
	dlq, err := NewDLQListener(cfg, shared)
	if err != nil {
		return nil, err
	}
	fetcher, err := NewFetcher(cfg, shared)
	if err != nil {
		return nil, err
	}
	return &Service{
		cfg:        cfg,
		log:        o.Log,
		dispatcher: dispatcher,
		router:     router,
		listener:   listener,
		dlq:        dlq,
		fetcher:    fetcher,
		options:    o,
	}, nil
}

// Send 发送 payload，见 Dispatcher.Send。
func (s *Service) Send(ctx context.Context, topic, payload string, useRetry bool) error {
	return s.dispatcher.Send(ctx, topic, payload, useRetry)
}

// Fetch 同步拉取，见 Fetcher.Fetch。
func (s *Service) Fetch(ctx context.Context, topic string, maxCount int) ([]string, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	return s.fetcher.Fetch(ctx, topic, maxCount)
}

// GetLog 返回处理成功的 payload 快照，按处理完成顺序排列。
func (s *Service) GetLog() []string {
	return s.log.Snapshot()
}

// RegisterProcessor 替换监听器的处理函数。
func (s *Service) RegisterProcessor(fn Processor) error {
	return s.listener.RegisterProcessor(fn)
}

// EnsureTopics 创建主主题、重试主题和死信主题。
func (s *Service) EnsureTopics(ctx context.Context) error {
	config, err := s.cfg.adminConfigMap()
	if err != nil {
		return err
	}
	admin, err := s.options.NewAdmin(config)
	if err != nil {
		return &BrokerError{Op: "new admin", Err: err}
	}
	defer admin.Close()
	return EnsureTopics(ctx, admin, s.cfg)
}

// Run 运行监听器和死信监听器，阻塞到 ctx 取消或任一组件失败。
// Consumer.CreateTopics 为 true 时先创建主题。
func (s *Service) Run(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if s.cfg.Consumer.CreateTopics {
		if err := s.EnsureTopics(ctx); err != nil {
			return err
		}
	}

	s.options.Logger.Info(ctx, "relay starting",
		xlog.Topic(s.cfg.Topic),
		xlog.Group(s.cfg.GroupID),
		xlog.Attempt(s.cfg.Consumer.RetryAttempts),
		xlog.Count(int64(s.cfg.Consumer.Concurrency)))

	g, _ := xrun.NewGroup(ctx, xrun.WithName(componentName), xrun.WithLogger(s.options.Logger))
	g.Add("listener", s.listener)
	g.Add("dlq-listener", s.dlq)
	return g.Wait()
}

// Stats 返回各组件统计。
func (s *Service) Stats() Stats {
	return Stats{
		Dispatcher:      s.dispatcher.Stats(),
		Listener:        s.listener.Stats(),
		Router:          s.router.Stats(),
		DeadLettersSeen: s.dlq.Received(),
		MessageLogSize:  s.log.Len(),
	}
}

// Config 返回补齐默认值后的配置。
func (s *Service) Config() Config { return s.cfg }

// Close 刷新并关闭生产者。重复调用返回 ErrClosed。
func (s *Service) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	return s.dispatcher.Close()
}

var (
	_ xrun.Service = (*Listener)(nil)
	_ xrun.Service = (*DLQListener)(nil)
	_ xrun.Service = (*Service)(nil)
)

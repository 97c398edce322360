package xkafka

import (
	"context"
	"time"

	"github.com/omeyang/xrelay/pkg/observability/xlog"
	"github.com/omeyang/xrelay/pkg/observability/xmetrics"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// Fetcher 按需同步拉取主题上的消息。
//
// 每次 Fetch 使用一个新的会话，消费组与持续监听的消费组隔离（默认 <group_id>-fetch），
// 避免两条路径争抢 offset。
type Fetcher struct {
	cfg     Config
	options *options
}

// NewFetcher 创建 Fetcher。
func NewFetcher(cfg Config, opts ...Option) (*Fetcher, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Fetcher{cfg: cfg, options: applyOptions(opts)}, nil
}

// Fetch 从 topic 拉取至多 maxCount 条消息的 payload。
//
// 只有调用本身不合法（topic 为空）时返回错误；maxCount <= 0 直接返回空结果，不创建会话。
// 首次零等待轮询仅用于触发分区分配。此时收到的消息不会被丢弃，而是 Seek 回退，
// 在后续轮次中正常返回，因此结果长度为 min(maxCount, 可用消息数)。
// 之后每轮以 PollTimeout 等待首条消息，再零等待取尽已到达的消息，每批后同步提交 offset。
// 达到 maxCount、某轮为空、ctx 取消或会话出错时结束；会话错误只记录日志并返回已拉取的部分。
// 会话在所有路径上关闭。
func (f *Fetcher) Fetch(ctx context.Context, topic string, maxCount int) (payloads []string, err error) {
	if topic == "" {
		return nil, ErrEmptyTopic
	}
	if maxCount <= 0 {
		return []string{}, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, span := xmetrics.Start(ctx, f.options.Observer, xmetrics.SpanOptions{
		Component: componentName,
		Operation: "fetch",
		Kind:      xmetrics.KindConsumer,
		Attrs:     append(kafkaAttrs(topic), xmetrics.Int("max_count", maxCount)),
	})
	defer func() {
		span.End(xmetrics.Result{Err: err, Attrs: []xmetrics.Attr{xmetrics.Int("count", len(payloads))}})
	}()

	payloads = []string{}
	config, err := f.cfg.fetchConfigMap()
	if err != nil {
		return payloads, err
	}
	s, err := openSession(f.options.NewConsumer, config, f.cfg.Fetch.GroupID, []string{topic})
	if err != nil {
		f.logSessionError(ctx, topic, err)
		return payloads, nil
	}
	defer func() {
		if cerr := s.close(); cerr != nil {
			f.logSessionError(ctx, topic, cerr)
		}
	}()

	payloads, serr := f.drain(ctx, s, maxCount)
	if serr != nil {
		f.logSessionError(ctx, topic, serr)
	}
	f.options.Logger.Debug(ctx, "fetch finished",
		xlog.Topic(topic),
		xlog.Group(f.cfg.Fetch.GroupID),
		xlog.Count(int64(len(payloads))))
	return payloads, nil
}

func (f *Fetcher) drain(ctx context.Context, s *session, maxCount int) ([]string, error) {
	result := make([]string, 0, min(maxCount, 256))

	warm, err := s.poll(0)
	if err != nil {
		return result, err
	}
	if warm != nil {
		if err := s.rewind(warm); err != nil {
			return result, err
		}
	}

	for len(result) < maxCount && ctx.Err() == nil {
		batch, err := f.pollBatch(s, maxCount-len(result), f.cfg.Fetch.PollTimeout)
		for _, msg := range batch {
			result = append(result, string(msg.Value))
			if serr := s.store(msg); serr != nil {
				return result, serr
			}
		}
		if len(batch) > 0 {
			if cerr := s.commit(); cerr != nil {
				return result, cerr
			}
		}
		if err != nil {
			return result, err
		}
		if len(batch) == 0 {
			break
		}
	}
	return result, nil
}

// pollBatch 等待至多 timeout 取得首条消息，再零等待取出已到达的消息，至多 limit 条。
func (f *Fetcher) pollBatch(s *session, limit int, timeout time.Duration) ([]*kafka.Message, error) {
	var batch []*kafka.Message
	first, err := s.poll(timeout)
	if err != nil || first == nil {
		return batch, err
	}
	batch = append(batch, first)
	for len(batch) < limit {
		msg, err := s.poll(0)
		if err != nil {
			return batch, err
		}
		if msg == nil {
			break
		}
		batch = append(batch, msg)
	}
	return batch, nil
}

func (f *Fetcher) logSessionError(ctx context.Context, topic string, err error) {
	f.options.Logger.Error(ctx, "fetch session error",
		xlog.Topic(topic),
		xlog.Group(f.cfg.Fetch.GroupID),
		xlog.Err(err))
}

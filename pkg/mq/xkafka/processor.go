package xkafka

import (
	"context"
	"fmt"
	"strings"
)

// Processor 业务处理函数。返回 nil 表示处理完成，返回错误表示拒绝，
// 被拒绝的消息经重试主题重新投递，耗尽后进入死信。
type Processor func(ctx context.Context, payload string) error

// AcceptAll 接受所有消息，是监听器的默认处理函数。
func AcceptAll(context.Context, string) error {
	return nil
}

// RejectContaining 返回拒绝包含任一标记串的消息的处理函数，空标记被忽略。
//
//	svc.RegisterProcessor(xkafka.RejectContaining("error", "retry"))
func RejectContaining(markers ...string) Processor {
	kept := make([]string, 0, len(markers))
	for _, m := range markers {
		if m != "" {
			kept = append(kept, m)
		}
	}
	return func(_ context.Context, payload string) error {
		for _, m := range kept {
			if strings.Contains(payload, m) {
				return fmt.Errorf("%w: contains %q", ErrRejected, m)
			}
		}
		return nil
	}
}

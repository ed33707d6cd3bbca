package application

import (
	"context"
	"errors"
	"sync"

	"github.com/wyfcoding/exchange/internal/exchange/domain"
	"github.com/wyfcoding/pkg/contextx"
	"github.com/wyfcoding/pkg/messagequeue"
)

// EventHandler 进程内事件订阅者
// 返回的错误由分发方聚合后上抛给触发操作的调用者。
type EventHandler func(ctx context.Context, event domain.Event) error

// EventBus 进程内事件总线
// 事务提交后同步分发事件，订阅者按注册顺序依次处理。
type EventBus struct {
	mu       sync.RWMutex
	handlers []EventHandler
}

// NewEventBus 创建事件总线
func NewEventBus() *EventBus {
	return &EventBus{}
}

// Subscribe 注册订阅者
func (b *EventBus) Subscribe(handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, handler)
}

// Dispatch 按产生顺序分发一批事件
func (b *EventBus) Dispatch(ctx context.Context, events []domain.Event) error {
	b.mu.RLock()
	handlers := make([]EventHandler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	var errs []error
	for _, event := range events {
		for _, handler := range handlers {
			if err := handler(ctx, event); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// publishAll 将一批事件写入事务内的 Outbox
// publisher 为空时跳过（测试场景）。
func publishAll(ctx, txCtx context.Context, publisher messagequeue.EventPublisher, events []domain.Event) error {
	if publisher == nil {
		return nil
	}
	for _, event := range events {
		if err := publisher.PublishInTx(ctx, contextx.GetTx(txCtx), event.Topic, event.Key, event.Payload); err != nil {
			return err
		}
	}
	return nil
}

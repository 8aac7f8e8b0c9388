package bus

import (
	"context"
	"fmt"
	"sync"

	"github.com/Kcheesee/StarCitiSalesAgent/internal/realtime"
)

type Bus interface {
	Publish(ctx context.Context, ev realtime.Event) error
	StartForwarder(ctx context.Context, onEvent func(ev realtime.Event)) error
	Close() error
}

// localBus delivers events to forwarders in this process only. It stands in
// for Redis when REDIS_ADDR is unset.
type localBus struct {
	mu       sync.RWMutex
	handlers []func(realtime.Event)
}

func NewLocalBus() Bus { return &localBus{} }

func (b *localBus) Publish(_ context.Context, ev realtime.Event) error {
	b.mu.RLock()
	handlers := append([]func(realtime.Event){}, b.handlers...)
	b.mu.RUnlock()
	for _, h := range handlers {
		h(ev)
	}
	return nil
}

func (b *localBus) StartForwarder(_ context.Context, onEvent func(ev realtime.Event)) error {
	if onEvent == nil {
		return fmt.Errorf("onEvent callback required")
	}
	b.mu.Lock()
	b.handlers = append(b.handlers, onEvent)
	b.mu.Unlock()
	return nil
}

func (b *localBus) Close() error { return nil }

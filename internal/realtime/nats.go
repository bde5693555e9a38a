package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

const subjectPrefix = "hearth."

// NATSBroker 通过 NATS 在多个实例间共享事件流，subject 为 "hearth.<topic>"
type NATSBroker struct {
	nc     *nats.Conn
	logger *slog.Logger
}

func NewNATSBroker(url string, logger *slog.Logger) (*NATSBroker, error) {
	logger = logger.With("component", "realtime")
	nc, err := nats.Connect(url,
		nats.Name("hearth"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	logger.Info("Connected to NATS", "url", url)
	return &NATSBroker{nc: nc, logger: logger}, nil
}

func (b *NATSBroker) Publish(_ context.Context, ev Event) error {
	if b.nc.IsClosed() {
		return ErrClosed
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.nc.Publish(subjectPrefix+ev.Topic, data)
}

func (b *NATSBroker) Subscribe(ctx context.Context, topics ...string) (<-chan Event, func(), error) {
	if b.nc.IsClosed() {
		return nil, nil, ErrClosed
	}

	raw := make(chan *nats.Msg, subscriberBuffer)
	subs := make([]*nats.Subscription, 0, len(topics))
	unsubscribe := func() {
		for _, s := range subs {
			_ = s.Unsubscribe()
		}
	}
	for _, t := range topics {
		s, err := b.nc.ChanSubscribe(subjectPrefix+t, raw)
		if err != nil {
			unsubscribe()
			return nil, nil, fmt.Errorf("subscribe %s: %w", t, err)
		}
		subs = append(subs, s)
	}
	// 等服务端确认订阅，返回后其他实例发布的事件不会丢
	if err := b.nc.Flush(); err != nil {
		unsubscribe()
		return nil, nil, fmt.Errorf("flush subscriptions: %w", err)
	}

	out := make(chan Event, subscriberBuffer)
	done := make(chan struct{})
	go func() {
		defer close(out)
		defer unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case msg := <-raw:
				var ev Event
				if err := json.Unmarshal(msg.Data, &ev); err != nil {
					b.logger.Warn("Dropping malformed event", "subject", msg.Subject, "error", err)
					continue
				}
				select {
				case out <- ev:
				default:
					b.logger.Warn("Subscriber buffer full, dropping event", "topic", ev.Topic, "type", ev.Type)
				}
			}
		}
	}()

	var once sync.Once
	cancel := func() { once.Do(func() { close(done) }) }
	return out, cancel, nil
}

func (b *NATSBroker) Close() error {
	if err := b.nc.Drain(); err != nil {
		b.nc.Close()
		return err
	}
	return nil
}

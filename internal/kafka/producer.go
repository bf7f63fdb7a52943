package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// Producer decouples callers from broker latency: Publish drops the message
// into an inbox channel and a single goroutine writes it out. Messages still
// in the inbox at shutdown are flushed before the writer closes.
type Producer struct {
	w       *kafka.Writer
	inbox   chan kafka.Message
	closeCh chan struct{}
	mu      sync.RWMutex
	closed  bool
	log     zerolog.Logger
}

func NewProducer(brokers []string, topic string, buf int, log zerolog.Logger) *Producer {
	return &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
		log:     log.With().Str("topic", topic).Logger(),
	}
}

func (p *Producer) Start(ctx context.Context) {
	go func() {
		defer close(p.closeCh)
		for {
			select {
			case <-ctx.Done():
				p.drain()
				return
			case m, ok := <-p.inbox:
				if !ok {
					_ = p.w.Close()
					return
				}
				p.write(m)
			}
		}
	}()
}

func (p *Producer) drain() {
	p.closeInbox()
	for m := range p.inbox {
		p.write(m)
	}
	_ = p.w.Close()
}

// closeInbox flips closed before closing the channel; Publish checks the
// flag under the read lock, so no send can race the close.
func (p *Producer) closeInbox() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.inbox)
}

func (p *Producer) write(m kafka.Message) {
	if err := p.w.WriteMessages(context.Background(), m); err != nil {
		p.log.Warn().Err(err).Msg("kafka write failed")
	}
}

// Publish is fire-and-forget; if the inbox is full or the producer is
// already closed the message is dropped rather than blocking the caller.
func (p *Producer) Publish(key, value []byte, headers ...kafka.Header) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.log.Warn().Msg("producer closed, dropping message")
		return
	}
	m := kafka.Message{Key: key, Value: value, Time: time.Now(), Headers: headers}
	select {
	case p.inbox <- m:
	default:
		p.log.Warn().Msg("producer inbox full, dropping message")
	}
}

// Close lets the goroutine flush the remaining messages and exit.
func (p *Producer) Close()      { p.closeInbox() }
func (p *Producer) WaitClosed() { <-p.closeCh }

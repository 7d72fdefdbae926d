// Package notify provides an optional Redis pub/sub publisher and
// subscriber. The status server starts and stops a Publisher; no other
// package in this module publishes to or subscribes from these
// channels. Redis is treated as optional: a nil client makes every
// operation a no-op, and a failed publish is counted and logged rather
// than returned to the caller.
package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Channel names published on the shared bus.
const (
	ChannelNewEvent       = "mindstream:new_event"
	ChannelDigestInvalidate = "mindstream:digest_invalidate"
)

// Config tunes the publisher's buffering and worker count.
type Config struct {
	BufferSize int
	Workers    int
}

func (c Config) withDefaults() Config {
	if c.BufferSize <= 0 {
		c.BufferSize = 256
	}
	if c.Workers <= 0 {
		c.Workers = 2
	}
	return c
}

// Publisher asynchronously forwards published messages to Redis,
// buffering via a channel so callers never block on a slow or down
// Redis instance.
type Publisher struct {
	logger zerolog.Logger
	client *redis.Client

	ch chan message
	wg sync.WaitGroup

	workers int

	published int64
	dropped   int64
	errors    int64
}

type message struct {
	channel string
	payload string
}

// New builds a Publisher. client may be nil (Redis disabled), in
// which case Publish is a cheap no-op and Stats always reports zero.
func New(logger zerolog.Logger, client *redis.Client, cfg ...Config) *Publisher {
	c := Config{}
	if len(cfg) > 0 {
		c = cfg[0]
	}
	c = c.withDefaults()

	return &Publisher{
		logger: logger,
		client: client,
		ch:     make(chan message, c.BufferSize),

		workers: c.Workers,
	}
}

// Start launches the background workers that drain the publish
// queue. A nil client means there is nothing to start.
func (p *Publisher) Start(ctx context.Context) {
	if p.client == nil {
		return
	}
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
}

// Stop drains and closes the publisher, waiting for in-flight sends.
func (p *Publisher) Stop() {
	if p.client == nil {
		return
	}
	close(p.ch)
	p.wg.Wait()
}

func (p *Publisher) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case msg, ok := <-p.ch:
			if !ok {
				return
			}
			p.send(ctx, msg)
		case <-ctx.Done():
			p.drain(ctx)
			return
		}
	}
}

func (p *Publisher) drain(ctx context.Context) {
	for {
		select {
		case msg, ok := <-p.ch:
			if !ok {
				return
			}
			p.send(ctx, msg)
		default:
			return
		}
	}
}

func (p *Publisher) send(ctx context.Context, msg message) {
	sendCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := p.client.Publish(sendCtx, msg.channel, msg.payload).Err(); err != nil {
		atomic.AddInt64(&p.errors, 1)
		p.logger.Debug().Err(err).Str("channel", msg.channel).Msg("notify: publish failed")
		return
	}
	atomic.AddInt64(&p.published, 1)
}

// Publish enqueues a message for best-effort delivery. A full queue
// or disabled client drops the message rather than blocking.
func (p *Publisher) Publish(channel, payload string) {
	if p.client == nil {
		return
	}
	select {
	case p.ch <- message{channel: channel, payload: payload}:
	default:
		atomic.AddInt64(&p.dropped, 1)
	}
}

// Stats reports the publisher's lifetime counters.
type Stats struct {
	Published int64
	Dropped   int64
	Errors    int64
}

func (p *Publisher) Stats() Stats {
	return Stats{
		Published: atomic.LoadInt64(&p.published),
		Dropped:   atomic.LoadInt64(&p.dropped),
		Errors:    atomic.LoadInt64(&p.errors),
	}
}

// Subscriber abstracts a single-channel subscription.
type Subscriber struct {
	client *redis.Client
}

// NewSubscriber builds a Subscriber. client may be nil.
func NewSubscriber(client *redis.Client) *Subscriber {
	return &Subscriber{client: client}
}

// Subscribe returns a channel of payloads for the given Redis
// channel, or nil if Redis is disabled.
func (s *Subscriber) Subscribe(ctx context.Context, channel string) <-chan string {
	if s.client == nil {
		return nil
	}
	sub := s.client.Subscribe(ctx, channel)
	out := make(chan string)
	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- msg.Payload:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

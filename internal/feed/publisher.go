// v0
// internal/feed/publisher.go
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/segmentio/kafka-go"

	"nrgchamp/powerinsight/internal/breaker"
	"nrgchamp/powerinsight/internal/state"
)

// Partitioner enumerates the supported Kafka partition strategies.
type Partitioner string

const (
	PartitionerHash       Partitioner = "hash"
	PartitionerRoundRobin Partitioner = "roundrobin"
)

// Config encapsulates the options required to publish store changes.
type Config struct {
	Enabled     bool
	Topic       string
	Brokers     []string
	Acks        int
	Partitioner Partitioner
}

// Recorder receives delivery outcomes; *metrics.Metrics satisfies it.
type Recorder interface {
	FeedPublish(result string)
	SetFeedQueueDepth(n int)
}

type nopRecorder struct{}

func (nopRecorder) FeedPublish(string)   {}
func (nopRecorder) SetFeedQueueDepth(int) {}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type writeCloser interface {
	Close() error
}

// Message is the JSON value written for every store event.
type Message struct {
	Type     string `json:"type"`
	Version  uint64 `json:"version"`
	DeviceID int64  `json:"deviceId,omitempty"`
	RunID    string `json:"runId,omitempty"`
	Outcome  string `json:"outcome,omitempty"`
	Message  string `json:"message,omitempty"`
	At       string `json:"at"`
}

type publishRequest struct {
	key   []byte
	value []byte
	kind  state.Kind
}

// Publisher forwards store change events to a Kafka topic. Events are queued
// on the store goroutine and written by a background loop, so store writers
// never wait on the broker.
type Publisher struct {
	cfg       Config
	log       *slog.Logger
	writer    messageWriter
	closer    writeCloser
	rec       Recorder
	enabled   bool
	queue     chan publishRequest
	runCtx    context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
	started   atomic.Bool
	dropped   atomic.Int64
}

const queueSize = 256

var (
	errNilLogger  = errors.New("feed publisher requires a logger")
	errNilWriter  = errors.New("feed publisher requires a writer")
	errNotStarted = errors.New("feed publisher not started")
)

// NewPublisher builds a publisher backed by a kafka.Writer guarded by brk.
// A nil brk writes without a breaker.
func NewPublisher(cfg Config, brk *breaker.Breaker, rec Recorder, log *slog.Logger) (*Publisher, error) {
	if log == nil {
		return nil, errNilLogger
	}
	if !cfg.Enabled {
		log.Info("feed_publisher_disabled")
		return &Publisher{cfg: cfg, log: log, rec: nopRecorder{}}, nil
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, fmt.Errorf("feed topic must not be empty")
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	balancer, err := resolveBalancer(cfg.Partitioner)
	if err != nil {
		return nil, err
	}
	base := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		RequiredAcks:           kafka.RequiredAcks(cfg.Acks),
		AllowAutoTopicCreation: false,
		Balancer:               balancer,
	}
	var w messageWriter = base
	if brk != nil {
		w = breakerWriter{next: base, brk: brk}
	}
	return newPublisherWithWriter(cfg, log, w, base, rec)
}

func newPublisherWithWriter(cfg Config, log *slog.Logger, writer messageWriter, closer writeCloser, rec Recorder) (*Publisher, error) {
	if log == nil {
		return nil, errNilLogger
	}
	if writer == nil {
		return nil, errNilWriter
	}
	if rec == nil {
		rec = nopRecorder{}
	}
	p := &Publisher{
		cfg:     cfg,
		log:     log.With(slog.String("component", "feed_publisher")),
		writer:  writer,
		closer:  closer,
		rec:     rec,
		enabled: cfg.Enabled,
	}
	if p.enabled {
		p.queue = make(chan publishRequest, queueSize)
		rec.SetFeedQueueDepth(0)
	}
	return p, nil
}

// Start launches the background publishing loop.
func (p *Publisher) Start(ctx context.Context) error {
	if !p.enabled {
		p.log.Info("feed_publisher_start_skipped", slog.String("reason", "disabled"))
		return nil
	}
	if ctx == nil {
		return errors.New("context must not be nil")
	}
	p.startOnce.Do(func() {
		p.runCtx, p.cancel = context.WithCancel(ctx)
		p.started.Store(true)
		p.wg.Add(1)
		go p.run()
		p.log.Info("feed_publisher_started", slog.String("topic", p.cfg.Topic))
	})
	if !p.started.Load() {
		return errNotStarted
	}
	return nil
}

// Stop cancels the loop and waits for queued messages to drain.
func (p *Publisher) Stop(ctx context.Context) error {
	if !p.enabled {
		return nil
	}
	var stopErr error
	p.stopOnce.Do(func() {
		if p.cancel != nil {
			p.cancel()
		}
		done := make(chan struct{})
		go func() {
			p.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			stopErr = ctx.Err()
		}
		if p.closer != nil {
			if err := p.closer.Close(); err != nil {
				p.log.Error("feed_publisher_close_err", slog.Any("err", err))
			}
		}
		p.rec.SetFeedQueueDepth(0)
		p.log.Info("feed_publisher_stopped", slog.Int64("dropped", p.dropped.Load()))
	})
	return stopErr
}

// Attach subscribes the publisher to every event of s and returns the
// unsubscribe function.
func (p *Publisher) Attach(s *state.Store) func() {
	return s.Subscribe(p.Handle)
}

// Handle enqueues ev without blocking. Events arriving while the queue is
// full are dropped and counted.
func (p *Publisher) Handle(ev state.Event) {
	if !p.enabled || !p.started.Load() {
		return
	}
	value, err := json.Marshal(toMessage(ev))
	if err != nil {
		p.rec.FeedPublish("fail")
		p.log.Error("feed_encode_err", slog.Any("err", err), slog.String("kind", string(ev.Kind)))
		return
	}
	req := publishRequest{key: messageKey(ev), value: value, kind: ev.Kind}
	select {
	case p.queue <- req:
		p.rec.SetFeedQueueDepth(len(p.queue))
	default:
		p.dropped.Add(1)
		p.rec.FeedPublish("dropped")
		p.log.Warn("feed_queue_full", slog.String("kind", string(ev.Kind)))
	}
}

func (p *Publisher) run() {
	defer p.wg.Done()
	for {
		select {
		case <-p.runCtx.Done():
			p.drain()
			p.started.Store(false)
			p.log.Info("feed_publisher_loop_exit")
			return
		case req := <-p.queue:
			p.rec.SetFeedQueueDepth(len(p.queue))
			p.deliver(p.runCtx, req)
		}
	}
}

// drain flushes what is left after cancellation with a fresh context so the
// final messages still reach the broker.
func (p *Publisher) drain() {
	ctx := context.WithoutCancel(p.runCtx)
	for {
		select {
		case req := <-p.queue:
			p.rec.SetFeedQueueDepth(len(p.queue))
			p.deliver(ctx, req)
		default:
			return
		}
	}
}

func (p *Publisher) deliver(ctx context.Context, req publishRequest) {
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: req.key, Value: req.value}); err != nil {
		p.rec.FeedPublish("fail")
		p.log.Error("feed_publish_err", slog.Any("err", err), slog.String("kind", string(req.kind)))
		return
	}
	p.rec.FeedPublish("ok")
	p.log.Debug("feed_publish_success", slog.String("kind", string(req.kind)))
}

func toMessage(ev state.Event) Message {
	return Message{
		Type:     string(ev.Kind),
		Version:  ev.Version,
		DeviceID: ev.DeviceID,
		RunID:    ev.RunID,
		Outcome:  ev.Outcome,
		Message:  ev.Message,
		At:       ev.At.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
}

// messageKey keeps the events of one device on one partition.
func messageKey(ev state.Event) []byte {
	switch {
	case ev.DeviceID != 0:
		return []byte("device:" + strconv.FormatInt(ev.DeviceID, 10))
	case ev.RunID != "":
		return []byte("run:" + ev.RunID)
	default:
		return nil
	}
}

func resolveBalancer(partitioner Partitioner) (kafka.Balancer, error) {
	switch partitioner {
	case PartitionerHash, "":
		return &kafka.Hash{}, nil
	case PartitionerRoundRobin:
		return &kafka.RoundRobin{}, nil
	default:
		return nil, fmt.Errorf("unsupported partitioner: %s", partitioner)
	}
}

type breakerWriter struct {
	next messageWriter
	brk  *breaker.Breaker
}

func (w breakerWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	return w.brk.Execute(ctx, func(ctx context.Context) error {
		return w.next.WriteMessages(ctx, msgs...)
	})
}

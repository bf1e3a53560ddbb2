// v0
// internal/feed/publisher_test.go
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"nrgchamp/powerinsight/internal/breaker"
	"nrgchamp/powerinsight/internal/model"
	"nrgchamp/powerinsight/internal/state"
)

type recordingWriter struct {
	ch chan kafka.Message
}

func newRecordingWriter() *recordingWriter {
	return &recordingWriter{ch: make(chan kafka.Message, 8)}
}

func (r *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, msg := range msgs {
		r.ch <- msg
	}
	return nil
}

func (r *recordingWriter) Close() error {
	close(r.ch)
	return nil
}

func (r *recordingWriter) await(t *testing.T) kafka.Message {
	t.Helper()
	select {
	case msg := <-r.ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for publish")
	}
	return kafka.Message{}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPublisherForwardsStoreEvents(t *testing.T) {
	writer := newRecordingWriter()
	cfg := Config{Enabled: true, Topic: "powerinsight.changes", Brokers: []string{"kafka:9092"}, Acks: -1}
	pub, err := newPublisherWithWriter(cfg, discardLogger(), writer, writer, nil)
	if err != nil {
		t.Fatalf("newPublisherWithWriter error: %v", err)
	}
	if err := pub.Start(context.Background()); err != nil {
		t.Fatalf("start error: %v", err)
	}
	store := state.New()
	unsubscribe := pub.Attach(store)
	defer unsubscribe()

	store.SetDevice(model.Device{ID: 7, Name: "Fridge"})
	msg := writer.await(t)
	if string(msg.Key) != "device:7" {
		t.Fatalf("expected device key, got %q", msg.Key)
	}
	var decoded Message
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("decode value: %v", err)
	}
	if decoded.Type != string(state.DeviceUpdated) || decoded.Version != 1 || decoded.DeviceID != 7 {
		t.Fatalf("unexpected message %+v", decoded)
	}

	store.Publish(state.Event{Kind: state.RunFinished, RunID: "run-1", Outcome: "completed"})
	msg = writer.await(t)
	if string(msg.Key) != "run:run-1" {
		t.Fatalf("expected run key, got %q", msg.Key)
	}
	if err := pub.Stop(context.Background()); err != nil {
		t.Fatalf("stop error: %v", err)
	}
}

func TestDisabledPublisherIgnoresEvents(t *testing.T) {
	pub, err := NewPublisher(Config{Enabled: false}, nil, nil, discardLogger())
	if err != nil {
		t.Fatalf("NewPublisher error: %v", err)
	}
	if err := pub.Start(context.Background()); err != nil {
		t.Fatalf("start error: %v", err)
	}
	pub.Handle(state.Event{Kind: state.AlertsUpdated})
	if err := pub.Stop(context.Background()); err != nil {
		t.Fatalf("stop error: %v", err)
	}
}

func TestNewPublisherValidatesConfig(t *testing.T) {
	if _, err := NewPublisher(Config{Enabled: true, Brokers: []string{"k:9092"}}, nil, nil, discardLogger()); err == nil {
		t.Fatalf("expected error for empty topic")
	}
	if _, err := NewPublisher(Config{Enabled: true, Topic: "t"}, nil, nil, discardLogger()); err == nil {
		t.Fatalf("expected error for missing brokers")
	}
	if _, err := NewPublisher(Config{Enabled: true, Topic: "t", Brokers: []string{"k:9092"}, Partitioner: "sticky"}, nil, nil, discardLogger()); err == nil {
		t.Fatalf("expected error for unknown partitioner")
	}
}

type failingWriter struct{ calls int }

func (f *failingWriter) WriteMessages(context.Context, ...kafka.Message) error {
	f.calls++
	return errors.New("broker down")
}

func TestBreakerWriterFailsFastWhenOpen(t *testing.T) {
	brk, err := breaker.New("feed", breaker.Config{MaxFailures: 1, ResetTimeout: time.Hour}, nil)
	if err != nil {
		t.Fatalf("breaker.New: %v", err)
	}
	inner := &failingWriter{}
	w := breakerWriter{next: inner, brk: brk}
	if err := w.WriteMessages(context.Background(), kafka.Message{}); !errors.Is(err, breaker.ErrOpen) {
		t.Fatalf("expected first failure to open the breaker, got %v", err)
	}
	if err := w.WriteMessages(context.Background(), kafka.Message{}); !errors.Is(err, breaker.ErrOpen) {
		t.Fatalf("expected fast fail, got %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("expected one write attempt, got %d", inner.calls)
	}
}

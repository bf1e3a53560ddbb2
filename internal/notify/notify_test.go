// v0
// internal/notify/notify_test.go
package notify

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type doneToken struct {
	err  error
	done chan struct{}
}

func newDoneToken(err error) *doneToken {
	ch := make(chan struct{})
	close(ch)
	return &doneToken{err: err, done: ch}
}

func (t *doneToken) Wait() bool                       { return true }
func (t *doneToken) WaitTimeout(_ time.Duration) bool { return true }
func (t *doneToken) Done() <-chan struct{}            { return t.done }
func (t *doneToken) Error() error                     { return t.err }

type recordingPublisher struct {
	mu       sync.Mutex
	topics   []string
	payloads [][]byte
}

func (p *recordingPublisher) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, payload.([]byte))
	return newDoneToken(nil)
}

func TestMQTTPublishesJSON(t *testing.T) {
	pub := &recordingPublisher{}
	n := newMQTT(pub, "powerinsight/notifications", time.Second, nil)
	n.Notify(Notification{Kind: Success, Text: "Data import and analysis complete!", RunID: "r-1", DeviceID: 3})

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.payloads) != 1 || pub.topics[0] != "powerinsight/notifications" {
		t.Fatalf("unexpected publishes %v", pub.topics)
	}
	var decoded Notification
	if err := json.Unmarshal(pub.payloads[0], &decoded); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if decoded.Kind != Success || decoded.RunID != "r-1" || decoded.DeviceID != 3 {
		t.Fatalf("unexpected payload %+v", decoded)
	}
}

func TestRecorderIsBounded(t *testing.T) {
	r := NewRecorder(2)
	r.Notify(Notification{Text: "a", RunID: "x"})
	r.Notify(Notification{Text: "b", RunID: "y"})
	r.Notify(Notification{Text: "c", RunID: "x"})
	all := r.All()
	if len(all) != 2 || all[0].Text != "b" || all[1].Text != "c" {
		t.Fatalf("unexpected recorded notifications %+v", all)
	}
	if got := r.ForRun("x"); len(got) != 1 || got[0].Text != "c" {
		t.Fatalf("unexpected run notifications %+v", got)
	}
}

func TestMultiDeliversToAll(t *testing.T) {
	a, b := NewRecorder(0), NewRecorder(0)
	var calls int
	Multi{a, nil, b, Func(func(Notification) { calls++ })}.Notify(Notification{Kind: Progress, Text: "p"})
	if len(a.All()) != 1 || len(b.All()) != 1 || calls != 1 {
		t.Fatalf("notification not delivered to every target")
	}
	if (Notification{Kind: Progress}).Terminal() || !(Notification{Kind: Error}).Terminal() {
		t.Fatalf("unexpected terminal classification")
	}
}

package mqtt

import (
	"sync"
	"testing"

	paho "github.com/eclipse/paho.mqtt.golang"
)

func TestDisabledClientRoutesNothing(t *testing.T) {
	connected := false
	c, err := New(Config{}, "node", Handlers{OnConnect: func() { connected = true }})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.IsEnabled() {
		t.Fatalf("client without host should be disabled")
	}
	if err := c.Connect(); err != nil || !connected {
		t.Fatalf("Connect = %v, onConnect called = %v", err, connected)
	}
	if err := c.Publish("x", []byte("y"), true); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := c.Subscribe("x/#", func(string, []byte) {}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	c.Disconnect()
}

// fakePaho records the callbacks handed to the paho client.
type fakePaho struct {
	paho.Client
	mu     sync.Mutex
	routes map[string]paho.MessageHandler
}

func newFakePaho() *fakePaho {
	return &fakePaho{routes: map[string]paho.MessageHandler{}}
}

func (f *fakePaho) IsConnected() bool { return true }

func (f *fakePaho) Subscribe(topic string, qos byte, cb paho.MessageHandler) paho.Token {
	f.mu.Lock()
	f.routes[topic] = cb
	f.mu.Unlock()
	return &paho.DummyToken{}
}

func (f *fakePaho) Unsubscribe(topics ...string) paho.Token {
	f.mu.Lock()
	for _, t := range topics {
		delete(f.routes, t)
	}
	f.mu.Unlock()
	return &paho.DummyToken{}
}

func (f *fakePaho) deliver(filter, topic, payload string) bool {
	f.mu.Lock()
	cb := f.routes[filter]
	f.mu.Unlock()
	if cb == nil {
		return false
	}
	cb(f, &message{topic: topic, payload: []byte(payload)})
	return true
}

type message struct {
	paho.Message
	topic   string
	payload []byte
}

func (m *message) Topic() string   { return m.topic }
func (m *message) Payload() []byte { return m.payload }

func TestSubscribeRegistersCallbackWithPaho(t *testing.T) {
	fp := newFakePaho()
	c := &Client{client: fp, enabled: true, subs: map[string]MessageHandler{}}

	var got []string
	if err := c.Subscribe("qrscan/scanner/+/info", func(topic string, payload []byte) {
		got = append(got, topic+"="+string(payload))
	}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if !fp.deliver("qrscan/scanner/+/info", "qrscan/scanner/dock/info", "a") {
		t.Fatalf("no callback registered with paho")
	}
	if len(got) != 1 || got[0] != "qrscan/scanner/dock/info=a" {
		t.Fatalf("got %v", got)
	}

	if err := c.Unsubscribe("qrscan/scanner/+/info"); err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}
	if fp.deliver("qrscan/scanner/+/info", "qrscan/scanner/dock/info", "b") {
		t.Fatalf("callback still registered after Unsubscribe")
	}
}

func TestReconnectRestoresSubscriptions(t *testing.T) {
	connects := 0
	c := &Client{enabled: true, subs: map[string]MessageHandler{}, onConnect: func() { connects++ }}

	var got []string
	// Registered while offline; only remembered.
	c.subs["qrscan/scanner/dock/event/#"] = func(topic string, payload []byte) {
		got = append(got, string(payload))
	}

	fp := newFakePaho()
	c.client = fp
	c.handleConnect(fp)

	if connects != 1 {
		t.Fatalf("onConnect called %d times", connects)
	}
	if !fp.deliver("qrscan/scanner/dock/event/#", "qrscan/scanner/dock/event/scan", "hello") {
		t.Fatalf("subscription not restored on connect")
	}
	if len(got) != 1 || got[0] != "hello" {
		t.Fatalf("got %v", got)
	}
}

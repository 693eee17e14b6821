// Package remote drives QR scanner nodes that sit elsewhere on the network
// and report over MQTT.
//
// A node announces itself with a retained JSON document on
// <prefix>/<id>/info and clears it (empty retained payload) when it goes away.
// The session sends "start"/"stop" commands to <prefix>/<id>/control and the
// node answers on <prefix>/<id>/event/{active,inactive,scan,error}.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"qrscan/mqtt"
	"qrscan/scanner"
)

// DefaultPrefix is the topic root scanner nodes live under.
const DefaultPrefix = "qrscan/scanner"

// Bus is the slice of the MQTT client the library needs.
type Bus interface {
	Subscribe(filter string, fn mqtt.MessageHandler) error
	Unsubscribe(filter string) error
	Publish(topic string, payload []byte, retained bool) error
}

// NodeConfig is a statically known node.
type NodeConfig struct {
	ID    string `yaml:"id"`
	Label string `yaml:"label"`
}

// Config configures the remote scanner library.
type Config struct {
	Prefix       string        `yaml:"prefix"`
	Nodes        []NodeConfig  `yaml:"nodes"`
	StartTimeout time.Duration `yaml:"start_timeout"` // default 5s
}

// Info is the retained announcement of a node.
type Info struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Online bool   `json:"online"`
}

// Command is sent to a node's control topic.
type Command struct {
	Cmd          string `json:"cmd"` // "start" or "stop"
	Continuous   bool   `json:"continuous,omitempty"`
	Mirror       bool   `json:"mirror,omitempty"`
	CaptureImage bool   `json:"capture_image,omitempty"`
	Width        int    `json:"width,omitempty"`
	Height       int    `json:"height,omitempty"`
}

// Library is the event-emitter scanner library backed by remote nodes.
type Library struct {
	bus          Bus
	prefix       string
	startTimeout time.Duration

	mu    sync.Mutex
	nodes map[string]Info
}

// New creates a library and starts listening for node announcements.
func New(bus Bus, cfg Config) (*Library, error) {
	l := &Library{
		bus:          bus,
		prefix:       strings.TrimSuffix(cfg.Prefix, "/"),
		startTimeout: cfg.StartTimeout,
		nodes:        map[string]Info{},
	}
	if l.prefix == "" {
		l.prefix = DefaultPrefix
	}
	if l.startTimeout <= 0 {
		l.startTimeout = 5 * time.Second
	}
	for _, n := range cfg.Nodes {
		l.nodes[n.ID] = Info{ID: n.ID, Label: n.Label, Online: true}
	}

	if err := bus.Subscribe(l.prefix+"/+/info", l.handleInfo); err != nil {
		return nil, fmt.Errorf("subscribe node announcements: %w", err)
	}
	return l, nil
}

func (l *Library) topic(id string, parts ...string) string {
	return strings.Join(append([]string{l.prefix, id}, parts...), "/")
}

func (l *Library) handleInfo(topic string, payload []byte) {
	rest := strings.TrimPrefix(topic, l.prefix+"/")
	id := strings.TrimSuffix(rest, "/info")

	l.mu.Lock()
	defer l.mu.Unlock()

	if len(payload) == 0 {
		if _, ok := l.nodes[id]; ok {
			log.Printf("Remote: node %s gone", id)
		}
		delete(l.nodes, id)
		return
	}

	var info Info
	if err := json.Unmarshal(payload, &info); err != nil {
		log.Printf("Remote: bad announcement on %s: %v", topic, err)
		return
	}
	info.ID = id
	if !info.Online {
		delete(l.nodes, id)
		return
	}
	if _, known := l.nodes[id]; !known {
		log.Printf("Remote: node %s (%q) online", id, info.Label)
	}
	l.nodes[id] = info
}

// Cameras implements scanner.EmitterLibrary. Nodes are listed by id.
func (l *Library) Cameras(ctx context.Context) ([]scanner.Device, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]scanner.Device, 0, len(l.nodes))
	for _, n := range l.nodes {
		out = append(out, scanner.Device{ID: n.ID, Label: n.Label})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// NewScanner implements scanner.EmitterLibrary.
func (l *Library) NewScanner(opts scanner.EmitterOptions) scanner.EmitterScanner {
	return &Scanner{lib: l, opts: opts, handlers: map[string]func(string){}}
}

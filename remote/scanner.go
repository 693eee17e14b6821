package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"qrscan/scanner"
)

// Scanner is one remote scanning session on a node.
type Scanner struct {
	lib  *Library
	opts scanner.EmitterOptions

	mu       sync.Mutex
	handlers map[string]func(payload string)
	node     string
	filter   string
	started  chan error // set while a start is waiting for the node
}

// On implements scanner.EmitterScanner.
func (s *Scanner) On(event string, fn func(payload string)) {
	s.mu.Lock()
	s.handlers[event] = fn
	s.mu.Unlock()
}

// Start implements scanner.EmitterScanner. It returns once the node reports
// active, reports an error, or the start timeout passes.
func (s *Scanner) Start(ctx context.Context, cam scanner.Device) error {
	s.mu.Lock()
	if s.node != "" {
		s.mu.Unlock()
		return fmt.Errorf("scanner already running on %s", s.node)
	}
	started := make(chan error, 1)
	s.node = cam.ID
	s.filter = s.lib.topic(cam.ID, "event", "#")
	s.started = started
	filter := s.filter
	s.mu.Unlock()

	if err := s.lib.bus.Subscribe(filter, s.handleEvent); err != nil {
		s.reset()
		return fmt.Errorf("subscribe %s: %w", filter, err)
	}

	cmd := Command{
		Cmd:          "start",
		Continuous:   s.opts.Continuous,
		Mirror:       s.opts.Mirror,
		CaptureImage: s.opts.CaptureImage,
		Width:        s.opts.Width,
		Height:       s.opts.Height,
	}
	if err := s.send(cam.ID, cmd); err != nil {
		s.abort(filter)
		return fmt.Errorf("%w: %v", scanner.ErrNotReadable, err)
	}

	t := time.NewTimer(s.lib.startTimeout)
	defer t.Stop()

	select {
	case err := <-started:
		if err != nil {
			s.abort(filter)
			return err
		}
		log.Printf("Remote: node %s scanning", cam.ID)
		return nil
	case <-t.C:
		s.abort(filter)
		return fmt.Errorf("node %s did not answer within %s: %w", cam.ID, s.lib.startTimeout, scanner.ErrNotReadable)
	case <-ctx.Done():
		s.abort(filter)
		return ctx.Err()
	}
}

func (s *Scanner) handleEvent(topic string, payload []byte) {
	event := topic[strings.LastIndex(topic, "/")+1:]

	s.mu.Lock()
	fn := s.handlers[event]
	started := s.started
	if event == "active" || event == "error" {
		s.started = nil
	}
	s.mu.Unlock()

	switch event {
	case "active":
		if started != nil {
			started <- nil
		}
	case "error":
		err := nodeError(string(payload))
		if started != nil {
			started <- err
			return
		}
		log.Printf("Remote: node error: %v", err)
		return
	}

	if fn != nil {
		fn(string(payload))
	}
}

// nodeError maps the error names nodes report onto capture errors.
func nodeError(name string) error {
	switch strings.TrimSpace(name) {
	case "NotAllowedError", "denied":
		return fmt.Errorf("%w: %s", scanner.ErrNotAllowed, name)
	case "NotFoundError", "not_found":
		return fmt.Errorf("%w: %s", scanner.ErrNotFound, name)
	case "NotReadableError", "busy":
		return fmt.Errorf("%w: %s", scanner.ErrNotReadable, name)
	case "OverconstrainedError", "overconstrained":
		return fmt.Errorf("%w: %s", scanner.ErrOverconstrained, name)
	default:
		return fmt.Errorf("node error: %s", name)
	}
}

func (s *Scanner) send(node string, cmd Command) error {
	b, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	return s.lib.bus.Publish(s.lib.topic(node, "control"), b, false)
}

// abort undoes a start that never became active.
func (s *Scanner) abort(filter string) {
	s.mu.Lock()
	node := s.node
	s.mu.Unlock()

	_ = s.lib.bus.Unsubscribe(filter)
	if node != "" {
		_ = s.send(node, Command{Cmd: "stop"})
	}
	s.reset()
}

func (s *Scanner) reset() {
	s.mu.Lock()
	s.node = ""
	s.filter = ""
	s.started = nil
	s.mu.Unlock()
}

// Stop implements scanner.EmitterScanner.
func (s *Scanner) Stop(ctx context.Context) error {
	s.mu.Lock()
	node, filter := s.node, s.filter
	s.mu.Unlock()
	if node == "" {
		return nil
	}

	err := s.send(node, Command{Cmd: "stop"})
	if uerr := s.lib.bus.Unsubscribe(filter); err == nil {
		err = uerr
	}
	s.reset()
	log.Printf("Remote: node %s stopped", node)
	return err
}

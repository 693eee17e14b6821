// Package eventpipe accepts session commands written to a named pipe, for
// scripting and bench testing without buttons.
package eventpipe

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"syscall"

	"qrscan/scanner"
)

// Config holds configuration for the event pipe.
type Config struct {
	Path string `yaml:"path"` // Path to named pipe (e.g., "/tmp/qrscan-events")
}

// Op is a command verb.
type Op int

const (
	OpLibrary Op = iota // select a library
	OpCamera            // select a camera by id
	OpToggle            // switch front/back
	OpStop
	OpRestart // stop and start the current library again
)

// Command is one parsed pipe line.
type Command struct {
	Op       Op
	Library  scanner.LibraryKind
	CameraID string
}

// Handler is called for each command received from the pipe.
type Handler func(Command)

// EventPipe listens for commands on a named pipe.
type EventPipe struct {
	path    string
	handler Handler
	ctx     context.Context
	cancel  context.CancelFunc
}

// New creates a new EventPipe. Returns nil if path is empty.
func New(cfg Config, handler Handler) (*EventPipe, error) {
	if cfg.Path == "" {
		return nil, nil
	}

	os.Remove(cfg.Path)

	if err := syscall.Mkfifo(cfg.Path, 0666); err != nil {
		return nil, fmt.Errorf("create named pipe %s: %w", cfg.Path, err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &EventPipe{
		path:    cfg.Path,
		handler: handler,
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Start begins listening for commands on the pipe.
// This should be called as a goroutine.
func (ep *EventPipe) Start() {
	log.Printf("Event pipe listening on %s", ep.path)

	for {
		if ep.ctx.Err() != nil {
			return
		}

		// Blocks until a writer connects.
		file, err := os.OpenFile(ep.path, os.O_RDONLY, 0)
		if err != nil {
			if ep.ctx.Err() != nil {
				return
			}
			log.Printf("Event pipe open error: %v", err)
			continue
		}

		ep.consume(file)
		file.Close()
	}
}

// consume handles every command in r until EOF or Close.
func (ep *EventPipe) consume(r io.Reader) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if ep.ctx.Err() != nil {
			return
		}

		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		cmd, err := parseLine(line)
		if err != nil {
			log.Printf("Event pipe parse error: %v", err)
			continue
		}

		if ep.handler != nil {
			ep.handler(cmd)
		}
	}
}

// Close stops the event pipe listener and removes the pipe.
func (ep *EventPipe) Close() error {
	ep.cancel()
	return os.Remove(ep.path)
}

// parseLine parses a command line.
// Command format:
//
//	library <html5|jsqr|zxing>      - Select a scanner library
//	camera <id>                     - Select a camera
//	toggle                          - Switch between front and back
//	stop                            - Stop scanning
//	restart                         - Restart the current library
func parseLine(line string) (Command, error) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return Command{}, fmt.Errorf("empty command")
	}

	switch cmd := strings.ToLower(parts[0]); cmd {
	case "library", "lib":
		if len(parts) < 2 {
			return Command{}, fmt.Errorf("library requires a name")
		}
		kind, err := scanner.ParseLibraryKind(parts[1])
		if err != nil {
			return Command{}, err
		}
		return Command{Op: OpLibrary, Library: kind}, nil

	case "camera", "cam":
		if len(parts) < 2 {
			return Command{}, fmt.Errorf("camera requires an id")
		}
		// Device ids may contain spaces.
		return Command{Op: OpCamera, CameraID: strings.Join(parts[1:], " ")}, nil

	case "toggle", "switch":
		return Command{Op: OpToggle}, nil

	case "stop":
		return Command{Op: OpStop}, nil

	case "restart":
		return Command{Op: OpRestart}, nil

	default:
		return Command{}, fmt.Errorf("unknown command: %s", cmd)
	}
}

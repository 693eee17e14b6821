package main

import (
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v2"

	"qrscan/buttons"
	"qrscan/eventpipe"
	"qrscan/grabber"
	"qrscan/httpapi"
	"qrscan/indicator"
	"qrscan/mqtt"
	"qrscan/reader"
	"qrscan/remote"
	"qrscan/rotary"
)

// Config is the main configuration structure for qrscan.
type Config struct {
	// MQTT connection settings
	MQTT mqtt.Config `yaml:"mqtt"`

	// Scanner libraries. A library without any configured source is
	// reported missing, except remote nodes which can announce themselves.
	Reader  reader.Config  `yaml:"reader"`
	Grabber grabber.Config `yaml:"grabber"`
	Remote  remote.Config  `yaml:"remote"`

	// Feedback and input devices
	Indicator indicator.Config `yaml:"indicator"`
	Rotary    rotary.Config    `yaml:"rotary"`
	Buttons   buttons.Config   `yaml:"buttons"`
	EventPipe eventpipe.Config `yaml:"event_pipe"`

	HTTP httpapi.Config `yaml:"http"`

	// General settings
	ClientID      string        `yaml:"client_id"`
	Library       string        `yaml:"library"`    // library selected at startup
	AutoStart     *bool         `yaml:"auto_start"` // default true
	ControlSecret string        `yaml:"control_secret"`
	PingInterval  time.Duration `yaml:"ping_interval"` // default 120s
}

// loadConfig decodes and defaults a configuration.
func loadConfig(r io.Reader) (*Config, error) {
	var cfg Config
	if err := yaml.NewDecoder(r).Decode(&cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.ClientID == "" {
		cfg.ClientID = "qrscan-" + uuid.New().String()
		log.Printf("client_id missing in config file, using %s", cfg.ClientID)
	}
	if cfg.AutoStart == nil {
		on := true
		cfg.AutoStart = &on
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 120 * time.Second
	}
	return &cfg, nil
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"qrscan/buttons"
	"qrscan/eventpipe"
	"qrscan/grabber"
	"qrscan/httpapi"
	"qrscan/indicator"
	"qrscan/mqtt"
	"qrscan/reader"
	"qrscan/remote"
	"qrscan/rotary"
	"qrscan/scanner"
	"qrscan/session"
)

var myBuild string

// App holds the application state and dependencies.
type App struct {
	cfg       *Config
	mqtt      *mqtt.Client
	libs      scanner.Libraries
	session   *session.Controller
	indicator indicator.Indicator
	reporter  *reporter
	rotary    *rotary.Rotary
	buttons   *buttons.Pad
	pipe      *eventpipe.EventPipe
	http      *http.Server
	ctx       context.Context
	cancel    context.CancelFunc
}

func main() {
	fmt.Printf("qrscan build %s\n", myBuild)

	cfgfile := flag.String("cfg", "qrscan.cfg", "Config file")
	library := flag.String("library", "", "Library to start with (html5, jsqr, zxing)")
	flag.Parse()

	f, err := os.Open(*cfgfile)
	if err != nil {
		log.Fatalf("Open config: %v", err)
	}
	cfg, err := loadConfig(f)
	f.Close()
	if err != nil {
		log.Fatal(err)
	}
	if *library != "" {
		cfg.Library = *library
	}

	ctx, cancel := context.WithCancel(context.Background())

	app := &App{
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
	}

	// Initialize indicator (LEDs, neopixels, screen, haptic)
	app.indicator, err = indicator.New(cfg.Indicator)
	if err != nil {
		log.Fatalf("Init indicator: %v", err)
	}
	app.indicator.ConnectionLost()

	app.mqtt, err = mqtt.New(cfg.MQTT, cfg.ClientID, mqtt.Handlers{
		OnConnect:    app.onMQTTConnect,
		OnDisconnect: app.onMQTTDisconnect,
	})
	if err != nil {
		log.Fatalf("Init MQTT: %v", err)
	}

	app.libs, err = app.buildLibraries()
	if err != nil {
		log.Fatalf("Init libraries: %v", err)
	}

	app.session = session.New(app.libs, session.Options{
		AutoStart: *cfg.AutoStart,
		Haptic:    app.indicator,
	})
	app.reporter = newReporter(cfg.ClientID, app.mqtt, app.indicator, app.session.History())
	app.session.Subscribe(app.reporter.update)

	if err := app.mqtt.Subscribe(app.controlTopic(), app.handleControlRequest); err != nil {
		log.Printf("Subscribe error: %v", err)
	}

	app.rotary, err = rotary.New(cfg.Rotary, rotary.Handlers{
		OnTurn:      app.onRotaryTurn,
		OnPress:     func() { app.runCommand(eventpipe.Command{Op: eventpipe.OpToggle}) },
		OnLongPress: func() { app.runCommand(eventpipe.Command{Op: eventpipe.OpStop}) },
	})
	if err != nil {
		log.Fatalf("Init rotary: %v", err)
	}

	app.buttons, err = buttons.New(cfg.Buttons, app.onButton)
	if err != nil {
		log.Fatalf("Init buttons: %v", err)
	}
	if app.buttons != nil {
		app.session.Subscribe(func(st session.State) { app.buttons.SetScanning(st.IsScanning) })
		go app.buttons.Run(ctx)
	}

	app.pipe, err = eventpipe.New(cfg.EventPipe, app.runCommand)
	if err != nil {
		log.Fatalf("Init event pipe: %v", err)
	}
	if app.pipe != nil {
		go app.pipe.Start()
	}

	if cfg.HTTP.Listen != "" {
		app.http = &http.Server{Addr: cfg.HTTP.Listen, Handler: httpapi.NewRouter(app.session)}
		go func() {
			log.Printf("HTTP API listening on %s", cfg.HTTP.Listen)
			if err := app.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("HTTP API: %v", err)
			}
		}()
	}

	go func() {
		if err := app.mqtt.Connect(); err != nil {
			log.Printf("MQTT connect: %v", err)
		}
	}()
	go app.pingSender()
	go app.startLibrary()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	fmt.Println("Shutting down...")
	cancel()

	// Cleanup
	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	if app.http != nil {
		app.http.Shutdown(shutdownCtx)
	}
	if err := app.session.Close(shutdownCtx); err != nil {
		log.Printf("Close session: %v", err)
	}
	app.mqtt.Disconnect()
	if app.pipe != nil {
		app.pipe.Close()
	}
	if app.rotary != nil {
		app.rotary.Release()
	}
	if app.buttons != nil {
		app.buttons.Release()
	}
	app.indicator.Shutdown()
	app.indicator.Release()

	fmt.Println("Shutdown complete")
}

// buildLibraries binds each configured backend to its slot. Slots with
// nothing configured stay nil and are reported missing by the session.
func (app *App) buildLibraries() (scanner.Libraries, error) {
	var libs scanner.Libraries

	if len(app.cfg.Reader.Devices) > 0 {
		libs.Html5 = reader.New(app.cfg.Reader)
	}

	if len(app.cfg.Grabber.Cameras) > 0 {
		libs.JsQR = scanner.PullLibrary{
			Media:   grabber.New(app.cfg.Grabber),
			Decoder: grabber.NewDecoder(),
		}
	}

	if app.mqtt.IsEnabled() || len(app.cfg.Remote.Nodes) > 0 {
		lib, err := remote.New(app.mqtt, app.cfg.Remote)
		if err != nil {
			return libs, err
		}
		libs.ZXing = lib
	}
	return libs, nil
}

// startLibrary selects the configured library, or the first one that
// loaded.
func (app *App) startLibrary() {
	kind, ok := scanner.Html5, false
	if app.cfg.Library != "" {
		k, err := scanner.ParseLibraryKind(app.cfg.Library)
		if err != nil {
			log.Printf("Config: %v", err)
		} else {
			kind, ok = k, true
		}
	}
	if !ok {
		for _, k := range scanner.Kinds {
			if app.libs.Available(k) == nil {
				kind, ok = k, true
				break
			}
		}
	}
	if !ok {
		log.Println("No scanner library configured")
		return
	}
	app.runCommand(eventpipe.Command{Op: eventpipe.OpLibrary, Library: kind})
}

func (app *App) onRotaryTurn(delta int) {
	kind := app.session.State().Library
	if delta > 0 {
		kind = kind.Next()
	} else {
		kind = kind.Prev()
	}
	app.runCommand(eventpipe.Command{Op: eventpipe.OpLibrary, Library: kind})
}

func (app *App) onButton(b buttons.Button) {
	switch b {
	case buttons.ButtonToggle:
		app.runCommand(eventpipe.Command{Op: eventpipe.OpToggle})
	case buttons.ButtonStop:
		app.runCommand(eventpipe.Command{Op: eventpipe.OpStop})
	case buttons.ButtonLibrary:
		app.onRotaryTurn(1)
	}
}

func (app *App) onMQTTConnect() {
	app.indicator.Connected()
	app.reporter.redraw(app.session.State())
}

func (app *App) onMQTTDisconnect() {
	app.indicator.ConnectionLost()
}

func (app *App) pingSender() {
	ticker := time.NewTicker(app.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-app.ctx.Done():
			return
		case <-ticker.C:
			topic := fmt.Sprintf("qrscan/status/node/%s/ping", app.cfg.ClientID)
			app.mqtt.Publish(topic, []byte(`{"status":"ok"}`), false)
		}
	}
}

package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"qrscan/eventpipe"
	"qrscan/scanner"
)

// ControlRequest is a signed remote command.
type ControlRequest struct {
	Cmd       string `json:"cmd"` // same verbs as the event pipe
	Arg       string `json:"arg"`
	Timestamp uint64 `json:"timestamp"`
	Signature string `json:"signature"`
}

func (app *App) controlTopic() string {
	return fmt.Sprintf("qrscan/control/node/%s/command", app.cfg.ClientID)
}

func (app *App) handleControlRequest(topic string, payload []byte) {
	if app.cfg.ControlSecret == "" {
		log.Println("Remote control disabled (no secret configured)")
		return
	}

	var req ControlRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		log.Printf("Decode control request: %v", err)
		return
	}

	if err := verifySignature(app.cfg.ControlSecret, req.Cmd, req.Arg, req.Timestamp, req.Signature); err != nil {
		log.Printf("Signature verification failed: %v", err)
		return
	}

	// Check timestamp is within 5 minute window
	ts := time.Unix(int64(req.Timestamp), 0)
	now := time.Now()
	if now.Before(ts.Add(-5*time.Minute)) || now.After(ts.Add(5*time.Minute)) {
		log.Println("Control request timestamp out of range")
		return
	}

	cmd, err := parseControl(req.Cmd, req.Arg)
	if err != nil {
		log.Printf("Control request: %v", err)
		return
	}
	log.Printf("Remote control: %s %s", req.Cmd, req.Arg)
	// Handlers run on the MQTT router goroutine; a ZXing start waits for
	// the node's reply on that same goroutine.
	go app.runCommand(cmd)
}

func parseControl(verb, arg string) (eventpipe.Command, error) {
	switch verb {
	case "library":
		kind, err := scanner.ParseLibraryKind(arg)
		if err != nil {
			return eventpipe.Command{}, err
		}
		return eventpipe.Command{Op: eventpipe.OpLibrary, Library: kind}, nil
	case "camera":
		return eventpipe.Command{Op: eventpipe.OpCamera, CameraID: arg}, nil
	case "toggle":
		return eventpipe.Command{Op: eventpipe.OpToggle}, nil
	case "stop":
		return eventpipe.Command{Op: eventpipe.OpStop}, nil
	case "restart":
		return eventpipe.Command{Op: eventpipe.OpRestart}, nil
	}
	return eventpipe.Command{}, fmt.Errorf("unknown command %q", verb)
}

// runCommand applies a command from the pipe, MQTT or the front panel.
func (app *App) runCommand(cmd eventpipe.Command) {
	ctx, cancel := context.WithTimeout(app.ctx, 30*time.Second)
	defer cancel()

	var err error
	switch cmd.Op {
	case eventpipe.OpLibrary:
		err = app.session.SelectLibrary(ctx, cmd.Library)
	case eventpipe.OpCamera:
		err = app.session.SelectCameraByID(ctx, cmd.CameraID)
	case eventpipe.OpToggle:
		err = app.session.ToggleCamera(ctx)
	case eventpipe.OpStop:
		err = app.session.Stop(ctx)
	case eventpipe.OpRestart:
		err = app.session.SelectLibrary(ctx, app.session.State().Library)
	}
	if err != nil {
		log.Printf("Command failed: %v", err)
	}
}

// Signature verification helpers

func signControlRequest(base64Secret, cmd, arg string, ts uint64) (string, string, error) {
	secret, err := base64.StdEncoding.DecodeString(base64Secret)
	if err != nil {
		return "", "", fmt.Errorf("invalid base64 secret: %w", err)
	}
	if len(secret) == 0 {
		return "", "", fmt.Errorf("secret cannot be empty")
	}

	msg := make([]byte, 0, len(cmd)+len(arg)+9)
	msg = append(msg, []byte(cmd)...)
	msg = append(msg, 0)
	msg = append(msg, []byte(arg)...)

	var tsBuf [8]byte
	binary.BigEndian.PutUint64(tsBuf[:], ts)
	msg = append(msg, tsBuf[:]...)

	mac := hmac.New(sha256.New, secret)
	mac.Write(msg)
	sum := mac.Sum(nil)

	return hex.EncodeToString(sum), base64.StdEncoding.EncodeToString(sum), nil
}

func verifySignature(base64Secret, cmd, arg string, ts uint64, providedSig string) error {
	sigHex, sigBase64, err := signControlRequest(base64Secret, cmd, arg, ts)
	if err != nil {
		return err
	}

	// Try hex
	if decoded, err := hex.DecodeString(providedSig); err == nil {
		expected, _ := hex.DecodeString(sigHex)
		if subtle.ConstantTimeCompare(decoded, expected) == 1 {
			return nil
		}
	}

	// Try base64
	if decoded, err := base64.StdEncoding.DecodeString(providedSig); err == nil {
		expected, _ := base64.StdEncoding.DecodeString(sigBase64)
		if subtle.ConstantTimeCompare(decoded, expected) == 1 {
			return nil
		}
	}

	return fmt.Errorf("signature verification failed")
}

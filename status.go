package main

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"qrscan/indicator"
	"qrscan/results"
	"qrscan/session"
)

// publisher is the part of the MQTT client the reporter needs.
type publisher interface {
	Publish(topic string, payload []byte, retained bool) error
}

type stateReport struct {
	Library string `json:"library"`
	Phase   string `json:"phase"`
	Status  string `json:"status"`
	Camera  string `json:"camera,omitempty"`
	Facing  string `json:"facing"`
}

type scanReport struct {
	Date    int64  `json:"date"`
	Content string `json:"content"`
	Href    string `json:"href,omitempty"`
}

// reporter mirrors session state onto the indicator and the broker. The
// same state is only published once, so a burst of identical scan errors
// produces a single message.
type reporter struct {
	clientID string
	pub      publisher
	ind      indicator.Indicator
	history  *results.History

	mu        sync.Mutex
	lastState string
	lastPhase session.Phase
	seen      int
}

func newReporter(clientID string, pub publisher, ind indicator.Indicator, history *results.History) *reporter {
	return &reporter{clientID: clientID, pub: pub, ind: ind, history: history, lastPhase: -1}
}

func (r *reporter) topic(leaf string) string {
	return fmt.Sprintf("qrscan/status/node/%s/%s", r.clientID, leaf)
}

// update is registered with Controller.Subscribe.
func (r *reporter) update(st session.State) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info := &indicator.Info{
		Library: st.Library.String(),
		Camera:  st.ActiveCameraID,
		Status:  st.Status,
	}

	var fresh []results.Record
	if n := r.history.Len(); n > r.seen {
		fresh = r.history.Latest(n - r.seen)
		r.seen = n
	}

	switch {
	case len(fresh) > 0:
		info.Content = fresh[0].Content
		info.Href, _ = fresh[0].Href()
		r.ind.Decoded(info)
	case st.Phase != r.lastPhase:
		switch st.Phase {
		case session.Idle:
			r.ind.Idle(info)
		case session.Enumerating, session.Starting, session.Stopping:
			r.ind.Busy(info)
		case session.Scanning:
			r.ind.Scanning(info)
		case session.Error:
			r.ind.Failed(info)
		}
	}
	r.lastPhase = st.Phase

	// Oldest first on the wire.
	for i := len(fresh) - 1; i >= 0; i-- {
		rec := fresh[i]
		sr := scanReport{Date: rec.TimestampMillis, Content: rec.Content}
		sr.Href, _ = rec.Href()
		r.publish("scan", sr, false)
	}

	report := stateReport{
		Library: st.Library.Key(),
		Phase:   st.Phase.String(),
		Status:  st.Status,
		Camera:  st.ActiveCameraID,
		Facing:  st.FacingMode.String(),
	}
	b, _ := json.Marshal(report)
	if string(b) == r.lastState {
		return
	}
	r.lastState = string(b)
	r.publish("state", report, true)
}

// redraw repaints the indicator for st even if the phase has not changed.
func (r *reporter) redraw(st session.State) {
	r.mu.Lock()
	r.lastPhase = -1
	r.mu.Unlock()
	r.update(st)
}

func (r *reporter) publish(leaf string, v interface{}, retained bool) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Printf("Encode %s report: %v", leaf, err)
		return
	}
	if err := r.pub.Publish(r.topic(leaf), b, retained); err != nil {
		log.Printf("Publish %s: %v", leaf, err)
	}
}

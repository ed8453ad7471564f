package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MimeLyc/livesub/pkg/log"
)

const (
	eventRefreshCurrentSubtitle = "refreshCurrentSubtitle"
	eventReady                  = "ready"

	subscriberBuffer  = 8
	heartbeatInterval = 15 * time.Second
)

// Event is pushed to the overlays listening on one tab.
type Event struct {
	Name  string `json:"-"`
	TabID int    `json:"tabId"`
}

// Broker fans refresh events out to the event streams open per tab.
type Broker struct {
	mu          sync.Mutex
	closed      bool
	subscribers map[int]map[string]chan Event
}

func NewBroker() *Broker {
	return &Broker{subscribers: make(map[int]map[string]chan Event)}
}

// Subscribe registers a listener for tabID. The returned cancel func must be
// called once the listener goes away.
func (b *Broker) Subscribe(tabID int) (string, <-chan Event, func()) {
	id := uuid.NewString()
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return id, ch, func() {}
	}
	if b.subscribers[tabID] == nil {
		b.subscribers[tabID] = make(map[string]chan Event)
	}
	b.subscribers[tabID][id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs, ok := b.subscribers[tabID]
		if !ok {
			return
		}
		if c, ok := subs[id]; ok {
			delete(subs, id)
			close(c)
		}
		if len(subs) == 0 {
			delete(b.subscribers, tabID)
		}
	}
	return id, ch, cancel
}

// RefreshCurrentSubtitle tells every listener on tabID to re-query its
// subtitle and returns how many were reached. Slow listeners that still have
// an undelivered event are skipped.
func (b *Broker) RefreshCurrentSubtitle(tabID int) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	delivered := 0
	for id, ch := range b.subscribers[tabID] {
		select {
		case ch <- Event{Name: eventRefreshCurrentSubtitle, TabID: tabID}:
			delivered++
		default:
			log.Debug("Refresh for tab %d dropped, listener %s is behind", tabID, id)
		}
	}
	return delivered
}

func (b *Broker) Subscribers(tabID int) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers[tabID])
}

// Close ends every open stream.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for tabID, subs := range b.subscribers {
		for _, ch := range subs {
			close(ch)
		}
		delete(b.subscribers, tabID)
	}
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	tabID, ok := tabIDParam(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	id, events, cancel := s.broker.Subscribe(tabID)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	send := func(name string, data any) bool {
		payload, err := json.Marshal(data)
		if err != nil {
			return false
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, payload); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	if !send(eventReady, map[string]any{"subscriberId": id, "tabId": tabID}) {
		return
	}
	log.Debug("Tab %d event stream %s opened", tabID, id)

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			log.Debug("Tab %d event stream %s closed", tabID, id)
			return
		case ev, open := <-events:
			if !open {
				return
			}
			if !send(ev.Name, ev) {
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

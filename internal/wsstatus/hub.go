// Package wsstatus implements the live status channel from spec §4.F:
// GET /api/v1/ws/status/:submission_id upgrades to a WebSocket and streams
// stage events for one submission. The stages sandbox_acquired, compiling
// and running are defined, but only queued and classified (the final
// verdict) are published, by the API's single-evaluate handler. The hub
// does not close the connection after the final event.
//
// Adapted from the teacher's collaborative-editing hub
// (internal/websocket/hub.go, client.go): the register/unregister/broadcast
// channel loop and the ping/pong connection lifecycle carry over unchanged
// in spirit, but a "room" here is a submission ID with normally one
// subscriber, not a multi-user editing session, so join/leave/cursor/chat/
// file-change message types have no home here and were dropped. The
// teacher's batched_hub.go (50ms batching, write coalescing) is built for
// high-frequency multi-user broadcast traffic; one submission emits at most
// a handful of stage events over its lifetime, so batching has nothing to
// amortize and was not carried over (see DESIGN.md).
package wsstatus

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"apex-build/internal/metrics"
)

// Stage is one point in a submission's lifecycle (spec §4.F).
type Stage string

const (
	StageQueued           Stage = "queued"
	StageSandboxAcquired  Stage = "sandbox_acquired"
	StageCompiling        Stage = "compiling"
	StageRunning          Stage = "running"
	StageClassified       Stage = "classified"
)

// Event is one message pushed to subscribers of a submission's channel.
type Event struct {
	SubmissionID string      `json:"submission_id"`
	Stage        Stage       `json:"stage"`
	Data         interface{} `json:"data,omitempty"`
	Timestamp    time.Time   `json:"timestamp"`
}

// Hub fans stage events out to WebSocket subscribers, one channel per
// submission ID.
type Hub struct {
	channels map[string]map[*client]bool

	publish    chan publishRequest
	register   chan *client
	unregister chan *client
	shutdown   chan struct{}

	mu sync.RWMutex
}

type publishRequest struct {
	submissionID string
	event        Event
}

type client struct {
	conn         *websocket.Conn
	submissionID string
	send         chan []byte
	hub          *Hub
}

// NewHub constructs an idle Hub; call Run in a goroutine to start it.
func NewHub() *Hub {
	return &Hub{
		channels:   make(map[string]map[*client]bool),
		publish:    make(chan publishRequest),
		register:   make(chan *client),
		unregister: make(chan *client),
		shutdown:   make(chan struct{}),
	}
}

// Run starts the hub's dispatch loop; it returns once Shutdown is called.
func (h *Hub) Run() {
	for {
		select {
		case <-h.shutdown:
			h.mu.Lock()
			for _, subs := range h.channels {
				for c := range subs {
					close(c.send)
				}
			}
			h.channels = make(map[string]map[*client]bool)
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			if h.channels[c.submissionID] == nil {
				h.channels[c.submissionID] = make(map[*client]bool)
			}
			h.channels[c.submissionID][c] = true
			h.mu.Unlock()
			metrics.Get().WebSocketConnectionsGauge.Inc()

		case c := <-h.unregister:
			h.mu.Lock()
			removed := false
			if subs, ok := h.channels[c.submissionID]; ok {
				if _, ok := subs[c]; ok {
					delete(subs, c)
					close(c.send)
					if len(subs) == 0 {
						delete(h.channels, c.submissionID)
					}
					removed = true
				}
			}
			h.mu.Unlock()
			if removed {
				metrics.Get().WebSocketConnectionsGauge.Dec()
			}

		case req := <-h.publish:
			h.dispatch(req.submissionID, req.event)
		}
	}
}

// Shutdown stops the hub's dispatch loop and closes every connection.
func (h *Hub) Shutdown() {
	close(h.shutdown)
}

// Publish pushes an event to every subscriber of submissionID. It is safe to
// call from the orchestrator regardless of whether anyone is subscribed.
func (h *Hub) Publish(submissionID string, stage Stage, data interface{}) {
	metrics.Get().RecordWebSocketEvent(string(stage))
	h.publish <- publishRequest{
		submissionID: submissionID,
		event:        Event{SubmissionID: submissionID, Stage: stage, Data: data, Timestamp: time.Now()},
	}
}

func (h *Hub) dispatch(submissionID string, event Event) {
	h.mu.RLock()
	subs := h.channels[submissionID]
	h.mu.RUnlock()
	if subs == nil {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("wsstatus: marshal event: %v", err)
		return
	}

	h.mu.Lock()
	for c := range subs {
		select {
		case c.send <- payload:
		default:
			close(c.send)
			delete(subs, c)
		}
	}
	h.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

// checkOrigin mirrors the teacher's strict origin allow-list
// (internal/websocket/hub.go) rather than defaulting to gorilla's
// allow-everything behavior.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	allowedEnv := os.Getenv("JUDGE_CORS_ALLOWED_ORIGINS")
	var allowed []string
	if allowedEnv != "" {
		allowed = strings.Split(allowedEnv, ",")
	} else {
		allowed = []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	}
	for _, a := range allowed {
		if strings.TrimSpace(a) == origin {
			return true
		}
	}
	return origin == "" && os.Getenv("JUDGE_ENV") != "production"
}

// HandleSubscribe upgrades the connection and registers it for
// submissionID's events, serving GET /api/v1/ws/status/:submission_id.
func (h *Hub) HandleSubscribe(c *gin.Context) {
	submissionID := c.Param("submission_id")
	if submissionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "submission_id is required"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("wsstatus: upgrade error: %v", err)
		return
	}

	cl := &client{conn: conn, submissionID: submissionID, send: make(chan []byte, 16), hub: h}
	h.register <- cl

	go cl.writePump()
	go cl.readPump()
}

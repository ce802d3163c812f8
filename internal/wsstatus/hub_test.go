package wsstatus

import (
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// newTestClient builds a client with no real websocket connection, suitable
// for exercising the hub's register/dispatch/unregister channel loop
// directly.
func newTestClient(h *Hub, submissionID string) *client {
	return &client{submissionID: submissionID, send: make(chan []byte, 16), hub: h}
}

func TestHub_PublishWithNoSubscribersIsNoop(t *testing.T) {
	h := NewHub()
	go h.Run()
	defer h.Shutdown()

	done := make(chan struct{})
	go func() {
		h.Publish("sub-1", StageQueued, nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked with no subscribers registered")
	}
}

func TestHub_RegisterThenPublishDeliversToSubscriber(t *testing.T) {
	h := NewHub()
	go h.Run()
	defer h.Shutdown()

	c := newTestClient(h, "sub-1")
	h.register <- c

	h.Publish("sub-1", StageCompiling, map[string]string{"foo": "bar"})

	select {
	case payload := <-c.send:
		assert.Contains(t, string(payload), `"submission_id":"sub-1"`)
		assert.Contains(t, string(payload), `"stage":"compiling"`)
	case <-time.After(time.Second):
		t.Fatal("subscriber never received published event")
	}
}

func TestHub_PublishOnlyReachesMatchingSubmission(t *testing.T) {
	h := NewHub()
	go h.Run()
	defer h.Shutdown()

	a := newTestClient(h, "sub-a")
	b := newTestClient(h, "sub-b")
	h.register <- a
	h.register <- b

	h.Publish("sub-a", StageRunning, nil)

	select {
	case <-a.send:
	case <-time.After(time.Second):
		t.Fatal("sub-a subscriber never received its event")
	}

	select {
	case <-b.send:
		t.Fatal("sub-b subscriber received an event meant for sub-a")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHub_UnregisterClosesSendChannel(t *testing.T) {
	h := NewHub()
	go h.Run()
	defer h.Shutdown()

	c := newTestClient(h, "sub-1")
	h.register <- c
	h.unregister <- c

	select {
	case _, ok := <-c.send:
		assert.False(t, ok, "send channel should be closed after unregister")
	case <-time.After(time.Second):
		t.Fatal("send channel was never closed")
	}
}

func TestHub_ShutdownClosesAllSubscribers(t *testing.T) {
	h := NewHub()
	go h.Run()

	c := newTestClient(h, "sub-1")
	h.register <- c

	// Give the register a moment to land before triggering shutdown.
	time.Sleep(10 * time.Millisecond)
	h.Shutdown()

	select {
	case _, ok := <-c.send:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("send channel was never closed on shutdown")
	}
}

func TestCheckOrigin_EmptyOriginAllowedOutsideProduction(t *testing.T) {
	os.Unsetenv("JUDGE_ENV")
	req := httptest.NewRequest("GET", "/api/v1/ws/status/sub-1", nil)
	assert.True(t, checkOrigin(req))
}

func TestCheckOrigin_UnlistedOriginRejected(t *testing.T) {
	os.Setenv("JUDGE_CORS_ALLOWED_ORIGINS", "http://allowed.example")
	defer os.Unsetenv("JUDGE_CORS_ALLOWED_ORIGINS")

	req := httptest.NewRequest("GET", "/api/v1/ws/status/sub-1", nil)
	req.Header.Set("Origin", "http://evil.example")
	assert.False(t, checkOrigin(req))
}

func TestCheckOrigin_ListedOriginAccepted(t *testing.T) {
	os.Setenv("JUDGE_CORS_ALLOWED_ORIGINS", "http://allowed.example")
	defer os.Unsetenv("JUDGE_CORS_ALLOWED_ORIGINS")

	req := httptest.NewRequest("GET", "/api/v1/ws/status/sub-1", nil)
	req.Header.Set("Origin", "http://allowed.example")
	assert.True(t, checkOrigin(req))
}

package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	fiberws "github.com/gofiber/websocket/v2"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go h.Run(ctx)
	return h
}

func connect(t *testing.T, h *Hub, userID, schoolID uint) *Client {
	t.Helper()
	c := newClient(userID, schoolID)
	h.register <- c
	// registration is handled by Run; wait until it is visible
	deadline := time.Now().Add(time.Second)
	for {
		h.mutex.RLock()
		_, ok := h.clients[c]
		h.mutex.RUnlock()
		if ok {
			return c
		}
		if time.Now().After(deadline) {
			t.Fatalf("client was not registered")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestBroadcastToSchoolOnlyReachesThatSchool(t *testing.T) {
	h := startHub(t)
	a := connect(t, h, 1, 10)
	b := connect(t, h, 2, 10)
	other := connect(t, h, 3, 20)

	h.BroadcastToSchool(10, Message{Type: "timetable.updated", Data: map[string]uint{"school_id": 10}})

	for _, c := range []*Client{a, b} {
		select {
		case raw := <-c.send:
			var msg Message
			if err := json.Unmarshal(raw, &msg); err != nil {
				t.Fatalf("bad payload: %v", err)
			}
			if msg.Type != "timetable.updated" {
				t.Fatalf("unexpected type %q", msg.Type)
			}
		default:
			t.Fatalf("client %d got nothing", c.userID)
		}
	}
	select {
	case <-other.send:
		t.Fatalf("client of another school received the message")
	default:
	}
}

func TestSlowClientIsDropped(t *testing.T) {
	h := startHub(t)
	c := connect(t, h, 1, 10)

	for i := 0; i < sendBuffer+1; i++ {
		h.BroadcastToUser(1, Message{Type: "ping"})
	}
	if n := h.GetClientCount(); n != 0 {
		t.Fatalf("expected slow client to be dropped, %d clients left", n)
	}

	// unregistering an already dropped client must not panic
	h.unregister <- c
	drained := 0
	for range c.send {
		drained++
	}
	if drained != sendBuffer {
		t.Fatalf("expected %d buffered messages, got %d", sendBuffer, drained)
	}
}

// fakeConn records writes and flags any use after the handler has returned.
type fakeConn struct {
	mu           sync.Mutex
	writes       []int
	closed       bool
	released     bool
	afterRelease int
	disconnect   chan struct{}
}

func newFakeConn() *fakeConn { return &fakeConn{disconnect: make(chan struct{})} }

func (f *fakeConn) use() {
	if f.released {
		f.afterRelease++
	}
}

func (f *fakeConn) SetWriteDeadline(time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.use()
	return nil
}

func (f *fakeConn) WriteMessage(messageType int, _ []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.use()
	f.writes = append(f.writes, messageType)
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.use()
	f.closed = true
	return nil
}

func (f *fakeConn) SetReadLimit(int64) {}
func (f *fakeConn) SetReadDeadline(time.Time) error { return nil }
func (f *fakeConn) SetPongHandler(func(string) error) {}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	<-f.disconnect
	return 0, nil, errors.New("connection reset")
}

func (f *fakeConn) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestServeReturnsAfterWriterIsDone(t *testing.T) {
	h := startHub(t)
	fc := newFakeConn()

	served := make(chan struct{})
	go func() {
		h.serve(fc, 1, 10)
		close(served)
	}()

	waitFor(t, "registration", func() bool { return h.GetClientCount() == 1 })
	h.BroadcastToSchool(10, Message{Type: "timetable.updated"})
	waitFor(t, "delivery", func() bool { return fc.writeCount() == 1 })

	close(fc.disconnect)
	select {
	case <-served:
	case <-time.After(time.Second):
		t.Fatalf("serve did not return after the client went away")
	}

	fc.mu.Lock()
	fc.released = true
	if !fc.closed {
		t.Errorf("connection was not closed before serve returned")
	}
	if last := fc.writes[len(fc.writes)-1]; last != fiberws.CloseMessage {
		t.Errorf("last write = %d, want close message", last)
	}
	fc.mu.Unlock()

	time.Sleep(20 * time.Millisecond)
	fc.mu.Lock()
	defer fc.mu.Unlock()
	if fc.afterRelease != 0 {
		t.Fatalf("connection used %d times after serve returned", fc.afterRelease)
	}
	if h.GetClientCount() != 0 {
		t.Fatalf("client still registered")
	}
}

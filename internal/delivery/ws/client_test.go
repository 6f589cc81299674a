package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mmuslimabdulj/goat-grab/internal/domain"
)

// === CLIENT TESTS ===

func TestNewClient(t *testing.T) {
	hub := NewHub()
	form := &mockForm{}

	client := NewClient(hub, nil, "session-1", form)

	if client == nil {
		t.Fatal("Expected client to be created")
	}
	if client.ID == "" {
		t.Error("Expected client ID to be generated")
	}
	if client.SessionID != "session-1" {
		t.Errorf("Expected session-1, got %s", client.SessionID)
	}
	if client.hub != hub {
		t.Error("Expected client.hub to be the same as input hub")
	}
	if client.send == nil {
		t.Error("Expected client.send channel to be initialized")
	}
}

func TestClient_SendBufferFull(t *testing.T) {
	hub := NewHub()
	client := &Client{
		ID:   "c1",
		hub:  hub,
		send: make(chan []byte, 2), // Small buffer
	}

	client.Send([]byte("msg1"))
	client.Send([]byte("msg2"))

	// This should not block (buffer full handling)
	client.Send([]byte("msg3"))

	<-client.send
	<-client.send

	select {
	case <-client.send:
		t.Error("Expected no more messages (third should be dropped)")
	default:
	}
}

func TestClient_HandleDismiss(t *testing.T) {
	form := &mockForm{state: domain.State{Alert: &domain.Alert{ID: "a1"}}}
	client := NewClient(NewHub(), nil, "s1", form)

	client.handle([]byte(`{"type":"dismiss","payload":{"id":"a1"}}`))

	got := form.Dismissed()
	if len(got) != 1 || got[0] != "a1" {
		t.Errorf("Expected dismissal of a1, got %v", got)
	}
}

func TestClient_HandleIgnoresUnknownAndGarbage(t *testing.T) {
	form := &mockForm{}
	client := NewClient(NewHub(), nil, "s1", form)

	client.handle([]byte(`{"type":"submit"}`))
	client.handle([]byte(`not json`))
	client.handle([]byte(`{"type":"dismiss","payload":"oops"}`))

	if len(form.Dismissed()) != 0 {
		t.Errorf("Expected no dismissals, got %v", form.Dismissed())
	}
}

func TestClient_EndToEnd(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	form := &mockForm{state: domain.State{Phase: domain.PhaseFailure, Alert: &domain.Alert{ID: "a1"}}}
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := NewClient(hub, conn, "s1", form)
		hub.Register(client)
		go client.WritePump()
		go client.ReadPump()
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var e domain.Event
	if err := conn.ReadJSON(&e); err != nil {
		t.Fatalf("Failed to read initial state: %v", err)
	}
	if e.Type != domain.EventTypeState {
		t.Fatalf("Expected state event, got %s", e.Type)
	}

	hub.Publish("s1", domain.NewAlertExpiredEvent("a1"))
	if err := conn.ReadJSON(&e); err != nil {
		t.Fatalf("Failed to read published event: %v", err)
	}
	if e.Type != domain.EventTypeAlertExpired {
		t.Errorf("Expected alert_expired, got %s", e.Type)
	}

	msg, _ := json.Marshal(map[string]any{"type": "dismiss", "payload": map[string]string{"id": "a1"}})
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	waitFor(t, func() bool { return len(form.Dismissed()) == 1 })

	conn.Close()
	waitFor(t, func() bool { return hub.ClientCount("s1") == 0 })
}

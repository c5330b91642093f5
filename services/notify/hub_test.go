package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"tokenalert_backend/models"
	"tokenalert_backend/services/market"
)

func newHubServer(t *testing.T, hub *Hub, served chan<- struct{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, r.URL.Query().Get("user"))
		if served != nil {
			served <- struct{}{}
		}
	}))
}

func dialHub(t *testing.T, srv *httptest.Server, userID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?user=" + userID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return env
}

func TestHubSendsConnectionStatusOnRegister(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Shutdown()

	srv := newHubServer(t, hub, nil)
	defer srv.Close()

	conn := dialHub(t, srv, "user-1")
	defer conn.Close()

	env := readEnvelope(t, conn)
	if env.Type != "connection_status" {
		t.Errorf("first message should be connection_status, got %s", env.Type)
	}
}

func TestNotifyReachesOnlyOwningUser(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Shutdown()

	srv := newHubServer(t, hub, nil)
	defer srv.Close()

	owner := dialHub(t, srv, "user-1")
	defer owner.Close()
	other := dialHub(t, srv, "user-2")
	defer other.Close()

	// drain the connection_status greetings
	readEnvelope(t, owner)
	readEnvelope(t, other)

	hub.Notify(models.Alert{ID: "a-1", UserID: "user-1", Message: "Alert: bitcoin above 70000.00"},
		market.PriceSnapshot{Symbol: "bitcoin", CurrentPrice: 71000, IsValid: true})

	env := readEnvelope(t, owner)
	if env.Type != "alert_triggered" {
		t.Errorf("owner should receive alert_triggered, got %s", env.Type)
	}

	other.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, _, err := other.ReadMessage(); err == nil {
		t.Error("other user must not receive the alert")
	}
}

func TestServeWSAfterShutdownDoesNotBlock(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	// let Run mark itself running before stopping it
	time.Sleep(10 * time.Millisecond)

	served := make(chan struct{}, 1)
	srv := newHubServer(t, hub, served)
	defer srv.Close()

	hub.Shutdown()

	// the upgrade may still succeed; the handler just has to return
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?user=user-1"
	if conn, _, err := websocket.DefaultDialer.Dial(url, nil); err == nil {
		defer conn.Close()
	}

	select {
	case <-served:
	case <-time.After(2 * time.Second):
		t.Fatal("ServeWS must not block once the hub is stopped")
	}
}

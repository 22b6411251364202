package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
)

func TestHubBroadcastReachesClient(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close(websocket.StatusNormalClosure, "")

	deadline := time.Now().Add(2 * time.Second)
	for hub.ConnectionCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if hub.ConnectionCount() != 1 {
		t.Fatal("client never registered with the hub")
	}

	hub.BroadcastEvent(ctx, EventTierPromoted, TierEvent{AgentID: "a1", Tier: "intern"})

	_, data, err := c.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Type != EventTierPromoted {
		t.Errorf("type = %q, want %q", msg.Type, EventTierPromoted)
	}
	var ev TierEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.AgentID != "a1" || ev.Tier != "intern" {
		t.Errorf("unexpected event payload: %+v", ev)
	}
}

func TestNewHubNormalizesOrigins(t *testing.T) {
	hub := NewHub("http://localhost:3000", "")
	if len(hub.origins) != 1 || hub.origins[0] != "localhost:3000" {
		t.Errorf("origins = %v, want [localhost:3000]", hub.origins)
	}
}

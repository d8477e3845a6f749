package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aerocrew/towerchat/internal/auth"
	"github.com/aerocrew/towerchat/internal/config"
	"github.com/aerocrew/towerchat/internal/store"
	"github.com/aerocrew/towerchat/pkg/models"
)

func startTestServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	ctx := context.Background()

	st := store.NewMemoryStore()
	if err := st.CreateEnterprise(ctx, &models.Enterprise{ID: "ent-1", Name: "Aerocrew"}); err != nil {
		t.Fatalf("CreateEnterprise = %v", err)
	}
	if err := st.CreateAccount(ctx, &models.Account{ID: "alice", EnterpriseID: "ent-1", DisplayName: "alice"}); err != nil {
		t.Fatalf("CreateAccount = %v", err)
	}
	if err := st.CreateChannel(ctx, &models.Channel{ID: "ch-ops", EnterpriseID: "ent-1", Name: "ops", CreatorID: "alice"}); err != nil {
		t.Fatalf("CreateChannel = %v", err)
	}

	h := New(Options{
		Store:    st,
		Verifier: auth.NewStaticVerifier(map[string]string{"tok-alice": "alice"}),
		Logger:   testLogger(),
	})
	srv := NewServer(config.Default(), h, testLogger())

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	return ts, wsURL
}

func dial(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func writeFrame(t *testing.T, conn *websocket.Conn, event string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	frame, err := json.Marshal(Frame{Event: event, Data: data})
	if err != nil {
		t.Fatalf("marshal frame: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		t.Fatalf("WriteMessage = %v", err)
	}
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage = %v", err)
	}
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatalf("unmarshal frame %q: %v", data, err)
	}
	return frame
}

func TestServer_AuthenticateAndSendOverWebSocket(t *testing.T) {
	_, wsURL := startTestServer(t)
	conn := dial(t, wsURL)

	writeFrame(t, conn, EventAuthenticate, AuthenticatePayload{
		AccountID:   "alice",
		DisplayName: "alice",
		TenantID:    "ent-1",
		Credential:  "tok-alice",
	})
	frame := readFrame(t, conn)
	if frame.Event != EventAuthenticated {
		t.Fatalf("event = %q, want authenticated", frame.Event)
	}
	var ack AuthenticatedPayload
	if err := json.Unmarshal(frame.Data, &ack); err != nil {
		t.Fatalf("unmarshal ack: %v", err)
	}
	if !ack.Success || len(ack.ChannelIDs) != 1 || ack.ChannelIDs[0] != "ch-ops" {
		t.Fatalf("ack = %+v", ack)
	}

	writeFrame(t, conn, EventSendMessage, SendMessagePayload{
		ChannelID: "ch-ops",
		Content:   "hello over the wire",
	})
	frame = readFrame(t, conn)
	if frame.Event != EventNewMessage {
		t.Fatalf("event = %q, want new_message", frame.Event)
	}
	var msg NewMessagePayload
	if err := json.Unmarshal(frame.Data, &msg); err != nil {
		t.Fatalf("unmarshal message: %v", err)
	}
	if msg.SenderID != "alice" || msg.Content != "hello over the wire" || msg.ID == "" {
		t.Fatalf("message = %+v", msg)
	}
}

func TestServer_RejectsBadFrames(t *testing.T) {
	_, wsURL := startTestServer(t)
	conn := dial(t, wsURL)

	tests := []struct {
		name string
		send func()
	}{
		{
			name: "malformed json",
			send: func() {
				if err := conn.WriteMessage(websocket.TextMessage, []byte("{nope")); err != nil {
					t.Fatalf("WriteMessage = %v", err)
				}
			},
		},
		{
			name: "unknown event",
			send: func() { writeFrame(t, conn, "teleport", struct{}{}) },
		},
		{
			name: "missing event data",
			send: func() {
				raw, _ := json.Marshal(Frame{Event: EventSendMessage})
				if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
					t.Fatalf("WriteMessage = %v", err)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.send()
			frame := readFrame(t, conn)
			if frame.Event != EventError {
				t.Fatalf("event = %q, want error", frame.Event)
			}
			var p ErrorPayload
			if err := json.Unmarshal(frame.Data, &p); err != nil {
				t.Fatalf("unmarshal error payload: %v", err)
			}
			if p.Code != CodeInvalidPayload {
				t.Fatalf("code = %q, want %q", p.Code, CodeInvalidPayload)
			}
		})
	}
}

func TestServer_Healthz(t *testing.T) {
	ts, _ := startTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body struct {
		Status      string `json:"status"`
		Connections int    `json:"connections"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Status != "ok" {
		t.Fatalf("status = %q", body.Status)
	}
}

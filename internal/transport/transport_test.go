package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/triviabluff/client-go/internal/state"
	"github.com/triviabluff/client-go/internal/store"
	"github.com/triviabluff/client-go/pkg/protocol"
)

func TestURL_SchemeConversion(t *testing.T) {
	cases := []struct {
		base string
		want string
	}{
		{"http://localhost:8000", "ws://localhost:8000/ws/ABC123/p1"},
		{"https://play.example.com", "wss://play.example.com/ws/ABC123/p1"},
		{"http://localhost:8000/", "ws://localhost:8000/ws/ABC123/p1"},
	}
	for _, tc := range cases {
		tr := New(tc.base, nil, zap.NewNop())
		if got := tr.URL("ABC123", "p1"); got != tc.want {
			t.Errorf("URL(%q) = %q, want %q", tc.base, got, tc.want)
		}
	}
}

func TestRetryPolicy_Delay(t *testing.T) {
	fixed := RetryPolicy{Interval: 3 * time.Second}
	for attempt := 1; attempt <= 5; attempt++ {
		if d := fixed.Delay(attempt); d != 3*time.Second {
			t.Fatalf("fixed policy attempt %d: want 3s, got %s", attempt, d)
		}
	}

	backoff := RetryPolicy{Interval: time.Second, Multiplier: 2}
	wants := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	for i, want := range wants {
		if d := backoff.Delay(i + 1); d != want {
			t.Fatalf("backoff attempt %d: want %s, got %s", i+1, want, d)
		}
	}
}

func TestRetryPolicy_Exhausted(t *testing.T) {
	unlimited := RetryPolicy{Interval: time.Second}
	if unlimited.Exhausted(1_000_000) {
		t.Fatal("zero MaxAttempts must never exhaust")
	}

	capped := RetryPolicy{Interval: time.Second, MaxAttempts: 2}
	if capped.Exhausted(2) {
		t.Fatal("attempt 2 of 2 must be allowed")
	}
	if !capped.Exhausted(3) {
		t.Fatal("attempt 3 of 2 must be refused")
	}
}

func waitForState(t *testing.T, st *store.Store, desc string, ok func(state.State) bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if ok(st.State()) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s; state %+v", desc, st.State())
}

func sendEvent(ctx context.Context, c *websocket.Conn, typ protocol.EventType, data any) error {
	raw, err := protocol.Encode(typ, data)
	if err != nil {
		return err
	}
	return c.Write(ctx, websocket.MessageText, raw)
}

func TestTransport_DeliversEventsToStore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		ctx := r.Context()
		_ = sendEvent(ctx, c, protocol.EvtConnectionEstablished, protocol.ConnectionEstablished{PlayerID: "p1"})
		_ = sendEvent(ctx, c, protocol.EvtPlayerJoined, protocol.PlayerJoined{
			Player: protocol.Player{ID: "p2", Pseudonym: "Bob"}, TotalPlayers: 2,
		})
		// Noise the client must survive: garbage, then an unknown tag.
		_ = c.Write(ctx, websocket.MessageText, []byte("not json"))
		_ = sendEvent(ctx, c, protocol.EventType("SPECTATOR_JOINED"), map[string]any{"who": "x"})
		_ = sendEvent(ctx, c, protocol.EvtQuestionSubmitted, protocol.QuestionSubmitted{
			Question: "Capital of France?", GameState: "submission_phase", RoundNumber: 1,
		})
		<-ctx.Done()
	}))
	defer srv.Close()

	st := store.New(context.Background(), zap.NewNop())
	defer st.Close()

	tr := New(srv.URL, st, zap.NewNop())
	if err := tr.Connect(context.Background(), "S1", "p1"); err != nil {
		t.Fatal(err)
	}
	defer tr.Close()

	waitForState(t, st, "question after noise frames", func(s state.State) bool {
		return s.Connected &&
			s.CurrentQuestion != nil && s.CurrentQuestion.Text == "Capital of France?" &&
			len(s.Players) == 1
	})
}

func TestTransport_ReconnectsAfterAbnormalDrop(t *testing.T) {
	var dials atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		ctx := r.Context()
		n := dials.Add(1)
		if n == 1 {
			// Simulate a crash: abnormal close right after accepting.
			c.Close(websocket.StatusInternalError, "crash")
			return
		}
		_ = sendEvent(ctx, c, protocol.EvtConnectionEstablished, protocol.ConnectionEstablished{PlayerID: "p1"})
		<-ctx.Done()
	}))
	defer srv.Close()

	st := store.New(context.Background(), zap.NewNop())
	defer st.Close()

	tr := New(srv.URL, st, zap.NewNop(),
		WithRetryPolicy(RetryPolicy{Interval: 20 * time.Millisecond}))
	if err := tr.Connect(context.Background(), "S1", "p1"); err != nil {
		t.Fatal(err)
	}
	defer tr.Close()

	waitForState(t, st, "reconnect to clear the error", func(s state.State) bool {
		return s.Connected && s.Err == ""
	})
	if got := dials.Load(); got < 2 {
		t.Fatalf("want at least 2 dials, got %d", got)
	}
	if tr.Status() != StatusConnected {
		t.Fatalf("want connected, got %s", tr.Status())
	}
}

func TestTransport_NormalClosureDoesNotReconnect(t *testing.T) {
	var dials atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		dials.Add(1)
		c.Close(websocket.StatusNormalClosure, "session over")
	}))
	defer srv.Close()

	st := store.New(context.Background(), zap.NewNop())
	defer st.Close()

	tr := New(srv.URL, st, zap.NewNop(),
		WithRetryPolicy(RetryPolicy{Interval: 20 * time.Millisecond}))
	if err := tr.Connect(context.Background(), "S1", "p1"); err != nil {
		t.Fatal(err)
	}
	defer tr.Close()

	waitForState(t, st, "disconnect", func(s state.State) bool { return !s.Connected })
	time.Sleep(100 * time.Millisecond)
	if got := dials.Load(); got != 1 {
		t.Fatalf("normal closure must not trigger reconnect; dials=%d", got)
	}
	if tr.Status() != StatusDisconnected {
		t.Fatalf("want disconnected, got %s", tr.Status())
	}
}

func TestTransport_CloseStopsReconnectLoop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		c.Close(websocket.StatusInternalError, "crash")
	}))
	defer srv.Close()

	st := store.New(context.Background(), zap.NewNop())
	defer st.Close()

	tr := New(srv.URL, st, zap.NewNop(),
		WithRetryPolicy(RetryPolicy{Interval: time.Hour}))
	if err := tr.Connect(context.Background(), "S1", "p1"); err != nil {
		t.Fatal(err)
	}

	waitForState(t, st, "drop", func(s state.State) bool { return !s.Connected })

	done := make(chan struct{})
	go func() {
		tr.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not interrupt the reconnect wait")
	}
	if tr.Status() != StatusDisconnected {
		t.Fatalf("want disconnected after Close, got %s", tr.Status())
	}
}

func TestTransport_GivesUpWhenPolicyExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		c.Close(websocket.StatusInternalError, "crash")
	}))
	st := store.New(context.Background(), zap.NewNop())
	defer st.Close()

	tr := New(srv.URL, st, zap.NewNop(),
		WithRetryPolicy(RetryPolicy{Interval: 10 * time.Millisecond, MaxAttempts: 2}))
	if err := tr.Connect(context.Background(), "S1", "p1"); err != nil {
		t.Fatal(err)
	}
	defer tr.Close()

	// Kill the server so every retry fails, then wait for the loop to stop.
	srv.Close()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if tr.Status() == StatusDisconnected {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("want disconnected after exhausting retries, got %s", tr.Status())
}

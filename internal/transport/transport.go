package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/triviabluff/client-go/internal/store"
	"github.com/triviabluff/client-go/pkg/protocol"
)

// Status is the connection state machine's current node.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusReconnecting Status = "reconnecting"
)

// RetryPolicy controls reconnection after an unexpected drop. The zero
// Multiplier and MaxAttempts mean fixed-interval, unlimited retries,
// matching the observed 3-second behavior of the reference client.
type RetryPolicy struct {
	Interval    time.Duration
	Multiplier  float64 // <= 1 means fixed interval
	MaxAttempts int     // 0 means unlimited
}

// DefaultRetryPolicy reconnects every 3 seconds forever.
var DefaultRetryPolicy = RetryPolicy{Interval: 3 * time.Second}

// Delay returns the wait before the given 1-based attempt.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := p.Interval
	if p.Multiplier > 1 {
		for i := 1; i < attempt; i++ {
			d = time.Duration(float64(d) * p.Multiplier)
		}
	}
	return d
}

// Exhausted reports whether the policy allows no further attempts.
func (p RetryPolicy) Exhausted(attempt int) bool {
	return p.MaxAttempts > 0 && attempt > p.MaxAttempts
}

const (
	pingInterval = 30 * time.Second
	pingTimeout  = 10 * time.Second
	dialTimeout  = 10 * time.Second
)

var ErrAlreadyConnected = errors.New("transport: connection already open")

// Transport owns the single persistent connection for one session/player
// pair. It is receive-only from the client's perspective: every frame is
// decoded and fed to the store, and all writes to the server go through
// the HTTP dispatcher instead. Unexpected drops trigger the reconnect
// loop; Close stops it for good.
type Transport struct {
	baseURL    string
	httpClient *http.Client
	st         *store.Store
	log        *zap.Logger
	policy     RetryPolicy

	mu     sync.Mutex
	status Status
	cancel context.CancelFunc
	done   chan struct{}
}

type Option func(*Transport)

func WithRetryPolicy(p RetryPolicy) Option {
	return func(t *Transport) { t.policy = p }
}

func WithHTTPClient(c *http.Client) Option {
	return func(t *Transport) { t.httpClient = c }
}

func New(baseURL string, st *store.Store, log *zap.Logger, opts ...Option) *Transport {
	t := &Transport{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		st:      st,
		log:     log,
		policy:  DefaultRetryPolicy,
		status:  StatusDisconnected,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Transport) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

func (t *Transport) setStatus(s Status) {
	t.mu.Lock()
	t.status = s
	t.mu.Unlock()
}

// URL returns the websocket endpoint for a session/player pair.
func (t *Transport) URL(sessionID, playerID string) string {
	u := t.baseURL
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return fmt.Sprintf("%s/ws/%s/%s", u, sessionID, playerID)
}

// Connect establishes the logical connection and starts the receive loop.
// Any prior connection is torn down first so events are never delivered
// twice. The initial dial uses ctx; the long-lived loop outlives it.
func (t *Transport) Connect(ctx context.Context, sessionID, playerID string) error {
	t.Close()

	loopCtx, cancel := context.WithCancel(context.Background())

	t.setStatus(StatusConnecting)
	conn, err := t.dial(ctx, sessionID, playerID)
	if err != nil {
		cancel()
		t.setStatus(StatusDisconnected)
		return err
	}

	t.mu.Lock()
	t.cancel = cancel
	t.done = make(chan struct{})
	t.status = StatusConnected
	done := t.done
	t.mu.Unlock()

	t.st.SetConnected(true)

	go func() {
		defer close(done)
		t.run(loopCtx, conn, sessionID, playerID)
	}()
	return nil
}

// Close tears the connection down and stops reconnection attempts. Safe
// to call when not connected.
func (t *Transport) Close() {
	t.mu.Lock()
	cancel := t.cancel
	done := t.done
	t.cancel = nil
	t.done = nil
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	t.setStatus(StatusDisconnected)
}

func (t *Transport) dial(ctx context.Context, sessionID, playerID string) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, t.URL(sessionID, playerID), &websocket.DialOptions{
		HTTPClient: t.httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s/%s: %w", sessionID, playerID, err)
	}
	return conn, nil
}

// run pumps one connection until it drops, then walks the reconnect loop.
// It returns only when ctx is cancelled or the retry policy is exhausted.
func (t *Transport) run(ctx context.Context, conn *websocket.Conn, sessionID, playerID string) {
	for {
		err := t.pump(ctx, conn)
		conn.Close(websocket.StatusNormalClosure, "bye")

		t.st.SetConnected(false)
		if ctx.Err() != nil {
			t.setStatus(StatusDisconnected)
			return
		}
		switch websocket.CloseStatus(err) {
		case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			t.setStatus(StatusDisconnected)
			return
		}

		t.log.Warn("connection dropped, reconnecting",
			zap.String("session_id", sessionID), zap.Error(err))
		t.setStatus(StatusReconnecting)
		t.st.SetError("Connection error. Trying to reconnect...")

		next, ok := t.reconnect(ctx, sessionID, playerID)
		if !ok {
			t.setStatus(StatusDisconnected)
			return
		}
		conn = next
		t.setStatus(StatusConnected)
		t.st.SetConnected(true)
	}
}

func (t *Transport) reconnect(ctx context.Context, sessionID, playerID string) (*websocket.Conn, bool) {
	for attempt := 1; ; attempt++ {
		if t.policy.Exhausted(attempt) {
			t.log.Warn("reconnect attempts exhausted", zap.Int("attempts", attempt-1))
			return nil, false
		}

		select {
		case <-ctx.Done():
			return nil, false
		case <-time.After(t.policy.Delay(attempt)):
		}

		conn, err := t.dial(ctx, sessionID, playerID)
		if err == nil {
			return conn, true
		}
		t.log.Warn("reconnect attempt failed", zap.Int("attempt", attempt), zap.Error(err))
	}
}

// pump reads frames until the connection fails, keeping it alive with
// periodic pings. Frames are processed strictly in delivery order.
func (t *Transport) pump(ctx context.Context, conn *websocket.Conn) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			_, data, err := conn.Read(gctx)
			if err != nil {
				return err
			}
			t.handle(data)
		}
	})

	g.Go(func() error {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-ticker.C:
				pingCtx, cancel := context.WithTimeout(gctx, pingTimeout)
				err := conn.Ping(pingCtx)
				cancel()
				if err != nil {
					return fmt.Errorf("transport: keepalive: %w", err)
				}
			}
		}
	})

	return g.Wait()
}

func (t *Transport) handle(raw []byte) {
	ev, err := protocol.Decode(raw)
	if err != nil {
		// Malformed frame: drop it, keep the connection.
		t.log.Error("dropping malformed frame", zap.Error(err))
		return
	}
	if u, ok := ev.(protocol.Unknown); ok {
		t.log.Warn("dropping unknown frame type", zap.String("type", string(u.Type)))
		return
	}
	t.st.ApplyEvent(ev)
}

package store

import (
	"context"

	"go.uber.org/zap"

	"github.com/triviabluff/client-go/internal/state"
	"github.com/triviabluff/client-go/pkg/protocol"
)

// Msg is the store's inbox vocabulary.
type Msg interface{ isStoreMsg() }

// Apply runs the reducer over one inbound event.
type Apply struct {
	Event protocol.Event
}

// Mutate runs a confined write outside the reducer. Only the dispatcher's
// response handlers use it; view code never does.
type Mutate struct {
	Fn func(state.State) state.State
}

type Get struct {
	Reply chan Snapshot
}

type Subscribe struct {
	ID     string
	Outbox chan Snapshot
}

type Unsubscribe struct{ ID string }

// Reset returns the store to its initial empty state, e.g. when the user
// navigates away from a session.
type Reset struct{}

type Shutdown struct{}

func (Apply) isStoreMsg()       {}
func (Mutate) isStoreMsg()      {}
func (Get) isStoreMsg()         {}
func (Subscribe) isStoreMsg()   {}
func (Unsubscribe) isStoreMsg() {}
func (Reset) isStoreMsg()       {}
func (Shutdown) isStoreMsg()    {}

// Snapshot is one versioned state observation. Version increments on
// every write, so subscribers can detect gaps.
type Snapshot struct {
	Version int
	State   state.State
}

// Store owns the client-side session state. A single goroutine applies
// all writes in arrival order and fans out snapshots to subscribers, so
// readers never observe a torn state.
type Store struct {
	inbox   chan Msg
	state   state.State
	version int
	subs    map[string]chan Snapshot
	ctx     context.Context
	cancel  context.CancelFunc
	log     *zap.Logger
}

func New(parent context.Context, log *zap.Logger) *Store {
	ctx, cancel := context.WithCancel(parent)
	s := &Store{
		inbox:  make(chan Msg, 64),
		state:  state.New(),
		subs:   make(map[string]chan Snapshot),
		ctx:    ctx,
		cancel: cancel,
		log:    log,
	}
	go s.loop()
	return s
}

func (s *Store) Inbox() chan<- Msg { return s.inbox }

func (s *Store) loop() {
	for {
		select {
		case <-s.ctx.Done():
			s.shutdown()
			return

		case m := <-s.inbox:
			switch msg := m.(type) {
			case Apply:
				s.state = state.Reduce(s.state, msg.Event)
				s.version++
				s.broadcast()

			case Mutate:
				s.state = msg.Fn(s.state)
				s.version++
				s.broadcast()

			case Get:
				msg.Reply <- Snapshot{Version: s.version, State: s.state}

			case Subscribe:
				s.subs[msg.ID] = msg.Outbox
				msg.Outbox <- Snapshot{Version: s.version, State: s.state}

			case Unsubscribe:
				delete(s.subs, msg.ID)

			case Reset:
				s.state = state.New()
				s.version++
				s.broadcast()

			case Shutdown:
				s.shutdown()
				return
			}
		}
	}
}

func (s *Store) shutdown() {
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
	s.cancel()
}

func (s *Store) broadcast() {
	snap := Snapshot{Version: s.version, State: s.state}
	for id, ch := range s.subs {
		select {
		case ch <- snap:
		default:
			// Subscriber stopped draining; drop it rather than stall
			// event processing.
			s.log.Warn("dropping slow store subscriber", zap.String("id", id))
			close(ch)
			delete(s.subs, id)
		}
	}
}

package fakeserver

import "context"

// The hub is the session registry: an actor owning the code -> room map,
// so handler goroutines never race over it.

type HubMsg interface{ isHubMsg() }

type GetRoom struct {
	Code  string
	Reply chan *Room
}

// EnsureRoom registers a room under a code unless one already exists; the
// registered room is replied either way.
type EnsureRoom struct {
	Code  string
	Room  *Room
	Reply chan *Room
}

type RemoveRoom struct {
	Code string
}

type ShutdownHub struct{}

func (GetRoom) isHubMsg()     {}
func (EnsureRoom) isHubMsg()  {}
func (RemoveRoom) isHubMsg()  {}
func (ShutdownHub) isHubMsg() {}

type Hub struct {
	inbox  chan HubMsg
	rooms  map[string]*Room
	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(parent context.Context) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:  make(chan HubMsg, 64),
		rooms:  make(map[string]*Room),
		ctx:    ctx,
		cancel: cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// Get is a synchronous lookup helper.
func (h *Hub) Get(code string) *Room {
	reply := make(chan *Room, 1)
	h.inbox <- GetRoom{Code: code, Reply: reply}
	return <-reply
}

// Ensure is a synchronous registration helper.
func (h *Hub) Ensure(code string, room *Room) *Room {
	reply := make(chan *Room, 1)
	h.inbox <- EnsureRoom{Code: code, Room: room, Reply: reply}
	return <-reply
}

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case GetRoom:
				msg.Reply <- h.rooms[msg.Code] // may be nil

			case EnsureRoom:
				if existing := h.rooms[msg.Code]; existing != nil {
					msg.Reply <- existing
					break
				}
				h.rooms[msg.Code] = msg.Room
				msg.Reply <- msg.Room

			case RemoveRoom:
				delete(h.rooms, msg.Code)

			case ShutdownHub:
				clear(h.rooms)
				h.cancel()
				return
			}
		}
	}
}

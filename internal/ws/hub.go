package ws

import "sync"

// Subscriber abstracts a streaming client.
type Subscriber interface {
	Send([]byte) error
	Close()
}

// Hub fans roster events out to subscribers grouped by company.
type Hub struct {
	clients   map[string]map[Subscriber]struct{}
	register  chan subscription
	unreg     chan subscription
	broadcast chan message
	count     chan countRequest
	done      chan struct{}
	closeOnce sync.Once
}

type message struct {
	companyID string
	payload   []byte
}

type subscription struct {
	companyID string
	client    Subscriber
}

type countRequest struct {
	companyID string
	reply     chan int
}

// NewHub creates an initialized Hub and starts its loop.
func NewHub() *Hub {
	h := &Hub{
		clients:   make(map[string]map[Subscriber]struct{}),
		register:  make(chan subscription),
		unreg:     make(chan subscription),
		broadcast: make(chan message),
		count:     make(chan countRequest),
		done:      make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case <-h.done:
			for _, clients := range h.clients {
				for c := range clients {
					c.Close()
				}
			}
			h.clients = nil
			return
		case sub := <-h.register:
			if _, ok := h.clients[sub.companyID]; !ok {
				h.clients[sub.companyID] = make(map[Subscriber]struct{})
			}
			h.clients[sub.companyID][sub.client] = struct{}{}
		case sub := <-h.unreg:
			if clients, ok := h.clients[sub.companyID]; ok {
				delete(clients, sub.client)
				if len(clients) == 0 {
					delete(h.clients, sub.companyID)
				}
			}
		case msg := <-h.broadcast:
			if clients, ok := h.clients[msg.companyID]; ok {
				for c := range clients {
					if err := c.Send(msg.payload); err != nil {
						c.Close()
						delete(clients, c)
					}
				}
				if len(clients) == 0 {
					delete(h.clients, msg.companyID)
				}
			}
		case req := <-h.count:
			req.reply <- len(h.clients[req.companyID])
		}
	}
}

// Register adds a client to a company stream.
func (h *Hub) Register(companyID string, client Subscriber) {
	if h.closed() {
		client.Close()
		return
	}
	select {
	case h.register <- subscription{companyID: companyID, client: client}:
	case <-h.done:
		client.Close()
	}
}

// Unregister removes a client.
func (h *Hub) Unregister(companyID string, client Subscriber) {
	select {
	case h.unreg <- subscription{companyID: companyID, client: client}:
	case <-h.done:
	}
}

// Broadcast sends payload to all company subscribers. It is a no-op once the
// hub is closed.
func (h *Hub) Broadcast(companyID string, payload []byte) {
	if h.closed() {
		return
	}
	select {
	case h.broadcast <- message{companyID: companyID, payload: payload}:
	case <-h.done:
	}
}

// Subscribers returns the number of live subscribers for a company.
func (h *Hub) Subscribers(companyID string) int {
	if h.closed() {
		return 0
	}
	reply := make(chan int, 1)
	select {
	case h.count <- countRequest{companyID: companyID, reply: reply}:
		return <-reply
	case <-h.done:
		return 0
	}
}

// Close stops the hub loop and closes every subscriber.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

func (h *Hub) closed() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

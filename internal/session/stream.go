package session

import "sync"

// Session identifies a signed-in principal.
type Session struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
}

// Event is a sign-in state change. A nil Session means nobody is signed in.
type Event struct {
	Session *Session
}

// Authenticated reports whether the event carries a principal.
func (e Event) Authenticated() bool {
	return e.Session != nil && e.Session.UID != ""
}

// Subscription is the cancellation handle returned by Stream.Subscribe.
type Subscription interface {
	Cancel()
}

// Stream delivers session change events. Subscribers receive the current
// state immediately and then every change until they cancel.
type Stream interface {
	Subscribe(fn func(Event)) Subscription
}

// Hub is an in-process Stream whose state is driven by Publish.
type Hub struct {
	mu      sync.Mutex
	current Event
	nextID  int
	subs    map[int]func(Event)
}

// NewHub returns a Hub starting in the given state.
func NewHub(initial Event) *Hub {
	return &Hub{current: initial, subs: make(map[int]func(Event))}
}

// Subscribe registers fn and delivers the current state to it.
func (h *Hub) Subscribe(fn func(Event)) Subscription {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = fn
	current := h.current
	h.mu.Unlock()

	fn(current)
	return &hubSubscription{hub: h, id: id}
}

// Publish records ev as the current state and fans it out.
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	h.current = ev
	fns := make([]func(Event), 0, len(h.subs))
	for _, fn := range h.subs {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// Current returns the last published state.
func (h *Hub) Current() Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

func (h *Hub) unsubscribe(id int) {
	h.mu.Lock()
	delete(h.subs, id)
	h.mu.Unlock()
}

type hubSubscription struct {
	hub  *Hub
	id   int
	once sync.Once
}

func (s *hubSubscription) Cancel() {
	s.once.Do(func() { s.hub.unsubscribe(s.id) })
}

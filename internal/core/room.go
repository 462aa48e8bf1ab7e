package core

import "sync"

// roomState is the live side of a room: its lock and the clients receiving its events.
// The lock guards roster mutation, message append and fan-out for the room.
type roomState struct {
	mu      sync.Mutex
	id      string
	members map[string]*Client

	// refs is guarded by Hub.roomsMu.
	refs int
}

func newRoomState(id string) *roomState {
	return &roomState{
		id:      id,
		members: make(map[string]*Client),
	}
}

// broadcast enqueues ev to every member. Must be called with mu held.
func (r *roomState) broadcast(ev *Event) (dropped []string) {
	for id, c := range r.members {
		if !c.deliver(ev) {
			dropped = append(dropped, id)
		}
	}
	return dropped
}

// acquireRoom returns the state for roomID, creating it on first use.
func (h *Hub) acquireRoom(roomID string) *roomState {
	h.roomsMu.Lock()
	defer h.roomsMu.Unlock()

	rs, ok := h.rooms[roomID]
	if !ok {
		rs = newRoomState(roomID)
		h.rooms[roomID] = rs
	}
	rs.refs++
	return rs
}

// releaseRoom drops rs once nobody holds it and it has no members.
// Every member change happens while a reference is held, so with refs at zero
// members can be read without rs.mu.
func (h *Hub) releaseRoom(rs *roomState) {
	h.roomsMu.Lock()
	defer h.roomsMu.Unlock()

	rs.refs--
	if rs.refs == 0 && len(rs.members) == 0 {
		delete(h.rooms, rs.id)
	}
}

// liveRooms returns the number of rooms currently tracked in memory.
func (h *Hub) liveRooms() int {
	h.roomsMu.Lock()
	defer h.roomsMu.Unlock()
	return len(h.rooms)
}

package core

import "sync"

// DefaultEventBuffer is the per-client event buffer used when none is given.
const DefaultEventBuffer = 64

// Client is a live connection as seen by the core layer.
// The transport feeds Commands and drains Events.
type Client struct {
	ID       string
	Commands chan *Command
	Events   chan *Event

	overflow     chan struct{}
	overflowOnce sync.Once
}

// NewClient constructs a client with initialized channels.
func NewClient(id string, buffer int) *Client {
	if buffer <= 0 {
		buffer = DefaultEventBuffer
	}
	return &Client{
		ID:       id,
		Commands: make(chan *Command, 16),
		Events:   make(chan *Event, buffer),
		overflow: make(chan struct{}),
	}
}

// Overflow is closed once the client failed to keep up with its events.
func (c *Client) Overflow() <-chan struct{} {
	return c.overflow
}

// deliver enqueues ev without blocking. A full buffer marks the client as a slow consumer.
func (c *Client) deliver(ev *Event) bool {
	select {
	case c.Events <- ev:
		return true
	default:
		c.overflowOnce.Do(func() { close(c.overflow) })
		return false
	}
}

package core

import (
	"context"
	"fmt"
	"testing"

	"github.com/vovakirdan/pinchat/internal/store"
	"github.com/vovakirdan/pinchat/internal/store/memory"
)

func benchmarkRoomBroadcast(b *testing.B, recipients int) {
	ctx := context.Background()
	st := memory.New()
	if err := st.CreateRoom(ctx, &store.Room{ID: "BENCH1", Pin: "0001", Kind: store.RoomKindText}); err != nil {
		b.Fatal(err)
	}

	hub := NewHub(st, nil, nil, Options{EventBuffer: 1024})

	sender, _ := hub.Connect("sender")
	if _, err := hub.Join(ctx, sender, "0001", "sender"); err != nil {
		b.Fatal(err)
	}

	clients := make([]*Client, 0, recipients)
	for i := range recipients {
		c, _ := hub.Connect(fmt.Sprintf("c%d", i))
		if _, err := hub.Join(ctx, c, "0001", fmt.Sprintf("client-%d", i)); err != nil {
			b.Fatal(err)
		}
		clients = append(clients, c)
	}

	// Drain events for every client but the target to avoid overflow.
	target := clients[0]
	drain(target.Events)
	for _, c := range append(clients[1:], sender) {
		go func(cl *Client) {
			for range cl.Events {
			}
		}(c)
	}

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if err := hub.SendText(ctx, "sender", "payload"); err != nil {
			b.Fatal(err)
		}
		<-target.Events
	}
}

func BenchmarkRoomBroadcast_10(b *testing.B)  { benchmarkRoomBroadcast(b, 10) }
func BenchmarkRoomBroadcast_100(b *testing.B) { benchmarkRoomBroadcast(b, 100) }
func BenchmarkRoomBroadcast_500(b *testing.B) { benchmarkRoomBroadcast(b, 500) }

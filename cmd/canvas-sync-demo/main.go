package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/drawmesh/canvas-sync/internal/awareness"
	"github.com/drawmesh/canvas-sync/internal/collab"
	"github.com/drawmesh/canvas-sync/internal/element"
	"github.com/drawmesh/canvas-sync/internal/provider"
	"github.com/drawmesh/canvas-sync/internal/store"
)

func main() {
	serverURL := flag.String("server", "ws://localhost:1234/ws", "CRDT relay URL")
	room := flag.String("room", "demo-room", "room name to join")
	name := flag.String("name", "demo-user", "local display name")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	fmt.Println("canvas-sync demo starting...")

	mgr := collab.New(collab.WithLogger(logger))
	ctx := context.Background()
	cfg := provider.Config{
		ServerURL: *serverURL,
		RoomName:  *room,
		User:      awareness.Identity{ID: *name, Name: *name},
	}

	if err := mgr.Connect(ctx, cfg); err != nil {
		fmt.Println("connect failed:", err)
		os.Exit(1)
	}
	defer mgr.Dispose()

	unsub := mgr.OnStatusChange(func(s provider.Status) {
		fmt.Println("status:", s)
	})
	defer unsub()

	s := store.NewMemoryStore()
	mgr.StartSync(s, 50)

	s.SetElements([]element.Element{
		{ID: "demo-rect", Type: element.KindRectangle, X: 10, Y: 10, Width: 100, Height: 80, IsVisible: true},
	})
	mgr.UpdateAwareness(awareness.Partial{Cursor: &awareness.Point{X: 10, Y: 10}})

	time.Sleep(200 * time.Millisecond)
	fmt.Println("peers:", len(mgr.RemoteAwareness()))
}

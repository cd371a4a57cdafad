package rtc

import (
	"context"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
)

func TestContextCancelClosesConnection(t *testing.T) {
	conn, err := NewConnection(webrtc.Configuration{}, "remote")
	if err != nil {
		t.Fatalf("new connection: %v", err)
	}

	closed := make(chan struct{})
	conn.OnClosed(func() { close(closed) })

	ctx, cancel := context.WithCancel(context.Background())
	conn.Start(ctx)
	cancel()

	select {
	case <-closed:
	case <-time.After(3 * time.Second):
		t.Fatal("cancelled context did not tear the connection down")
	}
}

func TestCloseStopsContextWatcher(t *testing.T) {
	conn, err := NewConnection(webrtc.Configuration{}, "remote")
	if err != nil {
		t.Fatal(err)
	}
	conn.Start(context.Background())
	conn.Close()
	conn.Close()
}

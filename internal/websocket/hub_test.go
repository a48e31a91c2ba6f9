package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/listacompra/internal/apperror"
)

// mockClient creates a Client with a send channel but no real connection.
func mockClient(hub *Hub, roomID string) *Client {
	return &Client{
		hub:    hub,
		conn:   nil,
		send:   make(chan []byte, sendBufferSize),
		roomID: roomID,
		logger: slog.Default(),
	}
}

func TestRegisterUnregister(t *testing.T) {
	hub := NewHub(slog.Default(), nil)

	c1 := mockClient(hub, "1234")
	c2 := mockClient(hub, "5678")

	hub.Register(c1)
	hub.Register(c2)

	if got := hub.ClientCount(); got != 2 {
		t.Fatalf("expected 2 clients, got %d", got)
	}
	if got := hub.RoomClientCount("1234"); got != 1 {
		t.Fatalf("expected 1 client in room 1234, got %d", got)
	}

	hub.Unregister(c1)

	if got := hub.ClientCount(); got != 1 {
		t.Fatalf("expected 1 client after unregister, got %d", got)
	}

	hub.Unregister(c2)

	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestDoubleUnregister(t *testing.T) {
	hub := NewHub(slog.Default(), nil)
	c := mockClient(hub, "1234")
	hub.Register(c)
	hub.Unregister(c)
	// Should not panic
	hub.Unregister(c)

	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestBroadcastRoom(t *testing.T) {
	hub := NewHub(slog.Default(), nil)

	c1 := mockClient(hub, "1234")
	c2 := mockClient(hub, "1234")
	other := mockClient(hub, "9999")
	hub.Register(c1)
	hub.Register(c2)
	hub.Register(other)

	hub.BroadcastRoom("1234", NewMessage(TypeRoomDeactivated, "1234", nil))

	for _, c := range []*Client{c1, c2} {
		select {
		case data := <-c.send:
			var got Message
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got.Type != TypeRoomDeactivated {
				t.Errorf("expected type %s, got %s", TypeRoomDeactivated, got.Type)
			}
			if got.RoomID != "1234" {
				t.Errorf("expected room 1234, got %s", got.RoomID)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatal("timeout waiting for message")
		}
	}

	select {
	case data := <-other.send:
		t.Fatalf("client of another room received %s", data)
	default:
	}

	hub.Unregister(c1)
	hub.Unregister(c2)
	hub.Unregister(other)
}

func TestBroadcastEmptyHub(t *testing.T) {
	hub := NewHub(slog.Default(), nil)
	// Should not panic
	hub.BroadcastRoom("1234", NewMessage(TypeRoomDeactivated, "1234", nil))
}

func TestBroadcastFullBuffer(t *testing.T) {
	hub := NewHub(slog.Default(), nil)

	c := mockClient(hub, "1234")
	hub.Register(c)

	for i := 0; i < sendBufferSize; i++ {
		hub.BroadcastRoom("1234", NewMessage("fill", "1234", map[string]any{"n": i}))
	}

	// This should drop the message, not panic or block
	hub.BroadcastRoom("1234", NewMessage("dropped", "1234", nil))

	count := 0
	for {
		select {
		case <-c.send:
			count++
		default:
			goto done
		}
	}
done:
	if count != sendBufferSize {
		t.Errorf("expected %d messages, got %d", sendBufferSize, count)
	}

	hub.Unregister(c)
}

func TestSnapshotMessage(t *testing.T) {
	msg := SnapshotMessage("items", "1234", []string{"a", "b"}, 2)
	if msg.Type != "items_snapshot" {
		t.Errorf("expected type items_snapshot, got %s", msg.Type)
	}
	if msg.Extra["count"] != 2 {
		t.Errorf("expected count 2, got %v", msg.Extra["count"])
	}

	data, err := json.Marshal(SnapshotMessage("items", "1234", []string{}, 0))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]any
	json.Unmarshal(data, &raw)
	if _, ok := raw["records"]; !ok {
		t.Error("empty snapshot must still carry records")
	}
}

func TestErrorMessage(t *testing.T) {
	msg := ErrorMessage("prices", "1234", apperror.ErrBackendUnavailable)
	if msg.Type != "prices_error" {
		t.Errorf("expected type prices_error, got %s", msg.Type)
	}
	if msg.Error == nil || msg.Error.Code != "backend_unavailable" {
		t.Errorf("unexpected error payload %+v", msg.Error)
	}
	if msg.Records != nil {
		t.Error("error message should carry no records")
	}
}

func TestConcurrentAccess(t *testing.T) {
	hub := NewHub(slog.Default(), nil)
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := mockClient(hub, "1234")
			hub.Register(c)
			hub.BroadcastRoom("1234", NewMessage("concurrent", "1234", nil))
			for {
				select {
				case <-c.send:
				default:
					hub.Unregister(c)
					return
				}
			}
		}()
	}

	wg.Wait()

	if got := hub.ClientCount(); got != 0 {
		t.Errorf("expected 0 clients after concurrent test, got %d", got)
	}
}

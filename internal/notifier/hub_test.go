package notifier_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/popeskul/waba-messenger/internal/notifier"
)

func startHub(t *testing.T) (*notifier.Hub, string) {
	t.Helper()

	hub := notifier.NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	server := httptest.NewServer(http.HandlerFunc(hub.HandleConnection))
	t.Cleanup(server.Close)

	return hub, "ws" + strings.TrimPrefix(server.URL, "http")
}

func readEvent(t *testing.T, conn *websocket.Conn) notifier.Event {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var event notifier.Event
	require.NoError(t, json.Unmarshal(payload, &event))
	return event
}

func TestHub_ConnectedGreeting(t *testing.T) {
	_, url := startHub(t)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	event := readEvent(t, conn)
	assert.Equal(t, notifier.EventConnected, event.Type)

	data := event.Data.(map[string]interface{})
	assert.Equal(t, float64(1), data["active_connections"])
}

func TestHub_BroadcastReachesAllSubscribers(t *testing.T) {
	hub, url := startHub(t)

	first, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer first.Close()
	readEvent(t, first)

	second, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer second.Close()
	readEvent(t, second)

	hub.Broadcast(notifier.NewEvent(notifier.EventNewMessage, map[string]string{
		"user_id": "919876543210",
	}))

	for _, conn := range []*websocket.Conn{first, second} {
		event := readEvent(t, conn)
		assert.Equal(t, notifier.EventNewMessage, event.Type)
	}
}

func TestHub_PingAnsweredWithPong(t *testing.T) {
	_, url := startHub(t)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	readEvent(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ping")))

	event := readEvent(t, conn)
	assert.Equal(t, notifier.EventPong, event.Type)
}

func TestHub_ConnectionCountTracksDisconnects(t *testing.T) {
	hub, url := startHub(t)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	readEvent(t, conn)

	assert.Equal(t, 1, hub.ConnectionCount())

	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool {
		return hub.ConnectionCount() == 0
	}, 2*time.Second, 20*time.Millisecond)
}

func TestHub_BroadcastWithoutSubscribersDoesNotBlock(t *testing.T) {
	hub, _ := startHub(t)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			hub.Broadcast(notifier.NewEvent(notifier.EventMessageStatus, nil))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked with no subscribers")
	}
}

package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func TestNewHub(t *testing.T) {
	hub := NewHub()

	assert.NotNil(t, hub)
	assert.Equal(t, 0, hub.ConnectionCount())
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := NewHub()

	// 同一用户多个连接（多标签页场景）
	tab1 := &Client{UserID: 7}
	tab2 := &Client{UserID: 7}
	hub.Register(tab1)
	hub.Register(tab2)

	assert.True(t, hub.IsOnline(7))
	assert.Equal(t, 2, hub.ConnectionCount())

	hub.Unregister(tab1)
	assert.True(t, hub.IsOnline(7))
	assert.Equal(t, 1, hub.ConnectionCount())

	hub.Unregister(tab2)
	assert.False(t, hub.IsOnline(7))
	assert.Equal(t, 0, hub.ConnectionCount())
}

func TestHub_IsOnline_NoConnections(t *testing.T) {
	hub := NewHub()

	assert.False(t, hub.IsOnline(123))
}

func TestHub_SendToUser_UserNotOnline(t *testing.T) {
	hub := NewHub()

	msg := &Message{
		Type: "item_stored",
		Data: map[string]interface{}{"user_item_id": 42},
	}

	// 用户不在线不算错误，消息直接丢弃
	err := hub.SendToUser(123, msg)
	assert.NoError(t, err)
}

func TestHub_SendToUser_WithConnection(t *testing.T) {
	hub := NewHub()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		client := &Client{
			UserID: 200,
			Conn:   conn,
		}
		hub.Register(client)

		time.Sleep(500 * time.Millisecond)
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// 等注册完成
	time.Sleep(50 * time.Millisecond)
	require.True(t, hub.IsOnline(200))

	msg := &Message{
		Type: "summary_ready",
		Data: map[string]interface{}{
			"user_item_id": 42,
			"summary":      "本期要点：三条新闻。",
		},
	}
	err = hub.SendToUser(200, msg)
	assert.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, received, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(received), "summary_ready")
	assert.Contains(t, string(received), "本期要点")
}

func TestHub_SendToUser_AllTabsReceive(t *testing.T) {
	hub := NewHub()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		hub.Register(&Client{UserID: 300, Conn: conn})
		time.Sleep(500 * time.Millisecond)
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn1, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn1.Close()
	conn2, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn2.Close()

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 2, hub.ConnectionCount())

	msg := &Message{
		Type: "item_stored",
		Data: map[string]interface{}{"subject": "Issue 512"},
	}
	require.NoError(t, hub.SendToUser(300, msg))

	// 同一用户的每个连接都收到推送
	for _, conn := range []*websocket.Conn{conn1, conn2} {
		conn.SetReadDeadline(time.Now().Add(time.Second))
		_, received, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Contains(t, string(received), "Issue 512")
	}
}

func TestHub_SendToUser_PrunesDeadConnection(t *testing.T) {
	hub := NewHub()

	serverConns := make(chan *websocket.Conn, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Register(&Client{UserID: 400, Conn: conn})
		serverConns <- conn
		time.Sleep(500 * time.Millisecond)
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	serverConn := <-serverConns
	require.True(t, hub.IsOnline(400))

	// 底层连接已关，推送失败后该连接要被摘掉
	serverConn.Close()
	msg := &Message{Type: "item_stored", Data: map[string]interface{}{"subject": "Issue 513"}}
	require.NoError(t, hub.SendToUser(400, msg))

	assert.False(t, hub.IsOnline(400))
	assert.Equal(t, 0, hub.ConnectionCount())
}

func TestHub_MultipleUsers(t *testing.T) {
	hub := NewHub()

	var userID int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		userID++
		hub.Register(&Client{UserID: userID, Conn: conn})
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	var conns []*websocket.Conn
	for i := 0; i < 3; i++ {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		require.NoError(t, err)
		conns = append(conns, conn)
	}
	defer func() {
		for _, conn := range conns {
			conn.Close()
		}
	}()

	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, 3, hub.ConnectionCount())
	assert.True(t, hub.IsOnline(1))
	assert.True(t, hub.IsOnline(2))
	assert.True(t, hub.IsOnline(3))
	assert.False(t, hub.IsOnline(4))
}

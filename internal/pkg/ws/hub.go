package ws

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"
)

// Message 推送给前端的事件帧
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Client 一条已认证的 WebSocket 连接
type Client struct {
	UserID int64
	Conn   *websocket.Conn
	mu     sync.Mutex // 串行化写入
}

func (c *Client) send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.WriteMessage(websocket.TextMessage, data)
}

// Hub 按用户维护在线连接，同一用户允许多个标签页同时在线
type Hub struct {
	mu    sync.RWMutex
	conns map[int64]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		conns: make(map[int64]map[*Client]struct{}),
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.conns[client.UserID]
	if !ok {
		set = make(map[*Client]struct{})
		h.conns[client.UserID] = set
	}
	set[client] = struct{}{}
	log.Printf("ws: user %d connected, tabs=%d", client.UserID, len(set))
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(client)
	log.Printf("ws: user %d disconnected", client.UserID)
}

func (h *Hub) removeLocked(client *Client) {
	if set, ok := h.conns[client.UserID]; ok {
		delete(set, client)
		if len(set) == 0 {
			delete(h.conns, client.UserID)
		}
	}
}

// SendToUser 向某个用户的全部在线连接推送事件，写失败的连接直接摘除
func (h *Hub) SendToUser(userID int64, msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	h.mu.RLock()
	set, ok := h.conns[userID]
	if !ok {
		h.mu.RUnlock()
		return nil
	}
	targets := make([]*Client, 0, len(set))
	for c := range set {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	var dead []*Client
	for _, c := range targets {
		if err := c.send(data); err != nil {
			log.Printf("ws: drop stale conn for user %d: %v", userID, err)
			dead = append(dead, c)
		}
	}

	if len(dead) > 0 {
		h.mu.Lock()
		for _, c := range dead {
			h.removeLocked(c)
		}
		h.mu.Unlock()
	}
	return nil
}

// IsOnline 用户是否至少有一条在线连接
func (h *Hub) IsOnline(userID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID]) > 0
}

// ConnectionCount 当前在线连接总数
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	total := 0
	for _, set := range h.conns {
		total += len(set)
	}
	return total
}

package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"earniverse-backend/internal/models"
	"earniverse-backend/internal/services"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Client struct {
	UserID int64
	Conn   *websocket.Conn
}

type Message struct {
	Type   string      `json:"type"`
	UserID int64       `json:"user_id,omitempty"`
	Data   interface{} `json:"data"`
}

// WebSocketHub fans round lifecycle events out to every connected client.
// It implements services.Broadcaster so the engine never sees a socket.
type WebSocketHub struct {
	clients    map[int64]*websocket.Conn
	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message
}

func NewWebSocketHub() *WebSocketHub {
	hub := &WebSocketHub{
		clients:    make(map[int64]*websocket.Conn),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message, 256),
	}

	go hub.run()

	return hub
}

func (hub *WebSocketHub) run() {
	for {
		select {
		case client := <-hub.register:
			hub.clients[client.UserID] = client.Conn

		case client := <-hub.unregister:
			if _, ok := hub.clients[client.UserID]; ok {
				delete(hub.clients, client.UserID)
			}

		case message := <-hub.broadcast:
			hub.send(message)
		}
	}
}

func (hub *WebSocketHub) send(message *Message) {
	if message.UserID != 0 {
		if conn, ok := hub.clients[message.UserID]; ok {
			conn.WriteJSON(message)
		}
		return
	}
	for _, conn := range hub.clients {
		conn.WriteJSON(message)
	}
}

func (hub *WebSocketHub) publish(msg *Message) {
	select {
	case hub.broadcast <- msg:
	default:
		// Drop rather than stall the tick loop when the hub is backed up.
	}
}

func (hub *WebSocketHub) RoundCountdown(view *models.RoundView) {
	hub.publish(&Message{Type: "ROUND_COUNTDOWN", Data: view})
}

func (hub *WebSocketHub) RoundStarted(view *models.RoundView) {
	hub.publish(&Message{Type: "ROUND_STARTED", Data: view})
}

func (hub *WebSocketHub) RoundTick(roundID string, multiplier float64) {
	hub.publish(&Message{Type: "ROUND_TICK", Data: gin.H{
		"round_id":   roundID,
		"multiplier": multiplier,
		"timestamp":  time.Now().UnixMilli(),
	}})
}

func (hub *WebSocketHub) RoundCrashed(view *models.RoundView, serverSeed string) {
	hub.publish(&Message{Type: "ROUND_CRASH", Data: gin.H{
		"round":       view,
		"server_seed": serverSeed,
	}})
}

func (hub *WebSocketHub) WagerPlaced(userID int64, amount float64) {
	hub.publish(&Message{Type: "WAGER_PLACED", Data: gin.H{
		"user_id": userID,
		"amount":  amount,
	}})
}

func (hub *WebSocketHub) WagerCashedOut(userID int64, multiplier, payout float64) {
	hub.publish(&Message{Type: "WAGER_CASHED_OUT", Data: gin.H{
		"user_id":    userID,
		"multiplier": multiplier,
		"payout":     payout,
	}})
}

type WebSocketHandler struct {
	engine *services.CrashEngine
	store  *services.RedisStore
	hub    *WebSocketHub
}

func NewWebSocketHandler(engine *services.CrashEngine, store *services.RedisStore, hub *WebSocketHub) *WebSocketHandler {
	return &WebSocketHandler{
		engine: engine,
		store:  store,
		hub:    hub,
	}
}

func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	userID := c.GetInt64("user_id")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Failed to upgrade to WebSocket: %v", err)
		return
	}

	client := &Client{
		UserID: userID,
		Conn:   conn,
	}

	h.hub.register <- client

	defer func() {
		h.hub.unregister <- client
		conn.Close()
	}()

	h.sendSnapshot(c, client)

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		h.handleMessage(client, &msg)
	}
}

func (h *WebSocketHandler) handleMessage(client *Client, msg *Message) {
	switch msg.Type {
	case "PING":
		client.Conn.WriteJSON(Message{
			Type: "PONG",
			Data: gin.H{"timestamp": time.Now().Unix()},
		})
	case "GET_ROUND":
		client.Conn.WriteJSON(Message{
			Type: "ROUND_STATE",
			Data: h.engine.CurrentRound(),
		})
	}
}

// sendSnapshot brings a fresh connection up to speed: current round state
// and the caller's balance.
func (h *WebSocketHandler) sendSnapshot(c *gin.Context, client *Client) {
	client.Conn.WriteJSON(Message{
		Type: "ROUND_STATE",
		Data: h.engine.CurrentRound(),
	})

	wallet, err := h.store.GetWallet(c.Request.Context(), client.UserID)
	if err != nil {
		log.Printf("Failed to get wallet for WS: %v", err)
		return
	}

	client.Conn.WriteJSON(Message{
		Type: "BALANCE_UPDATE",
		Data: gin.H{
			"balance":       wallet.Balance,
			"total_wagered": wallet.TotalWagered,
			"total_won":     wallet.TotalWon,
		},
	})
}

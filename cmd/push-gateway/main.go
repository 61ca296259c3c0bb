// cmd/push-gateway/main.go
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/segmentio/kafka-go"

	"stocknexus/internal/pkg/bootstrap"
	"stocknexus/internal/pkg/logger"
	"stocknexus/internal/pkg/mq"
	"stocknexus/internal/service/inventory/domain/port"
)

const (
	serviceName = "stock-push-gateway"
	servicePort = 8083

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool { // 简化处理，允许所有跨域
		return true
	},
}

// Hub 维护所有活跃的连接，并把库存变动广播给订阅了对应商品的客户端。
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan port.StockChange
}

func newHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan port.StockChange, 256),
	}
}

func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			logger.Logger().Info().Int("clients", len(h.clients)).Msg("client registered")
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
		case change := <-h.broadcast:
			payload, err := json.Marshal(change)
			if err != nil {
				continue
			}
			for client := range h.clients {
				if !client.watches(change.ProductID) {
					continue
				}
				select {
				case client.send <- payload:
				default:
					// 写缓冲已满，判定客户端失活并剔除
					delete(h.clients, client)
					close(client.send)
				}
			}
		}
	}
}

// Client 是一个 WebSocket 连接的代表。
// products 为空表示订阅全部商品的库存变动。
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	products map[string]bool
}

func (c *Client) watches(productID string) bool {
	if len(c.products) == 0 {
		return true
	}
	return c.products[productID]
}

// writePump 把 send channel 中的消息写入 websocket，并周期性发送心跳。
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 消费客户端消息（只处理心跳应答），连接异常时注销客户端。
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func serveWs(hub *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Logger().Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	products := make(map[string]bool)
	if raw := r.URL.Query().Get("products"); raw != "" {
		for _, p := range strings.Split(raw, ",") {
			products[strings.TrimSpace(p)] = true
		}
	}

	client := &Client{hub: hub, conn: conn, send: make(chan []byte, 64), products: products}
	hub.register <- client

	go client.writePump()
	go client.readPump()
}

// consumeStockUpdates 订阅库存变动主题并转交给 Hub 广播。
func consumeStockUpdates(ctx context.Context, reader *kafka.Reader, hub *Hub) {
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Logger().Error().Err(err).Msg("could not read stock update, retrying")
			time.Sleep(time.Second)
			continue
		}

		var change port.StockChange
		if err := json.Unmarshal(msg.Value, &change); err != nil {
			logger.Logger().Warn().Err(err).Msg("malformed stock update, skipping")
			continue
		}
		hub.broadcast <- change
	}
}

func main() {
	bootstrap.Setup(serviceName)
	cfg := bootstrap.GetCurrentConfig()

	hub := newHub()
	go hub.run()

	ctx, cancel := context.WithCancel(context.Background())
	reader := mq.NewKafkaReader(cfg.Infra.Kafka.Brokers, cfg.App.Topics.StockUpdates, serviceName)
	go consumeStockUpdates(ctx, reader, hub)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        servicePort,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			appCtx.Mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
			appCtx.Mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
				serveWs(hub, w, r)
			})
		},
		OnShutdown: func(shutdownCtx context.Context) {
			cancel()
			if err := reader.Close(); err != nil {
				logger.Logger().Error().Err(err).Msg("error closing stock update reader")
			}
		},
	})
}

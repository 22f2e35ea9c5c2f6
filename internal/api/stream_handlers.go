package api

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/technosupport/fusion-pipeline/internal/realtime"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all for dev; restrict in prod
	},
}

// StreamHandler bridges the org redis channels to websocket clients.
// While a client is connected it holds a real SUBSCRIBE on the channel,
// which is exactly what the pipeline's subscriber-count gate observes.
type StreamHandler struct {
	Redis *redis.Client
}

func NewStreamHandler(rdb *redis.Client) *StreamHandler {
	return &StreamHandler{Redis: rdb}
}

func (h *StreamHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	if orgID == "" {
		http.Error(w, "missing org id", http.StatusBadRequest)
		return
	}

	channel := realtime.EventChannel(orgID)
	if r.URL.Query().Get("thumbnails") == "true" {
		channel = realtime.ThumbnailChannel(orgID)
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WS Upgrade Failed: %v", err)
		return
	}
	defer conn.Close()

	sub := h.Redis.Subscribe(r.Context(), channel)
	defer sub.Close()

	log.Printf("Stream: client connected, org=%s channel=%s", orgID, channel)

	// Reader goroutine: its only job is noticing the client went away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ch := sub.Channel()
	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
				return
			}
		}
	}
}

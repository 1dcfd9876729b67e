package stream

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	channelPrefix = "fleet:"
	channelSuffix = ":updates"
	relayBuffer   = 256
)

// Hub fans payloads out to websocket clients by topic and optionally
// relays them through Redis so every instance sees every update
type Hub struct {
	id      string
	redis   *redis.Client
	clients map[string]map[*Client]struct{}
	mu      sync.RWMutex

	relay  chan relayMessage
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Client is a single subscriber of a topic
type Client struct {
	Topic string
	Send  chan []byte
}

type relayMessage struct {
	Origin  string `json:"origin"`
	Topic   string `json:"topic"`
	Payload []byte `json:"payload"`
}

// NewHub creates a hub; redisClient may be nil for a single instance
func NewHub(redisClient *redis.Client) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		id:      uuid.NewString(),
		redis:   redisClient,
		clients: map[string]map[*Client]struct{}{},
		cancel:  cancel,
	}

	if redisClient != nil {
		h.relay = make(chan relayMessage, relayBuffer)
		ready := make(chan struct{})
		h.wg.Add(2)
		go h.publishRedis(ctx)
		go h.subscribeRedis(ctx, ready)
		<-ready
	}
	return h
}

// Close stops the Redis relay goroutines
func (h *Hub) Close() {
	h.cancel()
	h.wg.Wait()
}

// Register subscribes a new client to topic
func (h *Hub) Register(topic string) *Client {
	client := &Client{
		Topic: topic,
		Send:  make(chan []byte, 64),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[topic] == nil {
		h.clients[topic] = map[*Client]struct{}{}
	}
	h.clients[topic][client] = struct{}{}
	return client
}

// Unregister removes client and closes its Send channel. Safe to call twice.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	topicClients, ok := h.clients[client.Topic]
	if !ok {
		return
	}
	if _, ok := topicClients[client]; !ok {
		return
	}
	delete(topicClients, client)
	if len(topicClients) == 0 {
		delete(h.clients, client.Topic)
	}
	close(client.Send)
}

// ClientCount returns the number of subscribers of topic
func (h *Hub) ClientCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}

// Broadcast delivers payload to local subscribers of topic and queues it for
// the Redis relay. It never blocks; slow clients miss messages.
func (h *Hub) Broadcast(topic string, payload []byte) {
	h.deliver(topic, payload)

	if h.relay == nil {
		return
	}
	select {
	case h.relay <- relayMessage{Origin: h.id, Topic: topic, Payload: payload}:
	default:
		log.Printf("warning: redis relay queue full, dropping update for %s", topic)
	}
}

func (h *Hub) deliver(topic string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[topic] {
		select {
		case client.Send <- payload:
		default:
		}
	}
}

func (h *Hub) publishRedis(ctx context.Context) {
	defer h.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-h.relay:
			data, err := json.Marshal(msg)
			if err != nil {
				log.Printf("redis relay encode error: %v", err)
				continue
			}
			if err := h.redis.Publish(ctx, redisChannel(msg.Topic), data).Err(); err != nil {
				log.Printf("redis publish error: %v", err)
			}
		}
	}
}

func (h *Hub) subscribeRedis(ctx context.Context, ready chan<- struct{}) {
	defer h.wg.Done()

	pubsub := h.redis.PSubscribe(ctx, channelPrefix+"*"+channelSuffix)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		log.Printf("redis subscribe error: %v", err)
		close(ready)
		return
	}
	close(ready)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var rm relayMessage
			if err := json.Unmarshal([]byte(msg.Payload), &rm); err != nil {
				log.Printf("redis relay decode error: %v", err)
				continue
			}
			if rm.Origin == h.id {
				continue
			}
			topic := topicFromChannel(msg.Channel)
			if topic == "" {
				continue
			}
			h.deliver(topic, rm.Payload)
		}
	}
}

func redisChannel(topic string) string {
	return channelPrefix + topic + channelSuffix
}

func topicFromChannel(ch string) string {
	// fleet:{topic}:updates
	if len(ch) <= len(channelPrefix)+len(channelSuffix) ||
		!strings.HasPrefix(ch, channelPrefix) || !strings.HasSuffix(ch, channelSuffix) {
		return ""
	}
	return ch[len(channelPrefix) : len(ch)-len(channelSuffix)]
}

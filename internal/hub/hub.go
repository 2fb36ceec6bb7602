package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nvoloshyn/go-chathub/internal/database"
	"github.com/nvoloshyn/go-chathub/internal/stats"
	"github.com/nvoloshyn/go-chathub/internal/types"
)

const (
	StatActiveConnections = "ActiveConnections"
	StatPublicMessages    = "PublicMessages"
	StatPrivateMessages   = "PrivateMessages"
	StatTypingEvents      = "TypingEvents"
)

type stopReq struct {
	done chan struct{}
}

// Hub is the connection lifecycle manager and relay engine. The run
// loop owns registration and deregistration; relay handlers run on the
// read goroutine of the connection that triggered them.
type Hub struct {
	log            *log.Logger
	db             database.ChatHubRepository
	stats          stats.StatsProvider
	presence       *Registry
	clients        map[*Client]struct{}
	clientsLock    sync.Mutex
	registerChan   chan *Client
	deregisterChan chan *Client
	stop           chan stopReq
	done           chan struct{}
}

func NewHub(logger *log.Logger, db database.ChatHubRepository, su stats.StatsProvider) (*Hub, error) {
	h := &Hub{
		log:            logger,
		db:             db,
		stats:          su,
		presence:       NewRegistry(),
		clients:        make(map[*Client]struct{}),
		registerChan:   make(chan *Client),
		deregisterChan: make(chan *Client),
		stop:           make(chan stopReq),
		done:           make(chan struct{}),
	}

	su.RegisterMetric(StatActiveConnections)
	su.RegisterMetric(StatPublicMessages)
	su.RegisterMetric(StatPrivateMessages)
	su.RegisterMetric(StatTypingEvents)

	return h, nil
}

func (h *Hub) Run() {
	for {
		select {
		case c := <-h.registerChan:
			h.log.Printf("%s (%s) connected", c.user.Username, c.id)
			h.addClient(c)
		case c := <-h.deregisterChan:
			h.removeClient(c)
		case req := <-h.stop:
			h.log.Println("stopping clients")
			h.clientsLock.Lock()
			for c := range h.clients {
				c.stopClient()
			}
			h.clientsLock.Unlock()

			close(h.done)
			close(req.done)
			return
		}
	}
}

func (h *Hub) RegisterClient(c *Client) {
	h.registerChan <- c
}

func (h *Hub) DeregisterClient(c *Client) {
	select {
	case h.deregisterChan <- c:
	case <-h.done:
	}
}

// addClient binds the client into the hub, replaces any stale presence
// entry for the same user (last-connect-wins) and announces the new
// snapshot to everyone, the new connection included.
func (h *Hub) addClient(c *Client) {
	h.clientsLock.Lock()
	h.clients[c] = struct{}{}
	h.clientsLock.Unlock()

	h.presence.Remove(c.user.Id)
	h.presence.Upsert(Entry{
		UserId:   c.user.Id,
		Username: c.user.Username,
		Client:   c,
	})

	h.stats.Incr(StatActiveConnections)
	h.broadcast(PresenceChanged(h.snapshotUsers()))
}

func (h *Hub) removeClient(c *Client) {
	h.clientsLock.Lock()
	if _, ok := h.clients[c]; !ok {
		h.clientsLock.Unlock()
		return
	}
	delete(h.clients, c)
	h.clientsLock.Unlock()

	h.stats.Decr(StatActiveConnections)

	if c.user.Id == "" {
		// transport handed us a connection that never bound an identity
		h.log.Printf("unidentified connection (%s) disconnected", c.id)
		return
	}

	h.log.Printf("%s (%s) disconnected", c.user.Username, c.id)
	if h.presence.RemoveConn(c.user.Id, c) {
		h.broadcast(PresenceChanged(h.snapshotUsers()))
	}
}

// handleGetUsers answers a presence snapshot request. The reply goes to
// the requesting connection only.
func (h *Hub) handleGetUsers(c *Client) {
	c.queueMessage(UsersList(h.snapshotUsers()))
}

// handlePublicMessage broadcasts a public chat message to every
// connection, sender included. Empty payloads are dropped without
// notifying the sender.
func (h *Hub) handlePublicMessage(ev *ClientEvent) {
	var payload PublicMessagePayload
	if err := json.Unmarshal(ev.Data, &payload); err != nil || payload.Text == "" {
		return
	}

	c := ev.client
	msg := PublicMessage{
		Text:     payload.Text,
		Name:     c.user.Username,
		Id:       fmt.Sprintf("%s-%d", c.id, time.Now().UnixMilli()),
		SocketId: c.id,
	}

	h.stats.Incr(StatPublicMessages)
	h.broadcast(PublicResponse(msg))
}

// handleTyping notifies every other connection that the sender is
// typing. Fire-and-forget.
func (h *Hub) handleTyping(c *Client) {
	h.stats.Incr(StatTypingEvents)
	h.broadcast(TypingNotice(c.user.Username, c))
}

// handlePrivateMessage persists the message, then echoes the stored
// record to the sender and delivers it to the receiver when online.
// Persistence strictly precedes any delivery.
func (h *Hub) handlePrivateMessage(ev *ClientEvent) {
	var payload PrivateMessagePayload
	if err := json.Unmarshal(ev.Data, &payload); err != nil {
		h.log.Println("error parsing private message payload:", err)
		return
	}

	if payload.Content == "" || payload.To == "" {
		h.log.Println("private message missing content or recipient")
		return
	}

	sender := ev.client
	saved, err := h.db.CreateMessage(database.CreateMessageParams{
		SenderId:   sender.user.Id,
		ReceiverId: payload.To,
		Content:    payload.Content,
	})
	if err != nil {
		h.log.Println("CreateMessage:", err)
		return
	}

	h.stats.Incr(StatPrivateMessages)

	msg := types.PrivateMessage{
		Id:         saved.Id,
		SenderId:   saved.SenderId,
		ReceiverId: saved.ReceiverId,
		Content:    saved.Content,
		CreatedAt:  saved.CreatedAt,
	}

	sender.queueMessage(NewMessage(msg))

	if entry, ok := h.presence.Find(payload.To); ok {
		entry.Client.queueMessage(NewMessage(msg))
	}
}

func (h *Hub) snapshotUsers() []types.User {
	entries := h.presence.SnapshotAll()
	users := make([]types.User, len(entries))
	for i, entry := range entries {
		users[i] = types.User{
			Id:       entry.UserId,
			Username: entry.Username,
			SocketId: entry.Client.id,
		}
	}

	return users
}

func (h *Hub) broadcast(ev *ServerEvent) {
	h.clientsLock.Lock()
	defer h.clientsLock.Unlock()

	for c := range h.clients {
		if c == ev.SkipClient {
			continue
		}

		c.queueMessage(ev)
	}
}

func (h *Hub) Shutdown(ctx context.Context) error {
	req := stopReq{done: make(chan struct{})}

	select {
	case h.stop <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

package hub

import (
	"encoding/json"

	"github.com/nvoloshyn/go-chathub/internal/types"
)

// Inbound event names, one per client-triggered behavior.
const (
	EventGetUsers       = "getUsers"
	EventMessage        = "message"
	EventTyping         = "typing"
	EventPrivateMessage = "private_message"
)

// Outbound event names.
const (
	EventNewUser        = "responseNewUser"
	EventUsersList      = "usersList"
	EventResponse       = "response"
	EventTypingResponse = "responseTyping"
	EventNewMessage     = "new_message"
)

// ClientEvent is the envelope for all client-to-server traffic.
type ClientEvent struct {
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data,omitempty"`
	client *Client
}

type PublicMessagePayload struct {
	Text string `json:"text"`
}

type PrivateMessagePayload struct {
	Content string `json:"content"`
	To      string `json:"to"`
}

// ServerEvent is the envelope for all server-to-client traffic.
// SkipClient excludes one connection from a broadcast.
type ServerEvent struct {
	Event      string  `json:"event"`
	Data       any     `json:"data,omitempty"`
	SkipClient *Client `json:"-"`
}

// PublicMessage is the transient payload of a public broadcast. It is
// never persisted.
type PublicMessage struct {
	Text     string `json:"text"`
	Name     string `json:"name"`
	Id       string `json:"id"`
	SocketId string `json:"socketID"`
}

func PresenceChanged(users []types.User) *ServerEvent {
	return &ServerEvent{
		Event: EventNewUser,
		Data:  users,
	}
}

func UsersList(users []types.User) *ServerEvent {
	return &ServerEvent{
		Event: EventUsersList,
		Data:  users,
	}
}

func PublicResponse(msg PublicMessage) *ServerEvent {
	return &ServerEvent{
		Event: EventResponse,
		Data:  msg,
	}
}

func TypingNotice(username string, skip *Client) *ServerEvent {
	return &ServerEvent{
		Event:      EventTypingResponse,
		Data:       username + " is typing",
		SkipClient: skip,
	}
}

func NewMessage(msg types.PrivateMessage) *ServerEvent {
	return &ServerEvent{
		Event: EventNewMessage,
		Data:  msg,
	}
}

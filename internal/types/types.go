package types

import (
	"time"
)

type User struct {
	Id       string `json:"id"`
	Username string `json:"username"`
	SocketId string `json:"socketID,omitempty"`
}

type PrivateMessage struct {
	Id         int       `json:"id"`
	SenderId   string    `json:"sender"`
	ReceiverId string    `json:"receiver"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
}

package database

import (
	"database/sql"
	"time"
)

type Account struct {
	Id           int
	ExternalId   string
	Username     string
	PasswordHash string
	RefreshToken sql.NullString
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Message struct {
	Id         int
	SenderId   string
	ReceiverId string
	Content    string
	CreatedAt  time.Time
}

type CreateAccountParams struct {
	ExternalId   string
	Username     string
	PasswordHash string
}

type CreateMessageParams struct {
	SenderId   string
	ReceiverId string
	Content    string
}

type ListAccountsParams struct {
	Search string
	Limit  int
	Offset int
}

package database

import (
	"fmt"
	"time"
)

func (db *PgChatHubRepository) CreateAccount(params CreateAccountParams) (Account, error) {
	res := db.conn.QueryRow(
		"INSERT INTO accounts (external_id, username, password_hash, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $4) RETURNING id, external_id, username, created_at, updated_at",
		params.ExternalId,
		params.Username,
		params.PasswordHash,
		time.Now().UTC(),
	)

	var a Account
	err := res.Scan(
		&a.Id,
		&a.ExternalId,
		&a.Username,
		&a.CreatedAt,
		&a.UpdatedAt,
	)

	return a, err
}

func (db *PgChatHubRepository) GetAccountByUsername(username string) (Account, error) {
	row := db.conn.QueryRow(
		"SELECT id, external_id, username, password_hash, refresh_token FROM accounts "+
			"WHERE username = $1 LIMIT 1",
		username,
	)

	var a Account
	err := row.Scan(
		&a.Id,
		&a.ExternalId,
		&a.Username,
		&a.PasswordHash,
		&a.RefreshToken,
	)

	return a, err
}

func (db *PgChatHubRepository) GetAccountByExternalId(externalId string) (Account, error) {
	row := db.conn.QueryRow(
		"SELECT id, external_id, username, password_hash, refresh_token FROM accounts "+
			"WHERE external_id = $1 LIMIT 1",
		externalId,
	)

	var a Account
	err := row.Scan(
		&a.Id,
		&a.ExternalId,
		&a.Username,
		&a.PasswordHash,
		&a.RefreshToken,
	)

	return a, err
}

func (db *PgChatHubRepository) UpdateRefreshToken(externalId, refreshToken string) error {
	_, err := db.conn.Exec(
		"UPDATE accounts SET refresh_token = $2, updated_at = $3 WHERE external_id = $1",
		externalId,
		refreshToken,
		time.Now().UTC(),
	)

	return err
}

func (db *PgChatHubRepository) ListAccounts(params ListAccountsParams) ([]Account, int, error) {
	var total int
	if err := db.conn.QueryRow(
		"SELECT COUNT(*) FROM accounts WHERE username ILIKE '%' || $1 || '%'",
		params.Search,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count accounts: %w", err)
	}

	rows, err := db.conn.Query(
		"SELECT id, external_id, username FROM accounts "+
			"WHERE username ILIKE '%' || $1 || '%' "+
			"ORDER BY username LIMIT $2 OFFSET $3",
		params.Search,
		params.Limit,
		params.Offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	accounts := make([]Account, 0)
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.Id, &a.ExternalId, &a.Username); err != nil {
			return nil, 0, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows error: %w", err)
	}

	return accounts, total, nil
}

func (db *PgChatHubRepository) CreateMessage(params CreateMessageParams) (Message, error) {
	res := db.conn.QueryRow(
		"INSERT INTO messages (sender_id, receiver_id, content, created_at) "+
			"VALUES ($1, $2, $3, $4) RETURNING id, sender_id, receiver_id, content, created_at",
		params.SenderId,
		params.ReceiverId,
		params.Content,
		time.Now().UTC(),
	)

	var m Message
	err := res.Scan(
		&m.Id,
		&m.SenderId,
		&m.ReceiverId,
		&m.Content,
		&m.CreatedAt,
	)

	return m, err
}

func (db *PgChatHubRepository) GetConversation(firstUserId, secondUserId string) ([]Message, error) {
	rows, err := db.conn.Query(
		"SELECT id, sender_id, receiver_id, content, created_at FROM messages "+
			"WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1) "+
			"ORDER BY created_at ASC",
		firstUserId,
		secondUserId,
	)
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	defer rows.Close()

	messages := make([]Message, 0)
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.Id, &m.SenderId, &m.ReceiverId, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return messages, nil
}

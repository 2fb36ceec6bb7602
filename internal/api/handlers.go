package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/lib/pq"
	"github.com/nvoloshyn/go-chathub/internal/auth"
	"github.com/nvoloshyn/go-chathub/internal/database"
	"github.com/nvoloshyn/go-chathub/internal/hub"
	"github.com/nvoloshyn/go-chathub/internal/types"
	"github.com/teris-io/shortid"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

type UserListResponse struct {
	Users       []types.User `json:"users"`
	TotalUsers  int          `json:"total_users"`
	TotalPages  int          `json:"total_pages"`
	CurrentPage int          `json:"current_page"`
}

func (s *ChatHubApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func (s *ChatHubApp) register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if req.Username == "" || req.Password == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	pwdHash, err := hashPassword(req.Password)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	externalId, err := shortid.Generate()
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	account, err := s.db.CreateAccount(database.CreateAccountParams{
		ExternalId:   externalId,
		Username:     req.Username,
		PasswordHash: pwdHash,
	})
	if err != nil {
		var errResp *ApiError
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			// username already taken
			errResp = NewBadRequestError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	tokens, err := s.issueTokens(account)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, tokens)
}

func (s *ChatHubApp) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	account, err := s.db.GetAccountByUsername(req.Username)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if !verifyPassword(account.PasswordHash, req.Password) {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	tokens, err := s.issueTokens(account)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, tokens)
}

// issueTokens creates a fresh access/refresh token pair and records the
// refresh token on the account row.
func (s *ChatHubApp) issueTokens(account database.Account) (TokenResponse, error) {
	ident := auth.Identity{UserId: account.ExternalId, Username: account.Username}

	accessToken, err := s.verifier.IssueAccess(ident)
	if err != nil {
		return TokenResponse{}, err
	}

	refreshToken, err := s.verifier.IssueRefresh(ident)
	if err != nil {
		return TokenResponse{}, err
	}

	if err := s.db.UpdateRefreshToken(account.ExternalId, refreshToken); err != nil {
		return TokenResponse{}, err
	}

	return TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Username:     account.Username,
	}, nil
}

func (s *ChatHubApp) refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	ident, err := s.verifier.Verify(req.RefreshToken, auth.Refresh)
	if err != nil {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	account, err := s.db.GetAccountByExternalId(ident.UserId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewUnauthorizedError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	// the presented token must be the one recorded at last login
	if !account.RefreshToken.Valid || account.RefreshToken.String != req.RefreshToken {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	accessToken, err := s.verifier.IssueAccess(ident)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, TokenResponse{AccessToken: accessToken})
}

func (s *ChatHubApp) listUsers(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}

	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit < 1 || limit > maxPageSize {
		limit = defaultPageSize
	}

	accounts, total, err := s.db.ListAccounts(database.ListAccountsParams{
		Search: r.URL.Query().Get("search"),
		Limit:  limit,
		Offset: (page - 1) * limit,
	})
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	users := make([]types.User, len(accounts))
	for i, a := range accounts {
		users[i] = types.User{
			Id:       a.ExternalId,
			Username: a.Username,
		}
	}

	s.writeJson(w, http.StatusOK, UserListResponse{
		Users:       users,
		TotalUsers:  total,
		TotalPages:  (total + limit - 1) / limit,
		CurrentPage: page,
	})
}

func (s *ChatHubApp) conversation(w http.ResponseWriter, r *http.Request) {
	ident, ok := IdentityFrom(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	otherUserId := r.PathValue("userId")
	if otherUserId == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	messages, err := s.db.GetConversation(ident.UserId, otherUserId)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	resp := make([]types.PrivateMessage, len(messages))
	for i, m := range messages {
		resp[i] = types.PrivateMessage{
			Id:         m.Id,
			SenderId:   m.SenderId,
			ReceiverId: m.ReceiverId,
			Content:    m.Content,
			CreatedAt:  m.CreatedAt,
		}
	}

	s.writeJson(w, http.StatusOK, resp)
}

// serveWs authenticates the realtime handshake and hands the connection
// to the hub. The token travels in the upgrade request's query rather
// than a header, since it belongs to the connection, not the request.
func (s *ChatHubApp) serveWs(w http.ResponseWriter, r *http.Request) {
	ident, err := s.verifier.Verify(r.URL.Query().Get("token"), auth.Access)
	if err != nil {
		s.log.Println("ws handshake rejected:", err)
		errResp := NewHandshakeRejectedError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			// only allow connections from allowed origins
			origin := r.Header.Get("Origin")
			if origin == "" {
				// if no origin header, allow the request
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	sessionId, err := shortid.Generate()
	if err != nil {
		s.log.Println("error generating session id:", err)
		conn.Close()
		return
	}

	client := hub.NewClient(sessionId, types.User{
		Id:       ident.UserId,
		Username: ident.Username,
	}, conn, s.hub, s.log)

	s.hub.RegisterClient(client)
	go client.Write()
	go client.Read()
}

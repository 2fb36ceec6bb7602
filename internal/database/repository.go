package database

type ChatHubRepository interface {
	CreateAccount(params CreateAccountParams) (Account, error)
	GetAccountByUsername(username string) (Account, error)
	GetAccountByExternalId(externalId string) (Account, error)
	UpdateRefreshToken(externalId, refreshToken string) error
	ListAccounts(params ListAccountsParams) ([]Account, int, error)
	CreateMessage(params CreateMessageParams) (Message, error)
	GetConversation(firstUserId, secondUserId string) ([]Message, error)
}

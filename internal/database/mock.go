package database

import (
	"github.com/stretchr/testify/mock"
)

type MockChatHubRepository struct {
	mock.Mock
}

func (m *MockChatHubRepository) CreateAccount(params CreateAccountParams) (Account, error) {
	args := m.Called(params)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockChatHubRepository) GetAccountByUsername(username string) (Account, error) {
	args := m.Called(username)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockChatHubRepository) GetAccountByExternalId(externalId string) (Account, error) {
	args := m.Called(externalId)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockChatHubRepository) UpdateRefreshToken(externalId, refreshToken string) error {
	args := m.Called(externalId, refreshToken)
	return args.Error(0)
}
func (m *MockChatHubRepository) ListAccounts(params ListAccountsParams) ([]Account, int, error) {
	args := m.Called(params)
	return args.Get(0).([]Account), args.Int(1), args.Error(2)
}
func (m *MockChatHubRepository) CreateMessage(params CreateMessageParams) (Message, error) {
	args := m.Called(params)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockChatHubRepository) GetConversation(firstUserId, secondUserId string) ([]Message, error) {
	args := m.Called(firstUserId, secondUserId)
	return args.Get(0).([]Message), args.Error(1)
}

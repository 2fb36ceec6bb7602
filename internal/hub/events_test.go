package hub

import (
	"testing"
	"time"

	"github.com/nvoloshyn/go-chathub/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestPresenceChanged(t *testing.T) {
	users := []types.User{{Id: "u1", Username: "alice", SocketId: "s1"}}

	ev := PresenceChanged(users)
	assert.Equal(t, EventNewUser, ev.Event, "expected responseNewUser event")
	assert.Equal(t, users, ev.Data, "expected snapshot as data")
	assert.Nil(t, ev.SkipClient, "expected presence change to reach everyone")
}

func TestUsersList(t *testing.T) {
	users := []types.User{{Id: "u1", Username: "alice", SocketId: "s1"}}

	ev := UsersList(users)
	assert.Equal(t, EventUsersList, ev.Event, "expected usersList event")
	assert.Equal(t, users, ev.Data, "expected snapshot as data")
}

func TestTypingNotice(t *testing.T) {
	c := &Client{id: "s1"}

	ev := TypingNotice("alice", c)
	assert.Equal(t, EventTypingResponse, ev.Event, "expected responseTyping event")
	assert.Equal(t, "alice is typing", ev.Data, "expected typing notice string")
	assert.Equal(t, c, ev.SkipClient, "expected sender to be excluded")
}

func TestNewMessage(t *testing.T) {
	msg := types.PrivateMessage{
		Id:         7,
		SenderId:   "u1",
		ReceiverId: "u2",
		Content:    "hi",
		CreatedAt:  time.Now().UTC(),
	}

	ev := NewMessage(msg)
	assert.Equal(t, EventNewMessage, ev.Event, "expected new_message event")
	assert.Equal(t, msg, ev.Data, "expected persisted record as data")
}

func Test_serializeEvent(t *testing.T) {
	ev := PublicResponse(PublicMessage{
		Text:     "hello",
		Name:     "alice",
		Id:       "s1-1700000000000",
		SocketId: "s1",
	})

	bytes, err := serializeEvent(ev)
	assert.NoError(t, err, "expected no error during serialization")
	expected := `{"event":"response","data":{"text":"hello","name":"alice","id":"s1-1700000000000","socketID":"s1"}}`
	assert.Equal(t, expected, string(bytes), "expected serialized event to match the wire format")
}

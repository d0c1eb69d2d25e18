package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenPair_Complete(t *testing.T) {
	var nilPair *TokenPair
	assert.False(t, nilPair.Complete())
	assert.False(t, (&TokenPair{Access: "A1"}).Complete())
	assert.False(t, (&TokenPair{Refresh: "R1"}).Complete())
	assert.True(t, (&TokenPair{Access: "A1", Refresh: "R1"}).Complete())
}

func TestSession_Authenticated(t *testing.T) {
	pair := &TokenPair{Access: "A1", Refresh: "R1"}
	user := &User{ID: 1, Email: "buyer@example.com"}

	assert.False(t, Session{}.Authenticated())
	assert.False(t, Session{Tokens: pair}.Authenticated())
	assert.False(t, Session{User: user}.Authenticated())
	assert.False(t, Session{Tokens: &TokenPair{Access: "A1"}, User: user}.Authenticated())
	assert.True(t, Session{Tokens: pair, User: user}.Authenticated())
}

func TestOrderStatus_Valid(t *testing.T) {
	for _, s := range []OrderStatus{"pending", "confirmed", "processing", "shipped", "delivered", "cancelled"} {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, OrderStatus("refunded").Valid())
	assert.False(t, OrderStatus("").Valid())
}

func TestUser_FullName(t *testing.T) {
	assert.Equal(t, "Ada Lovelace", (&User{FirstName: "Ada", LastName: "Lovelace"}).FullName())
	assert.Equal(t, "Ada", (&User{FirstName: "Ada"}).FullName())
	assert.Equal(t, "Lovelace", (&User{LastName: "Lovelace"}).FullName())
	var u *User
	assert.Equal(t, "", u.FullName())
}

package domain

// Session is the persisted authentication state of the client.
type Session struct {
	Tokens *TokenPair
	User   *User
}

// Authenticated reports whether the session carries both a complete token
// pair and a user snapshot.
func (s Session) Authenticated() bool {
	return s.Tokens.Complete() && s.User != nil
}

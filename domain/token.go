package domain

// TokenPair holds the credentials issued on login.
// Both values are opaque to the client.
type TokenPair struct {
	Access  string `json:"access"  bson:"access"`
	Refresh string `json:"refresh" bson:"refresh"`
}

// Complete reports whether both halves of the pair are present.
// Incomplete pairs are never persisted.
func (p *TokenPair) Complete() bool {
	return p != nil && p.Access != "" && p.Refresh != ""
}

// AuthResponse is returned by the login and registration endpoints.
type AuthResponse struct {
	User    *User      `json:"user"`
	Tokens  *TokenPair `json:"tokens"`
	Message string     `json:"message"`
}

// RefreshRequest is the body of the token refresh call.
type RefreshRequest struct {
	Refresh string `json:"refresh"`
}

// RefreshResponse is the body returned by the token refresh call.
// The refresh token is not rotated, so only the access token comes back.
type RefreshResponse struct {
	Access string `json:"access"`
}

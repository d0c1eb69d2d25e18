package domain

import "time"

// User is the client-side snapshot of the authenticated account.
// The server stays authoritative; the snapshot is only refreshed on login,
// registration or an explicit profile fetch.
type User struct {
	ID        int64     `json:"id"         bson:"id"`
	Email     string    `json:"email"      bson:"email"`
	Username  string    `json:"username"   bson:"username"`
	FirstName string    `json:"first_name" bson:"first_name"`
	LastName  string    `json:"last_name"  bson:"last_name"`
	IsSeller  bool      `json:"is_seller"  bson:"is_seller"`
	Phone     string    `json:"phone,omitempty"   bson:"phone,omitempty"`
	Address   string    `json:"address,omitempty" bson:"address,omitempty"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// FullName mirrors the server's seller_name rendering.
func (u *User) FullName() string {
	if u == nil {
		return ""
	}
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// Registration is the payload of the buyer and seller registration endpoints.
type Registration struct {
	Email           string `json:"email"`
	Username        string `json:"username"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
	Phone           string `json:"phone,omitempty"`
	Address         string `json:"address,omitempty"`
}

// ProfileUpdate carries a partial profile update. Nil fields are left untouched.
type ProfileUpdate struct {
	Username  *string `json:"username,omitempty"`
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Phone     *string `json:"phone,omitempty"`
	Address   *string `json:"address,omitempty"`
}

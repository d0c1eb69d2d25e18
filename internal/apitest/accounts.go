package apitest

import (
	"net/http"
	"net/mail"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pilab-dev/cartbuilder/domain"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a *API) registerBuyer(c echo.Context) error {
	return a.register(c, false, "Registration successful")
}

func (a *API) registerSeller(c echo.Context) error {
	return a.register(c, true, "Seller registration successful")
}

func (a *API) register(c echo.Context, seller bool, message string) error {
	var req domain.Registration
	if err := c.Bind(&req); err != nil {
		return detail(c, http.StatusBadRequest, "Malformed request body")
	}

	errs := validateRegistration(req)
	a.mu.Lock()
	if _, taken := a.byEmail[strings.ToLower(req.Email)]; taken {
		errs["email"] = append(errs["email"], "user with this email already exists.")
	}
	a.mu.Unlock()
	if len(errs) > 0 {
		return fieldErrors(c, errs)
	}

	hash, err := a.hasher.Hash(req.Password)
	if err != nil {
		return fieldErrors(c, map[string][]string{"password": {err.Error()}})
	}

	a.mu.Lock()
	if _, taken := a.byEmail[strings.ToLower(req.Email)]; taken {
		a.mu.Unlock()
		return fieldErrors(c, map[string][]string{"email": {"user with this email already exists."}})
	}
	acc := &account{
		user: domain.User{
			ID:        a.id(),
			Email:     req.Email,
			Username:  req.Username,
			FirstName: req.FirstName,
			LastName:  req.LastName,
			IsSeller:  seller,
			Phone:     req.Phone,
			Address:   req.Address,
			CreatedAt: a.now().UTC(),
		},
		password: hash,
	}
	a.accounts[acc.user.ID] = acc
	a.byEmail[strings.ToLower(req.Email)] = acc.user.ID
	user := acc.user
	a.mu.Unlock()

	tokens, err := a.signer.pair(user.ID, a.now())
	if err != nil {
		return detail(c, http.StatusInternalServerError, "Could not issue tokens")
	}
	return c.JSON(http.StatusCreated, domain.AuthResponse{User: &user, Tokens: tokens, Message: message})
}

func validateRegistration(req domain.Registration) map[string][]string {
	errs := make(map[string][]string)
	if req.Email == "" {
		errs["email"] = []string{"This field is required."}
	} else if _, err := mail.ParseAddress(req.Email); err != nil {
		errs["email"] = []string{"Enter a valid email address."}
	}
	if req.Username == "" {
		errs["username"] = []string{"This field is required."}
	}
	if len(req.Password) < 8 {
		errs["password"] = []string{"This password is too short. It must contain at least 8 characters."}
	}
	if req.Password != req.PasswordConfirm {
		errs["non_field_errors"] = []string{"Passwords don't match"}
	}
	return errs
}

func (a *API) login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return detail(c, http.StatusBadRequest, "Malformed request body")
	}
	if req.Email == "" || req.Password == "" {
		return fieldErrors(c, map[string][]string{"non_field_errors": {"Must include email and password"}})
	}

	a.mu.Lock()
	var acc *account
	if id, ok := a.byEmail[strings.ToLower(req.Email)]; ok {
		acc = a.accounts[id]
	}
	a.mu.Unlock()

	if acc == nil || a.hasher.Verify(acc.password, req.Password) != nil {
		return fieldErrors(c, map[string][]string{"non_field_errors": {"Invalid credentials"}})
	}

	tokens, err := a.signer.pair(acc.user.ID, a.now())
	if err != nil {
		return detail(c, http.StatusInternalServerError, "Could not issue tokens")
	}
	user := acc.user
	return c.JSON(http.StatusOK, domain.AuthResponse{User: &user, Tokens: tokens, Message: "Login successful"})
}

func (a *API) profile(c echo.Context) error {
	a.mu.Lock()
	user := a.accounts[currentUserID(c)].user
	a.mu.Unlock()
	return c.JSON(http.StatusOK, user)
}

func (a *API) updateProfile(c echo.Context) error {
	var req domain.ProfileUpdate
	if err := c.Bind(&req); err != nil {
		return detail(c, http.StatusBadRequest, "Malformed request body")
	}
	if req.Username != nil && *req.Username == "" {
		return fieldErrors(c, map[string][]string{"username": {"This field may not be blank."}})
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	u := &a.accounts[currentUserID(c)].user
	set(&u.Username, req.Username)
	set(&u.FirstName, req.FirstName)
	set(&u.LastName, req.LastName)
	set(&u.Phone, req.Phone)
	set(&u.Address, req.Address)
	return c.JSON(http.StatusOK, *u)
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

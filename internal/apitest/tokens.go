package apitest

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pilab-dev/cartbuilder/domain"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"

	userContextKey = "storefront.user_id"
)

var errTokenInvalid = errors.New("token is invalid or expired")

// claims follow the layout of the backend's JWTs.
type claims struct {
	jwt.RegisteredClaims
	TokenType  string `json:"token_type"`
	UserID     int64  `json:"user_id"`
	Generation int    `json:"gen"`
}

type tokenSigner struct {
	key        []byte
	accessTTL  time.Duration
	refreshTTL time.Duration

	mu         sync.Mutex
	accessGen  int
	refreshGen int
}

func newTokenSigner(key []byte, accessTTL, refreshTTL time.Duration) *tokenSigner {
	return &tokenSigner{key: key, accessTTL: accessTTL, refreshTTL: refreshTTL}
}

func (s *tokenSigner) expireAccess() {
	s.mu.Lock()
	s.accessGen++
	s.mu.Unlock()
}

func (s *tokenSigner) revokeRefresh() {
	s.mu.Lock()
	s.refreshGen++
	s.mu.Unlock()
}

func (s *tokenSigner) generation(tokenType string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tokenType == tokenTypeRefresh {
		return s.refreshGen
	}
	return s.accessGen
}

func (s *tokenSigner) sign(userID int64, tokenType string, now time.Time) (string, error) {
	ttl := s.accessTTL
	if tokenType == tokenTypeRefresh {
		ttl = s.refreshTTL
	}
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		TokenType:  tokenType,
		UserID:     userID,
		Generation: s.generation(tokenType),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.key)
}

func (s *tokenSigner) pair(userID int64, now time.Time) (*domain.TokenPair, error) {
	access, err := s.sign(userID, tokenTypeAccess, now)
	if err != nil {
		return nil, err
	}
	refresh, err := s.sign(userID, tokenTypeRefresh, now)
	if err != nil {
		return nil, err
	}
	return &domain.TokenPair{Access: access, Refresh: refresh}, nil
}

func (s *tokenSigner) verify(raw, tokenType string) (*claims, error) {
	var c claims
	_, err := jwt.ParseWithClaims(raw, &c, func(*jwt.Token) (interface{}, error) {
		return s.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, errTokenInvalid
	}
	if c.TokenType != tokenType || c.Generation < s.generation(tokenType) {
		return nil, errTokenInvalid
	}
	return &c, nil
}

// authenticate resolves a Bearer token on every route. Like the backend, a
// present but invalid token is rejected even on public routes.
func (a *API) authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get("Authorization")
		if header == "" {
			return next(c)
		}

		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			return detail(c, http.StatusUnauthorized, "Authorization header must contain two space-delimited values")
		}
		cl, err := a.signer.verify(raw, tokenTypeAccess)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, map[string]string{
				"detail": "Given token not valid for any token type",
				"code":   "token_not_valid",
			})
		}

		a.mu.Lock()
		_, exists := a.accounts[cl.UserID]
		a.mu.Unlock()
		if !exists {
			return c.JSON(http.StatusUnauthorized, map[string]string{
				"detail": "User not found",
				"code":   "user_not_found",
			})
		}

		c.Set(userContextKey, cl.UserID)
		return next(c)
	}
}

func requireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, ok := c.Get(userContextKey).(int64); !ok {
			return detail(c, http.StatusUnauthorized, "Authentication credentials were not provided.")
		}
		return next(c)
	}
}

func currentUserID(c echo.Context) int64 {
	id, _ := c.Get(userContextKey).(int64)
	return id
}

func (a *API) refresh(c echo.Context) error {
	var req domain.RefreshRequest
	if err := c.Bind(&req); err != nil || req.Refresh == "" {
		return fieldErrors(c, map[string][]string{"refresh": {"This field is required."}})
	}

	cl, err := a.signer.verify(req.Refresh, tokenTypeRefresh)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{
			"detail": "Token is invalid or expired",
			"code":   "token_not_valid",
		})
	}

	access, err := a.signer.sign(cl.UserID, tokenTypeAccess, a.now())
	if err != nil {
		return detail(c, http.StatusInternalServerError, "Could not issue token")
	}

	a.mu.Lock()
	a.refreshes++
	a.mu.Unlock()

	return c.JSON(http.StatusOK, domain.RefreshResponse{Access: access})
}

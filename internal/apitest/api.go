// Package apitest is an in-memory storefront API served with echo. It
// mirrors the routes, payloads and error bodies of the real backend closely
// enough to drive the client end to end, and exposes controls for expiring
// and revoking tokens.
package apitest

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pilab-dev/cartbuilder/domain"
	"github.com/pilab-dev/cartbuilder/internal/auth"
	"github.com/pilab-dev/cartbuilder/log"
	"golang.org/x/crypto/bcrypt"
)

// BasePath is the prefix every route is mounted under.
const BasePath = "/api"

const (
	defaultAccessTTL  = 5 * time.Minute
	defaultRefreshTTL = 24 * time.Hour
	defaultPageSize   = 50
	maxPageSize       = 100
)

type account struct {
	user     domain.User
	password string
}

type product struct {
	domain.Product
	sellerID int64
	seq      int64
}

type cartLine struct {
	id        int64
	productID int64
	quantity  int
	addedAt   time.Time
}

type orderLine struct {
	domain.OrderItem
	sellerID int64
}

type order struct {
	domain.Order
	lines []orderLine
	seq   int64
}

// API is the fake storefront. It is safe for concurrent use.
type API struct {
	echo   *echo.Echo
	hasher auth.PasswordHasher
	logger log.Logger
	signer *tokenSigner

	mu        sync.Mutex
	nextID    int64
	accounts  map[int64]*account
	byEmail   map[string]int64
	products  map[int64]*product
	carts     map[int64][]*cartLine
	orders    map[int64]*order
	refreshes int
	requests  int
	now       func() time.Time
}

// Option configures an API.
type Option func(*API)

// WithAccessTTL sets the lifetime of issued access tokens.
func WithAccessTTL(d time.Duration) Option {
	return func(a *API) { a.signer.accessTTL = d }
}

// WithSigningKey sets the HMAC key tokens are signed with.
func WithSigningKey(key []byte) Option {
	return func(a *API) { a.signer.key = key }
}

// WithLogger logs every request through l.
func WithLogger(l log.Logger) Option {
	return func(a *API) { a.logger = l }
}

// WithPasswordHasher replaces the bcrypt hasher.
func WithPasswordHasher(h auth.PasswordHasher) Option {
	return func(a *API) { a.hasher = h }
}

// New creates an empty storefront.
func New(opts ...Option) *API {
	a := &API{
		echo:     echo.New(),
		hasher:   auth.NewBcryptPasswordHasher(bcrypt.MinCost),
		logger:   log.NewNop(),
		accounts: make(map[int64]*account),
		byEmail:  make(map[string]int64),
		products: make(map[int64]*product),
		carts:    make(map[int64][]*cartLine),
		orders:   make(map[int64]*order),
		now:      time.Now,
	}
	a.signer = newTokenSigner([]byte("storefront-devapi-signing-key"), defaultAccessTTL, defaultRefreshTTL)
	for _, opt := range opts {
		opt(a)
	}

	a.echo.HideBanner = true
	a.echo.HidePort = true
	a.echo.Use(middleware.Recover())
	a.echo.Use(a.requestLogger)
	a.echo.Use(a.authenticate)
	a.registerRoutes()
	return a
}

// ServeHTTP implements http.Handler.
func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.echo.ServeHTTP(w, r)
}

// Start listens on addr until Shutdown is called.
func (a *API) Start(addr string) error {
	return a.echo.Start(addr)
}

// Echo exposes the router, for graceful shutdown.
func (a *API) Echo() *echo.Echo {
	return a.echo
}

func (a *API) registerRoutes() {
	g := a.echo.Group(BasePath)

	g.POST("/auth/register/", a.registerBuyer)
	g.POST("/auth/seller/register/", a.registerSeller)
	g.POST("/auth/login/", a.login)
	g.POST("/auth/token/refresh/", a.refresh)
	g.GET("/auth/profile/", a.profile, requireUser)
	g.PUT("/auth/profile/update/", a.updateProfile, requireUser)

	g.GET("/products/", a.listProducts)
	g.GET("/products/seller/", a.sellerProducts, requireUser)
	g.POST("/products/create/", a.createProduct, requireUser)
	g.GET("/products/:id/", a.productDetail)
	g.PUT("/products/:id/update/", a.updateProduct, requireUser)
	g.DELETE("/products/:id/delete/", a.deleteProduct, requireUser)

	g.GET("/orders/cart/", a.cart, requireUser)
	g.POST("/orders/cart/add/", a.addToCart, requireUser)
	g.PUT("/orders/cart/item/:id/update/", a.updateCartItem, requireUser)
	g.DELETE("/orders/cart/item/:id/remove/", a.removeCartItem, requireUser)
	g.DELETE("/orders/cart/clear/", a.clearCart, requireUser)

	g.POST("/orders/create/", a.createOrder, requireUser)
	g.GET("/orders/buyer/", a.buyerOrders, requireUser)
	g.GET("/orders/seller/", a.sellerOrders, requireUser)
	g.GET("/orders/:id/", a.orderDetail, requireUser)
	g.PUT("/orders/:id/status/", a.updateOrderStatus, requireUser)
}

// ExpireAccessTokens invalidates every access token issued so far. Refresh
// tokens stay valid.
func (a *API) ExpireAccessTokens() {
	a.signer.expireAccess()
}

// RevokeRefreshTokens invalidates every refresh token issued so far, so the
// next refresh attempt fails.
func (a *API) RevokeRefreshTokens() {
	a.signer.revokeRefresh()
}

// Refreshes returns how many refresh calls succeeded.
func (a *API) Refreshes() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.refreshes
}

// Requests returns how many requests were served, refresh calls excluded.
func (a *API) Requests() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.requests
}

func (a *API) id() int64 {
	a.nextID++
	return a.nextID
}

func (a *API) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		if req.URL.Path != BasePath+"/auth/token/refresh/" {
			a.mu.Lock()
			a.requests++
			a.mu.Unlock()
		}

		start := a.now()
		if err := next(c); err != nil {
			c.Error(err)
		}

		a.logger.Debug(req.Context(), "Served request", map[string]interface{}{
			"method":     req.Method,
			"path":       req.URL.Path,
			"status":     c.Response().Status,
			"request_id": req.Header.Get("X-Request-ID"),
			"elapsed_ms": a.now().Sub(start).Milliseconds(),
		})
		return nil
	}
}

func fail(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]string{"error": msg})
}

func detail(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]string{"detail": msg})
}

func fieldErrors(c echo.Context, errs map[string][]string) error {
	return c.JSON(http.StatusBadRequest, errs)
}

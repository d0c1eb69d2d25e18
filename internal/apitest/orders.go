package apitest

import (
	"net/http"
	"sort"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pilab-dev/cartbuilder/domain"
)

type addToCartRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

type createOrderRequest struct {
	ShippingAddress string `json:"shipping_address"`
}

type statusRequest struct {
	Status domain.OrderStatus `json:"status"`
}

// cartView renders the cart of uid. Callers hold a.mu.
func (a *API) cartView(uid int64) domain.Cart {
	cart := domain.Cart{ID: uid, Items: []domain.CartItem{}}
	var total int64
	for _, l := range a.carts[uid] {
		p := a.products[l.productID]
		price, _ := parseCents(p.Price)
		line := price * int64(l.quantity)
		total += line

		view := a.view(p)
		view.Description = ""
		view.Images = nil
		cart.Items = append(cart.Items, domain.CartItem{
			ID:         l.id,
			Product:    view,
			Quantity:   l.quantity,
			TotalPrice: formatCents(line),
			AddedAt:    l.addedAt,
		})
		cart.ItemCount += l.quantity
		if l.addedAt.After(cart.UpdatedAt) {
			cart.UpdatedAt = l.addedAt
		}
	}
	cart.TotalAmount = formatCents(total)
	return cart
}

func (a *API) cart(c echo.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return c.JSON(http.StatusOK, a.cartView(currentUserID(c)))
}

func (a *API) addToCart(c echo.Context) error {
	var req addToCartRequest
	if err := c.Bind(&req); err != nil {
		return detail(c, http.StatusBadRequest, "Malformed request body")
	}
	errs := make(map[string][]string)
	if req.ProductID == 0 {
		errs["product_id"] = []string{"This field is required."}
	}
	if req.Quantity < 1 {
		errs["quantity"] = []string{"Ensure this value is greater than or equal to 1."}
	}
	if len(errs) > 0 {
		return fieldErrors(c, errs)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	uid := currentUserID(c)

	p, ok := a.products[req.ProductID]
	if !ok || !p.IsActive {
		return fail(c, http.StatusNotFound, "Product not found")
	}

	for _, l := range a.carts[uid] {
		if l.productID == p.ID {
			if p.Stock < l.quantity+req.Quantity {
				return fail(c, http.StatusBadRequest, "Insufficient stock")
			}
			l.quantity += req.Quantity
			return c.JSON(http.StatusCreated, map[string]string{"message": "Item added to cart successfully"})
		}
	}
	if p.Stock < req.Quantity {
		return fail(c, http.StatusBadRequest, "Insufficient stock")
	}
	a.carts[uid] = append(a.carts[uid], &cartLine{
		id:        a.id(),
		productID: p.ID,
		quantity:  req.Quantity,
		addedAt:   a.now().UTC(),
	})
	return c.JSON(http.StatusCreated, map[string]string{"message": "Item added to cart successfully"})
}

// cartLineIndex finds the :id line in the current user's cart. Callers hold a.mu.
func (a *API) cartLineIndex(c echo.Context) int {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return -1
	}
	for i, l := range a.carts[currentUserID(c)] {
		if l.id == id {
			return i
		}
	}
	return -1
}

func (a *API) updateCartItem(c echo.Context) error {
	var req quantityRequest
	if err := c.Bind(&req); err != nil {
		return detail(c, http.StatusBadRequest, "Malformed request body")
	}
	if req.Quantity < 1 {
		return fieldErrors(c, map[string][]string{"quantity": {"Ensure this value is greater than or equal to 1."}})
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	i := a.cartLineIndex(c)
	if i < 0 {
		return fail(c, http.StatusNotFound, "Cart item not found")
	}
	line := a.carts[currentUserID(c)][i]
	if a.products[line.productID].Stock < req.Quantity {
		return fail(c, http.StatusBadRequest, "Insufficient stock")
	}
	line.quantity = req.Quantity
	return c.JSON(http.StatusOK, map[string]string{"message": "Cart item updated successfully"})
}

func (a *API) removeCartItem(c echo.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	i := a.cartLineIndex(c)
	if i < 0 {
		return fail(c, http.StatusNotFound, "Cart item not found")
	}
	uid := currentUserID(c)
	a.carts[uid] = append(a.carts[uid][:i], a.carts[uid][i+1:]...)
	return c.NoContent(http.StatusNoContent)
}

func (a *API) clearCart(c echo.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	uid := currentUserID(c)
	if len(a.carts[uid]) == 0 {
		return c.JSON(http.StatusOK, map[string]string{"message": "Cart is already empty"})
	}
	delete(a.carts, uid)
	return c.NoContent(http.StatusNoContent)
}

func (a *API) createOrder(c echo.Context) error {
	var req createOrderRequest
	if err := c.Bind(&req); err != nil {
		return detail(c, http.StatusBadRequest, "Malformed request body")
	}
	if req.ShippingAddress == "" {
		return fieldErrors(c, map[string][]string{"shipping_address": {"This field is required."}})
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	uid := currentUserID(c)
	lines := a.carts[uid]
	if len(lines) == 0 {
		return fail(c, http.StatusBadRequest, "Cart is empty")
	}
	for _, l := range lines {
		if p := a.products[l.productID]; p.Stock < l.quantity {
			return fail(c, http.StatusBadRequest, "Insufficient stock for "+p.Name)
		}
	}

	now := a.now().UTC()
	o := &order{}
	o.ID = a.id()
	o.seq = o.ID
	o.Buyer = uid
	o.BuyerName = a.accounts[uid].user.FullName()
	o.Status = domain.OrderStatusPending
	o.ShippingAddress = req.ShippingAddress
	o.CreatedAt = now
	o.UpdatedAt = now

	var total int64
	for _, l := range lines {
		p := a.products[l.productID]
		price, _ := parseCents(p.Price)
		total += price * int64(l.quantity)
		p.Stock -= l.quantity
		o.lines = append(o.lines, orderLine{
			OrderItem: domain.OrderItem{
				ID:           a.id(),
				Product:      p.ID,
				ProductName:  p.Name,
				ProductImage: p.Image,
				Quantity:     l.quantity,
				PriceAtTime:  formatCents(price),
				TotalPrice:   formatCents(price * int64(l.quantity)),
				SellerName:   a.accounts[p.sellerID].user.FullName(),
			},
			sellerID: p.sellerID,
		})
	}
	o.TotalAmount = formatCents(total)
	a.orders[o.ID] = o
	delete(a.carts, uid)

	return c.JSON(http.StatusCreated, orderView(o, 0))
}

// orderView renders o; a non-zero sellerID keeps only that seller's lines.
func orderView(o *order, sellerID int64) domain.Order {
	out := o.Order
	out.Items = make([]domain.OrderItem, 0, len(o.lines))
	for _, l := range o.lines {
		if sellerID == 0 || l.sellerID == sellerID {
			out.Items = append(out.Items, l.OrderItem)
		}
	}
	return out
}

func (o *order) soldBy(sellerID int64) bool {
	for _, l := range o.lines {
		if l.sellerID == sellerID {
			return true
		}
	}
	return false
}

func (a *API) sortedOrders(keep func(*order) bool) []*order {
	out := make([]*order, 0)
	for _, o := range a.orders {
		if keep(o) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq > out[j].seq })
	return out
}

func (a *API) buyerOrders(c echo.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	uid := currentUserID(c)

	views := make([]domain.Order, 0)
	for _, o := range a.sortedOrders(func(o *order) bool { return o.Buyer == uid }) {
		views = append(views, orderView(o, 0))
	}
	return c.JSON(http.StatusOK, views)
}

func (a *API) sellerOrders(c echo.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	uid := currentUserID(c)
	if !a.accounts[uid].user.IsSeller {
		return fail(c, http.StatusForbidden, "Only sellers can access this endpoint")
	}

	views := make([]domain.Order, 0)
	for _, o := range a.sortedOrders(func(o *order) bool { return o.soldBy(uid) }) {
		views = append(views, orderView(o, uid))
	}
	return c.JSON(http.StatusOK, views)
}

func (a *API) lookupOrder(c echo.Context) *order {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return nil
	}
	return a.orders[id]
}

func (a *API) orderDetail(c echo.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	uid := currentUserID(c)

	o := a.lookupOrder(c)
	switch {
	case o == nil:
		return fail(c, http.StatusNotFound, "Order not found")
	case o.Buyer == uid:
		return c.JSON(http.StatusOK, orderView(o, 0))
	case a.accounts[uid].user.IsSeller && o.soldBy(uid):
		return c.JSON(http.StatusOK, orderView(o, uid))
	}
	return fail(c, http.StatusForbidden, "Permission denied")
}

func (a *API) updateOrderStatus(c echo.Context) error {
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return detail(c, http.StatusBadRequest, "Malformed request body")
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	uid := currentUserID(c)
	if !a.accounts[uid].user.IsSeller {
		return fail(c, http.StatusForbidden, "Only sellers can update order status")
	}
	o := a.lookupOrder(c)
	if o == nil {
		return fail(c, http.StatusNotFound, "Order not found")
	}
	if !o.soldBy(uid) {
		return fail(c, http.StatusForbidden, "Permission denied")
	}
	if !req.Status.Valid() {
		return fail(c, http.StatusBadRequest, "Invalid status")
	}
	o.Status = req.Status
	o.UpdatedAt = a.now().UTC()
	return c.JSON(http.StatusOK, orderView(o, 0))
}

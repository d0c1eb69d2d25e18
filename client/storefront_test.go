package client_test

import (
	"context"
	"testing"

	"github.com/pilab-dev/cartbuilder/client"
	"github.com/pilab-dev/cartbuilder/domain"
	apierrors "github.com/pilab-dev/cartbuilder/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func loginSeller(t *testing.T, h *harness, email, first string) *client.Client {
	t.Helper()
	c, _ := h.newClient(t)
	reg := registration(email)
	reg.FirstName = first
	reg.LastName = "Goods"
	user, err := c.RegisterSeller(context.Background(), reg)
	require.NoError(t, err)
	require.True(t, user.IsSeller)
	return c
}

func createProduct(t *testing.T, c *client.Client, name, price string, stock int) *domain.Product {
	t.Helper()
	p, err := c.CreateProduct(context.Background(), domain.ProductInput{
		Name:        ptr(name),
		Description: ptr(name + " description"),
		Price:       ptr(price),
		Stock:       ptr(stock),
	})
	require.NoError(t, err)
	return p
}

func TestClient_ProductCatalog(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	acme := loginSeller(t, h, "acme@example.com", "Acme")
	zenith := loginSeller(t, h, "zenith@example.com", "Zenith")

	kettle := createProduct(t, acme, "Kettle", "25.00", 4)
	createProduct(t, acme, "Teapot", "12.50", 0)
	createProduct(t, zenith, "Mug", "7.5", 10)

	assert.Equal(t, "Acme Goods", kettle.StoreName)
	assert.Equal(t, "25.00", kettle.Price)

	anonymous, _ := h.newClient(t)

	testCases := []struct {
		name  string
		query client.ProductQuery
		want  []string
	}{
		{name: "newest first", query: client.ProductQuery{}, want: []string{"Mug", "Teapot", "Kettle"}},
		{name: "price ascending", query: client.ProductQuery{Sort: client.SortPriceAsc}, want: []string{"Mug", "Teapot", "Kettle"}},
		{name: "name descending", query: client.ProductQuery{Sort: client.SortNameDesc}, want: []string{"Teapot", "Mug", "Kettle"}},
		{name: "search", query: client.ProductQuery{Search: "tea"}, want: []string{"Teapot"}},
		{name: "store", query: client.ProductQuery{Store: "zenith"}, want: []string{"Mug"}},
		{name: "in stock", query: client.ProductQuery{InStock: true, Sort: client.SortNameAsc}, want: []string{"Kettle", "Mug"}},
		{name: "price range", query: client.ProductQuery{MinPrice: "10", MaxPrice: "20"}, want: []string{"Teapot"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			page, err := anonymous.ListProducts(ctx, tc.query)
			require.NoError(t, err)

			names := make([]string, 0, len(page.Results))
			for _, p := range page.Results {
				names = append(names, p.Name)
			}
			assert.Equal(t, tc.want, names)
			assert.Equal(t, len(tc.want), page.Count)
		})
	}

	t.Run("pagination", func(t *testing.T) {
		first, err := anonymous.ListProducts(ctx, client.ProductQuery{PageSize: 2})
		require.NoError(t, err)
		assert.Equal(t, 3, first.Count)
		assert.Len(t, first.Results, 2)
		assert.True(t, first.HasNext())

		second, err := anonymous.ListProducts(ctx, client.ProductQuery{PageSize: 2, Page: 2})
		require.NoError(t, err)
		assert.Len(t, second.Results, 1)
		assert.False(t, second.HasNext())
		assert.NotEmpty(t, second.Previous)
	})

	t.Run("detail", func(t *testing.T) {
		p, err := anonymous.GetProduct(ctx, kettle.ID)
		require.NoError(t, err)
		assert.Equal(t, "Kettle description", p.Description)

		_, err = anonymous.GetProduct(ctx, 9999)
		assert.ErrorIs(t, err, apierrors.ErrNotFound)
	})
}

func TestClient_SellerManagesOwnProducts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	seller := loginSeller(t, h, "acme@example.com", "Acme")
	rival := loginSeller(t, h, "rival@example.com", "Rival")
	buyer, _ := loginBuyer(t, h)

	p := createProduct(t, seller, "Kettle", "25.00", 4)

	updated, err := seller.UpdateProduct(ctx, p.ID, domain.ProductInput{Price: ptr("19.99"), IsActive: ptr(false)})
	require.NoError(t, err)
	assert.Equal(t, "19.99", updated.Price)
	assert.False(t, updated.IsActive)

	own, err := seller.SellerProducts(ctx)
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, "Kettle", own[0].Name)

	_, err = buyer.GetProduct(ctx, p.ID)
	assert.ErrorIs(t, err, apierrors.ErrNotFound, "inactive products are hidden")

	_, err = rival.UpdateProduct(ctx, p.ID, domain.ProductInput{Stock: ptr(0)})
	assert.ErrorIs(t, err, apierrors.ErrNotFound)

	_, err = buyer.CreateProduct(ctx, domain.ProductInput{Name: ptr("Nope"), Price: ptr("1.00")})
	var apiErr *apierrors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.ErrorIs(t, err, apierrors.ErrForbidden)
	assert.Equal(t, "Only sellers can create products", apiErr.Message)

	_, err = seller.CreateProduct(ctx, domain.ProductInput{Name: ptr("Free"), Price: ptr("0")})
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Price must be greater than 0", apiErr.FieldError("price"))
	assert.Equal(t, "price: Price must be greater than 0", apiErr.Message)

	require.NoError(t, seller.DeleteProduct(ctx, p.ID))
	own, err = seller.SellerProducts(ctx)
	require.NoError(t, err)
	assert.Empty(t, own)
}

func TestClient_CartAndCheckout(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	seller := loginSeller(t, h, "acme@example.com", "Acme")
	buyer, _ := loginBuyer(t, h)

	kettle := createProduct(t, seller, "Kettle", "25.00", 4)
	mug := createProduct(t, seller, "Mug", "7.50", 10)

	require.NoError(t, buyer.AddToCart(ctx, kettle.ID, 1))
	require.NoError(t, buyer.AddToCart(ctx, kettle.ID, 1))
	require.NoError(t, buyer.AddToCart(ctx, mug.ID, 3))
	assert.ErrorIs(t, buyer.AddToCart(ctx, mug.ID, 0), client.ErrInvalidQuantity)

	err := buyer.AddToCart(ctx, kettle.ID, 10)
	var apiErr *apierrors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Insufficient stock", apiErr.Message)

	cart, err := buyer.Cart(ctx)
	require.NoError(t, err)
	require.Len(t, cart.Items, 2)
	assert.Equal(t, 5, cart.ItemCount)
	assert.Equal(t, "72.50", cart.TotalAmount)

	mugLine := cart.Items[1]
	require.Equal(t, mug.ID, mugLine.Product.ID)
	require.NoError(t, buyer.UpdateCartItem(ctx, mugLine.ID, 2))
	assert.ErrorIs(t, buyer.UpdateCartItem(ctx, mugLine.ID, -1), client.ErrInvalidQuantity)
	assert.ErrorIs(t, buyer.RemoveCartItem(ctx, 9999), apierrors.ErrNotFound)

	_, err = buyer.CreateOrder(ctx, "  ")
	assert.ErrorIs(t, err, client.ErrMissingShippingAddress)

	order, err := buyer.CreateOrder(ctx, "1 Market Street")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Equal(t, "65.00", order.TotalAmount)
	assert.Len(t, order.Items, 2)

	cart, err = buyer.Cart(ctx)
	require.NoError(t, err)
	assert.Empty(t, cart.Items, "checkout empties the cart")

	p, err := buyer.GetProduct(ctx, kettle.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Stock)

	_, err = buyer.CreateOrder(ctx, "1 Market Street")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Cart is empty", apiErr.Message)

	require.NoError(t, buyer.AddToCart(ctx, mug.ID, 1))
	require.NoError(t, buyer.ClearCart(ctx))
	require.NoError(t, buyer.ClearCart(ctx))
}

func TestClient_OrderFulfilment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	acme := loginSeller(t, h, "acme@example.com", "Acme")
	zenith := loginSeller(t, h, "zenith@example.com", "Zenith")
	outsider := loginSeller(t, h, "outsider@example.com", "Outsider")
	buyer, _ := loginBuyer(t, h)

	kettle := createProduct(t, acme, "Kettle", "25.00", 4)
	mug := createProduct(t, zenith, "Mug", "7.50", 10)
	require.NoError(t, buyer.AddToCart(ctx, kettle.ID, 1))
	require.NoError(t, buyer.AddToCart(ctx, mug.ID, 2))

	order, err := buyer.CreateOrder(ctx, "1 Market Street")
	require.NoError(t, err)

	mine, err := buyer.BuyerOrders(ctx)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, order.ID, mine[0].ID)

	sold, err := acme.SellerOrders(ctx)
	require.NoError(t, err)
	require.Len(t, sold, 1)
	require.Len(t, sold[0].Items, 1, "sellers only see their own lines")
	assert.Equal(t, "Kettle", sold[0].Items[0].ProductName)

	_, err = buyer.SellerOrders(ctx)
	assert.ErrorIs(t, err, apierrors.ErrForbidden)

	_, err = acme.UpdateOrderStatus(ctx, order.ID, "teleported")
	assert.ErrorIs(t, err, client.ErrInvalidStatus)

	shipped, err := acme.UpdateOrderStatus(ctx, order.ID, domain.OrderStatusShipped)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusShipped, shipped.Status)

	_, err = outsider.UpdateOrderStatus(ctx, order.ID, domain.OrderStatusCancelled)
	assert.ErrorIs(t, err, apierrors.ErrForbidden)

	got, err := buyer.Order(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusShipped, got.Status)
	assert.Len(t, got.Items, 2)

	got, err = zenith.Order(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Mug", got.Items[0].ProductName)

	_, err = outsider.Order(ctx, order.ID)
	assert.ErrorIs(t, err, apierrors.ErrForbidden)

	_, err = buyer.Order(ctx, 9999)
	assert.ErrorIs(t, err, apierrors.ErrNotFound)
}

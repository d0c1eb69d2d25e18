package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/pilab-dev/cartbuilder/domain"
)

type createOrderRequest struct {
	ShippingAddress string `json:"shipping_address"`
}

type statusRequest struct {
	Status domain.OrderStatus `json:"status"`
}

// CreateOrder checks out the cart. The cart is emptied on success.
func (c *Client) CreateOrder(ctx context.Context, shippingAddress string) (*domain.Order, error) {
	if strings.TrimSpace(shippingAddress) == "" {
		return nil, ErrMissingShippingAddress
	}
	var o domain.Order
	if err := c.do(ctx, http.MethodPost, "/orders/create/", nil, createOrderRequest{ShippingAddress: shippingAddress}, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// BuyerOrders returns the logged-in user's orders, newest first.
func (c *Client) BuyerOrders(ctx context.Context) ([]domain.Order, error) {
	var orders []domain.Order
	if err := c.get(ctx, "/orders/buyer/", nil, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// SellerOrders returns the orders containing the seller's products, with
// only the seller's own lines.
func (c *Client) SellerOrders(ctx context.Context) ([]domain.Order, error) {
	var orders []domain.Order
	if err := c.get(ctx, "/orders/seller/", nil, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (c *Client) Order(ctx context.Context, id int64) (*domain.Order, error) {
	var o domain.Order
	if err := c.get(ctx, fmt.Sprintf("/orders/%d/", id), nil, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// UpdateOrderStatus moves an order to status. Only sellers with a line in
// the order may do so.
func (c *Client) UpdateOrderStatus(ctx context.Context, id int64, status domain.OrderStatus) (*domain.Order, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	var o domain.Order
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/orders/%d/status/", id), nil, statusRequest{Status: status}, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

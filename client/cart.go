package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/pilab-dev/cartbuilder/domain"
)

type addToCartRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

// Cart returns the cart of the logged-in user.
func (c *Client) Cart(ctx context.Context) (*domain.Cart, error) {
	var cart domain.Cart
	if err := c.get(ctx, "/orders/cart/", nil, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

// AddToCart adds quantity units of a product, merging with an existing line.
func (c *Client) AddToCart(ctx context.Context, productID int64, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	return c.do(ctx, http.MethodPost, "/orders/cart/add/", nil, addToCartRequest{ProductID: productID, Quantity: quantity}, nil)
}

// UpdateCartItem sets the quantity of a cart line.
func (c *Client) UpdateCartItem(ctx context.Context, itemID int64, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/orders/cart/item/%d/update/", itemID), nil, quantityRequest{Quantity: quantity}, nil)
}

func (c *Client) RemoveCartItem(ctx context.Context, itemID int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/orders/cart/item/%d/remove/", itemID), nil, nil, nil)
}

// ClearCart empties the cart. Clearing an empty cart succeeds.
func (c *Client) ClearCart(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/orders/cart/clear/", nil, nil, nil)
}

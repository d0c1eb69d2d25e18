package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pilab-dev/cartbuilder/domain"
)

// Sort orders accepted by ListProducts.
const (
	SortNewest    = "-created_at"
	SortOldest    = "created_at"
	SortPriceAsc  = "price"
	SortPriceDesc = "-price"
	SortNameAsc   = "name"
	SortNameDesc  = "-name"
)

// ProductQuery filters the public catalog. Zero values are not sent.
type ProductQuery struct {
	Search   string
	MinPrice string
	MaxPrice string
	Store    string
	InStock  bool
	Sort     string
	Page     int
	PageSize int
}

func (q ProductQuery) values() url.Values {
	v := url.Values{}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.MinPrice != "" {
		v.Set("min_price", q.MinPrice)
	}
	if q.MaxPrice != "" {
		v.Set("max_price", q.MaxPrice)
	}
	if q.Store != "" {
		v.Set("store", q.Store)
	}
	if q.InStock {
		v.Set("in_stock", "true")
	}
	if q.Sort != "" {
		v.Set("sort", q.Sort)
	}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		v.Set("page_size", strconv.Itoa(q.PageSize))
	}
	return v
}

// ListProducts returns one page of active products.
func (c *Client) ListProducts(ctx context.Context, q ProductQuery) (*domain.Page[domain.Product], error) {
	var page domain.Page[domain.Product]
	if err := c.get(ctx, "/products/", q.values(), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetProduct returns a single active product.
func (c *Client) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	var p domain.Product
	if err := c.get(ctx, fmt.Sprintf("/products/%d/", id), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// SellerProducts returns every product of the logged-in seller, inactive
// ones included.
func (c *Client) SellerProducts(ctx context.Context) ([]domain.Product, error) {
	var ps []domain.Product
	if err := c.get(ctx, "/products/seller/", nil, &ps); err != nil {
		return nil, err
	}
	return ps, nil
}

func (c *Client) CreateProduct(ctx context.Context, in domain.ProductInput) (*domain.Product, error) {
	var p domain.Product
	if err := c.do(ctx, http.MethodPost, "/products/create/", nil, in, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProduct applies a partial update to one of the seller's products.
func (c *Client) UpdateProduct(ctx context.Context, id int64, in domain.ProductInput) (*domain.Product, error) {
	var p domain.Product
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/products/%d/update/", id), nil, in, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) DeleteProduct(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/products/%d/delete/", id), nil, nil, nil)
}

package domain

import "time"

// ProductImage is one gallery image of a product.
type ProductImage struct {
	ID        int64     `json:"id"`
	Image     string    `json:"image"`
	AltText   string    `json:"alt_text"`
	Order     int       `json:"order"`
	CreatedAt time.Time `json:"created_at"`
}

// Product is a catalog entry. Prices are decimal strings as rendered by the API.
type Product struct {
	ID           int64          `json:"id"`
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	Price        string         `json:"price"`
	Stock        int            `json:"stock"`
	Image        string         `json:"image,omitempty"`
	Images       []ProductImage `json:"images"`
	PrimaryImage string         `json:"primary_image,omitempty"`
	StoreName    string         `json:"store_name"`
	SellerName   string         `json:"seller_name"`
	IsActive     bool           `json:"is_active"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// InStock reports whether at least one unit is available.
func (p *Product) InStock() bool {
	return p != nil && p.Stock > 0
}

// ProductInput is used to create or partially update a product.
type ProductInput struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Price       *string `json:"price,omitempty"`
	Stock       *int    `json:"stock,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

// Page is one page of a paginated listing.
type Page[T any] struct {
	Count    int    `json:"count"`
	Next     string `json:"next,omitempty"`
	Previous string `json:"previous,omitempty"`
	Results  []T    `json:"results"`
}

// HasNext reports whether another page follows.
func (p *Page[T]) HasNext() bool {
	return p != nil && p.Next != ""
}

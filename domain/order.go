package domain

import "time"

// CartItem is a line of the shopping cart.
type CartItem struct {
	ID         int64     `json:"id"`
	Product    Product   `json:"product"`
	Quantity   int       `json:"quantity"`
	TotalPrice string    `json:"total_price"`
	AddedAt    time.Time `json:"added_at"`
}

// Cart is the authenticated user's shopping cart.
type Cart struct {
	ID          int64      `json:"id"`
	Items       []CartItem `json:"items"`
	TotalAmount string     `json:"total_amount"`
	ItemCount   int        `json:"item_count"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// OrderStatus defines the fulfilment states of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// Valid reports whether s is one of the statuses the API accepts.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// OrderItem is a purchased line, priced at order time.
type OrderItem struct {
	ID           int64  `json:"id"`
	Product      int64  `json:"product"`
	ProductName  string `json:"product_name"`
	ProductImage string `json:"product_image,omitempty"`
	Quantity     int    `json:"quantity"`
	PriceAtTime  string `json:"price_at_time"`
	TotalPrice   string `json:"total_price"`
	SellerName   string `json:"seller_name"`
}

// Order is a placed order.
type Order struct {
	ID              int64       `json:"id"`
	Buyer           int64       `json:"buyer"`
	BuyerName       string      `json:"buyer_name"`
	TotalAmount     string      `json:"total_amount"`
	Status          OrderStatus `json:"status"`
	ShippingAddress string      `json:"shipping_address"`
	Items           []OrderItem `json:"items"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

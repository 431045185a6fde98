package core

import "time"

// CartLine is one product entry in the cart ledger.
//
// The JSON layout matches the persisted "cart" key: a plain array of lines.
type CartLine struct {
	ProductID int64   `json:"id"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"price"`
	ImageURL  string  `json:"imageUrl,omitempty"`
	Quantity  int     `json:"quantity"` // always >= 1
}

// Subtotal returns UnitPrice * Quantity.
func (l CartLine) Subtotal() float64 {
	return l.UnitPrice * float64(l.Quantity)
}

// CartSummary is the derived view of the ledger.
type CartSummary struct {
	Lines []CartLine `json:"lines"`
	Count int        `json:"count"`
	Total float64    `json:"total"`
}

// Notification is an admin notification as returned by the REST API and
// carried as the optional payload of a push event.
type Notification struct {
	ID              int64     `json:"id"`
	Message         string    `json:"message"`
	CreatedAt       time.Time `json:"createdDate"`
	IsRead          bool      `json:"isRead"`
	EntityType      string    `json:"entityType,omitempty"`
	RelatedEntityID int64     `json:"relatedEntityId,omitempty"`
}

// FilterState drives the catalog query.
type FilterState struct {
	SearchTerm string `json:"searchTerm"`
	CategoryID int64  `json:"categoryId"`
	SortKey    string `json:"sortBy"`
	PageNumber int    `json:"pageNumber"` // >= 1
	PageSize   int    `json:"pageSize"`
}

// Product is a catalog item.
type Product struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	Description  string  `json:"description,omitempty"`
	Price        float64 `json:"price"`
	Stock        int     `json:"stock"`
	CategoryID   int64   `json:"categoryId,omitempty"`
	CategoryName string  `json:"categoryName,omitempty"`
	ImageURL     string  `json:"imageUrl,omitempty"`
}

// ProductPage is one page of catalog results plus its pagination summary.
type ProductPage struct {
	Items      []Product `json:"items"`
	PageNumber int       `json:"pageNumber"`
	PageSize   int       `json:"pageSize"`
	TotalCount int       `json:"totalCount"`
	TotalPages int       `json:"totalPages"`
}

// Category groups products.
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// User is an account as managed from the admin console.
type User struct {
	ID       string   `json:"id,omitempty"`
	Username string   `json:"username"`
	FullName string   `json:"fullName"`
	Email    string   `json:"email"`
	Password string   `json:"password,omitempty"`
	Roles    []string `json:"roles"`
}

// Role is an assignable role name.
type Role struct {
	Name string `json:"name"`
}

// OrderStatus is the fulfilment state of an order.
type OrderStatus string

const (
	OrderPendingPayment OrderStatus = "PendingPayment"
	OrderProcessing     OrderStatus = "Processing"
	OrderShipped        OrderStatus = "Shipped"
	OrderDelivered      OrderStatus = "Delivered"
	OrderCanceled       OrderStatus = "Canceled"
)

// Valid reports whether s is one of the known statuses.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPendingPayment, OrderProcessing, OrderShipped, OrderDelivered, OrderCanceled:
		return true
	}
	return false
}

// Order is an order summary or detail.
type Order struct {
	ID              int64       `json:"id"`
	OrderDate       time.Time   `json:"orderDate"`
	CustomerName    string      `json:"customerName,omitempty"`
	TotalAmount     float64     `json:"totalAmount"`
	Status          OrderStatus `json:"status"`
	ShippingAddress string      `json:"shippingAddress,omitempty"`
	ItemCount       int         `json:"itemCount,omitempty"`
	Items           []OrderItem `json:"items,omitempty"`
}

// OrderItem is one line of an order detail.
type OrderItem struct {
	ProductID   int64   `json:"productId"`
	ProductName string  `json:"productName,omitempty"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price,omitempty"`
}

// PaymentMethod selects how an order is paid.
type PaymentMethod string

const (
	PaymentCOD    PaymentMethod = "COD"
	PaymentQRCode PaymentMethod = "QRCode"
)

// PlaceOrderInput is the body of an order placement.
type PlaceOrderInput struct {
	ShippingAddress string        `json:"shippingAddress"`
	PaymentMethod   PaymentMethod `json:"paymentMethod"`
	OrderItems      []OrderItem   `json:"orderItems"`
}

// PlaceOrderResult is returned by the REST API after an order is placed.
type PlaceOrderResult struct {
	OrderID           int64  `json:"orderId"`
	QRCodeImageBase64 string `json:"qrCodeImageBase64,omitempty"`
}

// Profile is the signed-in user's own account data.
type Profile struct {
	UserName string `json:"userName"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

// ChangePasswordInput is the body of a password change.
type ChangePasswordInput struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// DashboardStats are the headline figures for a period.
type DashboardStats struct {
	TotalRevenue  float64 `json:"totalRevenue"`
	TotalOrders   int     `json:"totalOrders"`
	TotalProducts int     `json:"totalProducts"`
	TotalUsers    int     `json:"totalUsers"`
	PendingOrders int     `json:"pendingOrders"`
}

// RevenuePoint is one bar of the revenue chart.
type RevenuePoint struct {
	Date    string  `json:"date"`
	Revenue float64 `json:"revenue"`
}

// Dashboard bundles stats and the revenue chart for one period.
type Dashboard struct {
	Period  string         `json:"period"`
	Stats   DashboardStats `json:"stats"`
	Revenue []RevenuePoint `json:"revenue"`
}

// Newsletter is a marketing email, sent or to be sent.
type Newsletter struct {
	ID             int64     `json:"id,omitempty"`
	Subject        string    `json:"subject"`
	Body           string    `json:"body"`
	ImageURL       string    `json:"imageUrl,omitempty"`
	SentDate       time.Time `json:"sentDate,omitempty"`
	RecipientCount int       `json:"recipientCount,omitempty"`
}

// Toast is a transient user-visible notice.
type Toast struct {
	ID        string     `json:"id"`
	Level     ToastLevel `json:"level"`
	Message   string     `json:"message"`
	CreatedAt time.Time  `json:"createdAt"`
}

type ToastLevel string

const (
	ToastInfo    ToastLevel = "info"
	ToastSuccess ToastLevel = "success"
	ToastError   ToastLevel = "error"
)

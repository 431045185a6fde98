package core

import (
	"context"
	"io"
)

// Ports define interfaces for external dependencies

// ============================================
// STORAGE PORT (durable client state)
// ============================================

// Storage persists small client-side values (the credential, the cart)
// under fixed keys. Get returns ErrStorageNotFound for an absent key.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// StorageWithStats extends Storage with statistics tracking
type StorageWithStats interface {
	Storage
	Stats() StorageStats
}

// StorageStats tracks storage access counters
type StorageStats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Sets    int64 `json:"sets"`
	Deletes int64 `json:"deletes"`
	Size    int   `json:"size"`
}

// ============================================
// REST PORTS (external collaborator)
// ============================================

// AuthAPI exchanges an identity and secret for a credential.
type AuthAPI interface {
	Login(ctx context.Context, identity, secret string) (string, error)
}

// CatalogAPI serves the public product catalog.
type CatalogAPI interface {
	SearchProducts(ctx context.Context, filter FilterState) (*ProductPage, error)
	GetProduct(ctx context.Context, id int64) (*Product, error)
	ListCategories(ctx context.Context) ([]Category, error)
}

// NotificationAPI serves the admin notification feed.
type NotificationAPI interface {
	ListNotifications(ctx context.Context) ([]Notification, error)
	MarkNotificationsRead(ctx context.Context, ids []int64) error
}

// OrderAPI places and reads the signed-in user's orders.
type OrderAPI interface {
	PlaceOrder(ctx context.Context, input PlaceOrderInput) (*PlaceOrderResult, error)
	MyOrders(ctx context.Context) ([]Order, error)
	GetOrder(ctx context.Context, id int64) (*Order, error)
}

// AccountAPI manages the signed-in user's profile.
type AccountAPI interface {
	GetProfile(ctx context.Context) (*Profile, error)
	UpdateProfile(ctx context.Context, profile Profile) error
	ChangePassword(ctx context.Context, input ChangePasswordInput) error
}

// AdminAPI covers the admin console resources.
type AdminAPI interface {
	ListAdminCategories(ctx context.Context) ([]Category, error)
	CreateCategory(ctx context.Context, name string) (*Category, error)
	UpdateCategory(ctx context.Context, id int64, name string) error
	DeleteCategory(ctx context.Context, id int64) error

	ListAdminProducts(ctx context.Context) ([]Product, error)
	CreateProduct(ctx context.Context, p Product) (*Product, error)
	UpdateProduct(ctx context.Context, p Product) error
	DeleteProduct(ctx context.Context, id int64) error

	ListUsers(ctx context.Context) ([]User, error)
	ListRoles(ctx context.Context) ([]Role, error)
	CreateUser(ctx context.Context, u User) (*User, error)
	UpdateUser(ctx context.Context, u User) error
	DeleteUser(ctx context.Context, id string) error

	ListAllOrders(ctx context.Context) ([]Order, error)
	UpdateOrderStatus(ctx context.Context, id int64, status OrderStatus) error

	DashboardStats(ctx context.Context, period string) (*DashboardStats, error)
	RevenueChart(ctx context.Context, period string) ([]RevenuePoint, error)

	UploadImage(ctx context.Context, kind, filename string, r io.Reader) (string, error)
	SendNewsletter(ctx context.Context, n Newsletter) error
	NewsletterHistory(ctx context.Context) ([]Newsletter, error)
}

// API is the full REST collaborator surface.
type API interface {
	AuthAPI
	CatalogAPI
	NotificationAPI
	OrderAPI
	AccountAPI
	AdminAPI
}

// CredentialSource yields the current bearer credential, or "" when there is none.
type CredentialSource func() string

// CredentialAware is implemented by clients that attach a bearer credential
// to outgoing requests.
type CredentialAware interface {
	UseCredentials(src CredentialSource)
}

// ============================================
// PUSH PORT (notification hub)
// ============================================

// PushEventKind distinguishes messages from connection lifecycle events.
type PushEventKind int

const (
	PushMessage PushEventKind = iota
	PushReconnecting
	PushReconnected
	PushClosed
)

// PushEvent is posted by the transport onto a single ordered queue.
type PushEvent struct {
	Kind         PushEventKind
	Target       string        // event name, for PushMessage
	Message      string        // first argument
	Notification *Notification // optional second argument
	Err          error         // cause, for PushReconnecting and PushClosed
}

// PushConnection is one push subscription.
type PushConnection interface {
	Start(ctx context.Context) error
	Invoke(ctx context.Context, method string, args ...any) error
	Events() <-chan PushEvent
	Stop() error
}

// PushDialer builds an unstarted connection to hubURL that authenticates
// with the credential from src.
type PushDialer func(hubURL string, src CredentialSource) PushConnection

// ============================================
// NOTICE PORT
// ============================================

// Notifier surfaces transient user-visible notices.
type Notifier interface {
	Notify(level ToastLevel, message string)
}

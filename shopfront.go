// Package shopfront wires the client state layer of the storefront and
// admin console: session, route guard, cart, notifications, catalog query,
// checkout, admin and account operations.
package shopfront

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lborres/shopfront/adapters/hub"
	"github.com/lborres/shopfront/core"
	"github.com/lborres/shopfront/services"
)

// interfaces
type (
	API        = core.API
	Storage    = core.Storage
	PushDialer = core.PushDialer
	Notifier   = core.Notifier
)

// structs
type (
	Principal       = core.Principal
	SessionSnapshot = core.SessionSnapshot
	CartLine        = core.CartLine
	Notification    = core.Notification
	FilterState     = core.FilterState
	Toast           = core.Toast
	RouteRule       = services.RouteRule
	Decision        = services.Decision
)

var (
	ErrAPIRequired         = core.ErrAPIRequired
	ErrStorageRequired     = core.ErrStorageRequired
	ErrHTTPAdapterRequired = core.ErrHTTPAdapterRequired
	ErrHubURLRequired      = core.ErrHubURLRequired
)

// HTTPAdapter exposes a Shopfront over some HTTP framework.
type HTTPAdapter interface {
	RegisterRoutes(sf *Shopfront) error
}

// baseURLer is implemented by REST clients that know their API root.
type baseURLer interface {
	BaseURL() string
}

type Config struct {
	API     API         // required
	Storage Storage     // required
	HTTP    HTTPAdapter // required

	// PushDialer builds notification hub connections. Defaults to the
	// websocket hub transport.
	PushDialer PushDialer
	// HubURL defaults to the API base with a trailing /api replaced by
	// /notificationHub.
	HubURL string

	Routes         []RouteRule // guarded locations beyond the built-in ones
	ReconnectDelay time.Duration
	DebounceWindow time.Duration
	PageSize       int
	ToastCapacity  int

	Logger *slog.Logger
}

// Shopfront is one user's client: every service shares the same session
// and storage.
type Shopfront struct {
	API     API
	Storage Storage

	Session       *services.SessionStore
	Routes        *services.RouteRegistry
	Cart          *services.CartLedger
	Notifications *services.NotificationChannel
	Catalog       *services.CatalogQuery
	Checkout      *services.Checkout
	Admin         *services.AdminConsole
	Account       *services.Account
	Toasts        *services.ToastQueue

	HubURL string
	Logger *slog.Logger
}

// New builds the services and boots them in order: cart load, notification
// subscription, session boot, first catalog query, then route registration
// on the HTTP adapter.
func New(ctx context.Context, config Config) (*Shopfront, error) {
	if config.API == nil {
		return nil, ErrAPIRequired
	}
	if config.Storage == nil {
		return nil, ErrStorageRequired
	}
	if config.HTTP == nil {
		return nil, ErrHTTPAdapterRequired
	}

	// Set Defaults

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	hubURL := config.HubURL
	if hubURL == "" {
		if b, ok := config.API.(baseURLer); ok {
			derived, err := hub.HubURL(b.BaseURL())
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrHubURLRequired, err)
			}
			hubURL = derived
		}
	}
	if hubURL == "" {
		return nil, ErrHubURLRequired
	}

	dialer := config.PushDialer
	if dialer == nil {
		dialer = hub.Dialer(hub.Options{Logger: logger})
	}

	toasts := services.NewToastQueue(config.ToastCapacity, logger)
	session := services.NewSessionStore(config.API, config.Storage, logger)

	if aware, ok := config.API.(core.CredentialAware); ok {
		aware.UseCredentials(session.Credential)
	}

	routes := services.NewRouteRegistry()
	if len(config.Routes) > 0 {
		if err := routes.Register(config.Routes); err != nil {
			return nil, err
		}
	}

	cart := services.NewCartLedger(config.Storage, toasts, logger)
	cart.Load(ctx)

	notifications := services.NewNotificationChannel(
		config.API,
		dialer,
		session.Credential,
		toasts,
		services.NotificationConfig{
			HubURL:         hubURL,
			ReconnectDelay: config.ReconnectDelay,
		},
		logger,
	)
	notifications.Attach(session)

	session.Boot(ctx)

	catalog := services.NewCatalogQuery(config.API, toasts, config.DebounceWindow, config.PageSize, logger)
	catalog.Refresh()

	sf := &Shopfront{
		API:           config.API,
		Storage:       config.Storage,
		Session:       session,
		Routes:        routes,
		Cart:          cart,
		Notifications: notifications,
		Catalog:       catalog,
		Checkout:      services.NewCheckout(config.API, session, cart, toasts, logger),
		Admin:         services.NewAdminConsole(config.API, toasts, logger),
		Account:       services.NewAccount(config.API, session, toasts, logger),
		Toasts:        toasts,
		HubURL:        hubURL,
		Logger:        logger,
	}

	if err := config.HTTP.RegisterRoutes(sf); err != nil {
		sf.Close()
		return nil, err
	}

	logger.Info("shopfront ready",
		"session", session.Snapshot().State,
		"cart_items", cart.Count(),
		"hub", hubURL)

	return sf, nil
}

// Authorize decides whether the current session may view location.
func (sf *Shopfront) Authorize(location string) Decision {
	return sf.Routes.Authorize(sf.Session.Current(), location)
}

// StorageStats reports storage counters when the backend keeps them.
func (sf *Shopfront) StorageStats() (core.StorageStats, bool) {
	s, ok := sf.Storage.(core.StorageWithStats)
	if !ok {
		return core.StorageStats{}, false
	}
	return s.Stats(), true
}

// Close stops background work: the catalog debounce timer, any in-flight
// search and the notification channel.
func (sf *Shopfront) Close() {
	sf.Catalog.Close()
	sf.Notifications.Close()
}

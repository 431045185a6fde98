// Package fiber serves the local console: the JSON surface a thin UI uses
// to drive one Shopfront.
package fiber

import (
	"github.com/gofiber/fiber/v3"

	"github.com/lborres/shopfront"
	"github.com/lborres/shopfront/pkg/crypto"
)

const (
	BasePath         = "/api"
	HeaderConsoleKey = "X-Console-Key"
)

type Adapter struct {
	app      *fiber.App
	verifier crypto.KeyVerifier
	sf       *shopfront.Shopfront
}

var _ shopfront.HTTPAdapter = (*Adapter)(nil)

// New returns an adapter that accepts requests presenting a key the
// verifier accepts. A nil verifier rejects every request.
func New(app *fiber.App, verifier crypto.KeyVerifier) *Adapter {
	return &Adapter{app: app, verifier: verifier}
}

func (a *Adapter) RegisterRoutes(sf *shopfront.Shopfront) error {
	a.sf = sf

	api := a.app.Group(BasePath, a.requireConsoleKey)

	// Session
	api.Get("/session", a.session)
	api.Post("/session/login", a.login)
	api.Post("/session/logout", a.logout)

	// Route guard
	api.Get("/routes", a.routes)
	api.Get("/routes/authorize", a.authorize)

	// Notices
	api.Get("/toasts", a.toasts)

	// Catalog
	api.Get("/catalog", a.catalog)
	api.Put("/catalog/filter", a.applyFilter)
	api.Put("/catalog/page", a.setPage)
	api.Post("/catalog/refresh", a.refreshCatalog)
	api.Get("/categories", a.categories)
	api.Get("/products/:id", a.product)

	// Cart
	api.Get("/cart", a.cart)
	api.Post("/cart/items", a.addCartItem)
	api.Put("/cart/items/:id", a.setCartQuantity)
	api.Delete("/cart/items/:id", a.removeCartItem)
	api.Delete("/cart", a.clearCart)

	// Checkout
	api.Post("/checkout", a.guard(at("/checkout")), a.placeOrder)
	api.Get("/checkout/pending", a.guard(at("/checkout")), a.pendingPayment)
	api.Post("/checkout/complete", a.guard(at("/checkout")), a.completePayment)

	// Account
	api.Get("/account/profile", a.guard(at("/profile")), a.profile)
	api.Put("/account/profile", a.guard(at("/profile")), a.updateProfile)
	api.Post("/account/password", a.guard(at("/profile")), a.changePassword)
	api.Get("/account/orders", a.guard(at("/my-orders")), a.myOrders)
	api.Get("/account/orders/:id", a.guard(orderLocation), a.order)

	// Admin console
	admin := api.Group("/admin", a.guard(consoleLocation))

	admin.Get("/notifications", a.notifications)
	admin.Post("/notifications/refresh", a.refreshNotifications)
	admin.Post("/notifications/read-all", a.markAllRead)
	admin.Post("/notifications/:id/read", a.markOneRead)

	admin.Get("/categories", a.adminCategories)
	admin.Post("/categories", a.createCategory)
	admin.Put("/categories/:id", a.updateCategory)
	admin.Delete("/categories/:id", a.deleteCategory)

	admin.Get("/products", a.adminProducts)
	admin.Post("/products", a.createProduct)
	admin.Put("/products/:id", a.updateProduct)
	admin.Delete("/products/:id", a.deleteProduct)

	admin.Get("/users", a.users)
	admin.Get("/users/roles", a.roles)
	admin.Post("/users", a.createUser)
	admin.Put("/users/:id", a.updateUser)
	admin.Delete("/users/:id", a.deleteUser)

	admin.Get("/orders", a.adminOrders)
	admin.Put("/orders/:id/status", a.updateOrderStatus)

	admin.Get("/dashboard", a.dashboard)

	admin.Post("/marketing/images", a.uploadImage)
	admin.Get("/marketing/newsletters", a.newsletters)
	admin.Post("/marketing/newsletters", a.sendNewsletter)

	admin.Get("/storage/stats", a.storageStats)

	return nil
}

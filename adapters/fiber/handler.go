package fiber

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v3"

	"github.com/lborres/shopfront/core"
	"github.com/lborres/shopfront/services"
)

const loginFailedMessage = "Login failed. Please check your username and password."

type loginInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
	From     string `json:"from"`
}

type cartItemInput struct {
	Product  core.Product `json:"product"`
	Quantity int          `json:"quantity"`
}

type quantityInput struct {
	Quantity int `json:"quantity"`
}

type pageInput struct {
	PageNumber int `json:"pageNumber"`
}

type checkoutInput struct {
	services.ShippingInfo
	PaymentMethod core.PaymentMethod `json:"paymentMethod"`
}

type nameInput struct {
	Name string `json:"name"`
}

type statusInput struct {
	Status core.OrderStatus `json:"status"`
}

// ---- session ----

func (a *Adapter) session(c fiber.Ctx) error {
	return c.JSON(a.sf.Session.Current())
}

func (a *Adapter) login(c fiber.Ctx) error {
	var input loginInput
	if err := c.Bind().Body(&input); err != nil {
		return invalidBody(c)
	}

	if _, err := a.sf.Session.Login(c.Context(), input.Username, input.Password); err != nil {
		msg := err.Error()
		if errors.Is(err, core.ErrLoginFailed) {
			msg = core.UserMessage(err, loginFailedMessage)
		}
		return c.Status(mapErrorToStatus(err)).JSON(fiber.Map{
			"error": msg,
		})
	}

	snap := a.sf.Session.Current()
	redirect := services.HomePath
	if snap.Principal != nil {
		redirect = services.PostLoginTarget(*snap.Principal, input.From)
	}

	return c.JSON(fiber.Map{
		"session":  snap,
		"redirect": redirect,
	})
}

func (a *Adapter) logout(c fiber.Ctx) error {
	a.sf.Session.Logout(c.Context())
	return c.JSON(fiber.Map{
		"session":  a.sf.Session.Current(),
		"redirect": services.LoginPath,
	})
}

// ---- route guard ----

func (a *Adapter) routes(c fiber.Ctx) error {
	return c.JSON(a.sf.Routes.Rules())
}

func (a *Adapter) authorize(c fiber.Ctx) error {
	location := c.Query("path")
	if location == "" {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": "path is required",
		})
	}
	return c.JSON(a.sf.Authorize(location))
}

// ---- notices ----

// toasts drains the queue unless peek is set.
func (a *Adapter) toasts(c fiber.Ctx) error {
	if c.Query("peek") == "true" {
		return c.JSON(a.sf.Toasts.Pending())
	}
	return c.JSON(a.sf.Toasts.Drain())
}

// ---- catalog ----

func (a *Adapter) catalog(c fiber.Ctx) error {
	return c.JSON(a.sf.Catalog.Result())
}

func (a *Adapter) applyFilter(c fiber.Ctx) error {
	var filter core.FilterState
	if err := c.Bind().Body(&filter); err != nil {
		return invalidBody(c)
	}
	a.sf.Catalog.Apply(filter)
	return c.Status(http.StatusAccepted).JSON(a.sf.Catalog.Filter())
}

func (a *Adapter) setPage(c fiber.Ctx) error {
	var input pageInput
	if err := c.Bind().Body(&input); err != nil {
		return invalidBody(c)
	}
	a.sf.Catalog.SetPage(input.PageNumber)
	return c.Status(http.StatusAccepted).JSON(a.sf.Catalog.Filter())
}

func (a *Adapter) refreshCatalog(c fiber.Ctx) error {
	a.sf.Catalog.Refresh()
	return c.SendStatus(http.StatusAccepted)
}

func (a *Adapter) categories(c fiber.Ctx) error {
	categories, err := a.sf.API.ListCategories(c.Context())
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(categories)
}

func (a *Adapter) product(c fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	product, err := a.sf.API.GetProduct(c.Context(), id)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(product)
}

// ---- cart ----

func (a *Adapter) cart(c fiber.Ctx) error {
	return c.JSON(a.sf.Cart.Summary())
}

func (a *Adapter) addCartItem(c fiber.Ctx) error {
	var input cartItemInput
	if err := c.Bind().Body(&input); err != nil {
		return invalidBody(c)
	}
	if input.Quantity == 0 {
		input.Quantity = 1
	}
	if err := a.sf.Cart.AddItem(c.Context(), input.Product, input.Quantity); err != nil {
		return handleError(c, err)
	}
	return c.JSON(a.sf.Cart.Summary())
}

func (a *Adapter) setCartQuantity(c fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	var input quantityInput
	if err := c.Bind().Body(&input); err != nil {
		return invalidBody(c)
	}
	a.sf.Cart.SetQuantity(c.Context(), id, input.Quantity)
	return c.JSON(a.sf.Cart.Summary())
}

func (a *Adapter) removeCartItem(c fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	a.sf.Cart.RemoveItem(c.Context(), id)
	return c.JSON(a.sf.Cart.Summary())
}

func (a *Adapter) clearCart(c fiber.Ctx) error {
	a.sf.Cart.Clear(c.Context())
	return c.JSON(a.sf.Cart.Summary())
}

// ---- checkout ----

func (a *Adapter) placeOrder(c fiber.Ctx) error {
	var input checkoutInput
	if err := c.Bind().Body(&input); err != nil {
		return invalidBody(c)
	}
	result, err := a.sf.Checkout.PlaceOrder(c.Context(), input.ShippingInfo, input.PaymentMethod)
	if err != nil {
		return handleError(c, err)
	}
	return c.Status(http.StatusCreated).JSON(result)
}

func (a *Adapter) pendingPayment(c fiber.Ctx) error {
	pending := a.sf.Checkout.PendingPayment()
	if pending == nil {
		return c.SendStatus(http.StatusNoContent)
	}
	return c.JSON(pending)
}

func (a *Adapter) completePayment(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"redirect": a.sf.Checkout.CompleteQRPayment(c.Context()),
	})
}

// ---- account ----

func (a *Adapter) profile(c fiber.Ctx) error {
	profile, err := a.sf.Account.Profile(c.Context())
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(profile)
}

func (a *Adapter) updateProfile(c fiber.Ctx) error {
	var input core.Profile
	if err := c.Bind().Body(&input); err != nil {
		return invalidBody(c)
	}
	if err := a.sf.Account.UpdateProfile(c.Context(), input); err != nil {
		return handleError(c, err)
	}
	return c.SendStatus(http.StatusNoContent)
}

func (a *Adapter) changePassword(c fiber.Ctx) error {
	var input services.ChangePasswordRequest
	if err := c.Bind().Body(&input); err != nil {
		return invalidBody(c)
	}
	if err := a.sf.Account.ChangePassword(c.Context(), input); err != nil {
		return handleError(c, err)
	}
	return c.SendStatus(http.StatusNoContent)
}

func (a *Adapter) myOrders(c fiber.Ctx) error {
	orders, err := a.sf.Account.MyOrders(c.Context())
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(orders)
}

func (a *Adapter) order(c fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	order, err := a.sf.Account.Order(c.Context(), id)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(order)
}

// ---- admin: notifications ----

func (a *Adapter) notifications(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"active":        a.sf.Notifications.Active(),
		"unreadCount":   a.sf.Notifications.UnreadCount(),
		"notifications": a.sf.Notifications.Notifications(),
	})
}

func (a *Adapter) refreshNotifications(c fiber.Ctx) error {
	if err := a.sf.Notifications.Refresh(c.Context()); err != nil {
		return handleError(c, err)
	}
	return a.notifications(c)
}

func (a *Adapter) markAllRead(c fiber.Ctx) error {
	if err := a.sf.Notifications.MarkAllRead(c.Context()); err != nil {
		return handleError(c, err)
	}
	return a.notifications(c)
}

func (a *Adapter) markOneRead(c fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	target, err := a.sf.Notifications.MarkOneRead(c.Context(), id)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(fiber.Map{"redirect": target})
}

// ---- admin: categories ----

func (a *Adapter) adminCategories(c fiber.Ctx) error {
	return respond(c, a.sf.Admin.Categories)
}

func (a *Adapter) createCategory(c fiber.Ctx) error {
	var input nameInput
	if err := c.Bind().Body(&input); err != nil {
		return invalidBody(c)
	}
	return mutated(c, http.StatusCreated, a.sf.Admin.SaveCategory(c.Context(), 0, input.Name))
}

func (a *Adapter) updateCategory(c fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	var input nameInput
	if err := c.Bind().Body(&input); err != nil {
		return invalidBody(c)
	}
	return mutated(c, http.StatusNoContent, a.sf.Admin.SaveCategory(c.Context(), id, input.Name))
}

func (a *Adapter) deleteCategory(c fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	return mutated(c, http.StatusNoContent, a.sf.Admin.DeleteCategory(c.Context(), id))
}

// ---- admin: products ----

func (a *Adapter) adminProducts(c fiber.Ctx) error {
	return respond(c, a.sf.Admin.Products)
}

func (a *Adapter) createProduct(c fiber.Ctx) error {
	var input core.Product
	if err := c.Bind().Body(&input); err != nil {
		return invalidBody(c)
	}
	input.ID = 0
	return mutated(c, http.StatusCreated, a.sf.Admin.SaveProduct(c.Context(), input))
}

func (a *Adapter) updateProduct(c fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	var input core.Product
	if err := c.Bind().Body(&input); err != nil {
		return invalidBody(c)
	}
	input.ID = id
	return mutated(c, http.StatusNoContent, a.sf.Admin.SaveProduct(c.Context(), input))
}

func (a *Adapter) deleteProduct(c fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	return mutated(c, http.StatusNoContent, a.sf.Admin.DeleteProduct(c.Context(), id))
}

// ---- admin: users ----

func (a *Adapter) users(c fiber.Ctx) error {
	return respond(c, a.sf.Admin.Users)
}

func (a *Adapter) roles(c fiber.Ctx) error {
	return respond(c, a.sf.Admin.Roles)
}

func (a *Adapter) createUser(c fiber.Ctx) error {
	var input core.User
	if err := c.Bind().Body(&input); err != nil {
		return invalidBody(c)
	}
	input.ID = ""
	return mutated(c, http.StatusCreated, a.sf.Admin.SaveUser(c.Context(), input))
}

func (a *Adapter) updateUser(c fiber.Ctx) error {
	var input core.User
	if err := c.Bind().Body(&input); err != nil {
		return invalidBody(c)
	}
	input.ID = c.Params("id")
	return mutated(c, http.StatusNoContent, a.sf.Admin.SaveUser(c.Context(), input))
}

func (a *Adapter) deleteUser(c fiber.Ctx) error {
	return mutated(c, http.StatusNoContent, a.sf.Admin.DeleteUser(c.Context(), c.Params("id")))
}

// ---- admin: orders ----

func (a *Adapter) adminOrders(c fiber.Ctx) error {
	return respond(c, a.sf.Admin.Orders)
}

func (a *Adapter) updateOrderStatus(c fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	var input statusInput
	if err := c.Bind().Body(&input); err != nil {
		return invalidBody(c)
	}
	return mutated(c, http.StatusNoContent, a.sf.Admin.UpdateOrderStatus(c.Context(), id, input.Status))
}

// ---- admin: dashboard ----

func (a *Adapter) dashboard(c fiber.Ctx) error {
	dashboard, err := a.sf.Admin.Dashboard(c.Context(), c.Query("period"))
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(dashboard)
}

// ---- admin: marketing ----

func (a *Adapter) uploadImage(c fiber.Ctx) error {
	header, err := c.FormFile("file")
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": "file is required",
		})
	}

	file, err := header.Open()
	if err != nil {
		return handleError(c, err)
	}
	defer file.Close()

	url, err := a.sf.Admin.UploadImage(c.Context(), header.Filename, header.Size, file)
	if err != nil {
		return handleError(c, err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"imageUrl": url})
}

func (a *Adapter) newsletters(c fiber.Ctx) error {
	return respond(c, a.sf.Admin.NewsletterHistory)
}

func (a *Adapter) sendNewsletter(c fiber.Ctx) error {
	var input core.Newsletter
	if err := c.Bind().Body(&input); err != nil {
		return invalidBody(c)
	}
	return mutated(c, http.StatusAccepted, a.sf.Admin.SendNewsletter(c.Context(), input))
}

func (a *Adapter) storageStats(c fiber.Ctx) error {
	stats, ok := a.sf.StorageStats()
	if !ok {
		return c.SendStatus(http.StatusNoContent)
	}
	return c.JSON(stats)
}

// ---- helpers ----

func respond[T any](c fiber.Ctx, fetch func(context.Context) (T, error)) error {
	v, err := fetch(c.Context())
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(v)
}

func mutated(c fiber.Ctx, status int, err error) error {
	if err != nil {
		return handleError(c, err)
	}
	return c.SendStatus(status)
}

// paramID reads the positive :id parameter. The error is a *fiber.Error
// the default error handler turns into a 400.
func paramID(c fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func invalidBody(c fiber.Ctx) error {
	return c.Status(http.StatusBadRequest).JSON(fiber.Map{
		"error": "invalid request body",
	})
}

// handleError maps service errors to HTTP responses
func handleError(c fiber.Ctx, err error) error {
	status := mapErrorToStatus(err)
	return c.Status(status).JSON(fiber.Map{
		"error": core.UserMessage(err, err.Error()),
	})
}

// mapErrorToStatus maps shopfront error types to HTTP status codes
func mapErrorToStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	switch {
	case errors.Is(err, core.ErrIdentityRequired),
		errors.Is(err, core.ErrSecretRequired),
		errors.Is(err, core.ErrInvalidQuantity),
		errors.Is(err, core.ErrInvalidProduct),
		errors.Is(err, core.ErrEmptyCart),
		errors.Is(err, core.ErrShippingInfoRequired),
		errors.Is(err, core.ErrInvalidPaymentMethod),
		errors.Is(err, core.ErrInvalidOrderStatus),
		errors.Is(err, core.ErrNewsletterIncomplete),
		errors.Is(err, core.ErrInvalidPeriod),
		errors.Is(err, core.ErrPasswordMismatch),
		errors.Is(err, core.ErrPasswordTooShort),
		errors.Is(err, core.ErrNameRequired),
		errors.Is(err, core.ErrUserPasswordRequired),
		errors.Is(err, core.ErrInvalidNotificationID):
		return http.StatusBadRequest

	case errors.Is(err, core.ErrNotAuthenticated),
		errors.Is(err, core.ErrLoginFailed),
		errors.Is(err, core.ErrSessionExpired):
		return http.StatusUnauthorized

	case errors.Is(err, core.ErrNotificationNotFound):
		return http.StatusNotFound

	case errors.Is(err, core.ErrChannelInactive):
		return http.StatusConflict

	case errors.Is(err, core.ErrImageTooLarge):
		return http.StatusRequestEntityTooLarge

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}

	var apiErr *core.APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
			return apiErr.StatusCode
		}
		return http.StatusBadGateway
	}

	return http.StatusInternalServerError
}
